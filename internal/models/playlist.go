package models

import "time"

// Playlist captures a user-curated, ordered collection of songs.
//
// Image and Color are denormalized from the oldest surviving member song and
// are both nil while the playlist is empty.
type Playlist struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"userId" db:"user_id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description" db:"description"`
	Private     bool       `json:"private" db:"private"`
	Image       *string    `json:"image" db:"image"`
	Color       *string    `json:"color" db:"color"`
	IsArchived  bool       `json:"isArchived" db:"is_archived"`
	ArchivedAt  *time.Time `json:"archivedAt" db:"archived_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	SongCount   int        `json:"songCount" db:"song_count"`
}

// Cover returns the playlist's current cover fields.
func (p *Playlist) Cover() Cover {
	return Cover{Image: p.Image, Color: p.Color}
}

// PlaylistSong is the membership edge between a playlist and a song. Its
// CreatedAt orders members for cover derivation and pagination.
type PlaylistSong struct {
	ID         string    `json:"id" db:"id"`
	PlaylistID string    `json:"playlistId" db:"playlist_id"`
	SongID     string    `json:"songId" db:"song_id"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	Song       *Song     `json:"song,omitempty"`
}

// Cover holds the display image and color derived for a playlist.
type Cover struct {
	Image *string `json:"image"`
	Color *string `json:"color"`
}

// IsEmpty reports whether neither field is set.
func (c Cover) IsEmpty() bool {
	return c.Image == nil && c.Color == nil
}

// PlaylistInput is the validated payload for create and update.
type PlaylistInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Private     bool    `json:"private"`
}

// BulkAddInput is the validated payload for adding several songs at once.
type BulkAddInput struct {
	PlaylistID string   `json:"playlistId"`
	SongIDs    []string `json:"songIds"`
}

// SongPage is one page of playlist members, newest first.
type SongPage struct {
	Items      []PlaylistSong `json:"items"`
	NextCursor *string        `json:"nextCursor"`
}
