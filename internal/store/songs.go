package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"setlist/internal/models"
)

const selectMember = `
		SELECT ps.id, ps.playlist_id, ps.song_id, ps.created_at,
		       s.title, s.image, COALESCE(s.duration, 0),
		       al.id, al.title, al.image, al.color
		FROM playlist_songs ps
		JOIN songs s ON s.id = ps.song_id
		LEFT JOIN albums al ON al.id = s.album_id`

func scanMember(row rowScanner) (models.PlaylistSong, error) {
	var (
		member     models.PlaylistSong
		song       models.Song
		songImage  sql.NullString
		albumID    sql.NullString
		albumTitle sql.NullString
		albumImage sql.NullString
		albumColor sql.NullString
	)
	if err := row.Scan(&member.ID, &member.PlaylistID, &member.SongID, &member.CreatedAt,
		&song.Title, &songImage, &song.Duration,
		&albumID, &albumTitle, &albumImage, &albumColor); err != nil {
		return models.PlaylistSong{}, err
	}
	song.ID = member.SongID
	song.Image = stringPtr(songImage)
	song.Artists = []models.Artist{}
	if albumID.Valid {
		song.Album = &models.Album{
			ID:    albumID.String,
			Title: albumTitle.String,
			Image: stringPtr(albumImage),
			Color: stringPtr(albumColor),
		}
	}
	member.Song = &song
	return member, nil
}

// ListSongIDs returns the ids of every song in the playlist.
func (s *Store) ListSongIDs(ctx context.Context, playlistID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT song_id
		FROM playlist_songs
		WHERE playlist_id = $1
		ORDER BY created_at DESC, id DESC`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("list playlist song ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan playlist song id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlist song ids: %w", err)
	}
	return ids, nil
}

// ListSongs returns every member of the playlist with song, album and artist
// detail, newest-inserted first.
func (s *Store) ListSongs(ctx context.Context, playlistID string) ([]models.PlaylistSong, error) {
	return s.queryMembers(ctx, selectMember+`
		WHERE ps.playlist_id = $1
		ORDER BY ps.created_at DESC, ps.id DESC`, playlistID)
}

// ListSongsPage returns up to limit members, newest-inserted first. A
// non-empty cursor resumes strictly after that membership row; a cursor that
// does not belong to the playlist yields an empty page.
func (s *Store) ListSongsPage(ctx context.Context, playlistID, cursor string, limit int) ([]models.PlaylistSong, error) {
	if cursor == "" {
		return s.queryMembers(ctx, selectMember+`
		WHERE ps.playlist_id = $1
		ORDER BY ps.created_at DESC, ps.id DESC
		LIMIT $2`, playlistID, limit)
	}
	return s.queryMembers(ctx, selectMember+`
		WHERE ps.playlist_id = $1
		  AND (ps.created_at, ps.id) < (
		      SELECT c.created_at, c.id FROM playlist_songs c
		      WHERE c.id = $2 AND c.playlist_id = $1)
		ORDER BY ps.created_at DESC, ps.id DESC
		LIMIT $3`, playlistID, cursor, limit)
}

func (s *Store) queryMembers(ctx context.Context, query string, args ...any) ([]models.PlaylistSong, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list playlist songs: %w", err)
	}
	defer rows.Close()

	members := make([]models.PlaylistSong, 0)
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan playlist song: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlist songs: %w", err)
	}
	rows.Close()

	if err := s.attachArtists(ctx, members); err != nil {
		return nil, err
	}
	return members, nil
}

// attachArtists loads performing artists for all member songs in one query.
func (s *Store) attachArtists(ctx context.Context, members []models.PlaylistSong) error {
	if len(members) == 0 {
		return nil
	}

	bySong := make(map[string][]*models.Song, len(members))
	songIDs := make([]string, 0, len(members))
	for i := range members {
		song := members[i].Song
		if _, seen := bySong[song.ID]; !seen {
			songIDs = append(songIDs, song.ID)
		}
		bySong[song.ID] = append(bySong[song.ID], song)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sa.song_id, a.id, a.name, a.image
		FROM song_artists sa
		JOIN artists a ON a.id = sa.artist_id
		WHERE sa.song_id = ANY($1)
		ORDER BY sa.song_id, a.name`, pq.Array(songIDs))
	if err != nil {
		return fmt.Errorf("list song artists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			songID string
			artist models.Artist
			image  sql.NullString
		)
		if err := rows.Scan(&songID, &artist.ID, &artist.Name, &image); err != nil {
			return fmt.Errorf("scan song artist: %w", err)
		}
		artist.Image = stringPtr(image)
		for _, song := range bySong[songID] {
			song.Artists = append(song.Artists, artist)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate song artists: %w", err)
	}
	return nil
}

// GetSong returns a catalog song with its album.
func (s *Store) GetSong(ctx context.Context, id string) (*models.Song, error) {
	return getSong(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSong(ctx context.Context, q queryRower, id string) (*models.Song, error) {
	var (
		song       models.Song
		songImage  sql.NullString
		albumID    sql.NullString
		albumTitle sql.NullString
		albumImage sql.NullString
		albumColor sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT s.id, s.title, s.image, COALESCE(s.duration, 0),
		       al.id, al.title, al.image, al.color
		FROM songs s
		LEFT JOIN albums al ON al.id = s.album_id
		WHERE s.id = $1`, id).Scan(&song.ID, &song.Title, &songImage, &song.Duration,
		&albumID, &albumTitle, &albumImage, &albumColor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get song: %w", err)
	}

	song.Image = stringPtr(songImage)
	song.Artists = []models.Artist{}
	if albumID.Valid {
		song.Album = &models.Album{
			ID:    albumID.String,
			Title: albumTitle.String,
			Image: stringPtr(albumImage),
			Color: stringPtr(albumColor),
		}
	}
	return &song, nil
}
