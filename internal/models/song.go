package models

// Artist is read-only catalog data.
type Artist struct {
	ID    string  `json:"id" db:"id"`
	Name  string  `json:"name" db:"name"`
	Image *string `json:"image,omitempty" db:"image"`
}

// Album is read-only catalog data. Color feeds playlist cover derivation.
type Album struct {
	ID    string  `json:"id" db:"id"`
	Title string  `json:"title" db:"title"`
	Image *string `json:"image" db:"image"`
	Color *string `json:"color" db:"color"`
}

// Song is a catalog track with its album and performing artists.
type Song struct {
	ID       string   `json:"id" db:"id"`
	Title    string   `json:"title" db:"title"`
	Image    *string  `json:"image" db:"image"`
	Duration int      `json:"duration" db:"duration"`
	Album    *Album   `json:"album,omitempty"`
	Artists  []Artist `json:"artists"`
}

// Cover derives the playlist cover a song would produce: the song's image and
// its album's color.
func (s *Song) Cover() Cover {
	if s == nil {
		return Cover{}
	}
	cover := Cover{Image: s.Image}
	if s.Album != nil {
		cover.Color = s.Album.Color
	}
	return cover
}
