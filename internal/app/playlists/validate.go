package playlists

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"setlist/internal/models"
)

const (
	maxNameLength        = 200
	maxDescriptionLength = 1000
	maxBulkSongs         = 500
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a payload fails schema checks.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// PlaylistRequest is the create and update payload.
type PlaylistRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Private     *bool   `json:"private"`
}

// Validate checks the payload and returns the normalized input. Names are
// trimmed and a blank description becomes nil.
func (r PlaylistRequest) Validate() (models.PlaylistInput, error) {
	verr := &ValidationError{}

	name := strings.TrimSpace(r.Name)
	switch {
	case name == "":
		verr.add("name", "is required")
	case utf8.RuneCountInString(name) > maxNameLength:
		verr.add("name", "must be at most %d characters", maxNameLength)
	}

	var description *string
	if r.Description != nil {
		if d := strings.TrimSpace(*r.Description); d != "" {
			if utf8.RuneCountInString(d) > maxDescriptionLength {
				verr.add("description", "must be at most %d characters", maxDescriptionLength)
			}
			description = &d
		}
	}

	if r.Private == nil {
		verr.add("private", "is required")
	}

	if err := verr.orNil(); err != nil {
		return models.PlaylistInput{}, err
	}
	return models.PlaylistInput{Name: name, Description: description, Private: *r.Private}, nil
}

// BulkAddRequest is the payload for adding many songs at once.
type BulkAddRequest struct {
	PlaylistID string   `json:"playlistId"`
	SongIDs    []string `json:"songIds"`
}

// Validate checks the payload. Song ids must be non-empty and unique; their
// order is preserved.
func (r BulkAddRequest) Validate() (models.BulkAddInput, error) {
	verr := &ValidationError{}

	playlistID := strings.TrimSpace(r.PlaylistID)
	if playlistID == "" {
		verr.add("playlistId", "is required")
	}

	switch {
	case len(r.SongIDs) == 0:
		verr.add("songIds", "must contain at least one song")
	case len(r.SongIDs) > maxBulkSongs:
		verr.add("songIds", "must contain at most %d songs", maxBulkSongs)
	}

	songIDs := make([]string, 0, len(r.SongIDs))
	seen := make(map[string]struct{}, len(r.SongIDs))
	for i, raw := range r.SongIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			verr.add(fmt.Sprintf("songIds[%d]", i), "is required")
			continue
		}
		if _, dup := seen[id]; dup {
			verr.add(fmt.Sprintf("songIds[%d]", i), "duplicates %q", id)
			continue
		}
		seen[id] = struct{}{}
		songIDs = append(songIDs, id)
	}

	if err := verr.orNil(); err != nil {
		return models.BulkAddInput{}, err
	}
	return models.BulkAddInput{PlaylistID: playlistID, SongIDs: songIDs}, nil
}
