package playlists

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaylistRequestValidate(t *testing.T) {
	tests := []struct {
		name       string
		req        PlaylistRequest
		wantFields []string
	}{
		{
			name: "valid",
			req:  PlaylistRequest{Name: "Road Trip", Private: boolPtr(false)},
		},
		{
			name:       "blank name",
			req:        PlaylistRequest{Name: "   ", Private: boolPtr(false)},
			wantFields: []string{"name"},
		},
		{
			name:       "name too long",
			req:        PlaylistRequest{Name: strings.Repeat("a", maxNameLength+1), Private: boolPtr(true)},
			wantFields: []string{"name"},
		},
		{
			name:       "description too long",
			req:        PlaylistRequest{Name: "x", Description: strPtr(strings.Repeat("d", maxDescriptionLength+1)), Private: boolPtr(true)},
			wantFields: []string{"description"},
		},
		{
			name:       "private missing",
			req:        PlaylistRequest{Name: "x"},
			wantFields: []string{"private"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.req.Validate()
			if len(tc.wantFields) == 0 {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			fields := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tc.wantFields, fields)
		})
	}
}

func TestPlaylistRequestNormalizesDescription(t *testing.T) {
	input, err := PlaylistRequest{Name: " Mix ", Description: strPtr("   "), Private: boolPtr(true)}.Validate()
	require.NoError(t, err)
	assert.Equal(t, "Mix", input.Name)
	assert.Nil(t, input.Description)
	assert.True(t, input.Private)
}

func TestBulkAddRequestValidate(t *testing.T) {
	input, err := BulkAddRequest{PlaylistID: "pl-1", SongIDs: []string{" song-5", "song-9", "song-2"}}.Validate()
	require.NoError(t, err)
	assert.Equal(t, []string{"song-5", "song-9", "song-2"}, input.SongIDs)

	_, err = BulkAddRequest{SongIDs: []string{"song-1", "song-1", ""}}.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []FieldError{
		{Field: "playlistId", Message: "is required"},
		{Field: "songIds[1]", Message: `duplicates "song-1"`},
		{Field: "songIds[2]", Message: "is required"},
	}, verr.Fields)
	assert.Contains(t, err.Error(), "playlistId: is required")

	ids := make([]string, maxBulkSongs+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("song-%d", i)
	}
	_, err = BulkAddRequest{PlaylistID: "pl-1", SongIDs: ids}.Validate()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "songIds", verr.Fields[0].Field)
}
