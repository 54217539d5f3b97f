package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"setlist/internal/app/playlists"
	"setlist/internal/logging"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload", nil)
		return false
	}
	return true
}

func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := strings.TrimSpace(mux.Vars(r)[name])
	if value == "" {
		writeError(w, http.StatusBadRequest, name+" is required", nil)
		return "", false
	}
	return value, true
}

func (s *Server) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlists.PlaylistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	playlist, err := s.playlists.Create(r.Context(), logging.UserID(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, "create_playlist", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "playlist created", playlist)
}

func (s *Server) listPlaylists(w http.ResponseWriter, r *http.Request) {
	list, err := s.playlists.ListActive(r.Context(), logging.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, "list_playlists", err)
		return
	}
	writeSuccess(w, http.StatusOK, "playlists retrieved", list)
}

func (s *Server) listArchivedPlaylists(w http.ResponseWriter, r *http.Request) {
	list, err := s.playlists.ListArchived(r.Context(), logging.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, "list_archived_playlists", err)
		return
	}
	writeSuccess(w, http.StatusOK, "archived playlists retrieved", list)
}

func (s *Server) getPlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	playlist, err := s.playlists.Get(r.Context(), logging.UserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, "get_playlist", err)
		return
	}
	writeSuccess(w, http.StatusOK, "playlist retrieved", playlist)
}

func (s *Server) updatePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	var req playlists.PlaylistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	playlist, err := s.playlists.Update(r.Context(), logging.UserID(r.Context()), id, req)
	if err != nil {
		writeServiceError(w, r, "update_playlist", err)
		return
	}
	writeSuccess(w, http.StatusOK, "playlist updated", playlist)
}

func (s *Server) archivePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	if err := s.playlists.Archive(r.Context(), logging.UserID(r.Context()), id); err != nil {
		writeServiceError(w, r, "archive_playlist", err)
		return
	}
	writeSuccess(w, http.StatusOK, "playlist archived", nil)
}

func (s *Server) restorePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	playlist, err := s.playlists.Restore(r.Context(), logging.UserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, "restore_playlist", err)
		return
	}
	writeSuccess(w, http.StatusOK, "playlist restored", playlist)
}

func (s *Server) addSong(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	songID, ok := pathParam(w, r, "songId")
	if !ok {
		return
	}

	member, err := s.playlists.AddSong(r.Context(), logging.UserID(r.Context()), id, songID)
	if err != nil {
		writeServiceError(w, r, "add_song", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "song added to playlist", member)
}

func (s *Server) bulkAddSongs(w http.ResponseWriter, r *http.Request) {
	var req playlists.BulkAddRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	count, err := s.playlists.BulkAdd(r.Context(), logging.UserID(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, "bulk_add_songs", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "songs added to playlist", map[string]int{"count": count})
}

func (s *Server) removeSong(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	songID, ok := pathParam(w, r, "songId")
	if !ok {
		return
	}

	if err := s.playlists.RemoveSong(r.Context(), logging.UserID(r.Context()), id, songID); err != nil {
		writeServiceError(w, r, "remove_song", err)
		return
	}
	writeSuccess(w, http.StatusOK, "song removed from playlist", nil)
}

func (s *Server) listExistingSongIDs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	ids, err := s.playlists.ListSongIDs(r.Context(), logging.UserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, "list_song_ids", err)
		return
	}
	writeSuccess(w, http.StatusOK, "playlist song ids retrieved", ids)
}

// listSongsPage answers with the bare page object rather than the envelope.
func (s *Server) listSongsPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

	page, err := s.playlists.ListSongsPage(r.Context(), logging.UserID(r.Context()), id, cursor)
	if err != nil {
		writeServiceError(w, r, "list_songs_page", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) listAllSongs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	songs, err := s.playlists.ListAllSongs(r.Context(), logging.UserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, "list_all_songs", err)
		return
	}
	writeSuccess(w, http.StatusOK, "playlist songs retrieved", songs)
}
