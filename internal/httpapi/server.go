package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"setlist/internal/app/playlists"
	"setlist/internal/http/middleware"
	"setlist/internal/logging"
	"setlist/internal/metrics"
	"setlist/internal/models"
	"setlist/internal/store"
)

// PlaylistService coordinates playlist-related operations.
type PlaylistService interface {
	Create(ctx context.Context, userID string, req playlists.PlaylistRequest) (*models.Playlist, error)
	Get(ctx context.Context, userID, id string) (*models.Playlist, error)
	ListActive(ctx context.Context, userID string) ([]*models.Playlist, error)
	ListArchived(ctx context.Context, userID string) ([]*models.Playlist, error)
	Update(ctx context.Context, userID, id string, req playlists.PlaylistRequest) (*models.Playlist, error)
	Archive(ctx context.Context, userID, id string) error
	Restore(ctx context.Context, userID, id string) (*models.Playlist, error)

	AddSong(ctx context.Context, userID, playlistID, songID string) (*models.PlaylistSong, error)
	BulkAdd(ctx context.Context, userID string, req playlists.BulkAddRequest) (int, error)
	RemoveSong(ctx context.Context, userID, playlistID, songID string) error
	ListSongIDs(ctx context.Context, userID, playlistID string) ([]string, error)
	ListSongsPage(ctx context.Context, userID, playlistID, cursor string) (models.SongPage, error)
	ListAllSongs(ctx context.Context, userID, playlistID string) ([]models.PlaylistSong, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	playlists PlaylistService
	auth      *Authenticator
	health    HealthChecker
}

// New configures a Server.
func New(playlists PlaylistService, auth *Authenticator, health HealthChecker) *Server {
	return &Server{playlists: playlists, auth: auth, health: health}
}

// Routes exposes the HTTP handlers. Every playlist route requires an
// authenticated caller.
func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.Recovery(), middleware.RequestLogging(), middleware.Metrics(middleware.DefaultMetricsConfig()))
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/playlists").Subrouter()
	api.Use(s.auth.Middleware)

	api.HandleFunc("", s.createPlaylist).Methods(http.MethodPost)
	api.HandleFunc("", s.listPlaylists).Methods(http.MethodGet)
	api.HandleFunc("/songs", s.bulkAddSongs).Methods(http.MethodPost)
	api.HandleFunc("/archived", s.listArchivedPlaylists).Methods(http.MethodPost)
	api.HandleFunc("/{id}/songs", s.listSongsPage).Methods(http.MethodGet)
	api.HandleFunc("/{id}/all-songs", s.listAllSongs).Methods(http.MethodGet)
	api.HandleFunc("/{id}/existing-songs", s.listExistingSongIDs).Methods(http.MethodGet)
	api.HandleFunc("/{id}/restore", s.restorePlaylist).Methods(http.MethodPatch)
	api.HandleFunc("/{id}/songs/{songId}", s.removeSong).Methods(http.MethodDelete)
	api.HandleFunc("/{id}/songs/{songId}", s.addSong).Methods(http.MethodPost)
	api.HandleFunc("/{id}", s.getPlaylist).Methods(http.MethodGet)
	api.HandleFunc("/{id}", s.updatePlaylist).Methods(http.MethodPatch)
	api.HandleFunc("/{id}", s.archivePlaylist).Methods(http.MethodDelete)

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			logging.WithContext(r.Context()).Error().Err(err).Msg("health check failed")
			writeError(w, http.StatusServiceUnavailable, "store unavailable", nil)
			return
		}
	}
	writeSuccess(w, http.StatusOK, "ok", nil)
}

// envelope is the response shape of every route except the song page.
type envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Status: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Status: false, Message: message, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeServiceError maps service errors onto status codes. Anything
// unexpected is logged under op and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *playlists.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "invalid input", verr.Fields)
	case errors.Is(err, store.ErrPlaylistNotFound):
		writeError(w, http.StatusNotFound, "playlist not found", nil)
	case errors.Is(err, store.ErrSongNotFound):
		writeError(w, http.StatusNotFound, "song not found", nil)
	case errors.Is(err, playlists.ErrForbidden):
		writeError(w, http.StatusForbidden, "access denied", nil)
	case errors.Is(err, playlists.ErrArchiveExpired):
		writeError(w, http.StatusGone, "playlist can no longer be restored", nil)
	case errors.Is(err, store.ErrDuplicateSong):
		writeError(w, http.StatusConflict, "song already in playlist", nil)
	default:
		logging.WithContext(r.Context()).Error().Err(err).Str("op", op).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error", nil)
	}
}
