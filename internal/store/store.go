package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"setlist/internal/models"
)

var (
	// ErrPlaylistNotFound covers missing, foreign-owned and wrong-state playlists alike.
	ErrPlaylistNotFound = errors.New("playlist not found")
	// ErrSongNotFound signals the referenced catalog song does not exist.
	ErrSongNotFound = errors.New("song not found")
	// ErrMembershipNotFound signals the song is not a member of the playlist.
	ErrMembershipNotFound = errors.New("song not in playlist")
	// ErrDuplicateSong signals the song is already a member of the playlist.
	ErrDuplicateSong = errors.New("song already in playlist")
)

// PlaylistLookup is the predicate used to find a single playlist. Ownership
// and archive state are part of the predicate so that a mismatch looks exactly
// like a missing row.
type PlaylistLookup struct {
	ID       string
	UserID   string // empty matches any owner
	Archived *bool  // nil matches either state
}

// OwnedPlaylist matches a playlist owned by userID in any state.
func OwnedPlaylist(id, userID string) PlaylistLookup {
	return PlaylistLookup{ID: id, UserID: userID}
}

// ActivePlaylist matches a non-archived playlist owned by userID.
func ActivePlaylist(id, userID string) PlaylistLookup {
	archived := false
	return PlaylistLookup{ID: id, UserID: userID, Archived: &archived}
}

// ArchivedPlaylist matches an archived playlist owned by userID.
func ArchivedPlaylist(id, userID string) PlaylistLookup {
	archived := true
	return PlaylistLookup{ID: id, UserID: userID, Archived: &archived}
}

// Matches reports whether p satisfies the lookup.
func (l PlaylistLookup) Matches(p *models.Playlist) bool {
	if p == nil || p.ID != l.ID {
		return false
	}
	if l.UserID != "" && p.UserID != l.UserID {
		return false
	}
	if l.Archived != nil && p.IsArchived != *l.Archived {
		return false
	}
	return true
}

// MembershipTx is a transactional view over one playlist's members. The
// playlist row stays locked until the transaction ends, so the reads and
// writes below form one atomic read-modify-write.
type MembershipTx interface {
	CountSongs(ctx context.Context) (int, error)
	OldestSongs(ctx context.Context, limit int) ([]models.PlaylistSong, error)
	GetSong(ctx context.Context, songID string) (*models.Song, error)
	SetCover(ctx context.Context, cover models.Cover) error
	AddSong(ctx context.Context, songID string) (*models.PlaylistSong, error)
	AddSongs(ctx context.Context, songIDs []string) (int, error)
	RemoveSong(ctx context.Context, songID string) error
}

// Store provides persistence backed by Postgres.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New sets up a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	v := value.Time
	return &v
}
