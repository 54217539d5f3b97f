package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"setlist/internal/models"
)

// WithMembershipTx runs fn in a transaction holding a row lock on the
// playlist. Concurrent membership edits on the same playlist are serialized,
// which keeps the derived cover consistent with the oldest member.
func (s *Store) WithMembershipTx(ctx context.Context, playlistID string, fn func(MembershipTx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM playlists WHERE id = $1 FOR UPDATE`, playlistID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPlaylistNotFound
	}
	if err != nil {
		return fmt.Errorf("lock playlist: %w", err)
	}

	if err = fn(&membershipTx{tx: tx, playlistID: playlistID, now: s.now}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit membership tx: %w", err)
	}
	return nil
}

type membershipTx struct {
	tx         *sql.Tx
	playlistID string
	now        func() time.Time
}

func (m *membershipTx) CountSongs(ctx context.Context) (int, error) {
	var count int
	if err := m.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM playlist_songs WHERE playlist_id = $1`, m.playlistID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count playlist songs: %w", err)
	}
	return count, nil
}

func (m *membershipTx) OldestSongs(ctx context.Context, limit int) ([]models.PlaylistSong, error) {
	rows, err := m.tx.QueryContext(ctx, `
		SELECT id, playlist_id, song_id, created_at
		FROM playlist_songs
		WHERE playlist_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2`, m.playlistID, limit)
	if err != nil {
		return nil, fmt.Errorf("list oldest playlist songs: %w", err)
	}
	defer rows.Close()

	var members []models.PlaylistSong
	for rows.Next() {
		var member models.PlaylistSong
		if err := rows.Scan(&member.ID, &member.PlaylistID, &member.SongID, &member.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan playlist song: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlist songs: %w", err)
	}
	return members, nil
}

func (m *membershipTx) GetSong(ctx context.Context, songID string) (*models.Song, error) {
	return getSong(ctx, m.tx, songID)
}

func (m *membershipTx) SetCover(ctx context.Context, cover models.Cover) error {
	if _, err := m.tx.ExecContext(ctx, `
		UPDATE playlists SET image = $1, color = $2 WHERE id = $3`,
		nullString(cover.Image), nullString(cover.Color), m.playlistID); err != nil {
		return fmt.Errorf("update playlist cover: %w", err)
	}
	return nil
}

func (m *membershipTx) AddSong(ctx context.Context, songID string) (*models.PlaylistSong, error) {
	member := models.PlaylistSong{
		ID:         uuid.NewString(),
		PlaylistID: m.playlistID,
		SongID:     songID,
		CreatedAt:  m.now(),
	}
	if _, err := m.tx.ExecContext(ctx, `
		INSERT INTO playlist_songs (id, playlist_id, song_id, created_at)
		VALUES ($1, $2, $3, $4)`,
		member.ID, member.PlaylistID, member.SongID, member.CreatedAt); err != nil {
		return nil, membershipInsertError(err)
	}
	return &member, nil
}

// AddSongs inserts all songs in one statement. Each row is stamped one
// microsecond after the previous so insertion order follows the input order.
func (m *membershipTx) AddSongs(ctx context.Context, songIDs []string) (int, error) {
	if len(songIDs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(songIDs))
	for i := range ids {
		ids[i] = uuid.NewString()
	}

	res, err := m.tx.ExecContext(ctx, `
		INSERT INTO playlist_songs (id, playlist_id, song_id, created_at)
		SELECT m.id, $1, m.song_id, $2::timestamptz + (m.ord - 1) * INTERVAL '1 microsecond'
		FROM unnest($3::text[], $4::text[]) WITH ORDINALITY AS m(id, song_id, ord)`,
		m.playlistID, m.now(), pq.Array(ids), pq.Array(songIDs))
	if err != nil {
		return 0, membershipInsertError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

func (m *membershipTx) RemoveSong(ctx context.Context, songID string) error {
	res, err := m.tx.ExecContext(ctx, `
		DELETE FROM playlist_songs
		WHERE playlist_id = $1 AND song_id = $2`, m.playlistID, songID)
	if err != nil {
		return fmt.Errorf("delete playlist song: %w", err)
	}
	return requireAffected(res, ErrMembershipNotFound)
}

func membershipInsertError(err error) error {
	switch {
	case isUniqueViolation(err):
		return ErrDuplicateSong
	case isForeignKeyViolation(err):
		return ErrSongNotFound
	default:
		return fmt.Errorf("insert playlist song: %w", err)
	}
}
