package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"setlist/internal/models"
)

const selectPlaylist = `
		SELECT p.id, p.user_id, p.name, p.description, p.private, p.image, p.color,
		       p.is_archived, p.archived_at, p.created_at,
		       (SELECT COUNT(*) FROM playlist_songs ps WHERE ps.playlist_id = p.id) AS song_count
		FROM playlists p`

func scanPlaylist(row rowScanner) (*models.Playlist, error) {
	var (
		playlist    models.Playlist
		description sql.NullString
		image       sql.NullString
		color       sql.NullString
		archivedAt  sql.NullTime
	)
	if err := row.Scan(&playlist.ID, &playlist.UserID, &playlist.Name, &description, &playlist.Private,
		&image, &color, &playlist.IsArchived, &archivedAt, &playlist.CreatedAt, &playlist.SongCount); err != nil {
		return nil, err
	}
	playlist.Description = stringPtr(description)
	playlist.Image = stringPtr(image)
	playlist.Color = stringPtr(color)
	playlist.ArchivedAt = timePtr(archivedAt)
	return &playlist, nil
}

// CreatePlaylist persists a new, active playlist without cover fields.
func (s *Store) CreatePlaylist(ctx context.Context, playlist *models.Playlist) (*models.Playlist, error) {
	if playlist == nil {
		return nil, errors.New("playlist is required")
	}

	created := *playlist
	created.ID = uuid.NewString()
	created.CreatedAt = s.now()
	created.Image, created.Color = nil, nil
	created.IsArchived, created.ArchivedAt = false, nil
	created.SongCount = 0

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO playlists (id, user_id, name, description, private, is_archived, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)`,
		created.ID, created.UserID, created.Name, nullString(created.Description), created.Private, created.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert playlist: %w", err)
	}
	return &created, nil
}

// ListPlaylists returns a user's playlists in one archive state. Active
// playlists come newest-created first, archived ones most recently archived
// first.
func (s *Store) ListPlaylists(ctx context.Context, userID string, archived bool) ([]*models.Playlist, error) {
	order := "p.created_at DESC, p.id DESC"
	if archived {
		order = "p.archived_at DESC, p.id DESC"
	}

	rows, err := s.db.QueryContext(ctx, selectPlaylist+`
		WHERE p.user_id = $1 AND p.is_archived = $2
		ORDER BY `+order, userID, archived)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]*models.Playlist, 0)
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		playlists = append(playlists, playlist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlists: %w", err)
	}
	return playlists, nil
}

// FindPlaylist returns the playlist matching lookup.
func (s *Store) FindPlaylist(ctx context.Context, lookup PlaylistLookup) (*models.Playlist, error) {
	conditions := []string{"p.id = $1"}
	args := []any{lookup.ID}

	if lookup.UserID != "" {
		args = append(args, lookup.UserID)
		conditions = append(conditions, fmt.Sprintf("p.user_id = $%d", len(args)))
	}
	if lookup.Archived != nil {
		args = append(args, *lookup.Archived)
		conditions = append(conditions, fmt.Sprintf("p.is_archived = $%d", len(args)))
	}

	playlist, err := scanPlaylist(s.db.QueryRowContext(ctx, selectPlaylist+`
		WHERE `+strings.Join(conditions, " AND "), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlaylistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist: %w", err)
	}
	return playlist, nil
}

// UpdatePlaylist overwrites name, description and privacy of an active playlist.
func (s *Store) UpdatePlaylist(ctx context.Context, id, userID string, input models.PlaylistInput) (*models.Playlist, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE playlists
		SET name = $1, description = $2, private = $3
		WHERE id = $4 AND user_id = $5 AND is_archived = FALSE`,
		input.Name, nullString(input.Description), input.Private, id, userID)
	if err != nil {
		return nil, fmt.Errorf("update playlist: %w", err)
	}
	if err := requireAffected(res, ErrPlaylistNotFound); err != nil {
		return nil, err
	}
	return s.FindPlaylist(ctx, ActivePlaylist(id, userID))
}

// ArchivePlaylist soft-deletes an active playlist.
func (s *Store) ArchivePlaylist(ctx context.Context, id, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE playlists
		SET is_archived = TRUE, archived_at = $1
		WHERE id = $2 AND user_id = $3 AND is_archived = FALSE`,
		at, id, userID)
	if err != nil {
		return fmt.Errorf("archive playlist: %w", err)
	}
	return requireAffected(res, ErrPlaylistNotFound)
}

// RestorePlaylist makes an archived playlist active again.
func (s *Store) RestorePlaylist(ctx context.Context, id, userID string) (*models.Playlist, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE playlists
		SET is_archived = FALSE, archived_at = NULL
		WHERE id = $1 AND user_id = $2 AND is_archived = TRUE`,
		id, userID)
	if err != nil {
		return nil, fmt.Errorf("restore playlist: %w", err)
	}
	if err := requireAffected(res, ErrPlaylistNotFound); err != nil {
		return nil, err
	}
	return s.FindPlaylist(ctx, ActivePlaylist(id, userID))
}

// DeletePlaylist physically removes a playlist and, by cascade, its members.
func (s *Store) DeletePlaylist(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	return requireAffected(res, ErrPlaylistNotFound)
}

// PurgeArchived deletes every playlist archived before cutoff and returns
// the removed ids.
func (s *Store) PurgeArchived(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM playlists
		WHERE is_archived = TRUE AND archived_at < $1
		RETURNING id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purge archived playlists: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan purged playlist: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purged playlists: %w", err)
	}
	return ids, nil
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
