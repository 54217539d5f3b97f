package playlists

import (
	"context"
	"errors"
	"fmt"
	"time"

	"setlist/internal/events"
	"setlist/internal/metrics"
	"setlist/internal/models"
	"setlist/internal/store"
)

const (
	// RestoreWindow is how long an archived playlist can still be restored.
	RestoreWindow = 90 * 24 * time.Hour
	// PageSize is the number of members returned per song page.
	PageSize = 10
)

var (
	// ErrForbidden signals a private or archived playlist read by a non-owner.
	ErrForbidden = errors.New("playlist access denied")
	// ErrArchiveExpired signals a restore attempted after the restore window.
	// The playlist has been deleted by the time it is returned.
	ErrArchiveExpired = errors.New("playlist archive expired")
)

// Store captures the persistence needs for playlist workflows.
type Store interface {
	CreatePlaylist(ctx context.Context, playlist *models.Playlist) (*models.Playlist, error)
	ListPlaylists(ctx context.Context, userID string, archived bool) ([]*models.Playlist, error)
	FindPlaylist(ctx context.Context, lookup store.PlaylistLookup) (*models.Playlist, error)
	UpdatePlaylist(ctx context.Context, id, userID string, input models.PlaylistInput) (*models.Playlist, error)
	ArchivePlaylist(ctx context.Context, id, userID string, at time.Time) error
	RestorePlaylist(ctx context.Context, id, userID string) (*models.Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error
	PurgeArchived(ctx context.Context, cutoff time.Time) ([]string, error)

	ListSongIDs(ctx context.Context, playlistID string) ([]string, error)
	ListSongs(ctx context.Context, playlistID string) ([]models.PlaylistSong, error)
	ListSongsPage(ctx context.Context, playlistID, cursor string, limit int) ([]models.PlaylistSong, error)
	WithMembershipTx(ctx context.Context, playlistID string, fn func(store.MembershipTx) error) error
}

// Publisher receives playlist change events.
type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Event) {}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithPublisher sends change events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// Service coordinates playlist lifecycle and membership workflows.
type Service struct {
	store  Store
	events Publisher
	now    func() time.Time
}

// New constructs a Service backed by the provided Store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		events: nopPublisher{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new active playlist owned by userID.
func (s *Service) Create(ctx context.Context, userID string, req PlaylistRequest) (*models.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	input, err := req.Validate()
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreatePlaylist(ctx, &models.Playlist{
		UserID:      userID,
		Name:        input.Name,
		Description: input.Description,
		Private:     input.Private,
	})
	s.observe("create", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.PlaylistCreated, created.ID, userID, nil)
	return created, nil
}

// Get returns an active playlist owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.Playlist, error) {
	return s.store.FindPlaylist(ctx, store.ActivePlaylist(id, userID))
}

// ListActive returns the caller's active playlists, newest first.
func (s *Service) ListActive(ctx context.Context, userID string) ([]*models.Playlist, error) {
	return s.store.ListPlaylists(ctx, userID, false)
}

// ListArchived returns the caller's archived playlists, most recently archived first.
func (s *Service) ListArchived(ctx context.Context, userID string) ([]*models.Playlist, error) {
	return s.store.ListPlaylists(ctx, userID, true)
}

// Update overwrites name, description and privacy. A missing description
// clears the stored one.
func (s *Service) Update(ctx context.Context, userID, id string, req PlaylistRequest) (*models.Playlist, error) {
	input, err := req.Validate()
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdatePlaylist(ctx, id, userID, input)
	s.observe("update", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.PlaylistUpdated, id, userID, nil)
	return updated, nil
}

// Archive soft-deletes an active playlist.
func (s *Service) Archive(ctx context.Context, userID, id string) error {
	err := s.store.ArchivePlaylist(ctx, id, userID, s.now())
	s.observe("archive", err)
	if err != nil {
		return err
	}
	s.publish(ctx, events.PlaylistArchived, id, userID, nil)
	return nil
}

// Restore reactivates an archived playlist. Past the restore window the
// playlist is deleted instead and ErrArchiveExpired is returned.
func (s *Service) Restore(ctx context.Context, userID, id string) (*models.Playlist, error) {
	playlist, err := s.store.FindPlaylist(ctx, store.ArchivedPlaylist(id, userID))
	if err != nil {
		return nil, err
	}
	if playlist.ArchivedAt == nil {
		return nil, store.ErrPlaylistNotFound
	}

	if s.now().Sub(*playlist.ArchivedAt) > RestoreWindow {
		if err := s.store.DeletePlaylist(ctx, id); err != nil && !errors.Is(err, store.ErrPlaylistNotFound) {
			s.observe("restore", err)
			return nil, fmt.Errorf("delete expired playlist: %w", err)
		}
		s.observe("restore", ErrArchiveExpired)
		metrics.ArchivesPurged.WithLabelValues("restore").Inc()
		s.publish(ctx, events.PlaylistPurged, id, userID, nil)
		return nil, ErrArchiveExpired
	}

	restored, err := s.store.RestorePlaylist(ctx, id, userID)
	s.observe("restore", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.PlaylistRestored, id, userID, nil)
	return restored, nil
}

// AddSong appends a song to a playlist owned by userID, in any archive
// state. The first member of an empty playlist sets its cover.
func (s *Service) AddSong(ctx context.Context, userID, playlistID, songID string) (*models.PlaylistSong, error) {
	if _, err := s.store.FindPlaylist(ctx, store.OwnedPlaylist(playlistID, userID)); err != nil {
		return nil, err
	}

	var member *models.PlaylistSong
	err := s.store.WithMembershipTx(ctx, playlistID, func(tx store.MembershipTx) error {
		song, err := tx.GetSong(ctx, songID)
		if err != nil {
			return err
		}
		count, err := tx.CountSongs(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			if err := tx.SetCover(ctx, song.Cover()); err != nil {
				return err
			}
		}
		member, err = tx.AddSong(ctx, songID)
		return err
	})
	s.observe("add_song", err)
	if err != nil {
		return nil, err
	}

	metrics.SongsAdded.Inc()
	s.publish(ctx, events.SongsAdded, playlistID, userID, []string{songID})
	return member, nil
}

// BulkAdd inserts several songs into an active playlist owned by the caller
// and returns how many were added. Only the first listed song is looked up;
// it sets the cover when the playlist was empty.
func (s *Service) BulkAdd(ctx context.Context, userID string, req BulkAddRequest) (int, error) {
	input, err := req.Validate()
	if err != nil {
		return 0, err
	}
	if _, err := s.store.FindPlaylist(ctx, store.ActivePlaylist(input.PlaylistID, userID)); err != nil {
		return 0, err
	}

	var added int
	err = s.store.WithMembershipTx(ctx, input.PlaylistID, func(tx store.MembershipTx) error {
		first, err := tx.GetSong(ctx, input.SongIDs[0])
		if err != nil {
			return err
		}
		count, err := tx.CountSongs(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			if err := tx.SetCover(ctx, first.Cover()); err != nil {
				return err
			}
		}
		added, err = tx.AddSongs(ctx, input.SongIDs)
		return err
	})
	s.observe("bulk_add", err)
	if err != nil {
		return 0, err
	}

	metrics.SongsAdded.Add(float64(added))
	s.publish(ctx, events.SongsAdded, input.PlaylistID, userID, input.SongIDs)
	return added, nil
}

// RemoveSong deletes a membership. When the removed song was the oldest
// member, the cover moves to the next oldest member or is cleared.
func (s *Service) RemoveSong(ctx context.Context, userID, playlistID, songID string) error {
	if _, err := s.store.FindPlaylist(ctx, store.OwnedPlaylist(playlistID, userID)); err != nil {
		return err
	}

	err := s.store.WithMembershipTx(ctx, playlistID, func(tx store.MembershipTx) error {
		oldest, err := tx.OldestSongs(ctx, 2)
		if err != nil {
			return err
		}
		if err := tx.RemoveSong(ctx, songID); err != nil {
			return err
		}

		if len(oldest) == 0 || oldest[0].SongID != songID {
			return nil
		}
		if len(oldest) == 1 {
			return tx.SetCover(ctx, models.Cover{})
		}
		next, err := tx.GetSong(ctx, oldest[1].SongID)
		if err != nil {
			return err
		}
		return tx.SetCover(ctx, next.Cover())
	})
	s.observe("remove_song", err)
	if err != nil {
		return err
	}

	s.publish(ctx, events.SongRemoved, playlistID, userID, []string{songID})
	return nil
}

// ListSongIDs returns the song ids in an active playlist owned by the caller.
func (s *Service) ListSongIDs(ctx context.Context, userID, playlistID string) ([]string, error) {
	if _, err := s.store.FindPlaylist(ctx, store.ActivePlaylist(playlistID, userID)); err != nil {
		return nil, err
	}
	return s.store.ListSongIDs(ctx, playlistID)
}

// ListSongsPage returns one page of members, newest first. The owner can
// always read; anyone else only when the playlist is public and active.
func (s *Service) ListSongsPage(ctx context.Context, userID, playlistID, cursor string) (models.SongPage, error) {
	playlist, err := s.store.FindPlaylist(ctx, store.PlaylistLookup{ID: playlistID})
	if err != nil {
		return models.SongPage{}, err
	}
	if playlist.UserID != userID && (playlist.Private || playlist.IsArchived) {
		return models.SongPage{}, ErrForbidden
	}

	items, err := s.store.ListSongsPage(ctx, playlistID, cursor, PageSize)
	if err != nil {
		return models.SongPage{}, err
	}

	page := models.SongPage{Items: items}
	if len(items) == PageSize {
		next := items[len(items)-1].ID
		page.NextCursor = &next
	}
	return page, nil
}

// ListAllSongs returns every member of an active playlist owned by the caller.
func (s *Service) ListAllSongs(ctx context.Context, userID, playlistID string) ([]models.PlaylistSong, error) {
	if _, err := s.store.FindPlaylist(ctx, store.ActivePlaylist(playlistID, userID)); err != nil {
		return nil, err
	}
	return s.store.ListSongs(ctx, playlistID)
}

// PurgeExpired deletes every archive older than the restore window and
// returns the removed ids.
func (s *Service) PurgeExpired(ctx context.Context) ([]string, error) {
	ids, err := s.store.PurgeArchived(ctx, s.now().Add(-RestoreWindow))
	if err != nil {
		return nil, err
	}
	metrics.ArchivesPurged.WithLabelValues("reaper").Add(float64(len(ids)))
	for _, id := range ids {
		s.publish(ctx, events.PlaylistPurged, id, "", nil)
	}
	return ids, nil
}

func (s *Service) publish(ctx context.Context, eventType, playlistID, userID string, songIDs []string) {
	s.events.Publish(ctx, events.Event{
		Type:       eventType,
		PlaylistID: playlistID,
		UserID:     userID,
		SongIDs:    songIDs,
		OccurredAt: s.now(),
	})
}

func (s *Service) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PlaylistOperations.WithLabelValues(op, outcome).Inc()
}
