// Package memory implements the playlist store in process memory. It backs
// the demo mode of the server and the service tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"setlist/internal/models"
	"setlist/internal/store"
)

// Store keeps playlists, memberships and a read-only song catalog in memory.
type Store struct {
	mu        sync.RWMutex
	playlists map[string]*models.Playlist
	members   map[string][]models.PlaylistSong // per playlist, oldest first
	songs     map[string]models.Song
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithSongs seeds the song catalog.
func WithSongs(songs ...models.Song) Option {
	return func(s *Store) {
		for _, song := range songs {
			s.songs[song.ID] = cloneSong(song)
		}
	}
}

// WithClock overrides the time source used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		playlists: make(map[string]*models.Playlist),
		members:   make(map[string][]models.PlaylistSong),
		songs:     make(map[string]models.Song),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// CreatePlaylist persists a new, active playlist without cover fields.
func (s *Store) CreatePlaylist(_ context.Context, playlist *models.Playlist) (*models.Playlist, error) {
	if playlist == nil {
		return nil, errors.New("playlist is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := clonePlaylist(playlist)
	created.ID = uuid.NewString()
	created.CreatedAt = s.now()
	created.Image, created.Color = nil, nil
	created.IsArchived, created.ArchivedAt = false, nil
	s.playlists[created.ID] = created

	return s.view(created), nil
}

// ListPlaylists returns a user's playlists in one archive state.
func (s *Store) ListPlaylists(_ context.Context, userID string, archived bool) ([]*models.Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Playlist, 0)
	for _, playlist := range s.playlists {
		if playlist.UserID == userID && playlist.IsArchived == archived {
			result = append(result, s.view(playlist))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].CreatedAt, result[j].CreatedAt
		if archived {
			a, b = *result[i].ArchivedAt, *result[j].ArchivedAt
		}
		if a.Equal(b) {
			return result[i].ID > result[j].ID
		}
		return a.After(b)
	})
	return result, nil
}

// FindPlaylist returns the playlist matching lookup.
func (s *Store) FindPlaylist(_ context.Context, lookup store.PlaylistLookup) (*models.Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	playlist, ok := s.playlists[lookup.ID]
	if !ok || !lookup.Matches(playlist) {
		return nil, store.ErrPlaylistNotFound
	}
	return s.view(playlist), nil
}

// UpdatePlaylist overwrites name, description and privacy of an active playlist.
func (s *Store) UpdatePlaylist(_ context.Context, id, userID string, input models.PlaylistInput) (*models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.playlists[id]
	if !ok || !store.ActivePlaylist(id, userID).Matches(playlist) {
		return nil, store.ErrPlaylistNotFound
	}
	playlist.Name = input.Name
	playlist.Description = cloneString(input.Description)
	playlist.Private = input.Private
	return s.view(playlist), nil
}

// ArchivePlaylist soft-deletes an active playlist.
func (s *Store) ArchivePlaylist(_ context.Context, id, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.playlists[id]
	if !ok || !store.ActivePlaylist(id, userID).Matches(playlist) {
		return store.ErrPlaylistNotFound
	}
	playlist.IsArchived = true
	playlist.ArchivedAt = &at
	return nil
}

// RestorePlaylist makes an archived playlist active again.
func (s *Store) RestorePlaylist(_ context.Context, id, userID string) (*models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.playlists[id]
	if !ok || !store.ArchivedPlaylist(id, userID).Matches(playlist) {
		return nil, store.ErrPlaylistNotFound
	}
	playlist.IsArchived = false
	playlist.ArchivedAt = nil
	return s.view(playlist), nil
}

// DeletePlaylist removes a playlist and its members.
func (s *Store) DeletePlaylist(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.playlists[id]; !ok {
		return store.ErrPlaylistNotFound
	}
	delete(s.playlists, id)
	delete(s.members, id)
	return nil
}

// PurgeArchived deletes every playlist archived before cutoff.
func (s *Store) PurgeArchived(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, playlist := range s.playlists {
		if playlist.IsArchived && playlist.ArchivedAt != nil && playlist.ArchivedAt.Before(cutoff) {
			ids = append(ids, id)
			delete(s.playlists, id)
			delete(s.members, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListSongIDs returns the ids of every song in the playlist, newest first.
func (s *Store) ListSongIDs(_ context.Context, playlistID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.members[playlistID]
	ids := make([]string, 0, len(members))
	for i := len(members) - 1; i >= 0; i-- {
		ids = append(ids, members[i].SongID)
	}
	return ids, nil
}

// ListSongs returns every member with song detail, newest first.
func (s *Store) ListSongs(ctx context.Context, playlistID string) ([]models.PlaylistSong, error) {
	return s.ListSongsPage(ctx, playlistID, "", -1)
}

// ListSongsPage returns up to limit members, newest first, resuming strictly
// after cursor when given. A negative limit returns everything.
func (s *Store) ListSongsPage(_ context.Context, playlistID, cursor string, limit int) ([]models.PlaylistSong, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.members[playlistID]
	start := len(members) - 1
	if cursor != "" {
		start = -1
		for i := range members {
			if members[i].ID == cursor {
				start = i - 1
				break
			}
		}
	}

	page := make([]models.PlaylistSong, 0)
	for i := start; i >= 0; i-- {
		if limit >= 0 && len(page) == limit {
			break
		}
		member := members[i]
		if song, ok := s.songs[member.SongID]; ok {
			detail := cloneSong(song)
			member.Song = &detail
		}
		page = append(page, member)
	}
	return page, nil
}

// GetSong returns a catalog song.
func (s *Store) GetSong(_ context.Context, id string) (*models.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	song, ok := s.songs[id]
	if !ok {
		return nil, store.ErrSongNotFound
	}
	clone := cloneSong(song)
	return &clone, nil
}

// WithMembershipTx runs fn with the store locked. Member and cover changes
// made by fn are rolled back when it returns an error.
func (s *Store) WithMembershipTx(_ context.Context, playlistID string, fn func(store.MembershipTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.playlists[playlistID]
	if !ok {
		return store.ErrPlaylistNotFound
	}

	members := append([]models.PlaylistSong(nil), s.members[playlistID]...)
	image, color := playlist.Image, playlist.Color

	if err := fn(&membershipTx{store: s, playlistID: playlistID}); err != nil {
		s.members[playlistID] = members
		playlist.Image, playlist.Color = image, color
		return err
	}
	return nil
}

type membershipTx struct {
	store      *Store
	playlistID string
}

func (m *membershipTx) CountSongs(context.Context) (int, error) {
	return len(m.store.members[m.playlistID]), nil
}

func (m *membershipTx) OldestSongs(_ context.Context, limit int) ([]models.PlaylistSong, error) {
	members := m.store.members[m.playlistID]
	if limit > len(members) {
		limit = len(members)
	}
	return append([]models.PlaylistSong(nil), members[:limit]...), nil
}

func (m *membershipTx) GetSong(_ context.Context, songID string) (*models.Song, error) {
	song, ok := m.store.songs[songID]
	if !ok {
		return nil, store.ErrSongNotFound
	}
	clone := cloneSong(song)
	return &clone, nil
}

func (m *membershipTx) SetCover(_ context.Context, cover models.Cover) error {
	playlist := m.store.playlists[m.playlistID]
	playlist.Image = cloneString(cover.Image)
	playlist.Color = cloneString(cover.Color)
	return nil
}

func (m *membershipTx) AddSong(ctx context.Context, songID string) (*models.PlaylistSong, error) {
	if _, err := m.AddSongs(ctx, []string{songID}); err != nil {
		return nil, err
	}
	members := m.store.members[m.playlistID]
	member := members[len(members)-1]
	return &member, nil
}

func (m *membershipTx) AddSongs(_ context.Context, songIDs []string) (int, error) {
	existing := make(map[string]struct{}, len(m.store.members[m.playlistID]))
	for _, member := range m.store.members[m.playlistID] {
		existing[member.SongID] = struct{}{}
	}

	now := m.store.now()
	added := make([]models.PlaylistSong, 0, len(songIDs))
	for i, songID := range songIDs {
		if _, ok := m.store.songs[songID]; !ok {
			return 0, store.ErrSongNotFound
		}
		if _, dup := existing[songID]; dup {
			return 0, store.ErrDuplicateSong
		}
		existing[songID] = struct{}{}
		added = append(added, models.PlaylistSong{
			ID:         uuid.NewString(),
			PlaylistID: m.playlistID,
			SongID:     songID,
			CreatedAt:  now.Add(time.Duration(i) * time.Microsecond),
		})
	}

	m.store.members[m.playlistID] = append(m.store.members[m.playlistID], added...)
	return len(added), nil
}

func (m *membershipTx) RemoveSong(_ context.Context, songID string) error {
	members := m.store.members[m.playlistID]
	for i := range members {
		if members[i].SongID == songID {
			m.store.members[m.playlistID] = append(members[:i:i], members[i+1:]...)
			return nil
		}
	}
	return store.ErrMembershipNotFound
}

// view returns a detached copy with the member count filled in. Callers hold mu.
func (s *Store) view(playlist *models.Playlist) *models.Playlist {
	clone := clonePlaylist(playlist)
	clone.SongCount = len(s.members[playlist.ID])
	return clone
}

func clonePlaylist(src *models.Playlist) *models.Playlist {
	clone := *src
	clone.Description = cloneString(src.Description)
	clone.Image = cloneString(src.Image)
	clone.Color = cloneString(src.Color)
	if src.ArchivedAt != nil {
		at := *src.ArchivedAt
		clone.ArchivedAt = &at
	}
	return &clone
}

func cloneSong(src models.Song) models.Song {
	clone := src
	if src.Album != nil {
		album := *src.Album
		clone.Album = &album
	}
	clone.Artists = make([]models.Artist, len(src.Artists))
	copy(clone.Artists, src.Artists)
	return clone
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
