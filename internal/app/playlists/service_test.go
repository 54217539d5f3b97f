package playlists

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setlist/internal/events"
	"setlist/internal/models"
	"setlist/internal/store"
	"setlist/internal/store/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current fake time and nudges it forward so consecutive
// records get distinct timestamps.
func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(time.Millisecond)
	return now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func catalog(n int) []models.Song {
	songs := make([]models.Song, 0, n)
	for i := 1; i <= n; i++ {
		songs = append(songs, models.Song{
			ID:    fmt.Sprintf("song-%d", i),
			Title: fmt.Sprintf("Song %d", i),
			Image: strPtr(fmt.Sprintf("img-%d.png", i)),
			Album: &models.Album{
				ID:    fmt.Sprintf("album-%d", i),
				Title: fmt.Sprintf("Album %d", i),
				Color: strPtr(fmt.Sprintf("#%06d", i)),
			},
		})
	}
	return songs
}

type fixture struct {
	svc    *Service
	store  *memory.Store
	clock  *testClock
	events *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	st := memory.New(memory.WithSongs(catalog(12)...), memory.WithClock(clock.Now))
	pub := &recordingPublisher{}
	return &fixture{
		svc:    New(st, WithClock(clock.Now), WithPublisher(pub)),
		store:  st,
		clock:  clock,
		events: pub,
	}
}

func (f *fixture) create(t *testing.T, userID, name string, private bool) *models.Playlist {
	t.Helper()
	playlist, err := f.svc.Create(context.Background(), userID, PlaylistRequest{Name: name, Private: boolPtr(private)})
	require.NoError(t, err)
	return playlist
}

func (f *fixture) cover(t *testing.T, userID, id string) models.Cover {
	t.Helper()
	playlist, err := f.store.FindPlaylist(context.Background(), store.OwnedPlaylist(id, userID))
	require.NoError(t, err)
	return playlist.Cover()
}

func assertCover(t *testing.T, got models.Cover, song int) {
	t.Helper()
	require.NotNil(t, got.Image)
	require.NotNil(t, got.Color)
	assert.Equal(t, fmt.Sprintf("img-%d.png", song), *got.Image)
	assert.Equal(t, fmt.Sprintf("#%06d", song), *got.Color)
}

func TestRoadTripCoverFollowsOldestMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Road Trip", false)
	assert.True(t, f.cover(t, "user-1", playlist.ID).IsEmpty())

	for _, song := range []string{"song-1", "song-2", "song-3"} {
		_, err := f.svc.AddSong(ctx, "user-1", playlist.ID, song)
		require.NoError(t, err)
	}
	assertCover(t, f.cover(t, "user-1", playlist.ID), 1)

	require.NoError(t, f.svc.RemoveSong(ctx, "user-1", playlist.ID, "song-1"))
	assertCover(t, f.cover(t, "user-1", playlist.ID), 2)

	require.NoError(t, f.svc.RemoveSong(ctx, "user-1", playlist.ID, "song-2"))
	assertCover(t, f.cover(t, "user-1", playlist.ID), 3)

	require.NoError(t, f.svc.RemoveSong(ctx, "user-1", playlist.ID, "song-3"))
	assert.True(t, f.cover(t, "user-1", playlist.ID).IsEmpty())
}

func TestRemovingNewerMemberKeepsCover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Mix", true)
	for _, song := range []string{"song-4", "song-5", "song-6"} {
		_, err := f.svc.AddSong(ctx, "user-1", playlist.ID, song)
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.RemoveSong(ctx, "user-1", playlist.ID, "song-5"))
	assertCover(t, f.cover(t, "user-1", playlist.ID), 4)

	ids, err := f.svc.ListSongIDs(ctx, "user-1", playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"song-6", "song-4"}, ids)
}

func TestAddSongToNonEmptyPlaylistKeepsCover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Mix", false)
	_, err := f.svc.AddSong(ctx, "user-1", playlist.ID, "song-7")
	require.NoError(t, err)
	_, err = f.svc.AddSong(ctx, "user-1", playlist.ID, "song-8")
	require.NoError(t, err)

	assertCover(t, f.cover(t, "user-1", playlist.ID), 7)
}

func TestAddSongErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Mix", false)
	_, err := f.svc.AddSong(ctx, "user-1", playlist.ID, "song-1")
	require.NoError(t, err)

	_, err = f.svc.AddSong(ctx, "user-1", playlist.ID, "song-1")
	assert.ErrorIs(t, err, store.ErrDuplicateSong)

	_, err = f.svc.AddSong(ctx, "user-1", playlist.ID, "song-missing")
	assert.ErrorIs(t, err, store.ErrSongNotFound)

	_, err = f.svc.AddSong(ctx, "user-2", playlist.ID, "song-2")
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)

	_, err = f.svc.AddSong(ctx, "user-1", "missing", "song-2")
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)
}

func TestAddSongAllowedOnArchivedPlaylist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Old", false)
	require.NoError(t, f.svc.Archive(ctx, "user-1", playlist.ID))

	_, err := f.svc.AddSong(ctx, "user-1", playlist.ID, "song-3")
	require.NoError(t, err)
	assertCover(t, f.cover(t, "user-1", playlist.ID), 3)
}

func TestBulkAddDerivesCoverFromFirstListedSong(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Bulk", false)
	added, err := f.svc.BulkAdd(ctx, "user-1", BulkAddRequest{
		PlaylistID: playlist.ID,
		SongIDs:    []string{"song-5", "song-9", "song-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	assertCover(t, f.cover(t, "user-1", playlist.ID), 5)

	ids, err := f.svc.ListSongIDs(ctx, "user-1", playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"song-2", "song-9", "song-5"}, ids)

	require.NoError(t, f.svc.RemoveSong(ctx, "user-1", playlist.ID, "song-5"))
	assertCover(t, f.cover(t, "user-1", playlist.ID), 9)
}

func TestBulkAddIntoNonEmptyPlaylistKeepsCover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Bulk", false)
	_, err := f.svc.AddSong(ctx, "user-1", playlist.ID, "song-1")
	require.NoError(t, err)

	_, err = f.svc.BulkAdd(ctx, "user-1", BulkAddRequest{PlaylistID: playlist.ID, SongIDs: []string{"song-3", "song-4"}})
	require.NoError(t, err)
	assertCover(t, f.cover(t, "user-1", playlist.ID), 1)
}

func TestBulkAddFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Bulk", false)
	archived := f.create(t, "user-1", "Archived", false)
	require.NoError(t, f.svc.Archive(ctx, "user-1", archived.ID))

	_, err := f.svc.BulkAdd(ctx, "user-1", BulkAddRequest{PlaylistID: playlist.ID})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "songIds", verr.Fields[0].Field)

	_, err = f.svc.BulkAdd(ctx, "user-1", BulkAddRequest{PlaylistID: archived.ID, SongIDs: []string{"song-1"}})
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)

	_, err = f.svc.BulkAdd(ctx, "user-2", BulkAddRequest{PlaylistID: playlist.ID, SongIDs: []string{"song-1"}})
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)

	_, err = f.svc.BulkAdd(ctx, "user-1", BulkAddRequest{PlaylistID: playlist.ID, SongIDs: []string{"song-missing", "song-1"}})
	assert.ErrorIs(t, err, store.ErrSongNotFound)

	// a later unknown id aborts the whole batch
	_, err = f.svc.BulkAdd(ctx, "user-1", BulkAddRequest{PlaylistID: playlist.ID, SongIDs: []string{"song-1", "song-missing"}})
	assert.ErrorIs(t, err, store.ErrSongNotFound)

	ids, err := f.svc.ListSongIDs(ctx, "user-1", playlist.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.True(t, f.cover(t, "user-1", playlist.ID).IsEmpty())
}

func TestRemoveSongNotMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Mix", false)
	err := f.svc.RemoveSong(ctx, "user-1", playlist.ID, "song-1")
	assert.ErrorIs(t, err, store.ErrMembershipNotFound)

	err = f.svc.RemoveSong(ctx, "user-2", playlist.ID, "song-1")
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)
}

func TestListSongsPagePaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Long", false)
	for i := 1; i <= 12; i++ {
		_, err := f.svc.AddSong(ctx, "user-1", playlist.ID, fmt.Sprintf("song-%d", i))
		require.NoError(t, err)
	}

	first, err := f.svc.ListSongsPage(ctx, "user-1", playlist.ID, "")
	require.NoError(t, err)
	require.Len(t, first.Items, PageSize)
	assert.Equal(t, "song-12", first.Items[0].SongID)
	assert.Equal(t, "song-3", first.Items[9].SongID)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, first.Items[9].ID, *first.NextCursor)
	require.NotNil(t, first.Items[0].Song)
	assert.Equal(t, "Song 12", first.Items[0].Song.Title)

	second, err := f.svc.ListSongsPage(ctx, "user-1", playlist.ID, *first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, "song-2", second.Items[0].SongID)
	assert.Equal(t, "song-1", second.Items[1].SongID)
	assert.Nil(t, second.NextCursor)
}

func TestListSongsPageExactlyFullPageHasCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Ten", false)
	ids := make([]string, 0, PageSize)
	for i := 1; i <= PageSize; i++ {
		ids = append(ids, fmt.Sprintf("song-%d", i))
	}
	_, err := f.svc.BulkAdd(ctx, "user-1", BulkAddRequest{PlaylistID: playlist.ID, SongIDs: ids})
	require.NoError(t, err)

	first, err := f.svc.ListSongsPage(ctx, "user-1", playlist.ID, "")
	require.NoError(t, err)
	require.NotNil(t, first.NextCursor)

	second, err := f.svc.ListSongsPage(ctx, "user-1", playlist.ID, *first.NextCursor)
	require.NoError(t, err)
	assert.Empty(t, second.Items)
	assert.Nil(t, second.NextCursor)
}

func TestListSongsPageVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	private := f.create(t, "owner", "Private", true)
	public := f.create(t, "owner", "Public", false)
	archivedPublic := f.create(t, "owner", "Archived", false)
	require.NoError(t, f.svc.Archive(ctx, "owner", archivedPublic.ID))

	_, err := f.svc.ListSongsPage(ctx, "owner", private.ID, "")
	assert.NoError(t, err)
	_, err = f.svc.ListSongsPage(ctx, "owner", archivedPublic.ID, "")
	assert.NoError(t, err)

	_, err = f.svc.ListSongsPage(ctx, "stranger", private.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.ListSongsPage(ctx, "stranger", archivedPublic.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.ListSongsPage(ctx, "stranger", public.ID, "")
	assert.NoError(t, err)

	_, err = f.svc.ListSongsPage(ctx, "stranger", "missing", "")
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)
}

func TestGetIsScopedToActiveOwnedPlaylists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Mine", true)

	got, err := f.svc.Get(ctx, "user-1", playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Name)

	_, err = f.svc.Get(ctx, "user-2", playlist.ID)
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)

	require.NoError(t, f.svc.Archive(ctx, "user-1", playlist.ID))
	_, err = f.svc.Get(ctx, "user-1", playlist.ID)
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)

	_, err = f.svc.ListAllSongs(ctx, "user-1", playlist.ID)
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)
	_, err = f.svc.ListSongIDs(ctx, "user-1", playlist.ID)
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)
	_, err = f.svc.Update(ctx, "user-1", playlist.ID, PlaylistRequest{Name: "x", Private: boolPtr(false)})
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)
	assert.ErrorIs(t, f.svc.Archive(ctx, "user-1", playlist.ID), store.ErrPlaylistNotFound)
}

func TestListActiveAndArchived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, "user-1", "First", false)
	second := f.create(t, "user-1", "Second", false)
	third := f.create(t, "user-1", "Third", false)
	f.create(t, "user-2", "Someone else", false)

	_, err := f.svc.BulkAdd(ctx, "user-1", BulkAddRequest{PlaylistID: second.ID, SongIDs: []string{"song-1", "song-2"}})
	require.NoError(t, err)

	require.NoError(t, f.svc.Archive(ctx, "user-1", first.ID))
	require.NoError(t, f.svc.Archive(ctx, "user-1", third.ID))

	active, err := f.svc.ListActive(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, 2, active[0].SongCount)

	archived, err := f.svc.ListArchived(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, archived, 2)
	assert.Equal(t, third.ID, archived[0].ID)
	assert.Equal(t, first.ID, archived[1].ID)
	for _, p := range archived {
		assert.True(t, p.IsArchived)
		assert.NotNil(t, p.ArchivedAt)
	}
}

func TestUpdateOverwritesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist, err := f.svc.Create(ctx, "user-1", PlaylistRequest{
		Name:        "  Draft ",
		Description: strPtr("notes"),
		Private:     boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "Draft", playlist.Name)
	require.NotNil(t, playlist.Description)

	updated, err := f.svc.Update(ctx, "user-1", playlist.ID, PlaylistRequest{Name: "Final", Private: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Name)
	assert.Nil(t, updated.Description)
	assert.False(t, updated.Private)

	_, err = f.svc.Update(ctx, "user-1", playlist.ID, PlaylistRequest{Name: ""})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestRestoreWithinWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Keep", false)
	require.NoError(t, f.svc.Archive(ctx, "user-1", playlist.ID))

	f.clock.Advance(89 * 24 * time.Hour)
	restored, err := f.svc.Restore(ctx, "user-1", playlist.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsArchived)
	assert.Nil(t, restored.ArchivedAt)

	_, err = f.svc.Get(ctx, "user-1", playlist.ID)
	assert.NoError(t, err)

	_, err = f.svc.Restore(ctx, "user-1", playlist.ID)
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)
}

func TestRestoreAfterWindowDeletesPlaylist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Gone", false)
	_, err := f.svc.AddSong(ctx, "user-1", playlist.ID, "song-1")
	require.NoError(t, err)
	require.NoError(t, f.svc.Archive(ctx, "user-1", playlist.ID))

	f.clock.Advance(91 * 24 * time.Hour)
	_, err = f.svc.Restore(ctx, "user-1", playlist.ID)
	assert.ErrorIs(t, err, ErrArchiveExpired)

	_, err = f.svc.Restore(ctx, "user-1", playlist.ID)
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)
	_, err = f.svc.Get(ctx, "user-1", playlist.ID)
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)

	archived, err := f.svc.ListArchived(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, archived)

	assert.Contains(t, f.events.types(), events.PlaylistPurged)
}

func TestRestoreRejectsForeignOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Mine", false)
	require.NoError(t, f.svc.Archive(ctx, "user-1", playlist.ID))

	_, err := f.svc.Restore(ctx, "user-2", playlist.ID)
	assert.ErrorIs(t, err, store.ErrPlaylistNotFound)
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := f.create(t, "user-1", "Old", false)
	require.NoError(t, f.svc.Archive(ctx, "user-1", old.ID))

	f.clock.Advance(60 * 24 * time.Hour)
	recent := f.create(t, "user-1", "Recent", false)
	require.NoError(t, f.svc.Archive(ctx, "user-1", recent.ID))

	f.clock.Advance(31 * 24 * time.Hour)
	ids, err := f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, ids)

	archived, err := f.svc.ListArchived(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, recent.ID, archived[0].ID)
}

func TestEventsArePublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Evented", false)
	_, err := f.svc.AddSong(ctx, "user-1", playlist.ID, "song-1")
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveSong(ctx, "user-1", playlist.ID, "song-1"))
	require.NoError(t, f.svc.Archive(ctx, "user-1", playlist.ID))
	_, err = f.svc.Restore(ctx, "user-1", playlist.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		events.PlaylistCreated,
		events.SongsAdded,
		events.SongRemoved,
		events.PlaylistArchived,
		events.PlaylistRestored,
	}, f.events.types())
}

func TestConcurrentAddsKeepCoverOnOldestMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playlist := f.create(t, "user-1", "Race", false)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.AddSong(ctx, "user-1", playlist.ID, fmt.Sprintf("song-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	ids, err := f.svc.ListSongIDs(ctx, "user-1", playlist.ID)
	require.NoError(t, err)
	require.Len(t, ids, 8)

	oldest := ids[len(ids)-1]
	cover := f.cover(t, "user-1", playlist.ID)
	require.NotNil(t, cover.Image)
	assert.Equal(t, "img-"+strings.TrimPrefix(oldest, "song-")+".png", *cover.Image)
}
