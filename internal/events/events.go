// Package events publishes playlist change notifications over Redis pub/sub.
// Publication is best-effort: failures are logged and counted, never returned.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"setlist/internal/metrics"
)

// Event types.
const (
	PlaylistCreated  = "playlist.created"
	PlaylistUpdated  = "playlist.updated"
	PlaylistArchived = "playlist.archived"
	PlaylistRestored = "playlist.restored"
	PlaylistPurged   = "playlist.purged"
	SongsAdded       = "playlist.songs_added"
	SongRemoved      = "playlist.song_removed"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "setlist.playlists"

// Event describes one change to a playlist.
type Event struct {
	Type       string    `json:"type"`
	PlaylistID string    `json:"playlistId"`
	UserID     string    `json:"userId,omitempty"`
	SongIDs    []string  `json:"songIds,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher sends events to a Redis channel.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

// NewPublisher returns a Publisher on channel. A nil client yields a
// Publisher that drops every event.
func NewPublisher(rdb *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{rdb: rdb, channel: channel}
}

// Connect parses a redis:// URL, verifies the server answers and returns a
// Publisher bound to it.
func Connect(ctx context.Context, url, channel string) (*Publisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewPublisher(rdb, channel), nil
}

// Publish sends event. Errors are logged and swallowed.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil || p.rdb == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Msg("marshal event")
		metrics.EventsPublished.WithLabelValues(event.Type, "error").Inc()
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		log.Warn().Err(err).
			Str("event_type", event.Type).
			Str("playlist_id", event.PlaylistID).
			Msg("publish event")
		metrics.EventsPublished.WithLabelValues(event.Type, "error").Inc()
		return
	}
	metrics.EventsPublished.WithLabelValues(event.Type, "ok").Inc()
}

// Close releases the Redis client.
func (p *Publisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
