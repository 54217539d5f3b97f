package playlists

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"setlist/internal/metrics"
)

// Purger removes archives that are past the restore window.
type Purger interface {
	PurgeExpired(ctx context.Context) ([]string, error)
}

// Reaper periodically purges expired archives. Without it expiry is only
// enforced when a restore is attempted.
type Reaper struct {
	purger   Purger
	interval time.Duration
}

// NewReaper returns a Reaper that runs every interval.
func NewReaper(purger Purger, interval time.Duration) *Reaper {
	return &Reaper{purger: purger, interval: interval}
}

// Start runs the purge loop in a goroutine until ctx is cancelled. The
// returned channel is closed once the loop has exited.
func (r *Reaper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(r.interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()
	return done
}

// RunOnce performs a single purge pass.
func (r *Reaper) RunOnce(ctx context.Context) {
	start := time.Now()
	ids, err := r.purger.PurgeExpired(ctx)
	metrics.ReaperLastRunTimestamp.SetToCurrentTime()
	if err != nil {
		metrics.ReaperRunsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("archive reaper run failed")
		return
	}
	metrics.ReaperRunsTotal.WithLabelValues("ok").Inc()
	if len(ids) > 0 {
		log.Info().
			Int("purged", len(ids)).
			Strs("playlist_ids", ids).
			Dur("duration", time.Since(start)).
			Msg("purged expired archives")
	}
}
