package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"setlist/internal/app/playlists"
	"setlist/internal/config"
	"setlist/internal/events"
	"setlist/internal/httpapi"
	"setlist/internal/logging"
	"setlist/internal/store"
	"setlist/internal/store/memory"
)

// backend is what the service and health check need from a store.
type backend interface {
	playlists.Store
	httpapi.HealthChecker
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("setlist stopped")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []playlists.Option{}
	if cfg.Events.RedisURL != "" {
		publisher, err := events.Connect(ctx, cfg.Events.RedisURL, cfg.Events.Channel)
		if err != nil {
			return fmt.Errorf("connect events: %w", err)
		}
		defer publisher.Close()
		opts = append(opts, playlists.WithPublisher(publisher))
		log.Info().Str("channel", cfg.Events.Channel).Msg("publishing playlist events")
	}

	svc := playlists.New(dataStore, opts...)

	reaperCtx, cancelReaper := context.WithCancel(ctx)
	defer cancelReaper()
	var reaperDone <-chan struct{}
	if cfg.ReaperInterval > 0 {
		reaperDone = playlists.NewReaper(svc, cfg.ReaperInterval).Start(reaperCtx)
		log.Info().Dur("interval", cfg.ReaperInterval).Msg("archive reaper started")
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           newHTTPHandler(cfg, svc, dataStore),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("store", cfg.Database.Driver).Msg("setlist listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}

	cancelReaper()
	if reaperDone != nil {
		<-reaperDone
	}

	log.Info().Msg("setlist stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		var opts []memory.Option
		if cfg.SeedDemo {
			opts = append(opts, memory.WithSongs(demoCatalog()...))
		}
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return memory.New(opts...), func() {}, nil
	}

	db, err := openDatabase(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}

	if cfg.SeedDemo {
		if err := seedCatalog(ctx, db, demoCatalog()); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("seed demo catalog: %w", err)
		}
	}

	return store.New(db), func() { _ = db.Close() }, nil
}
