package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"setlist/internal/config"
	"setlist/internal/logging"
	"setlist/migrations"
)

func main() {
	logging.Setup(logging.Config{Level: "info", Format: "text"})

	if len(os.Args) != 2 {
		log.Fatal().Msg("usage: migrate [up|down|version]")
	}

	if err := run(os.Args[1]); err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("migration failed")
	}
}

func run(command string) error {
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", dbCfg.URL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
		log.Info().Msg("migrations applied")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("rollback migrations: %w", err)
		}
		log.Info().Msg("migrations rolled back")
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info().Msg("no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}
