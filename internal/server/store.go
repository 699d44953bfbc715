package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/webproof-contributors/internal/config"
	"github.com/sakif/webproof-contributors/internal/repository"
	"github.com/sakif/webproof-contributors/internal/repository/postgres"
	"github.com/sakif/webproof-contributors/internal/repository/sqlite"
)

// OpenStore opens the store DATABASE_URL names: Postgres for postgres://
// and postgresql:// URLs, otherwise a SQLite file (migrated on open).
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	if cfg.UsesPostgres() {
		db, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return db, nil
	}

	db, err := sqlite.New(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	return db, nil
}
