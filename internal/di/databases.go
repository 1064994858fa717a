// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/exposure/internal/config"
	"github.com/aristath/exposure/internal/database"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. client_data.db - Cached closes and betas, safe to lose
	clientDataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, database.NameClientData+".db"),
		Profile: database.ProfileCache,
		Name:    database.NameClientData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize client_data database: %w", err)
	}
	container.ClientDataDB = clientDataDB

	// 2. snapshots.db - Summary history
	snapshotsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, database.NameSnapshots+".db"),
		Profile: database.ProfileStandard,
		Name:    database.NameSnapshots,
	})
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize snapshots database: %w", err)
	}
	container.SnapshotsDB = snapshotsDB

	for _, db := range []*database.DB{clientDataDB, snapshotsDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}
