package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/photo-gallery/internal/cluster"
	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database/postgres"
)

// openStorage connects to PostgreSQL and runs pending migrations.
func openStorage(cfg *config.Config) (*postgres.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return pool, nil
}

// newClusterManager builds the cluster engine and its manager on top of the
// given repositories, using the configured clustering policy.
func newClusterManager(cfg *config.Config, faceRepo *postgres.FaceRepository, imageRepo *postgres.ImageRepository, stateRepo *postgres.ClusterStateRepository) *cluster.Manager {
	engine := cluster.NewEngine(cluster.Params{
		Eps:        cfg.Clustering.Eps,
		MinSamples: cfg.Clustering.MinSamples,
	})
	loader := cluster.NewLoader(faceRepo, imageRepo, cfg.Clustering.MaxFacesPerImage)
	return cluster.NewManager(engine, loader, imageRepo, stateRepo)
}
