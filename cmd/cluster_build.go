package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database/postgres"
	"github.com/spf13/cobra"
)

var clusterBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild face clusters from stored embeddings",
	Long: `Run a full clustering pass over all stored face embeddings and persist
the result. Any previously saved clustering is replaced.

Examples:
  # Rebuild and persist the clustering
  photo-gallery cluster build

  # Rebuild without saving (dry run)
  photo-gallery cluster build --dry-run`,
	RunE: runClusterBuild,
}

func init() {
	clusterCmd.AddCommand(clusterBuildCmd)

	clusterBuildCmd.Flags().Bool("dry-run", false, "Cluster but don't persist the result")
}

func runClusterBuild(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")

	ctx := context.Background()
	cfg := config.Load()

	pool, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	faceRepo := postgres.NewFaceRepository(pool)
	imageRepo := postgres.NewImageRepository(pool)
	stateRepo := postgres.NewClusterStateRepository(pool)

	faceCount, _ := faceRepo.Count(ctx)
	imageCount, _ := faceRepo.CountImages(ctx)
	fmt.Printf("Faces in database: %d (across %d images)\n", faceCount, imageCount)

	manager := newClusterManager(cfg, faceRepo, imageRepo, stateRepo)
	fmt.Printf("Clustering with eps=%.2f, min_samples=%d...\n",
		cfg.Clustering.Eps, cfg.Clustering.MinSamples)
	if err := manager.Rebuild(ctx); err != nil {
		return fmt.Errorf("clustering failed: %w", err)
	}

	clusters, err := manager.GetClusters(ctx)
	if err != nil {
		return fmt.Errorf("resolving clusters: %w", err)
	}
	skipped := manager.SkippedImages()
	fmt.Printf("Found %d group(s), %d image(s) skipped (too many faces)\n", len(clusters), len(skipped))

	if dryRun {
		fmt.Println("Dry run, clustering not saved")
		return nil
	}

	if err := manager.Save(ctx); err != nil {
		return fmt.Errorf("saving clustering: %w", err)
	}
	fmt.Println("Clustering saved")
	return nil
}
