package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database/postgres"
	"github.com/spf13/cobra"
)

var clusterShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current face clusters",
	Long: `Print the groups of photos that show the same person, one group per
cluster. Uses the persisted clustering when one exists, otherwise
clusters from scratch.`,
	RunE: runClusterShow,
}

func init() {
	clusterCmd.AddCommand(clusterShowCmd)
}

func runClusterShow(cmd *cobra.Command, args []string) error {
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

	manager := newClusterManager(cfg, faceRepo, imageRepo, stateRepo)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("initializing cluster engine: %w", err)
	}

	clusters, err := manager.GetClusters(ctx)
	if err != nil {
		return fmt.Errorf("resolving clusters: %w", err)
	}

	if len(clusters) == 0 {
		fmt.Println("No face clusters found")
		return nil
	}

	ids := make([]int, 0, len(clusters))
	for id := range clusters {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		fmt.Printf("Group %d (%d photos):\n", id, len(clusters[id]))
		for _, path := range clusters[id] {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
	}

	if skipped := manager.SkippedImages(); len(skipped) > 0 {
		fmt.Printf("Skipped %d image(s) with too many faces:\n", len(skipped))
		for _, uid := range skipped {
			fmt.Printf("  %s\n", uid)
		}
	}
	return nil
}
