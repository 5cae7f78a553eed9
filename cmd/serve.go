package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database/postgres"
	"github.com/kozaktomas/photo-gallery/internal/detector"
	"github.com/kozaktomas/photo-gallery/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Photo Gallery web server.
The server exposes a JSON API for registering photos, browsing face
clusters, similarity search, and thumbnails.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// initFaceHNSW builds or loads the face HNSW index for fast similarity search.
func initFaceHNSW(ctx context.Context, faceRepo *postgres.FaceRepository, indexPath string) {
	if indexPath != "" {
		fmt.Printf("Loading face HNSW index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for face matching...\n")
	}
	if err := faceRepo.EnableHNSW(ctx, indexPath); err != nil {
		fmt.Printf("Warning: Failed to build face HNSW index: %v\n", err)
		fmt.Printf("Face matching will use PostgreSQL queries (slower)\n")
	} else if indexPath != "" {
		fmt.Printf("Face HNSW index ready with %d faces (persisted to %s)\n", faceRepo.HNSWCount(), indexPath)
	} else {
		fmt.Printf("Face HNSW index built with %d faces (in-memory only)\n", faceRepo.HNSWCount())
	}
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	pool, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	faceRepo := postgres.NewFaceRepository(pool)
	imageRepo := postgres.NewImageRepository(pool)
	stateRepo := postgres.NewClusterStateRepository(pool)
	ctx := context.Background()

	initFaceHNSW(ctx, faceRepo, cfg.Database.HNSWIndexPath)

	manager := newClusterManager(cfg, faceRepo, imageRepo, stateRepo)
	fmt.Printf("Initializing face clustering (eps=%.2f, min_samples=%d)...\n",
		cfg.Clustering.Eps, cfg.Clustering.MinSamples)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("initializing cluster engine: %w", err)
	}

	detectorClient := detector.NewClient(cfg.Detector.URL, cfg.Detector.Model)

	cfg.Web.Port, cfg.Web.Host = resolveServeHostPort(cmd)
	server := web.NewServer(cfg, web.Dependencies{
		Images:   imageRepo,
		Faces:    faceRepo,
		Detector: detectorClient,
		Manager:  manager,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := manager.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Warning: failed to persist cluster state: %v\n", err)
		} else {
			fmt.Println("Cluster state saved")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Photo Gallery API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
