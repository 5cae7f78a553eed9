package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/database/mariadb"
	"github.com/kozaktomas/photo-gallery/internal/database/postgres"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import photos from a PhotoPrism library",
	Long: `Import photo records from a PhotoPrism MariaDB database. Only metadata
is imported; run 'photo-gallery faces' afterwards to detect faces in
the imported photos.

Requires the PHOTOPRISM_DATABASE_URL environment variable with a
MariaDB DSN, e.g. user:pass@tcp(localhost:3306)/photoprism

Examples:
  # Import all photos, resolving files against the originals directory
  photo-gallery import --originals /photoprism/originals`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("originals", "", "PhotoPrism originals directory to prefix file paths with")
}

func runImport(cmd *cobra.Command, args []string) error {
	originals := mustGetString(cmd, "originals")

	ctx := context.Background()
	cfg := config.Load()

	if cfg.PhotoPrism.DatabaseURL == "" {
		return errors.New("PHOTOPRISM_DATABASE_URL environment variable is required")
	}

	fmt.Println("Connecting to PhotoPrism database...")
	ppPool, err := mariadb.NewPool(cfg.PhotoPrism.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PhotoPrism database: %w", err)
	}
	defer ppPool.Close()

	pool, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	imageRepo := postgres.NewImageRepository(pool)

	fmt.Println("Fetching photos from PhotoPrism...")
	photos, err := ppPool.ListPhotos(ctx)
	if err != nil {
		return fmt.Errorf("failed to list photos: %w", err)
	}
	fmt.Printf("Photos in PhotoPrism: %d\n\n", len(photos))

	bar := progressbar.NewOptions(len(photos),
		progressbar.OptionSetDescription("Importing photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var importedCount, errorCount int
	for _, photo := range photos {
		path := photo.Path
		if originals != "" {
			path = filepath.Join(originals, photo.Path)
		}
		record := database.ImageRecord{
			UID:   photo.UID,
			Path:  path,
			Title: photo.Title,
		}
		if err := imageRepo.Save(ctx, record); err != nil {
			errorCount++
			bar.Add(1)
			continue
		}
		importedCount++
		bar.Add(1)
	}
	fmt.Println()

	fmt.Printf("\nImported %d photo(s), %d error(s)\n", importedCount, errorCount)
	fmt.Println("Run 'photo-gallery faces' to detect faces in the imported photos")
	return nil
}
