package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/database/postgres"
	"github.com/kozaktomas/photo-gallery/internal/detector"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <directory>",
	Short: "Scan a directory and register its photos",
	Long: `Walk a directory tree, register every image found, and detect faces in
each one. Already registered paths are skipped, so the scan can be
stopped and resumed.

Examples:
  # Scan a photo library (5 concurrent workers)
  photo-gallery scan ~/Pictures

  # Use different concurrency
  photo-gallery scan ~/Pictures --concurrency 3

  # Limit number of photos to process
  photo-gallery scan ~/Pictures --limit 100`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Int("concurrency", 5, "Number of parallel workers")
	scanCmd.Flags().Int("limit", 0, "Limit number of photos to process (0 = no limit)")
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// collectImageFiles walks the directory tree and returns image file paths.
func collectImageFiles(dir string, limit int) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isImageFile(path) {
			return nil
		}
		paths = append(paths, path)
		if limit > 0 && len(paths) >= limit {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return paths, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	limit := mustGetInt(cmd, "limit")
	dir := args[0]

	ctx := context.Background()
	cfg := config.Load()

	pool, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	faceRepo := postgres.NewFaceRepository(pool)
	imageRepo := postgres.NewImageRepository(pool)

	faceCount, _ := faceRepo.Count(ctx)
	imageCount, _ := faceRepo.CountImages(ctx)
	fmt.Printf("Faces in database: %d (across %d images)\n", faceCount, imageCount)

	detectorClient := detector.NewClient(cfg.Detector.URL, cfg.Detector.Model)

	fmt.Printf("Scanning %s...\n", dir)
	paths, err := collectImageFiles(dir, limit)
	if err != nil {
		return err
	}
	fmt.Printf("Images found: %d\n", len(paths))

	// Skip paths that are already registered so the scan is resumable.
	existing, err := imageRepo.List(ctx, "")
	if err != nil {
		return fmt.Errorf("listing registered images: %w", err)
	}
	registered := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		registered[rec.Path] = struct{}{}
	}

	var toProcess []string
	for _, path := range paths {
		if _, ok := registered[path]; !ok {
			toProcess = append(toProcess, path)
		}
	}

	if len(toProcess) == 0 {
		fmt.Println("All images already registered!")
		return nil
	}

	fmt.Printf("Images to process: %d (skipping %d already registered)\n\n",
		len(toProcess), len(paths)-len(toProcess))

	bar := progressbar.NewOptions(len(toProcess),
		progressbar.OptionSetDescription("Detecting faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var successCount, errorCount, totalFaces int
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, path := range toProcess {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fail := func() {
				mu.Lock()
				errorCount++
				mu.Unlock()
				bar.Add(1)
			}

			// Read the original file (no resize - bbox coordinates are relative to original)
			imageData, err := os.ReadFile(path)
			if err != nil {
				fail()
				return
			}

			result, err := detectorClient.ComputeFaceEmbeddings(ctx, imageData)
			if err != nil {
				fail()
				return
			}

			uid := uuid.New().String()
			title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if err := imageRepo.Save(ctx, database.ImageRecord{UID: uid, Path: path, Title: title}); err != nil {
				fail()
				return
			}

			faces := make([]database.StoredFace, len(result.Faces))
			for i, f := range result.Faces {
				faces[i] = database.StoredFace{
					ImageUID:  uid,
					FaceIndex: f.FaceIndex,
					Embedding: f.Embedding,
					BBox:      f.BBox,
					DetScore:  f.DetScore,
					Model:     result.Model,
					Dim:       f.Dim,
				}
			}

			// Save faces (even if empty, to mark the image as processed)
			if err := faceRepo.SaveFaces(ctx, uid, faces); err != nil {
				fail()
				return
			}

			mu.Lock()
			successCount++
			totalFaces += len(faces)
			mu.Unlock()
			bar.Add(1)
		}(path)
	}

	wg.Wait()
	fmt.Println()

	finalFaceCount, _ := faceRepo.Count(ctx)
	finalImageCount, _ := faceRepo.CountImages(ctx)
	fmt.Printf("\nCompleted: %d images processed, %d errors\n", successCount, errorCount)
	fmt.Printf("New faces detected: %d\n", totalFaces)
	fmt.Printf("Total faces in database: %d (across %d images)\n", finalFaceCount, finalImageCount)
	fmt.Println("\nRun 'photo-gallery cluster build' to group the new faces")

	return nil
}
