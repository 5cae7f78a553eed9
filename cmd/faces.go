package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/database/postgres"
	"github.com/kozaktomas/photo-gallery/internal/detector"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Detect and store face embeddings for registered images",
	Long: `Detect faces in all registered images that don't have stored faces yet
and save their embeddings. Each face is stored with its embedding,
bounding box, and detection score.

The process can be stopped and resumed - images with stored faces are
skipped.

Examples:
  # Detect faces in all pending images (5 concurrent workers)
  photo-gallery faces

  # Use different concurrency
  photo-gallery faces --concurrency 3

  # Limit number of images to process
  photo-gallery faces --limit 100`,
	RunE: runFaces,
}

func init() {
	rootCmd.AddCommand(facesCmd)

	facesCmd.Flags().Int("concurrency", 5, "Number of parallel workers")
	facesCmd.Flags().Int("limit", 0, "Limit number of images to process (0 = no limit)")
}

func runFaces(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	limit := mustGetInt(cmd, "limit")

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

	images, err := imageRepo.List(ctx, "")
	if err != nil {
		return fmt.Errorf("listing images: %w", err)
	}
	fmt.Printf("Registered images: %d\n", len(images))

	// Filter out images that already have stored faces.
	var toProcess []database.ImageRecord
	for _, img := range images {
		faces, err := faceRepo.GetFaces(ctx, img.UID)
		if err != nil {
			return fmt.Errorf("checking faces for %s: %w", img.UID, err)
		}
		if len(faces) == 0 {
			toProcess = append(toProcess, img)
		}
		if limit > 0 && len(toProcess) >= limit {
			break
		}
	}

	if len(toProcess) == 0 {
		fmt.Println("All images already have faces processed!")
		return nil
	}

	fmt.Printf("Images to process: %d (skipping %d already processed)\n\n",
		len(toProcess), len(images)-len(toProcess))

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

	for _, img := range toProcess {
		wg.Add(1)
		go func(img database.ImageRecord) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fail := func() {
				mu.Lock()
				errorCount++
				mu.Unlock()
				bar.Add(1)
			}

			imageData, err := os.ReadFile(img.Path)
			if err != nil {
				fail()
				return
			}

			result, err := detectorClient.ComputeFaceEmbeddings(ctx, imageData)
			if err != nil {
				fail()
				return
			}

			faces := make([]database.StoredFace, len(result.Faces))
			for i, f := range result.Faces {
				faces[i] = database.StoredFace{
					ImageUID:  img.UID,
					FaceIndex: f.FaceIndex,
					Embedding: f.Embedding,
					BBox:      f.BBox,
					DetScore:  f.DetScore,
					Model:     result.Model,
					Dim:       f.Dim,
				}
			}

			if err := faceRepo.SaveFaces(ctx, img.UID, faces); err != nil {
				fail()
				return
			}

			mu.Lock()
			successCount++
			totalFaces += len(faces)
			mu.Unlock()
			bar.Add(1)
		}(img)
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
