package cluster

import (
	"context"
	"fmt"
	"log"

	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/kozaktomas/photo-gallery/internal/database"
)

// Loader reads face embeddings from storage, resolves them against the
// image index, and applies the noisy-image filter. It is read-only; the
// only failures it surfaces are storage-read errors.
type Loader struct {
	faces    database.FaceReader
	images   database.ImageReader
	maxFaces int
}

// NewLoader creates a loader with the given face-count threshold. A
// non-positive threshold falls back to the default.
func NewLoader(faces database.FaceReader, images database.ImageReader, maxFaces int) *Loader {
	if maxFaces <= 0 {
		maxFaces = constants.DefaultMaxFacesPerImage
	}
	return &Loader{faces: faces, images: images, maxFaces: maxFaces}
}

// MaxFaces returns the configured noisy-image threshold.
func (l *Loader) MaxFaces() int {
	return l.maxFaces
}

// LoadAll returns every eligible face embedding plus the UIDs of images
// excluded for exceeding the face-count threshold. An image contributes all
// of its embeddings when its face count is at or below the threshold, and
// none otherwise.
func (l *Loader) LoadAll(ctx context.Context) ([]Point, []string, error) {
	faces, err := l.faces.ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: listing faces: %v", ErrStorageUnavailable, err)
	}

	grouped := make(map[string][]database.StoredFace)
	order := make([]string, 0)
	for _, f := range faces {
		if _, seen := grouped[f.ImageUID]; !seen {
			order = append(order, f.ImageUID)
		}
		grouped[f.ImageUID] = append(grouped[f.ImageUID], f)
	}

	var points []Point
	var excluded []string
	for _, uid := range order {
		imageFaces := grouped[uid]
		if len(imageFaces) > l.maxFaces {
			excluded = append(excluded, uid)
			continue
		}
		eligible, err := l.eligiblePoints(ctx, uid, imageFaces)
		if err != nil {
			return nil, nil, err
		}
		points = append(points, eligible...)
	}

	return points, excluded, nil
}

// LoadImages is the delta variant of LoadAll for newly added images. The
// per-image threshold still applies; excluded UIDs are reported the same way.
func (l *Loader) LoadImages(ctx context.Context, uids []string) ([]Point, []string, error) {
	var points []Point
	var excluded []string
	for _, uid := range uids {
		imageFaces, err := l.faces.GetFaces(ctx, uid)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: faces for %s: %v", ErrStorageUnavailable, uid, err)
		}
		if len(imageFaces) > l.maxFaces {
			excluded = append(excluded, uid)
			continue
		}
		eligible, err := l.eligiblePoints(ctx, uid, imageFaces)
		if err != nil {
			return nil, nil, err
		}
		points = append(points, eligible...)
	}
	return points, excluded, nil
}

// eligiblePoints converts stored faces to clustering points. Faces whose
// image has no index entry are skipped (the index deletion wins), and
// zero-norm embeddings are dropped with a log line.
func (l *Loader) eligiblePoints(ctx context.Context, uid string, faces []database.StoredFace) ([]Point, error) {
	path, err := l.images.PathFor(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving image %s: %v", ErrStorageUnavailable, uid, err)
	}
	if path == "" {
		log.Printf("skipping %d face(s) of %s: image missing from index", len(faces), uid)
		return nil, nil
	}

	points := make([]Point, 0, len(faces))
	for _, f := range faces {
		if database.IsZeroVector(f.Embedding) {
			log.Printf("skipping face %s/%d: %v", uid, f.FaceIndex, ErrDegenerateEmbedding)
			continue
		}
		points = append(points, Point{ImageUID: f.ImageUID, Slot: f.FaceIndex, Vector: f.Embedding})
	}
	return points, nil
}
