package database

import (
	"context"
)

// FaceReader provides read-only access to face embeddings.
type FaceReader interface {
	// ListAll retrieves every stored face ordered by image UID and face index
	ListAll(ctx context.Context) ([]StoredFace, error)
	// GetFaces retrieves all faces for an image
	GetFaces(ctx context.Context, imageUID string) ([]StoredFace, error)
	// Count returns the total number of faces stored
	Count(ctx context.Context) (int, error)
	// CountImages returns the number of distinct images with faces
	CountImages(ctx context.Context) (int, error)
	// FindSimilar finds faces with similar embeddings using cosine distance
	FindSimilar(ctx context.Context, embedding []float32, limit int) ([]StoredFace, error)
	// FindSimilarWithDistance finds similar faces and returns distances
	FindSimilarWithDistance(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]StoredFace, []float64, error)
}

// FaceWriter provides write access to face data.
type FaceWriter interface {
	FaceReader

	// SaveFaces stores multiple faces for an image (replaces existing faces for that image)
	SaveFaces(ctx context.Context, imageUID string, faces []StoredFace) error

	// DeleteFacesByImage removes all faces for an image.
	// Returns the deleted face IDs for HNSW cleanup.
	DeleteFacesByImage(ctx context.Context, imageUID string) ([]int64, error)
}

// ImageReader provides read-only access to the image index.
type ImageReader interface {
	// Get retrieves an image record by UID, returns nil if not found
	Get(ctx context.Context, uid string) (*ImageRecord, error)
	// PathFor resolves an image UID to its filesystem path.
	// Returns empty string (no error) when the image is unknown.
	PathFor(ctx context.Context, uid string) (string, error)
	// List returns image records, optionally filtered by a normalized
	// substring match against path and title
	List(ctx context.Context, query string) ([]ImageRecord, error)
}

// ImageWriter provides write access to the image index.
type ImageWriter interface {
	ImageReader

	// Save stores an image record (upsert by UID)
	Save(ctx context.Context, record ImageRecord) error
	// Delete removes an image record; deleting an unknown UID is a no-op
	Delete(ctx context.Context, uid string) error
}

// ClusterStateStore persists the serialized cluster state blob under a fixed
// process-wide key. The blob is a cache of the clustering computation, never
// a source of truth.
type ClusterStateStore interface {
	// Put stores the serialized cluster state
	Put(ctx context.Context, blob []byte) error
	// Get retrieves the serialized cluster state.
	// Returns nil (no error) when no state has been saved yet.
	Get(ctx context.Context) ([]byte, error)
}
