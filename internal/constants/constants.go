// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Clustering constants
const (
	// DefaultClusterEps is the default maximum cosine distance between two
	// faces for them to be considered neighbors during clustering
	DefaultClusterEps = 0.3

	// DefaultMinSamples is the default minimum neighborhood size (including
	// the point itself) required to seed a dense cluster
	DefaultMinSamples = 2

	// DefaultMaxFacesPerImage is the default face count above which an image
	// is treated as noisy and excluded from clustering entirely
	DefaultMaxFacesPerImage = 10

	// MinClusterImages is the minimum number of distinct images a cluster
	// must span to be reported; single-image clusters have no grouping value
	MinClusterImages = 2

	// NoiseLabel is the reserved cluster label for points that belong to no
	// dense region
	NoiseLabel = -1
)

// Embedding constants
const (
	// FaceEmbeddingDim is the fixed dimension for face embeddings
	// (512 for buffalo_l/ResNet100)
	FaceEmbeddingDim = 512
)

// Similarity search constants
const (
	// DefaultSearchLimit is the default limit for similarity search results
	DefaultSearchLimit = 100

	// DefaultDistanceThreshold is the default maximum cosine distance for
	// face similarity search
	DefaultDistanceThreshold = 0.5

	// HNSWMaxNeighbors is the M parameter for the in-memory HNSW graph
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the ef_search value for pgvector HNSW queries
	HNSWEfSearch = 200

	// HNSWSearchMultiplier oversamples HNSW candidates before distance filtering
	HNSWSearchMultiplier = 3
)

// Web constants
const (
	// MaxThumbnailSize is the largest thumbnail dimension the API serves
	MaxThumbnailSize = 1920

	// DefaultThumbnailSize is used when the requested size is invalid
	DefaultThumbnailSize = 512
)
