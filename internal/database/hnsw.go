package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/photo-gallery/internal/constants"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	FaceCount int64     `json:"face_count"`
	MaxFaceID int64     `json:"max_face_id"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"`
}

const hnswMetadataVersion = 1

// HNSWIndex wraps an HNSW graph for approximate face similarity search.
// It accelerates the FindSimilar read path only; the cluster engine uses
// exact scans because its topology decisions must not miss neighbors.
type HNSWIndex struct {
	graph    *hnsw.Graph[int64]
	idToFace map[int64]*StoredFace
	mu       sync.RWMutex
	path     string
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToFace: make(map[int64]*StoredFace),
	}
}

// BuildFromFaces builds the index from a slice of faces.
func (h *HNSWIndex) BuildFromFaces(faces []StoredFace) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(faces) == 0 {
		h.graph = nil
		h.idToFace = make(map[int64]*StoredFace)
		return nil
	}

	g := hnsw.NewGraph[int64]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	h.idToFace = make(map[int64]*StoredFace, len(faces))

	for i := range faces {
		face := &faces[i]
		if len(face.Embedding) == 0 {
			continue
		}

		g.Add(hnsw.MakeNode(face.ID, face.Embedding))
		h.idToFace[face.ID] = face
	}

	h.graph = g
	return nil
}

// Search finds the k nearest neighbors to the query embedding.
// Returns face IDs and their exact cosine distances.
func (h *HNSWIndex) Search(query []float32, k int) ([]int64, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	neighbors := h.graph.Search(query, k)

	ids := make([]int64, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))

	for _, n := range neighbors {
		// Skip nodes that were logically deleted (graph nodes are kept,
		// lookup map is authoritative).
		if _, ok := h.idToFace[n.Key]; !ok {
			continue
		}
		ids = append(ids, n.Key)
		if len(n.Value) > 0 {
			distances = append(distances, CosineDistance(query, n.Value))
		} else {
			distances = append(distances, 0)
		}
	}

	return ids, distances, nil
}

// GetFace returns the face for a given ID.
func (h *HNSWIndex) GetFace(id int64) *StoredFace {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToFace[id]
}

// Add adds a single face to the index.
func (h *HNSWIndex) Add(face *StoredFace) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.graph == nil {
		return errors.New("index not initialized")
	}
	if len(face.Embedding) == 0 {
		return errors.New("face has no embedding")
	}

	h.graph.Add(hnsw.MakeNode(face.ID, face.Embedding))
	h.idToFace[face.ID] = face
	return nil
}

// Remove deletes faces from the index by ID.
// HNSW doesn't support true deletion; removing from the lookup map hides the
// node from search results since results are filtered by lookup.
func (h *HNSWIndex) Remove(ids []int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range ids {
		delete(h.idToFace, id)
	}
}

// Count returns the number of faces in the index.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToFace)
}

// SetPath configures where the index metadata is persisted.
func (h *HNSWIndex) SetPath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
}

// SaveMetadata writes index metadata next to the configured path so a later
// startup can decide whether the cached index is still valid.
func (h *HNSWIndex) SaveMetadata() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.path == "" {
		return nil
	}

	var maxID int64
	for id := range h.idToFace {
		if id > maxID {
			maxID = id
		}
	}

	meta := HNSWIndexMetadata{
		FaceCount: int64(len(h.idToFace)),
		MaxFaceID: maxID,
		BuildTime: time.Now(),
		Version:   hnswMetadataVersion,
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal HNSW metadata: %w", err)
	}

	if err := os.WriteFile(h.path+".meta.json", data, 0o644); err != nil {
		return fmt.Errorf("write HNSW metadata: %w", err)
	}
	return nil
}
