// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/textnorm"
)

// MockFaceStore is an in-memory implementation of database.FaceWriter
type MockFaceStore struct {
	mu     sync.RWMutex
	faces  map[string][]database.StoredFace
	nextID int64

	// Error injection
	ListAllError     error
	GetFacesError    error
	SaveFacesError   error
	DeleteError      error
	CountError       error
	FindSimilarError error
}

// NewMockFaceStore creates a new mock face store
func NewMockFaceStore() *MockFaceStore {
	return &MockFaceStore{
		faces:  make(map[string][]database.StoredFace),
		nextID: 1,
	}
}

// ListAll retrieves every stored face ordered by image UID and face index
func (m *MockFaceStore) ListAll(ctx context.Context) ([]database.StoredFace, error) {
	if m.ListAllError != nil {
		return nil, m.ListAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	uids := make([]string, 0, len(m.faces))
	for uid := range m.faces {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	var all []database.StoredFace
	for _, uid := range uids {
		all = append(all, m.faces[uid]...)
	}
	return all, nil
}

// GetFaces retrieves all faces for an image
func (m *MockFaceStore) GetFaces(ctx context.Context, imageUID string) ([]database.StoredFace, error) {
	if m.GetFacesError != nil {
		return nil, m.GetFacesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.StoredFace(nil), m.faces[imageUID]...), nil
}

// SaveFaces stores multiple faces for an image (replaces existing faces)
func (m *MockFaceStore) SaveFaces(ctx context.Context, imageUID string, faces []database.StoredFace) error {
	if m.SaveFacesError != nil {
		return m.SaveFacesError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]database.StoredFace, 0, len(faces))
	for i, f := range faces {
		f.ID = m.nextID
		m.nextID++
		f.ImageUID = imageUID
		if f.FaceIndex == 0 && i > 0 {
			f.FaceIndex = i
		}
		stored = append(stored, f)
	}
	m.faces[imageUID] = stored
	return nil
}

// DeleteFacesByImage removes all faces for an image
func (m *MockFaceStore) DeleteFacesByImage(ctx context.Context, imageUID string) ([]int64, error) {
	if m.DeleteError != nil {
		return nil, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []int64
	for _, f := range m.faces[imageUID] {
		ids = append(ids, f.ID)
	}
	delete(m.faces, imageUID)
	return ids, nil
}

// Count returns the total number of faces stored
func (m *MockFaceStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, faces := range m.faces {
		count += len(faces)
	}
	return count, nil
}

// CountImages returns the number of distinct images with faces
func (m *MockFaceStore) CountImages(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.faces), nil
}

// FindSimilar finds faces with similar embeddings using cosine distance
func (m *MockFaceStore) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]database.StoredFace, error) {
	faces, _, err := m.FindSimilarWithDistance(ctx, embedding, limit, 2.0)
	return faces, err
}

// FindSimilarWithDistance finds similar faces and returns distances
func (m *MockFaceStore) FindSimilarWithDistance(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]database.StoredFace, []float64, error) {
	if m.FindSimilarError != nil {
		return nil, nil, m.FindSimilarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		face database.StoredFace
		dist float64
	}
	var candidates []scored
	for _, faces := range m.faces {
		for _, f := range faces {
			dist := database.CosineDistance(embedding, f.Embedding)
			if dist < maxDistance {
				candidates = append(candidates, scored{face: f, dist: dist})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	faces := make([]database.StoredFace, len(candidates))
	distances := make([]float64, len(candidates))
	for i, c := range candidates {
		faces[i] = c.face
		distances[i] = c.dist
	}
	return faces, distances, nil
}

// MockImageIndex is an in-memory implementation of database.ImageWriter
type MockImageIndex struct {
	mu     sync.RWMutex
	images map[string]database.ImageRecord

	// Error injection
	GetError    error
	ListError   error
	SaveError   error
	DeleteError error
}

// NewMockImageIndex creates a new mock image index
func NewMockImageIndex() *MockImageIndex {
	return &MockImageIndex{
		images: make(map[string]database.ImageRecord),
	}
}

// Get retrieves an image record by UID, returns nil if not found
func (m *MockImageIndex) Get(ctx context.Context, uid string) (*database.ImageRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if record, ok := m.images[uid]; ok {
		return &record, nil
	}
	return nil, nil
}

// PathFor resolves an image UID to its filesystem path
func (m *MockImageIndex) PathFor(ctx context.Context, uid string) (string, error) {
	if m.GetError != nil {
		return "", m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.images[uid].Path, nil
}

// List returns image records, optionally filtered by a normalized query
func (m *MockImageIndex) List(ctx context.Context, query string) ([]database.ImageRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	normalized := textnorm.Normalize(query)
	var records []database.ImageRecord
	for _, record := range m.images {
		if normalized != "" && !textnorm.Contains(record.Path+" "+record.Title, normalized) {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].UID < records[j].UID })
	return records, nil
}

// Save stores an image record (upsert by UID)
func (m *MockImageIndex) Save(ctx context.Context, record database.ImageRecord) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[record.UID] = record
	return nil
}

// Delete removes an image record
func (m *MockImageIndex) Delete(ctx context.Context, uid string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.images, uid)
	return nil
}

// MockClusterStateStore is an in-memory implementation of database.ClusterStateStore
type MockClusterStateStore struct {
	mu   sync.RWMutex
	blob []byte

	// Error injection
	GetError error
	PutError error
}

// NewMockClusterStateStore creates a new mock cluster state store
func NewMockClusterStateStore() *MockClusterStateStore {
	return &MockClusterStateStore{}
}

// Put stores the serialized cluster state
func (m *MockClusterStateStore) Put(ctx context.Context, blob []byte) error {
	if m.PutError != nil {
		return m.PutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append([]byte(nil), blob...)
	return nil
}

// Get retrieves the serialized cluster state, nil when absent
func (m *MockClusterStateStore) Get(ctx context.Context) ([]byte, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.blob == nil {
		return nil, nil
	}
	return append([]byte(nil), m.blob...), nil
}
