package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-gallery/internal/cluster"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/database/mock"
	"github.com/kozaktomas/photo-gallery/internal/detector"
)

// testFixture bundles mock storage and a manager around them.
type testFixture struct {
	faces   *mock.MockFaceStore
	images  *mock.MockImageIndex
	states  *mock.MockClusterStateStore
	manager *cluster.Manager
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	faces := mock.NewMockFaceStore()
	images := mock.NewMockImageIndex()
	states := mock.NewMockClusterStateStore()
	engine := cluster.NewEngine(cluster.DefaultParams())
	loader := cluster.NewLoader(faces, images, 10)
	return &testFixture{
		faces:   faces,
		images:  images,
		states:  states,
		manager: cluster.NewManager(engine, loader, images, states),
	}
}

// seedClusteredPair stores two images with one near-identical face each and
// builds the clustering, producing a single two-image cluster.
func (f *testFixture) seedClusteredPair(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	records := []struct {
		uid       string
		embedding []float32
	}{
		{"img-a", []float32{1, 0, 0}},
		{"img-b", []float32{0.99, 0.14, 0}},
	}
	for _, rec := range records {
		err := f.images.Save(ctx, database.ImageRecord{UID: rec.uid, Path: "/photos/" + rec.uid + ".jpg"})
		if err != nil {
			t.Fatal(err)
		}
		err = f.faces.SaveFaces(ctx, rec.uid, []database.StoredFace{
			{FaceIndex: 0, Embedding: rec.embedding, Dim: 3, DetScore: 0.9},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := f.manager.Rebuild(ctx); err != nil {
		t.Fatalf("seeding clusters: %v", err)
	}
}

// stubDetector returns canned detection responses.
type stubDetector struct {
	response *detector.FaceResponse
	err      error
}

func (d *stubDetector) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*detector.FaceResponse, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.response, nil
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
