package handlers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/detector"
)

func writeTestJPEG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing test image: %v", err)
	}
	return path
}

func TestImagesRegister(t *testing.T) {
	f := newTestFixture(t)
	path := writeTestJPEG(t, t.TempDir(), "portrait.jpg")

	stub := &stubDetector{
		response: &detector.FaceResponse{
			FacesCount: 1,
			Model:      "buffalo_l",
			Faces: []detector.FaceDetection{
				{FaceIndex: 0, Dim: 3, Embedding: []float32{1, 0, 0}, BBox: []float64{1, 2, 3, 4}, DetScore: 0.97},
			},
		},
	}
	handler := NewImagesHandler(f.images, f.faces, stub, f.manager)

	body := strings.NewReader(fmt.Sprintf(`{"path": %q, "title": "Portrait"}`, path))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	assertStatusCode(t, rec, http.StatusCreated)

	var resp struct {
		UID        string `json:"uid"`
		FacesCount int    `json:"faces_count"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.UID == "" {
		t.Fatal("expected generated uid")
	}
	if resp.FacesCount != 1 {
		t.Errorf("expected 1 face, got %d", resp.FacesCount)
	}

	faces, err := f.faces.GetFaces(context.Background(), resp.UID)
	if err != nil {
		t.Fatal(err)
	}
	if len(faces) != 1 || faces[0].Model != "buffalo_l" {
		t.Errorf("faces not stored: %v", faces)
	}
}

func TestImagesRegisterInvalidBody(t *testing.T) {
	f := newTestFixture(t)
	handler := NewImagesHandler(f.images, f.faces, &stubDetector{}, f.manager)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, errInvalidRequestBody)
}

func TestImagesRegisterMissingFile(t *testing.T) {
	f := newTestFixture(t)
	handler := NewImagesHandler(f.images, f.faces, &stubDetector{}, f.manager)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images",
		strings.NewReader(`{"path": "/does/not/exist.jpg"}`))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "cannot read image file")
}

func TestImagesRegisterDetectorFailure(t *testing.T) {
	f := newTestFixture(t)
	path := writeTestJPEG(t, t.TempDir(), "portrait.jpg")
	stub := &stubDetector{err: fmt.Errorf("model not loaded")}
	handler := NewImagesHandler(f.images, f.faces, stub, f.manager)

	body := strings.NewReader(fmt.Sprintf(`{"path": %q}`, path))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	assertStatusCode(t, rec, http.StatusBadGateway)
	assertJSONError(t, rec, "face detection failed")
}

func TestImagesList(t *testing.T) {
	f := newTestFixture(t)
	f.seedClusteredPair(t)
	handler := NewImagesHandler(f.images, f.faces, &stubDetector{}, f.manager)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/images", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	assertStatusCode(t, rec, http.StatusOK)

	var resp struct {
		Count int `json:"count"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.Count != 2 {
		t.Errorf("expected 2 images, got %d", resp.Count)
	}
}

func TestImagesGet(t *testing.T) {
	f := newTestFixture(t)
	f.seedClusteredPair(t)
	handler := NewImagesHandler(f.images, f.faces, &stubDetector{}, f.manager)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/images/img-a", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "img-a"})
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	assertStatusCode(t, rec, http.StatusOK)

	var resp struct {
		Image     database.ImageRecord `json:"image"`
		FaceCount int                  `json:"face_count"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.Image.UID != "img-a" || resp.FaceCount != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestImagesGetNotFound(t *testing.T) {
	f := newTestFixture(t)
	handler := NewImagesHandler(f.images, f.faces, &stubDetector{}, f.manager)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/images/unknown", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "unknown"})
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	assertStatusCode(t, rec, http.StatusNotFound)
	assertJSONError(t, rec, "image not found")
}

func TestImagesDelete(t *testing.T) {
	f := newTestFixture(t)
	f.seedClusteredPair(t)
	handler := NewImagesHandler(f.images, f.faces, &stubDetector{}, f.manager)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/images/img-a", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "img-a"})
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	assertStatusCode(t, rec, http.StatusOK)

	ctx := context.Background()
	record, err := f.images.Get(ctx, "img-a")
	if err != nil {
		t.Fatal(err)
	}
	if record != nil {
		t.Error("image record should be deleted")
	}

	faces, err := f.faces.GetFaces(ctx, "img-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(faces) != 0 {
		t.Error("faces should be deleted")
	}

	// The two-image cluster must dissolve after losing one member.
	clusters, err := f.manager.GetClusters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 0 {
		t.Errorf("expected cluster dissolved, got %v", clusters)
	}
}

func TestImagesDeleteNotFound(t *testing.T) {
	f := newTestFixture(t)
	handler := NewImagesHandler(f.images, f.faces, &stubDetector{}, f.manager)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/images/unknown", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "unknown"})
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	assertStatusCode(t, rec, http.StatusNotFound)
}

func TestImagesThumbnail(t *testing.T) {
	f := newTestFixture(t)
	path := writeTestJPEG(t, t.TempDir(), "photo.jpg")
	ctx := context.Background()
	if err := f.images.Save(ctx, database.ImageRecord{UID: "img-t", Path: path}); err != nil {
		t.Fatal(err)
	}
	handler := NewImagesHandler(f.images, f.faces, &stubDetector{}, f.manager)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/images/img-t/thumb/32", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "img-t", "size": "32"})
	rec := httptest.NewRecorder()
	handler.Thumbnail(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", ct)
	}

	img, err := jpeg.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decoding thumbnail: %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("expected width 32, got %d", img.Bounds().Dx())
	}
}

func TestImagesThumbnailUnknownImage(t *testing.T) {
	f := newTestFixture(t)
	handler := NewImagesHandler(f.images, f.faces, &stubDetector{}, f.manager)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/images/unknown/thumb/100", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "unknown", "size": "100"})
	rec := httptest.NewRecorder()
	handler.Thumbnail(rec, req)

	assertStatusCode(t, rec, http.StatusNotFound)
}
