package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/photo-gallery/internal/cluster"
	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/detector"
	"github.com/kozaktomas/photo-gallery/internal/imaging"
)

// FaceDetector computes face embeddings for raw image bytes.
type FaceDetector interface {
	ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*detector.FaceResponse, error)
}

// ImagesHandler serves the image registration and browsing endpoints.
type ImagesHandler struct {
	images   database.ImageWriter
	faces    database.FaceWriter
	detector FaceDetector
	manager  *cluster.Manager
}

// NewImagesHandler creates a new images handler.
func NewImagesHandler(
	images database.ImageWriter,
	faces database.FaceWriter,
	faceDetector FaceDetector,
	manager *cluster.Manager,
) *ImagesHandler {
	return &ImagesHandler{
		images:   images,
		faces:    faces,
		detector: faceDetector,
		manager:  manager,
	}
}

// List returns registered images, optionally filtered by ?q=.
// GET /api/v1/images
func (h *ImagesHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.images.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		log.Printf("listing images: %v", err)
		respondError(w, http.StatusServiceUnavailable, "image storage unavailable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"images": records,
		"count":  len(records),
	})
}

// Get returns one image record with its stored faces.
// GET /api/v1/images/{uid}
func (h *ImagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	record, err := h.images.Get(r.Context(), uid)
	if err != nil {
		log.Printf("getting image %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusServiceUnavailable, "image storage unavailable")
		return
	}
	if record == nil {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	faces, err := h.faces.GetFaces(r.Context(), uid)
	if err != nil {
		log.Printf("getting faces for %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusServiceUnavailable, "face storage unavailable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"image":      record,
		"face_count": len(faces),
	})
}

// registerRequest is the body for registering a new image.
type registerRequest struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// Register registers an image: detects its faces, stores the embeddings, and
// folds the image into the clustering.
// POST /api/v1/images
func (h *ImagesHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	imageData, err := os.ReadFile(req.Path)
	if err != nil {
		respondError(w, http.StatusBadRequest, "cannot read image file")
		return
	}

	detected, err := h.detector.ComputeFaceEmbeddings(r.Context(), imageData)
	if err != nil {
		log.Printf("detecting faces in %s: %v", sanitizeForLog(req.Path), err)
		respondError(w, http.StatusBadGateway, "face detection failed")
		return
	}

	uid := uuid.New().String()
	record := database.ImageRecord{UID: uid, Path: req.Path, Title: req.Title}
	if err := h.images.Save(r.Context(), record); err != nil {
		log.Printf("saving image %s: %v", uid, err)
		respondError(w, http.StatusServiceUnavailable, "image storage unavailable")
		return
	}

	faces := make([]database.StoredFace, 0, len(detected.Faces))
	for _, f := range detected.Faces {
		faces = append(faces, database.StoredFace{
			FaceIndex: f.FaceIndex,
			Embedding: f.Embedding,
			BBox:      f.BBox,
			DetScore:  f.DetScore,
			Model:     detected.Model,
			Dim:       f.Dim,
		})
	}
	if err := h.faces.SaveFaces(r.Context(), uid, faces); err != nil {
		log.Printf("saving faces for %s: %v", uid, err)
		respondError(w, http.StatusServiceUnavailable, "face storage unavailable")
		return
	}

	if err := h.manager.OnImageAdded(r.Context(), uid); err != nil {
		log.Printf("clustering image %s: %v", uid, err)
		respondError(w, http.StatusServiceUnavailable, "cluster update failed")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"uid":         uid,
		"path":        req.Path,
		"faces_count": detected.FacesCount,
	})
}

// Delete removes an image, its faces, and its clustering contribution.
// DELETE /api/v1/images/{uid}
func (h *ImagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	record, err := h.images.Get(r.Context(), uid)
	if err != nil {
		log.Printf("getting image %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusServiceUnavailable, "image storage unavailable")
		return
	}
	if record == nil {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	if _, err := h.faces.DeleteFacesByImage(r.Context(), uid); err != nil {
		log.Printf("deleting faces for %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusServiceUnavailable, "face storage unavailable")
		return
	}
	if err := h.images.Delete(r.Context(), uid); err != nil {
		log.Printf("deleting image %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusServiceUnavailable, "image storage unavailable")
		return
	}

	h.manager.OnImageRemoved(r.Context(), uid)

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Thumbnail serves a resized JPEG of the image.
// GET /api/v1/images/{uid}/thumb/{size}
func (h *ImagesHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	size, err := strconv.Atoi(chi.URLParam(r, "size"))
	if err != nil || size <= 0 {
		size = constants.DefaultThumbnailSize
	}
	if size > constants.MaxThumbnailSize {
		size = constants.MaxThumbnailSize
	}

	path, err := h.images.PathFor(r.Context(), uid)
	if err != nil {
		log.Printf("resolving image %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusServiceUnavailable, "image storage unavailable")
		return
	}
	if path == "" {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	imageData, err := os.ReadFile(path)
	if err != nil {
		log.Printf("reading image file %s: %v", sanitizeForLog(path), err)
		respondError(w, http.StatusNotFound, "image file missing")
		return
	}

	thumb, err := imaging.Resize(imageData, size)
	if err != nil {
		log.Printf("resizing image %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusInternalServerError, "cannot process image")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(thumb)
}
