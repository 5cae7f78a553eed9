package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/kozaktomas/photo-gallery/internal/database"
)

// FacesHandler serves the face similarity endpoints.
type FacesHandler struct {
	faces database.FaceReader
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(faces database.FaceReader) *FacesHandler {
	return &FacesHandler{faces: faces}
}

// similarRequest is the body for face similarity search.
type similarRequest struct {
	Embedding   []float32 `json:"embedding"`
	Limit       int       `json:"limit"`
	MaxDistance float64   `json:"max_distance"`
}

// similarFace is one similarity search hit.
type similarFace struct {
	ImageUID  string  `json:"image_uid"`
	FaceIndex int     `json:"face_index"`
	DetScore  float64 `json:"det_score"`
	Distance  float64 `json:"distance"`
}

// Similar finds stored faces close to the given embedding.
// POST /api/v1/faces/similar
func (h *FacesHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Embedding) == 0 {
		respondError(w, http.StatusBadRequest, "embedding is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = constants.DefaultSearchLimit
	}
	if req.MaxDistance <= 0 {
		req.MaxDistance = constants.DefaultDistanceThreshold
	}

	faces, distances, err := h.faces.FindSimilarWithDistance(r.Context(), req.Embedding, req.Limit, req.MaxDistance)
	if err != nil {
		log.Printf("similarity search: %v", err)
		respondError(w, http.StatusServiceUnavailable, "face storage unavailable")
		return
	}

	results := make([]similarFace, 0, len(faces))
	for i, f := range faces {
		results = append(results, similarFace{
			ImageUID:  f.ImageUID,
			FaceIndex: f.FaceIndex,
			DetScore:  f.DetScore,
			Distance:  distances[i],
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"faces": results,
		"count": len(results),
	})
}
