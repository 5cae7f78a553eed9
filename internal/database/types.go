package database

import (
	"time"
)

// StoredFace represents a face embedding stored in the database.
// Faces are immutable once written; they are replaced wholesale when a photo
// is reprocessed and deleted when the owning image is removed.
type StoredFace struct {
	ID        int64
	ImageUID  string
	FaceIndex int
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2] in raw pixel coordinates
	DetScore  float64
	Model     string
	Dim       int
	CreatedAt time.Time
}

// ImageRecord represents an image known to the gallery.
type ImageRecord struct {
	UID       string
	Path      string
	Title     string
	CreatedAt time.Time
}
