// Package detector talks to the external face detection service. The
// engine treats detection as a collaborator that turns an image into zero
// or more fixed-length embeddings; everything past that boundary (model,
// alignment, landmarks) is the service's business.
package detector

import (
	"context"

	"github.com/eduvision/attendance/internal/recognition"
)

// Face is one detected face in an image.
type Face struct {
	Embedding recognition.Embedding
	BBox      []float64 // [x1, y1, x2, y2] in pixels, optional
	Score     float64   // detection score, optional
}

// Detector produces face embeddings from an image. An image with no faces
// yields an empty slice, not an error.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]Face, error)
}
