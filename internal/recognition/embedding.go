package recognition

import (
	"fmt"
	"math"
)

// Embedding is a fixed-length face descriptor produced by the detector.
// All embeddings compared against each other must share the same dimension.
type Embedding []float32

// DimensionMismatchError reports an embedding whose dimension does not match
// the one it was compared against.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// EuclideanDistance computes the euclidean distance between two embeddings.
// Returns a DimensionMismatchError when the dimensions differ or either
// embedding is empty.
func EuclideanDistance(a, b Embedding) (float64, error) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0, &DimensionMismatchError{Want: len(a), Got: len(b)}
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Confidence converts a face distance to a percentage. The result is NOT
// clamped: distances above 1 produce negative confidence, and threshold
// comparisons must use this raw value. Clamp only at the reporting boundary.
func Confidence(distance float64) float64 {
	return (1 - distance) * 100
}

// ClampConfidence limits a confidence value to the [0, 100] reporting range.
func ClampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}
