package recognition

import (
	"errors"

	"go.uber.org/zap"
)

// ErrNoUsableSamples is returned when an enrollment has no sample embedding
// to build a canonical embedding from.
var ErrNoUsableSamples = errors.New("no usable enrollment samples")

// BuildCanonical aggregates enrollment samples into a canonical embedding,
// the element-wise arithmetic mean. The first non-empty sample fixes the
// dimension; samples of a different dimension are dropped with a warning.
// Returns the canonical embedding and how many samples contributed to it.
func BuildCanonical(samples []Embedding, log *zap.Logger) (Embedding, int, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		sum  []float64
		used int
	)

	for i, s := range samples {
		if len(s) == 0 {
			log.Warn("dropping empty enrollment sample", zap.Int("sample", i))
			continue
		}
		if sum == nil {
			sum = make([]float64, len(s))
		}
		if len(s) != len(sum) {
			log.Warn("dropping enrollment sample with mismatched dimension",
				zap.Int("sample", i),
				zap.Int("want", len(sum)),
				zap.Int("got", len(s)))
			continue
		}
		for j, v := range s {
			sum[j] += float64(v)
		}
		used++
	}

	if used == 0 {
		return nil, 0, ErrNoUsableSamples
	}

	canonical := make(Embedding, len(sum))
	for j, v := range sum {
		canonical[j] = float32(v / float64(used))
	}
	return canonical, used, nil
}
