package recognition

import (
	"go.uber.org/zap"
)

// Candidate is an enrolled identity considered during matching.
type Candidate struct {
	IdentityID string
	Embedding  Embedding
}

// MatchDecision is the outcome of matching one probe against a candidate
// snapshot. Confidence is clamped to [0, 100] for reporting; the raw
// distance drove the decision.
type MatchDecision struct {
	IdentityID string  `json:"identity_id,omitempty"`
	Confidence float64 `json:"confidence"`
	Accepted   bool    `json:"accepted"`
}

// Match finds the best candidate for a probe embedding.
//
// Every candidate is scanned: a candidate matches when its euclidean
// distance to the probe is within tolerance, and among all matches the one
// with the minimum distance wins, ties broken by the lexically lowest
// identity id. The winner is accepted only when its raw confidence,
// (1-distance)*100, exceeds acceptanceThreshold. Candidates whose embedding
// dimension differs from the probe are skipped, not fatal to the probe.
//
// An empty candidate set is not an error; it yields a rejected decision.
func Match(probe Embedding, candidates []Candidate, tolerance, acceptanceThreshold float64, log *zap.Logger) MatchDecision {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		bestID   string
		bestDist float64
		found    bool
	)

	for _, c := range candidates {
		dist, err := EuclideanDistance(probe, c.Embedding)
		if err != nil {
			log.Warn("skipping candidate with mismatched embedding",
				zap.String("identity_id", c.IdentityID),
				zap.Error(err))
			continue
		}
		if dist > tolerance {
			continue
		}
		if !found || dist < bestDist || (dist == bestDist && c.IdentityID < bestID) {
			bestID = c.IdentityID
			bestDist = dist
			found = true
		}
	}

	if !found {
		return MatchDecision{Accepted: false}
	}

	confidence := Confidence(bestDist)
	if confidence <= acceptanceThreshold {
		return MatchDecision{Accepted: false, Confidence: ClampConfidence(confidence)}
	}

	return MatchDecision{
		IdentityID: bestID,
		Confidence: ClampConfidence(confidence),
		Accepted:   true,
	}
}
