// Package attendance wires the recognition engine to the detector and the
// store: enrollment on the write path, matching plus at-most-once recording
// on the attendance path.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduvision/attendance/internal/config"
	"github.com/eduvision/attendance/internal/detector"
	"github.com/eduvision/attendance/internal/metrics"
	"github.com/eduvision/attendance/internal/recognition"
	"github.com/eduvision/attendance/internal/store"
)

// ErrNoFaceDetected is returned when an enrollment image set contains no
// detectable face.
var ErrNoFaceDetected = errors.New("no face detected")

// Result is the outcome for one probe face: the match decision and, when
// the match was accepted, the attendance write outcome.
type Result struct {
	Decision     recognition.MatchDecision `json:"decision"`
	IdentityName string                    `json:"identity_name,omitempty"`
	Outcome      *store.Outcome            `json:"outcome,omitempty"`
}

// Service orchestrates enrollment and attendance taking.
type Service struct {
	store    store.Store
	detector detector.Detector
	cfg      config.MatcherConfig
	index    *store.IdentityIndex
	log      *zap.Logger
}

// NewService creates a service. index is optional; when present it is kept
// in sync with enrollments and used for duplicate-enrollment screening.
func NewService(st store.Store, det detector.Detector, cfg config.MatcherConfig, index *store.IdentityIndex, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, detector: det, cfg: cfg, index: index, log: log}
}

// RebuildIndex reloads the duplicate-screening index from the store.
func (s *Service) RebuildIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	identities, err := s.store.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("loading identities for index: %w", err)
	}
	s.index.Rebuild(identities)
	return nil
}

// EnrollImages enrolls an identity from one or more photos. Each photo
// contributes its most prominent face as one enrollment sample; photos with
// no detectable face are skipped. Returns the created identity and any
// already-enrolled identities suspiciously close to the new canonical
// embedding.
func (s *Service) EnrollImages(ctx context.Context, id, name string, images [][]byte, now time.Time) (*store.Identity, []store.Neighbor, error) {
	var samples []recognition.Embedding
	for i, img := range images {
		faces, err := s.detector.Detect(ctx, img)
		if err != nil {
			metrics.EnrollmentsTotal.WithLabelValues("error").Inc()
			return nil, nil, fmt.Errorf("detecting faces in image %d: %w", i, err)
		}
		if len(faces) == 0 {
			s.log.Warn("no face in enrollment image", zap.String("identity_id", id), zap.Int("image", i))
			continue
		}
		best := bestFace(faces)
		if !s.dimOK(best.Embedding) {
			s.log.Warn("detector returned embedding with unexpected dimension",
				zap.String("identity_id", id),
				zap.Int("image", i),
				zap.Int("got", len(best.Embedding)),
				zap.Int("want", s.cfg.Dim))
			continue
		}
		samples = append(samples, best.Embedding)
	}

	if len(samples) == 0 {
		metrics.EnrollmentsTotal.WithLabelValues("no_face").Inc()
		return nil, nil, ErrNoFaceDetected
	}

	return s.Enroll(ctx, id, name, samples, now)
}

// Enroll builds the canonical embedding from sample embeddings and persists
// the identity. Enrollment is create-only: an existing identity id fails
// with store.ErrIdentityExists, and re-enrollment is an explicit delete
// followed by a fresh enroll.
func (s *Service) Enroll(ctx context.Context, id, name string, samples []recognition.Embedding, now time.Time) (*store.Identity, []store.Neighbor, error) {
	canonical, used, err := recognition.BuildCanonical(samples, s.log)
	if err != nil {
		metrics.EnrollmentsTotal.WithLabelValues("no_face").Inc()
		return nil, nil, err
	}

	identity := store.Identity{
		ID:          id,
		Name:        name,
		Embedding:   canonical,
		SampleCount: used,
		EnrolledAt:  now,
	}

	var similar []store.Neighbor
	if s.index != nil {
		for _, n := range s.index.Search(canonical, 3, id) {
			if n.Distance <= s.cfg.Tolerance {
				similar = append(similar, n)
			}
		}
		if len(similar) > 0 {
			s.log.Warn("new identity is close to existing enrollments",
				zap.String("identity_id", id),
				zap.Int("close_matches", len(similar)))
		}
	}

	if err := s.store.CreateIdentity(ctx, identity); err != nil {
		if errors.Is(err, store.ErrIdentityExists) {
			metrics.EnrollmentsTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.EnrollmentsTotal.WithLabelValues("error").Inc()
		}
		return nil, nil, err
	}
	if s.index != nil {
		s.index.Add(identity)
	}

	metrics.EnrollmentsTotal.WithLabelValues("ok").Inc()
	s.log.Info("identity enrolled",
		zap.String("identity_id", id),
		zap.Int("samples", used))
	return &identity, similar, nil
}

// DeleteIdentity removes an identity and rebuilds the screening index.
func (s *Service) DeleteIdentity(ctx context.Context, id string) error {
	if err := s.store.DeleteIdentity(ctx, id); err != nil {
		return err
	}
	return s.RebuildIndex(ctx)
}

// SimilarIdentities returns enrolled identities closest to the given one.
func (s *Service) SimilarIdentities(ctx context.Context, id string, k int) ([]store.Neighbor, error) {
	if s.index == nil {
		return nil, nil
	}
	identity, err := s.store.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.index.Search(identity.Embedding, k, identity.ID), nil
}

// TakeAttendance detects faces in an image and runs each through the
// matching and recording pipeline. An image with zero faces yields an
// empty, non-nil result set.
func (s *Service) TakeAttendance(ctx context.Context, sessionKey string, image []byte, now time.Time) ([]Result, error) {
	faces, err := s.detector.Detect(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	probes := make([]recognition.Embedding, 0, len(faces))
	for i, f := range faces {
		if !s.dimOK(f.Embedding) {
			s.log.Warn("detector returned embedding with unexpected dimension",
				zap.Int("face", i),
				zap.Int("got", len(f.Embedding)),
				zap.Int("want", s.cfg.Dim))
			continue
		}
		probes = append(probes, f.Embedding)
	}
	return s.AttendProbes(ctx, sessionKey, probes, now)
}

// AttendProbes matches probe embeddings against the current identity
// snapshot and records attendance for accepted matches. The snapshot is
// read once; a concurrent enrollment may or may not be visible to it.
func (s *Service) AttendProbes(ctx context.Context, sessionKey string, probes []recognition.Embedding, now time.Time) ([]Result, error) {
	identities, err := s.store.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading identity snapshot: %w", err)
	}

	candidates := make([]recognition.Candidate, len(identities))
	names := make(map[string]string, len(identities))
	for i := range identities {
		candidates[i] = recognition.Candidate{
			IdentityID: identities[i].ID,
			Embedding:  identities[i].Embedding,
		}
		names[identities[i].ID] = identities[i].Name
	}

	results := make([]Result, 0, len(probes))
	for _, probe := range probes {
		start := time.Now()
		decision := recognition.Match(probe, candidates, s.cfg.Tolerance, s.cfg.AcceptanceThreshold, s.log)
		metrics.MatchDuration.Observe(time.Since(start).Seconds())

		if !decision.Accepted {
			metrics.MatchDecisionsTotal.WithLabelValues("rejected").Inc()
			results = append(results, Result{Decision: decision})
			continue
		}
		metrics.MatchDecisionsTotal.WithLabelValues("accepted").Inc()

		outcome, err := s.record(ctx, decision, sessionKey, now)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{
			Decision:     decision,
			IdentityName: names[decision.IdentityID],
			Outcome:      outcome,
		})
	}
	return results, nil
}

// record runs the dedup check and, when the day is clear, the atomic
// insert. The insert itself is the authority under races: losing the race
// after a clean dedup check still comes back as already-present.
func (s *Service) record(ctx context.Context, decision recognition.MatchDecision, sessionKey string, now time.Time) (*store.Outcome, error) {
	dedup, err := recognition.ShouldRecord(ctx, decision.IdentityID, sessionKey, now, s.store.HasAttendance)
	if err != nil {
		return nil, err
	}
	if !dedup.Record {
		metrics.AttendanceWritesTotal.WithLabelValues("duplicate").Inc()
		return &store.Outcome{Written: false, AlreadyPresent: true}, nil
	}

	outcome, err := s.store.InsertAttendance(ctx, store.AttendanceRecord{
		ID:         uuid.New().String(),
		IdentityID: decision.IdentityID,
		SessionKey: sessionKey,
		Day:        recognition.DayKey(now),
		Confidence: decision.Confidence,
		RecordedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("recording attendance: %w", err)
	}

	if outcome.Written {
		metrics.AttendanceWritesTotal.WithLabelValues("written").Inc()
		s.log.Info("attendance recorded",
			zap.String("identity_id", decision.IdentityID),
			zap.String("session_key", sessionKey),
			zap.Float64("confidence", decision.Confidence))
	} else {
		metrics.AttendanceWritesTotal.WithLabelValues("duplicate").Inc()
	}
	return &outcome, nil
}

// dimOK checks detector output against the configured embedding dimension.
// A zero Dim disables the check.
func (s *Service) dimOK(emb recognition.Embedding) bool {
	return s.cfg.Dim == 0 || len(emb) == s.cfg.Dim
}

// bestFace picks the face with the highest detection score, falling back
// to the first one when scores are absent.
func bestFace(faces []detector.Face) detector.Face {
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Score > best.Score {
			best = f
		}
	}
	return best
}
