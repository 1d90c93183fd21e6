package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduvision/attendance/internal/config"
	"github.com/eduvision/attendance/internal/detector"
	"github.com/eduvision/attendance/internal/recognition"
	"github.com/eduvision/attendance/internal/store"
	"github.com/eduvision/attendance/internal/store/memory"
)

// fakeDetector returns canned faces per call, in order.
type fakeDetector struct {
	responses [][]detector.Face
	err       error
	calls     int
}

func (f *fakeDetector) Detect(ctx context.Context, imageData []byte) ([]detector.Face, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.responses) {
		return nil, nil
	}
	faces := f.responses[f.calls]
	f.calls++
	return faces, nil
}

func face(score float64, embedding ...float32) detector.Face {
	return detector.Face{Embedding: embedding, Score: score}
}

func testConfig() config.MatcherConfig {
	return config.MatcherConfig{Tolerance: 0.5, AcceptanceThreshold: 65, Dim: 1}
}

func newTestService(t *testing.T, det detector.Detector) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := NewService(st, det, testConfig(), store.NewIdentityIndex(), nil)
	require.NoError(t, svc.RebuildIndex(context.Background()))
	return svc, st
}

func enroll(t *testing.T, svc *Service, id, name string, embedding recognition.Embedding) {
	t.Helper()
	_, _, err := svc.Enroll(context.Background(), id, name, []recognition.Embedding{embedding}, time.Now())
	require.NoError(t, err)
}

func TestEnrollAndGetBack(t *testing.T) {
	svc, st := newTestService(t, &fakeDetector{})
	now := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)

	identity, similar, err := svc.Enroll(context.Background(), "jane", "Jane Doe",
		[]recognition.Embedding{{0.1, 0.3}, {0.3, 0.5}}, now)
	require.NoError(t, err)
	assert.Empty(t, similar)
	assert.Equal(t, 2, identity.SampleCount)
	assert.Equal(t, []float32{0.2, 0.4}, identity.Embedding)

	stored, err := st.GetIdentity(context.Background(), "jane")
	require.NoError(t, err)
	assert.Equal(t, identity.Embedding, stored.Embedding)
}

func TestEnrollIsCreateOnly(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{})
	enroll(t, svc, "jane", "Jane Doe", recognition.Embedding{0.1})

	_, _, err := svc.Enroll(context.Background(), "jane", "Jane Again",
		[]recognition.Embedding{{0.9}}, time.Now())
	assert.ErrorIs(t, err, store.ErrIdentityExists)
}

func TestEnrollNoUsableSamples(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{})

	_, _, err := svc.Enroll(context.Background(), "jane", "Jane Doe", nil, time.Now())
	assert.ErrorIs(t, err, recognition.ErrNoUsableSamples)
}

func TestEnrollWarnsOnCloseNeighbor(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{})
	enroll(t, svc, "jane", "Jane Doe", recognition.Embedding{0.1})

	// Within tolerance of jane's embedding.
	_, similar, err := svc.Enroll(context.Background(), "john", "John Roe",
		[]recognition.Embedding{{0.15}}, time.Now())
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, "jane", similar[0].IdentityID)

	// Far from everyone: no warning.
	_, similar, err = svc.Enroll(context.Background(), "mia", "Mia Poe",
		[]recognition.Embedding{{5}}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, similar)
}

func TestEnrollImagesPicksBestFacePerImage(t *testing.T) {
	det := &fakeDetector{responses: [][]detector.Face{
		{face(0.4, 0.8), face(0.9, 0.2)}, // the 0.9-score face wins
		{},                               // no face, skipped
		{face(0.7, 0.4)},
	}}
	svc, _ := newTestService(t, det)

	identity, _, err := svc.EnrollImages(context.Background(), "jane", "Jane Doe",
		[][]byte{{1}, {2}, {3}}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, identity.SampleCount)
	// Mean of 0.2 and 0.4.
	require.Len(t, identity.Embedding, 1)
	assert.InDelta(t, 0.3, identity.Embedding[0], 1e-6)
}

func TestEnrollImagesNoFaces(t *testing.T) {
	det := &fakeDetector{responses: [][]detector.Face{{}, {}}}
	svc, _ := newTestService(t, det)

	_, _, err := svc.EnrollImages(context.Background(), "jane", "Jane Doe",
		[][]byte{{1}, {2}}, time.Now())
	assert.ErrorIs(t, err, ErrNoFaceDetected)
}

func TestEnrollImagesSkipsWrongDimension(t *testing.T) {
	det := &fakeDetector{responses: [][]detector.Face{
		{face(0.9, 0.1, 0.2)}, // two components against a configured one
		{face(0.8, 0.4)},
	}}
	svc, _ := newTestService(t, det)

	identity, _, err := svc.EnrollImages(context.Background(), "jane", "Jane Doe",
		[][]byte{{1}, {2}}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, identity.SampleCount)
	require.Len(t, identity.Embedding, 1)
	assert.InDelta(t, 0.4, identity.Embedding[0], 1e-6)
}

func TestEnrollImagesAllWrongDimension(t *testing.T) {
	det := &fakeDetector{responses: [][]detector.Face{
		{face(0.9, 0.1, 0.2)},
	}}
	svc, _ := newTestService(t, det)

	_, _, err := svc.EnrollImages(context.Background(), "jane", "Jane Doe",
		[][]byte{{1}}, time.Now())
	assert.ErrorIs(t, err, ErrNoFaceDetected)
}

func TestEnrollImagesDetectorError(t *testing.T) {
	detErr := errors.New("detector down")
	svc, _ := newTestService(t, &fakeDetector{err: detErr})

	_, _, err := svc.EnrollImages(context.Background(), "jane", "Jane Doe",
		[][]byte{{1}}, time.Now())
	assert.ErrorIs(t, err, detErr)
}

// The acceptance scenario: jane at distance 0.3 (confidence 70) matches and
// is recorded, john at 0.6 is outside tolerance 0.5 and never considered.
func TestAttendProbesAcceptsWithinTolerance(t *testing.T) {
	svc, st := newTestService(t, &fakeDetector{})
	enroll(t, svc, "jane", "Jane Doe", recognition.Embedding{0.3})
	enroll(t, svc, "john", "John Roe", recognition.Embedding{0.6})

	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	results, err := svc.AttendProbes(context.Background(), "math-101",
		[]recognition.Embedding{{0}}, now)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.True(t, res.Decision.Accepted)
	assert.Equal(t, "jane", res.Decision.IdentityID)
	assert.Equal(t, "Jane Doe", res.IdentityName)
	assert.InDelta(t, 70, res.Decision.Confidence, 1e-4)
	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.Written)

	exists, err := st.HasAttendance(context.Background(), "jane", "math-101", "2025-03-14")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAttendProbesRejectsBelowThreshold(t *testing.T) {
	svc, st := newTestService(t, &fakeDetector{})
	// Distance 0.4 gives confidence 60, below the 65 threshold.
	enroll(t, svc, "jane", "Jane Doe", recognition.Embedding{0.4})

	results, err := svc.AttendProbes(context.Background(), "math-101",
		[]recognition.Embedding{{0}}, time.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.False(t, res.Decision.Accepted)
	assert.Empty(t, res.Decision.IdentityID)
	assert.Nil(t, res.Outcome)

	records, err := st.ListRecentAttendance(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// A second detection of the same identity in the same session and day is
// reported as already present, not written again.
func TestAttendProbesDeduplicates(t *testing.T) {
	svc, st := newTestService(t, &fakeDetector{})
	enroll(t, svc, "jane", "Jane Doe", recognition.Embedding{0})

	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	probe := []recognition.Embedding{{0.01}}

	first, err := svc.AttendProbes(context.Background(), "math-101", probe, now)
	require.NoError(t, err)
	require.True(t, first[0].Outcome.Written)

	second, err := svc.AttendProbes(context.Background(), "math-101", probe, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, second[0].Outcome)
	assert.False(t, second[0].Outcome.Written)
	assert.True(t, second[0].Outcome.AlreadyPresent)

	// A new day or a different session records again.
	nextDay, err := svc.AttendProbes(context.Background(), "math-101", probe, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, nextDay[0].Outcome.Written)

	otherSession, err := svc.AttendProbes(context.Background(), "physics-2", probe, now)
	require.NoError(t, err)
	assert.True(t, otherSession[0].Outcome.Written)

	records, err := st.ListRecentAttendance(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestAttendProbesEmptySnapshot(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{})

	results, err := svc.AttendProbes(context.Background(), "math-101",
		[]recognition.Embedding{{0.1}}, time.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Decision.Accepted)
}

func TestTakeAttendanceNoFaces(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{responses: [][]detector.Face{{}}})

	results, err := svc.TakeAttendance(context.Background(), "math-101", []byte{1}, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestTakeAttendanceMultipleFaces(t *testing.T) {
	det := &fakeDetector{responses: [][]detector.Face{{
		face(0.9, 0.01),
		face(0.8, 5),
	}}}
	svc, _ := newTestService(t, det)
	enroll(t, svc, "jane", "Jane Doe", recognition.Embedding{0})

	results, err := svc.TakeAttendance(context.Background(), "math-101", []byte{1}, time.Now())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Decision.Accepted)
	assert.False(t, results[1].Decision.Accepted)
}

func TestTakeAttendanceSkipsWrongDimension(t *testing.T) {
	det := &fakeDetector{responses: [][]detector.Face{{
		face(0.9, 0.01),
		face(0.8, 0.01, 0.02),
	}}}
	svc, _ := newTestService(t, det)
	enroll(t, svc, "jane", "Jane Doe", recognition.Embedding{0})

	results, err := svc.TakeAttendance(context.Background(), "math-101", []byte{1}, time.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Decision.Accepted)
	assert.Equal(t, "jane", results[0].Decision.IdentityID)
}

func TestDeleteIdentityRebuildsIndex(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{})
	enroll(t, svc, "jane", "Jane Doe", recognition.Embedding{0.1})
	enroll(t, svc, "mia", "Mia Poe", recognition.Embedding{5})

	require.NoError(t, svc.DeleteIdentity(context.Background(), "jane"))

	// jane no longer screens new enrollments.
	_, similar, err := svc.Enroll(context.Background(), "john", "John Roe",
		[]recognition.Embedding{{0.15}}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, similar)

	err = svc.DeleteIdentity(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrIdentityNotFound)
}

func TestSimilarIdentities(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{})
	enroll(t, svc, "jane", "Jane Doe", recognition.Embedding{0.1})
	enroll(t, svc, "john", "John Roe", recognition.Embedding{0.2})
	enroll(t, svc, "mia", "Mia Poe", recognition.Embedding{5})

	neighbors, err := svc.SimilarIdentities(context.Background(), "jane", 2)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "john", neighbors[0].IdentityID)

	_, err = svc.SimilarIdentities(context.Background(), "ghost", 2)
	assert.ErrorIs(t, err, store.ErrIdentityNotFound)
}

func TestAttendProbesStoreError(t *testing.T) {
	st := memory.New()
	svc := NewService(st, &fakeDetector{}, testConfig(), nil, nil)
	st.ListError = store.ErrUnavailable

	_, err := svc.AttendProbes(context.Background(), "math-101",
		[]recognition.Embedding{{0.1}}, time.Now())
	assert.ErrorIs(t, err, store.ErrUnavailable)
}
