package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduvision/attendance/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "attendance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(identityID, sessionKey, day string, at time.Time) store.AttendanceRecord {
	return store.AttendanceRecord{
		ID:         uuid.New().String(),
		IdentityID: identityID,
		SessionKey: sessionKey,
		Day:        day,
		Confidence: 91.2,
		RecordedAt: at,
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	enrolledAt := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	identity := store.Identity{
		ID:          "jane",
		Name:        "Jane Doe",
		Embedding:   []float32{0.25, -0.5, 0.75},
		SampleCount: 3,
		EnrolledAt:  enrolledAt,
	}
	require.NoError(t, s.CreateIdentity(ctx, identity))

	got, err := s.GetIdentity(ctx, "jane")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.Name)
	assert.Equal(t, []float32{0.25, -0.5, 0.75}, got.Embedding)
	assert.Equal(t, 3, got.SampleCount)
	assert.True(t, got.EnrolledAt.Equal(enrolledAt))

	identities, err := s.ListIdentities(ctx)
	require.NoError(t, err)
	assert.Len(t, identities, 1)
}

func TestCreateIdentityIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	identity := store.Identity{
		ID:         "jane",
		Name:       "Jane Doe",
		Embedding:  []float32{0.1},
		EnrolledAt: time.Now(),
	}
	require.NoError(t, s.CreateIdentity(ctx, identity))

	identity.Name = "Impostor"
	err := s.CreateIdentity(ctx, identity)
	assert.ErrorIs(t, err, store.ErrIdentityExists)

	got, err := s.GetIdentity(ctx, "jane")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.Name)
}

func TestGetMissingIdentity(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetIdentity(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrIdentityNotFound)
}

func TestDeleteIdentity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateIdentity(ctx, store.Identity{
		ID: "jane", Name: "Jane Doe", Embedding: []float32{0.1}, EnrolledAt: time.Now(),
	}))
	require.NoError(t, s.DeleteIdentity(ctx, "jane"))

	err := s.DeleteIdentity(ctx, "jane")
	assert.ErrorIs(t, err, store.ErrIdentityNotFound)
}

func TestInsertAttendanceDedup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	first, err := s.InsertAttendance(ctx, testRecord("jane", "math-101", "2025-03-14", at))
	require.NoError(t, err)
	assert.True(t, first.Written)

	second, err := s.InsertAttendance(ctx, testRecord("jane", "math-101", "2025-03-14", at.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, second.Written)
	assert.True(t, second.AlreadyPresent)

	otherDay, err := s.InsertAttendance(ctx, testRecord("jane", "math-101", "2025-03-15", at.AddDate(0, 0, 1)))
	require.NoError(t, err)
	assert.True(t, otherDay.Written)

	otherSession, err := s.InsertAttendance(ctx, testRecord("jane", "physics-2", "2025-03-14", at))
	require.NoError(t, err)
	assert.True(t, otherSession.Written)

	exists, err := s.HasAttendance(ctx, "jane", "math-101", "2025-03-14")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.HasAttendance(ctx, "john", "math-101", "2025-03-14")
	require.NoError(t, err)
	assert.False(t, exists)
}

// The unique index decides under concurrency: fifty simultaneous inserts of
// the same (identity, session, day) triple leave exactly one row.
func TestInsertAttendanceConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	const workers = 50
	written := make(chan bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := s.InsertAttendance(ctx, testRecord("jane", "math-101", "2025-03-14", at))
			assert.NoError(t, err)
			written <- outcome.Written
		}()
	}
	wg.Wait()
	close(written)

	wins := 0
	for w := range written {
		if w {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	records, err := s.ListRecentAttendance(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestListRecentAttendanceOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		day := base.AddDate(0, 0, i)
		_, err := s.InsertAttendance(ctx, testRecord("jane", "math-101", day.Format(time.DateOnly), day))
		require.NoError(t, err)
	}

	records, err := s.ListRecentAttendance(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2025-03-13", records[0].Day)
	assert.Equal(t, "2025-03-12", records[1].Day)
}

func TestReports(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateIdentity(ctx, store.Identity{
		ID: "jane", Name: "Jane Doe", Embedding: []float32{0.1}, EnrolledAt: now,
	}))
	require.NoError(t, s.CreateIdentity(ctx, store.Identity{
		ID: "john", Name: "John Roe", Embedding: []float32{0.2}, EnrolledAt: now,
	}))

	_, err := s.InsertAttendance(ctx, testRecord("jane", "math-101", "2025-03-14", now))
	require.NoError(t, err)
	twoDaysAgo := now.AddDate(0, 0, -2)
	_, err = s.InsertAttendance(ctx, testRecord("jane", "math-101", twoDaysAgo.Format(time.DateOnly), twoDaysAgo))
	require.NoError(t, err)
	_, err = s.InsertAttendance(ctx, testRecord("john", "physics-2", "2025-03-14", now))
	require.NoError(t, err)

	t.Run("summary", func(t *testing.T) {
		summary, err := s.AttendanceSummary(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.TodayCount)
		assert.Equal(t, 2, summary.TotalIdentities)
		assert.Equal(t, 2, summary.WeekUnique)
	})

	t.Run("daily counts are dense and oldest first", func(t *testing.T) {
		counts, err := s.DailyCounts(ctx, now, 3)
		require.NoError(t, err)
		require.Len(t, counts, 3)
		assert.Equal(t, store.DayCount{Day: "2025-03-12", Count: 1}, counts[0])
		assert.Equal(t, store.DayCount{Day: "2025-03-13", Count: 0}, counts[1])
		assert.Equal(t, store.DayCount{Day: "2025-03-14", Count: 2}, counts[2])
	})

	t.Run("identity totals", func(t *testing.T) {
		totals, err := s.IdentityTotals(ctx)
		require.NoError(t, err)
		require.Len(t, totals, 2)
		assert.Equal(t, "jane", totals[0].IdentityID)
		assert.Equal(t, "Jane Doe", totals[0].Name)
		assert.Equal(t, 2, totals[0].Count)
		assert.True(t, totals[0].LastSeen.Equal(now))
		assert.Equal(t, "john", totals[1].IdentityID)
	})

	t.Run("session totals", func(t *testing.T) {
		totals, err := s.SessionTotals(ctx)
		require.NoError(t, err)
		require.Len(t, totals, 2)
		assert.Equal(t, store.SessionTotal{SessionKey: "math-101", Count: 2}, totals[0])
		assert.Equal(t, store.SessionTotal{SessionKey: "physics-2", Count: 1}, totals[1])
	})
}

// Deleting an identity keeps its attendance history; the report falls back
// to an empty name.
func TestIdentityTotalsAfterDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateIdentity(ctx, store.Identity{
		ID: "jane", Name: "Jane Doe", Embedding: []float32{0.1}, EnrolledAt: now,
	}))
	_, err := s.InsertAttendance(ctx, testRecord("jane", "math-101", "2025-03-14", now))
	require.NoError(t, err)

	require.NoError(t, s.DeleteIdentity(ctx, "jane"))

	totals, err := s.IdentityTotals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, "jane", totals[0].IdentityID)
	assert.Equal(t, "", totals[0].Name)
}
