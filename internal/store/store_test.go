package store

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/live-session/internal/session"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(context.Background(), db, log.New(&bytes.Buffer{}, "", 0), opts...)
	require.NoError(t, err)
	return s
}

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("session-%d", n)
	})
}

func sampleSummary(title string) session.Summary {
	hr := 141
	return session.Summary{
		Title:         title,
		SportType:     session.SportCycling,
		TotalDuration: 2,
		AvgPower:      205,
		AvgHR:         141,
		AvgCadence:    90,
		AvgSpeed:      9.4,
		BlockSummaries: []session.BlockSummary{
			{Label: "Steady", DurationSeconds: 2, TargetPower: 200, ActualPower: 205, ActualCadence: 90, ActualHR: 141, Type: session.BlockSteady},
		},
		History: []session.MetricSample{
			{Power: 200, Cadence: 89.5, Speed: 9.3, HeartRate: &hr, Timestamp: time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)},
			{Power: 210, Cadence: 90.5, Speed: 9.5, Timestamp: time.Date(2026, 3, 1, 7, 0, 1, 0, time.UTC)},
		},
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	now := time.Date(2026, 3, 1, 7, 30, 0, 123456789, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return now }))

	summary := sampleSummary("Morning Ride")
	id, completedAt, err := s.Save(context.Background(), summary)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, now.Truncate(time.Millisecond), completedAt)

	rec, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.True(t, completedAt.Equal(rec.CompletedAt))
	assert.Equal(t, summary, rec.Summary)
}

func TestStore_SaveAssignsUniqueIDs(t *testing.T) {
	s := newTestStore(t)

	first, _, err := s.Save(context.Background(), sampleSummary("a"))
	require.NoError(t, err)
	second, _, err := s.Save(context.Background(), sampleSummary("b"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, first, 36)
}

func TestStore_ListMostRecentFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	calls := 0
	s := newTestStore(t, sequentialIDs(), WithClock(func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Hour)
	}))

	for _, title := range []string{"first", "second", "third"} {
		_, _, err := s.Save(context.Background(), sampleSummary(title))
		require.NoError(t, err)
	}

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "session-3", entries[0].ID)
	assert.Equal(t, "third", entries[0].Title)
	assert.Equal(t, "first", entries[2].Title)
	assert.Equal(t, base.Add(3*time.Hour), entries[0].CompletedAt)
	assert.Equal(t, session.SportCycling, entries[0].SportType)
	assert.Equal(t, 205, entries[0].AvgPower)
	assert.Equal(t, 141, entries[0].AvgHR)
	assert.Equal(t, 90, entries[0].AvgCadence)
	assert.InDelta(t, 9.4, entries[0].AvgSpeed, 1e-9)
}

func TestStore_ListEmpty(t *testing.T) {
	s := newTestStore(t)

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestStore_GetUnknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t, sequentialIDs())

	id, _, err := s.Save(context.Background(), sampleSummary("gone"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), id))
	_, err = s.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), id), ErrNotFound)
}

func TestStore_DuplicateIDFails(t *testing.T) {
	s := newTestStore(t, WithIDGenerator(func() string { return "fixed" }))

	_, _, err := s.Save(context.Background(), sampleSummary("a"))
	require.NoError(t, err)
	_, _, err = s.Save(context.Background(), sampleSummary("b"))
	assert.ErrorContains(t, err, "insert session")
}

func TestStore_SchemaIsIdempotent(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	logger := log.New(&bytes.Buffer{}, "", 0)
	_, err = New(context.Background(), db, logger)
	require.NoError(t, err)
	_, err = New(context.Background(), db, logger)
	assert.NoError(t, err)
}

func TestStore_ImplementsSummarySink(t *testing.T) {
	var _ session.SummarySink = (*Store)(nil)
}

func TestNew_PanicsOnNilArgs(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	assert.PanicsWithValue(t, "Store: db cannot be nil", func() {
		_, _ = New(context.Background(), nil, log.Default())
	})
	assert.PanicsWithValue(t, "Store: logger cannot be nil", func() {
		_, _ = New(context.Background(), db, nil)
	})
}
