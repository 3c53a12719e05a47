package session

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/live-session/internal/live"
	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

const testTick = 5 * time.Millisecond

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*log.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return log.New(buf, "", 0), buf
}

// fakeFeed counts live subscriptions.
type fakeFeed struct {
	mu     sync.Mutex
	active int
	total  int
}

func (f *fakeFeed) ListenToSnapshots(ch chan<- live.Snapshot) func() {
	f.mu.Lock()
	f.active++
	f.total++
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.active--
			f.mu.Unlock()
		})
	}
}

func (f *fakeFeed) counts() (active, total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.total
}

type fakeSink struct {
	mu        sync.Mutex
	summaries []Summary
	err       error
	at        time.Time
}

func (s *fakeSink) Save(ctx context.Context, summary Summary) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	s.summaries = append(s.summaries, summary)
	return "session-1", s.at, nil
}

func (s *fakeSink) saved() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Summary(nil), s.summaries...)
}

func shortBlocks() []WorkoutBlock {
	return []WorkoutBlock{
		block(BlockWarmup, 3, 50, "Warm-up"),
		block(BlockInterval, 4, 100, "Effort"),
		block(BlockCooldown, 3, 40, "Cool-down"),
	}
}

func listenCompleted(c *Controller) (<-chan Completed, func()) {
	ch := make(chan Completed, 4)
	unregister := c.ListenToCompleted(func(done Completed) { ch <- done })
	return ch, unregister
}

func waitCompleted(t *testing.T, ch <-chan Completed) Completed {
	t.Helper()
	select {
	case done := <-ch:
		return done
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for session completion")
		return Completed{}
	}
}

func TestNewController_NilArgsPanic(t *testing.T) {
	logger, _ := newTestLogger()
	th := NewStaticThreshold(250)
	feed := &fakeFeed{}

	assert.Panics(t, func() { NewController(nil, feed, logger) })
	assert.Panics(t, func() { NewController(th, nil, logger) })
	assert.Panics(t, func() { NewController(th, feed, nil) })
}

func TestController_RunsToCompletionWithLiveFeed(t *testing.T) {
	logger, _ := newTestLogger()
	agg := live.NewAggregator(logger)
	hr := 150
	power := 220
	cadence := 92.0
	speed := 36.0
	agg.Apply(telemetry.Update{Power: &power, Cadence: &cadence, Speed: &speed, HeartRate: &hr})

	completedAt := time.Date(2026, 4, 2, 18, 30, 0, 0, time.UTC)
	sink := &fakeSink{at: completedAt}
	c := NewController(NewStaticThreshold(200), agg, logger,
		WithTickInterval(testTick), WithSummarySink(sink))
	defer c.Shutdown()

	completed, unregister := listenCompleted(c)
	defer unregister()

	require.True(t, c.Start("Short", SportCycling, shortBlocks()))
	assert.Equal(t, PhasePaused, c.State().Phase())
	require.True(t, c.Resume())

	done := waitCompleted(t, completed)
	assert.Equal(t, "session-1", done.ID)
	assert.Equal(t, completedAt, done.CompletedAt)

	summary := done.Summary
	assert.Equal(t, 10, summary.TotalDuration)
	assert.Len(t, summary.History, 10)
	require.Len(t, summary.BlockSummaries, 3)
	assert.Equal(t, 10, sumDurations(summary.BlockSummaries))
	assert.Equal(t, 200, summary.BlockSummaries[1].TargetPower)
	assert.Equal(t, 220, summary.AvgPower)
	assert.Equal(t, 150, summary.AvgHR)
	assert.Equal(t, 92, summary.AvgCadence)
	assert.Equal(t, 10.0, summary.AvgSpeed)

	require.Len(t, sink.saved(), 1)
	assert.Equal(t, PhaseStopped, c.State().Phase())
}

func TestController_NoSamplesBeforeFirstSnapshot(t *testing.T) {
	logger, _ := newTestLogger()
	feed := &fakeFeed{}
	c := NewController(NewStaticThreshold(250), feed, logger, WithTickInterval(testTick))
	defer c.Shutdown()

	completed, unregister := listenCompleted(c)
	defer unregister()

	require.True(t, c.Start("Silent", SportCycling, []WorkoutBlock{block(BlockSteady, 3, 60, "Only")}))
	require.True(t, c.Resume())

	done := waitCompleted(t, completed)
	assert.Equal(t, 3, done.Summary.TotalDuration)
	assert.Empty(t, done.Summary.History)
	assert.Equal(t, 0, done.Summary.AvgHR)
	assert.Empty(t, done.ID)
}

func TestController_ReleasesFeedOnEveryExit(t *testing.T) {
	logger, _ := newTestLogger()
	feed := &fakeFeed{}
	c := NewController(NewStaticThreshold(250), feed, logger, WithTickInterval(time.Hour))
	defer c.Shutdown()

	// Stop
	require.True(t, c.Start("A", SportCycling, shortBlocks()))
	active, _ := feed.counts()
	assert.Equal(t, 1, active)
	require.True(t, c.Stop())
	active, _ = feed.counts()
	assert.Equal(t, 0, active)

	// Discard
	require.True(t, c.Start("B", SportCycling, shortBlocks()))
	require.True(t, c.Discard())
	active, _ = feed.counts()
	assert.Equal(t, 0, active)
	assert.Nil(t, c.State().FinalSummary)

	// Completion by skipping every block
	require.True(t, c.Start("C", SportCycling, shortBlocks()))
	require.True(t, c.Skip())
	require.True(t, c.Skip())
	require.True(t, c.Skip())
	active, total := feed.counts()
	assert.Equal(t, 0, active)
	assert.Equal(t, 3, total)
	require.NotNil(t, c.State().FinalSummary)
	assert.Len(t, c.State().FinalSummary.BlockSummaries, 3)

	// Shutdown with a session still active
	require.True(t, c.Start("D", SportCycling, shortBlocks()))
	c.Shutdown()
	active, _ = feed.counts()
	assert.Equal(t, 0, active)
}

func TestController_PauseStopsTicking(t *testing.T) {
	logger, _ := newTestLogger()
	c := NewController(NewStaticThreshold(250), &fakeFeed{}, logger, WithTickInterval(testTick))
	defer c.Shutdown()

	require.True(t, c.Start("Pause", SportCycling, []WorkoutBlock{block(BlockSteady, 3600, 60, "Long")}))
	require.True(t, c.TogglePause())
	require.Eventually(t, func() bool { return c.State().ElapsedTotalSeconds >= 3 }, time.Second, testTick)

	require.True(t, c.TogglePause())
	elapsed := c.State().ElapsedTotalSeconds
	time.Sleep(10 * testTick)
	assert.Equal(t, elapsed, c.State().ElapsedTotalSeconds)
	assert.Equal(t, PhasePaused, c.State().Phase())

	require.True(t, c.Resume())
	require.Eventually(t, func() bool { return c.State().ElapsedTotalSeconds > elapsed }, time.Second, testTick)
}

func TestController_MisuseReturnsFalse(t *testing.T) {
	logger, logs := newTestLogger()
	c := NewController(NewStaticThreshold(250), &fakeFeed{}, logger, WithTickInterval(time.Hour))
	defer c.Shutdown()

	assert.False(t, c.Pause())
	assert.False(t, c.Resume())
	assert.False(t, c.Skip())
	assert.False(t, c.Stop())
	assert.False(t, c.Discard())
	assert.False(t, c.Start("Empty", SportCycling, nil))
	assert.Contains(t, logs.String(), "Controller: Ignoring pause in phase idle")

	require.True(t, c.Start("One", SportCycling, shortBlocks()))
	assert.False(t, c.Start("Two", SportCycling, shortBlocks()))
}

func TestController_StatePublishedInOrder(t *testing.T) {
	logger, _ := newTestLogger()
	c := NewController(NewStaticThreshold(250), &fakeFeed{}, logger, WithTickInterval(time.Hour))
	defer c.Shutdown()

	ch := make(chan State, 16)
	unregister := c.ListenToState(ch)
	defer unregister()

	require.True(t, c.Start("Order", SportCycling, shortBlocks()))
	require.True(t, c.Skip())
	require.True(t, c.Stop())

	var phases []Phase
	var indexes []int
	for len(phases) < 4 {
		select {
		case s := <-ch:
			phases = append(phases, s.Phase())
			indexes = append(indexes, s.CurrentBlockIndex)
		case <-time.After(time.Second):
			t.Fatal("Timeout waiting for state")
		}
	}

	assert.Equal(t, []Phase{PhaseIdle, PhasePaused, PhasePaused, PhaseStopped}, phases)
	assert.Equal(t, []int{0, 0, 1, 1}, indexes)
}

func TestController_SinkErrorStillCompletes(t *testing.T) {
	logger, logs := newTestLogger()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sink := &fakeSink{err: errors.New("disk full")}
	c := NewController(NewStaticThreshold(250), &fakeFeed{}, logger,
		WithTickInterval(time.Hour), WithSummarySink(sink), WithControllerClock(func() time.Time { return now }))
	defer c.Shutdown()

	completed, unregister := listenCompleted(c)
	defer unregister()

	require.True(t, c.Start("Fail", SportCycling, shortBlocks()))
	require.True(t, c.Stop())

	done := waitCompleted(t, completed)
	assert.Empty(t, done.ID)
	assert.Equal(t, now, done.CompletedAt)
	assert.Contains(t, logs.String(), "disk full")
}

func TestController_ShutdownIdempotent(t *testing.T) {
	logger, _ := newTestLogger()
	c := NewController(NewStaticThreshold(250), &fakeFeed{}, logger)

	c.Shutdown()
	c.Shutdown()

	assert.False(t, c.Start("Late", SportCycling, shortBlocks()))
}
