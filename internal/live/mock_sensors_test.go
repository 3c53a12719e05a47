package live

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

func TestMockSensors_FeedDecoders(t *testing.T) {
	agg := NewAggregator(newTestLogger())
	mock := NewMockSensors(newTestLogger(), agg, time.Second, rand.New(rand.NewSource(7)))

	mock.TriggerAll()
	mock.TriggerAll()

	snap := agg.Snapshot()
	assert.GreaterOrEqual(t, snap.Power, 190)
	assert.Less(t, snap.Power, 210)
	assert.InDelta(t, 30.0, snap.Speed, 1.01)
	assert.InDelta(t, 85.0, snap.Cadence, 5)
	require.NotNil(t, snap.HeartRate)
	assert.InDelta(t, 140, *snap.HeartRate, 5)
}

func TestMockSensors_StartAndShutdown(t *testing.T) {
	agg := NewAggregator(newTestLogger())
	mock := NewMockSensors(newTestLogger(), agg, 5*time.Millisecond, nil)

	mock.Start()
	for _, kind := range telemetry.AllKinds {
		assert.Equal(t, telemetry.StatusConnected, agg.Status(kind))
	}
	assert.True(t, agg.AnyConnected())

	require.Eventually(t, agg.HasData, time.Second, 5*time.Millisecond)

	mock.Shutdown()
	mock.Shutdown()
	for _, kind := range telemetry.AllKinds {
		assert.Equal(t, telemetry.StatusDisconnected, agg.Status(kind))
	}
	assert.False(t, agg.AnyConnected())
}

func TestNewMockSensors_NilArgsPanic(t *testing.T) {
	agg := NewAggregator(newTestLogger())
	assert.Panics(t, func() { NewMockSensors(nil, agg, time.Second, nil) })
	assert.Panics(t, func() { NewMockSensors(newTestLogger(), nil, time.Second, nil) })
}
