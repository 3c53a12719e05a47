package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

func TestStore_PreferredDevice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	address, err := s.PreferredDevice(ctx, telemetry.KindHeartRate)
	require.NoError(t, err)
	assert.Empty(t, address)

	require.NoError(t, s.SetPreferredDevice(ctx, telemetry.KindHeartRate, "AA:BB:CC:DD:EE:01"))
	require.NoError(t, s.SetPreferredDevice(ctx, telemetry.KindIndoorBike, "AA:BB:CC:DD:EE:02"))
	require.NoError(t, s.SetPreferredDevice(ctx, telemetry.KindHeartRate, "AA:BB:CC:DD:EE:03"))

	address, err = s.PreferredDevice(ctx, telemetry.KindHeartRate)
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:03", address)

	address, err = s.PreferredDevice(ctx, telemetry.KindIndoorBike)
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:02", address)
}
