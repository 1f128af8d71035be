package mock

import (
	"context"
	"testing"
	"time"

	"github.com/spooltrack/blescale/pkg/scale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScript() []scale.Reading {
	return []scale.Reading{
		{Weight: 0, Stable: true, Unit: scale.UnitGrams},
		{Weight: 41.6, Stable: false, Unit: scale.UnitGrams},
		{Weight: 92, Stable: true, Unit: scale.UnitGrams},
	}
}

func TestLifecycle(t *testing.T) {
	m := New(WithScript(testScript()), WithInterval(time.Millisecond))

	var states []scale.State
	m.SetStateChangeHandler(func(status scale.ConnectionStatus) {
		states = append(states, status.State)
	})

	require.NoError(t, m.Connect(context.Background()))
	assert.Contains(t, states, scale.StateConnecting)
	assert.Contains(t, states, scale.StateServicesDiscovered)

	info := m.DeviceInfo()
	assert.True(t, info.Connected)
	assert.Equal(t, "mock", info.Protocol)
	require.NotNil(t, info.Battery)
	assert.Equal(t, 100, *info.Battery)

	require.NoError(t, m.Disconnect())
	assert.False(t, m.DeviceInfo().Connected)

	// Idempotent from any state
	require.NoError(t, m.Disconnect())
	require.NoError(t, m.Close())
}

func TestScriptedReadings(t *testing.T) {
	m := New(WithScript(testScript()), WithInterval(time.Millisecond))

	readingChan := make(chan scale.Reading, 16)
	m.SetReadingChannel(readingChan)

	require.NoError(t, m.Connect(context.Background()))
	defer func() {
		require.NoError(t, m.Close())
	}()

	require.NoError(t, m.StartContinuousReading())

	select {
	case r := <-readingChan:
		assert.Equal(t, scale.UnitGrams, r.Unit)
		assert.False(t, r.TimeStamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected a scripted reading")
	}

	current, ok := m.CurrentReading()
	require.True(t, ok)
	assert.Equal(t, scale.UnitGrams, current.Unit)

	r, err := m.SingleReading(context.Background())
	require.NoError(t, err)
	assert.Equal(t, current.Unit, r.Unit)

	require.NoError(t, m.StopContinuousReading())
}

func TestTareShiftsBaseline(t *testing.T) {
	m := New(WithScript([]scale.Reading{
		{Weight: 250, Stable: true, Unit: scale.UnitGrams},
	}), WithInterval(time.Millisecond))

	readingChan := make(chan scale.Reading, 16)
	m.SetReadingChannel(readingChan)

	require.NoError(t, m.Connect(context.Background()))
	defer func() {
		require.NoError(t, m.Close())
	}()
	require.NoError(t, m.StartContinuousReading())

	select {
	case r := <-readingChan:
		assert.Equal(t, 250.0, r.Weight)
	case <-time.After(time.Second):
		t.Fatal("expected a reading before tare")
	}

	require.True(t, m.Tare(context.Background()).OK())

	assert.Eventually(t, func() bool {
		r, ok := m.CurrentReading()
		return ok && r.Weight == 0
	}, time.Second, time.Millisecond, "post-tare readings must be shifted to the new baseline")
}

func TestCommandsWithoutConnection(t *testing.T) {
	m := New()

	assert.Equal(t, scale.ResultError, m.Tare(context.Background()).Kind)
	assert.ErrorIs(t, m.StartContinuousReading(), scale.ErrNotConnected)

	_, err := m.SingleReading(context.Background())
	assert.ErrorIs(t, err, scale.ErrNotConnected)
}

func TestSupports(t *testing.T) {
	m := New()

	assert.True(t, m.Supports(scale.CommandTare))
	assert.True(t, m.Supports(scale.CommandGetBatteryLevel))
	assert.False(t, m.Supports(scale.CommandSetUnit))
	assert.False(t, m.Supports(scale.CommandEnterCalibration))
}
