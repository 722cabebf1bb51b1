package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPollerRefreshesOnInterval(t *testing.T) {
	var calls atomic.Int32
	p := New(10*time.Millisecond, func(context.Context) { calls.Add(1) }, zap.NewNop())

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestPollerStopHalts(t *testing.T) {
	var calls atomic.Int32
	p := New(5*time.Millisecond, func(context.Context) { calls.Add(1) }, zap.NewNop())

	p.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)
	p.Stop()

	settled := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), settled+1)
}

func TestPollerStartIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	p := New(time.Hour, func(context.Context) { calls.Add(1) }, zap.NewNop())

	p.Start(context.Background())
	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHealthMonitor(t *testing.T) {
	monitor := NewHealthMonitor(
		Check{Name: "database", Probe: func(context.Context) error { return nil }},
		Check{Name: "enrichment", Probe: func(context.Context) error { return errors.New("connection refused") }},
	)

	assert.Equal(t, "unknown", monitor.Snapshot().Status)

	monitor.Refresh(context.Background())
	snap := monitor.Snapshot()
	assert.Equal(t, "degraded", snap.Status)
	require.Len(t, snap.Components, 2)
	assert.True(t, snap.Components[0].Healthy)
	assert.False(t, snap.Components[1].Healthy)
	assert.Equal(t, "connection refused", snap.Components[1].Error)
	assert.False(t, snap.CheckedAt.IsZero())
}

func TestHealthMonitorAllHealthy(t *testing.T) {
	monitor := NewHealthMonitor(
		Check{Name: "database", Probe: func(context.Context) error { return nil }},
	)
	monitor.Refresh(context.Background())
	assert.Equal(t, "healthy", monitor.Snapshot().Status)
}
