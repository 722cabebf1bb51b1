package poller

import (
	"context"
	"sync"
	"time"
)

// ComponentStatus is one dependency's health as of the last poll.
type ComponentStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Snapshot is what GET /admin/system/health serves. It is refreshed by the
// poller, never computed inline, so the endpoint stays cheap.
type Snapshot struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// Check probes one dependency.
type Check struct {
	Name  string
	Probe func(context.Context) error
}

// HealthMonitor holds the mutex-guarded snapshot the handlers read.
type HealthMonitor struct {
	checks []Check

	mu       sync.RWMutex
	snapshot Snapshot
}

func NewHealthMonitor(checks ...Check) *HealthMonitor {
	return &HealthMonitor{
		checks:   checks,
		snapshot: Snapshot{Status: "unknown"},
	}
}

// Refresh runs every probe and swaps in a fresh snapshot.
func (h *HealthMonitor) Refresh(ctx context.Context) {
	components := make([]ComponentStatus, 0, len(h.checks))
	status := "healthy"
	for _, check := range h.checks {
		cs := ComponentStatus{Name: check.Name, Healthy: true}
		if err := check.Probe(ctx); err != nil {
			cs.Healthy = false
			cs.Error = err.Error()
			status = "degraded"
		}
		components = append(components, cs)
	}

	h.mu.Lock()
	h.snapshot = Snapshot{
		Status:     status,
		Components: components,
		CheckedAt:  time.Now().UTC(),
	}
	h.mu.Unlock()
}

func (h *HealthMonitor) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}
