package telemetry

import (
	"sync"
	"time"
)

// HealthTracker aggregates heartbeats from long-running loops. A loop
// registers once and beats on every iteration; a loop that stops beating
// for longer than its interval marks the whole report degraded.
type HealthTracker struct {
	mu    sync.Mutex
	loops map[string]*Heartbeat
}

// HealthReport is the /healthz payload.
type HealthReport struct {
	Status string            `json:"status"`
	Loops  map[string]string `json:"loops,omitempty"`
}

// Heartbeat is one registered loop's liveness signal.
type Heartbeat struct {
	mu       sync.Mutex
	interval time.Duration
	lastBeat time.Time
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{loops: make(map[string]*Heartbeat)}
}

// Register adds a loop expected to beat at least once per interval.
func (t *HealthTracker) Register(name string, interval time.Duration) *Heartbeat {
	beat := &Heartbeat{interval: interval}
	t.mu.Lock()
	t.loops[name] = beat
	t.mu.Unlock()
	return beat
}

// Beat records liveness.
func (b *Heartbeat) Beat() {
	b.mu.Lock()
	b.lastBeat = time.Now()
	b.mu.Unlock()
}

func (b *Heartbeat) stale(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastBeat.IsZero() {
		return true
	}
	return now.Sub(b.lastBeat) > b.interval
}

// Report summarizes the registered loops. No registered loops means ok.
func (t *HealthTracker) Report() HealthReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	report := HealthReport{Status: "ok"}
	if len(t.loops) == 0 {
		return report
	}

	now := time.Now()
	report.Loops = make(map[string]string, len(t.loops))
	for name, beat := range t.loops {
		if beat.stale(now) {
			report.Loops[name] = "stale"
			report.Status = "degraded"
			continue
		}
		report.Loops[name] = "ok"
	}
	return report
}
