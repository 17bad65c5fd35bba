package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	sweep        SweepStats
}

// SweepStats accumulates dormant sweep outcomes.
type SweepStats struct {
	Runs          int64     `json:"runs"`
	SkippedTicks  int64     `json:"skipped_ticks"`
	Errors        int64     `json:"errors"`
	Transitioned  int64     `json:"transitioned"`
	RecordsFailed int64     `json:"records_failed"`
	LastRunAt     time.Time `json:"last_run_at,omitempty"`
	LastDuration  string    `json:"last_duration,omitempty"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests map[string]int64 `json:"requests"`
	Errors   map[string]int64 `json:"errors"`
	Sweep    SweepStats       `json:"sweep"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSweep records one completed sweep.
func (m *Metrics) RecordSweep(at time.Time, duration time.Duration, transitioned, failed int, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep.Runs++
	m.sweep.Transitioned += int64(transitioned)
	m.sweep.RecordsFailed += int64(failed)
	if err != nil {
		m.sweep.Errors++
	}
	m.sweep.LastRunAt = at
	m.sweep.LastDuration = duration.String()
}

// RecordSweepSkipped counts a tick dropped because a sweep was already running.
func (m *Metrics) RecordSweepSkipped() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep.SkippedTicks++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{Requests: map[string]int64{}, Errors: map[string]int64{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Requests: make(map[string]int64, len(m.requestCount)),
		Errors:   make(map[string]int64, len(m.errorCount)),
		Sweep:    m.sweep,
	}
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
