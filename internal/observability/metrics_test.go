package observability

import (
	"errors"
	"testing"
	"time"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/account/:userId", "GET", 200, time.Millisecond)
	m.RecordRequest("/api/account/:userId", "GET", 200, time.Millisecond)
	m.RecordError("/api/account/:userId", "GET", "NOT_FOUND")

	at := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	m.RecordSweep(at, 2*time.Second, 3, 1, nil)
	m.RecordSweep(at.Add(time.Minute), time.Second, 2, 0, errors.New("db down"))
	m.RecordSweepSkipped()

	snap := m.Snapshot()
	if got := snap.Requests["/api/account/:userId|GET|200"]; got != 2 {
		t.Errorf("request count = %d, want 2", got)
	}
	if got := snap.Errors["/api/account/:userId|GET|NOT_FOUND"]; got != 1 {
		t.Errorf("error count = %d, want 1", got)
	}

	want := SweepStats{
		Runs:          2,
		SkippedTicks:  1,
		Errors:        1,
		Transitioned:  5,
		RecordsFailed: 1,
		LastRunAt:     at.Add(time.Minute),
		LastDuration:  "1s",
	}
	if snap.Sweep != want {
		t.Errorf("Sweep = %+v, want %+v", snap.Sweep, want)
	}

	snap.Requests["mutated"] = 1
	if _, ok := m.Snapshot().Requests["mutated"]; ok {
		t.Error("Snapshot should return a copy")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordError("/", "GET", "X")
	m.RecordSweep(time.Now(), 0, 0, 0, nil)
	m.RecordSweepSkipped()
	if snap := m.Snapshot(); len(snap.Requests) != 0 {
		t.Errorf("nil snapshot = %+v", snap)
	}
}
