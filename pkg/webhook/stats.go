package webhook

import (
	"sync/atomic"
	"time"
)

// Stats counts deliveries by outcome for the health endpoint. Counts live only as long
// as the process.
type Stats struct {
	started  time.Time
	received atomic.Int64
	skipped  atomic.Int64
	aborted  atomic.Int64
	empty    atomic.Int64
	notified atomic.Int64
	failed   atomic.Int64
}

// NewStats creates a Stats with the start time set to now.
func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Uptime     string `json:"uptime"`
	Received   int64  `json:"received"`
	Skipped    int64  `json:"skipped"`
	Aborted    int64  `json:"aborted"`
	Empty      int64  `json:"empty_panel"`
	Notified   int64  `json:"notified"`
	PostFailed int64  `json:"post_failed"`
}

func (s *Stats) recordReceived() {
	s.received.Add(1)
}

// recordPostFailure counts a delivery that reached DONE but whose comment was rejected.
func (s *Stats) recordPostFailure() {
	s.failed.Add(1)
}

func (s *Stats) record(stage Stage) {
	switch stage {
	case StageSkipped:
		s.skipped.Add(1)
	case StageAborted:
		s.aborted.Add(1)
	case StageEmptyPanel:
		s.empty.Add(1)
	case StageDone:
		s.notified.Add(1)
	default:
	}
}

// Snapshot returns the current counts.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Received:   s.received.Load(),
		Skipped:    s.skipped.Load(),
		Aborted:    s.aborted.Load(),
		Empty:      s.empty.Load(),
		Notified:   s.notified.Load(),
		PostFailed: s.failed.Load(),
	}
	if !s.started.IsZero() {
		snap.Uptime = time.Since(s.started).Round(time.Second).String()
	}
	return snap
}
