package scoring

import (
	"sync"
	"time"
)

const (
	// maxTrackedEvents bounds the telemetry ring.
	maxTrackedEvents = 100
	// eventTTL expires outcomes; an hour-old fallback says nothing about
	// the reasoner's health now.
	eventTTL = time.Hour
	// minSampleSize is the floor below which FallbackRate declines to
	// answer.
	minSampleSize = 5
)

type outcome struct {
	at       time.Time
	fallback bool
}

// Tracker is a process-local sliding window of scoring outcomes. It is not
// persisted; a restart resets history, which conservatively forces the
// deterministic path until a fresh sample accumulates.
type Tracker struct {
	mu     sync.Mutex
	events []outcome
	now    func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Record appends one outcome and trims the window in the same critical
// section, so concurrent writers never lose an append.
func (t *Tracker) Record(fallback bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.events = append(t.events, outcome{at: t.now(), fallback: fallback})
	t.trim()
}

// Count returns the number of live events.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.trim()
	return len(t.events)
}

// FallbackRate returns the share of live events that were fallbacks, or nil
// when fewer than five events remain - too small a sample to trust.
func (t *Tracker) FallbackRate() *float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.trim()
	if len(t.events) < minSampleSize {
		return nil
	}

	fallbacks := 0
	for _, e := range t.events {
		if e.fallback {
			fallbacks++
		}
	}
	rate := float64(fallbacks) / float64(len(t.events))
	return &rate
}

// trim drops expired events and caps the ring. Callers hold t.mu.
func (t *Tracker) trim() {
	cutoff := t.now().Add(-eventTTL)
	first := 0
	for first < len(t.events) && t.events[first].at.Before(cutoff) {
		first++
	}
	t.events = t.events[first:]

	if len(t.events) > maxTrackedEvents {
		t.events = t.events[len(t.events)-maxTrackedEvents:]
	}
}
