package store

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no cycle outcome matches a query.
	ErrNotFound = errors.New("no cycle history")
)

// Entry records the outcome of one cycle that ran.
type Entry struct {
	At           time.Time `json:"at"`
	Result       string    `json:"result"`
	BackoffState string    `json:"backoff_state"`
	AttemptCount uint      `json:"attempt_count"`
	ForecastDays int       `json:"forecast_days"`
	Error        string    `json:"error,omitempty"`
}

// History is a concurrency-safe in-memory log of cycle outcomes.
type History struct {
	mu sync.RWMutex

	entries []Entry

	// retention configuration
	maxEntries int           // max number of entries kept
	maxAge     time.Duration // max age relative to the newest entry
}

// NewHistory creates a History with optional limits.
// If maxEntries or maxAge is <= 0, that limit is disabled.
func NewHistory(maxEntries int, maxAge time.Duration) *History {
	return &History{
		maxEntries: maxEntries,
		maxAge:     maxAge,
	}
}

// Record appends e and enforces retention. Entries are expected in time order.
func (h *History) Record(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, e)

	// Enforce retention by count.
	if h.maxEntries > 0 && len(h.entries) > h.maxEntries {
		over := len(h.entries) - h.maxEntries
		h.entries = append([]Entry(nil), h.entries[over:]...)
	}

	// Enforce retention by age, measured from the entry just recorded.
	if h.maxAge > 0 {
		cutoff := e.At.Add(-h.maxAge)
		i := 0
		for ; i < len(h.entries); i++ {
			if !h.entries[i].At.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			h.entries = append([]Entry(nil), h.entries[i:]...)
		}
	}
}

// Latest returns the most recent entry.
func (h *History) Latest() (Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.entries) == 0 {
		return Entry{}, ErrNotFound
	}
	return h.entries[len(h.entries)-1], nil
}

// Range returns all entries between from and to (inclusive).
func (h *History) Range(from, to time.Time) ([]Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []Entry
	for _, e := range h.entries {
		if !e.At.Before(from) && !e.At.After(to) {
			result = append(result, e)
		}
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
