package provenance

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// ArchivedGraph pairs a sealed graph's summary with a time-sortable id so
// archive order and creation order agree without a separate index.
type ArchivedGraph struct {
	ID      string
	Session string
	Summary Summary
	data    []byte
}

// Archive is a bounded ring buffer of sealed graphs, keyed by ULID. Once
// full, inserting a new entry evicts the oldest.
type Archive struct {
	mu       sync.Mutex
	capacity int
	entries  []ArchivedGraph
}

// NewArchive creates a ring buffer holding at most capacity sealed graphs.
func NewArchive(capacity int) *Archive {
	if capacity <= 0 {
		capacity = 100
	}
	return &Archive{capacity: capacity}
}

// Add archives a sealed graph, evicting the oldest entry if the archive is
// at capacity.
func (a *Archive) Add(g *Graph) (string, error) {
	data, err := g.ToJSON()
	if err != nil {
		return "", err
	}
	entry := ArchivedGraph{
		ID:      ulid.Make().String(),
		Session: g.Session,
		Summary: g.Summary(),
		data:    data,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	if len(a.entries) > a.capacity {
		a.entries = a.entries[len(a.entries)-a.capacity:]
	}
	return entry.ID, nil
}

// Get returns the archived entry with the given id, if still retained.
func (a *Archive) Get(id string) (ArchivedGraph, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.ID == id {
			return e, true
		}
	}
	return ArchivedGraph{}, false
}

// Recent returns the n most recently archived entries for session, newest
// first.
func (a *Archive) Recent(session string, n int) []ArchivedGraph {
	a.mu.Lock()
	defer a.mu.Unlock()

	var matched []ArchivedGraph
	for i := len(a.entries) - 1; i >= 0 && len(matched) < n; i-- {
		if a.entries[i].Session == session {
			matched = append(matched, a.entries[i])
		}
	}
	return matched
}

// Len returns the number of entries currently retained.
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
