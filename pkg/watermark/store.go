// Package watermark persists per-session taint across turns. A session's
// watermark is the worst trust level any past turn ever escalated to; it is
// read at the start of every new turn and folded into that turn's initial
// trust, so taint survives until the owner explicitly clears it.
package watermark

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	errorsx "github.com/openclaw/provenance-core/pkg/errors"
	"github.com/openclaw/provenance-core/pkg/trust"
)

// Entry is the persisted taint floor for one session. Extra holds any
// per-entry JSON keys this version of the store doesn't know about, so a
// newer writer's fields survive an older reader's reload-then-flush cycle.
type Entry struct {
	Level     trust.Level    `json:"level"`
	Reason    string         `json:"reason"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Extra     map[string]any `json:"-"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+3)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["level"] = e.Level
	out["reason"] = e.Reason
	out["updatedAt"] = e.UpdatedAt
	return json.Marshal(out)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	type entryKnown struct {
		Level     trust.Level `json:"level"`
		Reason    string      `json:"reason"`
		UpdatedAt time.Time   `json:"updatedAt"`
	}
	var known entryKnown
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	delete(raw, "level")
	delete(raw, "reason")
	delete(raw, "updatedAt")

	e.Level = known.Level
	e.Reason = known.Reason
	e.UpdatedAt = known.UpdatedAt
	if len(raw) > 0 {
		e.Extra = raw
	} else {
		e.Extra = nil
	}
	return nil
}

// Store is the single persistent map of session to watermark entry, backed
// by an atomic JSON file under <workspace>/.provenance/watermarks.json.
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	group   singleflight.Group
}

// Open loads (or lazily creates) the watermark store rooted at workspaceDir.
// A missing file is not an error: the store starts empty.
func Open(workspaceDir string) (*Store, error) {
	dir := filepath.Join(workspaceDir, ".provenance")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errorsx.Wrap(err, errorsx.CodeWatermarkIO, "create provenance directory")
	}
	path := filepath.Join(dir, "watermarks.json")

	s := &Store{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, errorsx.Wrap(err, errorsx.CodeWatermarkIO, "read watermark file")
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, errorsx.Wrap(err, errorsx.CodeWatermarkIO, "parse watermark file")
	}
	return s, nil
}

// Get returns the current watermark for session, if one exists.
func (s *Store) Get(session string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[session]
	return e, ok
}

// Escalate raises session's watermark to level if level is strictly worse
// than the existing entry (or there is none) and worse than owner/trusted.
// It updates the in-memory map only; callers call Flush to persist.
func (s *Store) Escalate(session string, level trust.Level, shortReason, longReason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if trust.Order(level) <= trust.Order(trust.LevelOwner) {
		return false
	}
	existing, ok := s.entries[session]
	if ok && trust.Order(level) <= trust.Order(existing.Level) {
		return false
	}

	reason := shortReason
	if longReason != "" {
		reason = longReason
	}
	s.entries[session] = Entry{
		Level:     level,
		Reason:    reason,
		UpdatedAt: time.Now(),
	}
	return true
}

// Clear removes session's watermark entry.
func (s *Store) Clear(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, session)
}

// ClearWithAudit removes session's watermark entry and returns the value
// that was removed, if any.
func (s *Store) ClearWithAudit(session string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[session]
	delete(s.entries, session)
	return e, ok
}

// Flush persists the current state atomically via write-temp-file +
// os.Rename. Concurrent flushes are coalesced through a singleflight group
// keyed on the store's path, so a burst of escalations across sessions
// collapses into one rename.
func (s *Store) Flush() error {
	_, err, _ := s.group.Do(s.path, func() (any, error) {
		s.mu.Lock()
		data, err := json.MarshalIndent(s.entries, "", "  ")
		s.mu.Unlock()
		if err != nil {
			return nil, errorsx.Wrap(err, errorsx.CodeWatermarkIO, "marshal watermark entries")
		}

		dir := filepath.Dir(s.path)
		tmp, err := os.CreateTemp(dir, "watermarks-*.json.tmp")
		if err != nil {
			return nil, errorsx.Wrap(err, errorsx.CodeWatermarkIO, "create temp watermark file")
		}
		tmpPath := tmp.Name()

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return nil, errorsx.Wrap(err, errorsx.CodeWatermarkIO, "write temp watermark file")
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmpPath)
			return nil, errorsx.Wrap(err, errorsx.CodeWatermarkIO, "close temp watermark file")
		}
		if err := os.Rename(tmpPath, s.path); err != nil {
			os.Remove(tmpPath)
			return nil, errorsx.Wrap(err, errorsx.CodeWatermarkIO, "rename watermark file into place")
		}
		return nil, nil
	})
	return err
}
