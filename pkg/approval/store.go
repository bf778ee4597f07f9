// Package approval issues short, cryptographically unpredictable codes
// that let an owner confirm one or more pending tool calls out of band,
// and tracks which tools are currently approved for a session.
package approval

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	errorsx "github.com/openclaw/provenance-core/pkg/errors"
)

const (
	defaultTTL = 60 * time.Second
	maxTTL     = 120 * time.Second
	reuseWindow = 5 * time.Second
)

// Grant is one approved tool (or "*" for all) for a session. A nil
// ExpiresAt means the grant is turn-scoped.
type Grant struct {
	Target    string
	ExpiresAt *time.Time
}

// Batch is a pending set of tools awaiting a single approval code. The
// code itself is the batch's only external identity.
type Batch struct {
	Code      string
	CreatedAt time.Time
	TTL       time.Duration
	Tools     []string
	Session   string
}

func (b Batch) expired(now time.Time) bool {
	return now.After(b.CreatedAt.Add(b.TTL))
}

// Store holds the approved-grant table and the pending approval-code
// batches. Batches are keyed by code so a code presented against the wrong
// session can be told apart from one that is simply unknown or expired. A
// session-to-code index keeps the "does this session have a live batch"
// lookups used by AddPendingBatch/GetCurrentCode O(1). All methods are safe
// for concurrent use.
type Store struct {
	mu            sync.Mutex
	approvals     map[string][]Grant
	pending       map[string]Batch // keyed by code
	codeBySession map[string]string
	ttl           time.Duration
}

// NewStore creates an approval store. ttlSeconds above 120 is clamped to
// 120; 0 or a negative value selects the default of 60 seconds.
func NewStore(ttlSeconds int) *Store {
	ttl := defaultTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
		if ttl > maxTTL {
			ttl = maxTTL
		}
	}
	return &Store{
		approvals:     make(map[string][]Grant),
		pending:       make(map[string]Batch),
		codeBySession: make(map[string]string),
		ttl:           ttl,
	}
}

// generateCode returns an 8-hex-character code from a cryptographic RNG.
func generateCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// AddPendingBatch registers a new batch of tools awaiting approval and
// returns its code. If a live batch already exists for session with at
// least 5 seconds remaining, its code is reused instead of minting a new
// one, so a session never has two live codes at once.
func (s *Store) AddPendingBatch(session string, tools []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existingCode, ok := s.codeBySession[session]; ok {
		if existing, ok := s.pending[existingCode]; ok && !existing.expired(now) {
			remaining := existing.CreatedAt.Add(existing.TTL).Sub(now)
			if remaining >= reuseWindow {
				existing.Tools = mergeTools(existing.Tools, tools)
				s.pending[existingCode] = existing
				return existing.Code, nil
			}
		}
	}

	code, err := generateCode()
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.CodeInternal, "generate approval code")
	}
	s.pending[code] = Batch{
		Code:      code,
		CreatedAt: now,
		TTL:       s.ttl,
		Tools:     tools,
		Session:   session,
	}
	s.codeBySession[session] = code
	return code, nil
}

func mergeTools(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := append([]string{}, existing...)
	for _, t := range existing {
		seen[t] = true
	}
	for _, t := range incoming {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	return merged
}

// GetCurrentCode returns the live code for session, if any.
func (s *Store) GetCurrentCode(session string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codeBySession[session]
	if !ok {
		return "", false
	}
	b, ok := s.pending[code]
	if !ok || b.expired(time.Now()) {
		return "", false
	}
	return b.Code, true
}

// GetCodeTTLSeconds returns the remaining TTL in seconds for session's live
// code, or 0 if there is none.
func (s *Store) GetCodeTTLSeconds(session string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codeBySession[session]
	if !ok {
		return 0
	}
	b, ok := s.pending[code]
	if !ok {
		return 0
	}
	now := time.Now()
	if b.expired(now) {
		return 0
	}
	remaining := b.CreatedAt.Add(b.TTL).Sub(now)
	return int(remaining.Seconds())
}

// ApproveWithCode validates code for session and, on success, grants
// target ("all" or a specific tool name) approval. durationMinutes, if
// non-nil, makes the grant timed; otherwise it is turn-scoped.
func (s *Store) ApproveWithCode(session, target, code string, durationMinutes *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.lookupByCode(code)
	if !ok {
		return errorsx.New(errorsx.CodeInvalidApprovalCode, "approval code does not match").
			WithContext("session", session)
	}
	if batch.Session != session {
		return errorsx.New(errorsx.CodeWrongSession, "approval code belongs to a different session").
			WithContext("session", session)
	}
	if batch.expired(time.Now()) {
		s.deleteBatch(batch)
		return errorsx.New(errorsx.CodeExpiredApprovalCode, "approval code has expired").
			WithContext("session", session)
	}

	var expiresAt *time.Time
	if durationMinutes != nil {
		t := time.Now().Add(time.Duration(*durationMinutes) * time.Minute)
		expiresAt = &t
	}

	if strings.EqualFold(target, "all") {
		for _, tool := range batch.Tools {
			s.approvals[session] = append(s.approvals[session], Grant{Target: tool, ExpiresAt: expiresAt})
		}
	} else {
		s.approvals[session] = append(s.approvals[session], Grant{Target: target, ExpiresAt: expiresAt})
	}

	s.deleteBatch(batch)
	return nil
}

// lookupByCode finds a pending batch by its approval code, case-insensitive.
func (s *Store) lookupByCode(code string) (Batch, bool) {
	for _, b := range s.pending {
		if strings.EqualFold(b.Code, code) {
			return b, true
		}
	}
	return Batch{}, false
}

// deleteBatch removes a batch and its session index entry.
func (s *Store) deleteBatch(b Batch) {
	delete(s.pending, b.Code)
	if s.codeBySession[b.Session] == b.Code {
		delete(s.codeBySession, b.Session)
	}
}

// IsApproved reports whether tool is currently approved for session, either
// via a wildcard grant or a tool-specific one, accounting for expiry.
func (s *Store) IsApproved(session, tool string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, g := range s.approvals[session] {
		if g.ExpiresAt != nil && now.After(*g.ExpiresAt) {
			continue
		}
		if g.Target == "*" || strings.EqualFold(g.Target, "all") || strings.EqualFold(g.Target, tool) {
			return true
		}
	}
	return false
}

// ClearTurnScoped drops every grant for session whose ExpiresAt is absent;
// timed grants survive.
func (s *Store) ClearTurnScoped(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []Grant
	for _, g := range s.approvals[session] {
		if g.ExpiresAt != nil {
			kept = append(kept, g)
		}
	}
	if len(kept) == 0 {
		delete(s.approvals, session)
		return
	}
	s.approvals[session] = kept
}

// ClearAll removes every grant and pending batch for session.
func (s *Store) ClearAll(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.approvals, session)
	if code, ok := s.codeBySession[session]; ok {
		delete(s.pending, code)
		delete(s.codeBySession, session)
	}
}
