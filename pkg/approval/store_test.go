package approval

import (
	"regexp"
	"testing"
	"time"
)

var hexCodePattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

func TestAddPendingBatchReturnsHexCode(t *testing.T) {
	s := NewStore(60)
	code, err := s.AddPendingBatch("sess-1", []string{"exec"})
	if err != nil {
		t.Fatalf("AddPendingBatch failed: %v", err)
	}
	if !hexCodePattern.MatchString(code) {
		t.Errorf("code %q does not match 8-hex-char format", code)
	}
}

func TestAddPendingBatchReusesLiveCode(t *testing.T) {
	s := NewStore(60)
	code1, _ := s.AddPendingBatch("sess-1", []string{"exec"})
	code2, _ := s.AddPendingBatch("sess-1", []string{"web_fetch"})

	if code1 != code2 {
		t.Error("expected live batch's code to be reused, not a new one issued")
	}
}

func TestGetCurrentCodeAndTTL(t *testing.T) {
	s := NewStore(60)
	code, _ := s.AddPendingBatch("sess-1", []string{"exec"})

	got, ok := s.GetCurrentCode("sess-1")
	if !ok || got != code {
		t.Errorf("GetCurrentCode = (%q, %v), want (%q, true)", got, ok, code)
	}

	ttl := s.GetCodeTTLSeconds("sess-1")
	if ttl <= 0 || ttl > 60 {
		t.Errorf("GetCodeTTLSeconds = %d, want in (0, 60]", ttl)
	}
}

func TestApproveWithCodeSpecificTool(t *testing.T) {
	s := NewStore(60)
	code, _ := s.AddPendingBatch("sess-1", []string{"exec", "web_fetch"})

	minutes := 5
	if err := s.ApproveWithCode("sess-1", "exec", code, &minutes); err != nil {
		t.Fatalf("ApproveWithCode failed: %v", err)
	}

	if !s.IsApproved("sess-1", "exec") {
		t.Error("expected exec to be approved")
	}
	if s.IsApproved("sess-1", "web_fetch") {
		t.Error("web_fetch should not be approved; only exec was targeted")
	}
}

func TestApproveWithCodeAll(t *testing.T) {
	s := NewStore(60)
	code, _ := s.AddPendingBatch("sess-1", []string{"exec", "web_fetch"})

	if err := s.ApproveWithCode("sess-1", "all", code, nil); err != nil {
		t.Fatalf("ApproveWithCode failed: %v", err)
	}

	if !s.IsApproved("sess-1", "exec") || !s.IsApproved("sess-1", "web_fetch") {
		t.Error("expected both pending tools approved via 'all'")
	}
}

func TestApproveWithCodeInvalid(t *testing.T) {
	s := NewStore(60)
	s.AddPendingBatch("sess-1", []string{"exec"})

	err := s.ApproveWithCode("sess-1", "exec", "00000000", nil)
	if !errorsxIsCode(err, "INVALID_APPROVAL_CODE") {
		t.Errorf("expected invalid-code error, got %v", err)
	}
}

func TestApproveWithCodeWrongSession(t *testing.T) {
	s := NewStore(60)
	code, _ := s.AddPendingBatch("sess-1", []string{"exec"})

	err := s.ApproveWithCode("sess-2", "exec", code, nil)
	if !errorsxIsCode(err, "WRONG_SESSION") {
		t.Errorf("expected wrong-session error when sess-1's code is presented by sess-2, got %v", err)
	}
}

func TestApproveWithCodeUnknownIsInvalid(t *testing.T) {
	s := NewStore(60)
	s.AddPendingBatch("sess-1", []string{"exec"})

	err := s.ApproveWithCode("sess-1", "exec", "ffffffff", nil)
	if !errorsxIsCode(err, "INVALID_APPROVAL_CODE") {
		t.Errorf("expected invalid-code error for an unknown code, got %v", err)
	}
}

func TestApproveWithCodeExpired(t *testing.T) {
	s := NewStore(1)
	code, _ := s.AddPendingBatch("sess-1", []string{"exec"})

	time.Sleep(1100 * time.Millisecond)

	err := s.ApproveWithCode("sess-1", "exec", code, nil)
	if !errorsxIsCode(err, "EXPIRED_APPROVAL_CODE") {
		t.Errorf("expected expired-code error, got %v", err)
	}
}

// Invariant 7: a code cannot be replayed.
func TestApprovalCodeCannotBeReplayed(t *testing.T) {
	s := NewStore(60)
	code, _ := s.AddPendingBatch("sess-1", []string{"exec"})

	if err := s.ApproveWithCode("sess-1", "exec", code, nil); err != nil {
		t.Fatalf("first approval should succeed: %v", err)
	}

	if err := s.ApproveWithCode("sess-1", "exec", code, nil); err == nil {
		t.Error("replaying the same code should fail")
	}
}

func TestTurnScopedApprovalDefault(t *testing.T) {
	s := NewStore(60)
	code, _ := s.AddPendingBatch("sess-1", []string{"exec"})
	s.ApproveWithCode("sess-1", "exec", code, nil)

	if !s.IsApproved("sess-1", "exec") {
		t.Fatal("expected exec approved before clear")
	}
	s.ClearTurnScoped("sess-1")
	if s.IsApproved("sess-1", "exec") {
		t.Error("turn-scoped approval should be cleared")
	}
}

func TestTimedApprovalSurvivesTurnClear(t *testing.T) {
	s := NewStore(60)
	code, _ := s.AddPendingBatch("sess-1", []string{"exec"})
	minutes := 5
	s.ApproveWithCode("sess-1", "exec", code, &minutes)

	s.ClearTurnScoped("sess-1")
	if !s.IsApproved("sess-1", "exec") {
		t.Error("timed approval should survive clear_turn_scoped")
	}
}

func TestClearAllRemovesEverything(t *testing.T) {
	s := NewStore(60)
	code, _ := s.AddPendingBatch("sess-1", []string{"exec"})
	minutes := 5
	s.ApproveWithCode("sess-1", "exec", code, &minutes)

	s.ClearAll("sess-1")
	if s.IsApproved("sess-1", "exec") {
		t.Error("expected all approvals cleared")
	}
	if _, ok := s.GetCurrentCode("sess-1"); ok {
		t.Error("expected no pending code after ClearAll")
	}
}

func TestApproveAllOnlyCoversBatchTools(t *testing.T) {
	s := NewStore(60)
	code, _ := s.AddPendingBatch("sess-1", []string{"exec", "web_fetch"})
	s.ApproveWithCode("sess-1", "all", code, nil)

	if s.IsApproved("sess-1", "never_in_any_batch") {
		t.Error("'all' should only approve tools that were in the pending batch")
	}
}
