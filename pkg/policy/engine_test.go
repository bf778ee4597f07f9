package policy

import (
	"testing"

	"github.com/openclaw/provenance-core/pkg/provenance"
	"github.com/openclaw/provenance-core/pkg/trust"
)

func graphAtTaint(level trust.Level) *provenance.Graph {
	g := provenance.New("sess-1", trust.NewTable(nil))
	g.RecordContextAssembled(10, 1, level)
	return g
}

func TestBuildPolicyConfigDefaults(t *testing.T) {
	cfg, warnings := BuildPolicyConfig(RawPolicyInput{})
	if len(warnings) != 0 {
		t.Errorf("expected no warnings from default config, got %v", warnings)
	}
	if cfg.TaintPolicy[trust.ProjectedTrusted] != trust.ModeAllow {
		t.Errorf("trusted default = %v, want allow", cfg.TaintPolicy[trust.ProjectedTrusted])
	}
	if cfg.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d, want 10", cfg.MaxIterations)
	}
}

func TestBuildPolicyConfigLegacyLevelProjection(t *testing.T) {
	cfg, _ := BuildPolicyConfig(RawPolicyInput{
		TaintPolicy: map[string]string{"local": "allow", "owner": "allow", "system": "allow"},
	})
	if cfg.TaintPolicy[trust.ProjectedTrusted] != trust.ModeAllow {
		t.Errorf("expected legacy system/owner/local keys to project onto trusted")
	}
}

// Invariant 3: after validateMonotonicity, every adjacent (stricter, laxer)
// pair satisfies order(config[stricter]) <= order(config[laxer]).
func TestMonotonicityAutoCorrection(t *testing.T) {
	cfg, warnings := BuildPolicyConfig(RawPolicyInput{
		TaintPolicy: map[string]string{"local": "confirm", "shared": "allow"},
	})
	if len(warnings) == 0 {
		t.Fatal("expected a monotonicity warning")
	}
	if cfg.TaintPolicy[trust.ProjectedShared] != trust.ModeConfirm {
		t.Errorf("shared mode = %v, want confirm (lifted to match trusted)", cfg.TaintPolicy[trust.ProjectedShared])
	}
	for i := 1; i < len(projectionOrder); i++ {
		stricter := cfg.TaintPolicy[projectionOrder[i-1]]
		laxer := cfg.TaintPolicy[projectionOrder[i]]
		if trust.ModeOrder(stricter) > trust.ModeOrder(laxer) {
			t.Errorf("monotonicity violated: %v (%v) > %v (%v)", projectionOrder[i-1], stricter, projectionOrder[i], laxer)
		}
	}
}

// Invariant 4: GetToolMode is case-insensitive in the tool name.
func TestGetToolModeCaseInsensitive(t *testing.T) {
	cfg, _ := BuildPolicyConfig(RawPolicyInput{
		ToolOverrides: map[string]map[string]string{"Exec": {"*": "restrict"}},
	})
	if GetToolMode("exec", trust.LevelUntrusted, cfg) != trust.ModeRestrict {
		t.Error("lowercase lookup should see override registered with mixed case")
	}
	if GetToolMode("EXEC", trust.LevelUntrusted, cfg) != trust.ModeRestrict {
		t.Error("uppercase lookup should see override registered with mixed case")
	}
}

// Invariant 5: safe tools remain allow under every valid config unless the
// user explicitly overrides them.
func TestSafeToolsDefaultToAllow(t *testing.T) {
	cfg, _ := BuildPolicyConfig(RawPolicyInput{
		TaintPolicy: map[string]string{"untrusted": "restrict"},
	})
	if GetToolMode("read", trust.LevelUntrusted, cfg) != trust.ModeAllow {
		t.Error("safe tool 'read' should remain allow even under a restrictive taint policy")
	}
}

func TestSafeToolExplicitOverrideWins(t *testing.T) {
	cfg, _ := BuildPolicyConfig(RawPolicyInput{
		ToolOverrides: map[string]map[string]string{"read": {"*": "restrict"}},
	})
	if GetToolMode("read", trust.LevelUntrusted, cfg) != trust.ModeRestrict {
		t.Error("explicit override on a safe tool should replace the allow default")
	}
}

func TestToolOverrideReplacesNotStrictest(t *testing.T) {
	// A tool override of allow on an otherwise-restrictive policy must win
	// outright, not merge via strictest().
	cfg, _ := BuildPolicyConfig(RawPolicyInput{
		TaintPolicy:   map[string]string{"untrusted": "restrict"},
		ToolOverrides: map[string]map[string]string{"custom_tool": {"untrusted": "allow"}},
	})
	if GetToolMode("custom_tool", trust.LevelUntrusted, cfg) != trust.ModeAllow {
		t.Error("tool override should replace default, not take the strictest of the two")
	}
}

func TestUnknownToolGetsTaintDefault(t *testing.T) {
	cfg, _ := BuildPolicyConfig(RawPolicyInput{
		TaintPolicy: map[string]string{"untrusted": "restrict"},
	})
	if GetToolMode("never_seen_before", trust.LevelUntrusted, cfg) != trust.ModeRestrict {
		t.Error("unknown tool should receive the taint-default mode")
	}
}

func TestEvaluatePolicyBuckets(t *testing.T) {
	cfg, _ := BuildPolicyConfig(RawPolicyInput{})
	g := graphAtTaint(trust.LevelUntrusted)

	eval := EvaluatePolicy(g, []string{"read", "exec", "message"}, cfg)

	if !contains(eval.Allowed, "read") {
		t.Errorf("expected 'read' in Allowed, got %v", eval.Allowed)
	}
	foundExec := false
	for _, c := range eval.Confirm {
		if c.Tool == "exec" {
			foundExec = true
		}
	}
	if !foundExec {
		t.Errorf("expected 'exec' in Confirm, got %v", eval.Confirm)
	}
}

// Invariant 6: approvals cannot elevate restrict to allow; they can only
// convert confirm to allow.
type fakeApprovals struct {
	approved map[string]bool
}

func (f *fakeApprovals) IsApproved(session, tool string) bool {
	return f.approved[tool]
}

func TestApprovalsCannotBypassRestrict(t *testing.T) {
	cfg, _ := BuildPolicyConfig(RawPolicyInput{
		TaintPolicy: map[string]string{"untrusted": "restrict"},
	})
	g := graphAtTaint(trust.LevelUntrusted)
	approvals := &fakeApprovals{approved: map[string]bool{"exec": true}}

	res := EvaluateWithApprovals(g, []string{"exec"}, cfg, approvals, "sess-1")

	if !contains(res.ToolRemovals, "exec") {
		t.Error("restrict-mode tool must remain removed even when approved")
	}
	if res.Mode != trust.ModeRestrict {
		t.Errorf("Mode = %v, want restrict", res.Mode)
	}
}

func TestApprovalsConvertConfirmToAllow(t *testing.T) {
	cfg, _ := BuildPolicyConfig(RawPolicyInput{})
	g := graphAtTaint(trust.LevelUntrusted)
	approvals := &fakeApprovals{approved: map[string]bool{"exec": true}}

	res := EvaluateWithApprovals(g, []string{"exec"}, cfg, approvals, "sess-1")

	if contains(res.ToolRemovals, "exec") {
		t.Error("approved confirm-mode tool should not be removed")
	}
	if len(res.PendingConfirmations) != 0 {
		t.Errorf("approved tool should not still be pending, got %v", res.PendingConfirmations)
	}
}

// S7 — restrict mode cannot be bypassed even by a valid-looking approval.
func TestScenarioS7RestrictCannotBeBypassed(t *testing.T) {
	cfg, _ := BuildPolicyConfig(RawPolicyInput{
		TaintPolicy: map[string]string{"untrusted": "restrict"},
	})
	g := graphAtTaint(trust.LevelUntrusted)
	approvals := &fakeApprovals{approved: map[string]bool{"exec": true}}

	res := EvaluateWithApprovals(g, []string{"exec"}, cfg, approvals, "sess-1")
	if !contains(res.ToolRemovals, "exec") {
		t.Error("exec should remain removed under restrict")
	}
	if len(res.PendingConfirmations) != 0 {
		t.Error("no pending confirmations should be issued under restrict")
	}
}

// S8 — monotonicity auto-correction.
func TestScenarioS8MonotonicityAutoCorrection(t *testing.T) {
	cfg, warnings := BuildPolicyConfig(RawPolicyInput{
		TaintPolicy: map[string]string{"local": "confirm", "shared": "allow"},
	})
	if len(warnings) == 0 {
		t.Fatal("expected a load warning")
	}
	if cfg.TaintPolicy[trust.ProjectedShared] != trust.ModeConfirm {
		t.Errorf("corrected shared mode = %v, want confirm", cfg.TaintPolicy[trust.ProjectedShared])
	}
}

func contains(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}
