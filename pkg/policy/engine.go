package policy

import (
	"fmt"

	"github.com/openclaw/provenance-core/pkg/provenance"
	"github.com/openclaw/provenance-core/pkg/trust"
)

// BuildPolicyConfig assembles the canonical Config from defaults and
// user-supplied overrides, auto-correcting any monotonicity violation.
func BuildPolicyConfig(input RawPolicyInput) (*Config, []string) {
	cfg := &Config{
		TaintPolicy:   defaultTaintPolicy(),
		ToolOverrides: map[string]ToolOverride{},
		MaxIterations: 10,
	}
	for _, tool := range defaultSafeTools {
		cfg.ToolOverrides[tool] = ToolOverride{"*": trust.ModeAllow}
	}
	// gateway defaults to confirm at every level except system.
	cfg.ToolOverrides["gateway"] = ToolOverride{string(trust.LevelSystem): trust.ModeAllow, "*": trust.ModeConfirm}
	if input.MaxIterations > 0 {
		cfg.MaxIterations = input.MaxIterations
	}

	for key, modeStr := range input.TaintPolicy {
		proj, ok := legacyLevelToProjection[normalizeKey(key)]
		if !ok {
			continue
		}
		mode := trust.Mode(normalizeKey(modeStr))
		if trust.ValidMode(mode) {
			cfg.TaintPolicy[proj] = mode
		}
	}

	warnings := validateMonotonicity(cfg.TaintPolicy)

	for tool, levels := range input.ToolOverrides {
		key := normalizeKey(tool)
		if cfg.ToolOverrides[key] == nil {
			cfg.ToolOverrides[key] = ToolOverride{}
		}
		for levelKey, modeStr := range levels {
			mode := trust.Mode(normalizeKey(modeStr))
			if !trust.ValidMode(mode) {
				continue
			}
			cfg.ToolOverrides[key][normalizeKey(levelKey)] = mode
		}
	}

	return cfg, warnings
}

// validateMonotonicity walks the projection order strictest to laxest; if a
// laxer entry is strictly more permissive than the stricter one before it,
// it is lifted to match and a warning recorded. The taint policy map is
// mutated in place.
func validateMonotonicity(tp TaintPolicy) []string {
	var warnings []string
	for i := 1; i < len(projectionOrder); i++ {
		stricter := projectionOrder[i-1]
		laxer := projectionOrder[i]
		strictMode, ok1 := tp[stricter]
		laxMode, ok2 := tp[laxer]
		if !ok1 || !ok2 {
			continue
		}
		if trust.ModeOrder(laxMode) < trust.ModeOrder(strictMode) {
			warnings = append(warnings, fmt.Sprintf(
				"taint policy for %q (%s) is laxer than %q (%s); lifted to %s",
				laxer, laxMode, stricter, strictMode, strictMode))
			tp[laxer] = strictMode
		}
	}
	return warnings
}

// GetToolMode resolves the effective mode for tool at currentTaint.
// Lookups are case-insensitive. A per-level override replaces the
// taint-policy default: an entry for currentTaint itself wins, then one for
// its 4-level projection; absent both, a "*" override replaces it; absent
// any, the taint-policy default for currentTaint's projection applies.
func GetToolMode(tool string, currentTaint trust.Level, cfg *Config) trust.Mode {
	proj := trust.Project(currentTaint)
	mode, ok := cfg.TaintPolicy[proj]
	if !ok {
		mode = trust.ModeConfirm
	}

	key := normalizeKey(tool)
	if override, ok := cfg.ToolOverrides[key]; ok {
		if m, ok := override[normalizeKey(string(currentTaint))]; ok {
			return m
		}
		levelKey := normalizeKey(string(proj))
		if m, ok := override[levelKey]; ok {
			return m
		}
		if m, ok := override["*"]; ok {
			return m
		}
	}
	return mode
}

// Evaluation is the outcome of evaluating a batch of tool names against a
// policy config at the graph's current taint.
type Evaluation struct {
	Allowed              []string
	Confirm              []ConfirmEntry
	Restricted           []string
	DefaultMode          trust.Mode
	MaxIterationsExceeded bool
}

// ConfirmEntry names a tool that requires confirmation, and why.
type ConfirmEntry struct {
	Tool   string
	Reason string
}

// EvaluatePolicy classifies each of toolNames into allowed/confirm/restricted
// buckets at the graph's current max taint, and flags the soft
// max-iterations warning.
func EvaluatePolicy(g *provenance.Graph, toolNames []string, cfg *Config) Evaluation {
	taint := g.MaxTaint()
	eval := Evaluation{
		DefaultMode: cfg.TaintPolicy[trust.Project(taint)],
	}

	for _, name := range toolNames {
		mode := GetToolMode(name, taint, cfg)
		switch mode {
		case trust.ModeAllow:
			eval.Allowed = append(eval.Allowed, name)
		case trust.ModeConfirm:
			eval.Confirm = append(eval.Confirm, ConfirmEntry{
				Tool:   name,
				Reason: fmt.Sprintf("taint level %s requires confirmation for %s", taint, name),
			})
		case trust.ModeRestrict:
			eval.Restricted = append(eval.Restricted, name)
		}
	}

	eval.MaxIterationsExceeded = g.Summary().IterationCount >= cfg.MaxIterations
	return eval
}

// ApprovalStore is the subset of the approval store the policy engine
// needs; it exists so policy tests can substitute a fake without importing
// the full approval package.
type ApprovalStore interface {
	IsApproved(session, tool string) bool
}

// Resolution is the result of folding pending approvals into a policy
// evaluation.
type Resolution struct {
	Mode                 trust.Mode
	ToolRemovals          []string
	PendingConfirmations []ConfirmEntry
	Block                bool
	BlockReason          string
}

// EvaluateWithApprovals evaluates the policy, then folds in the approval
// store: already-approved confirm-mode tools are allowed; everything
// restricted is removed regardless of approvals, since approvals cannot
// bypass restrict.
func EvaluateWithApprovals(g *provenance.Graph, toolNames []string, cfg *Config, approvals ApprovalStore, session string) Resolution {
	eval := EvaluatePolicy(g, toolNames, cfg)

	res := Resolution{Mode: trust.ModeAllow}

	for _, entry := range eval.Confirm {
		if approvals.IsApproved(session, entry.Tool) {
			continue
		}
		res.ToolRemovals = append(res.ToolRemovals, entry.Tool)
		res.PendingConfirmations = append(res.PendingConfirmations, entry)
		res.Mode = trust.Strictest(res.Mode, trust.ModeConfirm)
	}

	for _, name := range eval.Restricted {
		res.ToolRemovals = append(res.ToolRemovals, name)
		res.Mode = trust.Strictest(res.Mode, trust.ModeRestrict)
	}

	return res
}
