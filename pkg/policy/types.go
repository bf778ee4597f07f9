// Package policy resolves, for a tool and a turn's current taint, whether a
// call is allowed, requires owner confirmation, or is restricted outright.
// Configuration assembly validates and auto-corrects monotonicity so a
// laxer trust level can never end up with a stricter default than a
// stricter one.
package policy

import (
	"strings"

	"github.com/openclaw/provenance-core/pkg/trust"
)

// defaultSafeTools lists the tools that default to allow at every taint
// level, mirroring trust.IsSafe so the policy engine's own override table
// carries the same seed a caller could later replace.
var defaultSafeTools = []string{
	"read", "memory_search", "memory_get", "web_fetch", "web_search", "image",
	"session_status", "sessions_list", "sessions_history", "agents_list",
	"vestige_search", "vestige_promote", "vestige_demote",
}

// TaintPolicy maps a 4-level policy projection to its default mode.
type TaintPolicy map[trust.Projected]trust.Mode

// ToolOverride maps a trust level, a 4-level projection name, or "*" to a
// mode that replaces the taint-policy default for one specific tool.
type ToolOverride map[string]trust.Mode

// Config is the assembled, validated policy configuration.
type Config struct {
	TaintPolicy   TaintPolicy
	ToolOverrides map[string]ToolOverride
	MaxIterations int
}

// defaultTaintPolicy is the baseline before any user overrides are merged.
func defaultTaintPolicy() TaintPolicy {
	return TaintPolicy{
		trust.ProjectedTrusted:   trust.ModeAllow,
		trust.ProjectedShared:    trust.ModeConfirm,
		trust.ProjectedExternal:  trust.ModeConfirm,
		trust.ProjectedUntrusted: trust.ModeConfirm,
	}
}

// projectionOrder lists the four policy buckets strictest to laxest, for
// monotonicity validation.
var projectionOrder = []trust.Projected{
	trust.ProjectedTrusted,
	trust.ProjectedShared,
	trust.ProjectedExternal,
	trust.ProjectedUntrusted,
}

// legacyLevelToProjection projects a legacy 6-level taint-policy key onto
// its 4-level bucket: system, owner, and local all collapse to trusted.
var legacyLevelToProjection = map[string]trust.Projected{
	"system":    trust.ProjectedTrusted,
	"owner":     trust.ProjectedTrusted,
	"local":     trust.ProjectedTrusted,
	"shared":    trust.ProjectedShared,
	"external":  trust.ProjectedExternal,
	"untrusted": trust.ProjectedUntrusted,
	"trusted":   trust.ProjectedTrusted,
}

// ToolTrustOverrides lets a caller override the output-trust classification
// of specific tools, independent of policy-mode overrides.
type ToolTrustOverrides map[string]trust.Level

// RawPolicyInput carries the YAML-sourced, not-yet-validated fields a host
// may configure. Keys may use either the 4-level or the legacy 6-level
// projection; BuildPolicyConfig normalizes them.
type RawPolicyInput struct {
	TaintPolicy   map[string]string
	ToolOverrides map[string]map[string]string
	MaxIterations int
}

// normalizeKey lower-cases a tool name so lookups are case-insensitive.
func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
