package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadAndMerge loads a YAML file and merges it into cfg, field by field,
// so an explicit zero value (false, 0) in the file is distinguished from a
// field the user never set. The string fields workspace_dir and
// http_debug.addr are applied only when non-empty.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base using raw to tell an explicit
// zero value apart from an absent key.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if boolFieldSet(raw, "taint_policy") {
		for level, mode := range override.TaintPolicy {
			base.TaintPolicy[level] = mode
		}
	}
	if boolFieldSet(raw, "tool_overrides") {
		for tool, levels := range override.ToolOverrides {
			if base.ToolOverrides[tool] == nil {
				base.ToolOverrides[tool] = map[string]string{}
			}
			for level, mode := range levels {
				base.ToolOverrides[tool][level] = mode
			}
		}
	}
	if boolFieldSet(raw, "tool_trust_overrides") {
		for tool, level := range override.ToolTrustOverrides {
			base.ToolTrustOverrides[tool] = level
		}
	}
	if boolFieldSet(raw, "approval_ttl_seconds") {
		base.ApprovalTTLSeconds = override.ApprovalTTLSeconds
	}
	if boolFieldSet(raw, "max_iterations") {
		base.MaxIterations = override.MaxIterations
	}
	if boolFieldSet(raw, "max_completed_graphs") {
		base.MaxCompletedGraphs = override.MaxCompletedGraphs
	}
	if override.WorkspaceDir != "" {
		base.WorkspaceDir = override.WorkspaceDir
	}
	if boolFieldSet(raw, "developer_mode") {
		base.DeveloperMode = override.DeveloperMode
	}
	if boolFieldSet(raw, "verbose") {
		base.Verbose = override.Verbose
	}
	if boolFieldSet(raw, "http_debug", "enabled") {
		base.HTTPDebug.Enabled = override.HTTPDebug.Enabled
	}
	if override.HTTPDebug.Addr != "" {
		base.HTTPDebug.Addr = override.HTTPDebug.Addr
	}
}

// boolFieldSet reports whether path is present in raw, used to tell an
// explicit false/0 apart from a key the user never set.
func boolFieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
