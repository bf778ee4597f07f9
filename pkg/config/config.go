package config

import (
	"fmt"
	"os"

	"github.com/openclaw/provenance-core/pkg/policy"
	"github.com/openclaw/provenance-core/pkg/trust"
	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation.
const (
	DefaultApprovalTTLSeconds = 60
	DefaultMaxIterations      = 10
	DefaultMaxCompletedGraphs = 100
	DefaultWorkspaceDir       = "."
	DefaultHTTPDebugAddr      = "127.0.0.1:7117"
)

// HTTPDebugConfig controls the optional read-only snapshot HTTP surface.
// It is strictly additive: disabled by default, and the server it drives
// never accepts writes.
type HTTPDebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config is the complete, validated configuration for the enforcement
// driver and its supporting stores.
type Config struct {
	TaintPolicy        map[string]string             `yaml:"taint_policy"`
	ToolOverrides      map[string]map[string]string  `yaml:"tool_overrides"`
	ToolTrustOverrides map[string]string             `yaml:"tool_trust_overrides"`
	ApprovalTTLSeconds int                            `yaml:"approval_ttl_seconds"`
	MaxIterations      int                            `yaml:"max_iterations"`
	MaxCompletedGraphs int                            `yaml:"max_completed_graphs"`
	WorkspaceDir       string                         `yaml:"workspace_dir"`
	DeveloperMode      bool                           `yaml:"developer_mode"`
	Verbose            bool                           `yaml:"verbose"`
	HTTPDebug          HTTPDebugConfig                `yaml:"http_debug"`
}

// DefaultConfig returns the configuration a host gets with no config file
// at all: confirm-gated for everything but trusted turns, a 60 second
// approval window, and the debug HTTP surface off.
func DefaultConfig() *Config {
	return &Config{
		TaintPolicy:        map[string]string{},
		ToolOverrides:      map[string]map[string]string{},
		ToolTrustOverrides: map[string]string{},
		ApprovalTTLSeconds: DefaultApprovalTTLSeconds,
		MaxIterations:      DefaultMaxIterations,
		MaxCompletedGraphs: DefaultMaxCompletedGraphs,
		WorkspaceDir:       DefaultWorkspaceDir,
		HTTPDebug: HTTPDebugConfig{
			Enabled: false,
			Addr:    DefaultHTTPDebugAddr,
		},
	}
}

// Load reads the YAML file at path and merges it over DefaultConfig. A
// missing file is not an error; the caller gets defaults back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadAndMerge(cfg, path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// PolicyInput projects the loaded config onto policy.RawPolicyInput, the
// shape BuildPolicyConfig consumes.
func (c *Config) PolicyInput() policy.RawPolicyInput {
	return policy.RawPolicyInput{
		TaintPolicy:   c.TaintPolicy,
		ToolOverrides: c.ToolOverrides,
		MaxIterations: c.MaxIterations,
	}
}

// ToolTrustTable builds the trust.Table this config implies, layering
// ToolTrustOverrides over the built-in tool trust defaults.
func (c *Config) ToolTrustTable() *trust.Table {
	overrides := make(map[string]trust.Level, len(c.ToolTrustOverrides))
	for tool, level := range c.ToolTrustOverrides {
		overrides[tool] = trust.Level(level)
	}
	return trust.NewTable(overrides)
}

// Dump re-encodes cfg as YAML, for callers that want to print the
// effective configuration after merging defaults and file.
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
