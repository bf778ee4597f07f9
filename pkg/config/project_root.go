package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveWorkspaceDir returns the absolute directory the watermark store
// (and, in cmd/provenanced, the log directory) is rooted at. Preference order:
//  1. cfg.WorkspaceDir, with a leading ~ expanded
//  2. current working directory
func ResolveWorkspaceDir(cfg *Config) string {
	if cfg != nil {
		dir := expandHomeDir(strings.TrimSpace(cfg.WorkspaceDir))
		if dir != "" && dir != "." {
			if abs, err := filepath.Abs(dir); err == nil {
				return abs
			}
			return dir
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

func expandHomeDir(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
