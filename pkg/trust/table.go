package trust

import "strings"

// defaultToolTrust maps a tool name to the trust level of its output.
// Unknown tools fall back to untrusted: secure by default.
var defaultToolTrust = map[string]Level{
	"exec":             LevelLocal,
	"vestige_search":   LevelShared,
	"vestige_promote":  LevelShared,
	"vestige_demote":   LevelShared,
	"message":          LevelExternal,
	"web_fetch":        LevelUntrusted,
	"web_search":       LevelUntrusted,
	"browser":          LevelUntrusted,
	"session_status":   LevelSystem,
	"sessions_list":    LevelSystem,
	"sessions_history": LevelSystem,
	"agents_list":      LevelSystem,
	"memory_search":    LevelSystem,
	"memory_get":       LevelSystem,
	"read":             LevelLocal,
	"image":            LevelLocal,
}

// safeTools default to allow regardless of taint: they are read-only, or are
// themselves the source of the taint they'd be gated on. The policy engine
// seeds them as a "*": allow tool override, which an explicit user override
// for the same tool replaces.
// browser is deliberately excluded — it performs actions, not just reads.
var safeTools = map[string]bool{
	"read":             true,
	"memory_search":    true,
	"memory_get":       true,
	"web_fetch":        true,
	"web_search":       true,
	"image":            true,
	"session_status":   true,
	"sessions_list":    true,
	"sessions_history": true,
	"agents_list":      true,
	"vestige_search":   true,
	"vestige_promote":  true,
	"vestige_demote":   true,
}

// Table is a tool-trust classifier with per-instance overrides layered over
// the defaults. Lookups are case-insensitive.
type Table struct {
	overrides    map[string]Level
	defaultLevel Level
}

// NewTable builds a Table. overrides may be nil; its keys are
// lower-cased on insert so lookups stay case-insensitive.
func NewTable(overrides map[string]Level) *Table {
	t := &Table{
		overrides:    make(map[string]Level, len(overrides)),
		defaultLevel: LevelUntrusted,
	}
	for name, level := range overrides {
		t.overrides[strings.ToLower(name)] = level
	}
	return t
}

// ToolTrust returns the trust level of tool's output: override first, then
// the built-in table, then defaultLevel for unknown tools.
func (t *Table) ToolTrust(name string) Level {
	key := strings.ToLower(name)
	if level, ok := t.overrides[key]; ok {
		return level
	}
	if level, ok := defaultToolTrust[key]; ok {
		return level
	}
	return t.defaultLevel
}

// IsSafe reports whether name is in the safe tool set (case-insensitive).
func IsSafe(name string) bool {
	return safeTools[strings.ToLower(name)]
}
