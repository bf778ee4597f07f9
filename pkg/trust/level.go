// Package trust defines the trust lattice and tool-output classifier: the
// totally ordered set of trust levels content can carry through a turn, the
// policy-mode order used to resolve enforcement decisions, and the rules
// that assign initial trust to a turn's context.
package trust

// Level is a point on the trust lattice, strictest to laxest.
type Level string

const (
	LevelSystem    Level = "system"
	LevelOwner     Level = "owner"
	LevelLocal     Level = "local"
	LevelShared    Level = "shared"
	LevelExternal  Level = "external"
	LevelUntrusted Level = "untrusted"
)

// rank maps a Level to its position in the lattice; lower is stricter.
var rank = map[Level]int{
	LevelSystem:    0,
	LevelOwner:     1,
	LevelLocal:     2,
	LevelShared:    3,
	LevelExternal:  4,
	LevelUntrusted: 5,
}

// Order returns l's rank, or -1 if l is not a recognized level.
func Order(l Level) int {
	if r, ok := rank[l]; ok {
		return r
	}
	return -1
}

// Valid reports whether l is one of the six canonical levels.
func Valid(l Level) bool {
	_, ok := rank[l]
	return ok
}

// MinTrust returns the laxer (higher-ranked) of a and b. This is the
// accumulation rule for a high-water taint mark: folding in new content
// can only move the mark toward untrusted, never back toward system.
func MinTrust(a, b Level) Level {
	if Order(b) > Order(a) {
		return b
	}
	return a
}

// Projected collapses the six canonical levels onto the 4-level policy
// projection {trusted, shared, external, untrusted}, per the legacy
// taint-policy key convention: system, owner, and local all count as
// "trusted" for configuration purposes.
type Projected string

const (
	ProjectedTrusted   Projected = "trusted"
	ProjectedShared    Projected = "shared"
	ProjectedExternal  Projected = "external"
	ProjectedUntrusted Projected = "untrusted"
)

// Project maps a canonical Level onto its 4-level policy bucket.
func Project(l Level) Projected {
	switch l {
	case LevelSystem, LevelOwner, LevelLocal:
		return ProjectedTrusted
	case LevelShared:
		return ProjectedShared
	case LevelExternal:
		return ProjectedExternal
	default:
		return ProjectedUntrusted
	}
}
