// Package resolve maps a project's EngineAssociation to an installed engine.
package resolve

import (
	"regexp"
	"strings"

	"github.com/dreamunreal/ueman/internal/engine"
)

// Unresolved replaces an association GUID that matches no installed engine
const Unresolved = "无法解析"

var guidRe = regexp.MustCompile(`^\{?[0-9a-fA-F-]{36}\}?$`)

// IsGUID reports whether s has the shape of a source-build engine GUID
func IsGUID(s string) bool {
	return guidRe.MatchString(strings.TrimSpace(s))
}

type matcher func(rec engine.Record, association string) bool

// matchers run in priority order; within a tier the first engine wins
var matchers = []matcher{
	func(rec engine.Record, a string) bool { return rec.ShortVersion == a },
	func(rec engine.Record, a string) bool { return rec.FullVersion == a },
	func(rec engine.Record, a string) bool {
		branch := rec.BranchName()
		return branch != "" && strings.Contains(branch, a)
	},
}

// Engine returns the engine an association points at. Only valid engines are
// considered. Among equally good candidates the one earlier in engines wins.
func Engine(engines []engine.Record, association string) (engine.Record, bool) {
	association = strings.TrimSpace(association)
	if association == "" {
		return engine.Record{}, false
	}
	for _, match := range matchers {
		for _, rec := range engines {
			if rec.IsValid && match(rec, association) {
				return rec, true
			}
		}
	}
	return engine.Record{}, false
}

// Result is a resolved association ready for display
type Result struct {
	// Association is the rewritten, human-readable association
	Association string
	// EngineID is set when an engine matched
	EngineID string
	Matched  bool
}

// Association resolves raw against engines and rewrites it: a match becomes
// the engine's version string, an unmatched GUID becomes Unresolved, any
// other value is kept as is.
func Association(engines []engine.Record, raw string) Result {
	if rec, ok := Engine(engines, raw); ok {
		display := rec.Version()
		if display == "" {
			display = raw
		}
		return Result{Association: display, EngineID: rec.ID, Matched: true}
	}
	if IsGUID(raw) {
		return Result{Association: Unresolved}
	}
	return Result{Association: raw}
}
