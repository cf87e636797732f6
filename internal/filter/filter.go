// Package filter narrows and orders project listings.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dreamunreal/ueman/internal/project"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// AllEngines disables the engine filter
const AllEngines = "ALL"

// SortKey selects the ordering of a listing
type SortKey string

const (
	SortName     SortKey = "name"
	SortEngine   SortKey = "engine"
	SortSize     SortKey = "size"
	SortModified SortKey = "modified"
	SortLastUsed SortKey = "lastused"
)

// SortKeys lists the accepted keys in display order
var SortKeys = []SortKey{SortName, SortEngine, SortSize, SortModified, SortLastUsed}

// ParseSortKey maps user input to a SortKey. Empty input yields SortLastUsed.
func ParseSortKey(s string) (SortKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortLastUsed, nil
	}
	if s == "last-used" || s == "last_used" {
		return SortLastUsed, nil
	}
	for _, k := range SortKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid sort key %q", s)
}

// Options is a listing query. The zero value keeps everything and sorts by
// last use.
type Options struct {
	SearchText string
	// EngineFilter matches EngineAssociation exactly, ignoring case. Empty or
	// AllEngines disables it.
	EngineFilter  string
	SortKey       SortKey
	OnlyFavorites bool
	FavoriteFirst bool
}

// Apply returns the projects matching opts in the requested order. The input
// slice is not modified.
func Apply(projects []project.Record, opts Options) []project.Record {
	query := strings.ToLower(strings.TrimSpace(opts.SearchText))
	engineFilter := strings.TrimSpace(opts.EngineFilter)
	if strings.EqualFold(engineFilter, AllEngines) {
		engineFilter = ""
	}

	out := make([]project.Record, 0, len(projects))
	for _, p := range projects {
		if query != "" && !matches(p, query) {
			continue
		}
		if engineFilter != "" && !strings.EqualFold(p.EngineAssociation, engineFilter) {
			continue
		}
		if opts.OnlyFavorites && !p.IsFavorite {
			continue
		}
		out = append(out, p)
	}

	cmp := comparator(opts.SortKey)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if opts.FavoriteFirst && a.IsFavorite != b.IsFavorite {
			return a.IsFavorite
		}
		return cmp(a, b) < 0
	})
	return out
}

func matches(p project.Record, query string) bool {
	for _, field := range []string{p.DisplayName, p.Description, p.EngineAssociation, p.ProjectDirectory} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// comparator returns a total order for key. Ties on the key fall back to name
// ascending, then to the project file path.
func comparator(key SortKey) func(a, b project.Record) int {
	coll := collate.New(language.Und, collate.IgnoreCase)
	byName := func(a, b project.Record) int {
		if c := coll.CompareString(a.DisplayName, b.DisplayName); c != 0 {
			return c
		}
		return strings.Compare(strings.ToLower(a.ProjectFilePath), strings.ToLower(b.ProjectFilePath))
	}
	then := func(c int, a, b project.Record) int {
		if c != 0 {
			return c
		}
		return byName(a, b)
	}

	switch key {
	case SortName:
		return byName
	case SortEngine:
		return func(a, b project.Record) int {
			return then(coll.CompareString(a.EngineAssociation, b.EngineAssociation), a, b)
		}
	case SortSize:
		return func(a, b project.Record) int {
			return then(desc(a.ProjectSizeBytes, b.ProjectSizeBytes), a, b)
		}
	case SortModified:
		return func(a, b project.Record) int {
			return then(b.LastModified.Compare(a.LastModified), a, b)
		}
	default:
		return func(a, b project.Record) int {
			return then(b.LastUsedOrZero().Compare(a.LastUsedOrZero()), a, b)
		}
	}
}

func desc(a, b int64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
