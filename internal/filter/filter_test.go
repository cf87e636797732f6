package filter

import (
	"testing"
	"time"

	"github.com/dreamunreal/ueman/internal/project"
)

func names(records []project.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.DisplayName
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func at(hour int) *time.Time {
	t := time.Date(2025, 1, 1, hour, 0, 0, 0, time.UTC)
	return &t
}

func TestLastUsedTieBreakIsDeterministic(t *testing.T) {
	t1 := at(10)
	inputs := [][]project.Record{
		{{DisplayName: "B", LastUsed: t1}, {DisplayName: "A", LastUsed: t1}},
		{{DisplayName: "A", LastUsed: t1}, {DisplayName: "B", LastUsed: t1}},
	}
	for _, in := range inputs {
		got := names(Apply(in, Options{SortKey: SortLastUsed}))
		if !equal(got, []string{"A", "B"}) {
			t.Errorf("Apply(%v) = %v, want [A B]", names(in), got)
		}
	}
}

func TestSortKeys(t *testing.T) {
	projects := []project.Record{
		{DisplayName: "beta", EngineAssociation: "5.4", ProjectSizeBytes: 10, LastModified: *at(3), LastUsed: at(1)},
		{DisplayName: "Alpha", EngineAssociation: "5.3", ProjectSizeBytes: 30, LastModified: *at(1)},
		{DisplayName: "gamma", EngineAssociation: "5.3", ProjectSizeBytes: 10, LastModified: *at(2), LastUsed: at(5)},
	}

	tests := []struct {
		key  SortKey
		want []string
	}{
		{SortName, []string{"Alpha", "beta", "gamma"}},
		{SortEngine, []string{"Alpha", "gamma", "beta"}},
		{SortSize, []string{"Alpha", "beta", "gamma"}},
		{SortModified, []string{"beta", "gamma", "Alpha"}},
		{SortLastUsed, []string{"gamma", "beta", "Alpha"}},
		{"", []string{"gamma", "beta", "Alpha"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			got := names(Apply(projects, Options{SortKey: tt.key}))
			if !equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilters(t *testing.T) {
	projects := []project.Record{
		{DisplayName: "Shooter", EngineAssociation: "5.4.4", Description: "FPS demo", ProjectDirectory: "/work/shooter"},
		{DisplayName: "Racer", EngineAssociation: "5.3.2", Description: "cars", ProjectDirectory: "/work/racer", IsFavorite: true},
		{DisplayName: "Puzzle", EngineAssociation: "5.4.4", Description: "", ProjectDirectory: "/archive/puzzle"},
	}

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"all", Options{SortKey: SortName}, []string{"Puzzle", "Racer", "Shooter"}},
		{"search name", Options{SearchText: "  SHOOT ", SortKey: SortName}, []string{"Shooter"}},
		{"search description", Options{SearchText: "cars", SortKey: SortName}, []string{"Racer"}},
		{"search directory", Options{SearchText: "archive", SortKey: SortName}, []string{"Puzzle"}},
		{"search association", Options{SearchText: "5.3", SortKey: SortName}, []string{"Racer"}},
		{"engine filter", Options{EngineFilter: "5.4.4", SortKey: SortName}, []string{"Puzzle", "Shooter"}},
		{"engine sentinel", Options{EngineFilter: "all", SortKey: SortName}, []string{"Puzzle", "Racer", "Shooter"}},
		{"engine no partial match", Options{EngineFilter: "5.4", SortKey: SortName}, []string{}},
		{"only favorites", Options{OnlyFavorites: true}, []string{"Racer"}},
		{"favorite first", Options{FavoriteFirst: true, SortKey: SortName}, []string{"Racer", "Puzzle", "Shooter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(Apply(projects, tt.opts))
			if !equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := []project.Record{{DisplayName: "b"}, {DisplayName: "a"}}
	_ = Apply(in, Options{SortKey: SortName})
	if in[0].DisplayName != "b" || in[1].DisplayName != "a" {
		t.Errorf("input reordered: %v", names(in))
	}
}

func TestParseSortKey(t *testing.T) {
	tests := []struct {
		in      string
		want    SortKey
		wantErr bool
	}{
		{"", SortLastUsed, false},
		{"Name", SortName, false},
		{"last-used", SortLastUsed, false},
		{"size", SortSize, false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSortKey(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseSortKey(%q) = %q, %v", tt.in, got, err)
		}
	}
}
