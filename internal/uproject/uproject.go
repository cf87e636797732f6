// Package uproject reads Unreal project descriptors (.uproject files).
package uproject

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/dreamunreal/ueman/internal/limits"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
)

// Placeholders used when a descriptor exists but cannot be parsed
const (
	UnknownAssociation = "未知版本"
	UnreadableDesc     = "无法读取项目描述"
)

// Descriptors saved by Windows editors may start with a UTF-8 byte order mark
var utf8BOM = []byte("\xef\xbb\xbf")

// Ext is the project descriptor extension
const Ext = ".uproject"

// Module is one entry of the Modules array
type Module struct {
	Name         string `json:"Name" yaml:"name"`
	Type         string `json:"Type" yaml:"type"`
	LoadingPhase string `json:"LoadingPhase" yaml:"loading_phase"`
}

// Plugin is one entry of the Plugins array
type Plugin struct {
	Name                     string   `json:"Name" yaml:"name"`
	Enabled                  bool     `json:"Enabled" yaml:"enabled"`
	TargetAllowList          []string `json:"TargetAllowList,omitempty" yaml:"target_allow_list,omitempty"`
	SupportedTargetPlatforms []string `json:"SupportedTargetPlatforms,omitempty" yaml:"supported_target_platforms,omitempty"`
}

// Metadata holds the descriptor fields the registry cares about. Missing
// fields are zero values, never nil slices.
type Metadata struct {
	EngineAssociation string
	FriendlyName      string
	Description       string
	Category          string
	Modules           []Module
	Plugins           []Plugin
	TargetPlatforms   []string
	// Degraded is set when the file was not valid JSON
	Degraded bool
}

// Read parses the descriptor at path. It only fails when the file cannot be
// read; malformed content yields a degraded record with placeholder fields.
func Read(fs afero.Fs, path string) (Metadata, error) {
	data, err := readLimited(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Metadata{}, fmt.Errorf("%w: %s", errs.ErrNotFound, path)
		}
		return Metadata{}, fmt.Errorf("failed to read project file: %w", err)
	}
	return Parse(data), nil
}

// Parse extracts metadata from descriptor content
func Parse(data []byte) Metadata {
	content := string(bytes.TrimPrefix(data, utf8BOM))
	if !gjson.Valid(content) || !gjson.Parse(content).IsObject() {
		return Degraded()
	}

	md := Metadata{
		EngineAssociation: gjson.Get(content, "EngineAssociation").String(),
		FriendlyName:      gjson.Get(content, "FriendlyName").String(),
		Description:       gjson.Get(content, "Description").String(),
		Category:          gjson.Get(content, "Category").String(),
		Modules:           []Module{},
		Plugins:           []Plugin{},
		TargetPlatforms:   stringList(gjson.Get(content, "TargetPlatforms")),
	}

	gjson.Get(content, "Modules").ForEach(func(_, value gjson.Result) bool {
		if m, ok := parseModule(value); ok {
			md.Modules = append(md.Modules, m)
		}
		return true
	})
	gjson.Get(content, "Plugins").ForEach(func(_, value gjson.Result) bool {
		if p, ok := parsePlugin(value); ok {
			md.Plugins = append(md.Plugins, p)
		}
		return true
	})
	return md
}

// Degraded returns the placeholder metadata for an unreadable descriptor
func Degraded() Metadata {
	return Metadata{
		EngineAssociation: UnknownAssociation,
		Description:       UnreadableDesc,
		Modules:           []Module{},
		Plugins:           []Plugin{},
		TargetPlatforms:   []string{},
		Degraded:          true,
	}
}

func parseModule(v gjson.Result) (Module, bool) {
	if !v.IsObject() {
		return Module{}, false
	}
	name := v.Get("Name")
	if name.Type != gjson.String || name.String() == "" {
		return Module{}, false
	}
	return Module{
		Name:         name.String(),
		Type:         v.Get("Type").String(),
		LoadingPhase: v.Get("LoadingPhase").String(),
	}, true
}

func parsePlugin(v gjson.Result) (Plugin, bool) {
	if !v.IsObject() {
		return Plugin{}, false
	}
	name := v.Get("Name")
	if name.Type != gjson.String || name.String() == "" {
		return Plugin{}, false
	}
	p := Plugin{
		Name:                     name.String(),
		Enabled:                  v.Get("Enabled").Type == gjson.True,
		TargetAllowList:          stringList(v.Get("TargetAllowList")),
		SupportedTargetPlatforms: stringList(v.Get("SupportedTargetPlatforms")),
	}
	// Descriptors written before 5.0 use the older key
	if len(p.TargetAllowList) == 0 {
		p.TargetAllowList = stringList(v.Get("WhitelistTargets"))
	}
	return p, true
}

// stringList keeps the string elements of a JSON array
func stringList(v gjson.Result) []string {
	out := []string{}
	if !v.IsArray() {
		return out
	}
	for _, item := range v.Array() {
		if item.Type == gjson.String {
			out = append(out, item.String())
		}
	}
	return out
}

// readLimited reads at most limits.Descriptor bytes of path
func readLimited(fs afero.Fs, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limits.Descriptor))
}
