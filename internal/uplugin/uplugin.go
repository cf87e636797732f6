// Package uplugin reads .uplugin plugin descriptors.
package uplugin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/dreamunreal/ueman/internal/limits"
	"github.com/spf13/afero"
)

// Ext is the plugin descriptor file extension
const Ext = ".uplugin"

// Plugin is a parsed plugin descriptor
type Plugin struct {
	FileVersion  int          `json:"FileVersion" yaml:"file_version"`
	Version      int          `json:"Version" yaml:"version"`
	VersionName  string       `json:"VersionName" yaml:"version_name"`
	FriendlyName string       `json:"FriendlyName" yaml:"friendly_name"`
	Description  string       `json:"Description" yaml:"description"`
	Category     string       `json:"Category" yaml:"category"`
	CreatedBy    string       `json:"CreatedBy" yaml:"created_by"`
	Modules      []Module     `json:"Modules" yaml:"modules"`
	Dependencies []Dependency `json:"Plugins" yaml:"dependencies"`
}

// Module is one code module of a plugin
type Module struct {
	Name              string   `json:"Name" yaml:"name"`
	Type              string   `json:"Type" yaml:"type"`
	LoadingPhase      string   `json:"LoadingPhase" yaml:"loading_phase"`
	PlatformAllowList []string `json:"PlatformAllowList,omitempty" yaml:"platform_allow_list,omitempty"`
	PlatformDenyList  []string `json:"PlatformDenyList,omitempty" yaml:"platform_deny_list,omitempty"`
}

// UnmarshalJSON accepts the pre-5.0 WhitelistPlatforms/BlacklistPlatforms names
func (m *Module) UnmarshalJSON(data []byte) error {
	type plain Module
	var raw struct {
		plain
		WhitelistPlatforms []string `json:"WhitelistPlatforms"`
		BlacklistPlatforms []string `json:"BlacklistPlatforms"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Module(raw.plain)
	if len(m.PlatformAllowList) == 0 {
		m.PlatformAllowList = raw.WhitelistPlatforms
	}
	if len(m.PlatformDenyList) == 0 {
		m.PlatformDenyList = raw.BlacklistPlatforms
	}
	return nil
}

// Dependency is another plugin this one requires
type Dependency struct {
	Name     string `json:"Name" yaml:"name"`
	Enabled  bool   `json:"Enabled" yaml:"enabled"`
	Optional bool   `json:"Optional,omitempty" yaml:"optional,omitempty"`
}

// Parse decodes descriptor content. Malformed JSON yields errs.ErrParseDegraded.
func Parse(data []byte) (Plugin, error) {
	var p Plugin
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if err := json.Unmarshal(data, &p); err != nil {
		return Plugin{}, fmt.Errorf("%w: %w", errs.ErrParseDegraded, err)
	}
	if p.Modules == nil {
		p.Modules = []Module{}
	}
	if p.Dependencies == nil {
		p.Dependencies = []Dependency{}
	}
	return p, nil
}

// Read parses the descriptor at path
func Read(fs afero.Fs, path string) (Plugin, error) {
	data, err := readLimited(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Plugin{}, fmt.Errorf("%w: %s", errs.ErrNotFound, path)
		}
		return Plugin{}, fmt.Errorf("failed to read plugin file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return Plugin{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Find resolves path to a descriptor. A directory yields the first .uplugin
// file inside it in name order.
func Find(fs afero.Fs, path string) (string, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", errs.ErrNotFound, path)
	}
	if !info.IsDir() {
		return path, nil
	}

	entries, err := afero.ReadDir(fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", path, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			return filepath.Join(path, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: no %s file in %s", errs.ErrNotFound, Ext, path)
}

// Name returns the plugin name, which Unreal derives from the descriptor file name
func Name(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
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
