package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/dreamunreal/ueman/internal/version"
)

// Record describes one Unreal Engine installation
type Record struct {
	ID               string                    `json:"Id" yaml:"id"`                   // UUID v4, immutable
	DisplayName      string                    `json:"DisplayName" yaml:"display_name"` // User-editable label
	InstallPath      string                    `json:"EnginePath" yaml:"engine_path"`   // Engine root directory
	ShortVersion     string                    `json:"Version" yaml:"version"`          // e.g. 5.4
	FullVersion      string                    `json:"FullVersion" yaml:"full_version"` // e.g. 5.4.4
	BuildVersionInfo *version.BuildVersionInfo `json:"BuildVersionInfo,omitempty" yaml:"build_version_info,omitempty"`
	CreatedAt        time.Time                 `json:"CreatedAt" yaml:"created_at"`
	LastUsed         time.Time                 `json:"LastUsed" yaml:"last_used"`

	// IsValid is derived from InstallPath by the registry and never persisted
	IsValid bool `json:"-" yaml:"valid"`
}

// Version returns the full version when known, otherwise the short one
func (r Record) Version() string {
	if r.FullVersion != "" && r.FullVersion != version.Unknown {
		return r.FullVersion
	}
	return r.ShortVersion
}

// BranchName returns the build branch, or "" without build info
func (r Record) BranchName() string {
	if r.BuildVersionInfo == nil {
		return ""
	}
	return r.BuildVersionInfo.BranchName
}

// Major returns the engine major version. Build info wins over the
// short version string.
func (r Record) Major() (int, bool) {
	if r.BuildVersionInfo != nil {
		return r.BuildVersionInfo.MajorVersion, true
	}
	head, _, _ := strings.Cut(r.ShortVersion, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return n, true
}
