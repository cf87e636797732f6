// Package version derives engine version strings from Build.version content.
package version

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Unknown is displayed when no strategy yields a version
const Unknown = "未知"

// BuildVersionInfo mirrors Engine/Build/Build.version. It is never mutated after parse.
type BuildVersionInfo struct {
	MajorVersion         int    `json:"MajorVersion"`
	MinorVersion         int    `json:"MinorVersion"`
	PatchVersion         int    `json:"PatchVersion"`
	Changelist           int    `json:"Changelist"`
	CompatibleChangelist int    `json:"CompatibleChangelist"`
	IsLicenseeVersion    int    `json:"IsLicenseeVersion"`
	IsPromotedBuild      int    `json:"IsPromotedBuild"`
	BranchName           string `json:"BranchName"`
}

// IsLicensee reports whether the build is a licensee build
func (b BuildVersionInfo) IsLicensee() bool { return b.IsLicenseeVersion != 0 }

// IsPromoted reports whether the build was promoted by Epic
func (b BuildVersionInfo) IsPromoted() bool { return b.IsPromotedBuild != 0 }

// Short returns "{major}.{minor}"
func (b BuildVersionInfo) Short() string {
	return fmt.Sprintf("%d.%d", b.MajorVersion, b.MinorVersion)
}

// Full returns "{major}.{minor}.{patch}"
func (b BuildVersionInfo) Full() string {
	return fmt.Sprintf("%d.%d.%d", b.MajorVersion, b.MinorVersion, b.PatchVersion)
}

// Source names the strategy that produced an Info
type Source string

const (
	SourceJSON      Source = "json"
	SourceRegex     Source = "regex"
	SourceHeuristic Source = "heuristic"
	SourceFolder    Source = "folder"
	SourceNone      Source = "none"
)

// Info is the outcome of parsing. Build is set only by strategies that
// recover the structured record.
type Info struct {
	Short  string
	Full   string
	Build  *BuildVersionInfo
	Source Source
}

// Known reports whether any strategy succeeded
func (i Info) Known() bool { return i.Source != SourceNone }

// Display returns the most specific version string available
func (i Info) Display() string {
	if i.Full != "" && i.Full != Unknown {
		return i.Full
	}
	if i.Short != "" {
		return i.Short
	}
	return Unknown
}

// strategy attempts one way of recovering a version
type strategy func(content, installDir string) (Info, bool)

var strategies = []strategy{
	fromJSON,
	fromRegex,
	fromLiterals,
	fromFolder,
}

// Parse runs every strategy in order and returns the first success. It never
// fails: with nothing recognizable both strings are Unknown.
func Parse(content, installDir string) Info {
	content = strings.TrimPrefix(content, "\ufeff")
	for _, s := range strategies {
		if info, ok := s(content, installDir); ok {
			return info
		}
	}
	return Info{Short: Unknown, Full: Unknown, Source: SourceNone}
}

func fromJSON(content, _ string) (Info, bool) {
	if strings.TrimSpace(content) == "" {
		return Info{}, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Info{}, false
	}
	// A JSON document without version keys is not a Build.version
	if _, ok := raw["MajorVersion"]; !ok {
		return Info{}, false
	}
	var b BuildVersionInfo
	if err := json.Unmarshal([]byte(content), &b); err != nil {
		return Info{}, false
	}
	return Info{Short: b.Short(), Full: b.Full(), Build: &b, Source: SourceJSON}, true
}

var (
	majorRe = regexp.MustCompile(`"?MajorVersion"?\s*[:=]\s*(\d+)`)
	minorRe = regexp.MustCompile(`"?MinorVersion"?\s*[:=]\s*(\d+)`)
	patchRe = regexp.MustCompile(`"?PatchVersion"?\s*[:=]\s*(\d+)`)
)

func fromRegex(content, _ string) (Info, bool) {
	major, ok := matchInt(majorRe, content)
	if !ok {
		return Info{}, false
	}
	minor, ok := matchInt(minorRe, content)
	if !ok {
		return Info{}, false
	}
	patch, _ := matchInt(patchRe, content)

	b := BuildVersionInfo{MajorVersion: major, MinorVersion: minor, PatchVersion: patch}
	return Info{Short: b.Short(), Full: b.Full(), Source: SourceRegex}, true
}

func matchInt(re *regexp.Regexp, content string) (int, bool) {
	m := re.FindStringSubmatch(content)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// fromLiterals is a best-effort guess for content the other strategies
// could not read. It is not authoritative.
func fromLiterals(content, _ string) (Info, bool) {
	if strings.Contains(content, `"MajorVersion": 5`) {
		for minor := 4; minor >= 0; minor-- {
			if strings.Contains(content, fmt.Sprintf(`"MinorVersion": %d`, minor)) {
				return Info{Short: fmt.Sprintf("5.%d", minor), Source: SourceHeuristic}, true
			}
		}
	}
	if strings.Contains(content, `"MajorVersion": 4`) {
		return Info{Short: "4.27", Source: SourceHeuristic}, true
	}
	return Info{}, false
}

var folderRe = regexp.MustCompile(`(?i)^UE_?(\d+(?:[._]\d+)*)$`)

func fromFolder(_, installDir string) (Info, bool) {
	if installDir == "" {
		return Info{}, false
	}
	name := filepath.Base(filepath.Clean(installDir))
	m := folderRe.FindStringSubmatch(name)
	if len(m) < 2 {
		return Info{}, false
	}
	full := strings.ReplaceAll(m[1], "_", ".")
	parts := strings.Split(full, ".")
	short := full
	if len(parts) >= 2 {
		short = parts[0] + "." + parts[1]
	}
	return Info{Short: short, Full: full, Source: SourceFolder}, true
}

// Compare orders dotted version strings numerically, e.g. "5.3" < "5.10".
// Non-numeric components fall back to string comparison.
func Compare(v1, v2 string) int {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	maxLen := len(parts1)
	if len(parts2) > maxLen {
		maxLen = len(parts2)
	}

	for i := 0; i < maxLen; i++ {
		var num1, num2 int
		var err1, err2 error

		if i < len(parts1) {
			num1, err1 = strconv.Atoi(parts1[i])
		}
		if i < len(parts2) {
			num2, err2 = strconv.Atoi(parts2[i])
		}

		if err1 != nil || err2 != nil {
			if i < len(parts1) && i < len(parts2) {
				return strings.Compare(parts1[i], parts2[i])
			}
			if i < len(parts1) {
				return 1
			}
			return -1
		}

		if num1 < num2 {
			return -1
		}
		if num1 > num2 {
			return 1
		}
	}
	return 0
}
