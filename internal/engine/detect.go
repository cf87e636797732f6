package engine

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/dreamunreal/ueman/internal/version"
	"github.com/spf13/afero"
)

// DefaultRoots are scanned by AutoDetect when no roots are configured:
// the Epic Games Launcher default location plus common drive-letter fallbacks.
var DefaultRoots = []string{
	`C:\Program Files\Epic Games`,
	`D:\Program Files\Epic Games`,
	`E:\Program Files\Epic Games`,
	`C:\Epic Games`,
	`D:\Epic Games`,
	`E:\Epic Games`,
	`F:\Epic Games`,
	`D:\UnrealEngine`,
}

// buildToolPaths are the conventional locations of UnrealBuildTool under an engine root
var buildToolPaths = [][]string{
	{"Engine", "Binaries", "DotNET", "UnrealBuildTool", "UnrealBuildTool.exe"},
	{"Engine", "Binaries", "DotNET", "UnrealBuildTool", "UnrealBuildTool.dll"},
	{"Engine", "Binaries", "DotNET", "UnrealBuildTool.exe"},
	{"Engine", "Binaries", "DotNET", "UnrealBuildTool.dll"},
}

// BuildVersionPath returns the Build.version location for an engine root
func BuildVersionPath(installPath string) string {
	return filepath.Join(installPath, "Engine", "Build", "Build.version")
}

// engineDirRe matches the folder names engines are installed under
var engineDirRe = regexp.MustCompile(`(?i)^(UE_?\d+(\.\d+)*|UnrealEngine.*)$`)

func isEngineDirName(name string) bool {
	return engineDirRe.MatchString(name)
}

// validate reports whether path holds a build tool binary and an Engine directory.
// Any filesystem error counts as invalid.
func validate(fs afero.Fs, path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	if ok, err := afero.DirExists(fs, filepath.Join(path, "Engine")); err != nil || !ok {
		return false
	}
	for _, rel := range buildToolPaths {
		p := filepath.Join(append([]string{path}, rel...)...)
		if ok, err := afero.Exists(fs, p); err == nil && ok {
			return true
		}
	}
	return false
}

// detectVersion reads Build.version (if any) and runs the version strategies
func detectVersion(fs afero.Fs, installPath string) version.Info {
	data, err := afero.ReadFile(fs, BuildVersionPath(installPath))
	if err != nil {
		data = nil
	}
	return version.Parse(string(data), installPath)
}

// scanRoots lists candidate engine directories under roots. Unreadable
// roots are skipped.
func (r *Registry) scanRoots(ctx context.Context, roots []string) ([]string, error) {
	var candidates []string
	for _, root := range roots {
		if err := errs.Cancelled(ctx); err != nil {
			return nil, err
		}
		entries, err := afero.ReadDir(r.fs, root)
		if err != nil {
			r.log.WithField("root", root).Debugf("skipping engine root: %v", err)
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || !isEngineDirName(entry.Name()) {
				continue
			}
			candidates = append(candidates, filepath.Join(root, entry.Name()))
		}
	}
	return candidates, nil
}
