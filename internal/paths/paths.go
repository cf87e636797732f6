package paths

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
)

const appName = "DreamUnrealManager"

// DefaultDataDir is %APPDATA%\DreamUnrealManager on Windows and the XDG
// config directory elsewhere.
func DefaultDataDir() string {
	if x := os.Getenv("APPDATA"); x != "" {
		return filepath.Join(x, appName)
	}
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, appName)
	}
	home, err := homedir.Dir()
	if err != nil {
		return appName
	}
	return filepath.Join(home, ".config", appName)
}

// Layout names the files kept in a data directory
type Layout struct {
	Dir string
}

// New returns the layout rooted at dir, or at DefaultDataDir when dir is empty.
// A leading ~ is expanded.
func New(dir string) Layout {
	if dir == "" {
		return Layout{Dir: DefaultDataDir()}
	}
	if expanded, err := homedir.Expand(dir); err == nil {
		dir = expanded
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return Layout{Dir: dir}
}

func (l Layout) Engines() string        { return filepath.Join(l.Dir, "engines.json") }
func (l Layout) Projects() string       { return filepath.Join(l.Dir, "projects.json") }
func (l Layout) ProjectsBackup() string { return filepath.Join(l.Dir, "projects_backup.json") }
func (l Layout) LegacyProjects() string { return filepath.Join(l.Dir, "projects.txt") }
func (l Layout) Settings() string       { return filepath.Join(l.Dir, "settings.json") }
func (l Layout) SizeCache() string      { return filepath.Join(l.Dir, "sizecache.db") }
func (l Layout) Config() string         { return filepath.Join(l.Dir, "config.yaml") }

// Lock returns the lock file guarding the store at path
func (l Layout) Lock(path string) string { return path + ".lock" }
