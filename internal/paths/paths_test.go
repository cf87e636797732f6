package paths

import (
	"path/filepath"
	"testing"
)

func TestDefaultDataDir(t *testing.T) {
	t.Setenv("APPDATA", filepath.Join("/users", "dev", "AppData", "Roaming"))
	if got, want := DefaultDataDir(), filepath.Join("/users", "dev", "AppData", "Roaming", appName); got != want {
		t.Errorf("DefaultDataDir() = %s, want %s", got, want)
	}

	t.Setenv("APPDATA", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got, want := DefaultDataDir(), filepath.Join("/xdg", appName); got != want {
		t.Errorf("DefaultDataDir() = %s, want %s", got, want)
	}
}

func TestLayout(t *testing.T) {
	l := New("/data")
	tests := []struct {
		got  string
		want string
	}{
		{l.Engines(), "/data/engines.json"},
		{l.Projects(), "/data/projects.json"},
		{l.ProjectsBackup(), "/data/projects_backup.json"},
		{l.LegacyProjects(), "/data/projects.txt"},
		{l.Settings(), "/data/settings.json"},
		{l.SizeCache(), "/data/sizecache.db"},
		{l.Config(), "/data/config.yaml"},
		{l.Lock(l.Engines()), "/data/engines.json.lock"},
	}
	for _, tt := range tests {
		if tt.got != filepath.FromSlash(tt.want) {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}
}

func TestNewEmptyUsesDefault(t *testing.T) {
	t.Setenv("APPDATA", "/appdata")
	if got := New("").Dir; got != filepath.Join("/appdata", appName) {
		t.Errorf("New(\"\").Dir = %s", got)
	}
}
