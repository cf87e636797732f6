package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dreamunreal/ueman/internal/project"
)

type fakeRegistry struct {
	paths     []string
	refreshed chan string
	cleaned   chan struct{}
}

func newFake(paths ...string) *fakeRegistry {
	return &fakeRegistry{paths: paths, refreshed: make(chan string, 8), cleaned: make(chan struct{}, 8)}
}

func (f *fakeRegistry) Paths() []string { return f.paths }

func (f *fakeRegistry) CleanupInvalid() (int, error) {
	f.cleaned <- struct{}{}
	return 1, nil
}

func (f *fakeRegistry) RefreshPath(path string) (project.Record, error) {
	f.refreshed <- path
	return project.Record{ProjectFilePath: path}, nil
}

func start(t *testing.T, reg Registry) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(reg, Options{Debounce: 20 * time.Millisecond}).Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	// give the watcher time to register its directories
	time.Sleep(100 * time.Millisecond)
	return cancel
}

func TestWriteTriggersRefresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Game.uproject")
	if err := os.WriteFile(path, []byte(`{"EngineAssociation": "5.3"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := newFake(path)
	start(t, reg)

	if err := os.WriteFile(path, []byte(`{"EngineAssociation": "5.4"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-reg.refreshed:
		if got != path {
			t.Errorf("refreshed %s, want %s", got, path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no refresh after write")
	}
}

func TestRemoveTriggersCleanup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Game.uproject")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := newFake(path)
	start(t, reg)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	select {
	case <-reg.cleaned:
	case <-time.After(3 * time.Second):
		t.Fatal("no cleanup after removal")
	}
}

func TestIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Game.uproject")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := newFake(path)
	start(t, reg)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-reg.refreshed:
		t.Errorf("unexpected refresh of %s", got)
	case <-time.After(300 * time.Millisecond):
	}
}
