package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/spf13/afero"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteThenRead(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := NewFile(fs, "/data/doc.json")

	if f.Exists() {
		t.Fatal("document should not exist yet")
	}
	if err := f.WriteJSON(doc{Name: "a", Count: 2}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var got doc
	if err := f.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Name != "a" || got.Count != 2 {
		t.Errorf("unexpected document: %+v", got)
	}

	// no temp files left behind
	entries, _ := afero.ReadDir(fs, "/data")
	if len(entries) != 1 {
		t.Errorf("expected 1 file in /data, got %d", len(entries))
	}
}

func TestReadMissing(t *testing.T) {
	f := NewFile(afero.NewMemMapFs(), "/nope.json")
	var got doc
	err := f.ReadJSON(&got)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/bad.json", []byte("{not json"), 0o644)

	var got doc
	err := NewFile(fs, "/bad.json").ReadJSON(&got)
	if !errors.Is(err, errs.ErrParseDegraded) {
		t.Fatalf("expected ErrParseDegraded, got %v", err)
	}
}

func TestBackupWrittenBeforeOverwrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := NewFile(fs, "/data/projects.json", WithBackup("/data/projects_backup.json"))

	if err := f.WriteJSON(doc{Name: "first"}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := afero.Exists(fs, "/data/projects_backup.json"); ok {
		t.Fatal("no backup expected before a previous snapshot exists")
	}
	if err := f.WriteJSON(doc{Name: "second"}); err != nil {
		t.Fatal(err)
	}

	var backup doc
	if err := NewFile(fs, "/data/projects_backup.json").ReadJSON(&backup); err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if backup.Name != "first" {
		t.Errorf("backup should hold previous snapshot, got %q", backup.Name)
	}
}

func TestWriteFailureIsPersistenceError(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	err := NewFile(fs, "/data/engines.json").WriteJSON(doc{})
	if !errors.Is(err, errs.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestWriteWithLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engines.json")
	f := NewFile(afero.NewOsFs(), path, WithLock(path+".lock"))

	for i := 0; i < 2; i++ {
		if err := f.WriteJSON(doc{Count: i}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	var got doc
	if err := f.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Count != 1 {
		t.Errorf("expected last write to win, got %d", got.Count)
	}
}

func TestReadByteOrderMark(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/bom.json", []byte("\xef\xbb\xbf{\"name\":\"b\",\"count\":1}"), 0o644)

	var got doc
	if err := NewFile(fs, "/bom.json").ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Name != "b" || got.Count != 1 {
		t.Errorf("unexpected document: %+v", got)
	}
}
