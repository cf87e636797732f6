package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dreamunreal/ueman/internal/engine"
	"github.com/dreamunreal/ueman/internal/project"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	if err := Execute(context.Background()); err != nil {
		t.Fatalf("ueman %s: %v\n%s", strings.Join(args, " "), err, buf.String())
	}
	return buf.String()
}

func TestProjectAndSettingsFlow(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("UEMAN_ENGINE_ROOTS", t.TempDir())
	t.Setenv("UEMAN_LOCK_STORES", "false")

	projDir := filepath.Join(t.TempDir(), "Shooter")
	if err := os.MkdirAll(projDir, 0o755); err != nil {
		t.Fatal(err)
	}
	projFile := filepath.Join(projDir, "Shooter.uproject")
	if err := os.WriteFile(projFile, []byte(`{"EngineAssociation": "5.4", "Description": "arena"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out := run(t, "--data-dir", dataDir, "projects", "add", projDir, "--name", "Arena")
	if !strings.Contains(out, "Arena") {
		t.Errorf("add output = %q", out)
	}

	out = run(t, "--data-dir", dataDir, "projects", "list", "--json", "--search", "arena")
	var listed []project.Record
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	if len(listed) != 1 || listed[0].ProjectFilePath != projFile {
		t.Fatalf("listed = %+v", listed)
	}
	if listed[0].EngineAssociation != "5.4" || listed[0].AssociatedEngineID != "" {
		t.Errorf("association without engines = %q (%q)", listed[0].EngineAssociation, listed[0].AssociatedEngineID)
	}

	out = run(t, "--data-dir", dataDir, "projects", "enrich", "--force")
	if !strings.Contains(out, "Enriched 1 project(s)") {
		t.Errorf("enrich output = %q", out)
	}

	run(t, "--data-dir", dataDir, "settings", "set", "DefaultIDE", "rider")
	if out := run(t, "--data-dir", dataDir, "settings", "get", "DefaultIDE"); !strings.Contains(out, `"rider"`) {
		t.Errorf("settings get = %q", out)
	}

	out = run(t, "--data-dir", dataDir, "resolve", "--json", "{8FA2B2C6-4C8F-4A1B-9C1E-0D2E3F4A5B6C}")
	var res resolveOut
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("resolve output is not JSON: %v\n%s", err, out)
	}
	if res.Matched || res.Association != "无法解析" {
		t.Errorf("resolve = %+v", res)
	}

	for _, name := range []string{"projects.json", "settings.json", "sizecache.db"} {
		if _, err := os.Stat(filepath.Join(dataDir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func writeEngine(t *testing.T, root string) {
	t.Helper()
	files := map[string]string{
		filepath.Join(root, "Engine", "Build", "Build.version"):                                       `{"MajorVersion": 5, "MinorVersion": 4, "PatchVersion": 1, "BranchName": "++UE5+Release-5.4"}`,
		filepath.Join(root, "Engine", "Binaries", "DotNET", "UnrealBuildTool", "UnrealBuildTool.dll"): "",
	}
	for path, body := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEngineEditFlow(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("UEMAN_ENGINE_ROOTS", t.TempDir())
	t.Setenv("UEMAN_LOCK_STORES", "false")

	engineDir := filepath.Join(t.TempDir(), "UE_5.4")
	writeEngine(t, engineDir)
	run(t, "--data-dir", dataDir, "engines", "add", engineDir, "--name", "Main")

	if out := run(t, "--data-dir", dataDir, "engines", "rename", "Main", "Studio 5.4"); !strings.Contains(out, "Studio 5.4") {
		t.Errorf("rename output = %q", out)
	}

	var listed []engine.Record
	out := run(t, "--data-dir", dataDir, "engines", "list", "--json", "--major", "5")
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	if len(listed) != 1 || listed[0].DisplayName != "Studio 5.4" || listed[0].InstallPath != engineDir {
		t.Fatalf("major 5 = %+v", listed)
	}

	listed = nil
	out = run(t, "--data-dir", dataDir, "engines", "list", "--json", "--major", "4")
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	if len(listed) != 0 {
		t.Errorf("major 4 = %+v", listed)
	}

	empty := t.TempDir()
	if out := run(t, "--data-dir", dataDir, "engines", "set-path", "Studio 5.4", empty); !strings.Contains(out, "warning:") {
		t.Errorf("set-path to an empty directory should warn, got %q", out)
	}
}
