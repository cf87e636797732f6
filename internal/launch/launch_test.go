package launch

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/spf13/afero"
)

func TestEditorPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	ue5 := filepath.Join("/engines", "UE_5.4")
	ue4 := filepath.Join("/engines", "UE_4.27")
	_ = afero.WriteFile(fs, filepath.Join(ue5, "Engine", "Binaries", "Win64", "UnrealEditor.exe"), []byte("MZ"), 0o644)
	_ = afero.WriteFile(fs, filepath.Join(ue4, "Engine", "Binaries", "Win64", "UE4Editor.exe"), []byte("MZ"), 0o644)

	tests := []struct {
		engine string
		want   string
	}{
		{ue5, "UnrealEditor.exe"},
		{ue4, "UE4Editor.exe"},
	}
	for _, tt := range tests {
		got, err := EditorPath(fs, tt.engine)
		if err != nil {
			t.Fatalf("EditorPath(%s): %v", tt.engine, err)
		}
		if filepath.Base(got) != tt.want {
			t.Errorf("EditorPath(%s) = %s, want %s", tt.engine, got, tt.want)
		}
	}

	if _, err := EditorPath(fs, "/engines/none"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildPluginCommand(t *testing.T) {
	c := BuildPluginCommand("/engines/UE_5.4", "/src/Git/Git.uplugin", "/out", nil)
	if c.Path != RunUATPath("/engines/UE_5.4") || c.Dir != "/engines/UE_5.4" {
		t.Errorf("unexpected path/dir: %+v", c)
	}
	want := []string{"BuildPlugin", "-Plugin=/src/Git/Git.uplugin", "-Package=/out", "-Rocket", "-TargetPlatforms=Win64"}
	if strings.Join(c.Args, " ") != strings.Join(want, " ") {
		t.Errorf("args = %v, want %v", c.Args, want)
	}

	c = BuildPluginCommand("/e", "/p.uplugin", "/o", []string{"Win64", "Linux"})
	if last := c.Args[len(c.Args)-1]; last != "-TargetPlatforms=Win64+Linux" {
		t.Errorf("platform arg = %s", last)
	}
}

func TestIDECommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/p/Shooter/Shooter.sln", []byte(""), 0o644)

	tests := []struct {
		ide      string
		wantPath string
		wantArg  string
	}{
		{"vscode", "code", "/p/Shooter"},
		{"Rider", "rider64.exe", "/p/Shooter/Shooter.sln"},
		{"/opt/ide/bin/ide", "/opt/ide/bin/ide", "/p/Shooter/Shooter.sln"},
	}
	for _, tt := range tests {
		c, err := IDECommand(fs, tt.ide, "/p/Shooter")
		if err != nil {
			t.Fatalf("IDECommand(%s): %v", tt.ide, err)
		}
		if c.Path != tt.wantPath || c.Args[0] != tt.wantArg {
			t.Errorf("IDECommand(%s) = %+v", tt.ide, c)
		}
	}

	if _, err := IDECommand(fs, " ", "/p/Shooter"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty IDE, got %v", err)
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Path: `C:\Program Files\Epic Games\UE_5.4\RunUAT.bat`, Args: []string{"BuildPlugin", "-Rocket"}}
	want := `"C:\Program Files\Epic Games\UE_5.4\RunUAT.bat" BuildPlugin -Rocket`
	if c.String() != want {
		t.Errorf("String() = %s", c.String())
	}
}

func TestStartMissingExecutable(t *testing.T) {
	l := New(nil)
	err := l.Start(context.Background(), Command{Path: filepath.Join(t.TempDir(), "missing.exe")})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	err = l.Run(context.Background(), Command{Path: "definitely-not-a-real-binary-ueman"}, nil)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunStreamsOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var mu sync.Mutex
	var lines []string
	sink := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, line)
	}

	err := New(nil).Run(context.Background(), Command{Path: "sh", Args: []string{"-c", "echo one; echo two 1>&2"}}, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
}

func TestRunExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	err := New(nil).Run(context.Background(), Command{Path: "sh", Args: []string{"-c", "exit 3"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "code 3") {
		t.Fatalf("expected exit code error, got %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := New(nil).Run(ctx, Command{Path: "sh", Args: []string{"-c", "exec sleep 5"}}, nil)
	if !errors.Is(err, errs.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}
