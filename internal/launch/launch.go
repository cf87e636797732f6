// Package launch builds and runs the external Unreal tools: the editor,
// RunUAT plugin builds and the user's IDE.
package launch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/dreamunreal/ueman/internal/limits"
	"github.com/dreamunreal/ueman/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// waitDelay bounds how long Run waits for output after the process is killed
const waitDelay = 5 * time.Second

// DefaultPlatforms is used by BuildPluginCommand when none are given
var DefaultPlatforms = []string{"Win64"}

var editorBinaries = []string{
	filepath.Join("Engine", "Binaries", "Win64", "UnrealEditor.exe"),
	filepath.Join("Engine", "Binaries", "Win64", "UE4Editor.exe"),
}

// Command is an external process invocation
type Command struct {
	Path string
	Args []string
	// Dir is the working directory. Empty means the current one.
	Dir string
}

// String renders the command line for display
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, s := range append([]string{c.Path}, c.Args...) {
		if strings.ContainsAny(s, " \t") {
			s = `"` + s + `"`
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// EditorPath returns the editor executable of the engine at enginePath,
// UnrealEditor.exe for UE5 and UE4Editor.exe for UE4.
func EditorPath(fs afero.Fs, enginePath string) (string, error) {
	for _, rel := range editorBinaries {
		p := filepath.Join(enginePath, rel)
		if ok, err := afero.Exists(fs, p); err == nil && ok {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no editor binary under %s", errs.ErrNotFound, enginePath)
}

// RunUATPath returns the RunUAT batch file of the engine at enginePath
func RunUATPath(enginePath string) string {
	return filepath.Join(enginePath, "Engine", "Build", "BatchFiles", "RunUAT.bat")
}

// EditorCommand opens projectPath in the engine's editor
func EditorCommand(fs afero.Fs, enginePath, projectPath string) (Command, error) {
	editor, err := EditorPath(fs, enginePath)
	if err != nil {
		return Command{}, err
	}
	return Command{Path: editor, Args: []string{projectPath}, Dir: filepath.Dir(projectPath)}, nil
}

// BuildPluginCommand packages the plugin at upluginPath into outDir with
// RunUAT, run from the engine root.
func BuildPluginCommand(enginePath, upluginPath, outDir string, platforms []string) Command {
	if len(platforms) == 0 {
		platforms = DefaultPlatforms
	}
	return Command{
		Path: RunUATPath(enginePath),
		Args: []string{
			"BuildPlugin",
			"-Plugin=" + upluginPath,
			"-Package=" + outDir,
			"-Rocket",
			"-TargetPlatforms=" + strings.Join(platforms, "+"),
		},
		Dir: enginePath,
	}
}

// knownIDEs maps DefaultIDE setting values to executables
var knownIDEs = map[string]string{
	"vscode":       "code",
	"code":         "code",
	"rider":        "rider64.exe",
	"visualstudio": "devenv.exe",
	"vs":           "devenv.exe",
}

// IDECommand opens projectDir in ide, a known name or an executable path. IDEs
// that understand solutions get the project's .sln when one exists.
func IDECommand(fs afero.Fs, ide, projectDir string) (Command, error) {
	ide = strings.TrimSpace(ide)
	if ide == "" {
		return Command{}, fmt.Errorf("%w: no IDE configured", errs.ErrNotFound)
	}

	exe, known := knownIDEs[strings.ToLower(ide)]
	if !known {
		exe = ide
	}
	target := projectDir
	if exe != "code" {
		if sln := findSolution(fs, projectDir); sln != "" {
			target = sln
		}
	}
	return Command{Path: exe, Args: []string{target}, Dir: projectDir}, nil
}

func findSolution(fs afero.Fs, dir string) string {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".sln") {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}

// OpenFolderCommand shows dir in the platform file manager
func OpenFolderCommand(dir string) Command {
	switch runtime.GOOS {
	case "windows":
		return Command{Path: "explorer.exe", Args: []string{dir}}
	case "darwin":
		return Command{Path: "open", Args: []string{dir}}
	default:
		return Command{Path: "xdg-open", Args: []string{dir}}
	}
}

// Launcher starts commands
type Launcher struct {
	log *logrus.Logger
}

// New creates a Launcher. A nil logger discards output.
func New(log *logrus.Logger) *Launcher {
	return &Launcher{log: logging.OrDiscard(log)}
}

// resolve checks that the executable exists. Bare names are looked up on PATH.
func resolve(path string) (string, error) {
	if !strings.ContainsAny(path, `/\`) {
		found, err := exec.LookPath(path)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", errs.ErrNotFound, path, err)
		}
		return found, nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", errs.ErrNotFound, path)
	}
	return path, nil
}

// Start launches c without waiting for it to exit. The process outlives ctx.
func (l *Launcher) Start(ctx context.Context, c Command) error {
	if err := errs.Cancelled(ctx); err != nil {
		return err
	}
	exe, err := resolve(c.Path)
	if err != nil {
		return err
	}

	cmd := exec.Command(exe, c.Args...)
	cmd.Dir = c.Dir
	l.log.WithField("dir", c.Dir).Debugf("starting %s", c)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", filepath.Base(exe), err)
	}
	return cmd.Process.Release()
}

// Run executes c to completion, passing each stdout and stderr line to sink.
// Cancelling ctx kills the process and returns errs.ErrCancelled.
func (l *Launcher) Run(ctx context.Context, c Command, sink func(line string)) error {
	if err := errs.Cancelled(ctx); err != nil {
		return err
	}
	exe, err := resolve(c.Path)
	if err != nil {
		return err
	}
	if sink == nil {
		sink = func(string) {}
	}

	cmd := exec.CommandContext(ctx, exe, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	l.log.WithField("dir", c.Dir).Debugf("executing %s", c)
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return fmt.Errorf("failed to start %s: %w", filepath.Base(exe), err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), limits.OutputLine)
		for scanner.Scan() {
			sink(scanner.Text())
		}
		// drain so the writer never blocks
		_, _ = io.Copy(io.Discard, pr)
	}()

	waitErr := cmd.Wait()
	_ = pw.Close()
	wg.Wait()

	if cerr := errs.Cancelled(ctx); cerr != nil {
		return cerr
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return fmt.Errorf("%s exited with code %d", filepath.Base(exe), exitErr.ExitCode())
		}
		return fmt.Errorf("%s failed: %w", filepath.Base(exe), waitErr)
	}
	return nil
}
