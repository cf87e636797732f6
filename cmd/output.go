package cmd

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// format selects machine-readable output
type format struct {
	json bool
	yaml bool
}

func (f *format) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.json, "json", false, "print JSON")
	cmd.Flags().BoolVar(&f.yaml, "yaml", false, "print YAML")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")
}

func (f format) structured() bool { return f.json || f.yaml }

// emit writes v as JSON or YAML. It reports false when neither was requested.
func (f format) emit(w io.Writer, v any) (bool, error) {
	switch {
	case f.json:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case f.yaml:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func size(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func status(valid bool) string {
	if valid {
		return green("ok")
	}
	return red("invalid")
}

// bellSkipper drops the terminal bell promptui emits on every keystroke
type bellSkipper struct{}

func (bellSkipper) Write(p []byte) (int, error) {
	filtered := make([]byte, 0, len(p))
	for _, b := range p {
		if b != 7 {
			filtered = append(filtered, b)
		}
	}
	if _, err := os.Stdout.Write(filtered); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (bellSkipper) Close() error { return nil }

// confirm asks a yes/no question. Non-interactive stdin is refused unless
// the caller passed --yes.
func confirm(label string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if !interactive() {
		return false, errors.New("refusing to prompt on non-interactive stdin; use -y to confirm")
	}
	prompt := promptui.Prompt{Label: label, IsConfirm: true, Stdout: bellSkipper{}}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// choose lets the user pick one of items and returns its index
func choose(label string, items []string) (int, error) {
	prompt := promptui.Select{Label: label, Items: items, Size: 10, Stdout: bellSkipper{}}
	i, _, err := prompt.Run()
	if err != nil {
		return -1, err
	}
	return i, nil
}

func interactive() bool {
	fi, _ := os.Stdin.Stat()
	return fi != nil && (fi.Mode()&os.ModeCharDevice) != 0
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
