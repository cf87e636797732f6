package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dreamunreal/ueman/internal/launch"
	"github.com/dreamunreal/ueman/internal/uplugin"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Inspect and build Unreal plugins",
}

var (
	pluginInfoFmt   format
	pluginEngine    string
	pluginOut       string
	pluginPlatforms []string
	pluginDryRun    bool
)

var pluginInfoCmd = &cobra.Command{
	Use:   "info <uplugin|dir>",
	Short: "Show a plugin descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := afero.NewOsFs()
		path, err := uplugin.Find(fs, args[0])
		if err != nil {
			return err
		}
		p, err := uplugin.Read(fs, path)
		if err != nil {
			return err
		}
		if ok, err := pluginInfoFmt.emit(cmd.OutOrStdout(), p); ok {
			return err
		}

		w := newTable(cmd.OutOrStdout())
		fmt.Fprintf(w, "Name:\t%s\n", cyan(orDash(p.FriendlyName)))
		fmt.Fprintf(w, "File:\t%s\n", path)
		fmt.Fprintf(w, "Version:\t%s (%d)\n", orDash(p.VersionName), p.Version)
		fmt.Fprintf(w, "Category:\t%s\n", orDash(p.Category))
		fmt.Fprintf(w, "Created by:\t%s\n", orDash(p.CreatedBy))
		fmt.Fprintf(w, "Description:\t%s\n", orDash(p.Description))
		for _, m := range p.Modules {
			platforms := "all platforms"
			if len(m.PlatformAllowList) > 0 {
				platforms = strings.Join(m.PlatformAllowList, ", ")
			}
			fmt.Fprintf(w, "Module:\t%s (%s, %s) %s\n", m.Name, orDash(m.Type), orDash(m.LoadingPhase), platforms)
		}
		for _, d := range p.Dependencies {
			note := ""
			if d.Optional {
				note = " (optional)"
			}
			fmt.Fprintf(w, "Depends on:\t%s%s\n", d.Name, note)
		}
		return w.Flush()
	},
}

var pluginBuildCmd = &cobra.Command{
	Use:   "build <uplugin|dir>",
	Short: "Package a plugin for an engine with RunUAT BuildPlugin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := uplugin.Find(a.fs, args[0])
		if err != nil {
			return err
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if _, err := uplugin.Read(a.fs, path); err != nil {
			return err
		}

		e, err := a.findEngine(pluginEngine)
		if err != nil {
			return err
		}
		if !e.IsValid {
			return fmt.Errorf("engine %s is not valid", e.DisplayName)
		}

		out := pluginOut
		if out == "" {
			out = filepath.Join(filepath.Dir(path), "_Built", strings.ReplaceAll(e.Version(), ".", "_"))
		}
		c := launch.BuildPluginCommand(e.InstallPath, path, out, pluginPlatforms)
		printf("Executing: %s\n", c)
		printf("Working directory: %s\n", c.Dir)
		if pluginDryRun {
			return nil
		}

		if err := a.launcher.Run(cmd.Context(), c, func(line string) { printf("%s\n", line) }); err != nil {
			return fmt.Errorf("BuildPlugin failed (see output above): %w", err)
		}
		if _, err := a.engines.MarkUsed(e.ID); err != nil {
			log.Debugf("marking engine used: %v", err)
		}
		printf("%s %s built into %s\n", green("done:"), uplugin.Name(path), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pluginCmd)
	pluginCmd.AddCommand(pluginInfoCmd, pluginBuildCmd)

	pluginInfoFmt.register(pluginInfoCmd)
	pluginBuildCmd.Flags().StringVarP(&pluginEngine, "engine", "e", "", "engine id, name or version (required)")
	pluginBuildCmd.Flags().StringVarP(&pluginOut, "out", "o", "", "package directory (default <plugin>/_Built/<version>)")
	pluginBuildCmd.Flags().StringSliceVar(&pluginPlatforms, "platforms", launch.DefaultPlatforms, "target platforms")
	pluginBuildCmd.Flags().BoolVar(&pluginDryRun, "dry-run", false, "print the command without running it")
	_ = pluginBuildCmd.MarkFlagRequired("engine")
}
