package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var enginesCmd = &cobra.Command{
	Use:     "engines",
	Aliases: []string{"engine"},
	Short:   "Manage installed Unreal Engine builds",
}

var (
	engListFmt format
	engShowFmt format
	engAddName string
	engRmYes   bool
	engMajor   int
)

var enginesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered engines",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		engines := a.engines.List()
		if cmd.Flags().Changed("major") {
			engines = a.engines.GetByMajorVersion(engMajor)
		}
		if ok, err := engListFmt.emit(cmd.OutOrStdout(), engines); ok {
			return err
		}
		if len(engines) == 0 && cmd.Flags().Changed("major") {
			printf("No valid engines with major version %d\n", engMajor)
			return nil
		}
		if len(engines) == 0 {
			printf("No engines registered. Run 'ueman engines detect' or 'ueman engines add <path>'.\n")
			return nil
		}
		w := newTable(cmd.OutOrStdout())
		fmt.Fprintln(w, "ID\tNAME\tVERSION\tSTATUS\tLAST USED\tPATH")
		for _, e := range engines {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(e.ID), e.DisplayName, orDash(e.Version()), status(e.IsValid), ago(e.LastUsed), e.InstallPath)
		}
		return w.Flush()
	},
}

var enginesShowCmd = &cobra.Command{
	Use:   "show <engine>",
	Short: "Show one engine by id, name or version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.findEngine(args[0])
		if err != nil {
			return err
		}
		if ok, err := engShowFmt.emit(cmd.OutOrStdout(), e); ok {
			return err
		}

		w := newTable(cmd.OutOrStdout())
		fmt.Fprintf(w, "ID:\t%s\n", e.ID)
		fmt.Fprintf(w, "Name:\t%s\n", cyan(e.DisplayName))
		fmt.Fprintf(w, "Path:\t%s\n", e.InstallPath)
		fmt.Fprintf(w, "Status:\t%s\n", status(e.IsValid))
		fmt.Fprintf(w, "Version:\t%s\n", orDash(e.Version()))
		if b := e.BuildVersionInfo; b != nil {
			fmt.Fprintf(w, "Branch:\t%s\n", orDash(b.BranchName))
			fmt.Fprintf(w, "Changelist:\t%d (compatible %d)\n", b.Changelist, b.CompatibleChangelist)
			fmt.Fprintf(w, "Promoted build:\t%t\n", b.IsPromoted())
			fmt.Fprintf(w, "Licensee build:\t%t\n", b.IsLicensee())
		}
		fmt.Fprintf(w, "Added:\t%s\n", e.CreatedAt.Local().Format(time.RFC3339))
		fmt.Fprintf(w, "Last used:\t%s\n", ago(e.LastUsed))
		return w.Flush()
	},
}

var enginesAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Register an engine installation directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.engines.Add(engAddName, args[0])
		if err != nil {
			return err
		}
		if !e.IsValid {
			printf("%s %s does not look like an engine root (no Engine directory or UnrealBuildTool)\n", yellow("warning:"), e.InstallPath)
		}
		printf("Registered %q (%s) at %s (id=%s)\n", e.DisplayName, orDash(e.Version()), e.InstallPath, e.ID)
		return nil
	},
}

var enginesRenameCmd = &cobra.Command{
	Use:   "rename <engine> <name>",
	Short: "Change the display name of an engine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.findEngine(args[0])
		if err != nil {
			return err
		}
		if strings.TrimSpace(args[1]) == "" {
			return fmt.Errorf("display name must not be empty")
		}
		e.DisplayName = args[1]
		if e, err = a.engines.Update(e); err != nil {
			return err
		}
		printf("Renamed to %q\n", e.DisplayName)
		return nil
	},
}

var enginesSetPathCmd = &cobra.Command{
	Use:   "set-path <engine> <path>",
	Short: "Point an engine at a new installation directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.findEngine(args[0])
		if err != nil {
			return err
		}
		path, err := filepath.Abs(strings.TrimSpace(args[1]))
		if err != nil {
			return err
		}
		e.InstallPath = path
		if e, err = a.engines.Update(e); err != nil {
			return err
		}
		if !e.IsValid {
			printf("%s %s does not look like an engine root (no Engine directory or UnrealBuildTool)\n", yellow("warning:"), e.InstallPath)
		}
		printf("%s now at %s (%s)\n", e.DisplayName, e.InstallPath, orDash(e.Version()))
		return nil
	},
}

var enginesRemoveCmd = &cobra.Command{
	Use:   "remove <engine>",
	Short: "Forget an engine. Files on disk are not touched.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.findEngine(args[0])
		if err != nil {
			return err
		}
		ok, err := confirm(fmt.Sprintf("Remove engine %s (%s)", e.DisplayName, e.InstallPath), engRmYes)
		if err != nil || !ok {
			if err == nil {
				printf("aborted\n")
			}
			return err
		}
		if _, err := a.engines.Remove(e.ID); err != nil {
			return err
		}
		printf("Removed %s\n", e.DisplayName)
		return nil
	},
}

var enginesDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Scan the configured engine roots for installations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		added, err := a.engines.AutoDetect(cmd.Context())
		if err != nil {
			return err
		}
		if len(added) == 0 {
			printf("No new engines found in %s\n", strings.Join(cfg.EngineRoots, ", "))
			return nil
		}
		for _, e := range added {
			printf("%s %s (%s) at %s\n", green("+"), e.DisplayName, orDash(e.Version()), e.InstallPath)
		}
		return nil
	},
}

var enginesRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-validate every engine and re-read its version",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engines.RefreshAll(); err != nil {
			return err
		}
		valid := len(a.engines.GetValid())
		printf("Refreshed %d engine(s), %d valid\n", len(a.engines.List()), valid)
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(enginesCmd)
	enginesCmd.AddCommand(enginesListCmd, enginesShowCmd, enginesAddCmd, enginesRenameCmd, enginesSetPathCmd,
		enginesRemoveCmd, enginesDetectCmd, enginesRefreshCmd)

	engListFmt.register(enginesListCmd)
	engShowFmt.register(enginesShowCmd)
	enginesListCmd.Flags().IntVar(&engMajor, "major", 0, "only valid engines of this major version, newest first")
	enginesAddCmd.Flags().StringVarP(&engAddName, "name", "n", "", "display name (default derived from the version)")
	enginesRemoveCmd.Flags().BoolVarP(&engRmYes, "yes", "y", false, "assume yes")
}
