package cmd

import (
	"fmt"

	"github.com/dreamunreal/ueman/internal/engine"
	"github.com/dreamunreal/ueman/internal/launch"
	"github.com/dreamunreal/ueman/internal/project"
	"github.com/spf13/cobra"
)

var (
	launchEngine string
	launchIDE    bool
	launchFolder bool
	launchDryRun bool
)

var launchCmd = &cobra.Command{
	Use:   "launch <project>",
	Short: "Open a project in its engine's editor, the configured IDE or the file manager",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.findProject(args[0])
		if err != nil {
			return err
		}

		var c launch.Command
		var e engine.Record
		switch {
		case launchFolder:
			c = launch.OpenFolderCommand(p.ProjectDirectory)
		case launchIDE:
			if c, err = launch.IDECommand(a.fs, a.settings.DefaultIDE(), p.ProjectDirectory); err != nil {
				return err
			}
		default:
			if e, err = a.pickEngine(p); err != nil {
				return err
			}
			if c, err = launch.EditorCommand(a.fs, e.InstallPath, p.ProjectFilePath); err != nil {
				return err
			}
		}

		printf("Executing: %s\n", c)
		if launchDryRun {
			return nil
		}
		if err := a.launcher.Start(cmd.Context(), c); err != nil {
			return err
		}

		if _, err := a.projects.MarkUsed(p.ProjectFilePath); err != nil {
			return err
		}
		if e.ID != "" {
			if _, err := a.engines.MarkUsed(e.ID); err != nil {
				return err
			}
		}
		return nil
	},
}

// pickEngine returns the engine to open p with: --engine, then the resolved
// association, then an interactive choice among the valid engines.
func (a *app) pickEngine(p project.Record) (engine.Record, error) {
	e, err := a.engineFor(p, launchEngine)
	if err == nil || launchEngine != "" || !interactive() {
		return e, err
	}

	valid := a.engines.GetValid()
	if len(valid) == 0 {
		return engine.Record{}, err
	}
	items := make([]string, len(valid))
	for i, rec := range valid {
		items[i] = fmt.Sprintf("%s (%s)", rec.DisplayName, rec.Version())
	}
	i, perr := choose(fmt.Sprintf("%s targets %q; open with", p.DisplayName, p.EngineAssociation), items)
	if perr != nil {
		return engine.Record{}, perr
	}
	return valid[i], nil
}

func init() {
	rootCmd.AddCommand(launchCmd)
	launchCmd.Flags().StringVarP(&launchEngine, "engine", "e", "", "engine id, name or version (default from the project association)")
	launchCmd.Flags().BoolVar(&launchIDE, "ide", false, "open the project in the DefaultIDE setting instead")
	launchCmd.Flags().BoolVar(&launchFolder, "folder", false, "open the project directory in the file manager instead")
	launchCmd.Flags().BoolVar(&launchDryRun, "dry-run", false, "print the command without running it")
	launchCmd.MarkFlagsMutuallyExclusive("ide", "folder")
	launchCmd.MarkFlagsMutuallyExclusive("engine", "ide")
}
