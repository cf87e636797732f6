package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreamunreal/ueman/internal/filter"
	"github.com/dreamunreal/ueman/internal/project"
	"github.com/dreamunreal/ueman/internal/watch"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project"},
	Short:   "Manage known Unreal projects",
}

var (
	projListFmt    format
	projShowFmt    format
	projFilter     filter.Options
	projSort       string
	projEnrich     bool
	projAddName    string
	projRmYes      bool
	projScanDepth  int
	projUnfavorite bool
	projForce      bool
)

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, filtered and sorted",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := filter.ParseSortKey(projSort)
		if err != nil {
			return err
		}
		opts := projFilter
		opts.SortKey = key

		a, err := openApp(cmd.Context(), appOptions{sizeCache: projEnrich})
		if err != nil {
			return err
		}
		defer a.Close()

		if projEnrich {
			if err := a.projects.Enrich(cmd.Context()); err != nil {
				return err
			}
		}

		projects := filter.Apply(a.projects.List(), opts)
		if ok, err := projListFmt.emit(cmd.OutOrStdout(), projects); ok {
			return err
		}
		if len(projects) == 0 {
			printf("No projects match\n")
			return nil
		}
		w := newTable(cmd.OutOrStdout())
		fmt.Fprintln(w, "\tNAME\tENGINE\tSIZE\tBRANCH\tMODIFIED\tLAST USED\tPATH")
		for _, p := range projects {
			fav := " "
			if p.IsFavorite {
				fav = yellow("*")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				fav, p.DisplayName, engineLabel(p), size(p.ProjectSizeBytes), orDash(p.GitBranch),
				ago(p.LastModified), ago(p.LastUsedOrZero()), p.ProjectFilePath)
		}
		return w.Flush()
	},
}

func engineLabel(p project.Record) string {
	if p.AssociatedEngineID == "" {
		return yellow(orDash(p.EngineAssociation))
	}
	return p.EngineAssociation
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Show one project by .uproject path or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.findProject(args[0])
		if err != nil {
			return err
		}
		if ok, err := projShowFmt.emit(cmd.OutOrStdout(), p); ok {
			return err
		}

		w := newTable(cmd.OutOrStdout())
		fmt.Fprintf(w, "Name:\t%s\n", cyan(p.DisplayName))
		fmt.Fprintf(w, "File:\t%s\n", p.ProjectFilePath)
		fmt.Fprintf(w, "Engine:\t%s\n", engineLabel(p))
		fmt.Fprintf(w, "Description:\t%s\n", orDash(p.Description))
		fmt.Fprintf(w, "Category:\t%s\n", orDash(p.Category))
		fmt.Fprintf(w, "Favorite:\t%t\n", p.IsFavorite)
		fmt.Fprintf(w, "Size:\t%s\n", size(p.ProjectSizeBytes))
		if p.IsGitEnabled {
			fmt.Fprintf(w, "Git:\t%s (%s)\n", orDash(p.GitBranch), size(p.GitFolderSizeBytes))
		}
		fmt.Fprintf(w, "Modified:\t%s\n", p.LastModified.Local().Format(time.RFC3339))
		fmt.Fprintf(w, "Last used:\t%s\n", ago(p.LastUsedOrZero()))
		for _, m := range p.Modules {
			fmt.Fprintf(w, "Module:\t%s (%s, %s)\n", m.Name, orDash(m.Type), orDash(m.LoadingPhase))
		}
		for _, pl := range p.Plugins {
			state := red("disabled")
			if pl.Enabled {
				state = green("enabled")
			}
			fmt.Fprintf(w, "Plugin:\t%s %s\n", pl.Name, state)
		}
		return w.Flush()
	},
}

var projectsAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Register a .uproject file or the directory holding one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.projects.Add(args[0], projAddName)
		if err != nil {
			return err
		}
		printf("Registered %q (%s) at %s\n", p.DisplayName, engineLabel(p), p.ProjectFilePath)
		return nil
	},
}

var projectsRemoveCmd = &cobra.Command{
	Use:   "remove <project>",
	Short: "Forget a project. Files on disk are not touched.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.findProject(args[0])
		if err != nil {
			return err
		}
		ok, err := confirm(fmt.Sprintf("Remove project %s", p.DisplayName), projRmYes)
		if err != nil || !ok {
			if err == nil {
				printf("aborted\n")
			}
			return err
		}
		if _, err := a.projects.Remove(p.ProjectFilePath); err != nil {
			return err
		}
		printf("Removed %s\n", p.DisplayName)
		return nil
	},
}

var projectsScanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Find and register every project below a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		depth := cfg.ScanDepth
		if cmd.Flags().Changed("depth") {
			depth = projScanDepth
		}
		added, err := a.projects.Scan(cmd.Context(), args[0], depth)
		if err != nil {
			return err
		}
		if len(added) == 0 {
			printf("No new projects found\n")
			return nil
		}
		for _, p := range added {
			printf("%s %s (%s) %s\n", green("+"), p.DisplayName, engineLabel(p), p.ProjectFilePath)
		}
		return nil
	},
}

var projectsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Drop projects whose .uproject file no longer exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.projects.CleanupInvalid()
		if err != nil {
			return err
		}
		printf("Removed %d missing project(s)\n", n)
		return nil
	},
}

var projectsFavoriteCmd = &cobra.Command{
	Use:   "favorite <project>",
	Short: "Pin a project to the top of listings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.findProject(args[0])
		if err != nil {
			return err
		}
		if p, err = a.projects.SetFavorite(p.ProjectFilePath, !projUnfavorite); err != nil {
			return err
		}
		if p.IsFavorite {
			printf("%s %s is a favorite\n", yellow("*"), p.DisplayName)
		} else {
			printf("%s is no longer a favorite\n", p.DisplayName)
		}
		return nil
	},
}

var projectsRenameCmd = &cobra.Command{
	Use:   "rename <project> [name]",
	Short: "Set a project's display name; without a name the default is restored",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.findProject(args[0])
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 2 {
			name = args[1]
		}
		if p, err = a.projects.Rename(p.ProjectFilePath, name); err != nil {
			return err
		}
		printf("Renamed to %q\n", p.DisplayName)
		return nil
	},
}

var projectsEnrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Compute project sizes and Git status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{sizeCache: true, skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now()
		if projForce && a.cache != nil {
			for _, p := range a.projects.List() {
				if err := a.cache.Delete(cmd.Context(), p.ProjectDirectory); err != nil {
					log.WithField("path", p.ProjectDirectory).Warnf("failed to drop cached size: %v", err)
				}
			}
		}
		if err := a.projects.Enrich(cmd.Context()); err != nil {
			return err
		}
		var total int64
		projects := a.projects.List()
		for _, p := range projects {
			total += p.ProjectSizeBytes
		}
		printf("Enriched %d project(s), %s in total (%s)\n", len(projects), size(total), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var projectsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the registry in step with project files until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, appOptions{skipDetect: true, onChange: func(c project.Change) {
			printf("%-8s %s\n", c.Kind, c.Path)
		}})
		if err != nil {
			return err
		}
		defer a.Close()

		var reg watch.Registry = a.projects
		printf("Watching %d project(s), press Ctrl+C to stop\n", len(a.projects.List()))
		return watch.New(reg, watch.Options{Logger: log}).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd, projectsShowCmd, projectsAddCmd, projectsRemoveCmd, projectsScanCmd,
		projectsCleanupCmd, projectsFavoriteCmd, projectsRenameCmd, projectsEnrichCmd, projectsWatchCmd)

	f := projectsListCmd.Flags()
	projListFmt.register(projectsListCmd)
	f.StringVarP(&projFilter.SearchText, "search", "s", "", "match name, description, engine or directory")
	f.StringVarP(&projFilter.EngineFilter, "engine", "e", filter.AllEngines, "only projects with this engine association")
	f.StringVar(&projSort, "sort", string(filter.SortLastUsed), "sort key: name, engine, size, modified, lastused")
	f.BoolVar(&projFilter.OnlyFavorites, "favorites", false, "only favorite projects")
	f.BoolVar(&projFilter.FavoriteFirst, "favorites-first", true, "list favorites before other projects")
	f.BoolVar(&projEnrich, "sizes", false, "compute sizes and Git status before listing")

	projShowFmt.register(projectsShowCmd)
	projectsAddCmd.Flags().StringVarP(&projAddName, "name", "n", "", "display name (default from the project file)")
	projectsRemoveCmd.Flags().BoolVarP(&projRmYes, "yes", "y", false, "assume yes")
	projectsScanCmd.Flags().IntVarP(&projScanDepth, "depth", "d", project.DefaultScanDepth, "directory levels to descend")
	projectsFavoriteCmd.Flags().BoolVar(&projUnfavorite, "off", false, "remove the favorite mark instead")
	projectsEnrichCmd.Flags().BoolVar(&projForce, "force", false, "ignore cached sizes and recompute")
}
