package cmd

import (
	"fmt"

	"github.com/dreamunreal/ueman/internal/resolve"
	"github.com/spf13/cobra"
)

var (
	resolveFmt     format
	resolveProject bool
)

type resolveOut struct {
	Input       string `json:"input" yaml:"input"`
	Association string `json:"association" yaml:"association"`
	Matched     bool   `json:"matched" yaml:"matched"`
	EngineID    string `json:"engine_id,omitempty" yaml:"engine_id,omitempty"`
	EngineName  string `json:"engine_name,omitempty" yaml:"engine_name,omitempty"`
	EnginePath  string `json:"engine_path,omitempty" yaml:"engine_path,omitempty"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <association|project>",
	Short: "Show which installed engine an EngineAssociation maps to",
	Long: `Resolve an EngineAssociation value (a version such as 5.4, a branch name or a
source-build GUID) against the valid installed engines. With --project the
argument is a registered project and its association is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		raw := args[0]
		if resolveProject {
			p, err := a.findProject(args[0])
			if err != nil {
				return err
			}
			raw = p.EngineAssociation
		}

		res := resolve.Association(a.engines.GetValid(), raw)
		out := resolveOut{Input: raw, Association: res.Association, Matched: res.Matched, EngineID: res.EngineID}
		if rec, ok := a.engines.Get(res.EngineID); ok {
			out.EngineName = rec.DisplayName
			out.EnginePath = rec.InstallPath
		}
		if ok, err := resolveFmt.emit(cmd.OutOrStdout(), out); ok {
			return err
		}

		if !res.Matched {
			printf("%s %q -> %s\n", yellow("unresolved:"), raw, res.Association)
			return nil
		}
		w := newTable(cmd.OutOrStdout())
		fmt.Fprintf(w, "Association:\t%s\n", res.Association)
		fmt.Fprintf(w, "Engine:\t%s\n", cyan(out.EngineName))
		fmt.Fprintf(w, "Path:\t%s\n", out.EnginePath)
		fmt.Fprintf(w, "ID:\t%s\n", out.EngineID)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveFmt.register(resolveCmd)
	resolveCmd.Flags().BoolVarP(&resolveProject, "project", "p", false, "treat the argument as a registered project")
}
