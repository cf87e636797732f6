package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and change settings.json",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		keys := a.settings.Keys()
		if len(args) == 1 {
			keys = args
		}
		w := newTable(cmd.OutOrStdout())
		for _, k := range keys {
			raw, ok := a.settings.Raw(k)
			if !ok {
				return fmt.Errorf("setting %q is not set", k)
			}
			fmt.Fprintf(w, "%s\t%s\n", k, raw)
		}
		return w.Flush()
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting; JSON values are stored as such, anything else as a string",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{skipDetect: true})
		if err != nil {
			return err
		}
		defer a.Close()

		var value any = args[1]
		if json.Valid([]byte(args[1])) {
			value = json.RawMessage(args[1])
		}
		if err := a.settings.Set(args[0], value); err != nil {
			return err
		}
		printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
}
