package cmd

import (
	"context"
	"fmt"

	"github.com/dreamunreal/ueman/internal/config"
	"github.com/dreamunreal/ueman/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	v       = config.New()
	cfg     config.Config
	log     *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ueman",
	Short: "ueman - Unreal Engine engine and project manager",
	Long: `ueman keeps track of installed Unreal Engine builds and the projects that use them.

It detects engines, resolves each project's EngineAssociation to an installed
engine, and launches editors, IDEs and plugin builds.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the command tree with ctx as the command context
func Execute(ctx context.Context) error {
	// Silence usage and errors to avoid cluttering output with Cobra defaults
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding engines.json, projects.json and settings.json")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().Int("workers", 0, "concurrent size calculations (default from config)")

	_ = v.BindPFlag(config.KeyDataDir, rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = v.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("loglevel"))
	_ = v.BindPFlag(config.KeyWorkers, rootCmd.PersistentFlags().Lookup("workers"))
}

// initConfig reads the config file, environment and flags, then builds the logger
func initConfig() error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	l, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	log = l
	log.WithField("data_dir", cfg.DataDir).Debug("configuration loaded")
	return nil
}

func printf(format string, a ...any) {
	fmt.Fprintf(rootCmd.OutOrStdout(), format, a...)
}
