// Command webproofs serves the web-proof contributors API and runs its
// maintenance tasks.
//
//	webproofs [serve]            run the HTTP server (default)
//	webproofs migrate            create the contributions table
//	webproofs verify-all [--dir] re-verify every proof document in a directory
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/sakif/webproof-contributors/internal/config"
)

const programName = "webproofs"

// commonRun builds the process logger from cfg, writing to w, and sizes
// GOMAXPROCS to the container CPU quota.
func commonRun(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := cfg.Logger(w).With(slog.String("component", programName))
	slog.SetDefault(logger)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		logger.Debug(fmt.Sprintf(format, v...))
	})); err != nil {
		logger.Warn("setting GOMAXPROCS failed", slog.String("error", err.Error()))
	}
	return logger
}

// mustConfig returns the config loaded by the root command's pre-run hook.
func mustConfig(cmd *cobra.Command) *config.Config {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		slog.Error("no config found in context")
		os.Exit(1)
	}
	return cfg
}

func newRootCommand() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Prove, verify and publish GitHub contributions with web-proofs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serveRun(cmd, mustConfig(cmd))
		},
	}

	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to a YAML config file (environment variables take precedence)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(verifyAllCommand())
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
