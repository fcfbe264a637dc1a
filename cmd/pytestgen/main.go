// Command pytestgen generates concise test suites for Python functions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/CatConfLang/pytestgen"
)

type rootOptions struct {
	verbose bool
	logger  *zap.Logger
}

// newRootCmd builds the command tree. A nil logger is built from the
// --verbose flag before any subcommand runs.
func newRootCmd(logger *zap.Logger) *cobra.Command {
	opts := &rootOptions{logger: logger}

	cmd := &cobra.Command{
		Use:   "pytestgen",
		Short: "Generate concise test suites for Python functions",
		Long: `pytestgen expands a parameter configuration into a base set of test cases,
runs each case against a reference and a candidate implementation, and keeps
one case per distinct way the two behave.`,
		Version:       pytestgen.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logger != nil {
				return nil
			}
			config := zap.NewProductionConfig()
			if opts.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newGenerateCmd(opts),
		newBaseSetCmd(opts),
		newValidateCmd(opts),
	)
	return cmd
}

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
