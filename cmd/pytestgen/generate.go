package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CatConfLang/pytestgen"
	"github.com/CatConfLang/pytestgen/cache"
	"github.com/CatConfLang/pytestgen/concise"
	"github.com/CatConfLang/pytestgen/generator"
	"github.com/CatConfLang/pytestgen/harness"
	"github.com/CatConfLang/pytestgen/report"
)

type generateOptions struct {
	configPath        string
	referencePath     string
	candidatePath     string
	python            string
	timeout           time.Duration
	workers           int
	seed              int64
	maxRejections     int
	granularity       string
	separateIdentical bool
	discrepanciesOnly bool
	format            string
	output            string
	cachePath         string
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	defaults := harness.DefaultExecutorConfig()

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the base set against both implementations and print the concise suite",
		Long: `Generates the base set from --config, runs every case against the reference
and the candidate, and prints one case per distinct discrepancy signature.

Example:
  pytestgen generate --config sort.yaml --reference ref.py --candidate sub.py`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, root)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Configuration document (JSON or YAML)")
	f.StringVar(&opts.referencePath, "reference", "", "Python source of the reference implementation")
	f.StringVar(&opts.candidatePath, "candidate", "", "Python source of the candidate implementation")
	f.StringVar(&opts.python, "python", defaults.Python, "Python interpreter")
	f.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "Per-invocation timeout")
	f.IntVar(&opts.workers, "workers", 0, "Concurrent invocations (default: number of CPUs)")
	f.Int64Var(&opts.seed, "seed", 0, "Seed for the random phase (default: random)")
	f.IntVar(&opts.maxRejections, "max-rejections", generator.DefaultMaxRejections, "Consecutive duplicate random draws tolerated, negative for no bound")
	f.StringVar(&opts.granularity, "granularity", harness.GranularityKind.String(), "Signature granularity: kind or category")
	f.BoolVar(&opts.separateIdentical, "separate-identical-failures", false, "Keep cases where both sides raise the same error apart from matches")
	f.BoolVar(&opts.discrepanciesOnly, "discrepancies-only", false, "Drop the witness of the matching signature")
	f.StringVarP(&opts.format, "format", "f", string(report.FormatText), "Output format: text or json")
	f.StringVarP(&opts.output, "output", "o", "", "Write the suite to a file instead of stdout")
	f.StringVar(&opts.cachePath, "cache", "", "SQLite file that keeps reference outcomes between runs")
	for _, name := range []string{"config", "reference", "candidate"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (o *generateOptions) run(cmd *cobra.Command, root *rootOptions) error {
	granularity, err := harness.ParseGranularity(o.granularity)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(o.format)
	if err != nil {
		return err
	}

	req := pytestgen.Request{
		ConfigPath:    o.configPath,
		ReferencePath: o.referencePath,
		CandidatePath: o.candidatePath,
		BaseSet: pytestgen.BaseSetOptions{
			MaxRejections: o.maxRejections,
			Logger:        root.logger,
		},
		Harness: harness.Options{
			Workers: o.workers,
			Python:  o.python,
			Timeout: o.timeout,
			Policy: harness.Policy{
				Granularity:               granularity,
				SeparateIdenticalFailures: o.separateIdentical,
			},
			Logger: root.logger,
		},
		Concise: concise.Options{ExcludeMatches: o.discrepanciesOnly},
	}
	if cmd.Flags().Changed("seed") {
		req.BaseSet.Seed = &o.seed
	}
	if o.cachePath != "" {
		store, err := cache.Open(o.cachePath)
		if err != nil {
			return err
		}
		defer store.Close()
		req.Harness.Store = store
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	suite, err := pytestgen.Generate(ctx, req)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), o.output, func(w io.Writer) error {
		return report.Write(w, suite, format)
	})
}

// writeOutput runs write against path, or against stdout when path is empty.
func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
