package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/CatConfLang/pytestgen"
	"github.com/CatConfLang/pytestgen/generator"
	"github.com/CatConfLang/pytestgen/report"
)

type baseSetOptions struct {
	configPath    string
	seed          int64
	maxRejections int
	limit         int
	output        string
}

func newBaseSetCmd(root *rootOptions) *cobra.Command {
	opts := &baseSetOptions{}

	cmd := &cobra.Command{
		Use:   "baseset",
		Short: "Print the base set of a configuration without running anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, root)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Configuration document (JSON or YAML)")
	f.Int64Var(&opts.seed, "seed", 0, "Seed for the random phase (default: random)")
	f.IntVar(&opts.maxRejections, "max-rejections", generator.DefaultMaxRejections, "Consecutive duplicate random draws tolerated, negative for no bound")
	f.IntVar(&opts.limit, "limit", 0, "Print at most this many cases (0 prints all)")
	f.StringVarP(&opts.output, "output", "o", "", "Write the base set to a file instead of stdout")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func (o *baseSetOptions) run(cmd *cobra.Command, root *rootOptions) error {
	if o.limit < 0 {
		return fmt.Errorf("--limit must not be negative, got %d", o.limit)
	}
	bopts := pytestgen.BaseSetOptions{MaxRejections: o.maxRejections, Logger: root.logger}
	if cmd.Flags().Changed("seed") {
		bopts.Seed = &o.seed
	}

	spec, cases, err := pytestgen.GenerateBaseSet(o.configPath, bopts)
	if err != nil {
		return err
	}
	if o.limit > 0 && len(cases) > o.limit {
		cases = cases[:o.limit]
	}

	suite := &report.Suite{FunctionName: spec.FunctionName}
	for _, tc := range cases {
		suite.Entries = append(suite.Entries, report.Entry{Case: tc})
	}
	return writeOutput(cmd.OutOrStdout(), o.output, func(w io.Writer) error {
		return report.WriteText(w, suite)
	})
}
