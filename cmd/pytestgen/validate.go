package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CatConfLang/pytestgen/loader"
)

type validateOptions struct {
	configPath string
	watch      bool
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse configuration documents and print their parameter trees",
		Long: `Parses --config, which may be a single document or a directory of *.json,
*.yaml and *.yml documents, and prints each parameter tree with the size of
its exhaustive set. With --watch the documents are validated again on every
change until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, root)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Configuration document or directory")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Validate again whenever a document changes")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func (o *validateOptions) run(cmd *cobra.Command, root *rootOptions) error {
	l := loader.NewConfigLoader(root.logger)
	out := cmd.OutOrStdout()

	if !o.watch {
		loaded, err := l.Load(o.configPath)
		if err != nil {
			return err
		}
		return printLoaded(out, loaded)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := l.Watch(ctx, o.configPath, func(loaded []loader.Loaded, err error) {
		if err == nil {
			err = printLoaded(out, loaded)
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			root.logger.Debug("validation failed", zap.Error(err))
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printLoaded(out io.Writer, loaded []loader.Loaded) error {
	for _, item := range loaded {
		stats, err := loader.GetSpecStatistics(item.Spec)
		if err != nil {
			return fmt.Errorf("%s: %w", item.Path, err)
		}
		fmt.Fprintf(out, "%s: ok\n", item.Path)
		fmt.Fprint(out, loader.DescribeSpec(item.Spec))
		fmt.Fprintf(out, "exhaustive cases: %d\n", stats.ExhaustiveSize)
	}
	return nil
}
