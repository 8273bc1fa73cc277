package main

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-mot/benchmark"
)

type benchOptions struct {
	scenarios []string
	frames    int
	format    string
	save      string
}

func newBenchCommand(ctx *commandContext) *cobra.Command {
	opts := benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the synthetic tracking scenarios and print a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger(cmd)
			if err != nil {
				return err
			}

			switch opts.format {
			case benchmark.FormatTable, benchmark.FormatCSV, benchmark.FormatMarkdown:
			default:
				return errors.Errorf("unknown report format %q", opts.format)
			}

			suite := benchmark.NewSuite(opts.save, logger)
			for _, s := range benchmark.DefaultScenarios() {
				if len(opts.scenarios) > 0 && !slices.Contains(opts.scenarios, s.Name) {
					continue
				}
				if opts.frames > 0 {
					s.Frames = opts.frames
				}
				suite.AddScenario(s)
			}
			if len(suite.Scenarios()) == 0 {
				return errors.Errorf("no scenario matches %v", opts.scenarios)
			}

			results, err := suite.RunAll(cmd.Context())
			if err != nil {
				return err
			}

			if _, err := fmt.Fprintln(cmd.OutOrStdout(), benchmark.Render(results, opts.format)); err != nil {
				return err
			}

			if opts.save != "" {
				path, err := suite.SaveResults()
				if err != nil {
					return err
				}
				logger.Info("saved benchmark results", slog.String("path", path))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&opts.scenarios, "scenario", "s", nil, "Scenario names to run (default all)")
	cmd.Flags().IntVar(&opts.frames, "frames", 0, "Override the frame count of every scenario")
	cmd.Flags().StringVarP(&opts.format, "format", "f", benchmark.FormatTable, "Report format (table, csv, markdown)")
	cmd.Flags().StringVar(&opts.save, "save", "", "Directory to save JSON and CSV results in")

	return cmd
}
