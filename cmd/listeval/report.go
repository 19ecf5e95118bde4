package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okian/listeval/internal/adapters/repository"
	"github.com/okian/listeval/internal/domain/aggregate"
	"github.com/okian/listeval/pkg/logger"
)

// Report output formats.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// ErrUnknownOutput is returned for an unsupported --format value.
var ErrUnknownOutput = errors.New("unknown output format")

type reportOptions struct {
	dir    string
	format string
	alpha  float64
}

func newReportCmd() *cobra.Command {
	opts := reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate stored ratings and run paired t-tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "results", "directory holding result files")
	cmd.Flags().StringVarP(&opts.format, "format", "f", outputText, "output format: text, json or yaml")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", aggregate.DefaultAlpha, "significance level")
	return cmd
}

func runReport(ctx context.Context, w io.Writer, opts reportOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.format))
	switch format {
	case outputText, outputJSON, outputYAML:
	default:
		return fmt.Errorf("%q: %w", opts.format, ErrUnknownOutput)
	}
	if opts.alpha <= 0 || opts.alpha >= 1 {
		return fmt.Errorf("alpha %v must be in (0,1)", opts.alpha)
	}

	rep, err := aggregate.New(repository.NewFileStore(opts.dir),
		aggregate.WithAlpha(opts.alpha),
		aggregate.WithLogger(logger.Nop()),
	).Run(ctx)
	if err != nil {
		return err
	}

	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeText(w, rep)
	}
}

// writeText prints per-metric summaries and the pair matrix. Significant
// differences are marked with '*'.
func writeText(w io.Writer, rep aggregate.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%d records from %d files, alpha=%g\n", rep.Records, rep.Files, rep.Alpha)
	for _, m := range rep.Metrics {
		fmt.Fprintf(tw, "\n== %s (%d records, %d duplicates)\n", m.Metric, m.Records, m.Duplicates)
		fmt.Fprint(tw, "system\tn\tmean")
		for _, s := range m.Scores {
			fmt.Fprintf(tw, "\t%d", s)
		}
		fmt.Fprintln(tw)
		for _, sys := range m.Systems {
			fmt.Fprintf(tw, "%s\t%d\t%.3f", sys, m.Counts[sys], m.Means[sys])
			for _, s := range m.Scores {
				fmt.Fprintf(tw, "\t%d", m.Histogram[sys][s])
			}
			fmt.Fprintln(tw)
		}
		if len(m.Pairs) == 0 {
			continue
		}
		fmt.Fprintln(tw)
		fmt.Fprint(tw, "later-earlier")
		for _, sys := range m.Systems {
			fmt.Fprintf(tw, "\t%s", sys)
		}
		fmt.Fprintln(tw)
		for i, row := range m.Matrix {
			fmt.Fprint(tw, m.Systems[i])
			for _, c := range row {
				fmt.Fprintf(tw, "\t%s", cellText(c))
			}
			fmt.Fprintln(tw)
		}
	}
	return tw.Flush()
}

func cellText(c aggregate.Cell) string {
	switch c.State {
	case aggregate.CellComputed:
		mark := ""
		if c.Significant {
			mark = "*"
		}
		return fmt.Sprintf("%+.3f (p=%.3f)%s", *c.Diff, *c.PValue, mark)
	case aggregate.CellUndefined:
		if c.Diff != nil {
			return fmt.Sprintf("%+.3f (p=n/a)", *c.Diff)
		}
		return "n/a"
	default:
		return "-"
	}
}
