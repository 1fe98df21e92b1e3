package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/normfold/pkg/errors"
	"github.com/matzehuels/normfold/pkg/graph"
	pkgio "github.com/matzehuels/normfold/pkg/io"
	"github.com/matzehuels/normfold/pkg/unfold"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// unfoldOpts holds the command-line flags for the unfold command.
type unfoldOpts struct {
	top    string // top node name; defaults to the document's top
	norm   string // comma-separated variable names; defaults to the document's norm
	format string // report format: text or json
	bins   int    // midpoint bins for numeric integrals
}

// unfoldReport is what the unfold command prints.
type unfoldReport struct {
	Session  string          `json:"session,omitempty"`
	Top      string          `json:"top"`
	Norm     []string        `json:"norm"`
	Visited  int             `json:"visited"`
	Rewrites []rewriteReport `json:"rewrites"`
	Before   float64         `json:"before"`
	After    float64         `json:"after"`
	Restored bool            `json:"restored"`
}

type rewriteReport struct {
	Original string   `json:"original"`
	Wrapper  string   `json:"wrapper"`
	Norm     []string `json:"norm"`
	Clients  []string `json:"clients"`
}

// unfoldCommand creates the unfold command.
func (c *CLI) unfoldCommand() *cobra.Command {
	opts := unfoldOpts{format: formatText, bins: graph.DefaultBins}

	cmd := &cobra.Command{
		Use:   "unfold [model]",
		Short: "Unfold a model under a normalization set and fold it back",
		Long: `Unfold loads a model, propagates the normalization set from the top node,
wraps every pdf that needs it in a normalized node and reports the rewrite
together with the top value before and after. The graph is then folded back
and checked against its original wiring.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != formatText && opts.format != formatJSON {
				return errors.New(errors.ErrCodeInvalidInput, "invalid format: %s (must be 'text' or 'json')", opts.format)
			}
			if opts.bins <= 0 {
				return errors.New(errors.ErrCodeInvalidInput, "--bins must be positive")
			}
			return runUnfold(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.top, "top", "", "top node (default: the model's top)")
	cmd.Flags().StringVarP(&opts.norm, "norm", "n", "", "normalization variables, comma-separated (default: the model's norm)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "report format: text, json")
	cmd.Flags().IntVar(&opts.bins, "bins", opts.bins, "midpoint bins per variable for numeric integrals")

	return cmd
}

// runUnfold loads the model, unfolds it, writes the report and verifies that
// folding restored the wiring snapshot.
func runUnfold(ctx context.Context, out io.Writer, path string, opts unfoldOpts) error {
	logger := loggerFromContext(ctx)

	m, err := loadModel(ctx, path)
	if err != nil {
		return err
	}
	top, err := resolveTop(m, opts.top)
	if err != nil {
		return err
	}
	set, err := resolveNorm(m, opts.norm)
	if err != nil {
		return err
	}
	g := m.Graph

	prevBins := graph.DefaultBins
	graph.DefaultBins = opts.bins
	defer func() { graph.DefaultBins = prevBins }()

	before, err := pkgio.Snapshot(g)
	if err != nil {
		return err
	}

	report := unfoldReport{
		Top:    g.Name(top),
		Norm:   g.Names(set),
		Before: g.Value(top),
	}

	prog := newProgress(logger)
	err = unfold.With(ctx, g, top, set, func(u *unfold.Unfolder) error {
		report.Session = u.Session()
		report.Visited = u.Visited().Len()
		for _, r := range u.Ledger().Entries() {
			report.Rewrites = append(report.Rewrites, rewriteReport{
				Original: g.Name(r.Original),
				Wrapper:  g.Name(r.Wrapper),
				Norm:     g.Names(r.NormSet),
				Clients:  g.Names(r.Clients()),
			})
		}
		report.After = g.Value(u.Arg())
		return nil
	}, unfold.WithLogger(logger))
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Unfolded %s over %s", report.Top, g.FormatNormSet(set)))

	after, err := pkgio.Snapshot(g)
	if err != nil {
		return err
	}
	report.Restored = bytes.Equal(before, after)

	if err := writeUnfoldReport(out, &report, opts.format); err != nil {
		return err
	}
	if !report.Restored {
		return restoreError(before, after)
	}
	return nil
}

func restoreError(before, after []byte) error {
	a, err := pkgio.ReadJSON(bytes.NewReader(before))
	if err != nil {
		return err
	}
	b, err := pkgio.ReadJSON(bytes.NewReader(after))
	if err != nil {
		return err
	}
	return errors.New(errors.ErrCodeInternal, "graph wiring not restored after fold: %s", strings.Join(pkgio.Diff(a, b), "; "))
}

func writeUnfoldReport(w io.Writer, r *unfoldReport, format string) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintln(w, StyleTitle.Render(fmt.Sprintf("Unfold %s over (%s)", r.Top, strings.Join(r.Norm, ","))))
	if len(r.Norm) == 0 {
		printWarning(w, "empty normalization set: nothing to unfold")
	} else {
		printKeyValue(w, "session", r.Session)
		printStats(w, fmt.Sprintf("%d nodes visited", r.Visited), fmt.Sprintf("%d wrapped", len(r.Rewrites)))
		rows := make([][]string, 0, len(r.Rewrites))
		for _, rw := range r.Rewrites {
			rows = append(rows, []string{rw.Original, rw.Wrapper, "(" + strings.Join(rw.Norm, ",") + ")", strings.Join(rw.Clients, ", ")})
		}
		if len(rows) > 0 {
			printTable(w, []string{"Original", "Wrapper", "Norm", "Clients"}, rows, 1)
		}
	}
	printKeyValue(w, "before", formatValue(r.Before))
	printKeyValue(w, "after", formatValue(r.After))
	if r.Restored {
		printSuccess(w, "folded back, wiring restored")
	} else {
		printError(w, "wiring differs after fold")
	}
	return nil
}
