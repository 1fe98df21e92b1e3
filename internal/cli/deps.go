package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/normfold/pkg/errors"
	"github.com/matzehuels/normfold/pkg/graph/reach"
)

// depsCommand creates the deps command for dependency queries.
func (c *CLI) depsCommand() *cobra.Command {
	var valueOnly bool

	cmd := &cobra.Command{
		Use:   "deps [model] [node] [target...]",
		Short: "Report whether a node depends on other nodes",
		Long: `Deps snapshots the subgraph below node and answers, for every target,
whether node depends on it. Answers are memoized across targets; the work
counters of the checker are printed at the end.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], args[2:], valueOnly)
		},
	}

	cmd.Flags().BoolVar(&valueOnly, "value-only", false, "ignore shape-only edges")

	return cmd
}

func runDeps(ctx context.Context, out io.Writer, path, node string, targets []string, valueOnly bool) error {
	m, err := loadModel(ctx, path)
	if err != nil {
		return err
	}
	g := m.Graph

	from, ok := g.Find(node)
	if !ok {
		return errors.New(errors.ErrCodeNodeNotFound, "unknown node %q", node)
	}

	var opts []reach.Option
	if valueOnly {
		opts = append(opts, reach.ValueEdgesOnly())
	}
	checker := reach.New(g, from.ID, opts...)
	loggerFromContext(ctx).Debugf("Snapshot of %s holds %d nodes", node, len(checker.Nodes()))

	fmt.Fprintln(out, StyleTitle.Render("Dependencies of "+from.Label()))
	for _, name := range targets {
		to, ok := g.Find(name)
		if !ok {
			return errors.New(errors.ErrCodeNodeNotFound, "unknown node %q", name)
		}
		printAnswer(out, from.Name, to.Name, checker.DependsOn(from.ID, to.ID))
	}

	stats := checker.Stats()
	printStats(out,
		fmt.Sprintf("%d nodes in snapshot", len(checker.Nodes())),
		fmt.Sprintf("%d queries", stats.Queries),
		fmt.Sprintf("%d memo hits", stats.MemoHits),
		fmt.Sprintf("%d expansions", stats.Expansions),
	)
	return nil
}
