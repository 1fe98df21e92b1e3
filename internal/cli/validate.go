package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/normfold/pkg/errors"
	"github.com/matzehuels/normfold/pkg/graph"
	"github.com/matzehuels/normfold/pkg/unfold"
)

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	var top, norm string

	cmd := &cobra.Command{
		Use:   "validate [model]",
		Short: "Check a model document",
		Long: `Validate loads a model, checks that its wiring is consistent and acyclic and,
when the model names a top node and a normalization set, that propagating
the set does not request two different sets for the same pdf.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), cmd.OutOrStdout(), args[0], top, norm)
		},
	}

	cmd.Flags().StringVar(&top, "top", "", "top node (default: the model's top)")
	cmd.Flags().StringVarP(&norm, "norm", "n", "", "normalization variables, comma-separated (default: the model's norm)")

	return cmd
}

func runValidate(ctx context.Context, out io.Writer, path, topName, normFlag string) error {
	m, err := loadModel(ctx, path)
	if err != nil {
		return err
	}
	g := m.Graph

	if topName != "" {
		if m.Top, err = resolveTop(m, topName); err != nil {
			return err
		}
	}
	if m.Norm, err = resolveNorm(m, normFlag); err != nil {
		return err
	}

	if err := g.Validate(); err != nil {
		printError(out, "%s: %v", path, err)
		return errors.Wrap(errors.ErrCodeInvalidModel, err, "invalid wiring in %s", path)
	}

	var pdfs, derived int
	for _, n := range g.Nodes() {
		if n.IsDerived() {
			derived++
		}
		if n.IsPdf() {
			pdfs++
		}
	}

	checked := m.Top != graph.NoNode && len(m.Norm) > 0
	if checked {
		if _, err := unfold.Propagate(g, m.Top, m.Norm); err != nil {
			printError(out, "%s", errors.UserMessage(err))
			return propagationError(path, err)
		}
	}

	printSuccess(out, "%s is valid", path)
	printStats(out,
		fmt.Sprintf("%d nodes", g.Len()),
		fmt.Sprintf("%d derived", derived),
		fmt.Sprintf("%d pdfs", pdfs),
	)
	if m.Top != graph.NoNode {
		printKeyValue(out, "top", g.Name(m.Top))
		printKeyValue(out, "norm", g.FormatNormSet(m.Norm))
	}
	if !checked {
		printInfo(out, "no top node and normalization set given, propagation not checked")
	}
	return nil
}

// propagationError codes a propagation failure: conflicts keep their own
// code, anything else is internal.
func propagationError(path string, err error) error {
	var ce *unfold.ConflictError
	if stderrors.As(err, &ce) {
		return errors.Wrap(errors.ErrCodeConflictingNormalization, err, "%s", path)
	}
	return errors.Wrap(errors.ErrCodeInternal, err, "%s", path)
}
