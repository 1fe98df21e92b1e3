package cli

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/normfold/pkg/cache"
	"github.com/matzehuels/normfold/pkg/errors"
	"github.com/matzehuels/normfold/pkg/graph"
	"github.com/matzehuels/normfold/pkg/model"
	"github.com/matzehuels/normfold/pkg/render/nodelink"
	"github.com/matzehuels/normfold/pkg/unfold"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string // output file path; derived from the input when empty
	format   string // dot, svg, pdf or png; derived from output when empty
	top      string // top node to unfold; defaults to the model's top
	norm     string // comma-separated variables; the graph is unfolded when set
	detailed bool   // show class, capabilities and metadata
	values   bool   // show node values
	stdout   bool   // write to stdout instead of a file
	noCache  bool   // bypass the rendered-diagram cache
}

// validFormats is the set of supported output formats.
var validFormats = map[string]bool{
	nodelink.FormatDOT: true,
	nodelink.FormatSVG: true,
	nodelink.FormatPDF: true,
	nodelink.FormatPNG: true,
}

// renderCommand creates the render command for node-link diagrams.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [model]",
		Short: "Render a model as a node-link diagram",
		Long: `Render draws the computation graph of a model with Graphviz. With --norm the
graph is unfolded first, so the diagram shows the normalized wrappers and the
aggregator node; the model is folded back afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.format = resolveFormat(opts.format, opts.output)
			if err := validateFormat(opts.format); err != nil {
				return err
			}
			return runRender(cmd.Context(), cmd.OutOrStdout(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: model name with the format's extension)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: svg (default), dot, pdf, png")
	cmd.Flags().StringVar(&opts.top, "top", "", "top node to unfold (default: the model's top)")
	cmd.Flags().StringVarP(&opts.norm, "norm", "n", "", "unfold over these variables before rendering, comma-separated")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show class, capabilities and metadata")
	cmd.Flags().BoolVar(&opts.values, "values", false, "show node values")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "write to stdout")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not read or write the diagram cache")

	return cmd
}

// resolveFormat returns format, or the format implied by the output
// extension, or svg.
func resolveFormat(format, output string) string {
	if format != "" {
		return format
	}
	if ext := strings.TrimPrefix(filepath.Ext(output), "."); validFormats[ext] {
		return ext
	}
	return nodelink.FormatSVG
}

// validateFormat checks that format is one of validFormats.
func validateFormat(format string) error {
	if !validFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %s (must be 'svg', 'dot', 'pdf', or 'png')", format)
	}
	return nil
}

// basePath strips the extension from input.
func basePath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input))
}

// runRender loads the model, optionally unfolds it and writes the diagram.
func runRender(ctx context.Context, stdout io.Writer, input string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)
	logger.Infof("Rendering %s", input)

	m, err := loadModel(ctx, input)
	if err != nil {
		return err
	}
	logger.Infof("Loaded graph: %d nodes", m.Graph.Len())

	store := newCache(opts.noCache)
	defer store.Close()

	var data []byte
	draw := func() error {
		data, err = renderCached(ctx, store, m.Graph, opts)
		return err
	}
	if opts.norm == "" {
		err = draw()
	} else {
		err = renderUnfolded(ctx, m, opts, draw)
	}
	if err != nil {
		return err
	}
	logger.Debugf("Generated %s: %d bytes", opts.format, len(data))

	outputPath := opts.output
	if outputPath == "" && !opts.stdout {
		outputPath = basePath(input) + "." + opts.format
	}
	out, err := openOutput(outputPath, stdout)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.Write(data); err != nil {
		return err
	}
	if outputPath != "" {
		printSuccess(stdout, "Rendered %s", input)
		printFile(stdout, outputPath)
		printDetail(stdout, "%d bytes", len(data))
	}
	return nil
}

func renderUnfolded(ctx context.Context, m *model.Model, opts *renderOpts, draw func() error) error {
	top, err := resolveTop(m, opts.top)
	if err != nil {
		return err
	}
	set, err := resolveNorm(m, opts.norm)
	if err != nil {
		return err
	}
	return unfold.With(ctx, m.Graph, top, set, func(u *unfold.Unfolder) error {
		loggerFromContext(ctx).Infof("Unfolded %s over %s: %d wrapper(s)", m.Graph.Name(top), m.Graph.FormatNormSet(set), u.Ledger().Len())
		return draw()
	}, unfold.WithLogger(loggerFromContext(ctx)))
}

// renderCached renders g, reusing a cached diagram when the DOT source and
// format match a previous render. DOT output is never cached.
func renderCached(ctx context.Context, store cache.Cache, g *graph.Graph, opts *renderOpts) ([]byte, error) {
	logger := loggerFromContext(ctx)
	nopts := nodelink.Options{Detailed: opts.detailed, Values: opts.values}
	if opts.format == nodelink.FormatDOT {
		return nodelink.Render(ctx, g, opts.format, nopts)
	}

	key := cache.ArtifactKey(opts.format, nodelink.ToDOT(g, nopts))
	if data, hit, err := store.Get(ctx, key); err != nil {
		logger.Warnf("Cache read failed: %v", err)
	} else if hit {
		logger.Debugf("Using cached %s", opts.format)
		return data, nil
	}

	data, err := nodelink.Render(ctx, g, opts.format, nopts)
	if err != nil {
		return nil, err
	}
	if err := store.Set(ctx, key, data, cache.DefaultTTL); err != nil {
		logger.Warnf("Cache write failed: %v", err)
	}
	return data, nil
}
