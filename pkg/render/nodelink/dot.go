package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/normfold/pkg/errors"
	"github.com/matzehuels/normfold/pkg/graph"
	"github.com/matzehuels/normfold/pkg/observability"
	"github.com/matzehuels/normfold/pkg/render"
	"github.com/matzehuels/normfold/pkg/unfold"
)

// Output formats accepted by [Render].
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPDF = "pdf"
	FormatPNG = "png"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed includes class, capabilities and metadata in node labels.
	// When false, only the node name is shown.
	Detailed bool

	// Values appends the current value of every node with a behavior.
	Values bool
}

// ToDOT converts a computation graph to Graphviz DOT format. Edges point
// from client to server, so the top of the expression sits at the top of
// the diagram. The resulting DOT string can be rendered using [RenderSVG],
// [RenderPDF], or [RenderPNG].
//
// Nodes are keyed by ID, not name, because names need not be unique.
// Shape-only edges are dashed. Wrappers and the aggregator added by an
// unfolding session are filled so a rewritten graph can be told apart
// from the original at a glance.
func ToDOT(g *graph.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		label := fmtLabel(g, n, opts)
		attrs := fmtAttrs(n, label)
		fmt.Fprintf(&buf, "  %s [%s];\n", dotID(n.ID), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, n := range g.Nodes() {
		for _, e := range n.Servers() {
			if e.Value {
				fmt.Fprintf(&buf, "  %s -> %s;\n", dotID(n.ID), dotID(e.Server))
			} else {
				fmt.Fprintf(&buf, "  %s -> %s [style=dashed];\n", dotID(n.ID), dotID(e.Server))
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func dotID(id graph.NodeID) string { return "n" + strconv.Itoa(int(id)) }

func fmtLabel(g *graph.Graph, n *graph.Node, opts Options) string {
	parts := []string{n.Name}
	if opts.Detailed {
		if n.Class != "" {
			parts = append(parts, "class: "+n.Class)
		}
		parts = append(parts, "caps: "+n.Caps.String())
		for _, k := range slices.Sorted(maps.Keys(n.Meta)) {
			parts = append(parts, fmt.Sprintf("%s: %v", k, n.Meta[k]))
		}
	}
	if opts.Values && n.Impl != nil {
		if v := g.Value(n.ID); !math.IsNaN(v) {
			parts = append(parts, "= "+strconv.FormatFloat(v, 'g', 6, 64))
		}
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(n *graph.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch n.Class {
	case unfold.WrapperClass:
		attrs = append(attrs, "fillcolor=lightblue")
	case unfold.RootClass:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	default:
		if n.IsFundamental() {
			attrs = append(attrs, "shape=ellipse", "style=filled")
		}
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [render.ToPDF] or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(tag))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
// A scale of 2.0 produces a 2x resolution image suitable for high-DPI displays.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}

// Render converts g to DOT and renders it in the given format. The
// registered render hooks observe every call.
func Render(ctx context.Context, g *graph.Graph, format string, opts Options) (out []byte, err error) {
	hooks := observability.Render()
	hooks.OnRenderStart(ctx, format, g.Len())
	start := time.Now()
	defer func() {
		hooks.OnRenderComplete(ctx, format, len(out), time.Since(start), err)
	}()

	dot := ToDOT(g, opts)
	switch format {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		return RenderSVG(ctx, dot)
	case FormatPDF:
		return RenderPDF(ctx, dot)
	case FormatPNG:
		return RenderPNG(ctx, dot, 2.0)
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported render format %q (want dot, svg, pdf or png)", format)
	}
}
