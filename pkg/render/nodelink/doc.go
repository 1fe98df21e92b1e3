// Package nodelink renders computation graphs as node-link diagrams.
//
// # Overview
//
// This package produces directed graph visualizations using Graphviz. Every
// node appears as a box (derived nodes) or an ellipse (variables and
// constants), with arrows pointing from a client to its servers.
//
// # Usage
//
// Convert a graph to DOT format, then render to SVG:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Or let [Render] pick the output by format name, which also notifies the
// registered render hooks:
//
//	out, err := nodelink.Render(ctx, g, nodelink.FormatSVG, nodelink.Options{})
//
// # Unfolded Graphs
//
// Rendering a graph while an unfolding session is active shows the rewired
// form: normalized wrappers are filled light blue and the aggregator above
// the top node has a dashed grey outline. Shape-only edges are always dashed.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
