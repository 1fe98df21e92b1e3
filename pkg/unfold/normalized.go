package unfold

import "github.com/matzehuels/normfold/pkg/graph"

// Class labels of the nodes the unfolder adds to a graph.
const (
	WrapperClass = "NormalizedPdf"
	RootClass    = "UnfoldRoot"
)

// Metadata keys set on wrapper nodes.
const (
	MetaSession  = "unfold.session"
	MetaOriginal = "unfold.original"
)

// Normalized is the behavior of a wrapper node: the value of Original
// divided by its integral over Set.
type Normalized struct {
	Original graph.NodeID
	Set      graph.NormSet
}

func (w *Normalized) Evaluate(g *graph.Graph, _ *graph.Node) float64 {
	return g.NormalizedValue(w.Original, w.Set)
}

// Integral is 1 over the wrapper's own set.
func (w *Normalized) Integral(_ *graph.Graph, _ *graph.Node, set graph.NormSet) (float64, bool) {
	if set.Equal(w.Set) {
		return 1, true
	}
	return 0, false
}

// passthrough is the behavior of the aggregator placed above the top node:
// it returns the value of its only server.
type passthrough struct{}

func (passthrough) Evaluate(g *graph.Graph, n *graph.Node) float64 {
	return g.ServerValue(n, 0)
}
