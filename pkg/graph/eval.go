package graph

import (
	"math"
)

// Behavior computes the raw (unnormalized) value of a node from its servers.
// Concrete node kinds live outside this package; the graph only calls into
// them.
type Behavior interface {
	Evaluate(g *Graph, n *Node) float64
}

// Integrator is implemented by behaviors that know the integral of their
// value over some normalization sets. Returning false falls back to
// numeric integration.
type Integrator interface {
	Integral(g *Graph, n *Node, set NormSet) (float64, bool)
}

// ServerNormSetter is implemented by behaviors that evaluate some of their
// servers with a normalization set different from their own.
type ServerNormSetter interface {
	NormSetForServer(g *Graph, n *Node, set NormSet, server NodeID) (NormSet, bool)
}

// Preparer is implemented by behaviors that cache state per normalization
// set. Prepare is called before a node is evaluated under set through a
// wrapper, so direct evaluations stay consistent with wrapped ones.
type Preparer interface {
	Prepare(g *Graph, n *Node, set NormSet)
}

// Settable is implemented by fundamental variables that can be integrated
// over.
type Settable interface {
	Get() float64
	Set(v float64)
	Range() (lo, hi float64)
}

// DefaultBins is the number of midpoint-rule bins per dimension used by
// numeric integration of one variable. Higher dimensions use fewer bins so
// the total number of evaluations stays bounded.
var DefaultBins = 400

// Value returns the raw value of id. Nodes without a behavior evaluate to NaN.
func (g *Graph) Value(id NodeID) float64 {
	n, ok := g.Node(id)
	if !ok || n.Impl == nil {
		return math.NaN()
	}
	return n.Impl.Evaluate(g, n)
}

// ServerValue returns the value of the server in the given slot of n.
func (g *Graph) ServerValue(n *Node, slot int) float64 {
	return g.Value(n.servers[slot].Server)
}

// Integral returns the integral of id's value over the variables of set.
// An empty set integrates over nothing and returns the value itself.
func (g *Graph) Integral(id NodeID, set NormSet) float64 {
	if len(set) == 0 {
		return g.Value(id)
	}
	n, ok := g.Node(id)
	if !ok {
		return math.NaN()
	}
	if in, ok := n.Impl.(Integrator); ok {
		if v, ok := in.Integral(g, n, set); ok {
			return v
		}
	}
	return g.NumericIntegral(id, set)
}

// NormalizedValue returns Value(id) / Integral(id, set).
func (g *Graph) NormalizedValue(id NodeID, set NormSet) float64 {
	if len(set) == 0 {
		return g.Value(id)
	}
	return g.Value(id) / g.Integral(id, set)
}

// NumericIntegral integrates id over set with the midpoint rule. Every
// variable of set must be [Settable]; variables that are not are treated
// as constants. Variable values are restored before returning.
func (g *Graph) NumericIntegral(id NodeID, set NormSet) float64 {
	var vars []Settable
	for _, v := range set {
		if n, ok := g.Node(v); ok {
			if s, ok := n.Impl.(Settable); ok {
				vars = append(vars, s)
			}
		}
	}
	if len(vars) == 0 {
		return g.Value(id)
	}

	bins := binsFor(len(vars))
	saved := make([]float64, len(vars))
	for i, v := range vars {
		saved[i] = v.Get()
	}
	defer func() {
		for i, v := range vars {
			v.Set(saved[i])
		}
	}()

	var integrate func(dim int) float64
	integrate = func(dim int) float64 {
		if dim == len(vars) {
			return g.Value(id)
		}
		lo, hi := vars[dim].Range()
		width := (hi - lo) / float64(bins)
		var sum float64
		for i := 0; i < bins; i++ {
			vars[dim].Set(lo + (float64(i)+0.5)*width)
			sum += integrate(dim + 1)
		}
		return sum * width
	}
	return integrate(0)
}

func binsFor(dims int) int {
	bins := DefaultBins
	switch {
	case dims == 2:
		bins = int(math.Sqrt(float64(DefaultBins))) * 4
	case dims > 2:
		bins = 16
	}
	return max(bins, 4)
}
