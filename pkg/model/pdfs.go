package model

import (
	"math"

	"github.com/matzehuels/normfold/pkg/graph"
)

// Gaussian is an unnormalized gaussian with servers x, mean and sigma.
type Gaussian struct{}

func (Gaussian) Evaluate(g *graph.Graph, n *graph.Node) float64 {
	x, mean, sigma := g.ServerValue(n, 0), g.ServerValue(n, 1), g.ServerValue(n, 2)
	d := (x - mean) / sigma
	return math.Exp(-0.5 * d * d)
}

// Integral is analytic over {x} and over {mean}.
func (Gaussian) Integral(g *graph.Graph, n *graph.Node, set graph.NormSet) (float64, bool) {
	s := n.Servers()
	sigma := g.ServerValue(n, 2)
	switch {
	case only(set, s[0].Server):
		lo, hi, ok := settable(g, s[0].Server)
		if !ok {
			return 0, false
		}
		return gaussIntegral(lo, hi, g.ServerValue(n, 1), sigma), true
	case only(set, s[1].Server):
		lo, hi, ok := settable(g, s[1].Server)
		if !ok {
			return 0, false
		}
		return gaussIntegral(lo, hi, g.ServerValue(n, 0), sigma), true
	}
	return 0, false
}

// Exponential is exp(c*x) with servers x and c.
type Exponential struct{}

func (Exponential) Evaluate(g *graph.Graph, n *graph.Node) float64 {
	return math.Exp(g.ServerValue(n, 1) * g.ServerValue(n, 0))
}

// Integral is analytic over {x}.
func (Exponential) Integral(g *graph.Graph, n *graph.Node, set graph.NormSet) (float64, bool) {
	x := n.Servers()[0].Server
	if !only(set, x) {
		return 0, false
	}
	lo, hi, ok := settable(g, x)
	if !ok {
		return 0, false
	}
	c := g.ServerValue(n, 1)
	if c == 0 {
		return hi - lo, true
	}
	return (math.Exp(c*hi) - math.Exp(c*lo)) / c, true
}

// Uniform is flat in all its servers.
type Uniform struct{}

func (Uniform) Evaluate(*graph.Graph, *graph.Node) float64 { return 1 }

// Integral is the volume of the set's variables among the servers.
func (Uniform) Integral(g *graph.Graph, n *graph.Node, set graph.NormSet) (float64, bool) {
	vol := 1.0
	for _, e := range n.Servers() {
		if !set.Contains(e.Server) {
			continue
		}
		lo, hi, ok := settable(g, e.Server)
		if !ok {
			return 0, false
		}
		vol *= hi - lo
	}
	return vol, true
}

// ProdPdf multiplies pdfs. A factor listed in Conditional is normalized over
// the product's set minus its conditional observables.
type ProdPdf struct {
	Conditional map[graph.NodeID]graph.NormSet
}

func (p *ProdPdf) Evaluate(g *graph.Graph, n *graph.Node) float64 {
	return Product{}.Evaluate(g, n)
}

func (p *ProdPdf) NormSetForServer(_ *graph.Graph, _ *graph.Node, set graph.NormSet, server graph.NodeID) (graph.NormSet, bool) {
	cond, ok := p.Conditional[server]
	if !ok {
		return nil, false
	}
	return set.Without(cond...), true
}

// AddPdf is a coefficient-weighted sum of pdfs. The first Pdfs servers are
// the pdfs; the remaining servers are the coefficients, one per pdf. The
// coefficients are divided by their sum, so the result stays normalized
// when its pdfs are.
type AddPdf struct {
	Pdfs int
}

func (a *AddPdf) Evaluate(g *graph.Graph, n *graph.Node) float64 {
	return a.combine(g, n, func(i int) float64 { return g.ServerValue(n, i) })
}

func (a *AddPdf) Integral(g *graph.Graph, n *graph.Node, set graph.NormSet) (float64, bool) {
	s := n.Servers()
	return a.combine(g, n, func(i int) float64 { return g.Integral(s[i].Server, set) }), true
}

func (a *AddPdf) combine(g *graph.Graph, n *graph.Node, term func(int) float64) float64 {
	var sum, norm float64
	for i := 0; i < a.Pdfs; i++ {
		c := g.ServerValue(n, a.Pdfs+i)
		sum += c * term(i)
		norm += c
	}
	if norm == 0 {
		return math.NaN()
	}
	return sum / norm
}

// CachedPdf normalizes its single pdf server with an integral computed once
// per normalization set in Prepare. Evaluation uses the most recently
// prepared set.
type CachedPdf struct {
	cache  map[string]float64
	active string
	order  []string
}

func (c *CachedPdf) Prepare(g *graph.Graph, n *graph.Node, set graph.NormSet) {
	key := set.Key()
	if c.cache == nil {
		c.cache = make(map[string]float64)
	}
	if _, ok := c.cache[key]; !ok {
		c.cache[key] = g.Integral(n.Servers()[0].Server, set)
		c.order = append(c.order, key)
	}
	c.active = key
}

func (c *CachedPdf) Evaluate(g *graph.Graph, n *graph.Node) float64 {
	v := g.ServerValue(n, 0)
	if norm, ok := c.cache[c.active]; ok && norm != 0 {
		return v / norm
	}
	return v
}

func (c *CachedPdf) Integral(g *graph.Graph, n *graph.Node, set graph.NormSet) (float64, bool) {
	norm, ok := c.cache[c.active]
	if !ok || norm == 0 || set.Key() != c.active {
		return 0, false
	}
	return g.Integral(n.Servers()[0].Server, set) / norm, true
}

// Prepared returns the keys of the sets prepared so far, in order.
func (c *CachedPdf) Prepared() []string { return append([]string(nil), c.order...) }
