package model

import (
	"math"

	"github.com/matzehuels/normfold/pkg/graph"
)

// Class labels of the behaviors in this package.
const (
	ClassVariable    = "RealVar"
	ClassConstant    = "Constant"
	ClassSum         = "Sum"
	ClassProduct     = "Product"
	ClassGeneric     = "Generic"
	ClassGenericPdf  = "GenericPdf"
	ClassGaussian    = "Gaussian"
	ClassExponential = "Exponential"
	ClassUniform     = "Uniform"
	ClassProdPdf     = "ProdPdf"
	ClassAddPdf      = "AddPdf"
	ClassCachedPdf   = "CachedPdf"
)

// Variable is a fundamental value that can be integrated over its range.
type Variable struct {
	Val    float64
	Lo, Hi float64
}

func (v *Variable) Evaluate(*graph.Graph, *graph.Node) float64 { return v.Val }
func (v *Variable) Get() float64                                { return v.Val }
func (v *Variable) Set(x float64)                               { v.Val = x }
func (v *Variable) Range() (float64, float64)                   { return v.Lo, v.Hi }

// Constant is a fixed value.
type Constant float64

func (c Constant) Evaluate(*graph.Graph, *graph.Node) float64 { return float64(c) }

// Sum adds the values of all its servers.
type Sum struct{}

func (Sum) Evaluate(g *graph.Graph, n *graph.Node) float64 {
	var s float64
	for i, e := range n.Servers() {
		if e.Value {
			s += g.ServerValue(n, i)
		}
	}
	return s
}

// Integral splits over the terms.
func (Sum) Integral(g *graph.Graph, n *graph.Node, set graph.NormSet) (float64, bool) {
	var s float64
	for _, e := range n.Servers() {
		if e.Value {
			s += g.Integral(e.Server, set)
		}
	}
	return s, true
}

// Product multiplies the values of all its servers.
type Product struct{}

func (Product) Evaluate(g *graph.Graph, n *graph.Node) float64 {
	p := 1.0
	for i, e := range n.Servers() {
		if e.Value {
			p *= g.ServerValue(n, i)
		}
	}
	return p
}

// settable returns the integration range of id, if it is a variable.
func settable(g *graph.Graph, id graph.NodeID) (lo, hi float64, ok bool) {
	n, found := g.Node(id)
	if !found {
		return 0, 0, false
	}
	s, isVar := n.Impl.(graph.Settable)
	if !isVar {
		return 0, 0, false
	}
	lo, hi = s.Range()
	return lo, hi, true
}

// only reports whether set is exactly {id}.
func only(set graph.NormSet, id graph.NodeID) bool {
	return len(set) == 1 && set[0] == id
}

func gaussIntegral(lo, hi, mean, sigma float64) float64 {
	scale := sigma * math.Sqrt2
	return sigma * math.Sqrt(math.Pi/2) * (math.Erf((hi-mean)/scale) - math.Erf((lo-mean)/scale))
}
