package model

import (
	"math"
	"testing"

	"github.com/matzehuels/normfold/pkg/graph"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestAnalyticIntegralsMatchNumeric(t *testing.T) {
	b := NewBuilder()
	x := b.Var("x", 0.3, -5, 5)
	mu := b.Var("mu", 0.5, -3, 3)
	sigma := b.Const("sigma", 1.2)
	c := b.Const("c", -0.4)
	gauss := b.Gaussian("gauss", x, mu, sigma)
	expo := b.Exponential("expo", x, c)
	flat := b.Uniform("flat", x, mu)
	sum := b.Sum("sum", gauss, expo)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		node graph.NodeID
		set  graph.NormSet
	}{
		{"gaussian over x", gauss, graph.Canonical(x)},
		{"gaussian over mean", gauss, graph.Canonical(mu)},
		{"exponential over x", expo, graph.Canonical(x)},
		{"uniform over x", flat, graph.Canonical(x)},
		{"uniform over x and mu", flat, graph.Canonical(x, mu)},
		{"sum over x", sum, graph.Canonical(x)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analytic := g.Integral(tt.node, tt.set)
			numeric := g.NumericIntegral(tt.node, tt.set)
			if !near(analytic, numeric, 1e-3*math.Max(1, math.Abs(numeric))) {
				t.Errorf("Integral = %v, numeric = %v", analytic, numeric)
			}
		})
	}
}

func TestExponentialFlatSlope(t *testing.T) {
	b := NewBuilder()
	x := b.Var("x", 1, 0, 4)
	e := b.Exponential("e", x, b.Const("c", 0))
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if got := g.Integral(e, graph.Canonical(x)); got != 4 {
		t.Errorf("Integral = %v, want 4", got)
	}
}

func TestProdPdfConditionalOverride(t *testing.T) {
	b := NewBuilder()
	x := b.Var("x", 0, -1, 1)
	y := b.Var("y", 0, -1, 1)
	px := b.Uniform("px", x)
	pxy := b.Generic("pxy", "1 + x*y", true, x, y)
	prod := b.ProdPdf("prod", Factor{Pdf: px}, Factor{Pdf: pxy, Conditional: []graph.NodeID{y}})
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	set := graph.Canonical(x, y)
	if _, ok := g.NormSetForServer(prod, set, px); ok {
		t.Error("unconditional factor should not override the set")
	}
	got, ok := g.NormSetForServer(prod, set, pxy)
	if !ok || !got.Equal(graph.Canonical(x)) {
		t.Errorf("NormSetForServer(pxy) = %v, %v, want [x]", got, ok)
	}
}

func TestAddPdf(t *testing.T) {
	b := NewBuilder()
	x := b.Var("x", 0.5, 0, 1)
	a := b.Uniform("a", x)
	l := b.Generic("lin", "2*x", true, x)
	f1, f2 := b.Const("f1", 1), b.Const("f2", 3)
	add := b.AddPdf("add", []graph.NodeID{a, l}, []graph.NodeID{f1, f2})
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	// (1*1 + 3*1) / 4
	if got := g.Value(add); !near(got, 1, 1e-12) {
		t.Errorf("Value(add) = %v, want 1", got)
	}
	if got := g.Integral(add, graph.Canonical(x)); !near(got, 1, 1e-6) {
		t.Errorf("Integral(add) = %v, want 1", got)
	}
	if !g.MustNode(add).IsSelfNormalized() {
		t.Error("AddPdf should be self-normalized")
	}
}

func TestCachedPdf(t *testing.T) {
	b := NewBuilder()
	x := b.Var("x", 1, 0, 2)
	lin := b.Generic("lin", "x", true, x)
	cached := b.Cached("cached", lin)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	if got := g.Value(cached); got != 1 {
		t.Errorf("Value before Prepare = %v, want 1", got)
	}
	g.Prepare(cached, graph.Canonical(x))
	g.Prepare(cached, graph.Canonical(x))
	if got := g.Value(cached); !near(got, 0.5, 1e-6) {
		t.Errorf("Value after Prepare = %v, want 0.5", got)
	}
	impl := g.MustNode(cached).Impl.(*CachedPdf)
	if got := impl.Prepared(); len(got) != 1 {
		t.Errorf("Prepared() = %v, want one entry", got)
	}
	if got := g.Integral(cached, graph.Canonical(x)); !near(got, 1, 1e-6) {
		t.Errorf("Integral = %v, want 1", got)
	}
}

func TestGenericExpression(t *testing.T) {
	b := NewBuilder()
	x := b.Var("x", 2, 0, 4)
	k := b.Const("k", 3)
	gen := b.Generic("gen", "exp(0) + pow(x, 2) + k * sqrt(4)", false, x, k)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if got := g.Value(gen); !near(got, 11, 1e-12) {
		t.Errorf("Value(gen) = %v, want 11", got)
	}
	if g.MustNode(gen).IsPdf() {
		t.Error("generic without pdf flag should not be pdf-like")
	}
}
