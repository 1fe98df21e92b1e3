package unfold

import (
	"bytes"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/normfold/pkg/graph"
	pkgio "github.com/matzehuels/normfold/pkg/io"
	"github.com/matzehuels/normfold/pkg/model"
)

func quiet() Option { return WithLogger(log.New(io.Discard)) }

func snapshot(t *testing.T, g *graph.Graph) []byte {
	t.Helper()
	b, err := pkgio.Snapshot(g)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return b
}

func assertRestored(t *testing.T, g *graph.Graph, before []byte) {
	t.Helper()
	after := snapshot(t, g)
	if bytes.Equal(before, after) {
		return
	}
	a, _ := pkgio.ReadJSON(bytes.NewReader(before))
	b, _ := pkgio.ReadJSON(bytes.NewReader(after))
	t.Errorf("wiring not restored:\n%v", pkgio.Diff(a, b))
}

// sharedModel is a graph with a shared pdf, a shared function used twice by
// the same client, a shape-only edge and a client outside the model:
//
//	top = Sum(f, p1, f)
//	f = Product(a, k)
//	p1 = ProdPdf(a, bq), shape edge to k
//	outside = Sum(a)
type sharedModel struct {
	g                                   *graph.Graph
	x, y, k, a, bq, f, p1, top, outside graph.NodeID
}

func newSharedModel(t *testing.T) sharedModel {
	t.Helper()
	b := model.NewBuilder()
	m := sharedModel{}
	m.x = b.Var("x", 0.2, -3, 3)
	m.y = b.Var("y", 0.4, 0, 1)
	m.k = b.Const("k", 2)
	m.a = b.Gaussian("a", m.x, b.Const("mu", 0), b.Const("sigma", 1))
	m.bq = b.Uniform("bq", m.y)
	m.f = b.Product("f", m.a, m.k)
	m.p1 = b.ProdPdf("p1", model.Factor{Pdf: m.a}, model.Factor{Pdf: m.bq})
	b.Shape(m.p1, m.k)
	m.top = b.Sum("top", m.f, m.p1, m.f)
	m.outside = b.Sum("outside", m.a)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	m.g = g
	return m
}
