package unfold

import (
	"context"
	stderrors "errors"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/normfold/pkg/errors"
	"github.com/matzehuels/normfold/pkg/graph"
	"github.com/matzehuels/normfold/pkg/model"
	"github.com/matzehuels/normfold/pkg/observability"
)

func TestUnfoldAddOfTwoPdfs(t *testing.T) {
	b := model.NewBuilder()
	x := b.Var("x", 0.7, -5, 5)
	pdfA := b.Gaussian("pdfA", x, b.Const("mu", 0), b.Const("sigma", 1.5))
	pdfB := b.Exponential("pdfB", x, b.Const("c", -0.3))
	top := b.Sum("top", pdfA, pdfB)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	set := graph.Canonical(x)
	want := g.NormalizedValue(pdfA, set) + g.NormalizedValue(pdfB, set)
	before := snapshot(t, g)

	u, err := New(context.Background(), g, top, set, quiet())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	wrappers := u.Ledger().Wrappers()
	if diff := cmp.Diff([]graph.NodeID{pdfA, pdfB}, u.Ledger().Originals()); diff != "" {
		t.Errorf("Originals mismatch (-want +got):\n%s", diff)
	}
	if got := g.ServerIDs(top); !slices.Equal(got, wrappers) {
		t.Errorf("ServerIDs(top) = %v, want wrappers %v", got, wrappers)
	}
	if diff := cmp.Diff([]string{"pdfA_over_x", "pdfB_over_x"}, g.Names(wrappers)); diff != "" {
		t.Errorf("wrapper names mismatch (-want +got):\n%s", diff)
	}
	w := g.MustNode(wrappers[0])
	if w.Class != WrapperClass || w.Meta[MetaSession] != u.Session() || w.Meta[MetaOriginal] != "pdfA" {
		t.Errorf("wrapper = %s %v, want %s with session metadata", w.Label(), w.Meta, WrapperClass)
	}
	if u.Arg() != top {
		t.Errorf("Arg() = %s, want top", g.Name(u.Arg()))
	}
	if got := g.Value(u.Arg()); math.Abs(got-want) > 1e-12 {
		t.Errorf("Value(Arg()) = %v, want %v", got, want)
	}

	if err := u.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := g.ServerIDs(top); !slices.Equal(got, []graph.NodeID{pdfA, pdfB}) {
		t.Errorf("ServerIDs(top) after Close = %v, want [pdfA pdfB]", got)
	}
	assertRestored(t, g, before)
}

func TestUnfoldPdfTop(t *testing.T) {
	b := model.NewBuilder()
	x := b.Var("x", 1, 0, 4)
	top := b.Exponential("top", x, b.Const("c", 0))
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	before := snapshot(t, g)

	err = With(context.Background(), g, top, graph.Canonical(x), func(u *Unfolder) error {
		if u.Arg() == top {
			t.Fatal("Arg() should be the wrapper of a pdf top node")
		}
		if got := g.Value(u.Arg()); math.Abs(got-0.25) > 1e-12 {
			t.Errorf("Value(Arg()) = %v, want 0.25", got)
		}
		return nil
	}, quiet())
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	assertRestored(t, g, before)
}

func TestUnfoldRoundTrip(t *testing.T) {
	m := newSharedModel(t)
	g := m.g
	before := snapshot(t, g)
	beforeLen := g.Len()

	u, err := New(context.Background(), g, m.top, graph.Canonical(m.x, m.y), quiet())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if diff := cmp.Diff([]graph.NodeID{m.a, m.p1, m.bq}, u.Ledger().Originals()); diff != "" {
		t.Errorf("Originals mismatch (-want +got):\n%s", diff)
	}
	if g.Len() != beforeLen+1+u.Ledger().Len() {
		t.Errorf("Len() = %d, want aggregator plus %d wrappers", g.Len(), u.Ledger().Len())
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() while unfolded: %v", err)
	}
	if err := u.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if g.Len() != beforeLen {
		t.Errorf("Len() after Close = %d, want %d", g.Len(), beforeLen)
	}
	assertRestored(t, g, before)
}

func TestUnfoldClientScoping(t *testing.T) {
	m := newSharedModel(t)
	g := m.g

	err := With(context.Background(), g, m.top, graph.Canonical(m.x, m.y), func(u *Unfolder) error {
		wa := u.Ledger().Wrappers()[0]
		if got := g.ServerIDs(m.outside); !slices.Equal(got, []graph.NodeID{m.a}) {
			t.Errorf("ServerIDs(outside) = %v, want [a]", g.Names(got))
		}
		if got := g.ServerIDs(m.f); got[0] != wa {
			t.Errorf("ServerIDs(f)[0] = %s, want %s", g.Name(got[0]), g.Name(wa))
		}
		if got := g.ServerIDs(m.p1); got[0] != wa {
			t.Errorf("ServerIDs(p1)[0] = %s, want %s", g.Name(got[0]), g.Name(wa))
		}
		if u.Visited().Contains(m.outside) {
			t.Error("outside should not be visited")
		}
		return nil
	}, quiet())
	if err != nil {
		t.Fatal(err)
	}
}

func TestUnfoldEmptyNormSetIsNoop(t *testing.T) {
	m := newSharedModel(t)
	g := m.g
	before := snapshot(t, g)

	u, err := New(context.Background(), g, m.top, graph.Canonical(), quiet())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if u.Arg() != m.top {
		t.Errorf("Arg() = %s, want top", g.Name(u.Arg()))
	}
	if u.Ledger().Len() != 0 || u.Visited().Len() != 0 {
		t.Errorf("empty set rewrote the graph: %d replacements, %d visited", u.Ledger().Len(), u.Visited().Len())
	}
	assertRestored(t, g, before)

	if err := u.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	assertRestored(t, g, before)
}

type probe struct{ prepared []string }

func (p *probe) Evaluate(*graph.Graph, *graph.Node) float64 { return 1 }
func (p *probe) Prepare(g *graph.Graph, _ *graph.Node, set graph.NormSet) {
	p.prepared = append(p.prepared, g.FormatNormSet(set))
}

func TestUnfoldSkipsSelfNormalized(t *testing.T) {
	b := model.NewBuilder()
	x := b.Var("x", 0.5, 0, 1)
	g := b.Graph()
	p := &probe{}
	s, err := g.AddNode(graph.Node{Name: "s", Caps: graph.CapDerived | graph.CapPdf | graph.CapSelfNormalized, Impl: p})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.AddServer(s, x, true); err != nil {
		t.Fatal(err)
	}

	err = With(context.Background(), g, s, graph.Canonical(x), func(u *Unfolder) error {
		if u.Ledger().Len() != 0 {
			t.Errorf("self-normalized node was wrapped: %v", g.Names(u.Ledger().Wrappers()))
		}
		if u.Arg() != s {
			t.Errorf("Arg() = %s, want s", g.Name(u.Arg()))
		}
		return nil
	}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"(x)"}, p.prepared); diff != "" {
		t.Errorf("Prepare calls mismatch (-want +got):\n%s", diff)
	}
}

func TestUnfoldCachedPdf(t *testing.T) {
	b := model.NewBuilder()
	x := b.Var("x", 1, 0, 2)
	lin := b.Generic("lin", "x", true, x)
	cached := b.Cached("cached", lin)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	before := snapshot(t, g)

	err = With(context.Background(), g, cached, graph.Canonical(x), func(u *Unfolder) error {
		if diff := cmp.Diff([]graph.NodeID{cached, lin}, u.Ledger().Originals()); diff != "" {
			t.Errorf("Originals mismatch (-want +got):\n%s", diff)
		}
		if u.Arg() != u.Ledger().Wrappers()[0] {
			t.Errorf("Arg() = %s, want the wrapper of cached", g.Name(u.Arg()))
		}
		if got := g.ServerIDs(cached); !slices.Equal(got, []graph.NodeID{lin}) {
			t.Errorf("cached clients must not be redirected: ServerIDs(cached) = %v", g.Names(got))
		}
		if got := u.Ledger().Entries()[1].Clients(); len(got) != 0 {
			t.Errorf("lin wrapper clients = %v, want none", g.Names(got))
		}
		if got := g.Value(u.Arg()); math.Abs(got-0.5) > 1e-9 {
			t.Errorf("Value(Arg()) = %v, want 0.5", got)
		}
		return nil
	}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	assertRestored(t, g, before)
}

func TestUnfoldNarrowsToDependencies(t *testing.T) {
	b := model.NewBuilder()
	x := b.Var("x", 0.1, -3, 3)
	y := b.Var("y", 0.5, 0, 1)
	p := b.Gaussian("p", x, b.Const("mu", 0), b.Const("sigma", 1))
	q := b.Uniform("q", y)
	top := b.Sum("top", p, q)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	// A detached variable with the same name as x.
	lookalike, err := g.AddNode(graph.Node{Name: "x", Class: model.ClassVariable, Impl: &model.Variable{Lo: -3, Hi: 3}})
	if err != nil {
		t.Fatal(err)
	}

	err = With(context.Background(), g, top, graph.Canonical(lookalike, y), func(u *Unfolder) error {
		if got, _ := u.NormSet(p); !got.Equal(graph.Canonical(x)) {
			t.Errorf("NormSet(p) = %v, want [x]", g.Names(got))
		}
		if got, _ := u.NormSet(q); !got.Equal(graph.Canonical(y)) {
			t.Errorf("NormSet(q) = %v, want [y]", g.Names(got))
		}
		if diff := cmp.Diff([]string{"p_over_x", "q_over_y"}, g.Names(u.Ledger().Wrappers())); diff != "" {
			t.Errorf("wrapper names mismatch (-want +got):\n%s", diff)
		}
		return nil
	}, quiet())
	if err != nil {
		t.Fatal(err)
	}
}

func TestUnfoldDuplicateVariableNames(t *testing.T) {
	g, top, a, b, _, xDup := duplicateNames(t)
	before := snapshot(t, g)

	err := With(context.Background(), g, top, graph.Canonical(xDup), func(u *Unfolder) error {
		entries := u.Ledger().Entries()
		if len(entries) != 1 {
			t.Fatalf("ledger has %d entries, want 1", len(entries))
		}
		if entries[0].Original != b || !entries[0].NormSet.Equal(graph.Canonical(xDup)) {
			t.Errorf("wrapped %s over %v, want b over [%d]", g.Name(entries[0].Original), entries[0].NormSet, xDup)
		}
		if set, _ := u.NormSet(a); len(set) != 0 {
			t.Errorf("NormSet(a) = %v, want empty", set)
		}
		return nil
	}, quiet())
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	assertRestored(t, g, before)
}

func TestUnfoldConflict(t *testing.T) {
	b := model.NewBuilder()
	x := b.Var("x", 0.1, -1, 1)
	y := b.Var("y", 0.2, -1, 1)
	m := b.Generic("m", "1 + x*y", true, x, y)
	p1 := b.ProdPdf("p1", model.Factor{Pdf: m, Conditional: []graph.NodeID{y}})
	p2 := b.ProdPdf("p2", model.Factor{Pdf: m, Conditional: []graph.NodeID{x}})
	top := b.Sum("top", p1, p2)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	before := snapshot(t, g)

	_, err = New(context.Background(), g, top, graph.Canonical(x, y), quiet())
	if !errors.Is(err, errors.ErrCodeConflictingNormalization) {
		t.Fatalf("New() error = %v, want CONFLICTING_NORMALIZATION", err)
	}
	var ce *ConflictError
	if !stderrors.As(err, &ce) {
		t.Fatalf("error %v does not carry a *ConflictError", err)
	}
	if ce.Node != m || ce.RequestedBy != p2 || ce.FirstBy != p1 {
		t.Errorf("conflict at %s requested by %s first by %s", g.Name(ce.Node), g.Name(ce.RequestedBy), g.Name(ce.FirstBy))
	}
	if !ce.Requested.Equal(graph.Canonical(y)) || !ce.First.Equal(graph.Canonical(x)) {
		t.Errorf("conflicting sets = %v and %v, want [y] and [x]", ce.Requested, ce.First)
	}
	for _, want := range []string{"GenericPdf::m", "(y) requested by ProdPdf::p2", "(x) first requested by ProdPdf::p1"} {
		if !strings.Contains(ce.Error(), want) {
			t.Errorf("message %q does not mention %q", ce.Error(), want)
		}
	}
	assertRestored(t, g, before)
}

func TestUnfoldConflictBelowSharedFunction(t *testing.T) {
	b := model.NewBuilder()
	x := b.Var("x", 0.1, -1, 1)
	y := b.Var("y", 0.2, -1, 1)
	m := b.Generic("m", "1 + x*y", true, x, y)
	f := b.Sum("f", m)
	p1 := b.ProdPdf("p1", model.Factor{Pdf: f, Conditional: []graph.NodeID{y}})
	p2 := b.ProdPdf("p2", model.Factor{Pdf: f, Conditional: []graph.NodeID{x}})
	top := b.Sum("top", p1, p2)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	_, err = New(context.Background(), g, top, graph.Canonical(x, y), quiet())
	var ce *ConflictError
	if !stderrors.As(err, &ce) {
		t.Fatalf("New() error = %v, want a *ConflictError", err)
	}
	if ce.Node != m || ce.RequestedBy != f || ce.FirstBy != f {
		t.Errorf("conflict at %s requested by %s first by %s, want m, f, f", g.Name(ce.Node), g.Name(ce.RequestedBy), g.Name(ce.FirstBy))
	}
}

func TestUnfoldErrors(t *testing.T) {
	m := newSharedModel(t)

	if _, err := New(context.Background(), m.g, 99, graph.Canonical(m.x), quiet()); !errors.Is(err, errors.ErrCodeNodeNotFound) {
		t.Errorf("New(unknown top) error = %v, want NODE_NOT_FOUND", err)
	}
	if _, err := New(context.Background(), m.g, m.top, graph.Canonical(99), quiet()); !errors.Is(err, errors.ErrCodeNodeNotFound) {
		t.Errorf("New(unknown variable) error = %v, want NODE_NOT_FOUND", err)
	}
}

func TestCloseTwice(t *testing.T) {
	m := newSharedModel(t)
	u, err := New(context.Background(), m.g, m.top, graph.Canonical(m.x), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if !u.Active() {
		t.Error("Active() = false before Close")
	}
	if err := u.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if u.Active() {
		t.Error("Active() = true after Close")
	}
	if err := u.Close(); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("second Close error = %v, want INTERNAL_ERROR", err)
	}
	if u.Arg() != m.top {
		t.Errorf("Arg() after Close = %s, want top", m.g.Name(u.Arg()))
	}
}

func TestWithPropagatesCallbackError(t *testing.T) {
	m := newSharedModel(t)
	before := snapshot(t, m.g)
	boom := stderrors.New("boom")

	err := With(context.Background(), m.g, m.top, graph.Canonical(m.x), func(*Unfolder) error { return boom }, quiet())
	if !stderrors.Is(err, boom) {
		t.Errorf("With() error = %v, want boom", err)
	}
	assertRestored(t, m.g, before)
}

func TestCloseWithForeignReferencePanics(t *testing.T) {
	b := model.NewBuilder()
	x := b.Var("x", 0, -1, 1)
	p := b.Uniform("p", x)
	top := b.Sum("top", p)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	u, err := New(context.Background(), g, top, graph.Canonical(x), quiet())
	if err != nil {
		t.Fatal(err)
	}
	// Rewiring behind the unfolder's back makes the ledger stale.
	if err := g.AddServer(x, u.Ledger().Wrappers()[0], true); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Error("Close() should panic when a wrapper is still referenced")
		}
	}()
	_ = u.Close()
}

type recordingHooks struct {
	observability.NoopUnfoldHooks
	starts, completes, folds int
	lastErr                  error
}

func (h *recordingHooks) OnUnfoldStart(context.Context, string, string, []string) { h.starts++ }
func (h *recordingHooks) OnUnfoldComplete(_ context.Context, _ string, _, _ int, _ time.Duration, err error) {
	h.completes++
	h.lastErr = err
}
func (h *recordingHooks) OnFold(context.Context, string, int, time.Duration) { h.folds++ }

func TestUnfoldHooks(t *testing.T) {
	h := &recordingHooks{}
	observability.SetUnfoldHooks(h)
	t.Cleanup(observability.Reset)

	m := newSharedModel(t)
	err := With(context.Background(), m.g, m.top, graph.Canonical(m.x), func(*Unfolder) error { return nil }, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if h.starts != 1 || h.completes != 1 || h.folds != 1 {
		t.Errorf("hook calls = %d/%d/%d, want 1/1/1", h.starts, h.completes, h.folds)
	}
	if h.lastErr != nil {
		t.Errorf("OnUnfoldComplete error = %v, want nil", h.lastErr)
	}
}
