package unfold_test

import (
	"context"
	"fmt"

	"github.com/matzehuels/normfold/pkg/graph"
	"github.com/matzehuels/normfold/pkg/model"
	"github.com/matzehuels/normfold/pkg/unfold"
)

func Example() {
	b := model.NewBuilder()
	x := b.Var("x", 1, 0, 2)
	lin := b.Generic("lin", "x", true, x)
	flat := b.Uniform("flat", x)
	top := b.Sum("top", lin, flat)
	g, err := b.Build()
	if err != nil {
		panic(err)
	}

	fmt.Printf("before: %.4f\n", g.Value(top))

	err = unfold.With(context.Background(), g, top, graph.Canonical(x), func(u *unfold.Unfolder) error {
		fmt.Println("wrapped:", g.Names(u.Ledger().Wrappers()))
		fmt.Printf("after: %.4f\n", g.Value(u.Arg()))
		return nil
	})
	if err != nil {
		panic(err)
	}

	fmt.Println("servers:", g.Names(g.ServerIDs(top)))
	// Output:
	// before: 2.0000
	// wrapped: [lin_over_x flat_over_x]
	// after: 1.0000
	// servers: [lin flat]
}

func ExampleConflictError() {
	b := model.NewBuilder()
	x := b.Var("x", 0, -1, 1)
	y := b.Var("y", 0, -1, 1)
	m := b.Generic("m", "1 + x*y", true, x, y)
	p1 := b.ProdPdf("p1", model.Factor{Pdf: m, Conditional: []graph.NodeID{y}})
	p2 := b.ProdPdf("p2", model.Factor{Pdf: m, Conditional: []graph.NodeID{x}})
	top := b.Sum("top", p1, p2)
	g, _ := b.Build()

	p, err := unfold.Propagate(g, top, graph.Canonical(x, y))
	fmt.Println(p == nil)
	fmt.Println(err)
	// Output:
	// true
	// GenericPdf::m is requested to be evaluated with two different normalization sets in the same model: (y) requested by ProdPdf::p2, (x) first requested by ProdPdf::p1
}
