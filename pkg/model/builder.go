package model

import (
	"fmt"

	"github.com/matzehuels/normfold/pkg/errors"
	"github.com/matzehuels/normfold/pkg/graph"
)

// Builder assembles a model graph. The first error is kept and every later
// call returns graph.NoNode without touching the graph.
type Builder struct {
	g   *graph.Graph
	err error
}

// Factor is one factor of a [ProdPdf]: a pdf and the observables it is
// conditional on.
type Factor struct {
	Pdf         graph.NodeID
	Conditional []graph.NodeID
}

// NewBuilder returns a builder for a new, empty graph.
func NewBuilder() *Builder {
	return &Builder{g: graph.New(nil)}
}

// Graph returns the graph being built.
func (b *Builder) Graph() *graph.Graph { return b.g }

// Err returns the first error recorded, if any.
func (b *Builder) Err() error { return b.err }

// Build returns the graph, or the first error recorded.
func (b *Builder) Build() (*graph.Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.g, nil
}

// Var adds a variable with value v and range [lo, hi].
func (b *Builder) Var(name string, v, lo, hi float64) graph.NodeID {
	if b.err == nil && lo > hi {
		b.err = errors.New(errors.ErrCodeInvalidModel, "variable %s: min %g greater than max %g", name, lo, hi)
	}
	return b.add(graph.Node{Name: name, Class: ClassVariable, Impl: &Variable{Val: v, Lo: lo, Hi: hi}})
}

// Const adds a constant.
func (b *Builder) Const(name string, v float64) graph.NodeID {
	return b.add(graph.Node{Name: name, Class: ClassConstant, Impl: Constant(v)})
}

// Sum adds a function returning the sum of terms.
func (b *Builder) Sum(name string, terms ...graph.NodeID) graph.NodeID {
	return b.derived(graph.Node{Name: name, Class: ClassSum, Caps: graph.CapDerived, Impl: Sum{}}, terms...)
}

// Product adds a function returning the product of factors.
func (b *Builder) Product(name string, factors ...graph.NodeID) graph.NodeID {
	return b.derived(graph.Node{Name: name, Class: ClassProduct, Caps: graph.CapDerived, Impl: Product{}}, factors...)
}

// Gaussian adds an unnormalized gaussian pdf in x.
func (b *Builder) Gaussian(name string, x, mean, sigma graph.NodeID) graph.NodeID {
	return b.derived(graph.Node{Name: name, Class: ClassGaussian, Caps: graph.CapDerived | graph.CapPdf, Impl: Gaussian{}}, x, mean, sigma)
}

// Exponential adds the pdf exp(c*x).
func (b *Builder) Exponential(name string, x, c graph.NodeID) graph.NodeID {
	return b.derived(graph.Node{Name: name, Class: ClassExponential, Caps: graph.CapDerived | graph.CapPdf, Impl: Exponential{}}, x, c)
}

// Uniform adds a pdf that is flat in all observables.
func (b *Builder) Uniform(name string, obs ...graph.NodeID) graph.NodeID {
	return b.derived(graph.Node{Name: name, Class: ClassUniform, Caps: graph.CapDerived | graph.CapPdf, Impl: Uniform{}}, obs...)
}

// Generic adds a node evaluating expression over servers, which the
// expression refers to by name. With pdf set the node is pdf-like.
func (b *Builder) Generic(name, expression string, pdf bool, servers ...graph.NodeID) graph.NodeID {
	if b.err != nil {
		return graph.NoNode
	}
	names := make([]string, len(servers))
	for i, s := range servers {
		names[i] = b.g.Name(s)
	}
	impl, err := NewGeneric(expression, names)
	if err != nil {
		b.err = errors.Wrap(errors.ErrCodeInvalidModel, err, "node %s", name)
		return graph.NoNode
	}
	n := graph.Node{Name: name, Class: ClassGeneric, Caps: graph.CapDerived, Impl: impl}
	if pdf {
		n.Class = ClassGenericPdf
		n.Caps |= graph.CapPdf
	}
	return b.derived(n, servers...)
}

// ProdPdf adds the product of the factors' pdfs.
func (b *Builder) ProdPdf(name string, factors ...Factor) graph.NodeID {
	impl := &ProdPdf{Conditional: make(map[graph.NodeID]graph.NormSet)}
	pdfs := make([]graph.NodeID, len(factors))
	for i, f := range factors {
		pdfs[i] = f.Pdf
		if len(f.Conditional) > 0 {
			impl.Conditional[f.Pdf] = graph.Canonical(f.Conditional...)
		}
	}
	return b.derived(graph.Node{Name: name, Class: ClassProdPdf, Caps: graph.CapDerived | graph.CapPdf, Impl: impl}, pdfs...)
}

// AddPdf adds the coefficient-weighted sum of pdfs. It needs one coefficient
// per pdf and is self-normalized.
func (b *Builder) AddPdf(name string, pdfs, coefs []graph.NodeID) graph.NodeID {
	if b.err == nil && len(pdfs) != len(coefs) {
		b.err = errors.New(errors.ErrCodeInvalidModel, "addpdf %s: %d pdfs but %d coefficients", name, len(pdfs), len(coefs))
	}
	servers := append(append([]graph.NodeID{}, pdfs...), coefs...)
	return b.derived(graph.Node{
		Name:  name,
		Class: ClassAddPdf,
		Caps:  graph.CapDerived | graph.CapPdf | graph.CapSelfNormalized,
		Impl:  &AddPdf{Pdfs: len(pdfs)},
	}, servers...)
}

// Cached adds a cached, self-normalized pdf over pdf.
func (b *Builder) Cached(name string, pdf graph.NodeID) graph.NodeID {
	return b.derived(graph.Node{
		Name:  name,
		Class: ClassCachedPdf,
		Caps:  graph.CapDerived | graph.CapPdf | graph.CapSelfNormalized | graph.CapCached,
		Impl:  &CachedPdf{},
	}, pdf)
}

// Shape adds a shape-only edge client→server, one that does not contribute
// to the client's value.
func (b *Builder) Shape(client, server graph.NodeID) {
	if b.err != nil {
		return
	}
	if err := b.g.AddServer(client, server, false); err != nil {
		b.err = errors.Wrap(errors.ErrCodeInvalidModel, err, "shape edge %s -> %s", b.g.Name(client), b.g.Name(server))
	}
}

func (b *Builder) add(n graph.Node) graph.NodeID {
	if b.err != nil {
		return graph.NoNode
	}
	if err := errors.ValidateNodeName(n.Name); err != nil {
		b.err = err
		return graph.NoNode
	}
	if _, dup := b.g.Find(n.Name); dup {
		b.err = errors.New(errors.ErrCodeInvalidModel, "duplicate node name %q", n.Name)
		return graph.NoNode
	}
	id, err := b.g.AddNode(n)
	if err != nil {
		b.err = errors.Wrap(errors.ErrCodeInvalidModel, err, "node %s", n.Name)
		return graph.NoNode
	}
	return id
}

func (b *Builder) derived(n graph.Node, servers ...graph.NodeID) graph.NodeID {
	if b.err != nil {
		return graph.NoNode
	}
	for i, s := range servers {
		if _, ok := b.g.Node(s); !ok {
			b.err = errors.New(errors.ErrCodeNodeNotFound, "node %s: server %d does not exist", n.Name, i)
			return graph.NoNode
		}
	}
	id := b.add(n)
	if id == graph.NoNode {
		return id
	}
	for _, s := range servers {
		if err := b.g.AddServer(id, s, true); err != nil {
			b.err = fmt.Errorf("node %s: %w", n.Name, err)
			return graph.NoNode
		}
	}
	return id
}
