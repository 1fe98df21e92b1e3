package model

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/normfold/pkg/errors"
	"github.com/matzehuels/normfold/pkg/graph"
	"github.com/matzehuels/normfold/pkg/observability"
)

// Document is the on-disk form of a model.
//
//	top = "model"
//	norm = ["x"]
//
//	[[vars]]
//	name = "x"
//	value = 1.0
//	min = -5.0
//	max = 5.0
//
//	[[nodes]]
//	name = "sig"
//	type = "gaussian"
//	servers = ["x", "mu", "sigma"]
//
// Nodes may be listed in any order; they are added to the graph after their
// servers.
type Document struct {
	Top   string     `toml:"top" yaml:"top" json:"top"`
	Norm  []string   `toml:"norm" yaml:"norm" json:"norm"`
	Vars  []VarSpec  `toml:"vars" yaml:"vars" json:"vars"`
	Nodes []NodeSpec `toml:"nodes" yaml:"nodes" json:"nodes"`
}

// VarSpec declares a variable, or a constant when Const is set.
type VarSpec struct {
	Name  string  `toml:"name" yaml:"name" json:"name"`
	Value float64 `toml:"value" yaml:"value" json:"value"`
	Min   float64 `toml:"min" yaml:"min" json:"min"`
	Max   float64 `toml:"max" yaml:"max" json:"max"`
	Const bool    `toml:"const" yaml:"const" json:"const"`
}

// NodeSpec declares a derived node.
//
// Type is one of sum, product, gaussian, exponential, uniform, generic,
// prodpdf, addpdf or cached. Servers are value edges in order; Shape lists
// shape-only edges. Coefficients are used by addpdf, Conditional by prodpdf
// (factor name to the observables it is conditional on) and Expr and Pdf by
// generic.
type NodeSpec struct {
	Name         string              `toml:"name" yaml:"name" json:"name"`
	Type         string              `toml:"type" yaml:"type" json:"type"`
	Servers      []string            `toml:"servers" yaml:"servers" json:"servers"`
	Shape        []string            `toml:"shape" yaml:"shape" json:"shape,omitempty"`
	Coefficients []string            `toml:"coefficients" yaml:"coefficients" json:"coefficients,omitempty"`
	Conditional  map[string][]string `toml:"conditional" yaml:"conditional" json:"conditional,omitempty"`
	Expr         string              `toml:"expr" yaml:"expr" json:"expr,omitempty"`
	Pdf          bool                `toml:"pdf" yaml:"pdf" json:"pdf,omitempty"`
}

// Model is a loaded document: the graph plus the top node and
// normalization set it names.
type Model struct {
	Graph *graph.Graph
	Top   graph.NodeID // graph.NoNode when the document names none
	Norm  graph.NormSet
}

// Format is a document encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath returns the format implied by a file extension.
func FormatFromPath(path string) (Format, error) {
	if err := errors.ValidateModelFilename(path); err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return FormatYAML, nil
	}
}

// Load reads the model document at path.
func Load(ctx context.Context, path string) (*Model, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "model %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", path)
	}
	defer f.Close()
	return decode(ctx, f, format, path)
}

// Decode reads a model document in the given format from r.
func Decode(ctx context.Context, r io.Reader, format Format) (*Model, error) {
	return decode(ctx, r, format, "<reader>")
}

func decode(ctx context.Context, r io.Reader, format Format, source string) (m *Model, err error) {
	hooks := observability.Model()
	hooks.OnLoadStart(ctx, source, string(format))
	start := time.Now()
	defer func() {
		nodes := 0
		if m != nil {
			nodes = m.Graph.Len()
		}
		hooks.OnLoadComplete(ctx, source, nodes, time.Since(start), err)
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", source)
	}
	var doc Document
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported model format %q", format)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode %s", source)
	}
	return doc.Build()
}

// Build turns the document into a graph.
func (d *Document) Build() (*Model, error) {
	order, err := d.order()
	if err != nil {
		return nil, err
	}

	b := NewBuilder()
	ids := make(map[string]graph.NodeID)
	for _, v := range d.Vars {
		if v.Const {
			ids[v.Name] = b.Const(v.Name, v.Value)
		} else {
			ids[v.Name] = b.Var(v.Name, v.Value, v.Min, v.Max)
		}
	}
	for _, i := range order {
		ns := d.Nodes[i]
		id, err := ns.add(b, ids)
		if err != nil {
			return nil, err
		}
		ids[ns.Name] = id
	}
	for _, i := range order {
		ns := d.Nodes[i]
		for _, s := range ns.Shape {
			b.Shape(ids[ns.Name], ids[s])
		}
	}
	g, err := b.Build()
	if err != nil {
		return nil, err
	}

	m := &Model{Graph: g, Top: graph.NoNode, Norm: graph.Canonical()}
	if d.Top != "" {
		id, ok := ids[d.Top]
		if !ok {
			return nil, errors.New(errors.ErrCodeNodeNotFound, "top node %q is not declared", d.Top)
		}
		m.Top = id
	}
	norm, err := ResolveNames(g, d.Norm)
	if err != nil {
		return nil, err
	}
	m.Norm = norm
	return m, nil
}

// ResolveNames looks up nodes by name and returns them as a normalization set.
func ResolveNames(g *graph.Graph, names []string) (graph.NormSet, error) {
	ids := make([]graph.NodeID, 0, len(names))
	for _, name := range names {
		n, ok := g.Find(name)
		if !ok {
			return nil, errors.New(errors.ErrCodeNodeNotFound, "unknown variable %q", name)
		}
		ids = append(ids, n.ID)
	}
	return graph.Canonical(ids...), nil
}

// refs returns every name ns depends on.
func (ns NodeSpec) refs() []string {
	refs := slices.Concat(ns.Servers, ns.Shape, ns.Coefficients)
	for _, cond := range ns.Conditional {
		refs = append(refs, cond...)
	}
	return refs
}

// order returns the node indices sorted so that every node comes after the
// nodes it references (Kahn's algorithm). Unknown references and cycles are
// errors.
func (d *Document) order() ([]int, error) {
	declared := make(map[string]int, len(d.Vars)+len(d.Nodes))
	for _, v := range d.Vars {
		if _, dup := declared[v.Name]; dup {
			return nil, errors.New(errors.ErrCodeInvalidModel, "duplicate name %q", v.Name)
		}
		declared[v.Name] = -1
	}
	for i, n := range d.Nodes {
		if _, dup := declared[n.Name]; dup {
			return nil, errors.New(errors.ErrCodeInvalidModel, "duplicate name %q", n.Name)
		}
		declared[n.Name] = i
	}

	inDegree := make([]int, len(d.Nodes))
	dependents := make([][]int, len(d.Nodes))
	for i, n := range d.Nodes {
		for _, ref := range n.refs() {
			j, ok := declared[ref]
			if !ok {
				return nil, errors.New(errors.ErrCodeNodeNotFound, "node %s references unknown %q", n.Name, ref)
			}
			if j >= 0 {
				inDegree[i]++
				dependents[j] = append(dependents[j], i)
			}
		}
	}

	queue := make([]int, 0, len(d.Nodes))
	for i, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, len(d.Nodes))
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		order = append(order, curr)
		for _, dep := range dependents[curr] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(d.Nodes) {
		var stuck []string
		for i, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, d.Nodes[i].Name)
			}
		}
		return nil, errors.New(errors.ErrCodeCycle, "model contains a cycle through %s", strings.Join(stuck, ", "))
	}
	return order, nil
}

func (ns NodeSpec) add(b *Builder, ids map[string]graph.NodeID) (graph.NodeID, error) {
	servers := lookup(ids, ns.Servers)
	want := func(n int) error {
		if len(servers) != n {
			return errors.New(errors.ErrCodeInvalidModel, "%s %s: want %d servers, got %d", ns.Type, ns.Name, n, len(servers))
		}
		return nil
	}

	var id graph.NodeID
	switch strings.ToLower(ns.Type) {
	case "sum":
		id = b.Sum(ns.Name, servers...)
	case "product":
		id = b.Product(ns.Name, servers...)
	case "gaussian":
		if err := want(3); err != nil {
			return graph.NoNode, err
		}
		id = b.Gaussian(ns.Name, servers[0], servers[1], servers[2])
	case "exponential":
		if err := want(2); err != nil {
			return graph.NoNode, err
		}
		id = b.Exponential(ns.Name, servers[0], servers[1])
	case "uniform":
		id = b.Uniform(ns.Name, servers...)
	case "generic":
		id = b.Generic(ns.Name, ns.Expr, ns.Pdf, servers...)
	case "prodpdf":
		factors := make([]Factor, len(servers))
		for i, s := range servers {
			factors[i] = Factor{Pdf: s, Conditional: lookup(ids, ns.Conditional[ns.Servers[i]])}
		}
		for name := range ns.Conditional {
			if !slices.Contains(ns.Servers, name) {
				return graph.NoNode, errors.New(errors.ErrCodeInvalidModel, "prodpdf %s: conditional factor %q is not a server", ns.Name, name)
			}
		}
		id = b.ProdPdf(ns.Name, factors...)
	case "addpdf":
		id = b.AddPdf(ns.Name, servers, lookup(ids, ns.Coefficients))
	case "cached":
		if err := want(1); err != nil {
			return graph.NoNode, err
		}
		id = b.Cached(ns.Name, servers[0])
	default:
		return graph.NoNode, errors.New(errors.ErrCodeUnsupported, "node %s: unknown type %q", ns.Name, ns.Type)
	}
	if err := b.Err(); err != nil {
		return graph.NoNode, err
	}
	return id, nil
}

func lookup(ids map[string]graph.NodeID, names []string) []graph.NodeID {
	out := make([]graph.NodeID, len(names))
	for i, name := range names {
		out[i] = ids[name]
	}
	return out
}
