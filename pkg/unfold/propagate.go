package unfold

import (
	"fmt"

	"github.com/matzehuels/normfold/pkg/graph"
	"github.com/matzehuels/normfold/pkg/graph/reach"
)

// NormSetTable maps pdf-like nodes to the normalization set they are
// evaluated with. An empty set means no normalization is needed.
type NormSetTable map[graph.NodeID]graph.NormSet

// Propagation is the result of [Propagate].
type Propagation struct {
	Visited *VisitedSet
	Table   NormSetTable

	g           *graph.Graph
	requestedBy map[graph.NodeID]graph.NodeID
}

// RequestedBy returns the node that first requested id's normalization set,
// or graph.NoNode for the root.
func (p *Propagation) RequestedBy(id graph.NodeID) graph.NodeID {
	if by, ok := p.requestedBy[id]; ok {
		return by
	}
	return graph.NoNode
}

type walkFrame struct {
	id   graph.NodeID
	set  graph.NormSet
	next int
}

// Propagate walks the graph depth-first from root and assigns every pdf-like
// node the normalization set it is requested with.
//
// A node is entered into the visited set on first visit; pdf-like nodes get
// their set recorded at that moment, before their servers are walked. Only
// derived nodes are descended into, and only along value edges. A parent
// may override the set for a single server through
// [graph.ServerNormSetter]. When a pdf-like server already has a set, an
// equal set is skipped and a different one fails with a [*ConflictError].
// Other nodes are walked again whenever they are reached with a set they
// have not been walked with yet, so conflicts below shared functions are
// still found.
func Propagate(g *graph.Graph, root graph.NodeID, set graph.NormSet) (*Propagation, error) {
	rn, ok := g.Node(root)
	if !ok {
		return nil, fmt.Errorf("propagate from %d: %w", root, graph.ErrUnknownNode)
	}

	p := &Propagation{
		Visited:     newVisitedSet(),
		Table:       make(NormSetTable),
		g:           g,
		requestedBy: make(map[graph.NodeID]graph.NodeID),
	}
	walked := make(map[graph.NodeID]map[string]bool)

	enter := func(n *graph.Node, set graph.NormSet, by graph.NodeID) walkFrame {
		p.Visited.add(n)
		if n.IsPdf() {
			p.Table[n.ID] = set
			p.requestedBy[n.ID] = by
		} else {
			if walked[n.ID] == nil {
				walked[n.ID] = make(map[string]bool)
			}
			walked[n.ID][set.Key()] = true
		}
		return walkFrame{id: n.ID, set: set}
	}

	stack := []walkFrame{enter(rn, graph.Canonical(set...), graph.NoNode)}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		n := g.MustNode(top.id)
		servers := n.Servers()
		if !n.IsDerived() || top.next >= len(servers) {
			stack = stack[:len(stack)-1]
			continue
		}
		e := servers[top.next]
		top.next++
		if !e.Value {
			continue
		}

		serverSet := top.set
		if override, ok := g.NormSetForServer(n.ID, top.set, e.Server); ok {
			serverSet = override
		}

		s := g.MustNode(e.Server)
		if recorded, ok := p.Table[s.ID]; ok {
			if !recorded.Equal(serverSet) {
				return nil, newConflictError(g, s.ID, serverSet, n.ID, recorded, p.RequestedBy(s.ID))
			}
			continue
		}
		if !s.IsPdf() && walked[s.ID][serverSet.Key()] {
			continue
		}
		stack = append(stack, enter(s, serverSet, n.ID))
	}
	return p, nil
}

// Narrow reduces every non-empty set of the table to the variables its node
// depends on according to checker. A variable that is not part of the
// propagated subgraph is resolved by name to the instance reached during
// propagation, falling back to the checker's snapshot, so the narrowed sets
// never reference lookalike nodes.
//
// Sets handed out by server overrides are narrowed the same way; beyond
// that they are used as given.
func (p *Propagation) Narrow(checker *reach.Checker) {
	for _, e := range p.Visited.entries {
		set, ok := p.Table[e.ID]
		if !ok || len(set) == 0 {
			continue
		}
		kept := make([]graph.NodeID, 0, len(set))
		for _, v := range set {
			canon := p.resolve(checker, v)
			if checker.DependsOn(e.ID, canon) {
				kept = append(kept, canon)
			}
		}
		p.Table[e.ID] = graph.Canonical(kept...)
	}
}

// resolve returns v itself when it belongs to the propagated subgraph. Only
// a variable outside of it is mapped to a same-named node inside.
func (p *Propagation) resolve(checker *reach.Checker, v graph.NodeID) graph.NodeID {
	if p.Visited.Contains(v) || checker.Contains(v) {
		return v
	}
	name := p.g.Name(v)
	if id, ok := p.Visited.lookup(name); ok {
		return id
	}
	if id, ok := checker.Lookup(name); ok {
		return id
	}
	return v
}
