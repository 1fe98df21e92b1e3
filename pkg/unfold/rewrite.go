package unfold

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/normfold/pkg/graph"
)

// Replacement records one wrapped node and the redirects that put its
// wrapper in place.
type Replacement struct {
	Original graph.NodeID
	Wrapper  graph.NodeID
	NormSet  graph.NormSet

	redirects []graph.Redirect
}

// Clients returns the distinct clients that were redirected to the wrapper,
// in redirect order.
func (r Replacement) Clients() []graph.NodeID {
	var ids []graph.NodeID
	for _, rd := range r.redirects {
		if !slices.Contains(ids, rd.Client) {
			ids = append(ids, rd.Client)
		}
	}
	return ids
}

// Ledger is the ordered record of a rewrite. Originals and Wrappers are
// index-aligned and always equally long.
type Ledger struct {
	entries []Replacement
}

// Len returns the number of replacements.
func (l *Ledger) Len() int { return len(l.entries) }

// Entries returns the replacements in discovery order.
func (l *Ledger) Entries() []Replacement { return slices.Clone(l.entries) }

// Originals returns the wrapped nodes in discovery order.
func (l *Ledger) Originals() []graph.NodeID {
	ids := make([]graph.NodeID, len(l.entries))
	for i, r := range l.entries {
		ids[i] = r.Original
	}
	return ids
}

// Wrappers returns the wrapper nodes, index-aligned with Originals.
func (l *Ledger) Wrappers() []graph.NodeID {
	ids := make([]graph.NodeID, len(l.entries))
	for i, r := range l.entries {
		ids[i] = r.Wrapper
	}
	return ids
}

// Redirects returns the number of server edges the rewrite moved.
func (l *Ledger) Redirects() int {
	var n int
	for _, r := range l.entries {
		n += len(r.redirects)
	}
	return n
}

// Rollback undoes every redirect in reverse order and removes the wrappers
// in reverse order of creation. The graph must not have been rewired or
// extended since the rewrite.
func (l *Ledger) Rollback(g *graph.Graph) error {
	if err := l.undo(g); err != nil {
		return err
	}
	return l.release(g)
}

func (l *Ledger) undo(g *graph.Graph) error {
	for i := len(l.entries) - 1; i >= 0; i-- {
		r := &l.entries[i]
		for j := len(r.redirects) - 1; j >= 0; j-- {
			if err := g.UndoRedirect(r.redirects[j]); err != nil {
				return fmt.Errorf("restore clients of %s: %w", g.Name(r.Original), err)
			}
		}
		r.redirects = nil
	}
	return nil
}

func (l *Ledger) release(g *graph.Graph) error {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if err := g.RemoveLast(l.entries[i].Wrapper); err != nil {
			return fmt.Errorf("release wrapper of %s: %w", g.Name(l.entries[i].Original), err)
		}
		l.entries = l.entries[:i]
	}
	return nil
}

// Rewrite wraps every pdf-like node of p that has a non-empty normalization
// set, in visitation order.
//
// Each such node is first prepared for its set. Self-normalized nodes are
// then skipped unless they are of the cached kind. Otherwise a [Normalized]
// wrapper is added and every distinct client of the node that was visited
// and is not of the cached kind is redirected to it. Clients outside the
// visited set keep seeing the original.
//
// On failure everything done so far is rolled back and the graph is left as
// it was.
func Rewrite(g *graph.Graph, p *Propagation, session string) (*Ledger, error) {
	l := &Ledger{}
	for _, e := range p.Visited.entries {
		if !e.Caps.Has(graph.CapPdf) {
			continue
		}
		set := p.Table[e.ID]
		if len(set) == 0 {
			continue
		}

		g.Prepare(e.ID, set)
		if e.Caps.Has(graph.CapSelfNormalized) && !e.Caps.Has(graph.CapCached) {
			continue
		}

		r, err := wrap(g, p.Visited, e.ID, set, session)
		if err != nil {
			if rerr := l.Rollback(g); rerr != nil {
				panic(fmt.Sprintf("unfold: rollback after failed rewrite: %v", rerr))
			}
			return nil, err
		}
		l.entries = append(l.entries, r)
	}
	return l, nil
}

// wrap adds the wrapper for original and moves the qualifying clients over.
// Either all of them are moved or none.
func wrap(g *graph.Graph, visited *VisitedSet, original graph.NodeID, set graph.NormSet, session string) (Replacement, error) {
	name := g.Name(original) + "_over_" + strings.Join(g.Names(set), "_")
	wid, err := g.AddNode(graph.Node{
		Name:  name,
		Class: WrapperClass,
		Caps:  graph.CapDerived | graph.CapPdf | graph.CapSelfNormalized,
		Meta: graph.Metadata{
			MetaSession:  session,
			MetaOriginal: g.Name(original),
		},
		Impl: &Normalized{Original: original, Set: set},
	})
	if err != nil {
		return Replacement{}, fmt.Errorf("wrap %s: %w", g.Name(original), err)
	}
	if err := g.AddServer(wid, original, true); err != nil {
		if rerr := g.RemoveLast(wid); rerr != nil {
			panic(fmt.Sprintf("unfold: remove unconnected wrapper of %s: %v", g.Name(original), rerr))
		}
		return Replacement{}, fmt.Errorf("wrap %s: %w", g.Name(original), err)
	}

	r := Replacement{Original: original, Wrapper: wid, NormSet: set}
	subst := map[graph.NodeID]graph.NodeID{original: wid}
	for _, c := range distinct(g.MustNode(original).Clients()) {
		caps, ok := visited.Caps(c)
		if !ok || caps.Has(graph.CapCached) {
			continue
		}
		moved, err := g.RedirectServers(c, subst)
		if err != nil {
			tmp := Ledger{entries: []Replacement{r}}
			if rerr := tmp.Rollback(g); rerr != nil {
				panic(fmt.Sprintf("unfold: undo partial redirect of %s: %v", g.Name(original), rerr))
			}
			return Replacement{}, fmt.Errorf("redirect clients of %s: %w", g.Name(original), err)
		}
		r.redirects = append(r.redirects, moved...)
	}
	return r, nil
}

func distinct(ids []graph.NodeID) []graph.NodeID {
	out := make([]graph.NodeID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
