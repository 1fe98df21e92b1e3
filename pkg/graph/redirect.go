package graph

import (
	"fmt"
	"slices"
)

// Redirect records one server edge that was moved from one node to another.
// It holds everything [Graph.UndoRedirect] needs to restore the previous
// wiring exactly, including the position of the client in the old server's
// client list.
type Redirect struct {
	Client NodeID
	Slot   int // index into the client's server edges
	From   NodeID
	To     NodeID

	fromPos int
}

// RedirectServers moves every server edge of client whose server is a key
// of subst to the node subst maps it to. Edges keep their slot and value
// flag. The substitution is an explicit side table, so nodes that merely
// share a name with a key are never touched.
//
// The operation is atomic for the client: all targets are validated before
// any edge changes, and either every matching edge is moved or none is.
// The returned redirects are in slot order; undo them in reverse order.
func (g *Graph) RedirectServers(client NodeID, subst map[NodeID]NodeID) ([]Redirect, error) {
	c, ok := g.Node(client)
	if !ok {
		return nil, fmt.Errorf("redirect client %d: %w", client, ErrUnknownNode)
	}

	var plan []Redirect
	for slot, e := range c.servers {
		to, ok := subst[e.Server]
		if !ok || to == e.Server {
			continue
		}
		if _, ok := g.Node(to); !ok {
			return nil, fmt.Errorf("redirect %s slot %d to %d: %w", c.Name, slot, to, ErrUnknownNode)
		}
		plan = append(plan, Redirect{Client: client, Slot: slot, From: e.Server, To: to})
	}

	for i := range plan {
		r := &plan[i]
		from, to := g.nodes[r.From], g.nodes[r.To]
		r.fromPos = slices.Index(from.clients, client)
		if r.fromPos >= 0 {
			from.clients = slices.Delete(from.clients, r.fromPos, r.fromPos+1)
		}
		to.clients = append(to.clients, client)
		c.servers[r.Slot].Server = r.To
	}
	return plan, nil
}

// UndoRedirect restores the edge moved by r. Redirects must be undone in
// the exact reverse order they were applied for the client lists to come
// back identical. Returns ErrStaleRedirect if the edge no longer points at
// r.To.
func (g *Graph) UndoRedirect(r Redirect) error {
	c, ok := g.Node(r.Client)
	if !ok || r.Slot >= len(c.servers) || c.servers[r.Slot].Server != r.To {
		return fmt.Errorf("undo %d slot %d: %w", r.Client, r.Slot, ErrStaleRedirect)
	}
	from, okFrom := g.Node(r.From)
	to, okTo := g.Node(r.To)
	if !okFrom || !okTo {
		return fmt.Errorf("undo %s slot %d: %w", c.Name, r.Slot, ErrUnknownNode)
	}

	if j := lastIndex(to.clients, r.Client); j >= 0 {
		to.clients = slices.Delete(to.clients, j, j+1)
	}
	if r.fromPos >= 0 {
		from.clients = slices.Insert(from.clients, r.fromPos, r.Client)
	} else {
		from.clients = append(from.clients, r.Client)
	}
	c.servers[r.Slot].Server = r.From
	return nil
}
