package graph

import "fmt"

// Validate checks graph integrity and returns nil if valid. It verifies
// that every edge references a live node, that client lists mirror server
// edges, and that the graph is acyclic along server edges.
//
// Returns ErrUnknownNode for dangling edges, ErrInconsistentClients for
// broken client lists, or ErrGraphHasCycle if a cycle is detected.
//
// Cycle detection runs in O(N+E) time using depth-first search.
func (g *Graph) Validate() error {
	if err := g.validateEdgeConsistency(); err != nil {
		return err
	}
	return g.detectCycles()
}

func (g *Graph) validateEdgeConsistency() error {
	incoming := make(map[NodeID]int, len(g.nodes))
	for _, n := range g.nodes {
		for _, e := range n.servers {
			if _, ok := g.Node(e.Server); !ok {
				return fmt.Errorf("%s -> %d: %w", n.Name, e.Server, ErrUnknownNode)
			}
			incoming[e.Server]++
		}
	}
	for _, n := range g.nodes {
		if len(n.clients) != incoming[n.ID] {
			return fmt.Errorf("%s: %d clients for %d incoming edges: %w",
				n.Name, len(n.clients), incoming[n.ID], ErrInconsistentClients)
		}
	}
	return nil
}

func (g *Graph) detectCycles() error {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(g.nodes))
	var cycleAt NodeID = NoNode

	var dfs func(id NodeID)
	dfs = func(id NodeID) {
		color[id] = gray
		for _, e := range g.nodes[id].servers {
			switch color[e.Server] {
			case white:
				dfs(e.Server)
			case gray:
				cycleAt = e.Server
			}
			if cycleAt != NoNode {
				return
			}
		}
		color[id] = black
	}

	for id := range g.nodes {
		if color[id] == white {
			dfs(NodeID(id))
			if cycleAt != NoNode {
				return fmt.Errorf("through %s: %w", g.Name(cycleAt), ErrGraphHasCycle)
			}
		}
	}
	return nil
}
