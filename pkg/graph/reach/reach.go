// Package reach answers "does node A depend on node B" over a frozen
// snapshot of a computation graph.
//
// A [Checker] copies, once, the direct-server list of every node reachable
// from a root (sorted and deduplicated) and memoizes every answer it
// computes, including the intermediate answers for nodes it passes through.
// Queries that share substructure (diamonds, shared subgraphs) therefore
// scan each node's server list at most once per target.
//
// The checker never looks at the live graph again after [New], so later
// rewiring does not change its answers.
package reach

import (
	"slices"

	"github.com/matzehuels/normfold/pkg/graph"
)

// Stats counts the work done by a [Checker].
type Stats struct {
	Queries    int // calls to DependsOn
	MemoHits   int // memo lookups that answered without scanning
	Expansions int // server lists scanned
}

type pair struct{ from, to graph.NodeID }

type frame struct {
	id   graph.NodeID
	next int
}

// Checker is a memoized reachability oracle over a graph snapshot.
// It is not safe for concurrent use.
type Checker struct {
	servers map[graph.NodeID][]graph.NodeID
	names   map[string]graph.NodeID
	memo    map[pair]bool
	stats   Stats
}

// Option configures a Checker.
type Option func(*options)

type options struct {
	valueOnly bool
}

// ValueEdgesOnly restricts the snapshot to value-contributing edges, so
// shape-only links do not count as dependencies.
func ValueEdgesOnly() Option {
	return func(o *options) { o.valueOnly = true }
}

// New snapshots the subgraph reachable from root. By default every server
// edge is followed.
func New(g *graph.Graph, root graph.NodeID, opts ...Option) *Checker {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Checker{
		servers: make(map[graph.NodeID][]graph.NodeID),
		names:   make(map[string]graph.NodeID),
		memo:    make(map[pair]bool),
	}
	if _, ok := g.Node(root); !ok {
		return c
	}

	queue := []graph.NodeID{root}
	c.servers[root] = nil
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n := g.MustNode(id)
		if _, seen := c.names[n.Name]; !seen {
			c.names[n.Name] = id
		}

		var list []graph.NodeID
		for _, e := range n.Servers() {
			if o.valueOnly && !e.Value {
				continue
			}
			list = append(list, e.Server)
			if _, seen := c.servers[e.Server]; !seen {
				c.servers[e.Server] = nil
				queue = append(queue, e.Server)
			}
		}
		slices.Sort(list)
		c.servers[id] = slices.Compact(list)
	}
	return c
}

// DependsOn reports whether a == b or b is reachable from a along server
// edges of the snapshot. Nodes outside the snapshot depend only on
// themselves.
//
// The walk uses an explicit stack. On a hit every node on the stack is
// memoized as depending on b; a node whose servers are exhausted is
// memoized as not depending on b. A node already on the stack is not
// entered again, which keeps cyclic inputs from looping (the answer for
// cyclic graphs is unspecified).
func (c *Checker) DependsOn(a, b graph.NodeID) bool {
	c.stats.Queries++
	if v, ok := c.memo[pair{a, b}]; ok {
		c.stats.MemoHits++
		return v
	}
	if a == b {
		return true
	}
	if _, ok := c.servers[a]; !ok {
		return false
	}

	c.stats.Expansions++
	if c.direct(a, b) {
		c.memo[pair{a, b}] = true
		return true
	}
	stack := []frame{{id: a}}
	onStack := map[graph.NodeID]bool{a: true}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		servers := c.servers[top.id]
		if top.next == len(servers) {
			c.memo[pair{top.id, b}] = false
			delete(onStack, top.id)
			stack = stack[:len(stack)-1]
			continue
		}
		s := servers[top.next]
		top.next++

		if v, ok := c.memo[pair{s, b}]; ok {
			c.stats.MemoHits++
			if v {
				c.markAll(stack, b)
				return true
			}
			continue
		}
		if onStack[s] {
			continue
		}

		c.stats.Expansions++
		if c.direct(s, b) {
			c.memo[pair{s, b}] = true
			c.markAll(stack, b)
			return true
		}
		stack = append(stack, frame{id: s})
		onStack[s] = true
	}
	return false
}

func (c *Checker) direct(a, b graph.NodeID) bool {
	_, found := slices.BinarySearch(c.servers[a], b)
	return found
}

func (c *Checker) markAll(stack []frame, b graph.NodeID) {
	for _, f := range stack {
		c.memo[pair{f.id, b}] = true
	}
}

// Servers returns the snapshot's sorted, deduplicated server list of id.
func (c *Checker) Servers(id graph.NodeID) []graph.NodeID { return c.servers[id] }

// Contains reports whether id is part of the snapshot.
func (c *Checker) Contains(id graph.NodeID) bool {
	_, ok := c.servers[id]
	return ok
}

// Nodes returns the IDs of all snapshot nodes in ascending order.
func (c *Checker) Nodes() []graph.NodeID {
	ids := make([]graph.NodeID, 0, len(c.servers))
	for id := range c.servers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Lookup resolves a name to the first snapshot node carrying it, in
// breadth-first order from the root.
func (c *Checker) Lookup(name string) (graph.NodeID, bool) {
	id, ok := c.names[name]
	return id, ok
}

// Stats returns the work counters accumulated so far.
func (c *Checker) Stats() Stats { return c.stats }
