package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrInvalidNodeName is returned by [Graph.AddNode] when the node name is
	// empty. Names are used for diagnostics and for resolving lookalike
	// variables, so every node needs one.
	ErrInvalidNodeName = errors.New("node name must not be empty")

	// ErrUnknownNode is returned when a [NodeID] does not refer to a live node
	// of the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNotLastNode is returned by [Graph.RemoveLast] when the node to remove
	// is not the most recently added one. Nodes are released strictly in
	// reverse order of creation.
	ErrNotLastNode = errors.New("node is not the last node of the graph")

	// ErrNodeHasClients is returned by [Graph.RemoveLast] when other nodes
	// still depend on the node being removed.
	ErrNodeHasClients = errors.New("node still has clients")

	// ErrStaleRedirect is returned by [Graph.UndoRedirect] when the edge no
	// longer points where the redirect left it. This means the wiring was
	// changed behind the caller's back.
	ErrStaleRedirect = errors.New("redirect no longer matches the graph")

	// ErrInconsistentClients is returned by [Graph.Validate] when a node's
	// client list does not mirror the server edges pointing at it.
	ErrInconsistentClients = errors.New("client list does not match server edges")

	// ErrGraphHasCycle is returned by [Graph.Validate] when a directed cycle
	// is found along server edges.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes or the graph.
// Metadata maps are never nil after [New] or [Graph.AddNode].
type Metadata map[string]any

// NodeID is the stable identity of a node: its index in the graph arena.
// IDs are never reused while a node is alive.
type NodeID int

// NoNode is the zero identity used where no node applies, for example the
// requester of the root normalization set.
const NoNode NodeID = -1

// Capability is a bit set describing how a node takes part in normalization.
type Capability uint8

const (
	// CapDerived marks composite nodes that have servers. Nodes without it
	// are fundamental (leaves such as variables and constants).
	CapDerived Capability = 1 << iota
	// CapPdf marks pdf-like nodes that take part in normalization.
	CapPdf
	// CapSelfNormalized marks nodes whose value is already normalized.
	CapSelfNormalized
	// CapCached marks the cached pdf kind. Cached pdfs are wrapped even when
	// self-normalized, and they never get their servers redirected.
	CapCached
)

// Has reports whether all bits of o are set in c.
func (c Capability) Has(o Capability) bool { return c&o == o }

func (c Capability) String() string {
	if c == 0 {
		return "fundamental"
	}
	var parts []string
	for _, f := range []struct {
		bit  Capability
		name string
	}{
		{CapDerived, "derived"},
		{CapPdf, "pdf"},
		{CapSelfNormalized, "selfnorm"},
		{CapCached, "cached"},
	} {
		if c.Has(f.bit) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// Edge is a directed link from a client to one of its servers.
// Value is false for shape-only links that do not contribute to the
// client's value (for example a variable only used to define a range).
type Edge struct {
	Server NodeID
	Value  bool
}

// Node is a vertex of the computation graph.
//
// The zero value is not usable - add nodes with [Graph.AddNode], which
// assigns the ID. Server and client lists are owned by the graph and must
// only be changed through graph methods.
type Node struct {
	ID    NodeID
	Name  string
	Class string
	Caps  Capability
	Meta  Metadata
	Impl  Behavior

	servers []Edge
	clients []NodeID
}

// IsDerived reports whether the node is composite.
func (n *Node) IsDerived() bool { return n.Caps.Has(CapDerived) }

// IsFundamental reports whether the node is a leaf.
func (n *Node) IsFundamental() bool { return !n.IsDerived() }

// IsPdf reports whether the node is pdf-like.
func (n *Node) IsPdf() bool { return n.Caps.Has(CapPdf) }

// IsSelfNormalized reports whether the node already returns normalized values.
func (n *Node) IsSelfNormalized() bool { return n.Caps.Has(CapSelfNormalized) }

// IsCached reports whether the node is of the cached pdf kind.
func (n *Node) IsCached() bool { return n.Caps.Has(CapCached) }

// Servers returns the node's server edges in declaration order.
// The returned slice is a read-only view.
func (n *Node) Servers() []Edge { return n.servers }

// Clients returns the node's clients, one entry per incoming edge.
// The returned slice is a read-only view.
func (n *Node) Clients() []NodeID { return n.clients }

// Label returns "Class::Name", the form used in diagnostics.
func (n *Node) Label() string {
	if n.Class == "" {
		return n.Name
	}
	return n.Class + "::" + n.Name
}

// Graph is an arena of computation nodes linked by server edges.
//
// The zero value is not usable - use [New]. Graph is not safe for concurrent
// use; callers must serialize all access, in particular around unfolding.
type Graph struct {
	nodes []*Node
	meta  Metadata
}

// New creates an empty graph with optional graph-level metadata.
func New(meta Metadata) *Graph {
	if meta == nil {
		meta = Metadata{}
	}
	return &Graph{meta: meta}
}

// Meta returns the graph-level metadata map.
func (g *Graph) Meta() Metadata { return g.meta }

// AddNode appends a node to the arena and returns its ID. Any ID, server
// or client data on n is ignored. Returns ErrInvalidNodeName if the name is
// empty.
func (g *Graph) AddNode(n Node) (NodeID, error) {
	if n.Name == "" {
		return NoNode, ErrInvalidNodeName
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	node := &n
	node.ID = NodeID(len(g.nodes))
	node.servers = nil
	node.clients = nil
	g.nodes = append(g.nodes, node)
	return node.ID, nil
}

// AddServer appends an edge client→server. Multiple edges between the same
// pair are allowed; each one is mirrored by a client entry on the server.
func (g *Graph) AddServer(client, server NodeID, value bool) error {
	c, ok := g.Node(client)
	if !ok {
		return fmt.Errorf("client %d: %w", client, ErrUnknownNode)
	}
	s, ok := g.Node(server)
	if !ok {
		return fmt.Errorf("server %d: %w", server, ErrUnknownNode)
	}
	c.servers = append(c.servers, Edge{Server: server, Value: value})
	s.clients = append(s.clients, client)
	return nil
}

// RemoveLast releases the most recently added node. The node must have no
// clients; its own server edges are detached first. Returns ErrNotLastNode
// or ErrNodeHasClients when those conditions do not hold.
func (g *Graph) RemoveLast(id NodeID) error {
	if len(g.nodes) == 0 || int(id) != len(g.nodes)-1 {
		return fmt.Errorf("remove %d: %w", id, ErrNotLastNode)
	}
	n := g.nodes[id]
	if len(n.clients) > 0 {
		return fmt.Errorf("remove %s: %w", n.Name, ErrNodeHasClients)
	}
	for i := len(n.servers) - 1; i >= 0; i-- {
		s := g.nodes[n.servers[i].Server]
		if j := lastIndex(s.clients, id); j >= 0 {
			s.clients = slices.Delete(s.clients, j, j+1)
		}
	}
	g.nodes[id] = nil
	g.nodes = g.nodes[:id]
	return nil
}

// Node returns the node with the given ID and true, or nil and false.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil, false
	}
	return g.nodes[id], true
}

// MustNode returns the node with the given ID and panics if it does not
// exist. It is meant for IDs that came out of this graph.
func (g *Graph) MustNode(id NodeID) *Node {
	n, ok := g.Node(id)
	if !ok {
		panic(fmt.Sprintf("graph: %v: %d", ErrUnknownNode, id))
	}
	return n
}

// Find returns the first node with the given name.
func (g *Graph) Find(name string) (*Node, bool) {
	for _, n := range g.nodes {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// Nodes returns all nodes in ID order.
func (g *Graph) Nodes() []*Node { return slices.Clone(g.nodes) }

// Len returns the number of nodes in the arena.
func (g *Graph) Len() int { return len(g.nodes) }

// Name returns the name of id, or "<unknown>" for invalid IDs.
func (g *Graph) Name(id NodeID) string {
	if n, ok := g.Node(id); ok {
		return n.Name
	}
	return "<unknown>"
}

// ServerIDs returns the server IDs of id in edge order, duplicates included.
func (g *Graph) ServerIDs(id NodeID) []NodeID {
	n, ok := g.Node(id)
	if !ok {
		return nil
	}
	ids := make([]NodeID, len(n.servers))
	for i, e := range n.servers {
		ids[i] = e.Server
	}
	return ids
}

// IsValueServer reports whether server contributes to the value of client,
// that is, whether any edge client→server is a value edge.
func (g *Graph) IsValueServer(server, client NodeID) bool {
	c, ok := g.Node(client)
	if !ok {
		return false
	}
	for _, e := range c.servers {
		if e.Server == server && e.Value {
			return true
		}
	}
	return false
}

// NormSetForServer asks client which normalization set server must be
// evaluated with when client itself is normalized over set. The second
// result is false when client does not override set for that server.
func (g *Graph) NormSetForServer(client NodeID, set NormSet, server NodeID) (NormSet, bool) {
	c, ok := g.Node(client)
	if !ok {
		return nil, false
	}
	if s, ok := c.Impl.(ServerNormSetter); ok {
		if override, ok := s.NormSetForServer(g, c, set, server); ok {
			return Canonical(override...), true
		}
	}
	return nil, false
}

// Prepare lets id materialize whatever it caches for normalization set set.
func (g *Graph) Prepare(id NodeID, set NormSet) {
	n, ok := g.Node(id)
	if !ok {
		return
	}
	if p, ok := n.Impl.(Preparer); ok {
		p.Prepare(g, n, set)
	}
}

func lastIndex(s []NodeID, id NodeID) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == id {
			return i
		}
	}
	return -1
}
