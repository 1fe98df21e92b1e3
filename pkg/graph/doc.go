// Package graph provides the computation graph that statistical models are
// built from: an arena of nodes linked by server edges.
//
// # Overview
//
// Each [Node] has a stable [NodeID] (its index in the arena), a name, a
// class label and a [Capability] set that says whether it is derived,
// pdf-like, self-normalized or of the cached pdf kind. A node depends on its
// servers; the inverse links are its clients. Client lists hold one entry per
// incoming edge, so a node that uses the same server twice appears twice.
//
//	g := graph.New(nil)
//	x, _ := g.AddNode(graph.Node{Name: "x", Impl: someVariable})
//	pdf, _ := g.AddNode(graph.Node{Name: "pdf", Caps: graph.CapDerived | graph.CapPdf, Impl: someShape})
//	_ = g.AddServer(pdf, x, true)
//
// # Edges
//
// An [Edge] is either a value edge (the server contributes to the client's
// value) or a shape-only edge. Propagation of normalization requirements
// only follows value edges; see [Graph.IsValueServer].
//
// # Normalization Sets
//
// A [NormSet] is a canonical (sorted, deduplicated) set of variable IDs.
// Canonical sets compare with [NormSet.Equal], which checks size and ordered
// content.
//
// # Rewiring
//
// [Graph.RedirectServers] moves a client's server edges according to an
// explicit substitution table and returns [Redirect] records. Undoing those
// records in reverse order with [Graph.UndoRedirect] restores server and
// client lists exactly, element for element. Nodes can only be released in
// reverse order of creation with [Graph.RemoveLast], so a sequence of
// temporary additions can be rolled back to an identical arena.
//
// # Evaluation
//
// Node semantics are supplied by a [Behavior]. The graph offers
// [Graph.Value], [Graph.Integral] and [Graph.NormalizedValue]; behaviors may
// provide analytic integrals through [Integrator], per-server normalization
// overrides through [ServerNormSetter] and cache preparation through
// [Preparer]. Integrals without an analytic form fall back to a midpoint-rule
// integration over the ranges of [Settable] variables.
//
// # Concurrency
//
// Graph instances are not safe for concurrent use. Rewiring changes server
// and client lists in place, so readers observe transient states unless the
// caller serializes all access.
package graph
