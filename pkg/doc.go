// Package pkg provides the core libraries of normfold.
//
// # Overview
//
// normfold takes a computation graph of pdfs and functions and, for a given
// top node and normalization set, rewrites it so every pdf that is
// evaluated under that set is wrapped in an explicitly normalized node. The
// rewrite is transactional: closing the session restores the original
// wiring exactly. The pkg directory is organized as follows:
//
//  1. [graph] - Arena of nodes, normalization sets, redirect with exact undo
//  2. [graph/reach] - Memoized "does A depend on B" over a frozen snapshot
//  3. [unfold] - Propagation, rewrite and the transactional unfolder
//  4. [model] - Concrete node behaviors, a builder and TOML/YAML/JSON loading
//  5. [io] - JSON wiring snapshots and diffs
//  6. [render] - Node-link diagrams via Graphviz (in [render/nodelink])
//  7. [cache] - Rendered-diagram cache
//  8. [errors], [observability], [buildinfo] - Ambient support
//
// # Architecture
//
// The typical data flow:
//
//	model document (TOML/YAML/JSON)
//	         ↓
//	    [model] package (build the graph)
//	         ↓
//	    [unfold] package (propagate → narrow → rewrite)
//	         ↓
//	    evaluate the effective top node
//	         ↓
//	    Close (fold back to the original wiring)
//
// # Quick Start
//
//	m, err := model.Load(ctx, "model.toml")
//	if err != nil {
//	    return err
//	}
//	err = unfold.With(ctx, m.Graph, m.Top, m.Norm, func(u *unfold.Unfolder) error {
//	    fmt.Println(m.Graph.Value(u.Arg()))
//	    return nil
//	})
package pkg
