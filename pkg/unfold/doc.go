// Package unfold rewrites a computation graph so that every pdf-like node is
// evaluated under the normalization set it needs, and folds the graph back
// afterwards.
//
// # Overview
//
// Unfolding runs in three phases over the subgraph reachable from a top node:
//
//  1. [Propagate] walks the graph depth-first and assigns each pdf-like node
//     the normalization set it is requested with. Parents may hand a server a
//     different set (see [graph.ServerNormSetter]). A node requested with two
//     different sets fails the whole operation with a [*ConflictError].
//  2. [Propagation.Narrow] drops, per node, the variables the node does not
//     structurally depend on, using a [reach.Checker].
//  3. [Rewrite] wraps every pdf that still has a non-empty set and is not
//     self-normalized in a [Normalized] node and redirects the original's
//     clients inside the visited set to the wrapper. Every redirect is
//     recorded in a [Ledger].
//
// # Lifetime
//
// An [Unfolder] owns one rewrite. It is Active after [New] and Reverted after
// [Unfolder.Close], which replays the ledger in reverse and releases the
// wrappers, leaving server and client lists exactly as they were:
//
//	u, err := unfold.New(ctx, g, top, graph.Canonical(x))
//	if err != nil {
//	    return err
//	}
//	defer u.Close()
//	v := g.Value(u.Arg())
//
// [With] does the same for a callback. An empty normalization set makes the
// whole operation a no-op: nothing is added to the graph and Close does not
// touch it.
//
// # Concurrency
//
// Unfolding mutates the graph in place. Callers must serialize all access to
// the graph between New and Close; nothing else may add nodes to the graph in
// that window, because wrappers are released in reverse order of creation.
package unfold
