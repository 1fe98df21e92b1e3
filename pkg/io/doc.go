// Package io provides a JSON snapshot of a computation graph's wiring.
//
// # Overview
//
// A snapshot lists every node with its identity, class, capabilities,
// metadata, ordered server edges and ordered client list. Node behaviors are
// not serialized: the snapshot describes shape, not semantics. It is meant
// for:
//
//   - Checking that an unfold/fold cycle restored the graph exactly
//   - Feeding graph structure to external tools
//   - Debugging rewrites by diffing two snapshots
//
// # JSON Format
//
//	{
//	  "nodes": [
//	    {"id": 0, "name": "x", "caps": "fundamental", "clients": [2]},
//	    {"id": 2, "name": "pdf", "class": "Gaussian", "caps": "derived|pdf",
//	     "servers": [{"id": 0, "value": true}]}
//	  ]
//	}
//
// Nodes appear in ID order. Server and client lists keep their in-graph
// order and multiplicity, so two snapshots of the same graph are
// byte-identical exactly when the wiring is identical.
//
// # Export
//
// Use [WriteJSON] to write a snapshot to any io.Writer, [ExportJSON] to write
// it to a file and [Snapshot] to get the bytes:
//
//	before, _ := io.Snapshot(g)
//	// ... unfold, evaluate, fold ...
//	after, _ := io.Snapshot(g)
//	if !bytes.Equal(before, after) {
//	    log.Fatal("wiring changed")
//	}
//
// # Import
//
// [ReadJSON] and [ImportJSON] decode a snapshot into a [Wiring] value, which
// [Diff] compares against another one.
package io
