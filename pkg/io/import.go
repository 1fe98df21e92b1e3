package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
)

// ReadJSON decodes a snapshot written by [WriteJSON].
//
// ReadJSON returns an error if the JSON is malformed or if node IDs are not
// the consecutive indices 0..n-1 that [WriteJSON] produces. It does not
// close r.
func ReadJSON(r io.Reader) (*Wiring, error) {
	var w Wiring
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	for i, n := range w.Nodes {
		if n.ID != i {
			return nil, fmt.Errorf("node %s: id %d out of order (want %d)", n.Name, n.ID, i)
		}
	}
	return &w, nil
}

// ImportJSON reads a snapshot file at path.
func ImportJSON(path string) (*Wiring, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// Diff lists the differences between two snapshots, one line per node whose
// identity, servers or clients differ. Metadata is not compared.
func Diff(a, b *Wiring) []string {
	var out []string
	for i := 0; i < max(len(a.Nodes), len(b.Nodes)); i++ {
		switch {
		case i >= len(a.Nodes):
			out = append(out, fmt.Sprintf("+ node %d %s", i, b.Nodes[i].Name))
		case i >= len(b.Nodes):
			out = append(out, fmt.Sprintf("- node %d %s", i, a.Nodes[i].Name))
		default:
			na, nb := a.Nodes[i], b.Nodes[i]
			if na.Name != nb.Name || na.Class != nb.Class || na.Caps != nb.Caps {
				out = append(out, fmt.Sprintf("~ node %d: %s -> %s", i, na.Name, nb.Name))
			}
			if !slices.Equal(na.Servers, nb.Servers) {
				out = append(out, fmt.Sprintf("~ node %d %s servers: %v -> %v", i, na.Name, ids(na.Servers), ids(nb.Servers)))
			}
			if !slices.Equal(na.Clients, nb.Clients) {
				out = append(out, fmt.Sprintf("~ node %d %s clients: %v -> %v", i, na.Name, na.Clients, nb.Clients))
			}
		}
	}
	return out
}

func ids(edges []Edge) []int {
	out := make([]int, len(edges))
	for i, e := range edges {
		out[i] = e.ID
	}
	return out
}
