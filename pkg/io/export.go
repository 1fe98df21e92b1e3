package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/normfold/pkg/graph"
)

// Wiring is the decoded form of a snapshot.
type Wiring struct {
	Meta  graph.Metadata `json:"meta,omitempty"`
	Nodes []Node         `json:"nodes"`
}

// Node is one node of a snapshot.
type Node struct {
	ID      int            `json:"id"`
	Name    string         `json:"name"`
	Class   string         `json:"class,omitempty"`
	Caps    string         `json:"caps"`
	Meta    graph.Metadata `json:"meta,omitempty"`
	Servers []Edge         `json:"servers,omitempty"`
	Clients []int          `json:"clients,omitempty"`
}

// Edge is one server edge of a snapshot node.
type Edge struct {
	ID    int  `json:"id"`
	Value bool `json:"value"`
}

// FromGraph builds the snapshot of g.
func FromGraph(g *graph.Graph) *Wiring {
	w := &Wiring{Nodes: make([]Node, 0, g.Len())}
	if len(g.Meta()) > 0 {
		w.Meta = g.Meta()
	}
	for _, n := range g.Nodes() {
		nd := Node{
			ID:    int(n.ID),
			Name:  n.Name,
			Class: n.Class,
			Caps:  n.Caps.String(),
		}
		if len(n.Meta) > 0 {
			nd.Meta = n.Meta
		}
		for _, e := range n.Servers() {
			nd.Servers = append(nd.Servers, Edge{ID: int(e.Server), Value: e.Value})
		}
		for _, c := range n.Clients() {
			nd.Clients = append(nd.Clients, int(c))
		}
		w.Nodes = append(w.Nodes, nd)
	}
	return w
}

// WriteJSON encodes the wiring of g as JSON and writes it to w.
// The output can be read back with [ReadJSON].
func WriteJSON(g *graph.Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(FromGraph(g)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes the wiring of g to a JSON file at path.
// This is a convenience wrapper around [WriteJSON] for file-based output.
func ExportJSON(g *graph.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(g, f)
}

// Snapshot returns the JSON wiring of g.
func Snapshot(g *graph.Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
