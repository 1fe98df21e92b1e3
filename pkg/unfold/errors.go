package unfold

import (
	"fmt"

	"github.com/matzehuels/normfold/pkg/graph"
)

// ConflictError reports a node that is requested to be evaluated with two
// different normalization sets in the same model.
type ConflictError struct {
	Node        graph.NodeID
	Requested   graph.NormSet // the set that caused the conflict
	RequestedBy graph.NodeID
	First       graph.NormSet // the set recorded first
	FirstBy     graph.NodeID  // graph.NoNode when requested by the caller

	msg string
}

func newConflictError(g *graph.Graph, node graph.NodeID, requested graph.NormSet, by graph.NodeID, first graph.NormSet, firstBy graph.NodeID) *ConflictError {
	msg := fmt.Sprintf(
		"%s is requested to be evaluated with two different normalization sets in the same model: %s requested by %s, %s first requested by %s",
		label(g, node),
		g.FormatNormSet(requested), label(g, by),
		g.FormatNormSet(first), label(g, firstBy),
	)
	return &ConflictError{
		Node:        node,
		Requested:   requested,
		RequestedBy: by,
		First:       first,
		FirstBy:     firstBy,
		msg:         msg,
	}
}

func (e *ConflictError) Error() string { return e.msg }

func label(g *graph.Graph, id graph.NodeID) string {
	if id == graph.NoNode {
		return "caller"
	}
	if n, ok := g.Node(id); ok {
		return n.Label()
	}
	return fmt.Sprintf("<node %d>", id)
}
