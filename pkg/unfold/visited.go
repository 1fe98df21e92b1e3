package unfold

import "github.com/matzehuels/normfold/pkg/graph"

// Entry is one node of a [VisitedSet] with the capabilities it had when it
// was first reached.
type Entry struct {
	ID   graph.NodeID
	Caps graph.Capability
}

// VisitedSet holds the nodes reached while propagating normalization sets,
// in visitation order.
type VisitedSet struct {
	entries []Entry
	index   map[graph.NodeID]int
	byName  map[string]graph.NodeID
}

func newVisitedSet() *VisitedSet {
	return &VisitedSet{
		index:  make(map[graph.NodeID]int),
		byName: make(map[string]graph.NodeID),
	}
}

// add records n unless it is already present and reports whether it was new.
func (v *VisitedSet) add(n *graph.Node) bool {
	if _, ok := v.index[n.ID]; ok {
		return false
	}
	v.index[n.ID] = len(v.entries)
	v.entries = append(v.entries, Entry{ID: n.ID, Caps: n.Caps})
	if _, ok := v.byName[n.Name]; !ok {
		v.byName[n.Name] = n.ID
	}
	return true
}

// Contains reports whether id was visited.
func (v *VisitedSet) Contains(id graph.NodeID) bool {
	_, ok := v.index[id]
	return ok
}

// Caps returns the capabilities captured for id.
func (v *VisitedSet) Caps(id graph.NodeID) (graph.Capability, bool) {
	i, ok := v.index[id]
	if !ok {
		return 0, false
	}
	return v.entries[i].Caps, true
}

// Entries returns the visited nodes in visitation order.
func (v *VisitedSet) Entries() []Entry {
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// IDs returns the visited node IDs in visitation order.
func (v *VisitedSet) IDs() []graph.NodeID {
	ids := make([]graph.NodeID, len(v.entries))
	for i, e := range v.entries {
		ids[i] = e.ID
	}
	return ids
}

// Len returns the number of visited nodes.
func (v *VisitedSet) Len() int { return len(v.entries) }

// lookup resolves a name to the first visited node carrying it.
func (v *VisitedSet) lookup(name string) (graph.NodeID, bool) {
	id, ok := v.byName[name]
	return id, ok
}
