package graph

import (
	"slices"
	"strconv"
	"strings"
)

// NormSet is a normalization set: the variables a pdf-like node is
// normalized over. A NormSet built with [Canonical] is sorted by NodeID and
// free of duplicates, so two sets are equal exactly when their canonical
// forms have the same layout.
type NormSet []NodeID

// Canonical returns the sorted, deduplicated normalization set of ids.
// It never returns nil, so an empty result still reads as "requested but empty".
func Canonical(ids ...NodeID) NormSet {
	s := make(NormSet, len(ids))
	copy(s, ids)
	slices.Sort(s)
	return slices.Compact(s)
}

// Equal reports whether s and o have the same size and the same ordered
// content. Both sets are expected to be canonical.
func (s NormSet) Equal(o NormSet) bool { return slices.Equal(s, o) }

// Contains reports whether id is part of the set.
func (s NormSet) Contains(id NodeID) bool {
	_, found := slices.BinarySearch(s, id)
	return found
}

// Without returns a canonical copy of s with every id in drop removed.
func (s NormSet) Without(drop ...NodeID) NormSet {
	out := make(NormSet, 0, len(s))
	for _, id := range s {
		if !slices.Contains(drop, id) {
			out = append(out, id)
		}
	}
	return out
}

// Key returns a compact string usable as a map key.
func (s NormSet) Key() string {
	var b strings.Builder
	for i, id := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(id)))
	}
	return b.String()
}

// Names returns the names of the set's variables in set order.
func (g *Graph) Names(s NormSet) []string {
	names := make([]string, len(s))
	for i, id := range s {
		names[i] = g.Name(id)
	}
	return names
}

// FormatNormSet renders s as "(x,y)" in canonical order.
func (g *Graph) FormatNormSet(s NormSet) string {
	return "(" + strings.Join(g.Names(s), ",") + ")"
}
