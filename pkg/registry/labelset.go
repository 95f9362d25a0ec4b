package registry

import (
	"sort"
	"strings"
)

// keySeparator joins canonical labels. Labels may legally contain ':' when
// backtick-quoted in Cypher, so the key uses a byte that cannot appear in one.
const keySeparator = "\x00"

// Key is the canonical form of a LabelSet, usable as a map key.
type Key string

// LabelSet is an unordered, duplicate-free set of labels.
//
// The zero value is the empty set. LabelSets are immutable once built.
type LabelSet struct {
	labels []string // sorted, unique
}

// NewLabelSet builds a LabelSet, sorting and removing duplicates.
func NewLabelSet(labels ...string) LabelSet {
	if len(labels) == 0 {
		return LabelSet{}
	}
	sorted := make([]string, len(labels))
	copy(sorted, labels)
	sort.Strings(sorted)

	out := sorted[:1]
	for _, l := range sorted[1:] {
		if l != out[len(out)-1] {
			out = append(out, l)
		}
	}
	return LabelSet{labels: out}
}

// Key returns the canonical lookup key.
func (s LabelSet) Key() Key {
	return Key(strings.Join(s.labels, keySeparator))
}

// Labels returns a copy of the sorted labels.
func (s LabelSet) Labels() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

// Len returns the number of labels.
func (s LabelSet) Len() int { return len(s.labels) }

// Equal reports exact set equality.
func (s LabelSet) Equal(other LabelSet) bool {
	return s.Key() == other.Key()
}

// String renders the set in Cypher label form, e.g. ":Red:Square".
func (s LabelSet) String() string {
	if len(s.labels) == 0 {
		return "{}"
	}
	return ":" + strings.Join(s.labels, ":")
}
