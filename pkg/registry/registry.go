// Package registry maps graph label sets to class descriptors.
//
// Every node returned by the server carries a set of labels; every
// relationship carries a single type. The registry resolves those to a
// Descriptor able to inflate the raw entity into a domain instance. Lookup
// is by exact set equality: a node labelled {Red, Square} only resolves to
// the descriptor registered for exactly {Red, Square}, never to one
// registered for {Square} or {Red, Square, Shape}.
//
// Registration is rare (model definition time) compared to lookups, so the
// registry is copy-on-write: writers serialise on a mutex and publish a new
// immutable snapshot, readers load the current snapshot without locking.
//
// Example:
//
//	reg := registry.New()
//	err := reg.RegisterNode(registry.DescriptorFunc("Person", inflatePerson), "Person")
//	desc, ok := reg.LookupNode([]string{"Person"})
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Registry errors
var (
	ErrEmptyLabelSet     = errors.New("label set is empty")
	ErrAlreadyRegistered = errors.New("label set already registered")
	ErrNilDescriptor     = errors.New("descriptor is nil")
	ErrEmptyRelationType = errors.New("relationship type is empty")
)

// Descriptor inflates a raw graph entity into a domain instance.
//
// entity is a graph.Node for node descriptors and a graph.Relationship for
// relationship descriptors.
type Descriptor interface {
	Name() string
	Inflate(entity any) (any, error)
}

type funcDescriptor struct {
	name    string
	inflate func(entity any) (any, error)
}

func (d funcDescriptor) Name() string                    { return d.name }
func (d funcDescriptor) Inflate(entity any) (any, error) { return d.inflate(entity) }

// DescriptorFunc adapts a plain function into a Descriptor.
func DescriptorFunc(name string, inflate func(entity any) (any, error)) Descriptor {
	return funcDescriptor{name: name, inflate: inflate}
}

// Kind distinguishes node and relationship entries.
type Kind string

const (
	KindNode         Kind = "node"
	KindRelationship Kind = "relationship"
)

// Entry describes one registration, for diagnostics.
type Entry struct {
	Kind       Kind
	Labels     LabelSet
	Descriptor string
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s -> %s", e.Kind, e.Labels, e.Descriptor)
}

type entry struct {
	labels     LabelSet
	descriptor Descriptor
}

type snapshot struct {
	nodes map[Key]entry
	rels  map[Key]entry
}

// Registry is safe for concurrent use.
type Registry struct {
	mu   sync.Mutex // serialises writers
	snap atomic.Pointer[snapshot]
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{}
	r.snap.Store(&snapshot{
		nodes: map[Key]entry{},
		rels:  map[Key]entry{},
	})
	return r
}

// RegisterNode registers d for nodes carrying exactly labels.
func (r *Registry) RegisterNode(d Descriptor, labels ...string) error {
	set := NewLabelSet(labels...)
	if set.Len() == 0 {
		return ErrEmptyLabelSet
	}
	return r.register(KindNode, set, d)
}

// RegisterRelationship registers d for relationships of type relType.
func (r *Registry) RegisterRelationship(d Descriptor, relType string) error {
	if relType == "" {
		return ErrEmptyRelationType
	}
	return r.register(KindRelationship, NewLabelSet(relType), d)
}

func (r *Registry) register(kind Kind, set LabelSet, d Descriptor) error {
	if d == nil {
		return ErrNilDescriptor
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	target := cur.nodes
	if kind == KindRelationship {
		target = cur.rels
	}
	if existing, ok := target[set.Key()]; ok {
		return fmt.Errorf("%w: %s %s is bound to %s", ErrAlreadyRegistered, kind, set, existing.descriptor.Name())
	}

	next := &snapshot{
		nodes: cloneEntries(cur.nodes),
		rels:  cloneEntries(cur.rels),
	}
	if kind == KindRelationship {
		next.rels[set.Key()] = entry{labels: set, descriptor: d}
	} else {
		next.nodes[set.Key()] = entry{labels: set, descriptor: d}
	}
	r.snap.Store(next)
	return nil
}

func cloneEntries(src map[Key]entry) map[Key]entry {
	dst := make(map[Key]entry, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// LookupNode returns the descriptor registered for exactly labels.
func (r *Registry) LookupNode(labels []string) (Descriptor, bool) {
	e, ok := r.snap.Load().nodes[NewLabelSet(labels...).Key()]
	if !ok {
		return nil, false
	}
	return e.descriptor, true
}

// LookupRelationship returns the descriptor registered for relType.
func (r *Registry) LookupRelationship(relType string) (Descriptor, bool) {
	e, ok := r.snap.Load().rels[NewLabelSet(relType).Key()]
	if !ok {
		return nil, false
	}
	return e.descriptor, true
}

// Len returns the number of registrations of both kinds.
func (r *Registry) Len() int {
	s := r.snap.Load()
	return len(s.nodes) + len(s.rels)
}

// Entries returns every registration, nodes first, each group sorted by
// label set. The result is a copy and safe to keep.
func (r *Registry) Entries() []Entry {
	s := r.snap.Load()
	out := make([]Entry, 0, len(s.nodes)+len(s.rels))
	out = appendSorted(out, KindNode, s.nodes)
	out = appendSorted(out, KindRelationship, s.rels)
	return out
}

func appendSorted(out []Entry, kind Kind, m map[Key]entry) []Entry {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		e := m[k]
		out = append(out, Entry{Kind: kind, Labels: e.labels, Descriptor: e.descriptor.Name()})
	}
	return out
}
