// Package resolve turns raw result rows into domain instances.
//
// A Resolver walks every cell of a row. Nodes are inflated by the
// descriptor registered for their exact label set, relationships by the one
// registered for their type, paths become *Path values that resolve their
// members on first access, and nested lists are resolved element by
// element. Anything else is passed through.
//
// Resolution never mutates its input: rows are copied and the copies are
// returned. A failure on any element aborts the whole call.
package resolve

import (
	"github.com/orneryd/nornicogm/pkg/graph"
	"github.com/orneryd/nornicogm/pkg/registry"
)

// Options tune a Resolver.
type Options struct {
	// RelationshipFallback inflates path relationships whose type has no
	// registered descriptor. Relationships outside paths never fall back.
	RelationshipFallback registry.Descriptor
}

// Resolver resolves raw values against a registry. It is stateless and
// safe for concurrent use.
type Resolver struct {
	reg  *registry.Registry
	opts Options
}

// New returns a Resolver over reg.
func New(reg *registry.Registry, opts Options) *Resolver {
	return &Resolver{reg: reg, opts: opts}
}

// ResolveRows resolves every row. The input is left untouched.
func (r *Resolver) ResolveRows(rows [][]any) ([][]any, error) {
	out := make([][]any, len(rows))
	for i, row := range rows {
		resolved, err := r.ResolveRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

// ResolveRow resolves one row positionally.
func (r *Resolver) ResolveRow(row []any) ([]any, error) {
	if row == nil {
		return nil, nil
	}
	out := make([]any, len(row))
	for i, v := range row {
		resolved, err := r.ResolveValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

// ResolveValue resolves a single cell.
func (r *Resolver) ResolveValue(v any) (any, error) {
	switch x := v.(type) {
	case graph.Node:
		return r.resolveNode(x)
	case graph.Relationship:
		return r.resolveRelationship(x, false)
	case graph.Path:
		return newPath(r, x), nil
	case []any:
		return r.ResolveRow(x)
	default:
		return v, nil
	}
}

func (r *Resolver) resolveNode(n graph.Node) (any, error) {
	d, ok := r.reg.LookupNode(n.Labels)
	if !ok {
		return nil, &NodeClassNotDefinedError{
			Labels:     registry.NewLabelSet(n.Labels...),
			Registered: r.reg.Entries(),
		}
	}
	return inflate(d, n)
}

func (r *Resolver) resolveRelationship(rel graph.Relationship, inPath bool) (any, error) {
	d, ok := r.reg.LookupRelationship(rel.Type)
	if !ok {
		if inPath && r.opts.RelationshipFallback != nil {
			return inflate(r.opts.RelationshipFallback, rel)
		}
		return nil, &RelationshipClassNotDefinedError{
			Type:       rel.Type,
			Registered: r.reg.Entries(),
		}
	}
	return inflate(d, rel)
}

func inflate(d registry.Descriptor, entity any) (any, error) {
	inst, err := d.Inflate(entity)
	if err != nil {
		return nil, &InflateError{Descriptor: d.Name(), Err: err}
	}
	return inst, nil
}
