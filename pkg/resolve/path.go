package resolve

import (
	"sync"

	"github.com/orneryd/nornicogm/pkg/graph"
)

// Path is a resolved path. Its nodes and relationships are inflated on
// first access and memoised, including a resolution error.
type Path struct {
	raw graph.Path
	r   *Resolver

	once  sync.Once
	nodes []any
	rels  []any
	err   error
}

func newPath(r *Resolver, raw graph.Path) *Path {
	return &Path{raw: raw, r: r}
}

// Raw returns the unresolved path.
func (p *Path) Raw() graph.Path { return p.raw }

// Len returns the number of relationships.
func (p *Path) Len() int { return p.raw.Len() }

func (p *Path) resolve() {
	p.once.Do(func() {
		nodes := make([]any, len(p.raw.Nodes))
		for i, n := range p.raw.Nodes {
			inst, err := p.r.resolveNode(n)
			if err != nil {
				p.err = err
				return
			}
			nodes[i] = inst
		}
		rels := make([]any, len(p.raw.Relationships))
		for i, rel := range p.raw.Relationships {
			inst, err := p.r.resolveRelationship(rel, true)
			if err != nil {
				p.err = err
				return
			}
			rels[i] = inst
		}
		p.nodes, p.rels = nodes, rels
	})
}

// Nodes returns the inflated nodes in path order.
func (p *Path) Nodes() ([]any, error) {
	p.resolve()
	if p.err != nil {
		return nil, p.err
	}
	return append([]any(nil), p.nodes...), nil
}

// Relationships returns the inflated relationships in path order.
func (p *Path) Relationships() ([]any, error) {
	p.resolve()
	if p.err != nil {
		return nil, p.err
	}
	return append([]any(nil), p.rels...), nil
}

// Start returns the first inflated node, nil for an empty path.
func (p *Path) Start() (any, error) {
	nodes, err := p.Nodes()
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// End returns the last inflated node, nil for an empty path.
func (p *Path) End() (any, error) {
	nodes, err := p.Nodes()
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[len(nodes)-1], nil
}
