package boltdriver

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/orneryd/nornicogm/pkg/graph"
)

func convertRow(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = convertValue(v)
	}
	return out
}

// convertValue replaces driver structural values with graph values,
// descending into lists and maps. Everything else is returned as is.
func convertValue(v any) any {
	switch x := v.(type) {
	case dbtype.Node:
		return convertNode(x)
	case dbtype.Relationship:
		return convertRelationship(x)
	case dbtype.Path:
		p := graph.Path{
			Nodes:         make([]graph.Node, len(x.Nodes)),
			Relationships: make([]graph.Relationship, len(x.Relationships)),
		}
		for i, n := range x.Nodes {
			p.Nodes[i] = convertNode(n)
		}
		for i, r := range x.Relationships {
			p.Relationships[i] = convertRelationship(r)
		}
		return p
	case []any:
		return convertRow(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = convertValue(e)
		}
		return out
	default:
		return v
	}
}

func convertNode(n dbtype.Node) graph.Node {
	return graph.Node{
		ID:         n.Id, //nolint:staticcheck // legacy id is still used for 4.x servers
		ElementID:  n.ElementId,
		Labels:     n.Labels,
		Properties: n.Props,
	}
}

func convertRelationship(r dbtype.Relationship) graph.Relationship {
	//nolint:staticcheck // legacy ids are still used for 4.x servers
	return graph.Relationship{
		ID:             r.Id,
		ElementID:      r.ElementId,
		StartID:        r.StartId,
		StartElementID: r.StartElementId,
		EndID:          r.EndId,
		EndElementID:   r.EndElementId,
		Type:           r.Type,
		Properties:     r.Props,
	}
}
