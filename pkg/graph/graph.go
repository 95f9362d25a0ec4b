// Package graph defines the raw graph values returned by a Bolt server.
//
// A result row is a []any whose cells are either primitives (nil, bool,
// int64, float64, string, temporal and spatial values), one of the
// structural types below, or a nested []any of the same. Drivers convert
// their native structures into these types so that the rest of nornicogm
// never depends on a particular driver package.
//
// Example:
//
//	row := []any{
//		graph.Node{ElementID: "4:db:1", Labels: []string{"Person"}},
//		"note",
//	}
package graph

import (
	"fmt"
	"strings"
)

// Node is a raw node as delivered by the server.
type Node struct {
	// ID is the legacy numeric identity (Neo4j 4.x id()).
	ID int64
	// ElementID is the string identity (Neo4j 5.x elementId()).
	ElementID string
	// Labels in server order. May contain duplicates from older servers.
	Labels []string
	// Properties as returned by the driver.
	Properties map[string]any
}

// Relationship is a raw relationship as delivered by the server.
type Relationship struct {
	ID             int64
	ElementID      string
	StartID        int64
	StartElementID string
	EndID          int64
	EndElementID   string
	Type           string
	Properties     map[string]any
}

// Path is an alternating sequence of nodes and relationships.
//
// len(Relationships) == len(Nodes)-1 for a well formed path. The start node
// is Nodes[0] and the end node is Nodes[len(Nodes)-1].
type Path struct {
	Nodes         []Node
	Relationships []Relationship
}

// Start returns the first node of the path.
func (p Path) Start() (Node, bool) {
	if len(p.Nodes) == 0 {
		return Node{}, false
	}
	return p.Nodes[0], true
}

// End returns the last node of the path.
func (p Path) End() (Node, bool) {
	if len(p.Nodes) == 0 {
		return Node{}, false
	}
	return p.Nodes[len(p.Nodes)-1], true
}

// Len returns the number of relationships in the path.
func (p Path) Len() int {
	return len(p.Relationships)
}

// HasLabel reports whether the node carries label.
func (n Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func (n Node) String() string {
	return fmt.Sprintf("(%s:%s %v)", n.ElementID, strings.Join(n.Labels, ":"), n.Properties)
}

func (r Relationship) String() string {
	return fmt.Sprintf("[%s:%s %v]", r.ElementID, r.Type, r.Properties)
}
