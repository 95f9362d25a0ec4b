package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/orneryd/nornicogm/pkg/registry"
)

// ErrClassNotDefined matches both NodeClassNotDefinedError and
// RelationshipClassNotDefinedError.
var ErrClassNotDefined = errors.New("class not defined")

// NodeClassNotDefinedError is returned when no descriptor is registered for
// exactly the node's label set.
type NodeClassNotDefinedError struct {
	Labels registry.LabelSet
	// Registered is the registry content at the time of the failure.
	Registered []registry.Entry
}

func (e *NodeClassNotDefinedError) Error() string {
	return fmt.Sprintf("node with labels %s does not resolve to any registered class%s",
		e.Labels, describeRegistry(e.Registered))
}

func (e *NodeClassNotDefinedError) Is(target error) bool { return target == ErrClassNotDefined }

// RelationshipClassNotDefinedError is returned when no descriptor is
// registered for the relationship's type.
type RelationshipClassNotDefinedError struct {
	Type       string
	Registered []registry.Entry
}

func (e *RelationshipClassNotDefinedError) Error() string {
	return fmt.Sprintf("relationship of type %q does not resolve to any registered class%s",
		e.Type, describeRegistry(e.Registered))
}

func (e *RelationshipClassNotDefinedError) Is(target error) bool { return target == ErrClassNotDefined }

func describeRegistry(entries []registry.Entry) string {
	if len(entries) == 0 {
		return " (registry is empty)"
	}
	var b strings.Builder
	b.WriteString("; registered:")
	for _, e := range entries {
		b.WriteString("\n  ")
		b.WriteString(e.String())
	}
	return b.String()
}

// InflateError wraps a failure returned by a descriptor.
type InflateError struct {
	Descriptor string
	Err        error
}

func (e *InflateError) Error() string {
	return fmt.Sprintf("inflating %s: %v", e.Descriptor, e.Err)
}

func (e *InflateError) Unwrap() error { return e.Err }
