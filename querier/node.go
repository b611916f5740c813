package querier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/thisisjab/fuxi/fault"
)

// Node is an element of a filter tree. It uses a private marker method so
// only Filter and Group can be nodes.
type Node interface {
	node()
}

// Filter is a leaf condition comparing one column to a value.
type Filter struct {
	// Field is the column name. It is quoted as an identifier, never bound.
	Field string `json:"field"`

	Operator Operator `json:"operator"`

	// Value is passed through to the driver untouched. IN accepts a list;
	// IS NULL and IS NOT NULL ignore it.
	Value any `json:"value"`
}

func (Filter) node() {}

// Group joins its Nodes with a single combinator. Nested groups are
// parenthesized, the outermost one is not.
type Group struct {
	Logic Combinator `json:"logic,omitempty"`
	Nodes []Node     `json:"nodes"`
}

func (Group) node() {}

// Where builds a group out of nodes.
func Where(logic Combinator, nodes ...Node) Group {
	return Group{Logic: logic, Nodes: nodes}
}

// UnmarshalJSON decodes nodes carrying a "nodes" key as groups and everything
// else as filters.
func (g *Group) UnmarshalJSON(data []byte) error {
	var raw struct {
		Logic Combinator        `json:"logic"`
		Nodes []json.RawMessage `json:"nodes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	nodes := make([]Node, 0, len(raw.Nodes))
	for i, msg := range raw.Nodes {
		n, err := decodeNode(msg)
		if err != nil {
			var f fault.Fault
			if errors.As(err, &f) {
				return err
			}
			return invalid("where", fmt.Sprintf("Node %d is malformed: %v.", i, err))
		}
		nodes = append(nodes, n)
	}

	g.Logic = raw.Logic
	g.Nodes = nodes
	return nil
}

func decodeNode(msg json.RawMessage) (Node, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(msg, &probe); err != nil {
		return nil, err
	}

	if _, ok := probe["nodes"]; ok {
		var g Group
		if err := json.Unmarshal(msg, &g); err != nil {
			return nil, err
		}
		return g, nil
	}

	var f Filter
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return f, nil
}

func filterNodes(filters []Filter) []Node {
	nodes := make([]Node, len(filters))
	for i, f := range filters {
		nodes[i] = f
	}
	return nodes
}
