package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is the caller-supplied description of a computation graph.
//
// Inputs, Outputs and Nodes must be present in the JSON body (they may be
// empty lists). Edges and Groups are optional.
type Document struct {
	Inputs  []Input  `json:"inputs" validate:"required,dive"`
	Outputs []Output `json:"outputs" validate:"required,dive"`
	Nodes   []Node   `json:"nodes" validate:"required,dive"`
	Edges   []Edge   `json:"edges,omitempty" validate:"dive"`

	// Groups enables clustering of nodes by their Group path.
	Groups bool `json:"groups,omitempty"`
}

// Size carries optional size hints. They are decoded but never used for
// layout, which works on unit-sized vertices.
type Size struct {
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

// HasHint reports whether either dimension was supplied.
func (s Size) HasHint() bool { return s.Width != nil || s.Height != nil }

// Argument is a named tensor flowing between entities.
type Argument struct {
	Name        string          `json:"name"`
	Type        json.RawMessage `json:"type,omitempty"`
	Shape       json.RawMessage `json:"shape,omitempty"`
	Initializer bool            `json:"initializer,omitempty"`
}

// Port groups the arguments bound to one named node input or output.
type Port struct {
	Name      string     `json:"name"`
	Arguments []Argument `json:"arguments,omitempty"`
}

// Input is a graph-level input.
type Input struct {
	Name        string          `json:"name" validate:"required"`
	Type        json.RawMessage `json:"type,omitempty"`
	Shape       json.RawMessage `json:"shape,omitempty"`
	OutputNames []string        `json:"output_names,omitempty"`
	Arguments   []Argument      `json:"arguments,omitempty"`
	Size
}

// Output is a graph-level output.
type Output struct {
	Name       string          `json:"name" validate:"required"`
	Type       json.RawMessage `json:"type,omitempty"`
	Shape      json.RawMessage `json:"shape,omitempty"`
	InputNames []string        `json:"input_names,omitempty"`
	Arguments  []Argument      `json:"arguments,omitempty"`
	Size
}

// Node is an interior computation node.
type Node struct {
	Name                string     `json:"name" validate:"required"`
	Type                OpType     `json:"type,omitempty"`
	Inputs              []Port     `json:"inputs,omitempty"`
	Outputs             []Port     `json:"outputs,omitempty"`
	Arguments           []Argument `json:"arguments,omitempty"`
	ControlDependencies []Argument `json:"controlDependencies,omitempty"`
	Group               string     `json:"group,omitempty"`

	// Chain lists fused operators; when present, the last link's outputs
	// replace the node's own outputs. Links are not validated as entities.
	Chain []Node `json:"chain,omitempty" validate:"-"`
	Size
}

// OpType is the operator type of a node. Exporters write it either as a
// bare string ("Conv") or as an object ({"name": "Conv"}); both decode to
// the same value.
type OpType struct {
	Name string `json:"name"`
}

// UnmarshalJSON accepts a string, an object with a name, or null.
func (t *OpType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.Name)
	}
	type plain OpType
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = OpType(p)
	return nil
}

// Kind names an entity category in edge references.
type Kind string

// Entity kinds accepted in edge references.
const (
	KindInput  Kind = "input"
	KindOutput Kind = "output"
	KindNode   Kind = "node"
)

// Ref references an entity by name, optionally qualified with its kind.
// In JSON it is written either as a bare name or as {"kind": ..., "name": ...}.
type Ref struct {
	Kind Kind   `json:"kind,omitempty" validate:"omitempty,oneof=input output node"`
	Name string `json:"name" validate:"required"`
}

// UnmarshalJSON accepts a string or an object.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*r = Ref{}
		return json.Unmarshal(data, &r.Name)
	}
	type plain Ref
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Ref(p)
	return nil
}

// String formats the reference for messages.
func (r Ref) String() string {
	if r.Kind == "" {
		return fmt.Sprintf("%q", r.Name)
	}
	return fmt.Sprintf("%s %q", r.Kind, r.Name)
}

// Edge is an explicit directed connection between two entities.
type Edge struct {
	From Ref `json:"from"`
	To   Ref `json:"to"`
}

// EntityCount returns the number of declared inputs, outputs and nodes.
func (d *Document) EntityCount() int {
	return len(d.Inputs) + len(d.Outputs) + len(d.Nodes)
}
