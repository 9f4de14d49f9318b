package viewgraph

import (
	"math"
	"strings"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
)

// Category distinguishes the three kinds of layout-participating entities.
// The zero value is not a valid category.
type Category uint8

const (
	// CategoryInput is a graph-level input port.
	CategoryInput Category = iota + 1
	// CategoryOutput is a graph-level output port.
	CategoryOutput
	// CategoryNode is an interior computation node.
	CategoryNode
)

// Categories lists the valid categories in response order.
var Categories = []Category{CategoryInput, CategoryOutput, CategoryNode}

// String returns the category's prefix form ("input", "output", "node").
func (c Category) String() string {
	switch c {
	case CategoryInput:
		return "input"
	case CategoryOutput:
		return "output"
	case CategoryNode:
		return "node"
	default:
		return "unknown"
	}
}

// Valid reports whether c is one of the three defined categories.
func (c Category) Valid() bool {
	return c >= CategoryInput && c <= CategoryNode
}

// ParseCategory parses the prefix form of a category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, verrors.New(verrors.ErrCodeSchemaViolation, "unknown vertex category %q", s)
}

// Key identifies a vertex: a category plus a name unique within it.
// Key is comparable and used directly as a map key throughout the pipeline.
type Key struct {
	Category Category
	Name     string
}

// InputKey, OutputKey and NodeKey are shorthands for building keys.
func InputKey(name string) Key  { return Key{Category: CategoryInput, Name: name} }
func OutputKey(name string) Key { return Key{Category: CategoryOutput, Name: name} }
func NodeKey(name string) Key   { return Key{Category: CategoryNode, Name: name} }

// String returns the "<category>-<name>" form of the key, e.g. "input-x".
// Engines use it as the vertex identifier; [ParseKey] reverses it.
func (k Key) String() string {
	return k.Category.String() + "-" + k.Name
}

// ParseKey parses the "<category>-<name>" form. The name may itself contain
// dashes; only the first one separates the category.
func ParseKey(s string) (Key, error) {
	prefix, name, ok := strings.Cut(s, "-")
	if !ok {
		return Key{}, verrors.New(verrors.ErrCodeSchemaViolation, "vertex id %q has no category prefix", s)
	}
	c, err := ParseCategory(prefix)
	if err != nil {
		return Key{}, err
	}
	return Key{Category: c, Name: name}, nil
}

// Vertex is one layout-participating entity.
//
// Width and Height are set by [Build]; X and Y are only meaningful once a
// layout engine has called SetPosition.
type Vertex struct {
	Key    Key
	Width  float64
	Height float64

	// Group is the cluster path of a node ("encoder/layer0"), empty when the
	// document does not enable grouping.
	Group string

	x, y   float64
	placed bool
}

// SetPosition records the vertex's center coordinates.
func (v *Vertex) SetPosition(x, y float64) {
	v.x, v.y = x, y
	v.placed = true
}

// Position returns the center coordinates and whether they were set.
func (v *Vertex) Position() (x, y float64, ok bool) {
	return v.x, v.y, v.placed
}

// Placed reports whether a layout engine has positioned the vertex with
// finite coordinates.
func (v *Vertex) Placed() bool {
	return v.placed && !math.IsNaN(v.x) && !math.IsNaN(v.y) && !math.IsInf(v.x, 0) && !math.IsInf(v.y, 0)
}

// ClearPosition forgets any previously assigned coordinates.
func (v *Vertex) ClearPosition() {
	v.x, v.y, v.placed = 0, 0, false
}

// Edge is a directed connection between two vertices.
type Edge struct {
	From Key
	To   Key
}

// IsSelfLoop reports whether the edge starts and ends at the same vertex.
func (e Edge) IsSelfLoop() bool { return e.From == e.To }
