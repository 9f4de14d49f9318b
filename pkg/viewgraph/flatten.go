package viewgraph

import (
	"sort"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
)

// Point is a vertex center in layout units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Response maps each entity name to its computed position, split by
// category. It is the JSON body of a successful layout request.
type Response struct {
	Inputs  map[string]Point `json:"inputs"`
	Outputs map[string]Point `json:"outputs"`
	Nodes   map[string]Point `json:"nodes"`
}

// NewResponse returns a response with empty, non-nil sections so that an
// empty graph still serializes as {"inputs":{},"outputs":{},"nodes":{}}.
func NewResponse() Response {
	return Response{
		Inputs:  make(map[string]Point),
		Outputs: make(map[string]Point),
		Nodes:   make(map[string]Point),
	}
}

// Section returns the mapping that holds entities of category c, or nil.
func (r Response) Section(c Category) map[string]Point {
	switch c {
	case CategoryInput:
		return r.Inputs
	case CategoryOutput:
		return r.Outputs
	case CategoryNode:
		return r.Nodes
	}
	return nil
}

// Len returns the total number of positioned entities.
func (r Response) Len() int {
	return len(r.Inputs) + len(r.Outputs) + len(r.Nodes)
}

// Entry is one row of a flattened response.
type Entry struct {
	Key   Key
	Point Point
}

// Entries lists every position ordered by category, then name.
func (r Response) Entries() []Entry {
	var entries []Entry
	for _, c := range Categories {
		section := r.Section(c)
		names := make([]string, 0, len(section))
		for name := range section {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			entries = append(entries, Entry{Key: Key{Category: c, Name: name}, Point: section[name]})
		}
	}
	return entries
}

// Flatten collects the laid-out vertex positions into a [Response] keyed by
// each vertex's original name.
//
// Every vertex must carry a valid category and finite coordinates; anything
// else means an engine broke its contract and is reported as a
// SCHEMA_VIOLATION.
func Flatten(g *ViewGraph) (Response, error) {
	resp := NewResponse()
	for _, v := range g.vertices {
		section := resp.Section(v.Key.Category)
		if section == nil {
			return Response{}, verrors.New(verrors.ErrCodeSchemaViolation,
				"vertex %q has unknown category %d", v.Key.Name, v.Key.Category)
		}
		if !v.Placed() {
			return Response{}, verrors.New(verrors.ErrCodeSchemaViolation,
				"vertex %s has no coordinates", v.Key)
		}
		if _, dup := section[v.Key.Name]; dup {
			return Response{}, verrors.New(verrors.ErrCodeSchemaViolation,
				"vertex %s appears twice", v.Key)
		}
		x, y, _ := v.Position()
		section[v.Key.Name] = Point{X: x, Y: y}
	}
	return resp, nil
}
