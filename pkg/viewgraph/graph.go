package viewgraph

import (
	"slices"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
)

// ViewGraph is the layout-ready graph built from one document.
//
// Vertices keep insertion order (inputs, nodes, outputs in document order),
// which makes every traversal, and therefore every engine input,
// deterministic. A ViewGraph belongs to a single request and is not safe for
// concurrent use.
type ViewGraph struct {
	vertices []*Vertex
	index    map[Key]*Vertex
	byName   map[string][]Key

	edges    []Edge
	edgeSet  map[Edge]struct{}
	outgoing map[Key][]Key
	incoming map[Key][]Key

	clustered bool
}

// New creates an empty view graph.
func New() *ViewGraph {
	return &ViewGraph{
		index:    make(map[Key]*Vertex),
		byName:   make(map[string][]Key),
		edgeSet:  make(map[Edge]struct{}),
		outgoing: make(map[Key][]Key),
		incoming: make(map[Key][]Key),
	}
}

// AddVertex adds a vertex for k. It returns a DUPLICATE_IDENTITY error when
// the key is already present and a SCHEMA_VIOLATION error for an invalid
// category.
func (g *ViewGraph) AddVertex(k Key) (*Vertex, error) {
	if !k.Category.Valid() {
		return nil, verrors.New(verrors.ErrCodeSchemaViolation, "vertex %q has invalid category %d", k.Name, k.Category)
	}
	if _, exists := g.index[k]; exists {
		return nil, verrors.New(verrors.ErrCodeDuplicateIdentity, "duplicate %s name %q", k.Category, k.Name)
	}
	v := &Vertex{Key: k}
	g.vertices = append(g.vertices, v)
	g.index[k] = v
	g.byName[k.Name] = append(g.byName[k.Name], k)
	return v, nil
}

// AddEdge adds a directed edge between two existing vertices. Repeated
// edges are collapsed. A missing endpoint is an UNRESOLVED_REFERENCE error.
func (g *ViewGraph) AddEdge(from, to Key) error {
	if _, ok := g.index[from]; !ok {
		return verrors.New(verrors.ErrCodeUnresolvedReference, "unknown source %s %q", from.Category, from.Name)
	}
	if _, ok := g.index[to]; !ok {
		return verrors.New(verrors.ErrCodeUnresolvedReference, "unknown target %s %q", to.Category, to.Name)
	}
	e := Edge{From: from, To: to}
	if _, dup := g.edgeSet[e]; dup {
		return nil
	}
	g.edgeSet[e] = struct{}{}
	g.edges = append(g.edges, e)
	g.outgoing[from] = append(g.outgoing[from], to)
	g.incoming[to] = append(g.incoming[to], from)
	return nil
}

// Vertex returns the vertex for k.
func (g *ViewGraph) Vertex(k Key) (*Vertex, bool) {
	v, ok := g.index[k]
	return v, ok
}

// Lookup returns the keys of every vertex named name, across categories.
func (g *ViewGraph) Lookup(name string) []Key {
	return slices.Clone(g.byName[name])
}

// Vertices returns the vertices in insertion order. The slice is a copy;
// the vertices are shared so engines can position them in place.
func (g *ViewGraph) Vertices() []*Vertex { return slices.Clone(g.vertices) }

// Edges returns a copy of the edges in insertion order.
func (g *ViewGraph) Edges() []Edge { return slices.Clone(g.edges) }

// VertexCount returns the number of vertices.
func (g *ViewGraph) VertexCount() int { return len(g.vertices) }

// EdgeCount returns the number of distinct edges.
func (g *ViewGraph) EdgeCount() int { return len(g.edges) }

// Children returns the targets of k's outgoing edges.
func (g *ViewGraph) Children(k Key) []Key { return g.outgoing[k] }

// Parents returns the sources of k's incoming edges.
func (g *ViewGraph) Parents(k Key) []Key { return g.incoming[k] }

// Clustered reports whether node groups should be honoured by engines.
func (g *ViewGraph) Clustered() bool { return g.clustered }

// Groups returns the distinct non-empty node groups in first-seen order.
func (g *ViewGraph) Groups() []string {
	seen := make(map[string]bool)
	var groups []string
	for _, v := range g.vertices {
		if v.Group == "" || seen[v.Group] {
			continue
		}
		seen[v.Group] = true
		groups = append(groups, v.Group)
	}
	return groups
}

// SetSize forces every vertex to the given dimensions.
func (g *ViewGraph) SetSize(width, height float64) {
	for _, v := range g.vertices {
		v.Width, v.Height = width, height
	}
}

// Unplaced returns the keys of vertices without finite coordinates.
func (g *ViewGraph) Unplaced() []Key {
	var keys []Key
	for _, v := range g.vertices {
		if !v.Placed() {
			keys = append(keys, v.Key)
		}
	}
	return keys
}
