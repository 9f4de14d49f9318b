package viewgraph

import (
	"github.com/matzehuels/viewgraph/pkg/document"
	verrors "github.com/matzehuels/viewgraph/pkg/errors"
)

// UnitSize is the width and height of every vertex handed to an engine.
// Document size hints are ignored.
const UnitSize = 1.0

// Build converts a document into a layout-ready view graph.
//
// Vertices are created for every input, node and output in document order.
// Edges come from two sources: argument connectivity (a producer of a named
// tensor is linked to each of its consumers) and the document's explicit
// edges. Repeated edges collapse into one; self edges are kept.
//
// Build fails with DUPLICATE_IDENTITY when a name repeats within a category
// and with UNRESOLVED_REFERENCE when a consumed tensor has no producer or an
// explicit edge names no (or more than one) vertex. The document is not
// modified.
func Build(doc *document.Document) (*ViewGraph, error) {
	if doc == nil {
		return nil, verrors.New(verrors.ErrCodeMalformedInput, "no document")
	}

	g := New()
	g.clustered = doc.Groups

	for _, in := range doc.Inputs {
		if _, err := g.AddVertex(InputKey(in.Name)); err != nil {
			return nil, err
		}
	}
	for _, n := range doc.Nodes {
		v, err := g.AddVertex(NodeKey(n.Name))
		if err != nil {
			return nil, err
		}
		if doc.Groups {
			v.Group = n.Group
		}
	}
	for _, out := range doc.Outputs {
		if _, err := g.AddVertex(OutputKey(out.Name)); err != nil {
			return nil, err
		}
	}

	if err := connectArguments(g, doc); err != nil {
		return nil, err
	}
	if err := connectEdges(g, doc.Edges); err != nil {
		return nil, err
	}

	g.SetSize(UnitSize, UnitSize)
	return g, nil
}

// connectArguments links every tensor producer to every consumer of the
// same tensor name.
func connectArguments(g *ViewGraph, doc *document.Document) error {
	producers := make(map[string][]Key)
	for _, in := range doc.Inputs {
		for _, arg := range in.Produces() {
			producers[arg] = append(producers[arg], InputKey(in.Name))
		}
	}
	for _, n := range doc.Nodes {
		for _, arg := range n.Produces() {
			producers[arg] = append(producers[arg], NodeKey(n.Name))
		}
	}

	link := func(consumer Key, args []string) error {
		for _, arg := range args {
			from, ok := producers[arg]
			if !ok {
				return verrors.New(verrors.ErrCodeUnresolvedReference,
					"%s %q consumes %q, which no input or node produces", consumer.Category, consumer.Name, arg)
			}
			for _, p := range from {
				if err := g.AddEdge(p, consumer); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, n := range doc.Nodes {
		if err := link(NodeKey(n.Name), n.Consumes()); err != nil {
			return err
		}
	}
	for _, out := range doc.Outputs {
		if err := link(OutputKey(out.Name), out.Consumes()); err != nil {
			return err
		}
	}
	return nil
}

func connectEdges(g *ViewGraph, edges []document.Edge) error {
	for i, e := range edges {
		from, err := resolve(g, e.From)
		if err != nil {
			return verrors.Wrap(verrors.GetCode(err), err, "edges[%d].from", i)
		}
		to, err := resolve(g, e.To)
		if err != nil {
			return verrors.Wrap(verrors.GetCode(err), err, "edges[%d].to", i)
		}
		if err := g.AddEdge(from, to); err != nil {
			return err
		}
	}
	return nil
}

// resolve maps an edge reference to a vertex key. A qualified reference must
// name an existing vertex of that kind; a bare name must match exactly one
// vertex across all categories.
func resolve(g *ViewGraph, ref document.Ref) (Key, error) {
	if ref.Kind != "" {
		c, err := ParseCategory(string(ref.Kind))
		if err != nil {
			return Key{}, verrors.New(verrors.ErrCodeMalformedInput, "unknown kind %q", ref.Kind)
		}
		k := Key{Category: c, Name: ref.Name}
		if _, ok := g.Vertex(k); !ok {
			return Key{}, verrors.New(verrors.ErrCodeUnresolvedReference, "no %s named %q", c, ref.Name)
		}
		return k, nil
	}

	switch keys := g.Lookup(ref.Name); len(keys) {
	case 0:
		return Key{}, verrors.New(verrors.ErrCodeUnresolvedReference, "no input, output or node named %q", ref.Name)
	case 1:
		return keys[0], nil
	default:
		return Key{}, verrors.New(verrors.ErrCodeUnresolvedReference,
			"%q is ambiguous (%s and %s); qualify it with a kind", ref.Name, keys[0].Category, keys[1].Category)
	}
}
