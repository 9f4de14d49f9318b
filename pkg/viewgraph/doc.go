// Package viewgraph turns a parsed document into the graph a layout engine
// works on, and turns the laid-out graph back into per-name coordinates.
//
// # Core Types
//
//   - [Key]: (category, name) identity of a vertex, unique per category
//   - [Vertex]: one input, output or node with size and position
//   - [ViewGraph]: vertices and edges for a single request
//   - [Response]: name → {x, y}, split into inputs, outputs and nodes
//
// # Pipeline
//
//	doc, _ := document.Parse(body)
//	g, _ := viewgraph.Build(doc)            // unit-sized vertices + edges
//	_ = layout.Invoke(ctx, engine, g, opts) // positions every vertex
//	resp, _ := viewgraph.Flatten(g)         // {"inputs": {...}, ...}
//
// # Identity
//
// Vertices are identified by a typed [Key] throughout. Engines that need a
// string identifier use [Key.String], which yields the "<category>-<name>"
// form ("input-x", "node-conv"); [ParseKey] reverses it. Names are never
// re-derived by stripping prefixes.
package viewgraph
