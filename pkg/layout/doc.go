// Package layout positions the vertices of a view graph.
//
// The package is a thin call-through to a layout [Engine]. Two engines are
// available:
//
//   - [Graphviz] ("dot"): the dot algorithm of the embedded graphviz runtime
//     (github.com/goccy/go-graphviz, WebAssembly, no cgo). Honours node
//     group clusters.
//   - [Layered] ("layered"): a pure Go longest-path layering with
//     barycentric ordering, for acyclic graphs.
//
// # Usage
//
//	engine, err := layout.NewEngine("dot")
//	if err != nil {
//	    return err
//	}
//	if err := layout.Invoke(ctx, engine, g, layout.DefaultOptions()); err != nil {
//	    return err // LAYOUT_FAILURE
//	}
//
// [Options] is passed by value on every call; engines never store it. All
// coordinates are vertex centers in layout units with y growing downward.
package layout
