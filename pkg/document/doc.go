// Package document defines the graph document accepted by the layout service.
//
// A [Document] describes a computation graph the way model viewers export
// it: graph-level inputs, graph-level outputs, interior computation nodes,
// and the named arguments (tensors) that connect them. An optional list of
// explicit [Edge]s can connect entities directly by name.
//
// # Decoding
//
// [Parse] turns raw request bytes into a validated Document. Invalid JSON is
// reported with code PARSE_FAILURE; JSON that does not have the document
// shape (not an object, missing collections, wrong field types, empty names)
// is reported with code MALFORMED_INPUT. See [github.com/matzehuels/viewgraph/pkg/errors].
//
// # Connectivity
//
// Entities do not reference each other directly. Instead, producers (graph
// inputs and node outputs) and consumers (node inputs, control dependencies
// and graph outputs) meet at argument names. [Input.Produces],
// [Node.Consumes], [Node.Produces] and [Output.Consumes] expose the argument
// names each entity takes part in; the view graph builder turns them into
// edges.
//
// Metadata such as tensor types and shapes is carried as raw JSON and never
// interpreted. Size hints (width, height) are decoded so they can be
// inspected, but the layout always uses unit-sized vertices.
package document
