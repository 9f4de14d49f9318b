// Package pkg provides the core libraries for viewgraph model graph layout.
//
// # Overview
//
// Viewgraph turns a model graph document (graph inputs, graph outputs and
// computation nodes joined by named arguments) into a 2-D position for every
// entity, so a front end can draw the graph. The pkg directory is organized
// into these areas:
//
//  1. [document] - Parsing and validation of the posted graph document
//  2. [viewgraph] - The view graph: vertices, edges, build and flatten
//  3. [layout] - Layout engines (graphviz dot and a native layered engine)
//  4. [pipeline] - Orchestration (parse → build → layout → flatten) with caching
//  5. [cache] - Response caches (file, redis, mongo)
//  6. [config] - TOML, .env and environment configuration
//  7. [client] - HTTP client for a running layout service
//
// # Architecture
//
// The typical data flow through viewgraph:
//
//	POST /layout body
//	         ↓
//	    [document] package (parse + validate)
//	         ↓
//	    [viewgraph] package (build vertices and edges)
//	         ↓
//	    [layout] package (position every vertex)
//	         ↓
//	    [viewgraph] package (flatten to inputs/outputs/nodes)
//	         ↓
//	    JSON response
//
// # Quick Start
//
//	runner := pipeline.NewRunner(layout.NewLayered(), nil, nil, logger)
//	result, err := runner.Execute(ctx, body)
//	if err != nil {
//	    return err
//	}
//	os.Stdout.Write(result.Body)
//
// Supporting packages: [errors] (coded errors and HTTP status mapping),
// [observability] (pipeline, cache and HTTP hooks), [httputil] (retries)
// and [buildinfo] (version metadata).
package pkg
