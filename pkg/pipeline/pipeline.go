// Package pipeline runs the layout request pipeline: parse the document,
// build the view graph, invoke the layout engine, flatten the coordinates.
//
// # Overview
//
// A [Runner] executes the four stages on the calling goroutine. Both the
// HTTP server and the offline `viewgraph layout` command use it, so the
// same request body produces the same response in either place.
//
// Stages:
//
//  1. Parse: decode and validate the JSON document ([document.Parse])
//  2. Build: one vertex per input, output and node, edges from argument
//     connectivity and explicit references ([viewgraph.Build])
//  3. Layout: run the configured engine ([layout.Invoke])
//  4. Flatten: collect coordinates keyed by original name ([viewgraph.Flatten])
//
// Every request gets a freshly built graph; the runner itself only holds
// the engine, the cache and the logger.
//
// # Caching
//
// When a cache is configured, the serialized response is stored under a
// key derived from the canonical document and the layout settings. A hit
// skips the build, layout and flatten stages. Cache failures are logged and
// otherwise ignored: a broken cache never fails a request.
package pipeline

import (
	"time"

	"github.com/matzehuels/viewgraph/pkg/viewgraph"
)

// =============================================================================
// Result
// =============================================================================

// Result contains the outputs of a pipeline run.
type Result struct {
	// Response is the flattened layout.
	Response viewgraph.Response

	// Body is the serialized response, as written to HTTP clients.
	Body []byte

	// DocumentHash is the content hash of the canonical document.
	DocumentHash string

	// Stats contains timing and size information.
	Stats Stats

	// CacheHit reports whether Body came from the response cache.
	CacheHit bool
}

// Stats contains pipeline execution statistics. Stage timings are zero for
// stages skipped by a cache hit.
type Stats struct {
	Vertices    int
	Edges       int
	ParseTime   time.Duration
	BuildTime   time.Duration
	LayoutTime  time.Duration
	FlattenTime time.Duration
}

// Total returns the summed stage durations.
func (s Stats) Total() time.Duration {
	return s.ParseTime + s.BuildTime + s.LayoutTime + s.FlattenTime
}
