package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/viewgraph/pkg/cache"
	"github.com/matzehuels/viewgraph/pkg/document"
	verrors "github.com/matzehuels/viewgraph/pkg/errors"
	"github.com/matzehuels/viewgraph/pkg/layout"
	"github.com/matzehuels/viewgraph/pkg/observability"
	"github.com/matzehuels/viewgraph/pkg/viewgraph"
)

// keyTypeLayout labels layout responses in cache hooks.
const keyTypeLayout = "layout"

// Runner encapsulates pipeline execution with caching.
// Both the server and the CLI use it to avoid duplicating stage logic.
//
// The Runner is stateless except for the engine, cache and logger: it
// doesn't store pipeline results or graphs. Multiple goroutines can safely
// share one Runner.
type Runner struct {
	Engine  layout.Engine
	Options layout.Options
	Cache   cache.Cache
	Keyer   cache.Keyer
	TTL     time.Duration
	Logger  *log.Logger
}

// NewRunner creates a runner with default layout options.
// If engine is nil, the graphviz engine is used.
// If cache is nil, a NullCache is used (caching disabled).
// If keyer is nil, a DefaultKeyer is used.
func NewRunner(engine layout.Engine, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if engine == nil {
		engine = layout.NewGraphviz()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Engine:  engine,
		Options: layout.DefaultOptions(),
		Cache:   c,
		Keyer:   keyer,
		TTL:     cache.TTLLayout,
		Logger:  logger,
	}
}

// Execute runs the complete parse → build → layout → flatten pipeline on a
// raw request body.
//
// Errors carry a [verrors.Code] describing the failed stage, except for
// context cancellation, which is returned unchanged.
func (r *Runner) Execute(ctx context.Context, body []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	doc, err := document.Parse(body)
	parseTime := time.Since(start)
	entities := 0
	if doc != nil {
		entities = doc.EntityCount()
	}
	observability.Pipeline().OnParseComplete(ctx, entities, parseTime, err)
	if err != nil {
		return nil, err
	}

	r.Logger.Debug("parsed document",
		"inputs", len(doc.Inputs),
		"outputs", len(doc.Outputs),
		"nodes", len(doc.Nodes),
		"duration", parseTime)

	result, err := r.ExecuteDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	result.Stats.ParseTime = parseTime
	return result, nil
}

// ExecuteDocument runs the pipeline on an already parsed document.
func (r *Runner) ExecuteDocument(ctx context.Context, doc *document.Document) (*Result, error) {
	if doc == nil {
		return nil, verrors.New(verrors.ErrCodeMalformedInput, "no document")
	}

	canonical, err := doc.Canonical()
	if err != nil {
		return nil, verrors.Wrap(verrors.ErrCodeInternal, err, "encode document")
	}
	result := &Result{DocumentHash: cache.Hash(canonical)}
	key := r.Keyer.LayoutKey(result.DocumentHash, r.LayoutKeyOpts())

	// Try cache first
	if resp, body, hit := r.lookup(ctx, key); hit {
		result.Response = resp
		result.Body = body
		result.CacheHit = true
		r.Logger.Debug("layout cache hit", "key", key, "entries", resp.Len())
		return result, nil
	}

	resp, err := r.Layout(ctx, doc, &result.Stats)
	if err != nil {
		return nil, err
	}

	body, err := viewgraph.MarshalResponse(resp)
	if err != nil {
		return nil, verrors.Wrap(verrors.ErrCodeInternal, err, "encode response")
	}
	result.Response = resp
	result.Body = body

	r.store(ctx, key, body)
	return result, nil
}

// Layout runs the build, layout and flatten stages without touching the
// cache. Timings and sizes are recorded in stats when it is non-nil.
func (r *Runner) Layout(ctx context.Context, doc *document.Document, stats *Stats) (viewgraph.Response, error) {
	if stats == nil {
		stats = &Stats{}
	}
	hooks := observability.Pipeline()

	// Stage 1: Build
	if err := ctx.Err(); err != nil {
		return viewgraph.Response{}, err
	}
	start := time.Now()
	g, err := viewgraph.Build(doc)
	stats.BuildTime = time.Since(start)
	if g != nil {
		stats.Vertices = g.VertexCount()
		stats.Edges = g.EdgeCount()
	}
	hooks.OnBuildComplete(ctx, stats.Vertices, stats.Edges, stats.BuildTime, err)
	if err != nil {
		return viewgraph.Response{}, err
	}

	r.Logger.Debug("built view graph",
		"vertices", stats.Vertices,
		"edges", stats.Edges,
		"duration", stats.BuildTime)

	// Stage 2: Layout
	if err := ctx.Err(); err != nil {
		return viewgraph.Response{}, err
	}
	engine := r.Engine.Name()
	hooks.OnLayoutStart(ctx, engine, stats.Vertices)
	start = time.Now()
	err = layout.Invoke(ctx, r.Engine, g, r.Options)
	stats.LayoutTime = time.Since(start)
	hooks.OnLayoutComplete(ctx, engine, stats.LayoutTime, err)
	if err != nil {
		return viewgraph.Response{}, err
	}

	r.Logger.Debug("computed layout",
		"engine", engine,
		"vertices", stats.Vertices,
		"duration", stats.LayoutTime)

	// Stage 3: Flatten
	start = time.Now()
	resp, err := viewgraph.Flatten(g)
	stats.FlattenTime = time.Since(start)
	hooks.OnFlattenComplete(ctx, resp.Len(), stats.FlattenTime, err)
	if err != nil {
		return viewgraph.Response{}, err
	}
	return resp, nil
}

// LayoutKeyOpts returns the cache key options for the runner's settings.
func (r *Runner) LayoutKeyOpts() cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		Engine:  r.Engine.Name(),
		NodeSep: r.Options.NodeSep,
		RankSep: r.Options.RankSep,
	}
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// lookup returns a cached response. Read or decode failures count as a miss.
func (r *Runner) lookup(ctx context.Context, key string) (viewgraph.Response, []byte, bool) {
	if !r.caching() {
		return viewgraph.Response{}, nil, false
	}
	hooks := observability.Cache()

	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		hooks.OnCacheError(ctx, keyTypeLayout, "get", err)
		r.Logger.Warn("cache read failed", "key", key, "error", err)
		return viewgraph.Response{}, nil, false
	}
	if !hit {
		hooks.OnCacheMiss(ctx, keyTypeLayout)
		return viewgraph.Response{}, nil, false
	}

	resp, err := viewgraph.UnmarshalResponse(data)
	if err != nil {
		// Recompute and overwrite the entry.
		hooks.OnCacheMiss(ctx, keyTypeLayout)
		r.Logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return viewgraph.Response{}, nil, false
	}
	hooks.OnCacheHit(ctx, keyTypeLayout)
	return resp, data, true
}

func (r *Runner) store(ctx context.Context, key string, body []byte) {
	if !r.caching() {
		return
	}
	if err := r.Cache.Set(ctx, key, body, r.TTL); err != nil {
		observability.Cache().OnCacheError(ctx, keyTypeLayout, "set", err)
		r.Logger.Warn("cache write failed", "key", key, "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyTypeLayout, len(body))
}

func (r *Runner) caching() bool {
	if r.Cache == nil {
		return false
	}
	_, null := r.Cache.(*cache.NullCache)
	return !null
}
