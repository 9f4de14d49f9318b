package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/viewgraph/pkg/cache"
	verrors "github.com/matzehuels/viewgraph/pkg/errors"
	"github.com/matzehuels/viewgraph/pkg/layout"
	"github.com/matzehuels/viewgraph/pkg/observability"
	"github.com/matzehuels/viewgraph/pkg/viewgraph"
)

const chainDoc = `{
	"inputs":  [{"name": "A", "arguments": [{"name": "a"}]}],
	"outputs": [{"name": "C", "arguments": [{"name": "b"}]}],
	"nodes":   [{"name": "B",
	             "inputs":  [{"name": "X", "arguments": [{"name": "a"}]}],
	             "outputs": [{"name": "Y", "arguments": [{"name": "b"}]}]}]
}`

// Same document as chainDoc with different whitespace.
const chainDocCompact = `{"inputs":[{"name":"A","arguments":[{"name":"a"}]}],"outputs":[{"name":"C","arguments":[{"name":"b"}]}],"nodes":[{"name":"B","inputs":[{"name":"X","arguments":[{"name":"a"}]}],"outputs":[{"name":"Y","arguments":[{"name":"b"}]}]}]}`

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestRunner(t *testing.T, c cache.Cache) *Runner {
	t.Helper()
	return NewRunner(layout.NewLayered(), c, nil, quietLogger())
}

// stubEngine stacks vertices in insertion order, or fails with err.
type stubEngine struct {
	err   error
	calls int
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) Layout(ctx context.Context, g *viewgraph.ViewGraph, opts layout.Options) error {
	e.calls++
	if e.err != nil {
		return e.err
	}
	for i, v := range g.Vertices() {
		v.SetPosition(0, float64(i))
	}
	return nil
}

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}
func (brokenCache) Delete(context.Context, string) error { return nil }
func (brokenCache) Close() error                         { return nil }

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner(nil, nil, nil, nil)
	if r.Engine == nil || r.Engine.Name() != layout.EngineDot {
		t.Errorf("Engine = %v, want dot", r.Engine)
	}
	if _, ok := r.Cache.(*cache.NullCache); !ok {
		t.Errorf("Cache = %T, want *cache.NullCache", r.Cache)
	}
	if r.Keyer == nil {
		t.Error("Keyer should default to DefaultKeyer")
	}
	if r.Options != layout.DefaultOptions() {
		t.Errorf("Options = %+v, want defaults", r.Options)
	}
	if r.TTL != cache.TTLLayout {
		t.Errorf("TTL = %v, want %v", r.TTL, cache.TTLLayout)
	}
	if r.Logger == nil {
		t.Error("Logger should default to log.Default()")
	}
}

func TestExecute(t *testing.T) {
	r := newTestRunner(t, nil)

	result, err := r.Execute(context.Background(), []byte(chainDoc))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if result.CacheHit {
		t.Error("CacheHit = true without a cache")
	}

	resp := result.Response
	a, okA := resp.Inputs["A"]
	b, okB := resp.Nodes["B"]
	c, okC := resp.Outputs["C"]
	if !okA || !okB || !okC {
		t.Fatalf("Response = %+v, want A, B and C", resp)
	}
	if !(a.Y < b.Y && b.Y < c.Y) {
		t.Errorf("y order = %v, %v, %v, want strictly increasing", a.Y, b.Y, c.Y)
	}

	want, err := viewgraph.MarshalResponse(resp)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(result.Body, want) {
		t.Errorf("Body = %s, want %s", result.Body, want)
	}

	if result.Stats.Vertices != 3 || result.Stats.Edges != 2 {
		t.Errorf("Stats = %+v, want 3 vertices and 2 edges", result.Stats)
	}
	if result.DocumentHash == "" {
		t.Error("DocumentHash should be set")
	}
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode verrors.Code
	}{
		{"not json", "not json", verrors.ErrCodeParseFailure},
		{"empty", "", verrors.ErrCodeParseFailure},
		{"missing collections", `{}`, verrors.ErrCodeMalformedInput},
		{"duplicate input", `{"inputs": [{"name": "x"}, {"name": "x"}], "outputs": [], "nodes": []}`, verrors.ErrCodeDuplicateIdentity},
		{"dangling edge", `{"inputs": [{"name": "x"}], "outputs": [], "nodes": [], "edges": [{"from": "x", "to": "ghost"}]}`, verrors.ErrCodeUnresolvedReference},
		{"cycle", `{"inputs": [], "outputs": [], "nodes": [{"name": "a"}, {"name": "b"}],
			"edges": [{"from": "a", "to": "b"}, {"from": "b", "to": "a"}]}`, verrors.ErrCodeLayoutFailure},
	}

	r := newTestRunner(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.Execute(context.Background(), []byte(tt.body))
			if err == nil {
				t.Fatalf("Execute() = %+v, want error", result)
			}
			if code := verrors.GetCode(err); code != tt.wantCode {
				t.Errorf("code = %q, want %q (err: %v)", code, tt.wantCode, err)
			}
		})
	}

	// The runner keeps serving after failures.
	if _, err := r.Execute(context.Background(), []byte(chainDoc)); err != nil {
		t.Errorf("Execute() after failures error: %v", err)
	}
}

func TestExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &stubEngine{}
	r := NewRunner(engine, nil, nil, quietLogger())
	if _, err := r.Execute(ctx, []byte(chainDoc)); !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
	if engine.calls != 0 {
		t.Errorf("engine called %d times after cancellation", engine.calls)
	}
}

func TestExecuteEngineFailure(t *testing.T) {
	engine := &stubEngine{err: errors.New("boom")}
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(engine, c, nil, quietLogger())

	for i := 0; i < 2; i++ {
		if _, err := r.Execute(context.Background(), []byte(chainDoc)); !verrors.Is(err, verrors.ErrCodeLayoutFailure) {
			t.Fatalf("Execute() error = %v, want LAYOUT_FAILURE", err)
		}
	}
	if engine.calls != 2 {
		t.Errorf("engine calls = %d, want 2 (failures are not cached)", engine.calls)
	}
}

func TestExecuteCache(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	engine := &stubEngine{}
	r := NewRunner(engine, c, nil, quietLogger())
	ctx := context.Background()

	first, err := r.Execute(ctx, []byte(chainDoc))
	if err != nil {
		t.Fatalf("first Execute() error: %v", err)
	}
	if first.CacheHit {
		t.Error("first run should miss the cache")
	}

	// Whitespace does not change the canonical document.
	second, err := r.Execute(ctx, []byte(chainDocCompact))
	if err != nil {
		t.Fatalf("second Execute() error: %v", err)
	}
	if !second.CacheHit {
		t.Error("second run should hit the cache")
	}
	if !bytes.Equal(first.Body, second.Body) {
		t.Errorf("cached Body = %s, want %s", second.Body, first.Body)
	}
	if second.Response.Len() != 3 {
		t.Errorf("cached Response has %d entries, want 3", second.Response.Len())
	}
	if engine.calls != 1 {
		t.Errorf("engine calls = %d, want 1", engine.calls)
	}

	// Different options produce a different key.
	r.Options.NodeSep = 40
	third, err := r.Execute(ctx, []byte(chainDoc))
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheHit {
		t.Error("changed options should miss the cache")
	}
}

func TestExecuteCorruptCacheEntry(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	engine := &stubEngine{}
	r := NewRunner(engine, c, nil, quietLogger())
	ctx := context.Background()

	first, err := r.Execute(ctx, []byte(chainDoc))
	if err != nil {
		t.Fatal(err)
	}
	key := r.Keyer.LayoutKey(first.DocumentHash, r.LayoutKeyOpts())
	if err := c.Set(ctx, key, []byte("{broken"), time.Hour); err != nil {
		t.Fatal(err)
	}

	result, err := r.Execute(ctx, []byte(chainDoc))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if result.CacheHit {
		t.Error("corrupt entry should count as a miss")
	}
	if engine.calls != 2 {
		t.Errorf("engine calls = %d, want 2", engine.calls)
	}
}

func TestExecuteBrokenCache(t *testing.T) {
	r := NewRunner(&stubEngine{}, brokenCache{}, nil, quietLogger())
	result, err := r.Execute(context.Background(), []byte(chainDoc))
	if err != nil {
		t.Fatalf("Execute() error = %v, cache failures should be ignored", err)
	}
	if result.Response.Len() != 3 {
		t.Errorf("Response has %d entries, want 3", result.Response.Len())
	}
}

type recordingHooks struct {
	mu     sync.Mutex
	stages []string
	cache  []string
}

func (h *recordingHooks) record(list *[]string, s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*list = append(*list, s)
}

func (h *recordingHooks) OnParseComplete(context.Context, int, time.Duration, error) {
	h.record(&h.stages, "parse")
}
func (h *recordingHooks) OnBuildComplete(context.Context, int, int, time.Duration, error) {
	h.record(&h.stages, "build")
}
func (h *recordingHooks) OnLayoutStart(context.Context, string, int) {
	h.record(&h.stages, "layout-start")
}
func (h *recordingHooks) OnLayoutComplete(context.Context, string, time.Duration, error) {
	h.record(&h.stages, "layout")
}
func (h *recordingHooks) OnFlattenComplete(context.Context, int, time.Duration, error) {
	h.record(&h.stages, "flatten")
}
func (h *recordingHooks) OnCacheHit(context.Context, string)  { h.record(&h.cache, "hit") }
func (h *recordingHooks) OnCacheMiss(context.Context, string) { h.record(&h.cache, "miss") }
func (h *recordingHooks) OnCacheSet(context.Context, string, int) {
	h.record(&h.cache, "set")
}
func (h *recordingHooks) OnCacheError(_ context.Context, _, op string, _ error) {
	h.record(&h.cache, "error:"+op)
}

func TestExecuteHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	observability.SetCacheHooks(hooks)
	t.Cleanup(observability.Reset)

	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(&stubEngine{}, c, nil, quietLogger())
	for i := 0; i < 2; i++ {
		if _, err := r.Execute(context.Background(), []byte(chainDoc)); err != nil {
			t.Fatal(err)
		}
	}

	wantStages := []string{"parse", "build", "layout-start", "layout", "flatten", "parse"}
	if !slices.Equal(hooks.stages, wantStages) {
		t.Errorf("stages = %v, want %v", hooks.stages, wantStages)
	}
	wantCache := []string{"miss", "set", "hit"}
	if !slices.Equal(hooks.cache, wantCache) {
		t.Errorf("cache events = %v, want %v", hooks.cache, wantCache)
	}

	hooks.cache = nil
	r.Cache = brokenCache{}
	if _, err := r.Execute(context.Background(), []byte(chainDoc)); err != nil {
		t.Fatal(err)
	}
	if want := []string{"error:get", "error:set"}; !slices.Equal(hooks.cache, want) {
		t.Errorf("cache events = %v, want %v", hooks.cache, want)
	}
}

func TestStatsTotal(t *testing.T) {
	s := Stats{ParseTime: 1, BuildTime: 2, LayoutTime: 3, FlattenTime: 4}
	if s.Total() != 10 {
		t.Errorf("Total() = %v, want 10ns", s.Total())
	}
}
