package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/matzehuels/viewgraph/pkg/buildinfo"
	"github.com/matzehuels/viewgraph/pkg/config"
	verrors "github.com/matzehuels/viewgraph/pkg/errors"
	"github.com/matzehuels/viewgraph/pkg/layout"
	"github.com/matzehuels/viewgraph/pkg/observability"
	"github.com/matzehuels/viewgraph/pkg/pipeline"
	"github.com/matzehuels/viewgraph/pkg/viewgraph"
)

const chainDoc = `{
	"inputs":  [{"name": "A", "arguments": [{"name": "a"}]}],
	"outputs": [{"name": "C", "arguments": [{"name": "b"}]}],
	"nodes":   [{"name": "B",
	             "inputs":  [{"name": "X", "arguments": [{"name": "a"}]}],
	             "outputs": [{"name": "Y", "arguments": [{"name": "b"}]}]}]
}`

func newTestServer(t *testing.T, modify func(*config.Config), opts ...Option) *Server {
	t.Helper()
	cfg := config.Default()
	if modify != nil {
		modify(cfg)
	}
	logger := log.NewWithOptions(io.Discard, log.Options{})
	runner := pipeline.NewRunner(layout.NewLayered(), nil, nil, logger)
	s, err := New(cfg, runner, logger, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestLayout(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodPost, "/layout", chainDoc)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	resp, err := viewgraph.UnmarshalResponse(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("response is not a layout: %v", err)
	}
	a, b, c := resp.Inputs["A"], resp.Nodes["B"], resp.Outputs["C"]
	if resp.Len() != 3 {
		t.Fatalf("response has %d entries, want 3: %s", resp.Len(), rec.Body)
	}
	if !(a.Y < b.Y && b.Y < c.Y) {
		t.Errorf("y order = %v, %v, %v, want A above B above C", a.Y, b.Y, c.Y)
	}
}

const edgeChainDoc = `{
	"inputs":  [{"name": "A"}],
	"nodes":   [{"name": "B"}],
	"outputs": [{"name": "C"}],
	"edges":   [{"from": "A", "to": "B"}, {"from": "B", "to": "C"}]
}`

func TestLayoutExplicitEdges(t *testing.T) {
	for _, name := range []string{layout.EngineDot, layout.EngineLayered} {
		t.Run(name, func(t *testing.T) {
			engine, err := layout.NewEngine(name)
			if err != nil {
				t.Fatal(err)
			}
			logger := log.NewWithOptions(io.Discard, log.Options{})
			s, err := New(config.Default(), pipeline.NewRunner(engine, nil, nil, logger), logger)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}

			rec := do(s, http.MethodPost, "/layout", edgeChainDoc)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body)
			}
			resp, err := viewgraph.UnmarshalResponse(rec.Body.Bytes())
			if err != nil {
				t.Fatalf("response is not a layout: %v", err)
			}
			a, b, c := resp.Inputs["A"], resp.Nodes["B"], resp.Outputs["C"]
			if resp.Len() != 3 {
				t.Fatalf("response has %d entries, want 3: %s", resp.Len(), rec.Body)
			}
			if !(a.Y < b.Y && b.Y < c.Y) {
				t.Errorf("y order = %v, %v, %v, want A above B above C", a.Y, b.Y, c.Y)
			}

			rec = do(s, http.MethodPost, "/layout", `{"inputs": [{"name": "A"}], "outputs": [{"name": "C"}], "nodes": []}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("unconnected output: status = %d, want 200 (body: %s)", rec.Code, rec.Body)
			}
		})
	}
}

func TestLayoutEmptyDocument(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodPost, "/layout", `{"inputs": [], "outputs": [], "nodes": []}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != `{"inputs":{},"outputs":{},"nodes":{}}` {
		t.Errorf("body = %s", got)
	}
}

func TestLayoutBadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode verrors.Code
		wantMsg  string
	}{
		{"not json", "not json", verrors.ErrCodeParseFailure, "invalid JSON"},
		{"empty body", "", verrors.ErrCodeParseFailure, "empty request body"},
		{"wrong shape", `[1, 2]`, verrors.ErrCodeMalformedInput, "JSON object"},
		{"duplicate node", `{"inputs": [], "outputs": [], "nodes": [{"name": "n"}, {"name": "n"}]}`, verrors.ErrCodeDuplicateIdentity, `duplicate node name "n"`},
		{"dangling edge", `{"inputs": [{"name": "x"}], "outputs": [], "nodes": [], "edges": [{"from": "x", "to": "nowhere"}]}`, verrors.ErrCodeUnresolvedReference, "nowhere"},
		{"cycle", `{"inputs": [], "outputs": [], "nodes": [{"name": "a"}, {"name": "b"}], "edges": [{"from": "a", "to": "b"}, {"from": "b", "to": "a"}]}`, verrors.ErrCodeLayoutFailure, "cycle"},
	}

	s := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/layout", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body: %s)", rec.Code, rec.Body)
			}
			body := rec.Body.String()
			if !strings.HasPrefix(body, "400 Bad Request. ") {
				t.Errorf("body = %q, want 400 Bad Request. prefix", body)
			}
			if !strings.Contains(body, tt.wantMsg) {
				t.Errorf("body = %q, want it to contain %q", body, tt.wantMsg)
			}
			if got := rec.Header().Get(ErrorCodeHeader); got != string(tt.wantCode) {
				t.Errorf("%s = %q, want %q", ErrorCodeHeader, got, tt.wantCode)
			}
		})
	}

	// The server keeps serving after bad requests.
	if rec := do(s, http.MethodPost, "/layout", chainDoc); rec.Code != http.StatusOK {
		t.Errorf("status after failures = %d, want 200", rec.Code)
	}
}

func TestNotFound(t *testing.T) {
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/layout"},
		{http.MethodPut, "/layout"},
		{http.MethodDelete, "/layout"},
		{http.MethodPost, "/other"},
		{http.MethodPost, "/layout/"},
		{http.MethodPost, "/"},
		{http.MethodGet, "/"},
		{http.MethodPost, "/healthz"},
	}

	s := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(s, tt.method, tt.path, chainDoc)
			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", rec.Code)
			}
			if got := rec.Body.String(); got != "404 not found." {
				t.Errorf("body = %q, want %q", got, "404 not found.")
			}
		})
	}
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.MaxBodyBytes = 16 })
	rec := do(s, http.MethodPost, "/layout", chainDoc)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "exceeds 16 bytes") {
		t.Errorf("body = %q", rec.Body)
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"client", verrors.New(verrors.ErrCodeUnresolvedReference, "no node named %q", "x"), 400, `400 Bad Request. no node named "x"`},
		{"schema violation", verrors.New(verrors.ErrCodeSchemaViolation, "vertex node-x has no position"), 500, "500 Internal Server Error. vertex node-x has no position"},
		{"internal", verrors.New(verrors.ErrCodeInternal, "boom"), 500, "500 Internal Server Error. boom"},
		{"uncoded", io.ErrUnexpectedEOF, 500, "500 Internal Server Error. unexpected EOF"},
		{"not found", verrors.New(verrors.ErrCodeNotFound, "gone"), 404, "404 not found."},
	}

	s := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.writeError(rec, httptest.NewRequest(http.MethodPost, "/layout", nil), tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Body.String(); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestPanicRecovery(t *testing.T) {
	s := newTestServer(t, nil, WithRoutes(NewRoute(http.MethodGet, "/panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))))

	rec := do(s, http.MethodGet, "/panic", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := rec.Body.String(); got != "500 Internal Server Error. kaboom" {
		t.Errorf("body = %q", got)
	}
	if rec := do(s, http.MethodPost, "/layout", chainDoc); rec.Code != http.StatusOK {
		t.Errorf("status after panic = %d, want 200", rec.Code)
	}
}

func TestUtilityRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	if rec := do(s, http.MethodGet, "/healthz", ""); rec.Code != 200 || rec.Body.String() != "ok" {
		t.Errorf("/healthz = %d %q", rec.Code, rec.Body)
	}

	rec := do(s, http.MethodGet, "/version", "")
	var info buildinfo.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("/version body %q: %v", rec.Body, err)
	}
	if info.Version != buildinfo.Version {
		t.Errorf("version = %q, want %q", info.Version, buildinfo.Version)
	}

	do(s, http.MethodPost, "/layout", chainDoc)
	rec = do(s, http.MethodGet, "/metrics", "")
	if rec.Code != 200 {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `viewgraph_http_requests_total{code="200",method="POST",route="/layout"} 1`) {
		t.Errorf("/metrics does not report the layout request:\n%s", rec.Body)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(s, http.MethodGet, "/healthz", "")
	generated := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(generated); err != nil {
		t.Errorf("generated request id %q is not a uuid", generated)
	}

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != id {
		t.Errorf("request id = %q, want echoed %q", got, id)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got == "<script>" {
		t.Error("malformed request id should be replaced")
	}
}

func TestConcurrentRequests(t *testing.T) {
	s := newTestServer(t, nil)

	const n = 16
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := chainDoc
			if i%4 == 3 {
				body = "not json"
			}
			codes[i] = do(s, http.MethodPost, "/layout", body).Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		want := http.StatusOK
		if i%4 == 3 {
			want = http.StatusBadRequest
		}
		if code != want {
			t.Errorf("request %d status = %d, want %d", i, code, want)
		}
	}
}

func TestMetricsHooks(t *testing.T) {
	s := newTestServer(t, nil)
	s.Metrics().Register()
	t.Cleanup(observability.Reset)

	do(s, http.MethodPost, "/layout", chainDoc)
	do(s, http.MethodPost, "/layout", "not json")

	m := s.Metrics()
	if got := testutil.ToFloat64(m.stageErrors.WithLabelValues("parse", "PARSE_FAILURE")); got != 1 {
		t.Errorf("parse errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.stageDuration); got == 0 {
		t.Error("stage durations were not recorded")
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}

func TestServeAndShutdown(t *testing.T) {
	s := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/layout", "application/json", strings.NewReader(chainDoc))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() returned %v after Shutdown, want nil", err)
	}
}

func TestNewRequiresRunner(t *testing.T) {
	if _, err := New(config.Default(), nil, nil); err == nil {
		t.Error("New() without runner should fail")
	}
}
