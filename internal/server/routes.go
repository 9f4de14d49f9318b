package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/matzehuels/viewgraph/pkg/buildinfo"
)

// Route defines the server response based on the method and pattern of the request.
type Route struct {
	method  string
	pattern string
	handler http.Handler
}

// NewRoute creates a route.
func NewRoute(method, pattern string, handler http.Handler) Route {
	return Route{method: method, pattern: pattern, handler: handler}
}

// LayoutRoutes defines the layout API.
func LayoutRoutes(s *Server) []Route {
	return []Route{
		{http.MethodPost, "/layout", http.HandlerFunc(s.handleLayout)},
	}
}

// UtilityRoutes defines all available utility routes.
func UtilityRoutes(s *Server) []Route {
	return []Route{
		{http.MethodGet, "/healthz", http.HandlerFunc(healthz)},
		{http.MethodGet, "/version", http.HandlerFunc(version)},
		{http.MethodGet, "/metrics", s.metrics.Handler()},
	}
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok")
}

func version(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(buildinfo.Get())
}
