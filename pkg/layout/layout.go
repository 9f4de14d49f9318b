package layout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
	"github.com/matzehuels/viewgraph/pkg/viewgraph"
)

// Default separations, in layout units.
const (
	DefaultNodeSep = 20.0
	DefaultRankSep = 20.0
)

// Engine names accepted by [NewEngine].
const (
	EngineDot     = "dot"
	EngineLayered = "layered"
)

// Engines lists the available engine names.
var Engines = []string{EngineDot, EngineLayered}

// Options controls spacing. It is a value type: engines receive a copy and
// the graph never stores it.
type Options struct {
	// NodeSep is the minimum gap between vertices on the same rank.
	NodeSep float64
	// RankSep is the gap between adjacent ranks.
	RankSep float64
}

// DefaultOptions returns the separations used by the server.
func DefaultOptions() Options {
	return Options{NodeSep: DefaultNodeSep, RankSep: DefaultRankSep}
}

// Validate reports whether both separations are finite and non-negative.
func (o Options) Validate() error {
	check := func(name string, v float64) error {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return verrors.New(verrors.ErrCodeInvalidConfig, "%s must be a non-negative number, got %v", name, v)
		}
		return nil
	}
	if err := check("nodesep", o.NodeSep); err != nil {
		return err
	}
	return check("ranksep", o.RankSep)
}

// Engine positions every vertex of a view graph.
//
// Implementations set each vertex's center with [viewgraph.Vertex.SetPosition]
// using a y axis that grows downward, so sources appear above their
// descendants. They must not retain the graph after returning.
type Engine interface {
	Name() string
	Layout(ctx context.Context, g *viewgraph.ViewGraph, opts Options) error
}

// NewEngine returns the engine registered under name.
func NewEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EngineDot, "":
		return NewGraphviz(), nil
	case EngineLayered:
		return NewLayered(), nil
	}
	return nil, verrors.New(verrors.ErrCodeInvalidConfig,
		"unknown layout engine %q (available: %s)", name, strings.Join(Engines, ", "))
}

// Invoke runs engine on g and checks that every vertex was placed.
//
// Engine errors and panics are reported as LAYOUT_FAILURE; context
// cancellation is returned unchanged. Invoke never leaves the process in a
// failed state: a panicking engine only fails the current call.
func Invoke(ctx context.Context, engine Engine, g *viewgraph.ViewGraph, opts Options) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = verrors.New(verrors.ErrCodeLayoutFailure, "%s engine panicked: %v", engine.Name(), r)
		}
	}()

	if err := engine.Layout(ctx, g, opts); err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case verrors.Is(err, verrors.ErrCodeLayoutFailure):
			return err
		}
		return verrors.Wrap(verrors.ErrCodeLayoutFailure, err, "%s layout", engine.Name())
	}

	if unplaced := g.Unplaced(); len(unplaced) > 0 {
		return verrors.New(verrors.ErrCodeLayoutFailure,
			"%s engine left %s unplaced", engine.Name(), describeKeys(unplaced))
	}
	return nil
}

func describeKeys(keys []viewgraph.Key) string {
	const limit = 3
	parts := make([]string, 0, limit)
	for i, k := range keys {
		if i == limit {
			break
		}
		parts = append(parts, k.String())
	}
	s := strings.Join(parts, ", ")
	if len(keys) > limit {
		s += fmt.Sprintf(" and %d more", len(keys)-limit)
	}
	return s
}
