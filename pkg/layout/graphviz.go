package layout

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
	"github.com/matzehuels/viewgraph/pkg/viewgraph"
)

// pointsPerInch converts between graphviz inches and layout units.
const pointsPerInch = 72.0

// formatPlain is graphviz's line-oriented output with node centers.
const formatPlain graphviz.Format = "plain"

// Graphviz lays out graphs with the dot algorithm of the embedded graphviz
// runtime. Each call creates and closes its own runtime, so a Graphviz value
// is safe for concurrent use.
type Graphviz struct{}

// NewGraphviz returns the dot engine.
func NewGraphviz() *Graphviz { return &Graphviz{} }

// Name implements [Engine].
func (*Graphviz) Name() string { return EngineDot }

// Layout implements [Engine].
func (e *Graphviz) Layout(ctx context.Context, g *viewgraph.ViewGraph, opts Options) error {
	if g.VertexCount() == 0 {
		return nil
	}

	out, err := renderPlain(ctx, ToDOT(g, opts))
	if err != nil {
		return err
	}
	pl, err := parsePlain(out)
	if err != nil {
		return err
	}

	for i, v := range g.Vertices() {
		p, ok := pl.nodes[vertexID(i)]
		if !ok {
			continue
		}
		// plain output has its origin at the bottom left.
		v.SetPosition(p.x*pointsPerInch, (pl.height-p.y)*pointsPerInch)
	}
	return nil
}

// ToDOT converts a view graph to the DOT text handed to graphviz.
//
// Vertices are emitted under synthetic ids (v0, v1, ...) in insertion order,
// so caller-supplied names never need DOT escaping. When the graph is
// clustered, each group path becomes a cluster subgraph nested inside the
// clusters of its prefixes ("enc/layer0" inside "enc").
func ToDOT(g *viewgraph.ViewGraph, opts Options) string {
	vertices := g.Vertices()
	ids := make(map[viewgraph.Key]string, len(vertices))
	for i, v := range vertices {
		ids[v.Key] = vertexID(i)
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	fmt.Fprintf(&buf, "  nodesep=%s;\n", inches(opts.NodeSep))
	fmt.Fprintf(&buf, "  ranksep=%s;\n", inches(opts.RankSep))
	buf.WriteString("  node [shape=box, fixedsize=true, label=\"\", margin=0];\n")
	buf.WriteString("\n")

	for _, v := range vertices {
		fmt.Fprintf(&buf, "  %s [width=%s, height=%s];\n", ids[v.Key], inches(v.Width), inches(v.Height))
	}

	if g.Clustered() {
		if clusters := buildClusters(vertices, ids); len(clusters) > 0 {
			buf.WriteString("\n")
			next := 0
			writeClusters(&buf, clusters, 1, &next)
		}
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %s -> %s;\n", ids[e.From], ids[e.To])
	}

	buf.WriteString("}\n")
	return buf.String()
}

// clusterTree is one group path segment and the vertices placed directly in
// it.
type clusterTree struct {
	members  []string
	children []*clusterTree
}

// buildClusters arranges vertex groups into a forest by "/" prefix, in
// first-seen order. A vertex joins the cluster of its full group path.
func buildClusters(vertices []*viewgraph.Vertex, ids map[viewgraph.Key]string) []*clusterTree {
	root := &clusterTree{}
	index := make(map[string]*clusterTree)
	for _, v := range vertices {
		if v.Group == "" {
			continue
		}
		parent := root
		segments := strings.Split(v.Group, "/")
		for i := range segments {
			path := strings.Join(segments[:i+1], "/")
			c, ok := index[path]
			if !ok {
				c = &clusterTree{}
				index[path] = c
				parent.children = append(parent.children, c)
			}
			parent = c
		}
		parent.members = append(parent.members, ids[v.Key])
	}
	return root.children
}

func writeClusters(buf *bytes.Buffer, clusters []*clusterTree, depth int, next *int) {
	indent := strings.Repeat("  ", depth)
	for _, c := range clusters {
		id := *next
		*next++
		if len(c.children) == 0 {
			fmt.Fprintf(buf, "%ssubgraph cluster_%d { label=\"\"; %s; }\n", indent, id, strings.Join(c.members, "; "))
			continue
		}
		fmt.Fprintf(buf, "%ssubgraph cluster_%d {\n%s  label=\"\";\n", indent, id, indent)
		if len(c.members) > 0 {
			fmt.Fprintf(buf, "%s  %s;\n", indent, strings.Join(c.members, "; "))
		}
		writeClusters(buf, c.children, depth+1, next)
		fmt.Fprintf(buf, "%s}\n", indent)
	}
}

func vertexID(i int) string { return "v" + strconv.Itoa(i) }

func inches(units float64) string {
	return strconv.FormatFloat(units/pointsPerInch, 'f', 6, 64)
}

func renderPlain(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, formatPlain, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

type plainPoint struct{ x, y float64 }

type plainLayout struct {
	width, height float64
	nodes         map[string]plainPoint
}

// parsePlain reads the graph and node statements of graphviz's plain
// format:
//
//	graph scale width height
//	node name x y width height label style shape color fillcolor
//	edge tail head n x1 y1 ... xn yn [label xl yl] style color
//	stop
func parsePlain(data []byte) (plainLayout, error) {
	pl := plainLayout{nodes: make(map[string]plainPoint)}
	sawGraph := false

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "graph":
			if len(fields) < 4 {
				return plainLayout{}, plainError(line, "short graph statement")
			}
			w, errW := strconv.ParseFloat(fields[2], 64)
			h, errH := strconv.ParseFloat(fields[3], 64)
			if errW != nil || errH != nil {
				return plainLayout{}, plainError(line, "bad graph size")
			}
			pl.width, pl.height = w, h
			sawGraph = true
		case "node":
			if len(fields) < 4 {
				return plainLayout{}, plainError(line, "short node statement")
			}
			x, errX := strconv.ParseFloat(fields[2], 64)
			y, errY := strconv.ParseFloat(fields[3], 64)
			if errX != nil || errY != nil {
				return plainLayout{}, plainError(line, "bad node position")
			}
			pl.nodes[strings.Trim(fields[1], `"`)] = plainPoint{x: x, y: y}
		case "stop":
			return pl, nil
		}
	}
	if err := sc.Err(); err != nil {
		return plainLayout{}, verrors.Wrap(verrors.ErrCodeLayoutFailure, err, "read graphviz output")
	}
	if !sawGraph {
		return plainLayout{}, verrors.New(verrors.ErrCodeLayoutFailure, "graphviz output has no graph statement")
	}
	return pl, nil
}

func plainError(line int, msg string) error {
	return verrors.New(verrors.ErrCodeLayoutFailure, "graphviz output line %d: %s", line, msg)
}
