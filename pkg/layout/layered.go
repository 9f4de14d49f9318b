package layout

import (
	"context"
	"slices"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
	"github.com/matzehuels/viewgraph/pkg/viewgraph"
)

// DefaultPasses is the number of barycentric sweeps used by [Layered].
const DefaultPasses = 8

// Layered is a pure Go layered (Sugiyama-style) engine:
//
//  1. Rank vertices by longest path from the sources (Kahn's algorithm)
//  2. Order each rank with alternating down/up barycentric sweeps, keeping the
//     ordering with the fewest crossings between adjacent ranks
//  3. Assign coordinates: ranks are RankSep apart, vertices NodeSep apart,
//     every rank centered on the widest one
//
// Self edges are ignored. Any other cycle is a LAYOUT_FAILURE.
type Layered struct {
	// Passes is the number of barycentric sweeps. Zero uses DefaultPasses.
	Passes int
}

// NewLayered returns a layered engine with default settings.
func NewLayered() *Layered { return &Layered{} }

// Name implements [Engine].
func (*Layered) Name() string { return EngineLayered }

// Layout implements [Engine].
func (e *Layered) Layout(ctx context.Context, g *viewgraph.ViewGraph, opts Options) error {
	if g.VertexCount() == 0 {
		return nil
	}
	if cycle := findCycle(g); cycle != nil {
		return verrors.New(verrors.ErrCodeLayoutFailure, "graph has a cycle through %s", describeKeys(cycle))
	}

	ranks := assignRanks(g)
	rows := groupRows(g, ranks)

	passes := e.Passes
	if passes <= 0 {
		passes = DefaultPasses
	}
	best := cloneRows(rows)
	bestCrossings := countCrossings(g, rows)
	for pass := 0; pass < passes && bestCrossings > 0; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		sweep(g, rows, pass%2 == 0)
		if c := countCrossings(g, rows); c < bestCrossings {
			best, bestCrossings = cloneRows(rows), c
		}
	}

	place(g, best, opts)
	return nil
}

// findCycle returns the vertices of one cycle (excluding self loops), or nil.
func findCycle(g *viewgraph.ViewGraph) []viewgraph.Key {
	const (
		white = iota
		gray
		black
	)

	color := make(map[viewgraph.Key]int, g.VertexCount())
	var stack []viewgraph.Key
	var cycle []viewgraph.Key

	var dfs func(k viewgraph.Key) bool
	dfs = func(k viewgraph.Key) bool {
		color[k] = gray
		stack = append(stack, k)
		for _, child := range g.Children(k) {
			if child == k {
				continue
			}
			switch color[child] {
			case white:
				if dfs(child) {
					return true
				}
			case gray:
				start := slices.Index(stack, child)
				cycle = slices.Clone(stack[start:])
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[k] = black
		return false
	}

	for _, v := range g.Vertices() {
		if color[v.Key] == white && dfs(v.Key) {
			return cycle
		}
	}
	return nil
}

// assignRanks places every vertex one rank below its deepest parent.
// The graph must be acyclic apart from self loops.
func assignRanks(g *viewgraph.ViewGraph) map[viewgraph.Key]int {
	vertices := g.Vertices()
	inDegree := make(map[viewgraph.Key]int, len(vertices))
	ranks := make(map[viewgraph.Key]int, len(vertices))
	queue := make([]viewgraph.Key, 0, len(vertices))

	for _, v := range vertices {
		degree := 0
		for _, p := range g.Parents(v.Key) {
			if p != v.Key {
				degree++
			}
		}
		inDegree[v.Key] = degree
		if degree == 0 {
			queue = append(queue, v.Key)
		}
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, child := range g.Children(curr) {
			if child == curr {
				continue
			}
			if rank := ranks[curr] + 1; rank > ranks[child] {
				ranks[child] = rank
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	return ranks
}

// groupRows buckets vertices by rank, keeping insertion order within a rank.
func groupRows(g *viewgraph.ViewGraph, ranks map[viewgraph.Key]int) [][]viewgraph.Key {
	maxRank := 0
	for _, r := range ranks {
		maxRank = max(maxRank, r)
	}
	rows := make([][]viewgraph.Key, maxRank+1)
	for _, v := range g.Vertices() {
		r := ranks[v.Key]
		rows[r] = append(rows[r], v.Key)
	}
	return rows
}

// sweep reorders every row by the mean position of its neighbors in the
// adjacent row: parents when sweeping down, children when sweeping up.
func sweep(g *viewgraph.ViewGraph, rows [][]viewgraph.Key, down bool) {
	reorder := func(row, adjacent []viewgraph.Key, neighbors func(viewgraph.Key) []viewgraph.Key) {
		pos := posMap(adjacent)
		own := posMap(row)
		bary := make(map[viewgraph.Key]float64, len(row))
		for _, k := range row {
			sum, n := 0.0, 0
			for _, nb := range neighbors(k) {
				if p, ok := pos[nb]; ok {
					sum += float64(p)
					n++
				}
			}
			if n == 0 {
				bary[k] = float64(own[k])
				continue
			}
			bary[k] = sum / float64(n)
		}
		slices.SortStableFunc(row, func(a, b viewgraph.Key) int {
			switch {
			case bary[a] < bary[b]:
				return -1
			case bary[a] > bary[b]:
				return 1
			}
			return 0
		})
	}

	if down {
		for r := 1; r < len(rows); r++ {
			reorder(rows[r], rows[r-1], g.Parents)
		}
		return
	}
	for r := len(rows) - 2; r >= 0; r-- {
		reorder(rows[r], rows[r+1], g.Children)
	}
}

// countCrossings sums crossings between each pair of adjacent rows. Two
// edges (u1,v1) and (u2,v2) cross when pos(u1) < pos(u2) and pos(v1) > pos(v2).
func countCrossings(g *viewgraph.ViewGraph, rows [][]viewgraph.Key) int {
	total := 0
	for r := 0; r+1 < len(rows); r++ {
		total += countLayerCrossings(g, rows[r], rows[r+1])
	}
	return total
}

func countLayerCrossings(g *viewgraph.ViewGraph, upper, lower []viewgraph.Key) int {
	if len(upper) == 0 || len(lower) == 0 {
		return 0
	}
	lowerPos := posMap(lower)

	type edge struct{ upper, lower int }
	var edges []edge
	for i, k := range upper {
		for _, child := range g.Children(k) {
			if pos, ok := lowerPos[child]; ok {
				edges = append(edges, edge{i, pos})
			}
		}
	}
	if len(edges) < 2 {
		return 0
	}

	slices.SortFunc(edges, func(a, b edge) int {
		if a.upper != b.upper {
			return a.upper - b.upper
		}
		return a.lower - b.lower
	})

	// Count inversions of lower positions with a Fenwick tree.
	fenwick := make([]int, len(lower)+1)
	crossings, seen := 0, 0
	for _, e := range edges {
		lessOrEqual := 0
		for q := e.lower + 1; q > 0; q -= q & (-q) {
			lessOrEqual += fenwick[q]
		}
		crossings += seen - lessOrEqual

		seen++
		for idx := e.lower + 1; idx < len(fenwick); idx += idx & (-idx) {
			fenwick[idx]++
		}
	}
	return crossings
}

// place converts row orderings into center coordinates.
func place(g *viewgraph.ViewGraph, rows [][]viewgraph.Key, opts Options) {
	rowWidth := func(row []viewgraph.Key) float64 {
		w := 0.0
		for i, k := range row {
			v, _ := g.Vertex(k)
			if i > 0 {
				w += opts.NodeSep
			}
			w += v.Width
		}
		return w
	}
	rowHeight := func(row []viewgraph.Key) float64 {
		h := 0.0
		for _, k := range row {
			v, _ := g.Vertex(k)
			h = max(h, v.Height)
		}
		return h
	}

	widest := 0.0
	for _, row := range rows {
		widest = max(widest, rowWidth(row))
	}

	top := 0.0
	for _, row := range rows {
		h := rowHeight(row)
		x := (widest - rowWidth(row)) / 2
		for _, k := range row {
			v, _ := g.Vertex(k)
			v.SetPosition(x+v.Width/2, top+h/2)
			x += v.Width + opts.NodeSep
		}
		top += h + opts.RankSep
	}
}

func posMap(row []viewgraph.Key) map[viewgraph.Key]int {
	m := make(map[viewgraph.Key]int, len(row))
	for i, k := range row {
		m[k] = i
	}
	return m
}

func cloneRows(rows [][]viewgraph.Key) [][]viewgraph.Key {
	out := make([][]viewgraph.Key, len(rows))
	for i, row := range rows {
		out[i] = slices.Clone(row)
	}
	return out
}
