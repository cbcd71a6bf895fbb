// Package layout arranges a workflow graph into columns by longest-path depth.
//
// The layout is a reduced layered drawing: back edges are ignored so loops do not push nodes
// rightwards forever, each node lands in the column equal to its depth, and columns are stacked
// top to bottom by node id. There is no crossing minimisation.
package layout

import (
	"sort"

	"github.com/kchakrav/CRMApp-sub002/pkg/graph"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
)

// Options controls the spacing of the grid.
type Options struct {
	MarginLeft float64
	MarginTop  float64
	ColumnGap  float64
	RowGap     float64
	// MinWidth and MinHeight are used for nodes without a rendered size and as the floor of a
	// column's width.
	MinWidth  float64
	MinHeight float64
}

// DefaultOptions returns the spacing used by the canvas.
func DefaultOptions() Options {
	return Options{
		MarginLeft: 50,
		MarginTop:  50,
		ColumnGap:  80,
		RowGap:     40,
		MinWidth:   graph.DefaultNodeWidth,
		MinHeight:  graph.DefaultNodeHeight,
	}
}

// Result is a computed layout. Nothing is written to the graph until Apply.
type Result struct {
	Positions map[string]models.Position `json:"positions"`
	Columns   [][]string                 `json:"columns"`
	Depth     map[string]int             `json:"depth"`
}

// Compute returns the layered layout of the graph's current state.
func Compute(g *graph.Graph, opts Options) Result {
	adj := g.Adjacency()
	depth := Depths(adj)

	columns := groupColumns(adj.Nodes, depth)
	positions := make(map[string]models.Position, len(adj.Nodes))

	x := opts.MarginLeft

	for _, column := range columns {
		width := opts.MinWidth
		y := opts.MarginTop

		for _, id := range column {
			size := sizeOf(g, id, opts)
			if size.Width > width {
				width = size.Width
			}

			positions[id] = models.Position{X: x, Y: y}
			y += size.Height + opts.RowGap
		}

		x += width + opts.ColumnGap
	}

	return Result{
		Positions: positions,
		Columns:   columns,
		Depth:     depth,
	}
}

// Apply computes the layout and moves every node to its assigned position.
func Apply(g *graph.Graph, opts Options) (Result, error) {
	result := Compute(g, opts)

	for _, column := range result.Columns {
		for _, id := range column {
			if err := g.MoveNode(id, result.Positions[id]); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

// Depths returns the longest-path distance, in edges, of every node from a source. Edges closing a
// cycle are discarded first; the depth-first search starts at the entry nodes so the entry side of a
// loop keeps the lower depth.
func Depths(adj *graph.Adjacency) map[string]int {
	back := adj.BackEdges(adj.Entries)

	depth := make(map[string]int, len(adj.Nodes))
	indegree := make(map[string]int, len(adj.Nodes))

	for _, id := range adj.Nodes {
		depth[id] = 0
	}

	adj.Edges(func(from, to string) {
		if !back[[2]string{from, to}] {
			indegree[to]++
		}
	})

	queue := make([]string, 0, len(adj.Nodes))

	for _, id := range adj.Nodes {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range adj.Successors(current) {
			if back[[2]string{current, next}] {
				continue
			}

			if depth[current]+1 > depth[next] {
				depth[next] = depth[current] + 1
			}

			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return depth
}

func groupColumns(nodes []string, depth map[string]int) [][]string {
	maxDepth := -1
	for _, id := range nodes {
		if depth[id] > maxDepth {
			maxDepth = depth[id]
		}
	}

	columns := make([][]string, maxDepth+1)
	for _, id := range nodes {
		columns[depth[id]] = append(columns[depth[id]], id)
	}

	for i := range columns {
		sort.Strings(columns[i])
	}

	return columns
}

func sizeOf(g *graph.Graph, id string, opts Options) models.Size {
	size, ok := g.RenderedSize(id)
	if !ok {
		return models.Size{Width: opts.MinWidth, Height: opts.MinHeight}
	}

	return size
}
