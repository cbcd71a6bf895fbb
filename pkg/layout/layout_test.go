package layout_test

import (
	"testing"

	"github.com/kchakrav/CRMApp-sub002/pkg/graph"
	"github.com/kchakrav/CRMApp-sub002/pkg/layout"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(nodes []*models.Node, connections ...*models.Connection) *graph.Graph {
	return graph.FromDocument(testutil.Document(nodes, connections...))
}

func TestCompute_Chain(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Email("a"), testutil.Email("b")),
		testutil.Connect("e1", "a"),
		testutil.Connect("a", "b"),
	)

	result := layout.Compute(g, layout.DefaultOptions())

	assert.Equal(t, [][]string{{"e1"}, {"a"}, {"b"}}, result.Columns)
	assert.Equal(t, models.Position{X: 50, Y: 50}, result.Positions["e1"])
	assert.Equal(t, models.Position{X: 330, Y: 50}, result.Positions["a"])
	assert.Equal(t, models.Position{X: 610, Y: 50}, result.Positions["b"])
}

func TestCompute_LongestPathWins(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Email("a"), testutil.Email("b")),
		testutil.Connect("e1", "b"),
		testutil.Connect("e1", "a"),
		testutil.Connect("a", "b"),
	)

	result := layout.Compute(g, layout.DefaultOptions())

	assert.Equal(t, map[string]int{"e1": 0, "a": 1, "b": 2}, result.Depth)
}

func TestCompute_ColumnStackedById(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Email("z"), testutil.Email("m")),
		testutil.Connect("e1", "z"),
		testutil.Connect("e1", "m"),
	)

	result := layout.Compute(g, layout.DefaultOptions())

	assert.Equal(t, [][]string{{"e1"}, {"m", "z"}}, result.Columns)
	assert.Equal(t, models.Position{X: 330, Y: 50}, result.Positions["m"])
	assert.Equal(t, models.Position{X: 330, Y: 170}, result.Positions["z"])
}

func TestCompute_RenderedSizes(t *testing.T) {
	g := load(
		testutil.Nodes(testutil.Entry("e1"), testutil.Email("a"), testutil.Email("b"), testutil.Email("c")),
		testutil.Connect("e1", "a"),
		testutil.Connect("e1", "b"),
		testutil.Connect("a", "c"),
	)
	g.SetRenderedSize("a", models.Size{Width: 300, Height: 100})

	result := layout.Compute(g, layout.DefaultOptions())

	assert.Equal(t, models.Position{X: 330, Y: 50}, result.Positions["a"])
	assert.Equal(t, models.Position{X: 330, Y: 190}, result.Positions["b"])
	assert.Equal(t, models.Position{X: 710, Y: 50}, result.Positions["c"])
}

func TestCompute_Loops(t *testing.T) {
	tests := []struct {
		name        string
		nodes       []*models.Node
		connections []*models.Connection
		expect      map[string]int
	}{
		{
			name:  "explicit back edge",
			nodes: testutil.Nodes(testutil.Entry("e1"), testutil.Email("a"), testutil.Email("b")),
			connections: []*models.Connection{
				testutil.Connect("e1", "a"),
				testutil.Connect("a", "b"),
				testutil.Connect("b", "a"),
			},
			expect: map[string]int{"e1": 0, "a": 1, "b": 2},
		},
		{
			name:  "jump back to start of loop",
			nodes: testutil.Nodes(testutil.Entry("e1"), testutil.Email("a"), testutil.Jump("j", "a")),
			connections: []*models.Connection{
				testutil.Connect("e1", "a"),
				testutil.Connect("a", "j"),
			},
			expect: map[string]int{"e1": 0, "a": 1, "j": 2},
		},
		{
			name:  "cycle without entry",
			nodes: testutil.Nodes(testutil.Email("a"), testutil.Email("b")),
			connections: []*models.Connection{
				testutil.Connect("a", "b"),
				testutil.Connect("b", "a"),
			},
			expect: map[string]int{"a": 0, "b": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := layout.Compute(load(tt.nodes, tt.connections...), layout.DefaultOptions())

			assert.Equal(t, tt.expect, result.Depth)
		})
	}
}

func TestCompute_ColumnsMatchDepthWithoutOverlap(t *testing.T) {
	g := load(
		testutil.Nodes(
			testutil.Entry("e1"),
			testutil.Entry("e2"),
			testutil.Email("a"),
			testutil.Email("b"),
			testutil.Email("c"),
			testutil.Email("orphan"),
			testutil.Jump("j", "a"),
		),
		testutil.Connect("e1", "a"),
		testutil.Connect("e2", "b"),
		testutil.Connect("a", "c"),
		testutil.Connect("b", "c"),
		testutil.Connect("c", "j"),
		testutil.Connect("b", "ghost"),
	)
	opts := layout.DefaultOptions()

	result := layout.Compute(g, opts)

	require.Len(t, result.Positions, 7)

	for col, ids := range result.Columns {
		for i, id := range ids {
			assert.Equal(t, col, result.Depth[id], id)

			if i > 0 {
				above := result.Positions[ids[i-1]]
				assert.GreaterOrEqual(t, result.Positions[id].Y, above.Y+opts.MinHeight+opts.RowGap)
				assert.Equal(t, above.X, result.Positions[id].X)
			}
		}
	}

	assert.Equal(t, 0, result.Depth["orphan"])
}

func TestCompute_Empty(t *testing.T) {
	result := layout.Compute(graph.New(), layout.DefaultOptions())

	assert.Empty(t, result.Columns)
	assert.Empty(t, result.Positions)
}

func TestApply_MovesNodes(t *testing.T) {
	g := load(
		testutil.Nodes(
			testutil.Entry("e1", testutil.WithPosition(900, 900)),
			testutil.Email("a", testutil.WithPosition(10, 10)),
		),
		testutil.Connect("e1", "a"),
	)

	result, err := layout.Apply(g, layout.DefaultOptions())
	require.NoError(t, err)

	for _, n := range g.Nodes() {
		assert.Equal(t, result.Positions[n.ID], n.Position)
	}

	moved, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, models.Position{X: 330, Y: 50}, moved.Position)
}
