package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storygraph/domain/graph"
	"storygraph/domain/viewport"
)

func testState() State {
	positions := map[string]graph.Position{
		"a": {X: 100, Y: 300},
		"b": {X: 300, Y: 100},
		"c": {X: 500, Y: 500},
		"d": {X: 700, Y: 200},
	}
	return State{
		Nodes: []graph.Node{
			{ID: "a", Label: "林晚", Category: "主角", Degree: 2},
			{ID: "b", Label: "沈倦", Category: "反派", Degree: 2},
			{ID: "c", Label: "陈叔", Category: "配角", Degree: 2},
			{ID: "d", Label: "路人", Category: "其他", Degree: 0},
		},
		Edges: []graph.Edge{
			{ID: "e1", Source: "a", Target: "b", Type: "宿敌", Direction: graph.DirectionBidirectional},
			{ID: "e2", Source: "a", Target: "c", Type: "叔侄", Direction: graph.DirectionDirected},
			{ID: "e3", Source: "b", Target: "c", Type: "同事", Direction: graph.DirectionBidirectional},
		},
		PositionOf: func(id string) (graph.Position, bool) {
			p, ok := positions[id]
			return p, ok
		},
		Transform: viewport.NewTransform(),
		Width:     800,
		Height:    600,
	}
}

func TestBuildFrameDepthOrder(t *testing.T) {
	frame := BuildFrame(testState())

	require.Len(t, frame.Nodes, 4)
	for i := 1; i < len(frame.Nodes); i++ {
		assert.LessOrEqual(t, frame.Nodes[i-1].Y, frame.Nodes[i].Y, "nodes sorted by ascending y")
	}
	require.Len(t, frame.Edges, 3)
	for i := 1; i < len(frame.Edges); i++ {
		midPrev := (frame.Edges[i-1].Y1 + frame.Edges[i-1].Y2) / 2
		mid := (frame.Edges[i].Y1 + frame.Edges[i].Y2) / 2
		assert.LessOrEqual(t, midPrev, mid, "edges sorted by ascending midpoint y")
	}
}

func TestEmptyStateRendersPlaceholder(t *testing.T) {
	st := testState()
	st.Nodes = nil
	st.Edges = nil

	frame := BuildFrame(st)
	assert.True(t, frame.Empty)
	assert.Equal(t, "no relations to show", frame.Message)
	assert.Empty(t, frame.Nodes)
	assert.Empty(t, frame.Edges)
}

func TestSelectionDimsUnrelated(t *testing.T) {
	st := testState()
	st.SelectedNodeID = "a"
	frame := BuildFrame(st)

	byID := map[string]NodeDraw{}
	for _, n := range frame.Nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, 1.0, byID["a"].Opacity)
	assert.Equal(t, 1.0, byID["b"].Opacity, "neighbour stays fully visible")
	assert.Equal(t, 1.0, byID["c"].Opacity)
	assert.Equal(t, 0.3, byID["d"].Opacity, "unrelated node dimmed, not hidden")
	assert.True(t, byID["a"].Selected)

	for _, e := range frame.Edges {
		if e.ID == "e3" {
			assert.Less(t, e.Opacity, 0.16, "edge not touching selection is dimmed")
			assert.Equal(t, "#8c9bb5", e.Color)
		} else {
			assert.Equal(t, "#f6bd16", e.Color, "edge touching selection is highlighted")
			assert.True(t, e.LabelVisible)
		}
	}
}

func TestSelectedNodeRadiusBoost(t *testing.T) {
	st := testState()
	plain := BuildFrame(st)
	st.SelectedNodeID = "c"
	boosted := BuildFrame(st)

	var before, after float64
	for _, n := range plain.Nodes {
		if n.ID == "c" {
			before = n.Radius
		}
	}
	for _, n := range boosted.Nodes {
		if n.ID == "c" {
			after = n.Radius
		}
	}
	assert.InDelta(t, before*1.08, after, 1e-9)
}

func TestEdgeLabelDisclosure(t *testing.T) {
	st := testState()

	// No selection: labels visible regardless of zoom.
	frame := BuildFrame(st)
	for _, e := range frame.Edges {
		assert.True(t, e.LabelVisible)
	}

	// Selection active at low zoom: only touching edges keep labels.
	st.SelectedNodeID = "b"
	frame = BuildFrame(st)
	for _, e := range frame.Edges {
		if e.ID == "e2" {
			assert.False(t, e.LabelVisible)
		} else {
			assert.True(t, e.LabelVisible)
		}
	}

	// Zoomed past the threshold: labels come back everywhere.
	st.Transform.K = 1.2
	frame = BuildFrame(st)
	for _, e := range frame.Edges {
		assert.True(t, e.LabelVisible)
	}
}

func TestArrowheadsFollowDirection(t *testing.T) {
	frame := BuildFrame(testState())
	for _, e := range frame.Edges {
		assert.True(t, e.ArrowTarget)
		if e.ID == "e2" {
			assert.False(t, e.ArrowSource, "directed edge has a single arrowhead")
		} else {
			assert.True(t, e.ArrowSource, "bidirectional edge has arrowheads at both ends")
		}
	}
}

func TestDepthScaleClamped(t *testing.T) {
	assert.InDelta(t, 0.78, DepthScale(0, 600), 1e-9)
	assert.InDelta(t, 1.10, DepthScale(600, 600), 1e-9)
	assert.Equal(t, 0.78, DepthScale(-100, 600), "above the viewport clamps to top depth")
	assert.InDelta(t, 1.10, DepthScale(1200, 600), 1e-9)
}

func TestNodePalette(t *testing.T) {
	assert.Equal(t, "#5b8ff9", NodeColor("主角"))
	assert.Equal(t, "#e8684a", NodeColor("反派"))
	assert.Equal(t, "#5ad8a6", NodeColor("配角"))
	assert.Equal(t, "#9d7bd8", NodeColor("不知道"))
}
