package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storygraph/domain/graph"
	"storygraph/domain/render"
	"storygraph/pkg/observability"
)

type stubSource struct {
	g     *graph.RelationGraph
	err   error
	calls int
}

func (s *stubSource) FetchRelationGraph(ctx context.Context, projectID, viewMode, chapterID string) (*graph.RelationGraph, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	// Copy so Normalize on one fetch does not leak into the next.
	g := *s.g
	g.Nodes = append([]graph.Node(nil), s.g.Nodes...)
	g.Edges = append([]graph.Edge(nil), s.g.Edges...)
	return &g, nil
}

func testRelationGraph() *graph.RelationGraph {
	return &graph.RelationGraph{
		ProjectID: "p1",
		Nodes: []graph.Node{
			{ID: "a", Label: "Aria", Category: "主角", Degree: 2},
			{ID: "b", Label: "Bram", Category: "配角", Degree: 1},
			{ID: "c", Label: "Cole", Category: "反派", Degree: 1},
		},
		Edges: []graph.Edge{
			{ID: "e1", Source: "a", Target: "b", Type: "朋友", Direction: graph.DirectionBidirectional},
			{ID: "e2", Source: "a", Target: "c", Type: "敌人", Direction: graph.DirectionBidirectional},
		},
	}
}

func newTestSession(t *testing.T, src *stubSource) *Session {
	t.Helper()
	s := NewSession("s1", Config{ProjectID: "p1", Width: 800, Height: 600},
		src, zap.NewNop(), observability.NewCollector("test"))
	s.reload(context.Background(), graph.ViewModeGlobal, "")
	return s
}

func (s *Session) event(t *testing.T, ev InputEvent) {
	t.Helper()
	s.handle(context.Background(), ev)
}

// nodeScreen returns a node's current screen position. The tests use an
// identity transform, so screen and graph space coincide.
func nodeScreen(t *testing.T, s *Session, id string) (float64, float64) {
	t.Helper()
	pos, ok := s.positionOf(id)
	require.True(t, ok)
	screen := s.transform.ToScreen(pos)
	return screen.X, screen.Y
}

func TestEmptyGraphRendersPlaceholderWithoutSimulation(t *testing.T) {
	src := &stubSource{g: &graph.RelationGraph{ProjectID: "p1"}}
	s := newTestSession(t, src)

	assert.Nil(t, s.sim)
	s.publish()
	u := <-s.updates
	assert.True(t, u.Frame.Empty)
	assert.Equal(t, "no relations to show", u.Frame.Message)
	assert.Empty(t, u.Error)
}

func TestFetchFailureClearsGraphAndSurfacesError(t *testing.T) {
	src := &stubSource{err: errors.New("connection refused")}
	s := newTestSession(t, src)

	assert.Nil(t, s.sim)
	s.publish()
	u := <-s.updates
	assert.True(t, u.Frame.Empty)
	assert.Equal(t, "failed to load relation graph", u.Error)

	// A later successful reload recovers.
	src.err = nil
	src.g = testRelationGraph()
	s.event(t, InputEvent{Type: EventReload})
	assert.NotNil(t, s.sim)
	s.publish()
	u = <-s.updates
	assert.Empty(t, u.Error)
	assert.False(t, u.Frame.Empty)
}

func TestDragBelowThresholdSelectsWithoutPinning(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})
	px, py := nodeScreen(t, s, "a")

	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: px, Y: py})
	s.event(t, InputEvent{Type: EventPointerMove, PointerID: 1, X: px + 2, Y: py})
	s.event(t, InputEvent{Type: EventPointerUp, PointerID: 1, X: px + 2, Y: py})

	assert.False(t, s.pins.Pinned("a"))
	assert.False(t, s.sim.Fixed("a"))
	assert.Equal(t, "a", s.selectedNode)
}

func TestDragBeyondThresholdPinsWithoutSelecting(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})
	px, py := nodeScreen(t, s, "a")

	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: px, Y: py})
	s.event(t, InputEvent{Type: EventPointerMove, PointerID: 1, X: 120, Y: 80})
	s.event(t, InputEvent{Type: EventPointerUp, PointerID: 1, X: 120, Y: 80})

	require.True(t, s.pins.Pinned("a"))
	pos, _ := s.pins.Get("a")
	assert.InDelta(t, 120.0, pos.X, 1e-9)
	assert.InDelta(t, 80.0, pos.Y, 1e-9)
	assert.Empty(t, s.selectedNode, "a completed drag must not change selection")
}

func TestSubThresholdReleaseOnAlreadyPinnedNodeKeepsPin(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})
	px, py := nodeScreen(t, s, "a")

	// First gesture pins the node.
	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: px, Y: py})
	s.event(t, InputEvent{Type: EventPointerMove, PointerID: 1, X: 120, Y: 80})
	s.event(t, InputEvent{Type: EventPointerUp, PointerID: 1, X: 120, Y: 80})
	require.True(t, s.pins.Pinned("a"))

	// A tiny second press on the pinned node re-commits the pin rather
	// than turning into a selection click.
	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: 120, Y: 80})
	s.event(t, InputEvent{Type: EventPointerUp, PointerID: 1, X: 121, Y: 80})

	assert.True(t, s.pins.Pinned("a"))
	assert.Empty(t, s.selectedNode)
}

func TestPinSurvivesFilterRebuild(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})
	px, py := nodeScreen(t, s, "a")

	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: px, Y: py})
	s.event(t, InputEvent{Type: EventPointerMove, PointerID: 1, X: 120, Y: 80})
	s.event(t, InputEvent{Type: EventPointerUp, PointerID: 1, X: 120, Y: 80})

	s.event(t, InputEvent{Type: EventSearch, Query: "ar"}) // keeps Aria
	require.NotNil(t, s.sim)

	pos, ok := s.sim.Position("a")
	require.True(t, ok)
	assert.InDelta(t, 120.0, pos.X, 1e-9)
	assert.InDelta(t, 80.0, pos.Y, 1e-9)

	for i := 0; i < 50; i++ {
		s.sim.Tick()
	}
	pos, _ = s.sim.Position("a")
	assert.InDelta(t, 120.0, pos.X, 1e-9)
	assert.InDelta(t, 80.0, pos.Y, 1e-9)
}

func TestDoubleClickReleasesPin(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})
	px, py := nodeScreen(t, s, "a")

	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: px, Y: py})
	s.event(t, InputEvent{Type: EventPointerMove, PointerID: 1, X: 120, Y: 80})
	s.event(t, InputEvent{Type: EventPointerUp, PointerID: 1, X: 120, Y: 80})
	require.True(t, s.pins.Pinned("a"))

	s.event(t, InputEvent{Type: EventDoubleClick, X: 120, Y: 80})

	assert.False(t, s.pins.Pinned("a"))
	assert.False(t, s.sim.Fixed("a"))
	assert.InDelta(t, 0.55, s.sim.Alpha(), 1e-9)
}

func TestCaptureLossExitsDragAndCommitsLikePointerUp(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})
	px, py := nodeScreen(t, s, "a")

	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: px, Y: py})
	s.event(t, InputEvent{Type: EventPointerMove, PointerID: 1, X: 150, Y: 90})
	s.event(t, InputEvent{Type: EventPointerCancel, PointerID: 1})

	_, dragging := s.gestures.Dragging()
	assert.False(t, dragging)
	assert.True(t, s.pins.Pinned("a"))
}

func TestSelectThenReloadResetsStaleSelection(t *testing.T) {
	src := &stubSource{g: testRelationGraph()}
	s := newTestSession(t, src)

	s.event(t, InputEvent{Type: EventSelectNode, NodeID: "a"})
	require.Equal(t, "a", s.selectedNode)

	src.g = &graph.RelationGraph{
		ProjectID: "p1",
		Nodes:     []graph.Node{{ID: "b", Label: "Bram", Category: "配角"}},
	}
	s.event(t, InputEvent{Type: EventReload})

	assert.Empty(t, s.selectedNode)
}

func TestReloadInvalidatesActiveDrag(t *testing.T) {
	src := &stubSource{g: testRelationGraph()}
	s := newTestSession(t, src)
	px, py := nodeScreen(t, s, "a")

	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: px, Y: py})
	_, dragging := s.gestures.Dragging()
	require.True(t, dragging)

	s.event(t, InputEvent{Type: EventReload})

	_, dragging = s.gestures.Dragging()
	assert.False(t, dragging)
	assert.False(t, s.pins.Pinned("a"))
}

func TestBackgroundClickClearsSelection(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})
	s.event(t, InputEvent{Type: EventSelectNode, NodeID: "a"})
	s.event(t, InputEvent{Type: EventSelectEdge, EdgeID: "e1"})

	// Far corner, outside every node's hit target.
	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: 1, Y: 1})
	s.event(t, InputEvent{Type: EventPointerUp, PointerID: 1, X: 1, Y: 1})

	assert.Empty(t, s.selectedNode)
	assert.Empty(t, s.selectedEdge)
}

func TestPanMovesViewportAndKeepsSelection(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})
	s.event(t, InputEvent{Type: EventSelectNode, NodeID: "a"})

	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: 1, Y: 1})
	s.event(t, InputEvent{Type: EventPointerMove, PointerID: 1, X: 41, Y: 31})
	s.event(t, InputEvent{Type: EventPointerUp, PointerID: 1, X: 41, Y: 31})

	assert.InDelta(t, 40.0, s.transform.X, 1e-9)
	assert.InDelta(t, 30.0, s.transform.Y, 1e-9)
	assert.Equal(t, "a", s.selectedNode)
}

func TestSecondPointerPansWhileDragging(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})
	px, py := nodeScreen(t, s, "a")
	bx, by := nodeScreen(t, s, "b")

	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: px, Y: py})
	// Second pointer, even over a node, cannot start a second drag.
	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 2, X: bx, Y: by})
	s.event(t, InputEvent{Type: EventPointerMove, PointerID: 2, X: bx + 10, Y: by})

	id, dragging := s.gestures.Dragging()
	require.True(t, dragging)
	assert.Equal(t, "a", id)
	assert.InDelta(t, 10.0, s.transform.X, 1e-9)
}

func TestWheelZoomAndResetView(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})

	s.event(t, InputEvent{Type: EventWheel, DeltaY: -1, X: 400, Y: 300})
	assert.InDelta(t, 1.12, s.transform.K, 1e-9)

	s.event(t, InputEvent{Type: EventResetView})
	assert.InDelta(t, 1.0, s.transform.K, 1e-9)
	assert.Zero(t, s.transform.X)
	assert.Zero(t, s.transform.Y)
}

func TestWheelZeroDeltaLeavesViewportAlone(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})

	// Trackpads send a zero delta when momentum ends; it is not a zoom.
	s.event(t, InputEvent{Type: EventWheel, DeltaY: 0, X: 400, Y: 300})

	assert.InDelta(t, 1.0, s.transform.K, 1e-9)
	assert.Zero(t, s.transform.X)
	assert.Zero(t, s.transform.Y)
}

func TestHitNodeUsesDepthScaledRadius(t *testing.T) {
	src := &stubSource{g: &graph.RelationGraph{
		ProjectID: "p1",
		Nodes:     []graph.Node{{ID: "a", Label: "Aria", Category: "主角"}},
	}}
	s := newTestSession(t, src)
	px, py := nodeScreen(t, s, "a")

	// Pin near the bottom edge, where depth scaling grows the drawn
	// radius beyond the base radius.
	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: px, Y: py})
	s.event(t, InputEvent{Type: EventPointerMove, PointerID: 1, X: 400, Y: 560})
	s.event(t, InputEvent{Type: EventPointerUp, PointerID: 1, X: 400, Y: 560})

	n, ok := s.visibleNode("a")
	require.True(t, ok)
	base := n.BaseRadius()
	scaled := base * render.DepthScale(560, s.height)
	require.Greater(t, scaled, base)

	// A point between the base and drawn radii only hits when the hit
	// test sizes nodes the way the renderer draws them.
	id, hit := s.HitNode(400+(base+scaled)/2, 560)
	require.True(t, hit)
	assert.Equal(t, "a", id)
	_, hit = s.HitNode(400+scaled+1, 560)
	assert.False(t, hit)

	// Near the top the drawn radius shrinks below the base radius, so
	// the same in-between point becomes a miss.
	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: 400, Y: 560})
	s.event(t, InputEvent{Type: EventPointerMove, PointerID: 1, X: 400, Y: 40})
	s.event(t, InputEvent{Type: EventPointerUp, PointerID: 1, X: 400, Y: 40})

	scaled = base * render.DepthScale(40, s.height)
	require.Less(t, scaled, base)
	_, hit = s.HitNode(400+(base+scaled)/2, 40)
	assert.False(t, hit)
}

func TestReleaseAllClearsPinsAndReheats(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})
	px, py := nodeScreen(t, s, "a")

	s.event(t, InputEvent{Type: EventPointerDown, PointerID: 1, X: px, Y: py})
	s.event(t, InputEvent{Type: EventPointerMove, PointerID: 1, X: 120, Y: 80})
	s.event(t, InputEvent{Type: EventPointerUp, PointerID: 1, X: 120, Y: 80})
	require.Equal(t, 1, s.pins.Len())

	s.event(t, InputEvent{Type: EventReleaseAll})

	assert.Zero(t, s.pins.Len())
	assert.False(t, s.sim.Fixed("a"))
	assert.InDelta(t, 0.9, s.sim.Alpha(), 1e-9)
}

func TestResizeRecentersWithoutReseeding(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})
	before, ok := s.sim.Position("a")
	require.True(t, ok)

	s.event(t, InputEvent{Type: EventResize, Width: 1000, Height: 800})

	after, _ := s.sim.Position("a")
	assert.InDelta(t, before.X+100, after.X, 1e-9)
	assert.InDelta(t, before.Y+100, after.Y, 1e-9)
}

func TestSpreadChangeTriggersFullReseed(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})
	old := s.sim

	s.event(t, InputEvent{Type: EventSetSpread, Spread: 2.0})

	assert.NotSame(t, old, s.sim)
	assert.InDelta(t, 2.0, s.spread, 1e-9)
}

func TestSelectionDetailCarriesRelatedEdgesAndEvidence(t *testing.T) {
	g := testRelationGraph()
	g.Edges[0].Evidence = []graph.Evidence{{ChapterNum: 1, Snippet: "两人初次相遇"}}
	s := newTestSession(t, &stubSource{g: g})

	s.event(t, InputEvent{Type: EventSelectNode, NodeID: "a"})
	s.event(t, InputEvent{Type: EventSelectEdge, EdgeID: "e1"})
	d := s.detail()

	require.NotNil(t, d)
	require.NotNil(t, d.Node)
	assert.Equal(t, "a", d.Node.ID)
	assert.Len(t, d.RelatedEdges, 2)
	require.NotNil(t, d.Edge)
	assert.Equal(t, []graph.Evidence{{ChapterNum: 1, Snippet: "两人初次相遇"}}, d.Edge.Evidence)
}

func TestDispatchRejectsInvalidEvents(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})

	tests := []struct {
		name string
		ev   InputEvent
	}{
		{"unknown type", InputEvent{Type: "warp"}},
		{"resize without dimensions", InputEvent{Type: EventResize}},
		{"select node without id", InputEvent{Type: EventSelectNode}},
		{"select edge without id", InputEvent{Type: EventSelectEdge}},
		{"non-positive spread", InputEvent{Type: EventSetSpread, Spread: 0}},
		{"bad view mode", InputEvent{Type: EventReload, ViewMode: "cosmic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.Dispatch(tt.ev))
		})
	}
}

func TestUpdatesChannelKeepsLatestFrame(t *testing.T) {
	s := newTestSession(t, &stubSource{g: testRelationGraph()})

	s.publish()
	s.publish()
	s.publish()

	u := <-s.updates
	assert.Equal(t, uint64(3), u.Frame.Seq)
	select {
	case <-s.updates:
		t.Fatal("expected only the latest update to be buffered")
	default:
	}
}

func TestManagerLifecycle(t *testing.T) {
	src := &stubSource{g: testRelationGraph()}
	m := NewManager(src, zap.NewNop(), observability.NewCollector("test"))

	sess, err := m.Create(context.Background(), Config{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(sess.ID())
	require.NoError(t, err)
	assert.Same(t, sess, got)

	// The run loop publishes an initial frame shortly after creation.
	select {
	case u := <-sess.Updates():
		assert.False(t, u.Frame.Empty)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial frame published")
	}

	require.NoError(t, m.Delete(sess.ID()))
	assert.Zero(t, m.Len())
	_, err = m.Get(sess.ID())
	assert.Error(t, err)

	assert.Error(t, m.Delete("missing"))
}

func TestManagerRejectsEmptyProject(t *testing.T) {
	m := NewManager(&stubSource{g: testRelationGraph()}, zap.NewNop(), observability.NewCollector("test"))
	_, err := m.Create(context.Background(), Config{})
	assert.Error(t, err)
}
