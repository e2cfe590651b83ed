package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storygraph/application/ports"
	"storygraph/domain/graph"
	"storygraph/domain/layout"
	"storygraph/domain/render"
	"storygraph/domain/viewport"
	pkgerrors "storygraph/pkg/errors"
	"storygraph/pkg/observability"
)

// Simulation energy levels for the interaction triggers.
const (
	dragAlphaTarget  = 0.36
	doubleClickAlpha = 0.55
	releaseAllAlpha  = 0.9

	defaultTickInterval = 33 * time.Millisecond
	eventBuffer         = 64
)

// Config describes a new view session.
type Config struct {
	ProjectID    string
	ViewMode     string
	ChapterID    string
	Width        float64
	Height       float64
	Spread       float64
	TickInterval time.Duration
}

// Detail is the selection payload for the detail panel.
type Detail struct {
	Node         *graph.Node  `json:"node,omitempty"`
	RelatedEdges []graph.Edge `json:"related_edges,omitempty"`
	Edge         *graph.Edge  `json:"edge,omitempty"`
}

// Update is one server→client message: the current frame plus selection
// detail and any fetch error.
type Update struct {
	Frame  render.Frame `json:"frame"`
	Detail *Detail      `json:"detail,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Session is one interactive graph view. All mutable state below the
// channels is owned by the Run goroutine; callers interact only through
// Dispatch and Updates.
type Session struct {
	id      string
	cfg     Config
	source  ports.GraphSource
	logger  *zap.Logger
	metrics *observability.Collector

	events  chan InputEvent
	updates chan Update

	// Loop-owned state.
	g            *graph.RelationGraph
	visibleNodes []graph.Node
	visibleEdges []graph.Edge
	sim          *layout.Simulation
	pins         *layout.PinStore
	transform    viewport.Transform
	gestures     *Controller
	spread       float64
	query        string
	selectedNode string
	selectedEdge string
	width        float64
	height       float64
	viewMode     string
	chapterID    string
	seq          uint64
	lastError    string
}

// NewSession creates a session; Run must be started for it to do
// anything.
func NewSession(id string, cfg Config, source ports.GraphSource, logger *zap.Logger, metrics *observability.Collector) *Session {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.Width <= 0 {
		cfg.Width = 960
	}
	if cfg.Height <= 0 {
		cfg.Height = 600
	}
	if cfg.Spread <= 0 {
		cfg.Spread = 1.0
	}
	if cfg.ViewMode == "" {
		cfg.ViewMode = graph.ViewModeGlobal
	}

	s := &Session{
		id:        id,
		cfg:       cfg,
		source:    source,
		logger:    logger.Named("session").With(zap.String("sessionID", id)),
		metrics:   metrics,
		events:    make(chan InputEvent, eventBuffer),
		updates:   make(chan Update, 1),
		pins:      layout.NewPinStore(),
		transform: viewport.NewTransform(),
		spread:    layout.ClampSpread(cfg.Spread),
		width:     cfg.Width,
		height:    cfg.Height,
		viewMode:  cfg.ViewMode,
		chapterID: cfg.ChapterID,
	}
	s.gestures = NewController(s)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Updates returns the frame channel. It is latest-wins: a slow reader
// only ever sees the most recent update.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Dispatch validates an input event and queues it for the session loop.
func (s *Session) Dispatch(ev InputEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	select {
	case s.events <- ev:
		return nil
	default:
		return pkgerrors.NewConflictError("session event queue is full")
	}
}

// Run is the session event loop: it serializes input events, simulation
// ticks and reloads on one goroutine. Returns when ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	s.reload(ctx, s.viewMode, s.chapterID)
	s.publish()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("session loop stopped")
			return
		case ev := <-s.events:
			s.metrics.InputEvents.WithLabelValues(string(ev.Type)).Inc()
			s.handle(ctx, ev)
			s.publish()
		case <-ticker.C:
			if s.sim != nil && s.sim.Running() {
				s.sim.Tick()
				s.metrics.SimulationTicks.Inc()
				s.publish()
			}
		}
	}
}

func (s *Session) handle(ctx context.Context, ev InputEvent) {
	switch ev.Type {
	case EventPointerDown:
		s.gestures.PointerDown(ev.PointerID, ev.X, ev.Y)
	case EventPointerMove:
		s.gestures.PointerMove(ev.PointerID, ev.X, ev.Y)
	case EventPointerUp:
		s.applyGesture(s.gestures.PointerUp(ev.PointerID, ev.X, ev.Y))
	case EventPointerCancel:
		s.applyGesture(s.gestures.Cancel(ev.PointerID))
	case EventDoubleClick:
		s.doubleClick(ev.X, ev.Y)
	case EventWheel:
		// Trackpads emit zero deltas on momentum end; they are not a zoom.
		if ev.DeltaY != 0 {
			s.transform = s.transform.Zoom(ev.DeltaY < 0, ev.X, ev.Y)
		}
	case EventResize:
		s.resize(ev.Width, ev.Height)
	case EventSearch:
		s.query = ev.Query
		s.rebuild()
	case EventSelectNode:
		s.selectNode(ev.NodeID)
	case EventSelectEdge:
		s.selectEdge(ev.EdgeID)
	case EventSetSpread:
		s.spread = layout.ClampSpread(ev.Spread)
		s.rebuild()
	case EventReleaseAll:
		s.releaseAll()
	case EventReload:
		mode, chapter := s.viewMode, s.chapterID
		if ev.ViewMode != "" {
			mode, chapter = ev.ViewMode, ev.ChapterID
		}
		s.reload(ctx, mode, chapter)
	case EventResetView:
		s.transform = s.transform.Reset()
	}
}

// applyGesture turns a completed pointer gesture into state changes.
func (s *Session) applyGesture(res GestureResult) {
	switch res.Kind {
	case GestureClick:
		// Toggle node selection; a completed drag never reaches here.
		if s.selectedNode == res.NodeID {
			s.selectedNode = ""
		} else {
			s.selectedNode = res.NodeID
		}
	case GestureDragEnd:
		s.pins.Pin(res.NodeID, res.Pos)
		if s.sim != nil {
			s.sim.Fix(res.NodeID, res.Pos)
		}
	case GesturePanEnd:
		if !res.Moved {
			// Background click clears the selection.
			s.selectedNode = ""
			s.selectedEdge = ""
		}
	}
}

// doubleClick releases a node's pin regardless of gesture state and
// nudges the simulation so the layout re-settles around it.
func (s *Session) doubleClick(px, py float64) {
	nodeID, hit := s.HitNode(px, py)
	if !hit {
		return
	}
	s.pins.Unpin(nodeID)
	if s.sim != nil {
		s.sim.Release(nodeID)
		s.sim.SetAlpha(doubleClickAlpha)
	}
}

// resize recenters the existing layout instead of reseeding; a dragged
// node's fixed position shifts with the layout rather than resetting.
func (s *Session) resize(width, height float64) {
	s.width, s.height = width, height
	if s.sim != nil {
		s.sim.Recenter(width, height)
	}
}

func (s *Session) selectNode(id string) {
	if _, ok := s.visibleNode(id); !ok {
		return
	}
	s.selectedNode = id
}

func (s *Session) selectEdge(id string) {
	for _, e := range s.visibleEdges {
		if e.ID == id {
			s.selectedEdge = id
			return
		}
	}
}

// releaseAll clears every pin and reseeds with high transient energy.
func (s *Session) releaseAll() {
	s.pins.Clear()
	s.rebuild()
	if s.sim != nil {
		s.sim.SetAlpha(releaseAllAlpha)
	}
}

// reload replaces the graph wholesale. A fetch failure surfaces as an
// error message plus a cleared graph, never a crash or partial state.
func (s *Session) reload(ctx context.Context, viewMode, chapterID string) {
	s.gestures.Invalidate()
	s.viewMode, s.chapterID = viewMode, chapterID

	g, err := s.source.FetchRelationGraph(ctx, s.cfg.ProjectID, viewMode, chapterID)
	if err != nil {
		s.logger.Error("graph fetch failed",
			zap.String("projectID", s.cfg.ProjectID),
			zap.String("viewMode", viewMode),
			zap.Error(err),
		)
		s.lastError = "failed to load relation graph"
		s.g = &graph.RelationGraph{ProjectID: s.cfg.ProjectID}
		s.rebuild()
		return
	}

	g.Normalize()
	s.lastError = ""
	s.g = g
	s.rebuild()
}

// rebuild recomputes the visible set and replaces the simulation arena,
// seeding from the pin store so pinned nodes reappear in place. An
// in-flight gesture does not survive a rebuild.
func (s *Session) rebuild() {
	s.gestures.Invalidate()

	if s.g == nil {
		s.g = &graph.RelationGraph{ProjectID: s.cfg.ProjectID}
	}
	s.visibleNodes, s.visibleEdges = s.g.Filter(s.query)

	// Stale selection falls back to none rather than a dangling id.
	if _, ok := s.visibleNode(s.selectedNode); !ok {
		s.selectedNode = ""
	}
	if s.selectedEdge != "" {
		found := false
		for _, e := range s.visibleEdges {
			if e.ID == s.selectedEdge {
				found = true
				break
			}
		}
		if !found {
			s.selectedEdge = ""
		}
	}

	if len(s.visibleNodes) == 0 {
		s.sim = nil
		return
	}
	s.sim = layout.NewSimulation(s.visibleNodes, s.visibleEdges, s.width, s.height, s.spread, s.pins.Snapshot())
}

func (s *Session) visibleNode(id string) (graph.Node, bool) {
	if id == "" {
		return graph.Node{}, false
	}
	for _, n := range s.visibleNodes {
		if n.ID == id {
			return n, true
		}
	}
	return graph.Node{}, false
}

func (s *Session) positionOf(id string) (graph.Position, bool) {
	if s.sim == nil {
		return graph.Position{}, false
	}
	return s.sim.Position(id)
}

// publish builds the current frame and hands it to the subscriber,
// dropping the previous unread update so the reader always gets the
// newest one.
func (s *Session) publish() {
	s.seq++
	frame := render.BuildFrame(render.State{
		Nodes:          s.visibleNodes,
		Edges:          s.visibleEdges,
		PositionOf:     s.positionOf,
		Pinned:         s.pins.Pinned,
		Transform:      s.transform,
		Width:          s.width,
		Height:         s.height,
		SelectedNodeID: s.selectedNode,
		SelectedEdgeID: s.selectedEdge,
		Stats:          s.stats(),
		Seq:            s.seq,
	})

	u := Update{Frame: frame, Detail: s.detail(), Error: s.lastError}
	for {
		select {
		case s.updates <- u:
			s.metrics.FramesEmitted.Inc()
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

func (s *Session) stats() graph.Stats {
	if s.g == nil {
		return graph.Stats{}
	}
	return s.g.Stats
}

// detail assembles the detail-panel payload for the current selection.
func (s *Session) detail() *Detail {
	if s.selectedNode == "" && s.selectedEdge == "" {
		return nil
	}
	d := &Detail{}
	if n, ok := s.visibleNode(s.selectedNode); ok {
		d.Node = &n
		for _, e := range s.visibleEdges {
			if e.Touches(n.ID) {
				d.RelatedEdges = append(d.RelatedEdges, e)
			}
		}
	}
	if s.selectedEdge != "" {
		if e, ok := s.g.EdgeByID(s.selectedEdge); ok {
			d.Edge = &e
		}
	}
	return d
}

// ---- gesture surface ----

// HitNode hit-tests a screen point against the visible nodes, preferring
// the topmost (largest y) hit to match draw order. The radius mirrors
// the renderer exactly, depth scale and selection boost included.
func (s *Session) HitNode(px, py float64) (string, bool) {
	bestID := ""
	bestY := 0.0
	for _, n := range s.visibleNodes {
		pos, ok := s.positionOf(n.ID)
		if !ok {
			continue
		}
		screen := s.transform.ToScreen(pos)
		r := n.BaseRadius() * render.DepthScale(screen.Y, s.height) * s.transform.K
		if n.ID == s.selectedNode {
			r *= render.SelectedBoost
		}
		dx, dy := px-screen.X, py-screen.Y
		if dx*dx+dy*dy > r*r {
			continue
		}
		if bestID == "" || screen.Y > bestY {
			bestID, bestY = n.ID, screen.Y
		}
	}
	return bestID, bestID != ""
}

// ToGraph maps a screen point into graph space.
func (s *Session) ToGraph(px, py float64) graph.Position {
	return s.transform.ToGraph(graph.Position{X: px, Y: py})
}

// NodePinned reports whether the node has a committed pin.
func (s *Session) NodePinned(id string) bool {
	return s.pins.Pinned(id)
}

// FixNode clamps a node at a graph-space position while dragged.
func (s *Session) FixNode(id string, pos graph.Position) {
	if s.sim != nil {
		s.sim.Fix(id, pos)
	}
}

// ReleaseNode frees a node to move under forces again.
func (s *Session) ReleaseNode(id string) {
	if s.sim != nil {
		s.sim.Release(id)
	}
}

// Pan shifts the viewport by a raw screen delta.
func (s *Session) Pan(dx, dy float64) {
	s.transform = s.transform.Pan(dx, dy)
}

// BoostAlpha holds the simulation live while a drag is in progress.
func (s *Session) BoostAlpha() {
	if s.sim != nil {
		s.sim.SetAlphaTarget(dragAlphaTarget)
	}
}

// ReleaseBoost drops the drag energy floor.
func (s *Session) ReleaseBoost() {
	if s.sim != nil {
		s.sim.SetAlphaTarget(0)
	}
}
