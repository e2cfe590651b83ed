package session

import (
	"math"

	"storygraph/domain/graph"
)

// dragThreshold is the screen-space displacement (px) separating a click
// from a drag.
const dragThreshold = 3.0

// GestureKind classifies a completed pointer gesture.
type GestureKind int

const (
	GestureNone GestureKind = iota
	// GestureClick is a sub-threshold press on a previously unpinned
	// node; treated as a selection click.
	GestureClick
	// GestureDragEnd commits the dragged node as pinned.
	GestureDragEnd
	// GesturePanEnd ends a viewport pan. Moved=false means the press
	// never left the click threshold (a background click).
	GesturePanEnd
)

// GestureResult is the explicit outcome of a pointer-up, returned
// instead of a mutable suppress-next-click flag so multiple in-flight
// pointers cannot reorder each other's effects.
type GestureResult struct {
	Kind   GestureKind
	NodeID string
	Pos    graph.Position // final graph-space position (drag end)
	Moved  bool
}

// surface is what the gesture controller needs from its session: hit
// testing, coordinate mapping, and the simulation/viewport mutations a
// gesture performs.
type surface interface {
	HitNode(px, py float64) (string, bool)
	ToGraph(px, py float64) graph.Position
	NodePinned(id string) bool
	FixNode(id string, pos graph.Position)
	ReleaseNode(id string)
	Pan(dx, dy float64)
	BoostAlpha()
	ReleaseBoost()
}

type pointerMode int

const (
	modeDragging pointerMode = iota
	modePanning
)

type pointerState struct {
	mode      pointerMode
	nodeID    string
	wasPinned bool
	startX    float64
	startY    float64
	lastX     float64
	lastY     float64
	moved     bool
}

// Controller is the pointer state machine: Idle → Dragging(node) →
// {Pinned | Idle}, with pan arbitration by hit test at pointer-down.
// At most one pointer drags a node at a time; any other active pointer
// pans.
type Controller struct {
	surface  surface
	pointers map[int]*pointerState
	dragging int // pointer id holding the drag, -1 if none
}

// NewController creates an idle gesture controller over the surface.
func NewController(s surface) *Controller {
	return &Controller{
		surface:  s,
		pointers: make(map[int]*pointerState),
		dragging: -1,
	}
}

// Dragging reports the node id under an active drag, if any.
func (c *Controller) Dragging() (string, bool) {
	if c.dragging == -1 {
		return "", false
	}
	return c.pointers[c.dragging].nodeID, true
}

// PointerDown starts a gesture. A press on a node starts a drag (unless
// another pointer already holds one); anything else starts a pan.
func (c *Controller) PointerDown(pointerID int, px, py float64) {
	if _, exists := c.pointers[pointerID]; exists {
		return
	}
	ps := &pointerState{
		mode:   modePanning,
		startX: px, startY: py,
		lastX: px, lastY: py,
	}

	if nodeID, hit := c.surface.HitNode(px, py); hit && c.dragging == -1 {
		ps.mode = modeDragging
		ps.nodeID = nodeID
		ps.wasPinned = c.surface.NodePinned(nodeID)
		c.dragging = pointerID
		// Anchor the node under the cursor and keep the layout live.
		c.surface.FixNode(nodeID, c.surface.ToGraph(px, py))
		c.surface.BoostAlpha()
	}

	c.pointers[pointerID] = ps
}

// PointerMove advances an active gesture.
func (c *Controller) PointerMove(pointerID int, px, py float64) {
	ps, ok := c.pointers[pointerID]
	if !ok {
		return
	}
	if math.Hypot(px-ps.startX, py-ps.startY) > dragThreshold {
		ps.moved = true
	}

	switch ps.mode {
	case modeDragging:
		c.surface.FixNode(ps.nodeID, c.surface.ToGraph(px, py))
	case modePanning:
		c.surface.Pan(px-ps.lastX, py-ps.lastY)
	}
	ps.lastX, ps.lastY = px, py
}

// PointerUp completes a gesture and returns its outcome.
func (c *Controller) PointerUp(pointerID int, px, py float64) GestureResult {
	ps, ok := c.pointers[pointerID]
	if !ok {
		return GestureResult{Kind: GestureNone}
	}
	c.PointerMove(pointerID, px, py)
	delete(c.pointers, pointerID)

	if ps.mode == modePanning {
		return GestureResult{Kind: GesturePanEnd, Moved: ps.moved}
	}

	c.dragging = -1
	c.surface.ReleaseBoost()

	if ps.moved || ps.wasPinned {
		return GestureResult{
			Kind:   GestureDragEnd,
			NodeID: ps.nodeID,
			Pos:    c.surface.ToGraph(px, py),
			Moved:  ps.moved,
		}
	}

	// Sub-threshold press on an unpinned node: free it again and report
	// a plain selection click.
	c.surface.ReleaseNode(ps.nodeID)
	return GestureResult{Kind: GestureClick, NodeID: ps.nodeID}
}

// Cancel handles pointer-capture loss: the gesture exits as if a clean
// pointer-up arrived at the last known position.
func (c *Controller) Cancel(pointerID int) GestureResult {
	ps, ok := c.pointers[pointerID]
	if !ok {
		return GestureResult{Kind: GestureNone}
	}
	return c.PointerUp(pointerID, ps.lastX, ps.lastY)
}

// Invalidate aborts all in-flight gestures without producing results.
// Called on data reloads, where a dragged node id may no longer exist.
func (c *Controller) Invalidate() {
	if c.dragging != -1 {
		c.surface.ReleaseBoost()
		c.dragging = -1
	}
	c.pointers = make(map[int]*pointerState)
}
