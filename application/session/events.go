// Package session hosts interactive graph view sessions. Each session
// owns a force simulation, pin store, viewport transform and selection
// state, mutated only by the session's own goroutine.
package session

import (
	"github.com/go-playground/validator/v10"

	pkgerrors "storygraph/pkg/errors"
)

// EventType enumerates the client input events a session accepts.
type EventType string

const (
	EventPointerDown   EventType = "pointer_down"
	EventPointerMove   EventType = "pointer_move"
	EventPointerUp     EventType = "pointer_up"
	EventPointerCancel EventType = "pointer_cancel"
	EventDoubleClick   EventType = "double_click"
	EventWheel         EventType = "wheel"
	EventResize        EventType = "resize"
	EventSearch        EventType = "search"
	EventSelectNode    EventType = "select_node"
	EventSelectEdge    EventType = "select_edge"
	EventSetSpread     EventType = "set_spread"
	EventReleaseAll    EventType = "release_all"
	EventReload        EventType = "reload"
	EventResetView     EventType = "reset_view"
)

// InputEvent is one client input message. Fields beyond Type are
// event-specific; unused fields are ignored.
type InputEvent struct {
	Type EventType `json:"type" validate:"required,oneof=pointer_down pointer_move pointer_up pointer_cancel double_click wheel resize search select_node select_edge set_spread release_all reload reset_view"`

	// Pointer events. Coordinates are screen-space pixels.
	PointerID int     `json:"pointer_id,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`

	// Wheel. Negative DeltaY zooms in, matching browser wheel deltas.
	DeltaY float64 `json:"delta_y,omitempty"`

	// Resize.
	Width  float64 `json:"width,omitempty" validate:"omitempty,gte=0"`
	Height float64 `json:"height,omitempty" validate:"omitempty,gte=0"`

	// Search filter.
	Query string `json:"query,omitempty" validate:"omitempty,max=200"`

	// Selection.
	NodeID string `json:"node_id,omitempty"`
	EdgeID string `json:"edge_id,omitempty"`

	// Layout spread multiplier.
	Spread float64 `json:"spread,omitempty"`

	// Reload scope. Empty fields keep the session's current scope.
	ViewMode  string `json:"view_mode,omitempty" validate:"omitempty,oneof=global chapter"`
	ChapterID string `json:"chapter_id,omitempty"`
}

var validate = validator.New()

// Validate checks the event shape before it enters the session loop.
func (e InputEvent) Validate() error {
	if err := validate.Struct(e); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	switch e.Type {
	case EventResize:
		if e.Width <= 0 || e.Height <= 0 {
			return pkgerrors.NewValidationError("resize requires positive width and height")
		}
	case EventSelectNode:
		if e.NodeID == "" {
			return pkgerrors.NewValidationError("select_node requires node_id")
		}
	case EventSelectEdge:
		if e.EdgeID == "" {
			return pkgerrors.NewValidationError("select_edge requires edge_id")
		}
	case EventSetSpread:
		if e.Spread <= 0 {
			return pkgerrors.NewValidationError("set_spread requires a positive spread")
		}
	}
	return nil
}
