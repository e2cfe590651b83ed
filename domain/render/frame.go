// Package render turns engine state into a depth-sorted display list.
// The engine does not paint; it emits draw commands that a canvas client
// replays in order.
package render

import (
	"storygraph/domain/graph"
	"storygraph/domain/viewport"
)

// NodeDraw is one node draw command, in screen coordinates.
type NodeDraw struct {
	ID           string  `json:"id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Radius       float64 `json:"radius"`
	Color        string  `json:"color"`
	Opacity      float64 `json:"opacity"`
	Label        string  `json:"label"`
	LabelVisible bool    `json:"label_visible"`
	Selected     bool    `json:"selected"`
	Pinned       bool    `json:"pinned"`
	Category     string  `json:"category"`
}

// EdgeDraw is one edge draw command, in screen coordinates. Arrow flags
// convey direction: target-only for directed edges, both ends for
// bidirectional ones.
type EdgeDraw struct {
	ID           string  `json:"id"`
	X1           float64 `json:"x1"`
	Y1           float64 `json:"y1"`
	X2           float64 `json:"x2"`
	Y2           float64 `json:"y2"`
	Width        float64 `json:"width"`
	Opacity      float64 `json:"opacity"`
	Color        string  `json:"color"`
	Label        string  `json:"label"`
	LabelVisible bool    `json:"label_visible"`
	ArrowSource  bool    `json:"arrow_source"`
	ArrowTarget  bool    `json:"arrow_target"`
	Selected     bool    `json:"selected"`
}

// Frame is one complete repaint. Edges precede nodes and both slices are
// sorted by ascending y, so replaying in order yields the layered
// pseudo-3D look (lower elements occlude higher ones).
type Frame struct {
	Seq            uint64             `json:"seq"`
	Transform      viewport.Transform `json:"transform"`
	Edges          []EdgeDraw         `json:"edges"`
	Nodes          []NodeDraw         `json:"nodes"`
	Stats          graph.Stats        `json:"stats"`
	SelectedNodeID string             `json:"selected_node_id,omitempty"`
	SelectedEdgeID string             `json:"selected_edge_id,omitempty"`
	Empty          bool               `json:"empty"`
	Message        string             `json:"message,omitempty"`
}
