package render

import (
	"sort"

	"storygraph/domain/graph"
	"storygraph/domain/viewport"
)

// Depth and selection styling constants. A node's vertical position
// stands in for depth: lower on screen reads as closer.
const (
	minDepthScale = 0.68
	maxDepthScale = 1.16

	// SelectedBoost grows the selected node's radius; the hit test
	// applies it too so the target matches the drawn circle.
	SelectedBoost = 1.08
	dimOpacity     = 0.3
	edgeLabelZoom  = 1.15
	baseEdgeWidth  = 1.0
	edgeDepthWidth = 1.2
	selectedWidth  = 2.5
)

// State is everything one repaint needs. PositionOf resolves a node's
// current graph-space position from the simulation arena; Pinned reads
// the pin store.
type State struct {
	Nodes          []graph.Node
	Edges          []graph.Edge
	PositionOf     func(id string) (graph.Position, bool)
	Pinned         func(id string) bool
	Transform      viewport.Transform
	Width          float64
	Height         float64
	SelectedNodeID string
	SelectedEdgeID string
	Stats          graph.Stats
	Seq            uint64
}

// BuildFrame produces the depth-sorted display list for the given state.
// A state with no visible nodes yields an empty-placeholder frame.
func BuildFrame(st State) Frame {
	frame := Frame{
		Seq:            st.Seq,
		Transform:      st.Transform,
		Stats:          st.Stats,
		SelectedNodeID: st.SelectedNodeID,
		SelectedEdgeID: st.SelectedEdgeID,
	}
	if len(st.Nodes) == 0 {
		frame.Empty = true
		frame.Message = "no relations to show"
		return frame
	}

	related := map[string]struct{}{}
	if st.SelectedNodeID != "" {
		related = graph.RelatedSet(st.SelectedNodeID, st.Edges)
	}

	frame.Nodes = buildNodes(st, related)
	frame.Edges = buildEdges(st, related)
	return frame
}

func buildNodes(st State, related map[string]struct{}) []NodeDraw {
	nodes := make([]NodeDraw, 0, len(st.Nodes))
	for _, n := range st.Nodes {
		pos, ok := st.PositionOf(n.ID)
		if !ok {
			continue
		}
		screen := st.Transform.ToScreen(pos)
		selected := n.ID == st.SelectedNodeID

		radius := n.BaseRadius() * DepthScale(screen.Y, st.Height) * st.Transform.K
		if selected {
			radius *= SelectedBoost
		}

		opacity := 1.0
		dimmed := false
		if st.SelectedNodeID != "" {
			if _, ok := related[n.ID]; !ok {
				opacity = dimOpacity
				dimmed = true
			}
		}

		pinned := false
		if st.Pinned != nil {
			pinned = st.Pinned(n.ID)
		}

		nodes = append(nodes, NodeDraw{
			ID:           n.ID,
			X:            screen.X,
			Y:            screen.Y,
			Radius:       radius,
			Color:        NodeColor(n.Category),
			Opacity:      opacity,
			Label:        n.Label,
			LabelVisible: !dimmed,
			Selected:     selected,
			Pinned:       pinned,
			Category:     graph.ClassifyCategory(n.Category).String(),
		})
	}

	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Y < nodes[j].Y })
	return nodes
}

func buildEdges(st State, related map[string]struct{}) []EdgeDraw {
	edges := make([]EdgeDraw, 0, len(st.Edges))
	for _, e := range st.Edges {
		src, ok := st.PositionOf(e.Source)
		if !ok {
			continue
		}
		dst, ok := st.PositionOf(e.Target)
		if !ok {
			continue
		}
		s1 := st.Transform.ToScreen(src)
		s2 := st.Transform.ToScreen(dst)

		depth := normalizedDepth((s1.Y+s2.Y)/2, st.Height)
		selected := e.ID == st.SelectedEdgeID
		touchesSelected := st.SelectedNodeID != "" && e.Touches(st.SelectedNodeID)

		opacity := 0.16 + depth*0.34
		width := baseEdgeWidth + depth*edgeDepthWidth
		color := edgeColor
		if selected || touchesSelected {
			color = edgeHighlightColor
			width = selectedWidth
		} else if st.SelectedNodeID != "" {
			opacity *= dimOpacity
		}

		labelVisible := selected || touchesSelected ||
			st.Transform.K >= edgeLabelZoom || st.SelectedNodeID == ""

		edges = append(edges, EdgeDraw{
			ID:           e.ID,
			X1:           s1.X,
			Y1:           s1.Y,
			X2:           s2.X,
			Y2:           s2.Y,
			Width:        width,
			Opacity:      opacity,
			Color:        color,
			Label:        e.Type,
			LabelVisible: labelVisible,
			ArrowSource:  e.Direction == graph.DirectionBidirectional,
			ArrowTarget:  true,
			Selected:     selected,
		})
	}

	sort.SliceStable(edges, func(i, j int) bool {
		return (edges[i].Y1+edges[i].Y2)/2 < (edges[j].Y1+edges[j].Y2)/2
	})
	return edges
}

// DepthScale maps a screen y to the node radius multiplier.
func DepthScale(y, height float64) float64 {
	s := 0.78 + normalizedDepth(y, height)*0.32
	if s < minDepthScale {
		return minDepthScale
	}
	if s > maxDepthScale {
		return maxDepthScale
	}
	return s
}

// normalizedDepth clamps y/height into [0, 1].
func normalizedDepth(y, height float64) float64 {
	if height <= 0 {
		return 0
	}
	d := y / height
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}
