// Package viewport maintains the affine mapping between screen space and
// graph space: screen = graph*k + (x, y).
package viewport

import "storygraph/domain/graph"

// Zoom limits and wheel step factors.
const (
	MinScale = 0.35
	MaxScale = 4.0

	zoomInFactor  = 1.12
	zoomOutFactor = 0.89
)

// Transform is a uniform scale plus 2D translation. The zero value is not
// valid; use NewTransform.
type Transform struct {
	K float64 `json:"k"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewTransform returns the identity transform.
func NewTransform() Transform {
	return Transform{K: 1}
}

// ToScreen maps a graph-space point to screen space.
func (t Transform) ToScreen(p graph.Position) graph.Position {
	return graph.Position{X: p.X*t.K + t.X, Y: p.Y*t.K + t.Y}
}

// ToGraph maps a screen-space point to graph space. Inverse of ToScreen;
// used for hit-testing pointer events.
func (t Transform) ToGraph(p graph.Position) graph.Position {
	return graph.Position{X: (p.X - t.X) / t.K, Y: (p.Y - t.Y) / t.K}
}

// Pan shifts the viewport by a raw screen-space delta.
func (t Transform) Pan(dx, dy float64) Transform {
	t.X += dx
	t.Y += dy
	return t
}

// Zoom scales the viewport by one wheel step, anchored at the cursor's
// screen position so the graph point under the cursor stays fixed.
func (t Transform) Zoom(in bool, px, py float64) Transform {
	factor := zoomOutFactor
	if in {
		factor = zoomInFactor
	}
	k := clampScale(t.K * factor)
	if k == t.K {
		return t
	}
	// Keep the graph point under (px, py) stationary on screen.
	scale := k / t.K
	t.X = px - (px-t.X)*scale
	t.Y = py - (py-t.Y)*scale
	t.K = k
	return t
}

// Reset restores the identity transform.
func (t Transform) Reset() Transform {
	return NewTransform()
}

func clampScale(k float64) float64 {
	if k < MinScale {
		return MinScale
	}
	if k > MaxScale {
		return MaxScale
	}
	return k
}
