package graph

import "math"

// Position is a point in graph (simulation) space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Valid reports whether both coordinates are finite.
func (p Position) Valid() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// DistanceTo returns the Euclidean distance to another position.
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Hypot(dx, dy)
}

// Equals compares positions with a small epsilon.
func (p Position) Equals(other Position) bool {
	const epsilon = 1e-9
	return math.Abs(p.X-other.X) < epsilon && math.Abs(p.Y-other.Y) < epsilon
}

// Midpoint returns the midpoint between two positions.
func (p Position) Midpoint(other Position) Position {
	return Position{X: (p.X + other.X) / 2, Y: (p.Y + other.Y) / 2}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
