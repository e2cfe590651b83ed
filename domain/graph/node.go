package graph

// Radius bounds for rendered nodes. Degree drives the base radius so that
// well-connected characters read as visually heavier.
const (
	MinBaseRadius = 16.0
	MaxBaseRadius = 24.0
)

// Node is a normalized character record as returned by the graph fetch.
// It is pure data; layout state (position, pinning) lives in the
// simulation arena and the pin store, not here.
type Node struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Category    string `json:"category"`
	Gender      string `json:"gender,omitempty"`
	Age         string `json:"age,omitempty"`
	Identity    string `json:"identity,omitempty"`
	Personality string `json:"personality,omitempty"`
	Degree      int    `json:"degree"`
}

// BaseRadius returns the node's unscaled display radius, monotonically
// non-decreasing in degree and clamped to [MinBaseRadius, MaxBaseRadius].
func (n Node) BaseRadius() float64 {
	return BaseRadiusForDegree(n.Degree)
}

// BaseRadiusForDegree computes the base radius for a given degree.
func BaseRadiusForDegree(degree int) float64 {
	if degree < 0 {
		degree = 0
	}
	r := 14 + float64(degree)*1.4
	if r < MinBaseRadius {
		return MinBaseRadius
	}
	if r > MaxBaseRadius {
		return MaxBaseRadius
	}
	return r
}
