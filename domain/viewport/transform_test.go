package viewport

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"storygraph/domain/graph"
)

func TestRoundTrip(t *testing.T) {
	tr := Transform{K: 1.5, X: 40, Y: -20}
	p := graph.Position{X: 123.4, Y: -56.7}

	back := tr.ToGraph(tr.ToScreen(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
}

func TestZoomClampUnderAnyWheelSequence(t *testing.T) {
	tr := NewTransform()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		tr = tr.Zoom(rng.Intn(2) == 0, rng.Float64()*800, rng.Float64()*600)
		assert.GreaterOrEqual(t, tr.K, MinScale)
		assert.LessOrEqual(t, tr.K, MaxScale)
	}
}

func TestZoomAnchoredAtCursor(t *testing.T) {
	tr := Transform{K: 1.2, X: 30, Y: 50}
	px, py := 250.0, 140.0

	under := tr.ToGraph(graph.Position{X: px, Y: py})
	zoomed := tr.Zoom(true, px, py)
	after := zoomed.ToScreen(under)

	assert.InDelta(t, px, after.X, 1e-9)
	assert.InDelta(t, py, after.Y, 1e-9)
}

func TestZoomAnchoredAtCursorWhenZoomingOut(t *testing.T) {
	tr := Transform{K: 2, X: -10, Y: 5}
	px, py := 10.0, 580.0

	under := tr.ToGraph(graph.Position{X: px, Y: py})
	zoomed := tr.Zoom(false, px, py)
	after := zoomed.ToScreen(under)

	assert.InDelta(t, px, after.X, 1e-9)
	assert.InDelta(t, py, after.Y, 1e-9)
}

func TestZoomAtClampBoundaryKeepsTranslation(t *testing.T) {
	tr := Transform{K: MaxScale, X: 7, Y: 9}
	zoomed := tr.Zoom(true, 100, 100)
	assert.Equal(t, tr, zoomed, "zooming past the clamp is a no-op")
}

func TestPanAccumulates(t *testing.T) {
	tr := NewTransform().Pan(10, -5).Pan(2, 3)
	assert.Equal(t, 12.0, tr.X)
	assert.Equal(t, -2.0, tr.Y)
	assert.Equal(t, 1.0, tr.K)
}

func TestReset(t *testing.T) {
	tr := Transform{K: 3, X: 100, Y: 200}.Reset()
	assert.Equal(t, Transform{K: 1, X: 0, Y: 0}, tr)
}
