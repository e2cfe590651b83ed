package layout

import (
	"math"
	"math/rand"

	"storygraph/domain/graph"
)

// Force tuning. Distances and strengths scale with the user-adjustable
// spread factor; alpha is the simulation's decaying energy scalar.
const (
	baseLinkDistance = 110.0
	linkStrength     = 0.42
	baseCharge       = -320.0
	collidePadding   = 8.0

	alphaStart    = 1.0
	alphaDecay    = 0.032
	alphaMin      = 0.001
	velocityDecay = 0.4

	// MinSpread and MaxSpread bound the layout spread multiplier.
	MinSpread = 0.8
	MaxSpread = 2.2
)

// Simulation is a force-directed layout solver over a fixed node/edge set.
// Node state is held in parallel slices indexed by a stable slot, with an
// id→slot table for lookups; nothing is allocated per tick. A node with a
// fixed position is clamped there every tick while still exerting forces
// on its neighbours.
type Simulation struct {
	width  float64
	height float64
	spread float64

	ids    []string
	slots  map[string]int
	x, y   []float64
	vx, vy []float64
	fx, fy []float64
	fixed  []bool
	radius []float64 // collision exclusion radius per slot
	degree []int

	links    [][2]int
	linkBias []float64

	alpha       float64
	alphaTarget float64

	rng *rand.Rand
}

// NewSimulation builds a simulation arena for the given visible node and
// edge sets. Nodes are seeded on a circle around the viewport center;
// nodes present in seeds are placed at (and fixed to) their stored
// position instead, so previously pinned nodes reappear in place.
func NewSimulation(nodes []graph.Node, edges []graph.Edge, width, height, spread float64, seeds map[string]graph.Position) *Simulation {
	spread = ClampSpread(spread)
	n := len(nodes)

	s := &Simulation{
		width:  width,
		height: height,
		spread: spread,
		ids:    make([]string, n),
		slots:  make(map[string]int, n),
		x:      make([]float64, n),
		y:      make([]float64, n),
		vx:     make([]float64, n),
		vy:     make([]float64, n),
		fx:     make([]float64, n),
		fy:     make([]float64, n),
		fixed:  make([]bool, n),
		radius: make([]float64, n),
		degree: make([]int, n),
		alpha:  alphaStart,
		rng:    rand.New(rand.NewSource(int64(n)*7919 + 17)),
	}

	cx, cy := width/2, height/2
	ring := seedRadius(n, spread)
	for i, node := range nodes {
		s.ids[i] = node.ID
		s.slots[node.ID] = i
		s.degree[i] = node.Degree
		s.radius[i] = node.BaseRadius() + collidePadding + collidePadding*spread

		if pos, ok := seeds[node.ID]; ok && pos.Valid() {
			s.x[i], s.y[i] = pos.X, pos.Y
			s.fx[i], s.fy[i] = pos.X, pos.Y
			s.fixed[i] = true
			continue
		}
		angle := 2 * math.Pi * float64(i) / float64(maxInt(n, 1))
		s.x[i] = cx + ring*math.Cos(angle)
		s.y[i] = cy + ring*math.Sin(angle)
	}

	for _, e := range edges {
		si, ok := s.slots[e.Source]
		if !ok {
			continue
		}
		ti, ok := s.slots[e.Target]
		if !ok {
			continue
		}
		s.links = append(s.links, [2]int{si, ti})
		ds, dt := float64(maxInt(s.degree[si], 1)), float64(maxInt(s.degree[ti], 1))
		s.linkBias = append(s.linkBias, ds/(ds+dt))
	}

	return s
}

// seedRadius is the initial placement ring radius, growing with node count
// and spread but clamped to keep small and huge graphs on screen.
func seedRadius(n int, spread float64) float64 {
	r := (95 + float64(n)*8) * spread
	if r < 110 {
		return 110
	}
	if r > 360 {
		return 360
	}
	return r
}

// ClampSpread bounds the spread multiplier to [MinSpread, MaxSpread].
func ClampSpread(spread float64) float64 {
	if spread < MinSpread {
		return MinSpread
	}
	if spread > MaxSpread {
		return MaxSpread
	}
	return spread
}

// Len returns the number of nodes in the arena.
func (s *Simulation) Len() int {
	return len(s.ids)
}

// Alpha returns the current energy level.
func (s *Simulation) Alpha() float64 {
	return s.alpha
}

// SetAlpha reheats (or cools) the simulation.
func (s *Simulation) SetAlpha(alpha float64) {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	s.alpha = alpha
}

// SetAlphaTarget sets the sustained energy floor. A non-zero target keeps
// the simulation live while the user drags.
func (s *Simulation) SetAlphaTarget(target float64) {
	if target < 0 {
		target = 0
	}
	if target > 1 {
		target = 1
	}
	s.alphaTarget = target
}

// Running reports whether further ticks will still move the layout.
func (s *Simulation) Running() bool {
	return len(s.ids) > 0 && (s.alpha >= alphaMin || s.alphaTarget > 0)
}

// Fix clamps a node to the given graph-space position. Used while the
// node is dragged or pinned.
func (s *Simulation) Fix(id string, pos graph.Position) {
	i, ok := s.slots[id]
	if !ok || !pos.Valid() {
		return
	}
	s.fx[i], s.fy[i] = pos.X, pos.Y
	s.x[i], s.y[i] = pos.X, pos.Y
	s.vx[i], s.vy[i] = 0, 0
	s.fixed[i] = true
}

// Release frees a node to move under simulation forces again.
func (s *Simulation) Release(id string) {
	if i, ok := s.slots[id]; ok {
		s.fixed[i] = false
	}
}

// Fixed reports whether the node currently has a fixed position.
func (s *Simulation) Fixed(id string) bool {
	i, ok := s.slots[id]
	return ok && s.fixed[i]
}

// Position returns a node's current position.
func (s *Simulation) Position(id string) (graph.Position, bool) {
	i, ok := s.slots[id]
	if !ok {
		return graph.Position{}, false
	}
	return graph.Position{X: s.x[i], Y: s.y[i]}, true
}

// Each calls fn for every node in slot order.
func (s *Simulation) Each(fn func(id string, pos graph.Position)) {
	for i, id := range s.ids {
		fn(id, graph.Position{X: s.x[i], Y: s.y[i]})
	}
}

// Recenter shifts the whole layout to a resized viewport without
// reseeding. Fixed nodes are shifted too, keeping their offset from the
// center stable.
func (s *Simulation) Recenter(width, height float64) {
	dx := (width - s.width) / 2
	dy := (height - s.height) / 2
	s.width, s.height = width, height
	for i := range s.x {
		s.x[i] += dx
		s.y[i] += dy
		if s.fixed[i] {
			s.fx[i] += dx
			s.fy[i] += dy
		}
	}
}

// Tick advances the simulation one step and reports whether it is still
// running. Force order matches the layout contract: link pull, many-body
// repulsion, centering, collision, then integration.
func (s *Simulation) Tick() bool {
	if len(s.ids) == 0 {
		return false
	}
	if s.alpha < alphaMin && s.alphaTarget == 0 {
		return false
	}

	s.alpha += (s.alphaTarget - s.alpha) * alphaDecay

	s.applyLinks()
	s.applyCharge()
	s.applyCenter()
	s.applyCollide()
	s.integrate()

	return s.Running()
}

func (s *Simulation) applyLinks() {
	distance := baseLinkDistance * s.spread
	for li, l := range s.links {
		i, j := l[0], l[1]
		dx := s.x[j] + s.vx[j] - s.x[i] - s.vx[i]
		dy := s.y[j] + s.vy[j] - s.y[i] - s.vy[i]
		d := math.Hypot(dx, dy)
		if d == 0 {
			dx, dy = s.jiggle(), s.jiggle()
			d = math.Hypot(dx, dy)
		}
		k := (d - distance) / d * s.alpha * linkStrength
		dx *= k
		dy *= k
		bias := s.linkBias[li]
		s.vx[j] -= dx * bias
		s.vy[j] -= dy * bias
		s.vx[i] += dx * (1 - bias)
		s.vy[i] += dy * (1 - bias)
	}
}

func (s *Simulation) applyCharge() {
	strength := baseCharge * s.spread
	for i := 0; i < len(s.x); i++ {
		for j := i + 1; j < len(s.x); j++ {
			dx := s.x[j] - s.x[i]
			dy := s.y[j] - s.y[i]
			d2 := dx*dx + dy*dy
			if d2 < 1 {
				dx, dy = s.jiggle(), s.jiggle()
				d2 = dx*dx + dy*dy
			}
			w := strength * s.alpha / d2
			s.vx[i] += dx * w
			s.vy[i] += dy * w
			s.vx[j] -= dx * w
			s.vy[j] -= dy * w
		}
	}
}

// applyCenter translates the layout so its centroid sits on the viewport
// center. Translation is exact, not alpha-scaled, so the graph never
// drifts off screen.
func (s *Simulation) applyCenter() {
	n := float64(len(s.x))
	var cx, cy float64
	for i := range s.x {
		cx += s.x[i]
		cy += s.y[i]
	}
	cx = cx/n - s.width/2
	cy = cy/n - s.height/2
	for i := range s.x {
		if s.fixed[i] {
			continue
		}
		s.x[i] -= cx
		s.y[i] -= cy
	}
}

func (s *Simulation) applyCollide() {
	for i := 0; i < len(s.x); i++ {
		xi := s.x[i] + s.vx[i]
		yi := s.y[i] + s.vy[i]
		for j := i + 1; j < len(s.x); j++ {
			dx := s.x[j] + s.vx[j] - xi
			dy := s.y[j] + s.vy[j] - yi
			r := s.radius[i] + s.radius[j]
			d2 := dx*dx + dy*dy
			if d2 >= r*r {
				continue
			}
			d := math.Sqrt(d2)
			if d == 0 {
				dx, dy = s.jiggle(), s.jiggle()
				d = math.Hypot(dx, dy)
			}
			k := (r - d) / d * 0.5
			dx *= k
			dy *= k
			s.vx[j] += dx
			s.vy[j] += dy
			s.vx[i] -= dx
			s.vy[i] -= dy
		}
	}
}

func (s *Simulation) integrate() {
	decay := 1 - velocityDecay
	for i := range s.x {
		if s.fixed[i] {
			s.x[i], s.y[i] = s.fx[i], s.fy[i]
			s.vx[i], s.vy[i] = 0, 0
			continue
		}
		s.vx[i] *= decay
		s.vy[i] *= decay
		s.x[i] += s.vx[i]
		s.y[i] += s.vy[i]
	}
}

// jiggle breaks exact overlaps with a tiny pseudo-random offset.
func (s *Simulation) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-3
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
