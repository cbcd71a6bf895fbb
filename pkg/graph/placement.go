package graph

import "github.com/kchakrav/CRMApp-sub002/pkg/models"

// Placement geometry. Nodes without a rendered size are treated as a default-sized box.
const (
	DefaultNodeWidth  = 200.0
	DefaultNodeHeight = 80.0
	PlacementPadding  = 20.0
	PlacementStep     = 40.0
	PlacementMaxRings = 25
)

// compass offsets probed on every ring: E, W, S, N, SE, SW, NE, NW.
var compass = [8][2]float64{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {-1, 1}, {1, -1}, {-1, -1},
}

type box struct {
	x, y, w, h float64
}

func (a box) overlaps(b box, pad float64) bool {
	return a.x < b.x+b.w+pad && b.x < a.x+a.w+pad &&
		a.y < b.y+b.h+pad && b.y < a.y+a.h+pad
}

// FindAvailablePosition returns the closest point to (x, y) where a default-sized node does not
// overlap any existing node, probing rings of compass offsets. If every probe collides the original
// point is returned.
func (g *Graph) FindAvailablePosition(x, y float64) models.Position {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.findAvailablePosition(x, y)
}

func (g *Graph) findAvailablePosition(x, y float64) models.Position {
	if !g.collides(x, y) {
		return models.Position{X: x, Y: y}
	}

	for ring := 1; ring <= PlacementMaxRings; ring++ {
		radius := float64(ring) * PlacementStep

		for _, dir := range compass {
			cx, cy := x+dir[0]*radius, y+dir[1]*radius
			if cx < 0 || cy < 0 {
				continue
			}

			if !g.collides(cx, cy) {
				return models.Position{X: cx, Y: cy}
			}
		}
	}

	return models.Position{X: x, Y: y}
}

func (g *Graph) collides(x, y float64) bool {
	candidate := box{x: x, y: y, w: DefaultNodeWidth, h: DefaultNodeHeight}

	for _, n := range g.nodes {
		if candidate.overlaps(g.boxOf(n), PlacementPadding) {
			return true
		}
	}

	return false
}

func (g *Graph) boxOf(n *models.Node) box {
	size := g.sizeOf(n.ID)

	return box{x: n.Position.X, y: n.Position.Y, w: size.Width, h: size.Height}
}

func (g *Graph) sizeOf(id string) models.Size {
	if s, ok := g.sizes[id]; ok {
		return s
	}

	return models.Size{Width: DefaultNodeWidth, Height: DefaultNodeHeight}
}
