package mesh

import (
	"fmt"
	"math"

	"github.com/jkunimune15/Rubber-Earth/utils"
)

// Vertex is a node of the rubber mesh. Its spherical coordinate is fixed at
// construction; its planar coordinate is what the relaxation moves around.
//
// A vertex on the open boundary additionally carries links to the adjacent
// boundary vertices in clockwise and widdershins order. The two directions
// are kept mutually consistent: a.clockwise == b exactly when b.widdershins
// == a, and both are always set through setWiddershins.
type Vertex struct {
	Phi, Lam float64 // spherical coordinate, undeformed
	X, Y     float64 // planar coordinate, deformed
	VelX, VelY float64

	// One force entry per incident element. A small slice beats a map here:
	// vertex degree is bounded by the grid (at most six, plus the pole fans)
	// and the relaxation loop reads this constantly.
	forces []elementForce

	clockwise, widdershins *Vertex
}

type elementForce struct {
	e      *Element
	fx, fy float64
}

func newVertex(phi, lam, x, y float64) *Vertex {
	return &Vertex{Phi: phi, Lam: lam, X: x, Y: y}
}

// newSibling duplicates v for a tear: same spot on the globe, same current
// planar position, no neighbors and no boundary links yet.
func newSibling(v *Vertex) *Vertex {
	return &Vertex{Phi: v.Phi, Lam: v.Lam, X: v.X, Y: v.Y}
}

// Descend moves the vertex along its velocity for the given timestep.
func (v *Vertex) Descend(timestep float64) {
	v.X += timestep * v.VelX
	v.Y += timestep * v.VelY
}

// addNeighbor registers an incident element. The element constructor and the
// topology mutations are the only callers; a duplicate registration means the
// bidirectional invariant is already broken.
func (v *Vertex) addNeighbor(e *Element) {
	for _, ef := range v.forces {
		if ef.e == e {
			panic(fmt.Errorf("%w: element registered twice on vertex (%g, %g)", ErrAdjacency, v.Phi, v.Lam))
		}
	}
	v.forces = append(v.forces, elementForce{e: e})
}

func (v *Vertex) removeNeighbor(e *Element) {
	for i, ef := range v.forces {
		if ef.e == e {
			v.forces = append(v.forces[:i], v.forces[i+1:]...)
			return
		}
	}
	panic(fmt.Errorf("%w: removing element not incident to vertex (%g, %g)", ErrAdjacency, v.Phi, v.Lam))
}

// TransferNeighbor atomically moves one incident element from v to another
// vertex: v forgets the element, the destination learns it, and the element's
// corner reference is redirected, all before any caller can observe the mesh
// again. This is the one primitive tearing and stitching are built from.
func (v *Vertex) TransferNeighbor(e *Element, to *Vertex) {
	v.removeNeighbor(e)
	to.addNeighbor(e)
	e.replaceCorner(v, to)
}

// setForce records the force contribution of one incident element.
func (v *Vertex) setForce(e *Element, fx, fy float64) {
	for i := range v.forces {
		if v.forces[i].e == e {
			v.forces[i].fx = fx
			v.forces[i].fy = fy
			return
		}
	}
	panic(fmt.Errorf("%w: force from element not incident to vertex (%g, %g)", ErrAdjacency, v.Phi, v.Lam))
}

// NetForce sums the per-element force contributions.
func (v *Vertex) NetForce() (fx, fy float64) {
	for _, ef := range v.forces {
		fx += ef.fx
		fy += ef.fy
	}
	return fx, fy
}

// Elements returns the incident elements in registration order.
func (v *Vertex) Elements() []*Element {
	out := make([]*Element, len(v.forces))
	for i, ef := range v.forces {
		out[i] = ef.e
	}
	return out
}

func (v *Vertex) degree() int { return len(v.forces) }

// OnEdge reports whether the vertex lies on the open boundary.
func (v *Vertex) OnEdge() bool {
	return v.clockwise != nil && v.widdershins != nil
}

// Clockwise returns the next boundary vertex in clockwise order, nil for an
// interior vertex.
func (v *Vertex) Clockwise() *Vertex { return v.clockwise }

// Widdershins returns the next boundary vertex in widdershins order, nil for
// an interior vertex.
func (v *Vertex) Widdershins() *Vertex { return v.widdershins }

// setWiddershins links w as the widdershins neighbor of v, keeping the two
// directions of the boundary relation consistent in one operation.
func (v *Vertex) setWiddershins(w *Vertex) {
	v.widdershins = w
	w.clockwise = v
}

// clearEdge removes the vertex from the boundary ring. The neighbors must
// have been relinked already.
func (v *Vertex) clearEdge() {
	v.clockwise = nil
	v.widdershins = nil
}

// EdgeDirection returns the outward unit normal of the boundary at this
// vertex, bisecting the exterior angle between the two incident boundary
// edges. If the two edges fold back on each other exactly, the zero-column
// normalization policy picks the x-axis.
func (v *Vertex) EdgeDirection() (x, y float64) {
	v.mustBeOnEdge("edge direction")
	cwX, cwY := unit(v.clockwise.X-v.X, v.clockwise.Y-v.Y)
	wsX, wsY := unit(v.widdershins.X-v.X, v.widdershins.Y-v.Y)
	hat := utils.NewMatrix(2, 1, -(cwX + wsX), -(cwY + wsY)).Norm()
	return hat.At(0, 0), hat.At(1, 0)
}

// EdgeAngle returns the interior angle of the boundary at this vertex,
// measured widdershins from the clockwise edge through the mesh interior, in
// [0, 2pi). If any incident element is locally inverted in the deformed
// frame, the angle comes back negated: a fold signal, not a usable angle.
func (v *Vertex) EdgeAngle() float64 {
	v.mustBeOnEdge("edge angle")
	aCW := math.Atan2(v.clockwise.Y-v.Y, v.clockwise.X-v.X)
	aWS := math.Atan2(v.widdershins.Y-v.Y, v.widdershins.X-v.X)
	angle := math.Mod(aWS-aCW, 2*math.Pi)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	for _, ef := range v.forces {
		if !ef.e.IsDegenerate() && ef.e.deformedArea() < 0 {
			return -angle
		}
	}
	return angle
}

// NeighborsInOrder reconstructs the circular visiting order of the incident
// elements of a boundary vertex, starting with the element that touches the
// widdershins neighbor and ending with the one that touches the clockwise
// neighbor, each consecutive pair sharing an edge. A chain that cannot be
// completed means the adjacency bookkeeping is corrupt, which is fatal.
func (v *Vertex) NeighborsInOrder() []*Element {
	v.mustBeOnEdge("ordered neighbors")
	var start *Element
	for _, ef := range v.forces {
		if ef.e.hasCorner(v.widdershins) {
			start = ef.e
			break
		}
	}
	if start == nil {
		panic(fmt.Errorf("%w: no incident element touches the widdershins neighbor of (%g, %g)",
			ErrAdjacency, v.Phi, v.Lam))
	}
	ordered := []*Element{start}
	visited := map[*Element]bool{start: true}
	for len(ordered) < len(v.forces) {
		last := ordered[len(ordered)-1]
		var next *Element
		for _, ef := range v.forces {
			if !visited[ef.e] && ef.e.IsAdjacentTo(last) {
				next = ef.e
				break
			}
		}
		if next == nil {
			panic(fmt.Errorf("%w: incident element chain does not close at (%g, %g)",
				ErrAdjacency, v.Phi, v.Lam))
		}
		visited[next] = true
		ordered = append(ordered, next)
	}
	if !ordered[len(ordered)-1].hasCorner(v.clockwise) {
		panic(fmt.Errorf("%w: incident element chain does not end at the clockwise neighbor of (%g, %g)",
			ErrAdjacency, v.Phi, v.Lam))
	}
	return ordered
}

// GeographicDistanceTo measures the undeformed-frame distance to an adjacent
// vertex, using the local coordinates of an element both vertices touch.
// Returns ErrNotAdjacent if they share no element.
func (v *Vertex) GeographicDistanceTo(u *Vertex) (float64, error) {
	for _, ef := range v.forces {
		e := ef.e
		if !e.hasCorner(u) {
			continue
		}
		vx, vy := e.undeformedOf(v)
		ux, uy := e.undeformedOf(u)
		return math.Hypot(ux-vx, uy-vy), nil
	}
	return 0, ErrNotAdjacent
}

func (v *Vertex) mustBeOnEdge(op string) {
	if !v.OnEdge() {
		panic(fmt.Errorf("%w: %s requested for interior vertex (%g, %g)", ErrAdjacency, op, v.Phi, v.Lam))
	}
}

func unit(x, y float64) (float64, float64) {
	mag := math.Hypot(x, y)
	if mag == 0 {
		return 0, 0
	}
	return x / mag, y / mag
}
