package mesh

import (
	"fmt"
	"math"

	"github.com/jkunimune15/Rubber-Earth/utils"
)

// Element is an independent triangular finite element. Its three corners are
// shared with other elements, but the undeformed local coordinate of each
// corner is private to this element: after a tear the same vertex can sit in
// elements with different local reference frames.
type Element struct {
	strength   float64 // max principal stress before this element may tear
	lambda, mu float64 // Lamé parameters
	weight     float64 // importance multiplier on energy and forces

	corners    [3]*Vertex
	undeformed [3][2]float64
	area       float64 // undeformed area, fixed at construction

	defaultEnergy float64

	row, col int // cell of the weight/scale grids this element came from
}

// newElement wires a triangle into the mesh, registering itself with each
// corner. The undeformed corner order must be counterclockwise: a negative
// signed area is a construction bug.
func newElement(strength, lambda, mu, weight float64,
	corners [3]*Vertex, coords [3][2]float64, row, col int) (*Element, error) {

	area := triangleArea(coords[0], coords[1], coords[2])
	if area < 0 || math.IsNaN(area) {
		return nil, fmt.Errorf("%w: element at cell (%d, %d) has undeformed area %g",
			ErrConfig, row, col, area)
	}
	e := &Element{
		strength: strength, lambda: lambda, mu: mu, weight: weight,
		corners: corners, undeformed: coords, area: area,
		row: row, col: col,
	}
	for _, v := range corners {
		v.addNeighbor(e)
	}
	return e, nil
}

func triangleArea(a, b, c [2]float64) float64 {
	return ((b[0]-a[0])*(c[1]-a[1]) - (c[0]-a[0])*(b[1]-a[1])) / 2
}

// Area returns the undeformed area.
func (e *Element) Area() float64 { return e.area }

// Strength returns the tear threshold.
func (e *Element) Strength() float64 { return e.strength }

// Weight returns the importance multiplier.
func (e *Element) Weight() float64 { return e.weight }

// Cell returns the grid cell this element subdivides.
func (e *Element) Cell() (row, col int) { return e.row, e.col }

// Corner returns corner i.
func (e *Element) Corner(i int) *Vertex { return e.corners[i] }

func (e *Element) hasCorner(v *Vertex) bool {
	return e.corners[0] == v || e.corners[1] == v || e.corners[2] == v
}

// undeformedOf returns the local coordinates this element assigns to one of
// its corners.
func (e *Element) undeformedOf(v *Vertex) (x, y float64) {
	for i, c := range e.corners {
		if c == v {
			return e.undeformed[i][0], e.undeformed[i][1]
		}
	}
	panic(fmt.Errorf("%w: vertex (%g, %g) is not a corner of this element", ErrAdjacency, v.Phi, v.Lam))
}

// replaceCorner redirects one corner slot from old to new. Only
// Vertex.TransferNeighbor calls this; the slot must exist.
func (e *Element) replaceCorner(old, new *Vertex) {
	for i, c := range e.corners {
		if c == old {
			e.corners[i] = new
			return
		}
	}
	panic(fmt.Errorf("%w: replacing corner (%g, %g) that this element does not reference",
		ErrAdjacency, old.Phi, old.Lam))
}

// IsDegenerate reports whether two corner slots reference the same vertex,
// which happens only transiently during topology mutation.
func (e *Element) IsDegenerate() bool {
	return e.corners[0] == e.corners[1] || e.corners[1] == e.corners[2] || e.corners[0] == e.corners[2]
}

// DeformationGradient assembles F, the 2x2 linear map from the element's
// undeformed frame to its current deformed shape. Each corner contributes a
// term of its current planar position against the other two corners'
// undeformed positions, normalized by twice the undeformed area.
func (e *Element) DeformationGradient() *utils.Matrix {
	F := utils.NewMatrix(2, 2)
	for i := 0; i < 3; i++ {
		X, Y := e.corners[i].X, e.corners[i].Y
		b := e.undeformed[(i+1)%3]
		c := e.undeformed[(i+2)%3]
		F = F.Plus(utils.NewMatrix(2, 2,
			X*(b[0]-c[0]), X*(b[1]-c[1]),
			Y*(b[0]-c[0]), Y*(b[1]-c[1])).Over(2 * e.area))
	}
	return F
}

// CurrentEnergy evaluates the Neo-Hookean strain energy of the current
// configuration, scaled by the element's weight. A degenerate element stores
// no energy. An inverted configuration (J <= 0) reports +Inf: the fold is
// flagged instead of leaking a NaN out of the logarithm.
func (e *Element) CurrentEnergy() float64 {
	if e.IsDegenerate() {
		return 0
	}
	F := e.DeformationGradient()
	J := F.Det()
	if J <= 0 {
		return math.Inf(1)
	}
	B := F.Times(F.T())
	i1 := B.Tr()
	logJ := math.Log(J)
	density := e.mu/2*(i1-2-2*logJ) + e.lambda/2*logJ*logJ
	return e.weight * density * e.area
}

// ComputeAndSaveEnergy evaluates the current energy and stores it as the new
// default. Called whenever the topology changes and the "before" baseline
// must be reset.
func (e *Element) ComputeAndSaveEnergy() float64 {
	e.defaultEnergy = e.CurrentEnergy()
	return e.defaultEnergy
}

// DeltaEnergy is the current energy minus the last saved default: the
// quantity the stitch acceptance test actually looks at.
func (e *Element) DeltaEnergy() float64 {
	return e.CurrentEnergy() - e.defaultEnergy
}

// IsInverted reports whether the element's deformed configuration has folded
// through itself (det F <= 0).
func (e *Element) IsInverted() bool {
	if e.IsDegenerate() {
		return false
	}
	return e.DeformationGradient().Det() <= 0
}

// deformedArea is the signed area of the triangle in the deformed plane.
func (e *Element) deformedArea() float64 {
	a, b, c := e.corners[0], e.corners[1], e.corners[2]
	return ((b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y)) / 2
}

// cornerForces returns the force on each corner, the negative gradient of the
// element's energy with respect to that corner's planar position. Degenerate
// and inverted configurations contribute nothing; the line search in Update
// never accepts a state that inverts an element, so zero here only matters
// transiently.
func (e *Element) cornerForces() [3][2]float64 {
	var out [3][2]float64
	if e.IsDegenerate() {
		return out
	}
	F := e.DeformationGradient()
	J := F.Det()
	if J <= 0 {
		return out
	}
	FinvT := F.Inv().T()
	// First Piola-Kirchhoff stress of the Neo-Hookean model.
	P := F.Minus(FinvT).Scaled(e.mu).Plus(FinvT.Scaled(e.lambda * math.Log(J)))
	for i := 0; i < 3; i++ {
		b := e.undeformed[(i+1)%3]
		c := e.undeformed[(i+2)%3]
		g := utils.NewMatrix(2, 1, b[0]-c[0], b[1]-c[1])
		f := P.Times(g).Scaled(-e.weight / 2)
		out[i][0] = f.At(0, 0)
		out[i][1] = f.At(1, 0)
	}
	return out
}

// MaxPrincipalStress returns the largest principal Cauchy stress of the
// current configuration. Positive means tension; Rupture compares this
// against the element's strength. Degenerate or inverted elements report 0.
func (e *Element) MaxPrincipalStress() float64 {
	if e.IsDegenerate() {
		return 0
	}
	F := e.DeformationGradient()
	J := F.Det()
	if J <= 0 {
		return 0
	}
	B := F.Times(F.T())
	sigma := B.Minus(utils.Identity(2)).Scaled(e.mu).
		Plus(utils.Identity(2).Scaled(e.lambda * math.Log(J))).
		Over(J)
	vals := sigma.Eigenvalues()
	return vals[0]
}

// barycentric returns the barycentric coordinates of an undeformed-frame
// point with respect to this element's local corner coordinates.
func (e *Element) barycentric(x, y float64) (w [3]float64) {
	a, b, c := e.undeformed[0], e.undeformed[1], e.undeformed[2]
	denom := (b[1]-c[1])*(a[0]-c[0]) - (b[0]-c[0])*(a[1]-c[1])
	w[0] = ((b[1]-c[1])*(x-c[0]) - (b[0]-c[0])*(y-c[1])) / denom
	w[1] = ((c[1]-a[1])*(x-c[0]) - (c[0]-a[0])*(y-c[1])) / denom
	w[2] = 1 - w[0] - w[1]
	return w
}

// ContainsUndeformed reports whether the undeformed point (x, y) falls inside
// this element's undeformed triangle.
func (e *Element) ContainsUndeformed(x, y float64) bool {
	return e.ContainsUndeformedOpen(x, y, -1)
}

// ContainsUndeformedOpen is ContainsUndeformed with one side opened up: the
// sign check for the barycentric coordinate of the vertex across from
// openSide is skipped, so the element acts as the intersection of the two
// remaining half-planes. Used when testing points against a side artificially
// extended past a tear.
func (e *Element) ContainsUndeformedOpen(x, y float64, openSide int) bool {
	w := e.barycentric(x, y)
	for i := 0; i < 3; i++ {
		if i != openSide && w[i] < 0 {
			return false
		}
	}
	return true
}

// MapUndeformedToDeformed interpolates the undeformed point (x, y) to its
// current position on the plane, weighting the corners' deformed positions
// barycentrically.
func (e *Element) MapUndeformedToDeformed(x, y float64) (X, Y float64) {
	w := e.barycentric(x, y)
	for i := 0; i < 3; i++ {
		X += w[i] * e.corners[i].X
		Y += w[i] * e.corners[i].Y
	}
	return X, Y
}

// IsAdjacentTo reports shared-edge adjacency: the two elements reference at
// least two common vertices. A single shared corner does not count.
func (e *Element) IsAdjacentTo(o *Element) bool {
	shared := 0
	for _, v := range e.corners {
		if o.hasCorner(v) {
			shared++
		}
	}
	// A degenerate element can double-count its repeated corner; recount
	// distinct vertices.
	if shared >= 2 && e.IsDegenerate() {
		distinct := map[*Vertex]bool{}
		for _, v := range e.corners {
			if o.hasCorner(v) {
				distinct[v] = true
			}
		}
		shared = len(distinct)
	}
	return shared >= 2
}

func (e *Element) String() string {
	return fmt.Sprintf("Element((%g, %g), (%g, %g), (%g, %g))",
		e.corners[0].Phi, e.corners[0].Lam,
		e.corners[1].Phi, e.corners[1].Lam,
		e.corners[2].Phi, e.corners[2].Lam)
}
