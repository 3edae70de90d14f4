package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rightTriangle builds a unit right triangle at its undeformed configuration
// with the given material parameters.
func rightTriangle(t *testing.T, lambda, mu float64) (*Element, [3]*Vertex) {
	t.Helper()
	corners := [3]*Vertex{
		newVertex(0, 0, 0, 0),
		newVertex(0, 0.1, 1, 0),
		newVertex(0.1, 0, 0, 1),
	}
	coords := [3][2]float64{{0, 0}, {1, 0}, {0, 1}}
	e, err := newElement(math.Inf(1), lambda, mu, 1, corners, coords, 0, 0)
	require.NoError(t, err)
	return e, corners
}

func TestElementNegativeAreaRejected(t *testing.T) {
	corners := [3]*Vertex{
		newVertex(0, 0, 0, 0),
		newVertex(0, 0.1, 1, 0),
		newVertex(0.1, 0, 0, 1),
	}
	// Clockwise undeformed corners: a construction bug.
	coords := [3][2]float64{{0, 0}, {0, 1}, {1, 0}}
	_, err := newElement(1, 1, 1, 1, corners, coords, 0, 0)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestElementIdentityEnergyZero(t *testing.T) {
	e, _ := rightTriangle(t, 1, 1)
	assert.Equal(t, 0.5, e.Area())
	assert.Zero(t, e.CurrentEnergy())
}

func TestElementRotationInvariance(t *testing.T) {
	e, corners := rightTriangle(t, 1.5, 0.8)
	theta := 0.7
	sin, cos := math.Sincos(theta)
	for _, v := range corners {
		x, y := v.X, v.Y
		v.X = cos*x - sin*y
		v.Y = sin*x + cos*y
	}
	assert.InDelta(t, 0, e.CurrentEnergy(), 1e-12)
}

func TestElementStretchedEnergy(t *testing.T) {
	e, corners := rightTriangle(t, 1, 1)
	for _, v := range corners {
		v.X *= 2
		v.Y *= 2
	}
	// F = 2R for a rotation R: J = 4, I1 = 8.
	want := (0.5*(8-2-2*math.Log(4)) + 0.5*math.Log(4)*math.Log(4)) * 0.5
	assert.InDelta(t, want, e.CurrentEnergy(), 1e-12)
	assert.InDelta(t, 4, e.DeformationGradient().Det(), 1e-12)
}

func TestElementDegenerateEnergyZero(t *testing.T) {
	a := newVertex(0, 0, 0, 0)
	b := newVertex(0, 0.1, 1, 0)
	e := &Element{
		strength: 1, lambda: 1, mu: 1, weight: 1,
		corners:    [3]*Vertex{a, a, b},
		undeformed: [3][2]float64{{0, 0}, {1, 0}, {0, 1}},
		area:       0.5,
	}
	assert.True(t, e.IsDegenerate())
	assert.Zero(t, e.CurrentEnergy())
	assert.Zero(t, e.MaxPrincipalStress())
	assert.Equal(t, [3][2]float64{}, e.cornerForces())
}

func TestElementFoldFlagged(t *testing.T) {
	e, corners := rightTriangle(t, 1, 1)
	corners[2].Y = -1 // flip the triangle through its base
	assert.True(t, e.IsInverted())
	assert.True(t, math.IsInf(e.CurrentEnergy(), 1), "a fold must report +Inf, not NaN")
	assert.False(t, math.IsNaN(e.CurrentEnergy()))
}

func TestElementDeltaEnergy(t *testing.T) {
	e, corners := rightTriangle(t, 1, 1)
	assert.Zero(t, e.ComputeAndSaveEnergy())

	corners[1].X = 1.3
	current := e.CurrentEnergy()
	assert.Greater(t, current, 0.0)
	assert.InDelta(t, current, e.DeltaEnergy(), 1e-14)

	saved := e.ComputeAndSaveEnergy()
	assert.Equal(t, current, saved)
	assert.InDelta(t, 0, e.DeltaEnergy(), 1e-14)
}

func TestElementBarycentricRoundTrip(t *testing.T) {
	e, corners := rightTriangle(t, 1, 1)
	corners[0].X, corners[0].Y = 2, 3
	corners[1].X, corners[1].Y = 5, 3.5
	corners[2].X, corners[2].Y = 2.5, 7
	for i, v := range corners {
		X, Y := e.MapUndeformedToDeformed(e.undeformed[i][0], e.undeformed[i][1])
		assert.InDelta(t, v.X, X, 1e-14)
		assert.InDelta(t, v.Y, Y, 1e-14)
	}

	// The centroid interpolates with equal weights.
	X, Y := e.MapUndeformedToDeformed(1.0/3, 1.0/3)
	assert.InDelta(t, (2+5+2.5)/3, X, 1e-12)
	assert.InDelta(t, (3+3.5+7)/3, Y, 1e-12)
}

func TestElementContainsUndeformed(t *testing.T) {
	e, _ := rightTriangle(t, 1, 1)
	assert.True(t, e.ContainsUndeformed(1.0/3, 1.0/3))
	assert.True(t, e.ContainsUndeformed(0, 0))
	assert.True(t, e.ContainsUndeformed(0.5, 0.5))
	assert.False(t, e.ContainsUndeformed(-0.1, 0))
	assert.False(t, e.ContainsUndeformed(2, 2))
	assert.False(t, e.ContainsUndeformed(0.6, 0.6))

	// Opening the hypotenuse (across from corner 0) admits points past it.
	assert.True(t, e.ContainsUndeformedOpen(0.6, 0.6, 0))
	assert.False(t, e.ContainsUndeformedOpen(-0.1, 0.5, 0))
}

func TestElementAdjacency(t *testing.T) {
	a := newVertex(0, 0, 0, 0)
	b := newVertex(0, 0.1, 1, 0)
	c := newVertex(0.1, 0, 0, 1)
	d := newVertex(0.1, 0.1, 1, 1)
	far := newVertex(0.2, 0.2, 2, 2)
	g := newVertex(0.2, 0.3, 3, 2)

	e1, err := newElement(1, 1, 1, 1, [3]*Vertex{a, b, c}, [3][2]float64{{0, 0}, {1, 0}, {0, 1}}, 0, 0)
	require.NoError(t, err)
	e2, err := newElement(1, 1, 1, 1, [3]*Vertex{b, d, c}, [3][2]float64{{1, 0}, {1, 1}, {0, 1}}, 0, 1)
	require.NoError(t, err)
	e3, err := newElement(1, 1, 1, 1, [3]*Vertex{c, far, g}, [3][2]float64{{0, 1}, {1, 2}, {0, 2}}, 1, 0)
	require.NoError(t, err)

	assert.True(t, e1.IsAdjacentTo(e2), "shared edge")
	assert.True(t, e2.IsAdjacentTo(e1))
	assert.False(t, e1.IsAdjacentTo(e3), "kitty-corner does not count")
	assert.False(t, e3.IsAdjacentTo(e2))
}

func TestElementForcesOpposeDisplacement(t *testing.T) {
	e, corners := rightTriangle(t, 1, 1)
	assert.Equal(t, [3][2]float64{}, e.cornerForces(), "no force at rest")

	corners[1].X = 1.4
	f := e.cornerForces()
	assert.Less(t, f[1][0], 0.0, "the stretched corner is pulled back")

	// The forces are a gradient of a translation-invariant energy, so they
	// must sum to zero.
	var sx, sy float64
	for i := 0; i < 3; i++ {
		sx += f[i][0]
		sy += f[i][1]
	}
	assert.InDelta(t, 0, sx, 1e-12)
	assert.InDelta(t, 0, sy, 1e-12)
}

func TestElementForceMatchesNumericalGradient(t *testing.T) {
	e, corners := rightTriangle(t, 1.2, 0.9)
	corners[0].X, corners[0].Y = -0.1, 0.05
	corners[1].X, corners[1].Y = 1.1, -0.2
	corners[2].X, corners[2].Y = 0.15, 1.3

	f := e.cornerForces()
	const h = 1e-6
	for i, v := range corners {
		v.X += h
		ePlus := e.CurrentEnergy()
		v.X -= 2 * h
		eMinus := e.CurrentEnergy()
		v.X += h
		assert.InDelta(t, -(ePlus-eMinus)/(2*h), f[i][0], 1e-5, "x gradient of corner %d", i)

		v.Y += h
		ePlus = e.CurrentEnergy()
		v.Y -= 2 * h
		eMinus = e.CurrentEnergy()
		v.Y += h
		assert.InDelta(t, -(ePlus-eMinus)/(2*h), f[i][1], 1e-5, "y gradient of corner %d", i)
	}
}

func TestElementMaxPrincipalStress(t *testing.T) {
	e, corners := rightTriangle(t, 1, 1)
	assert.InDelta(t, 0, e.MaxPrincipalStress(), 1e-12)

	for _, v := range corners {
		v.X *= 2
		v.Y *= 2
	}
	// B = 4I, J = 4: sigma = (mu*3 + lambda*ln 4)/4 on both axes.
	want := (3 + math.Log(4)) / 4
	assert.InDelta(t, want, e.MaxPrincipalStress(), 1e-12)
}
