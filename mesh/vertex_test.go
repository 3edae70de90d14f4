package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPanicsAdjacency(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value is not an error: %v", r)
		assert.ErrorIs(t, err, ErrAdjacency)
	}()
	fn()
}

func TestVertexDescend(t *testing.T) {
	v := newVertex(0, 0, 1, 2)
	v.VelX, v.VelY = 3, -4
	v.Descend(0.5)
	assert.Equal(t, 2.5, v.X)
	assert.Equal(t, 0.0, v.Y)
}

func TestVertexSiblingSharesPosition(t *testing.T) {
	v := newVertex(0.3, -1.2, 5, 6)
	s := newSibling(v)
	assert.Equal(t, v.Phi, s.Phi)
	assert.Equal(t, v.Lam, s.Lam)
	assert.Equal(t, v.X, s.X)
	assert.Equal(t, v.Y, s.Y)
	assert.Zero(t, s.degree())
	assert.False(t, s.OnEdge())
}

func TestVertexNeighborBookkeeping(t *testing.T) {
	e, corners := rightTriangle(t, 1, 1)
	v := corners[0]
	assert.Equal(t, 1, v.degree())
	assert.Equal(t, []*Element{e}, v.Elements())

	assertPanicsAdjacency(t, func() { v.addNeighbor(e) })

	stranger := newVertex(1, 1, 0, 0)
	assertPanicsAdjacency(t, func() { stranger.removeNeighbor(e) })
}

func TestVertexTransferNeighbor(t *testing.T) {
	e, corners := rightTriangle(t, 1, 1)
	v := corners[1]
	w := newVertex(v.Phi, v.Lam, v.X, v.Y)

	v.TransferNeighbor(e, w)

	assert.Zero(t, v.degree())
	assert.Equal(t, 1, w.degree())
	assert.False(t, e.hasCorner(v))
	assert.True(t, e.hasCorner(w))
	assert.Same(t, w, e.Corner(1))
}

func TestVertexNetForce(t *testing.T) {
	e, corners := rightTriangle(t, 1, 1)
	v := corners[0]
	v.setForce(e, 2, -1)
	fx, fy := v.NetForce()
	assert.Equal(t, 2.0, fx)
	assert.Equal(t, -1.0, fy)

	stranger := newVertex(1, 1, 0, 0)
	assertPanicsAdjacency(t, func() { stranger.setForce(e, 0, 0) })
}

func TestVertexBoundaryLinks(t *testing.T) {
	a := newVertex(0, 0, 0, 0)
	b := newVertex(0, 0.1, 1, 0)
	c := newVertex(0, 0.2, 2, 0)

	a.setWiddershins(b)
	b.setWiddershins(c)

	assert.Same(t, b, a.Widdershins())
	assert.Same(t, a, b.Clockwise())
	assert.Same(t, c, b.Widdershins())
	assert.True(t, b.OnEdge())
	assert.False(t, a.OnEdge(), "only one link set")

	b.clearEdge()
	assert.False(t, b.OnEdge())
}

func TestVertexEdgeGeometry(t *testing.T) {
	v := newVertex(0, 0, 0, 0)
	cw := newVertex(0, 0.1, 1, 0)
	ws := newVertex(0.1, 0, 0, 1)
	cw.setWiddershins(v)
	v.setWiddershins(ws)

	assert.InDelta(t, math.Pi/2, v.EdgeAngle(), 1e-15)

	x, y := v.EdgeDirection()
	assert.InDelta(t, -math.Sqrt2/2, x, 1e-15)
	assert.InDelta(t, -math.Sqrt2/2, y, 1e-15)
}

func TestVertexEdgeAngleFlagsFold(t *testing.T) {
	v := newVertex(0, 0, 0, 0)
	cw := newVertex(0, 0.1, 1, 0)
	ws := newVertex(0.1, 0, 0, 1)
	cw.setWiddershins(v)
	v.setWiddershins(ws)

	// Deformed corner order is clockwise while the undeformed coordinates
	// stay counterclockwise: the element is folded through itself.
	_, err := newElement(1, 1, 1, 1, [3]*Vertex{v, ws, cw},
		[3][2]float64{{0, 0}, {1, 0}, {0, 1}}, 0, 0)
	require.NoError(t, err)

	assert.InDelta(t, -math.Pi/2, v.EdgeAngle(), 1e-15)
}

func TestVertexInteriorEdgeOpsPanic(t *testing.T) {
	v := newVertex(0, 0, 0, 0)
	assertPanicsAdjacency(t, func() { v.EdgeAngle() })
	assertPanicsAdjacency(t, func() { v.EdgeDirection() })
	assertPanicsAdjacency(t, func() { v.NeighborsInOrder() })
}

// fanAround builds a boundary vertex at the origin with three incident
// elements spanning a half-disc, widdershins neighbor first.
func fanAround(t *testing.T) (v *Vertex, ring [4]*Vertex, elems [3]*Element) {
	t.Helper()
	v = newVertex(0, 0, 0, 0)
	ring[0] = newVertex(0, 0.1, 1, 0)
	ring[1] = newVertex(0.1, 0.1, 0, 1)
	ring[2] = newVertex(0.1, -0.1, -1, 0)
	ring[3] = newVertex(0, -0.1, 0, -1)
	coords := [4][2]float64{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}
	for i := 0; i < 3; i++ {
		e, err := newElement(1, 1, 1, 1,
			[3]*Vertex{v, ring[i], ring[i+1]},
			[3][2]float64{{0, 0}, coords[i], coords[i+1]}, 0, i)
		require.NoError(t, err)
		elems[i] = e
	}
	v.setWiddershins(ring[0])
	ring[3].setWiddershins(v)
	return v, ring, elems
}

func TestVertexNeighborsInOrder(t *testing.T) {
	v, _, elems := fanAround(t)
	ordered := v.NeighborsInOrder()
	require.Len(t, ordered, 3)
	assert.Same(t, elems[0], ordered[0])
	assert.Same(t, elems[1], ordered[1])
	assert.Same(t, elems[2], ordered[2])
}

func TestVertexNeighborsInOrderBrokenChain(t *testing.T) {
	v, _, elems := fanAround(t)

	// Detach the middle element: the chain from the widdershins side can no
	// longer reach the clockwise side.
	v.removeNeighbor(elems[1])
	elems[1].replaceCorner(v, newVertex(0.2, 0.2, 5, 5))

	assertPanicsAdjacency(t, func() { v.NeighborsInOrder() })
}

func TestVertexGeographicDistance(t *testing.T) {
	v, ring, _ := fanAround(t)

	d, err := v.GeographicDistanceTo(ring[0])
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-15)

	d, err = ring[0].GeographicDistanceTo(ring[1])
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2, d, 1e-15)

	far := newVertex(1, 1, 9, 9)
	_, err = v.GeographicDistanceTo(far)
	assert.ErrorIs(t, err, ErrNotAdjacent)
}
