package mesh

import (
	"math"
	"sync"
)

const (
	initialTimestep = 0.1
	// The backtracking line search gives up once the timestep has shrunk by
	// this factor within one step.
	minStepFactor = 0x1p-30
)

// Mesh owns the full vertex and element collection and drives the
// relaxation/tear/stitch state machine. All mutation happens through Update,
// Rupture, Stitch and Finalise, each of which holds the step mutex for its
// whole duration; readers (Snapshot, Criteria, Save) take the same mutex and
// therefore always observe a consistent mesh between steps.
type Mesh struct {
	cfg Config

	vertices []*Vertex
	elements []*Element

	totalEnergy float64
	timestep    float64
	tearLength  float64 // geographic length of tearing consumed so far
	foldCount   int     // boundary fold sites seen by the last Rupture scan
	done        bool

	mu sync.Mutex
}

// New builds the undeformed spheroid grid, places it on the plane with the
// configured initial condition, and opens the initial cut along the
// antimeridian.
func New(cfg Config) (*Mesh, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	proj, err := projectionByName(cfg.InitialCondition)
	if err != nil {
		return nil, err
	}

	m := &Mesh{cfg: cfg, timestep: initialTimestep}

	res := cfg.Resolution
	rows, cols := 2*res, 4*res
	step := math.Pi / float64(2*res)

	// One vertex per grid node; a single vertex per pole. The two
	// antimeridian columns (j = 0 at -pi, j = cols at +pi) are distinct
	// vertices: they form the initial boundary.
	south := newVertexAt(-math.Pi/2, 0, proj)
	north := newVertexAt(math.Pi/2, 0, proj)
	grid := make([][]*Vertex, rows+1)
	m.vertices = append(m.vertices, south)
	for i := 0; i <= rows; i++ {
		grid[i] = make([]*Vertex, cols+1)
		for j := 0; j <= cols; j++ {
			switch i {
			case 0:
				grid[i][j] = south
			case rows:
				grid[i][j] = north
			default:
				phi := -math.Pi/2 + float64(i)*step
				lam := -math.Pi + float64(j)*step
				grid[i][j] = newVertexAt(phi, lam, proj)
				m.vertices = append(m.vertices, grid[i][j])
			}
		}
	}
	m.vertices = append(m.vertices, north)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if err := m.buildCell(grid, i, j, step); err != nil {
				return nil, err
			}
		}
	}

	// Initial boundary ring, walked widdershins (interior on the left):
	// south pole, up the +pi column, north pole, down the -pi column.
	ring := []*Vertex{south}
	for i := 1; i < rows; i++ {
		ring = append(ring, grid[i][cols])
	}
	ring = append(ring, north)
	for i := rows - 1; i >= 1; i-- {
		ring = append(ring, grid[i][0])
	}
	for i, v := range ring {
		v.setWiddershins(ring[(i+1)%len(ring)])
	}

	for _, e := range m.elements {
		m.totalEnergy += e.ComputeAndSaveEnergy()
	}
	return m, nil
}

func newVertexAt(phi, lam float64, proj projection) *Vertex {
	x, y := proj(phi, lam)
	return newVertex(phi, lam, x, y)
}

// buildCell subdivides grid cell (i, j) into triangles: one at each pole row,
// two everywhere else, all counterclockwise in the undeformed frame.
func (m *Mesh) buildCell(grid [][]*Vertex, i, j int, step float64) error {
	rows := 2 * m.cfg.Resolution
	weight := cell(m.cfg.Weights, i, j)
	scale := cell(m.cfg.Scales, i, j)
	strength := m.cfg.Strength * weight

	phi0 := -math.Pi/2 + float64(i)*step
	phi1 := phi0 + step
	lam0 := -math.Pi + float64(j)*step
	lam1 := lam0 + step
	phiC := (phi0 + phi1) / 2
	lamC := (lam0 + lam1) / 2

	local := func(phi, lam float64) [2]float64 {
		return m.localCoords(phi, lam, phiC, lamC, scale)
	}

	add := func(corners [3]*Vertex, coords [3][2]float64) error {
		e, err := newElement(strength, m.cfg.Lambda, m.cfg.Mu, weight, corners, coords, i, j)
		if err != nil {
			return err
		}
		m.elements = append(m.elements, e)
		return nil
	}

	sw, se := grid[i][j], grid[i][j+1]
	nw, ne := grid[i+1][j], grid[i+1][j+1]
	switch {
	case i == 0:
		// Pole corners keep lam of the cell center; their parallel radius
		// is zero so the local x vanishes either way.
		return add([3]*Vertex{sw, ne, nw},
			[3][2]float64{local(phi0, lamC), local(phi1, lam1), local(phi1, lam0)})
	case i == rows-1:
		return add([3]*Vertex{sw, se, ne},
			[3][2]float64{local(phi0, lam0), local(phi0, lam1), local(phi1, lamC)})
	default:
		if err := add([3]*Vertex{sw, se, ne},
			[3][2]float64{local(phi0, lam0), local(phi0, lam1), local(phi1, lam1)}); err != nil {
			return err
		}
		return add([3]*Vertex{sw, ne, nw},
			[3][2]float64{local(phi0, lam0), local(phi1, lam1), local(phi1, lam0)})
	}
}

// localCoords maps a spherical coordinate into a cell's tangent frame on the
// reference spheroid, scaled by the cell's scale factor.
func (m *Mesh) localCoords(phi, lam, phiC, lamC, scale float64) [2]float64 {
	e2 := m.cfg.Eccentricity * m.cfg.Eccentricity
	sinPhi := math.Sin(phi)
	sinPhiC := math.Sin(phiC)
	// Parallel radius at the point's own latitude, meridional radius at the
	// cell center.
	parallel := math.Cos(phi) / math.Sqrt(1-e2*sinPhi*sinPhi)
	meridional := (1 - e2) / math.Pow(1-e2*sinPhiC*sinPhiC, 1.5)
	return [2]float64{
		scale * (lam - lamC) * parallel,
		scale * (phi - phiC) * meridional,
	}
}

// Update performs one relaxation step: the force on every vertex is the
// negative energy gradient summed over its incident elements, and every
// vertex descends along its force by a shared adaptive timestep. The step is
// only accepted if it lowers the total energy, so the descent is monotone.
// Returns false once no step reduces the energy by more than the configured
// precision, which is the local-convergence signal.
func (m *Mesh) Update() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return false
	}

	e0 := m.computeForces()
	for _, v := range m.vertices {
		v.VelX, v.VelY = v.NetForce()
	}

	oldX := make([]float64, len(m.vertices))
	oldY := make([]float64, len(m.vertices))
	for i, v := range m.vertices {
		oldX[i], oldY[i] = v.X, v.Y
	}

	dt := m.timestep
	for {
		for _, v := range m.vertices {
			v.Descend(dt)
		}
		e1 := m.currentEnergy()
		if e1 < e0 { // NaN or +Inf never satisfies this
			m.totalEnergy = e1
			m.timestep = dt * 2 // let the step length recover
			return e0-e1 > m.cfg.Precision
		}
		for i, v := range m.vertices {
			v.X, v.Y = oldX[i], oldY[i]
		}
		dt /= 2
		if dt < m.timestep*minStepFactor {
			m.totalEnergy = e0
			return false
		}
	}
}

// computeForces refreshes every vertex's per-element force contributions and
// returns the total energy of the configuration they were computed at.
func (m *Mesh) computeForces() float64 {
	var total float64
	for _, e := range m.elements {
		f := e.cornerForces()
		for i, v := range e.corners {
			v.setForce(e, f[i][0], f[i][1])
		}
		total += e.CurrentEnergy()
	}
	return total
}

func (m *Mesh) currentEnergy() float64 {
	var total float64
	for _, e := range m.elements {
		total += e.CurrentEnergy()
	}
	return total
}

// Finalise freezes the mesh: the total energy statistic stops moving and
// Update, Rupture and Stitch all refuse further mutation.
func (m *Mesh) Finalise() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = true
}

// Done reports whether Finalise has been called.
func (m *Mesh) Done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// TotalEnergy returns the energy of the last accepted configuration.
func (m *Mesh) TotalEnergy() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalEnergy
}

// TearLength returns the geographic length of tearing consumed so far.
func (m *Mesh) TearLength() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tearLength
}

// FoldCount returns the number of boundary fold sites the most recent
// Rupture scan encountered. Nonzero means some boundary vertices reported a
// negative edge angle and were excluded from tear candidacy.
func (m *Mesh) FoldCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.foldCount
}

// NumVertices returns the current vertex count.
func (m *Mesh) NumVertices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vertices)
}

// NumElements returns the element count, which never changes after
// construction.
func (m *Mesh) NumElements() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.elements)
}

// IsFinite reports whether every vertex position and the total energy are
// finite. The engine never repairs non-finite state on its own; the
// orchestrator decides whether to abort.
func (m *Mesh) IsFinite() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if math.IsNaN(m.totalEnergy) || math.IsInf(m.totalEnergy, 0) {
		return false
	}
	for _, v := range m.vertices {
		if math.IsNaN(v.X) || math.IsInf(v.X, 0) || math.IsNaN(v.Y) || math.IsInf(v.Y, 0) {
			return false
		}
	}
	return true
}

// VertexState is one vertex's coordinates as seen by a Snapshot.
type VertexState struct {
	Phi, Lam float64
	X, Y     float64
	OnEdge   bool
}

// Snapshot copies the current vertex coordinates for a concurrent reader
// such as a renderer. The copy is taken between steps, never mid-mutation.
func (m *Mesh) Snapshot() []VertexState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]VertexState, len(m.vertices))
	for i, v := range m.vertices {
		out[i] = VertexState{Phi: v.Phi, Lam: v.Lam, X: v.X, Y: v.Y, OnEdge: v.OnEdge()}
	}
	return out
}
