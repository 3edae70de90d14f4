package mesh

import (
	"fmt"
	"math"
)

// tearCandidate is an interior edge (v, u) incident to the boundary vertex v
// that the mesh could open next.
type tearCandidate struct {
	v, u   *Vertex
	score  float64
	length float64
}

// Rupture extends the tear boundary by one edge. It scans every boundary
// vertex for the interior edge whose flanking elements' principal stress most
// exceeds their strength, splits the boundary vertex into two siblings via
// TransferNeighbor, and threads the far vertex into the boundary ring.
// Returns false when no element exceeds its threshold or when the chosen tear
// would overrun the tear-length budget.
func (m *Mesh) Rupture() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return false
	}

	m.foldCount = 0
	var best *tearCandidate
	for _, v := range m.vertices {
		if !v.OnEdge() {
			continue
		}
		if v.EdgeAngle() < 0 {
			// The boundary folds through itself here; tearing into a
			// self-intersection would only corrupt the topology.
			m.foldCount++
			continue
		}
		for _, c := range m.tearCandidatesAt(v) {
			if best == nil || c.score > best.score {
				cc := c
				best = &cc
			}
		}
	}
	if best == nil {
		return false
	}
	if m.tearLength+best.length > m.cfg.TearLength {
		return false
	}

	affected := m.split(best.v, best.u)
	m.tearLength += best.length
	for _, e := range affected {
		e.ComputeAndSaveEnergy()
	}
	return true
}

// tearCandidatesAt enumerates the interior edges at a boundary vertex whose
// stress exceeds the local strength. An edge whose far vertex already sits on
// the boundary is skipped: opening it would cut the sheet in two.
func (m *Mesh) tearCandidatesAt(v *Vertex) []tearCandidate {
	type partner struct {
		u        *Vertex
		flanking []*Element
	}
	var partners []*partner
	for _, e := range v.Elements() {
		for i := 0; i < 3; i++ {
			u := e.Corner(i)
			if u == v {
				continue
			}
			var p *partner
			for _, q := range partners {
				if q.u == u {
					p = q
					break
				}
			}
			if p == nil {
				p = &partner{u: u}
				partners = append(partners, p)
			}
			p.flanking = append(p.flanking, e)
		}
	}

	var out []tearCandidate
	for _, p := range partners {
		if len(p.flanking) != 2 || p.u.OnEdge() {
			continue
		}
		stress := (p.flanking[0].MaxPrincipalStress() + p.flanking[1].MaxPrincipalStress()) / 2
		strength := math.Min(p.flanking[0].Strength(), p.flanking[1].Strength())
		if stress <= strength {
			continue
		}
		length, err := v.GeographicDistanceTo(p.u)
		if err != nil {
			panic(fmt.Errorf("%w: flanked edge without a shared element", ErrAdjacency))
		}
		out = append(out, tearCandidate{v: v, u: p.u, score: stress - strength, length: length})
	}
	return out
}

// split opens the edge (v, u): v is duplicated into a sibling, the incident
// elements on the clockwise side of the edge move to the sibling, and u joins
// the boundary ring between them. Returns the elements whose energy baseline
// must be reset.
func (m *Mesh) split(v, u *Vertex) []*Element {
	ordered := v.NeighborsInOrder()
	k := -1
	for i := 0; i+1 < len(ordered); i++ {
		if ordered[i].hasCorner(u) && ordered[i+1].hasCorner(u) {
			k = i
			break
		}
	}
	if k < 0 {
		panic(fmt.Errorf("%w: elements flanking the tear edge are not consecutive", ErrAdjacency))
	}

	v2 := newSibling(v)
	m.vertices = append(m.vertices, v2)
	for _, e := range ordered[k+1:] {
		v.TransferNeighbor(e, v2)
	}

	// Boundary ring, in clockwise order: ... -> v -> u -> v2 -> old clockwise.
	b := v.Clockwise()
	u.setWiddershins(v)
	v2.setWiddershins(u)
	b.setWiddershins(v2)

	affected := append([]*Element{}, ordered...)
	for _, e := range u.Elements() {
		if e.hasCorner(v) || e.hasCorner(v2) {
			continue
		}
		affected = append(affected, e)
	}
	return affected
}

// Stitch reverses one tear: it looks for a boundary vertex whose two ring
// neighbors are sibling vertices, merges the siblings back into one, and
// accepts the merge only if the energy rise across the affected elements
// stays within the convergence precision. Returns false when no productive
// merge exists.
func (m *Mesh) Stitch() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return false
	}

	for _, u := range m.vertices {
		if !u.OnEdge() {
			continue
		}
		v := u.Widdershins()
		v2 := u.Clockwise()
		if v == v2 || v.Phi != v2.Phi || v.Lam != v2.Lam {
			continue
		}
		if v2.Clockwise() == v {
			// The ring would degenerate to a self-link; a real boundary
			// always retains the antimeridian cut, so this pair is stale.
			continue
		}
		if m.tryMerge(v, u, v2) {
			return true
		}
	}
	return false
}

// tryMerge tentatively collapses siblings v and v2 across the tip vertex u,
// keeping the merge only if the affected elements' energy rises by no more
// than the precision tolerance.
func (m *Mesh) tryMerge(v, u, v2 *Vertex) bool {
	length, err := v.GeographicDistanceTo(u)
	if err != nil {
		panic(fmt.Errorf("%w: boundary neighbors share no element", ErrAdjacency))
	}

	affected := elementUnion(v.Elements(), v2.Elements(), u.Elements())
	for _, e := range affected {
		e.ComputeAndSaveEnergy()
	}

	oldX, oldY := v.X, v.Y
	moved := v2.Elements()
	v.X = (v.X + v2.X) / 2
	v.Y = (v.Y + v2.Y) / 2
	for _, e := range moved {
		v2.TransferNeighbor(e, v)
	}
	b := v2.Clockwise()
	b.setWiddershins(v)
	u.clearEdge()
	v2.clearEdge()

	var delta float64
	for _, e := range affected {
		delta += e.DeltaEnergy()
	}
	if delta <= m.cfg.Precision {
		m.removeVertex(v2)
		m.tearLength = math.Max(0, m.tearLength-length)
		m.totalEnergy = m.currentEnergy()
		for _, e := range affected {
			e.ComputeAndSaveEnergy()
		}
		return true
	}

	// Too costly; put everything back.
	for _, e := range moved {
		v.TransferNeighbor(e, v2)
	}
	v.X, v.Y = oldX, oldY
	u.setWiddershins(v)
	v2.setWiddershins(u)
	b.setWiddershins(v2)
	return false
}

func (m *Mesh) removeVertex(v *Vertex) {
	for i, w := range m.vertices {
		if w == v {
			m.vertices = append(m.vertices[:i], m.vertices[i+1:]...)
			return
		}
	}
	panic(fmt.Errorf("%w: merged vertex missing from the mesh", ErrAdjacency))
}

func elementUnion(lists ...[]*Element) []*Element {
	seen := make(map[*Element]bool)
	var out []*Element
	for _, list := range lists {
		for _, e := range list {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}
