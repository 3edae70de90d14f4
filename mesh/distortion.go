package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Criteria computes Kavrayskiy-style distortion statistics over the current
// configuration: the weighted mean and standard deviation of the areal
// distortion (the log-ratio of deformed to undeformed area, signed) and the
// weighted mean angular distortion (the log-anisotropy of the local
// deformation), all in Nepers. The supplied per-cell weight grid must match
// the mesh resolution; each element is further weighted by its undeformed
// area. Pure query, no mutation.
func (m *Mesh) Criteria(weights [][]float64) (meanAreal, stdAreal, meanAngular float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := m.cfg.Resolution
	if len(weights) != 2*res {
		return 0, 0, 0, fmt.Errorf("%w: criteria weights have %d rows, want %d",
			ErrConfig, len(weights), 2*res)
	}
	for i, row := range weights {
		if len(row) != 4*res {
			return 0, 0, 0, fmt.Errorf("%w: criteria weights row %d has %d columns, want %d",
				ErrConfig, i, len(row), 4*res)
		}
	}

	var areal, angular, ws []float64
	var totalWeight float64
	for _, e := range m.elements {
		if e.IsDegenerate() {
			continue
		}
		F := e.DeformationGradient()
		J := F.Det()
		if J <= 0 {
			continue // folded elements carry no meaningful distortion
		}
		row, col := e.Cell()
		w := weights[row][col] * e.Area()
		if w <= 0 {
			continue
		}
		// Principal stretches are the square roots of the eigenvalues of B.
		vals := F.Times(F.T()).Eigenvalues()
		a := math.Sqrt(vals[0])
		b := math.Sqrt(vals[1])
		areal = append(areal, math.Log(J))
		angular = append(angular, math.Log(a/b))
		ws = append(ws, w)
		totalWeight += w
	}
	if totalWeight <= 0 {
		return 0, 0, 0, fmt.Errorf("%w: criteria weights select no elements", ErrConfig)
	}

	// The statistics are scale-invariant in the weights; normalizing them to
	// sum to the sample count keeps the unbiased variance sane.
	for i := range ws {
		ws[i] *= float64(len(ws)) / totalWeight
	}

	meanAreal = stat.Mean(areal, ws)
	stdAreal = stat.StdDev(areal, ws)
	meanAngular = stat.Mean(angular, ws)
	return meanAreal, stdAreal, meanAngular, nil
}
