package utils

import (
	"fmt"
	"math"
	"strings"
)

// DimensionError reports a matrix operation invoked outside its supported
// shape. The engine only ever analyzes 2x2 deformation gradients, so the
// closed-form routines refuse anything else. This is an assertion-class
// failure: correct mesh code never triggers it, so it is delivered by panic.
type DimensionError struct {
	Op   string
	N, M int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("utils: %s is not supported for a %dx%d matrix", e.Op, e.N, e.M)
}

// Matrix is a small dense row-major matrix. It exists to carry the handful of
// 2x2 deformation-gradient manipulations the relaxation engine needs; it is
// not a general linear-algebra type.
type Matrix struct {
	n, m int
	v    []float64
}

// NewMatrix builds an n x m matrix. With no values it is zero-filled;
// otherwise exactly n*m values must be given, row by row.
func NewMatrix(n, m int, values ...float64) *Matrix {
	if n <= 0 || m <= 0 {
		panic(&DimensionError{"construction", n, m})
	}
	a := &Matrix{n: n, m: m, v: make([]float64, n*m)}
	if len(values) > 0 {
		if len(values) != n*m {
			panic(&DimensionError{fmt.Sprintf("construction from %d values", len(values)), n, m})
		}
		copy(a.v, values)
	}
	return a
}

// Identity builds the n x n identity matrix.
func Identity(n int) *Matrix {
	a := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		a.Set(i, i, 1)
	}
	return a
}

// N is the number of rows.
func (a *Matrix) N() int { return a.n }

// M is the number of columns.
func (a *Matrix) M() int { return a.m }

// At returns the value at row i, column j.
func (a *Matrix) At(i, j int) float64 { return a.v[i*a.m+j] }

// Set stores the value at row i, column j.
func (a *Matrix) Set(i, j int, x float64) { a.v[i*a.m+j] = x }

// Plus returns the elementwise sum a + b.
func (a *Matrix) Plus(b *Matrix) *Matrix {
	if a.n != b.n || a.m != b.m {
		panic(&DimensionError{fmt.Sprintf("addition with a %dx%d matrix", b.n, b.m), a.n, a.m})
	}
	sum := NewMatrix(a.n, a.m)
	for i := range a.v {
		sum.v[i] = a.v[i] + b.v[i]
	}
	return sum
}

// Minus returns the elementwise difference a - b.
func (a *Matrix) Minus(b *Matrix) *Matrix {
	return a.Plus(b.Scaled(-1))
}

// Times returns the matrix product a * b.
func (a *Matrix) Times(b *Matrix) *Matrix {
	if a.m != b.n {
		panic(&DimensionError{fmt.Sprintf("multiplication with a %dx%d matrix", b.n, b.m), a.n, a.m})
	}
	prod := NewMatrix(a.n, b.m)
	for i := 0; i < a.n; i++ {
		for j := 0; j < b.m; j++ {
			var s float64
			for k := 0; k < a.m; k++ {
				s += a.At(i, k) * b.At(k, j)
			}
			prod.Set(i, j, s)
		}
	}
	return prod
}

// Scaled returns a scaled by the scalar s.
func (a *Matrix) Scaled(s float64) *Matrix {
	out := NewMatrix(a.n, a.m)
	for i := range a.v {
		out.v[i] = a.v[i] * s
	}
	return out
}

// Over returns a divided by the scalar s.
func (a *Matrix) Over(s float64) *Matrix {
	return a.Scaled(1 / s)
}

// T returns the transpose.
func (a *Matrix) T() *Matrix {
	tp := NewMatrix(a.m, a.n)
	for i := 0; i < a.n; i++ {
		for j := 0; j < a.m; j++ {
			tp.Set(j, i, a.At(i, j))
		}
	}
	return tp
}

// Tr returns the trace, summed over the main diagonal.
func (a *Matrix) Tr() float64 {
	var tr float64
	for i := 0; i < a.n && i < a.m; i++ {
		tr += a.At(i, i)
	}
	return tr
}

// Det returns the determinant. Only 2x2 matrices are supported.
func (a *Matrix) Det() float64 {
	if a.n != 2 || a.m != 2 {
		panic(&DimensionError{"determinant", a.n, a.m})
	}
	return a.At(0, 0)*a.At(1, 1) - a.At(0, 1)*a.At(1, 0)
}

// Inv returns the inverse. Only 2x2 matrices are supported.
func (a *Matrix) Inv() *Matrix {
	if a.n != 2 || a.m != 2 {
		panic(&DimensionError{"inversion", a.n, a.m})
	}
	return NewMatrix(2, 2,
		a.At(1, 1), -a.At(0, 1),
		-a.At(1, 0), a.At(0, 0)).Over(a.Det())
}

// Dot returns the inner product of two column vectors.
func (a *Matrix) Dot(b *Matrix) float64 {
	if a.m != 1 || b.m != 1 || a.n != b.n {
		panic(&DimensionError{fmt.Sprintf("dot product with a %dx%d matrix", b.n, b.m), a.n, a.m})
	}
	var s float64
	for i := 0; i < a.n; i++ {
		s += a.At(i, 0) * b.At(i, 0)
	}
	return s
}

// InnerProd returns the Frobenius inner product, the sum of the elementwise
// products.
func (a *Matrix) InnerProd(b *Matrix) float64 {
	if a.n != b.n || a.m != b.m {
		panic(&DimensionError{fmt.Sprintf("inner product with a %dx%d matrix", b.n, b.m), a.n, a.m})
	}
	var s float64
	for i := range a.v {
		s += a.v[i] * b.v[i]
	}
	return s
}

// Norm returns a copy of a with every column rescaled to unit magnitude. A
// zero column normalizes to the first basis vector rather than staying zero,
// which breaks the degeneracy for callers that need a direction out of it.
func (a *Matrix) Norm() *Matrix {
	hat := NewMatrix(a.n, a.m)
	for j := 0; j < a.m; j++ {
		var colSum float64
		for i := 0; i < a.n; i++ {
			colSum += a.At(i, j) * a.At(i, j)
		}
		if colSum != 0 {
			mag := math.Sqrt(colSum)
			for i := 0; i < a.n; i++ {
				hat.Set(i, j, a.At(i, j)/mag)
			}
		} else {
			hat.Set(0, j, 1)
		}
	}
	return hat
}

// Eigenvalues returns the two eigenvalues of a 2x2 matrix, larger first.
func (a *Matrix) Eigenvalues() [2]float64 {
	if a.n != 2 || a.m != 2 {
		panic(&DimensionError{"eigendecomposition", a.n, a.m})
	}
	tr := a.Tr()
	det := a.Det()
	disc := math.Sqrt(tr*tr/4 - det)
	return [2]float64{tr/2 + disc, tr/2 - disc}
}

// Eigenvectors returns the unit eigenvectors of a 2x2 matrix as column
// vectors, ordered to match Eigenvalues.
func (a *Matrix) Eigenvectors() [2]*Matrix {
	return a.EigenvectorsFor(a.Eigenvalues())
}

// EigenvectorsFor returns the unit eigenvectors matching precomputed
// eigenvalues. When both off-diagonal terms are zero the eigenvectors are the
// basis vectors; the tie-break aligns the larger eigenvalue with whichever
// axis carries the larger diagonal entry, defaulting to the x-axis.
func (a *Matrix) EigenvectorsFor(vals [2]float64) [2]*Matrix {
	if a.n != 2 || a.m != 2 {
		panic(&DimensionError{"eigendecomposition", a.n, a.m})
	}
	var vecs [2]*Matrix
	switch {
	case a.At(1, 0) != 0:
		vecs[0] = NewMatrix(2, 1, vals[0]-a.At(1, 1), a.At(1, 0))
		vecs[1] = NewMatrix(2, 1, vals[1]-a.At(1, 1), a.At(1, 0))
	case a.At(0, 1) != 0:
		vecs[0] = NewMatrix(2, 1, a.At(0, 1), vals[0]-a.At(0, 0))
		vecs[1] = NewMatrix(2, 1, a.At(0, 1), vals[1]-a.At(0, 0))
	default:
		if (a.At(0, 0) > a.At(1, 1)) == (vals[0] > vals[1]) {
			vecs[0] = NewMatrix(2, 1, 1, 0)
			vecs[1] = NewMatrix(2, 1, 0, 1)
		} else {
			vecs[0] = NewMatrix(2, 1, 0, 1)
			vecs[1] = NewMatrix(2, 1, 1, 0)
		}
	}
	vecs[0] = vecs[0].Norm()
	vecs[1] = vecs[1].Norm()
	return vecs
}

// IsFinite reports whether every entry is a finite number.
func (a *Matrix) IsFinite() bool {
	for _, x := range a.v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (a *Matrix) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Matrix(%d, %d,", a.n, a.m)
	for i := 0; i < a.n; i++ {
		b.WriteString("\n ")
		for j := 0; j < a.m; j++ {
			fmt.Fprintf(&b, " % .4f", a.At(i, j))
		}
	}
	b.WriteString(")")
	return b.String()
}
