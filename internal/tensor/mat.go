package tensor

import (
	"math/rand"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

// Mat represents a dense row-major matrix of float64 values.
//
// R and C are the number of rows and columns. Stride is the number of elements
// between the starts of two consecutive rows and always equals C for matrices
// created by this package. Out-of-range indices panic.
type Mat struct {
	R, C   int
	Stride int
	Data   []float64
}

// NewMat allocates a zeroed r x c matrix.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("tensor: negative dimension for matrix")
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   make([]float64, r*c),
	}
}

// NewMatFromData wraps data as an r x c matrix without copying.
func NewMatFromData(r, c int, data []float64) Mat {
	if r < 0 || c < 0 {
		panic("tensor: negative dimension for matrix")
	}
	if r*c != len(data) {
		panic("tensor: data length mismatch")
	}
	return Mat{R: r, C: c, Stride: c, Data: data}
}

// Row returns a view of the i-th row.
func (m *Mat) Row(i int) []float64 {
	if i < 0 || i >= m.R {
		panic("tensor: row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// At returns the element at row i, column j.
func (m *Mat) At(i, j int) float64 {
	if j < 0 || j >= m.C {
		panic("tensor: column index out of range")
	}
	return m.Row(i)[j]
}

// Zero sets every element to zero.
func (m *Mat) Zero() {
	clear(m.Data)
}

// Clone returns a deep copy of m.
func (m *Mat) Clone() Mat {
	out := NewMat(m.R, m.C)
	copy(out.Data, m.Data)
	return out
}

// CopyFrom copies src into m. Shapes must match.
func (m *Mat) CopyFrom(src *Mat) {
	mustSameShape(m, src)
	copy(m.Data, src.Data)
}

// SameShape reports whether m and o have identical dimensions.
func (m *Mat) SameShape(o *Mat) bool {
	return m.R == o.R && m.C == o.C
}

// Dense returns a gonum view sharing m's storage.
func (m *Mat) Dense() *mat.Dense {
	if m.R == 0 || m.C == 0 {
		panic("tensor: empty matrix has no dense view")
	}
	return mat.NewDense(m.R, m.C, m.Data)
}

// Norm returns the Frobenius norm of m.
func (m *Mat) Norm() float64 {
	if m.R == 0 || m.C == 0 {
		return 0
	}
	return mat.Norm(m.Dense(), 2)
}

func (m *Mat) general() blas64.General {
	return blas64.General{Rows: m.R, Cols: m.C, Stride: m.Stride, Data: m.Data}
}

// FillRandn fills m with normally distributed values scaled by std.
// The same rng state always produces the same matrix.
func FillRandn(m *Mat, rng *rand.Rand, std float64) {
	for i := range m.Data {
		m.Data[i] = rng.NormFloat64() * std
	}
}

func mustSameShape(a, b *Mat) {
	if a.R != b.R || a.C != b.C {
		panic("tensor: matrix shape mismatch")
	}
}
