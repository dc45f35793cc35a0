package tensor

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Eps is the tolerance used by Close.
const Eps = 1e-9

// Close reports whether a and b are equal within Eps.
func Close(a, b float64) bool {
	return scalar.EqualWithinAbs(a, b, Eps)
}

func vec(x []float64) blas64.Vector {
	return blas64.Vector{N: len(x), Inc: 1, Data: x}
}

// MatVec computes dst = m·x.
func MatVec(dst []float64, m *Mat, x []float64) {
	if len(dst) != m.R || len(x) != m.C {
		panic("tensor: MatVec dimension mismatch")
	}
	blas64.Gemv(blas.NoTrans, 1, m.general(), vec(x), 0, vec(dst))
}

// MatVecAdd computes dst += m·x.
func MatVecAdd(dst []float64, m *Mat, x []float64) {
	if len(dst) != m.R || len(x) != m.C {
		panic("tensor: MatVecAdd dimension mismatch")
	}
	blas64.Gemv(blas.NoTrans, 1, m.general(), vec(x), 1, vec(dst))
}

// MatTVecAdd computes dst += mᵀ·x.
func MatTVecAdd(dst []float64, m *Mat, x []float64) {
	if len(dst) != m.C || len(x) != m.R {
		panic("tensor: MatTVecAdd dimension mismatch")
	}
	blas64.Gemv(blas.Trans, 1, m.general(), vec(x), 1, vec(dst))
}

// OuterAdd computes m += a⊗b, the rank-one update used for weight gradients.
func OuterAdd(m *Mat, a, b []float64) {
	if len(a) != m.R || len(b) != m.C {
		panic("tensor: OuterAdd dimension mismatch")
	}
	blas64.Ger(1, vec(a), vec(b), m.general())
}

// AddCol adds column j of m to dst. It is m·onehot(j) without the multiply.
func AddCol(dst []float64, m *Mat, j int) {
	if len(dst) != m.R {
		panic("tensor: AddCol dimension mismatch")
	}
	if j < 0 || j >= m.C {
		panic("tensor: column index out of range")
	}
	for i := range dst {
		dst[i] += m.Data[i*m.Stride+j]
	}
}

// AddToCol adds v into column j of m. It is m += v⊗onehot(j).
func AddToCol(m *Mat, j int, v []float64) {
	if len(v) != m.R {
		panic("tensor: AddToCol dimension mismatch")
	}
	if j < 0 || j >= m.C {
		panic("tensor: column index out of range")
	}
	for i, x := range v {
		m.Data[i*m.Stride+j] += x
	}
}

// Add adds src to dst element-wise.
func Add(dst, src []float64) {
	mustSameLen(dst, src)
	floats.Add(dst, src)
}

// Mul multiplies dst by src element-wise.
func Mul(dst, src []float64) {
	mustSameLen(dst, src)
	floats.Mul(dst, src)
}

// Scale multiplies every element of dst by c.
func Scale(c float64, dst []float64) {
	floats.Scale(c, dst)
}

// Sum returns the sum of x.
func Sum(x []float64) float64 {
	return floats.Sum(x)
}

// Tanh writes tanh(src) into dst.
func Tanh(dst, src []float64) {
	mustSameLen(dst, src)
	for i, v := range src {
		dst[i] = math.Tanh(v)
	}
}

// Clip bounds every element of x into [-bound, bound].
func Clip(x []float64, bound float64) {
	for i, v := range x {
		switch {
		case v > bound:
			x[i] = bound
		case v < -bound:
			x[i] = -bound
		}
	}
}

// OneHot zeroes dst and sets dst[idx] = 1.
func OneHot(dst []float64, idx int) {
	if idx < 0 || idx >= len(dst) {
		panic("tensor: one-hot index out of range")
	}
	clear(dst)
	dst[idx] = 1
}

// Softmax writes softmax(logits·invTemp) into dst. The maximum is subtracted
// before exponentiation so large logits cannot overflow.
func Softmax(dst, logits []float64, invTemp float64) {
	mustSameLen(dst, logits)
	if len(logits) == 0 {
		return
	}
	maxv := floats.Max(logits) * invTemp
	var sum float64
	for i, l := range logits {
		e := math.Exp(l*invTemp - maxv)
		dst[i] = e
		sum += e
	}
	floats.Scale(1/sum, dst)
}

// Entropy returns the Shannon entropy of the distribution p in nats.
func Entropy(p []float64) float64 {
	var h float64
	for _, v := range p {
		if v > 0 {
			h -= v * math.Log(v)
		}
	}
	return h
}

func mustSameLen(a, b []float64) {
	if len(a) != len(b) {
		panic("tensor: vector length mismatch")
	}
}
