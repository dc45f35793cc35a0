package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func matVecNaive(dst []float64, m *Mat, x []float64) {
	for i := 0; i < m.R; i++ {
		row := m.Row(i)
		var sum float64
		for j := 0; j < m.C; j++ {
			sum += row[j] * x[j]
		}
		dst[i] = sum
	}
}

func randVec(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

func TestMatVecMatchesNaive(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(3))
	m := NewMat(7, 5)
	FillRandn(&m, rng, 1)
	x := randVec(rng, 5)

	got := make([]float64, 7)
	for i := range got {
		got[i] = 99 // MatVec must overwrite, not accumulate
	}
	MatVec(got, &m, x)
	want := make([]float64, 7)
	matVecNaive(want, &m, x)
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("MatVec mismatch at %d: got %v want %v", i, got[i], want[i])
		}
	}

	MatVecAdd(got, &m, x)
	for i := range want {
		if math.Abs(got[i]-2*want[i]) > 1e-12 {
			t.Fatalf("MatVecAdd mismatch at %d: got %v want %v", i, got[i], 2*want[i])
		}
	}
}

func TestMatTVecAdd(t *testing.T) {
	t.Parallel()
	m := NewMatFromData(2, 3, []float64{1, 2, 3, 4, 5, 6})
	dst := []float64{1, 1, 1}
	MatTVecAdd(dst, &m, []float64{1, -1})
	want := []float64{1 - 3, 1 - 3, 1 - 3}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("MatTVecAdd[%d]: got %v want %v", i, dst[i], want[i])
		}
	}
}

func TestOuterAdd(t *testing.T) {
	t.Parallel()
	m := NewMat(2, 3)
	OuterAdd(&m, []float64{1, 2}, []float64{3, 4, 5})
	OuterAdd(&m, []float64{1, 0}, []float64{1, 1, 1})
	want := []float64{4, 5, 6, 6, 8, 10}
	for i := range want {
		if m.Data[i] != want[i] {
			t.Fatalf("OuterAdd[%d]: got %v want %v", i, m.Data[i], want[i])
		}
	}
}

func TestColumnHelpersMatchOneHot(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(9))
	m := NewMat(4, 6)
	FillRandn(&m, rng, 1)

	x := make([]float64, 6)
	OneHot(x, 2)
	want := make([]float64, 4)
	MatVec(want, &m, x)
	got := make([]float64, 4)
	AddCol(got, &m, 2)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AddCol[%d]: got %v want %v", i, got[i], want[i])
		}
	}

	v := []float64{1, 2, 3, 4}
	viaOuter := m.Clone()
	OuterAdd(&viaOuter, v, x)
	AddToCol(&m, 2, v)
	for i := range m.Data {
		if m.Data[i] != viaOuter.Data[i] {
			t.Fatalf("AddToCol[%d]: got %v want %v", i, m.Data[i], viaOuter.Data[i])
		}
	}
}

func TestSoftmaxIsDistribution(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 2, 3, 17, 65} {
		for _, temp := range []float64{0.05, 0.3, 1} {
			logits := randVec(rng, n)
			Scale(20, logits)
			p := make([]float64, n)
			Softmax(p, logits, 1/temp)
			if !Close(Sum(p), 1) {
				t.Fatalf("n=%d temp=%v: sum %v not 1", n, temp, Sum(p))
			}
			for i, v := range p {
				if v < 0 {
					t.Fatalf("n=%d temp=%v: negative entry %d: %v", n, temp, i, v)
				}
			}
		}
	}
}

func TestSoftmaxLargeLogits(t *testing.T) {
	t.Parallel()
	p := make([]float64, 3)
	Softmax(p, []float64{1000, 1000, -1000}, 1)
	if math.IsNaN(p[0]) || !Close(p[0], 0.5) || !Close(p[1], 0.5) || p[2] != 0 {
		t.Fatalf("unexpected softmax of large logits: %v", p)
	}
}

func TestLowerTemperatureIsSharper(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(5))
	temps := []float64{0.1, 0.25, 0.5, 0.75, 1}
	for trial := 0; trial < 20; trial++ {
		logits := randVec(rng, 8)
		prev := -1.0
		for _, temp := range temps {
			p := make([]float64, len(logits))
			Softmax(p, logits, 1/temp)
			h := Entropy(p)
			if prev >= 0 && h < prev-Eps {
				t.Fatalf("trial %d: entropy decreased from %v to %v at temp %v", trial, prev, h, temp)
			}
			prev = h
		}
	}
}

func TestClip(t *testing.T) {
	t.Parallel()
	x := []float64{-7, -5, 0.5, 5, 12}
	Clip(x, 5)
	want := []float64{-5, -5, 0.5, 5, 5}
	for i := range want {
		if x[i] != want[i] {
			t.Fatalf("Clip[%d]: got %v want %v", i, x[i], want[i])
		}
	}
}

func TestClose(t *testing.T) {
	t.Parallel()
	if !Close(1, 1+Eps/2) {
		t.Fatal("values within Eps should be close")
	}
	if Close(1, 1+10*Eps) {
		t.Fatal("values beyond Eps should not be close")
	}
}

func TestDimensionMismatchPanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on dimension mismatch")
		}
	}()
	m := NewMat(2, 2)
	MatVec(make([]float64, 2), &m, make([]float64, 3))
}
