package rnn

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/samcharles93/charnn/internal/corpus"
	"github.com/samcharles93/charnn/internal/logits"
)

func mustNew(t *testing.T, cfg Config) *Network {
	t.Helper()
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	return n
}

func sameState(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for l := range a {
		if len(a[l]) != len(b[l]) {
			return false
		}
		for i := range a[l] {
			if math.Float64bits(a[l][i]) != math.Float64bits(b[l][i]) {
				return false
			}
		}
	}
	return true
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		cfg  Config
	}{
		{"simple", Config{Vocab: 4, Hidden: 5, Variant: VariantSimple, Seed: 3, InitStd: 0.3}},
		{"stacked", Config{Vocab: 4, Hidden: 5, Layers: 3, Variant: VariantStacked, Seed: 5, InitStd: 0.3}},
	}
	inputs := []int{0, 2, 1, 3}
	targets := []int{2, 1, 3, 0}
	settings := &fd.Settings{Formula: fd.Central, Step: 1e-5}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			n := mustNew(t, tc.cfg)
			n.Advance([]int{1, 3})

			_, grads := n.Gradients(inputs, targets)
			params := n.Params().Tensors()
			analytic := grads.Tensors()
			for i, pt := range params {
				for j := range pt.Data {
					orig := pt.Data[j]
					f := func(x float64) float64 {
						pt.Data[j] = x
						l := n.Loss(inputs, targets)
						pt.Data[j] = orig
						return l
					}
					num := fd.Derivative(f, orig, settings)
					got := analytic[i].Data[j]
					if math.Abs(got-num) > 1e-6*math.Max(1, math.Abs(num)) {
						t.Fatalf("%s[%d]: analytic %g numeric %g", pt.Name, j, got, num)
					}
				}
			}
		})
	}
}

func TestGradientsDoNotMutate(t *testing.T) {
	t.Parallel()
	n := mustNew(t, Config{Vocab: 3, Hidden: 4, Layers: 2, LearningRate: 0.1, Seed: 1})
	n.Advance([]int{0, 1})
	hidden := n.Hidden()
	before := n.Params().Clone()

	n.Gradients([]int{0, 1, 2}, []int{1, 2, 0})
	n.Loss([]int{0, 1, 2}, []int{1, 2, 0})

	if !sameState(hidden, n.Hidden()) {
		t.Fatal("hidden state changed")
	}
	got, want := n.Params().Tensors(), before.Tensors()
	for i := range got {
		for j := range got[i].Data {
			if got[i].Data[j] != want[i].Data[j] {
				t.Fatalf("%s[%d] changed", got[i].Name, j)
			}
		}
	}
}

func TestTrainOverfitsSingleWindow(t *testing.T) {
	t.Parallel()
	n := mustNew(t, Config{Vocab: 3, Hidden: 4, Variant: VariantSimple, LearningRate: 0.1, Seed: 7})
	inputs := []int{0, 1, 2, 0, 1}
	targets := []int{1, 2, 0, 1, 2}

	prev := math.Inf(1)
	for i := 0; i < 25; i++ {
		n.ResetHidden()
		loss := n.Train(inputs, targets)
		if !(loss < prev) {
			t.Fatalf("iteration %d: loss %g did not decrease from %g", i, loss, prev)
		}
		prev = loss
	}
}

func TestTrainLeavesFinalForwardState(t *testing.T) {
	t.Parallel()
	inputs := []int{2, 0, 1, 1}
	targets := []int{0, 1, 1, 2}
	cfg := Config{Vocab: 3, Hidden: 6, Layers: 2, LearningRate: 0.1, Seed: 11}

	trained := mustNew(t, cfg)
	replayed := mustNew(t, cfg)
	trained.Train(inputs, targets)
	replayed.Advance(inputs)

	if !sameState(trained.Hidden(), replayed.Hidden()) {
		t.Fatal("training did not leave the forward pass's final state")
	}
}

func TestNonAdvancingSampleIsIdempotent(t *testing.T) {
	t.Parallel()
	n := mustNew(t, Config{Vocab: 5, Hidden: 8, Layers: 2, Seed: 2, InitStd: 0.2})
	n.Advance([]int{4, 3, 2})
	before := n.Hidden()
	seed := []int{1, 0}

	a := n.SampleIndices(logits.NewSampler(7), 30, seed, 0.8, false)
	if !sameState(before, n.Hidden()) {
		t.Fatal("hidden state changed after first non-advancing sample")
	}
	b := n.SampleIndices(logits.NewSampler(7), 30, seed, 0.8, false)
	if !sameState(before, n.Hidden()) {
		t.Fatal("hidden state changed after second non-advancing sample")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("draw %d: got %d want %d", i, b[i], a[i])
		}
	}
}

func TestAdvancingSampleReplays(t *testing.T) {
	t.Parallel()
	n := mustNew(t, Config{Vocab: 4, Hidden: 6, Layers: 3, Seed: 9, InitStd: 0.2})
	start := n.Hidden()
	seed := []int{2, 3}

	out := n.SampleIndices(logits.NewSampler(3), 20, seed, 1, true)
	final := n.Hidden()
	if sameState(start, final) {
		t.Fatal("advancing sample left the state unchanged")
	}

	n.SetHidden(start)
	n.Advance(append(append([]int(nil), seed...), out...))
	if !sameState(final, n.Hidden()) {
		t.Fatal("replaying seed and draws did not reproduce the final state")
	}
}

func TestSampleRejectsContractViolations(t *testing.T) {
	t.Parallel()
	n := mustNew(t, Config{Vocab: 3, Hidden: 2, Seed: 1})
	expectPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}
	expectPanic("empty seed", func() { n.SampleIndices(logits.NewSampler(1), 3, nil, 1, false) })
	expectPanic("zero temperature", func() { n.SampleIndices(logits.NewSampler(1), 3, []int{0}, 0, false) })
	expectPanic("hot temperature", func() { n.SampleIndices(logits.NewSampler(1), 3, []int{0}, 1.5, false) })
}

func TestAdagradMemoryIsMonotone(t *testing.T) {
	t.Parallel()
	p := newParams(3, 4, 2)
	opt := NewAdagrad(p, 0.1)
	rng := rand.New(rand.NewSource(42))
	g := newParams(3, 4, 2)

	prev := opt.Memory().Clone()
	for iter := 0; iter < 10; iter++ {
		for _, tt := range g.Tensors() {
			for j := range tt.Data {
				tt.Data[j] = rng.NormFloat64()
			}
		}
		opt.Update(p, g)
		cur, old := opt.Memory().Tensors(), prev.Tensors()
		for i := range cur {
			for j, v := range cur[i].Data {
				if v < 0 || v < old[i].Data[j] {
					t.Fatalf("iteration %d: %s[%d] went from %g to %g", iter, cur[i].Name, j, old[i].Data[j], v)
				}
			}
		}
		prev = opt.Memory().Clone()
	}
}

func TestAdagradStep(t *testing.T) {
	t.Parallel()
	p := newParams(2, 1, 1)
	g := newParams(2, 1, 1)
	opt := NewAdagrad(p, 0.5)
	g.By[0] = 2
	opt.Update(p, g)

	want := -0.5 * 2 / math.Sqrt(4+adagradEps)
	if math.Abs(p.By[0]-want) > 1e-12 {
		t.Fatalf("by[0]: got %g want %g", p.By[0], want)
	}
	if p.By[1] != 0 {
		t.Fatalf("by[1]: got %g want 0", p.By[1])
	}
}

func TestSimpleVariantIgnoresLayerCount(t *testing.T) {
	t.Parallel()
	n := mustNew(t, Config{Vocab: 3, Hidden: 4, Layers: 5, Variant: VariantSimple})
	if got := len(n.Hidden()); got != 1 {
		t.Fatalf("layers: got %d want 1", got)
	}
	if got := len(n.Params().Layers); got != 1 {
		t.Fatalf("parameter layers: got %d want 1", got)
	}
	stacked := mustNew(t, Config{Vocab: 3, Hidden: 4, Layers: 3})
	if got := stacked.Params().Layers[1].Wxh.C; got != 4 {
		t.Fatalf("upper layer input width: got %d want 4", got)
	}
	if got := stacked.Params().Layers[0].Wxh.C; got != 3 {
		t.Fatalf("bottom layer input width: got %d want 3", got)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	bad := []Config{
		{Vocab: 1, Hidden: 4, Layers: 1},
		{Vocab: 3, Hidden: 0, Layers: 1},
		{Vocab: 3, Hidden: 4, Layers: 0},
		{Vocab: 3, Hidden: 4, Layers: 1, LearningRate: -1},
		{Vocab: 3, Hidden: 4, Layers: 1, Variant: Variant(9)},
	}
	for i, cfg := range bad {
		if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("config %d: got %v want ErrInvalidConfig", i, err)
		}
	}
}

func TestTensorNames(t *testing.T) {
	t.Parallel()
	n := mustNew(t, Config{Vocab: 3, Hidden: 2, Layers: 2})
	want := []string{
		"layers.0.wxh", "layers.0.whh", "layers.0.bh",
		"layers.1.wxh", "layers.1.whh", "layers.1.bh",
		"why", "by",
	}
	got := n.Params().Tensors()
	if len(got) != len(want) {
		t.Fatalf("tensor count: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Fatalf("tensor %d: got %q want %q", i, got[i].Name, want[i])
		}
	}
}

func TestSampleStringMembershipLeavesStateAlone(t *testing.T) {
	t.Parallel()
	alpha := corpus.NewAlphabet("abc")
	n := mustNew(t, Config{Vocab: alpha.Size(), Hidden: 4, Layers: 2, Seed: 4, InitStd: 0.3})
	cn, err := NewCharNet(n, alpha)
	if err != nil {
		t.Fatalf("char net: %v", err)
	}
	if err := cn.AdvanceString("abcab"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	before := n.Hidden()

	_, err = cn.SampleString(logits.NewSampler(1), 10, "ab?", 1, true)
	if !errors.Is(err, corpus.ErrNotInAlphabet) {
		t.Fatalf("got %v want ErrNotInAlphabet", err)
	}
	if !sameState(before, n.Hidden()) {
		t.Fatal("membership failure mutated the hidden state")
	}

	text, err := cn.SampleString(logits.NewSampler(1), 10, "ab", 1, false)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if got := len([]rune(text)); got != 10 {
		t.Fatalf("sample length: got %d want 10", got)
	}
	if _, err := cn.SampleString(logits.NewSampler(1), 10, "", 1, false); !errors.Is(err, ErrEmptySeed) {
		t.Fatalf("empty seed: got %v", err)
	}
}

func TestNewCharNetChecksVocabulary(t *testing.T) {
	t.Parallel()
	n := mustNew(t, Config{Vocab: 4, Hidden: 2, Layers: 1})
	if _, err := NewCharNet(n, corpus.NewAlphabet("abc")); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("got %v want ErrInvalidConfig", err)
	}
}

func TestSetLearningRateAppliesToNextUpdate(t *testing.T) {
	t.Parallel()
	cfg := Config{Vocab: 3, Hidden: 4, Layers: 2, LearningRate: 0.1, Seed: 5}
	inputs, targets := []int{0, 1, 2, 1}, []int{1, 2, 1, 0}

	frozen := mustNew(t, cfg)
	before := frozen.Params().Clone()
	frozen.SetLearningRate(0)
	if got := frozen.Config().LearningRate; got != 0 {
		t.Fatalf("config learning rate: got %v want 0", got)
	}
	frozen.Train(inputs, targets)
	after, orig := frozen.Params().Tensors(), before.Tensors()
	for i := range after {
		for j, v := range after[i].Data {
			if math.Float64bits(v) != math.Float64bits(orig[i].Data[j]) {
				t.Fatalf("%s[%d] moved with zero learning rate: %v -> %v", after[i].Name, j, orig[i].Data[j], v)
			}
		}
	}

	fast := mustNew(t, cfg)
	fast.SetLearningRate(0.5)
	slow := mustNew(t, cfg)
	start := append([]float64(nil), slow.Params().By...)
	fast.Train(inputs, targets)
	slow.Train(inputs, targets)
	for j, v := range start {
		fastStep, slowStep := fast.Params().By[j]-v, slow.Params().By[j]-v
		if math.Abs(fastStep-5*slowStep) > 1e-12 {
			t.Fatalf("by[%d]: step %v at lr 0.5, want 5x %v", j, fastStep, slowStep)
		}
	}
}
