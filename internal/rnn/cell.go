package rnn

import "github.com/samcharles93/charnn/internal/tensor"

// layerCache is what one layer keeps from one timestep for its backward pass.
// h is the post-activation state; tanh' is recovered as 1-h².
type layerCache struct {
	x     []float64 // layer input; nil for layer 0, which reads frame.input
	hPrev []float64 // state before this step
	h     []float64 // state after this step
}

// frame is the cache of a single timestep across every layer.
type frame struct {
	input  int
	layers []layerCache
	probs  []float64
}

func newFrame(vocab, hidden, layers int) frame {
	f := frame{
		layers: make([]layerCache, layers),
		probs:  make([]float64, vocab),
	}
	for l := range f.layers {
		f.layers[l].h = make([]float64, hidden)
		if l > 0 {
			f.layers[l].x = f.layers[l-1].h
		}
	}
	return f
}

// step advances every layer by one timestep, bottom layer first:
//
//	h_l = tanh(Wxh_l·x_l + Whh_l·hPrev_l + bh_l)
//
// where x_0 is onehot(f.input) and x_l is layer l-1's new state. The caller
// links hPrev before calling. Indices outside the alphabet are not checked.
func step(p *Params, f *frame) {
	for l := range p.Layers {
		layer := &p.Layers[l]
		lc := &f.layers[l]
		copy(lc.h, layer.Bh)
		if l == 0 {
			tensor.AddCol(lc.h, &layer.Wxh, f.input)
		} else {
			tensor.MatVecAdd(lc.h, &layer.Wxh, lc.x)
		}
		tensor.MatVecAdd(lc.h, &layer.Whh, lc.hPrev)
		tensor.Tanh(lc.h, lc.h)
	}
}

// top returns the state of the last layer after the step.
func (f *frame) top() []float64 {
	return f.layers[len(f.layers)-1].h
}
