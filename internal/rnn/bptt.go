package rnn

import "github.com/samcharles93/charnn/internal/tensor"

// gradClip bounds every gradient entry after backpropagation.
const gradClip = 5.0

// window is the frame arena for one truncated-BPTT pass. Frames are reused
// across calls and only grow.
type window struct {
	vocab, hidden, layers int

	frames []frame
	h0     [][]float64 // copy of the state the window started from

	logits []float64
	dy     []float64
	dpre   []float64
	dh     [][]float64 // error reaching h_l at the current timestep
	dhNext [][]float64 // error reaching h_l from the following timestep
}

func newWindow(vocab, hidden, layers int) *window {
	w := &window{
		vocab:  vocab,
		hidden: hidden,
		layers: layers,
		h0:     newState(layers, hidden),
		logits: make([]float64, vocab),
		dy:     make([]float64, vocab),
		dpre:   make([]float64, hidden),
		dh:     newState(layers, hidden),
		dhNext: newState(layers, hidden),
	}
	return w
}

func newState(layers, hidden int) [][]float64 {
	s := make([][]float64, layers)
	for l := range s {
		s[l] = make([]float64, hidden)
	}
	return s
}

// ensure grows the arena to at least n frames and links each frame's hPrev
// to the previous frame's output.
func (w *window) ensure(n int) {
	if len(w.frames) >= n {
		return
	}
	for len(w.frames) < n {
		w.frames = append(w.frames, newFrame(w.vocab, w.hidden, w.layers))
	}
	for t := range w.frames {
		for l := range w.frames[t].layers {
			if t == 0 {
				w.frames[t].layers[l].hPrev = w.h0[l]
			} else {
				w.frames[t].layers[l].hPrev = w.frames[t-1].layers[l].h
			}
		}
	}
}

// forward runs the window from state h and returns the summed cross-entropy.
// h is copied, never written.
func (w *window) forward(p *Params, inputs, targets []int, h [][]float64) float64 {
	n := len(inputs)
	w.ensure(n)
	for l := range w.h0 {
		copy(w.h0[l], h[l])
	}
	var loss float64
	for t := 0; t < n; t++ {
		f := &w.frames[t]
		f.input = inputs[t]
		step(p, f)
		project(p, f.top(), w.logits)
		tensor.Softmax(f.probs, w.logits, 1)
		loss += crossEntropy(f.probs, targets[t])
	}
	return loss
}

// backward accumulates gradients for the last forward pass of n steps into g,
// then clips them. g is zeroed first.
func (w *window) backward(p, g *Params, targets []int, n int) {
	g.Zero()
	for l := range w.dhNext {
		clear(w.dhNext[l])
	}
	top := w.layers - 1
	for t := n - 1; t >= 0; t-- {
		f := &w.frames[t]

		copy(w.dy, f.probs)
		w.dy[targets[t]]--
		tensor.OuterAdd(&g.Why, w.dy, f.top())
		tensor.Add(g.By, w.dy)

		for l := range w.dh {
			copy(w.dh[l], w.dhNext[l])
		}
		tensor.MatTVecAdd(w.dh[top], &p.Why, w.dy)

		for l := top; l >= 0; l-- {
			lc := &f.layers[l]
			gl := &g.Layers[l]
			pl := &p.Layers[l]
			for i, hv := range lc.h {
				w.dpre[i] = (1 - hv*hv) * w.dh[l][i]
			}
			tensor.Add(gl.Bh, w.dpre)
			if l == 0 {
				tensor.AddToCol(&gl.Wxh, f.input, w.dpre)
			} else {
				tensor.OuterAdd(&gl.Wxh, w.dpre, lc.x)
				tensor.MatTVecAdd(w.dh[l-1], &pl.Wxh, w.dpre)
			}
			tensor.OuterAdd(&gl.Whh, w.dpre, lc.hPrev)
			clear(w.dhNext[l])
			tensor.MatTVecAdd(w.dhNext[l], &pl.Whh, w.dpre)
		}
	}
	g.Clip(gradClip)
}

// final copies the state after step n-1 into dst.
func (w *window) final(dst [][]float64, n int) {
	f := &w.frames[n-1]
	for l := range dst {
		copy(dst[l], f.layers[l].h)
	}
}
