package rnn

import "math"

// adagradEps keeps the first update finite when memory is still zero.
const adagradEps = 1e-8

// Adagrad applies per-parameter adaptive updates:
//
//	mem   += g²
//	param -= lr·g / sqrt(mem + 1e-8)
//
// Memory only grows, so the effective step size of every entry is
// non-increasing over training.
type Adagrad struct {
	LearningRate float64
	mem          *Params
}

// NewAdagrad returns an optimizer with zero memory shaped like p.
func NewAdagrad(p *Params, lr float64) *Adagrad {
	mem := p.Clone()
	mem.Zero()
	return &Adagrad{LearningRate: lr, mem: mem}
}

// Update applies one step of g to p.
func (a *Adagrad) Update(p, g *Params) {
	pt, gt, mt := p.Tensors(), g.Tensors(), a.mem.Tensors()
	if len(pt) != len(gt) || len(pt) != len(mt) {
		panic("rnn: adagrad parameter layout mismatch")
	}
	for i := range pt {
		pd, gd, md := pt[i].Data, gt[i].Data, mt[i].Data
		if len(pd) != len(gd) || len(pd) != len(md) {
			panic("rnn: adagrad tensor size mismatch for " + pt[i].Name)
		}
		for j, gv := range gd {
			md[j] += gv * gv
			pd[j] -= a.LearningRate * gv / math.Sqrt(md[j]+adagradEps)
		}
	}
}

// Memory returns the accumulated squared gradients. The result aliases the
// optimizer state.
func (a *Adagrad) Memory() *Params {
	return a.mem
}
