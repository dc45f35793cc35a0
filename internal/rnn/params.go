package rnn

import (
	"fmt"
	"math/rand"

	"github.com/samcharles93/charnn/internal/tensor"
)

// Layer holds the weights of one recurrent layer.
type Layer struct {
	Wxh tensor.Mat // hidden x input
	Whh tensor.Mat // hidden x hidden
	Bh  []float64  // hidden
}

// Params is a complete parameter set. The same shape is reused for gradient
// accumulators and Adagrad memory.
type Params struct {
	Layers []Layer
	Why    tensor.Mat // vocab x hidden
	By     []float64  // vocab
}

// Tensor is a named view over one parameter tensor. Data aliases the owning
// Params; Shape is [rows, cols] for matrices and [n] for vectors.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float64
}

func newParams(vocab, hidden, layers int) *Params {
	p := &Params{
		Layers: make([]Layer, layers),
		Why:    tensor.NewMat(vocab, hidden),
		By:     make([]float64, vocab),
	}
	for l := range p.Layers {
		in := hidden
		if l == 0 {
			in = vocab
		}
		p.Layers[l] = Layer{
			Wxh: tensor.NewMat(hidden, in),
			Whh: tensor.NewMat(hidden, hidden),
			Bh:  make([]float64, hidden),
		}
	}
	return p
}

// randomize draws every weight matrix from N(0, std²). Biases stay zero.
func (p *Params) randomize(rng *rand.Rand, std float64) {
	for l := range p.Layers {
		tensor.FillRandn(&p.Layers[l].Wxh, rng, std)
		tensor.FillRandn(&p.Layers[l].Whh, rng, std)
	}
	tensor.FillRandn(&p.Why, rng, std)
}

// Tensors lists every tensor in a fixed order.
func (p *Params) Tensors() []Tensor {
	out := make([]Tensor, 0, 3*len(p.Layers)+2)
	for l := range p.Layers {
		layer := &p.Layers[l]
		out = append(out,
			matTensor(fmt.Sprintf("layers.%d.wxh", l), &layer.Wxh),
			matTensor(fmt.Sprintf("layers.%d.whh", l), &layer.Whh),
			Tensor{Name: fmt.Sprintf("layers.%d.bh", l), Shape: []int{len(layer.Bh)}, Data: layer.Bh},
		)
	}
	out = append(out,
		matTensor("why", &p.Why),
		Tensor{Name: "by", Shape: []int{len(p.By)}, Data: p.By},
	)
	return out
}

func matTensor(name string, m *tensor.Mat) Tensor {
	return Tensor{Name: name, Shape: []int{m.R, m.C}, Data: m.Data}
}

// Zero resets every entry to zero.
func (p *Params) Zero() {
	for _, t := range p.Tensors() {
		clear(t.Data)
	}
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	out := &Params{
		Layers: make([]Layer, len(p.Layers)),
		Why:    p.Why.Clone(),
		By:     append([]float64(nil), p.By...),
	}
	for l, layer := range p.Layers {
		out.Layers[l] = Layer{
			Wxh: layer.Wxh.Clone(),
			Whh: layer.Whh.Clone(),
			Bh:  append([]float64(nil), layer.Bh...),
		}
	}
	return out
}

// Clip bounds every entry into [-bound, bound].
func (p *Params) Clip(bound float64) {
	for _, t := range p.Tensors() {
		tensor.Clip(t.Data, bound)
	}
}

// Count returns the total number of scalar parameters.
func (p *Params) Count() int {
	n := 0
	for _, t := range p.Tensors() {
		n += len(t.Data)
	}
	return n
}
