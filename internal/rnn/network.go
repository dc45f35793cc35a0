// Package rnn implements a character-level recurrent network: a stack of
// tanh cells feeding a softmax projection, trained with truncated
// backpropagation-through-time and Adagrad.
package rnn

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

// Variant selects the network topology at construction time.
type Variant int

const (
	// VariantStacked runs Config.Layers cells per timestep, each feeding the next.
	VariantStacked Variant = iota
	// VariantSimple is a single recurrent layer; Config.Layers is ignored.
	VariantSimple
)

func (v Variant) String() string {
	switch v {
	case VariantStacked:
		return "stacked"
	case VariantSimple:
		return "simple"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant maps "simple" or "stacked" to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stacked", "":
		return VariantStacked, nil
	case "simple":
		return VariantSimple, nil
	default:
		return 0, fmt.Errorf("unknown network variant %q", s)
	}
}

// DefaultInitStd is the standard deviation of the initial weights.
const DefaultInitStd = 0.01

var ErrInvalidConfig = errors.New("rnn: invalid config")

// Config fixes the shape and training hyperparameters of a network.
type Config struct {
	Vocab        int
	Hidden       int
	Layers       int
	LearningRate float64
	Variant      Variant
	Seed         int64
	// InitStd overrides DefaultInitStd when positive.
	InitStd float64
}

func (c Config) normalized() Config {
	if c.Variant == VariantSimple {
		c.Layers = 1
	}
	if c.InitStd <= 0 {
		c.InitStd = DefaultInitStd
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.Variant != VariantSimple && c.Variant != VariantStacked:
		return fmt.Errorf("%w: variant %v", ErrInvalidConfig, c.Variant)
	case c.Vocab < 2:
		return fmt.Errorf("%w: vocabulary size %d, need at least 2", ErrInvalidConfig, c.Vocab)
	case c.Hidden < 1:
		return fmt.Errorf("%w: hidden size %d", ErrInvalidConfig, c.Hidden)
	case c.Layers < 1:
		return fmt.Errorf("%w: layer count %d", ErrInvalidConfig, c.Layers)
	case c.LearningRate < 0:
		return fmt.Errorf("%w: learning rate %g", ErrInvalidConfig, c.LearningRate)
	}
	return nil
}

// Network owns parameters, optimizer memory and the persistent hidden state.
// It is not safe for concurrent use.
type Network struct {
	cfg    Config
	params *Params
	grads  *Params
	opt    *Adagrad
	hidden [][]float64

	win     *window
	scratch frame
	logits  []float64
}

// New builds a network with weights drawn from N(0, InitStd²) using cfg.Seed.
func New(cfg Config) (*Network, error) {
	cfg = cfg.normalized()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	params := newParams(cfg.Vocab, cfg.Hidden, cfg.Layers)
	params.randomize(rand.New(rand.NewSource(cfg.Seed)), cfg.InitStd)

	n := &Network{
		cfg:     cfg,
		params:  params,
		grads:   newParams(cfg.Vocab, cfg.Hidden, cfg.Layers),
		opt:     NewAdagrad(params, cfg.LearningRate),
		hidden:  newState(cfg.Layers, cfg.Hidden),
		win:     newWindow(cfg.Vocab, cfg.Hidden, cfg.Layers),
		scratch: newFrame(cfg.Vocab, cfg.Hidden, cfg.Layers),
		logits:  make([]float64, cfg.Vocab),
	}
	for l := range n.scratch.layers {
		n.scratch.layers[l].hPrev = n.hidden[l]
	}
	return n, nil
}

// Config returns the effective configuration.
func (n *Network) Config() Config { return n.cfg }

// SetLearningRate changes the Adagrad step size from the next update on.
// Accumulated memory is kept. It panics on a negative or NaN rate.
func (n *Network) SetLearningRate(lr float64) {
	if !(lr >= 0) {
		panic(fmt.Sprintf("rnn: invalid learning rate %v", lr))
	}
	n.cfg.LearningRate = lr
	n.opt.LearningRate = lr
}

// Params returns the live parameter store.
func (n *Network) Params() *Params { return n.params }

// Memory returns the live Adagrad memory.
func (n *Network) Memory() *Params { return n.opt.Memory() }

// Hidden returns a copy of the persistent hidden state, one vector per layer.
func (n *Network) Hidden() [][]float64 {
	out := make([][]float64, len(n.hidden))
	for l, h := range n.hidden {
		out[l] = append([]float64(nil), h...)
	}
	return out
}

// SetHidden overwrites the persistent hidden state. It panics when h does not
// have one vector of the hidden size per layer.
func (n *Network) SetHidden(h [][]float64) {
	if len(h) != len(n.hidden) {
		panic(fmt.Sprintf("rnn: hidden state has %d layers, want %d", len(h), len(n.hidden)))
	}
	for l := range h {
		if len(h[l]) != n.cfg.Hidden {
			panic(fmt.Sprintf("rnn: hidden state layer %d has size %d, want %d", l, len(h[l]), n.cfg.Hidden))
		}
	}
	for l := range h {
		copy(n.hidden[l], h[l])
	}
}

// ResetHidden zeroes the persistent hidden state.
func (n *Network) ResetHidden() {
	for _, h := range n.hidden {
		clear(h)
	}
}

// Train runs one window of BPTT from the persistent state, applies an Adagrad
// step and leaves the persistent state at the window's final hidden state.
// It returns the summed cross-entropy of the window before the update.
func (n *Network) Train(inputs, targets []int) float64 {
	steps := n.checkWindow(inputs, targets)
	loss := n.win.forward(n.params, inputs, targets, n.hidden)
	n.win.backward(n.params, n.grads, targets, steps)
	n.win.final(n.hidden, steps)
	n.opt.Update(n.params, n.grads)
	return loss
}

// Gradients returns the window loss and the clipped gradients without
// touching parameters, memory or hidden state.
func (n *Network) Gradients(inputs, targets []int) (float64, *Params) {
	steps := n.checkWindow(inputs, targets)
	loss := n.win.forward(n.params, inputs, targets, n.hidden)
	n.win.backward(n.params, n.grads, targets, steps)
	return loss, n.grads.Clone()
}

// Loss evaluates the window loss from the persistent state without mutating
// anything.
func (n *Network) Loss(inputs, targets []int) float64 {
	n.checkWindow(inputs, targets)
	return n.win.forward(n.params, inputs, targets, n.hidden)
}

func (n *Network) checkWindow(inputs, targets []int) int {
	if len(inputs) == 0 || len(inputs) != len(targets) {
		panic(fmt.Sprintf("rnn: window needs matching non-empty inputs and targets, got %d and %d", len(inputs), len(targets)))
	}
	return len(inputs)
}
