package rnn

import "github.com/samcharles93/charnn/internal/logits"

// feed advances the persistent state by one input index.
func (n *Network) feed(idx int) {
	f := &n.scratch
	f.input = idx
	step(n.params, f)
	for l := range n.hidden {
		copy(n.hidden[l], f.layers[l].h)
	}
}

// Advance feeds indices through the cell without sampling, exactly as
// sampling or training would.
func (n *Network) Advance(indices []int) {
	for _, idx := range indices {
		n.feed(idx)
	}
}

// SampleIndices feeds seed, then draws count indices at temperature temp, each
// fed back as the next input. When advance is false the persistent state is
// restored to its exact pre-call value before returning.
//
// An empty seed or a temperature outside (0, 1] panics.
func (n *Network) SampleIndices(s *logits.Sampler, count int, seed []int, temp float64, advance bool) []int {
	if len(seed) == 0 {
		panic("rnn: sampling needs at least one seed index")
	}
	if !logits.ValidTemperature(temp) {
		panic("rnn: sampling temperature must be in (0, 1]")
	}
	var saved [][]float64
	if !advance {
		saved = n.Hidden()
	}

	n.Advance(seed)
	out := make([]int, count)
	for i := range out {
		project(n.params, n.hidden[len(n.hidden)-1], n.logits)
		logits.Distribution(n.scratch.probs, n.logits, temp)
		idx := s.Draw(n.scratch.probs)
		out[i] = idx
		n.feed(idx)
	}

	if !advance {
		n.SetHidden(saved)
	}
	return out
}

// NextDistribution writes the temperature-scaled distribution over the next
// index, given the current persistent state, into dst.
func (n *Network) NextDistribution(dst []float64, temp float64) {
	project(n.params, n.hidden[len(n.hidden)-1], n.logits)
	logits.Distribution(dst, n.logits, temp)
}
