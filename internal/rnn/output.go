package rnn

import (
	"math"

	"github.com/samcharles93/charnn/internal/tensor"
)

// lossFloor keeps -log(p) finite when the target has vanishing probability.
const lossFloor = 1e-12

// project computes logits = Why·h + by.
func project(p *Params, h, logits []float64) {
	copy(logits, p.By)
	tensor.MatVecAdd(logits, &p.Why, h)
}

// crossEntropy returns -log p[target].
func crossEntropy(probs []float64, target int) float64 {
	return -math.Log(math.Max(probs[target], lossFloor))
}
