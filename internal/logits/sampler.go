package logits

import (
	"math/rand"

	"github.com/samcharles93/charnn/internal/tensor"
)

// Sampler draws symbol indices from logit vectors. It owns the random source,
// so two samplers built from the same seed produce identical draws for
// identical inputs.
type Sampler struct {
	rng   *rand.Rand
	prob  []float64
	draws uint64
}

// NewSampler returns a sampler seeded with seed.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// NewSamplerFromRand wraps an existing random source.
func NewSamplerFromRand(rng *rand.Rand) *Sampler {
	if rng == nil {
		panic("logits: nil random source")
	}
	return &Sampler{rng: rng}
}

// ValidTemperature reports whether temp lies in (0, 1].
func ValidTemperature(temp float64) bool {
	return temp > 0 && !tensor.Close(temp, 0) && temp <= 1+tensor.Eps
}

// Distribution writes softmax(logits / temp) into dst. Lower temperatures
// sharpen the distribution towards the most likely index. temp must be in
// (0, 1]; anything else is a caller bug and panics.
func Distribution(dst, logits []float64, temp float64) {
	if !ValidTemperature(temp) {
		panic("logits: temperature must be in (0, 1]")
	}
	tensor.Softmax(dst, logits, 1/temp)
}

// Sample draws one index from the temperature-scaled distribution over logits.
func (s *Sampler) Sample(logits []float64, temp float64) int {
	if cap(s.prob) < len(logits) {
		s.prob = make([]float64, len(logits))
	}
	p := s.prob[:len(logits)]
	Distribution(p, logits, temp)
	return s.Draw(p)
}

// Draw picks an index from the probability vector p.
func (s *Sampler) Draw(p []float64) int {
	s.draws++
	return Draw(p, s.rng.Float64())
}

// Draws returns how many values the sampler has consumed from its source.
func (s *Sampler) Draws() uint64 { return s.draws }

// Skip discards n values from the source, leaving the sampler where a sampler
// from the same seed would be after n draws.
func (s *Sampler) Skip(n uint64) {
	for i := uint64(0); i < n; i++ {
		s.rng.Float64()
	}
	s.draws += n
}

// Draw selects the first index whose cumulative probability reaches r, with r
// drawn from [0,1). Rounding can leave the total slightly below r, in which
// case the last index with non-zero mass is returned.
func Draw(p []float64, r float64) int {
	if len(p) == 0 {
		panic("logits: empty distribution")
	}
	var c float64
	last := 0
	for i, v := range p {
		if v <= 0 {
			continue
		}
		last = i
		c += v
		if r < c {
			return i
		}
	}
	return last
}

// Argmax returns the index of the largest value. It panics on an empty slice.
func Argmax(x []float64) int {
	if len(x) == 0 {
		panic("logits: argmax of empty slice")
	}
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}
