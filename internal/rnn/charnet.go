package rnn

import (
	"errors"
	"fmt"

	"github.com/samcharles93/charnn/internal/corpus"
	"github.com/samcharles93/charnn/internal/logits"
)

var ErrEmptySeed = errors.New("rnn: seed text is empty")

// CharNet pairs a network with the alphabet its indices refer to.
type CharNet struct {
	Net      *Network
	Alphabet *corpus.Alphabet
}

// NewCharNet checks that the network vocabulary matches the alphabet.
func NewCharNet(net *Network, alpha *corpus.Alphabet) (*CharNet, error) {
	if net.Config().Vocab != alpha.Size() {
		return nil, fmt.Errorf("%w: vocabulary %d does not match alphabet of %d symbols",
			ErrInvalidConfig, net.Config().Vocab, alpha.Size())
	}
	return &CharNet{Net: net, Alphabet: alpha}, nil
}

// SampleString samples n characters after seed. The whole seed is translated
// before the network is touched, so a *corpus.MembershipError leaves the
// hidden state unchanged.
func (c *CharNet) SampleString(s *logits.Sampler, n int, seed string, temp float64, advance bool) (string, error) {
	if seed == "" {
		return "", ErrEmptySeed
	}
	ids, err := c.Alphabet.Encode(seed)
	if err != nil {
		return "", err
	}
	return c.Alphabet.Decode(c.Net.SampleIndices(s, n, ids, temp, advance)), nil
}

// AdvanceString feeds text through the network without sampling.
func (c *CharNet) AdvanceString(text string) error {
	ids, err := c.Alphabet.Encode(text)
	if err != nil {
		return err
	}
	c.Net.Advance(ids)
	return nil
}
