package corpus

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"
)

var (
	ErrEmptyCorpus    = errors.New("corpus: no training text")
	ErrTrivialCorpus  = errors.New("corpus: text must contain at least two distinct characters")
	ErrInvalidUTF8    = errors.New("corpus: text is not valid UTF-8")
	ErrCorpusTooShort = errors.New("corpus: text is shorter than one training window")
)

// Corpus is the training text expressed as alphabet indices.
type Corpus struct {
	Alphabet *Alphabet
	Indices  []int
}

// Load reads the UTF-8 text file at path and builds its alphabet.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", path, err)
	}
	c, err := FromText(string(data))
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", path, err)
	}
	return c, nil
}

// FromText builds a corpus from in-memory text.
func FromText(text string) (*Corpus, error) {
	if len(text) == 0 {
		return nil, ErrEmptyCorpus
	}
	if !utf8.ValidString(text) {
		return nil, ErrInvalidUTF8
	}
	alpha := NewAlphabet(text)
	if alpha.Size() < 2 {
		return nil, ErrTrivialCorpus
	}
	indices, err := alpha.Encode(text)
	if err != nil {
		return nil, err
	}
	return &Corpus{Alphabet: alpha, Indices: indices}, nil
}

// WithAlphabet re-encodes text with an existing alphabet, as when resuming
// training from a snapshot. Characters outside the alphabet fail.
func WithAlphabet(text string, alpha *Alphabet) (*Corpus, error) {
	if len(text) == 0 {
		return nil, ErrEmptyCorpus
	}
	indices, err := alpha.Encode(text)
	if err != nil {
		return nil, err
	}
	return &Corpus{Alphabet: alpha, Indices: indices}, nil
}

// Len returns the number of symbols in the corpus.
func (c *Corpus) Len() int {
	return len(c.Indices)
}

// Window returns the inputs corpus[p:p+n] and the targets corpus[p+1:p+n+1].
// ok is false when the window would run past the end of the corpus.
// The returned slices alias the corpus and must not be modified.
func (c *Corpus) Window(p, n int) (inputs, targets []int, ok bool) {
	if p < 0 || n < 1 || p+n+1 > len(c.Indices) {
		return nil, nil, false
	}
	return c.Indices[p : p+n], c.Indices[p+1 : p+n+1], true
}

// CheckWindow reports ErrCorpusTooShort when not even one window of length n fits.
func (c *Corpus) CheckWindow(n int) error {
	if _, _, ok := c.Window(0, n); !ok {
		return fmt.Errorf("%w: %d symbols, window needs %d", ErrCorpusTooShort, len(c.Indices), n+1)
	}
	return nil
}
