// Package corpus turns training text into alphabet indices.
package corpus

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// ErrNotInAlphabet matches every MembershipError.
var ErrNotInAlphabet = errors.New("character not in alphabet")

// MembershipError reports a symbol that the alphabet does not contain.
type MembershipError struct {
	Char rune
	Pos  int
}

func (e *MembershipError) Error() string {
	return fmt.Sprintf("corpus: character %q at position %d is not in the alphabet", e.Char, e.Pos)
}

func (e *MembershipError) Unwrap() error {
	return ErrNotInAlphabet
}

// Alphabet is an immutable bijection between runes and indices 0..Size()-1.
type Alphabet struct {
	symbols []rune
	index   map[rune]int
}

// NewAlphabet builds the alphabet of distinct runes in text, ordered by code point.
func NewAlphabet(text string) *Alphabet {
	seen := make(map[rune]struct{})
	for _, r := range text {
		seen[r] = struct{}{}
	}
	symbols := make([]rune, 0, len(seen))
	for r := range seen {
		symbols = append(symbols, r)
	}
	slices.Sort(symbols)
	return newAlphabet(symbols)
}

// AlphabetFromSymbols rebuilds an alphabet from its symbol list, preserving order.
// Each entry must be exactly one rune and entries must be unique.
func AlphabetFromSymbols(symbols []string) (*Alphabet, error) {
	runes := make([]rune, 0, len(symbols))
	seen := make(map[rune]struct{}, len(symbols))
	for i, s := range symbols {
		if utf8.RuneCountInString(s) != 1 {
			return nil, fmt.Errorf("corpus: alphabet symbol %d (%q) is not a single character", i, s)
		}
		r, _ := utf8.DecodeRuneInString(s)
		if _, dup := seen[r]; dup {
			return nil, fmt.Errorf("corpus: duplicate alphabet symbol %q", s)
		}
		seen[r] = struct{}{}
		runes = append(runes, r)
	}
	if len(runes) == 0 {
		return nil, errors.New("corpus: empty alphabet")
	}
	return newAlphabet(runes), nil
}

func newAlphabet(symbols []rune) *Alphabet {
	index := make(map[rune]int, len(symbols))
	for i, r := range symbols {
		index[r] = i
	}
	return &Alphabet{symbols: symbols, index: index}
}

// Size returns the number of symbols.
func (a *Alphabet) Size() int {
	return len(a.symbols)
}

// Index returns the index of r.
func (a *Alphabet) Index(r rune) (int, bool) {
	i, ok := a.index[r]
	return i, ok
}

// Symbol returns the rune at index i. Out-of-range indices panic.
func (a *Alphabet) Symbol(i int) rune {
	return a.symbols[i]
}

// Symbols returns the alphabet as single-character strings, in index order.
func (a *Alphabet) Symbols() []string {
	out := make([]string, len(a.symbols))
	for i, r := range a.symbols {
		out[i] = string(r)
	}
	return out
}

// Encode translates text into indices. The first absent rune yields a
// *MembershipError and no indices.
func (a *Alphabet) Encode(text string) ([]int, error) {
	out := make([]int, 0, len(text))
	pos := 0
	for _, r := range text {
		i, ok := a.index[r]
		if !ok {
			return nil, &MembershipError{Char: r, Pos: pos}
		}
		out = append(out, i)
		pos++
	}
	return out, nil
}

// Decode translates indices back into text.
func (a *Alphabet) Decode(indices []int) string {
	var b strings.Builder
	b.Grow(len(indices))
	for _, i := range indices {
		b.WriteRune(a.symbols[i])
	}
	return b.String()
}
