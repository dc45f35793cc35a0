package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewAlphabetSortedAndBijective(t *testing.T) {
	t.Parallel()
	a := NewAlphabet("hello, world")
	want := []string{" ", ",", "d", "e", "h", "l", "o", "r", "w"}
	got := a.Symbols()
	if len(got) != len(want) {
		t.Fatalf("size: got %d want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("symbol %d: got %q want %q", i, got[i], want[i])
		}
		idx, ok := a.Index([]rune(want[i])[0])
		if !ok || idx != i {
			t.Fatalf("Index(%q): got %d,%v want %d", want[i], idx, ok, i)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	text := "naïve café"
	a := NewAlphabet(text)
	ids, err := a.Encode(text)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := a.Decode(ids); got != text {
		t.Fatalf("round trip: got %q want %q", got, text)
	}
}

func TestEncodeMembershipError(t *testing.T) {
	t.Parallel()
	a := NewAlphabet("abc")
	_, err := a.Encode("abz")
	if !errors.Is(err, ErrNotInAlphabet) {
		t.Fatalf("expected ErrNotInAlphabet, got %v", err)
	}
	var me *MembershipError
	if !errors.As(err, &me) {
		t.Fatalf("expected *MembershipError, got %T", err)
	}
	if me.Char != 'z' || me.Pos != 2 {
		t.Fatalf("unexpected membership error: %+v", me)
	}
}

func TestAlphabetFromSymbols(t *testing.T) {
	t.Parallel()
	a, err := AlphabetFromSymbols([]string{"x", "a", "\n"})
	if err != nil {
		t.Fatalf("from symbols: %v", err)
	}
	if i, _ := a.Index('x'); i != 0 {
		t.Fatalf("order not preserved: x at %d", i)
	}
	if _, err := AlphabetFromSymbols([]string{"ab"}); err == nil {
		t.Fatal("expected error for multi-character symbol")
	}
	if _, err := AlphabetFromSymbols([]string{"a", "a"}); err == nil {
		t.Fatal("expected error for duplicate symbol")
	}
	if _, err := AlphabetFromSymbols(nil); err == nil {
		t.Fatal("expected error for empty alphabet")
	}
}

func TestWindow(t *testing.T) {
	t.Parallel()
	c, err := FromText("abcdef")
	if err != nil {
		t.Fatalf("from text: %v", err)
	}
	in, tg, ok := c.Window(1, 3)
	if !ok {
		t.Fatal("expected window to fit")
	}
	if c.Alphabet.Decode(in) != "bcd" || c.Alphabet.Decode(tg) != "cde" {
		t.Fatalf("window: inputs %q targets %q", c.Alphabet.Decode(in), c.Alphabet.Decode(tg))
	}
	if _, _, ok := c.Window(3, 3); ok {
		t.Fatal("window past end should not fit")
	}
	if err := c.CheckWindow(5); err != nil {
		t.Fatalf("CheckWindow(5): %v", err)
	}
	if err := c.CheckWindow(6); !errors.Is(err, ErrCorpusTooShort) {
		t.Fatalf("CheckWindow(6): got %v", err)
	}
}

func TestFromTextRejectsDegenerateInput(t *testing.T) {
	t.Parallel()
	if _, err := FromText(""); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("empty: got %v", err)
	}
	if _, err := FromText("aaaa"); !errors.Is(err, ErrTrivialCorpus) {
		t.Fatalf("single symbol: got %v", err)
	}
	if _, err := FromText(string([]byte{0xff, 0xfe})); !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("invalid utf8: got %v", err)
	}
}

func TestLoadWrapsPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "input.txt")
	if err := os.WriteFile(path, []byte("to be or not to be"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != len("to be or not to be") {
		t.Fatalf("len: got %d", c.Len())
	}

	_, err = Load(filepath.Join(dir, "missing.txt"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestWithAlphabet(t *testing.T) {
	t.Parallel()
	a := NewAlphabet("abc")
	if _, err := WithAlphabet("cab", a); err != nil {
		t.Fatalf("known text: %v", err)
	}
	if _, err := WithAlphabet("cad", a); !errors.Is(err, ErrNotInAlphabet) {
		t.Fatalf("unknown text: got %v", err)
	}
}
