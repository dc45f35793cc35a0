package ckpt

import (
	"errors"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"sync"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Writer streams a checkpoint to a file. Space for the header is reserved up
// front and patched by Finalise.
type Writer struct {
	mu       sync.Mutex
	f        *os.File
	pos      int64
	crc      hash.Hash32
	sections []Section
	seen     map[SectionType]bool
	open     *SectionWriter
	closed   bool
	pad      [align]byte
}

// SectionWriter streams one section payload. It must be ended before any
// other section is started.
type SectionWriter struct {
	w       *Writer
	typ     SectionType
	version uint32
	start   int64
	ended   bool
}

// NewWriter truncates f and reserves the header.
func NewWriter(f *os.File) (*Writer, error) {
	if f == nil {
		return nil, errors.New("ckpt: nil file")
	}
	if err := f.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var hdr [headerSize]byte
	if err := writeFull(f, hdr[:]); err != nil {
		return nil, err
	}
	return &Writer{
		f:    f,
		pos:  headerSize,
		crc:  crc32.New(castagnoli),
		seen: make(map[SectionType]bool),
	}, nil
}

func (w *Writer) checkIdle(typ SectionType) error {
	switch {
	case w.closed:
		return errors.New("ckpt: writer already finalised")
	case w.open != nil:
		return errors.New("ckpt: section write in progress")
	case w.seen[typ]:
		return errors.New("ckpt: duplicate section " + typ.String())
	}
	return nil
}

// WriteSection writes a complete section payload.
func (w *Writer) WriteSection(typ SectionType, version uint32, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkIdle(typ); err != nil {
		return err
	}
	if err := w.alignTo(align); err != nil {
		return err
	}
	start := w.pos
	if err := w.write(data); err != nil {
		return err
	}
	w.sections = append(w.sections, Section{Type: typ, Version: version, Offset: uint64(start), Size: uint64(len(data))})
	w.seen[typ] = true
	return nil
}

// BeginSection starts streaming a section payload.
func (w *Writer) BeginSection(typ SectionType, version uint32) (*SectionWriter, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkIdle(typ); err != nil {
		return nil, err
	}
	if err := w.alignTo(align); err != nil {
		return nil, err
	}
	sw := &SectionWriter{w: w, typ: typ, version: version, start: w.pos}
	w.open = sw
	w.seen[typ] = true
	return sw, nil
}

func (sw *SectionWriter) active() error {
	if sw.ended {
		return errors.New("ckpt: section writer ended")
	}
	if sw.w.open != sw {
		return errors.New("ckpt: section writer not active")
	}
	return nil
}

// Offset returns the absolute file offset of the next byte written.
func (sw *SectionWriter) Offset() (uint64, error) {
	sw.w.mu.Lock()
	defer sw.w.mu.Unlock()
	if err := sw.active(); err != nil {
		return 0, err
	}
	return uint64(sw.w.pos), nil
}

// Align pads with zeros to an n-byte file offset.
func (sw *SectionWriter) Align(n int) error {
	sw.w.mu.Lock()
	defer sw.w.mu.Unlock()
	if err := sw.active(); err != nil {
		return err
	}
	return sw.w.alignTo(int64(n))
}

func (sw *SectionWriter) Write(p []byte) (int, error) {
	sw.w.mu.Lock()
	defer sw.w.mu.Unlock()
	if err := sw.active(); err != nil {
		return 0, err
	}
	if err := sw.w.write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// End records the section in the directory.
func (sw *SectionWriter) End() error {
	sw.w.mu.Lock()
	defer sw.w.mu.Unlock()
	if err := sw.active(); err != nil {
		return err
	}
	sw.w.sections = append(sw.w.sections, Section{
		Type:    sw.typ,
		Version: sw.version,
		Offset:  uint64(sw.start),
		Size:    uint64(sw.w.pos - sw.start),
	})
	sw.w.open = nil
	sw.ended = true
	return nil
}

// Finalise writes the section directory, patches the header and syncs.
// The writer cannot be used afterwards.
func (w *Writer) Finalise() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("ckpt: writer already finalised")
	}
	if w.open != nil {
		return errors.New("ckpt: section write in progress")
	}
	if len(w.sections) == 0 {
		return errors.New("ckpt: no sections written")
	}
	w.closed = true

	sort.Slice(w.sections, func(i, j int) bool { return w.sections[i].Type < w.sections[j].Type })
	if err := w.alignTo(align); err != nil {
		return err
	}
	dirOffset := w.pos
	var buf [sectionSize]byte
	for _, s := range w.sections {
		encodeSection(buf[:], s)
		if err := w.write(buf[:]); err != nil {
			return err
		}
	}
	if err := w.f.Truncate(w.pos); err != nil {
		return err
	}

	h := Header{
		Major:            CurrentMajor,
		Minor:            CurrentMinor,
		HeaderSize:       headerSize,
		SectionCount:     uint32(len(w.sections)),
		SectionDirOffset: uint64(dirOffset),
		FileSize:         uint64(w.pos),
		Flags:            FlagChecksum,
		Checksum:         w.crc.Sum32(),
	}
	copy(h.Magic[:], Magic)
	var hdr [headerSize]byte
	encodeHeader(hdr[:], h)
	if _, err := w.f.WriteAt(hdr[:], 0); err != nil {
		return err
	}
	return w.f.Sync()
}

func (w *Writer) write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if err := writeFull(w.f, p); err != nil {
		return err
	}
	w.crc.Write(p)
	w.pos += int64(len(p))
	return nil
}

func (w *Writer) alignTo(n int64) error {
	if n <= 1 {
		return nil
	}
	for w.pos%n != 0 {
		k := min(n-w.pos%n, int64(len(w.pad)))
		if err := w.write(w.pad[:k]); err != nil {
			return err
		}
	}
	return nil
}

func writeFull(f *os.File, p []byte) error {
	for len(p) > 0 {
		n, err := f.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}
