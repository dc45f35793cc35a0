package ckpt

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// File is an opened, validated checkpoint.
type File struct {
	Data     []byte
	Header   Header
	Sections []Section
	mmapped  bool
}

// Open maps path read-only and validates it, falling back to reading the
// whole file when mmap is unavailable. Close releases the mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size < headerSize || size > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: size %d", ErrCorruptFile, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		cf, perr := parse(data, true)
		if perr != nil {
			_ = unix.Munmap(data)
			return nil, perr
		}
		return cf, nil
	}

	data, err = readAllAt(f, int(size))
	if err != nil {
		return nil, err
	}
	return parse(data, false)
}

// OpenReaderAt loads a checkpoint from r without mmap.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	if size < 0 || size > int64(int(^uint(0)>>1)) {
		return nil, ErrCorruptFile
	}
	data, err := readAllAt(r, int(size))
	if err != nil {
		return nil, err
	}
	return parse(data, false)
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	n, err := r.ReadAt(out, 0)
	if n == size {
		return out, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

func parse(data []byte, mmapped bool) (*File, error) {
	if len(data) < headerSize {
		return nil, ErrCorruptFile
	}
	h := decodeHeader(data[:headerSize])
	if string(h.Magic[:]) != Magic {
		return nil, ErrInvalidMagic
	}
	if h.Major != CurrentMajor {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMajor, h.Major)
	}
	if h.HeaderSize < headerSize || uint64(h.HeaderSize) > uint64(len(data)) {
		return nil, fmt.Errorf("%w: header size %d", ErrCorruptFile, h.HeaderSize)
	}
	if h.FileSize != uint64(len(data)) {
		return nil, fmt.Errorf("%w: header records %d bytes, file has %d", ErrCorruptFile, h.FileSize, len(data))
	}
	if h.SectionCount == 0 {
		return nil, fmt.Errorf("%w: no sections", ErrCorruptFile)
	}

	dirStart := h.SectionDirOffset
	dirEnd := dirStart + uint64(h.SectionCount)*sectionSize
	if dirStart < uint64(h.HeaderSize) || dirEnd < dirStart || dirEnd > uint64(len(data)) {
		return nil, fmt.Errorf("%w: section directory out of bounds", ErrCorruptFile)
	}
	if h.Flags&FlagChecksum != 0 {
		if sum := crc32.Checksum(data[h.HeaderSize:], castagnoli); sum != h.Checksum {
			return nil, fmt.Errorf("%w: got %08x want %08x", ErrChecksum, sum, h.Checksum)
		}
	}

	sections := make([]Section, h.SectionCount)
	seen := make(map[SectionType]bool, len(sections))
	for i := range sections {
		off := dirStart + uint64(i)*sectionSize
		s := decodeSection(data[off : off+sectionSize])
		end := s.End()
		switch {
		case seen[s.Type]:
			return nil, fmt.Errorf("%w: duplicate section %s", ErrCorruptFile, s.Type)
		case end < s.Offset || end > uint64(len(data)):
			return nil, fmt.Errorf("%w: section %s out of bounds", ErrCorruptFile, s.Type)
		case s.Offset < uint64(h.HeaderSize):
			return nil, fmt.Errorf("%w: section %s overlaps header", ErrCorruptFile, s.Type)
		case rangesOverlap(s.Offset, end, dirStart, dirEnd):
			return nil, fmt.Errorf("%w: section %s overlaps directory", ErrCorruptFile, s.Type)
		case s.Offset%align != 0:
			return nil, fmt.Errorf("%w: section %s not %d-byte aligned", ErrCorruptFile, s.Type, align)
		}
		seen[s.Type] = true
		sections[i] = s
	}

	return &File{Data: data, Header: h, Sections: sections, mmapped: mmapped}, nil
}

// Close releases the mapping. Slices returned by SectionData are invalid
// afterwards.
func (f *File) Close() error {
	if f == nil || f.Data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.Data)
	}
	f.Data = nil
	f.Sections = nil
	f.mmapped = false
	return err
}

// Section returns the directory entry for typ, or nil.
func (f *File) Section(typ SectionType) *Section {
	for i := range f.Sections {
		if f.Sections[i].Type == typ {
			return &f.Sections[i]
		}
	}
	return nil
}

// SectionData returns a view of the payload of s.
func (f *File) SectionData(s *Section) []byte {
	if f == nil || s == nil || f.Data == nil {
		return nil
	}
	end := s.End()
	if end < s.Offset || end > uint64(len(f.Data)) {
		return nil
	}
	return f.Data[s.Offset:end]
}
