// Package ckpt implements the charnn checkpoint container.
//
// A checkpoint is a single little-endian file:
//
//	header (48 bytes) | sections, each 8-byte aligned | section directory
//
// The header is patched last, so a file whose header does not describe its
// own size was not written completely. Payload bytes between the header and
// the end of the directory are covered by a CRC-32C checksum.
package ckpt

import (
	"encoding/binary"
	"errors"
)

const (
	Magic = "CKP\x00"

	// CurrentMajor changes only for incompatible layout changes.
	CurrentMajor uint16 = 1
	CurrentMinor uint16 = 0

	// FlagChecksum marks files whose header carries a payload checksum.
	FlagChecksum uint64 = 1 << 0

	headerSize  = 48
	sectionSize = 24
	align       = 8
)

var (
	ErrInvalidMagic     = errors.New("ckpt: invalid magic")
	ErrUnsupportedMajor = errors.New("ckpt: unsupported major version")
	ErrCorruptFile      = errors.New("ckpt: corrupt file")
	ErrChecksum         = errors.New("ckpt: checksum mismatch")
	ErrTensorNotFound   = errors.New("ckpt: tensor not found")
)

// SectionType identifies a section payload. Each type appears at most once.
type SectionType uint32

const (
	SectionInfo        SectionType = 0x0001 // JSON run and model description
	SectionAlphabet    SectionType = 0x0002 // JSON array of symbols
	SectionTensorIndex SectionType = 0x0003
	SectionTensorData  SectionType = 0x0004
)

func (t SectionType) String() string {
	switch t {
	case SectionInfo:
		return "info"
	case SectionAlphabet:
		return "alphabet"
	case SectionTensorIndex:
		return "tensor-index"
	case SectionTensorData:
		return "tensor-data"
	default:
		return "unknown"
	}
}

// Header is the fixed file header.
type Header struct {
	Magic            [4]byte
	Major            uint16
	Minor            uint16
	HeaderSize       uint32
	SectionCount     uint32
	SectionDirOffset uint64
	FileSize         uint64
	Flags            uint64
	Checksum         uint32
}

// Section is one entry of the section directory. Offset is absolute.
type Section struct {
	Type    SectionType
	Version uint32
	Offset  uint64
	Size    uint64
}

// End returns the offset one past the last payload byte.
func (s Section) End() uint64 { return s.Offset + s.Size }

func encodeHeader(dst []byte, h Header) {
	copy(dst[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(dst[4:6], h.Major)
	binary.LittleEndian.PutUint16(dst[6:8], h.Minor)
	binary.LittleEndian.PutUint32(dst[8:12], h.HeaderSize)
	binary.LittleEndian.PutUint32(dst[12:16], h.SectionCount)
	binary.LittleEndian.PutUint64(dst[16:24], h.SectionDirOffset)
	binary.LittleEndian.PutUint64(dst[24:32], h.FileSize)
	binary.LittleEndian.PutUint64(dst[32:40], h.Flags)
	binary.LittleEndian.PutUint32(dst[40:44], h.Checksum)
	clear(dst[44:48])
}

func decodeHeader(src []byte) Header {
	var h Header
	copy(h.Magic[:], src[0:4])
	h.Major = binary.LittleEndian.Uint16(src[4:6])
	h.Minor = binary.LittleEndian.Uint16(src[6:8])
	h.HeaderSize = binary.LittleEndian.Uint32(src[8:12])
	h.SectionCount = binary.LittleEndian.Uint32(src[12:16])
	h.SectionDirOffset = binary.LittleEndian.Uint64(src[16:24])
	h.FileSize = binary.LittleEndian.Uint64(src[24:32])
	h.Flags = binary.LittleEndian.Uint64(src[32:40])
	h.Checksum = binary.LittleEndian.Uint32(src[40:44])
	return h
}

func encodeSection(dst []byte, s Section) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(s.Type))
	binary.LittleEndian.PutUint32(dst[4:8], s.Version)
	binary.LittleEndian.PutUint64(dst[8:16], s.Offset)
	binary.LittleEndian.PutUint64(dst[16:24], s.Size)
}

func decodeSection(src []byte) Section {
	return Section{
		Type:    SectionType(binary.LittleEndian.Uint32(src[0:4])),
		Version: binary.LittleEndian.Uint32(src[4:8]),
		Offset:  binary.LittleEndian.Uint64(src[8:16]),
		Size:    binary.LittleEndian.Uint64(src[16:24]),
	}
}

func rangesOverlap(a0, a1, b0, b1 uint64) bool {
	return a0 < b1 && b0 < a1
}
