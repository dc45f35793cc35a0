package ckpt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// TensorIndexVersion is the payload version of the tensor index section.
const TensorIndexVersion uint32 = 1

const (
	indexHeaderSize = 48
	indexEntrySize  = 40
)

// DType identifies the element encoding of a tensor payload.
type DType uint32

const (
	DTypeUnknown DType = iota
	DTypeF64
)

func (d DType) String() string {
	switch d {
	case DTypeF64:
		return "f64"
	default:
		return "unknown"
	}
}

// ElemSize returns the encoded size of one element, or 0 if unknown.
func (d DType) ElemSize() int {
	if d == DTypeF64 {
		return 8
	}
	return 0
}

// IndexRecord describes one tensor for EncodeTensorIndexSection.
// DataOff is an absolute file offset.
type IndexRecord struct {
	Name     string
	DType    DType
	Shape    []uint64
	DataOff  uint64
	DataSize uint64
}

// IndexEntry is a decoded tensor index record.
type IndexEntry struct {
	NameOff  uint32
	NameLen  uint32
	DType    DType
	Rank     uint32
	DimOff   uint32
	DataOff  uint64
	DataSize uint64
}

// TensorIndex is a validated view over a tensor index section payload.
//
// Layout:
//
//	header  version u32 | count u32 | dims u32 | reserved u32 |
//	        entriesOff u64 | dimsOff u64 | stringsOff u64 | stringsSize u64
//	entries count x 40 bytes, sorted by name
//	dims    u64 each
//	strings concatenated names
type TensorIndex struct {
	raw         []byte
	count       uint32
	dimsCount   uint32
	entriesOff  uint64
	dimsOff     uint64
	stringsOff  uint64
	stringsSize uint64
}

// EncodeTensorIndexSection builds an index payload. Records are sorted by
// name so Find can binary search.
func EncodeTensorIndexSection(records []IndexRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, errors.New("ckpt: tensor index needs at least one record")
	}
	recs := append([]IndexRecord(nil), records...)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })

	var (
		dims    []uint64
		strs    []byte
		entries = make([]IndexEntry, 0, len(recs))
	)
	for i, r := range recs {
		if r.Name == "" {
			return nil, errors.New("ckpt: tensor name must be non-empty")
		}
		if i > 0 && recs[i-1].Name == r.Name {
			return nil, fmt.Errorf("ckpt: duplicate tensor %q", r.Name)
		}
		entries = append(entries, IndexEntry{
			NameOff:  uint32(len(strs)),
			NameLen:  uint32(len(r.Name)),
			DType:    r.DType,
			Rank:     uint32(len(r.Shape)),
			DimOff:   uint32(len(dims)),
			DataOff:  r.DataOff,
			DataSize: r.DataSize,
		})
		strs = append(strs, r.Name...)
		dims = append(dims, r.Shape...)
	}

	entriesOff := uint64(indexHeaderSize)
	dimsOff := entriesOff + uint64(len(entries))*indexEntrySize
	stringsOff := dimsOff + uint64(len(dims))*8
	out := make([]byte, stringsOff+uint64(len(strs)))

	le := binary.LittleEndian
	le.PutUint32(out[0:4], TensorIndexVersion)
	le.PutUint32(out[4:8], uint32(len(entries)))
	le.PutUint32(out[8:12], uint32(len(dims)))
	le.PutUint64(out[16:24], entriesOff)
	le.PutUint64(out[24:32], dimsOff)
	le.PutUint64(out[32:40], stringsOff)
	le.PutUint64(out[40:48], uint64(len(strs)))

	p := int(entriesOff)
	for _, e := range entries {
		le.PutUint32(out[p:p+4], e.NameOff)
		le.PutUint32(out[p+4:p+8], e.NameLen)
		le.PutUint32(out[p+8:p+12], uint32(e.DType))
		le.PutUint32(out[p+12:p+16], e.Rank)
		le.PutUint32(out[p+16:p+20], e.DimOff)
		le.PutUint64(out[p+24:p+32], e.DataOff)
		le.PutUint64(out[p+32:p+40], e.DataSize)
		p += indexEntrySize
	}
	for _, d := range dims {
		le.PutUint64(out[p:p+8], d)
		p += 8
	}
	copy(out[p:], strs)
	return out, nil
}

// ParseTensorIndexSection validates an index payload.
func ParseTensorIndexSection(sec []byte) (*TensorIndex, error) {
	if len(sec) < indexHeaderSize {
		return nil, fmt.Errorf("%w: tensor index truncated", ErrCorruptFile)
	}
	le := binary.LittleEndian
	if v := le.Uint32(sec[0:4]); v != TensorIndexVersion {
		return nil, fmt.Errorf("%w: tensor index version %d", ErrCorruptFile, v)
	}
	ti := &TensorIndex{
		raw:         sec,
		count:       le.Uint32(sec[4:8]),
		dimsCount:   le.Uint32(sec[8:12]),
		entriesOff:  le.Uint64(sec[16:24]),
		dimsOff:     le.Uint64(sec[24:32]),
		stringsOff:  le.Uint64(sec[32:40]),
		stringsSize: le.Uint64(sec[40:48]),
	}
	n := uint64(len(sec))
	if ti.count == 0 ||
		!within(ti.entriesOff, uint64(ti.count)*indexEntrySize, n) ||
		!within(ti.dimsOff, uint64(ti.dimsCount)*8, n) ||
		!within(ti.stringsOff, ti.stringsSize, n) {
		return nil, fmt.Errorf("%w: tensor index tables out of bounds", ErrCorruptFile)
	}
	for i := 0; i < int(ti.count); i++ {
		e := ti.entry(i)
		if uint64(e.NameOff)+uint64(e.NameLen) > ti.stringsSize ||
			uint64(e.DimOff)+uint64(e.Rank) > uint64(ti.dimsCount) {
			return nil, fmt.Errorf("%w: tensor index entry %d out of bounds", ErrCorruptFile, i)
		}
	}
	return ti, nil
}

func within(off, size, limit uint64) bool {
	end := off + size
	return end >= off && end <= limit
}

// Count returns the number of tensors.
func (ti *TensorIndex) Count() int { return int(ti.count) }

func (ti *TensorIndex) entry(i int) IndexEntry {
	b := ti.raw[ti.entriesOff+uint64(i)*indexEntrySize:]
	le := binary.LittleEndian
	return IndexEntry{
		NameOff:  le.Uint32(b[0:4]),
		NameLen:  le.Uint32(b[4:8]),
		DType:    DType(le.Uint32(b[8:12])),
		Rank:     le.Uint32(b[12:16]),
		DimOff:   le.Uint32(b[16:20]),
		DataOff:  le.Uint64(b[24:32]),
		DataSize: le.Uint64(b[32:40]),
	}
}

// Entry returns record i.
func (ti *TensorIndex) Entry(i int) (IndexEntry, error) {
	if i < 0 || i >= int(ti.count) {
		return IndexEntry{}, fmt.Errorf("%w: tensor %d out of range", ErrCorruptFile, i)
	}
	return ti.entry(i), nil
}

// Name returns the name of tensor i.
func (ti *TensorIndex) Name(i int) (string, error) {
	e, err := ti.Entry(i)
	if err != nil {
		return "", err
	}
	off := ti.stringsOff + uint64(e.NameOff)
	return string(ti.raw[off : off+uint64(e.NameLen)]), nil
}

// Shape returns the dimensions of tensor i.
func (ti *TensorIndex) Shape(i int) ([]uint64, error) {
	e, err := ti.Entry(i)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, e.Rank)
	for d := range out {
		off := ti.dimsOff + (uint64(e.DimOff)+uint64(d))*8
		out[d] = binary.LittleEndian.Uint64(ti.raw[off : off+8])
	}
	return out, nil
}

// Find binary searches for name.
func (ti *TensorIndex) Find(name string) (int, bool) {
	if ti == nil {
		return -1, false
	}
	n := int(ti.count)
	i := sort.Search(n, func(i int) bool {
		got, err := ti.Name(i)
		return err != nil || strings.Compare(got, name) >= 0
	})
	if i < n {
		if got, err := ti.Name(i); err == nil && got == name {
			return i, true
		}
	}
	return -1, false
}

// TensorData returns a view of tensor i's payload in f.
func (ti *TensorIndex) TensorData(f *File, i int) ([]byte, error) {
	e, err := ti.Entry(i)
	if err != nil {
		return nil, err
	}
	if f == nil || f.Data == nil || !within(e.DataOff, e.DataSize, uint64(len(f.Data))) {
		return nil, fmt.Errorf("%w: tensor %d data out of bounds", ErrCorruptFile, i)
	}
	return f.Data[e.DataOff : e.DataOff+e.DataSize], nil
}
