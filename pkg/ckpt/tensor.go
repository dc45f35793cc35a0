package ckpt

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tensor is a named float64 tensor to be stored.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float64
}

// WriteTensors streams every tensor into a data section, each 8-byte
// aligned, and then writes the matching index section.
func (w *Writer) WriteTensors(tensors []Tensor) error {
	sw, err := w.BeginSection(SectionTensorData, 1)
	if err != nil {
		return err
	}
	records := make([]IndexRecord, 0, len(tensors))
	var buf []byte
	for _, t := range tensors {
		if n := numElements(t.Shape); n != len(t.Data) {
			return fmt.Errorf("ckpt: tensor %s has %d values for shape %v", t.Name, len(t.Data), t.Shape)
		}
		if err := sw.Align(align); err != nil {
			return err
		}
		off, err := sw.Offset()
		if err != nil {
			return err
		}
		buf = buf[:0]
		for _, v := range t.Data {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
		if _, err := sw.Write(buf); err != nil {
			return err
		}
		shape := make([]uint64, len(t.Shape))
		for i, d := range t.Shape {
			shape[i] = uint64(d)
		}
		records = append(records, IndexRecord{
			Name:     t.Name,
			DType:    DTypeF64,
			Shape:    shape,
			DataOff:  off,
			DataSize: uint64(len(buf)),
		})
	}
	if err := sw.End(); err != nil {
		return err
	}
	idx, err := EncodeTensorIndexSection(records)
	if err != nil {
		return err
	}
	return w.WriteSection(SectionTensorIndex, TensorIndexVersion, idx)
}

// Tensors parses the tensor index section.
func (f *File) Tensors() (*TensorIndex, error) {
	sec := f.Section(SectionTensorIndex)
	if sec == nil {
		return nil, fmt.Errorf("%w: missing tensor index section", ErrCorruptFile)
	}
	return ParseTensorIndexSection(f.SectionData(sec))
}

// ReadF64 decodes the named tensor into a new slice and returns its shape.
func (f *File) ReadF64(ti *TensorIndex, name string) ([]float64, []int, error) {
	i, ok := ti.Find(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	e, err := ti.Entry(i)
	if err != nil {
		return nil, nil, err
	}
	if e.DType != DTypeF64 {
		return nil, nil, fmt.Errorf("ckpt: tensor %s has dtype %s, want f64", name, e.DType)
	}
	dims, err := ti.Shape(i)
	if err != nil {
		return nil, nil, err
	}
	shape := make([]int, len(dims))
	for d, v := range dims {
		if v > math.MaxInt32 {
			return nil, nil, fmt.Errorf("%w: tensor %s dimension %d too large", ErrCorruptFile, name, v)
		}
		shape[d] = int(v)
	}
	raw, err := ti.TensorData(f, i)
	if err != nil {
		return nil, nil, err
	}
	n := numElements(shape)
	if len(raw) != n*8 {
		return nil, nil, fmt.Errorf("%w: tensor %s has %d bytes for shape %v", ErrCorruptFile, name, len(raw), shape)
	}
	out := make([]float64, n)
	for j := range out {
		out[j] = math.Float64frombits(binary.LittleEndian.Uint64(raw[j*8:]))
	}
	return out, shape, nil
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
