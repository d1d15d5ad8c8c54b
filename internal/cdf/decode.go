package cdf

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/robert-malhotra/go-datastore/internal/binary"
	"github.com/robert-malhotra/go-datastore/internal/ndarray"
	"github.com/robert-malhotra/go-datastore/internal/ordered"
)

// decode populates the in-memory model from an encoded dataset.
func (f *File) decode(ra io.ReaderAt) error {
	r := binary.NewReader(ra, binary.BigEndianConfig())

	magic, err := r.ReadBytes(4)
	if err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if !bytes.Equal(magic[:3], []byte("CDF")) {
		return ErrNotCDF
	}
	if magic[3] != versionClassic {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, magic[3])
	}
	// Record count: only meaningful for record variables, which this
	// engine rejects below.
	if _, err := r.ReadUint32(); err != nil {
		return fmt.Errorf("read record count: %w", err)
	}

	if err := f.decodeDimList(r); err != nil {
		return fmt.Errorf("dimension list: %w", err)
	}
	attrs, err := decodeAttrList(r)
	if err != nil {
		return fmt.Errorf("attribute list: %w", err)
	}
	f.attrs = attrs
	if err := f.decodeVarList(r); err != nil {
		return fmt.Errorf("variable list: %w", err)
	}
	return nil
}

func decodeName(r *binary.Reader) (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	buf, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	r.Align(4)
	return string(buf), nil
}

// decodeListHeader reads a tag list header, validating the tag. Both the
// (0, 0) absent form and a zero count are treated as empty.
func decodeListHeader(r *binary.Reader, wantTag uint32) (int, error) {
	tag, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	count, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	if tag != wantTag {
		return 0, fmt.Errorf("tag %#x, want %#x", tag, wantTag)
	}
	return int(count), nil
}

func (f *File) decodeDimList(r *binary.Reader) error {
	count, err := decodeListHeader(r, tagDimension)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		name, err := decodeName(r)
		if err != nil {
			return err
		}
		length, err := r.ReadUint32()
		if err != nil {
			return err
		}
		f.dims.Set(name, &Dimension{Name: name, Length: int64(length)})
	}
	return nil
}

func decodeAttrList(r *binary.Reader) (*ordered.Map[interface{}], error) {
	attrs := ordered.NewMap[interface{}]()
	count, err := decodeListHeader(r, tagAttribute)
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		name, err := decodeName(r)
		if err != nil {
			return nil, err
		}
		value, err := decodeAttrValue(r)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		attrs.Set(name, value)
	}
	return attrs, nil
}

func decodeAttrValue(r *binary.Reader) (interface{}, error) {
	nc, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if nc == typeChar {
		buf, err := r.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		r.Align(4)
		return string(buf), nil
	}
	a, err := decodeValues(r, nc, []int{int(n)})
	if err != nil {
		return nil, err
	}
	r.Align(4)
	return a, nil
}

func (f *File) decodeVarList(r *binary.Reader) error {
	count, err := decodeListHeader(r, tagVariable)
	if err != nil {
		return err
	}
	dimNames := f.dims.Keys()
	for i := 0; i < count; i++ {
		if err := f.decodeVarEntry(r, dimNames); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) decodeVarEntry(r *binary.Reader, dimNames []string) error {
	name, err := decodeName(r)
	if err != nil {
		return err
	}
	ndims, err := r.ReadUint32()
	if err != nil {
		return err
	}
	dims := make([]string, ndims)
	for k := range dims {
		id, err := r.ReadUint32()
		if err != nil {
			return err
		}
		if int(id) >= len(dimNames) {
			return fmt.Errorf("variable %q: dimension id %d out of range", name, id)
		}
		dims[k] = dimNames[id]
		if d, _ := f.dims.Get(dims[k]); d != nil && d.Length == 0 {
			return fmt.Errorf("variable %q: %w", name, ErrRecordVariable)
		}
	}
	attrs, err := decodeAttrList(r)
	if err != nil {
		return fmt.Errorf("variable %q attributes: %w", name, err)
	}
	nc, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if _, err := r.ReadUint32(); err != nil { // vsize: recomputed from shape
		return err
	}
	begin, err := r.ReadUint32()
	if err != nil {
		return err
	}

	dt, err := dtypeOf(nc)
	if err != nil {
		return fmt.Errorf("variable %q: %w", name, err)
	}
	v := &Var{name: name, dtype: dt, dims: dims, attrs: attrs, f: f}

	dr := r.At(int64(begin))
	data, err := decodeValues(dr, nc, v.Shape())
	if err != nil {
		return fmt.Errorf("variable %q data: %w", name, err)
	}
	v.data = data
	f.vars.Set(name, v)
	return nil
}

// decodeValues reads external big-endian elements into an array of the
// given shape.
func decodeValues(r *binary.Reader, nc uint32, shape []int) (*ndarray.Array, error) {
	n := 1
	for _, s := range shape {
		n *= s
	}
	dt, err := dtypeOf(nc)
	if err != nil {
		return nil, err
	}
	switch nc {
	case typeByte:
		buf, err := r.ReadBytes(n)
		if err != nil {
			return nil, err
		}
		flat := make([]int8, n)
		for i, b := range buf {
			flat[i] = int8(b)
		}
		return ndarray.FromSlice(dt, shape, flat)
	case typeChar:
		buf, err := r.ReadBytes(n)
		if err != nil {
			return nil, err
		}
		flat := make([]string, n)
		for i, b := range buf {
			flat[i] = string(rune(b))
		}
		return ndarray.FromSlice(dt, shape, flat)
	case typeShort:
		flat := make([]int16, n)
		for i := range flat {
			v, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			flat[i] = int16(v)
		}
		return ndarray.FromSlice(dt, shape, flat)
	case typeInt:
		flat := make([]int32, n)
		for i := range flat {
			v, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			flat[i] = int32(v)
		}
		return ndarray.FromSlice(dt, shape, flat)
	case typeFloat:
		flat := make([]float32, n)
		for i := range flat {
			v, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			flat[i] = math.Float32frombits(v)
		}
		return ndarray.FromSlice(dt, shape, flat)
	case typeDouble:
		flat := make([]float64, n)
		for i := range flat {
			v, err := r.ReadUint64()
			if err != nil {
				return nil, err
			}
			flat[i] = math.Float64frombits(v)
		}
		return ndarray.FromSlice(dt, shape, flat)
	}
	return nil, fmt.Errorf("unknown external type %d", nc)
}
