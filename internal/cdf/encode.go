package cdf

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/go-datastore/internal/binary"
	"github.com/robert-malhotra/go-datastore/internal/ndarray"
	"github.com/robert-malhotra/go-datastore/internal/ordered"
)

// Classic format constants. The header is big-endian with 4-byte fields;
// every name and value block is padded to a 4-byte boundary.
const (
	versionClassic = 1 // CDF-1: 32-bit offsets

	tagDimension = 0x0A
	tagVariable  = 0x0B
	tagAttribute = 0x0C

	typeByte   = 1
	typeChar   = 2
	typeShort  = 3
	typeInt    = 4
	typeFloat  = 5
	typeDouble = 6
)

// typeOf maps an array dtype to its external type code. String maps to the
// character type: one byte per element.
func typeOf(dt ndarray.Dtype) (uint32, error) {
	switch dt {
	case ndarray.Int8:
		return typeByte, nil
	case ndarray.String:
		return typeChar, nil
	case ndarray.Int16:
		return typeShort, nil
	case ndarray.Int32:
		return typeInt, nil
	case ndarray.Float32:
		return typeFloat, nil
	case ndarray.Float64:
		return typeDouble, nil
	default:
		return 0, fmt.Errorf("dtype %s has no external representation", dt)
	}
}

func dtypeOf(nc uint32) (ndarray.Dtype, error) {
	switch nc {
	case typeByte:
		return ndarray.Int8, nil
	case typeChar:
		return ndarray.String, nil
	case typeShort:
		return ndarray.Int16, nil
	case typeInt:
		return ndarray.Int32, nil
	case typeFloat:
		return ndarray.Float32, nil
	case typeDouble:
		return ndarray.Float64, nil
	default:
		return ndarray.Invalid, fmt.Errorf("unknown external type %d", nc)
	}
}

func extSize(nc uint32) int {
	switch nc {
	case typeByte, typeChar:
		return 1
	case typeShort:
		return 2
	case typeInt, typeFloat:
		return 4
	case typeDouble:
		return 8
	}
	return 0
}

func pad4(n int) int {
	if rem := n % 4; rem != 0 {
		return n + 4 - rem
	}
	return n
}

func nameSize(s string) int {
	return 4 + pad4(len(s))
}

func attrEntrySize(name string, value interface{}) int {
	var nc uint32
	var n int
	switch v := value.(type) {
	case string:
		nc, n = typeChar, len(v)
	case *ndarray.Array:
		nc, _ = typeOf(v.Dtype())
		n = v.Len()
	}
	return nameSize(name) + 8 + pad4(n*extSize(nc))
}

func attrListSize(attrs *ordered.Map[interface{}]) int {
	size := 8 // tag + count, or the absent marker
	attrs.Range(func(name string, value interface{}) bool {
		size += attrEntrySize(name, value)
		return true
	})
	return size
}

func (f *File) dimListSize() int {
	size := 8
	f.dims.Range(func(name string, _ *Dimension) bool {
		size += nameSize(name) + 4
		return true
	})
	return size
}

func (f *File) varEntrySize(v *Var) int {
	return nameSize(v.name) + 4 + 4*len(v.dims) + attrListSize(v.attrs) + 12
}

// vsize is the variable's padded external data size.
func (f *File) vsize(v *Var) int {
	nc, _ := typeOf(v.dtype)
	n := 1
	for _, s := range v.Shape() {
		n *= s
	}
	return pad4(n * extSize(nc))
}

func (f *File) headerSize() int {
	size := 8 + f.dimListSize() + attrListSize(f.attrs) // magic + numrecs
	size += 8
	f.vars.Range(func(_ string, v *Var) bool {
		size += f.varEntrySize(v)
		return true
	})
	return size
}

// encode writes the whole dataset: header first, then each variable's
// payload at the begin offset recorded in its header entry.
func (f *File) encode(w *binary.Writer) error {
	if err := w.WriteBytes([]byte{'C', 'D', 'F', versionClassic}); err != nil {
		return err
	}
	if err := w.WriteUint32(0); err != nil { // numrecs: no record data
		return err
	}

	if err := f.encodeDimList(w); err != nil {
		return err
	}
	if err := encodeAttrList(w, f.attrs); err != nil {
		return err
	}

	// Assign begin offsets before writing variable entries.
	begins := make(map[string]int)
	offset := f.headerSize()
	f.vars.Range(func(name string, v *Var) bool {
		begins[name] = offset
		offset += f.vsize(v)
		return true
	})

	if err := f.encodeVarList(w, begins); err != nil {
		return err
	}

	var encodeErr error
	f.vars.Range(func(name string, v *Var) bool {
		dw := w.At(int64(begins[name]))
		if err := f.encodeVarData(dw, v); err != nil {
			encodeErr = fmt.Errorf("variable %q data: %w", name, err)
			return false
		}
		return true
	})
	return encodeErr
}

func encodeName(w *binary.Writer, s string) error {
	if err := w.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte(s)); err != nil {
		return err
	}
	return w.WritePadding(4)
}

func (f *File) encodeDimList(w *binary.Writer) error {
	if f.dims.Len() == 0 {
		return writeAbsentList(w)
	}
	if err := w.WriteUint32(tagDimension); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(f.dims.Len())); err != nil {
		return err
	}
	var outErr error
	f.dims.Range(func(name string, d *Dimension) bool {
		if err := encodeName(w, name); err != nil {
			outErr = err
			return false
		}
		if err := w.WriteUint32(uint32(d.Length)); err != nil {
			outErr = err
			return false
		}
		return true
	})
	return outErr
}

func encodeAttrList(w *binary.Writer, attrs *ordered.Map[interface{}]) error {
	if attrs.Len() == 0 {
		return writeAbsentList(w)
	}
	if err := w.WriteUint32(tagAttribute); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(attrs.Len())); err != nil {
		return err
	}
	var outErr error
	attrs.Range(func(name string, value interface{}) bool {
		if err := encodeAttr(w, name, value); err != nil {
			outErr = fmt.Errorf("attribute %q: %w", name, err)
			return false
		}
		return true
	})
	return outErr
}

func encodeAttr(w *binary.Writer, name string, value interface{}) error {
	if err := encodeName(w, name); err != nil {
		return err
	}
	switch v := value.(type) {
	case string:
		if err := w.WriteUint32(typeChar); err != nil {
			return err
		}
		if err := w.WriteUint32(uint32(len(v))); err != nil {
			return err
		}
		if err := w.WriteBytes([]byte(v)); err != nil {
			return err
		}
		return w.WritePadding(4)
	case *ndarray.Array:
		nc, err := typeOf(v.Dtype())
		if err != nil {
			return err
		}
		if err := w.WriteUint32(nc); err != nil {
			return err
		}
		if err := w.WriteUint32(uint32(v.Len())); err != nil {
			return err
		}
		if err := encodeValues(w, v); err != nil {
			return err
		}
		return w.WritePadding(4)
	default:
		return fmt.Errorf("%w: %T", ErrBadAttrValue, value)
	}
}

func (f *File) encodeVarList(w *binary.Writer, begins map[string]int) error {
	if f.vars.Len() == 0 {
		return writeAbsentList(w)
	}
	if err := w.WriteUint32(tagVariable); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(f.vars.Len())); err != nil {
		return err
	}
	dimIndex := make(map[string]int)
	for i, name := range f.dims.Keys() {
		dimIndex[name] = i
	}
	var outErr error
	f.vars.Range(func(name string, v *Var) bool {
		if err := f.encodeVarEntry(w, v, dimIndex, begins[name]); err != nil {
			outErr = fmt.Errorf("variable %q: %w", name, err)
			return false
		}
		return true
	})
	return outErr
}

func (f *File) encodeVarEntry(w *binary.Writer, v *Var, dimIndex map[string]int, begin int) error {
	if err := encodeName(w, v.name); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(len(v.dims))); err != nil {
		return err
	}
	for _, dn := range v.dims {
		if err := w.WriteUint32(uint32(dimIndex[dn])); err != nil {
			return err
		}
	}
	if err := encodeAttrList(w, v.attrs); err != nil {
		return err
	}
	nc, err := typeOf(v.dtype)
	if err != nil {
		return err
	}
	if err := w.WriteUint32(nc); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(f.vsize(v))); err != nil {
		return err
	}
	return w.WriteUint32(uint32(begin))
}

func (f *File) encodeVarData(w *binary.Writer, v *Var) error {
	if v.data == nil {
		// Never written: the slot is zero-filled.
		return w.WriteZeros(f.vsize(v))
	}
	if err := encodeValues(w, v.data); err != nil {
		return err
	}
	return w.WritePadding(4)
}

// writeAbsentList writes the marker for an empty tag list.
func writeAbsentList(w *binary.Writer) error {
	if err := w.WriteUint32(0); err != nil {
		return err
	}
	return w.WriteUint32(0)
}

// encodeValues writes an array's elements in external big-endian form.
// String elements are characters: the first byte of each element.
func encodeValues(w *binary.Writer, a *ndarray.Array) error {
	switch d := a.Flat().(type) {
	case []int8:
		buf := make([]byte, len(d))
		for i, v := range d {
			buf[i] = byte(v)
		}
		return w.WriteBytes(buf)
	case []int16:
		for _, v := range d {
			if err := w.WriteUint16(uint16(v)); err != nil {
				return err
			}
		}
	case []int32:
		for _, v := range d {
			if err := w.WriteUint32(uint32(v)); err != nil {
				return err
			}
		}
	case []float32:
		for _, v := range d {
			if err := w.WriteUint32(math.Float32bits(v)); err != nil {
				return err
			}
		}
	case []float64:
		for _, v := range d {
			if err := w.WriteUint64(math.Float64bits(v)); err != nil {
				return err
			}
		}
	case []string:
		buf := make([]byte, len(d))
		for i, v := range d {
			if v != "" {
				buf[i] = v[0]
			}
		}
		return w.WriteBytes(buf)
	default:
		return fmt.Errorf("unsupported payload %T", a.Flat())
	}
	return nil
}
