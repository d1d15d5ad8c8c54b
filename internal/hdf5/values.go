package hdf5

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/robert-malhotra/go-datastore/internal/ndarray"
)

// datatypeFor builds the on-disk element type for an array dtype. String
// arrays use fixed-length elements sized to the longest member.
func datatypeFor(a *ndarray.Array) (*datatypeMsg, error) {
	switch a.Dtype() {
	case ndarray.Int8, ndarray.Int16, ndarray.Int32, ndarray.Int64:
		return &datatypeMsg{class: classFixedPoint, elemSize: uint32(a.Dtype().Size())}, nil
	case ndarray.Float32, ndarray.Float64:
		return &datatypeMsg{class: classFloat, elemSize: uint32(a.Dtype().Size())}, nil
	case ndarray.String:
		return &datatypeMsg{class: classString, elemSize: stringElemSize(a.Flat().([]string))}, nil
	default:
		return nil, fmt.Errorf("dtype %s has no on-disk representation", a.Dtype())
	}
}

// scalarDatatype builds the element type for a dtype without a concrete
// payload; string elements default to one byte.
func scalarDatatype(dt ndarray.Dtype) (*datatypeMsg, error) {
	if dt == ndarray.String {
		return &datatypeMsg{class: classString, elemSize: 1}, nil
	}
	if !dt.IsNumeric() {
		return nil, fmt.Errorf("dtype %s has no on-disk representation", dt)
	}
	class := classFixedPoint
	if dt == ndarray.Float32 || dt == ndarray.Float64 {
		class = classFloat
	}
	return &datatypeMsg{class: class, elemSize: uint32(dt.Size())}, nil
}

func dtypeFor(dt *datatypeMsg) (ndarray.Dtype, error) {
	switch dt.class {
	case classFixedPoint:
		switch dt.elemSize {
		case 1:
			return ndarray.Int8, nil
		case 2:
			return ndarray.Int16, nil
		case 4:
			return ndarray.Int32, nil
		case 8:
			return ndarray.Int64, nil
		}
	case classFloat:
		switch dt.elemSize {
		case 4:
			return ndarray.Float32, nil
		case 8:
			return ndarray.Float64, nil
		}
	case classString:
		return ndarray.String, nil
	}
	return ndarray.Invalid, fmt.Errorf("unsupported datatype class %d size %d", dt.class, dt.elemSize)
}

func stringElemSize(flat []string) uint32 {
	max := 1
	for _, s := range flat {
		if len(s) > max {
			max = len(s)
		}
	}
	return uint32(max)
}

// encodeArray serializes an array's elements little-endian. String
// elements are null-padded to elemSize.
func encodeArray(a *ndarray.Array, elemSize uint32) []byte {
	n := a.Len()
	out := make([]byte, n*int(elemSize))
	switch d := a.Flat().(type) {
	case []int8:
		for i, v := range d {
			out[i] = byte(v)
		}
	case []int16:
		for i, v := range d {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		}
	case []int32:
		for i, v := range d {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
		}
	case []int64:
		for i, v := range d {
			binary.LittleEndian.PutUint64(out[i*8:], uint64(v))
		}
	case []float32:
		for i, v := range d {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
		}
	case []float64:
		for i, v := range d {
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
		}
	case []string:
		for i, s := range d {
			if len(s) > int(elemSize) {
				s = s[:elemSize]
			}
			copy(out[i*int(elemSize):], s)
		}
	}
	return out
}

// decodeArray deserializes raw little-endian bytes into an array of the
// given dtype and shape. Trailing nulls are stripped from string elements.
func decodeArray(dt ndarray.Dtype, elemSize uint32, shape []int, raw []byte) (*ndarray.Array, error) {
	n := 1
	for _, s := range shape {
		n *= s
	}
	need := n * int(elemSize)
	if dt != ndarray.String {
		need = n * dt.Size()
	}
	if len(raw) < need {
		return nil, fmt.Errorf("payload has %d bytes, need %d", len(raw), need)
	}
	switch dt {
	case ndarray.Int8:
		flat := make([]int8, n)
		for i := range flat {
			flat[i] = int8(raw[i])
		}
		return ndarray.FromSlice(dt, shape, flat)
	case ndarray.Int16:
		flat := make([]int16, n)
		for i := range flat {
			flat[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		return ndarray.FromSlice(dt, shape, flat)
	case ndarray.Int32:
		flat := make([]int32, n)
		for i := range flat {
			flat[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return ndarray.FromSlice(dt, shape, flat)
	case ndarray.Int64:
		flat := make([]int64, n)
		for i := range flat {
			flat[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return ndarray.FromSlice(dt, shape, flat)
	case ndarray.Float32:
		flat := make([]float32, n)
		for i := range flat {
			flat[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return ndarray.FromSlice(dt, shape, flat)
	case ndarray.Float64:
		flat := make([]float64, n)
		for i := range flat {
			flat[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return ndarray.FromSlice(dt, shape, flat)
	case ndarray.String:
		flat := make([]string, n)
		for i := range flat {
			elem := raw[i*int(elemSize) : (i+1)*int(elemSize)]
			end := len(elem)
			for end > 0 && elem[end-1] == 0 {
				end--
			}
			flat[i] = string(elem[:end])
		}
		return ndarray.FromSlice(dt, shape, flat)
	}
	return nil, fmt.Errorf("dtype %s has no on-disk representation", dt)
}

// encodeAttrValue turns an engine-native attribute value (string or array)
// into an attribute message.
func encodeAttrValue(name string, value interface{}) (*attributeMsg, error) {
	switch v := value.(type) {
	case string:
		size := uint32(len(v))
		if size == 0 {
			size = 1
		}
		data := make([]byte, size)
		copy(data, v)
		return &attributeMsg{
			name:      name,
			datatype:  &datatypeMsg{class: classString, elemSize: size},
			dataspace: &dataspaceMsg{scalar: true},
			data:      data,
		}, nil
	case *ndarray.Array:
		dt, err := datatypeFor(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		ds := &dataspaceMsg{scalar: v.Rank() == 0}
		for _, s := range v.Shape() {
			ds.dims = append(ds.dims, uint64(s))
		}
		return &attributeMsg{
			name:      name,
			datatype:  dt,
			dataspace: ds,
			data:      encodeArray(v, dt.elemSize),
		}, nil
	default:
		return nil, fmt.Errorf("attribute %q: unsupported value %T", name, value)
	}
}

// decodeAttrValue is the inverse of encodeAttrValue: scalar strings come
// back as Go strings, everything else as arrays.
func decodeAttrValue(m *attributeMsg) (interface{}, error) {
	dt, err := dtypeFor(m.datatype)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.name, err)
	}
	if dt == ndarray.String && m.dataspace.scalar {
		end := len(m.data)
		for end > 0 && m.data[end-1] == 0 {
			end--
		}
		return string(m.data[:end]), nil
	}
	shape := make([]int, len(m.dataspace.dims))
	for i, d := range m.dataspace.dims {
		shape[i] = int(d)
	}
	a, err := decodeArray(dt, m.datatype.elemSize, shape, m.data)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.name, err)
	}
	return a, nil
}
