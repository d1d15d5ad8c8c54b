// Package ndarray provides a minimal dense N-dimensional array value type.
//
// Arrays pair a dtype, a shape, and a flat row-major backing slice. This is
// the payload type carried by store variables and attribute values; it does
// no computation beyond indexing, casting, and equality.
package ndarray

import (
	"fmt"
	"reflect"
)

// Dtype identifies the element type of an array.
type Dtype uint8

const (
	Invalid Dtype = iota
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	String
)

// Size returns the external size of one element in bytes.
// String elements are variable width and report 0.
func (d Dtype) Size() int {
	switch d {
	case Int8:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

// IsNumeric reports whether the dtype is a fixed-width numeric type.
func (d Dtype) IsNumeric() bool {
	return d >= Int8 && d <= Float64
}

func (d Dtype) String() string {
	switch d {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case String:
		return "string"
	default:
		return "invalid"
	}
}

// Array is a dense N-dimensional array. A rank-0 array holds one scalar.
type Array struct {
	dtype Dtype
	shape []int
	data  interface{} // flat row-major: []int8 ... []float64, or []string
}

// New creates a zero-filled array of the given dtype and shape.
func New(dt Dtype, shape ...int) *Array {
	n := numElements(shape)
	var data interface{}
	switch dt {
	case Int8:
		data = make([]int8, n)
	case Int16:
		data = make([]int16, n)
	case Int32:
		data = make([]int32, n)
	case Int64:
		data = make([]int64, n)
	case Float32:
		data = make([]float32, n)
	case Float64:
		data = make([]float64, n)
	case String:
		data = make([]string, n)
	default:
		panic(fmt.Sprintf("ndarray: invalid dtype %d", dt))
	}
	return &Array{dtype: dt, shape: copyShape(shape), data: data}
}

// FromSlice wraps a flat backing slice with the given shape.
// The slice is aliased, not copied.
func FromSlice(dt Dtype, shape []int, flat interface{}) (*Array, error) {
	n := numElements(shape)
	got := flatLen(flat)
	if got < 0 {
		return nil, fmt.Errorf("ndarray: unsupported backing slice %T", flat)
	}
	if got != n {
		return nil, fmt.Errorf("ndarray: backing slice has %d elements, shape %v needs %d", got, shape, n)
	}
	if dtypeOfFlat(flat) != dt {
		return nil, fmt.Errorf("ndarray: backing slice %T does not match dtype %s", flat, dt)
	}
	return &Array{dtype: dt, shape: copyShape(shape), data: flat}, nil
}

// FromValue builds an array from a Go value: a scalar, a slice, or nested
// slices of uniform length. Integer kinds widen to the nearest signed dtype.
func FromValue(v interface{}) (*Array, error) {
	if a, ok := v.(*Array); ok {
		return a, nil
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, fmt.Errorf("ndarray: cannot build array from nil")
	}
	shape, elem, err := inferShape(rv)
	if err != nil {
		return nil, err
	}
	dt, err := dtypeOfKind(elem)
	if err != nil {
		return nil, err
	}
	out := New(dt, shape...)
	i := 0
	if err := fill(out, rv, 0, &i); err != nil {
		return nil, err
	}
	return out, nil
}

// Dtype returns the element type.
func (a *Array) Dtype() Dtype { return a.dtype }

// Shape returns a copy of the array's shape.
func (a *Array) Shape() []int { return copyShape(a.shape) }

// Rank returns the number of dimensions.
func (a *Array) Rank() int { return len(a.shape) }

// Len returns the total number of elements.
func (a *Array) Len() int { return numElements(a.shape) }

// Flat returns the flat row-major backing slice. The slice is aliased;
// callers that need isolation must copy.
func (a *Array) Flat() interface{} { return a.data }

// Item returns the element at flat index i as an interface value.
func (a *Array) Item(i int) interface{} {
	switch d := a.data.(type) {
	case []int8:
		return d[i]
	case []int16:
		return d[i]
	case []int32:
		return d[i]
	case []int64:
		return d[i]
	case []float32:
		return d[i]
	case []float64:
		return d[i]
	case []string:
		return d[i]
	}
	return nil
}

// AtLeast1D returns the array itself if it has rank >= 1, or a rank-1 view
// of length 1 sharing the same backing slice for a scalar.
func (a *Array) AtLeast1D() *Array {
	if len(a.shape) >= 1 {
		return a
	}
	return &Array{dtype: a.dtype, shape: []int{1}, data: a.data}
}

// Cast converts the array to the given numeric dtype. String arrays only
// cast to String. The result never aliases the source unless dtypes match.
func (a *Array) Cast(dt Dtype) (*Array, error) {
	if dt == a.dtype {
		return a, nil
	}
	if a.dtype == String || dt == String {
		return nil, fmt.Errorf("ndarray: cannot cast %s to %s", a.dtype, dt)
	}
	out := New(dt, a.shape...)
	n := a.Len()
	for i := 0; i < n; i++ {
		setFloat(out.data, i, asFloat(a.data, i))
	}
	return out, nil
}

// Equal reports whether two arrays have the same dtype, shape, and elements.
func Equal(a, b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.dtype != b.dtype || len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	n := a.Len()
	for i := 0; i < n; i++ {
		if a.Item(i) != b.Item(i) {
			return false
		}
	}
	return true
}

// Orthogonal selects elements along each axis independently: indexes[k] is
// the list of positions to take on axis k, or nil for the whole axis. The
// result has shape len(indexes[0]) x ... x len(indexes[rank-1]). Unlike
// broadcast-style fancy indexing, the per-axis lists never interact.
func (a *Array) Orthogonal(indexes [][]int) (*Array, error) {
	if len(indexes) != len(a.shape) {
		return nil, fmt.Errorf("ndarray: got %d index lists for rank %d", len(indexes), len(a.shape))
	}
	sel := make([][]int, len(a.shape))
	outShape := make([]int, len(a.shape))
	for k, idx := range indexes {
		if idx == nil {
			idx = make([]int, a.shape[k])
			for i := range idx {
				idx[i] = i
			}
		}
		for _, i := range idx {
			if i < 0 || i >= a.shape[k] {
				return nil, fmt.Errorf("ndarray: index %d out of range for axis %d (length %d)", i, k, a.shape[k])
			}
		}
		sel[k] = idx
		outShape[k] = len(idx)
	}

	if numElements(outShape) == 0 {
		return New(a.dtype, outShape...), nil
	}

	strides := rowMajorStrides(a.shape)
	flat := make([]int, 0, numElements(outShape))
	cur := make([]int, len(outShape))
	for {
		off := 0
		for k := range cur {
			off += sel[k][cur[k]] * strides[k]
		}
		flat = append(flat, off)
		// advance odometer
		k := len(cur) - 1
		for ; k >= 0; k-- {
			cur[k]++
			if cur[k] < outShape[k] {
				break
			}
			cur[k] = 0
		}
		if k < 0 {
			break
		}
	}

	out := New(a.dtype, outShape...)
	gather(out.data, a.data, flat)
	return out, nil
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for k := len(shape) - 1; k >= 0; k-- {
		strides[k] = acc
		acc *= shape[k]
	}
	return strides
}

func gather(dst, src interface{}, idx []int) {
	switch s := src.(type) {
	case []int8:
		d := dst.([]int8)
		for i, j := range idx {
			d[i] = s[j]
		}
	case []int16:
		d := dst.([]int16)
		for i, j := range idx {
			d[i] = s[j]
		}
	case []int32:
		d := dst.([]int32)
		for i, j := range idx {
			d[i] = s[j]
		}
	case []int64:
		d := dst.([]int64)
		for i, j := range idx {
			d[i] = s[j]
		}
	case []float32:
		d := dst.([]float32)
		for i, j := range idx {
			d[i] = s[j]
		}
	case []float64:
		d := dst.([]float64)
		for i, j := range idx {
			d[i] = s[j]
		}
	case []string:
		d := dst.([]string)
		for i, j := range idx {
			d[i] = s[j]
		}
	}
}

func numElements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func copyShape(shape []int) []int {
	out := make([]int, len(shape))
	copy(out, shape)
	return out
}

func flatLen(flat interface{}) int {
	switch d := flat.(type) {
	case []int8:
		return len(d)
	case []int16:
		return len(d)
	case []int32:
		return len(d)
	case []int64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []string:
		return len(d)
	}
	return -1
}

func dtypeOfFlat(flat interface{}) Dtype {
	switch flat.(type) {
	case []int8:
		return Int8
	case []int16:
		return Int16
	case []int32:
		return Int32
	case []int64:
		return Int64
	case []float32:
		return Float32
	case []float64:
		return Float64
	case []string:
		return String
	}
	return Invalid
}

// inferShape walks nested slices/arrays to find the shape and element kind.
func inferShape(v reflect.Value) ([]int, reflect.Kind, error) {
	var shape []int
	cur := v
	for {
		switch cur.Kind() {
		case reflect.Slice, reflect.Array:
			shape = append(shape, cur.Len())
			if cur.Len() == 0 {
				return shape, cur.Type().Elem().Kind(), nil
			}
			cur = cur.Index(0)
		case reflect.Interface:
			cur = cur.Elem()
		default:
			return shape, cur.Kind(), nil
		}
	}
}

func dtypeOfKind(k reflect.Kind) (Dtype, error) {
	switch k {
	case reflect.Int8:
		return Int8, nil
	case reflect.Int16:
		return Int16, nil
	case reflect.Int32:
		return Int32, nil
	case reflect.Int64, reflect.Int:
		return Int64, nil
	case reflect.Uint8:
		return Int16, nil
	case reflect.Uint16:
		return Int32, nil
	case reflect.Uint32, reflect.Uint64, reflect.Uint:
		return Int64, nil
	case reflect.Float32:
		return Float32, nil
	case reflect.Float64:
		return Float64, nil
	case reflect.Bool:
		return Int8, nil
	case reflect.String:
		return String, nil
	default:
		return Invalid, fmt.Errorf("ndarray: unsupported element kind %s", k)
	}
}

// fill writes the elements of v into a in row-major order starting at *i.
// Every nesting level must match the shape inferred from the first element
// of each axis; ragged nested slices are rejected.
func fill(a *Array, v reflect.Value, depth int, i *int) error {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if depth >= len(a.shape) || v.Len() != a.shape[depth] {
			return fmt.Errorf("ndarray: ragged nested slices")
		}
		for j := 0; j < v.Len(); j++ {
			if err := fill(a, v.Index(j), depth+1, i); err != nil {
				return err
			}
		}
		return nil
	case reflect.Interface:
		return fill(a, v.Elem(), depth, i)
	default:
		if depth != len(a.shape) {
			return fmt.Errorf("ndarray: ragged nested slices")
		}
		if err := setItem(a, *i, v); err != nil {
			return err
		}
		*i++
		return nil
	}
}

func setItem(a *Array, i int, v reflect.Value) error {
	switch d := a.data.(type) {
	case []int8:
		if v.Kind() == reflect.Bool {
			if v.Bool() {
				d[i] = 1
			}
			return nil
		}
		d[i] = int8(v.Int())
	case []int16:
		if isUintKind(v.Kind()) {
			d[i] = int16(v.Uint())
		} else {
			d[i] = int16(v.Int())
		}
	case []int32:
		if isUintKind(v.Kind()) {
			d[i] = int32(v.Uint())
		} else {
			d[i] = int32(v.Int())
		}
	case []int64:
		if isUintKind(v.Kind()) {
			d[i] = int64(v.Uint())
		} else {
			d[i] = v.Int()
		}
	case []float32:
		d[i] = float32(v.Float())
	case []float64:
		d[i] = v.Float()
	case []string:
		d[i] = v.String()
	default:
		return fmt.Errorf("ndarray: unsupported backing slice %T", a.data)
	}
	return nil
}

func isUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func asFloat(flat interface{}, i int) float64 {
	switch d := flat.(type) {
	case []int8:
		return float64(d[i])
	case []int16:
		return float64(d[i])
	case []int32:
		return float64(d[i])
	case []int64:
		return float64(d[i])
	case []float32:
		return float64(d[i])
	case []float64:
		return d[i]
	}
	return 0
}

func setFloat(flat interface{}, i int, v float64) {
	switch d := flat.(type) {
	case []int8:
		d[i] = int8(v)
	case []int16:
		d[i] = int16(v)
	case []int32:
		d[i] = int32(v)
	case []int64:
		d[i] = int64(v)
	case []float32:
		d[i] = float32(v)
	case []float64:
		d[i] = v
	}
}
