package store

import (
	"fmt"

	"github.com/robert-malhotra/go-datastore/internal/ndarray"
	"github.com/robert-malhotra/go-datastore/internal/ordered"
)

// IndexingMode describes how a variable's payload responds to per-axis
// index lists.
type IndexingMode uint8

const (
	// IndexingBasic marks in-memory payloads indexed directly.
	IndexingBasic IndexingMode = iota
	// IndexingOrthogonal marks backend payloads where per-axis index
	// lists select independently along each dimension.
	IndexingOrthogonal
)

// Variable pairs an array payload with named dimensions and an ordered
// attribute mapping. Backend variables may carry a lazy payload that is
// materialized on first access.
type Variable struct {
	dims   []string
	data   *ndarray.Array
	loader func() (*ndarray.Array, error)
	attrs  *ordered.Map[interface{}]
	mode   IndexingMode
}

// NewVariable creates a variable holding an in-memory payload. The
// dimension slice is copied; the attribute map is used as given, and may
// be nil for no attributes.
func NewVariable(dims []string, data *ndarray.Array, attrs *ordered.Map[interface{}]) *Variable {
	if attrs == nil {
		attrs = ordered.NewMap[interface{}]()
	}
	return &Variable{
		dims:  append([]string(nil), dims...),
		data:  data,
		attrs: attrs,
	}
}

// NewLazyVariable creates a variable whose payload is produced by loader
// on first access, with the given indexing behavior.
func NewLazyVariable(dims []string, loader func() (*ndarray.Array, error), attrs *ordered.Map[interface{}], mode IndexingMode) *Variable {
	v := NewVariable(dims, nil, attrs)
	v.loader = loader
	v.mode = mode
	return v
}

// Dimensions returns the variable's dimension names in order.
func (v *Variable) Dimensions() []string {
	return append([]string(nil), v.dims...)
}

// Data returns the variable's payload, materializing it if lazy. The
// loaded payload is kept for later calls.
func (v *Variable) Data() (*ndarray.Array, error) {
	if v.data == nil && v.loader != nil {
		a, err := v.loader()
		if err != nil {
			return nil, fmt.Errorf("load variable data: %w", err)
		}
		v.data = a
	}
	if v.data == nil {
		return nil, fmt.Errorf("variable has no data")
	}
	return v.data, nil
}

// Attrs returns the variable's attribute mapping. The map is live; callers
// mutating it mutate the variable.
func (v *Variable) Attrs() *ordered.Map[interface{}] {
	return v.attrs
}

// Indexing returns the payload's indexing behavior.
func (v *Variable) Indexing() IndexingMode {
	return v.mode
}

// Isel selects along each axis independently: indexes[k] lists the
// positions to take on axis k, nil meaning the whole axis.
func (v *Variable) Isel(indexes [][]int) (*ndarray.Array, error) {
	a, err := v.Data()
	if err != nil {
		return nil, err
	}
	return a.Orthogonal(indexes)
}

// Equal reports whether two variables have the same dimensions,
// attributes (including order), and payload.
func (v *Variable) Equal(o *Variable) bool {
	if v == nil || o == nil {
		return v == o
	}
	if len(v.dims) != len(o.dims) {
		return false
	}
	for i := range v.dims {
		if v.dims[i] != o.dims[i] {
			return false
		}
	}
	if !attrsEqual(v.attrs, o.attrs) {
		return false
	}
	a, err := v.Data()
	if err != nil {
		return false
	}
	b, err := o.Data()
	if err != nil {
		return false
	}
	return ndarray.Equal(a, b)
}

func attrsEqual(a, b *ordered.Map[interface{}]) bool {
	ka, kb := a.Keys(), b.Keys()
	if len(ka) != len(kb) {
		return false
	}
	for i, k := range ka {
		if kb[i] != k {
			return false
		}
		va, _ := a.Get(k)
		vb, _ := b.Get(k)
		if !attrValueEqual(va, vb) {
			return false
		}
	}
	return true
}

// attrValueEqual compares attribute values: arrays element-wise,
// everything else by interface equality.
func attrValueEqual(a, b interface{}) bool {
	aa, aok := a.(*ndarray.Array)
	ba, bok := b.(*ndarray.Array)
	if aok != bok {
		return false
	}
	if aok {
		return ndarray.Equal(aa, ba)
	}
	return a == b
}
