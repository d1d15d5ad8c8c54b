// Package cdf implements the classic portable binary format (CDF-1):
// big-endian, 32-bit offsets, fixed-size variables.
//
// The engine keeps the whole dataset in memory. Mutations touch only the
// in-memory model; Flush serializes everything back to the target in one
// pass, and opening decodes the whole file up front. Targets are either a
// file path or any io.ReadWriteSeeker, so datasets can round-trip through
// memory without touching disk.
package cdf

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/robert-malhotra/go-datastore/internal/binary"
	"github.com/robert-malhotra/go-datastore/internal/ndarray"
	"github.com/robert-malhotra/go-datastore/internal/ordered"
)

var (
	// ErrNotCDF is returned when the target does not start with the
	// classic magic bytes.
	ErrNotCDF = errors.New("not a classic-format file")

	// ErrUnsupportedVersion is returned for format variants other than
	// CDF-1 (64-bit offset and 64-bit data variants).
	ErrUnsupportedVersion = errors.New("unsupported classic format version")

	// ErrDimensionExists is returned when creating a dimension whose name
	// is already taken.
	ErrDimensionExists = errors.New("dimension already exists")

	// ErrUnknownDimension is returned when a variable references a
	// dimension that was never created.
	ErrUnknownDimension = errors.New("unknown dimension")

	// ErrRecordVariable is returned when a variable is declared over the
	// record (length-0) dimension; this engine stores fixed-size data only.
	ErrRecordVariable = errors.New("record variables are not supported")

	// ErrBadAttrValue is returned for attribute values outside the
	// engine's native set (strings and 1-d arrays of storable dtypes).
	ErrBadAttrValue = errors.New("attribute value is not storable")
)

// truncater is satisfied by *os.File and *binary.Buffer; targets that
// support it are shrunk before each flush.
type truncater interface {
	Truncate(int64) error
}

// Dimension is a named axis length. A length of zero marks the record
// dimension; at most one may exist.
type Dimension struct {
	Name   string
	Length int64
}

// File is an open classic-format dataset.
type File struct {
	dims  *ordered.Map[*Dimension]
	attrs *ordered.Map[interface{}]
	vars  *ordered.Map[*Var]

	target io.ReadWriteSeeker
	osFile *os.File
}

// Var is a variable in an open dataset: a dtype, an ordered list of
// dimension names, per-variable attributes, and (once written) a payload.
type Var struct {
	name  string
	dtype ndarray.Dtype
	dims  []string
	attrs *ordered.Map[interface{}]
	data  *ndarray.Array

	f *File
}

func newFile(target io.ReadWriteSeeker, osFile *os.File) *File {
	return &File{
		dims:   ordered.NewMap[*Dimension](),
		attrs:  ordered.NewMap[interface{}](),
		vars:   ordered.NewMap[*Var](),
		target: target,
		osFile: osFile,
	}
}

// Create creates an empty dataset backed by the file at path.
// Nothing is written until Flush.
func Create(path string) (*File, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return newFile(fh, fh), nil
}

// Open decodes an existing dataset from the file at path for read-write
// access.
func Open(path string) (*File, error) {
	fh, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	f := newFile(fh, fh)
	if err := f.decode(fh); err != nil {
		fh.Close()
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return f, nil
}

// NewStream creates an empty dataset backed by an arbitrary seekable
// target, typically an in-memory buffer.
func NewStream(rw io.ReadWriteSeeker) *File {
	return newFile(rw, nil)
}

// OpenStream decodes an existing dataset from a seekable target.
func OpenStream(rw io.ReadWriteSeeker) (*File, error) {
	f := newFile(rw, nil)
	ra, ok := rw.(io.ReaderAt)
	if !ok {
		ra = binary.NewSeekableReaderAt(rw)
	}
	if err := f.decode(ra); err != nil {
		return nil, fmt.Errorf("decode stream: %w", err)
	}
	return f, nil
}

// CreateDimension defines a new axis. Length zero declares the record
// dimension. Redefinition is refused regardless of length.
func (f *File) CreateDimension(name string, length int64) error {
	if f.dims.Has(name) {
		return fmt.Errorf("%w: %q", ErrDimensionExists, name)
	}
	if length < 0 {
		return fmt.Errorf("dimension %q: negative length %d", name, length)
	}
	if length == 0 {
		var record bool
		f.dims.Range(func(_ string, d *Dimension) bool {
			record = d.Length == 0
			return !record
		})
		if record {
			return fmt.Errorf("dimension %q: a record dimension already exists", name)
		}
	}
	f.dims.Set(name, &Dimension{Name: name, Length: length})
	return nil
}

// HasDimension reports whether a dimension exists.
func (f *File) HasDimension(name string) bool {
	return f.dims.Has(name)
}

// Dimensions returns the dimensions in creation order.
func (f *File) Dimensions() []*Dimension {
	out := make([]*Dimension, 0, f.dims.Len())
	f.dims.Range(func(_ string, d *Dimension) bool {
		out = append(out, d)
		return true
	})
	return out
}

// SetAttr sets a global attribute. Values must be engine-native: a string,
// or a rank-1 array of a storable numeric dtype.
func (f *File) SetAttr(name string, value interface{}) error {
	v, err := checkAttrValue(value)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	f.attrs.Set(name, v)
	return nil
}

// DelAttr removes a global attribute. It reports whether it was present.
func (f *File) DelAttr(name string) bool {
	return f.attrs.Del(name)
}

// Attrs returns the global attributes in creation order.
func (f *File) Attrs() *ordered.Map[interface{}] {
	return f.attrs.Clone()
}

// CreateVar declares a variable over previously created dimensions.
// Variables over the record dimension are refused.
func (f *File) CreateVar(name string, dt ndarray.Dtype, dims []string) (*Var, error) {
	if f.vars.Has(name) {
		return nil, fmt.Errorf("variable %q already exists", name)
	}
	if _, err := typeOf(dt); err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	for _, dn := range dims {
		d, ok := f.dims.Get(dn)
		if !ok {
			return nil, fmt.Errorf("variable %q: %w: %q", name, ErrUnknownDimension, dn)
		}
		if d.Length == 0 {
			return nil, fmt.Errorf("variable %q over dimension %q: %w", name, dn, ErrRecordVariable)
		}
	}
	v := &Var{
		name:  name,
		dtype: dt,
		dims:  append([]string(nil), dims...),
		attrs: ordered.NewMap[interface{}](),
		f:     f,
	}
	f.vars.Set(name, v)
	return v, nil
}

// HasVar reports whether a variable exists.
func (f *File) HasVar(name string) bool {
	return f.vars.Has(name)
}

// Var returns a variable by name.
func (f *File) Var(name string) (*Var, bool) {
	return f.vars.Get(name)
}

// Vars returns the variables in creation order.
func (f *File) Vars() []*Var {
	out := make([]*Var, 0, f.vars.Len())
	f.vars.Range(func(_ string, v *Var) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Flush serializes the whole dataset to the target.
func (f *File) Flush() error {
	if t, ok := f.target.(truncater); ok {
		if err := t.Truncate(0); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
	}
	wa, ok := f.target.(io.WriterAt)
	if !ok {
		wa = binary.NewSeekableWriterAt(f.target)
	}
	if err := f.encode(binary.NewWriter(wa, binary.BigEndianConfig())); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if f.osFile != nil {
		if err := f.osFile.Sync(); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
	}
	return nil
}

// Close flushes and releases the file handle, if any.
func (f *File) Close() error {
	if err := f.Flush(); err != nil {
		return err
	}
	if f.osFile != nil {
		return f.osFile.Close()
	}
	return nil
}

// Name returns the variable's name.
func (v *Var) Name() string { return v.name }

// Dtype returns the variable's element type.
func (v *Var) Dtype() ndarray.Dtype { return v.dtype }

// Dims returns the variable's dimension names in order.
func (v *Var) Dims() []string {
	return append([]string(nil), v.dims...)
}

// Shape resolves the variable's dimension names to lengths.
func (v *Var) Shape() []int {
	shape := make([]int, len(v.dims))
	for i, dn := range v.dims {
		if d, ok := v.f.dims.Get(dn); ok {
			shape[i] = int(d.Length)
		}
	}
	return shape
}

// WriteData replaces the variable's payload. Dtype and shape must match
// the declaration.
func (v *Var) WriteData(a *ndarray.Array) error {
	if a.Dtype() != v.dtype {
		return fmt.Errorf("variable %q: dtype %s does not match declared %s", v.name, a.Dtype(), v.dtype)
	}
	want := v.Shape()
	got := a.Shape()
	if len(got) != len(want) {
		return fmt.Errorf("variable %q: rank %d does not match declared %d", v.name, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("variable %q: shape %v does not match declared %v", v.name, got, want)
		}
	}
	v.data = a
	return nil
}

// Data returns the variable's payload, or nil if never written.
func (v *Var) Data() *ndarray.Array { return v.data }

// SetAttr sets a per-variable attribute. Same value rules as File.SetAttr.
func (v *Var) SetAttr(name string, value interface{}) error {
	val, err := checkAttrValue(value)
	if err != nil {
		return fmt.Errorf("variable %q attribute %q: %w", v.name, name, err)
	}
	v.attrs.Set(name, val)
	return nil
}

// DelAttr removes a per-variable attribute.
func (v *Var) DelAttr(name string) bool {
	return v.attrs.Del(name)
}

// Attrs returns the variable's attributes in creation order.
func (v *Var) Attrs() *ordered.Map[interface{}] {
	return v.attrs.Clone()
}

// checkAttrValue validates an engine-native attribute value: a string, or
// a rank-1 array of a dtype with an external representation.
func checkAttrValue(value interface{}) (interface{}, error) {
	switch val := value.(type) {
	case string:
		return val, nil
	case *ndarray.Array:
		if val.Rank() != 1 {
			return nil, fmt.Errorf("%w: rank %d array", ErrBadAttrValue, val.Rank())
		}
		if val.Dtype() == ndarray.String {
			return nil, fmt.Errorf("%w: string arrays", ErrBadAttrValue)
		}
		if _, err := typeOf(val.Dtype()); err != nil {
			return nil, err
		}
		return val, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadAttrValue, value)
	}
}
