package store

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/go-datastore/internal/cdf"
	"github.com/robert-malhotra/go-datastore/internal/conventions"
	"github.com/robert-malhotra/go-datastore/internal/ndarray"
	"github.com/robert-malhotra/go-datastore/internal/ordered"
)

// CDFStore adapts the classic portable binary engine to the Store
// contract. Attribute keys must be legal classic identifiers; values are
// coerced to the classic type set before reaching the engine. Dimensions
// are write-once.
type CDFStore struct {
	f *cdf.File
}

var _ Store = (*CDFStore)(nil)

// CreateCDF creates a new dataset backed by the file at path.
func CreateCDF(path string) (*CDFStore, error) {
	f, err := cdf.Create(path)
	if err != nil {
		return nil, err
	}
	return &CDFStore{f: f}, nil
}

// OpenCDF opens an existing dataset at path for read-write access.
func OpenCDF(path string) (*CDFStore, error) {
	f, err := cdf.Open(path)
	if err != nil {
		return nil, err
	}
	return &CDFStore{f: f}, nil
}

// NewCDFStream creates an empty dataset over a seekable target, typically
// an in-memory buffer.
func NewCDFStream(rw io.ReadWriteSeeker) *CDFStore {
	return &CDFStore{f: cdf.NewStream(rw)}
}

// OpenCDFStream decodes an existing dataset from a seekable target.
func OpenCDFStream(rw io.ReadWriteSeeker) (*CDFStore, error) {
	f, err := cdf.OpenStream(rw)
	if err != nil {
		return nil, err
	}
	return &CDFStore{f: f}, nil
}

// Close flushes and releases the underlying file.
func (s *CDFStore) Close() error {
	return s.f.Close()
}

// SetDimension defines a new dimension. The classic format fixes a
// dimension's length at creation, so redefinition is refused and the
// original length is preserved.
func (s *CDFStore) SetDimension(name string, length int64) error {
	if s.f.HasDimension(name) {
		return fmt.Errorf("%w: %q", ErrDimensionImmutable, name)
	}
	return s.f.CreateDimension(name, length)
}

// SetAttribute validates the key and coerces the value to an engine
// type, then stores it as a global attribute.
func (s *CDFStore) SetAttribute(key string, value interface{}) error {
	if !conventions.IsValidName(key) {
		return fmt.Errorf("%w: %q", ErrInvalidAttrName, key)
	}
	cast, err := castClassicAttrValue(value)
	if err != nil {
		return err
	}
	return s.f.SetAttr(key, cast)
}

// DelAttribute removes a global attribute.
func (s *CDFStore) DelAttribute(key string) error {
	if !s.f.DelAttr(key) {
		return fmt.Errorf("%w: %q", ErrAttrNotFound, key)
	}
	return nil
}

// SetVariable writes a variable: the engine variable is created on first
// use, the payload is always replaced, and every attribute is validated
// and reapplied. The returned variable is re-read from the engine.
func (s *CDFStore) SetVariable(name string, v *Variable) (*Variable, error) {
	data, err := v.Data()
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}

	ev, ok := s.f.Var(name)
	if !ok {
		if ev, err = s.f.CreateVar(name, data.Dtype(), v.Dimensions()); err != nil {
			return nil, err
		}
	}
	if err := ev.WriteData(data); err != nil {
		return nil, err
	}

	var attrErr error
	v.Attrs().Range(func(key string, value interface{}) bool {
		if !conventions.IsValidName(key) {
			attrErr = fmt.Errorf("variable %q: %w: %q", name, ErrInvalidAttrName, key)
			return false
		}
		cast, err := castClassicAttrValue(value)
		if err != nil {
			attrErr = fmt.Errorf("variable %q: %w", name, err)
			return false
		}
		if err := ev.SetAttr(key, cast); err != nil {
			attrErr = err
			return false
		}
		return true
	})
	if attrErr != nil {
		return nil, attrErr
	}
	return translateClassicVar(ev), nil
}

// Sync serializes the dataset to its target.
func (s *CDFStore) Sync() error {
	return s.f.Flush()
}

// Dimensions returns a snapshot of the dimensions.
func (s *CDFStore) Dimensions() *ordered.Frozen[int64] {
	m := ordered.NewMap[int64]()
	for _, d := range s.f.Dimensions() {
		m.Set(d.Name, d.Length)
	}
	return m.Freeze()
}

// Attributes returns a snapshot of the global attributes.
func (s *CDFStore) Attributes() *ordered.Frozen[interface{}] {
	return s.f.Attrs().Freeze()
}

// Variables returns a snapshot of the variables, translated to the shared
// value object. The classic engine holds payloads in memory, so data is
// passed through directly.
func (s *CDFStore) Variables() *ordered.Frozen[*Variable] {
	m := ordered.NewMap[*Variable]()
	for _, ev := range s.f.Vars() {
		m.Set(ev.Name(), translateClassicVar(ev))
	}
	return m.Freeze()
}

func translateClassicVar(ev *cdf.Var) *Variable {
	return NewVariable(ev.Dims(), ev.Data(), ev.Attrs())
}

// castClassicAttrValue normalizes an attribute value for the classic
// format: strings pass through as text, everything else becomes an
// at-least-1-d array coerced to a storable type.
func castClassicAttrValue(value interface{}) (interface{}, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	a, err := ndarray.FromValue(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttrType, err)
	}
	a = a.AtLeast1D()
	if a.Rank() > 1 {
		return nil, fmt.Errorf("%w: rank %d", ErrAttrNotVector, a.Rank())
	}
	a, err = conventions.CoerceType(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttrType, err)
	}
	if _, ok := conventions.TypeMap[a.Dtype()]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAttrType, a.Dtype())
	}
	return a, nil
}
