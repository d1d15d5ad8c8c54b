package store

import (
	"fmt"

	"github.com/robert-malhotra/go-datastore/internal/hdf5"
	"github.com/robert-malhotra/go-datastore/internal/ndarray"
	"github.com/robert-malhotra/go-datastore/internal/ordered"
)

// Reserved attribute keys handled by the hierarchical backend rather than
// stored verbatim.
const (
	attrFillValue   = "_FillValue"
	attrScaleFactor = "scale_factor"
	attrAddOffset   = "add_offset"
)

// HDF5Store adapts the hierarchical engine to the Store contract.
// Dimensions become dimension scales, a variable's _FillValue attribute is
// deferred to dataset creation, and the packing attributes (scale_factor,
// add_offset) are suppressed when reading variables back so payloads are
// never scaled twice.
type HDF5Store struct {
	f *hdf5.File
}

var _ Store = (*HDF5Store)(nil)

// CreateHDF5 creates a new dataset collection at path.
func CreateHDF5(path string) (*HDF5Store, error) {
	f, err := hdf5.Create(path)
	if err != nil {
		return nil, err
	}
	return &HDF5Store{f: f}, nil
}

// OpenHDF5 opens an existing dataset collection read-only.
func OpenHDF5(path string) (*HDF5Store, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}
	return &HDF5Store{f: f}, nil
}

// OpenHDF5ReadWrite opens an existing dataset collection for mutation.
func OpenHDF5ReadWrite(path string) (*HDF5Store, error) {
	f, err := hdf5.OpenReadWrite(path)
	if err != nil {
		return nil, err
	}
	return &HDF5Store{f: f}, nil
}

// Close flushes (when writable) and releases the underlying file.
func (s *HDF5Store) Close() error {
	return s.f.Close()
}

// SetDimension creates a dimension scale. The engine refuses redefinition.
func (s *HDF5Store) SetDimension(name string, length int64) error {
	return s.f.CreateDimension(name, length)
}

// SetAttribute stores a root attribute. The hierarchical format takes any
// of the shared array types, so the value is converted without coercion.
func (s *HDF5Store) SetAttribute(key string, value interface{}) error {
	cast, err := castHierarchicalAttrValue(value)
	if err != nil {
		return err
	}
	return s.f.SetAttr(key, cast)
}

// DelAttribute removes a root attribute.
func (s *HDF5Store) DelAttribute(key string) error {
	ok, err := s.f.DelAttr(key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrAttrNotFound, key)
	}
	return nil
}

// SetVariable writes a variable. The _FillValue attribute is split off and
// handed to dataset creation; it is never set as a plain attribute after
// the fact. The caller's attribute mapping is not modified.
func (s *HDF5Store) SetVariable(name string, v *Variable) (*Variable, error) {
	data, err := v.Data()
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}

	attrs := ordered.NewMap[interface{}]()
	var fill *ndarray.Array
	var attrErr error
	v.Attrs().Range(func(key string, value interface{}) bool {
		if key == attrFillValue {
			fill, attrErr = castFillValue(value, data.Dtype())
			return attrErr == nil
		}
		attrs.Set(key, value)
		return true
	})
	if attrErr != nil {
		return nil, fmt.Errorf("variable %q: %w", name, attrErr)
	}

	ds, ok := s.f.Dataset(name)
	if !ok {
		if ds, err = s.f.CreateDataset(name, data.Dtype(), v.Dimensions(), fill); err != nil {
			return nil, err
		}
	}
	if err := ds.Write(data); err != nil {
		return nil, err
	}

	attrs.Range(func(key string, value interface{}) bool {
		cast, err := castHierarchicalAttrValue(value)
		if err != nil {
			attrErr = fmt.Errorf("variable %q: %w", name, err)
			return false
		}
		if err := ds.SetAttr(key, cast); err != nil {
			attrErr = err
			return false
		}
		return true
	})
	if attrErr != nil {
		return nil, attrErr
	}
	return translateDataset(ds), nil
}

// Sync rewrites the metadata and makes the file durable.
func (s *HDF5Store) Sync() error {
	return s.f.Flush()
}

// Dimensions returns a snapshot of the dimension scales.
func (s *HDF5Store) Dimensions() *ordered.Frozen[int64] {
	m := ordered.NewMap[int64]()
	for _, d := range s.f.Dimensions() {
		m.Set(d.Name, d.Length)
	}
	return m.Freeze()
}

// Attributes returns a snapshot of the root attributes.
func (s *HDF5Store) Attributes() *ordered.Frozen[interface{}] {
	return s.f.Attrs().Freeze()
}

// Variables returns a snapshot of the datasets, translated to the shared
// value object with lazy payloads.
func (s *HDF5Store) Variables() *ordered.Frozen[*Variable] {
	m := ordered.NewMap[*Variable]()
	for _, ds := range s.f.Datasets() {
		m.Set(ds.Name(), translateDataset(ds))
	}
	return m.Freeze()
}

// FillValue exposes the engine's declared fill value for a variable, or
// nil when the variable is unknown or has no fill value.
func (s *HDF5Store) FillValue(name string) *ndarray.Array {
	ds, ok := s.f.Dataset(name)
	if !ok {
		return nil
	}
	return ds.FillValue()
}

// translateDataset builds the shared value object for a dataset. The
// packing attributes are excluded so a reader never applies them on top of
// payloads the engine already returns unpacked.
func translateDataset(ds *hdf5.Dataset) *Variable {
	attrs := ordered.NewMap[interface{}]()
	ds.Attrs().Range(func(key string, value interface{}) bool {
		if key == attrScaleFactor || key == attrAddOffset {
			return true
		}
		attrs.Set(key, value)
		return true
	})
	return NewLazyVariable(ds.Dims(), ds.Read, attrs, IndexingOrthogonal)
}

// castHierarchicalAttrValue normalizes an attribute value to the engine's
// native set: text stays text, arrays pass through, anything else becomes
// an array with its rank preserved.
func castHierarchicalAttrValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case *ndarray.Array:
		return v, nil
	default:
		a, err := ndarray.FromValue(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAttrType, err)
		}
		return a, nil
	}
}

// castFillValue converts a _FillValue attribute to a scalar of the
// variable's dtype.
func castFillValue(value interface{}, dt ndarray.Dtype) (*ndarray.Array, error) {
	a, err := ndarray.FromValue(value)
	if err != nil {
		return nil, fmt.Errorf("fill value: %w", err)
	}
	if a.Len() != 1 {
		return nil, fmt.Errorf("fill value must be a single element, got %d", a.Len())
	}
	if a.Rank() != 0 {
		flat := a.Flat()
		if a, err = ndarray.FromSlice(a.Dtype(), nil, flat); err != nil {
			return nil, fmt.Errorf("fill value: %w", err)
		}
	}
	return a.Cast(dt)
}
