package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-datastore/internal/ndarray"
	"github.com/robert-malhotra/go-datastore/internal/ordered"
)

// Dataset is a named array object: a dimension scale, a coordinate, or a
// plain dataset. Payloads are contiguous and appended on write; metadata
// reaches disk on the next Flush.
type Dataset struct {
	f        *File
	name     string
	dtype    ndarray.Dtype
	elemSize uint32
	shape    []uint64
	dims     []string
	attrs    *ordered.Map[interface{}]
	fill     *ndarray.Array // scalar, nil when undefined

	isScale    bool
	coordinate bool
	dataAddr   uint64
	dataSize   uint64
}

// Name returns the dataset's name.
func (ds *Dataset) Name() string { return ds.name }

// Dtype returns the element type.
func (ds *Dataset) Dtype() ndarray.Dtype { return ds.dtype }

// Dims returns the dimension names in order. A coordinate dataset spans
// its own dimension.
func (ds *Dataset) Dims() []string {
	if ds.isScale {
		return []string{ds.name}
	}
	return append([]string(nil), ds.dims...)
}

// Shape returns the dataset's extent along each dimension.
func (ds *Dataset) Shape() []int {
	out := make([]int, len(ds.shape))
	for i, s := range ds.shape {
		out[i] = int(s)
	}
	return out
}

// FillValue returns the dataset's declared fill value, or nil when
// undefined.
func (ds *Dataset) FillValue() *ndarray.Array { return ds.fill }

// Write replaces the dataset's payload. Dtype and shape must match the
// declaration. The payload is appended to the file immediately.
func (ds *Dataset) Write(a *ndarray.Array) error {
	if ds.f.readOnly {
		return ErrReadOnly
	}
	if a.Dtype() != ds.dtype {
		return fmt.Errorf("dataset %q: dtype %s does not match declared %s", ds.name, a.Dtype(), ds.dtype)
	}
	shape := a.Shape()
	if len(shape) != len(ds.shape) {
		return fmt.Errorf("dataset %q: rank %d does not match declared %d", ds.name, len(shape), len(ds.shape))
	}
	for i := range shape {
		if uint64(shape[i]) != ds.shape[i] {
			return fmt.Errorf("dataset %q: shape %v does not match declared %v", ds.name, shape, ds.Shape())
		}
	}

	elemSize := ds.elemSize
	if ds.dtype == ndarray.String {
		elemSize = stringElemSize(a.Flat().([]string))
	}
	raw := encodeArray(a, elemSize)
	addr := ds.f.alloc(len(raw))
	if err := ds.f.w.At(int64(addr)).WriteBytes(raw); err != nil {
		return fmt.Errorf("dataset %q: write payload: %w", ds.name, err)
	}
	ds.elemSize = elemSize
	ds.dataAddr = addr
	ds.dataSize = uint64(len(raw))
	return nil
}

// Read returns the dataset's full payload.
func (ds *Dataset) Read() (*ndarray.Array, error) {
	if ds.dataAddr == 0 {
		return nil, fmt.Errorf("dataset %q: %w", ds.name, ErrNoData)
	}
	raw, err := ds.f.r.At(int64(ds.dataAddr)).ReadBytes(int(ds.dataSize))
	if err != nil {
		return nil, fmt.Errorf("dataset %q: read payload: %w", ds.name, err)
	}
	return decodeArray(ds.dtype, ds.elemSize, ds.Shape(), raw)
}

// SetAttr sets a per-dataset attribute. Values are strings or arrays.
func (ds *Dataset) SetAttr(name string, value interface{}) error {
	if ds.f.readOnly {
		return ErrReadOnly
	}
	if _, err := encodeAttrValue(name, value); err != nil {
		return err
	}
	ds.attrs.Set(name, value)
	return nil
}

// DelAttr removes a per-dataset attribute. It reports whether it was
// present.
func (ds *Dataset) DelAttr(name string) (bool, error) {
	if ds.f.readOnly {
		return false, ErrReadOnly
	}
	return ds.attrs.Del(name), nil
}

// Attrs returns the dataset's attributes in creation order, excluding the
// reserved bookkeeping attributes.
func (ds *Dataset) Attrs() *ordered.Map[interface{}] {
	return ds.attrs.Clone()
}

// headerMessages assembles the object header for the dataset's current
// state: dataspace, datatype, fill value, layout, reserved attributes,
// then user attributes in creation order.
func (ds *Dataset) headerMessages() ([]message, error) {
	space := &dataspaceMsg{scalar: len(ds.shape) == 0, dims: ds.shape}
	dt, err := scalarDatatype(ds.dtype)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", ds.name, err)
	}
	dt.elemSize = ds.elemSize

	fill := &fillValueMsg{}
	if ds.fill != nil {
		fill.value = encodeArray(ds.fill, uint32(ds.fill.Dtype().Size()))
		if ds.fill.Dtype() == ndarray.String {
			fill.value = encodeArray(ds.fill, stringElemSize(ds.fill.Flat().([]string)))
		}
	}

	msgs := []message{
		space,
		dt,
		fill,
		&layoutMsg{address: ds.dataAddr, dataSize: ds.dataSize},
	}

	if ds.isScale {
		classAttr, err := encodeAttrValue(attrClass, classDimensionScale)
		if err != nil {
			return nil, err
		}
		nameAttr, err := encodeAttrValue(attrName, ds.name)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, classAttr, nameAttr)
	} else {
		dimList, err := ndarray.FromSlice(ndarray.String, []int{len(ds.dims)}, append([]string(nil), ds.dims...))
		if err != nil {
			return nil, err
		}
		dimAttr, err := encodeAttrValue(attrDimensionList, dimList)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, dimAttr)
	}

	var outErr error
	ds.attrs.Range(func(name string, value interface{}) bool {
		am, err := encodeAttrValue(name, value)
		if err != nil {
			outErr = fmt.Errorf("dataset %q: %w", ds.name, err)
			return false
		}
		msgs = append(msgs, am)
		return true
	})
	if outErr != nil {
		return nil, outErr
	}
	return msgs, nil
}
