package hdf5

import (
	"fmt"
	"os"

	binpkg "github.com/robert-malhotra/go-datastore/internal/binary"
	"github.com/robert-malhotra/go-datastore/internal/ndarray"
	"github.com/robert-malhotra/go-datastore/internal/ordered"
)

// Reserved attribute names carrying the flat netCDF-style model: dimension
// scales are tagged with CLASS/NAME, datasets list their dimensions by name.
const (
	attrClass         = "CLASS"
	attrName          = "NAME"
	attrDimensionList = "DIMENSION_LIST"

	classDimensionScale = "DIMENSION_SCALE"
)

// Dimension is a named axis length.
type Dimension struct {
	Name   string
	Length int64
}

// File is an open hierarchical-format dataset collection.
type File struct {
	fh       *os.File
	r        *binpkg.Reader
	w        *binpkg.Writer
	readOnly bool
	eof      uint64

	attrs   *ordered.Map[interface{}]
	objects *ordered.Map[*Dataset] // scales and datasets, creation order
}

// Create creates a new empty file at path, truncating any existing one.
func Create(path string) (*File, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	f := &File{
		fh:      fh,
		r:       binpkg.NewReader(fh, binpkg.LittleEndianConfig()),
		w:       binpkg.NewWriter(fh, binpkg.LittleEndianConfig()),
		eof:     superblockSize,
		attrs:   ordered.NewMap[interface{}](),
		objects: ordered.NewMap[*Dataset](),
	}
	if err := f.Flush(); err != nil {
		fh.Close()
		return nil, err
	}
	return f, nil
}

// Open opens an existing file read-only.
func Open(path string) (*File, error) {
	return open(path, true)
}

// OpenReadWrite opens an existing file for mutation.
func OpenReadWrite(path string) (*File, error) {
	return open(path, false)
}

func open(path string, readOnly bool) (*File, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	fh, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	f := &File{
		fh:       fh,
		r:        binpkg.NewReader(fh, binpkg.LittleEndianConfig()),
		readOnly: readOnly,
		attrs:    ordered.NewMap[interface{}](),
		objects:  ordered.NewMap[*Dataset](),
	}
	if !readOnly {
		f.w = binpkg.NewWriter(fh, binpkg.LittleEndianConfig())
	}
	if err := f.load(); err != nil {
		fh.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return f, nil
}

// load rebuilds the in-memory model from the superblock and object headers.
func (f *File) load() error {
	sb, err := readSuperblock(f.r)
	if err != nil {
		return err
	}
	f.eof = sb.eof
	if sb.root == 0 {
		return nil
	}

	msgs, err := readHeader(f.r, sb.root)
	if err != nil {
		return fmt.Errorf("root header: %w", err)
	}
	var links []*linkMsg
	for _, m := range msgs {
		switch m.code {
		case msgAttribute:
			am, err := parseAttribute(m.data)
			if err != nil {
				return fmt.Errorf("root header: %w", err)
			}
			value, err := decodeAttrValue(am)
			if err != nil {
				return fmt.Errorf("root header: %w", err)
			}
			f.attrs.Set(am.name, value)
		case msgLink:
			lm, err := parseLink(m.data)
			if err != nil {
				return fmt.Errorf("root header: %w", err)
			}
			links = append(links, lm)
		}
	}

	for _, lm := range links {
		ds, err := f.loadDataset(lm)
		if err != nil {
			return fmt.Errorf("object %q: %w", lm.name, err)
		}
		f.objects.Set(ds.name, ds)
	}
	return nil
}

func (f *File) loadDataset(lm *linkMsg) (*Dataset, error) {
	msgs, err := readHeader(f.r, lm.address)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{
		f:     f,
		name:  lm.name,
		attrs: ordered.NewMap[interface{}](),
	}
	var dt *datatypeMsg
	var fill *fillValueMsg
	for _, m := range msgs {
		switch m.code {
		case msgDataspace:
			sp, err := parseDataspace(m.data)
			if err != nil {
				return nil, err
			}
			ds.shape = sp.dims
		case msgDatatype:
			if dt, err = parseDatatype(m.data); err != nil {
				return nil, err
			}
		case msgFillValue:
			if fill, err = parseFillValue(m.data); err != nil {
				return nil, err
			}
		case msgLayout:
			lo, err := parseLayout(m.data)
			if err != nil {
				return nil, err
			}
			ds.dataAddr = lo.address
			ds.dataSize = lo.dataSize
		case msgAttribute:
			am, err := parseAttribute(m.data)
			if err != nil {
				return nil, err
			}
			value, err := decodeAttrValue(am)
			if err != nil {
				return nil, err
			}
			switch am.name {
			case attrClass:
				if s, ok := value.(string); ok && s == classDimensionScale {
					ds.isScale = true
				}
			case attrName:
				// Redundant with the link name.
			case attrDimensionList:
				a, ok := value.(*ndarray.Array)
				if !ok {
					return nil, fmt.Errorf("malformed dimension list")
				}
				ds.dims = append([]string(nil), a.Flat().([]string)...)
			default:
				ds.attrs.Set(am.name, value)
			}
		}
	}
	if dt == nil {
		return nil, fmt.Errorf("missing datatype")
	}
	if ds.dtype, err = dtypeFor(dt); err != nil {
		return nil, err
	}
	ds.elemSize = dt.elemSize
	if fill != nil && fill.value != nil {
		fa, err := decodeArray(ds.dtype, dt.elemSize, nil, fill.value)
		if err != nil {
			return nil, fmt.Errorf("fill value: %w", err)
		}
		ds.fill = fa
	}
	if ds.isScale {
		ds.coordinate = ds.dataAddr != 0
	}
	return ds, nil
}

// alloc reserves size bytes past the current end of file.
func (f *File) alloc(size int) uint64 {
	addr := f.eof
	f.eof += uint64(size)
	return addr
}

// SetAttr sets a root attribute. Values are strings or arrays.
func (f *File) SetAttr(name string, value interface{}) error {
	if f.readOnly {
		return ErrReadOnly
	}
	if _, err := encodeAttrValue(name, value); err != nil {
		return err
	}
	f.attrs.Set(name, value)
	return nil
}

// DelAttr removes a root attribute. It reports whether it was present.
func (f *File) DelAttr(name string) (bool, error) {
	if f.readOnly {
		return false, ErrReadOnly
	}
	return f.attrs.Del(name), nil
}

// Attrs returns the root attributes in creation order.
func (f *File) Attrs() *ordered.Map[interface{}] {
	return f.attrs.Clone()
}

// CreateDimension creates a dimension scale of the given length.
func (f *File) CreateDimension(name string, length int64) error {
	if f.readOnly {
		return ErrReadOnly
	}
	if f.objects.Has(name) {
		return fmt.Errorf("%w: %q", ErrDimensionExists, name)
	}
	if length < 0 {
		return fmt.Errorf("dimension %q: negative length %d", name, length)
	}
	f.objects.Set(name, &Dataset{
		f:        f,
		name:     name,
		dtype:    ndarray.Float32,
		elemSize: 4,
		shape:    []uint64{uint64(length)},
		isScale:  true,
		attrs:    ordered.NewMap[interface{}](),
	})
	return nil
}

// HasDimension reports whether a dimension scale exists.
func (f *File) HasDimension(name string) bool {
	ds, ok := f.objects.Get(name)
	return ok && ds.isScale
}

// Dimensions returns the dimensions in creation order.
func (f *File) Dimensions() []Dimension {
	var out []Dimension
	f.objects.Range(func(_ string, ds *Dataset) bool {
		if ds.isScale {
			out = append(out, Dimension{Name: ds.name, Length: int64(ds.shape[0])})
		}
		return true
	})
	return out
}

// CreateDataset declares a dataset over existing dimensions, with an
// optional scalar fill value. Creating a dataset named after its own
// dimension upgrades that scale to a coordinate dataset.
func (f *File) CreateDataset(name string, dt ndarray.Dtype, dims []string, fill *ndarray.Array) (*Dataset, error) {
	if f.readOnly {
		return nil, ErrReadOnly
	}
	if _, err := scalarDatatype(dt); err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	if fill != nil && fill.Dtype() != dt {
		return nil, fmt.Errorf("dataset %q: fill value dtype %s does not match %s", name, fill.Dtype(), dt)
	}

	if existing, ok := f.objects.Get(name); ok {
		if !existing.isScale || existing.coordinate {
			return nil, fmt.Errorf("%w: %q", ErrDatasetExists, name)
		}
		if len(dims) != 1 || dims[0] != name {
			return nil, fmt.Errorf("dataset %q: name is taken by a dimension", name)
		}
		existing.dtype = dt
		existing.elemSize = uint32(dt.Size())
		if dt == ndarray.String {
			existing.elemSize = 1
		}
		existing.fill = fill
		existing.coordinate = true
		return existing, nil
	}

	shape := make([]uint64, len(dims))
	dimNames := make([]string, len(dims))
	for i, dn := range dims {
		sc, ok := f.objects.Get(dn)
		if !ok || !sc.isScale {
			return nil, fmt.Errorf("dataset %q: %w: %q", name, ErrUnknownDimension, dn)
		}
		shape[i] = sc.shape[0]
		dimNames[i] = dn
	}
	elemSize := uint32(dt.Size())
	if dt == ndarray.String {
		elemSize = 1
	}
	ds := &Dataset{
		f:        f,
		name:     name,
		dtype:    dt,
		elemSize: elemSize,
		shape:    shape,
		dims:     dimNames,
		fill:     fill,
		attrs:    ordered.NewMap[interface{}](),
	}
	f.objects.Set(name, ds)
	return ds, nil
}

// Dataset returns a dataset by name. Dimension scales are visible only
// once upgraded to coordinates.
func (f *File) Dataset(name string) (*Dataset, bool) {
	ds, ok := f.objects.Get(name)
	if !ok || (ds.isScale && !ds.coordinate) {
		return nil, false
	}
	return ds, true
}

// Datasets returns the datasets in creation order, excluding plain
// dimension scales.
func (f *File) Datasets() []*Dataset {
	var out []*Dataset
	f.objects.Range(func(_ string, ds *Dataset) bool {
		if !ds.isScale || ds.coordinate {
			out = append(out, ds)
		}
		return true
	})
	return out
}

// Flush rewrites all object headers past the end of file and repoints the
// superblock at the new root header.
func (f *File) Flush() error {
	if f.readOnly {
		return ErrReadOnly
	}

	rootMsgs := []message{&linkInfoMsg{}, &groupInfoMsg{}}
	var outErr error
	f.attrs.Range(func(name string, value interface{}) bool {
		am, err := encodeAttrValue(name, value)
		if err != nil {
			outErr = err
			return false
		}
		rootMsgs = append(rootMsgs, am)
		return true
	})
	if outErr != nil {
		return outErr
	}

	f.objects.Range(func(name string, ds *Dataset) bool {
		msgs, err := ds.headerMessages()
		if err != nil {
			outErr = err
			return false
		}
		addr := f.alloc(headerSize(f.w, msgs))
		if err := writeHeader(f.w.At(int64(addr)), msgs); err != nil {
			outErr = fmt.Errorf("object %q: %w", name, err)
			return false
		}
		rootMsgs = append(rootMsgs, &linkMsg{name: name, address: addr})
		return true
	})
	if outErr != nil {
		return outErr
	}

	rootAddr := f.alloc(headerSize(f.w, rootMsgs))
	if err := writeHeader(f.w.At(int64(rootAddr)), rootMsgs); err != nil {
		return fmt.Errorf("root header: %w", err)
	}

	sb := &superblock{eof: f.eof, root: rootAddr}
	if err := sb.write(f.w); err != nil {
		return fmt.Errorf("superblock: %w", err)
	}
	return f.fh.Sync()
}

// Close flushes (when writable) and releases the file handle.
func (f *File) Close() error {
	if !f.readOnly {
		if err := f.Flush(); err != nil {
			f.fh.Close()
			return err
		}
	}
	return f.fh.Close()
}
