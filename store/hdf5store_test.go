package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-datastore/internal/hdf5"
	"github.com/robert-malhotra/go-datastore/internal/ndarray"
	"github.com/robert-malhotra/go-datastore/internal/ordered"
)

func TestHDF5StoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.h5")

	s, err := CreateHDF5(path)
	require.NoError(t, err)
	require.NoError(t, s.SetDimension("x", 2))
	require.NoError(t, s.SetDimension("y", 3))
	require.NoError(t, s.SetAttribute("title", "hierarchical"))

	data := mustArray(t, ndarray.Float64, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	written, err := s.SetVariable("t", NewVariable([]string{"x", "y"}, data, ordered.MapOf(
		Pair("units", interface{}("K")),
	)))
	require.NoError(t, err)
	_, err = written.Data() // materialize before the handle goes away
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := OpenHDF5(path)
	require.NoError(t, err)
	defer s2.Close()

	assert.Equal(t, []string{"x", "y"}, s2.Dimensions().Keys())
	title, _ := s2.Attributes().Get("title")
	assert.Equal(t, "hierarchical", title)

	back, ok := s2.Variables().Get("t")
	require.True(t, ok)
	assert.Equal(t, IndexingOrthogonal, back.Indexing())
	assert.True(t, back.Equal(written))
}

func TestHDF5StoreLazyIsel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.h5")

	s, err := CreateHDF5(path)
	require.NoError(t, err)
	require.NoError(t, s.SetDimension("x", 4))
	data := mustArray(t, ndarray.Int32, []int{4}, []int32{10, 20, 30, 40})
	_, err = s.SetVariable("u", NewVariable([]string{"x"}, data, nil))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := OpenHDF5(path)
	require.NoError(t, err)
	defer s2.Close()

	back, ok := s2.Variables().Get("u")
	require.True(t, ok)

	got, err := back.Isel([][]int{{3, 0}})
	require.NoError(t, err)
	assert.Equal(t, []int32{40, 10}, got.Flat())
}

func TestHDF5StoreFillValueDeferred(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.h5")

	s, err := CreateHDF5(path)
	require.NoError(t, err)
	require.NoError(t, s.SetDimension("x", 3))

	data := mustArray(t, ndarray.Float64, []int{3}, []float64{1, -999, 3})
	written, err := s.SetVariable("t", NewVariable([]string{"x"}, data, ordered.MapOf(
		Pair("_FillValue", interface{}(-999.0)),
		Pair("units", interface{}("m")),
	)))
	require.NoError(t, err)

	assert.False(t, written.Attrs().Has("_FillValue"), "fill value is not a plain attribute")
	fill := s.FillValue("t")
	require.NotNil(t, fill)
	assert.Equal(t, ndarray.Float64, fill.Dtype())
	assert.Equal(t, -999.0, fill.Item(0))

	require.NoError(t, s.Close())

	s2, err := OpenHDF5(path)
	require.NoError(t, err)
	defer s2.Close()

	back, ok := s2.Variables().Get("t")
	require.True(t, ok)
	assert.False(t, back.Attrs().Has("_FillValue"))
	fill = s2.FillValue("t")
	require.NotNil(t, fill)
	assert.Equal(t, -999.0, fill.Item(0))
}

func TestHDF5StoreFillValueCastToDataType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.h5")

	s, err := CreateHDF5(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.SetDimension("x", 2))

	// An integer fill on a float variable is converted, not rejected.
	data := mustArray(t, ndarray.Float32, []int{2}, []float32{1, 2})
	_, err = s.SetVariable("t", NewVariable([]string{"x"}, data, ordered.MapOf(
		Pair("_FillValue", interface{}(-1)),
	)))
	require.NoError(t, err)

	fill := s.FillValue("t")
	require.NotNil(t, fill)
	assert.Equal(t, ndarray.Float32, fill.Dtype())
	assert.Equal(t, float32(-1), fill.Item(0))
}

func TestHDF5StoreScaleOffsetSuppressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.h5")

	s, err := CreateHDF5(path)
	require.NoError(t, err)
	require.NoError(t, s.SetDimension("x", 2))

	data := mustArray(t, ndarray.Int16, []int{2}, []int16{100, 200})
	written, err := s.SetVariable("t", NewVariable([]string{"x"}, data, ordered.MapOf(
		Pair("scale_factor", interface{}(0.01)),
		Pair("add_offset", interface{}(5.0)),
		Pair("units", interface{}("degC")),
	)))
	require.NoError(t, err)

	assert.Equal(t, []string{"units"}, written.Attrs().Keys(),
		"packing attributes never surface on returned variables")

	require.NoError(t, s.Close())
	s2, err := OpenHDF5(path)
	require.NoError(t, err)
	defer s2.Close()

	back, ok := s2.Variables().Get("t")
	require.True(t, ok)
	assert.Equal(t, []string{"units"}, back.Attrs().Keys())

	got, err := back.Data()
	require.NoError(t, err)
	assert.Equal(t, []int16{100, 200}, got.Flat(), "payloads come back unscaled")
}

func TestHDF5StoreCallerAttrsUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.h5")

	s, err := CreateHDF5(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.SetDimension("x", 2))

	attrs := ordered.MapOf(
		Pair("_FillValue", interface{}(0.0)),
		Pair("units", interface{}("m")),
	)
	v := NewVariable([]string{"x"}, mustArray(t, ndarray.Float64, []int{2}, []float64{1, 2}), attrs)
	_, err = s.SetVariable("t", v)
	require.NoError(t, err)

	assert.Equal(t, []string{"_FillValue", "units"}, attrs.Keys(),
		"the caller's attribute mapping is not modified")
}

func TestHDF5StoreIdempotentReSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.h5")

	s, err := CreateHDF5(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.SetDimension("x", 2))

	v := NewVariable([]string{"x"},
		mustArray(t, ndarray.Int32, []int{2}, []int32{1, 2}),
		ordered.MapOf(Pair("units", interface{}("m"))))
	_, err = s.SetVariable("u", v)
	require.NoError(t, err)

	v2 := NewVariable([]string{"x"},
		mustArray(t, ndarray.Int32, []int{2}, []int32{3, 4}),
		ordered.MapOf(Pair("units", interface{}("s"))))
	back, err := s.SetVariable("u", v2)
	require.NoError(t, err)

	assert.Equal(t, []string{"u"}, s.Variables().Keys(), "no duplicate entry")
	got, err := back.Data()
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 4}, got.Flat(), "payload replaced")
	units, _ := back.Attrs().Get("units")
	assert.Equal(t, "s", units)
}

func TestHDF5StoreRaggedAttrRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.h5")

	s, err := CreateHDF5(path)
	require.NoError(t, err)
	defer s.Close()

	err = s.SetAttribute("table", [][]int32{{1, 2}, {3}})
	require.ErrorIs(t, err, ErrInvalidAttrType, "ragged input must not be zero-filled into storage")
	assert.Zero(t, s.Attributes().Len())
}

func TestHDF5StoreDimensionRedefinitionRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.h5")

	s, err := CreateHDF5(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetDimension("x", 4))
	assert.ErrorIs(t, s.SetDimension("x", 9), hdf5.ErrDimensionExists)
	length, _ := s.Dimensions().Get("x")
	assert.Equal(t, int64(4), length)
}

func TestHDF5StoreDelAttribute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.h5")

	s, err := CreateHDF5(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetAttribute("title", "demo"))
	require.NoError(t, s.DelAttribute("title"))
	assert.ErrorIs(t, s.DelAttribute("title"), ErrAttrNotFound)
}

func TestHDF5StoreReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.h5")

	s, err := CreateHDF5(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := OpenHDF5(path)
	require.NoError(t, err)
	defer s2.Close()

	assert.ErrorIs(t, s2.SetAttribute("title", "nope"), hdf5.ErrReadOnly)
	assert.ErrorIs(t, s2.SetDimension("x", 1), hdf5.ErrReadOnly)
}
