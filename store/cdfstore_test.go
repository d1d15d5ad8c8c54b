package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-datastore/internal/binary"
	"github.com/robert-malhotra/go-datastore/internal/ndarray"
	"github.com/robert-malhotra/go-datastore/internal/ordered"
)

func newMemoryTarget() *binary.Buffer {
	return binary.NewBuffer(nil)
}

func TestCDFStoreFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.nc")

	s, err := CreateCDF(path)
	require.NoError(t, err)
	require.NoError(t, s.SetDimension("x", 3))
	require.NoError(t, s.SetAttribute("title", "round trip"))
	require.NoError(t, s.SetAttribute("version", int32(2)))

	data := mustArray(t, ndarray.Float64, []int{3}, []float64{1.5, 2.5, 3.5})
	written, err := s.SetVariable("t", NewVariable([]string{"x"}, data, ordered.MapOf(
		Pair("units", interface{}("K")),
	)))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := OpenCDF(path)
	require.NoError(t, err)
	defer s2.Close()

	dims := s2.Dimensions()
	length, ok := dims.Get("x")
	require.True(t, ok)
	assert.Equal(t, int64(3), length)

	title, _ := s2.Attributes().Get("title")
	assert.Equal(t, "round trip", title)
	version, _ := s2.Attributes().Get("version")
	assert.True(t, ndarray.Equal(
		mustArray(t, ndarray.Int32, []int{1}, []int32{2}),
		version.(*ndarray.Array),
	))

	back, ok := s2.Variables().Get("t")
	require.True(t, ok)
	assert.True(t, back.Equal(written))

	got, err := back.Data()
	require.NoError(t, err)
	assert.True(t, ndarray.Equal(data, got))
}

func TestCDFStoreStreamRoundTrip(t *testing.T) {
	buf := newMemoryTarget()

	s := NewCDFStream(buf)
	require.NoError(t, s.SetDimension("x", 2))
	_, err := s.SetVariable("u", NewVariable([]string{"x"},
		mustArray(t, ndarray.Int32, []int{2}, []int32{10, 20}), nil))
	require.NoError(t, err)
	require.NoError(t, s.Sync())

	s2, err := OpenCDFStream(buf)
	require.NoError(t, err)
	back, ok := s2.Variables().Get("u")
	require.True(t, ok)
	got, err := back.Data()
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 20}, got.Flat())
}

func TestCDFStoreDimensionImmutable(t *testing.T) {
	s := NewCDFStream(newMemoryTarget())
	require.NoError(t, s.SetDimension("x", 4))

	err := s.SetDimension("x", 9)
	require.ErrorIs(t, err, ErrDimensionImmutable)

	length, ok := s.Dimensions().Get("x")
	require.True(t, ok)
	assert.Equal(t, int64(4), length, "original length is preserved")
}

func TestCDFStoreAttrNameRejected(t *testing.T) {
	s := NewCDFStream(newMemoryTarget())
	require.NoError(t, s.SetAttribute("good", "kept"))

	for _, key := range []string{"1bad", "bad name", ""} {
		err := s.SetAttribute(key, "x")
		assert.ErrorIs(t, err, ErrInvalidAttrName, "key %q", key)
	}

	assert.Equal(t, []string{"good"}, s.Attributes().Keys(), "mapping unchanged after rejection")
}

func TestCDFStoreAttrValueRejected(t *testing.T) {
	s := NewCDFStream(newMemoryTarget())

	err := s.SetAttribute("matrix", [][]int32{{1, 2}, {3, 4}})
	assert.ErrorIs(t, err, ErrAttrNotVector)

	err = s.SetAttribute("odd", struct{}{})
	assert.ErrorIs(t, err, ErrInvalidAttrType)

	assert.Zero(t, s.Attributes().Len())
}

func TestCDFStoreAttrCoercion(t *testing.T) {
	s := NewCDFStream(newMemoryTarget())

	// Plain ints widen to int64 and then coerce down to the classic int.
	require.NoError(t, s.SetAttribute("count", 7))
	v, _ := s.Attributes().Get("count")
	a, ok := v.(*ndarray.Array)
	require.True(t, ok)
	assert.Equal(t, ndarray.Int32, a.Dtype())
	assert.Equal(t, []int{1}, a.Shape(), "scalars become one-element vectors")

	// Strings stay text.
	require.NoError(t, s.SetAttribute("name", "plain"))
	v, _ = s.Attributes().Get("name")
	assert.Equal(t, "plain", v)
}

func TestCDFStoreVariableAttrRejectionAborts(t *testing.T) {
	s := NewCDFStream(newMemoryTarget())
	require.NoError(t, s.SetDimension("x", 2))

	v := NewVariable([]string{"x"},
		mustArray(t, ndarray.Int32, []int{2}, []int32{1, 2}),
		ordered.MapOf(
			Pair("units", interface{}("m")),
			Pair("bad key", interface{}("boom")),
		))
	_, err := s.SetVariable("u", v)
	require.ErrorIs(t, err, ErrInvalidAttrName)
}

func TestCDFStoreIdempotentReSet(t *testing.T) {
	s := NewCDFStream(newMemoryTarget())
	require.NoError(t, s.SetDimension("x", 2))

	v := NewVariable([]string{"x"},
		mustArray(t, ndarray.Int32, []int{2}, []int32{1, 2}),
		ordered.MapOf(Pair("units", interface{}("m"))))
	_, err := s.SetVariable("u", v)
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

func TestCDFStoreDelAttribute(t *testing.T) {
	s := NewCDFStream(newMemoryTarget())
	require.NoError(t, s.SetAttribute("title", "gone soon"))
	require.NoError(t, s.DelAttribute("title"))
	assert.ErrorIs(t, s.DelAttribute("title"), ErrAttrNotFound)
}
