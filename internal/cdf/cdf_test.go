package cdf

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/robert-malhotra/go-datastore/internal/binary"
	"github.com/robert-malhotra/go-datastore/internal/ndarray"
)

func mustArray(t *testing.T, v interface{}) *ndarray.Array {
	t.Helper()
	a, err := ndarray.FromValue(v)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func buildSample(t *testing.T, f *File) {
	t.Helper()
	if err := f.CreateDimension("x", 3); err != nil {
		t.Fatal(err)
	}
	if err := f.CreateDimension("y", 2); err != nil {
		t.Fatal(err)
	}
	if err := f.SetAttr("title", "sample dataset"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetAttr("levels", mustArray(t, []int16{1, 2, 3})); err != nil {
		t.Fatal(err)
	}

	v, err := f.CreateVar("temp", ndarray.Float64, []string{"x", "y"})
	if err != nil {
		t.Fatal(err)
	}
	data := mustArray(t, [][]float64{{1.5, 2.5}, {3.5, 4.5}, {5.5, 6.5}})
	if err := v.WriteData(data); err != nil {
		t.Fatal(err)
	}
	if err := v.SetAttr("units", "K"); err != nil {
		t.Fatal(err)
	}

	c, err := f.CreateVar("count", ndarray.Int32, []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.WriteData(mustArray(t, []int32{10, 20, 30})); err != nil {
		t.Fatal(err)
	}
}

func checkSample(t *testing.T, f *File) {
	t.Helper()
	dims := f.Dimensions()
	if len(dims) != 2 || dims[0].Name != "x" || dims[0].Length != 3 || dims[1].Name != "y" || dims[1].Length != 2 {
		t.Fatalf("dimensions = %+v", dims)
	}

	attrs := f.Attrs()
	if v, _ := attrs.Get("title"); v != "sample dataset" {
		t.Fatalf("title = %v", v)
	}
	levels, _ := attrs.Get("levels")
	if !ndarray.Equal(levels.(*ndarray.Array), mustArray(t, []int16{1, 2, 3})) {
		t.Fatalf("levels = %v", levels)
	}

	vars := f.Vars()
	if len(vars) != 2 || vars[0].Name() != "temp" || vars[1].Name() != "count" {
		t.Fatalf("variable order = %v", vars)
	}

	temp, _ := f.Var("temp")
	if temp.Dtype() != ndarray.Float64 {
		t.Fatalf("temp dtype = %s", temp.Dtype())
	}
	if got := temp.Dims(); len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("temp dims = %v", got)
	}
	want := mustArray(t, [][]float64{{1.5, 2.5}, {3.5, 4.5}, {5.5, 6.5}})
	if !ndarray.Equal(temp.Data(), want) {
		t.Fatalf("temp data = %v", temp.Data())
	}
	if u, _ := temp.Attrs().Get("units"); u != "K" {
		t.Fatalf("temp units = %v", u)
	}

	count, _ := f.Var("count")
	if !ndarray.Equal(count.Data(), mustArray(t, []int32{10, 20, 30})) {
		t.Fatalf("count data = %v", count.Data())
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.nc")

	f, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	buildSample(t, f)
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	g, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	checkSample(t, g)
}

func TestStreamRoundTrip(t *testing.T) {
	buf := binary.NewBuffer(nil)

	f := NewStream(buf)
	buildSample(t, f)
	if err := f.Flush(); err != nil {
		t.Fatal(err)
	}

	// Magic bytes of the classic format.
	if got := buf.Bytes()[:4]; string(got) != "CDF\x01" {
		t.Fatalf("magic = % x", got)
	}

	g, err := OpenStream(binary.NewBuffer(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	checkSample(t, g)
}

func TestDuplicateDimension(t *testing.T) {
	f := NewStream(binary.NewBuffer(nil))
	if err := f.CreateDimension("x", 3); err != nil {
		t.Fatal(err)
	}
	err := f.CreateDimension("x", 5)
	if !errors.Is(err, ErrDimensionExists) {
		t.Fatalf("err = %v, want ErrDimensionExists", err)
	}
	if d := f.Dimensions()[0]; d.Length != 3 {
		t.Fatalf("length changed to %d", d.Length)
	}
}

func TestRecordVariableRejected(t *testing.T) {
	f := NewStream(binary.NewBuffer(nil))
	if err := f.CreateDimension("time", 0); err != nil {
		t.Fatal(err)
	}
	_, err := f.CreateVar("series", ndarray.Float32, []string{"time"})
	if !errors.Is(err, ErrRecordVariable) {
		t.Fatalf("err = %v, want ErrRecordVariable", err)
	}
}

func TestSecondRecordDimensionRejected(t *testing.T) {
	f := NewStream(binary.NewBuffer(nil))
	if err := f.CreateDimension("time", 0); err != nil {
		t.Fatal(err)
	}
	if err := f.CreateDimension("obs", 0); err == nil {
		t.Fatal("second record dimension accepted")
	}
	if err := f.CreateDimension("x", 5); err != nil {
		t.Fatalf("fixed dimension after record dimension: %v", err)
	}
}

func TestUnknownDimension(t *testing.T) {
	f := NewStream(binary.NewBuffer(nil))
	_, err := f.CreateVar("v", ndarray.Int32, []string{"missing"})
	if !errors.Is(err, ErrUnknownDimension) {
		t.Fatalf("err = %v, want ErrUnknownDimension", err)
	}
}

func TestAttrValueValidation(t *testing.T) {
	f := NewStream(binary.NewBuffer(nil))

	tests := []struct {
		name  string
		value interface{}
	}{
		{"rank 2 array", mustArray(t, [][]int32{{1}, {2}})},
		{"string array", mustArray(t, []string{"a", "b"})},
		{"raw int", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.SetAttr("a", tt.value)
			if !errors.Is(err, ErrBadAttrValue) {
				t.Fatalf("err = %v, want ErrBadAttrValue", err)
			}
		})
	}
	if f.Attrs().Len() != 0 {
		t.Fatal("rejected attribute was stored")
	}
}

func TestWriteDataShapeMismatch(t *testing.T) {
	f := NewStream(binary.NewBuffer(nil))
	if err := f.CreateDimension("x", 3); err != nil {
		t.Fatal(err)
	}
	v, err := f.CreateVar("v", ndarray.Int32, []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	if err := v.WriteData(mustArray(t, []int32{1, 2})); err == nil {
		t.Fatal("short payload accepted")
	}
	if err := v.WriteData(mustArray(t, []float64{1, 2, 3})); err == nil {
		t.Fatal("wrong dtype accepted")
	}
}

func TestDelAttr(t *testing.T) {
	f := NewStream(binary.NewBuffer(nil))
	if err := f.SetAttr("keep", "yes"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetAttr("drop", "no"); err != nil {
		t.Fatal(err)
	}
	if !f.DelAttr("drop") {
		t.Fatal("DelAttr returned false for present key")
	}
	if f.DelAttr("drop") {
		t.Fatal("DelAttr returned true for absent key")
	}
	if keys := f.Attrs().Keys(); len(keys) != 1 || keys[0] != "keep" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestCharVariable(t *testing.T) {
	buf := binary.NewBuffer(nil)
	f := NewStream(buf)
	if err := f.CreateDimension("n", 4); err != nil {
		t.Fatal(err)
	}
	v, err := f.CreateVar("label", ndarray.String, []string{"n"})
	if err != nil {
		t.Fatal(err)
	}
	if err := v.WriteData(mustArray(t, []string{"a", "b", "c", "d"})); err != nil {
		t.Fatal(err)
	}
	if err := f.Flush(); err != nil {
		t.Fatal(err)
	}

	g, err := OpenStream(binary.NewBuffer(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	got, _ := g.Var("label")
	if !ndarray.Equal(got.Data(), mustArray(t, []string{"a", "b", "c", "d"})) {
		t.Fatalf("label data = %v", got.Data())
	}
}

func TestFlushIsRepeatable(t *testing.T) {
	buf := binary.NewBuffer(nil)
	f := NewStream(buf)
	buildSample(t, f)
	if err := f.Flush(); err != nil {
		t.Fatal(err)
	}
	size1 := buf.Len()

	if !f.DelAttr("levels") {
		t.Fatal("levels missing")
	}
	if err := f.Flush(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() >= size1 {
		t.Fatalf("file did not shrink after attribute removal: %d -> %d", size1, buf.Len())
	}

	g, err := OpenStream(binary.NewBuffer(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if g.Attrs().Has("levels") {
		t.Fatal("deleted attribute survived reflush")
	}
}
