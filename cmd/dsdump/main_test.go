package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robert-malhotra/go-datastore/internal/ndarray"
	"github.com/robert-malhotra/go-datastore/store"
)

func writeSampleCDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.nc")
	s, err := store.CreateCDF(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetDimension("x", 3); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAttribute("title", "sample"); err != nil {
		t.Fatal(err)
	}
	data, err := ndarray.FromSlice(ndarray.Float64, []int{3}, []float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetVariable("t", store.NewVariable([]string{"x"}, data, nil)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("dsdump %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestInfoText(t *testing.T) {
	path := writeSampleCDF(t)
	out := runCommand(t, "info", path)

	for _, want := range []string{"(classic)", "x = 3", "title = sample", "float64 t[x]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInfoYAML(t *testing.T) {
	path := writeSampleCDF(t)
	out := runCommand(t, "info", path, "--format", "yaml")

	for _, want := range []string{"format: classic", "name: x", "length: 3", "dtype: float64"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInfoHDF5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.h5")
	s, err := store.CreateHDF5(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetDimension("x", 2); err != nil {
		t.Fatal(err)
	}
	data, err := ndarray.FromSlice(ndarray.Int32, []int{2}, []int32{5, 6})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetVariable("u", store.NewVariable([]string{"x"}, data, nil)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	out := runCommand(t, "info", path)
	for _, want := range []string{"(hierarchical)", "x = 2", "int32 u[x]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInfoRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.bin")
	if err := os.WriteFile(path, []byte("not a dataset"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"info", path})
	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for an unrecognized file")
	}
}

func TestVersion(t *testing.T) {
	out := runCommand(t, "version")
	if !strings.Contains(out, version) {
		t.Errorf("version output %q missing %q", out, version)
	}
}
