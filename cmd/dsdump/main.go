// Command dsdump inspects array dataset files in either supported format.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-datastore/internal/ndarray"
	"github.com/robert-malhotra/go-datastore/store"
)

const version = "0.1.0"

var (
	cdfMagic  = []byte{'C', 'D', 'F', 0x01}
	hdf5Magic = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dsdump",
		Short:         "Inspect array dataset files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInfoCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dsdump version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "dsdump", version)
		},
	}
}

func newInfoCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Print dimensions, attributes, and variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := inspect(args[0])
			if err != nil {
				return err
			}
			switch format {
			case "text":
				return rep.renderText(cmd.OutOrStdout())
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(rep)
			default:
				return fmt.Errorf("unknown format %q (want text or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or yaml")
	return cmd
}

type report struct {
	File       string     `yaml:"file"`
	Format     string     `yaml:"format"`
	Dimensions []dimInfo  `yaml:"dimensions"`
	Attributes []attrInfo `yaml:"attributes"`
	Variables  []varInfo  `yaml:"variables"`
}

type dimInfo struct {
	Name   string `yaml:"name"`
	Length int64  `yaml:"length"`
}

type attrInfo struct {
	Name  string      `yaml:"name"`
	Value interface{} `yaml:"value"`
}

type varInfo struct {
	Name       string     `yaml:"name"`
	Dtype      string     `yaml:"dtype"`
	Dimensions []string   `yaml:"dimensions"`
	Shape      []int      `yaml:"shape"`
	Attributes []attrInfo `yaml:"attributes,omitempty"`
}

func inspect(path string) (*report, error) {
	magic := make([]byte, len(hdf5Magic))
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := fh.Read(magic); err != nil {
		fh.Close()
		return nil, fmt.Errorf("read magic of %s: %w", path, err)
	}

	switch {
	case bytes.HasPrefix(magic, cdfMagic):
		if _, err := fh.Seek(0, 0); err != nil {
			fh.Close()
			return nil, err
		}
		s, err := store.OpenCDFStream(fh)
		if err != nil {
			fh.Close()
			return nil, err
		}
		defer fh.Close()
		return buildReport(path, "classic", s)
	case bytes.Equal(magic, hdf5Magic):
		fh.Close()
		s, err := store.OpenHDF5(path)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return buildReport(path, "hierarchical", s)
	default:
		fh.Close()
		return nil, fmt.Errorf("%s: unrecognized file format", path)
	}
}

func buildReport(path, format string, s store.Store) (*report, error) {
	rep := &report{File: path, Format: format}

	s.Dimensions().Range(func(name string, length int64) bool {
		rep.Dimensions = append(rep.Dimensions, dimInfo{Name: name, Length: length})
		return true
	})
	s.Attributes().Range(func(key string, value interface{}) bool {
		rep.Attributes = append(rep.Attributes, attrInfo{Name: key, Value: renderValue(value)})
		return true
	})

	var outErr error
	s.Variables().Range(func(name string, v *store.Variable) bool {
		data, err := v.Data()
		if err != nil {
			outErr = fmt.Errorf("variable %q: %w", name, err)
			return false
		}
		vi := varInfo{
			Name:       name,
			Dtype:      data.Dtype().String(),
			Dimensions: v.Dimensions(),
			Shape:      data.Shape(),
		}
		v.Attrs().Range(func(key string, value interface{}) bool {
			vi.Attributes = append(vi.Attributes, attrInfo{Name: key, Value: renderValue(value)})
			return true
		})
		rep.Variables = append(rep.Variables, vi)
		return true
	})
	if outErr != nil {
		return nil, outErr
	}
	return rep, nil
}

func (r *report) renderText(w io.Writer) error {
	fmt.Fprintf(w, "%s (%s)\n", r.File, r.Format)

	fmt.Fprintln(w, "dimensions:")
	for _, d := range r.Dimensions {
		fmt.Fprintf(w, "  %s = %d\n", d.Name, d.Length)
	}

	fmt.Fprintln(w, "attributes:")
	for _, a := range r.Attributes {
		fmt.Fprintf(w, "  %s = %v\n", a.Name, a.Value)
	}

	fmt.Fprintln(w, "variables:")
	for _, v := range r.Variables {
		fmt.Fprintf(w, "  %s %s%v shape=%v\n", v.Dtype, v.Name, v.Dimensions, v.Shape)
		for _, a := range v.Attributes {
			fmt.Fprintf(w, "    %s:%s = %v\n", v.Name, a.Name, a.Value)
		}
	}
	return nil
}

// renderValue flattens array attribute values into plain Go values so both
// renderers can print them.
func renderValue(value interface{}) interface{} {
	a, ok := value.(*ndarray.Array)
	if !ok {
		return value
	}
	if a.Len() == 1 {
		return a.Item(0)
	}
	out := make([]interface{}, a.Len())
	for i := range out {
		out[i] = a.Item(i)
	}
	return out
}
