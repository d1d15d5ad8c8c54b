// Package conventions holds the naming and typing rules shared by the
// file-backed stores: which identifiers are acceptable for dimensions,
// variables, and attributes, and which array dtypes each format can hold.
package conventions

import (
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/robert-malhotra/go-datastore/internal/ndarray"
)

// IsValidName reports whether s is a legal classic-format identifier.
// Names are NFC-normalized before checking, matching the C library's
// treatment of UTF-8 identifiers. The first rune must be a letter or
// underscore; later runes may also be digits or one of "-_.@+".
func IsValidName(s string) bool {
	s = norm.NFC.String(s)
	if s == "" {
		return false
	}
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' {
			continue
		}
		if i == 0 {
			return false
		}
		if unicode.IsDigit(r) {
			continue
		}
		switch r {
		case '-', '.', '@', '+':
			continue
		}
		return false
	}
	return true
}

// CoerceType normalizes an array to a dtype the classic format can store.
// Int64 narrows to Int32 (the format has no 64-bit integer); the other
// supported dtypes pass through unchanged.
func CoerceType(a *ndarray.Array) (*ndarray.Array, error) {
	switch a.Dtype() {
	case ndarray.Int64:
		return a.Cast(ndarray.Int32)
	default:
		return a, nil
	}
}

// TypeMap maps storable numeric dtypes to their CDL type names. A dtype
// absent from this map cannot be written to the classic format.
var TypeMap = map[ndarray.Dtype]string{
	ndarray.Int8:    "byte",
	ndarray.Int16:   "short",
	ndarray.Int32:   "int",
	ndarray.Float32: "float",
	ndarray.Float64: "double",
}
