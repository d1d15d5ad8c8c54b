// Package store provides a uniform mutation and inspection contract over
// array-dataset backends: an in-memory baseline, a portable classic-format
// backend, and a hierarchical-format backend.
//
// All stores expose the same surface: define dimensions, set global
// attributes, write variables, and read everything back through snapshot
// views. Each backend translates between its native model and the shared
// Variable value object; translation differences (name validation, type
// coercion, fill value handling) live in the backend, not the caller.
package store

import (
	"github.com/robert-malhotra/go-datastore/internal/ordered"
)

// Store is the uniform backend contract. Implementations are not safe for
// concurrent use; callers serialize access.
//
// The three read accessors are snapshots: each call materializes a fresh
// read-only view from the backend's native containers. Nothing is cached,
// so a view taken before a mutation never reflects it.
type Store interface {
	// SetDimension defines or redefines a named axis length. File-backed
	// stores may refuse redefinition.
	SetDimension(name string, length int64) error

	// SetAttribute sets a global attribute after backend-specific
	// validation and coercion.
	SetAttribute(key string, value interface{}) error

	// SetVariable writes a variable under the given name and returns the
	// variable as the backend now sees it.
	SetVariable(name string, v *Variable) (*Variable, error)

	// DelAttribute removes a global attribute.
	DelAttribute(key string) error

	// Sync makes pending mutations durable.
	Sync() error

	Dimensions() *ordered.Frozen[int64]
	Attributes() *ordered.Frozen[interface{}]
	Variables() *ordered.Frozen[*Variable]
}

// SetDimensions applies SetDimension per entry in iteration order,
// stopping at the first error. Already-applied entries are not rolled
// back.
func SetDimensions(s Store, dims *ordered.Map[int64]) error {
	var outErr error
	dims.Range(func(name string, length int64) bool {
		if err := s.SetDimension(name, length); err != nil {
			outErr = err
			return false
		}
		return true
	})
	return outErr
}

// SetAttributes applies SetAttribute per entry in iteration order,
// stopping at the first error.
func SetAttributes(s Store, attrs *ordered.Map[interface{}]) error {
	var outErr error
	attrs.Range(func(key string, value interface{}) bool {
		if err := s.SetAttribute(key, value); err != nil {
			outErr = err
			return false
		}
		return true
	})
	return outErr
}

// SetVariables applies SetVariable per entry in iteration order, stopping
// at the first error.
func SetVariables(s Store, vars *ordered.Map[*Variable]) error {
	var outErr error
	vars.Range(func(name string, v *Variable) bool {
		if _, err := s.SetVariable(name, v); err != nil {
			outErr = err
			return false
		}
		return true
	})
	return outErr
}
