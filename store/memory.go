package store

import (
	"fmt"

	"github.com/robert-malhotra/go-datastore/internal/ordered"
)

// InMemoryStore keeps everything in ordered in-process maps. It performs
// no validation and no translation: what goes in comes back out, which
// makes it the baseline for round-trip comparisons against the file
// backends.
type InMemoryStore struct {
	dims  *ordered.Map[int64]
	attrs *ordered.Map[interface{}]
	vars  *ordered.Map[*Variable]
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		dims:  ordered.NewMap[int64](),
		attrs: ordered.NewMap[interface{}](),
		vars:  ordered.NewMap[*Variable](),
	}
}

// SetDimension defines or redefines a dimension.
func (s *InMemoryStore) SetDimension(name string, length int64) error {
	s.dims.Set(name, length)
	return nil
}

// SetAttribute stores the value as given.
func (s *InMemoryStore) SetAttribute(key string, value interface{}) error {
	s.attrs.Set(key, value)
	return nil
}

// SetVariable stores the variable as given, aliasing the caller's value.
func (s *InMemoryStore) SetVariable(name string, v *Variable) (*Variable, error) {
	s.vars.Set(name, v)
	return v, nil
}

// DelAttribute removes a global attribute.
func (s *InMemoryStore) DelAttribute(key string) error {
	if !s.attrs.Del(key) {
		return fmt.Errorf("%w: %q", ErrAttrNotFound, key)
	}
	return nil
}

// Sync is a no-op; the store has no backing medium.
func (s *InMemoryStore) Sync() error { return nil }

// Dimensions returns a snapshot of the dimensions.
func (s *InMemoryStore) Dimensions() *ordered.Frozen[int64] {
	return s.dims.Freeze()
}

// Attributes returns a snapshot of the global attributes.
func (s *InMemoryStore) Attributes() *ordered.Frozen[interface{}] {
	return s.attrs.Freeze()
}

// Variables returns a snapshot of the variables.
func (s *InMemoryStore) Variables() *ordered.Frozen[*Variable] {
	return s.vars.Freeze()
}
