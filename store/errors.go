package store

import "errors"

var (
	// ErrDimensionImmutable is returned by backends that cannot change a
	// dimension once defined.
	ErrDimensionImmutable = errors.New("store does not support modifying dimensions")

	// ErrInvalidAttrName is returned for attribute keys that are not
	// legal identifiers.
	ErrInvalidAttrName = errors.New("not a valid attribute name")

	// ErrAttrNotVector is returned for attribute values of rank above one.
	ErrAttrNotVector = errors.New("attributes must be 1-dimensional")

	// ErrInvalidAttrType is returned for attribute values whose element
	// type the backend cannot store.
	ErrInvalidAttrType = errors.New("not a valid attribute type")

	// ErrAttrNotFound is returned when deleting an attribute that does
	// not exist.
	ErrAttrNotFound = errors.New("attribute not found")
)
