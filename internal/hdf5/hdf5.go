// Package hdf5 implements the hierarchical file engine: a reduced
// reader/writer for the v2 on-disk format covering exactly what the store
// contract needs. The model is flat: one root group holding dimension
// scales and contiguous datasets.
//
// Metadata mutation follows the rewrite pattern: object headers are never
// resized in place. Flush serializes every object header at a fresh
// address past the end of file and repoints the superblock at the new
// root. Dataset payloads are appended as they are written.
package hdf5

import (
	"errors"
	"fmt"

	binpkg "github.com/robert-malhotra/go-datastore/internal/binary"
)

var (
	// ErrNotHDF5 is returned when the target does not carry the format
	// signature.
	ErrNotHDF5 = errors.New("not a hierarchical-format file")

	// ErrInvalidSuperblock is returned when the superblock checksum or
	// version is wrong.
	ErrInvalidSuperblock = errors.New("invalid superblock")

	// ErrInvalidHeader is returned for malformed object headers.
	ErrInvalidHeader = errors.New("invalid object header")

	// ErrReadOnly is returned for mutations on a read-only handle.
	ErrReadOnly = errors.New("file is read-only")

	// ErrDimensionExists is returned when creating a dimension whose
	// name is already taken.
	ErrDimensionExists = errors.New("dimension already exists")

	// ErrDatasetExists is returned when creating a dataset whose name is
	// already taken by a non-scale object.
	ErrDatasetExists = errors.New("dataset already exists")

	// ErrUnknownDimension is returned when a dataset references a
	// dimension that was never created.
	ErrUnknownDimension = errors.New("unknown dimension")

	// ErrNoData is returned when reading a dataset that was never written.
	ErrNoData = errors.New("dataset has no data")
)

// superblockSignature is the 8-byte file signature.
var superblockSignature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// headerSignature marks a v2 object header.
var headerSignature = []byte("OHDR")

const (
	superblockVersion = 3
	superblockSize    = 48 // signature(8) + 4 fixed bytes + 4 offsets + checksum(4)
)

// superblock is the fixed file prologue: offset sizes, end of file, and the
// root group header address.
type superblock struct {
	eof  uint64
	root uint64 // undefined when the root header was never written
}

func (sb *superblock) write(w *binpkg.Writer) error {
	buf := binpkg.NewBuffer(nil)
	bw := binpkg.NewWriter(buf, binpkg.LittleEndianConfig())

	if err := bw.WriteBytes(superblockSignature); err != nil {
		return err
	}
	if err := bw.WriteUint8(superblockVersion); err != nil {
		return err
	}
	if err := bw.WriteUint8(8); err != nil { // offset size
		return err
	}
	if err := bw.WriteUint8(8); err != nil { // length size
		return err
	}
	if err := bw.WriteUint8(0); err != nil { // consistency flags
		return err
	}
	if err := bw.WriteOffset(0); err != nil { // base address
		return err
	}
	if err := bw.WriteUndefinedOffset(); err != nil { // extension address
		return err
	}
	if err := bw.WriteOffset(sb.eof); err != nil {
		return err
	}
	root := sb.root
	if root == 0 {
		root = bw.UndefinedOffset()
	}
	if err := bw.WriteOffset(root); err != nil {
		return err
	}
	if err := bw.WriteUint32(binpkg.Lookup3Checksum(buf.Bytes())); err != nil {
		return err
	}
	return w.At(0).WriteBytes(buf.Bytes())
}

func readSuperblock(r *binpkg.Reader) (*superblock, error) {
	sig, err := r.At(0).Peek(8)
	if err != nil {
		return nil, fmt.Errorf("read signature: %w", err)
	}
	for i, b := range superblockSignature {
		if sig[i] != b {
			return nil, ErrNotHDF5
		}
	}

	sr := r.At(0)
	body, err := sr.ReadBytes(superblockSize - 4)
	if err != nil {
		return nil, fmt.Errorf("read superblock: %w", err)
	}
	stored, err := sr.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("read superblock checksum: %w", err)
	}
	if !binpkg.VerifyLookup3(body, stored) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidSuperblock)
	}

	version := body[8]
	if version != 2 && version != 3 {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidSuperblock, version)
	}
	if body[9] != 8 || body[10] != 8 {
		return nil, fmt.Errorf("%w: offset/length size %d/%d", ErrInvalidSuperblock, body[9], body[10])
	}

	fr := r.At(12)
	if _, err := fr.ReadOffset(); err != nil { // base address
		return nil, err
	}
	if _, err := fr.ReadOffset(); err != nil { // extension address
		return nil, err
	}
	sb := &superblock{}
	if sb.eof, err = fr.ReadOffset(); err != nil {
		return nil, err
	}
	root, err := fr.ReadOffset()
	if err != nil {
		return nil, err
	}
	if !fr.IsUndefinedOffset(root) {
		sb.root = root
	}
	return sb, nil
}
