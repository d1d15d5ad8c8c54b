// Package binary provides the low-level codec shared by the two file
// engines: positioned readers and writers with configurable byte order
// and variable-width offset/length fields, the lookup3 metadata checksum,
// and seekable adapters for stream targets.
package binary

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrInvalidSize is returned when an invalid offset or length size is specified.
var ErrInvalidSize = errors.New("invalid offset/length size: must be 2, 4, or 8")

// Config holds codec configuration. The hierarchical format derives it from
// the superblock; the classic format is fixed big-endian with 4-byte offsets.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int // 2, 4, or 8 bytes
	LengthSize int // 2, 4, or 8 bytes
}

// LittleEndianConfig returns the configuration the hierarchical format uses:
// little-endian with 8-byte offsets and lengths.
func LittleEndianConfig() Config {
	return Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: 8,
		LengthSize: 8,
	}
}

// BigEndianConfig returns the configuration the classic format uses:
// big-endian with 4-byte offsets and lengths.
func BigEndianConfig() Config {
	return Config{
		ByteOrder:  binary.BigEndian,
		OffsetSize: 4,
		LengthSize: 4,
	}
}

// Reader reads binary data at an explicit position over an io.ReaderAt.
type Reader struct {
	r          io.ReaderAt
	order      binary.ByteOrder
	offsetSize int
	lengthSize int
	pos        int64
}

// NewReader creates a binary reader with the given configuration.
func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{
		r:          r,
		order:      cfg.ByteOrder,
		offsetSize: cfg.OffsetSize,
		lengthSize: cfg.LengthSize,
	}
}

// At returns a new reader positioned at the given offset. The new reader
// shares the underlying io.ReaderAt but has independent position.
func (r *Reader) At(offset int64) *Reader {
	cp := *r
	cp.pos = offset
	return &cp
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// ReadBytes reads exactly n bytes from the current position.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := r.r.ReadAt(buf, r.pos); err != nil {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(buf), nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(buf), nil
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(buf), nil
}

// ReadUintN reads an unsigned integer of n bytes (1, 2, 4, or 8).
func (r *Reader) ReadUintN(n int) (uint64, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return r.decodeUint(buf, n)
}

// ReadOffset reads a file offset using the configured offset size.
func (r *Reader) ReadOffset() (uint64, error) {
	return r.ReadUintN(r.offsetSize)
}

// ReadLength reads a length value using the configured length size.
func (r *Reader) ReadLength() (uint64, error) {
	return r.ReadUintN(r.lengthSize)
}

func (r *Reader) decodeUint(buf []byte, size int) (uint64, error) {
	switch size {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(r.order.Uint16(buf)), nil
	case 4:
		return uint64(r.order.Uint32(buf)), nil
	case 8:
		return r.order.Uint64(buf), nil
	default:
		return 0, ErrInvalidSize
	}
}

// IsUndefinedOffset reports whether an offset value is the "undefined"
// sentinel: all 1-bits at the configured offset width.
func (r *Reader) IsUndefinedOffset(offset uint64) bool {
	return offset == undefinedValue(r.offsetSize)
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int64) {
	r.pos += n
}

// Align advances the position to the next multiple of alignment.
func (r *Reader) Align(alignment int64) {
	if alignment <= 1 {
		return
	}
	if rem := r.pos % alignment; rem != 0 {
		r.pos += alignment - rem
	}
}

// Peek reads n bytes without advancing the position.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := r.r.ReadAt(buf, r.pos); err != nil {
		return nil, err
	}
	return buf, nil
}

// OffsetSize returns the configured offset size in bytes.
func (r *Reader) OffsetSize() int {
	return r.offsetSize
}

// LengthSize returns the configured length size in bytes.
func (r *Reader) LengthSize() int {
	return r.lengthSize
}

// ByteOrder returns the configured byte order.
func (r *Reader) ByteOrder() binary.ByteOrder {
	return r.order
}

func undefinedValue(size int) uint64 {
	if size >= 8 {
		return 0xFFFFFFFFFFFFFFFF
	}
	return uint64(1)<<(size*8) - 1
}
