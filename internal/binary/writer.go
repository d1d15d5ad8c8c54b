package binary

import (
	"encoding/binary"
	"io"
)

// Writer writes binary data at an explicit position over an io.WriterAt.
type Writer struct {
	w          io.WriterAt
	order      binary.ByteOrder
	offsetSize int
	lengthSize int
	pos        int64
}

// NewWriter creates a binary writer with the given configuration.
func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{
		w:          w,
		order:      cfg.ByteOrder,
		offsetSize: cfg.OffsetSize,
		lengthSize: cfg.LengthSize,
	}
}

// At returns a new writer positioned at the given offset. The new writer
// shares the underlying io.WriterAt but has independent position.
func (w *Writer) At(offset int64) *Writer {
	cp := *w
	cp.pos = offset
	return &cp
}

// Pos returns the current write position.
func (w *Writer) Pos() int64 {
	return w.pos
}

// WriteBytes writes the given bytes at the current position.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteUint8 writes an unsigned 8-bit integer.
func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	buf := make([]byte, 2)
	w.order.PutUint16(buf, v)
	return w.WriteBytes(buf)
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	buf := make([]byte, 4)
	w.order.PutUint32(buf, v)
	return w.WriteBytes(buf)
}

// WriteUint64 writes an unsigned 64-bit integer.
func (w *Writer) WriteUint64(v uint64) error {
	buf := make([]byte, 8)
	w.order.PutUint64(buf, v)
	return w.WriteBytes(buf)
}

// WriteUintN writes an unsigned integer of n bytes (1, 2, 4, or 8).
func (w *Writer) WriteUintN(v uint64, n int) error {
	buf := make([]byte, n)
	switch n {
	case 1:
		buf[0] = uint8(v)
	case 2:
		w.order.PutUint16(buf, uint16(v))
	case 4:
		w.order.PutUint32(buf, uint32(v))
	case 8:
		w.order.PutUint64(buf, v)
	default:
		return ErrInvalidSize
	}
	return w.WriteBytes(buf)
}

// WriteOffset writes a file offset using the configured offset size.
func (w *Writer) WriteOffset(v uint64) error {
	return w.WriteUintN(v, w.offsetSize)
}

// WriteLength writes a length value using the configured length size.
func (w *Writer) WriteLength(v uint64) error {
	return w.WriteUintN(v, w.lengthSize)
}

// UndefinedOffset returns the "undefined" sentinel value for offsets.
func (w *Writer) UndefinedOffset() uint64 {
	return undefinedValue(w.offsetSize)
}

// WriteUndefinedOffset writes the undefined offset sentinel value.
func (w *Writer) WriteUndefinedOffset() error {
	return w.WriteOffset(w.UndefinedOffset())
}

// WriteUndefinedLength writes the undefined length sentinel value.
func (w *Writer) WriteUndefinedLength() error {
	return w.WriteLength(undefinedValue(w.lengthSize))
}

// Skip advances the position by n bytes without writing.
func (w *Writer) Skip(n int64) {
	w.pos += n
}

// WritePadding writes zero bytes up to the next multiple of alignment.
func (w *Writer) WritePadding(alignment int64) error {
	if alignment <= 1 {
		return nil
	}
	rem := w.pos % alignment
	if rem == 0 {
		return nil
	}
	return w.WriteZeros(int(alignment - rem))
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// OffsetSize returns the configured offset size in bytes.
func (w *Writer) OffsetSize() int {
	return w.offsetSize
}

// LengthSize returns the configured length size in bytes.
func (w *Writer) LengthSize() int {
	return w.lengthSize
}

// ByteOrder returns the configured byte order.
func (w *Writer) ByteOrder() binary.ByteOrder {
	return w.order
}
