package binary

import (
	"io"
)

// SeekableWriterAt adapts an io.WriteSeeker to io.WriterAt. Useful for
// stream targets that only expose sequential write access.
type SeekableWriterAt struct {
	ws io.WriteSeeker
}

// NewSeekableWriterAt creates a WriterAt from a WriteSeeker.
func NewSeekableWriterAt(ws io.WriteSeeker) *SeekableWriterAt {
	return &SeekableWriterAt{ws: ws}
}

// WriteAt implements io.WriterAt.
func (s *SeekableWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if _, err := s.ws.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return s.ws.Write(p)
}

// SeekableReaderAt adapts an io.ReadSeeker to io.ReaderAt.
type SeekableReaderAt struct {
	rs io.ReadSeeker
}

// NewSeekableReaderAt creates a ReaderAt from a ReadSeeker.
func NewSeekableReaderAt(rs io.ReadSeeker) *SeekableReaderAt {
	return &SeekableReaderAt{rs: rs}
}

// ReadAt implements io.ReaderAt.
func (s *SeekableReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(s.rs, p)
}

// Buffer is a growable in-memory byte store implementing io.ReadWriteSeeker,
// io.ReaderAt, and io.WriterAt. It backs in-memory file round trips.
type Buffer struct {
	data []byte
	pos  int64
}

// NewBuffer creates a Buffer initialized with the given bytes.
// The slice is copied.
func NewBuffer(data []byte) *Buffer {
	b := &Buffer{data: make([]byte, len(data))}
	copy(b.data, data)
	return b
}

// Bytes returns the current contents. The slice is aliased.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the current size in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Read implements io.Reader.
func (b *Buffer) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

// Write implements io.Writer, growing the buffer as needed.
func (b *Buffer) Write(p []byte) (int, error) {
	b.grow(b.pos + int64(len(p)))
	n := copy(b.data[b.pos:], p)
	b.pos += int64(n)
	return n, nil
}

// Seek implements io.Seeker.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = b.pos + offset
	case io.SeekEnd:
		pos = int64(len(b.data)) + offset
	default:
		return 0, io.ErrUnexpectedEOF
	}
	if pos < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	b.pos = pos
	return pos, nil
}

// ReadAt implements io.ReaderAt.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	b.grow(off + int64(len(p)))
	return copy(b.data[off:], p), nil
}

// Truncate discards all but the first n bytes. The signature matches
// os.File so flush paths can treat both targets uniformly.
func (b *Buffer) Truncate(n int64) error {
	if n < int64(len(b.data)) {
		b.data = b.data[:n]
	}
	if b.pos > n {
		b.pos = n
	}
	return nil
}

func (b *Buffer) grow(size int64) {
	if size <= int64(len(b.data)) {
		return
	}
	if size <= int64(cap(b.data)) {
		b.data = b.data[:size]
		return
	}
	grown := make([]byte, size, size*2)
	copy(grown, b.data)
	b.data = grown
}
