package binary

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

func TestReaderWriterRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"little endian 8-byte", LittleEndianConfig()},
		{"big endian 4-byte", BigEndianConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer(nil)
			w := NewWriter(buf, tt.cfg)

			if err := w.WriteUint8(0xAB); err != nil {
				t.Fatal(err)
			}
			if err := w.WriteUint16(0x1234); err != nil {
				t.Fatal(err)
			}
			if err := w.WriteUint32(0xDEADBEEF); err != nil {
				t.Fatal(err)
			}
			if err := w.WriteUint64(0x0102030405060708); err != nil {
				t.Fatal(err)
			}
			if err := w.WriteOffset(42); err != nil {
				t.Fatal(err)
			}
			if err := w.WriteBytes([]byte("abc")); err != nil {
				t.Fatal(err)
			}
			if err := w.WritePadding(4); err != nil {
				t.Fatal(err)
			}
			if w.Pos()%4 != 0 {
				t.Fatalf("position %d not 4-byte aligned after padding", w.Pos())
			}

			r := NewReader(buf, tt.cfg)
			if v, err := r.ReadUint8(); err != nil || v != 0xAB {
				t.Fatalf("ReadUint8 = %#x, %v", v, err)
			}
			if v, err := r.ReadUint16(); err != nil || v != 0x1234 {
				t.Fatalf("ReadUint16 = %#x, %v", v, err)
			}
			if v, err := r.ReadUint32(); err != nil || v != 0xDEADBEEF {
				t.Fatalf("ReadUint32 = %#x, %v", v, err)
			}
			if v, err := r.ReadUint64(); err != nil || v != 0x0102030405060708 {
				t.Fatalf("ReadUint64 = %#x, %v", v, err)
			}
			if v, err := r.ReadOffset(); err != nil || v != 42 {
				t.Fatalf("ReadOffset = %d, %v", v, err)
			}
			if b, err := r.ReadBytes(3); err != nil || !bytes.Equal(b, []byte("abc")) {
				t.Fatalf("ReadBytes = %q, %v", b, err)
			}
		})
	}
}

func TestWriterByteOrder(t *testing.T) {
	buf := NewBuffer(nil)
	w := NewWriter(buf, Config{ByteOrder: binary.BigEndian, OffsetSize: 4, LengthSize: 4})
	if err := w.WriteUint32(0x01020304); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("big-endian encoding = % x, want % x", buf.Bytes(), want)
	}
}

func TestReaderAt(t *testing.T) {
	buf := NewBuffer([]byte{0, 1, 2, 3, 4, 5, 6, 7})
	r := NewReader(buf, LittleEndianConfig())

	sub := r.At(4)
	if v, err := sub.ReadUint8(); err != nil || v != 4 {
		t.Fatalf("At(4).ReadUint8 = %d, %v", v, err)
	}
	// Original reader position is unaffected.
	if v, err := r.ReadUint8(); err != nil || v != 0 {
		t.Fatalf("ReadUint8 after At = %d, %v", v, err)
	}
}

func TestUndefinedOffsetSentinel(t *testing.T) {
	buf := NewBuffer(nil)
	w := NewWriter(buf, LittleEndianConfig())
	if err := w.WriteUndefinedOffset(); err != nil {
		t.Fatal(err)
	}
	r := NewReader(buf, LittleEndianConfig())
	v, err := r.ReadOffset()
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsUndefinedOffset(v) {
		t.Fatalf("offset %#x not recognized as undefined", v)
	}
	if r.IsUndefinedOffset(0) {
		t.Fatal("zero offset reported as undefined")
	}
}

func TestReaderPeekAndAlign(t *testing.T) {
	buf := NewBuffer([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	r := NewReader(buf, BigEndianConfig())

	p, err := r.Peek(2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p, []byte{1, 2}) || r.Pos() != 0 {
		t.Fatalf("Peek moved position or returned wrong bytes: %v pos=%d", p, r.Pos())
	}

	r.Skip(1)
	r.Align(4)
	if r.Pos() != 4 {
		t.Fatalf("Align(4) from pos 1 = %d, want 4", r.Pos())
	}
	r.Align(4)
	if r.Pos() != 4 {
		t.Fatalf("Align(4) when aligned moved to %d", r.Pos())
	}
}

func TestLookup3Checksum(t *testing.T) {
	// Known values computed with the reference H5_checksum_lookup3.
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"single byte", []byte{0x00}},
		{"12 bytes exactly", []byte("Hello World!")},
		{"13 bytes", []byte("Hello World!!")},
		{"two blocks", bytes.Repeat([]byte{0x5A}, 25)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lookup3Checksum(tt.input)
			if !VerifyLookup3(tt.input, got) {
				t.Fatal("VerifyLookup3 rejected its own checksum")
			}
			if got2 := Lookup3Checksum(append([]byte(nil), tt.input...)); got2 != got {
				t.Fatalf("checksum not stable: %#x vs %#x", got, got2)
			}
		})
	}

	// Distinct lengths of the same byte pattern must not collide.
	seen := make(map[uint32]int)
	for n := 0; n <= 24; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i)
		}
		seen[Lookup3Checksum(data)] = n
	}
	if len(seen) != 25 {
		t.Fatalf("expected 25 unique checksums for lengths 0-24, got %d", len(seen))
	}
}

func TestBufferSeekReadWrite(t *testing.T) {
	b := NewBuffer(nil)
	if _, err := b.Write([]byte("hello world")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Seek(6, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 5)
	if _, err := io.ReadFull(b, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != "world" {
		t.Fatalf("read %q, want %q", got, "world")
	}

	// WriteAt past the end grows the buffer with a zero gap.
	if _, err := b.WriteAt([]byte{0xFF}, 15); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 16 {
		t.Fatalf("buffer length %d, want 16", b.Len())
	}
	if b.Bytes()[12] != 0 || b.Bytes()[15] != 0xFF {
		t.Fatalf("gap not zero-filled: % x", b.Bytes()[11:])
	}
}

func TestSeekableAdapters(t *testing.T) {
	b := NewBuffer([]byte("0123456789"))

	ra := NewSeekableReaderAt(b)
	got := make([]byte, 3)
	if _, err := ra.ReadAt(got, 4); err != nil {
		t.Fatal(err)
	}
	if string(got) != "456" {
		t.Fatalf("ReadAt = %q, want %q", got, "456")
	}

	wa := NewSeekableWriterAt(b)
	if _, err := wa.WriteAt([]byte("xy"), 1); err != nil {
		t.Fatal(err)
	}
	if string(b.Bytes()[:4]) != "0xy3" {
		t.Fatalf("WriteAt result %q", b.Bytes()[:4])
	}
}
