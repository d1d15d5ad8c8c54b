package hdf5

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-datastore/internal/binary"
)

// Header message type codes.
const (
	msgNIL       uint8 = 0x00
	msgDataspace uint8 = 0x01
	msgLinkInfo  uint8 = 0x02
	msgDatatype  uint8 = 0x03
	msgFillValue uint8 = 0x05
	msgLink      uint8 = 0x06
	msgLayout    uint8 = 0x08
	msgGroupInfo uint8 = 0x0A
	msgAttribute uint8 = 0x0C
)

// message is a parsed or to-be-written header message.
type message interface {
	typeCode() uint8
	size(w *binpkg.Writer) int
	serialize(w *binpkg.Writer) error
}

// rawMessage is a message read from a header.
type rawMessage struct {
	code uint8
	data []byte
}

// writeHeader writes a v2 object header at the writer's position. The
// chunk size field holds the total message bytes; the checksum follows the
// messages and covers everything before it.
func writeHeader(w *binpkg.Writer, msgs []message) error {
	var msgsSize int
	for _, m := range msgs {
		msgsSize += messageHeaderSize(w, m) + m.size(w)
	}

	sizeField := chunkSizeFieldBytes(msgsSize)
	flags := uint8(sizeFieldFlag(sizeField))

	buf := binpkg.NewBuffer(nil)
	bw := binpkg.NewWriter(buf, binpkg.LittleEndianConfig())

	if err := bw.WriteBytes(headerSignature); err != nil {
		return err
	}
	if err := bw.WriteUint8(2); err != nil {
		return err
	}
	if err := bw.WriteUint8(flags); err != nil {
		return err
	}
	if err := bw.WriteUintN(uint64(msgsSize), sizeField); err != nil {
		return err
	}
	for _, m := range msgs {
		if err := writeMessage(bw, m); err != nil {
			return err
		}
	}
	if err := bw.WriteUint32(binpkg.Lookup3Checksum(buf.Bytes())); err != nil {
		return err
	}
	return w.WriteBytes(buf.Bytes())
}

// headerSize returns the on-disk size of a header holding msgs.
func headerSize(w *binpkg.Writer, msgs []message) int {
	var msgsSize int
	for _, m := range msgs {
		msgsSize += messageHeaderSize(w, m) + m.size(w)
	}
	// signature(4) + version(1) + flags(1) + size field + messages + checksum(4)
	return 6 + chunkSizeFieldBytes(msgsSize) + msgsSize + 4
}

func writeMessage(w *binpkg.Writer, m message) error {
	dataSize := m.size(w)
	if dataSize > 0xFFFF {
		// Extended framing: marker + type + 32-bit size.
		if err := w.WriteUint8(0xFF); err != nil {
			return err
		}
		if err := w.WriteUint8(m.typeCode()); err != nil {
			return err
		}
		if err := w.WriteUint32(uint32(dataSize)); err != nil {
			return err
		}
	} else {
		if err := w.WriteUint8(m.typeCode()); err != nil {
			return err
		}
		if err := w.WriteUint16(uint16(dataSize)); err != nil {
			return err
		}
	}
	if err := w.WriteUint8(0); err != nil { // message flags
		return err
	}
	return m.serialize(w)
}

func messageHeaderSize(w *binpkg.Writer, m message) int {
	if m.size(w) > 0xFFFF {
		return 7
	}
	return 4
}

// readHeader parses a v2 object header at the given address, verifying the
// trailing checksum, and returns the raw messages in file order.
func readHeader(r *binpkg.Reader, address uint64) ([]rawMessage, error) {
	hr := r.At(int64(address))
	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(sig) != string(headerSignature) {
		return nil, fmt.Errorf("%w: bad signature at %d", ErrInvalidHeader, address)
	}
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 2 {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidHeader, version)
	}
	flags, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if flags&^uint8(0x03) != 0 {
		return nil, fmt.Errorf("%w: unsupported flags %#x", ErrInvalidHeader, flags)
	}
	sizeField := 1 << (flags & 0x03)
	msgsSize, err := hr.ReadUintN(sizeField)
	if err != nil {
		return nil, err
	}

	chunkEnd := hr.Pos() + int64(msgsSize)
	var msgs []rawMessage
	for hr.Pos() < chunkEnd {
		m, err := readMessage(hr)
		if err != nil {
			return nil, err
		}
		if m.code == msgNIL {
			continue
		}
		msgs = append(msgs, m)
	}

	checksumLen := int(chunkEnd - int64(address))
	body, err := r.At(int64(address)).ReadBytes(checksumLen)
	if err != nil {
		return nil, err
	}
	stored, err := hr.ReadUint32()
	if err != nil {
		return nil, err
	}
	if !binpkg.VerifyLookup3(body, stored) {
		return nil, fmt.Errorf("%w: checksum mismatch at %d", ErrInvalidHeader, address)
	}
	return msgs, nil
}

func readMessage(r *binpkg.Reader) (rawMessage, error) {
	first, err := r.ReadUint8()
	if err != nil {
		return rawMessage{}, err
	}
	var code uint8
	var dataSize uint32
	if first == 0xFF {
		if code, err = r.ReadUint8(); err != nil {
			return rawMessage{}, err
		}
		if dataSize, err = r.ReadUint32(); err != nil {
			return rawMessage{}, err
		}
	} else {
		code = first
		size16, err := r.ReadUint16()
		if err != nil {
			return rawMessage{}, err
		}
		dataSize = uint32(size16)
	}
	if _, err := r.ReadUint8(); err != nil { // message flags
		return rawMessage{}, err
	}
	data, err := r.ReadBytes(int(dataSize))
	if err != nil {
		return rawMessage{}, err
	}
	return rawMessage{code: code, data: data}, nil
}

func chunkSizeFieldBytes(size int) int {
	switch {
	case size <= 0xFF:
		return 1
	case size <= 0xFFFF:
		return 2
	case size <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

func sizeFieldFlag(sizeField int) int {
	switch sizeField {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	default:
		return 3
	}
}
