package hdf5

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-datastore/internal/binary"
)

// Datatype classes used by this engine.
const (
	classFixedPoint uint8 = 0
	classFloat      uint8 = 1
	classString     uint8 = 3
)

// dataspaceMsg is a v2 dataspace: scalar or simple N-dimensional.
type dataspaceMsg struct {
	scalar bool
	dims   []uint64
}

func (m *dataspaceMsg) typeCode() uint8 { return msgDataspace }

func (m *dataspaceMsg) size(w *binpkg.Writer) int {
	return 4 + len(m.dims)*w.LengthSize()
}

func (m *dataspaceMsg) serialize(w *binpkg.Writer) error {
	if err := w.WriteUint8(2); err != nil { // version
		return err
	}
	if err := w.WriteUint8(uint8(len(m.dims))); err != nil {
		return err
	}
	if err := w.WriteUint8(0); err != nil { // flags: no max dims
		return err
	}
	spaceType := uint8(1) // simple
	if m.scalar {
		spaceType = 0
	}
	if err := w.WriteUint8(spaceType); err != nil {
		return err
	}
	for _, d := range m.dims {
		if err := w.WriteLength(d); err != nil {
			return err
		}
	}
	return nil
}

func parseDataspace(data []byte) (*dataspaceMsg, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("dataspace message too short")
	}
	if data[0] != 2 {
		return nil, fmt.Errorf("unsupported dataspace version %d", data[0])
	}
	rank := int(data[1])
	spaceType := data[3]
	ds := &dataspaceMsg{scalar: spaceType == 0}
	if ds.scalar || rank == 0 {
		return ds, nil
	}
	if len(data) < 4+rank*8 {
		return nil, fmt.Errorf("dataspace message truncated")
	}
	ds.dims = make([]uint64, rank)
	for i := range ds.dims {
		ds.dims[i] = binary.LittleEndian.Uint64(data[4+i*8:])
	}
	return ds, nil
}

// datatypeMsg covers the three element classes the engine stores:
// little-endian signed integers, IEEE floats, and fixed-length strings.
type datatypeMsg struct {
	class    uint8
	elemSize uint32
}

func (m *datatypeMsg) typeCode() uint8 { return msgDatatype }

func (m *datatypeMsg) size(w *binpkg.Writer) int {
	switch m.class {
	case classFixedPoint:
		return 8 + 4
	case classFloat:
		return 8 + 12
	default: // string: no properties
		return 8
	}
}

func (m *datatypeMsg) serialize(w *binpkg.Writer) error {
	var classBits uint32
	switch m.class {
	case classFixedPoint:
		classBits = 0x08 // little-endian, signed
	case classFloat:
		// Bit 0: byte order, bit 5: normalized mantissa, byte 1: sign bit location.
		signLocation := uint32(m.elemSize*8 - 1)
		classBits = (1 << 5) | (signLocation << 8)
	case classString:
		classBits = 0 | (1 << 4) // null-terminated, UTF-8
	}

	if err := w.WriteUint8(m.class | (1 << 4)); err != nil { // class + version 1
		return err
	}
	if err := w.WriteUint8(uint8(classBits)); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(classBits >> 8)); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(classBits >> 16)); err != nil {
		return err
	}
	if err := w.WriteUint32(m.elemSize); err != nil {
		return err
	}

	switch m.class {
	case classFixedPoint:
		if err := w.WriteUint16(0); err != nil { // bit offset
			return err
		}
		return w.WriteUint16(uint16(m.elemSize * 8)) // bit precision
	case classFloat:
		return w.WriteBytes(floatProperties(m.elemSize))
	default:
		return nil
	}
}

// floatProperties returns the 12-byte IEEE 754 property block:
// bit offset(2), precision(2), exponent location/size, mantissa
// location/size, exponent bias(4).
func floatProperties(elemSize uint32) []byte {
	switch elemSize {
	case 4:
		return []byte{0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0}
	case 8:
		return []byte{0, 0, 64, 0, 52, 11, 0, 52, 255, 3, 0, 0}
	default:
		return make([]byte, 12)
	}
}

func parseDatatype(data []byte) (*datatypeMsg, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("datatype message too short")
	}
	return &datatypeMsg{
		class:    data[0] & 0x0F,
		elemSize: binary.LittleEndian.Uint32(data[4:8]),
	}, nil
}

// fillValueMsg is a v3 fill value message.
type fillValueMsg struct {
	value []byte // nil means undefined
}

func (m *fillValueMsg) typeCode() uint8 { return msgFillValue }

func (m *fillValueMsg) size(w *binpkg.Writer) int {
	if m.value == nil {
		return 2
	}
	return 2 + 4 + len(m.value)
}

func (m *fillValueMsg) serialize(w *binpkg.Writer) error {
	if err := w.WriteUint8(3); err != nil { // version
		return err
	}
	// Flags: bits 0-1 alloc time, bits 2-3 write time, bit 4 undefined,
	// bit 5 value present.
	if m.value == nil {
		return w.WriteUint8(0x02 | (1 << 4)) // late allocation, undefined
	}
	if err := w.WriteUint8(0x02 | (1 << 5)); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(len(m.value))); err != nil {
		return err
	}
	return w.WriteBytes(m.value)
}

func parseFillValue(data []byte) (*fillValueMsg, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("fill value message too short")
	}
	if data[0] != 3 {
		return nil, fmt.Errorf("unsupported fill value version %d", data[0])
	}
	flags := data[1]
	if (flags>>4)&1 == 1 || (flags>>5)&1 == 0 {
		return &fillValueMsg{}, nil
	}
	if len(data) < 6 {
		return nil, fmt.Errorf("fill value size truncated")
	}
	n := binary.LittleEndian.Uint32(data[2:6])
	if len(data) < 6+int(n) {
		return nil, fmt.Errorf("fill value data truncated")
	}
	value := make([]byte, n)
	copy(value, data[6:6+n])
	return &fillValueMsg{value: value}, nil
}

// layoutMsg is a v3 contiguous data layout.
type layoutMsg struct {
	address  uint64 // undefined when no data allocated
	dataSize uint64
}

func (m *layoutMsg) typeCode() uint8 { return msgLayout }

func (m *layoutMsg) size(w *binpkg.Writer) int {
	return 2 + w.OffsetSize() + w.LengthSize()
}

func (m *layoutMsg) serialize(w *binpkg.Writer) error {
	if err := w.WriteUint8(3); err != nil { // version
		return err
	}
	if err := w.WriteUint8(1); err != nil { // contiguous
		return err
	}
	addr := m.address
	if addr == 0 {
		addr = w.UndefinedOffset()
	}
	if err := w.WriteOffset(addr); err != nil {
		return err
	}
	return w.WriteLength(m.dataSize)
}

func parseLayout(data []byte) (*layoutMsg, error) {
	if len(data) < 2+16 {
		return nil, fmt.Errorf("layout message too short")
	}
	if data[0] != 3 {
		return nil, fmt.Errorf("unsupported layout version %d", data[0])
	}
	if data[1] != 1 {
		return nil, fmt.Errorf("unsupported layout class %d", data[1])
	}
	m := &layoutMsg{
		address:  binary.LittleEndian.Uint64(data[2:10]),
		dataSize: binary.LittleEndian.Uint64(data[10:18]),
	}
	if m.address == ^uint64(0) {
		m.address = 0
	}
	return m, nil
}

// linkMsg is a v1 hard link to another object header.
type linkMsg struct {
	name    string
	address uint64
}

func (m *linkMsg) typeCode() uint8 { return msgLink }

func (m *linkMsg) size(w *binpkg.Writer) int {
	return 2 + nameLenFieldSize(len(m.name)) + len(m.name) + w.OffsetSize()
}

func (m *linkMsg) serialize(w *binpkg.Writer) error {
	if err := w.WriteUint8(1); err != nil { // version
		return err
	}
	lenSize := nameLenFieldSize(len(m.name))
	// Flags bits 0-1: name length field size; hard link, so no type byte.
	if err := w.WriteUint8(uint8(sizeFieldFlag(lenSize))); err != nil {
		return err
	}
	if err := w.WriteUintN(uint64(len(m.name)), lenSize); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte(m.name)); err != nil {
		return err
	}
	return w.WriteOffset(m.address)
}

func nameLenFieldSize(n int) int {
	switch {
	case n <= 0xFF:
		return 1
	case n <= 0xFFFF:
		return 2
	default:
		return 4
	}
}

func parseLink(data []byte) (*linkMsg, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("link message too short")
	}
	if data[0] != 1 {
		return nil, fmt.Errorf("unsupported link version %d", data[0])
	}
	flags := data[1]
	offset := 2
	if flags&0x08 != 0 {
		return nil, fmt.Errorf("only hard links are supported")
	}
	lenSize := 1 << (flags & 0x03)
	if len(data) < offset+lenSize {
		return nil, fmt.Errorf("link name length truncated")
	}
	var nameLen int
	for i := lenSize - 1; i >= 0; i-- {
		nameLen = nameLen<<8 | int(data[offset+i])
	}
	offset += lenSize
	if len(data) < offset+nameLen+8 {
		return nil, fmt.Errorf("link message truncated")
	}
	name := string(data[offset : offset+nameLen])
	offset += nameLen
	return &linkMsg{
		name:    name,
		address: binary.LittleEndian.Uint64(data[offset : offset+8]),
	}, nil
}

// linkInfoMsg is a minimal link info message: compact link storage with
// undefined heap and index addresses.
type linkInfoMsg struct{}

func (m *linkInfoMsg) typeCode() uint8 { return msgLinkInfo }

func (m *linkInfoMsg) size(w *binpkg.Writer) int {
	return 2 + 2*w.OffsetSize()
}

func (m *linkInfoMsg) serialize(w *binpkg.Writer) error {
	if err := w.WriteUint8(0); err != nil { // version
		return err
	}
	if err := w.WriteUint8(0); err != nil { // flags
		return err
	}
	if err := w.WriteUndefinedOffset(); err != nil { // fractal heap
		return err
	}
	return w.WriteUndefinedOffset() // name index
}

// groupInfoMsg is a minimal group info message.
type groupInfoMsg struct{}

func (m *groupInfoMsg) typeCode() uint8 { return msgGroupInfo }

func (m *groupInfoMsg) size(w *binpkg.Writer) int { return 2 }

func (m *groupInfoMsg) serialize(w *binpkg.Writer) error {
	if err := w.WriteUint8(0); err != nil { // version
		return err
	}
	return w.WriteUint8(0) // flags
}

// attributeMsg is a v3 attribute: name, element type, shape, raw data.
type attributeMsg struct {
	name      string
	datatype  *datatypeMsg
	dataspace *dataspaceMsg
	data      []byte
}

func (m *attributeMsg) typeCode() uint8 { return msgAttribute }

func (m *attributeMsg) size(w *binpkg.Writer) int {
	// version(1) + flags(1) + name size(2) + datatype size(2) +
	// dataspace size(2) + encoding(1) + name+null + datatype + dataspace + data
	return 9 + len(m.name) + 1 + m.datatype.size(w) + m.dataspace.size(w) + len(m.data)
}

func (m *attributeMsg) serialize(w *binpkg.Writer) error {
	if err := w.WriteUint8(3); err != nil { // version
		return err
	}
	if err := w.WriteUint8(0); err != nil { // flags
		return err
	}
	if err := w.WriteUint16(uint16(len(m.name) + 1)); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(m.datatype.size(w))); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(m.dataspace.size(w))); err != nil {
		return err
	}
	if err := w.WriteUint8(1); err != nil { // encoding: UTF-8
		return err
	}
	if err := w.WriteBytes([]byte(m.name)); err != nil {
		return err
	}
	if err := w.WriteUint8(0); err != nil { // name terminator
		return err
	}
	if err := m.datatype.serialize(w); err != nil {
		return err
	}
	if err := m.dataspace.serialize(w); err != nil {
		return err
	}
	return w.WriteBytes(m.data)
}

func parseAttribute(data []byte) (*attributeMsg, error) {
	if len(data) < 9 {
		return nil, fmt.Errorf("attribute message too short")
	}
	if data[0] != 3 {
		return nil, fmt.Errorf("unsupported attribute version %d", data[0])
	}
	nameSize := int(binary.LittleEndian.Uint16(data[2:4]))
	dtSize := int(binary.LittleEndian.Uint16(data[4:6]))
	dsSize := int(binary.LittleEndian.Uint16(data[6:8]))

	offset := 9
	if len(data) < offset+nameSize+dtSize+dsSize {
		return nil, fmt.Errorf("attribute message truncated")
	}
	nameEnd := offset
	for nameEnd < offset+nameSize && data[nameEnd] != 0 {
		nameEnd++
	}
	m := &attributeMsg{name: string(data[offset:nameEnd])}
	offset += nameSize

	dt, err := parseDatatype(data[offset : offset+dtSize])
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.name, err)
	}
	m.datatype = dt
	offset += dtSize

	ds, err := parseDataspace(data[offset : offset+dsSize])
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.name, err)
	}
	m.dataspace = ds
	offset += dsSize

	m.data = make([]byte, len(data)-offset)
	copy(m.data, data[offset:])
	return m, nil
}
