package protocol

import (
	"encoding/binary"
	"fmt"
)

// PacketBuilder assembles the body of one outbound packet and prefixes the
// header once the body length is known.
type PacketBuilder struct {
	buf []byte
}

// NewPacketBuilder creates a builder with the header bytes reserved.
func NewPacketBuilder() *PacketBuilder {
	return &PacketBuilder{buf: make([]byte, HeaderSize, 64)}
}

// Reset clears the builder for reuse.
func (b *PacketBuilder) Reset() {
	b.buf = b.buf[:HeaderSize]
}

func (b *PacketBuilder) WriteU8(v uint8) *PacketBuilder {
	b.buf = AppendU8(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteI8(v int8) *PacketBuilder {
	b.buf = AppendI8(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteU16(v uint16) *PacketBuilder {
	b.buf = AppendU16(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteI16(v int16) *PacketBuilder {
	b.buf = AppendI16(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteU32(v uint32) *PacketBuilder {
	b.buf = AppendU32(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteI32(v int32) *PacketBuilder {
	b.buf = AppendI32(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteU64(v uint64) *PacketBuilder {
	b.buf = AppendU64(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteI64(v int64) *PacketBuilder {
	b.buf = AppendI64(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteF32(v float32) *PacketBuilder {
	b.buf = AppendF32(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteUleb128(v uint64) *PacketBuilder {
	b.buf = AppendUleb128(b.buf, v)
	return b
}

func (b *PacketBuilder) WriteString(s string) *PacketBuilder {
	b.buf = AppendString(b.buf, s)
	return b
}

func (b *PacketBuilder) WriteI32Array(values []int32) *PacketBuilder {
	b.buf = AppendI32Array(b.buf, values)
	return b
}

// WriteBytes writes raw bytes.
func (b *PacketBuilder) WriteBytes(data []byte) *PacketBuilder {
	b.buf = append(b.buf, data...)
	return b
}

// Len returns the size of the body written so far.
func (b *PacketBuilder) Len() int {
	return len(b.buf) - HeaderSize
}

// Finish writes the header for id and returns a copy of the complete
// packet, so the builder can be Reset and reused safely.
func (b *PacketBuilder) Finish(id PacketID) []byte {
	binary.LittleEndian.PutUint16(b.buf[0:2], uint16(id))
	b.buf[2] = 0
	binary.LittleEndian.PutUint32(b.buf[3:7], uint32(b.Len()))
	return append([]byte(nil), b.buf...)
}

// String returns a hex dump of the current body for debugging.
func (b *PacketBuilder) String() string {
	return fmt.Sprintf("PacketBuilder[%d bytes]: %x", b.Len(), b.buf[HeaderSize:])
}
