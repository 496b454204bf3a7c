package protocol

import (
	"encoding/binary"
	"math"
)

// Marker bytes for encoded strings.
const (
	StringAbsent byte = 0x00
	StringExists byte = 0x0B
)

// All Append* helpers write the little-endian encoding of a value to the end
// of dst and return the extended slice, in the style of binary.AppendUvarint.

func AppendU8(dst []byte, v uint8) []byte { return append(dst, v) }

func AppendI8(dst []byte, v int8) []byte { return append(dst, byte(v)) }

func AppendU16(dst []byte, v uint16) []byte { return binary.LittleEndian.AppendUint16(dst, v) }

func AppendI16(dst []byte, v int16) []byte { return AppendU16(dst, uint16(v)) }

func AppendU32(dst []byte, v uint32) []byte { return binary.LittleEndian.AppendUint32(dst, v) }

func AppendI32(dst []byte, v int32) []byte { return AppendU32(dst, uint32(v)) }

func AppendU64(dst []byte, v uint64) []byte { return binary.LittleEndian.AppendUint64(dst, v) }

func AppendI64(dst []byte, v int64) []byte { return AppendU64(dst, uint64(v)) }

func AppendF32(dst []byte, v float32) []byte { return AppendU32(dst, math.Float32bits(v)) }

// AppendUleb128 writes v as unsigned LEB128: 7 bits per byte, low groups
// first, 0x80 marking continuation. The encoding is canonical.
func AppendUleb128(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v&0x7F)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// Uleb128Len returns the encoded size of v.
func Uleb128Len(v uint64) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}

// AppendString writes s in bancho string form.
// Empty strings are the single byte 0x00; anything else is 0x0B followed by
// the ULEB128 byte length and the UTF-8 bytes.
func AppendString(dst []byte, s string) []byte {
	if s == "" {
		return append(dst, StringAbsent)
	}
	dst = append(dst, StringExists)
	dst = AppendUleb128(dst, uint64(len(s)))
	return append(dst, s...)
}

// MaxI32Array is the most elements a u16-counted array can carry.
const MaxI32Array = math.MaxUint16

// AppendI32Array writes a u16 element count followed by the elements.
// A nil slice is encoded the same as an empty one. Elements past
// MaxI32Array are dropped so the count always matches the payload.
func AppendI32Array(dst []byte, values []int32) []byte {
	if len(values) > MaxI32Array {
		values = values[:MaxI32Array]
	}
	dst = AppendU16(dst, uint16(len(values)))
	for _, v := range values {
		dst = AppendI32(dst, v)
	}
	return dst
}

// AppendHeader writes a packet header for a body of the given length.
func AppendHeader(dst []byte, id PacketID, length uint32) []byte {
	dst = AppendU16(dst, uint16(id))
	dst = append(dst, 0)
	return AppendU32(dst, length)
}

// Packet returns a complete packet: header followed by body.
func Packet(id PacketID, body []byte) []byte {
	out := make([]byte, 0, HeaderSize+len(body))
	out = AppendHeader(out, id, uint32(len(body)))
	return append(out, body...)
}
