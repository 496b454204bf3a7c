package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Decoding errors.
var (
	ErrTruncatedBuffer = errors.New("protocol: truncated buffer")
	ErrUlebOverflow    = errors.New("protocol: uleb128 overflow")
	ErrBodyTooLarge    = errors.New("protocol: packet body too large")
)

// maxUlebGroups bounds a ULEB128 read to what fits in a uint64.
const maxUlebGroups = 10

// Reader is a forward-only cursor over an immutable request buffer.
//
// Headers are consumed with ReadHeader until Empty reports true. After each
// header the caller must consume exactly the advertised body length, with
// typed reads or Skip, before reading the next header.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf. The buffer must not be modified while the reader is
// in use.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Empty reports whether the cursor reached the end of the buffer.
func (r *Reader) Empty() bool {
	return r.pos >= len(r.buf)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Pos returns the current cursor offset.
func (r *Reader) Pos() int {
	return r.pos
}

// take advances the cursor by n and returns the consumed bytes. The cursor
// is left untouched on failure.
func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, %d available",
			ErrTruncatedBuffer, n, r.pos, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// ReadBytes returns the next n bytes. The slice aliases the buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.take(n)
}

// ReadHeader consumes a 7-byte packet header.
func (r *Reader) ReadHeader() (PacketID, uint32, error) {
	b, err := r.take(HeaderSize)
	if err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}
	id := PacketID(binary.LittleEndian.Uint16(b[0:2]))
	// b[2] is reserved and ignored.
	length := binary.LittleEndian.Uint32(b[3:7])
	return id, length, nil
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

// ReadUleb128 decodes an unsigned LEB128 value.
func (r *Reader) ReadUleb128() (uint64, error) {
	var (
		v     uint64
		shift uint
		start = r.pos
	)
	for i := 0; i < maxUlebGroups; i++ {
		if r.Empty() {
			r.pos = start
			return 0, fmt.Errorf("%w: unterminated uleb128 at offset %d", ErrTruncatedBuffer, start)
		}
		b := r.buf[r.pos]
		r.pos++
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
	}
	r.pos = start
	return 0, fmt.Errorf("%w at offset %d", ErrUlebOverflow, start)
}

// ReadString decodes a bancho string. A marker other than 0x0B means the
// string is absent and "" is returned without consuming anything further.
func (r *Reader) ReadString() (string, error) {
	start := r.pos
	marker, err := r.ReadU8()
	if err != nil {
		return "", err
	}
	if marker != StringExists {
		return "", nil
	}
	length, err := r.ReadUleb128()
	if err != nil {
		r.pos = start
		return "", err
	}
	if length > uint64(r.Remaining()) {
		n := r.Remaining()
		r.pos = start
		return "", fmt.Errorf("%w: string of %d bytes at offset %d, %d available",
			ErrTruncatedBuffer, length, start, n)
	}
	b, _ := r.take(int(length))
	return string(b), nil
}

// ReadI32Array decodes a u16 count followed by that many i32 values.
func (r *Reader) ReadI32Array() ([]int32, error) {
	start := r.pos
	count, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if int(count)*4 > r.Remaining() {
		n := r.Remaining()
		r.pos = start
		return nil, fmt.Errorf("%w: %d array elements at offset %d, %d bytes available",
			ErrTruncatedBuffer, count, start, n)
	}
	values := make([]int32, count)
	for i := range values {
		values[i], _ = r.ReadI32()
	}
	return values, nil
}
