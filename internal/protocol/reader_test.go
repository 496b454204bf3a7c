package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadHeader(t *testing.T) {
	buf := AppendHeader(nil, SrvNotification, 0x01020304)
	want := []byte{24, 0, 0, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(buf, want) {
		t.Fatalf("AppendHeader = %x, want %x", buf, want)
	}

	r := NewReader(buf)
	id, length, err := r.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if id != SrvNotification {
		t.Errorf("id = %v, want %v", id, SrvNotification)
	}
	if length != 0x01020304 {
		t.Errorf("length = %d", length)
	}
	if !r.Empty() {
		t.Error("reader not empty after header")
	}
}

func TestReadHeaderIgnoresReservedByte(t *testing.T) {
	r := NewReader([]byte{4, 0, 0xFF, 0, 0, 0, 0})
	id, length, err := r.ReadHeader()
	if err != nil || id != OsuHeartbeat || length != 0 {
		t.Errorf("got (%v, %d, %v)", id, length, err)
	}
}

func TestReadHeaderTruncated(t *testing.T) {
	for n := 0; n < HeaderSize; n++ {
		r := NewReader(make([]byte, n))
		if _, _, err := r.ReadHeader(); !errors.Is(err, ErrTruncatedBuffer) {
			t.Errorf("%d bytes: err = %v, want ErrTruncatedBuffer", n, err)
		}
		if r.Pos() != 0 {
			t.Errorf("%d bytes: cursor moved to %d", n, r.Pos())
		}
	}
}

func TestTypedReadTruncated(t *testing.T) {
	reads := map[string]func(*Reader) error{
		"u16": func(r *Reader) error { _, err := r.ReadU16(); return err },
		"i32": func(r *Reader) error { _, err := r.ReadI32(); return err },
		"i64": func(r *Reader) error { _, err := r.ReadI64(); return err },
		"f32": func(r *Reader) error { _, err := r.ReadF32(); return err },
	}
	for name, read := range reads {
		t.Run(name, func(t *testing.T) {
			r := NewReader([]byte{0x01})
			if err := read(r); !errors.Is(err, ErrTruncatedBuffer) {
				t.Errorf("err = %v, want ErrTruncatedBuffer", err)
			}
			if r.Pos() != 0 {
				t.Errorf("cursor moved to %d", r.Pos())
			}
		})
	}
}

func TestSkip(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4})
	if err := r.Skip(3); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if r.Pos() != 3 || r.Remaining() != 1 {
		t.Errorf("pos %d remaining %d", r.Pos(), r.Remaining())
	}
	if err := r.Skip(2); !errors.Is(err, ErrTruncatedBuffer) {
		t.Errorf("Skip past end: err = %v", err)
	}
	if r.Pos() != 3 {
		t.Errorf("failed Skip moved cursor to %d", r.Pos())
	}
	if err := r.Skip(0); err != nil {
		t.Errorf("Skip(0): %v", err)
	}
}

func TestHeaderSequence(t *testing.T) {
	var buf []byte
	buf = append(buf, Notification("hi")...)
	buf = append(buf, Packet(OsuHeartbeat, nil)...)
	buf = append(buf, Packet(PacketID(999), []byte{1, 2, 3})...)

	want := []struct {
		id     PacketID
		length uint32
	}{
		{SrvNotification, 4},
		{OsuHeartbeat, 0},
		{PacketID(999), 3},
	}

	r := NewReader(buf)
	var i int
	for !r.Empty() {
		id, length, err := r.ReadHeader()
		if err != nil {
			t.Fatalf("header %d: %v", i, err)
		}
		if i >= len(want) {
			t.Fatalf("unexpected header %d: %v", i, id)
		}
		if id != want[i].id || length != want[i].length {
			t.Errorf("header %d = (%v, %d), want (%v, %d)", i, id, length, want[i].id, want[i].length)
		}
		if err := r.Skip(int(length)); err != nil {
			t.Fatalf("skip %d: %v", i, err)
		}
		i++
	}
	if i != len(want) {
		t.Errorf("read %d headers, want %d", i, len(want))
	}
}

func TestPacketIDString(t *testing.T) {
	if got := SrvNotification.String(); got != "SRV_NOTIFICATION" {
		t.Errorf("String() = %q", got)
	}
	if got := PacketID(4242).String(); got != "PacketID(4242)" {
		t.Errorf("String() = %q", got)
	}
}
