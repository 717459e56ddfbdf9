package protocol_test

import (
	"bytes"
	"testing"

	"github.com/Kaladum/simple-wc3/protocol"
)

func TestBufferRoundTrip(t *testing.T) {
	var buf = protocol.Buffer{Bytes: make([]byte, 0, 64)}

	buf.WriteUInt8(0xF7)
	buf.WriteUInt16(0xBEEF)
	buf.WriteUInt32(0xDEADBEEF)
	buf.WriteCString([]byte("MyGame"))
	buf.WriteBlob([]byte{1, 2, 3})

	if buf.Size() != 1+2+4+7+3 {
		t.Fatalf("unexpected buffer size %d", buf.Size())
	}

	if v := buf.ReadUInt8(); v != 0xF7 {
		t.Fatalf("ReadUInt8 = %#x", v)
	}
	if v := buf.ReadUInt16(); v != 0xBEEF {
		t.Fatalf("ReadUInt16 = %#x", v)
	}
	if v := buf.ReadUInt32(); v != 0xDEADBEEF {
		t.Fatalf("ReadUInt32 = %#x", v)
	}

	s, err := buf.ReadCString()
	if err != nil {
		t.Fatal(err)
	}
	if string(s) != "MyGame" {
		t.Fatalf("ReadCString = %q", s)
	}

	if !bytes.Equal(buf.ReadBlob(3), []byte{1, 2, 3}) {
		t.Fatal("ReadBlob mismatch")
	}
	if buf.Size() != 0 {
		t.Fatalf("%d trailing bytes", buf.Size())
	}
}

func TestBufferLittleEndian(t *testing.T) {
	var buf = protocol.Buffer{}

	buf.WriteUInt16(6112)
	buf.WriteUInt32(42)

	want := []byte{0xE0, 0x17, 42, 0, 0, 0}
	if !bytes.Equal(buf.Bytes, want) {
		t.Fatalf("encoding = %x, want %x", buf.Bytes, want)
	}
}

func TestBufferCStringWithoutTerminator(t *testing.T) {
	var buf = protocol.Buffer{Bytes: []byte("unterminated")}

	if _, err := buf.ReadCString(); err != protocol.ErrNoStringTerminatorFound {
		t.Fatalf("err = %v, want ErrNoStringTerminatorFound", err)
	}
	if buf.Size() != 0 {
		t.Fatal("buffer not drained after missing terminator")
	}
}
