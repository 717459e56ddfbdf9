package w3disc_test

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/Kaladum/simple-wc3/protocol"
	"github.com/Kaladum/simple-wc3/protocol/w3disc"
)

// testResponse builds a well-formed lobby response whose PacketSize matches
// its serialized length.
func testResponse(name string) *w3disc.QueryForGamesResponse {
	pkt := &w3disc.QueryForGamesResponse{
		GameType:       w3disc.TheFrozenThrone,
		GameVersion:    30,
		GameID:         42,
		Unknown2:       1,
		GameName:       name,
		Unknown3:       0,
		Encoded:        []byte{0x01, 0x03, 0x49, 0x07, 0x01, 0x01, 0x77, 0x01, 0x03},
		NumSlots:       12,
		GameFlags:      0x800000,
		NumPlayers:     1,
		NumPlayerSlots: 12,
		GameAge:        64,
		TCPPort:        6112,
	}
	pkt.PacketSize = uint16(pkt.SerializedSize())

	return pkt
}

func TestPacketRoundTrips(t *testing.T) {
	var types []w3disc.Packet

	for v := uint32(25); v <= 31; v++ {
		for _, gt := range []w3disc.GameType{w3disc.Warcraft3, w3disc.TheFrozenThrone} {
			types = append(types, &w3disc.QueryForGamesRequest{GameType: gt, GameVersion: v})
		}
	}

	types = append(types,
		testResponse("MyGame"),
		testResponse(""),
		&w3disc.NewServerHosted{GameID: 42, GameType: w3disc.TheFrozenThrone, GameVersion: 30},
		&w3disc.NewServerHosted{GameID: 1, GameType: w3disc.Warcraft3, GameVersion: 25},
		&w3disc.ServerClosed{GameID: 42},
		&w3disc.ServerClosed{},
	)

	for _, pkt := range types {
		data, err := w3disc.Write(pkt)
		if err != nil {
			t.Log(reflect.TypeOf(pkt))
			t.Fatal(err)
		}

		pkt2 := reflect.New(reflect.TypeOf(pkt).Elem()).Interface().(w3disc.Packet)
		if err := w3disc.Read(pkt2, data); err != nil {
			t.Log(reflect.TypeOf(pkt))
			t.Fatal(err)
		}

		if !reflect.DeepEqual(pkt, pkt2) {
			t.Logf("I: %+v", pkt)
			t.Logf("O: %+v", pkt2)
			t.Errorf("round trip mismatch for %v", reflect.TypeOf(pkt))
		}

		if err := pkt2.Deserialize(&protocol.Buffer{}); err != w3disc.ErrInvalidPacketSize {
			t.Fatalf("ErrInvalidPacketSize expected for empty input, got %v", err)
		}
	}
}

func TestResponsePacketSizeMatchesWire(t *testing.T) {
	pkt := testResponse("MyGame")

	data, err := w3disc.Write(pkt)
	if err != nil {
		t.Fatal(err)
	}

	if len(data) != int(pkt.PacketSize) {
		t.Fatalf("wire length %d != PacketSize %d", len(data), pkt.PacketSize)
	}
	if len(data) != pkt.SerializedSize() {
		t.Fatalf("wire length %d != SerializedSize %d", len(data), pkt.SerializedSize())
	}
}

func TestGameTypeMagic(t *testing.T) {
	tests := []struct {
		gameType w3disc.GameType
		want     []byte
	}{
		{w3disc.Warcraft3, []byte{0x33, 0x52, 0x41, 0x57}},
		{w3disc.TheFrozenThrone, []byte{0x50, 0x58, 0x33, 0x57}},
	}

	for _, tt := range tests {
		var buf protocol.Buffer
		if err := tt.gameType.Serialize(&buf); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(buf.Bytes, tt.want) {
			t.Errorf("%s magic = %x, want %x", tt.gameType, buf.Bytes, tt.want)
		}
	}

	bad := w3disc.GameType{'X', 'X', 'X', 'X'}

	var buf protocol.Buffer
	if err := bad.Serialize(&buf); err != w3disc.ErrUnknownGameType {
		t.Fatalf("err = %v, want ErrUnknownGameType", err)
	}
}

func TestDetect(t *testing.T) {
	response, err := w3disc.Write(testResponse("MyGame"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
		kind w3disc.Kind
		ok   bool
	}{
		{"empty", nil, 0, false},
		{"one byte", []byte{0xF7}, 0, false},
		{"wrong signature", []byte{0xF8, 0x30}, 0, false},
		{"unknown opcode", []byte{0xF7, 0x2E}, 0, false},
		{"unknown opcode high", []byte{0xF7, 0x34}, 0, false},
		{"request", []byte{0xF7, 0x2F}, w3disc.KindQueryForGamesRequest, true},
		{"new server", []byte{0xF7, 0x31}, w3disc.KindNewServerHosted, true},
		{"players changed", []byte{0xF7, 0x32}, w3disc.KindNumberOfPlayersChanged, true},
		{"server closed", []byte{0xF7, 0x33}, w3disc.KindServerClosed, true},
		{"response", response, w3disc.KindQueryForGamesResponse, true},
		{"truncated response", response[:20], 0, false},
	}

	for _, tt := range tests {
		msg, ok := w3disc.Detect(tt.data)
		if ok != tt.ok {
			t.Errorf("%s: ok = %v, want %v", tt.name, ok, tt.ok)

			continue
		}
		if !ok {
			continue
		}
		if msg.Kind != tt.kind {
			t.Errorf("%s: kind = %v, want %v", tt.name, msg.Kind, tt.kind)
		}
	}
}

func TestDetectParsesResponse(t *testing.T) {
	want := testResponse("MyGame")

	data, err := w3disc.Write(want)
	if err != nil {
		t.Fatal(err)
	}

	msg, ok := w3disc.Detect(data)
	if !ok || msg.Response == nil {
		t.Fatal("response not detected")
	}
	if !reflect.DeepEqual(msg.Response, want) {
		t.Fatalf("parsed response %+v != %+v", msg.Response, want)
	}
}

func TestDecodeEncodedString(t *testing.T) {
	input := []byte{0xAA, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x55}

	// Bits 1,3,5,7 of the 0xAA mask are set, so odd offsets pass through
	// and even offsets are decremented. Offset 8 starts the next mask and
	// emits nothing.
	want := []byte{0x01, 0x00, 0x01, 0x00, 0x01, 0x00, 0x01}

	got := w3disc.DecodeEncodedString(input)
	if !bytes.Equal(got, want) {
		t.Fatalf("decoded = %x, want %x", got, want)
	}

	if got := w3disc.DecodeEncodedString(nil); len(got) != 0 {
		t.Fatalf("decoding nothing produced %x", got)
	}
}
