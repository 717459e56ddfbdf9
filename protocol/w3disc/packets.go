// Package w3disc implements the WC3 LAN discovery datagrams exchanged on
// UDP port 6112. Warcraft III announces and finds local lobbies with these
// packets; the tunnel reads, synthesizes, and rewrites them.
package w3disc

import (
	"errors"
	"fmt"

	"github.com/Kaladum/simple-wc3/protocol"
)

// ProtocolSig is the leading byte of every discovery datagram.
const ProtocolSig = 0xF7

// Packet IDs (second byte of every datagram)
const (
	PidQueryForGamesRequest   = 0x2F
	PidQueryForGamesResponse  = 0x30
	PidNewServerHosted        = 0x31
	PidNumberOfPlayersChanged = 0x32
	PidServerClosed           = 0x33
)

// MaxGameNameLen is the maximum number of content bytes in a game name,
// excluding the null terminator.
const MaxGameNameLen = 31

// queryForGamesRequestSize is the fixed on-wire size of a request.
const queryForGamesRequestSize = 16

// Errors
var (
	ErrInvalidPacketSize = errors.New("w3disc: invalid packet size")
	ErrInvalidPacket     = errors.New("w3disc: not a valid discovery packet")
	ErrUnknownGameType   = errors.New("w3disc: unknown game type magic")
)

// Packet is the interface implemented by all discovery datagrams.
type Packet interface {
	Serialize(buf *protocol.Buffer) error
	Deserialize(buf *protocol.Buffer) error
}

// Write serializes pkt into a fresh byte slice.
func Write(pkt Packet) ([]byte, error) {
	var buf = protocol.Buffer{Bytes: make([]byte, 0, 128)}
	if err := pkt.Serialize(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes, nil
}

// Read parses data into pkt. The whole input must be consumed.
func Read(pkt Packet, data []byte) error {
	var buf = protocol.Buffer{Bytes: data}
	if err := pkt.Deserialize(&buf); err != nil {
		return err
	}
	if buf.Size() > 0 {
		return ErrInvalidPacketSize
	}

	return nil
}

// GameType identifies the WC3 product by its 4-byte on-wire magic. The
// magic is the product code in reverse byte order ("WAR3" and "W3XP").
type GameType [4]byte

// Known game types
var (
	Warcraft3       = GameType{'3', 'R', 'A', 'W'}
	TheFrozenThrone = GameType{'P', 'X', '3', 'W'}
)

// Known reports whether t is one of the recognized product magics.
func (t GameType) Known() bool {
	return t == Warcraft3 || t == TheFrozenThrone
}

func (t GameType) String() string {
	switch t {
	case Warcraft3:
		return "Warcraft III"
	case TheFrozenThrone:
		return "The Frozen Throne"
	default:
		return fmt.Sprintf("unknown(%x)", t[:])
	}
}

// Serialize encodes the game type magic into its binary form.
func (t GameType) Serialize(buf *protocol.Buffer) error {
	if !t.Known() {
		return ErrUnknownGameType
	}

	buf.WriteBlob(t[:])

	return nil
}

// Deserialize decodes the game type magic from its binary form.
func (t *GameType) Deserialize(buf *protocol.Buffer) error {
	if buf.Size() < len(t) {
		return ErrInvalidPacketSize
	}

	copy(t[:], buf.ReadBlob(len(t)))
	if !t.Known() {
		return ErrUnknownGameType
	}

	return nil
}

// QueryForGamesRequest packet [0x2F]
//
// Sent to a WC3 instance to ask for the lobby it is hosting. The instance
// answers with a QueryForGamesResponse when a lobby of the given product
// and version exists.
//
//	 Size | Name
//	------+---------------------------
//	    1 | ProtocolSig (0xF7)
//	    1 | PacketID (0x2F)
//	    2 | PacketSize (always 16)
//	    4 | GameType magic
//	    4 | GameVersion
//	    4 | GameID (always 0)
type QueryForGamesRequest struct {
	GameType    GameType
	GameVersion uint32
}

// Serialize encodes the struct into its binary form.
func (pkt *QueryForGamesRequest) Serialize(buf *protocol.Buffer) error {
	buf.WriteUInt8(ProtocolSig)
	buf.WriteUInt8(PidQueryForGamesRequest)
	buf.WriteUInt16(queryForGamesRequestSize)
	if err := pkt.GameType.Serialize(buf); err != nil {
		return err
	}
	buf.WriteUInt32(pkt.GameVersion)
	buf.WriteUInt32(0)

	return nil
}

// Deserialize decodes the binary form into the struct.
func (pkt *QueryForGamesRequest) Deserialize(buf *protocol.Buffer) error {
	if buf.Size() < queryForGamesRequestSize {
		return ErrInvalidPacketSize
	}
	if buf.ReadUInt8() != ProtocolSig || buf.ReadUInt8() != PidQueryForGamesRequest {
		return ErrInvalidPacket
	}
	if buf.ReadUInt16() != queryForGamesRequestSize {
		return ErrInvalidPacket
	}
	if err := pkt.GameType.Deserialize(buf); err != nil {
		return err
	}
	pkt.GameVersion = buf.ReadUInt32()
	if buf.ReadUInt32() != 0 {
		return ErrInvalidPacket
	}

	return nil
}

// QueryForGamesResponse packet [0x30]
//
// Sent by a hosting WC3 instance in answer to a request. Describes the
// lobby, including the TCP port players should join on. Field layout
// follows the structure documented in the WC3LanGame project; the doc in
// that repo is wrong in some places, the code is not.
//
//	 Size | Name
//	------+---------------------------
//	    1 | ProtocolSig (0xF7)
//	    1 | PacketID (0x30)
//	    2 | PacketSize (total datagram length)
//	    4 | GameType magic
//	    4 | GameVersion
//	    4 | GameID
//	    4 | Unknown2
//	  var | GameName (null terminated, max 31 content bytes)
//	    1 | Unknown3
//	  var | Encoded (null terminated obfuscated blob)
//	    4 | NumSlots
//	    4 | GameFlags
//	    4 | NumPlayers
//	    4 | NumPlayerSlots
//	    4 | GameAge
//	    2 | TCPPort
type QueryForGamesResponse struct {
	PacketSize     uint16
	GameType       GameType
	GameVersion    uint32
	GameID         uint32
	Unknown2       uint32
	GameName       string
	Unknown3       uint8
	Encoded        []byte
	NumSlots       uint32
	GameFlags      uint32
	NumPlayers     uint32
	NumPlayerSlots uint32
	GameAge        uint32
	TCPPort        uint16
}

// responseHeadSize is the fixed part before GameName, responseTailSize the
// fixed part after Encoded.
const (
	responseHeadSize = 20
	responseTailSize = 22
)

// SerializedSize returns the on-wire size of the packet in its current
// state. PacketSize is expected to match it on a well-formed packet.
func (pkt *QueryForGamesResponse) SerializedSize() int {
	return responseHeadSize + len(pkt.GameName) + 1 + 1 + len(pkt.Encoded) + 1 + responseTailSize
}

// Serialize encodes the struct into its binary form. PacketSize is written
// as stored; callers mutating variable-length fields must update it.
func (pkt *QueryForGamesResponse) Serialize(buf *protocol.Buffer) error {
	if len(pkt.GameName) > MaxGameNameLen {
		return ErrInvalidPacketSize
	}

	buf.WriteUInt8(ProtocolSig)
	buf.WriteUInt8(PidQueryForGamesResponse)
	buf.WriteUInt16(pkt.PacketSize)
	if err := pkt.GameType.Serialize(buf); err != nil {
		return err
	}
	buf.WriteUInt32(pkt.GameVersion)
	buf.WriteUInt32(pkt.GameID)
	buf.WriteUInt32(pkt.Unknown2)
	buf.WriteCString([]byte(pkt.GameName))
	buf.WriteUInt8(pkt.Unknown3)
	buf.WriteCString(pkt.Encoded)
	buf.WriteUInt32(pkt.NumSlots)
	buf.WriteUInt32(pkt.GameFlags)
	buf.WriteUInt32(pkt.NumPlayers)
	buf.WriteUInt32(pkt.NumPlayerSlots)
	buf.WriteUInt32(pkt.GameAge)
	buf.WriteUInt16(pkt.TCPPort)

	return nil
}

// Deserialize decodes the binary form into the struct.
func (pkt *QueryForGamesResponse) Deserialize(buf *protocol.Buffer) error {
	if buf.Size() < responseHeadSize {
		return ErrInvalidPacketSize
	}
	if buf.ReadUInt8() != ProtocolSig || buf.ReadUInt8() != PidQueryForGamesResponse {
		return ErrInvalidPacket
	}
	pkt.PacketSize = buf.ReadUInt16()
	if err := pkt.GameType.Deserialize(buf); err != nil {
		return err
	}
	pkt.GameVersion = buf.ReadUInt32()
	pkt.GameID = buf.ReadUInt32()
	pkt.Unknown2 = buf.ReadUInt32()

	name, err := buf.ReadCString()
	if err != nil {
		return err
	}
	if len(name) > MaxGameNameLen {
		return ErrInvalidPacket
	}
	pkt.GameName = string(name)

	if buf.Size() < 1 {
		return ErrInvalidPacketSize
	}
	pkt.Unknown3 = buf.ReadUInt8()

	encoded, err := buf.ReadCString()
	if err != nil {
		return err
	}
	// Copy out of the shared read buffer, the blob outlives the datagram.
	pkt.Encoded = append([]byte(nil), encoded...)

	if buf.Size() < responseTailSize {
		return ErrInvalidPacketSize
	}
	pkt.NumSlots = buf.ReadUInt32()
	pkt.GameFlags = buf.ReadUInt32()
	pkt.NumPlayers = buf.ReadUInt32()
	pkt.NumPlayerSlots = buf.ReadUInt32()
	pkt.GameAge = buf.ReadUInt32()
	pkt.TCPPort = buf.ReadUInt16()

	return nil
}

// NewServerHosted packet [0x31]
//
// Announces a freshly created lobby.
//
//	 Size | Name
//	------+---------------------------
//	    1 | ProtocolSig (0xF7)
//	    1 | PacketID (0x31)
//	    4 | GameID
//	    4 | GameType magic
//	    4 | GameVersion
type NewServerHosted struct {
	GameID      uint32
	GameType    GameType
	GameVersion uint32
}

// newServerHostedSize is the fixed on-wire size of the packet.
const newServerHostedSize = 14

// Serialize encodes the struct into its binary form.
func (pkt *NewServerHosted) Serialize(buf *protocol.Buffer) error {
	buf.WriteUInt8(ProtocolSig)
	buf.WriteUInt8(PidNewServerHosted)
	buf.WriteUInt32(pkt.GameID)
	if err := pkt.GameType.Serialize(buf); err != nil {
		return err
	}
	buf.WriteUInt32(pkt.GameVersion)

	return nil
}

// Deserialize decodes the binary form into the struct.
func (pkt *NewServerHosted) Deserialize(buf *protocol.Buffer) error {
	if buf.Size() < newServerHostedSize {
		return ErrInvalidPacketSize
	}
	if buf.ReadUInt8() != ProtocolSig || buf.ReadUInt8() != PidNewServerHosted {
		return ErrInvalidPacket
	}
	pkt.GameID = buf.ReadUInt32()
	if err := pkt.GameType.Deserialize(buf); err != nil {
		return err
	}
	pkt.GameVersion = buf.ReadUInt32()

	return nil
}

// ServerClosed packet [0x33]
//
// Announces that a lobby is gone.
//
//	 Size | Name
//	------+---------------------------
//	    1 | ProtocolSig (0xF7)
//	    1 | PacketID (0x33)
//	    4 | GameID
type ServerClosed struct {
	GameID uint32
}

// serverClosedSize is the fixed on-wire size of the packet.
const serverClosedSize = 6

// Serialize encodes the struct into its binary form.
func (pkt *ServerClosed) Serialize(buf *protocol.Buffer) error {
	buf.WriteUInt8(ProtocolSig)
	buf.WriteUInt8(PidServerClosed)
	buf.WriteUInt32(pkt.GameID)

	return nil
}

// Deserialize decodes the binary form into the struct.
func (pkt *ServerClosed) Deserialize(buf *protocol.Buffer) error {
	if buf.Size() < serverClosedSize {
		return ErrInvalidPacketSize
	}
	if buf.ReadUInt8() != ProtocolSig || buf.ReadUInt8() != PidServerClosed {
		return ErrInvalidPacket
	}
	pkt.GameID = buf.ReadUInt32()

	return nil
}
