package client_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kaladum/simple-wc3/client"
	"github.com/Kaladum/simple-wc3/protocol/w3disc"
)

func lobbyResponse(name string) *w3disc.QueryForGamesResponse {
	pkt := &w3disc.QueryForGamesResponse{
		GameType:    w3disc.TheFrozenThrone,
		GameVersion: 30,
		GameID:      42,
		GameName:    name,
		Encoded:     []byte{0x01, 0x03, 0x49, 0x07},
		NumSlots:    12,
		TCPPort:     6112,
	}
	pkt.PacketSize = uint16(pkt.SerializedSize())

	return pkt
}

func TestRewriteResponse(t *testing.T) {
	const proxyPort = 54321

	data, err := client.RewriteResponse(lobbyResponse("MyGame"), proxyPort)
	require.NoError(t, err)

	var got w3disc.QueryForGamesResponse
	require.NoError(t, w3disc.Read(&got, data))

	assert.Equal(t, "[Simple-WC3] MyGame", got.GameName)
	assert.Equal(t, uint16(proxyPort), got.TCPPort)
	assert.Equal(t, int(got.PacketSize), len(data), "PacketSize must match the wire length")

	// Everything else passes through untouched.
	assert.Equal(t, uint32(42), got.GameID)
	assert.Equal(t, w3disc.TheFrozenThrone, got.GameType)
	assert.Equal(t, []byte{0x01, 0x03, 0x49, 0x07}, got.Encoded)
}

func TestRewriteResponseTruncatesLongNames(t *testing.T) {
	longName := strings.Repeat("x", w3disc.MaxGameNameLen)

	data, err := client.RewriteResponse(lobbyResponse(longName), 1)
	require.NoError(t, err)

	var got w3disc.QueryForGamesResponse
	require.NoError(t, w3disc.Read(&got, data))

	assert.Len(t, got.GameName, w3disc.MaxGameNameLen)
	assert.True(t, strings.HasPrefix(got.GameName, "[Simple-WC3] "))
	assert.Equal(t, int(got.PacketSize), len(data))
}

func TestRewriteResponseEmptyName(t *testing.T) {
	data, err := client.RewriteResponse(lobbyResponse(""), 9)
	require.NoError(t, err)

	var got w3disc.QueryForGamesResponse
	require.NoError(t, w3disc.Read(&got, data))

	assert.Equal(t, "[Simple-WC3] ", got.GameName)
	assert.Equal(t, int(got.PacketSize), len(data))
}
