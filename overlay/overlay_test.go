package overlay_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kaladum/simple-wc3/overlay"
)

const testALPN = "simple-wc3-test"

func bindPair(t *testing.T) (*overlay.Endpoint, *overlay.Endpoint, overlay.NodeAddr) {
	t.Helper()

	server, err := overlay.Bind("127.0.0.1:0", testALPN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })

	client, err := overlay.Bind("127.0.0.1:0", testALPN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	addr := overlay.NodeAddr{
		ID:   server.NodeID(),
		Addr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: server.Port()},
	}

	return server, client, addr
}

func TestNodeAddrRoundTrip(t *testing.T) {
	server, _, addr := bindPair(t)

	parsed, err := overlay.ParseNodeAddr(addr.String())
	require.NoError(t, err)
	assert.Equal(t, server.NodeID(), parsed.ID)
	assert.Equal(t, addr.Addr.String(), parsed.Addr.String())
}

func TestParseNodeAddrRejectsGarbage(t *testing.T) {
	for _, in := range []string{
		"",
		"nonsense",
		"abcd@127.0.0.1:1", // key too short
		"zz@",
	} {
		_, err := overlay.ParseNodeAddr(in)
		assert.Error(t, err, in)
	}
}

func TestConnectAndStreams(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, client, addr := bindPair(t)

	accepted := make(chan *overlay.Conn, 1)
	go func() {
		conn, err := server.Accept(ctx)
		if err == nil {
			accepted <- conn
		}
	}()

	out, err := client.Connect(ctx, addr)
	require.NoError(t, err)

	in := <-accepted

	// Both ends know the peer key.
	assert.Equal(t, client.NodeID(), in.RemoteID())
	assert.Equal(t, server.NodeID(), out.RemoteID())

	// Unidirectional stream, server to client.
	uni, err := in.OpenUniStream(ctx)
	require.NoError(t, err)

	_, err = uni.Write([]byte("lobby event"))
	require.NoError(t, err)
	require.NoError(t, uni.Close())

	uniIn, err := out.AcceptUniStream(ctx)
	require.NoError(t, err)

	data, err := io.ReadAll(uniIn)
	require.NoError(t, err)
	assert.Equal(t, "lobby event", string(data))

	// Bidirectional stream, client to server.
	bi, err := out.OpenStream(ctx)
	require.NoError(t, err)

	_, err = bi.Write([]byte("PING"))
	require.NoError(t, err)

	biIn, err := in.AcceptStream(ctx)
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(biIn, buf)
	require.NoError(t, err)
	assert.Equal(t, "PING", string(buf))

	_, err = biIn.Write([]byte("PONG"))
	require.NoError(t, err)

	_, err = io.ReadFull(bi, buf)
	require.NoError(t, err)
	assert.Equal(t, "PONG", string(buf))

	// Closing one side trips the other side's closed-future.
	require.NoError(t, out.Close())

	select {
	case <-in.Closed():
	case <-time.After(5 * time.Second):
		t.Fatal("server connection not closed after client close")
	}
}

func TestConnectRejectsWrongKey(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, client, addr := bindPair(t)

	go func() {
		// The handshake fails, Accept keeps waiting.
		conn, err := server.Accept(ctx)
		if err == nil {
			_ = conn.Close()
		}
	}()

	addr.ID = client.NodeID() // expect the wrong key

	_, err := client.Connect(ctx, addr)
	assert.Error(t, err)
}

func TestConnectRejectsALPNMismatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, _, addr := bindPair(t)

	other, err := overlay.Bind("127.0.0.1:0", "simple-wc3-older")
	require.NoError(t, err)

	defer func() { _ = other.Close() }()

	go func() {
		conn, err := server.Accept(ctx)
		if err == nil {
			_ = conn.Close()
		}
	}()

	_, err = other.Connect(ctx, addr)
	assert.Error(t, err)
}
