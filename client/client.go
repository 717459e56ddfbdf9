// Package client implements the joining side of the tunnel: it receives
// the host's lobby events, rebuilds them as a synthetic local lobby, and
// proxies the game connections WC3 makes to it back to the host.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/Kaladum/simple-wc3/config"
	"github.com/Kaladum/simple-wc3/overlay"
	"github.com/Kaladum/simple-wc3/protocol/w3disc"
	"github.com/Kaladum/simple-wc3/version"
)

// readBufferSize is the largest discovery datagram handled.
const readBufferSize = 1024

// Client is one connection to a hosting peer.
type Client struct {
	cfg  *config.Config
	ep   *overlay.Endpoint
	conn *overlay.Conn
}

// Connect binds a local overlay endpoint and connects to the host at addr.
func Connect(ctx context.Context, cfg *config.Config, addr overlay.NodeAddr) (*Client, error) {
	ep, err := overlay.Bind("0.0.0.0:0", version.ALPN())
	if err != nil {
		return nil, fmt.Errorf("bind overlay endpoint: %w", err)
	}

	conn, err := ep.Connect(ctx, addr)
	if err != nil {
		_ = ep.Close()

		return nil, err
	}

	return &Client{cfg: cfg, ep: ep, conn: conn}, nil
}

// Run serves the tunnel until the connection to the host closes or ctx is
// cancelled.
func (c *Client) Run(ctx context.Context) error {
	defer func() { _ = c.ep.Close() }()

	ln, err := net.Listen("tcp4", "0.0.0.0:0")
	if err != nil {
		return fmt.Errorf("bind game proxy listener: %w", err)
	}

	defer func() { _ = ln.Close() }()

	proxyPort := uint16(ln.Addr().(*net.TCPAddr).Port)
	slog.Debug("game proxy listening", "port", proxyPort)

	go c.proxyLoop(ctx, ln)
	go c.rewriteLoop(ctx, proxyPort)

	select {
	case <-ctx.Done():
		_ = c.conn.Close()

		return ctx.Err()
	case <-c.conn.Closed():
		fmt.Println("Connection to host closed")

		return nil
	}
}

// proxyLoop accepts TCP connections from the local WC3 instance and
// splices each onto a fresh bidirectional stream to the host.
func (c *Client) proxyLoop(ctx context.Context, ln net.Listener) {
	for {
		tcp, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Error("failed to accept game connection", "error", err)
			}

			return
		}

		go c.splice(ctx, tcp)
	}
}

func (c *Client) splice(ctx context.Context, tcp net.Conn) {
	defer func() { _ = tcp.Close() }()

	stream, err := c.conn.OpenStream(ctx)
	if err != nil {
		if !overlay.IsClosed(err) && ctx.Err() == nil {
			slog.Error("failed to open game stream to host", "error", err)
		}

		return
	}

	slog.Debug("tunneling game connection", "local", tcp.RemoteAddr())

	if err := overlay.Splice(stream, tcp); err != nil {
		slog.Error("game stream failed", "error", err)
	}
}

// rewriteLoop receives lobby events from the host, rewrites lobby
// responses to point at the local game proxy, and replays them to the
// local WC3 instance over UDP.
func (c *Client) rewriteLoop(ctx context.Context, proxyPort uint16) {
	stream, err := c.conn.AcceptUniStream(ctx)
	if err != nil {
		if !overlay.IsClosed(err) && ctx.Err() == nil {
			slog.Error("failed to accept lobby event stream", "error", err)
		}

		return
	}

	raddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(c.cfg.GamePort)}

	udp, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		slog.Error("failed to bind local UDP socket", "error", err)

		return
	}

	defer func() { _ = udp.Close() }()

	buf := make([]byte, readBufferSize)

	for {
		n, err := stream.Read(buf)
		if n > 0 {
			c.forward(udp, buf[:n], proxyPort)
		}
		if err != nil {
			if err != io.EOF && !overlay.IsClosed(err) && ctx.Err() == nil {
				slog.Error("lobby event stream failed", "error", err)
			}

			return
		}
	}
}

// forward classifies one event frame and replays it to the local WC3
// instance. Send failures are ignored: WC3 not listening is the normal
// state before the player opens the LAN screen.
func (c *Client) forward(udp *net.UDPConn, data []byte, proxyPort uint16) {
	msg, ok := w3disc.Detect(data)
	if !ok {
		slog.Debug("dropping unclassifiable event frame", "bytes", len(data))

		return
	}

	switch msg.Kind {
	case w3disc.KindQueryForGamesResponse:
		rewritten, err := RewriteResponse(msg.Response, proxyPort)
		if err != nil {
			slog.Error("failed to rewrite lobby response", "error", err)

			return
		}

		_, _ = udp.Write(rewritten)
	case w3disc.KindNewServerHosted:
		slog.Debug("forwarding event", "kind", msg.Kind)
		_, _ = udp.Write(data)
	case w3disc.KindServerClosed:
		fmt.Println("The game lobby is no longer available")
		_, _ = udp.Write(data)
	default:
		slog.Debug("dropping event", "kind", msg.Kind)
	}
}

// RewriteResponse retargets a lobby response at the local game proxy: the
// TCP port becomes proxyPort and the game name gains the application
// prefix, capped at the protocol's name length. PacketSize is adjusted for
// the name change so the serialized length stays consistent.
func RewriteResponse(r *w3disc.QueryForGamesResponse, proxyPort uint16) ([]byte, error) {
	oldLen := len(r.GameName)

	name := "[" + version.AppName + "] " + r.GameName
	if len(name) > w3disc.MaxGameNameLen {
		name = name[:w3disc.MaxGameNameLen]
	}

	r.GameName = name
	r.PacketSize = r.PacketSize - uint16(oldLen) + uint16(len(name))
	r.TCPPort = proxyPort

	return w3disc.Write(r)
}
