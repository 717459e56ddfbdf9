package host

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/quic-go/quic-go"

	"github.com/Kaladum/simple-wc3/config"
	"github.com/Kaladum/simple-wc3/overlay"
	"github.com/Kaladum/simple-wc3/protocol/w3disc"
	"github.com/Kaladum/simple-wc3/scanner"
)

// session serves one connected client: it pushes the lobby event stream on
// a unidirectional stream and forwards every bidirectional stream the
// client opens to the local game's TCP port.
type session struct {
	cfg  *config.Config
	conn *overlay.Conn
	sc   *scanner.Scanner
}

func newSession(cfg *config.Config, conn *overlay.Conn, sc *scanner.Scanner) *session {
	return &session{cfg: cfg, conn: conn, sc: sc}
}

func (s *session) run(ctx context.Context) {
	peer := s.conn.RemoteID()
	slog.Info("client connected", "peer", peer.Short(), "addr", s.conn.RemoteAddr())

	go s.pushEvents(ctx)
	go s.forwardStreams(ctx)

	select {
	case <-s.conn.Closed():
	case <-ctx.Done():
		_ = s.conn.Close()
	}

	slog.Info("client disconnected", "peer", peer.Short())
}

// pushEvents streams lobby lifecycle events to the client. Events a lagging
// client misses are dropped by the feed; the next scan tick republishes the
// lobby, so the stream stays correct.
func (s *session) pushEvents(ctx context.Context) {
	stream, err := s.conn.OpenUniStream(ctx)
	if err != nil {
		if !overlay.IsClosed(err) && ctx.Err() == nil {
			slog.Error("failed to open lobby event stream", "peer", s.conn.RemoteID().Short(), "error", err)
		}

		return
	}

	sub := s.sc.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.conn.Closed():
			return
		case pkt, ok := <-sub.Events():
			if !ok {
				return
			}

			data, err := w3disc.Write(pkt)
			if err != nil {
				slog.Error("failed to serialize lobby event", "error", err)

				continue
			}

			if _, err := stream.Write(data); err != nil {
				if overlay.IsClosed(err) {
					return
				}

				slog.Error("failed to push lobby event", "peer", s.conn.RemoteID().Short(), "error", err)
			}
		}
	}
}

// forwardStreams accepts game streams from the client and splices each to
// a fresh TCP connection to the local game. A failing stream is dropped
// without affecting the session.
func (s *session) forwardStreams(ctx context.Context) {
	for {
		stream, err := s.conn.AcceptStream(ctx)
		if err != nil {
			if ctx.Err() != nil || overlay.IsClosed(err) {
				return
			}

			slog.Error("failed to accept game stream", "peer", s.conn.RemoteID().Short(), "error", err)

			continue
		}

		go s.splice(ctx, stream)
	}
}

func (s *session) splice(ctx context.Context, stream quic.Stream) {
	peer := s.conn.RemoteID()

	var d net.Dialer

	tcp, err := d.DialContext(ctx, "tcp4", fmt.Sprintf("127.0.0.1:%d", s.cfg.GamePort))
	if err != nil {
		slog.Error("can't reach the local game", "peer", peer.Short(), "error", err)
		stream.CancelRead(0)
		_ = stream.Close()

		return
	}

	defer func() { _ = tcp.Close() }()

	slog.Debug("forwarding game stream", "peer", peer.Short())

	if err := overlay.Splice(stream, tcp); err != nil {
		slog.Error("game stream failed", "peer", peer.Short(), "error", err)
	}
}
