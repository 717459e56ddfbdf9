// Package scanner polls the local WC3 instance for its lobby and turns the
// answers into a stream of lobby lifecycle events.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Kaladum/simple-wc3/config"
	"github.com/Kaladum/simple-wc3/protocol/w3disc"
)

// readBufferSize is the largest discovery datagram handled.
const readBufferSize = 1024

// Scanner drives the local WC3 instance with discovery queries on a
// connect-filtered UDP socket and publishes lobby lifecycle events.
//
// The socket is shared by two loops: the tick loop sends a query sweep
// every scan interval, the ingest loop receives responses. They meet in the
// lobby state, which holds the most recent QueryForGamesResponse (or nil
// when no lobby answered).
type Scanner struct {
	cfg  *config.Config
	conn *net.UDPConn
	feed *Feed

	mu    sync.Mutex
	state *w3disc.QueryForGamesResponse

	// lastSendOK tracks the success edge of query sends so that a closed
	// WC3 produces one message, not one per tick.
	lastSendOK *bool
}

// New binds an ephemeral UDP socket filtered to the local WC3 port.
func New(cfg *config.Config) (*Scanner, error) {
	raddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(cfg.GamePort)}

	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("bind scanner socket: %w", err)
	}

	return &Scanner{
		cfg:  cfg,
		conn: conn,
		feed: NewFeed(cfg.FeedCapacity),
	}, nil
}

// Subscribe returns a new subscription to the lobby event stream.
func (s *Scanner) Subscribe() *Subscription {
	return s.feed.Subscribe()
}

// Run executes the poll loop until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) error {
	go s.ingest()

	defer func() { _ = s.conn.Close() }()

	for {
		old := s.takeState()

		s.sendQueries()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.ScanInterval):
		}

		current := s.currentState()

		for _, pkt := range deriveEvents(old, current) {
			s.feed.Publish(pkt)
		}

		switch {
		case old == nil && current != nil:
			fmt.Printf("Discovered new game server: %s %s [%s]\n",
				current.GameName, current.GameType, config.FormatVersion(current.GameVersion))
		case old != nil && current == nil:
			fmt.Printf("Server closed: %s %s\n", old.GameName, old.GameType)
		}
	}
}

// ingest receives datagrams from the local WC3 instance and records lobby
// responses. It exits when the socket is closed.
func (s *Scanner) ingest() {
	buf := make([]byte, readBufferSize)

	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			// Reads on a connected UDP socket surface ICMP errors from
			// query sends; those are handled on the send path.
			continue
		}

		msg, ok := w3disc.Detect(buf[:n])
		switch {
		case !ok:
			slog.Debug("received unknown UDP packet", "bytes", n)
		case msg.Kind == w3disc.KindQueryForGamesResponse:
			s.setState(msg.Response)
		default:
			slog.Debug("received UDP packet", "kind", msg.Kind)
		}
	}
}

// sendQueries sends one QueryForGamesRequest per supported version and
// product. Failures are reported only when the success state flips.
func (s *Scanner) sendQueries() {
	ok := true

	for _, gameVersion := range s.cfg.Versions() {
		for _, gameType := range s.cfg.GameTypes() {
			request := &w3disc.QueryForGamesRequest{
				GameType:    gameType,
				GameVersion: gameVersion,
			}

			data, err := w3disc.Write(request)
			if err != nil {
				slog.Error("failed to serialize game query", "error", err)
				continue
			}

			if _, err := s.conn.Write(data); err != nil {
				if ok && (s.lastSendOK == nil || *s.lastSendOK) {
					fmt.Fprintf(os.Stderr, "Can't send game query to WC3. Is the game running? Error: %v\n", err)
				}

				ok = false
			}
		}
	}

	if ok && (s.lastSendOK == nil || !*s.lastSendOK) {
		fmt.Println("Successfully sent game query to WC3")
	}

	s.lastSendOK = &ok
}

// takeState returns the current lobby state and resets it to absent.
func (s *Scanner) takeState() *w3disc.QueryForGamesResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state
	s.state = nil

	return state
}

// currentState returns the current lobby state.
func (s *Scanner) currentState() *w3disc.QueryForGamesResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Scanner) setState(state *w3disc.QueryForGamesResponse) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// deriveEvents maps a lobby state transition to the events published for
// it, in order.
func deriveEvents(old, current *w3disc.QueryForGamesResponse) []w3disc.Packet {
	switch {
	case old == nil && current != nil:
		return []w3disc.Packet{
			&w3disc.NewServerHosted{
				GameID:      current.GameID,
				GameType:    current.GameType,
				GameVersion: current.GameVersion,
			},
			current,
		}
	case old != nil && current != nil:
		return []w3disc.Packet{current}
	case old != nil && current == nil:
		return []w3disc.Packet{&w3disc.ServerClosed{GameID: old.GameID}}
	default:
		return nil
	}
}
