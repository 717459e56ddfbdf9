// Package host implements the hosting side of the tunnel: it scans the
// local WC3 instance for its lobby and serves the lobby stream and game
// traffic to any number of remote clients.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/Kaladum/simple-wc3/config"
	"github.com/Kaladum/simple-wc3/overlay"
	"github.com/Kaladum/simple-wc3/scanner"
	"github.com/Kaladum/simple-wc3/version"
)

// Host accepts overlay connections and serves one client session per
// connection.
type Host struct {
	cfg *config.Config
	ep  *overlay.Endpoint
	sc  *scanner.Scanner
}

// New binds the overlay endpoint and the scanner socket.
func New(cfg *config.Config) (*Host, error) {
	ep, err := overlay.Bind(cfg.ListenAddr, version.ALPN())
	if err != nil {
		return nil, fmt.Errorf("bind overlay endpoint: %w", err)
	}

	sc, err := scanner.New(cfg)
	if err != nil {
		_ = ep.Close()

		return nil, err
	}

	return &Host{cfg: cfg, ep: ep, sc: sc}, nil
}

// Addr returns the address clients connect to.
func (h *Host) Addr() overlay.NodeAddr {
	return overlay.NodeAddr{
		ID:   h.ep.NodeID(),
		Addr: &net.UDPAddr{IP: h.advertiseIP(), Port: h.ep.Port()},
	}
}

// Run starts the scanner and serves inbound connections until ctx is
// cancelled.
func (h *Host) Run(ctx context.Context) error {
	defer func() { _ = h.ep.Close() }()

	go func() { _ = h.sc.Run(ctx) }()
	go h.acceptLoop(ctx)

	<-ctx.Done()

	return nil
}

// acceptLoop hands every inbound connection to its own session.
func (h *Host) acceptLoop(ctx context.Context) {
	for {
		conn, err := h.ep.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || overlay.IsClosed(err) {
				return
			}

			slog.Error("failed to accept overlay connection", "error", err)

			continue
		}

		go newSession(h.cfg, conn, h.sc).run(ctx)
	}
}

// advertiseIP picks the address printed for clients to dial: the
// configured host (an IP or a resolvable name), else the first non-loopback
// IPv4 on any interface, else loopback.
func (h *Host) advertiseIP() net.IP {
	if h.cfg.AdvertiseHost != "" {
		if ipAddr, err := net.ResolveIPAddr("ip", h.cfg.AdvertiseHost); err == nil {
			return ipAddr.IP
		}
	}

	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4
			}
		}
	}

	return net.IPv4(127, 0, 0, 1)
}
