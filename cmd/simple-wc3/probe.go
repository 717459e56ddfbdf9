//nolint:forbidigo // Debug tool prints with fmt
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"time"

	"github.com/nielsAD/gowarcraft3/network"
	"github.com/nielsAD/gowarcraft3/protocol"
	"github.com/nielsAD/gowarcraft3/protocol/w3gs"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/Kaladum/simple-wc3/config"
)

var errNoHosts = errors.New("at least one host required")

// newProbeCommand builds the probe diagnostic: it asks hosts directly
// whether WC3 is answering LAN queries, decoding the full lobby details
// (map, host name, slots) that the tunnel itself treats as opaque.
func newProbeCommand() *ffcli.Command {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	timeout := fs.Duration("timeout", 5*time.Second, "Response timeout")
	versionStr := fs.String("version", "", "Probe a single version (e.g. 26 or 1.26) instead of the configured range")

	return &ffcli.Command{
		Name:       "probe",
		ShortUsage: "simple-wc3 probe [flags] <host> [host...]",
		ShortHelp:  "Probe hosts for WC3 games",
		LongHelp: `Send SearchGame queries to one or more hosts and display any games found.
Both products (Reign of Chaos and The Frozen Throne) and every version in
the configured range are queried unless -version narrows it down.

Examples:
  simple-wc3 probe 127.0.0.1
  simple-wc3 probe -version 1.28 192.168.1.10 192.168.1.11`,
		FlagSet: fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errNoHosts
			}

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			versions := cfg.Versions()
			if *versionStr != "" {
				v, err := config.ParseVersion(*versionStr)
				if err != nil {
					return err
				}
				versions = []uint32{v}
			}

			return probeHosts(ctx, args, int(cfg.GamePort), versions, *timeout)
		},
	}
}

func probeHosts(ctx context.Context, hosts []string, port int, versions []uint32, timeout time.Duration) error {
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return fmt.Errorf("create socket: %w", err)
	}

	defer func() { _ = conn.Close() }()

	var w3gsConn network.W3GSPacketConn
	w3gsConn.SetConn(conn, w3gs.NewFactoryCache(w3gs.DefaultFactory), w3gs.Encoding{})

	for _, h := range hosts {
		addr, err := resolveHost(ctx, h, port)
		if err != nil {
			fmt.Printf("Skipping %s: %v\n", h, err)

			continue
		}

		fmt.Printf("Probing %s...\n", addr)

		for _, v := range versions {
			for _, product := range []protocol.DWordString{w3gs.ProductROC, w3gs.ProductTFT} {
				pkt := &w3gs.SearchGame{
					GameVersion: w3gs.GameVersion{Product: product, Version: v},
				}
				if _, err := w3gsConn.Send(addr, pkt); err != nil {
					fmt.Printf("  send failed: %v\n", err)
				}
			}
		}
	}

	return receiveResponses(conn, timeout)
}

func resolveHost(ctx context.Context, host string, port int) (*net.UDPAddr, error) {
	if ip := net.ParseIP(host); ip != nil {
		return &net.UDPAddr{IP: ip, Port: port}, nil
	}

	ips, err := new(net.Resolver).LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}

	for _, ip := range ips {
		if ip4 := ip.IP.To4(); ip4 != nil {
			return &net.UDPAddr{IP: ip4, Port: port}, nil
		}
	}

	return nil, fmt.Errorf("no IPv4 address for %s", host)
}

func receiveResponses(conn *net.UDPConn, timeout time.Duration) error {
	fmt.Printf("\nWaiting for responses (timeout: %s)...\n\n", timeout)

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	found := 0
	buf := make([]byte, 4096)

	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break
			}

			return fmt.Errorf("read: %w", err)
		}

		pkt, _, err := w3gs.Deserialize(buf[:n], w3gs.Encoding{})
		if err != nil {
			fmt.Printf("Undecodable packet from %s (%d bytes)\n", from, n)

			continue
		}

		info, ok := pkt.(*w3gs.GameInfo)
		if !ok {
			fmt.Printf("Received %T from %s\n", pkt, from)

			continue
		}

		found++
		printGameInfo(info, from)
	}

	if found == 0 {
		fmt.Println("No games found.")
	} else {
		fmt.Printf("Found %d game(s).\n", found)
	}

	return nil
}

func printGameInfo(gi *w3gs.GameInfo, from *net.UDPAddr) {
	fmt.Println()
	fmt.Println("=== Game Found ===")
	fmt.Printf("  From:     %s\n", from)
	fmt.Printf("  Name:     %s\n", gi.GameName)
	fmt.Printf("  Map:      %s\n", gi.GameSettings.MapPath)
	fmt.Printf("  Host:     %s\n", gi.GameSettings.HostName)
	fmt.Printf("  Players:  %d/%d\n", gi.SlotsUsed, gi.SlotsTotal)
	fmt.Printf("  Port:     %d\n", gi.GamePort)
	fmt.Printf("  Version:  %s %s\n", gi.Product, config.FormatVersion(gi.Version))
	fmt.Println()
}
