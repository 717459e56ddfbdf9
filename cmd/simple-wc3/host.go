package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/Kaladum/simple-wc3/config"
	"github.com/Kaladum/simple-wc3/host"
)

func newHostCommand() *ffcli.Command {
	fs := flag.NewFlagSet("host", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	listen := fs.String("listen", "", "Overlay listen address (host:port, port 0 for ephemeral)")
	advertise := fs.String("advertise-host", "", "Host/IP to print in the shareable address")
	verbose := fs.Bool("verbose", false, "Enable debug logging")

	return &ffcli.Command{
		Name:       "host",
		ShortUsage: "simple-wc3 host [flags]",
		ShortHelp:  "Host the WC3 game running on this machine",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			setupLogging(*verbose)

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if *listen != "" {
				cfg.ListenAddr = *listen
			}
			if *advertise != "" {
				cfg.AdvertiseHost = *advertise
			}

			return runHost(ctx, cfg)
		},
	}
}

func runHost(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h, err := host.New(cfg)
	if err != nil {
		return err
	}

	fmt.Println("Host is running with address:")
	fmt.Println(h.Addr())
	fmt.Println("Copy this address and share it with all players to let them connect")
	fmt.Println("Press Ctrl+C or close the window to shut down")

	err = h.Run(ctx)

	fmt.Println("Shutting down host...")

	return err
}
