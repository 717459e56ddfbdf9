package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/Kaladum/simple-wc3/client"
	"github.com/Kaladum/simple-wc3/config"
	"github.com/Kaladum/simple-wc3/overlay"
)

var errNoAddress = errors.New("host address required")

func newConnectCommand() *ffcli.Command {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	verbose := fs.Bool("verbose", false, "Enable debug logging")

	return &ffcli.Command{
		Name:       "connect",
		ShortUsage: "simple-wc3 connect [flags] <address>",
		ShortHelp:  "Join a game hosted behind the given address",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			setupLogging(*verbose)

			if len(args) != 1 {
				return errNoAddress
			}

			addr, err := overlay.ParseNodeAddr(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			return runConnect(ctx, cfg, addr)
		},
	}
}

func runConnect(ctx context.Context, cfg *config.Config, addr overlay.NodeAddr) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := client.Connect(ctx, cfg, addr)
	if err != nil {
		return err
	}

	return c.Run(ctx)
}
