package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/Kaladum/simple-wc3/config"
	"github.com/Kaladum/simple-wc3/overlay"
	"github.com/Kaladum/simple-wc3/version"
)

func main() {
	fs := flag.NewFlagSet("simple-wc3", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Enable debug logging")

	root := &ffcli.Command{
		ShortUsage: "simple-wc3 [flags] <subcommand>",
		ShortHelp:  "Tunnel WC3 LAN games between machines on different networks",
		LongHelp: `Without a subcommand, simple-wc3 asks interactively: press Enter to host
the game running on this machine, or paste a host address to join it.`,
		FlagSet: fs,
		Subcommands: []*ffcli.Command{
			newHostCommand(),
			newConnectCommand(),
			newProbeCommand(),
			newVersionCommand(),
		},
		Exec: func(ctx context.Context, args []string) error {
			setupLogging(*verbose)

			return interactive(ctx)
		},
	}

	err := root.ParseAndRun(context.Background(), os.Args[1:])
	if err != nil && !errors.Is(err, flag.ErrHelp) && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// interactive is the no-subcommand flow: an empty line hosts, anything else
// is parsed as a host address to connect to.
func interactive(ctx context.Context) error {
	fmt.Printf("%s v%s\n", version.AppName, version.Get())
	fmt.Println("Visit https://github.com/Kaladum/Simple-WC3 for more information.")
	fmt.Println()
	fmt.Println("Enter remote address to connect or press Enter to host:")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read address: %w", err)
	}

	line = strings.TrimSpace(line)
	if line == "" {
		fmt.Println("Starting as host")

		return runHost(ctx, config.Default())
	}

	fmt.Println("Connecting to host")

	addr, err := overlay.ParseNodeAddr(line)
	if err != nil {
		return err
	}

	return runConnect(ctx, config.Default(), addr)
}

// setupLogging routes structured logs to stderr, leaving stdout to the
// user-facing messages.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig returns the defaults, or the given YAML file over them.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}
