//nolint:forbidigo // CLI output uses fmt.Print
package main

import (
	"context"
	"fmt"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/Kaladum/simple-wc3/version"
)

func newVersionCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "simple-wc3 version",
		ShortHelp:  "Print version information",
		Exec: func(_ context.Context, _ []string) error {
			v := version.Get()
			fmt.Printf("%s %s\n", version.AppName, v.String())

			if v.GoVer != "" {
				fmt.Printf("  go: %s\n", v.GoVer)
			}

			fmt.Printf("  alpn: %s\n", version.ALPN())

			return nil
		},
	}
}
