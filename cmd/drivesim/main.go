// Command drivesim runs driving drills offline, prints the lessons and
// checks physics profiles without starting the server.
//
//	drivesim run scenarios/pull-away.yaml --trace out/pull-away.jsonl.zst
//	drivesim lesson 2
//	drivesim validate configs
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/manualdrive/logging"
)

func main() {
	app := newApp(os.Stdout, logging.Console(os.Stderr, "warn", false))
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer, logger zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:   "drivesim",
		Usage:  "manual transmission driving simulator tools",
		Writer: out,
		Commands: []*cli.Command{
			runCommand(out, logger),
			lessonCommand(out),
			validateCommand(out),
		},
	}
}
