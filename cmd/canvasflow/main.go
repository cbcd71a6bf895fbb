// Package main provides the canvasflow command line, which checks and previews workflow documents
// stored as JSON files.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kchakrav/CRMApp-sub002/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:                  "canvasflow",
		Usage:                 "Validate, order, lay out and simulate workflow documents",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			NewValidateCommand(out),
			NewOrderCommand(out),
			NewLayoutCommand(out),
			NewSimulateCommand(out),
		},
	}
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
