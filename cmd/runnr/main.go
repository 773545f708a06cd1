// Package main provides the runnr command line: the editor server and
// offline tools for workflow documents.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "runnr",
		Usage:                 "Edit, validate and export CI workflow definitions",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			ServeCommand(),
			RenderCommand(),
			ValidateCommand(),
			ExportCommand(),
			TemplatesCommand(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		stop()
		panic(err)
	}
}
