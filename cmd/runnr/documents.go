package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dukex/runnr/pkg/codec"
	"github.com/dukex/runnr/pkg/models"
	"github.com/dukex/runnr/pkg/validation"
	cli "github.com/urfave/cli/v3"
)

var errMissingFile = errors.New("a workflow file is required (use - for stdin)")

func RenderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Parse a workflow file and print it in canonical form",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, command *cli.Command) error {
			workflow, err := readWorkflow(command)
			if err != nil {
				return err
			}

			text, err := codec.Serialize(workflow)
			if err != nil {
				return err
			}

			_, err = io.WriteString(command.Root().Writer, text)

			return err
		},
	}
}

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a workflow file; exits with status 1 when it has errors",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, command *cli.Command) error {
			workflow, err := readWorkflow(command)
			if err != nil {
				return err
			}

			result := validation.Validate(workflow)
			out := command.Root().Writer

			for _, issue := range result.Issues {
				if _, err := fmt.Fprintln(out, issue.String()); err != nil {
					return err
				}
			}

			if !result.Valid {
				return cli.Exit(fmt.Sprintf("%d error(s), %d warning(s)", len(result.Errors()), len(result.Warnings())), 1)
			}

			_, err = fmt.Fprintf(out, "ok: %d warning(s)\n", len(result.Warnings()))

			return err
		},
	}
}

func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write a workflow file in canonical form, named after the workflow",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Directory to write the exported file to",
				Value:   ".",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			workflow, err := readWorkflow(command)
			if err != nil {
				return err
			}

			text, err := codec.Serialize(workflow)
			if err != nil {
				return err
			}

			path := filepath.Join(command.String("out"), codec.Filename(workflow.Name))

			if err := os.WriteFile(path, []byte(text), 0o644); err != nil { //nolint:gosec // exported documents are meant to be shared
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			_, err = fmt.Fprintln(command.Root().Writer, path)

			return err
		},
	}
}

func readWorkflow(command *cli.Command) (*models.Workflow, error) {
	name := command.Args().First()
	if name == "" {
		return nil, errMissingFile
	}

	var (
		data []byte
		err  error
	)

	if name == "-" {
		data, err = io.ReadAll(command.Root().Reader)
	} else {
		data, err = os.ReadFile(name)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	return codec.Deserialize(string(data))
}
