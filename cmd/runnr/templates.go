package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dukex/runnr/pkg/codec"
	"github.com/dukex/runnr/pkg/templates"
	cli "github.com/urfave/cli/v3"
)

var errMissingTemplateID = errors.New("a template id is required")

func TemplatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "templates",
		Usage: "Browse the built-in workflow templates",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List templates",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Only list templates of this category",
					},
				},
				Action: listTemplates,
			},
			{
				Name:      "show",
				Usage:     "Print a template as YAML",
				ArgsUsage: "<id>",
				Action:    showTemplate,
			},
		},
	}
}

func listTemplates(_ context.Context, command *cli.Command) error {
	var (
		list []templates.Template
		err  error
	)

	if category := command.String("category"); category != "" {
		list, err = templates.ByCategory(category)
	} else {
		list, err = templates.All()
	}

	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(command.Root().Writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCATEGORY\tNAME\tDESCRIPTION")

	for _, t := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Category, t.Name, t.Description)
	}

	return w.Flush()
}

func showTemplate(_ context.Context, command *cli.Command) error {
	id := command.Args().First()
	if id == "" {
		return errMissingTemplateID
	}

	t, err := templates.ByID(id)
	if err != nil {
		return err
	}

	text, err := codec.Serialize(t.Workflow)
	if err != nil {
		return err
	}

	_, err = io.WriteString(command.Root().Writer, text)

	return err
}
