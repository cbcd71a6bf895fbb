package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kchakrav/CRMApp-sub002/pkg/graph"
	"github.com/kchakrav/CRMApp-sub002/pkg/layout"
	"github.com/kchakrav/CRMApp-sub002/pkg/log"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/validation"
	"github.com/urfave/cli/v3"
)

var (
	ErrMissingFile      = errors.New("a workflow document file is required")
	ErrValidationFailed = errors.New("workflow has validation errors")
)

func loadGraph(command *cli.Command) (*graph.Graph, string, error) {
	path := command.Args().First()
	if path == "" {
		return nil, "", ErrMissingFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc, err := models.ParseDocument(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return graph.FromDocument(doc), path, nil
}

func nodeLabel(g *graph.Graph, id string) string {
	n, ok := g.Node(id)
	if !ok || n.Name == "" {
		return id
	}

	return fmt.Sprintf("%s (%s)", id, n.Name)
}

func NewValidateCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Check that a workflow can be executed",
		ArgsUsage: "FILE",
		Action: func(ctx context.Context, command *cli.Command) error {
			g, path, err := loadGraph(command)
			if err != nil {
				return err
			}

			report := validation.Validate(g)

			log.WithModule("cli").DebugContext(ctx, "Validated workflow",
				"file", path,
				"errors", len(report.Errors),
				"warnings", len(report.Warnings),
			)

			_, _ = fmt.Fprintf(out, "Validation results for %s\n", path)

			for _, issue := range report.Errors {
				_, _ = fmt.Fprintf(out, "  ERROR   [%s] %s\n", issue.Code, issue.Message)
			}

			for _, issue := range report.Warnings {
				_, _ = fmt.Fprintf(out, "  WARNING [%s] %s\n", issue.Code, issue.Message)
			}

			_, _ = fmt.Fprintf(out, "%d error(s), %d warning(s)\n", len(report.Errors), len(report.Warnings))

			if !report.Valid() {
				return fmt.Errorf("%w: %d", ErrValidationFailed, len(report.Errors))
			}

			return nil
		},
	}
}

func NewOrderCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "order",
		Aliases:   []string{"o"},
		Usage:     "Print the execution order of a workflow",
		ArgsUsage: "FILE",
		Action: func(_ context.Context, command *cli.Command) error {
			g, _, err := loadGraph(command)
			if err != nil {
				return err
			}

			for i, id := range g.ExecutionOrder() {
				_, _ = fmt.Fprintf(out, "%d. %s\n", i+1, nodeLabel(g, id))
			}

			if g.HasCycle() {
				_, _ = fmt.Fprintln(out, "note: the workflow contains a loop")
			}

			return nil
		},
	}
}

func NewLayoutCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "layout",
		Aliases:   []string{"l"},
		Usage:     "Arrange the nodes of a workflow into columns",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "write",
				Aliases: []string{"w"},
				Usage:   "Write the new positions back to FILE instead of printing them",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			g, path, err := loadGraph(command)
			if err != nil {
				return err
			}

			result, err := layout.Apply(g, layout.DefaultOptions())
			if err != nil {
				return err
			}

			if !command.Bool("write") {
				for _, column := range result.Columns {
					for _, id := range column {
						pos := result.Positions[id]
						_, _ = fmt.Fprintf(out, "%s\tdepth=%d\tx=%g\ty=%g\n", id, result.Depth[id], pos.X, pos.Y)
					}
				}

				return nil
			}

			data, err := json.MarshalIndent(g.Document(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode document: %w", err)
			}

			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			_, _ = fmt.Fprintf(out, "Laid out %d node(s) in %d column(s)\n", g.Len(), len(result.Columns))

			return nil
		},
	}
}
