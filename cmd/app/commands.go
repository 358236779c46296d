package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/starford/dossier/internal"
	"github.com/starford/dossier/internal/repository"
)

// withCore runs fn against the configured storage. Logs go to stderr so
// command output stays clean.
func withCore(cmd *cli.Command, fn func(core *internal.Core) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	core, err := internal.NewCore(
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithLogOutput(os.Stderr),
	)
	if err != nil {
		return err
	}
	runErr := fn(core)
	if err := core.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// dossierArg returns the first argument, or the active dossier id.
func dossierArg(ctx context.Context, cmd *cli.Command, core *internal.Core) (string, error) {
	if id := cmd.Args().First(); id != "" {
		return id, nil
	}
	d, err := core.Service.Active(ctx)
	if err != nil {
		return "", fmt.Errorf("no dossier id given and no active dossier")
	}
	return d.ID, nil
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored dossiers, most recently updated first",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withCore(cmd, func(core *internal.Core) error {
				items := core.Service.List(ctx)
				if cmd.Bool("json") {
					enc := json.NewEncoder(output(cmd))
					enc.SetIndent("", "  ")
					return enc.Encode(items)
				}
				active := ""
				if d, err := core.Service.Active(ctx); err == nil {
					active = d.ID
				}
				tw := tabwriter.NewWriter(output(cmd), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\tID\tPROJECT\tUPDATED\tRESUME")
				for _, s := range items {
					mark := ""
					if s.ID == active {
						mark = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, s.ID, s.ProjectName, s.UpdatedAt, s.ResumeHref)
				}
				return tw.Flush()
			})
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write a dossier's stored JSON text",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default stdout; a trailing / writes the export filename into that directory)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withCore(cmd, func(core *internal.Core) error {
				id, err := dossierArg(ctx, cmd, core)
				if err != nil {
					return err
				}
				text, filename, _, err := core.Service.Export(ctx, id)
				if err != nil {
					return fmt.Errorf("export %s: %w", id, err)
				}
				path := cmd.String("output")
				if path == "" {
					_, err := io.WriteString(output(cmd), text)
					return err
				}
				if path[len(path)-1] == '/' {
					path += filename
				}
				if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
					return fmt.Errorf("export %s: %w", id, err)
				}
				fmt.Fprintln(output(cmd), path)
				return nil
			})
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a dossier JSON file (- for stdin) and make it active",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "new-id", Usage: "Store under a freshly allocated id"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			src := cmd.Args().First()
			if src == "" {
				return fmt.Errorf("import: file argument is required")
			}
			var data []byte
			var err error
			if src == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(src)
			}
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			return withCore(cmd, func(core *internal.Core) error {
				d, err := core.Service.Import(ctx, string(data), repository.ImportOptions{NewID: cmd.Bool("new-id")})
				if err != nil {
					return err
				}
				fmt.Fprintln(output(cmd), d.ID)
				return nil
			})
		},
	}
}

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:      "summary",
		Usage:     "Print the dossier summary",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the derived report as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withCore(cmd, func(core *internal.Core) error {
				id, err := dossierArg(ctx, cmd, core)
				if err != nil {
					return err
				}
				if cmd.Bool("json") {
					rep, err := core.Service.Report(ctx, id)
					if err != nil {
						return fmt.Errorf("summary %s: %w", id, err)
					}
					enc := json.NewEncoder(output(cmd))
					enc.SetIndent("", "  ")
					return enc.Encode(rep)
				}
				text, err := core.Service.PrintSummary(ctx, id)
				if err != nil {
					return fmt.Errorf("summary %s: %w", id, err)
				}
				fmt.Fprintln(output(cmd), text)
				return nil
			})
		},
	}
}
