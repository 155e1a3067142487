package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/qsyntax/internal/archive"
	"github.com/hpungsan/qsyntax/internal/chat"
	"github.com/hpungsan/qsyntax/internal/errors"
)

// exportCmd creates the export command.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export all chats to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Export file path (.jsonl); default ~/.qsyntax/exports/chats-<timestamp>.jsonl"},
		},
		Action: func(c *cli.Context) error {
			m, err := env.Manager(c.Context)
			if err != nil {
				return err
			}

			now := time.Now()
			path := c.String("path")
			if path == "" {
				path = archive.DefaultPath(env.opts.BaseDir, now)
			}

			output, err := archive.Export(c.Context, path, m.Snapshot(), now)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// importOutput is the JSON shape of an import.
type importOutput struct {
	chat.ImportResult
	Errors []archive.LineError `json:"errors"`
}

// importCmd creates the import command.
func importCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import chats from a JSONL export",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "skip", Usage: "Existing chat IDs: skip|replace"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("path is required"))
			}
			mode := c.String("mode")
			if mode != "skip" && mode != "replace" {
				return outputError(errors.NewInvalidRequest("mode must be one of: skip, replace"))
			}

			sessions, lineErrors, err := archive.Read(c.Args().First())
			if err != nil {
				return outputError(err)
			}

			m, err := env.Manager(c.Context)
			if err != nil {
				return err
			}
			res, err := m.Import(c.Context, sessions, mode == "replace")
			if err != nil {
				return outputError(err)
			}

			if lineErrors == nil {
				lineErrors = []archive.LineError{}
			}
			return outputJSON(c.App.Writer, importOutput{ImportResult: res, Errors: lineErrors})
		},
	}
}
