package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/qsyntax/internal/clipboard"
	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/render"
	"github.com/hpungsan/qsyntax/internal/separator"
	"github.com/hpungsan/qsyntax/internal/session"
)

// Files written by separate --out-dir.
var outFiles = []struct {
	fragment string
	name     string
}{
	{"html", "index.html"},
	{"css", "style.css"},
	{"js", "script.js"},
}

// separateCmd creates the separate command.
func separateCmd() *cli.Command {
	return &cli.Command{
		Name:      "separate",
		Usage:     "Split mixed web code into HTML, CSS and JavaScript",
		ArgsUsage: "[file]  (reads stdin when omitted or -)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out-dir", Aliases: []string{"o"}, Usage: "Write index.html, style.css and script.js to this directory"},
			&cli.StringFlag{Name: "copy", Aliases: []string{"c"}, Usage: "Copy one part to the clipboard: html|css|js"},
			&cli.BoolFlag{Name: "json", Usage: "Print the parts as JSON"},
			&cli.BoolFlag{Name: "preview", Usage: "Print the recombined preview document"},
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Re-run whenever the file changes"},
			&cli.DurationFlag{Name: "debounce", Value: separator.DefaultDebounce, Usage: "Quiet period before re-running in --watch mode"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "-" {
				path = ""
			}

			if c.Bool("watch") {
				if path == "" {
					return outputError(errors.NewInvalidRequest("--watch needs a file argument"))
				}
				return watchFile(c, path)
			}

			var parts separator.Parts
			if path != "" {
				p, err := separator.ExtractFile(path)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				parts = p
			} else {
				in, err := readInput(c)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				if in == "" {
					return outputError(errors.NewInvalidRequest("code is required (pass a file or pipe it via stdin)"))
				}
				parts = separator.Extract(in)
			}

			return emitParts(c, parts)
		},
	}
}

// emitParts applies the output flags to one extraction.
func emitParts(c *cli.Context, parts separator.Parts) error {
	if dir := c.String("out-dir"); dir != "" {
		if err := writeParts(dir, parts); err != nil {
			return outputError(errors.NewInternal(err))
		}
		fmt.Fprintf(c.App.ErrWriter, "Wrote %s\n", dir)
	}

	if name := c.String("copy"); name != "" {
		text, err := parts.Fragment(name)
		if err != nil {
			return outputError(errors.NewInvalidRequest(err.Error()))
		}
		ctx, cancel := context.WithTimeout(c.Context, 2*time.Second)
		defer cancel()
		if err := clipboard.Write(ctx, text); err != nil {
			return outputError(err)
		}
		fmt.Fprintf(c.App.ErrWriter, "Copied %s (%d chars)\n", name, session.CountChars(text))
	}

	switch {
	case c.Bool("json"):
		return outputJSON(c.App.Writer, parts)
	case c.Bool("preview"):
		_, err := io.WriteString(c.App.Writer, separator.PreviewDocument(parts)+"\n")
		return err
	case c.String("out-dir") != "" || c.String("copy") != "":
		return nil
	}
	printParts(c.App.Writer, parts)
	return nil
}

// printParts writes each part under a styled header.
func printParts(w io.Writer, parts separator.Parts) {
	if parts.Empty() {
		fmt.Fprintln(w, dimStyle.Render("No HTML, CSS or JavaScript found"))
		return
	}
	for _, f := range []struct{ label, code string }{
		{"HTML", parts.HTML},
		{"CSS", parts.CSS},
		{"JavaScript", parts.JS},
	} {
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render(f.label), dimStyle.Render(fmt.Sprintf("(%d chars)", session.CountChars(f.code))))
		if f.code == "" {
			fmt.Fprintln(w, dimStyle.Render("  (empty)"))
		} else {
			fmt.Fprintln(w, indent(f.code, "  "))
		}
		fmt.Fprintln(w)
	}
}

// writeParts writes the three parts into dir, creating it if needed.
func writeParts(dir string, parts separator.Parts) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for _, f := range outFiles {
		text, err := parts.Fragment(f.fragment)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

// watchFile re-runs the extraction on every change until interrupted.
func watchFile(c *cli.Context, path string) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(c.App.ErrWriter, "Watching %s (Ctrl-C to stop)\n", path)
	err := separator.Watch(ctx, path, c.Duration("debounce"), func(parts separator.Parts, err error) {
		if err != nil {
			fmt.Fprintln(c.App.ErrWriter, errorStyle.Render(err.Error()))
			return
		}
		if err := emitParts(c, parts); err != nil {
			fmt.Fprintln(c.App.ErrWriter, errorStyle.Render(err.Error()))
		}
	})
	if err != nil {
		return outputError(errors.NewInternal(err))
	}
	return nil
}

// renderCmd creates the render command.
func renderCmd() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a model reply (markdown subset) to sanitized HTML",
		ArgsUsage: "[file]  (reads stdin when omitted or -)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "plain", Usage: "Print the plain text instead of HTML"},
			&cli.BoolFlag{Name: "terminal", Aliases: []string{"t"}, Usage: "Render for the terminal instead of HTML"},
		},
		Action: func(c *cli.Context) error {
			var text string
			if path := c.Args().First(); path != "" && path != "-" {
				data, err := os.ReadFile(path)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				text = string(data)
			} else {
				in, err := readInput(c)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				text = in
			}
			if text == "" {
				return outputError(errors.NewInvalidRequest("text is required (pass a file or pipe it via stdin)"))
			}

			if c.Bool("terminal") {
				_, err := io.WriteString(c.App.Writer, newMarkdown().Render(text))
				return err
			}

			html := render.SafeAnswer(text)
			if c.Bool("plain") {
				plain, err := render.PlainText(html)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				_, err = io.WriteString(c.App.Writer, plain+"\n")
				return err
			}
			_, err := io.WriteString(c.App.Writer, html+"\n")
			return err
		},
	}
}
