package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v2"
	"github.com/yuin/goldmark"

	"github.com/hpungsan/qsyntax/internal/chat"
	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/separator"
	"github.com/hpungsan/qsyntax/internal/session"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(opts appOptions) *cli.App {
	env := newAppEnv(opts)
	app := &cli.App{
		Name:    "qsyntax",
		Usage:   "Chat with a language model and split web code into HTML, CSS and JS",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Also write logs to stderr"},
		},
		Before: func(c *cli.Context) error {
			env.verbose = c.Bool("verbose")
			return nil
		},
		After: func(_ *cli.Context) error {
			return env.Close()
		},
		Commands: []*cli.Command{
			chatCmd(env),
			sendCmd(env),
			newCmd(env),
			sessionsCmd(env),
			deleteCmd(env),
			transcriptCmd(env),
			exportCmd(env),
			importCmd(env),
			separateCmd(),
			renderCmd(),
			serveCmd(env),
			configCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// chatCmd creates the interactive chat command.
func chatCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Chat interactively (type /help for commands)",
		Action: func(c *cli.Context) error {
			if !isTerminal() {
				return outputError(errors.NewInvalidRequest("chat needs an interactive terminal; pipe input to 'qsyntax send' instead"))
			}
			m, err := env.Manager(c.Context)
			if err != nil {
				return err
			}
			r := newREPL(m, env.cfg, c.App.Writer, c.App.ErrWriter)
			r.banner()

			for {
				prompt := promptui.Prompt{Label: "You"}
				line, err := prompt.Run()
				if err == promptui.ErrInterrupt || err == promptui.ErrEOF {
					return nil
				}
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				if quit := r.handle(c.Context, line); quit {
					return nil
				}
			}
		},
	}
}

// sendCmd creates the send command.
func sendCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send one message to the active chat (text from args or stdin)",
		ArgsUsage: "[text...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the reply as JSON"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Hide the progress spinner"},
		},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				in, err := readInput(c)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				text = in
			}
			if strings.TrimSpace(text) == "" {
				return outputError(errors.NewInvalidRequest("message text is required (pass it as arguments or via stdin)"))
			}

			m, err := env.Manager(c.Context)
			if err != nil {
				return err
			}

			var sink *spinner
			if !c.Bool("quiet") && !c.Bool("json") {
				sink = startSpinner(c.App.ErrWriter, "Thinking...")
			}
			var reply *chat.Reply
			if sink != nil {
				reply, err = m.Send(c.Context, text, sink)
				sink.Stop()
			} else {
				reply, err = m.Send(c.Context, text, nil)
			}
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, newSendOutput(m, reply))
			}

			md := newMarkdown()
			fmt.Fprint(c.App.Writer, md.Render(reply.Text))
			if reply.Fallback != "" {
				fmt.Fprint(c.App.Writer, md.Render(reply.Fallback))
			}
			if reply.Failure != nil {
				return outputError(reply.Failure)
			}
			return nil
		},
	}
}

// sendOutput is the JSON shape of a send reply.
type sendOutput struct {
	SessionID string         `json:"session_id"`
	Title     string         `json:"title"`
	Text      string         `json:"text"`
	Cached    bool           `json:"cached"`
	Fallback  string         `json:"fallback,omitempty"`
	Failure   *failureOutput `json:"failure,omitempty"`
}

type failureOutput struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newSendOutput(m *chat.Manager, reply *chat.Reply) sendOutput {
	out := sendOutput{
		SessionID: reply.SessionID,
		Text:      reply.Text,
		Cached:    reply.Cached,
		Fallback:  reply.Fallback,
	}
	if s, err := m.Session(reply.SessionID); err == nil {
		out.Title = s.Title
	}
	if reply.Failure != nil {
		out.Failure = &failureOutput{Code: string(reply.Failure.Code), Message: reply.Failure.Message}
	}
	return out
}

// newCmd creates the new command.
func newCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Start a new chat and make it active",
		Action: func(c *cli.Context) error {
			m, err := env.Manager(c.Context)
			if err != nil {
				return err
			}
			s, err := m.Create(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, s.ToSummary(s.ID))
		},
	}
}

// sessionsCmd creates the sessions command.
func sessionsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List chats, most recent first",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print summaries as JSON"},
			&cli.BoolFlag{Name: "pick", Aliases: []string{"p"}, Usage: "Choose a chat to make active"},
		},
		Action: func(c *cli.Context) error {
			m, err := env.Manager(c.Context)
			if err != nil {
				return err
			}
			summaries := m.Sessions()

			if c.Bool("pick") {
				id, err := pickSession(summaries)
				if err != nil {
					return outputError(err)
				}
				s, err := m.Load(c.Context, id)
				if err != nil {
					return outputError(err)
				}
				fmt.Fprintf(c.App.Writer, "Loaded %s\n", titleStyle.Render(s.Title))
				return nil
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, map[string]any{"sessions": summaries})
			}
			printSessions(c.App.Writer, summaries)
			if at, ok, err := env.store.SavedAt(c.Context); err == nil && ok {
				fmt.Fprintf(c.App.Writer, "\n%s\n", dimStyle.Render("Last saved "+at.Format("2006-01-02 15:04")))
			}
			return nil
		},
	}
}

// printSessions writes one styled entry per session.
func printSessions(w io.Writer, summaries []session.Summary) {
	for _, s := range summaries {
		marker := "  "
		if s.Active {
			marker = activeStyle.Render("* ")
		}
		fmt.Fprintf(w, "%s%s\n", marker, titleStyle.Render(s.Title))
		meta := fmt.Sprintf("%s · %d messages · %s", s.ID, s.MessageCount, formatTime(s.Timestamp))
		fmt.Fprintf(w, "    %s\n", dimStyle.Render(meta))
		fmt.Fprintf(w, "    %s\n", dimStyle.Render(s.Preview))
	}
}

// pickSession asks the user to choose a session. Swapped in tests.
var pickSession = func(summaries []session.Summary) (string, error) {
	if len(summaries) == 0 {
		return "", errors.NewInvalidRequest("no chats to choose from")
	}
	items := make([]string, len(summaries))
	for i, s := range summaries {
		items[i] = fmt.Sprintf("%s  (%s)", s.Title, s.Preview)
	}
	sel := promptui.Select{
		Label: "Load a chat",
		Items: items,
		Size:  10,
	}
	idx, _, err := sel.Run()
	if err != nil {
		return "", errors.NewInvalidRequest("no chat chosen")
	}
	return summaries[idx].ID, nil
}

// deleteCmd creates the delete command.
func deleteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a chat",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("session ID is required"))
			}
			id := c.Args().First()

			m, err := env.Manager(c.Context)
			if err != nil {
				return err
			}
			if err := m.Delete(c.Context, id); err != nil {
				return outputError(err)
			}

			out := map[string]any{"deleted": true, "id": id}
			if active, ok := m.Active(); ok {
				out["active_id"] = active.ID
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

// transcriptCmd creates the transcript command.
func transcriptCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "transcript",
		Usage:     "Print a chat as markdown (defaults to the active chat)",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "html", Usage: "Render the transcript to HTML"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write to a file instead of stdout"},
		},
		Action: func(c *cli.Context) error {
			m, err := env.Manager(c.Context)
			if err != nil {
				return err
			}

			var s *session.Session
			if c.NArg() > 0 {
				s, err = m.Session(c.Args().First())
				if err != nil {
					return outputError(err)
				}
			} else {
				active, ok := m.Active()
				if !ok {
					return outputError(errors.NewInvalidRequest("no active chat"))
				}
				s = active
			}

			text := s.Transcript()
			if c.Bool("html") {
				var buf bytes.Buffer
				if err := goldmark.Convert([]byte(text), &buf); err != nil {
					return outputError(errors.NewInternal(err))
				}
				text = buf.String()
			}

			if path := c.String("out"); path != "" {
				if err := os.WriteFile(path, []byte(text), 0644); err != nil {
					return outputError(errors.NewInternal(err))
				}
				fmt.Fprintf(c.App.ErrWriter, "Wrote %s\n", path)
				return nil
			}
			_, err = io.WriteString(c.App.Writer, text)
			return err
		},
	}
}

// Helper functions

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if qErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", qErr.Code, qErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// readInput reads piped input. Returns "" when stdin is a terminal.
func readInput(c *cli.Context) (string, error) {
	r := c.App.Reader
	if f, ok := r.(*os.File); ok && !hasData(f) {
		return "", nil
	}
	data, err := io.ReadAll(io.LimitReader(r, separator.MaxFileSize))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// hasData returns true if f is piped (not a terminal).
func hasData(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// formatTime formats a unix millisecond timestamp in local time.
func formatTime(unixMilli int64) string {
	return time.UnixMilli(unixMilli).Format("2006-01-02 15:04")
}
