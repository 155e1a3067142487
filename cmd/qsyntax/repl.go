package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"

	"github.com/hpungsan/qsyntax/internal/chat"
	"github.com/hpungsan/qsyntax/internal/clipboard"
	"github.com/hpungsan/qsyntax/internal/config"
	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/render"
)

var replHelp = heredoc.Doc(`
	Commands:
	  /new        start a new chat
	  /sessions   load another chat
	  /copy       copy the last reply as plain text
	  /copy code  copy only the code blocks of the last reply
	  /help       show this help
	  /quit       leave (Ctrl-D works too)
`)

// repl runs one interactive chat. Reading input is left to the caller so
// the command handling works without a terminal.
type repl struct {
	manager       *chat.Manager
	out           io.Writer
	errOut        io.Writer
	md            *markdown
	fallbackDelay time.Duration
	spinner       bool

	// last is the most recent model reply, for /copy.
	last string
}

func newREPL(m *chat.Manager, cfg *config.Config, out, errOut io.Writer) *repl {
	return &repl{
		manager:       m,
		out:           out,
		errOut:        errOut,
		md:            newMarkdown(),
		fallbackDelay: cfg.FallbackDelay,
		spinner:       true,
	}
}

// banner prints the active chat and its recent messages.
func (r *repl) banner() {
	active, ok := r.manager.Active()
	if !ok {
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", titleStyle.Render(active.Title), dimStyle.Render("(/help for commands)"))
	for _, msg := range active.Messages {
		if msg.IsUser {
			r.printUser(msg.Text)
		} else {
			r.printModel(msg.Text)
		}
	}
}

// handle runs one line of input and reports whether the user quit.
// Errors are printed; none of them end the session.
func (r *repl) handle(ctx context.Context, line string) bool {
	cmd := strings.TrimSpace(line)
	switch {
	case cmd == "":
		return false
	case cmd == "/quit" || cmd == "/exit":
		return true
	case cmd == "/help":
		fmt.Fprint(r.out, replHelp)
	case cmd == "/new":
		s, err := r.manager.Create(ctx)
		if err != nil {
			r.printError(err)
			return false
		}
		r.last = ""
		fmt.Fprintf(r.out, "Started %s\n", titleStyle.Render(s.Title))
	case cmd == "/sessions":
		id, err := pickSession(r.manager.Sessions())
		if err != nil {
			r.printError(err)
			return false
		}
		if _, err := r.manager.Load(ctx, id); err != nil {
			r.printError(err)
			return false
		}
		r.last = ""
		r.banner()
	case cmd == "/copy":
		r.copyLast(ctx, false)
	case cmd == "/copy code":
		r.copyLast(ctx, true)
	case strings.HasPrefix(cmd, "/"):
		r.printError(errors.NewInvalidRequest(fmt.Sprintf("unknown command %s (try /help)", cmd)))
	default:
		r.send(ctx, cmd)
	}
	return false
}

func (r *repl) send(ctx context.Context, text string) {
	var (
		reply *chat.Reply
		err   error
	)
	if r.spinner {
		s := startSpinner(r.errOut, "Thinking...")
		reply, err = r.manager.Send(ctx, text, s)
		s.Stop()
	} else {
		reply, err = r.manager.Send(ctx, text, nil)
	}
	if err != nil {
		r.printError(err)
		return
	}

	r.printModel(reply.Text)
	if reply.Failure == nil {
		r.last = reply.Text
	}
	if reply.Fallback == "" {
		return
	}

	timer := time.NewTimer(r.fallbackDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	r.printModel(reply.Fallback)
}

// copyLast copies the last reply, or only its code blocks.
func (r *repl) copyLast(ctx context.Context, codeOnly bool) {
	if r.last == "" {
		r.printError(errors.NewInvalidRequest("nothing to copy yet"))
		return
	}
	text, err := r.copyText(codeOnly)
	if err != nil {
		r.printError(err)
		return
	}
	if !clipboard.Available() {
		r.printError(errors.NewClipboardUnsupported())
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := clipboard.Write(ctx, text); err != nil {
		r.printError(err)
		return
	}
	fmt.Fprintln(r.out, dimStyle.Render("Copied!"))
}

func (r *repl) copyText(codeOnly bool) (string, error) {
	html := render.SafeAnswer(r.last)
	if !codeOnly {
		plain, err := render.PlainText(html)
		if err != nil {
			return r.last, nil
		}
		return plain, nil
	}
	blocks, err := render.CodeBlocks(html)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if len(blocks) == 0 {
		return "", errors.NewInvalidRequest("no code block in the last reply")
	}
	return strings.Join(blocks, "\n\n"), nil
}

func (r *repl) printUser(text string) {
	fmt.Fprintf(r.out, "%s %s\n", youStyle.Render("You:"), text)
}

func (r *repl) printModel(text string) {
	fmt.Fprintln(r.out, modelStyle.Render("qsyntax:"))
	fmt.Fprint(r.out, r.md.Render(text))
}

func (r *repl) printError(err error) {
	msg := err.Error()
	if qErr, ok := errors.As(err); ok {
		msg = qErr.Message
	}
	fmt.Fprintln(r.errOut, errorStyle.Render(msg))
}
