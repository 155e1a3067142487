package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/hpungsan/qsyntax/internal/llm"
)

const wordWrap = 100

var (
	youStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	modelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// markdown renders model replies for the terminal. Falls back to the raw
// text when glamour is unavailable.
type markdown struct {
	r *glamour.TermRenderer
}

func newMarkdown() *markdown {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return &markdown{}
	}
	return &markdown{r: r}
}

func (m *markdown) Render(text string) string {
	if m.r == nil {
		return text + "\n"
	}
	out, err := m.r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

// spinner shows an indeterminate progress bar while a reply is pending.
// It implements llm.ProgressSink so retries show up in its description.
type spinner struct {
	bar  *progressbar.ProgressBar
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startSpinner(w io.Writer, description string) *spinner {
	s := &spinner{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.spin()
	return s
}

func (s *spinner) spin() {
	defer close(s.done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_ = s.bar.Add(1)
		}
	}
}

// OnRetry implements llm.ProgressSink.
func (s *spinner) OnRetry(e llm.RetryEvent) {
	s.bar.Describe(retryDescription(e))
}

// Stop clears the spinner. Safe to call more than once.
func (s *spinner) Stop() {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
		_ = s.bar.Finish()
	})
}

// retryDescription is the status line shown while waiting to retry.
func retryDescription(e llm.RetryEvent) string {
	return fmt.Sprintf("API busy, retrying... (%d/%d)", e.Attempt+1, e.MaxAttempts)
}

// indent prefixes every non-empty line of s.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
