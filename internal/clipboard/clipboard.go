package clipboard

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/hpungsan/qsyntax/internal/errors"
)

// Swapped in tests.
var (
	writeAll    = clipboard.WriteAll
	unsupported = func() bool { return clipboard.Unsupported }
)

// Available reports whether a system clipboard was found.
func Available() bool {
	return !unsupported()
}

// Write copies text to the system clipboard. Without a clipboard it
// returns CLIPBOARD_UNSUPPORTED.
func Write(ctx context.Context, text string) error {
	if unsupported() {
		return errors.NewClipboardUnsupported()
	}

	// The helper processes (xclip, pbcopy) can hang; give up with ctx
	write := writeAll
	done := make(chan error, 1)
	go func() { done <- write(text) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("writing clipboard: %w", err)
		}
		return nil
	}
}
