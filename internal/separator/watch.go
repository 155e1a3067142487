package separator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a changed file is re-extracted.
const DefaultDebounce = 400 * time.Millisecond

// Watch extracts path once, then again after every burst of writes to it
// settles for debounce. fn is called from a single goroutine. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, path string, debounce time.Duration, fn func(Parts, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory so editors that save by rename are still seen
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	run := func() {
		parts, err := ExtractFile(abs)
		fn(parts, err)
	}
	run()

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}
		case <-fire:
			run()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fn(Parts{}, fmt.Errorf("watching %s: %w", path, err))
		}
	}
}
