package serial

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch scans once immediately and again whenever a matching device node
// is created or removed under s.Dir. Bursts of events within debounce are
// coalesced into one rescan. The channel is closed when ctx is done or the
// watcher fails.
func (s *Scanner) Watch(ctx context.Context, debounce time.Duration, skip func() []string) <-chan []PortDescriptor {
	ch := make(chan []PortDescriptor, 1)
	if skip == nil {
		skip = func() []string { return nil }
	}

	go func() {
		defer close(ch)

		send := func() bool {
			ports, err := s.Scan(ctx, skip()...)
			if err != nil {
				s.logger.Warn("rescan failed", "error", err)
				return ctx.Err() == nil
			}
			select {
			case ch <- ports:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !send() {
			return
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			s.logger.Error("failed to create fsnotify watcher", "error", err)
			return
		}
		defer func() { _ = watcher.Close() }()

		if err := watcher.Add(s.Dir); err != nil {
			s.logger.Error("failed to watch device directory", "dir", s.Dir, "error", err)
			return
		}

		timer := time.NewTimer(debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Remove) == 0 {
					continue
				}
				name := filepath.Base(event.Name)
				if matchAny(s.Exclude, name) || !matchAny(s.Patterns, name) {
					continue
				}
				s.logger.Debug("device node changed", "name", name, "op", event.Op.String())
				timer.Reset(debounce)
			case <-timer.C:
				if !send() {
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("fsnotify error", "error", err)
			}
		}
	}()

	return ch
}
