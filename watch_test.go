package serial

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchRescansOnDeviceChanges(t *testing.T) {
	s := testScanner(UART16550A, nil)
	s.Dir = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Watch(ctx, 10*time.Millisecond, nil)

	next := func() ([]PortDescriptor, bool) {
		select {
		case ports, ok := <-ch:
			return ports, ok
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a scan")
			return nil, false
		}
	}

	if ports, ok := next(); !ok || len(ports) != 0 {
		t.Fatalf("initial scan = %v, %v", ports, ok)
	}

	// Non-matching names are ignored
	if err := os.WriteFile(filepath.Join(s.Dir, "ttyS0"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case ports := <-ch:
		t.Errorf("unexpected rescan %v", ports)
	case <-time.After(100 * time.Millisecond):
	}

	// A burst of matching changes is coalesced into one rescan
	for _, name := range []string{"null", "zero"} {
		if err := os.WriteFile(filepath.Join(s.Dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := next(); !ok {
		t.Fatal("channel closed before the rescan")
	}
	select {
	case ports := <-ch:
		t.Errorf("burst produced a second rescan %v", ports)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	for range ch {
	}
}

func TestWatchMissingDir(t *testing.T) {
	s := testScanner(UART16550A, nil)
	s.Dir = filepath.Join(t.TempDir(), "missing")

	ch := s.Watch(context.Background(), time.Millisecond, nil)
	// The initial scan fails on the missing directory, so nothing is sent
	// before the watcher gives up and closes the channel.
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected the channel to close without a scan")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}
