package ui

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
)

type fakeRunner struct{ paused, busy bool }

func (r *fakeRunner) Pause()         { r.paused = true }
func (r *fakeRunner) Resume()        { r.paused = false }
func (r *fakeRunner) IsPaused() bool { return r.paused }
func (r *fakeRunner) IsBusy() bool   { return r.busy }

type fakeCounter struct{ n int }

func (c fakeCounter) CountVideos(ctx context.Context) (int, error) { return c.n, nil }

func TestIconIsPNG(t *testing.T) {
	if !bytes.HasPrefix(iconBytes, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatal("embedded icon is not a PNG")
	}
}

// Menu items only exist after systray starts; updates before that are
// dropped instead of panicking.
func TestTray_RefreshBeforeReady(t *testing.T) {
	tray := NewTray(TrayConfig{
		Videos: fakeCounter{n: 3},
		Runner: &fakeRunner{busy: true},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	tray.refresh()
	tray.UpdateStatus("Idle")
	tray.UpdateVideosCount(1)
}
