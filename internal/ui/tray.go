package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

const refreshInterval = 5 * time.Second

// Runner is the job runner as seen from the tray.
type Runner interface {
	Pause()
	Resume()
	IsPaused() bool
	IsBusy() bool
}

// VideoCounter reports how many videos have a stored transcript.
type VideoCounter interface {
	CountVideos(ctx context.Context) (int, error)
}

type Tray struct {
	videos VideoCounter
	runner Runner
	logger *slog.Logger
	apiURL string

	statusItem *systray.MenuItem
	videosItem *systray.MenuItem
	pauseItem  *systray.MenuItem

	mu   sync.Mutex
	stop chan struct{}

	onQuit func()
}

type TrayConfig struct {
	Videos VideoCounter
	Runner Runner
	Logger *slog.Logger
	APIURL string
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		videos: cfg.Videos,
		runner: cfg.Runner,
		logger: cfg.Logger,
		apiURL: cfg.APIURL,
		onQuit: cfg.OnQuit,
		stop:   make(chan struct{}),
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Topicseg")
	systray.SetTooltip("Topicseg Agent " + t.apiURL)

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.videosItem = systray.AddMenuItem("Videos: 0", "Videos with a stored transcript")
	t.videosItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause background segmentation")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Topicseg Agent")

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	go t.refreshLoop()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	close(t.stop)
	t.logger.Info("system tray exiting")
}

// refreshLoop keeps the status and video count items current.
func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	t.refresh()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

func (t *Tray) refresh() {
	if t.videos != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		n, err := t.videos.CountVideos(ctx)
		cancel()
		if err != nil {
			t.logger.Debug("failed to count videos", "error", err)
		} else {
			t.UpdateVideosCount(n)
		}
	}

	if t.runner == nil {
		return
	}
	switch {
	case t.runner.IsPaused():
		t.UpdateStatus("Paused")
	case t.runner.IsBusy():
		t.UpdateStatus("Segmenting")
	default:
		t.UpdateStatus("Idle")
	}
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdateVideosCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.videosItem == nil {
		return
	}
	t.videosItem.SetTitle(fmt.Sprintf("Videos: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
