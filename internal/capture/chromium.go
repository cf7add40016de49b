// Package capture takes PNG snapshots of the dashboard with headless
// Chromium.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"eventhub/internal/config"
	appLog "eventhub/internal/log"
)

const (
	DefaultWidth   = 1280
	DefaultHeight  = 900
	DefaultTimeout = 30 * time.Second

	// readySelector is set by the dashboard page once it has rendered data.
	readySelector = `[data-ready="true"]`
)

// Options defines one snapshot.
type Options struct {
	// URL of the dashboard page, e.g. "http://127.0.0.1:8080/".
	URL string

	// OutputPath receives the PNG.
	OutputPath string

	Width   int
	Height  int
	Timeout time.Duration
}

// OptionsFromConfig fills size and timeout from cfg.Capture.
func OptionsFromConfig(cfg config.CaptureConfig, url, out string) Options {
	return Options{
		URL:        url,
		OutputPath: out,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Timeout:    cfg.Timeout,
	}
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// DashboardPNG navigates to opts.URL, waits for the page to mark itself
// ready and writes a full-page screenshot to opts.OutputPath.
func DashboardPNG(parent context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := config.WriteFileAtomic(opts.OutputPath, png); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("dashboard snapshot written", "path", opts.OutputPath, "bytes", len(png))
	return nil
}

// Available reports whether a Chromium binary can be found, so callers can
// fail early with a clear message.
func Available() bool {
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}
