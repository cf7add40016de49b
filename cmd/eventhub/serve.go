package main

import (
	"context"
	"errors"
	"net/url"

	"github.com/robfig/cron/v3"

	"eventhub/internal/capture"
	appLog "eventhub/internal/log"
	"eventhub/internal/web"
)

// cmdServe runs the dashboard and refreshes the cache on cfg.RefreshCron
// while a session is stored.
func cmdServe(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("serve")
	listen := fs.String("listen", "", "HTTP listen address (overrides config if set)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *listen != "" {
		e.cfg.Listen = *listen
	}

	refresh := func() {
		if _, err := e.ctrl.RequireSession(); err != nil {
			appLog.Debug("scheduled refresh skipped: not signed in")
			return
		}
		if err := e.ctrl.Refresh(ctx); err != nil {
			appLog.Warn("scheduled refresh failed", "err", err)
		}
	}
	refresh()

	sched := cron.New()
	if _, err := sched.AddFunc(e.cfg.RefreshCron, refresh); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", e.cfg.RefreshCron)
		return err
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
	}()
	appLog.Info("refresh scheduled", "refresh", e.cfg.RefreshCron)

	srv := web.NewServer(e.cfg, web.Deps{Controller: e.ctrl, Queue: e.queue, Metrics: e.metrics})
	return srv.Run(ctx)
}

// cmdSnapshot renders a running dashboard to PNG.
func cmdSnapshot(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("snapshot")
	target := fs.String("url", "", "Dashboard URL (default http://<listen>/)")
	out := fs.String("o", "dashboard.png", "Output PNG path")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if !capture.Available() {
		return errors.New("no Chromium binary found in PATH")
	}

	raw := *target
	if raw == "" {
		raw = "http://" + e.cfg.Listen + "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if ba := e.cfg.BasicAuth; ba != nil && ba.Username != "" && u.User == nil {
		u.User = url.UserPassword(ba.Username, ba.Password)
	}

	return capture.DashboardPNG(ctx, capture.OptionsFromConfig(e.cfg.Capture, u.String(), *out))
}
