// Command eventhub-devapi serves an in-memory copy of the remote event API
// for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventhub/internal/fakeapi"
	appLog "eventhub/internal/log"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:5000", "HTTP listen address")
	secret := flag.String("secret", os.Getenv("EVENTHUB_DEVAPI_SECRET"), "JWT signing secret")
	seed := flag.Bool("seed", true, "Preload demo events")
	seedOwner := flag.String("seed-owner", "demo@example.com", "Creator email for demo events")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	api := fakeapi.New(*secret)
	if *seed {
		api.Seed(fakeapi.SampleEvents(time.Now(), *seedOwner)...)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              *listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("dev API listening", "listen", "http://"+*listen+"/api", "events", len(api.Events()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("dev API stopped", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("shutdown failed", err)
		}
	}
}
