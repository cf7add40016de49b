package capture

import (
	"context"
	"testing"
	"time"

	"eventhub/internal/config"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{URL: "http://127.0.0.1:8080/", OutputPath: "out.png"}
	if err := o.normalize(); err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != DefaultTimeout {
		t.Fatalf("defaults not applied: %+v", o)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	o := OptionsFromConfig(config.CaptureConfig{Width: 800, Height: 600, Timeout: time.Second}, "http://x/", "y.png")
	if o.Width != 800 || o.Height != 600 || o.Timeout != time.Second || o.URL != "http://x/" || o.OutputPath != "y.png" {
		t.Fatalf("options = %+v", o)
	}
}

func TestDashboardPNGRequiresURLAndOutput(t *testing.T) {
	ctx := context.Background()
	if err := DashboardPNG(ctx, Options{OutputPath: "x.png"}); err == nil {
		t.Fatal("expected error without URL")
	}
	if err := DashboardPNG(ctx, Options{URL: "http://x/"}); err == nil {
		t.Fatal("expected error without output path")
	}
}
