// Command render runs a single refresh cycle with the service configuration
// and writes the resulting overlay to disk, without starting the HTTP server
// or the scheduler.
//
// Usage:
//
//	DATA_SOURCE=local LOCAL_FILE=testdata/storm.json \
//	  go run ./cmd/render -out radar.png -status radar.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/storm-radar-overlay/internal/app"
	"github.com/couchcryptid/storm-radar-overlay/internal/config"
	"github.com/couchcryptid/storm-radar-overlay/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "radar.png", "output path for the rendered PNG")
	statusOut := flag.String("status", "", "optional output path for the status JSON document")
	publish := flag.Bool("publish", false, "publish the frame event when KAFKA_ENABLED is set")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return errors.New("missing required flag: -out")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)

	a, err := app.New(cfg, *publish, logger, observability.NewMetricsForTesting())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Processor.Tick(ctx); err != nil {
		// A failed refresh still renders background and markers.
		logger.Warn("refresh failed", "error", err)
	}
	frame := a.Processor.Latest()
	if frame == nil {
		return errors.New("no frame rendered")
	}

	if err := os.WriteFile(*out, frame.PNG, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Printf("wrote %s (%dx%d, radar=%t, tiles=%d/%d)\n",
		*out, frame.Event.Width, frame.Event.Height, frame.Event.HasRadar,
		frame.Event.TilesFetched, frame.Event.TilesFetched+frame.Event.TilesFailed)

	if *statusOut == "" {
		return nil
	}
	data, err := json.MarshalIndent(a.Processor.Status(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := os.WriteFile(*statusOut, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *statusOut, err)
	}
	fmt.Printf("wrote %s\n", *statusOut)
	return nil
}
