package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/markdave123-py/drivesync/internal/app"
	"github.com/markdave123-py/drivesync/internal/config"
	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/core/logging"
	"github.com/markdave123-py/drivesync/internal/models"
)

func main() {
	os.Exit(run())
}

// run executes one sync batch. Exit codes: 0 ok, 1 persistence failure, 2 other failure.
func run() int {
	full := flag.Bool("full", false, "forget the stored delta cursor and enumerate the whole drive")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.Logger()
	cfg := config.LoadConfig()

	application, err := app.NewSyncApp(ctx, cfg)
	if err != nil {
		log.Error("startup failed", "err", err)
		return 2
	}
	defer application.Close()

	if *full {
		if err := application.Delta.ResetCursor(ctx); err != nil {
			log.Error("cursor reset failed", "err", err)
			return 1
		}
	}

	application.Delta.OnProgress(func(n int, _ models.DriveItem) {
		fmt.Fprintf(os.Stderr, "\rProcessing Item #: %d", n)
	})

	sum, err := application.Runner.Run(ctx)
	fmt.Fprintln(os.Stderr)

	if sum != nil {
		log.Info("sync finished", "run", sum.ID, "seen", sum.ItemsSeen, "counts", sum.Counts,
			"removed", sum.Removed, "skipped", sum.Skipped)
	}
	switch {
	case err == nil:
		return 0
	case core.IsCode(err, core.ErrCodePersistence):
		log.Error("sync aborted: state store unavailable", "err", err)
		return 1
	case errors.Is(err, context.Canceled):
		log.Warn("sync interrupted")
		return 2
	default:
		log.Error("sync failed", "err", err)
		return 2
	}
}
