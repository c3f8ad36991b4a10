package scanner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"ballotscan/internal/bootstrap/logging"
	"ballotscan/internal/errs"
	"ballotscan/internal/interpret"
)

const settleDelay = 500 * time.Millisecond

// Watch observes a feeder directory and invokes onBatch once file activity
// settles, so dropping a set of page images into the directory starts a scan.
// It blocks until the context is done.
func Watch(ctx context.Context, dir string, onBatch func(ctx context.Context)) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if strings.TrimSpace(dir) == "" {
		return errors.New("watch directory is required")
	}
	if onBatch == nil {
		return errors.New("batch callback is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errs.Wrapf(err, "watch %s", dir)
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "scanner.watcher"), slog.String("dir", dir))
	logging.Info(logCtx, "watching feeder directory")

	var settle *time.Timer
	var settleCh <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if strings.HasSuffix(event.Name, interpret.QrcodeSidecarSuffix) ||
				strings.HasSuffix(event.Name, interpret.MarksSidecarSuffix) {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(settleDelay)
				settleCh = settle.C
			} else {
				if !settle.Stop() {
					<-settle.C
				}
				settle.Reset(settleDelay)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "watch error", slog.String("error", err.Error()))

		case <-settleCh:
			settle = nil
			settleCh = nil
			onBatch(ctx)
		}
	}
}
