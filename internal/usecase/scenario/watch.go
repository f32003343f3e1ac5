package scenario

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
)

// Watch loads path, hands the scenario to fn, and does so again every time the file is
// written. Files that fail to load are logged and skipped. Watch returns nil once ctx is done
// and fn's error if fn fails.
func Watch(ctx context.Context, path string, fn func(context.Context, Scenario) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if fn == nil {
		return errors.New("scenario callback is required")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("scenario file is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create file watcher")
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return errs.Wrapf(err, "watch %s", filepath.Dir(target))
	}

	logCtx := logging.WithAttrs(logging.WithComponent(ctx, "usecase.scenario.watch"), slog.String("file", target))
	reload := func() error {
		sc, err := LoadFile(target)
		if err != nil {
			logging.Warn(logCtx, "scenario reload skipped", slog.Any("err", errs.Loggable(err)))
			return nil
		}
		return fn(ctx, sc)
	}

	if err := reload(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if err := reload(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "file watcher error", slog.Any("err", errs.Loggable(err)))
		}
	}
}
