package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"scantab/constants"
)

// WatchConfig configures a recursive directory watch.
type WatchConfig struct {
	Root        string
	AllowedExts map[string]struct{}
	InitialScan bool          // if true, walk the root and emit existing files
	Debounce    time.Duration // coalesce rapid create/write bursts
}

// Watch watches Root recursively and emits paths of matching files as they
// appear or change. Existing files are emitted first when InitialScan is set.
// The returned channels close when ctx is cancelled.
func Watch(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Root == "" {
		return nil, nil, errors.New("watch root is required")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = constants.AllowedExtensions
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watch.create_error", "error", err)
		return nil, nil, err
	}

	pathCh := make(chan string, 256)
	errCh := make(chan error, 1)

	// Register the root and all subdirectories; emit existing files on request.
	walkErr := filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && allowedPath(path, cfg.AllowedExts) {
			select {
			case pathCh <- path:
			default:
				logger.Warn("ingest.watch.drop_initial", "path", path)
			}
		}
		return nil
	})
	if walkErr != nil {
		logger.Error("ingest.watch.add_root_error", "root", cfg.Root, "error", walkErr)
		_ = w.Close()
		return nil, nil, walkErr
	}

	go func() {
		defer close(pathCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watch.close_error", "error", err)
			}
		}()

		// pending and pathCh are touched only from this goroutine; the debounce
		// timer just signals through timerCh so flushes stay on the loop.
		var (
			timer   *time.Timer
			timerCh <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		pending := map[string]struct{}{}

		flush := func() {
			for p := range pending {
				select {
				case pathCh <- p:
				default:
					logger.Warn("ingest.watch.drop_event", "path", p)
				}
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-timerCh:
				flush()
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op.Has(fsnotify.Create) {
					// New subdirectories must be added to keep the watch recursive.
					if st, err := os.Stat(e.Name); err == nil && st.IsDir() {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("ingest.watch.add_dir_error", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !allowedPath(e.Name, cfg.AllowedExts) {
					continue
				}
				if e.Op.Has(fsnotify.Create) || e.Op.Has(fsnotify.Write) || e.Op.Has(fsnotify.Rename) {
					pending[e.Name] = struct{}{}
					if cfg.Debounce > 0 {
						if timer == nil {
							timer = time.NewTimer(cfg.Debounce)
							timerCh = timer.C
						} else {
							if !timer.Stop() {
								select {
								case <-timer.C:
								default:
								}
							}
							timer.Reset(cfg.Debounce)
						}
					} else {
						flush()
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return pathCh, errCh, nil
}

func allowedPath(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
