package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/receipts-agent/constants"
)

// Config for the watch trigger.
type Config struct {
	Dir         string              // single directory, non-recursive
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> constants default
	SettleDelay time.Duration       // pause before reading a just-arrived file
	SeenTTL     time.Duration       // window in which one arrival is emitted once
}

type seenEntry struct {
	modTime time.Time
	at      time.Time
}

// StartWatcher subscribes to create/write events on cfg.Dir and emits each
// qualifying arrival exactly once per (path, mtime), after the settle delay.
// Create followed by write for the same arrival collapses into a single
// emission; the settle pause is tracked per path and never stalls the event
// subscription. Paths come out on the first channel, watcher-level faults on
// the second; both close when ctx is done.
func StartWatcher(ctx context.Context, cfg Config, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		logger.Error("watcher start failed: no directory provided")
		return nil, nil, errors.New("no directory provided")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = constants.AllowedExtensions
	}
	if cfg.SettleDelay < 500*time.Millisecond {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	if cfg.SeenTTL <= 0 {
		cfg.SeenTTL = 5 * time.Second
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}
	if err := fsw.Add(cfg.Dir); err != nil {
		logger.Error("failed to watch directory", "dir", cfg.Dir, "error", err)
		_ = fsw.Close()
		return nil, nil, err
	}

	w := &watcher{
		cfg:     cfg,
		logger:  logger,
		evCh:    make(chan string, 256),
		errCh:   make(chan error, 1),
		pending: map[string]time.Time{},
		seen:    map[string]seenEntry{},
	}

	go w.run(ctx, fsw)
	return w.evCh, w.errCh, nil
}

type watcher struct {
	cfg    Config
	logger *slog.Logger

	evCh  chan string
	errCh chan error

	pending map[string]time.Time // path -> settle deadline
	seen    map[string]seenEntry
}

// run owns all watcher state; nothing here is shared with other goroutines,
// so channel close at shutdown cannot race an in-flight emission.
func (w *watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.evCh)
	defer close(w.errCh)
	defer func() {
		if err := fsw.Close(); err != nil {
			w.logger.Warn("watcher close error", "error", err)
		}
	}()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	w.rearm(timer)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-fsw.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.qualifies(e.Name) {
				w.logger.Debug("watch.reject", "path", e.Name)
				continue
			}
			// New event for a pending path pushes its deadline out: the
			// file is still being written.
			w.pending[e.Name] = time.Now().Add(w.cfg.SettleDelay)
			w.rearm(timer)
		case <-timer.C:
			w.fireDue(ctx)
			w.rearm(timer)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
			select {
			case w.errCh <- err:
			default:
			}
		}
	}
}

// qualifies filters to accepted extensions without a transient marker
// prefix. Liveness of the path itself is re-checked after the settle delay.
func (w *watcher) qualifies(path string) bool {
	name := filepath.Base(path)
	if constants.IsTransientName(name) {
		return false
	}
	ext := constants.NormalizeExt(filepath.Ext(name))
	_, ok := w.cfg.AllowedExts[ext]
	return ok
}

// rearm points the timer at the earliest pending deadline, or far out when
// nothing is pending.
func (w *watcher) rearm(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	next := time.Hour
	if len(w.pending) > 0 {
		earliest := time.Time{}
		for _, dl := range w.pending {
			if earliest.IsZero() || dl.Before(earliest) {
				earliest = dl
			}
		}
		next = time.Until(earliest)
		if next < 0 {
			next = 0
		}
	}
	timer.Reset(next)
}

// fireDue settles every pending path whose delay has elapsed: re-check it is
// a live regular file, suppress duplicates for the same (path, mtime), then
// emit.
func (w *watcher) fireDue(ctx context.Context) {
	now := time.Now()
	w.pruneSeen(now)

	for path, dl := range w.pending {
		if dl.After(now) {
			continue
		}
		delete(w.pending, path)

		st, err := os.Stat(path)
		if err != nil || !st.Mode().IsRegular() {
			w.logger.Info("watch.skip", "path", path, "reason", "not a regular file")
			continue
		}
		if prev, ok := w.seen[path]; ok && prev.modTime.Equal(st.ModTime()) {
			w.logger.Debug("watch.duplicate_suppressed", "path", path)
			continue
		}
		w.seen[path] = seenEntry{modTime: st.ModTime(), at: now}

		w.logger.Info("watch.accepted", "path", path)
		select {
		case w.evCh <- path:
		case <-ctx.Done():
			return
		}
	}
}

func (w *watcher) pruneSeen(now time.Time) {
	for p, e := range w.seen {
		if now.Sub(e.at) > w.cfg.SeenTTL {
			delete(w.seen, p)
		}
	}
}
