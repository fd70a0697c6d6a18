package shader

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 100 * time.Millisecond

// Reload is one re-read of the watched sources. Err is set when reading failed.
type Reload struct {
	Sources []Source
	Err     error
}

// Watcher re-runs a Loader whenever one of its files changes. It watches the
// parent directories so editors that save by rename are still seen.
type Watcher struct {
	loader   Loader
	files    map[string]bool
	debounce time.Duration
	log      *zap.Logger
	fs       *fsnotify.Watcher
	reloads  chan Reload
}

func NewWatcher(log *zap.Logger, loader Loader, debounce time.Duration) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	paths := loader.Paths()
	if len(paths) == 0 {
		return nil, fmt.Errorf("loader has no files to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w := &Watcher{
		loader:   loader,
		files:    map[string]bool{},
		debounce: debounce,
		log:      log,
		fs:       fsw,
		reloads:  make(chan Reload, 1),
	}
	dirs := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Reloads delivers the latest reload. Only the newest unread one is kept.
func (w *Watcher) Reloads() <-chan Reload {
	return w.reloads
}

// Run blocks until ctx is done and closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !w.files[abs] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug("shader source changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("shader watch error", zap.Error(err))
		case <-fire:
			fire = nil
			srcs, err := w.loader.Load()
			if err != nil {
				w.log.Warn("shader reload failed", zap.Error(err))
			} else {
				w.log.Info("shader sources reloaded", zap.Int("stages", len(srcs)))
			}
			w.publish(Reload{Sources: srcs, Err: err})
		}
	}
}

func (w *Watcher) publish(r Reload) {
	select {
	case <-w.reloads:
	default:
	}
	w.reloads <- r
}
