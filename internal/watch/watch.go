// Package watch reruns work when a file changes on disk.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/containerd/log"
	"github.com/fsnotify/fsnotify"

	"github.com/orizon-lang/iris/internal/errors"
)

// Watcher reports changes to one file. It watches the containing directory
// so that editors replacing the file by rename are seen too. Bursts of
// events within the delay collapse into one change.
type Watcher struct {
	w     *fsnotify.Watcher
	path  string
	delay time.Duration

	changes chan struct{}
	errs    chan error
	done    chan struct{}
}

// New starts watching path.
func New(path string, delay time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "watch")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "watch")
	}

	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "watch %s", path)
	}

	fw := &Watcher{
		w:       w,
		path:    abs,
		delay:   delay,
		changes: make(chan struct{}, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go fw.loop()

	return fw, nil
}

const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Rename

func (fw *Watcher) loop() {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)

	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}

			if filepath.Clean(ev.Name) != fw.path || ev.Op&relevant == 0 {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(fw.delay)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}

				timer.Reset(fw.delay)
			}

			fire = timer.C

		case <-fire:
			fire = nil

			select {
			case fw.changes <- struct{}{}:
			default:
			}

		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}

			select {
			case fw.errs <- err:
			default:
			}

		case <-fw.done:
			return
		}
	}
}

func (fw *Watcher) Changes() <-chan struct{} { return fw.changes }
func (fw *Watcher) Errors() <-chan error     { return fw.errs }

func (fw *Watcher) Close() error {
	close(fw.done)
	return fw.w.Close()
}

// Run calls fn once and again after every change to path, until ctx is
// done. Failures of fn are logged and do not stop the loop.
func Run(ctx context.Context, path string, delay time.Duration, fn func(context.Context) error) error {
	fw, err := New(path, delay)
	if err != nil {
		return err
	}
	defer fw.Close()

	logger := log.G(ctx).WithField("path", path)

	run := func() {
		if err := fn(ctx); err != nil {
			logger.WithError(err).Error("rebuild failed")
		}
	}

	run()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fw.Changes():
			logger.Info("changed, rebuilding")
			run()
		case err := <-fw.Errors():
			logger.WithError(err).Warn("watch error")
		}
	}
}
