package tracker

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
	"github.com/oshokin/uwb-tracker/internal/logger"
	"github.com/oshokin/uwb-tracker/internal/repository/roster"
)

// rosterSink applies a roster.
type rosterSink interface {
	ReloadRoster(ctx context.Context, tags []domain.Tag, anchors []domain.AnchorSite) error
}

// reloadObserver is told about every reload attempt.
type reloadObserver interface {
	RosterReloaded(err error)
}

// pathWatcher is implemented by repositories backed by files.
type pathWatcher interface {
	Paths() []string
}

// reloader polls the roster and pushes changes into the engine.
type reloader struct {
	repo     roster.Repository
	sink     rosterSink
	observer reloadObserver
	interval time.Duration
	trigger  chan struct{}

	// Last applied roster, owned by the goroutine running Run.
	tags    []domain.Tag
	anchors []domain.AnchorSite
	loaded  bool
}

func newReloader(repo roster.Repository, sink rosterSink, observer reloadObserver, interval time.Duration) *reloader {
	return &reloader{
		repo:     repo,
		sink:     sink,
		observer: observer,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests a reload without waiting for it.
func (r *reloader) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run reloads on every tick, trigger and roster file change until ctx ends.
func (r *reloader) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "roster")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	events, closeWatcher := r.watch(ctx)
	defer closeWatcher()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.trigger:
		case <-events:
		}

		if err := r.reload(ctx); err != nil {
			logger.ErrorKV(ctx, "Roster reload failed, keeping previous roster", "error", err)
		}
	}
}

// reload reads the roster and applies it when it changed.
func (r *reloader) reload(ctx context.Context) error {
	err := r.apply(ctx)
	if r.observer != nil {
		r.observer.RosterReloaded(err)
	}

	return err
}

func (r *reloader) apply(ctx context.Context) error {
	tags, err := r.repo.Tags(ctx)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}

	anchors, err := r.repo.Anchors(ctx)
	if err != nil {
		return fmt.Errorf("load anchors: %w", err)
	}

	if r.loaded && slices.Equal(tags, r.tags) && slices.Equal(anchors, r.anchors) {
		return nil
	}

	if err = r.sink.ReloadRoster(ctx, tags, anchors); err != nil {
		return fmt.Errorf("apply roster: %w", err)
	}

	r.tags, r.anchors, r.loaded = tags, anchors, true

	logger.InfoKV(ctx, "Roster applied", "tags", len(tags), "anchors", len(anchors))

	return nil
}

// watch subscribes to roster file changes. The returned channel never fires
// for repositories that are not file backed.
func (r *reloader) watch(ctx context.Context) (<-chan struct{}, func()) {
	files, ok := r.repo.(pathWatcher)
	if !ok {
		return nil, func() {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WarnKV(ctx, "File watching unavailable, relying on polling", "error", err)
		return nil, func() {}
	}

	// Directories are watched so that atomic replacements are seen.
	names := make(map[string]struct{})

	for _, path := range files.Paths() {
		names[filepath.Clean(path)] = struct{}{}

		if err = watcher.Add(filepath.Dir(path)); err != nil {
			logger.WarnKV(ctx, "Cannot watch roster directory", "path", path, "error", err)
		}
	}

	events := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if _, tracked := names[filepath.Clean(event.Name)]; !tracked {
					continue
				}

				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					select {
					case events <- struct{}{}:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logger.WarnKV(ctx, "Roster watcher error", "error", err)
			}
		}
	}()

	return events, func() {
		_ = watcher.Close()
		<-done
	}
}
