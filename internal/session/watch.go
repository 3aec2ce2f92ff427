package session

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"specforge/internal/orchestrator"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 300 * time.Millisecond

// CycleFunc observes each cycle run by Watch.
type CycleFunc func(report *orchestrator.Report, err error)

// Watch runs a cycle for specFile immediately and again every time the file
// is rewritten, until ctx is canceled. Each rerun uses the file's full
// specification (base features plus every increment). Failed cycles and
// unreadable spec files are reported and watching continues.
func (s *Session) Watch(ctx context.Context, specFile string, debounce time.Duration, onCycle CycleFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target, err := filepath.Abs(specFile)
	if err != nil {
		return fmt.Errorf("failed to resolve spec file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	logger := s.watchLogger.With(zap.String("spec_file", target))
	trigger := make(chan struct{}, 1)
	g, gctx := errgroup.WithContext(ctx)

	// Event pump: debounce writes to the spec file into single triggers.
	g.Go(func() error {
		var timer *time.Timer
		var fire <-chan time.Time
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-gctx.Done():
				return nil

			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				logger.Debug("Spec file event", zap.String("op", ev.Op.String()))
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C

			case werr, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logger.Warn("Watcher error", zap.Error(werr))

			case <-fire:
				fire = nil
				select {
				case trigger <- struct{}{}:
				default:
				}
			}
		}
	})

	// Cycle loop: one cycle at a time, in order.
	g.Go(func() error {
		s.watchCycle(gctx, target, logger, onCycle)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-trigger:
				logger.Info("Spec file changed, running cycle")
				s.watchCycle(gctx, target, logger, onCycle)
			}
		}
	})

	return g.Wait()
}

func (s *Session) watchCycle(ctx context.Context, specFile string, logger *zap.Logger, onCycle CycleFunc) {
	file, err := LoadSpecFile(specFile)
	if err != nil {
		logger.Warn("Spec file unusable, waiting for the next change", zap.Error(err))
		return
	}

	if s.runID == "" {
		if err := s.Start(ctx, file.Full()); err != nil {
			logger.Error("Failed to start run", zap.Error(err))
			return
		}
	} else {
		s.Replace(file.Full())
	}

	report, err := s.Cycle(ctx)
	if onCycle != nil {
		onCycle(report, err)
	}
}
