package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"jitmcp/internal/domain"
)

const reloadDebounce = 200 * time.Millisecond

// Watcher reloads the configuration when its file changes on disk and
// hands the fresh config to onChange. Editors replace config files
// rather than rewriting them in place, so the parent directory is
// watched and events are matched against the config path.
type Watcher struct {
	loader     *Loader
	configPath string
	onChange   func(domain.Config)
	logger     *zap.Logger
}

// NewWatcher creates a watcher; Run starts it.
func NewWatcher(loader *Loader, configPath string, onChange func(domain.Config), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		loader:     loader,
		configPath: configPath,
		onChange:   onChange,
		logger:     logger.Named("config_watch"),
	}
}

// Run watches until ctx is canceled. Reload failures keep the previous
// config and are logged, never fatal.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.configPath)); err != nil {
		return err
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-watcher.Errors:
			if err != nil {
				w.logger.Warn("config watcher error", zap.Error(err))
			}
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(reloadDebounce)
		case <-timerChan(timer):
			timer = nil
			config, err := w.loader.Load(ctx, w.configPath)
			if err != nil {
				w.logger.Warn("config reload failed, keeping previous", zap.Error(err))
				continue
			}
			w.logger.Info("config reloaded", zap.String("path", w.configPath))
			w.onChange(config)
		}
	}
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
