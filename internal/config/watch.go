package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const reloadDelay = 200 * time.Millisecond

// Reload loads and validates the file at path and, when both succeed, makes
// it the active config and runs the RegisterOnReload callbacks. On error the
// active config is left untouched.
func Reload(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("rejected: %w", err)
	}
	Set(cfg)
	notifyReload(cfg)
	return nil
}

// debouncer coalesces bursts of fsnotify events (editors often write twice).
type debouncer struct {
	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
	fn    func()
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Watch follows the config file through Viper and hot-reloads it until ctx
// is done. Run it in a goroutine.
func Watch(ctx context.Context) {
	path := filepath.Clean(Path())
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		slog.Warn("config watch disabled", "path", path, "error", err)
		return
	}

	d := &debouncer{delay: reloadDelay, fn: func() {
		if err := Reload(path); err != nil {
			slog.Warn("config reload failed, keeping previous", "path", path, "error", err)
			return
		}
		slog.Info("config reloaded", "path", path, "rules", len(Get().Rules))
	}}
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Has(fsnotify.Write) || e.Has(fsnotify.Create) {
			if filepath.Clean(e.Name) == path {
				d.trigger()
			}
		}
	})
	v.WatchConfig()

	<-ctx.Done()
	d.stop()
}
