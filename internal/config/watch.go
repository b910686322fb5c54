package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bryanchriswhite/toplevelctl/internal/logger"
)

// Watch reloads the file whenever it changes on disk and calls onChange
// with each successfully loaded configuration. It watches the directory so
// editors that replace the file by rename are seen too. Watch blocks until
// ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, onChange func(*Config)) error {
	log := logger.WithComponent("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.GetConfigDir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.GetConfigDir(), err)
	}
	target := filepath.Clean(m.configPath)

	for {
		select {
		case <-ctx.Done():
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
			cfg, err := m.Reload()
			if err != nil {
				log.Warn().Err(err).Msg("Ignoring config change")
				continue
			}
			log.Info().Str("path", m.configPath).Msg("Config reloaded")
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}
