package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const reloadDebounce = 500 * time.Millisecond

// Watch delivers a freshly loaded Config whenever the config file changes
// on disk. Editors replace the file rather than rewrite it in place, so the
// watch is on the directory, filtered down to the config path. The channel
// closes when ctx is cancelled; only the newest pending config is kept.
func Watch(ctx context.Context) (<-chan *Config, error) {
	path := GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	updates := make(chan *Config, 1)
	go func() {
		defer watcher.Close()
		defer close(updates)

		debounce := time.NewTimer(reloadDebounce)
		if !debounce.Stop() {
			<-debounce.C
		}
		dirty := false

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != path {
					continue
				}
				dirty = true
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(reloadDebounce)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug().Err(err).Msg("config.Watch: watcher error")

			case <-debounce.C:
				if !dirty {
					continue
				}
				dirty = false
				cfg, err := Load()
				if err != nil {
					log.Debug().Err(err).Msg("config.Watch: reload failed, keeping previous config")
					continue
				}
				// Replace any update the consumer has not picked up yet.
				select {
				case <-updates:
				default:
				}
				updates <- cfg
			}
		}
	}()

	return updates, nil
}
