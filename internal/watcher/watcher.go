// Package watcher hot-reloads the reloadable configuration subset when
// the config file changes on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Regdarim/arni-worker/internal/config"
	log "github.com/Regdarim/arni-worker/internal/logging"
)

// debounce coalesces editor write bursts into one reload.
const debounce = 250 * time.Millisecond

// Watch monitors configPath and pushes the reloaded limits/rates into
// live until ctx is canceled. Only the reloadable subset is swapped;
// port, store DSN and the like require a restart.
func Watch(ctx context.Context, configPath string, live *config.Live) error {
	if configPath == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: create: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors often replace the file, which drops
	// a watch placed on the file itself.
	dir := filepath.Dir(configPath)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watcher: add %s: %w", dir, err)
	}

	var timer *time.Timer
	reloads := make(chan struct{}, 1)
	target := filepath.Clean(configPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reloads <- struct{}{}:
				default:
				}
			})
		case <-reloads:
			reload(configPath, live)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warnf("watcher: %v", err)
		}
	}
}

func reload(configPath string, live *config.Live) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Warnf("watcher: reload rejected, keeping current config: %v", err)
		return
	}
	old := live.Get()
	next := cfg.Snapshot()
	live.Set(next)
	for _, change := range diff(old, next) {
		log.Infof("watcher: config changed: %s", change)
	}
}

// diff lists the reloadable fields that changed, for the reload log line.
func diff(old, next config.Reloadable) []string {
	var changes []string
	if old.Quota.MaxTokensLimit != next.Quota.MaxTokensLimit {
		changes = append(changes, fmt.Sprintf("max-tokens-limit: %d -> %d", old.Quota.MaxTokensLimit, next.Quota.MaxTokensLimit))
	}
	if old.Quota.WeeklyTokensLimit != next.Quota.WeeklyTokensLimit {
		changes = append(changes, fmt.Sprintf("weekly-tokens-limit: %d -> %d", old.Quota.WeeklyTokensLimit, next.Quota.WeeklyTokensLimit))
	}
	if old.Quota.WindowDuration != next.Quota.WindowDuration {
		changes = append(changes, fmt.Sprintf("window-duration: %s -> %s", old.Quota.WindowDuration, next.Quota.WindowDuration))
	}
	if old.Usage.OpusCostIn != next.Usage.OpusCostIn {
		changes = append(changes, fmt.Sprintf("opus-cost-in: %g -> %g", old.Usage.OpusCostIn, next.Usage.OpusCostIn))
	}
	if old.Usage.OpusCostOut != next.Usage.OpusCostOut {
		changes = append(changes, fmt.Sprintf("opus-cost-out: %g -> %g", old.Usage.OpusCostOut, next.Usage.OpusCostOut))
	}
	if old.Usage.UsageTTLDays != next.Usage.UsageTTLDays {
		changes = append(changes, fmt.Sprintf("usage-ttl-days: %d -> %d", old.Usage.UsageTTLDays, next.Usage.UsageTTLDays))
	}
	if old.Usage.LogTTLDays != next.Usage.LogTTLDays {
		changes = append(changes, fmt.Sprintf("log-ttl-days: %d -> %d", old.Usage.LogTTLDays, next.Usage.LogTTLDays))
	}
	return changes
}
