// Package maintenance implements the cron hook's bookkeeping: expired-key
// sweeping, log backlog trimming and the run counter. It runs either from
// the POST /cron endpoint or on an internal ticker.
package maintenance

import (
	"context"
	"strconv"
	"time"

	"github.com/Regdarim/arni-worker/internal/kv"
	log "github.com/Regdarim/arni-worker/internal/logging"
)

const (
	// LogKeyPrefix is the key namespace of the request/event log.
	LogKeyPrefix = "log:"
	// CounterKey persists the number of completed maintenance runs.
	CounterKey = "cron_runs"
	// LastRunKey persists the completion time of the latest run.
	LastRunKey = "last_cron"

	// maxLogBacklog bounds how many log entries survive a run even
	// before their TTL fires.
	maxLogBacklog = 1000
)

// Report summarizes one maintenance run.
type Report struct {
	SweptKeys     int64  `json:"swept_keys"`
	PrunedLogs    int    `json:"pruned_logs"`
	Runs          int64  `json:"runs"`
	CompletedAt   string `json:"completed_at"`
	DurationMilli int64  `json:"duration_ms"`
}

// Runner executes maintenance against the bound store.
type Runner struct {
	store kv.Store
}

// NewRunner wires the store.
func NewRunner(store kv.Store) *Runner {
	return &Runner{store: store}
}

// Run performs one maintenance pass. Individual steps are best-effort;
// a failing step is logged and the rest still run.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	if sweeper, ok := r.store.(kv.Sweeper); ok {
		swept, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Warnf("maintenance: sweep: %v", err)
		}
		report.SweptKeys = swept
	}

	pruned, err := r.pruneLogs(ctx)
	if err != nil {
		log.Warnf("maintenance: prune logs: %v", err)
	}
	report.PrunedLogs = pruned

	report.Runs = r.bumpCounter(ctx)
	report.CompletedAt = start.UTC().Format(time.RFC3339)
	report.DurationMilli = time.Since(start).Milliseconds()

	if err := r.store.Put(ctx, LastRunKey, report.CompletedAt, 0); err != nil {
		log.Warnf("maintenance: stamp last run: %v", err)
	}
	return report, nil
}

// pruneLogs drops the oldest log entries beyond the backlog cap. Keys
// are epoch-ms suffixed, so lexicographic order is oldest first.
func (r *Runner) pruneLogs(ctx context.Context) (int, error) {
	entries, err := r.store.List(ctx, LogKeyPrefix, 0)
	if err != nil {
		return 0, err
	}
	if len(entries) <= maxLogBacklog {
		return 0, nil
	}
	excess := entries[:len(entries)-maxLogBacklog]
	pruned := 0
	for _, e := range excess {
		if err := r.store.Delete(ctx, e.Name); err != nil {
			log.Debugf("maintenance: delete %s: %v", e.Name, err)
			continue
		}
		pruned++
	}
	return pruned, nil
}

func (r *Runner) bumpCounter(ctx context.Context) int64 {
	var runs int64
	if raw, ok, err := r.store.Get(ctx, CounterKey); err == nil && ok {
		runs, _ = strconv.ParseInt(raw, 10, 64)
	}
	runs++
	if err := r.store.Put(ctx, CounterKey, strconv.FormatInt(runs, 10), 0); err != nil {
		log.Warnf("maintenance: bump counter: %v", err)
	}
	return runs
}

// Loop runs maintenance every interval until ctx is canceled.
func (r *Runner) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := r.Run(ctx)
			if err != nil {
				log.Warnf("maintenance: run failed: %v", err)
				continue
			}
			log.Debugf("maintenance: run %d swept=%d pruned=%d", report.Runs, report.SweptKeys, report.PrunedLogs)
		}
	}
}
