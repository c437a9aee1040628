package usage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"github.com/Regdarim/arni-worker/internal/kv"
	log "github.com/Regdarim/arni-worker/internal/logging"
	"github.com/Regdarim/arni-worker/internal/quota"
)

// RawKeyPrefix is the key namespace for the raw event log. The epoch-ms
// suffix makes lexicographic key order approximately chronological.
const RawKeyPrefix = "usage:"

// Tracker absorbs usage events into the aggregate record, appends them
// to the raw log, and delegates premium-model events to the quota
// service. All internal bookkeeping is best-effort: store failures are
// logged and swallowed so they never break the caller's request.
type Tracker struct {
	store  kv.Store
	quota  *quota.Service
	rates  func() Rates
	rawTTL func() time.Duration
}

// NewTracker wires the tracker. rates and rawTTL are read per event so
// hot-reloaded configuration takes effect immediately.
func NewTracker(store kv.Store, quotaSvc *quota.Service, rates func() Rates, rawTTL func() time.Duration) *Tracker {
	return &Tracker{store: store, quota: quotaSvc, rates: rates, rawTTL: rawTTL}
}

// Bound reports whether a store is attached.
func (t *Tracker) Bound() bool { return t != nil && t.store != nil }

// Record folds ev into all aggregate views and returns the raw log key.
// Each call is a distinct accumulation; identical events are counted
// twice by design (no dedup).
func (t *Tracker) Record(ctx context.Context, ev Event) (string, error) {
	if !t.Bound() {
		return "", fmt.Errorf("usage: no store bound")
	}
	now := time.Now()

	if IsPremium(ev.Provider, ev.Model) {
		if _, err := t.quota.Record(ctx, ev.TokensIn, ev.TokensOut); err != nil {
			log.Debugf("usage: quota record skipped: %v", err)
		}
	}

	stats := t.loadStats(ctx)
	stats.Apply(ev, t.rates(), now)
	if raw, err := sonic.MarshalString(stats); err != nil {
		log.Debugf("usage: marshal stats: %v", err)
	} else if err := t.store.Put(ctx, StatsKey, raw, 0); err != nil {
		log.Debugf("usage: persist stats skipped: %v", err)
	}

	id := RawKeyPrefix + strconv.FormatInt(now.UnixMilli(), 10)
	if raw, err := sonic.MarshalString(ev); err != nil {
		log.Debugf("usage: marshal event: %v", err)
	} else if err := t.store.Put(ctx, id, raw, t.rawTTL()); err != nil {
		log.Debugf("usage: persist raw event skipped: %v", err)
	}
	return id, nil
}

func (t *Tracker) loadStats(ctx context.Context) *Stats {
	raw, ok, err := t.store.Get(ctx, StatsKey)
	if err != nil {
		log.Debugf("usage: read stats: %v", err)
		return NewStats()
	}
	if !ok {
		return NewStats()
	}
	stats := NewStats()
	if err := sonic.UnmarshalString(raw, stats); err != nil {
		// Malformed persisted JSON is treated as absent.
		log.Warnf("usage: malformed stats record, starting fresh: %v", err)
		return NewStats()
	}
	return stats
}

// Stats returns the current aggregate record, creating the default
// lazily when absent.
func (t *Tracker) Stats(ctx context.Context) (*Stats, error) {
	if !t.Bound() {
		return nil, fmt.Errorf("usage: no store bound")
	}
	stats := t.loadStats(ctx)
	stats.normalize()
	return stats, nil
}

// Recent returns up to limit raw usage events, newest first. Ordering
// relies on the store's lexicographic key order over epoch-ms keys.
func (t *Tracker) Recent(ctx context.Context, limit int) ([]Event, error) {
	if !t.Bound() {
		return nil, fmt.Errorf("usage: no store bound")
	}
	entries, err := t.store.List(ctx, RawKeyPrefix, 0)
	if err != nil {
		return nil, fmt.Errorf("usage: list raw events: %w", err)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	events := make([]Event, 0, len(entries))
	// Reversed: newest first.
	for i := len(entries) - 1; i >= 0; i-- {
		raw, ok, err := t.store.Get(ctx, entries[i].Name)
		if err != nil || !ok {
			continue
		}
		var ev Event
		if err := sonic.UnmarshalString(raw, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
