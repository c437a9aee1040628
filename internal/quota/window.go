// Package quota tracks usage against two nested token budgets: a rolling
// window (default 5 hours) that resets relative to its own start, and a
// calendar-week budget that resets every Monday 00:00 UTC. Resets are
// lazy: they are applied the next time state is read or updated, never by
// a timer.
package quota

import (
	"math"
	"time"
)

// State is the persisted singleton record. Derived fields live on
// Snapshot and are never written back.
type State struct {
	TokensUsed        int     `json:"tokensUsed"`
	TokensLimit       int     `json:"tokensLimit"`
	WindowStart       int64   `json:"windowStart"` // epoch-ms
	Sessions          int     `json:"sessions"`
	LastSession       *string `json:"lastSession"` // RFC3339, nil until first record
	WeeklyTokensUsed  int     `json:"weeklyTokensUsed"`
	WeeklyTokensLimit int     `json:"weeklyTokensLimit"`
	WeekStart         int64   `json:"weekStart"` // epoch-ms, Monday 00:00 UTC
}

// Snapshot is a reconciled State plus live remaining-time figures.
type Snapshot struct {
	State
	TimeRemainingMs    int64   `json:"timeRemainingMs"`
	TimeRemainingHours float64 `json:"timeRemainingHours"`
	DaysUntilWeekReset int     `json:"daysUntilWeekReset"`
}

// Limits parameterizes the two budgets.
type Limits struct {
	MaxTokens      int
	WeeklyMax      int
	WindowDuration time.Duration
}

// DefaultState returns a fresh record with both budgets untouched.
func DefaultState(limits Limits, now time.Time) State {
	return State{
		TokensLimit:       limits.MaxTokens,
		WindowStart:       now.UnixMilli(),
		WeeklyTokensLimit: limits.WeeklyMax,
		WeekStart:         WeekStartUTC(now).UnixMilli(),
	}
}

// WeekStartUTC returns the most recent Monday 00:00 UTC at or before now.
func WeekStartUTC(now time.Time) time.Time {
	now = now.UTC()
	day := now.Truncate(24 * time.Hour)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	return day.AddDate(0, 0, -offset)
}

// Reconcile applies the lazy window-expiry and week-rollover rules and
// refreshes the stored limits from configuration. Pure function of its
// inputs; callers needing durability must write the result back.
func Reconcile(s State, limits Limits, now time.Time) State {
	s.TokensLimit = limits.MaxTokens
	s.WeeklyTokensLimit = limits.WeeklyMax

	if now.UnixMilli()-s.WindowStart > limits.WindowDuration.Milliseconds() {
		s.TokensUsed = 0
		s.Sessions = 0
		s.WindowStart = now.UnixMilli()
	}

	currentWeek := WeekStartUTC(now).UnixMilli()
	if s.WeekStart < currentWeek {
		s.WeeklyTokensUsed = 0
		s.WeekStart = currentWeek
	}
	return s
}

// Read reconciles s and computes the derived remaining-time figures.
func Read(s State, limits Limits, now time.Time) Snapshot {
	s = Reconcile(s, limits, now)

	remaining := limits.WindowDuration.Milliseconds() - (now.UnixMilli() - s.WindowStart)
	if remaining < 0 {
		remaining = 0
	}

	const dayMs = 24 * int64(time.Hour/time.Millisecond)
	untilReset := s.WeekStart + 7*dayMs - now.UnixMilli()
	days := int((untilReset + dayMs - 1) / dayMs)

	return Snapshot{
		State:              s,
		TimeRemainingMs:    remaining,
		TimeRemainingHours: math.Round(float64(remaining)/3600000*10) / 10,
		DaysUntilWeekReset: days,
	}
}

// Record reconciles s, then adds tokensIn+tokensOut to both budgets,
// increments the session counter and stamps the session time.
// Concurrent Record calls against the same persisted record race
// (read-modify-write, last write wins); callers needing exactly-once
// accounting must serialize writes externally.
func Record(s State, limits Limits, now time.Time, tokensIn, tokensOut int) State {
	s = Reconcile(s, limits, now)

	total := tokensIn + tokensOut
	s.TokensUsed += total
	s.WeeklyTokensUsed += total
	s.Sessions++
	stamp := now.UTC().Format(time.RFC3339)
	s.LastSession = &stamp
	return s
}
