// Package usage folds individual usage events into running aggregate
// views and tracks premium-model consumption against the quota window.
package usage

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Event is a single usage report. Events are appended verbatim to a raw
// log and folded into the aggregate record; they are never read back for
// aggregation.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	TokensIn  int       `json:"tokens_in"`
	TokensOut int       `json:"tokens_out"`
	Cost      float64   `json:"cost"`
	TaskType  string    `json:"task_type"`
	Success   bool      `json:"success"`
}

// ParseEvent builds an Event from a raw JSON body. Missing or malformed
// fields are defaulted, never rejected: provider/model fall back to
// "unknown", task_type to "general", success to true unless explicitly
// false, and negative numbers are clamped to zero.
func ParseEvent(body []byte, now time.Time) Event {
	doc := gjson.ParseBytes(body)

	ev := Event{
		Timestamp: now,
		Provider:  "unknown",
		Model:     "unknown",
		TaskType:  "general",
		Success:   true,
	}
	if v := doc.Get("provider"); v.Type == gjson.String && v.Str != "" {
		ev.Provider = v.Str
	}
	if v := doc.Get("model"); v.Type == gjson.String && v.Str != "" {
		ev.Model = v.Str
	}
	if v := doc.Get("task_type"); v.Type == gjson.String && v.Str != "" {
		ev.TaskType = v.Str
	}
	if v := doc.Get("success"); v.Exists() && v.Type == gjson.False {
		ev.Success = false
	}
	if v := doc.Get("tokens_in"); v.Exists() && v.Int() > 0 {
		ev.TokensIn = int(v.Int())
	}
	if v := doc.Get("tokens_out"); v.Exists() && v.Int() > 0 {
		ev.TokensOut = int(v.Int())
	}
	if v := doc.Get("cost"); v.Exists() && v.Float() > 0 {
		ev.Cost = v.Float()
	}
	if v := doc.Get("timestamp"); v.Type == gjson.String {
		if ts, err := time.Parse(time.RFC3339, v.Str); err == nil {
			ev.Timestamp = ts
		}
	}
	return ev
}

// IsPremium reports whether the event should count against the quota
// window. The match is a name-based heuristic: the "anthropic" provider
// with any model whose name contains "opus" (case-insensitive). Keep the
// behavior here so a future explicit tag only touches this predicate.
func IsPremium(provider, model string) bool {
	return provider == "anthropic" && strings.Contains(strings.ToLower(model), "opus")
}
