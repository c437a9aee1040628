// Package analytics renders the aggregate usage record as an HTML
// dashboard. Pure presentation over the persisted stats; no state of
// its own.
package analytics

import (
	"html/template"
	"io"
	"sort"

	"github.com/Regdarim/arni-worker/internal/quota"
	"github.com/Regdarim/arni-worker/internal/usage"
)

// PageData is everything the dashboard template needs.
type PageData struct {
	Version     string
	Stats       *usage.Stats
	Quota       quota.Snapshot
	Providers   []Row
	Models      []Row
	TaskTypes   []Row
	WindowPct   int
	WeeklyPct   int
	HasActivity bool
}

// Row is one rendered table line.
type Row struct {
	Name   string
	Totals usage.Totals
}

func rows(m map[string]*usage.Totals) []Row {
	out := make([]Row, 0, len(m))
	for name, totals := range m {
		if totals == nil {
			continue
		}
		out = append(out, Row{Name: name, Totals: *totals})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Totals.Requests != out[j].Totals.Requests {
			return out[i].Totals.Requests > out[j].Totals.Requests
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func percent(used, limit int) int {
	if limit <= 0 {
		return 0
	}
	pct := used * 100 / limit
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Render writes the dashboard HTML for the given records.
func Render(w io.Writer, version string, stats *usage.Stats, snap quota.Snapshot) error {
	data := PageData{
		Version:     version,
		Stats:       stats,
		Quota:       snap,
		Providers:   rows(stats.Providers),
		Models:      rows(stats.Models),
		TaskTypes:   rows(stats.TaskTypes),
		WindowPct:   percent(snap.TokensUsed, snap.TokensLimit),
		WeeklyPct:   percent(snap.WeeklyTokensUsed, snap.WeeklyTokensLimit),
		HasActivity: stats.Totals.Requests > 0,
	}
	return page.Execute(w, data)
}

var page = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>arni-worker usage</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; background: #0f1117; color: #e6e6e6; }
h1 { font-size: 1.4rem; } h2 { font-size: 1.1rem; margin-top: 2rem; }
table { border-collapse: collapse; margin-top: .5rem; }
th, td { padding: .3rem .8rem; text-align: left; border-bottom: 1px solid #2a2d36; }
th { color: #9aa0ad; font-weight: 600; }
.bar { width: 320px; height: 10px; background: #2a2d36; border-radius: 5px; overflow: hidden; }
.bar span { display: block; height: 100%; background: #4f8ef7; }
.muted { color: #9aa0ad; font-size: .85rem; }
.savings { color: #39c26d; }
</style>
</head>
<body>
<h1>arni-worker <span class="muted">{{.Version}}</span></h1>

<h2>Rolling window</h2>
<div class="bar"><span style="width: {{.WindowPct}}%"></span></div>
<p class="muted">{{.Quota.TokensUsed}} / {{.Quota.TokensLimit}} tokens &middot; {{.Quota.TimeRemainingHours}}h remaining &middot; {{.Quota.Sessions}} sessions</p>

<h2>Weekly budget</h2>
<div class="bar"><span style="width: {{.WeeklyPct}}%"></span></div>
<p class="muted">{{.Quota.WeeklyTokensUsed}} / {{.Quota.WeeklyTokensLimit}} tokens &middot; resets in {{.Quota.DaysUntilWeekReset}}d</p>

{{if .HasActivity}}
<h2>Totals</h2>
<table>
<tr><th>Requests</th><th>Tokens in</th><th>Tokens out</th><th>Cost</th><th>Savings</th></tr>
<tr><td>{{.Stats.Totals.Requests}}</td><td>{{.Stats.Totals.TokensIn}}</td><td>{{.Stats.Totals.TokensOut}}</td><td>${{printf "%.4f" .Stats.Totals.Cost}}</td><td class="savings">${{printf "%.4f" .Stats.Totals.Savings}}</td></tr>
</table>

<h2>By provider</h2>
<table>
<tr><th>Provider</th><th>Requests</th><th>Tokens in</th><th>Tokens out</th><th>Cost</th></tr>
{{range .Providers}}<tr><td>{{.Name}}</td><td>{{.Totals.Requests}}</td><td>{{.Totals.TokensIn}}</td><td>{{.Totals.TokensOut}}</td><td>${{printf "%.4f" .Totals.Cost}}</td></tr>
{{end}}</table>

<h2>By model</h2>
<table>
<tr><th>Model</th><th>Requests</th><th>Tokens in</th><th>Tokens out</th><th>Cost</th></tr>
{{range .Models}}<tr><td>{{.Name}}</td><td>{{.Totals.Requests}}</td><td>{{.Totals.TokensIn}}</td><td>{{.Totals.TokensOut}}</td><td>${{printf "%.4f" .Totals.Cost}}</td></tr>
{{end}}</table>

<h2>By task type</h2>
<table>
<tr><th>Task</th><th>Requests</th><th>Tokens in</th><th>Tokens out</th><th>Cost</th></tr>
{{range .TaskTypes}}<tr><td>{{.Name}}</td><td>{{.Totals.Requests}}</td><td>{{.Totals.TokensIn}}</td><td>{{.Totals.TokensOut}}</td><td>${{printf "%.4f" .Totals.Cost}}</td></tr>
{{end}}</table>

<p class="muted">Last updated {{.Stats.LastUpdated}}</p>
{{else}}
<p class="muted">No usage recorded yet.</p>
{{end}}
</body>
</html>
`))
