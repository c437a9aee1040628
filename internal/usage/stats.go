package usage

import "time"

// StatsKey is the singleton key holding the aggregate record.
const StatsKey = "model_stats"

// Totals is one accumulation bucket.
type Totals struct {
	Requests  int     `json:"requests"`
	TokensIn  int     `json:"tokens_in"`
	TokensOut int     `json:"tokens_out"`
	Cost      float64 `json:"cost"`
}

func (t *Totals) add(ev Event) {
	t.Requests++
	t.TokensIn += ev.TokensIn
	t.TokensOut += ev.TokensOut
	t.Cost += ev.Cost
}

// GrandTotals extends Totals with the derived savings accumulator.
type GrandTotals struct {
	Totals
	Savings float64 `json:"savings"`
}

// Stats is the persisted singleton aggregate record. All maps are keyed
// by the raw event values; days use the UTC calendar date.
type Stats struct {
	Providers       map[string]*Totals        `json:"providers"`
	Models          map[string]*Totals        `json:"models"`
	TaskTypes       map[string]*Totals        `json:"task_types"`
	ModelTaskMatrix map[string]map[string]int `json:"model_task_matrix"`
	Daily           map[string]*Totals        `json:"daily"`
	Totals          GrandTotals               `json:"totals"`
	LastUpdated     string                    `json:"lastUpdated"`
}

// NewStats returns an empty aggregate record with all maps allocated.
func NewStats() *Stats {
	return &Stats{
		Providers:       make(map[string]*Totals),
		Models:          make(map[string]*Totals),
		TaskTypes:       make(map[string]*Totals),
		ModelTaskMatrix: make(map[string]map[string]int),
		Daily:           make(map[string]*Totals),
	}
}

// normalize allocates any maps lost to a sparse persisted record so that
// Apply never hits a nil map.
func (s *Stats) normalize() {
	if s.Providers == nil {
		s.Providers = make(map[string]*Totals)
	}
	if s.Models == nil {
		s.Models = make(map[string]*Totals)
	}
	if s.TaskTypes == nil {
		s.TaskTypes = make(map[string]*Totals)
	}
	if s.ModelTaskMatrix == nil {
		s.ModelTaskMatrix = make(map[string]map[string]int)
	}
	if s.Daily == nil {
		s.Daily = make(map[string]*Totals)
	}
}

func upsert(m map[string]*Totals, key string) *Totals {
	t, ok := m[key]
	if !ok {
		t = &Totals{}
		m[key] = t
	}
	return t
}

// Rates are the per-1000-token reference prices used for the savings
// metric: what every event would have cost on the premium tier.
type Rates struct {
	CostIn  float64
	CostOut float64
}

// ReferenceCost prices the event's tokens at the premium-tier rates.
func (r Rates) ReferenceCost(tokensIn, tokensOut int) float64 {
	return (float64(tokensIn)*r.CostIn + float64(tokensOut)*r.CostOut) / 1000
}

// Apply folds one event into every aggregate view. The savings delta is
// clamped at zero, so the accumulator never decreases.
func (s *Stats) Apply(ev Event, rates Rates, now time.Time) {
	s.normalize()

	upsert(s.Providers, ev.Provider).add(ev)
	upsert(s.Models, ev.Model).add(ev)
	upsert(s.TaskTypes, ev.TaskType).add(ev)

	row, ok := s.ModelTaskMatrix[ev.Model]
	if !ok {
		row = make(map[string]int)
		s.ModelTaskMatrix[ev.Model] = row
	}
	row[ev.TaskType]++

	upsert(s.Daily, now.UTC().Format("2006-01-02")).add(ev)

	s.Totals.add(ev)
	if saved := rates.ReferenceCost(ev.TokensIn, ev.TokensOut) - ev.Cost; saved > 0 {
		s.Totals.Savings += saved
	}

	s.LastUpdated = now.UTC().Format(time.RFC3339)
}
