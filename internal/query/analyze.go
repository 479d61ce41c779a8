package query

import (
	"sort"
	"strings"
	"time"

	"github.com/hpungsan/trove/internal/entry"
	"github.com/hpungsan/trove/internal/index"
)

// Analyzer aggregates cached entries over a time window. Read-only, built on
// the same scan-then-load pipeline as Search; unreadable entries are skipped
// and never counted, so averages are over loaded entries only.
type Analyzer struct {
	engine *Engine
}

// NewAnalyzer creates an analyzer sharing the engine's index and store.
func NewAnalyzer(eng *Engine) *Analyzer {
	return &Analyzer{engine: eng}
}

// InsightCount is one tallied insight string.
type InsightCount struct {
	Insight string `json:"insight"`
	Count   int    `json:"count"`
}

// DomainStats summarizes one research domain.
type DomainStats struct {
	Count            int     `json:"count"`
	TotalDiscoveries int     `json:"total_discoveries"`
	AvgQuality       float64 `json:"avg_quality"`
}

// AgentStats summarizes one agent's executions. Durations are the summed
// trace-step durations per execution, in seconds.
type AgentStats struct {
	ExecutionCount int     `json:"execution_count"`
	AvgQuality     float64 `json:"avg_quality"`
	BestScore      float64 `json:"best_score"`
	AvgDuration    float64 `json:"avg_duration"`
	MinDuration    float64 `json:"min_duration"`
	MaxDuration    float64 `json:"max_duration"`
}

// InsightFrequency tallies extracted insight strings across thinking entries
// from the last N days, most frequent first. Case-insensitive tally; the
// first-seen casing is reported.
func (a *Analyzer) InsightFrequency(days int) ([]InsightCount, error) {
	counts := make(map[string]int)
	casing := make(map[string]string)

	err := a.each(entry.CategoryThinking, days, func(_ *entry.Entry, p *entry.Payload) {
		for _, insight := range p.Thinking.KeyInsights {
			key := strings.ToLower(strings.TrimSpace(insight))
			if key == "" {
				continue
			}
			if counts[key] == 0 {
				casing[key] = strings.TrimSpace(insight)
			}
			counts[key]++
		}
	})
	if err != nil {
		return nil, err
	}

	results := make([]InsightCount, 0, len(counts))
	for key, n := range counts {
		results = append(results, InsightCount{Insight: casing[key], Count: n})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Insight < results[j].Insight
	})
	return results, nil
}

// DomainPopularity tallies research entries per domain from the last N days.
// Discovery totals serve as a crude success proxy per domain.
func (a *Analyzer) DomainPopularity(days int) (map[string]DomainStats, error) {
	counts := make(map[string]int)
	discoveries := make(map[string]int)
	qualitySums := make(map[string]float64)

	err := a.each(entry.CategoryResearch, days, func(e *entry.Entry, p *entry.Payload) {
		domain := p.Research.Domain
		counts[domain]++
		discoveries[domain] += len(p.Research.Discoveries)
		qualitySums[domain] += e.QualityScore
	})
	if err != nil {
		return nil, err
	}

	results := make(map[string]DomainStats, len(counts))
	for domain, n := range counts {
		results[domain] = DomainStats{
			Count:            n,
			TotalDiscoveries: discoveries[domain],
			AvgQuality:       qualitySums[domain] / float64(n),
		}
	}
	return results, nil
}

// AgentPerformance groups agent entries from the last N days by agent name.
// Pure aggregation, no ranking.
func (a *Analyzer) AgentPerformance(days int) (map[string]AgentStats, error) {
	stats := make(map[string]AgentStats)

	err := a.each(entry.CategoryAgent, days, func(e *entry.Entry, p *entry.Payload) {
		var duration float64
		for _, step := range p.Agent.Trace {
			duration += step.DurationSeconds
		}

		name := p.Agent.AgentName
		s, seen := stats[name]
		if !seen {
			s.MinDuration = duration
			s.MaxDuration = duration
			s.BestScore = e.QualityScore
		}

		// AvgQuality and AvgDuration carry running sums until the end.
		s.ExecutionCount++
		s.AvgQuality += e.QualityScore
		s.AvgDuration += duration
		if e.QualityScore > s.BestScore {
			s.BestScore = e.QualityScore
		}
		if duration < s.MinDuration {
			s.MinDuration = duration
		}
		if duration > s.MaxDuration {
			s.MaxDuration = duration
		}
		stats[name] = s
	})
	if err != nil {
		return nil, err
	}

	for name, s := range stats {
		s.AvgQuality /= float64(s.ExecutionCount)
		s.AvgDuration /= float64(s.ExecutionCount)
		stats[name] = s
	}
	return stats, nil
}

// each scans one category over the window and applies fn to every entry
// whose payload loads cleanly.
func (a *Analyzer) each(category entry.Category, days int, fn func(*entry.Entry, *entry.Payload)) error {
	filter := index.Filter{Categories: []entry.Category{category}}
	if days > 0 {
		filter.Since = time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	}

	candidates, err := index.Scan(a.engine.db, filter)
	if err != nil {
		return err
	}

	for i := range candidates {
		e := &candidates[i]
		p, ok := a.engine.load(e)
		if !ok {
			continue
		}
		fn(e, p)
	}
	return nil
}
