package entry

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// NeutralQualityScore is assigned to thinking entries whose callers reported
// no outcome metrics. Mid-range so metric-less entries neither dominate nor
// vanish from ranking.
const NeutralQualityScore = 0.5

// Payload is the category-specific content body for one entry. Exactly one
// of the category fields is set, matching Category.
type Payload struct {
	Category Category         `json:"category"`
	Thinking *ThinkingPayload `json:"thinking,omitempty"`
	Research *ResearchPayload `json:"research,omitempty"`
	Agent    *AgentPayload    `json:"agent,omitempty"`
}

// ThinkingPayload captures one reasoning trace.
type ThinkingPayload struct {
	Query        string           `json:"query"`
	RawThinking  string           `json:"raw_thinking"`
	KeyInsights  []string         `json:"key_insights,omitempty"`
	Decisions    []string         `json:"decision_points,omitempty"`
	Alternatives []string         `json:"alternative_approaches,omitempty"`
	Context      ExecutionContext `json:"execution_context"`
	Outcome      *OutcomeMetrics  `json:"outcome_metrics,omitempty"`
}

// ExecutionContext records how a trace was produced.
type ExecutionContext struct {
	DurationSeconds float64  `json:"duration_seconds"`
	ToolsUsed       []string `json:"tools_used,omitempty"`
	FilesTouched    []string `json:"files_touched,omitempty"`
}

// OutcomeMetrics are caller-supplied outcome measurements, each in [0,1].
type OutcomeMetrics struct {
	SuccessRate float64 `json:"success_rate"`
	Efficiency  float64 `json:"efficiency"`
}

// ResearchPayload captures one research session.
type ResearchPayload struct {
	Domain      string         `json:"domain"`
	Query       string         `json:"query"`
	Discoveries []Discovery    `json:"discoveries,omitempty"`
	Strategies  SearchStrategy `json:"search_strategies"`
	Synthesis   string         `json:"synthesis,omitempty"`
}

// Discovery is one literature discovery in a research session.
type Discovery struct {
	Title     string   `json:"title"`
	Authors   []string `json:"authors,omitempty"`
	Relevance float64  `json:"relevance,omitempty"`
}

// SearchStrategy records the queries issued and sources hit during a session.
type SearchStrategy struct {
	QueriesIssued []string `json:"queries_issued,omitempty"`
	SourcesHit    []string `json:"sources_hit,omitempty"`
}

// AgentPayload captures one agent execution.
type AgentPayload struct {
	AgentName    string             `json:"agent_name"`
	TriggeredBy  string             `json:"triggered_by,omitempty"`
	InputContext string             `json:"input_context,omitempty"`
	Trace        []TraceStep        `json:"execution_trace,omitempty"`
	Performance  PerformanceMetrics `json:"performance_metrics"`
	Results      map[string]string  `json:"output_results,omitempty"`
}

// TraceStep is one step in an agent execution trace.
type TraceStep struct {
	Step            int     `json:"step"`
	Action          string  `json:"action"`
	DurationSeconds float64 `json:"duration_seconds"`
	Success         bool    `json:"success"`
}

// PerformanceMetrics are reported by the agent, each already in [0,1].
type PerformanceMetrics struct {
	SuccessRate  float64 `json:"success_rate"`
	QualityScore float64 `json:"quality_score"`
}

// Validate checks that exactly the field matching Category is populated.
func (p *Payload) Validate() error {
	switch p.Category {
	case CategoryThinking:
		if p.Thinking == nil || p.Research != nil || p.Agent != nil {
			return fmt.Errorf("thinking payload must set exactly the thinking body")
		}
	case CategoryResearch:
		if p.Research == nil || p.Thinking != nil || p.Agent != nil {
			return fmt.Errorf("research payload must set exactly the research body")
		}
	case CategoryAgent:
		if p.Agent == nil || p.Thinking != nil || p.Research != nil {
			return fmt.Errorf("agent payload must set exactly the agent body")
		}
	default:
		return fmt.Errorf("unknown category %q", p.Category)
	}
	return nil
}

// Quality computes the category-specific quality score, clamped to [0,1].
// Deterministic, pure function of the payload.
func (p *Payload) Quality() float64 {
	switch p.Category {
	case CategoryThinking:
		if p.Thinking.Outcome == nil {
			return NeutralQualityScore
		}
		return clamp01(p.Thinking.Outcome.SuccessRate * p.Thinking.Outcome.Efficiency)
	case CategoryResearch:
		return clamp01(float64(len(p.Research.Discoveries)) / 10)
	case CategoryAgent:
		m := p.Agent.Performance
		return clamp01(m.SuccessRate * m.QualityScore)
	}
	return 0
}

// SearchableText concatenates the fields most indicative of content, used by
// the query engine for lexical matching.
func (p *Payload) SearchableText() string {
	var parts []string
	switch p.Category {
	case CategoryThinking:
		t := p.Thinking
		parts = append(parts, t.Query, t.RawThinking)
		parts = append(parts, t.KeyInsights...)
		parts = append(parts, t.Decisions...)
	case CategoryResearch:
		r := p.Research
		parts = append(parts, r.Domain, r.Query)
		for _, d := range r.Discoveries {
			parts = append(parts, d.Title)
		}
		parts = append(parts, r.Synthesis)
	case CategoryAgent:
		a := p.Agent
		parts = append(parts, a.AgentName, a.InputContext)
		for _, k := range sortedKeys(a.Results) {
			parts = append(parts, k, a.Results[k])
		}
	}
	return strings.Join(nonEmpty(parts), " ")
}

// OriginQuery returns the free-text request that produced this payload, or
// the closest equivalent for categories without a literal query.
func (p *Payload) OriginQuery() string {
	switch p.Category {
	case CategoryThinking:
		return p.Thinking.Query
	case CategoryResearch:
		return p.Research.Query
	case CategoryAgent:
		return p.Agent.InputContext
	}
	return ""
}

// Preview renders a short human-readable summary of the most salient fields.
func (p *Payload) Preview() string {
	var parts []string
	switch p.Category {
	case CategoryThinking:
		t := p.Thinking
		parts = []string{
			fmt.Sprintf("Query: %s", truncate(t.Query, 100)),
			fmt.Sprintf("Key Insights: %s", strings.Join(head(t.KeyInsights, 2), "; ")),
			fmt.Sprintf("Duration: %.0fs", t.Context.DurationSeconds),
		}
	case CategoryResearch:
		r := p.Research
		parts = []string{
			fmt.Sprintf("Domain: %s", r.Domain),
			fmt.Sprintf("Query: %s", truncate(r.Query, 100)),
			fmt.Sprintf("Papers Found: %d", len(r.Discoveries)),
		}
	case CategoryAgent:
		a := p.Agent
		parts = []string{
			fmt.Sprintf("Agent: %s", a.AgentName),
			fmt.Sprintf("Steps: %d", len(a.Trace)),
			fmt.Sprintf("Success Rate: %.2f", a.Performance.SuccessRate),
			fmt.Sprintf("Quality: %.2f", a.Performance.QualityScore),
		}
	}
	return strings.Join(parts, " | ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func head(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func nonEmpty(s []string) []string {
	out := s[:0]
	for _, v := range s {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
