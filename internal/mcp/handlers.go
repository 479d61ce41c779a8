package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/trove/internal/cache"
	"github.com/hpungsan/trove/internal/entry"
	"github.com/hpungsan/trove/internal/errors"
	"github.com/hpungsan/trove/internal/query"
	"github.com/hpungsan/trove/internal/reaper"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	cache    *cache.Cache
	engine   *query.Engine
	analyzer *query.Analyzer
	reaper   *reaper.Reaper
}

// NewHandlers creates a Handlers instance over one shared cache.
func NewHandlers(c *cache.Cache) *Handlers {
	eng := query.New(c.DB(), c.PayloadStore())
	return &Handlers{
		cache:    c,
		engine:   eng,
		analyzer: query.NewAnalyzer(eng),
		reaper:   reaper.New(c),
	}
}

// Request types for each tool

// SearchRequest represents the arguments for cache_search.
type SearchRequest struct {
	Query        string   `json:"query"`
	Category     string   `json:"category,omitempty"`
	Days         int      `json:"days,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	MinRelevance *float64 `json:"min_relevance,omitempty"`
}

// RecentRequest represents the arguments for cache_recent.
type RecentRequest struct {
	Hours    int    `json:"hours,omitempty"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// SimilarRequest represents the arguments for cache_similar.
type SimilarRequest struct {
	ID    string `json:"id"`
	Limit int    `json:"limit,omitempty"`
}

// GetRequest represents the arguments for cache_get.
type GetRequest struct {
	ID string `json:"id"`
}

// PutThinkingRequest represents the arguments for cache_put_thinking.
type PutThinkingRequest struct {
	Query           string   `json:"query"`
	TraceText       string   `json:"trace_text"`
	ToolsUsed       []string `json:"tools_used,omitempty"`
	FilesTouched    []string `json:"files_touched,omitempty"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
	SuccessRate     *float64 `json:"success_rate,omitempty"`
	Efficiency      *float64 `json:"efficiency,omitempty"`
	SessionID       string   `json:"session_id,omitempty"`
}

// PutResearchRequest represents the arguments for cache_put_research.
type PutResearchRequest struct {
	Domain        string            `json:"domain"`
	Query         string            `json:"query"`
	Discoveries   []entry.Discovery `json:"discoveries,omitempty"`
	QueriesIssued []string          `json:"queries_issued,omitempty"`
	SourcesHit    []string          `json:"sources_hit,omitempty"`
	Synthesis     string            `json:"synthesis,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
}

// PutAgentRequest represents the arguments for cache_put_agent.
type PutAgentRequest struct {
	AgentName    string            `json:"agent_name"`
	TriggeredBy  string            `json:"triggered_by,omitempty"`
	InputContext string            `json:"input_context,omitempty"`
	Steps        []entry.TraceStep `json:"steps,omitempty"`
	SuccessRate  float64           `json:"success_rate,omitempty"`
	QualityScore float64           `json:"quality_score,omitempty"`
	Results      map[string]string `json:"results,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
}

// CleanupRequest represents the arguments for cache_cleanup.
type CleanupRequest struct {
	Days int `json:"days,omitempty"`
}

// AnalyzeRequest represents the arguments for cache_analyze.
type AnalyzeRequest struct {
	Kind string `json:"kind"`
	Days int    `json:"days,omitempty"`
}

// ExportRequest represents the arguments for cache_export.
type ExportRequest struct {
	Path     string `json:"path,omitempty"`
	Category string `json:"category,omitempty"`
	Days     int    `json:"days,omitempty"`
}

// parseCategories turns an optional single-category argument into a filter.
func parseCategories(s string) ([]entry.Category, error) {
	if s == "" {
		return nil, nil
	}
	c, err := entry.ParseCategory(s)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	return []entry.Category{c}, nil
}

// Handler implementations

// HandleSearch handles the cache_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	categories, err := parseCategories(input.Category)
	if err != nil {
		return errorResult(err), nil
	}

	results, err := h.engine.Search(query.SearchInput{
		Query:         input.Query,
		Categories:    categories,
		TimeRangeDays: input.Days,
		Limit:         input.Limit,
		MinRelevance:  input.MinRelevance,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"results": results, "count": len(results)})
}

// HandleRecent handles the cache_recent tool call.
func (h *Handlers) HandleRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecentRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	categories, err := parseCategories(input.Category)
	if err != nil {
		return errorResult(err), nil
	}

	hours := input.Hours
	if hours <= 0 {
		hours = 24
	}

	results, err := h.engine.Recent(hours, categories, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"results": results, "count": len(results)})
}

// HandleSimilar handles the cache_similar tool call.
func (h *Handlers) HandleSimilar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SimilarRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	results, err := h.engine.Similar(input.ID, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"results": results, "count": len(results)})
}

// HandleGet handles the cache_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	e, p, err := h.cache.Get(input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"id":            e.ID,
		"category":      e.Category,
		"timestamp":     e.Timestamp,
		"session_id":    e.SessionID,
		"quality_score": e.QualityScore,
		"tags":          e.Tags,
		"payload":       p,
	})
}

// HandleStats handles the cache_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.cache.Stats()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"per_category": stats})
}

// HandleCleanup handles the cache_cleanup tool call.
func (h *Handlers) HandleCleanup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CleanupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var result *reaper.Result
	if input.Days > 0 {
		result, err = h.reaper.RunOnceOlderThan(ctx, input.Days)
	} else {
		result, err = h.reaper.RunOnce(ctx)
	}
	if err != nil {
		return errorResult(err), nil
	}

	errMsgs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errMsgs = append(errMsgs, e.Error())
	}
	return successResult(map[string]any{
		"deleted_count": result.DeletedCount,
		"freed_bytes":   result.FreedBytes,
		"errors":        errMsgs,
	})
}

// HandlePutThinking handles the cache_put_thinking tool call.
func (h *Handlers) HandlePutThinking(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PutThinkingRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var outcome *entry.OutcomeMetrics
	if input.SuccessRate != nil || input.Efficiency != nil {
		if input.SuccessRate == nil || input.Efficiency == nil {
			return errorResult(errors.NewInvalidRequest("success_rate and efficiency must be set together")), nil
		}
		outcome = &entry.OutcomeMetrics{
			SuccessRate: *input.SuccessRate,
			Efficiency:  *input.Efficiency,
		}
	}

	id, err := h.cache.PutThinking(cache.PutThinkingInput{
		Query:           input.Query,
		TraceText:       input.TraceText,
		ToolsUsed:       input.ToolsUsed,
		FilesTouched:    input.FilesTouched,
		DurationSeconds: input.DurationSeconds,
		Outcome:         outcome,
		SessionID:       input.SessionID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"id": id})
}

// HandlePutResearch handles the cache_put_research tool call.
func (h *Handlers) HandlePutResearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PutResearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	id, err := h.cache.PutResearch(cache.PutResearchInput{
		Domain:      input.Domain,
		Query:       input.Query,
		Discoveries: input.Discoveries,
		Strategies: entry.SearchStrategy{
			QueriesIssued: input.QueriesIssued,
			SourcesHit:    input.SourcesHit,
		},
		Synthesis: input.Synthesis,
		SessionID: input.SessionID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"id": id})
}

// HandlePutAgent handles the cache_put_agent tool call.
func (h *Handlers) HandlePutAgent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PutAgentRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	id, err := h.cache.PutAgentExecution(cache.PutAgentInput{
		AgentName:    input.AgentName,
		TriggeredBy:  input.TriggeredBy,
		InputContext: input.InputContext,
		Steps:        input.Steps,
		Performance: entry.PerformanceMetrics{
			SuccessRate:  input.SuccessRate,
			QualityScore: input.QualityScore,
		},
		Results:   input.Results,
		SessionID: input.SessionID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"id": id})
}

// HandleAnalyze handles the cache_analyze tool call.
func (h *Handlers) HandleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnalyzeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	days := input.Days
	if days <= 0 {
		days = 30
	}

	switch input.Kind {
	case "insight_frequency":
		counts, err := h.analyzer.InsightFrequency(days)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(map[string]any{"kind": input.Kind, "insights": counts})
	case "domain_popularity":
		stats, err := h.analyzer.DomainPopularity(days)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(map[string]any{"kind": input.Kind, "domains": stats})
	case "agent_performance":
		stats, err := h.analyzer.AgentPerformance(days)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(map[string]any{"kind": input.Kind, "agents": stats})
	}
	return errorResult(errors.NewInvalidRequest("unknown kind (valid: insight_frequency, domain_popularity, agent_performance)")), nil
}

// HandleExport handles the cache_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	categories, err := parseCategories(input.Category)
	if err != nil {
		return errorResult(err), nil
	}

	var since int64
	if input.Days > 0 {
		since = time.Now().Add(-time.Duration(input.Days) * 24 * time.Hour).Unix()
	}

	result, err := h.cache.Export(cache.ExportInput{
		Path:       input.Path,
		Categories: categories,
		Since:      since,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if tErr, ok := err.(*errors.TroveError); ok {
		errorObj := map[string]any{
			"code":    tErr.Code,
			"message": tErr.Message,
			"status":  tErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if tErr.Code != errors.ErrInternal && tErr.Details != nil {
			errorObj["details"] = tErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
