package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/trove/internal/cache"
	"github.com/hpungsan/trove/internal/entry"
	"github.com/hpungsan/trove/internal/errors"
	"github.com/hpungsan/trove/internal/query"
	"github.com/hpungsan/trove/internal/reaper"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	cache    *cache.Cache
	engine   *query.Engine
	analyzer *query.Analyzer
	reaper   *reaper.Reaper
	renderer *Renderer
}

// NewWebHandlers creates the route handlers over one shared cache.
func NewWebHandlers(c *cache.Cache, renderer *Renderer) *Handlers {
	eng := query.New(c.DB(), c.PayloadStore())
	return &Handlers{
		cache:    c,
		engine:   eng,
		analyzer: query.NewAnalyzer(eng),
		reaper:   reaper.New(c),
		renderer: renderer,
	}
}

// HandleRecent handles GET /entries, the newest-entries browser.
func (h *Handlers) HandleRecent(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	categories, err := categoriesParam(category)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	hours := parseIntParam(r, "hours", 7*24)
	limit := parseIntParam(r, "limit", 50)

	results, err := h.engine.Recent(hours, categories, limit)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "recent", RecentPageData{
		PageData: PageData{
			Title:   "Entries",
			Version: h.renderer.version,
			Nav:     "entries",
		},
		Results:  results,
		Category: category,
		Hours:    hours,
	})
}

// HandleSearch handles GET /entries/search, relevance-ranked search.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")

	data := SearchPageData{
		PageData: PageData{
			Title:   "Search",
			Version: h.renderer.version,
			Nav:     "search",
		},
		Query:    q,
		Category: category,
		HasQuery: q != "",
	}

	if q == "" {
		h.renderer.renderPage(w, "search", data)
		return
	}

	categories, err := categoriesParam(category)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	results, err := h.engine.Search(query.SearchInput{
		Query:         q,
		Categories:    categories,
		TimeRangeDays: parseIntParam(r, "days", 0),
		Limit:         parseIntParam(r, "limit", 20),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data.Results = results
	h.renderer.renderPage(w, "search", data)
}

// HandleStats handles GET /entries/stats, the dashboard.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.Stats()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	agents, err := h.analyzer.AgentPerformance(30)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	domains, err := h.analyzer.DomainPopularity(30)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	rows := make([]CategoryRow, 0, len(entry.Categories))
	for _, c := range entry.Categories {
		rows = append(rows, CategoryRow{Category: string(c), Stats: stats[c]})
	}

	h.renderer.renderPage(w, "stats", StatsPageData{
		PageData: PageData{
			Title:   "Stats",
			Version: h.renderer.version,
			Nav:     "stats",
		},
		Categories: rows,
		Agents:     agents,
		Domains:    domains,
	})
}

// HandleDetail handles GET /entries/{id}, a single entry view.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("entry ID is required"))
		return
	}

	e, p, err := h.cache.Get(id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData: PageData{
			Title:   id,
			Version: h.renderer.version,
			Nav:     "entries",
		},
		Entry:        e,
		Payload:      p,
		RenderedHTML: renderMarkdown(detailBody(p)),
	})
}

// HandleCleanup handles POST /entries/cleanup, one reap pass.
func (h *Handlers) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	var result *reaper.Result
	var err error
	if raw := r.FormValue("older_than_days"); raw != "" {
		days, convErr := strconv.Atoi(raw)
		if convErr != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		result, err = h.reaper.RunOnceOlderThan(r.Context(), days)
	} else {
		result, err = h.reaper.RunOnce(r.Context())
	}
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		errMsgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			errMsgs = append(errMsgs, e.Error())
		}
		renderJSON(w, http.StatusOK, map[string]any{
			"deleted_count": result.DeletedCount,
			"freed_bytes":   result.FreedBytes,
			"errors":        errMsgs,
		})
		return
	}

	// Default: redirect back to the dashboard
	http.Redirect(w, r, "/entries/stats", http.StatusFound)
}

// detailBody picks the long-form text of a payload for markdown rendering.
func detailBody(p *entry.Payload) string {
	switch p.Category {
	case entry.CategoryThinking:
		return p.Thinking.RawThinking
	case entry.CategoryResearch:
		return p.Research.Synthesis
	case entry.CategoryAgent:
		return p.Agent.InputContext
	}
	return ""
}

// categoriesParam turns an optional category query parameter into a filter.
func categoriesParam(s string) ([]entry.Category, error) {
	if s == "" {
		return nil, nil
	}
	c, err := entry.ParseCategory(s)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	return []entry.Category{c}, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
