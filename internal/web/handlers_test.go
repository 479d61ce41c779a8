package web

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hpungsan/trove/internal/cache"
	"github.com/hpungsan/trove/internal/config"
	"github.com/hpungsan/trove/internal/entry"
)

func setupTest(t *testing.T) *Handlers {
	t.Helper()
	cfg := config.DefaultConfig()
	c, err := cache.Open(t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}
	return NewWebHandlers(c, NewRenderer(templateSub, "test"))
}

// seedThinking stores a reasoning trace and returns its entry ID.
func seedThinking(t *testing.T, h *Handlers, query string) string {
	t.Helper()
	id, err := h.cache.PutThinking(cache.PutThinkingInput{
		Query:     query,
		TraceText: "Key insight: " + query + " maps onto goroutine scheduling.\nDecided to keep the fan-out bounded.",
	})
	if err != nil {
		t.Fatalf("seed thinking %q: %v", query, err)
	}
	return id
}

func seedAgent(t *testing.T, h *Handlers, name string) string {
	t.Helper()
	id, err := h.cache.PutAgentExecution(cache.PutAgentInput{
		AgentName:    name,
		InputContext: "Refactor the retry loop in the fetcher.",
		Steps: []entry.TraceStep{
			{Step: 1, Action: "read_file", DurationSeconds: 2.5, Success: true},
		},
		Performance: entry.PerformanceMetrics{SuccessRate: 0.9, QualityScore: 0.8},
	})
	if err != nil {
		t.Fatalf("seed agent %q: %v", name, err)
	}
	return id
}

// --- HandleRecent ---

func TestHandleRecent_Default(t *testing.T) {
	h := setupTest(t)
	seedThinking(t, h, "optimize database connection pooling")

	req := httptest.NewRequest("GET", "/entries", nil)
	rec := httptest.NewRecorder()
	h.HandleRecent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "optimize database connection pooling") {
		t.Error("expected entry preview in response")
	}
	if !strings.Contains(body, "thinking") {
		t.Error("expected category badge in response")
	}
}

func TestHandleRecent_Empty(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/entries", nil)
	rec := httptest.NewRecorder()
	h.HandleRecent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No entries in this window") {
		t.Error("expected empty state message")
	}
}

func TestHandleRecent_CategoryFilter(t *testing.T) {
	h := setupTest(t)
	seedThinking(t, h, "cache eviction heuristics")
	seedAgent(t, h, "code-reviewer")

	req := httptest.NewRequest("GET", "/entries?category=agent", nil)
	rec := httptest.NewRecorder()
	h.HandleRecent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "code-reviewer") {
		t.Error("expected agent entry in filtered results")
	}
	if strings.Contains(body, "cache eviction heuristics") {
		t.Error("did not expect thinking entry in agent-filtered results")
	}
}

func TestHandleRecent_InvalidCategory(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/entries?category=bogus", nil)
	rec := httptest.NewRecorder()
	h.HandleRecent(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRecent_InvalidLimitFallsBack(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/entries?limit=notanumber&hours=bad", nil)
	rec := httptest.NewRecorder()
	h.HandleRecent(rec, req)

	// Should not error, falls back to defaults
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// --- HandleSearch ---

func TestHandleSearch_EmptyQuery(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/entries/search", nil)
	rec := httptest.NewRecorder()
	h.HandleSearch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "search-form") && !strings.Contains(body, "form") {
		t.Error("expected search form in response")
	}
	if strings.Contains(body, "Nothing relevant found") {
		t.Error("empty query should not show the no-results message")
	}
}

func TestHandleSearch_WithQuery(t *testing.T) {
	h := setupTest(t)
	seedThinking(t, h, "database connection pooling strategies")

	req := httptest.NewRequest("GET", "/entries/search?q=database+connection+pooling", nil)
	rec := httptest.NewRecorder()
	h.HandleSearch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "database connection pooling strategies") {
		t.Error("expected matching entry in search results")
	}
}

func TestHandleSearch_NoResults(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/entries/search?q=zzzznonexistent", nil)
	rec := httptest.NewRecorder()
	h.HandleSearch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Nothing relevant found") {
		t.Error("expected no-results message")
	}
}

// --- HandleStats ---

func TestHandleStats(t *testing.T) {
	h := setupTest(t)
	seedThinking(t, h, "profiling allocations in hot paths")
	seedAgent(t, h, "test-runner")

	req := httptest.NewRequest("GET", "/entries/stats", nil)
	rec := httptest.NewRecorder()
	h.HandleStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, cat := range []string{"thinking", "research", "agent"} {
		if !strings.Contains(body, cat) {
			t.Errorf("expected category %q in stats page", cat)
		}
	}
	if !strings.Contains(body, "test-runner") {
		t.Error("expected agent performance row")
	}
}

// --- HandleDetail ---

func TestHandleDetail_Thinking(t *testing.T) {
	h := setupTest(t)
	id := seedThinking(t, h, "detail page rendering")

	req := httptest.NewRequest("GET", "/entries/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, id) {
		t.Error("expected entry ID in detail page")
	}
	if !strings.Contains(body, "detail page rendering") {
		t.Error("expected query text in detail page")
	}
	if !strings.Contains(body, "Trace") {
		t.Error("expected trace section")
	}
}

func TestHandleDetail_Agent(t *testing.T) {
	h := setupTest(t)
	id := seedAgent(t, h, "doc-writer")

	req := httptest.NewRequest("GET", "/entries/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "doc-writer") {
		t.Error("expected agent name in detail page")
	}
	if !strings.Contains(body, "read_file") {
		t.Error("expected trace step in detail page")
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/entries/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDetail_EmptyID(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/entries/", nil)
	req.SetPathValue("id", "")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- HandleCleanup ---

func TestHandleCleanup_MissingConfirm(t *testing.T) {
	h := setupTest(t)

	form := url.Values{}
	req := httptest.NewRequest("POST", "/entries/cleanup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleCleanup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCleanup_ConfirmFalse(t *testing.T) {
	h := setupTest(t)

	form := url.Values{"confirm": {"false"}}
	req := httptest.NewRequest("POST", "/entries/cleanup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleCleanup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCleanup_DefaultRedirect(t *testing.T) {
	h := setupTest(t)

	form := url.Values{"confirm": {"true"}}
	req := httptest.NewRequest("POST", "/entries/cleanup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleCleanup(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/entries/stats" {
		t.Errorf("Location = %q, want /entries/stats", loc)
	}
}

func TestHandleCleanup_JSONResponse(t *testing.T) {
	h := setupTest(t)

	form := url.Values{"confirm": {"true"}}
	req := httptest.NewRequest("POST", "/entries/cleanup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleCleanup(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["deleted_count"] != float64(0) {
		t.Errorf("deleted_count = %v, want 0", resp["deleted_count"])
	}
}

// --- Error rendering ---

func TestErrorRendering_JSONError(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/entries/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	errObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatal("expected error object in JSON response")
	}
	if errObj["status"] != float64(404) {
		t.Errorf("error.status = %v, want 404", errObj["status"])
	}
}

func TestErrorRendering_FullErrorPage(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/entries/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("full error page should contain layout")
	}
	if !strings.Contains(body, "404") {
		t.Error("error page should show status code")
	}
}

// --- Server routing ---

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest("GET", "/entries", nil)
	rec := httptest.NewRecorder()
	securityHeaders(inner).ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected Content-Security-Policy header")
	}
}

// --- Helper functions ---

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query    string
		name     string
		def      int
		expected int
	}{
		{"", "limit", 20, 20},
		{"limit=50", "limit", 20, 50},
		{"limit=bad", "limit", 20, 20},
		{"hours=72", "hours", 168, 72},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/?"+tt.query, nil)
		got := parseIntParam(req, tt.name, tt.def)
		if got != tt.expected {
			t.Errorf("parseIntParam(%q, %q, %d) = %d, want %d", tt.query, tt.name, tt.def, got, tt.expected)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.expected {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.expected)
		}
	}
}
