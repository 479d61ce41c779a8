package cache

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/hpungsan/trove/internal/config"
	"github.com/hpungsan/trove/internal/entry"
	"github.com/hpungsan/trove/internal/errors"
	"github.com/hpungsan/trove/internal/index"
	"github.com/hpungsan/trove/internal/keywords"
	"github.com/hpungsan/trove/internal/store"
)

// Tag extraction bounds for write-time tagging.
const (
	maxWriteTags = 5
	minTagScore  = 0.1
)

// Cache is the single shared handle over the payload store and the metadata
// index. Construct it once at process start and pass it to collaborators.
type Cache struct {
	db    *sql.DB
	store *store.Store
	cfg   *config.Config

	// mu guards the write path so a reader never observes an index row
	// whose payload is not yet durably written.
	mu sync.Mutex
}

// Open initializes the cache under baseDir: the SQLite metadata index plus
// one payload directory per category.
func Open(baseDir string, cfg *config.Config) (*Cache, error) {
	db, err := index.Init(baseDir)
	if err != nil {
		return nil, err
	}
	index.ConfigurePool(db, cfg)

	st, err := store.New(baseDir, cfg.CompressionEnabled())
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db, store: st, cfg: cfg}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// DB exposes the metadata index handle for read-only collaborators.
func (c *Cache) DB() *sql.DB {
	return c.db
}

// PayloadStore exposes the payload store for read-only collaborators.
func (c *Cache) PayloadStore() *store.Store {
	return c.store
}

// Config returns the configuration the cache was opened with.
func (c *Cache) Config() *config.Config {
	return c.cfg
}

// PutThinkingInput contains parameters for PutThinking.
type PutThinkingInput struct {
	Query           string // required
	TraceText       string // required
	ToolsUsed       []string
	FilesTouched    []string
	DurationSeconds float64
	Outcome         *entry.OutcomeMetrics // nil means "no metrics reported"
	SessionID       string                // optional, generated when empty
}

// PutThinking stores one reasoning trace and returns its entry id.
// Insight, decision, and alternative lists are mined from the trace text.
func (c *Cache) PutThinking(in PutThinkingInput) (string, error) {
	if in.Query == "" {
		return "", errors.NewInvalidRequest("query is required")
	}
	if in.TraceText == "" {
		return "", errors.NewInvalidRequest("trace_text is required")
	}

	payload := &entry.Payload{
		Category: entry.CategoryThinking,
		Thinking: &entry.ThinkingPayload{
			Query:        in.Query,
			RawThinking:  in.TraceText,
			KeyInsights:  entry.ExtractInsights(in.TraceText),
			Decisions:    entry.ExtractDecisions(in.TraceText),
			Alternatives: entry.ExtractAlternatives(in.TraceText),
			Context: entry.ExecutionContext{
				DurationSeconds: in.DurationSeconds,
				ToolsUsed:       in.ToolsUsed,
				FilesTouched:    in.FilesTouched,
			},
			Outcome: in.Outcome,
		},
	}

	hash := store.QueryHash(in.Query)
	tags := keywords.Extract(in.Query, maxWriteTags, minTagScore)
	return c.put(payload, in.SessionID, &hash, tags)
}

// PutResearchInput contains parameters for PutResearch.
type PutResearchInput struct {
	Domain      string // required
	Query       string // required
	Discoveries []entry.Discovery
	Strategies  entry.SearchStrategy
	Synthesis   string
	SessionID   string
}

// PutResearch stores one research-session record and returns its entry id.
func (c *Cache) PutResearch(in PutResearchInput) (string, error) {
	if in.Domain == "" {
		return "", errors.NewInvalidRequest("domain is required")
	}
	if in.Query == "" {
		return "", errors.NewInvalidRequest("query is required")
	}

	payload := &entry.Payload{
		Category: entry.CategoryResearch,
		Research: &entry.ResearchPayload{
			Domain:      in.Domain,
			Query:       in.Query,
			Discoveries: in.Discoveries,
			Strategies:  in.Strategies,
			Synthesis:   in.Synthesis,
		},
	}

	tags := append([]string{in.Domain}, keywords.Extract(in.Query, maxWriteTags, minTagScore)...)
	return c.put(payload, in.SessionID, nil, dedupe(tags))
}

// PutAgentInput contains parameters for PutAgentExecution.
type PutAgentInput struct {
	AgentName    string // required
	TriggeredBy  string
	InputContext string
	Steps        []entry.TraceStep
	Performance  entry.PerformanceMetrics
	Results      map[string]string
	SessionID    string
}

// PutAgentExecution stores one agent-execution record and returns its entry id.
func (c *Cache) PutAgentExecution(in PutAgentInput) (string, error) {
	if in.AgentName == "" {
		return "", errors.NewInvalidRequest("agent_name is required")
	}

	triggeredBy := in.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "user_request"
	}

	payload := &entry.Payload{
		Category: entry.CategoryAgent,
		Agent: &entry.AgentPayload{
			AgentName:    in.AgentName,
			TriggeredBy:  triggeredBy,
			InputContext: in.InputContext,
			Trace:        in.Steps,
			Performance:  in.Performance,
			Results:      in.Results,
		},
	}

	return c.put(payload, in.SessionID, nil, []string{in.AgentName, triggeredBy})
}

// put is the shared write path: payload bytes first, index row second, under
// the write mutex. On an index failure the just-written payload is removed so
// no orphan survives.
func (c *Cache) put(p *entry.Payload, sessionID string, queryHash *string, tags []string) (string, error) {
	id, err := store.NewID()
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if sessionID == "" {
		sessionID, err = store.NewID()
		if err != nil {
			return "", errors.NewInternal(err)
		}
	}

	now := time.Now()
	hash := ""
	if queryHash != nil {
		hash = *queryHash
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	location, size, err := c.store.Write(id, now, sessionID, hash, p)
	if err != nil {
		return "", err
	}

	e := &entry.Entry{
		ID:              id,
		Category:        p.Category,
		Timestamp:       now.Unix(),
		SessionID:       sessionID,
		QueryHash:       queryHash,
		SizeBytes:       size,
		QualityScore:    p.Quality(),
		Tags:            tags,
		RetentionDays:   RetentionDays(c.cfg, p.Category),
		PayloadLocation: location,
	}

	if err := index.Upsert(c.db, e); err != nil {
		if delErr := c.store.Delete(location); delErr != nil {
			slog.Warn("orphan payload left after index failure",
				"location", location, "error", delErr)
		}
		return "", err
	}

	slog.Debug("cached entry", "id", id, "category", p.Category, "size", size)
	return id, nil
}

// Get loads an entry and its payload by id and bumps the access counters.
// The bump is best-effort and never fails the read.
func (c *Cache) Get(id string) (*entry.Entry, *entry.Payload, error) {
	e, err := index.Get(c.db, id)
	if err != nil {
		return nil, nil, err
	}

	p, err := c.store.Read(e.PayloadLocation)
	if err != nil {
		// A live index row whose payload file is gone means the two stores
		// have diverged, not that the id is unknown.
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil, errors.NewIndexInconsistency(id, e.PayloadLocation)
		}
		return nil, nil, err
	}

	if err := index.TouchAccess(c.db, id); err != nil {
		slog.Debug("access bump failed", "id", id, "error", err)
	}

	return e, p, nil
}

// Stats reports per-category counts, sizes, average quality, and latest
// write timestamps.
func (c *Cache) Stats() (map[entry.Category]index.CategoryStats, error) {
	return index.Stats(c.db)
}

// RetentionDays resolves the configured retention window for a category.
// Copied onto each entry at write time; later config changes only affect
// future writes.
func RetentionDays(cfg *config.Config, category entry.Category) int {
	switch category {
	case entry.CategoryThinking:
		return cfg.ThinkingRetentionDays
	case entry.CategoryResearch:
		return cfg.ResearchRetentionDays
	case entry.CategoryAgent:
		return cfg.AgentRetentionDays
	}
	return 0
}

func dedupe(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
