package query

import (
	"database/sql"
	"log/slog"
	"sort"
	"time"

	"github.com/hpungsan/trove/internal/entry"
	"github.com/hpungsan/trove/internal/errors"
	"github.com/hpungsan/trove/internal/index"
	"github.com/hpungsan/trove/internal/keywords"
	"github.com/hpungsan/trove/internal/store"
)

// DefaultLimit caps result lists when the caller does not set one.
const DefaultLimit = 10

// Engine ranks cached entries against free-text queries. Read-only: it
// scans the index, loads candidate payloads, and scores them lexically.
type Engine struct {
	db    *sql.DB
	store *store.Store
}

// New creates a query engine over the given index handle and payload store.
func New(db *sql.DB, st *store.Store) *Engine {
	return &Engine{db: db, store: st}
}

// Result is one ranked hit. A transient view, never persisted.
type Result struct {
	ID           string         `json:"id"`
	Category     entry.Category `json:"category"`
	Timestamp    int64          `json:"timestamp"`
	QualityScore float64        `json:"quality_score"`
	Tags         []string       `json:"tags,omitempty"`
	Relevance    float64        `json:"relevance"`
	FinalScore   float64        `json:"final_score"`
	Preview      string         `json:"preview"`
}

// SearchInput contains parameters for Search.
type SearchInput struct {
	Query         string
	Categories    []entry.Category
	TimeRangeDays int      // optional, restricts candidates to the last N days
	Limit         int      // default DefaultLimit
	MinRelevance  *float64 // default DefaultMinRelevance; set to 0 to keep everything
}

// Search ranks entries against a free-text query and returns at most Limit
// results in descending final-score order. An empty query matches nothing
// lexically, so ranking degrades to quality plus recency. Candidates whose
// payload is missing or corrupt are skipped, never fatal.
func (eng *Engine) Search(in SearchInput) ([]Result, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	minRelevance := DefaultMinRelevance
	if in.MinRelevance != nil {
		minRelevance = *in.MinRelevance
	}
	// A query that cannot match lexically must not drop everything at the
	// relevance gate; browsing by quality and recency is the intent.
	if len(keywords.Words(in.Query)) == 0 {
		minRelevance = 0
	}

	now := time.Now()
	filter := index.Filter{Categories: in.Categories}
	if in.TimeRangeDays > 0 {
		filter.Since = now.Add(-time.Duration(in.TimeRangeDays) * 24 * time.Hour).Unix()
	}

	candidates, err := index.Scan(eng.db, filter)
	if err != nil {
		return nil, err
	}

	var results []Result
	for i := range candidates {
		e := &candidates[i]
		p, ok := eng.load(e)
		if !ok {
			continue
		}

		rel := relevance(in.Query, p.SearchableText())
		if rel < minRelevance {
			continue
		}

		results = append(results, Result{
			ID:           e.ID,
			Category:     e.Category,
			Timestamp:    e.Timestamp,
			QualityScore: e.QualityScore,
			Tags:         e.Tags,
			Relevance:    rel,
			FinalScore:   finalScore(rel, e.QualityScore, e.Timestamp, now),
			Preview:      p.Preview(),
		})
	}

	sortByFinalScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Recent returns the newest entries within the last N hours, ordered purely
// by timestamp descending. Relevance plays no part.
func (eng *Engine) Recent(hours int, categories []entry.Category, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	filter := index.Filter{Categories: categories}
	if hours > 0 {
		filter.Since = time.Now().Add(-time.Duration(hours) * time.Hour).Unix()
	}

	candidates, err := index.Scan(eng.db, filter)
	if err != nil {
		return nil, err
	}

	var results []Result
	for i := range candidates {
		if len(results) == limit {
			break
		}
		e := &candidates[i]
		p, ok := eng.load(e)
		if !ok {
			continue
		}
		results = append(results, Result{
			ID:           e.ID,
			Category:     e.Category,
			Timestamp:    e.Timestamp,
			QualityScore: e.QualityScore,
			Tags:         e.Tags,
			Preview:      p.Preview(),
		})
	}
	return results, nil
}

// Similar finds entries resembling a reference entry by tag-set overlap,
// with the reference's query words as a tiebreaker. The reference itself is
// excluded. NOT_FOUND if the reference id is unknown.
func (eng *Engine) Similar(referenceID string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ref, err := index.Get(eng.db, referenceID)
	if err != nil {
		return nil, err
	}
	refPayload, err := eng.store.Read(ref.PayloadLocation)
	if err != nil {
		return nil, err
	}

	refTags := setOf(ref.Tags)
	refWords := keywords.Words(refPayload.OriginQuery())

	candidates, err := index.Scan(eng.db, index.Filter{})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	seen := map[string]bool{referenceID: true}
	var results []Result
	for i := range candidates {
		e := &candidates[i]
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true

		p, ok := eng.load(e)
		if !ok {
			continue
		}

		score := similarity(refTags, setOf(e.Tags), refWords, keywords.Words(p.SearchableText()))
		if score == 0 {
			continue
		}

		results = append(results, Result{
			ID:           e.ID,
			Category:     e.Category,
			Timestamp:    e.Timestamp,
			QualityScore: e.QualityScore,
			Tags:         e.Tags,
			Relevance:    score,
			FinalScore:   finalScore(score, e.QualityScore, e.Timestamp, now),
			Preview:      p.Preview(),
		})
	}

	sortByFinalScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// load reads a candidate's payload, treating missing and corrupt payloads as
// the same skippable condition. The reaper may race a scan; both cases log
// and continue.
func (eng *Engine) load(e *entry.Entry) (*entry.Payload, bool) {
	p, err := eng.store.Read(e.PayloadLocation)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrCorruptPayload) {
			slog.Warn("skipping unreadable candidate", "id", e.ID, "error", err)
			return nil, false
		}
		slog.Error("payload load failed", "id", e.ID, "error", err)
		return nil, false
	}
	return p, true
}

// sortByFinalScore orders descending by final score, newest first on ties.
func sortByFinalScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].Timestamp > results[j].Timestamp
	})
}
