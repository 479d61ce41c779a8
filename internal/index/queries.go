package index

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/trove/internal/entry"
	"github.com/hpungsan/trove/internal/errors"
)

// Filter narrows a Scan. Zero values mean "no constraint".
type Filter struct {
	Categories []entry.Category
	Since      int64 // inclusive lower bound on timestamp
	Until      int64 // exclusive upper bound on timestamp
	MinQuality float64
}

// CategoryStats summarizes one category for the stats surface.
type CategoryStats struct {
	Count           int     `json:"count"`
	TotalSizeBytes  int64   `json:"total_size_bytes"`
	AvgQuality      float64 `json:"avg_quality"`
	LatestTimestamp int64   `json:"latest_timestamp"`
}

// Upsert inserts an entry, overwriting any existing row with the same id.
// Idempotent on id: re-inserting never duplicates.
func Upsert(db *sql.DB, e *entry.Entry) error {
	var tagsJSON sql.NullString
	if len(e.Tags) > 0 {
		data, err := json.Marshal(e.Tags)
		if err != nil {
			return errors.NewInternal(err)
		}
		tagsJSON = sql.NullString{String: string(data), Valid: true}
	}

	queryHash := toNullString(e.QueryHash)
	lastAccessed := toNullInt64(e.LastAccessed)

	query := `
		INSERT INTO entries (
			id, category, timestamp, session_id, query_hash,
			size_bytes, quality_score, tags_json, retention_days,
			payload_location, access_count, last_accessed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			timestamp = excluded.timestamp,
			session_id = excluded.session_id,
			query_hash = excluded.query_hash,
			size_bytes = excluded.size_bytes,
			quality_score = excluded.quality_score,
			tags_json = excluded.tags_json,
			retention_days = excluded.retention_days,
			payload_location = excluded.payload_location,
			access_count = excluded.access_count,
			last_accessed = excluded.last_accessed
	`

	_, err := db.Exec(query,
		e.ID, string(e.Category), e.Timestamp, e.SessionID, queryHash,
		e.SizeBytes, e.QualityScore, tagsJSON, e.RetentionDays,
		e.PayloadLocation, e.AccessCount, lastAccessed,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	return nil
}

// Get retrieves one entry by id.
func Get(db *sql.DB, id string) (*entry.Entry, error) {
	row := db.QueryRow(selectColumns+" FROM entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return e, nil
}

// Scan returns entries matching the filter, ordered by timestamp descending.
// Each call produces a fresh result set; payload bodies are never touched.
func Scan(db *sql.DB, f Filter) ([]entry.Entry, error) {
	var conditions []string
	var args []any

	if len(f.Categories) > 0 {
		placeholders := strings.TrimPrefix(strings.Repeat(",?", len(f.Categories)), ",")
		conditions = append(conditions, "category IN ("+placeholders+")")
		for _, c := range f.Categories {
			args = append(args, string(c))
		}
	}
	if f.Since > 0 {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, f.Since)
	}
	if f.Until > 0 {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, f.Until)
	}
	if f.MinQuality > 0 {
		conditions = append(conditions, "quality_score >= ?")
		args = append(args, f.MinQuality)
	}

	query := selectColumns + " FROM entries"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var results []entry.Entry
	for rows.Next() {
		e, err := scanEntryRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		results = append(results, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return results, nil
}

// Delete removes an entry row. Deleting an absent id returns NOT_FOUND.
func Delete(db *sql.DB, id string) error {
	result, err := db.Exec("DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}

	return nil
}

// TouchAccess bumps access_count and last_accessed for an entry.
// Best-effort bookkeeping: callers may ignore the error.
func TouchAccess(db *sql.DB, id string) error {
	now := time.Now().Unix()
	_, err := db.Exec(
		"UPDATE entries SET access_count = access_count + 1, last_accessed = ? WHERE id = ?",
		now, id,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Expired returns entries whose per-entry retention window has elapsed as of
// now (unix seconds). Entries with a non-positive retention never expire.
func Expired(db *sql.DB, now int64) ([]entry.Entry, error) {
	rows, err := db.Query(
		selectColumns+" FROM entries WHERE retention_days > 0 AND timestamp < ? - retention_days * 86400 ORDER BY timestamp ASC",
		now,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var results []entry.Entry
	for rows.Next() {
		e, err := scanEntryRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		results = append(results, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return results, nil
}

// Stats aggregates per-category counts, sizes, quality, and recency.
// Categories with no entries report zero values.
func Stats(db *sql.DB) (map[entry.Category]CategoryStats, error) {
	stats := make(map[entry.Category]CategoryStats, len(entry.Categories))
	for _, c := range entry.Categories {
		stats[c] = CategoryStats{}
	}

	rows, err := db.Query(`
		SELECT category, COUNT(*), COALESCE(SUM(size_bytes), 0),
			COALESCE(AVG(quality_score), 0), COALESCE(MAX(timestamp), 0)
		FROM entries GROUP BY category
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var s CategoryStats
		if err := rows.Scan(&category, &s.Count, &s.TotalSizeBytes, &s.AvgQuality, &s.LatestTimestamp); err != nil {
			return nil, errors.NewInternal(err)
		}
		stats[entry.Category(category)] = s
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return stats, nil
}

const selectColumns = `
	SELECT id, category, timestamp, session_id, query_hash,
		size_bytes, quality_score, tags_json, retention_days,
		payload_location, access_count, last_accessed`

// rowScanner abstracts sql.Row and sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row *sql.Row) (*entry.Entry, error) {
	return scanFrom(row)
}

func scanEntryRows(rows *sql.Rows) (*entry.Entry, error) {
	return scanFrom(rows)
}

func scanFrom(s rowScanner) (*entry.Entry, error) {
	var (
		e            entry.Entry
		category     string
		queryHash    sql.NullString
		tagsJSON     sql.NullString
		lastAccessed sql.NullInt64
	)

	err := s.Scan(
		&e.ID, &category, &e.Timestamp, &e.SessionID, &queryHash,
		&e.SizeBytes, &e.QualityScore, &tagsJSON, &e.RetentionDays,
		&e.PayloadLocation, &e.AccessCount, &lastAccessed,
	)
	if err != nil {
		return nil, err
	}

	e.Category = entry.Category(category)
	e.QueryHash = fromNullString(queryHash)
	if lastAccessed.Valid {
		e.LastAccessed = &lastAccessed.Int64
	}

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &e.Tags); err != nil {
			return nil, err
		}
	}

	return &e, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
