package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/trove/internal/entry"
	"github.com/hpungsan/trove/internal/errors"
)

func thinkingPayload(query string) *entry.Payload {
	return &entry.Payload{
		Category: entry.CategoryThinking,
		Thinking: &entry.ThinkingPayload{
			Query:       query,
			RawThinking: "Insight: cache the hot path",
			KeyInsights: []string{"Insight: cache the hot path"},
		},
	}
}

func TestRoundTripAllCategories(t *testing.T) {
	s, err := New(t.TempDir(), true)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	payloads := []*entry.Payload{
		thinkingPayload("optimize database queries"),
		{
			Category: entry.CategoryResearch,
			Research: &entry.ResearchPayload{
				Domain:      "distributed systems",
				Query:       "consensus protocols",
				Discoveries: []entry.Discovery{{Title: "Raft", Authors: []string{"Ongaro"}}},
			},
		},
		{
			Category: entry.CategoryAgent,
			Agent: &entry.AgentPayload{
				AgentName:   "reviewer",
				Trace:       []entry.TraceStep{{Step: 1, Action: "lint", DurationSeconds: 2, Success: true}},
				Performance: entry.PerformanceMetrics{SuccessRate: 0.9, QualityScore: 0.8},
				Results:     map[string]string{"verdict": "approved"},
			},
		},
	}

	now := time.Now()
	for _, p := range payloads {
		id, err := NewID()
		if err != nil {
			t.Fatalf("NewID failed: %v", err)
		}

		location, size, err := s.Write(id, now, "session-1", QueryHash("q"), p)
		if err != nil {
			t.Fatalf("Write %s failed: %v", p.Category, err)
		}
		if size <= 0 {
			t.Errorf("size = %d, want > 0", size)
		}
		if !strings.HasPrefix(location, string(p.Category)+string(filepath.Separator)) {
			t.Errorf("location %q not category-scoped", location)
		}

		got, err := s.Read(location)
		if err != nil {
			t.Fatalf("Read %s failed: %v", p.Category, err)
		}
		if got.Category != p.Category {
			t.Errorf("Category = %s, want %s", got.Category, p.Category)
		}
		if got.SearchableText() != p.SearchableText() {
			t.Errorf("payload content changed through round trip")
		}
	}
}

func TestRoundTripUncompressed(t *testing.T) {
	s, err := New(t.TempDir(), false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	location, _, err := s.Write("01NOGZ", time.Now(), "s", "h", thinkingPayload("q"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if strings.HasSuffix(location, ".gz") {
		t.Errorf("uncompressed location %q should not carry .gz", location)
	}

	if _, err := s.Read(location); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, true)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	location, _, err := s.Write("01TMP", time.Now(), "s", QueryHash("q"), thinkingPayload("q"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// The rename is the last step, so the only file in the category dir is
	// the final payload, never a leftover temp.
	files, err := os.ReadDir(filepath.Join(dir, "thinking"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected exactly 1 file, got %d", len(files))
	}
	if strings.HasSuffix(files[0].Name(), ".tmp") {
		t.Errorf("temp file %q left behind", files[0].Name())
	}
	if _, err := s.Read(location); err != nil {
		t.Fatalf("Read after Write failed: %v", err)
	}
}

func TestWriteFailureLeavesNoFinalPath(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, true)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	id := "01BLOCKED"
	ts := time.Now()
	hash := QueryHash("q")
	p := thinkingPayload("q")

	// Block the temp path so the write fails before anything reaches the
	// final location.
	location := s.filename(id, ts, "s", hash, p)
	blocker := filepath.Join(dir, location) + ".tmp"
	if err := os.Mkdir(blocker, 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	_, _, err = s.Write(id, ts, "s", hash, p)
	if !errors.Is(err, errors.ErrIOFailure) {
		t.Fatalf("blocked write should be IO_FAILURE, got %v", err)
	}
	if s.Exists(location) {
		t.Error("failed write must not leave a file at the final location")
	}
}

func TestReadMissing(t *testing.T) {
	s, err := New(t.TempDir(), true)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = s.Read("thinking/absent.json.gz")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing payload should be NOT_FOUND, got %v", err)
	}
}

func TestReadCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, true)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Truncated gzip bytes
	badGzip := filepath.Join(dir, "thinking", "bad.json.gz")
	if err := os.WriteFile(badGzip, []byte("not gzip at all"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := s.Read("thinking/bad.json.gz"); !errors.Is(err, errors.ErrCorruptPayload) {
		t.Errorf("bad gzip should be CORRUPT_PAYLOAD, got %v", err)
	}

	// Valid file but not a payload
	badJSON := filepath.Join(dir, "agent", "bad.json")
	if err := os.WriteFile(badJSON, []byte("{\"category\":\"agent\"}"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := s.Read("agent/bad.json"); !errors.Is(err, errors.ErrCorruptPayload) {
		t.Errorf("body-less payload should be CORRUPT_PAYLOAD, got %v", err)
	}
}

func TestDeleteTolerant(t *testing.T) {
	s, err := New(t.TempDir(), true)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	location, _, err := s.Write("01DEL", time.Now(), "s", "h", thinkingPayload("q"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := s.Delete(location); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if s.Exists(location) {
		t.Error("payload should be gone")
	}

	// Deleting again is not an error
	if err := s.Delete(location); err != nil {
		t.Errorf("second delete should be tolerated, got %v", err)
	}
}

func TestAgentFilenameSanitized(t *testing.T) {
	s, err := New(t.TempDir(), true)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p := &entry.Payload{
		Category: entry.CategoryAgent,
		Agent: &entry.AgentPayload{
			AgentName:   "Code Reviewer/../../etc",
			Performance: entry.PerformanceMetrics{SuccessRate: 1, QualityScore: 1},
		},
	}

	location, _, err := s.Write("01SAFE", time.Now(), "s", "", p)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	base := filepath.Base(location)
	if strings.ContainsAny(base, "/\\ ") || strings.Contains(base, "..") {
		t.Errorf("agent name leaked unsafe characters into %q", base)
	}
	if filepath.Dir(location) != "agent" {
		t.Errorf("location %q escaped the agent directory", location)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id, err := NewID()
		if err != nil {
			t.Fatalf("NewID failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestQueryHashStable(t *testing.T) {
	a := QueryHash("optimize database queries")
	b := QueryHash("optimize database queries")
	c := QueryHash("different")
	if a != b {
		t.Error("hash should be deterministic")
	}
	if a == c {
		t.Error("different queries should hash differently")
	}
	if len(a) != 12 {
		t.Errorf("hash length = %d, want 12", len(a))
	}
}
