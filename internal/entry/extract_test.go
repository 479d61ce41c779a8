package entry

import "testing"

const sampleTrace = `Let me work through this.
Insight: use connection pooling to reduce latency
The database is the bottleneck here.
Decide: we will batch the writes
Alternatively: a read replica could absorb the load
insight: prepared statements cut parse time
INSIGHT: indexes on the join columns
Insight: keep transactions short
Insight: five
Insight: six exceeds the cap
`

func TestExtractInsights(t *testing.T) {
	insights := ExtractInsights(sampleTrace)
	if len(insights) != 5 {
		t.Fatalf("got %d insights, want cap of 5: %v", len(insights), insights)
	}
	if insights[0] != "Insight: use connection pooling to reduce latency" {
		t.Errorf("first insight = %q", insights[0])
	}
}

func TestExtractInsightsCaseInsensitive(t *testing.T) {
	insights := ExtractInsights("KEY POINT: caching wins")
	if len(insights) != 1 {
		t.Fatalf("got %d insights, want 1", len(insights))
	}
}

func TestExtractDecisions(t *testing.T) {
	decisions := ExtractDecisions(sampleTrace)
	if len(decisions) != 1 {
		t.Fatalf("got %d decisions, want 1: %v", len(decisions), decisions)
	}
	if decisions[0] != "Decide: we will batch the writes" {
		t.Errorf("decision = %q", decisions[0])
	}
}

func TestExtractAlternatives(t *testing.T) {
	alts := ExtractAlternatives(sampleTrace)
	if len(alts) != 1 {
		t.Fatalf("got %d alternatives, want 1: %v", len(alts), alts)
	}
}

func TestExtractEmptyTrace(t *testing.T) {
	if got := ExtractInsights(""); len(got) != 0 {
		t.Errorf("empty trace should yield no insights, got %v", got)
	}
}
