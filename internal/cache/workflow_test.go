package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/trove/internal/cache"
	"github.com/hpungsan/trove/internal/config"
	"github.com/hpungsan/trove/internal/entry"
	"github.com/hpungsan/trove/internal/errors"
	"github.com/hpungsan/trove/internal/query"
	"github.com/hpungsan/trove/internal/reaper"
)

// TestFullWorkflow exercises the complete entry lifecycle:
// put → get → search → analyze → export → expire → reap → get (not found)
func TestFullWorkflow(t *testing.T) {
	c, err := cache.Open(t.TempDir(), config.DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	// 1. Put one entry per category
	thinkingID, err := c.PutThinking(cache.PutThinkingInput{
		Query:     "speed up the import pipeline",
		TraceText: "Key insight: batching writes removes the per-row fsync cost.",
	})
	require.NoError(t, err)
	require.NotEmpty(t, thinkingID)

	researchID, err := c.PutResearch(cache.PutResearchInput{
		Domain: "storage-engines",
		Query:  "write amplification in LSM trees",
		Discoveries: []entry.Discovery{
			{Title: "Compaction strategies compared", Relevance: 0.8},
		},
	})
	require.NoError(t, err)

	agentID, err := c.PutAgentExecution(cache.PutAgentInput{
		AgentName: "migrator",
		Steps: []entry.TraceStep{
			{Step: 1, Action: "scan_tables", DurationSeconds: 3, Success: true},
		},
		Performance: entry.PerformanceMetrics{SuccessRate: 1.0, QualityScore: 0.9},
	})
	require.NoError(t, err)

	// 2. Get round-trips the payload
	e, p, err := c.Get(thinkingID)
	require.NoError(t, err)
	require.Equal(t, entry.CategoryThinking, e.Category)
	require.Equal(t, "speed up the import pipeline", p.Thinking.Query)

	// 3. Search ranks the matching entry first
	eng := query.New(c.DB(), c.PayloadStore())
	results, err := eng.Search(query.SearchInput{Query: "import pipeline speed"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, thinkingID, results[0].ID)

	// 4. Analysis sees the research domain and the agent
	analyzer := query.NewAnalyzer(eng)
	domains, err := analyzer.DomainPopularity(30)
	require.NoError(t, err)
	require.Contains(t, domains, "storage-engines")

	agents, err := analyzer.AgentPerformance(30)
	require.NoError(t, err)
	require.Equal(t, 1, agents["migrator"].ExecutionCount)

	// 5. Export writes all three entries
	exp, err := c.Export(cache.ExportInput{})
	require.NoError(t, err)
	require.Equal(t, 3, exp.Count)
	require.FileExists(t, exp.Path)

	// 6. Backdate the thinking entry past its retention window
	expired := time.Now().Add(-31 * 24 * time.Hour).Unix()
	_, err = c.DB().Exec("UPDATE entries SET timestamp = ? WHERE id = ?", expired, thinkingID)
	require.NoError(t, err)

	// 7. Reap removes only the expired entry
	res, err := reaper.New(c).RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.DeletedCount)
	require.Empty(t, res.Errors)

	// 8. Expired entry is gone, the others survive
	_, _, err = c.Get(thinkingID)
	var tErr *errors.TroveError
	require.ErrorAs(t, err, &tErr)
	require.Equal(t, errors.ErrNotFound, tErr.Code)

	_, _, err = c.Get(researchID)
	require.NoError(t, err)
	_, _, err = c.Get(agentID)
	require.NoError(t, err)
}
