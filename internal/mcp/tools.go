package mcp

import "github.com/mark3labs/mcp-go/mcp"

var searchToolDef = mcp.NewTool("cache_search",
	mcp.WithDescription("Search cached execution artifacts by free-text query, ranked by relevance, quality, and recency."),
	mcp.WithString("query", mcp.Required(),
		mcp.Description("Free-text search query. Empty ranks by quality and recency alone.")),
	mcp.WithString("category",
		mcp.Description("Restrict to one category: thinking, research, or agent."),
		mcp.Enum("thinking", "research", "agent")),
	mcp.WithNumber("days",
		mcp.Description("Only consider entries written within the last N days.")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum results to return (default 10).")),
	mcp.WithNumber("min_relevance",
		mcp.Description("Relevance gate in [0,1] (default 0.3).")),
)

var recentToolDef = mcp.NewTool("cache_recent",
	mcp.WithDescription("List the newest cached entries, ordered purely by timestamp."),
	mcp.WithNumber("hours",
		mcp.Description("Window in hours (default 24).")),
	mcp.WithString("category",
		mcp.Description("Restrict to one category."),
		mcp.Enum("thinking", "research", "agent")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum results to return (default 10).")),
)

var similarToolDef = mcp.NewTool("cache_similar",
	mcp.WithDescription("Find entries similar to a reference entry by tag and query-word overlap."),
	mcp.WithString("id", mcp.Required(),
		mcp.Description("Reference entry id.")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum results to return (default 10).")),
)

var getToolDef = mcp.NewTool("cache_get",
	mcp.WithDescription("Fetch one cached entry and its full payload by id."),
	mcp.WithString("id", mcp.Required(),
		mcp.Description("Entry id.")),
)

var statsToolDef = mcp.NewTool("cache_stats",
	mcp.WithDescription("Report per-category entry counts, total sizes, average quality, and latest write times."),
)

var cleanupToolDef = mcp.NewTool("cache_cleanup",
	mcp.WithDescription("Delete entries whose retention window has elapsed and report freed space."),
	mcp.WithNumber("days",
		mcp.Description("Delete entries older than this many days instead, ignoring per-entry retention")),
)

var putThinkingToolDef = mcp.NewTool("cache_put_thinking",
	mcp.WithDescription("Store a reasoning trace. Insights, decisions, and alternatives are mined from the trace text."),
	mcp.WithString("query", mcp.Required(),
		mcp.Description("The request the trace answers.")),
	mcp.WithString("trace_text", mcp.Required(),
		mcp.Description("Raw reasoning trace.")),
	mcp.WithArray("tools_used",
		mcp.Description("Tool names used during the trace."),
		mcp.Items(map[string]any{"type": "string"})),
	mcp.WithArray("files_touched",
		mcp.Description("Files read or written during the trace."),
		mcp.Items(map[string]any{"type": "string"})),
	mcp.WithNumber("duration_seconds",
		mcp.Description("Wall-clock duration of the trace.")),
	mcp.WithNumber("success_rate",
		mcp.Description("Outcome success rate in [0,1]. Both outcome metrics must be set together.")),
	mcp.WithNumber("efficiency",
		mcp.Description("Outcome efficiency in [0,1].")),
	mcp.WithString("session_id",
		mcp.Description("Session grouping id (generated when empty).")),
)

var putResearchToolDef = mcp.NewTool("cache_put_research",
	mcp.WithDescription("Store a research session: domain, query, discoveries, and synthesis."),
	mcp.WithString("domain", mcp.Required(),
		mcp.Description("Research domain, e.g. databases.")),
	mcp.WithString("query", mcp.Required(),
		mcp.Description("Primary research query.")),
	mcp.WithArray("discoveries",
		mcp.Description("Ordered discoveries, each {title, authors?, relevance?}."),
		mcp.Items(map[string]any{"type": "object"})),
	mcp.WithArray("queries_issued",
		mcp.Description("Search queries issued during the session."),
		mcp.Items(map[string]any{"type": "string"})),
	mcp.WithArray("sources_hit",
		mcp.Description("Sources consulted during the session."),
		mcp.Items(map[string]any{"type": "string"})),
	mcp.WithString("synthesis",
		mcp.Description("Free-text synthesis of the findings.")),
	mcp.WithString("session_id",
		mcp.Description("Session grouping id (generated when empty).")),
)

var putAgentToolDef = mcp.NewTool("cache_put_agent",
	mcp.WithDescription("Store an agent execution: trace steps, performance metrics, and results."),
	mcp.WithString("agent_name", mcp.Required(),
		mcp.Description("Agent name.")),
	mcp.WithString("triggered_by",
		mcp.Description("What triggered the execution (default user_request).")),
	mcp.WithString("input_context",
		mcp.Description("Input context handed to the agent.")),
	mcp.WithArray("steps",
		mcp.Description("Ordered trace steps, each {step, action, duration_seconds, success}."),
		mcp.Items(map[string]any{"type": "object"})),
	mcp.WithNumber("success_rate",
		mcp.Description("Performance success rate in [0,1].")),
	mcp.WithNumber("quality_score",
		mcp.Description("Reported quality score in [0,1].")),
	mcp.WithObject("results",
		mcp.Description("Output results keyed by name, string values.")),
	mcp.WithString("session_id",
		mcp.Description("Session grouping id (generated when empty).")),
)

var analyzeToolDef = mcp.NewTool("cache_analyze",
	mcp.WithDescription("Aggregate cached entries over a time window: insight frequency, domain popularity, or agent performance."),
	mcp.WithString("kind", mcp.Required(),
		mcp.Description("Aggregation kind."),
		mcp.Enum("insight_frequency", "domain_popularity", "agent_performance")),
	mcp.WithNumber("days",
		mcp.Description("Window in days (default 30).")),
)

var exportToolDef = mcp.NewTool("cache_export",
	mcp.WithDescription("Export entries and payloads to a JSONL file."),
	mcp.WithString("path",
		mcp.Description("Destination path (default under the cache's exports directory).")),
	mcp.WithString("category",
		mcp.Description("Restrict to one category."),
		mcp.Enum("thinking", "research", "agent")),
	mcp.WithNumber("days",
		mcp.Description("Only export entries written within the last N days.")),
)
