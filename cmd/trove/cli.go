package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/trove/internal/cache"
	"github.com/hpungsan/trove/internal/entry"
	"github.com/hpungsan/trove/internal/errors"
	"github.com/hpungsan/trove/internal/query"
	"github.com/hpungsan/trove/internal/reaper"
	"github.com/hpungsan/trove/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(c *cache.Cache) *cli.App {
	app := &cli.App{
		Name:    "trove",
		Usage:   "Local execution artifact cache",
		Version: Version,
		Commands: []*cli.Command{
			searchCmd(c),
			recentCmd(c),
			similarCmd(c),
			getCmd(c),
			statsCmd(c),
			cleanupCmd(c),
			putThinkingCmd(c),
			putResearchCmd(c),
			putAgentCmd(c),
			analyzeCmd(c),
			exportCmd(c),
			uiCmd(c),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newEngine builds the query engine over the shared cache.
func newEngine(c *cache.Cache) *query.Engine {
	return query.New(c.DB(), c.PayloadStore())
}

// searchCmd creates the search command.
func searchCmd(c *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search cached entries by relevance",
		ArgsUsage: "<query...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Filter by category: thinking|research|agent"},
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "Restrict to the last N days"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 10, Usage: "Maximum results to return"},
			&cli.Float64Flag{Name: "min-relevance", Usage: "Minimum relevance threshold (0..1)"},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("query is required"))
			}

			categories, err := categoriesFlag(ctx.String("category"))
			if err != nil {
				return outputError(err)
			}

			input := query.SearchInput{
				Query:         strings.Join(ctx.Args().Slice(), " "),
				Categories:    categories,
				TimeRangeDays: ctx.Int("days"),
				Limit:         ctx.Int("limit"),
			}
			if ctx.IsSet("min-relevance") {
				minRel := ctx.Float64("min-relevance")
				input.MinRelevance = &minRel
			}

			results, err := newEngine(c).Search(input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{"results": results, "count": len(results)})
		},
	}
}

// recentCmd creates the recent command.
func recentCmd(c *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "List the most recently cached entries",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "hours", Value: 24, Usage: "Time window in hours"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Filter by category: thinking|research|agent"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 10, Usage: "Maximum results to return"},
		},
		Action: func(ctx *cli.Context) error {
			categories, err := categoriesFlag(ctx.String("category"))
			if err != nil {
				return outputError(err)
			}

			results, err := newEngine(c).Recent(ctx.Int("hours"), categories, ctx.Int("limit"))
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{"results": results, "count": len(results)})
		},
	}
}

// similarCmd creates the similar command.
func similarCmd(c *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:      "similar",
		Usage:     "Find entries resembling a reference entry",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 5, Usage: "Maximum results to return"},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("entry id is required"))
			}

			results, err := newEngine(c).Similar(ctx.Args().First(), ctx.Int("limit"))
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{"results": results, "count": len(results)})
		},
	}
}

// getCmd creates the get command.
func getCmd(c *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch a full entry with its payload",
		ArgsUsage: "<id>",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("entry id is required"))
			}

			e, p, err := c.Get(ctx.Args().First())
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{"entry": e, "payload": p})
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(c *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show per-category cache statistics",
		Action: func(ctx *cli.Context) error {
			stats, err := c.Stats()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"per_category": stats})
		},
	}
}

// cleanupCmd creates the cleanup command.
func cleanupCmd(c *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Delete entries past their retention window",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "Delete entries older than N days instead, ignoring per-entry retention"},
		},
		Action: func(ctx *cli.Context) error {
			r := reaper.New(c)
			var result *reaper.Result
			var err error
			if days := ctx.Int("days"); days > 0 {
				result, err = r.RunOnceOlderThan(ctx.Context, days)
			} else {
				result, err = r.RunOnce(ctx.Context)
			}
			if err != nil {
				return outputError(err)
			}

			errMsgs := make([]string, 0, len(result.Errors))
			for _, e := range result.Errors {
				errMsgs = append(errMsgs, e.Error())
			}
			return outputJSON(map[string]any{
				"deleted_count": result.DeletedCount,
				"freed_bytes":   result.FreedBytes,
				"errors":        errMsgs,
			})
		},
	}
}

// putThinkingCmd creates the put-thinking command.
func putThinkingCmd(c *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:  "put-thinking",
		Usage: "Cache a reasoning trace (reads trace text from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Required: true, Usage: "The question the trace answers"},
			&cli.StringFlag{Name: "tools", Usage: "Comma-separated tool names used"},
			&cli.StringFlag{Name: "files", Usage: "Comma-separated file paths touched"},
			&cli.Float64Flag{Name: "duration", Usage: "Wall-clock duration in seconds"},
			&cli.Float64Flag{Name: "success-rate", Usage: "Outcome success rate (0..1, requires --efficiency)"},
			&cli.Float64Flag{Name: "efficiency", Usage: "Outcome efficiency (0..1, requires --success-rate)"},
			&cli.StringFlag{Name: "session", Usage: "Session ID (generated when omitted)"},
		},
		Action: func(ctx *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("trace text must be piped via stdin"))
			}
			traceText, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			input := cache.PutThinkingInput{
				Query:           ctx.String("query"),
				TraceText:       traceText,
				ToolsUsed:       splitCSV(ctx.String("tools")),
				FilesTouched:    splitCSV(ctx.String("files")),
				DurationSeconds: ctx.Float64("duration"),
				SessionID:       ctx.String("session"),
			}
			if ctx.IsSet("success-rate") || ctx.IsSet("efficiency") {
				if !ctx.IsSet("success-rate") || !ctx.IsSet("efficiency") {
					return outputError(errors.NewInvalidRequest("--success-rate and --efficiency must be set together"))
				}
				input.Outcome = &entry.OutcomeMetrics{
					SuccessRate: ctx.Float64("success-rate"),
					Efficiency:  ctx.Float64("efficiency"),
				}
			}

			id, err := c.PutThinking(input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"id": id})
		},
	}
}

// putResearchCmd creates the put-research command.
func putResearchCmd(c *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:  "put-research",
		Usage: "Cache a research session (reads synthesis from stdin if piped)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "domain", Aliases: []string{"D"}, Required: true, Usage: "Research domain"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Required: true, Usage: "The research question"},
			&cli.StringFlag{Name: "discoveries", Usage: "Discoveries as a JSON array"},
			&cli.StringFlag{Name: "queries-issued", Usage: "Comma-separated sub-queries issued"},
			&cli.StringFlag{Name: "sources", Usage: "Comma-separated sources consulted"},
			&cli.StringFlag{Name: "session", Usage: "Session ID (generated when omitted)"},
		},
		Action: func(ctx *cli.Context) error {
			input := cache.PutResearchInput{
				Domain: ctx.String("domain"),
				Query:  ctx.String("query"),
				Strategies: entry.SearchStrategy{
					QueriesIssued: splitCSV(ctx.String("queries-issued")),
					SourcesHit:    splitCSV(ctx.String("sources")),
				},
				SessionID: ctx.String("session"),
			}

			if raw := ctx.String("discoveries"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &input.Discoveries); err != nil {
					return outputError(errors.NewInvalidRequest("discoveries must be a JSON array: " + err.Error()))
				}
			}

			if stdinHasData() {
				synthesis, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				input.Synthesis = synthesis
			}

			id, err := c.PutResearch(input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"id": id})
		},
	}
}

// putAgentCmd creates the put-agent command.
func putAgentCmd(c *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:  "put-agent",
		Usage: "Cache an agent execution (reads input context from stdin if piped)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "agent", Aliases: []string{"a"}, Required: true, Usage: "Agent name"},
			&cli.StringFlag{Name: "triggered-by", Usage: "What triggered the run (default: user_request)"},
			&cli.StringFlag{Name: "steps", Usage: "Trace steps as a JSON array"},
			&cli.Float64Flag{Name: "success-rate", Usage: "Execution success rate (0..1)"},
			&cli.Float64Flag{Name: "quality", Usage: "Execution quality score (0..1)"},
			&cli.StringFlag{Name: "results", Usage: "Result summary as a JSON object of strings"},
			&cli.StringFlag{Name: "session", Usage: "Session ID (generated when omitted)"},
		},
		Action: func(ctx *cli.Context) error {
			input := cache.PutAgentInput{
				AgentName:   ctx.String("agent"),
				TriggeredBy: ctx.String("triggered-by"),
				Performance: entry.PerformanceMetrics{
					SuccessRate:  ctx.Float64("success-rate"),
					QualityScore: ctx.Float64("quality"),
				},
				SessionID: ctx.String("session"),
			}

			if raw := ctx.String("steps"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &input.Steps); err != nil {
					return outputError(errors.NewInvalidRequest("steps must be a JSON array: " + err.Error()))
				}
			}
			if raw := ctx.String("results"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &input.Results); err != nil {
					return outputError(errors.NewInvalidRequest("results must be a JSON object of strings: " + err.Error()))
				}
			}

			if stdinHasData() {
				text, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				input.InputContext = text
			}

			id, err := c.PutAgentExecution(input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"id": id})
		},
	}
}

// analyzeCmd creates the analyze command.
func analyzeCmd(c *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Aggregate patterns across cached entries",
		ArgsUsage: "<insight_frequency|domain_popularity|agent_performance>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Value: 30, Usage: "Analysis window in days"},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("analysis kind is required"))
			}

			kind := ctx.Args().First()
			days := ctx.Int("days")
			analyzer := query.NewAnalyzer(newEngine(c))

			switch kind {
			case "insight_frequency":
				counts, err := analyzer.InsightFrequency(days)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(map[string]any{"kind": kind, "insights": counts})
			case "domain_popularity":
				stats, err := analyzer.DomainPopularity(days)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(map[string]any{"kind": kind, "domains": stats})
			case "agent_performance":
				stats, err := analyzer.AgentPerformance(days)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(map[string]any{"kind": kind, "agents": stats})
			}
			return outputError(errors.NewInvalidRequest("unknown kind (valid: insight_frequency, domain_popularity, agent_performance)"))
		},
	}
}

// exportCmd creates the export command.
func exportCmd(c *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export entries to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.trove/exports/<category>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Filter by category: thinking|research|agent"},
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "Only entries from the last N days"},
		},
		Action: func(ctx *cli.Context) error {
			categories, err := categoriesFlag(ctx.String("category"))
			if err != nil {
				return outputError(err)
			}

			input := cache.ExportInput{
				Path:       ctx.String("path"),
				Categories: categories,
			}
			if days := ctx.Int("days"); days > 0 {
				input.Since = time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
			}

			output, err := c.Export(input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// uiCmd creates the ui command.
func uiCmd(c *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Serve the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Value: 8337, Usage: "Listen port"},
		},
		Action: func(ctx *cli.Context) error {
			startReaper(c)
			srv := web.NewServer(c, Version, ctx.String("bind"), ctx.Int("port"))
			if err := web.Run(srv); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if tErr, ok := err.(*errors.TroveError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", tErr.Code, tErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// categoriesFlag turns an optional category flag into a filter.
func categoriesFlag(s string) ([]entry.Category, error) {
	if s == "" {
		return nil, nil
	}
	cat, err := entry.ParseCategory(s)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	return []entry.Category{cat}, nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// splitCSV splits a comma-separated string, trimming blanks.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
