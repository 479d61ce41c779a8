package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/trove/internal/cache"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"cache_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"cache_recent": {
		def:     recentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRecent },
	},
	"cache_similar": {
		def:     similarToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSimilar },
	},
	"cache_get": {
		def:     getToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGet },
	},
	"cache_stats": {
		def:     statsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStats },
	},
	"cache_cleanup": {
		def:     cleanupToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCleanup },
	},
	"cache_put_thinking": {
		def:     putThinkingToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePutThinking },
	},
	"cache_put_research": {
		def:     putResearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePutResearch },
	},
	"cache_put_agent": {
		def:     putAgentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePutAgent },
	},
	"cache_analyze": {
		def:     analyzeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnalyze },
	},
	"cache_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with Trove tools registered.
// Tools listed in the config's DisabledTools are excluded from registration.
func NewServer(c *cache.Cache, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"trove",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(c)

	if unknown := ValidateDisabledTools(c.Config().DisabledTools); len(unknown) > 0 {
		slog.Warn("ignoring unknown names in disabled_tools", "names", unknown)
	}

	disabled := make(map[string]bool)
	for _, name := range c.Config().DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(c *cache.Cache, version string) error {
	s := NewServer(c, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
