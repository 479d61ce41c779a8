package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// decode maps a tool call's argument map onto a request struct by routing it
// through JSON, so field names and optional fields follow the struct tags.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("decode arguments: %w", err)
	}
	return result, nil
}
