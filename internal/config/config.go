package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Retention defaults per category, in days.
const (
	DefaultThinkingRetentionDays = 30
	DefaultResearchRetentionDays = 90
	DefaultAgentRetentionDays    = 60
)

// DefaultReaperIntervalHours is how often the background reaper runs.
const DefaultReaperIntervalHours = 24

// Config holds application configuration.
type Config struct {
	// ThinkingRetentionDays is the retention window for thinking entries.
	ThinkingRetentionDays int `json:"thinking_retention_days"`

	// ResearchRetentionDays is the retention window for research entries.
	ResearchRetentionDays int `json:"research_retention_days"`

	// AgentRetentionDays is the retention window for agent execution entries.
	AgentRetentionDays int `json:"agent_retention_days"`

	// Compression enables gzip compression of payload files.
	// Stored as a pointer so an explicit false in config.json survives merging.
	Compression *bool `json:"compression,omitempty"`

	// ReaperIntervalHours is the interval between automatic cleanup runs.
	ReaperIntervalHours int `json:"reaper_interval_hours"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ThinkingRetentionDays: DefaultThinkingRetentionDays,
		ResearchRetentionDays: DefaultResearchRetentionDays,
		AgentRetentionDays:    DefaultAgentRetentionDays,
		ReaperIntervalHours:   DefaultReaperIntervalHours,
	}
}

// CompressionEnabled reports whether payload compression is on (default true).
func (c *Config) CompressionEnabled() bool {
	if c.Compression == nil {
		return true
	}
	return *c.Compression
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.trove.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.ThinkingRetentionDays = overlay.ThinkingRetentionDays
	if result.ThinkingRetentionDays == 0 {
		result.ThinkingRetentionDays = base.ThinkingRetentionDays
	}

	result.ResearchRetentionDays = overlay.ResearchRetentionDays
	if result.ResearchRetentionDays == 0 {
		result.ResearchRetentionDays = base.ResearchRetentionDays
	}

	result.AgentRetentionDays = overlay.AgentRetentionDays
	if result.AgentRetentionDays == 0 {
		result.AgentRetentionDays = base.AgentRetentionDays
	}

	result.ReaperIntervalHours = overlay.ReaperIntervalHours
	if result.ReaperIntervalHours == 0 {
		result.ReaperIntervalHours = base.ReaperIntervalHours
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Pointer boolean: overlay wins when set at all
	result.Compression = base.Compression
	if overlay.Compression != nil {
		result.Compression = overlay.Compression
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
