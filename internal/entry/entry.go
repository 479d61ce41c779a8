package entry

import "fmt"

// Category partitions the cache. The set is fixed; the query engine and the
// reaper both key off it.
type Category string

const (
	CategoryThinking Category = "thinking"
	CategoryResearch Category = "research"
	CategoryAgent    Category = "agent"
)

// Categories lists all valid categories in a stable order.
var Categories = []Category{CategoryThinking, CategoryResearch, CategoryAgent}

// ParseCategory validates a category string.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryThinking, CategoryResearch, CategoryAgent:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q (valid: thinking, research, agent)", s)
}

// Entry is one metadata index row. The payload body lives in the payload
// store; PayloadLocation is the opaque reference resolving to it.
type Entry struct {
	// ID is a ULID that uniquely identifies this entry across all categories
	ID string

	// Category is one of thinking, research, agent
	Category Category

	// Timestamp is the Unix creation instant, immutable after write
	Timestamp int64

	// SessionID groups entries from one logical session
	SessionID string

	// QueryHash is a short hash of the originating free-text query (nullable)
	QueryHash *string

	// SizeBytes is the on-disk payload size
	SizeBytes int64

	// QualityScore is the category-specific quality score, clamped to [0,1]
	QualityScore float64

	// Tags is an ordered set of strings, e.g. agent name, trigger source
	Tags []string

	// RetentionDays is copied from category config at write time, immutable per entry
	RetentionDays int

	// PayloadLocation is resolvable by the payload store
	PayloadLocation string

	// AccessCount is a best-effort read counter, not correctness-relevant
	AccessCount int64

	// LastAccessed is the Unix timestamp of the last read (nullable)
	LastAccessed *int64
}
