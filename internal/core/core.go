package core

import "time"

// AllTag is the sentinel preferred tag assigned to users who have not yet
// expressed any specific interest. It is removed once a real tag exists.
const AllTag = "all"

// RawArticle represents an article as fetched from a feed, before any
// processing. Identity is the URL.
type RawArticle struct {
	URL       string    `json:"url"`        // Source URL, unique identity of the article
	RawText   string    `json:"raw_text"`   // Unprocessed text (feed title + body, or scraped page text)
	FetchedAt time.Time `json:"fetched_at"` // Timestamp when the article was fetched
}

// ParsedArticle is the normalized record produced by the parse agent.
type ParsedArticle struct {
	Title       string    `json:"title"`                  // Extracted title
	Body        string    `json:"body"`                   // Main article text
	URL         string    `json:"url"`                    // Source URL carried through from RawArticle
	PublishedAt time.Time `json:"published_at,omitempty"` // Publication date when known
	Source      string    `json:"source"`                 // Publisher, usually the URL host
	Author      string    `json:"author,omitempty"`       // Author when the LLM could extract one
	Language    string    `json:"language,omitempty"`     // ISO language code when detected
	Success     bool      `json:"success"`                // Whether parsing produced a usable article
	ErrorReason string    `json:"error_reason,omitempty"` // Why parsing failed, empty on success
}

// SummaryRecord holds the three synopsis forms produced by the summarize agent.
type SummaryRecord struct {
	ID       string   `json:"id"`       // Unique identifier for the summary
	Brief    string   `json:"brief"`    // One/two sentence synopsis
	Detailed string   `json:"detailed"` // Longer prose synopsis
	Points   []string `json:"points"`   // Bullet-point synopsis
	Style    string   `json:"style"`    // Style actually used (brief, points, detailed)
}

// TaggingResult is the classification produced by the tag agent.
// Tags are normalized: lowercase, underscores for spaces, at most five.
type TaggingResult struct {
	Category         string             `json:"category"`          // Single category for the article
	Tags             []string           `json:"tags"`              // Normalized tags, deduplicated, capped at 5
	ConfidenceScores map[string]float64 `json:"confidence_scores"` // Per-tag confidence when the LLM supplied one
	TaxonomyUpdates  []string           `json:"taxonomy_updates"`  // Tags proposed for taxonomy review this run
}

// UserProfile holds a user's static preference sets and digest settings.
// PreferredTags always contains at least the AllTag sentinel.
type UserProfile struct {
	UserID        int64     `json:"user_id"`        // Telegram user ID
	PreferredTags []string  `json:"preferred_tags"` // Liked tags, or [AllTag]
	BlockedTags   []string  `json:"blocked_tags"`   // Tags the user never wants to see
	Style         string    `json:"style"`          // Preferred digest style (brief, points, detailed)
	CreatedAt     time.Time `json:"created_at"`     // First interaction with the bot
}

// InterestWeight is a decayed per-tag affinity in [0,1], distinct from the
// preferred/blocked sets.
type InterestWeight struct {
	Tag       string    `json:"tag"`        // Normalized tag
	Weight    float64   `json:"weight"`     // Affinity in [0,1]
	UpdatedAt time.Time `json:"updated_at"` // Last reinforcement or decay write
}

// Interaction records one delivered or rated article for a user.
type Interaction struct {
	UserID    int64     `json:"user_id"`   // Telegram user ID
	URL       string    `json:"url"`       // Article URL
	Tags      []string  `json:"tags"`      // Article tags at delivery time
	Action    string    `json:"action"`    // "delivered", "like" or "dislike"
	Timestamp time.Time `json:"timestamp"` // When the interaction happened
}

// CachedArticle is the fully processed article persisted per URL.
// At most one row per URL; rows are replaced whole, never patched.
type CachedArticle struct {
	URL          string    `json:"url"`           // Unique key
	Title        string    `json:"title"`         // Parsed title
	Brief        string    `json:"brief"`         // Brief summary
	Detailed     string    `json:"detailed"`      // Detailed summary
	Points       []string  `json:"points"`        // Bullet points
	Tags         []string  `json:"tags"`          // Normalized tags
	Category     string    `json:"category"`      // Category
	RenderedText string    `json:"rendered_text"` // Canonical rendered form (telegram markup, detailed style)
	ProcessedAt  time.Time `json:"processed_at"`  // When the pipeline produced this row
}

// Summary returns the cached article's summary fields as a SummaryRecord.
func (c *CachedArticle) Summary() SummaryRecord {
	return SummaryRecord{
		Brief:    c.Brief,
		Detailed: c.Detailed,
		Points:   append([]string(nil), c.Points...),
	}
}
