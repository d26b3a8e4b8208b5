package pipeline

import (
	"context"
	"time"

	"newshive/internal/core"
	"newshive/internal/fetch"
	"newshive/internal/recommend"
	"newshive/internal/render"
	"newshive/internal/summarize"
)

// ArticleSource supplies raw articles, typically from RSS feeds.
type ArticleSource interface {
	Load(ctx context.Context) []core.RawArticle
}

// Parser normalizes raw article text.
type Parser interface {
	Parse(ctx context.Context, raw core.RawArticle) core.ParsedArticle
}

// Summarizer produces the summary record for an article body.
type Summarizer interface {
	Summarize(ctx context.Context, body string, profile *core.UserProfile, requested summarize.Style) core.SummaryRecord
}

// Tagger classifies a summary into a category and tags.
type Tagger interface {
	Tag(ctx context.Context, summary string, userTags []string) core.TaggingResult
}

// Recommender gates articles per user profile. RecommendCached is the
// deterministic variant used for already-cached articles: it must not
// call the LLM or reinforce interest weights.
type Recommender interface {
	Recommend(ctx context.Context, profile *core.UserProfile, category string, tags []string) recommend.Decision
	RecommendCached(profile *core.UserProfile, category string, tags []string) recommend.Decision
}

// Renderer turns a processed article into message chunks.
type Renderer interface {
	Render(in render.Input) []string
}

// PageFetcher enriches thin feed items with the full page text.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*fetch.Page, error)
}

// Store is the persistence surface the pipeline needs.
type Store interface {
	CachedArticleByURL(url string, maxAge time.Duration) (*core.CachedArticle, error)
	CacheArticle(article core.CachedArticle) error
	AddInteraction(interaction core.Interaction) error
}
