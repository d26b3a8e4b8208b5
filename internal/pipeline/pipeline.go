// Package pipeline orchestrates the per-user digest flow: cache lookup,
// parse, summarize, tag, recommend and render, with per-article error
// isolation.
package pipeline

import (
	"context"
	"time"

	"newshive/internal/core"
	"newshive/internal/logger"
	"newshive/internal/render"
	"newshive/internal/summarize"
)

// Options configures one pipeline instance.
type Options struct {
	CacheTTL        time.Duration // Freshness window for cached articles, zero keeps everything
	MaxArticles     int           // Per-run article cap, zero means unlimited
	EnrichThreshold int           // Feed text shorter than this triggers a page fetch
	Tone            render.Tone
	Format          render.Format
	UserAgent       string // Device heuristic input for rendering
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		CacheTTL:        24 * time.Hour,
		MaxArticles:     10,
		EnrichThreshold: 300,
		Tone:            render.ToneNeutral,
		Format:          render.FormatTelegram,
	}
}

// Pipeline owns every stage dependency explicitly; nothing here is a
// package singleton.
type Pipeline struct {
	source      ArticleSource
	parser      Parser
	summarizer  Summarizer
	tagger      Tagger
	recommender Recommender
	renderer    Renderer
	fetcher     PageFetcher // Optional
	store       Store
	options     Options
}

// NewPipeline wires the pipeline from its stage implementations. fetcher
// may be nil to disable page enrichment.
func NewPipeline(
	source ArticleSource,
	parser Parser,
	summarizer Summarizer,
	tagger Tagger,
	recommender Recommender,
	renderer Renderer,
	fetcher PageFetcher,
	store Store,
	options Options,
) *Pipeline {
	return &Pipeline{
		source:      source,
		parser:      parser,
		summarizer:  summarizer,
		tagger:      tagger,
		recommender: recommender,
		renderer:    renderer,
		fetcher:     fetcher,
		store:       store,
		options:     options,
	}
}

// Delivery is one accepted article rendered for the user.
type Delivery struct {
	URL      string
	Title    string
	Tags     []string
	Messages []string
}

// Stats tracks one digest run.
type Stats struct {
	TotalArticles int
	CacheHits     int
	CacheMisses   int
	ParseFailures int
	Rejected      int
	Delivered     int
	Duration      time.Duration
}

// Result is the outcome of one per-user digest run.
type Result struct {
	Deliveries []Delivery
	Stats      Stats
}

// Run builds a digest for one user: loads the sources and pushes every
// article through the stages. A failing article never aborts the run.
func (p *Pipeline) Run(ctx context.Context, profile *core.UserProfile) (*Result, error) {
	start := time.Now()
	result := &Result{}

	articles := p.source.Load(ctx)
	if p.options.MaxArticles > 0 && len(articles) > p.options.MaxArticles {
		articles = articles[:p.options.MaxArticles]
	}
	result.Stats.TotalArticles = len(articles)

	for _, raw := range articles {
		if ctx.Err() != nil {
			break
		}
		delivery := p.processArticle(ctx, profile, raw, &result.Stats)
		if delivery != nil {
			result.Deliveries = append(result.Deliveries, *delivery)
			result.Stats.Delivered++
		}
	}

	result.Stats.Duration = time.Since(start)
	logger.Info("digest run complete",
		"user_id", profile.UserID,
		"articles", result.Stats.TotalArticles,
		"delivered", result.Stats.Delivered,
		"cache_hits", result.Stats.CacheHits,
		"duration", result.Stats.Duration.String())
	return result, nil
}

// processArticle runs one article through the stages for one user.
// Returns nil when the article is skipped or rejected.
func (p *Pipeline) processArticle(ctx context.Context, profile *core.UserProfile, raw core.RawArticle, stats *Stats) *Delivery {
	cached, err := p.store.CachedArticleByURL(raw.URL, p.options.CacheTTL)
	if err != nil {
		logger.Warn("cache lookup failed", "url", raw.URL, "error", err)
	}
	if cached != nil {
		stats.CacheHits++
		return p.deliverCached(profile, cached, stats)
	}
	stats.CacheMisses++

	article := p.parseWithEnrichment(ctx, raw)
	if !article.Success {
		logger.Debug("article skipped", "url", raw.URL, "reason", article.ErrorReason)
		stats.ParseFailures++
		return nil
	}

	summary := p.summarizer.Summarize(ctx, article.Body, profile, summarize.Style(profile.Style))

	tagInput := summary.Detailed
	if tagInput == "" {
		tagInput = summary.Brief
	}
	tagged := p.tagger.Tag(ctx, tagInput, profile.PreferredTags)

	decision := p.recommender.Recommend(ctx, profile, tagged.Category, tagged.Tags)
	if !decision.Accepted {
		logger.Debug("article rejected", "url", raw.URL, "reason", decision.Reason)
		stats.Rejected++
		return nil
	}

	messages := p.renderer.Render(render.Input{
		Title:     article.Title,
		Brief:     summary.Brief,
		Detailed:  summary.Detailed,
		Points:    summary.Points,
		Category:  tagged.Category,
		Tags:      tagged.Tags,
		URL:       article.URL,
		Style:     summary.Style,
		UserAgent: p.options.UserAgent,
		Tone:      p.options.Tone,
		Format:    p.options.Format,
	})

	p.cacheProcessed(article, summary, tagged, messages)
	p.recordDelivery(profile.UserID, article.URL, tagged.Tags)

	return &Delivery{
		URL:      article.URL,
		Title:    article.Title,
		Tags:     tagged.Tags,
		Messages: messages,
	}
}

// deliverCached re-runs only the deterministic recommend gate and renders
// from the cached fields, keeping repeat runs byte-identical and LLM-free.
func (p *Pipeline) deliverCached(profile *core.UserProfile, cached *core.CachedArticle, stats *Stats) *Delivery {
	decision := p.recommender.RecommendCached(profile, cached.Category, cached.Tags)
	if !decision.Accepted {
		stats.Rejected++
		return nil
	}

	style := profile.Style
	if style == "" {
		style = "brief"
	}
	messages := p.renderer.Render(render.Input{
		Title:     cached.Title,
		Brief:     cached.Brief,
		Detailed:  cached.Detailed,
		Points:    cached.Points,
		Category:  cached.Category,
		Tags:      cached.Tags,
		URL:       cached.URL,
		Style:     style,
		UserAgent: p.options.UserAgent,
		Tone:      p.options.Tone,
		Format:    p.options.Format,
	})

	p.recordDelivery(profile.UserID, cached.URL, cached.Tags)

	return &Delivery{
		URL:      cached.URL,
		Title:    cached.Title,
		Tags:     cached.Tags,
		Messages: messages,
	}
}

// parseWithEnrichment fetches the full page when the feed text is too
// thin, then parses whichever text is available.
func (p *Pipeline) parseWithEnrichment(ctx context.Context, raw core.RawArticle) core.ParsedArticle {
	if p.fetcher != nil && len(raw.RawText) < p.options.EnrichThreshold {
		page, err := p.fetcher.FetchPage(ctx, raw.URL)
		if err != nil {
			logger.Debug("page enrichment failed", "url", raw.URL, "error", err)
		} else if len(page.Text) > len(raw.RawText) {
			enriched := page.Title + "\n\n" + page.Text
			raw.RawText = enriched
		}
	}
	return p.parser.Parse(ctx, raw)
}

func (p *Pipeline) cacheProcessed(article core.ParsedArticle, summary core.SummaryRecord, tagged core.TaggingResult, messages []string) {
	rendered := ""
	if len(messages) > 0 {
		rendered = messages[0]
	}
	err := p.store.CacheArticle(core.CachedArticle{
		URL:          article.URL,
		Title:        article.Title,
		Brief:        summary.Brief,
		Detailed:     summary.Detailed,
		Points:       summary.Points,
		Tags:         tagged.Tags,
		Category:     tagged.Category,
		RenderedText: rendered,
		ProcessedAt:  time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("failed to cache processed article", "url", article.URL, "error", err)
	}
}

func (p *Pipeline) recordDelivery(userID int64, url string, tags []string) {
	err := p.store.AddInteraction(core.Interaction{
		UserID:    userID,
		URL:       url,
		Tags:      tags,
		Action:    "delivered",
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("failed to record interaction", "url", url, "error", err)
	}
}
