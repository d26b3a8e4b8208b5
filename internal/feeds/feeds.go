// Package feeds loads raw articles from the configured RSS/Atom sources.
package feeds

import (
	"context"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"newshive/internal/config"
	"newshive/internal/core"
	"newshive/internal/logger"
)

// Loader fetches the configured feeds and turns their items into
// RawArticles for the pipeline.
type Loader struct {
	cfg    config.Feeds
	parser *gofeed.Parser
}

// NewLoader creates a feed loader from the feed configuration.
func NewLoader(cfg config.Feeds) *Loader {
	parser := gofeed.NewParser()
	if cfg.UserAgent != "" {
		parser.UserAgent = cfg.UserAgent
	}
	return &Loader{cfg: cfg, parser: parser}
}

// Load fetches every configured source and returns the collected raw
// articles. A failing source is logged and skipped, never fatal.
func (l *Loader) Load(ctx context.Context) []core.RawArticle {
	var articles []core.RawArticle
	for _, source := range l.cfg.Sources {
		items, err := l.loadSource(ctx, source)
		if err != nil {
			logger.Warn("failed to load feed", "source", source, "error", err)
			continue
		}
		articles = append(articles, items...)
	}
	logger.Info("feeds loaded", "sources", len(l.cfg.Sources), "articles", len(articles))
	return articles
}

func (l *Loader) loadSource(ctx context.Context, source string) ([]core.RawArticle, error) {
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	feed, err := l.parser.ParseURLWithContext(source, ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var articles []core.RawArticle
	for _, item := range feed.Items {
		if l.cfg.MaxPerFeed > 0 && len(articles) >= l.cfg.MaxPerFeed {
			break
		}
		raw, ok := l.itemToArticle(item, now)
		if !ok {
			continue
		}
		articles = append(articles, raw)
	}
	return articles, nil
}

// itemToArticle converts one feed item, applying the age cutoff and the
// minimum-text filter.
func (l *Loader) itemToArticle(item *gofeed.Item, now time.Time) (core.RawArticle, bool) {
	if item.Link == "" {
		return core.RawArticle{}, false
	}

	published := itemTime(item)
	if l.cfg.MaxAge > 0 && !published.IsZero() && now.Sub(published) > l.cfg.MaxAge {
		return core.RawArticle{}, false
	}

	text := rawText(item)
	if l.cfg.MinTextChars > 0 && len(text) < l.cfg.MinTextChars {
		return core.RawArticle{}, false
	}

	return core.RawArticle{
		URL:       item.Link,
		RawText:   text,
		FetchedAt: now,
	}, true
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}

// rawText joins the item title with whichever of content/description is
// richer, mirroring what the parse agent expects as input.
func rawText(item *gofeed.Item) string {
	body := item.Content
	if len(item.Description) > len(body) {
		body = item.Description
	}

	var b strings.Builder
	if title := strings.TrimSpace(item.Title); title != "" {
		b.WriteString(title)
	}
	if body = strings.TrimSpace(body); body != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(body)
	}
	return b.String()
}
