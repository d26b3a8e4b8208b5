package parse

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"newshive/internal/core"
	"newshive/internal/llm"
	"newshive/internal/logger"
	"newshive/internal/metrics"
)

// AgentName identifies this agent in metrics.
const AgentName = "parse"

const parsePromptTemplate = `You are a news article parser. Extract the structured article from the raw text below.

Return ONLY a JSON object with these fields:
{"title": "...", "body": "...", "published_at": "RFC3339 timestamp or empty", "source": "publisher name or empty", "author": "author or empty", "language": "two-letter code or empty"}

The title must be the actual headline, at least 2 characters. The body must be the main article text with boilerplate removed.

Raw text:
---
%s
---`

// LLMClient generates text from a prompt.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configures the parse agent.
type Options struct {
	MaxRetries  int           // LLM attempts before the heuristic fallback
	RetryDelay  time.Duration // Base delay, multiplied per attempt
	SpamMarkers []string      // Case-insensitive substrings that reject an article
	NSFWMarkers []string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:  3,
		RetryDelay:  time.Second,
		SpamMarkers: []string{"buy now", "click here", "limited offer", "casino"},
		NSFWMarkers: []string{"nsfw", "18+", "xxx"},
	}
}

// Agent turns raw fetched text into a normalized ParsedArticle, falling
// back to a deterministic extractor when the LLM path fails validation.
type Agent struct {
	llmClient LLMClient
	options   Options
	registry  *metrics.Registry

	mu    sync.Mutex
	cache map[string]core.ParsedArticle // keyed by URL hash, failures included
}

// NewAgent creates a parse agent.
func NewAgent(llmClient LLMClient, options Options, registry *metrics.Registry) *Agent {
	return &Agent{
		llmClient: llmClient,
		options:   options,
		registry:  registry,
		cache:     make(map[string]core.ParsedArticle),
	}
}

type llmParsed struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	PublishedAt string `json:"published_at"`
	Source      string `json:"source"`
	Author      string `json:"author"`
	Language    string `json:"language"`
}

// Parse produces a ParsedArticle from raw fetched text. A cache hit for
// the same URL short-circuits everything, including previous failures.
func (a *Agent) Parse(ctx context.Context, raw core.RawArticle) core.ParsedArticle {
	key := urlKey(raw.URL)

	a.mu.Lock()
	if cached, ok := a.cache[key]; ok {
		a.mu.Unlock()
		return cached
	}
	a.mu.Unlock()

	result := a.parse(ctx, raw)

	a.mu.Lock()
	a.cache[key] = result
	a.mu.Unlock()

	return result
}

func (a *Agent) parse(ctx context.Context, raw core.RawArticle) core.ParsedArticle {
	a.registry.Attempt(AgentName)

	if strings.TrimSpace(raw.RawText) == "" {
		return core.ParsedArticle{
			URL:         raw.URL,
			Source:      hostOf(raw.URL),
			Success:     false,
			ErrorReason: "Empty content provided",
		}
	}

	prompt := fmt.Sprintf(parsePromptTemplate, raw.RawText)

	attempts := a.options.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(a.options.RetryDelay * time.Duration(attempt)):
			}
			if ctx.Err() != nil {
				break
			}
		}

		response, err := a.llmClient.Generate(ctx, prompt)
		if err != nil {
			lastErr = err
			continue
		}

		var parsed llmParsed
		if err := llm.FirstJSON(response, &parsed); err != nil {
			lastErr = err
			continue
		}

		article := a.toArticle(parsed, raw.URL)
		if err := a.validate(article); err != nil {
			lastErr = err
			continue
		}

		a.registry.Success(AgentName)
		return article
	}

	logger.Debug("parse agent falling back to heuristic extractor", "url", raw.URL, "last_error", fmt.Sprint(lastErr))
	a.registry.Fallback(AgentName)

	article := fallbackParse(raw.RawText, raw.URL)
	if err := a.validate(article); err != nil {
		return core.ParsedArticle{
			URL:         raw.URL,
			Source:      hostOf(raw.URL),
			Success:     false,
			ErrorReason: err.Error(),
		}
	}

	a.registry.Success(AgentName)
	return article
}

func (a *Agent) toArticle(parsed llmParsed, sourceURL string) core.ParsedArticle {
	article := core.ParsedArticle{
		Title:    strings.TrimSpace(parsed.Title),
		Body:     strings.TrimSpace(parsed.Body),
		URL:      sourceURL,
		Source:   strings.TrimSpace(parsed.Source),
		Author:   strings.TrimSpace(parsed.Author),
		Language: strings.TrimSpace(parsed.Language),
		Success:  true,
	}
	if article.Source == "" {
		article.Source = hostOf(sourceURL)
	}
	if parsed.PublishedAt != "" {
		if ts, err := time.Parse(time.RFC3339, parsed.PublishedAt); err == nil {
			article.PublishedAt = ts
		}
	}
	return article
}

// validate applies the content-quality policy shared by the LLM and
// fallback paths.
func (a *Agent) validate(article core.ParsedArticle) error {
	if len(strings.TrimSpace(article.Title)) < 2 {
		return fmt.Errorf("title missing or too short")
	}

	haystack := strings.ToLower(article.Title + " " + article.Body)
	for _, marker := range a.options.SpamMarkers {
		if marker != "" && strings.Contains(haystack, strings.ToLower(marker)) {
			return fmt.Errorf("content rejected: spam marker %q", marker)
		}
	}
	for _, marker := range a.options.NSFWMarkers {
		if marker != "" && strings.Contains(haystack, strings.ToLower(marker)) {
			return fmt.Errorf("content rejected: nsfw marker %q", marker)
		}
	}
	return nil
}

func urlKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}
