package tags

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"newshive/internal/core"
	"newshive/internal/llm"
	"newshive/internal/logger"
	"newshive/internal/metrics"
	"newshive/internal/taxonomy"
)

// AgentName identifies this agent in metrics.
const AgentName = "tags"

// MaxTags is the hard cap on tags per article after normalization.
const MaxTags = 5

const tagPromptTemplate = `You are a news tagging assistant. Classify the article summary below.

Prefer tags from this allowed list:
%s

The user follows these tags, include them when they genuinely match the summary:
%s

Return ONLY a JSON object:
{"category": "one category name", "tags": ["up to 5 tags"], "confidence": {"tag": 0.0}}

Summary:
---
%s
---`

// LLMClient generates text from a prompt.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configures the tag agent.
type Options struct {
	ProposeThreshold int // Distinct uses before an unknown tag is proposed for review
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{ProposeThreshold: 3}
}

// Agent classifies article summaries into a category and a normalized tag
// list, validating every tag against the summary text and the taxonomy.
type Agent struct {
	llmClient LLMClient
	store     *taxonomy.Store
	options   Options
	registry  *metrics.Registry

	mu    sync.Mutex
	cache map[string]core.TaggingResult
	usage map[string]int // Unknown-tag occurrence counts across this process
}

// NewAgent creates a tag agent backed by the given taxonomy store.
func NewAgent(llmClient LLMClient, store *taxonomy.Store, options Options, registry *metrics.Registry) *Agent {
	return &Agent{
		llmClient: llmClient,
		store:     store,
		options:   options,
		registry:  registry,
		cache:     make(map[string]core.TaggingResult),
		usage:     make(map[string]int),
	}
}

type llmTagged struct {
	Category   string             `json:"category"`
	Tags       []string           `json:"tags"`
	Confidence map[string]float64 `json:"confidence"`
}

// Tag classifies summary, blending in the user's preferred tags. Identical
// (summary, user tags) pairs are served from cache without an LLM call.
func (a *Agent) Tag(ctx context.Context, summary string, userTags []string) core.TaggingResult {
	key := cacheKey(summary, userTags)

	a.mu.Lock()
	if cached, ok := a.cache[key]; ok {
		a.mu.Unlock()
		return cached
	}
	a.mu.Unlock()

	result := a.tag(ctx, summary, userTags)

	a.mu.Lock()
	a.cache[key] = result
	a.mu.Unlock()

	return result
}

func (a *Agent) tag(ctx context.Context, summary string, userTags []string) core.TaggingResult {
	a.registry.Attempt(AgentName)

	doc, err := a.store.Load()
	if err != nil {
		logger.Warn("tag agent could not load taxonomy, using defaults", "error", err)
		doc = taxonomy.DefaultDocument()
	}

	prompt := fmt.Sprintf(tagPromptTemplate,
		strings.Join(doc.AllTags(), ", "),
		strings.Join(specificTags(userTags), ", "),
		summary)

	response, llmErr := a.llmClient.Generate(ctx, prompt)
	if llmErr != nil {
		logger.Debug("tag agent falling back to keyword buckets", "error", llmErr)
		a.registry.Fallback(AgentName)
		result := fallbackTag(summary)
		a.registry.Success(AgentName)
		return result
	}

	var tagged llmTagged
	if err := llm.FirstJSON(response, &tagged); err != nil {
		logger.Debug("tag agent falling back to keyword buckets", "error", err)
		a.registry.Fallback(AgentName)
		result := fallbackTag(summary)
		a.registry.Success(AgentName)
		return result
	}

	result := a.assemble(doc, summary, tagged, userTags)
	a.registry.Success(AgentName)
	return result
}

// assemble runs the post-LLM pipeline: merge, normalize, disambiguate,
// validate against the summary, close over taxonomy ancestors, cap at
// MaxTags and route unknown tags toward taxonomy review.
func (a *Agent) assemble(doc *taxonomy.Document, summary string, tagged llmTagged, userTags []string) core.TaggingResult {
	confidence := make(map[string]float64)
	for raw, score := range tagged.Confidence {
		if normalized := Normalize(raw); normalized != "" {
			confidence[normalized] = score
		}
	}

	merged := append(append([]string{}, tagged.Tags...), specificTags(userTags)...)

	seen := make(map[string]bool)
	var kept []string
	for _, raw := range NormalizeAll(merged, 0) {
		resolved := disambiguate(raw, summary)
		if resolved != raw {
			if score, ok := confidence[raw]; ok {
				confidence[resolved] = score
			}
		}
		if seen[resolved] {
			continue
		}
		if !tagSupported(resolved, summary) {
			continue
		}
		seen[resolved] = true
		kept = append(kept, resolved)
	}

	// Ancestors ride along with their children so hierarchy-level
	// preferences still match the article.
	var closed []string
	for _, tag := range kept {
		closed = append(closed, tag)
		for _, ancestor := range doc.Ancestors(tag) {
			if !seen[ancestor] {
				seen[ancestor] = true
				closed = append(closed, ancestor)
			}
		}
	}
	if len(closed) > MaxTags {
		closed = closed[:MaxTags]
	}

	scores := make(map[string]float64)
	for _, tag := range closed {
		if score, ok := confidence[tag]; ok {
			scores[tag] = score
		}
	}

	return core.TaggingResult{
		Category:         a.pickCategory(doc, tagged.Category, closed),
		Tags:             closed,
		ConfidenceScores: scores,
		TaxonomyUpdates:  a.recordUsage(doc, closed),
	}
}

// pickCategory prefers the LLM's category when it names a known one, then
// the category owning the first tag, then "general".
func (a *Agent) pickCategory(doc *taxonomy.Document, suggested string, tags []string) string {
	normalized := Normalize(suggested)
	if _, ok := doc.Categories[normalized]; ok {
		return normalized
	}
	for _, tag := range tags {
		for category, members := range doc.Categories {
			for _, member := range members {
				if member == tag {
					return category
				}
			}
		}
	}
	return "general"
}

// recordUsage counts unknown tags and proposes each one for taxonomy
// review once it crosses the configured threshold.
func (a *Agent) recordUsage(doc *taxonomy.Document, tags []string) []string {
	threshold := a.options.ProposeThreshold
	if threshold < 1 {
		threshold = 1
	}

	var proposed []string
	for _, tag := range tags {
		if doc.HasTag(tag) {
			continue
		}

		a.mu.Lock()
		a.usage[tag]++
		count := a.usage[tag]
		a.mu.Unlock()

		if count < threshold {
			continue
		}
		added, err := a.store.Propose(tag)
		if err != nil {
			logger.Warn("failed to propose tag for taxonomy review", "tag", tag, "error", err)
			continue
		}
		if added {
			proposed = append(proposed, tag)
		}
	}
	return proposed
}

// adjacencyHints keeps a tag that never appears literally in the summary
// when one of its close textual markers does.
var adjacencyHints = map[string][]string{
	"ai":             {"artificial intelligence", "machine learning", "neural", "llm", "нейросет", "искусственный интеллект"},
	"neural_network": {"neural", "deep learning", "нейросет", "нейронн"},
	"apple_inc":      {"apple", "iphone", "ipad", "mac", "ios"},
	"crypto":         {"bitcoin", "ethereum", "blockchain", "биткоин", "блокчейн", "криптовалют"},
	"markets":        {"stock", "nasdaq", "s&p", "акци", "бирж", "индекс"},
	"elections":      {"vote", "ballot", "poll", "выбор", "голосован"},
	"space":          {"nasa", "rocket", "orbit", "spacex", "ракет", "орбит", "запуск"},
	"climate":        {"warming", "emission", "carbon", "климат", "потеплен", "углерод"},
	"фрукты":         {"fruit", "фрукт", "яблок", "апельсин"},
	"medicine":       {"vaccine", "clinical", "вакцин", "клиническ", "пациент"},
}

// tagSupported reports whether tag is grounded in the summary text,
// either literally or through an adjacency hint.
func tagSupported(tag, summary string) bool {
	haystack := strings.ToLower(summary)
	if strings.Contains(haystack, tag) {
		return true
	}
	if spaced := strings.ReplaceAll(tag, "_", " "); strings.Contains(haystack, spaced) {
		return true
	}
	for _, hint := range adjacencyHints[tag] {
		if strings.Contains(haystack, hint) {
			return true
		}
	}
	return false
}

// fallbackBuckets drive the no-LLM path: any keyword hit in the summary
// contributes its tag.
var fallbackBuckets = []senseBucket{
	{tag: "ai", keywords: []string{"artificial intelligence", " ai ", "neural", "llm", "нейросет"}},
	{tag: "crypto", keywords: []string{"bitcoin", "blockchain", "crypto", "биткоин", "криптовалют"}},
	{tag: "markets", keywords: []string{"stock", "market", "nasdaq", "акци", "бирж"}},
	{tag: "elections", keywords: []string{"election", "vote", "выбор", "голосован"}},
	{tag: "space", keywords: []string{"nasa", "rocket", "orbit", "space", "ракет", "космос"}},
	{tag: "climate", keywords: []string{"climate", "warming", "климат", "потеплен"}},
	{tag: "medicine", keywords: []string{"vaccine", "hospital", "вакцин", "медицин"}},
	{tag: "sports", keywords: []string{"match", "tournament", "матч", "турнир", "чемпионат"}},
	{tag: "energy", keywords: []string{"oil", "gas", "нефт", "газ", "энерг"}},
}

// fallbackTag classifies without the LLM using keyword buckets only.
func fallbackTag(summary string) core.TaggingResult {
	haystack := strings.ToLower(summary)
	var tags []string
	for _, bucket := range fallbackBuckets {
		for _, keyword := range bucket.keywords {
			if strings.Contains(haystack, keyword) {
				tags = append(tags, bucket.tag)
				break
			}
		}
		if len(tags) == MaxTags {
			break
		}
	}
	return core.TaggingResult{
		Category:         "general",
		Tags:             tags,
		ConfidenceScores: map[string]float64{},
	}
}

// specificTags filters out the catch-all sentinel, which is a preference
// marker rather than a real tag.
func specificTags(userTags []string) []string {
	var out []string
	for _, tag := range userTags {
		if tag != core.AllTag && strings.TrimSpace(tag) != "" {
			out = append(out, tag)
		}
	}
	return out
}

func cacheKey(summary string, userTags []string) string {
	sorted := append([]string(nil), userTags...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(summary + "\x00" + strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])
}
