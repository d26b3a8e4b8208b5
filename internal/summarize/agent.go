package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"newshive/internal/core"
	"newshive/internal/llm"
	"newshive/internal/logger"
	"newshive/internal/metrics"
)

// AgentName identifies this agent in metrics.
const AgentName = "summarize"

const summarizePromptTemplate = `You are a news summarizer writing for a %s reader. The article is a %s piece.

Produce a %s-leaning summary. Return ONLY a JSON object:
{"brief": "1-2 sentence synopsis", "full": "a fuller paragraph summary", "points": ["3-5 key points"]}

Article text:
---
%s
---`

const factCheckPromptTemplate = `Compare the summary against the original article. Answer with a JSON object {"consistent": true/false, "issues": "short note on any factual drift, empty if none"}.

Original article:
---
%s
---

Summary:
---
%s
---`

// LLMClient generates text from a prompt.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Agent produces brief/points/detailed synopses, adapting style to the
// content and audience, with an advisory self-check against the source.
type Agent struct {
	llmClient LLMClient
	registry  *metrics.Registry
	output    OutputFormat
}

// NewAgent creates a summarize agent. Inline markup in the model output
// is stripped unless WithOutputFormat says otherwise.
func NewAgent(llmClient LLMClient, registry *metrics.Registry) *Agent {
	return &Agent{llmClient: llmClient, registry: registry, output: FormatPlain}
}

// WithOutputFormat sets the markup representation of the returned summaries.
func (a *Agent) WithOutputFormat(format OutputFormat) *Agent {
	a.output = format
	return a
}

type llmSummary struct {
	Brief  string   `json:"brief"`
	Full   string   `json:"full"`
	Points []string `json:"points"`
}

type factCheck struct {
	Consistent bool   `json:"consistent"`
	Issues     string `json:"issues"`
}

// Summarize generates a SummaryRecord for body. The requested style may be
// overridden by the content/audience rules; the style actually used is
// recorded on the result.
func (a *Agent) Summarize(ctx context.Context, body string, profile *core.UserProfile, requested Style) core.SummaryRecord {
	a.registry.Attempt(AgentName)

	var profileTags []string
	if profile != nil {
		profileTags = profile.PreferredTags
	}

	articleType := classifyArticleType(body)
	audience := classifyAudience(profileTags)
	style := selectStyle(requested, articleType, audience, len(body))

	prompt := fmt.Sprintf(summarizePromptTemplate, audience, articleType, style, body)

	response, err := a.llmClient.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("summarize agent LLM call failed, using truncation fallback", "error", err.Error())
		a.registry.Fallback(AgentName)
		return a.fallback(body, style)
	}

	var parsed llmSummary
	if err := llm.FirstJSON(response, &parsed); err != nil {
		logger.Warn("summarize agent could not extract summary JSON, using truncation fallback", "error", err.Error())
		a.registry.Fallback(AgentName)
		return a.fallback(body, style)
	}

	record := core.SummaryRecord{
		ID:       uuid.NewString(),
		Brief:    strings.TrimSpace(parsed.Brief),
		Detailed: strings.TrimSpace(parsed.Full),
		Points:   cleanPoints(parsed.Points),
		Style:    string(style),
	}
	if record.Brief == "" && record.Detailed == "" && len(record.Points) == 0 {
		a.registry.Fallback(AgentName)
		return a.fallback(body, style)
	}
	record = a.applyOutput(record)

	// Advisory only: a failed check is logged, never acted on.
	a.verify(ctx, body, record)

	a.registry.Success(AgentName)
	return record
}

// verify runs the fact-check call against the original body. The result
// does not alter the summary.
func (a *Agent) verify(ctx context.Context, body string, record core.SummaryRecord) {
	source := body
	if len(source) > 4000 {
		source = source[:4000]
	}

	summaryText := record.Detailed
	if summaryText == "" {
		summaryText = record.Brief
	}

	prompt := fmt.Sprintf(factCheckPromptTemplate, source, summaryText)
	response, err := a.llmClient.Generate(ctx, prompt)
	if err != nil {
		logger.Debug("summary fact-check call failed", "error", err.Error())
		return
	}

	var check factCheck
	if err := llm.FirstJSON(response, &check); err != nil {
		logger.Debug("summary fact-check response not parseable")
		return
	}
	if !check.Consistent {
		logger.Warn("summary failed advisory fact-check", "issues", check.Issues)
	}
}

// fallback truncates the body to its first sentences when the LLM path is
// unavailable.
func (a *Agent) fallback(body string, style Style) core.SummaryRecord {
	brief := firstSentences(body, 3)
	if brief == "" {
		brief = body
	}
	if len(brief) > 200 {
		brief = strings.TrimSpace(brief[:200]) + "..."
	}

	detailed := body
	if len(detailed) > 600 {
		detailed = strings.TrimSpace(detailed[:600]) + "..."
	}

	return a.applyOutput(core.SummaryRecord{
		ID:       uuid.NewString(),
		Brief:    brief,
		Detailed: detailed,
		Points:   nil,
		Style:    string(style),
	})
}

// applyOutput reformats every summary field for the configured markup
// representation.
func (a *Agent) applyOutput(record core.SummaryRecord) core.SummaryRecord {
	record.Brief = FormatOutput(record.Brief, a.output)
	record.Detailed = FormatOutput(record.Detailed, a.output)
	for i, p := range record.Points {
		record.Points[i] = FormatOutput(p, a.output)
	}
	return record
}

func firstSentences(text string, n int) string {
	var out strings.Builder
	count := 0

	for _, r := range text {
		out.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			count++
			if count >= n {
				break
			}
		}
	}
	return strings.TrimSpace(out.String())
}

func cleanPoints(points []string) []string {
	var cleaned []string
	for _, p := range points {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}
