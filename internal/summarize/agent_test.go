package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"newshive/internal/core"
	"newshive/internal/metrics"
)

// MockLLMClient implements LLMClient for testing
type MockLLMClient struct {
	summaryResponse string
	checkResponse   string
	shouldFail      bool
	callCount       int
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.callCount++
	if m.shouldFail {
		return "", errors.New("mock LLM error")
	}
	if strings.Contains(prompt, "Compare the summary") {
		if m.checkResponse != "" {
			return m.checkResponse, nil
		}
		return `{"consistent": true, "issues": ""}`, nil
	}
	return m.summaryResponse, nil
}

func analyticsBody(chars int) string {
	unit := "The analysis of market data shows a clear trend in the statistics. According to the data, the forecast remains stable. "
	var sb strings.Builder
	for sb.Len() < chars {
		sb.WriteString(unit)
	}
	return sb.String()[:chars]
}

func TestSummarize_Success(t *testing.T) {
	mock := &MockLLMClient{
		summaryResponse: `{"brief": "Short take.", "full": "A longer paragraph about the story.", "points": ["First", "Second", ""]}`,
	}
	agent := NewAgent(mock, metrics.NewRegistry())

	record := agent.Summarize(context.Background(), analyticsBody(1000), nil, StyleBrief)

	if record.Brief != "Short take." {
		t.Errorf("Unexpected brief %q", record.Brief)
	}
	if record.Detailed != "A longer paragraph about the story." {
		t.Errorf("Unexpected detailed %q", record.Detailed)
	}
	if len(record.Points) != 2 {
		t.Errorf("Expected empty points to be dropped, got %v", record.Points)
	}
	// Generation plus the advisory fact-check
	if mock.callCount != 2 {
		t.Errorf("Expected 2 LLM calls, got %d", mock.callCount)
	}
}

func TestSummarize_OutputFormatAppliedToRecord(t *testing.T) {
	response := `{"brief": "A **bold** claim.", "full": "First point made. Second point follows.", "points": ["__Key__ figure"]}`

	mock := &MockLLMClient{summaryResponse: response}
	record := NewAgent(mock, metrics.NewRegistry()).
		Summarize(context.Background(), analyticsBody(1000), nil, StyleBrief)
	if record.Brief != "A bold claim." {
		t.Errorf("Default format should strip markup, got %q", record.Brief)
	}
	if record.Points[0] != "Key figure" {
		t.Errorf("Points should be stripped too, got %q", record.Points[0])
	}

	mock = &MockLLMClient{summaryResponse: response}
	record = NewAgent(mock, metrics.NewRegistry()).
		WithOutputFormat(FormatInline).
		Summarize(context.Background(), analyticsBody(1000), nil, StyleBrief)
	if record.Brief != "A **bold** claim." {
		t.Errorf("Inline format must keep markup, got %q", record.Brief)
	}

	mock = &MockLLMClient{summaryResponse: response}
	record = NewAgent(mock, metrics.NewRegistry()).
		WithOutputFormat(FormatLinebreaks).
		Summarize(context.Background(), analyticsBody(1000), nil, StyleBrief)
	if record.Detailed != "First point made.\nSecond point follows." {
		t.Errorf("Linebreaks format must break sentences, got %q", record.Detailed)
	}
}

func TestSummarize_ExpertLongBodyForcesDetailed(t *testing.T) {
	mock := &MockLLMClient{
		summaryResponse: `{"brief": "b", "full": "f", "points": []}`,
	}
	agent := NewAgent(mock, metrics.NewRegistry())

	profile := &core.UserProfile{
		UserID:        1,
		PreferredTags: []string{"ai", "crypto", "markets"},
	}

	record := agent.Summarize(context.Background(), analyticsBody(4000), profile, StyleBrief)

	if record.Style != string(StyleDetailed) {
		t.Errorf("Expected detailed override for long expert content, got %q", record.Style)
	}
}

func TestSummarize_InterviewForcesPoints(t *testing.T) {
	mock := &MockLLMClient{
		summaryResponse: `{"brief": "b", "full": "f", "points": ["p"]}`,
	}
	agent := NewAgent(mock, metrics.NewRegistry())

	body := strings.Repeat("In this interview he said the project was on track. We asked about the roadmap and he told us more. ", 10)
	record := agent.Summarize(context.Background(), body, nil, StyleDetailed)

	if record.Style != string(StylePoints) {
		t.Errorf("Expected points style for interview, got %q", record.Style)
	}
}

func TestSummarize_ShortBodyForcesBrief(t *testing.T) {
	mock := &MockLLMClient{
		summaryResponse: `{"brief": "b", "full": "f", "points": []}`,
	}
	agent := NewAgent(mock, metrics.NewRegistry())

	record := agent.Summarize(context.Background(), "A short note about something minor.", nil, StyleDetailed)

	if record.Style != string(StyleBrief) {
		t.Errorf("Expected brief style for short body, got %q", record.Style)
	}
}

func TestSummarize_FallbackOnLLMFailure(t *testing.T) {
	mock := &MockLLMClient{shouldFail: true}
	registry := metrics.NewRegistry()
	agent := NewAgent(mock, registry)

	body := "First sentence of the story. Second sentence with detail. Third sentence wraps up. Fourth is extra."
	record := agent.Summarize(context.Background(), body, nil, StyleBrief)

	if record.Brief == "" {
		t.Fatal("Fallback should produce a brief")
	}
	if !strings.HasPrefix(record.Brief, "First sentence of the story.") {
		t.Errorf("Fallback brief should start with the first sentence, got %q", record.Brief)
	}
	if strings.Contains(record.Brief, "Fourth") {
		t.Errorf("Fallback brief should stop after three sentences, got %q", record.Brief)
	}

	counters := registry.Snapshot()[AgentName]
	if counters.Fallbacks != 1 {
		t.Errorf("Expected 1 fallback recorded, got %d", counters.Fallbacks)
	}
}

func TestSummarize_FallbackTruncatesLongText(t *testing.T) {
	mock := &MockLLMClient{shouldFail: true}
	agent := NewAgent(mock, metrics.NewRegistry())

	// One unbroken 1000-char "sentence"
	body := strings.Repeat("x", 1000)
	record := agent.Summarize(context.Background(), body, nil, StyleBrief)

	if len(record.Brief) > 210 {
		t.Errorf("Fallback brief should be capped near 200 chars, got %d", len(record.Brief))
	}
}

func TestSummarize_FailedFactCheckDoesNotChangeSummary(t *testing.T) {
	mock := &MockLLMClient{
		summaryResponse: `{"brief": "The claim.", "full": "The full claim.", "points": []}`,
		checkResponse:   `{"consistent": false, "issues": "numbers drifted"}`,
	}
	agent := NewAgent(mock, metrics.NewRegistry())

	record := agent.Summarize(context.Background(), analyticsBody(1000), nil, StyleBrief)

	if record.Brief != "The claim." {
		t.Errorf("Advisory fact-check must not alter the summary, got %q", record.Brief)
	}
}

func TestFormatOutput(t *testing.T) {
	text := "This is **bold** and _quiet_. Next sentence here."

	plain := FormatOutput(text, FormatPlain)
	if strings.ContainsAny(plain, "*_") {
		t.Errorf("Plain format should strip markup, got %q", plain)
	}

	inline := FormatOutput(text, FormatInline)
	if inline != text {
		t.Errorf("Inline format should keep text unchanged, got %q", inline)
	}

	broken := FormatOutput(text, FormatLinebreaks)
	if !strings.Contains(broken, "\n") {
		t.Errorf("Linebreak format should insert newlines, got %q", broken)
	}
}

func TestClassifyAudience(t *testing.T) {
	if got := classifyAudience(nil); got != AudienceBeginner {
		t.Errorf("Empty profile should be beginner, got %s", got)
	}
	if got := classifyAudience([]string{"all"}); got != AudienceBeginner {
		t.Errorf("Sentinel-only profile should be beginner, got %s", got)
	}
	if got := classifyAudience([]string{"ai", "research"}); got != AudienceExpert {
		t.Errorf("Two expert tags should be expert, got %s", got)
	}
	if got := classifyAudience([]string{"sports", "culture"}); got != AudienceNeutral {
		t.Errorf("Non-expert tags should be neutral, got %s", got)
	}
}
