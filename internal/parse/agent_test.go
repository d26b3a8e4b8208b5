package parse

import (
	"context"
	"errors"
	"testing"
	"time"

	"newshive/internal/core"
	"newshive/internal/metrics"
)

// MockLLMClient implements LLMClient for testing
type MockLLMClient struct {
	response   string
	err        error
	callCount  int
	shouldFail bool
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.callCount++
	if m.shouldFail {
		if m.err != nil {
			return "", m.err
		}
		return "", errors.New("mock LLM error")
	}
	return m.response, nil
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.RetryDelay = time.Millisecond
	return opts
}

func TestParse_EmptyInput(t *testing.T) {
	mock := &MockLLMClient{}
	agent := NewAgent(mock, testOptions(), metrics.NewRegistry())

	result := agent.Parse(context.Background(), core.RawArticle{
		URL:     "https://example.com/a",
		RawText: "   ",
	})

	if result.Success {
		t.Error("Expected failure for empty content")
	}
	if result.ErrorReason != "Empty content provided" {
		t.Errorf("Expected 'Empty content provided', got %q", result.ErrorReason)
	}
	if mock.callCount != 0 {
		t.Errorf("LLM should not be called for empty input, got %d calls", mock.callCount)
	}
}

func TestParse_LLMSuccess(t *testing.T) {
	mock := &MockLLMClient{
		response: "```json\n{\"title\": \"Go 1.23 Released\", \"body\": \"The Go team announced the release today.\", \"source\": \"go.dev\", \"language\": \"en\"}\n```",
	}
	agent := NewAgent(mock, testOptions(), metrics.NewRegistry())

	result := agent.Parse(context.Background(), core.RawArticle{
		URL:     "https://go.dev/blog/go1.23",
		RawText: "Go 1.23 Released. The Go team announced the release today.",
	})

	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.ErrorReason)
	}
	if result.Title != "Go 1.23 Released" {
		t.Errorf("Unexpected title %q", result.Title)
	}
	if result.Source != "go.dev" {
		t.Errorf("Unexpected source %q", result.Source)
	}
}

func TestParse_FallbackAfterLLMFailure(t *testing.T) {
	mock := &MockLLMClient{shouldFail: true}
	registry := metrics.NewRegistry()
	agent := NewAgent(mock, testOptions(), registry)

	result := agent.Parse(context.Background(), core.RawArticle{
		URL:     "https://news.example.com/story",
		RawText: "A very important headline about current events. Here are the details of the story, spread across sentences.",
	})

	if !result.Success {
		t.Fatalf("Expected fallback success, got error: %s", result.ErrorReason)
	}
	if result.Title != "A very important headline about current events." {
		t.Errorf("Unexpected fallback title %q", result.Title)
	}
	if result.Source != "news.example.com" {
		t.Errorf("Expected source from URL host, got %q", result.Source)
	}
	if mock.callCount != 3 {
		t.Errorf("Expected 3 LLM attempts before fallback, got %d", mock.callCount)
	}

	counters := registry.Snapshot()[AgentName]
	if counters.Fallbacks != 1 {
		t.Errorf("Expected 1 fallback recorded, got %d", counters.Fallbacks)
	}
}

func TestParse_FallbackStripsMarkup(t *testing.T) {
	mock := &MockLLMClient{shouldFail: true}
	agent := NewAgent(mock, testOptions(), metrics.NewRegistry())

	result := agent.Parse(context.Background(), core.RawArticle{
		URL:     "https://example.com/html",
		RawText: "<html><body><script>alert(1)</script><p>The central bank raised interest rates today.</p><p>Markets reacted sharply to the move.</p></body></html>",
	})

	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.ErrorReason)
	}
	if result.Title != "The central bank raised interest rates today." {
		t.Errorf("Unexpected title %q", result.Title)
	}
	if contains := "alert(1)"; result.Body == contains || result.Title == contains {
		t.Error("Script content should be stripped")
	}
}

func TestParse_ValidationRejectsSpam(t *testing.T) {
	mock := &MockLLMClient{
		response: `{"title": "Casino wins guaranteed", "body": "Click here to buy now!"}`,
	}
	agent := NewAgent(mock, testOptions(), metrics.NewRegistry())

	result := agent.Parse(context.Background(), core.RawArticle{
		URL:     "https://spam.example.com/x",
		RawText: "Casino wins guaranteed. Click here to buy now!",
	})

	// LLM output and fallback both trip the spam markers
	if result.Success {
		t.Error("Expected spam content to be rejected on both paths")
	}
}

func TestParse_CacheHitSkipsLLM(t *testing.T) {
	mock := &MockLLMClient{
		response: `{"title": "Cached Story", "body": "Body text here."}`,
	}
	agent := NewAgent(mock, testOptions(), metrics.NewRegistry())

	raw := core.RawArticle{URL: "https://example.com/cached", RawText: "Cached Story. Body text here."}

	first := agent.Parse(context.Background(), raw)
	callsAfterFirst := mock.callCount
	second := agent.Parse(context.Background(), raw)

	if mock.callCount != callsAfterFirst {
		t.Errorf("Second parse should not call the LLM, calls went %d -> %d", callsAfterFirst, mock.callCount)
	}
	if first.Title != second.Title || first.Body != second.Body {
		t.Error("Cached result should match the original")
	}
}

func TestParse_CachePreservesFailure(t *testing.T) {
	mock := &MockLLMClient{}
	agent := NewAgent(mock, testOptions(), metrics.NewRegistry())

	raw := core.RawArticle{URL: "https://example.com/empty", RawText: ""}

	first := agent.Parse(context.Background(), raw)
	second := agent.Parse(context.Background(), raw)

	if first.Success || second.Success {
		t.Error("Both calls should report failure")
	}
	if second.ErrorReason != first.ErrorReason {
		t.Error("Cached failure should carry the original reason")
	}
}

func TestFallbackParse_NoLongSentence(t *testing.T) {
	result := fallbackParse("Short. Tiny. Ok.", "https://example.com")
	if result.Title == "" {
		t.Error("Fallback should always produce some title")
	}
}
