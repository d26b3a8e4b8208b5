package tags

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"newshive/internal/metrics"
	"newshive/internal/taxonomy"
)

type MockLLMClient struct {
	response  string
	err       error
	callCount int
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.callCount++
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func newTestAgent(t *testing.T, mock *MockLLMClient, options Options) (*Agent, *taxonomy.Store, *metrics.Registry) {
	t.Helper()
	store, err := taxonomy.NewStore(filepath.Join(t.TempDir(), "taxonomy.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	registry := metrics.NewRegistry()
	return NewAgent(mock, store, options, registry), store, registry
}

func TestTag_DisambiguatesAppleAsCompany(t *testing.T) {
	mock := &MockLLMClient{
		response: `{"category": "technology", "tags": ["apple"], "confidence": {"apple": 0.9}}`,
	}
	agent, _, _ := newTestAgent(t, mock, DefaultOptions())

	result := agent.Tag(context.Background(), "Компания Apple представила новый чип для ноутбуков", nil)

	if !containsTag(result.Tags, "apple_inc") {
		t.Errorf("expected apple_inc in tags, got %v", result.Tags)
	}
	if containsTag(result.Tags, "apple") {
		t.Errorf("literal apple should have been resolved, got %v", result.Tags)
	}
	if result.Category != "technology" {
		t.Errorf("expected category technology, got %q", result.Category)
	}
	if score := result.ConfidenceScores["apple_inc"]; score != 0.9 {
		t.Errorf("confidence should follow the resolved tag, got %v", result.ConfidenceScores)
	}
}

func TestTag_DisambiguatesAppleAsFruit(t *testing.T) {
	mock := &MockLLMClient{
		response: `{"category": "food", "tags": ["apple"]}`,
	}
	agent, _, _ := newTestAgent(t, mock, DefaultOptions())

	result := agent.Tag(context.Background(), "Свежие яблоки: главный фрукт сезона, сок и витамины", nil)

	if !containsTag(result.Tags, "фрукты") {
		t.Errorf("expected фрукты in tags, got %v", result.Tags)
	}
	if result.Category != "food" {
		t.Errorf("expected category food, got %q", result.Category)
	}
}

func TestTag_AddsAncestorsOfKeptTags(t *testing.T) {
	mock := &MockLLMClient{
		response: `{"category": "technology", "tags": ["neural_network"]}`,
	}
	agent, _, _ := newTestAgent(t, mock, DefaultOptions())

	result := agent.Tag(context.Background(), "A new neural network architecture was published", nil)

	for _, want := range []string{"neural_network", "ai", "technology"} {
		if !containsTag(result.Tags, want) {
			t.Errorf("expected %q in tags, got %v", want, result.Tags)
		}
	}
}

func TestTag_NormalizesAndCaps(t *testing.T) {
	mock := &MockLLMClient{
		response: `{"category": "technology", "tags": ["  Machine Learning ", "AI!!", "ai", "robots", "sensors", "chips", "drones"]}`,
	}
	agent, _, _ := newTestAgent(t, mock, DefaultOptions())

	summary := "Machine learning powers new robots with sensors, chips and drones in this ai report"
	result := agent.Tag(context.Background(), summary, nil)

	if len(result.Tags) > MaxTags {
		t.Fatalf("expected at most %d tags, got %d: %v", MaxTags, len(result.Tags), result.Tags)
	}
	valid := regexp.MustCompile(`^[a-z0-9_]+$`)
	for _, tag := range result.Tags {
		if !valid.MatchString(tag) {
			t.Errorf("tag %q is not normalized", tag)
		}
	}
	if !containsTag(result.Tags, "machine_learning") {
		t.Errorf("expected machine_learning, got %v", result.Tags)
	}
}

func TestTag_DropsUnsupportedTags(t *testing.T) {
	mock := &MockLLMClient{
		response: `{"category": "economy", "tags": ["crypto", "markets"]}`,
	}
	agent, _, _ := newTestAgent(t, mock, DefaultOptions())

	result := agent.Tag(context.Background(), "Stock markets rallied on strong earnings reports", nil)

	if containsTag(result.Tags, "crypto") {
		t.Errorf("crypto has no support in the summary, got %v", result.Tags)
	}
	if !containsTag(result.Tags, "markets") {
		t.Errorf("expected markets via literal match, got %v", result.Tags)
	}
}

func TestTag_MergesUserTagsAndSkipsSentinel(t *testing.T) {
	mock := &MockLLMClient{
		response: `{"category": "economy", "tags": []}`,
	}
	agent, _, _ := newTestAgent(t, mock, DefaultOptions())

	result := agent.Tag(context.Background(), "Stock indexes closed higher today", []string{"all", "markets"})

	if !containsTag(result.Tags, "markets") {
		t.Errorf("expected user tag markets to survive, got %v", result.Tags)
	}
	if containsTag(result.Tags, "all") {
		t.Errorf("sentinel must never appear as a tag, got %v", result.Tags)
	}
}

func TestTag_CacheSkipsSecondLLMCall(t *testing.T) {
	mock := &MockLLMClient{
		response: `{"category": "science", "tags": ["space"]}`,
	}
	agent, _, _ := newTestAgent(t, mock, DefaultOptions())

	summary := "NASA launched a new rocket toward lunar orbit"
	first := agent.Tag(context.Background(), summary, []string{"space"})
	second := agent.Tag(context.Background(), summary, []string{"space"})

	if mock.callCount != 1 {
		t.Errorf("expected 1 LLM call, got %d", mock.callCount)
	}
	if first.Category != second.Category || len(first.Tags) != len(second.Tags) {
		t.Errorf("cached result differs: %v vs %v", first, second)
	}
}

func TestTag_FallbackOnLLMFailure(t *testing.T) {
	mock := &MockLLMClient{err: errors.New("service unavailable")}
	agent, _, registry := newTestAgent(t, mock, DefaultOptions())

	result := agent.Tag(context.Background(), "Bitcoin and blockchain adoption grew while stock markets fell", nil)

	if result.Category != "general" {
		t.Errorf("fallback category should be general, got %q", result.Category)
	}
	if !containsTag(result.Tags, "crypto") || !containsTag(result.Tags, "markets") {
		t.Errorf("expected keyword-bucket tags, got %v", result.Tags)
	}
	counters := registry.Snapshot()[AgentName]
	if counters.Fallbacks != 1 {
		t.Errorf("expected 1 fallback, got %d", counters.Fallbacks)
	}
}

func TestTag_ProposesUnknownTagAtThreshold(t *testing.T) {
	mock := &MockLLMClient{
		response: `{"category": "technology", "tags": ["quantum_computing"]}`,
	}
	agent, store, _ := newTestAgent(t, mock, Options{ProposeThreshold: 2})

	first := agent.Tag(context.Background(), "Quantum computing milestone reached in the lab", nil)
	if len(first.TaxonomyUpdates) != 0 {
		t.Fatalf("below threshold, expected no proposals, got %v", first.TaxonomyUpdates)
	}

	second := agent.Tag(context.Background(), "Another quantum computing breakthrough was announced", nil)
	if !containsTag(second.TaxonomyUpdates, "quantum_computing") {
		t.Fatalf("expected quantum_computing proposed, got %v", second.TaxonomyUpdates)
	}

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !containsTag(doc.Proposed, "quantum_computing") {
		t.Errorf("expected proposal persisted, got %v", doc.Proposed)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Machine Learning ", "machine_learning"},
		{"AI!!", "ai"},
		{"foo   bar", "foo_bar"},
		{"__trimmed__", "trimmed"},
		{"###", ""},
		{"Фрукты", "фрукты"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func containsTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}
