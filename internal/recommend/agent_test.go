package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"newshive/internal/core"
	"newshive/internal/metrics"
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

type mockStore struct {
	weights      []core.InterestWeight
	interactions []core.Interaction

	saved    []core.InterestWeight
	savedFor int64
}

func (m *mockStore) InterestWeights(userID int64) ([]core.InterestWeight, error) {
	return m.weights, nil
}

func (m *mockStore) SaveInterestWeights(userID int64, weights []core.InterestWeight) error {
	m.savedFor = userID
	m.saved = weights
	return nil
}

func (m *mockStore) RecentInteractions(userID int64, limit int) ([]core.Interaction, error) {
	return m.interactions, nil
}

type fixedRNG struct{ value int }

func (f fixedRNG) Intn(n int) int { return f.value }

func nightClock() time.Time {
	return time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)
}

func newTestAgent(mock *MockLLMClient, store *mockStore, rng int) *Agent {
	agent := NewAgent(mock, store, metrics.NewRegistry())
	return agent.WithRand(fixedRNG{value: rng}).WithClock(nightClock)
}

func sentinelProfile() *core.UserProfile {
	return &core.UserProfile{UserID: 1, PreferredTags: []string{core.AllTag}, Style: "brief"}
}

func TestRecommend_SentinelAcceptsAnyUnblockedTag(t *testing.T) {
	mock := &MockLLMClient{response: "yes"}
	agent := newTestAgent(mock, &mockStore{}, 1)

	decision := agent.Recommend(context.Background(), sentinelProfile(), "technology", []string{"ai"})

	if !decision.Accepted {
		t.Fatalf("expected acceptance, got %+v", decision)
	}
	if mock.callCount != 1 {
		t.Errorf("expected 1 confirmation call, got %d", mock.callCount)
	}
}

func TestRecommend_BlockedTagRejectsWithoutLLM(t *testing.T) {
	mock := &MockLLMClient{response: "yes"}
	agent := newTestAgent(mock, &mockStore{}, 1)

	profile := sentinelProfile()
	profile.BlockedTags = []string{"casino"}

	decision := agent.Recommend(context.Background(), profile, "general", []string{"casino", "sports"})

	if decision.Accepted {
		t.Fatalf("blocked tag must reject, got %+v", decision)
	}
	if mock.callCount != 0 {
		t.Errorf("expected no LLM calls, got %d", mock.callCount)
	}
}

func TestRecommend_SentinelAcceptsWhenLLMUnavailable(t *testing.T) {
	mock := &MockLLMClient{err: errors.New("rate limited")}
	agent := newTestAgent(mock, &mockStore{}, 1)

	decision := agent.Recommend(context.Background(), sentinelProfile(), "technology", []string{"ai"})

	if !decision.Accepted {
		t.Fatalf("unavailable LLM must default to accept, got %+v", decision)
	}
}

func TestRecommend_ColdStartReinforcesOnAcceptance(t *testing.T) {
	mock := &MockLLMClient{response: "Yes, relevant."}
	store := &mockStore{weights: []core.InterestWeight{{Tag: "markets", Weight: 0.5}}}
	agent := newTestAgent(mock, store, 1)

	profile := &core.UserProfile{UserID: 7, PreferredTags: []string{"markets"}}
	decision := agent.Recommend(context.Background(), profile, "technology", []string{"ai"})

	if !decision.Accepted {
		t.Fatalf("expected acceptance, got %+v", decision)
	}
	if store.savedFor != 7 {
		t.Fatalf("expected weights persisted for user 7, got %d", store.savedFor)
	}
	if got := weightOf(store.saved, "ai"); got != 0.1 {
		t.Errorf("expected new tag at 0.1, got %v", got)
	}
	if got := weightOf(store.saved, "markets"); got != 0.5 {
		t.Errorf("existing untouched tag changed: %v", got)
	}
}

func TestRecommend_ColdStartRejectsOnDeclinedConfirmation(t *testing.T) {
	mock := &MockLLMClient{response: "No."}
	store := &mockStore{weights: []core.InterestWeight{{Tag: "markets", Weight: 0.5}}}
	agent := newTestAgent(mock, store, 1)

	profile := &core.UserProfile{UserID: 7, PreferredTags: []string{"markets"}}
	decision := agent.Recommend(context.Background(), profile, "technology", []string{"ai"})

	if decision.Accepted {
		t.Fatalf("declined confirmation must reject, got %+v", decision)
	}
	if store.saved != nil {
		t.Errorf("rejection must not persist weights, got %v", store.saved)
	}
}

func TestRecommend_EstablishedAcceptsAndNudgesWeights(t *testing.T) {
	mock := &MockLLMClient{response: "yes"}
	store := &mockStore{weights: []core.InterestWeight{
		{Tag: "politics", Weight: 0.9},
		{Tag: "markets", Weight: 0.8},
		{Tag: "ai", Weight: 0.7},
	}}
	agent := newTestAgent(mock, store, 1)

	profile := &core.UserProfile{UserID: 3, PreferredTags: []string{"politics", "markets"}}
	decision := agent.Recommend(context.Background(), profile, "politics", []string{"politics", "markets"})

	if !decision.Accepted {
		t.Fatalf("expected acceptance, got %+v", decision)
	}
	if decision.ContentScore <= confirmThreshold {
		t.Errorf("expected content score above %v, got %v", confirmThreshold, decision.ContentScore)
	}
	if mock.callCount != 1 {
		t.Errorf("high content score requires confirmation, got %d calls", mock.callCount)
	}

	// 0.9 decays to 0.855, then +0.1 reinforcement.
	if got := weightOf(store.saved, "politics"); !almostEqual(got, 0.955) {
		t.Errorf("expected politics near 0.955, got %v", got)
	}
	// Untouched interest keeps only the decay.
	if got := weightOf(store.saved, "ai"); !almostEqual(got, 0.665) {
		t.Errorf("expected ai near 0.665, got %v", got)
	}
}

func TestRecommend_DecayDropsWeightsBelowFloor(t *testing.T) {
	mock := &MockLLMClient{response: "yes"}
	store := &mockStore{weights: []core.InterestWeight{
		{Tag: "fading", Weight: 0.102},
		{Tag: "politics", Weight: 0.9},
		{Tag: "markets", Weight: 0.9},
	}}
	agent := newTestAgent(mock, store, 1)

	profile := &core.UserProfile{UserID: 3, PreferredTags: []string{"politics"}}
	decision := agent.Recommend(context.Background(), profile, "politics", []string{"politics"})

	if !decision.Accepted {
		t.Fatalf("expected acceptance, got %+v", decision)
	}
	if got := weightOf(store.saved, "fading"); got != 0 {
		t.Errorf("sub-floor weight should have been dropped, got %v", got)
	}
}

func TestRecommend_EstablishedRejectsBelowThreshold(t *testing.T) {
	mock := &MockLLMClient{response: "yes"}
	store := &mockStore{
		weights: []core.InterestWeight{
			{Tag: "ai", Weight: 0.3684},
			{Tag: "markets", Weight: 0.5},
			{Tag: "politics", Weight: 0.5},
		},
		interactions: []core.Interaction{{Tags: []string{"ai"}}},
	}
	agent := newTestAgent(mock, store, 1)

	profile := &core.UserProfile{UserID: 3, PreferredTags: []string{"markets"}}
	decision := agent.Recommend(context.Background(), profile, "technology", []string{"ai"})

	if decision.Accepted {
		t.Fatalf("expected rejection, got %+v", decision)
	}
	if decision.FinalScore >= acceptThreshold {
		t.Errorf("expected final score below %v, got %v", acceptThreshold, decision.FinalScore)
	}
	if store.saved != nil {
		t.Errorf("rejection must not persist weights")
	}
}

func TestRecommend_ExplorationAdmitsMidBandInterest(t *testing.T) {
	mock := &MockLLMClient{response: "yes"}
	store := &mockStore{
		weights: []core.InterestWeight{
			{Tag: "ai", Weight: 0.3684},
			{Tag: "markets", Weight: 0.5},
			{Tag: "politics", Weight: 0.5},
		},
		interactions: []core.Interaction{{Tags: []string{"ai"}}},
	}
	agent := newTestAgent(mock, store, 0) // RNG always selects exploration

	profile := &core.UserProfile{UserID: 3, PreferredTags: []string{"markets"}}
	decision := agent.Recommend(context.Background(), profile, "technology", []string{"ai"})

	if !decision.Accepted {
		t.Fatalf("exploration should admit mid-band interest, got %+v", decision)
	}
	if !decision.Exploration {
		t.Errorf("expected exploration flag set")
	}
}

func TestRecommendCached_SentinelSkipsLLM(t *testing.T) {
	// A declining response would reject if the model were consulted.
	mock := &MockLLMClient{response: "No."}
	agent := newTestAgent(mock, &mockStore{}, 1)

	decision := agent.RecommendCached(sentinelProfile(), "technology", []string{"ai"})

	if !decision.Accepted {
		t.Fatalf("expected acceptance, got %+v", decision)
	}
	if mock.callCount != 0 {
		t.Errorf("cached gate must not call the LLM, got %d calls", mock.callCount)
	}
}

func TestRecommendCached_EstablishedIsDeterministic(t *testing.T) {
	mock := &MockLLMClient{response: "No."}
	store := &mockStore{weights: []core.InterestWeight{
		{Tag: "politics", Weight: 0.9},
		{Tag: "markets", Weight: 0.8},
		{Tag: "ai", Weight: 0.7},
	}}
	agent := newTestAgent(mock, store, 0) // RNG selecting exploration must not matter

	profile := &core.UserProfile{UserID: 3, PreferredTags: []string{"politics", "markets"}}
	first := agent.RecommendCached(profile, "politics", []string{"politics", "markets"})
	second := agent.RecommendCached(profile, "politics", []string{"politics", "markets"})

	if !first.Accepted || !second.Accepted {
		t.Fatalf("expected acceptance, got %+v / %+v", first, second)
	}
	if first.FinalScore != second.FinalScore {
		t.Errorf("repeat runs must score identically, got %v and %v", first.FinalScore, second.FinalScore)
	}
	if mock.callCount != 0 {
		t.Errorf("cached gate must not call the LLM, got %d calls", mock.callCount)
	}
	if store.saved != nil {
		t.Errorf("cached gate must not reinforce weights, got %v", store.saved)
	}
}

func TestRecommendCached_BlockedTagStillRejects(t *testing.T) {
	mock := &MockLLMClient{response: "yes"}
	agent := newTestAgent(mock, &mockStore{}, 1)

	profile := sentinelProfile()
	profile.BlockedTags = []string{"casino"}

	decision := agent.RecommendCached(profile, "general", []string{"casino"})
	if decision.Accepted {
		t.Fatalf("blocked tag must reject on the cached path, got %+v", decision)
	}
}

func weightOf(weights []core.InterestWeight, tag string) float64 {
	for _, w := range weights {
		if w.Tag == tag {
			return w.Weight
		}
	}
	return 0
}

func almostEqual(got, want float64) bool {
	diff := got - want
	return diff > -1e-9 && diff < 1e-9
}
