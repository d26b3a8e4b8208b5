package recommend

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"newshive/internal/core"
	"newshive/internal/logger"
	"newshive/internal/metrics"
)

// AgentName identifies this agent in metrics.
const AgentName = "recommend"

// Scoring constants for the established-profile path.
const (
	decayFactor      = 0.95 // Applied to every interest weight per evaluation
	weightFloor      = 0.1  // Interests below this are dropped after decay
	avgWeightShare   = 0.6  // Content score share of the average tag weight
	maxWeightShare   = 0.4  // Content score share of the best tag weight
	contentShare     = 0.7  // Final score share of the content score
	diversityShare   = 0.3  // Final score share of the diversity score
	acceptThreshold  = 0.3  // Minimum final score to accept
	confirmThreshold = 0.2  // Content scores above this also need LLM agreement
	explorationOdds  = 5    // Roughly one in this many evaluations explores
	bandLow          = 0.3  // Exploration admits interests inside this band
	bandHigh         = 0.7
	weightNudge      = 0.1 // Reinforcement per accepted tag
	weightCap        = 1.0
	timeOfDayBoost   = 0.05
	recentWindow     = 5 // Interactions considered for diversity
	coldStartLimit   = 3 // Fewer distinct interests than this is a cold start
)

const confirmPromptTemplate = `You are a news relevance checker. A user follows these topics: %s.
An article is categorized as %q with tags: %s.

Would this user want to read it? Answer with a single word: yes or no.`

// LLMClient generates text from a prompt.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// InterestStore persists per-user interest weights and interaction history.
type InterestStore interface {
	InterestWeights(userID int64) ([]core.InterestWeight, error)
	SaveInterestWeights(userID int64, weights []core.InterestWeight) error
	RecentInteractions(userID int64, limit int) ([]core.Interaction, error)
}

// Decision is the outcome of one recommendation evaluation.
type Decision struct {
	Accepted       bool    `json:"accepted"`
	ContentScore   float64 `json:"content_score"`
	DiversityScore float64 `json:"diversity_score"`
	FinalScore     float64 `json:"final_score"`
	Exploration    bool    `json:"exploration"` // Whether the exploration window admitted this article
	Reason         string  `json:"reason"`
}

// Agent gates articles per user: a sentinel or cold-start profile leans on
// LLM confirmation, an established profile is scored against decayed
// interest weights.
type Agent struct {
	llmClient LLMClient
	store     InterestStore
	registry  *metrics.Registry

	rng interface{ Intn(n int) int }
	now func() time.Time
}

// NewAgent creates a recommend agent with a seeded RNG and wall clock.
func NewAgent(llmClient LLMClient, store InterestStore, registry *metrics.Registry) *Agent {
	return &Agent{
		llmClient: llmClient,
		store:     store,
		registry:  registry,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

// WithRand replaces the exploration RNG. Intended for tests.
func (a *Agent) WithRand(rng interface{ Intn(n int) int }) *Agent {
	a.rng = rng
	return a
}

// WithClock replaces the time source. Intended for tests.
func (a *Agent) WithClock(now func() time.Time) *Agent {
	a.now = now
	return a
}

// Recommend decides whether the article described by category and tags
// should be delivered to the profiled user.
func (a *Agent) Recommend(ctx context.Context, profile *core.UserProfile, category string, tags []string) Decision {
	a.registry.Attempt(AgentName)

	for _, tag := range tags {
		if contains(profile.BlockedTags, tag) {
			return Decision{Accepted: false, Reason: fmt.Sprintf("tag %q is blocked", tag)}
		}
	}

	var decision Decision
	switch {
	case isSentinel(profile.PreferredTags):
		decision = a.recommendSentinel(ctx, profile, category, tags)
	default:
		weights, err := a.store.InterestWeights(profile.UserID)
		if err != nil {
			logger.Warn("failed to load interest weights, treating as cold start", "user_id", profile.UserID, "error", err)
			weights = nil
		}
		if len(weights) < coldStartLimit {
			decision = a.recommendColdStart(ctx, profile, category, tags, weights)
		} else {
			decision = a.recommendEstablished(ctx, profile, category, tags, weights)
		}
	}

	if decision.Accepted {
		a.registry.Success(AgentName)
	}
	return decision
}

// RecommendCached gates an article that was already processed and cached.
// It applies the same profile rules deterministically: no relevance
// confirmation call and no interest reinforcement, so a repeat digest
// neither invokes the model nor shifts the stored weights.
func (a *Agent) RecommendCached(profile *core.UserProfile, category string, tags []string) Decision {
	a.registry.Attempt(AgentName)

	for _, tag := range tags {
		if contains(profile.BlockedTags, tag) {
			return Decision{Accepted: false, Reason: fmt.Sprintf("tag %q is blocked", tag)}
		}
	}

	var decision Decision
	if isSentinel(profile.PreferredTags) {
		decision = Decision{Accepted: true, Reason: "catch-all profile"}
	} else {
		weights, err := a.store.InterestWeights(profile.UserID)
		if err != nil {
			logger.Warn("failed to load interest weights, treating as cold start", "user_id", profile.UserID, "error", err)
			weights = nil
		}
		if len(weights) < coldStartLimit {
			decision = Decision{Accepted: true, Reason: "cold-start profile"}
		} else {
			byTag := decay(weights)
			boostMatching(byTag, category, a.now())

			content := contentScore(byTag, tags)
			diversity := a.diversityScore(profile.UserID, tags)
			final := contentShare*content + diversityShare*diversity

			decision = Decision{ContentScore: content, DiversityScore: diversity, FinalScore: final}
			if final < acceptThreshold {
				decision.Reason = "final score below threshold"
			} else {
				decision.Accepted = true
				decision.Reason = "score above threshold"
			}
		}
	}

	if decision.Accepted {
		a.registry.Success(AgentName)
	}
	return decision
}

// recommendSentinel handles users who only follow the catch-all tag.
// Interests are not reinforced until the user names a real preference.
func (a *Agent) recommendSentinel(ctx context.Context, profile *core.UserProfile, category string, tags []string) Decision {
	if !a.confirm(ctx, profile, category, tags) {
		return Decision{Accepted: false, Reason: "relevance check declined"}
	}
	return Decision{Accepted: true, Reason: "catch-all profile"}
}

func (a *Agent) recommendColdStart(ctx context.Context, profile *core.UserProfile, category string, tags []string, weights []core.InterestWeight) Decision {
	if !a.confirm(ctx, profile, category, tags) {
		return Decision{Accepted: false, Reason: "relevance check declined"}
	}
	a.reinforce(profile.UserID, tags, weights)
	return Decision{Accepted: true, Reason: "cold-start profile"}
}

func (a *Agent) recommendEstablished(ctx context.Context, profile *core.UserProfile, category string, tags []string, weights []core.InterestWeight) Decision {
	byTag := decay(weights)
	boostMatching(byTag, category, a.now())

	content := contentScore(byTag, tags)
	diversity := a.diversityScore(profile.UserID, tags)
	final := contentShare*content + diversityShare*diversity

	exploring := a.rng.Intn(explorationOdds) == 0 && anyInBand(byTag, tags)

	decision := Decision{
		ContentScore:   content,
		DiversityScore: diversity,
		FinalScore:     final,
		Exploration:    exploring,
	}

	if final < acceptThreshold && !exploring {
		decision.Reason = "final score below threshold"
		return decision
	}
	if content > confirmThreshold && !a.confirm(ctx, profile, category, tags) {
		decision.Reason = "relevance check declined"
		return decision
	}

	decision.Accepted = true
	if exploring && final < acceptThreshold {
		decision.Reason = "exploration window"
	} else {
		decision.Reason = "score above threshold"
	}

	a.persistReinforced(profile.UserID, tags, byTag)
	return decision
}

// confirm asks the LLM whether the article matches the user's interests.
// An unavailable LLM never blocks delivery.
func (a *Agent) confirm(ctx context.Context, profile *core.UserProfile, category string, tags []string) bool {
	prompt := fmt.Sprintf(confirmPromptTemplate,
		strings.Join(profile.PreferredTags, ", "),
		category,
		strings.Join(tags, ", "))

	response, err := a.llmClient.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("relevance confirmation unavailable, accepting by default", "user_id", profile.UserID, "error", err)
		return true
	}
	return !strings.HasPrefix(strings.TrimSpace(strings.ToLower(response)), "no")
}

// decay applies the per-evaluation exponential decay and drops interests
// that fall below the floor.
func decay(weights []core.InterestWeight) map[string]float64 {
	byTag := make(map[string]float64, len(weights))
	for _, w := range weights {
		decayed := w.Weight * decayFactor
		if decayed < weightFloor {
			continue
		}
		byTag[w.Tag] = decayed
	}
	return byTag
}

// timeOfDayTopics maps day periods to the categories they boost.
var timeOfDayTopics = map[string][]string{
	"morning": {"politics", "economy", "markets"},
	"midday":  {"technology", "science"},
	"evening": {"sports", "culture", "general"},
}

func dayPeriod(now time.Time) string {
	switch hour := now.Hour(); {
	case hour >= 6 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 18:
		return "midday"
	case hour >= 18:
		return "evening"
	default:
		return ""
	}
}

// boostMatching raises interests topically tied to the current day period.
func boostMatching(byTag map[string]float64, category string, now time.Time) {
	topics := timeOfDayTopics[dayPeriod(now)]
	if !contains(topics, category) {
		return
	}
	for tag, weight := range byTag {
		boosted := weight + timeOfDayBoost
		if boosted > weightCap {
			boosted = weightCap
		}
		byTag[tag] = boosted
	}
}

func contentScore(byTag map[string]float64, tags []string) float64 {
	if len(tags) == 0 {
		return 0
	}
	var sum, max float64
	for _, tag := range tags {
		weight := byTag[tag]
		sum += weight
		if weight > max {
			max = weight
		}
	}
	return avgWeightShare*(sum/float64(len(tags))) + maxWeightShare*max
}

// diversityScore is 1 minus the fraction of content tags already seen in
// the user's recent interactions.
func (a *Agent) diversityScore(userID int64, tags []string) float64 {
	if len(tags) == 0 {
		return 1
	}
	recent, err := a.store.RecentInteractions(userID, recentWindow)
	if err != nil {
		logger.Warn("failed to load recent interactions", "user_id", userID, "error", err)
		return 1
	}

	seen := make(map[string]bool)
	for _, interaction := range recent {
		for _, tag := range interaction.Tags {
			seen[tag] = true
		}
	}

	overlap := 0
	for _, tag := range tags {
		if seen[tag] {
			overlap++
		}
	}
	return 1 - float64(overlap)/float64(len(tags))
}

func anyInBand(byTag map[string]float64, tags []string) bool {
	for _, tag := range tags {
		if weight := byTag[tag]; weight >= bandLow && weight <= bandHigh {
			return true
		}
	}
	return false
}

// reinforce nudges the accepted tags on top of the stored weights and
// persists the result.
func (a *Agent) reinforce(userID int64, tags []string, weights []core.InterestWeight) {
	byTag := make(map[string]float64, len(weights))
	for _, w := range weights {
		byTag[w.Tag] = w.Weight
	}
	a.persistReinforced(userID, tags, byTag)
}

func (a *Agent) persistReinforced(userID int64, tags []string, byTag map[string]float64) {
	for _, tag := range tags {
		nudged := byTag[tag] + weightNudge
		if nudged > weightCap {
			nudged = weightCap
		}
		byTag[tag] = nudged
	}

	now := a.now()
	updated := make([]core.InterestWeight, 0, len(byTag))
	for tag, weight := range byTag {
		updated = append(updated, core.InterestWeight{Tag: tag, Weight: weight, UpdatedAt: now})
	}
	if err := a.store.SaveInterestWeights(userID, updated); err != nil {
		logger.Warn("failed to persist interest weights", "user_id", userID, "error", err)
	}
}

// isSentinel reports whether the preferred set is still just the
// catch-all marker.
func isSentinel(preferred []string) bool {
	if len(preferred) == 0 {
		return true
	}
	for _, tag := range preferred {
		if tag != core.AllTag {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
