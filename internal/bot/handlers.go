package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"newshive/internal/core"
	"newshive/internal/logger"
	"newshive/internal/pipeline"
	"newshive/internal/store"
	"newshive/internal/tags"
)

// genericErrorText is the only failure detail end users ever see.
const genericErrorText = "Sorry, I could not process that right now. Please try again later."

// DigestRunner produces a digest for one user.
type DigestRunner interface {
	Run(ctx context.Context, profile *core.UserProfile) (*pipeline.Result, error)
}

// UserStore is the persistence surface the command handlers need.
type UserStore interface {
	GetOrCreateUser(userID int64) (*core.UserProfile, error)
	SaveUser(profile *core.UserProfile) error
	SearchByTag(tag string, limit int) ([]core.CachedArticle, error)
	AddInteraction(interaction core.Interaction) error
	GetStats() (*store.Stats, error)
}

// CommandHandler implements the bot commands independent of the Telegram
// transport, so they can be tested without an API connection.
type CommandHandler struct {
	store         UserStore
	runner        DigestRunner
	searchResults int
}

// NewCommandHandler creates a command handler.
func NewCommandHandler(userStore UserStore, runner DigestRunner, searchResults int) *CommandHandler {
	if searchResults <= 0 {
		searchResults = 5
	}
	return &CommandHandler{store: userStore, runner: runner, searchResults: searchResults}
}

// HandleStart registers the user and returns the welcome text.
func (h *CommandHandler) HandleStart(userID int64) string {
	if _, err := h.store.GetOrCreateUser(userID); err != nil {
		logger.Error("failed to create user", err, "user_id", userID)
		return genericErrorText
	}
	return `Welcome to NewsHive! I deliver a personalized news digest.

Commands:
/digest - Get your news digest now
/settings - View or change your preferences
/search <tag> - Find recent articles by topic
/stats - Service statistics
/help - Show this message

Rate articles with the buttons under each one and I will learn what you like.`
}

// HandleHelp returns the command overview.
func (h *CommandHandler) HandleHelp() string {
	return `Commands:
/digest - Get your news digest now
/settings - View preferences
/settings style brief|points|detailed - Change summary style
/settings prefer <tag> - Follow a topic
/settings remove <tag> - Stop following a topic
/settings block <tag> - Never show a topic
/settings unblock <tag> - Allow a topic again
/search <tag> - Find recent articles by topic
/stats - Service statistics`
}

// HandleDigest runs the pipeline for the user and returns the deliveries,
// or a user-facing error text.
func (h *CommandHandler) HandleDigest(ctx context.Context, userID int64) ([]pipeline.Delivery, string) {
	profile, err := h.store.GetOrCreateUser(userID)
	if err != nil {
		logger.Error("failed to load user", err, "user_id", userID)
		return nil, genericErrorText
	}

	result, err := h.runner.Run(ctx, profile)
	if err != nil {
		logger.Error("digest run failed", err, "user_id", userID)
		return nil, genericErrorText
	}
	if len(result.Deliveries) == 0 {
		return nil, "Nothing new for you right now. Try again later or adjust /settings."
	}
	return result.Deliveries, ""
}

// HandleSettings shows or mutates the user's preference sets and style.
func (h *CommandHandler) HandleSettings(userID int64, args string) string {
	profile, err := h.store.GetOrCreateUser(userID)
	if err != nil {
		logger.Error("failed to load user", err, "user_id", userID)
		return genericErrorText
	}

	args = strings.TrimSpace(args)
	if args == "" {
		return formatSettings(profile)
	}

	parts := strings.SplitN(args, " ", 2)
	if len(parts) != 2 {
		return settingsUsage()
	}
	command, value := parts[0], tags.Normalize(parts[1])
	if value == "" {
		return settingsUsage()
	}

	switch command {
	case "style":
		if value != "brief" && value != "points" && value != "detailed" {
			return "Style must be one of: brief, points, detailed."
		}
		profile.Style = value
	case "prefer":
		profile.PreferredTags = appendUnique(profile.PreferredTags, value)
		profile.BlockedTags = removeTag(profile.BlockedTags, value)
	case "remove":
		profile.PreferredTags = removeTag(profile.PreferredTags, value)
	case "block":
		profile.BlockedTags = appendUnique(profile.BlockedTags, value)
		profile.PreferredTags = removeTag(profile.PreferredTags, value)
	case "unblock":
		profile.BlockedTags = removeTag(profile.BlockedTags, value)
	default:
		return settingsUsage()
	}

	if err := h.store.SaveUser(profile); err != nil {
		logger.Error("failed to save user", err, "user_id", userID)
		return genericErrorText
	}
	return formatSettings(profile)
}

// HandleSearch finds cached articles by tag.
func (h *CommandHandler) HandleSearch(args string) string {
	tag := tags.Normalize(args)
	if tag == "" {
		return "Usage: /search <tag>"
	}

	articles, err := h.store.SearchByTag(tag, h.searchResults)
	if err != nil {
		logger.Error("search failed", err, "tag", tag)
		return genericErrorText
	}
	if len(articles) == 0 {
		return fmt.Sprintf("No recent articles tagged #%s.", tag)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent articles tagged #%s:\n", tag)
	for _, article := range articles {
		fmt.Fprintf(&b, "\n• %s\n  %s\n", article.Title, article.URL)
	}
	return b.String()
}

// HandleStats reports store counts.
func (h *CommandHandler) HandleStats() string {
	stats, err := h.store.GetStats()
	if err != nil {
		logger.Error("failed to load stats", err)
		return genericErrorText
	}
	return fmt.Sprintf(`NewsHive statistics:
Cached articles: %d
Users: %d
Interactions: %d`, stats.ArticleCount, stats.UserCount, stats.InteractionCount)
}

// HandleReaction applies a like or dislike to the article's tags and
// returns the acknowledgement text.
func (h *CommandHandler) HandleReaction(userID int64, action, url string, articleTags []string) string {
	profile, err := h.store.GetOrCreateUser(userID)
	if err != nil {
		logger.Error("failed to load user", err, "user_id", userID)
		return genericErrorText
	}

	switch action {
	case "like":
		for _, tag := range articleTags {
			profile.PreferredTags = appendUnique(profile.PreferredTags, tag)
			profile.BlockedTags = removeTag(profile.BlockedTags, tag)
		}
	case "dislike":
		for _, tag := range articleTags {
			profile.BlockedTags = appendUnique(profile.BlockedTags, tag)
			profile.PreferredTags = removeTag(profile.PreferredTags, tag)
		}
	default:
		return ""
	}

	if err := h.store.SaveUser(profile); err != nil {
		logger.Error("failed to save user", err, "user_id", userID)
		return genericErrorText
	}

	if err := h.store.AddInteraction(core.Interaction{
		UserID:    userID,
		URL:       url,
		Tags:      articleTags,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		logger.Warn("failed to record interaction", "user_id", userID, "error", err)
	}

	if action == "like" {
		return "Got it, more like this!"
	}
	return "Understood, less of that."
}

func formatSettings(profile *core.UserProfile) string {
	blocked := "none"
	if len(profile.BlockedTags) > 0 {
		blocked = strings.Join(profile.BlockedTags, ", ")
	}
	return fmt.Sprintf(`Your settings:
Following: %s
Blocked: %s
Style: %s

%s`, strings.Join(profile.PreferredTags, ", "), blocked, profile.Style, settingsUsage())
}

func settingsUsage() string {
	return `Usage:
/settings style brief|points|detailed
/settings prefer <tag>
/settings remove <tag>
/settings block <tag>
/settings unblock <tag>`
}

func appendUnique(list []string, tag string) []string {
	for _, item := range list {
		if item == tag {
			return list
		}
	}
	return append(list, tag)
}

func removeTag(list []string, tag string) []string {
	var out []string
	for _, item := range list {
		if item != tag {
			out = append(out, item)
		}
	}
	return out
}
