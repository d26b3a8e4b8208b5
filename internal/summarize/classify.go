package summarize

import "strings"

// ArticleType is the heuristic content classification of an article body.
type ArticleType string

const (
	TypeAnalytics    ArticleType = "analytics"
	TypeInterview    ArticleType = "interview"
	TypePressRelease ArticleType = "press_release"
	TypeOpinion      ArticleType = "opinion"
	TypeBrief        ArticleType = "brief"
	TypeUnknown      ArticleType = "unknown"
)

// Audience is the inferred reader profile.
type Audience string

const (
	AudienceExpert   Audience = "expert"
	AudienceBeginner Audience = "beginner"
	AudienceNeutral  Audience = "neutral"
)

// Style is a summary presentation form.
type Style string

const (
	StyleBrief    Style = "brief"
	StylePoints   Style = "points"
	StyleDetailed Style = "detailed"
)

// articleTypeKeywords drives classifyArticleType. Tables are data, not
// control flow, so they can be swapped without touching the classifier.
var articleTypeKeywords = map[ArticleType][]string{
	TypeAnalytics: {
		"analysis", "forecast", "trend", "statistics", "data shows", "study",
		"report finds", "according to the data", "аналитика", "прогноз", "исследование",
	},
	TypeInterview: {
		"interview", "we asked", "he said", "she said", "told us", "in conversation",
		"q:", "интервью", "рассказал", "беседа",
	},
	TypePressRelease: {
		"announces", "announced", "press release", "is proud to", "launches",
		"unveils", "пресс-релиз", "объявила", "представила",
	},
	TypeOpinion: {
		"i think", "i believe", "in my view", "opinion", "editorial", "column",
		"мнение", "считаю", "на мой взгляд",
	},
}

// expertTags marks profile interests that suggest a technical reader.
var expertTags = []string{
	"ai", "neural_network", "programming", "research", "science", "crypto",
	"markets", "medicine", "software", "hardware",
}

const (
	shortBodyChars = 500
	longBodyChars  = 3000
)

// classifyArticleType picks the type with the most keyword hits, requiring
// at least one. Very short bodies are classified as briefs.
func classifyArticleType(body string) ArticleType {
	if len(body) < shortBodyChars/2 {
		return TypeBrief
	}

	lowered := strings.ToLower(body)
	best := TypeUnknown
	bestHits := 0

	for articleType, keywords := range articleTypeKeywords {
		hits := 0
		for _, keyword := range keywords {
			hits += strings.Count(lowered, keyword)
		}
		if hits > bestHits {
			best = articleType
			bestHits = hits
		}
	}

	return best
}

// classifyAudience infers the reader from profile tags: several expert
// interests suggest an expert, an empty or sentinel-only profile a beginner.
func classifyAudience(profileTags []string) Audience {
	if len(profileTags) == 0 {
		return AudienceBeginner
	}

	expertHits := 0
	specific := 0
	for _, tag := range profileTags {
		if tag == "all" {
			continue
		}
		specific++
		for _, expert := range expertTags {
			if tag == expert {
				expertHits++
				break
			}
		}
	}

	switch {
	case specific == 0:
		return AudienceBeginner
	case expertHits >= 2:
		return AudienceExpert
	default:
		return AudienceNeutral
	}
}

// selectStyle applies the override rules on top of the requested style:
// long analytical content for experts gets detailed treatment, interviews
// read best as points, short articles stay brief.
func selectStyle(requested Style, articleType ArticleType, audience Audience, bodyLen int) Style {
	switch {
	case bodyLen >= longBodyChars && audience == AudienceExpert:
		return StyleDetailed
	case articleType == TypeInterview:
		return StylePoints
	case bodyLen < shortBodyChars || articleType == TypeBrief:
		return StyleBrief
	}

	switch requested {
	case StyleBrief, StylePoints, StyleDetailed:
		return requested
	default:
		return StyleBrief
	}
}
