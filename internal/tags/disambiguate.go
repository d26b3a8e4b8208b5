package tags

import "strings"

// senseBucket maps one reading of an ambiguous token to the canonical tag
// for that reading, plus the context keywords that vote for it.
type senseBucket struct {
	tag      string
	keywords []string
}

// ambiguousSenses lists tokens whose meaning depends on surrounding text.
// The bucket with the most keyword hits in the summary wins; ties and
// zero hits keep the literal token.
var ambiguousSenses = map[string][]senseBucket{
	"apple": {
		{tag: "apple_inc", keywords: []string{
			"company", "компания", "компании", "iphone", "ipad", "mac", "macbook",
			"ios", "chip", "чип", "процессор", "tim cook", "cupertino", "технолог",
		}},
		{tag: "фрукты", keywords: []string{
			"fruit", "фрукт", "juice", "сок", "harvest", "урожай", "orchard",
			"сад", "vitamin", "витамин", "яблок", "спел",
		}},
	},
	"java": {
		{tag: "software", keywords: []string{
			"code", "код", "developer", "разработчик", "jvm", "programming", "программирован",
		}},
		{tag: "world", keywords: []string{
			"island", "остров", "indonesia", "индонез", "volcano", "вулкан",
		}},
	},
	"mercury": {
		{tag: "space", keywords: []string{
			"planet", "планет", "orbit", "орбит", "nasa", "solar", "солнечн",
		}},
		{tag: "science", keywords: []string{
			"metal", "металл", "toxic", "токсич", "ртуть", "thermometer",
		}},
	},
}

// disambiguate resolves tag against the summary context, returning the
// canonical tag for the winning sense or the input unchanged.
func disambiguate(tag, summary string) string {
	buckets, ok := ambiguousSenses[tag]
	if !ok {
		return tag
	}

	haystack := strings.ToLower(summary)
	best, bestHits, tied := tag, 0, false
	for _, bucket := range buckets {
		hits := 0
		for _, keyword := range bucket.keywords {
			if strings.Contains(haystack, keyword) {
				hits++
			}
		}
		switch {
		case hits > bestHits:
			best, bestHits, tied = bucket.tag, hits, false
		case hits == bestHits && hits > 0:
			tied = true
		}
	}
	if bestHits == 0 || tied {
		return tag
	}
	return best
}
