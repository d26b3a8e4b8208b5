package render

import (
	"strings"
	"unicode/utf8"
)

// Split breaks text into ordered chunks, each at most limit bytes. Whole
// paragraphs are packed greedily; a paragraph longer than the limit is cut
// at sentence boundaries, then word boundaries. No non-whitespace content
// is lost.
func Split(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}
	pack := func(piece string) {
		if piece == "" {
			return
		}
		needed := len(piece)
		if current.Len() > 0 {
			needed += 2
		}
		if current.Len()+needed > limit {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(piece)
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if len(paragraph) <= limit {
			pack(paragraph)
			continue
		}
		for _, piece := range hardSplit(paragraph, limit) {
			pack(piece)
		}
	}
	flush()
	return chunks
}

// hardSplit cuts one oversized paragraph into pieces of at most limit
// bytes, preferring sentence ends, then spaces, then a rune boundary.
func hardSplit(s string, limit int) []string {
	var pieces []string
	for len(s) > limit {
		window := s[:limit]

		cut := -1
		if idx := lastSentenceEnd(window); idx > limit/2 {
			cut = idx + 1
		} else if idx := strings.LastIndex(window, " "); idx > limit/2 {
			cut = idx
		} else {
			cut = limit
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}

		pieces = append(pieces, strings.TrimSpace(s[:cut]))
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		pieces = append(pieces, s)
	}
	return pieces
}
