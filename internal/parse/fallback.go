package parse

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newshive/internal/core"
)

// Markup sniffing keywords. Matching any of these treats the input as HTML.
var markupHints = []string{"<html", "<body", "<div", "<p>", "<p ", "<br", "</", "&nbsp;"}

const minTitleSentenceLen = 20

// fallbackParse is the deterministic extractor used after LLM retries are
// exhausted: strip markup, promote the first substantial sentence to title,
// keep the remainder as body.
func fallbackParse(rawText, sourceURL string) core.ParsedArticle {
	text := rawText
	if looksLikeMarkup(text) {
		text = stripMarkup(text)
	}
	text = collapseWhitespace(text)

	title, body := splitTitleBody(text)

	return core.ParsedArticle{
		Title:   title,
		Body:    body,
		URL:     sourceURL,
		Source:  hostOf(sourceURL),
		Success: true,
	}
}

func looksLikeMarkup(text string) bool {
	lowered := strings.ToLower(text)
	for _, hint := range markupHints {
		if strings.Contains(lowered, hint) {
			return true
		}
	}
	return false
}

// stripMarkup removes script/style/nav noise and returns the document text.
// On parse failure the original text is returned unchanged.
func stripMarkup(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript").Remove()
	return doc.Text()
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// splitTitleBody promotes the first sufficiently long sentence to the
// title. Short leading fragments stay in the body.
func splitTitleBody(text string) (string, string) {
	sentences := splitSentences(text)

	for i, sentence := range sentences {
		if len(sentence) >= minTitleSentenceLen {
			title := sentence
			if len(title) > 200 {
				title = title[:200]
			}
			rest := strings.TrimSpace(strings.Join(append(sentences[:i:i], sentences[i+1:]...), " "))
			if rest == "" {
				rest = sentence
			}
			return title, rest
		}
	}

	// Nothing substantial; use the leading text as both
	title := text
	if len(title) > 200 {
		title = title[:200]
	}
	return strings.TrimSpace(title), text
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
