package render

import "strings"

// markdownV2Specials are the characters Telegram requires escaped inside
// MarkdownV2 text segments.
const markdownV2Specials = `_*[]()~` + "`" + `>#+-=|{}.!`

var markdownV2Replacer = buildEscaper(markdownV2Specials)

// EscapeMarkdownV2 escapes s for use as literal text in a Telegram
// MarkdownV2 message.
func EscapeMarkdownV2(s string) string {
	return markdownV2Replacer.Replace(s)
}

// escapeLinkURL escapes only the characters MarkdownV2 treats specially
// inside the (...) part of an inline link.
func escapeLinkURL(url string) string {
	url = strings.ReplaceAll(url, `\`, `\\`)
	return strings.ReplaceAll(url, ")", `\)`)
}

var htmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func htmlEscape(s string) string {
	return htmlReplacer.Replace(s)
}

func buildEscaper(specials string) *strings.Replacer {
	pairs := make([]string, 0, len(specials)*2)
	for _, r := range specials {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}
