package summarize

import "strings"

// OutputFormat selects how inline markup in a summary is represented.
type OutputFormat string

const (
	FormatPlain      OutputFormat = "plain"      // Strip inline markup entirely
	FormatInline     OutputFormat = "inline"     // Keep markup as-is
	FormatLinebreaks OutputFormat = "linebreaks" // Markup stripped, sentence breaks become newlines
)

var markupReplacer = strings.NewReplacer(
	"**", "",
	"__", "",
	"*", "",
	"_", "",
	"`", "",
)

// FormatOutput reformats summary text for the requested representation.
// This is a pure text transform, no LLM involvement.
func FormatOutput(text string, format OutputFormat) string {
	switch format {
	case FormatInline:
		return text
	case FormatLinebreaks:
		stripped := markupReplacer.Replace(text)
		stripped = strings.ReplaceAll(stripped, ". ", ".\n")
		return strings.TrimSpace(stripped)
	default:
		return strings.TrimSpace(markupReplacer.Replace(text))
	}
}
