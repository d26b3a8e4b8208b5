package render

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode/utf8"

	"newshive/internal/metrics"
)

// AgentName identifies this agent in metrics.
const AgentName = "render"

// Format selects the markup dialect of the rendered message.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPlain    Format = "plain"
	FormatHTML     Format = "html"
	FormatTelegram Format = "telegram" // Telegram MarkdownV2
)

// Tone adjusts the voice of the rendered body.
type Tone string

const (
	ToneFormal   Tone = "formal"
	ToneFriendly Tone = "friendly"
	ToneIronic   Tone = "ironic"
	ToneNeutral  Tone = "neutral"
)

// Device is the reader's device class, inferred from the user agent.
type Device string

const (
	DeviceMobile  Device = "mobile"
	DeviceTablet  Device = "tablet"
	DeviceDesktop Device = "desktop"
)

// Body length caps per device. Zero means unlimited.
const (
	mobileBodyLimit = 280
	tabletBodyLimit = 600
)

// Input is everything the render agent needs for one article message.
type Input struct {
	Title     string
	Brief     string
	Detailed  string
	Points    []string
	Category  string
	Tags      []string
	URL       string
	Style     string // brief, points or detailed
	UserAgent string
	Tone      Tone
	Format    Format
}

// Agent turns a processed article into platform-ready message chunks.
// Rendering is deterministic, no LLM involved.
type Agent struct {
	messageLimit int
	registry     *metrics.Registry
}

// NewAgent creates a render agent. messageLimit caps each emitted chunk;
// Telegram's limit is 4096.
func NewAgent(messageLimit int, registry *metrics.Registry) *Agent {
	if messageLimit <= 0 {
		messageLimit = 4096
	}
	return &Agent{messageLimit: messageLimit, registry: registry}
}

// Render assembles the article into one or more ordered message chunks,
// each within the platform limit.
func (a *Agent) Render(in Input) []string {
	a.registry.Attempt(AgentName)

	device := DetectDevice(in.UserAgent)
	tone := in.Tone
	if tone == "" {
		tone = ToneNeutral
	}
	format := in.Format
	if format == "" {
		format = FormatTelegram
	}

	body := bodyForStyle(in)
	body = truncateForDevice(body, device)
	body = applyTone(body, tone, in.Title)

	text := a.assemble(in, format, tone, body)
	chunks := Split(text, a.messageLimit)

	a.registry.Success(AgentName)
	return chunks
}

// bodyForStyle picks the summary variant matching the requested style.
func bodyForStyle(in Input) string {
	switch in.Style {
	case "points":
		if len(in.Points) > 0 {
			var b strings.Builder
			for i, point := range in.Points {
				if i > 0 {
					b.WriteString("\n")
				}
				b.WriteString("• ")
				b.WriteString(point)
			}
			return b.String()
		}
		return in.Brief
	case "detailed":
		if in.Detailed != "" {
			return in.Detailed
		}
		return in.Brief
	default:
		if in.Brief != "" {
			return in.Brief
		}
		return in.Detailed
	}
}

// DetectDevice classifies the reader's device from user-agent substrings.
func DetectDevice(userAgent string) Device {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return DeviceTablet
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "android") || strings.Contains(ua, "mobile"):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

// truncateForDevice trims body to the device cap, preferring to cut at a
// sentence boundary and appending an ellipsis.
func truncateForDevice(body string, device Device) string {
	limit := 0
	switch device {
	case DeviceMobile:
		limit = mobileBodyLimit
	case DeviceTablet:
		limit = tabletBodyLimit
	}
	if limit == 0 || len(body) <= limit {
		return body
	}

	// Byte cap, backed up to a rune boundary.
	cutAt := limit
	for cutAt > 0 && !utf8.RuneStart(body[cutAt]) {
		cutAt--
	}
	cut := body[:cutAt]
	if idx := lastSentenceEnd(cut); idx > limit/2 {
		return strings.TrimSpace(cut[:idx+1]) + ".."
	}
	if idx := strings.LastIndex(cut, " "); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "..."
}

func lastSentenceEnd(s string) int {
	best := -1
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			best = i
		}
	}
	return best
}

// ironicAsides is the fixed pool of parenthetical remarks for the ironic
// tone; one is picked deterministically per article title.
var ironicAsides = []string{
	"(what a surprise)",
	"(who could have guessed)",
	"(как неожиданно)",
	"(впрочем, как всегда)",
}

var formalPunctuation = strings.NewReplacer("?!", "?", "!!", "!", "!", ".")

// applyTone rewrites the body voice. The title seeds the ironic aside so
// repeated renders of the same article stay stable.
func applyTone(body string, tone Tone, title string) string {
	if body == "" {
		return body
	}
	switch tone {
	case ToneFormal:
		return formalPunctuation.Replace(body)
	case ToneFriendly:
		if !strings.HasSuffix(body, "!") {
			return body + " 👍"
		}
		return body
	case ToneIronic:
		h := fnv.New32a()
		h.Write([]byte(title))
		return body + " " + ironicAsides[int(h.Sum32())%len(ironicAsides)]
	default:
		return body
	}
}

// categoryEmoji maps category and tone to the message header marker.
var categoryEmoji = map[string]map[Tone]string{
	"technology": {ToneNeutral: "💻", ToneFormal: "🖥", ToneFriendly: "🚀", ToneIronic: "🤖"},
	"politics":   {ToneNeutral: "🏛", ToneFormal: "🏛", ToneFriendly: "🗳", ToneIronic: "🎭"},
	"economy":    {ToneNeutral: "📈", ToneFormal: "📊", ToneFriendly: "💰", ToneIronic: "📉"},
	"science":    {ToneNeutral: "🔬", ToneFormal: "🔬", ToneFriendly: "🧪", ToneIronic: "🧫"},
	"food":       {ToneNeutral: "🍎", ToneFormal: "🍽", ToneFriendly: "😋", ToneIronic: "🥡"},
	"general":    {ToneNeutral: "📰", ToneFormal: "📰", ToneFriendly: "👋", ToneIronic: "🙃"},
}

func emojiFor(category string, tone Tone) string {
	byTone, ok := categoryEmoji[category]
	if !ok {
		byTone = categoryEmoji["general"]
	}
	if emoji, ok := byTone[tone]; ok {
		return emoji
	}
	return byTone[ToneNeutral]
}

// assemble builds the complete message in the target format: header,
// title, body, tag list, source link and the search hint.
func (a *Agent) assemble(in Input, format Format, tone Tone, body string) string {
	header := fmt.Sprintf("%s %s", emojiFor(in.Category, tone), strings.ToUpper(in.Category))

	var hashtags []string
	for _, tag := range in.Tags {
		hashtags = append(hashtags, "#"+tag)
	}
	tagLine := strings.Join(hashtags, " ")

	var b strings.Builder
	write := func(line string) {
		if line == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(line)
	}

	switch format {
	case FormatHTML:
		write(htmlEscape(header))
		write("<b>" + htmlEscape(in.Title) + "</b>")
		write(htmlEscape(body))
		write(htmlEscape(tagLine))
		if in.URL != "" {
			write(fmt.Sprintf(`<a href="%s">Source</a>`, htmlEscape(in.URL)))
		}
		write(htmlEscape(searchHint(in.Tags)))
	case FormatTelegram:
		write(EscapeMarkdownV2(header))
		write("*" + EscapeMarkdownV2(in.Title) + "*")
		write(EscapeMarkdownV2(body))
		write(EscapeMarkdownV2(tagLine))
		if in.URL != "" {
			write(fmt.Sprintf("[Source](%s)", escapeLinkURL(in.URL)))
		}
		write(EscapeMarkdownV2(searchHint(in.Tags)))
	case FormatMarkdown:
		write(header)
		write("**" + in.Title + "**")
		write(body)
		write(tagLine)
		if in.URL != "" {
			write(fmt.Sprintf("[Source](%s)", in.URL))
		}
		write(searchHint(in.Tags))
	default: // FormatPlain
		write(header)
		write(in.Title)
		write(body)
		write(tagLine)
		if in.URL != "" {
			write("Source: " + in.URL)
		}
		write(searchHint(in.Tags))
	}
	return b.String()
}

// searchHint tells the reader how to dig further into the leading topic.
func searchHint(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return fmt.Sprintf("More on this topic: /search %s", tags[0])
}
