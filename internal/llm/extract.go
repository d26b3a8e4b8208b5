package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ExtractionError reports that no valid JSON record was found in a model
// response. Callers are expected to fall back to a deterministic path.
type ExtractionError struct {
	Snippet string // Leading portion of the offending response
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("no valid JSON object found in LLM response: %q", e.Snippet)
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// FirstJSON extracts the first well-formed top-level JSON object from
// arbitrary model output and unmarshals it into v.
//
// A fenced ```json block is preferred. Otherwise the text is scanned left
// to right with a brace depth counter (string and escape aware), and the
// first fully balanced candidate that unmarshals cleanly wins. Trailing
// prose after the object is ignored.
func FirstJSON(text string, v any) error {
	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(m[1]), v); err == nil {
			return nil
		}
	}

	for _, candidate := range balancedObjects(text) {
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		}
	}

	snippet := text
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	return &ExtractionError{Snippet: strings.TrimSpace(snippet)}
}

// balancedObjects returns every top-level brace-balanced substring of text,
// in order of appearance.
func balancedObjects(text string) []string {
	var (
		candidates []string
		depth      int
		start      = -1
		inString   bool
		escaped    bool
	)

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					candidates = append(candidates, text[start:i+1])
					start = -1
				}
			}
		}
	}

	return candidates
}
