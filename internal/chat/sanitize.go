package chat

import (
	"regexp"
	"strings"
)

// scriptBlockPattern matches whole script-tag blocks, including their
// content, case-insensitively and across newlines.
var scriptBlockPattern = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)

var angleBracketReplacer = strings.NewReplacer("<", "", ">", "")

// sanitizeMessageText scrubs a raw message body: script blocks are removed
// outright, remaining angle brackets are stripped, and surrounding
// whitespace is trimmed.
func sanitizeMessageText(raw string) string {
	text := scriptBlockPattern.ReplaceAllString(raw, "")
	text = angleBracketReplacer.Replace(text)
	return strings.TrimSpace(text)
}

// sanitizeUsername strips angle brackets and surrounding whitespace from a
// proposed display name.
func sanitizeUsername(raw string) string {
	return strings.TrimSpace(angleBracketReplacer.Replace(raw))
}
