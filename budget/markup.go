package budget

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

const ellipsis = "..."

var (
	strictOnce   sync.Once
	strictPolicy *bluemonday.Policy
)

func policy() *bluemonday.Policy {
	strictOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// StripMarkup removes every HTML tag, decodes entities and collapses whitespace
func StripMarkup(s string) string {
	if s == "" {
		return ""
	}
	plain := html.UnescapeString(policy().Sanitize(s))
	return strings.Join(strings.Fields(plain), " ")
}

// Truncate cuts s to at most max characters, appending an ellipsis when it cut
func Truncate(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	r := []rune(s)
	if len(r) <= max {
		return s, false
	}
	return strings.TrimRight(string(r[:max]), " ") + ellipsis, true
}
