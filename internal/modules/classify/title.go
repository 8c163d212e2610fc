package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var sentenceRe = regexp.MustCompile(`[.!?\n]+`)

const (
	titleMaxLen   = 100
	titleCutLen   = 97
	maxTitleEmoji = 3
)

// ShortTitle builds the display title for a message: the first sentence
// (truncated to 97 runes plus ellipsis when over 100), prefixed with up
// to three tag emojis and suffixed with the minimum extracted price.
func ShortTitle(text string, tags []string, city string) string {
	prices := ExtractPrices(text)

	sentences := sentenceRe.Split(text, -1)
	first := text
	if len(sentences) > 0 {
		first = strings.TrimSpace(sentences[0])
	}

	if runes := []rune(first); len(runes) > titleMaxLen {
		first = string(runes[:titleCutLen]) + "..."
	}

	emojis := lo.FilterMap(tags, func(tag string, _ int) (string, bool) {
		rule, found := lo.Find(TagRules, func(rule TagRule) bool {
			return rule.Name == tag
		})
		return rule.Emoji, found
	})
	if len(emojis) > maxTitleEmoji {
		emojis = emojis[:maxTitleEmoji]
	}
	prefix := strings.Join(emojis, "")
	if prefix != "" {
		prefix += " "
	}

	if len(prices) > 0 {
		return fmt.Sprintf("%s%s • от %d₽", prefix, first, prices[0])
	}
	return prefix + first
}
