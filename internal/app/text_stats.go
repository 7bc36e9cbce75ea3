package app

import (
	"strings"
	"unicode"

	"docinsight/internal/ai"
)

const wordsPerMinute = 250

// countWords counts whitespace-separated words, with every Han character
// counted as a word of its own.
func countWords(text string) int {
	n := 0
	var b strings.Builder
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			n++
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return n + len(strings.Fields(b.String()))
}

// readingMinutes rounds up.
func readingMinutes(words int) int {
	if words <= 0 {
		return 0
	}
	return (words + wordsPerMinute - 1) / wordsPerMinute
}

// majoritySentiment picks the most frequent label; ties fall back to neutral.
func majoritySentiment(labels []string) string {
	counts := map[string]int{}
	for _, l := range labels {
		counts[ai.NormalizeSentiment(l)]++
	}
	best, bestN, tie := ai.SentimentNeutral, 0, false
	for _, label := range []string{ai.SentimentPositive, ai.SentimentNegative, ai.SentimentNeutral} {
		switch n := counts[label]; {
		case n > bestN:
			best, bestN, tie = label, n, false
		case n == bestN && n > 0:
			tie = true
		}
	}
	if tie {
		return ai.SentimentNeutral
	}
	return best
}
