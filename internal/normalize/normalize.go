// Package normalize rewrites a segment into the pronunciation-friendly form
// sent to the TTS provider.
package normalize

import (
	"regexp"
	"sort"
	"strings"

	"reelforge/internal/fault"
	"reelforge/internal/profile"
)

var (
	ellipsisRe   = regexp.MustCompile(`\.{3,}|…`)
	semicolonRe  = regexp.MustCompile(`;+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	digitRunRe   = regexp.MustCompile(`\d+`)
)

// greetings are preserved byte-for-byte at the start of a segment; lexicon
// substitution and number expansion never touch them.
var greetings = []string{"fala cambada", "e aí cambada", "e ai cambada"}

// Normalize applies the prosody rules in order: protect the leading
// greeting, collapse ellipses and semicolon runs, substitute the profile
// lexicon, optionally expand digit runs to Portuguese words, and collapse
// whitespace. Existing periods and commas are kept; none are invented.
func Normalize(text string, v profile.Voice) (string, error) {
	greeting, rest := splitGreeting(text)

	rest = ellipsisRe.ReplaceAllString(rest, " ")
	rest = semicolonRe.ReplaceAllString(rest, " ")
	rest = applyLexicon(rest, v.Lexicon)
	if v.NumberExpansion {
		rest = expandNumbers(rest)
	}
	rest = strings.TrimSpace(whitespaceRe.ReplaceAllString(rest, " "))

	out := rest
	if greeting != "" {
		switch {
		case rest == "":
			out = greeting
		case strings.HasPrefix(rest, ","), strings.HasPrefix(rest, "."),
			strings.HasPrefix(rest, "!"), strings.HasPrefix(rest, "?"), strings.HasPrefix(rest, ":"):
			out = greeting + rest
		default:
			out = greeting + " " + rest
		}
	}

	maxChars := v.MaxTTSChars
	if maxChars <= 0 {
		maxChars = profile.DefaultMaxTTSChars
	}
	if len(out) > maxChars {
		return "", fault.New(fault.TooLong, "normalized segment is %d bytes, limit is %d", len(out), maxChars)
	}
	return out, nil
}

// splitGreeting peels off a known greeting prefix, returning it with its
// original casing intact.
func splitGreeting(text string) (greeting, rest string) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for _, g := range greetings {
		if strings.HasPrefix(lower, g) {
			return trimmed[:len(g)], trimmed[len(g):]
		}
	}
	return "", text
}

// applyLexicon substitutes whole-word jargon with its pronunciation-friendly
// equivalent. Longer keys win so "BTC/USD" style entries are not shadowed by
// their prefixes.
func applyLexicon(text string, lexicon map[string]string) string {
	if len(lexicon) == 0 {
		return text
	}
	keys := make([]string, 0, len(lexicon))
	for k := range lexicon {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(k) + `\b`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, lexicon[k])
	}
	return text
}

// expandNumbers replaces each digit run with its Portuguese cardinal.
func expandNumbers(text string) string {
	return digitRunRe.ReplaceAllStringFunc(text, func(digits string) string {
		return Cardinal(digits)
	})
}
