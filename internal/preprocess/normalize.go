// Package preprocess normalizes raw extracted document text before it is
// sent to any provider.
package preprocess

import (
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// DefaultMinLength is the minimum useful text length after normalization.
// Anything shorter is treated as an unreadable document.
const DefaultMinLength = 50

var (
	// Non-printable and non-ASCII runes become spaces rather than being
	// dropped, so adjacent words don't fuse. Newlines survive because the
	// footer stripping below is line-based.
	printableASCII = runes.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if r < 0x20 || r > 0x7e {
			return ' '
		}
		return r
	})

	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	pageFooter  = regexp.MustCompile(`(?i)^page\s+\d+(\s+of\s+\d+)?$`)
	numericOnly = regexp.MustCompile(`^\d+$`)
)

// Normalize cleans raw document text: CRLF to LF, non-ASCII runs to a single
// space, whitespace runs collapsed, "Page N of M" footers and standalone
// numeric lines stripped, surrounding whitespace trimmed.
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s, _, _ = transform.String(printableASCII, s)

	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(spaceRuns.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		if pageFooter.MatchString(line) || numericOnly.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

// Readable reports whether normalized text is long enough to be worth
// sending to a provider. minLength <= 0 falls back to DefaultMinLength.
func Readable(text string, minLength int) bool {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return len(text) >= minLength
}
