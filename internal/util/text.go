package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reSpaces     = regexp.MustCompile(`\s+`)
	reDigitGroup = regexp.MustCompile(`\b\d(?:-?\d){9,12}\b`)
)

// SplitItems splits a bulk block into items. Comma and newline are equivalent separators;
// blank items are dropped and order is kept.
func SplitItems(block string) []string {
	block = strings.ReplaceAll(block, "\r\n", "\n")
	block = strings.ReplaceAll(block, "\r", "\n")
	block = strings.ReplaceAll(block, ",", "\n")
	parts := strings.Split(block, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsAllDigits reports whether s is non-empty and made only of ASCII digits.
func IsAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// JoinNonEmpty joins the trimmed non-empty parts with a single space.
func JoinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// DedupeAndTrim removes blanks and repeated values, keeping first occurrence order.
func DedupeAndTrim(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// FindDigitGroups returns 10 to 13 digit runs, dashes allowed inside, as found in free text
// (0300-1234567, 35202-1234567-8). Dashes are stripped from the result.
func FindDigitGroups(text string) []string {
	matches := reDigitGroup.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.ReplaceAll(m, "-", "")
		out = append(out, m)
	}
	return out
}
