package pipeline

import "strings"

type DetectResult struct {
	IsLookup bool
	Score    float64
	Reason   string
}

var detectKeywords = []string{"sim", "cnic", "owner", "detail", "info", "lookup", "verif", "registration"}

const defaultDetectThreshold = 0.45

// DetectLookupRequest scores a mail as a lookup request from keywords, the number of
// identifiers found and the presence of tabular content. A threshold <= 0 uses the default.
func DetectLookupRequest(subject, text, html string, attachmentNames []string, identifiers int, threshold float64) DetectResult {
	if threshold <= 0 {
		threshold = defaultDetectThreshold
	}
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)
	html = strings.ToLower(html)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) || strings.Contains(html, kw) {
			score += 0.1
		}
	}

	if identifiers >= 2 {
		score += 0.4
	} else if identifiers == 1 {
		score += 0.2
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.HasSuffix(ln, ".xlsx") || strings.HasSuffix(ln, ".csv") || strings.HasSuffix(ln, ".pdf") {
			score += 0.25
			break
		}
	}

	if strings.Contains(html, "<table") {
		score += 0.25
	}
	if score > 1 {
		score = 1
	}

	isLookup := identifiers > 0 && score >= threshold
	reason := "rules_negative"
	switch {
	case identifiers == 0:
		reason = "no_identifiers"
	case isLookup:
		reason = "rules_positive"
	}

	return DetectResult{IsLookup: isLookup, Score: score, Reason: reason}
}
