package classifier

import (
	"strings"
	"unicode"

	"triagehq.app/triage/internal/model"
)

// spamKeywords each add one point when found in the body.
var spamKeywords = []string{
	"free money", "click here", "winner", "congratulations you", "lottery",
	"viagra", "casino", "bitcoin investment", "limited time offer",
	"act now", "100% free", "make money fast", "work from home",
	"no credit check", "unsubscribe",
}

var linkTokens = []string{"http://", "https://", "www."}

const (
	spamVerdictThreshold   = 3
	uppercaseRatioLimit    = 0.5
	uppercaseMinBodyLength = 20
	linkCountLimit         = 3
)

// ScoreSpam scans the body for the fixed keyword list (+1 per keyword found),
// adds +2 when the uppercase-letter ratio exceeds 0.5 on bodies longer than
// 20 characters, and +2 when more than 3 link tokens appear. The verdict is
// spam iff the cumulative score reaches 3; confidence is min(score/5, 1).
func ScoreSpam(body string) model.SpamResult {
	lower := strings.ToLower(body)

	score := 0
	for _, keyword := range spamKeywords {
		if strings.Contains(lower, keyword) {
			score++
		}
	}

	if len(body) > uppercaseMinBodyLength && uppercaseRatio(body) > uppercaseRatioLimit {
		score += 2
	}

	if countLinks(lower) > linkCountLimit {
		score += 2
	}

	confidence := float64(score) / 5
	if confidence > 1 {
		confidence = 1
	}

	return model.SpamResult{
		Score:      score,
		Confidence: confidence,
		IsSpam:     score >= spamVerdictThreshold,
	}
}

// uppercaseRatio is uppercase letters over all letters; non-letters don't count.
func uppercaseRatio(s string) float64 {
	letters, upper := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

func countLinks(lower string) int {
	count := 0
	for _, token := range linkTokens {
		count += strings.Count(lower, token)
	}
	return count
}
