package rules

import (
	"strings"

	"golang.org/x/text/cases"
)

// PhraseChecker flags copy that may breach advertising rules. It returns
// human-readable findings; an empty slice means nothing was found.
type PhraseChecker interface {
	Check(texts []string) []string
}

// DefaultBannedPhrases covers competitions, guarantees and sustainability claims.
var DefaultBannedPhrases = []string{"eco-friendly", "win", "guarantee", "carbon neutral", "free", "prize"}

// KeywordChecker matches phrases case-insensitively as substrings.
type KeywordChecker struct {
	phrases []string
}

// NewKeywordChecker uses DefaultBannedPhrases when phrases is empty.
func NewKeywordChecker(phrases []string) *KeywordChecker {
	if len(phrases) == 0 {
		phrases = DefaultBannedPhrases
	}
	cleaned := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &KeywordChecker{phrases: cleaned}
}

// Check reports a single finding listing every matched phrase in list order.
func (k *KeywordChecker) Check(texts []string) []string {
	var parts []string
	for _, t := range texts {
		if t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	// Casers are stateful, so each call folds with its own.
	fold := cases.Fold()
	joined := fold.String(strings.Join(parts, "\n"))
	var found []string
	for _, p := range k.phrases {
		if strings.Contains(joined, fold.String(p)) {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil
	}
	return []string{"Found potentially banned phrases: " + strings.Join(found, ", ")}
}

var _ PhraseChecker = (*KeywordChecker)(nil)
