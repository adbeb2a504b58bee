// Package sentiment provides the sentiment scorer collaborator consumed by
// the sentiment classification worker. Scorers map text to a signed score;
// the label is always derived from the score's sign so every implementation
// agrees on labeling.
package sentiment

import (
	"context"
	"fmt"

	"triagehq.app/triage/core/config"
	"triagehq.app/triage/internal/model"
)

// Result is the scorer output: a signed score, the derived label, and the
// tokens that contributed (empty for scorers that don't attribute).
type Result struct {
	Score  float64
	Label  model.SentimentLabel
	Tokens []string
}

type Scorer interface {
	Score(ctx context.Context, text string) (Result, error)
}

// NewFromConfig selects the scorer implementation.
func NewFromConfig(cfg config.SentimentConfig) (Scorer, error) {
	switch cfg.Provider {
	case "", "lexicon":
		return NewLexiconScorer(), nil
	case "openai":
		return NewOpenAIScorer(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown sentiment provider %q", cfg.Provider)
	}
}
