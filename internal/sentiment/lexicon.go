package sentiment

import (
	"context"
	"sort"

	"triagehq.app/triage/internal/classifier"
	"triagehq.app/triage/internal/model"
)

// lexiconWords maps words to signed weights. Both sides of the lookup are
// stemmed, so inflected forms ("amazing", "frustrated") match their base word.
var lexiconWords = map[string]float64{
	// positive
	"thank":      1,
	"great":      1,
	"excellent":  2,
	"awesome":    2,
	"amazing":    2,
	"love":       2,
	"fantastic":  2,
	"wonderful":  1,
	"appreciate": 1,
	"good":       1,
	"happy":      1,
	"perfect":    2,
	// negative
	"bad":          -1,
	"terrible":     -2,
	"awful":        -2,
	"horrible":     -2,
	"worst":        -2,
	"hate":         -2,
	"angry":        -1,
	"frustrated":   -1,
	"disappointed": -1,
	"unacceptable": -2,
	"broken":       -1,
	"useless":      -1,
	"slow":         -1,
}

var lexicon = func() map[string]float64 {
	m := make(map[string]float64, len(lexiconWords))
	for word, weight := range lexiconWords {
		m[classifier.Stem(word)] = weight
	}
	return m
}()

type lexiconScorer struct{}

// NewLexiconScorer returns the default, fully deterministic scorer: it sums
// fixed per-token weights over the stemmed input.
func NewLexiconScorer() Scorer {
	return lexiconScorer{}
}

func (lexiconScorer) Score(_ context.Context, text string) (Result, error) {
	score := 0.0
	matched := map[string]struct{}{}

	for _, token := range classifier.Tokenize(text) {
		stem := classifier.Stem(token)
		if w, ok := lexicon[stem]; ok {
			score += w
			matched[stem] = struct{}{}
		}
	}

	tokens := make([]string, 0, len(matched))
	for t := range matched {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)

	return Result{
		Score:  score,
		Label:  model.SentimentLabelForScore(score),
		Tokens: tokens,
	}, nil
}
