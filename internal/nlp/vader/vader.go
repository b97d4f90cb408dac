// Package vader scores sentiment with the VADER lexicon.
package vader

import (
	"context"

	"github.com/jonreiter/govader"
)

// Scorer returns VADER's compound score.
type Scorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewScorer loads the lexicon once.
func NewScorer() *Scorer {
	return &Scorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score implements nlp.SentimentScorer.
func (s *Scorer) Score(_ context.Context, text string) (float64, error) {
	return s.analyzer.PolarityScores(text).Compound, nil
}
