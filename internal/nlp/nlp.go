// Package nlp declares the inference models the enricher consumes.
package nlp

import (
	"context"
	"strings"

	"github.com/DeafMist/headline-radar/internal/models"
)

// Mention is one entity found by an extractor, in extraction order.
type Mention struct {
	Text string
	Type models.EntityType
}

// EntityExtractor finds named entities in text.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]Mention, error)
}

// SentimentScorer returns a compound polarity score in [-1, 1].
type SentimentScorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// CanonicalType maps model-specific labels onto the stored entity types.
// Unknown labels, GPE included, are upper-cased and passed through so callers
// can filter them.
func CanonicalType(label string) models.EntityType {
	switch l := strings.ToUpper(strings.TrimSpace(label)); l {
	case "PERSON", "PER":
		return models.EntityPerson
	case "ORG", "ORGANIZATION", "ORGANISATION":
		return models.EntityOrg
	case "LOC", "LOCATION":
		return models.EntityLocation
	default:
		return models.EntityType(l)
	}
}
