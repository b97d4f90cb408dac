// Package prose runs named-entity recognition locally with the prose model.
//
// The bundled English model labels entities PERSON or GPE only. GPE covers
// organisations as well as places, so it is passed through unmapped and
// dropped by the enricher's allow-list.
package prose

import (
	"context"
	"fmt"

	"github.com/jdkato/prose/v2"

	"github.com/DeafMist/headline-radar/internal/nlp"
)

// Extractor tags entities with prose's bundled English model.
type Extractor struct {
	model *prose.Model
}

// NewExtractor loads the bundled model once; every Extract reuses it.
func NewExtractor() (*Extractor, error) {
	doc, err := prose.NewDocument("warm up", prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("prose: load model: %w", err)
	}
	return &Extractor{model: doc.Model}, nil
}

// Extract implements nlp.EntityExtractor.
func (e *Extractor) Extract(_ context.Context, text string) ([]nlp.Mention, error) {
	if text == "" {
		return nil, nil
	}
	doc, err := e.document(text)
	if err != nil {
		return nil, err
	}

	ents := doc.Entities()
	out := make([]nlp.Mention, 0, len(ents))
	for _, ent := range ents {
		out = append(out, nlp.Mention{Text: ent.Text, Type: nlp.CanonicalType(ent.Label)})
	}
	return out, nil
}

func (e *Extractor) document(text string) (*prose.Document, error) {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false), prose.UsingModel(e.model))
	if err != nil {
		return nil, fmt.Errorf("prose: %w", err)
	}
	return doc, nil
}
