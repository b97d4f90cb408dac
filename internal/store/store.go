// Package store declares the document store the pipeline reads and writes.
package store

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/DeafMist/headline-radar/internal/errs"
	"github.com/DeafMist/headline-radar/internal/models"
)

// Filter is an equality predicate on a stored field. For fields of the
// embedded entities sequence any element may match.
type Filter struct {
	Field string
	Value string
}

// Query narrows a scan.
type Query struct {
	// Filter restricts results to matching documents when set.
	Filter *Filter
	// Pending restricts results to documents without annotations.
	Pending bool
	// Fields projects the returned documents; the ID is always set.
	// Empty means the full document.
	Fields []string
}

// Store is a headline document collection.
type Store interface {
	// InsertMany adds new documents; ids are assigned by the store.
	InsertMany(ctx context.Context, docs []models.Headline) (int, error)
	// Find returns a lazy scan. Every call issues a fresh query when ranged;
	// every matching document is yielded exactly once in no particular order.
	Find(ctx context.Context, q Query) iter.Seq2[models.Headline, error]
	// UpdateAnnotations overwrites the entities and sentiment label of one
	// document in a single write.
	UpdateAnnotations(ctx context.Context, id string, a models.Annotations) error
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the connection.
	Close() error
}

// All scans every document.
func All(ctx context.Context, s Store) iter.Seq2[models.Headline, error] {
	return s.Find(ctx, Query{})
}

// ValidateFilter rejects filters on fields no backend can match.
func ValidateFilter(f *Filter) error {
	if f == nil {
		return nil
	}
	switch f.Field {
	case models.FieldEntityText, models.FieldEntityType, models.FieldSentiment, models.FieldText:
		return nil
	default:
		return fmt.Errorf("%w: unsupported filter field %q", errs.ErrStore, f.Field)
	}
}

// Match evaluates q against a full document.
func Match(doc models.Headline, q Query) bool {
	if q.Pending && doc.Enriched() {
		return false
	}
	if q.Filter == nil {
		return true
	}
	switch q.Filter.Field {
	case models.FieldText:
		return doc.Text == q.Filter.Value
	case models.FieldSentiment:
		return string(doc.SentimentLabel) == q.Filter.Value
	case models.FieldEntityText:
		return slices.ContainsFunc(doc.Entities, func(e models.EntityMention) bool {
			return e.Text == q.Filter.Value
		})
	case models.FieldEntityType:
		return slices.ContainsFunc(doc.Entities, func(e models.EntityMention) bool {
			return string(e.Type) == q.Filter.Value
		})
	default:
		return false
	}
}

// Project keeps only the requested fields of doc. Field names that are not
// stored fields select input columns.
func Project(doc models.Headline, fields []string) models.Headline {
	if len(fields) == 0 {
		return doc
	}
	out := models.Headline{ID: doc.ID}
	for _, f := range fields {
		switch f {
		case models.FieldText:
			out.Text = doc.Text
		case models.FieldEntities:
			out.Entities = doc.Entities
		case models.FieldSentiment:
			out.SentimentLabel = doc.SentimentLabel
		default:
			v, ok := doc.Columns[f]
			if !ok {
				continue
			}
			if out.Columns == nil {
				out.Columns = make(map[string]string)
			}
			out.Columns[f] = v
		}
	}
	return out
}
