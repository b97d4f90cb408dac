// Package analytics implements the read-side queries over enriched headlines.
package analytics

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"github.com/DeafMist/headline-radar/internal/models"
	"github.com/DeafMist/headline-radar/internal/store"
)

// DefaultTopK is the ranking size used when k is not positive.
const DefaultTopK = 100

// EntityCount is one ranked (text, type) pair.
type EntityCount struct {
	Entity models.EntityMention `json:"entity"`
	Count  int                  `json:"count"`
}

// TopEntities counts every allowed mention across the corpus and returns the
// k most frequent pairs. Equal counts keep the order in which the scan first
// met each pair.
func TopEntities(ctx context.Context, st store.Store, k int) ([]EntityCount, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	index := make(map[models.EntityMention]int)
	var counts []EntityCount

	q := store.Query{Fields: []string{models.FieldEntities}}
	for doc, err := range st.Find(ctx, q) {
		if err != nil {
			return nil, fmt.Errorf("scan entities: %w", err)
		}
		for _, m := range doc.Entities {
			if !m.Type.Allowed() {
				continue
			}
			i, ok := index[m]
			if !ok {
				i = len(counts)
				index[m] = i
				counts = append(counts, EntityCount{Entity: m})
			}
			counts[i].Count++
		}
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if len(counts) > k {
		counts = counts[:k]
	}
	return counts, nil
}

// Headlines yields the text of every document with an entity whose text
// equals entityText exactly. Each range issues a fresh query.
func Headlines(ctx context.Context, st store.Store, entityText string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		q := store.Query{
			Filter: &store.Filter{Field: models.FieldEntityText, Value: entityText},
			Fields: []string{models.FieldText},
		}
		for doc, err := range st.Find(ctx, q) {
			if err != nil {
				yield("", fmt.Errorf("lookup %q: %w", entityText, err))
				return
			}
			if !yield(doc.Text, nil) {
				return
			}
		}
	}
}

// Stats describes enrichment coverage of the corpus.
type Stats struct {
	Documents int                           `json:"documents"`
	Enriched  int                           `json:"enriched"`
	Sentiment map[models.SentimentLabel]int `json:"sentiment"`
}

// Summarize scans sentiment labels of every document.
func Summarize(ctx context.Context, st store.Store) (Stats, error) {
	stats := Stats{Sentiment: map[models.SentimentLabel]int{}}

	q := store.Query{Fields: []string{models.FieldSentiment}}
	for doc, err := range st.Find(ctx, q) {
		if err != nil {
			return Stats{}, fmt.Errorf("scan sentiment: %w", err)
		}
		stats.Documents++
		if doc.Enriched() {
			stats.Enriched++
			stats.Sentiment[doc.SentimentLabel]++
		}
	}
	return stats, nil
}
