// Package memstore is an in-memory store.Store used by tests and dry runs.
package memstore

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/DeafMist/headline-radar/internal/errs"
	"github.com/DeafMist/headline-radar/internal/models"
	"github.com/DeafMist/headline-radar/internal/store"
)

const defaultPageSize = 100

// Store keeps documents in insertion order.
type Store struct {
	mu       sync.RWMutex
	order    []string
	docs     map[string]models.Headline
	pageSize int
}

// New creates an empty store that scans in pages of pageSize documents.
func New(pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Store{
		docs:     make(map[string]models.Headline),
		pageSize: pageSize,
	}
}

// InsertMany implements store.Store.
func (s *Store) InsertMany(_ context.Context, docs []models.Headline) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range docs {
		d.ID = uuid.NewString()
		s.docs[d.ID] = copyDoc(d)
		s.order = append(s.order, d.ID)
	}
	return len(docs), nil
}

// Find implements store.Store. The id list is snapshotted when ranging
// starts; documents are then copied out one page at a time.
func (s *Store) Find(ctx context.Context, q store.Query) iter.Seq2[models.Headline, error] {
	return func(yield func(models.Headline, error) bool) {
		if err := store.ValidateFilter(q.Filter); err != nil {
			yield(models.Headline{}, err)
			return
		}

		s.mu.RLock()
		ids := slices.Clone(s.order)
		s.mu.RUnlock()

		for start := 0; start < len(ids); start += s.pageSize {
			if err := ctx.Err(); err != nil {
				yield(models.Headline{}, err)
				return
			}
			end := min(start+s.pageSize, len(ids))
			for _, doc := range s.page(ids[start:end], q) {
				if !yield(doc, nil) {
					return
				}
			}
		}
	}
}

func (s *Store) page(ids []string, q store.Query) []models.Headline {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Headline, 0, len(ids))
	for _, id := range ids {
		doc, ok := s.docs[id]
		if !ok || !store.Match(doc, q) {
			continue
		}
		out = append(out, store.Project(copyDoc(doc), q.Fields))
	}
	return out
}

// UpdateAnnotations implements store.Store.
func (s *Store) UpdateAnnotations(_ context.Context, id string, a models.Annotations) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("%w: update %s: document not found", errs.ErrStore, id)
	}
	doc.Entities = slices.Clone(a.Entities)
	if doc.Entities == nil {
		doc.Entities = []models.EntityMention{}
	}
	doc.SentimentLabel = a.SentimentLabel
	s.docs[id] = doc
	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Ping implements store.Store.
func (s *Store) Ping(context.Context) error { return nil }

// Close implements store.Store.
func (s *Store) Close() error { return nil }

func copyDoc(d models.Headline) models.Headline {
	d.Columns = maps.Clone(d.Columns)
	if d.Entities != nil {
		d.Entities = slices.Clone(d.Entities)
	}
	return d
}
