// Package ingest normalizes tabular headline rows and bulk-loads them.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DeafMist/headline-radar/internal/errs"
	"github.com/DeafMist/headline-radar/internal/models"
	"github.com/DeafMist/headline-radar/internal/processing"
	"github.com/DeafMist/headline-radar/internal/tabular"
)

// DefaultTextColumn is the input column holding the headline.
const DefaultTextColumn = "headline_text"

// Inserter is the store capability ingest needs.
type Inserter interface {
	InsertMany(ctx context.Context, docs []models.Headline) (int, error)
}

// Ingestor turns rows into unenriched documents.
type Ingestor struct {
	store      Inserter
	stopwords  processing.Stopwords
	textColumn string
	log        *slog.Logger
}

// New builds an Ingestor. An empty textColumn selects DefaultTextColumn.
func New(store Inserter, stopwords processing.Stopwords, textColumn string, log *slog.Logger) *Ingestor {
	if textColumn == "" {
		textColumn = DefaultTextColumn
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{store: store, stopwords: stopwords, textColumn: textColumn, log: log}
}

// Ingest validates every row, normalizes the text column and writes all
// resulting documents in one bulk insert. Nothing is written when any row is
// invalid. Re-running on the same rows creates duplicates.
func (i *Ingestor) Ingest(ctx context.Context, rows []tabular.Row) (int, error) {
	docs := make([]models.Headline, 0, len(rows))
	for n, row := range rows {
		doc, err := i.document(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", n+1, err)
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		i.log.Info("no rows to import")
		return 0, nil
	}

	count, err := i.store.InsertMany(ctx, docs)
	if err != nil {
		return count, fmt.Errorf("bulk insert: %w", err)
	}

	i.log.Info("imported headlines", slog.Int("count", count))
	return count, nil
}

func (i *Ingestor) document(row tabular.Row) (models.Headline, error) {
	raw, ok := row[i.textColumn]
	if !ok {
		return models.Headline{}, fmt.Errorf("%w: missing column %q", errs.ErrInputFormat, i.textColumn)
	}

	doc := models.Headline{Text: processing.Normalize(raw, i.stopwords)}
	for col, val := range row {
		if col == i.textColumn {
			continue
		}
		if models.ReservedColumn(col) {
			return models.Headline{}, fmt.Errorf("%w: column %q collides with a stored field", errs.ErrInputFormat, col)
		}
		if doc.Columns == nil {
			doc.Columns = make(map[string]string, len(row)-1)
		}
		doc.Columns[col] = val
	}
	return doc, nil
}
