// Package sqlite is a single-file store.Store for running the pipeline
// without an Elasticsearch cluster.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/DeafMist/headline-radar/internal/errs"
	"github.com/DeafMist/headline-radar/internal/models"
	"github.com/DeafMist/headline-radar/internal/store"
)

const defaultPageSize = 500

// Store keeps one row per headline; columns and entities are JSON text.
type Store struct {
	db       *sql.DB
	pageSize int
}

// Open opens (and creates if needed) the database at path.
func Open(ctx context.Context, path string, pageSize int) (*Store, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", errs.ErrStore, err)
	}
	// Scans page with closed cursors between pages, so one connection serves
	// readers and the per-document updates alike. Required for :memory:.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enable wal: %w", errs.ErrStore, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %w", errs.ErrStore, err)
	}

	return &Store{db: db, pageSize: pageSize}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS headlines (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	headline_text TEXT NOT NULL,
	columns TEXT NOT NULL DEFAULT '{}',
	entities TEXT,
	sentiment_label TEXT
);

CREATE INDEX IF NOT EXISTS idx_headlines_sentiment ON headlines(sentiment_label);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping sqlite: %w", errs.ErrStore, err)
	}
	return nil
}

// InsertMany writes all docs in one transaction; either all rows land or none.
func (s *Store) InsertMany(ctx context.Context, docs []models.Headline) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin insert: %w", errs.ErrStore, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO headlines (id, headline_text, columns) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare insert: %w", errs.ErrStore, err)
	}
	defer stmt.Close()

	for _, d := range docs {
		cols := d.Columns
		if cols == nil {
			cols = map[string]string{}
		}
		colsJSON, err := json.Marshal(cols)
		if err != nil {
			return 0, fmt.Errorf("%w: encode columns: %w", errs.ErrStore, err)
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), d.Text, string(colsJSON)); err != nil {
			return 0, fmt.Errorf("%w: insert headline: %w", errs.ErrStore, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit insert: %w", errs.ErrStore, err)
	}
	return len(docs), nil
}

// UpdateAnnotations sets both annotation columns in one statement.
func (s *Store) UpdateAnnotations(ctx context.Context, id string, a models.Annotations) error {
	entities := a.Entities
	if entities == nil {
		entities = []models.EntityMention{}
	}
	data, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("%w: encode entities: %w", errs.ErrStore, err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE headlines SET entities = ?, sentiment_label = ? WHERE id = ?`,
		string(data), string(a.SentimentLabel), id,
	)
	if err != nil {
		return fmt.Errorf("%w: update %s: %w", errs.ErrStore, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: update %s: document not found", errs.ErrStore, id)
	}
	return nil
}

// Find pages through the table by rowid. Each page is read into memory and
// its cursor closed before any document is yielded.
func (s *Store) Find(ctx context.Context, q store.Query) iter.Seq2[models.Headline, error] {
	return func(yield func(models.Headline, error) bool) {
		where, args, err := buildWhere(q)
		if err != nil {
			yield(models.Headline{}, err)
			return
		}

		var after int64
		for {
			page, last, err := s.page(ctx, where, args, after)
			if err != nil {
				yield(models.Headline{}, err)
				return
			}
			for _, doc := range page {
				if !yield(store.Project(doc, q.Fields), nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			after = last
		}
	}
}

func buildWhere(q store.Query) (string, []any, error) {
	if err := store.ValidateFilter(q.Filter); err != nil {
		return "", nil, err
	}

	clauses := []string{"seq > ?"}
	var args []any
	if q.Pending {
		clauses = append(clauses, "sentiment_label IS NULL")
	}
	if f := q.Filter; f != nil {
		switch f.Field {
		case models.FieldText:
			clauses = append(clauses, "headline_text = ?")
		case models.FieldSentiment:
			clauses = append(clauses, "sentiment_label = ?")
		case models.FieldEntityText:
			clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(headlines.entities) e WHERE json_extract(e.value, '$.text') = ?)")
		case models.FieldEntityType:
			clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(headlines.entities) e WHERE json_extract(e.value, '$.type') = ?)")
		}
		args = append(args, f.Value)
	}
	return strings.Join(clauses, " AND "), args, nil
}

func (s *Store) page(ctx context.Context, where string, filterArgs []any, after int64) ([]models.Headline, int64, error) {
	query := `SELECT seq, id, headline_text, columns, entities, sentiment_label FROM headlines WHERE ` +
		where + ` ORDER BY seq LIMIT ?`

	args := make([]any, 0, len(filterArgs)+2)
	args = append(args, after)
	args = append(args, filterArgs...)
	args = append(args, s.pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: scan headlines: %w", errs.ErrStore, err)
	}
	defer rows.Close()

	var (
		out  []models.Headline
		last int64
	)
	for rows.Next() {
		var (
			doc       models.Headline
			colsJSON  string
			entsJSON  sql.NullString
			sentiment sql.NullString
		)
		if err := rows.Scan(&last, &doc.ID, &doc.Text, &colsJSON, &entsJSON, &sentiment); err != nil {
			return nil, 0, fmt.Errorf("%w: read headline: %w", errs.ErrStore, err)
		}
		if err := json.Unmarshal([]byte(colsJSON), &doc.Columns); err != nil {
			return nil, 0, fmt.Errorf("%w: decode columns of %s: %w", errs.ErrStore, doc.ID, err)
		}
		if len(doc.Columns) == 0 {
			doc.Columns = nil
		}
		if entsJSON.Valid {
			doc.Entities = []models.EntityMention{}
			if err := json.Unmarshal([]byte(entsJSON.String), &doc.Entities); err != nil {
				return nil, 0, fmt.Errorf("%w: decode entities of %s: %w", errs.ErrStore, doc.ID, err)
			}
		}
		doc.SentimentLabel = models.SentimentLabel(sentiment.String)
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: scan headlines: %w", errs.ErrStore, err)
	}
	return out, last, nil
}
