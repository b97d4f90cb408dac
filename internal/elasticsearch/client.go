package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/headline-radar/internal/errs"
	"github.com/DeafMist/headline-radar/internal/models"
	"github.com/DeafMist/headline-radar/internal/store"
)

const (
	defaultPageSize = 500
	scrollKeepAlive = time.Minute
)

// indexMapping keeps entity sub-fields and the sentiment label as keywords so
// term filters match exactly and case-sensitively.
const indexMapping = `{
  "mappings": {
    "properties": {
      "headline_text": {
        "type": "text",
        "fields": {"keyword": {"type": "keyword", "ignore_above": 2048}}
      },
      "sentimentLabel": {"type": "keyword"},
      "entities": {
        "properties": {
          "type": {"type": "keyword"},
          "text": {"type": "keyword"}
        }
      }
    }
  }
}`

// Client wraps go-elasticsearch with the document-store operations the
// pipeline needs. It implements store.Store.
type Client struct {
	es       *elasticsearch.Client
	index    string
	pageSize int
	log      *slog.Logger
}

// New instantiates the Elasticsearch client.
func New(addr, index string, pageSize int, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create elasticsearch client: %w", errs.ErrStore, err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Client{es: es, index: index, pageSize: pageSize, log: logger}, nil
}

// Connect creates a client and waits for the cluster to answer a ping,
// retrying with exponential backoff. The index is created if missing.
func Connect(ctx context.Context, addr, index string, pageSize, maxRetries int, log *slog.Logger) (*Client, error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	c, err := New(addr, index, pageSize, log)
	if err != nil {
		return nil, err
	}

	retryDelay := 2 * time.Second
	for i := 0; i < maxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = c.Ping(pingCtx)
		cancel()
		if err == nil {
			break
		}
		if i == maxRetries-1 {
			return nil, err
		}

		c.log.Warn("elasticsearch ping failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", i+1),
			slog.Int("max_retries", maxRetries),
			slog.Duration("retry_in", retryDelay),
		)

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		retryDelay *= 2
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}

	if err := c.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: ping elasticsearch: %w", errs.ErrStore, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: elasticsearch ping failed: %s", errs.ErrStore, res.Status())
	}

	return nil
}

// Close is a no-op; the HTTP transport has no connection to release.
func (c *Client) Close() error { return nil }

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: check index: %w", errs.ErrStore, err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("%w: check index failed: %s", errs.ErrStore, res.Status())
	}

	res, err = c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("%w: create index: %w", errs.ErrStore, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%w: create index failed: %s", errs.ErrStore, strings.TrimSpace(string(body)))
	}

	c.log.Info("created index", slog.String("index", c.index))
	return nil
}

// InsertMany bulk-indexes docs in chunks of the page size, letting
// Elasticsearch assign ids. It stops at the first rejected chunk; chunks
// already accepted stay written.
func (c *Client) InsertMany(ctx context.Context, docs []models.Headline) (int, error) {
	inserted := 0
	for start := 0; start < len(docs); start += c.pageSize {
		end := min(start+c.pageSize, len(docs))
		if err := c.bulkIndex(ctx, docs[start:end]); err != nil {
			return inserted, err
		}
		inserted += end - start
	}
	return inserted, nil
}

func (c *Client) bulkIndex(ctx context.Context, docs []models.Headline) error {
	var buf bytes.Buffer
	for _, doc := range docs {
		buf.WriteString(`{"index":{}}`)
		buf.WriteByte('\n')
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("%w: marshal doc: %w", errs.ErrStore, err)
		}
		buf.Write(payload)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{
		Index:   c.index,
		Body:    &buf,
		Refresh: "wait_for",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("%w: bulk insert: %w", errs.ErrStore, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%w: bulk insert failed: %s", errs.ErrStore, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int             `json:"status"`
			Error  json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("%w: decode bulk response: %w", errs.ErrStore, err)
	}
	if !parsed.Errors {
		return nil
	}

	failed := 0
	var first string
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Status >= http.StatusBadRequest {
				failed++
				if first == "" {
					first = string(result.Error)
				}
			}
		}
	}
	return fmt.Errorf("%w: bulk insert rejected %d of %d docs: %s", errs.ErrStore, failed, len(docs), first)
}

// UpdateAnnotations writes entities and sentimentLabel with one partial update.
func (c *Client) UpdateAnnotations(ctx context.Context, id string, a models.Annotations) error {
	if a.Entities == nil {
		a.Entities = []models.EntityMention{}
	}
	payload, err := json.Marshal(map[string]any{"doc": a})
	if err != nil {
		return fmt.Errorf("%w: marshal update: %w", errs.ErrStore, err)
	}

	req := esapi.UpdateRequest{
		Index:      c.index,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("%w: update %s: %w", errs.ErrStore, id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%w: update %s failed: %s", errs.ErrStore, id, strings.TrimSpace(string(body)))
	}

	return nil
}

// Find runs q through the scroll API, one page per round trip. The scroll
// context is cleared when ranging stops.
func (c *Client) Find(ctx context.Context, q store.Query) iter.Seq2[models.Headline, error] {
	return func(yield func(models.Headline, error) bool) {
		body, err := searchBody(q)
		if err != nil {
			yield(models.Headline{}, err)
			return
		}

		opts := []func(*esapi.SearchRequest){
			c.es.Search.WithContext(ctx),
			c.es.Search.WithIndex(c.index),
			c.es.Search.WithBody(bytes.NewReader(body)),
			c.es.Search.WithScroll(scrollKeepAlive),
			c.es.Search.WithSize(c.pageSize),
		}
		if len(q.Fields) > 0 {
			opts = append(opts, c.es.Search.WithSourceIncludes(q.Fields...))
		}

		res, err := c.es.Search(opts...)
		if err != nil {
			yield(models.Headline{}, fmt.Errorf("%w: search: %w", errs.ErrStore, err))
			return
		}
		page, err := decodePage(res)
		if err != nil {
			yield(models.Headline{}, err)
			return
		}
		scrollID := page.ScrollID
		defer func() {
			if scrollID != "" {
				c.clearScroll(scrollID)
			}
		}()

		for {
			for _, hit := range page.Hits {
				if !yield(hit, nil) {
					return
				}
			}
			if len(page.Hits) == 0 || page.ScrollID == "" {
				return
			}

			res, err := c.es.Scroll(
				c.es.Scroll.WithContext(ctx),
				c.es.Scroll.WithScrollID(page.ScrollID),
				c.es.Scroll.WithScroll(scrollKeepAlive),
			)
			if err != nil {
				yield(models.Headline{}, fmt.Errorf("%w: scroll: %w", errs.ErrStore, err))
				return
			}
			next, err := decodePage(res)
			if err != nil {
				yield(models.Headline{}, err)
				return
			}
			if next.ScrollID != "" {
				scrollID = next.ScrollID
			}
			page = next
		}
	}
}

func searchBody(q store.Query) ([]byte, error) {
	if err := store.ValidateFilter(q.Filter); err != nil {
		return nil, err
	}

	boolQuery := map[string]any{}
	if q.Filter != nil {
		field := q.Filter.Field
		if field == models.FieldText {
			field = models.FieldText + ".keyword"
		}
		boolQuery["filter"] = []map[string]any{
			{"term": map[string]any{field: q.Filter.Value}},
		}
	}
	if q.Pending {
		boolQuery["must_not"] = []map[string]any{
			{"exists": map[string]any{"field": models.FieldSentiment}},
		}
	}

	query := map[string]any{"match_all": map[string]any{}}
	if len(boolQuery) > 0 {
		query = map[string]any{"bool": boolQuery}
	}

	return json.Marshal(map[string]any{
		"query": query,
		"sort":  []string{"_doc"},
	})
}

type scrollPage struct {
	ScrollID string
	Hits     []models.Headline
}

func decodePage(res *esapi.Response) (scrollPage, error) {
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return scrollPage{}, fmt.Errorf("%w: search failed: %s", errs.ErrStore, strings.TrimSpace(string(data)))
	}

	var parsed struct {
		ScrollID string `json:"_scroll_id"`
		Hits     struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return scrollPage{}, fmt.Errorf("%w: decode search response: %w", errs.ErrStore, err)
	}

	page := scrollPage{ScrollID: parsed.ScrollID, Hits: make([]models.Headline, 0, len(parsed.Hits.Hits))}
	for _, hit := range parsed.Hits.Hits {
		doc := models.Headline{ID: hit.ID}
		if len(hit.Source) > 0 {
			if err := json.Unmarshal(hit.Source, &doc); err != nil {
				return scrollPage{}, fmt.Errorf("%w: decode %s: %w", errs.ErrStore, hit.ID, err)
			}
		}
		page.Hits = append(page.Hits, doc)
	}
	return page, nil
}

func (c *Client) clearScroll(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.es.ClearScroll(
		c.es.ClearScroll.WithContext(ctx),
		c.es.ClearScroll.WithScrollID(id),
	)
	if err != nil {
		c.log.Debug("clear scroll", slog.Any("err", err))
		return
	}
	res.Body.Close()
}
