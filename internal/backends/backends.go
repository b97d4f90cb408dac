// Package backends builds the store and model collaborators selected by
// configuration.
package backends

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DeafMist/headline-radar/internal/config"
	"github.com/DeafMist/headline-radar/internal/elasticsearch"
	"github.com/DeafMist/headline-radar/internal/errs"
	"github.com/DeafMist/headline-radar/internal/nlp"
	"github.com/DeafMist/headline-radar/internal/nlp/openai"
	"github.com/DeafMist/headline-radar/internal/nlp/prose"
	"github.com/DeafMist/headline-radar/internal/nlp/vader"
	"github.com/DeafMist/headline-radar/internal/sqlite"
	"github.com/DeafMist/headline-radar/internal/store"
	"github.com/DeafMist/headline-radar/internal/store/memstore"
)

// OpenStore connects to the configured document store. The caller owns the
// returned store and must Close it.
func OpenStore(ctx context.Context, cfg config.Common, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendElasticsearch:
		if cfg.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
			defer cancel()
		}
		return elasticsearch.Connect(ctx, cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, cfg.PageSize, cfg.ConnectRetries, log)
	case config.BackendSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath, cfg.PageSize)
	case config.BackendMemory:
		log.Warn("using in-memory store, documents are lost at exit")
		return memstore.New(cfg.PageSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", errs.ErrConfig, cfg.StoreBackend)
	}
}

// Models pairs the extraction and scoring collaborators of the enricher.
type Models struct {
	Extractor nlp.EntityExtractor
	Scorer    nlp.SentimentScorer
}

// OpenModels builds the configured NLP backend.
func OpenModels(cfg *config.CLI) (Models, error) {
	switch cfg.NLPBackend {
	case config.NLPLocal, "":
		ex, err := prose.NewExtractor()
		if err != nil {
			return Models{}, fmt.Errorf("%w: %w", errs.ErrModel, err)
		}
		return Models{Extractor: ex, Scorer: vader.NewScorer()}, nil
	case config.NLPOpenAI:
		c, err := openai.New(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		if err != nil {
			return Models{}, fmt.Errorf("%w: %w", errs.ErrConfig, err)
		}
		return Models{Extractor: c, Scorer: c}, nil
	default:
		return Models{}, fmt.Errorf("%w: unknown nlp backend %q", errs.ErrConfig, cfg.NLPBackend)
	}
}
