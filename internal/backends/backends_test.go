package backends_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/headline-radar/internal/backends"
	"github.com/DeafMist/headline-radar/internal/config"
	"github.com/DeafMist/headline-radar/internal/errs"
	"github.com/DeafMist/headline-radar/internal/nlp/openai"
	"github.com/DeafMist/headline-radar/internal/nlp/prose"
	"github.com/DeafMist/headline-radar/internal/sqlite"
	"github.com/DeafMist/headline-radar/internal/store/memstore"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, err := backends.OpenStore(ctx, config.Common{StoreBackend: config.BackendMemory, PageSize: 10}, discard())
	require.NoError(t, err)
	require.IsType(t, &memstore.Store{}, st)

	st, err = backends.OpenStore(ctx, config.Common{
		StoreBackend: config.BackendSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "h.db"),
		PageSize:     10,
	}, discard())
	require.NoError(t, err)
	require.IsType(t, &sqlite.Store{}, st)
	require.NoError(t, st.Ping(ctx))
	require.NoError(t, st.Close())

	_, err = backends.OpenStore(ctx, config.Common{StoreBackend: "mongo"}, discard())
	require.ErrorIs(t, err, errs.ErrConfig)
}

func TestOpenModels(t *testing.T) {
	m, err := backends.OpenModels(&config.CLI{NLPBackend: config.NLPLocal})
	require.NoError(t, err)
	require.IsType(t, &prose.Extractor{}, m.Extractor)

	m, err = backends.OpenModels(&config.CLI{NLPBackend: config.NLPOpenAI, OpenAIKey: "sk-test"})
	require.NoError(t, err)
	require.IsType(t, &openai.Client{}, m.Scorer)

	_, err = backends.OpenModels(&config.CLI{NLPBackend: config.NLPOpenAI})
	require.ErrorIs(t, err, errs.ErrConfig)
}
