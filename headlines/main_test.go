package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/headline-radar/internal/backends"
	"github.com/DeafMist/headline-radar/internal/config"
	"github.com/DeafMist/headline-radar/internal/errs"
	"github.com/DeafMist/headline-radar/internal/metrics"
	"github.com/DeafMist/headline-radar/internal/models"
	"github.com/DeafMist/headline-radar/internal/nlp"
	"github.com/DeafMist/headline-radar/internal/processing"
	"github.com/DeafMist/headline-radar/internal/store"
	"github.com/DeafMist/headline-radar/internal/store/memstore"
)

type stubModel struct {
	entities map[string][]nlp.Mention
	scores   map[string]float64
	fail     map[string]bool
}

func (s *stubModel) Extract(_ context.Context, text string) ([]nlp.Mention, error) {
	if s.fail[text] {
		return nil, errors.New("model crashed")
	}
	return s.entities[text], nil
}

func (s *stubModel) Score(_ context.Context, text string) (float64, error) {
	return s.scores[text], nil
}

func newTestApp(model *stubModel, policy string) (*app, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &app{
		cfg: &config.CLI{
			TextColumn:   "headline_text",
			EnrichPolicy: policy,
			TopLimit:     100,
		},
		store:     memstore.New(2),
		stopwords: processing.NewStopwords("the"),
		models: func() (backends.Models, error) {
			return backends.Models{Extractor: model, Scorer: model}, nil
		},
		metrics: metrics.New(),
		out:     out,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	model := &stubModel{
		entities: map[string][]nlp.Mention{
			"Apple announced new iPhone": {
				{Text: "Apple", Type: models.EntityOrg},
				{Text: "iPhone", Type: "PRODUCT"},
			},
		},
		scores: map[string]float64{"Fed raised rates": -0.1},
	}
	a, out := newTestApp(model, "")
	csv := writeFile(t, "news.csv", "publish_date,headline_text\n20030219,The Fed raised rates\n20030220,Apple announced new iPhone\n")

	require.NoError(t, a.run(ctx, []string{"import", csv}))
	require.Contains(t, out.String(), "imported 2 headlines")

	var texts []string
	for doc, err := range store.All(ctx, a.store) {
		require.NoError(t, err)
		texts = append(texts, doc.Text)
	}
	require.Equal(t, []string{"Fed raised rates", "Apple announced new iPhone"}, texts)

	out.Reset()
	require.NoError(t, a.run(ctx, []string{"enrich"}))
	require.Contains(t, out.String(), "enriched 2 of 2 headlines")

	out.Reset()
	require.NoError(t, a.run(ctx, []string{"top-entities", "-k", "1"}))
	require.Equal(t, "Apple\n", out.String())

	out.Reset()
	require.NoError(t, a.run(ctx, []string{"top-entities", "-counts"}))
	require.Equal(t, "Apple\tORG\t1\n", out.String())

	out.Reset()
	require.NoError(t, a.run(ctx, []string{"entity-headlines", "Apple"}))
	require.Equal(t, "Apple announced new iPhone\n", out.String())

	out.Reset()
	require.NoError(t, a.run(ctx, []string{"stats"}))
	require.Contains(t, out.String(), "documents: 2")
	require.Contains(t, out.String(), "negative  1")
	require.Contains(t, out.String(), "neutral   1")
}

func TestEnrichContinueReportsFailures(t *testing.T) {
	ctx := context.Background()
	model := &stubModel{fail: map[string]bool{"boom": true}}
	a, out := newTestApp(model, "continue")
	csv := writeFile(t, "news.csv", "headline_text\none\nboom\nthree\n")
	require.NoError(t, a.run(ctx, []string{"import", csv}))

	out.Reset()
	require.NoError(t, a.run(ctx, []string{"enrich"}))
	require.Contains(t, out.String(), "enriched 2 of 3 headlines")
	require.Contains(t, out.String(), "1 headlines failed")
}

func TestEnrichFailFastAborts(t *testing.T) {
	ctx := context.Background()
	model := &stubModel{fail: map[string]bool{"boom": true}}
	a, _ := newTestApp(model, "fail-fast")
	csv := writeFile(t, "news.csv", "headline_text\nboom\nfine\n")
	require.NoError(t, a.run(ctx, []string{"import", csv}))

	err := a.run(ctx, []string{"enrich"})
	require.ErrorIs(t, err, errs.ErrModel)
	require.Equal(t, errs.ExitModel, errs.ExitCode(err))
}

func TestImportErrors(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(&stubModel{}, "")

	err := a.run(ctx, []string{"import"})
	require.ErrorIs(t, err, errUsage)

	missingColumn := writeFile(t, "bad.csv", "title\nsomething\n")
	err = a.run(ctx, []string{"import", missingColumn})
	require.ErrorIs(t, err, errs.ErrInputFormat)

	err = a.run(ctx, []string{"import", filepath.Join(t.TempDir(), "absent.csv")})
	require.ErrorIs(t, err, errs.ErrInputFormat)

	require.Equal(t, 0, a.store.(*memstore.Store).Len())
}

func TestEmptyCorpusIsNotAnError(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(&stubModel{}, "")

	require.NoError(t, a.run(ctx, []string{"top-entities"}))
	require.NoError(t, a.run(ctx, []string{"entity-headlines", "Apple"}))
	require.Empty(t, out.String())
}

func TestRunExitCodes(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("NLP_BACKEND", "local")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("PUSHGATEWAY_URL", "")
	t.Setenv("STOPWORDS_PATH", "")

	var stdout, stderr bytes.Buffer
	require.Equal(t, errs.ExitFailure, run(nil, &stdout, &stderr))
	require.Contains(t, stderr.String(), "usage:")

	stderr.Reset()
	require.Equal(t, errs.ExitFailure, run([]string{"bogus"}, &stdout, &stderr))

	stdout.Reset()
	require.Equal(t, errs.ExitOK, run([]string{"stats"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "documents: 0")

	require.Equal(t, errs.ExitInput, run([]string{"import", filepath.Join(t.TempDir(), "absent.csv")}, &stdout, &stderr))

	t.Setenv("STORE_BACKEND", "mongo")
	require.Equal(t, errs.ExitConfig, run([]string{"stats"}, &stdout, &stderr))
}
