package analytics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/headline-radar/internal/analytics"
	"github.com/DeafMist/headline-radar/internal/models"
	"github.com/DeafMist/headline-radar/internal/store"
	"github.com/DeafMist/headline-radar/internal/store/memstore"
)

type annotated struct {
	text     string
	entities []models.EntityMention
	label    models.SentimentLabel
}

func seed(t *testing.T, docs ...annotated) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	st := memstore.New(2)

	raw := make([]models.Headline, 0, len(docs))
	for _, d := range docs {
		raw = append(raw, models.Headline{Text: d.text})
	}
	_, err := st.InsertMany(ctx, raw)
	require.NoError(t, err)

	i := 0
	for doc, err := range store.All(ctx, st) {
		require.NoError(t, err)
		if docs[i].label != "" {
			require.NoError(t, st.UpdateAnnotations(ctx, doc.ID, models.Annotations{
				Entities:       docs[i].entities,
				SentimentLabel: docs[i].label,
			}))
		}
		i++
	}
	return st
}

var (
	apple = models.EntityMention{Type: models.EntityOrg, Text: "Apple"}
	fed   = models.EntityMention{Type: models.EntityOrg, Text: "Fed"}
	obama = models.EntityMention{Type: models.EntityPerson, Text: "Obama"}
	paris = models.EntityMention{Type: models.EntityLocation, Text: "Paris"}
)

func TestTopEntitiesCountsOccurrences(t *testing.T) {
	st := seed(t,
		annotated{text: "a", entities: []models.EntityMention{apple, apple, fed}, label: models.SentimentNeutral},
		annotated{text: "b", entities: []models.EntityMention{apple, obama}, label: models.SentimentPositive},
		annotated{text: "c"},
		annotated{text: "d", entities: []models.EntityMention{fed, {Type: "DATE", Text: "Monday"}}, label: models.SentimentNegative},
	)

	got, err := analytics.TopEntities(context.Background(), st, 10)
	require.NoError(t, err)
	require.Equal(t, []analytics.EntityCount{
		{Entity: apple, Count: 3},
		{Entity: fed, Count: 2},
		{Entity: obama, Count: 1},
	}, got)
}

func TestTopEntitiesTiesKeepDiscoveryOrder(t *testing.T) {
	st := seed(t,
		annotated{text: "a", entities: []models.EntityMention{paris, obama}, label: models.SentimentNeutral},
		annotated{text: "b", entities: []models.EntityMention{fed, obama, paris, fed}, label: models.SentimentNeutral},
	)

	got, err := analytics.TopEntities(context.Background(), st, 2)
	require.NoError(t, err)
	require.Equal(t, []analytics.EntityCount{
		{Entity: paris, Count: 2},
		{Entity: obama, Count: 2},
	}, got)
}

func TestTopEntitiesSeparatesTypes(t *testing.T) {
	parisPerson := models.EntityMention{Type: models.EntityPerson, Text: "Paris"}
	st := seed(t, annotated{text: "a", entities: []models.EntityMention{paris, parisPerson}, label: models.SentimentNeutral})

	got, err := analytics.TopEntities(context.Background(), st, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestTopEntitiesEmptyCorpus(t *testing.T) {
	got, err := analytics.TopEntities(context.Background(), memstore.New(1), 100)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestHeadlinesExactMatch(t *testing.T) {
	st := seed(t,
		annotated{text: "Apple announced new iPhone", entities: []models.EntityMention{apple}, label: models.SentimentNeutral},
		annotated{text: "Fed raised rates", entities: []models.EntityMention{fed}, label: models.SentimentNegative},
		annotated{text: "Apple and Fed", entities: []models.EntityMention{fed, apple}, label: models.SentimentNeutral},
		annotated{text: "apple pie contest"},
	)
	ctx := context.Background()

	var got []string
	for text, err := range analytics.Headlines(ctx, st, "Apple") {
		require.NoError(t, err)
		got = append(got, text)
	}
	require.Equal(t, []string{"Apple announced new iPhone", "Apple and Fed"}, got)

	for _, err := range analytics.Headlines(ctx, st, "apple") {
		require.NoError(t, err)
		t.Fatal("lookup must be case-sensitive")
	}

	// a second range re-runs the query
	n := 0
	seq := analytics.Headlines(ctx, st, "Fed")
	for range seq {
		n++
	}
	for range seq {
		n++
	}
	require.Equal(t, 4, n)
}

func TestSummarize(t *testing.T) {
	st := seed(t,
		annotated{text: "a", label: models.SentimentPositive},
		annotated{text: "b", label: models.SentimentPositive},
		annotated{text: "c", label: models.SentimentNeutral},
		annotated{text: "d"},
	)

	stats, err := analytics.Summarize(context.Background(), st)
	require.NoError(t, err)
	require.Equal(t, 4, stats.Documents)
	require.Equal(t, 3, stats.Enriched)
	require.Equal(t, 2, stats.Sentiment[models.SentimentPositive])
	require.Equal(t, 1, stats.Sentiment[models.SentimentNeutral])
}
