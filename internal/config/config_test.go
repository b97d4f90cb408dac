package config_test

import (
	"testing"
	"time"

	"github.com/DeafMist/headline-radar/internal/config"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORE_BACKEND", "ELASTICSEARCH_ADDR", "ELASTICSEARCH_INDEX", "SQLITE_PATH",
		"STORE_PAGE_SIZE", "STORE_CONNECT_RETRIES", "STORE_CONNECT_TIMEOUT",
		"NLP_BACKEND", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
		"STOPWORDS_PATH", "TEXT_COLUMN", "ENRICH_POLICY", "ENRICH_PENDING_ONLY",
		"TOP_ENTITIES_LIMIT", "KAFKA_BROKERS", "KAFKA_DLQ_TOPIC", "PUSHGATEWAY_URL",
		"API_BIND_ADDR", "API_TOP_LIMIT", "API_TOP_LIMIT_MAX",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadCLIDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.LoadCLI()
	require.NoError(t, err)

	require.Equal(t, config.BackendElasticsearch, cfg.StoreBackend)
	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "headlines", cfg.ElasticsearchIndex)
	require.Equal(t, 500, cfg.PageSize)
	require.Equal(t, 5, cfg.ConnectRetries)
	require.Equal(t, 2*time.Minute, cfg.ConnectTimeout)
	require.Equal(t, config.NLPLocal, cfg.NLPBackend)
	require.Equal(t, "headline_text", cfg.TextColumn)
	require.Equal(t, "fail-fast", cfg.EnrichPolicy)
	require.False(t, cfg.PendingOnly)
	require.Equal(t, 100, cfg.TopLimit)
	require.Empty(t, cfg.KafkaBrokers)
	require.Empty(t, cfg.PushgatewayURL)
}

func TestLoadCLIOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/h.db")
	t.Setenv("STORE_PAGE_SIZE", "50")
	t.Setenv("NLP_BACKEND", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ENRICH_POLICY", "continue")
	t.Setenv("ENRICH_PENDING_ONLY", "true")
	t.Setenv("TOP_ENTITIES_LIMIT", "10")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092, broker-b:29093")
	t.Setenv("KAFKA_DLQ_TOPIC", "dlq")

	cfg, err := config.LoadCLI()
	require.NoError(t, err)

	require.Equal(t, config.BackendSQLite, cfg.StoreBackend)
	require.Equal(t, "/tmp/h.db", cfg.SQLitePath)
	require.Equal(t, 50, cfg.PageSize)
	require.Equal(t, config.NLPOpenAI, cfg.NLPBackend)
	require.Equal(t, "sk-test", cfg.OpenAIKey)
	require.Equal(t, "continue", cfg.EnrichPolicy)
	require.True(t, cfg.PendingOnly)
	require.Equal(t, 10, cfg.TopLimit)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "dlq", cfg.DeadLetterTopic)
}

func TestLoadCLIRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "backend", key: "STORE_BACKEND", val: "mongo"},
		{name: "page size", key: "STORE_PAGE_SIZE", val: "-1"},
		{name: "nlp", key: "NLP_BACKEND", val: "spacy"},
		{name: "openai without key", key: "NLP_BACKEND", val: "openai"},
		{name: "top limit", key: "TOP_ENTITIES_LIMIT", val: "-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := config.LoadCLI()
			require.Error(t, err)
		})
	}
}

func TestLoadAPI(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_TOP_LIMIT", "15")
	t.Setenv("API_TOP_LIMIT_MAX", "200")
	t.Setenv("ELASTICSEARCH_ADDR", "http://api-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "api-index")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultTopLimit)
	require.Equal(t, 200, cfg.MaxTopLimit)
	require.Equal(t, "http://api-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "api-index", cfg.ElasticsearchIndex)
}

func TestLoadAPIRejectsMemoryBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "memory")

	_, err := config.LoadAPI()
	require.Error(t, err)
}
