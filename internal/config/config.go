package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendElasticsearch = "elasticsearch"
	BackendSQLite        = "sqlite"
	BackendMemory        = "memory"
)

// NLP backends accepted by NLP_BACKEND.
const (
	NLPLocal  = "local"
	NLPOpenAI = "openai"
)

// Common contains document store parameters shared by every binary.
type Common struct {
	StoreBackend       string
	ElasticsearchAddr  string
	ElasticsearchIndex string
	SQLitePath         string
	PageSize           int
	ConnectRetries     int
	ConnectTimeout     time.Duration
}

// CLI holds configuration for the headlines batch commands.
type CLI struct {
	Common
	NLPBackend      string
	OpenAIKey       string
	OpenAIModel     string
	OpenAIBaseURL   string
	StopwordsPath   string
	TextColumn      string
	EnrichPolicy    string
	PendingOnly     bool
	TopLimit        int
	KafkaBrokers    []string
	DeadLetterTopic string
	PushgatewayURL  string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr        string
	DefaultTopLimit int
	MaxTopLimit     int
}

func loadCommon() (Common, error) {
	c := Common{
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", BackendElasticsearch)),
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "headlines"),
		SQLitePath:         getEnv("SQLITE_PATH", "headlines.db"),
		PageSize:           getInt("STORE_PAGE_SIZE", 500),
		ConnectRetries:     getInt("STORE_CONNECT_RETRIES", 5),
		ConnectTimeout:     getDuration("STORE_CONNECT_TIMEOUT", "2m"),
	}

	switch c.StoreBackend {
	case BackendElasticsearch, BackendSQLite, BackendMemory:
	default:
		return Common{}, fmt.Errorf("STORE_BACKEND must be one of elasticsearch, sqlite, memory; got %q", c.StoreBackend)
	}
	if c.PageSize <= 0 {
		return Common{}, fmt.Errorf("STORE_PAGE_SIZE must be positive")
	}
	if c.ConnectRetries <= 0 {
		return Common{}, fmt.Errorf("STORE_CONNECT_RETRIES must be positive")
	}
	return c, nil
}

// LoadCLI builds a CLI config from environment variables.
func LoadCLI() (*CLI, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &CLI{
		Common:          common,
		NLPBackend:      strings.ToLower(getEnv("NLP_BACKEND", NLPLocal)),
		OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		StopwordsPath:   getEnv("STOPWORDS_PATH", ""),
		TextColumn:      getEnv("TEXT_COLUMN", "headline_text"),
		EnrichPolicy:    getEnv("ENRICH_POLICY", "fail-fast"),
		PendingOnly:     getBool("ENRICH_PENDING_ONLY", false),
		TopLimit:        getInt("TOP_ENTITIES_LIMIT", 100),
		KafkaBrokers:    splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		DeadLetterTopic: getEnv("KAFKA_DLQ_TOPIC", "headlines_enrich_dlq"),
		PushgatewayURL:  getEnv("PUSHGATEWAY_URL", ""),
	}

	switch c.NLPBackend {
	case NLPLocal:
	case NLPOpenAI:
		if c.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when NLP_BACKEND=openai")
		}
	default:
		return nil, fmt.Errorf("NLP_BACKEND must be local or openai; got %q", c.NLPBackend)
	}
	if c.TopLimit <= 0 {
		return nil, fmt.Errorf("TOP_ENTITIES_LIMIT must be positive")
	}
	if strings.TrimSpace(c.TextColumn) == "" {
		return nil, fmt.Errorf("TEXT_COLUMN cannot be blank")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:          common,
		BindAddr:        getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultTopLimit: getInt("API_TOP_LIMIT", 100),
		MaxTopLimit:     getInt("API_TOP_LIMIT_MAX", 1000),
	}

	if c.StoreBackend == BackendMemory {
		return nil, fmt.Errorf("STORE_BACKEND=memory cannot back the API")
	}
	if c.DefaultTopLimit <= 0 {
		return nil, fmt.Errorf("API_TOP_LIMIT must be positive")
	}
	if c.MaxTopLimit <= 0 {
		return nil, fmt.Errorf("API_TOP_LIMIT_MAX must be positive")
	}
	if c.DefaultTopLimit > c.MaxTopLimit {
		return nil, fmt.Errorf("API_TOP_LIMIT cannot exceed API_TOP_LIMIT_MAX")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
