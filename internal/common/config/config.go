// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Providers     ProvidersConfig    `mapstructure:"providers"`
	Pipeline      PipelineConfig     `mapstructure:"pipeline"`
	Scoring       ScoringConfig      `mapstructure:"scoring"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// Addr is the listen address, defaulting to :8080.
func (h HTTPConfig) Addr() string {
	if h.Address == "" {
		return ":8080"
	}
	return h.Address
}

func (h HTTPConfig) GetReadTimeout() time.Duration {
	if h.ReadTimeout <= 0 {
		return 15 * time.Second
	}
	return time.Duration(h.ReadTimeout) * time.Millisecond
}

func (h HTTPConfig) GetWriteTimeout() time.Duration {
	if h.WriteTimeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(h.WriteTimeout) * time.Millisecond
}

func (h HTTPConfig) GetShutdownTimeout() time.Duration {
	if h.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(h.ShutdownTimeout) * time.Millisecond
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	Index      string   `mapstructure:"index"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Provider Configuration ---

// ProviderConfig holds the settings shared by every external data provider.
type ProviderConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	EngineID          string  `mapstructure:"engine_id"` // Google Custom Search only
	Tier              int     `mapstructure:"tier"`
	Timeout           int     `mapstructure:"timeout"` // milliseconds
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

func (p ProviderConfig) GetTimeout() time.Duration {
	if p.Timeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.Timeout) * time.Millisecond
}

type ProvidersConfig struct {
	GoogleSearch    ProviderConfig `mapstructure:"google_search"`
	SerpAPI         ProviderConfig `mapstructure:"serpapi"`
	KnowledgeGraph  ProviderConfig `mapstructure:"knowledge_graph"`
	NaturalLanguage ProviderConfig `mapstructure:"natural_language"`
	Gemini          ProviderConfig `mapstructure:"gemini"`
	KeywordMetrics  ProviderConfig `mapstructure:"keyword_metrics"`
}

// --- Pipeline Configuration ---

type PipelineConfig struct {
	ResultCount      int `mapstructure:"result_count"`      // default SERP result count
	MaxResultCount   int `mapstructure:"max_result_count"`  // request ceiling
	FetchConcurrency int `mapstructure:"fetch_concurrency"` // parallel page fetch+enrich
	BuildTimeout     int `mapstructure:"build_timeout"`     // milliseconds
	CacheTTL         int `mapstructure:"cache_ttl"`         // minutes
	RetryBase        int `mapstructure:"retry_base"`        // milliseconds, router backoff base
	MaxAttempts      int `mapstructure:"max_attempts"`      // per-adapter attempts on transient errors
	FetchTimeout     int `mapstructure:"fetch_timeout"`     // milliseconds, per competitor page
}

func (p PipelineConfig) GetBuildTimeout() time.Duration {
	if p.BuildTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.BuildTimeout) * time.Millisecond
}

func (p PipelineConfig) GetCacheTTL() time.Duration {
	if p.CacheTTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(p.CacheTTL) * time.Minute
}

func (p PipelineConfig) GetRetryBase() time.Duration {
	if p.RetryBase <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(p.RetryBase) * time.Millisecond
}

func (p PipelineConfig) GetFetchTimeout() time.Duration {
	if p.FetchTimeout <= 0 {
		return 8 * time.Second
	}
	return time.Duration(p.FetchTimeout) * time.Millisecond
}

// --- Scoring Configuration ---

// ScoringConfig exposes the heuristic constants as tunables. Defaults mirror the
// values the product team validated against labeled SERP samples.
type ScoringConfig struct {
	CompetitionWeight    float64 `mapstructure:"competition_weight"`     // difficulty: competition index term
	HeldFeaturePenalty   float64 `mapstructure:"held_feature_penalty"`   // difficulty: per held SERP feature
	WordCountWeight      float64 `mapstructure:"word_count_weight"`      // difficulty: competitor word count percentile term
	InverseWeight        float64 `mapstructure:"inverse_weight"`         // opportunity: (100-difficulty) term
	OpportunityBonus     float64 `mapstructure:"opportunity_bonus"`      // opportunity: per open SERP feature
	EntityGapWeight      float64 `mapstructure:"entity_gap_weight"`      // opportunity: entity gap term
	HighConfidenceEntity float64 `mapstructure:"high_confidence_entity"` // clustering: confidence floor
	TokenOverlap         float64 `mapstructure:"token_overlap"`          // clustering: token overlap floor
}

// --- Notification Configuration ---

type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
