// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like GOOGLE_SEARCH_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, e.g. config.production.yaml
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or the project root so the
// loader behaves the same from cmd/, tests, and the repository root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig falls back to well-known environment variables when the
// YAML left a credential empty.
func overrideEmptyConfig(cfg *Config) {
	overrides := []struct {
		target *string
		envVar string
	}{
		{&cfg.Providers.GoogleSearch.APIKey, "GOOGLE_SEARCH_API_KEY"},
		{&cfg.Providers.GoogleSearch.EngineID, "GOOGLE_SEARCH_ENGINE_ID"},
		{&cfg.Providers.SerpAPI.APIKey, "SERPAPI_API_KEY"},
		{&cfg.Providers.KnowledgeGraph.APIKey, "KNOWLEDGE_GRAPH_API_KEY"},
		{&cfg.Providers.NaturalLanguage.APIKey, "NATURAL_LANGUAGE_API_KEY"},
		{&cfg.Providers.Gemini.APIKey, "GEMINI_API_KEY"},
		{&cfg.Providers.KeywordMetrics.APIKey, "KEYWORD_METRICS_API_KEY"},
		{&cfg.Database.Postgres.Password, "POSTGRES_PASSWORD"},
		{&cfg.Database.Redis.Password, "REDIS_PASSWORD"},
	}

	for _, o := range overrides {
		if *o.target == "" {
			if val := os.Getenv(o.envVar); val != "" {
				*o.target = val
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "blueprint-engine"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = ":8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Pipeline.ResultCount <= 0 {
		cfg.Pipeline.ResultCount = 10
	}
	if cfg.Pipeline.MaxResultCount <= 0 {
		cfg.Pipeline.MaxResultCount = 20
	}
	if cfg.Pipeline.FetchConcurrency <= 0 {
		cfg.Pipeline.FetchConcurrency = 5
	}
	if cfg.Pipeline.BuildTimeout <= 0 {
		cfg.Pipeline.BuildTimeout = 30000
	}
	if cfg.Pipeline.CacheTTL <= 0 {
		cfg.Pipeline.CacheTTL = 24 * 60
	}
	if cfg.Pipeline.RetryBase <= 0 {
		cfg.Pipeline.RetryBase = 200
	}
	if cfg.Pipeline.MaxAttempts <= 0 {
		cfg.Pipeline.MaxAttempts = 2
	}

	if cfg.Scoring.CompetitionWeight == 0 {
		cfg.Scoring.CompetitionWeight = 0.6
	}
	if cfg.Scoring.HeldFeaturePenalty == 0 {
		cfg.Scoring.HeldFeaturePenalty = 5
	}
	if cfg.Scoring.WordCountWeight == 0 {
		cfg.Scoring.WordCountWeight = 0.3
	}
	if cfg.Scoring.InverseWeight == 0 {
		cfg.Scoring.InverseWeight = 0.5
	}
	if cfg.Scoring.OpportunityBonus == 0 {
		cfg.Scoring.OpportunityBonus = 8
	}
	if cfg.Scoring.EntityGapWeight == 0 {
		cfg.Scoring.EntityGapWeight = 0.2
	}
	if cfg.Scoring.HighConfidenceEntity == 0 {
		cfg.Scoring.HighConfidenceEntity = 0.7
	}
	if cfg.Scoring.TokenOverlap == 0 {
		cfg.Scoring.TokenOverlap = 0.4
	}

	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "blueprints"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Pipeline.ResultCount > cfg.Pipeline.MaxResultCount {
		return fmt.Errorf("pipeline.result_count (%d) exceeds pipeline.max_result_count (%d)",
			cfg.Pipeline.ResultCount, cfg.Pipeline.MaxResultCount)
	}

	enabledSearch := cfg.Providers.GoogleSearch.Enabled || cfg.Providers.SerpAPI.Enabled
	if !enabledSearch && cfg.App.Environment == "production" {
		return fmt.Errorf("at least one search provider must be enabled in production")
	}

	return nil
}
