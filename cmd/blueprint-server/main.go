// cmd/blueprint-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	contentanalyzer "blueprint-engine/internal/analyzer/content"
	serpanalyzer "blueprint-engine/internal/analyzer/serp"
	"blueprint-engine/internal/common/aws"
	"blueprint-engine/internal/common/config"
	"blueprint-engine/internal/common/database"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/common/observability"
	"blueprint-engine/internal/fetcher"
	"blueprint-engine/internal/notify"
	"blueprint-engine/internal/providers/gemini"
	"blueprint-engine/internal/providers/googlesearch"
	"blueprint-engine/internal/providers/keywordmetrics"
	"blueprint-engine/internal/providers/knowledgegraph"
	"blueprint-engine/internal/providers/naturallanguage"
	"blueprint-engine/internal/providers/serpapi"
	"blueprint-engine/internal/router"
	"blueprint-engine/internal/scorer"
	"blueprint-engine/internal/server"
	"blueprint-engine/internal/store"
	"blueprint-engine/internal/synthesizer"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting blueprint server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("blueprint-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional) with retry ---
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	} else {
		zapLog.Info("Elasticsearch disabled, keyword search will use PostgreSQL")
	}

	// --- Register provider adapters by tier ---
	providerRouter := router.New(log, router.WithRetry(cfg.Pipeline.GetRetryBase(), cfg.Pipeline.MaxAttempts))

	if cfg.Providers.GoogleSearch.Enabled {
		providerRouter.Register(googlesearch.New(cfg.Providers.GoogleSearch, log), cfg.Providers.GoogleSearch.Tier)
	}
	if cfg.Providers.SerpAPI.Enabled {
		providerRouter.Register(serpapi.New(cfg.Providers.SerpAPI, log), cfg.Providers.SerpAPI.Tier)
	}
	if cfg.Providers.KnowledgeGraph.Enabled {
		providerRouter.Register(knowledgegraph.New(cfg.Providers.KnowledgeGraph, log), cfg.Providers.KnowledgeGraph.Tier)
	}
	if cfg.Providers.NaturalLanguage.Enabled {
		providerRouter.Register(naturallanguage.New(cfg.Providers.NaturalLanguage, log), cfg.Providers.NaturalLanguage.Tier)
	}
	if cfg.Providers.Gemini.Enabled {
		providerRouter.Register(gemini.New(cfg.Providers.Gemini, log), cfg.Providers.Gemini.Tier)
	}
	zapLog.Info("Provider adapters registered",
		zap.Int("capabilities", len(providerRouter.Capabilities())),
		zap.Int("adapters", len(providerRouter.Adapters())),
	)

	// --- Assemble the pipeline ---
	pageFetcher := fetcher.NewHTTPFetcher(cfg.Pipeline.GetFetchTimeout(), log)
	serpAnalyzer := serpanalyzer.New(pageFetcher, cfg.Pipeline.FetchConcurrency, log)
	contentAnalyzer := contentanalyzer.New(log)

	var metricsSource scorer.MetricsSource
	if cfg.Providers.KeywordMetrics.Enabled {
		metricsSource = keywordmetrics.New(cfg.Providers.KeywordMetrics, rdb.GetClient(), log)
	}
	keywordScorer := scorer.New(metricsSource, cfg.Scoring, log)

	synth := synthesizer.New(
		providerRouter,
		serpAnalyzer,
		contentAnalyzer,
		keywordScorer,
		cfg.Pipeline,
		cfg.Scoring,
		obs,
		log,
	)

	blueprintStore := store.New(
		pg.GetDB(),
		rdb.GetClient(),
		esClient,
		cfg.Database.Elasticsearch.Index,
		cfg.Pipeline.GetCacheTTL(),
		cfg.Pipeline.ResultCount,
		log,
	)

	// --- Init notification clients (optional) ---
	var emailSender notify.EmailSender
	var smsSender notify.SMSSender
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		emailSender = sesClient
	}
	if cfg.Notifications.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		smsSender = snsClient
	}
	notifier := notify.New(emailSender, smsSender, cfg.Notifications, log)

	// --- HTTP server ---
	handler := server.NewHandler(blueprintStore, synth, notifier, cfg.Pipeline.MaxResultCount, log)
	srv := server.New(cfg.HTTP, handler, providerRouter, log)

	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.GetShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down http server", zap.Error(err))
	}

	zapLog.Info("Blueprint server stopped gracefully")
}
