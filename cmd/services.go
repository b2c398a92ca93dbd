package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/mentormatch/internal/ai"
	"github.com/spigell/mentormatch/internal/ai/gemini"
	"github.com/spigell/mentormatch/internal/features"
	"github.com/spigell/mentormatch/internal/feedback"
	"github.com/spigell/mentormatch/internal/filtering"
	"github.com/spigell/mentormatch/internal/logger"
	"github.com/spigell/mentormatch/internal/ranking"
	"github.com/spigell/mentormatch/internal/scoring"
	"github.com/spigell/mentormatch/internal/secrets"
	"github.com/spigell/mentormatch/internal/sentiment"
	"github.com/spigell/mentormatch/internal/server"
	"github.com/spigell/mentormatch/internal/similarity"
)

const (
	backendMemory  = "memory"
	backendRedis   = "redis"
	providerGemini = "gemini"
)

// rankingStack is everything behind the ranking capability.
type rankingStack struct {
	engine   *similarity.Engine
	scorer   *scoring.Scorer
	pipeline *filtering.Pipeline
	service  *ranking.Service
}

// loadEngine loads the word vectors. A failed load leaves an engine that
// answers 0 for every pair.
func loadEngine(cfg *SimilarityModelConfig, log *zap.Logger) *similarity.Engine {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		log.Warn("similarity model is not configured, semantic matching is disabled")
		return similarity.NewEngine(nil, log.Named("similarity"))
	}

	vectors, stats, err := similarity.Load(path, similarity.Format(cfg.Format))
	if err != nil {
		log.Warn("loading similarity model failed, semantic matching is disabled",
			zap.String("path", path),
			zap.String("format", string(stats.Format)),
			zap.Error(err),
		)
		return similarity.NewEngine(nil, log.Named("similarity"))
	}

	log.Info("similarity model loaded",
		zap.String("path", path),
		zap.String("format", string(stats.Format)),
		zap.Int("vocabulary", stats.Loaded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("dimension", vectors.Dim()),
	)
	return similarity.NewEngine(vectors, log.Named("similarity"))
}

// loadScorer resolves the scoring artifact. A failed load selects static
// fallback scoring.
func loadScorer(cfg *ScoringModelConfig, log *zap.Logger) *scoring.Scorer {
	model, err := scoring.Load(cfg.Path)
	if err != nil {
		log.Warn("loading scoring model failed, using static fallback weights",
			zap.String("path", cfg.Path),
			zap.Error(err),
		)
	} else {
		log.Info("scoring model loaded",
			zap.String("path", cfg.Path),
			zap.String("mode", model.Mode().String()),
		)
	}
	return scoring.NewScorer(model, log.Named("scoring"))
}

func buildRanking(config *Config, log *zap.Logger, recorder ranking.Recorder) (*rankingStack, error) {
	engine := loadEngine(config.similarity(), log)
	scorer := loadScorer(config.scoring(), log)

	log = logger.WithFields(log, logger.ModelFields(scorer.Mode().String(), config.similarity().Path)...)

	filterCfg := &filtering.Config{}
	if config.Ranking != nil {
		filterCfg.MinimumScore = config.Ranking.MinimumScore
		filterCfg.MaxResults = config.Ranking.MaxResults
		filterCfg.ExcludeMentors = config.Ranking.ExcludeMentors
	}

	pipeline, err := filtering.NewPipeline(filterCfg, log.Named("filtering"))
	if err != nil {
		return nil, fmt.Errorf("ranking filters: %w", err)
	}

	opts := []ranking.Option{ranking.WithRefiner(pipeline)}
	if recorder != nil {
		opts = append(opts, ranking.WithRecorder(recorder))
	}
	if config.Server != nil && config.Server.ScoringTimeout > 0 {
		opts = append(opts, ranking.WithTimeout(config.Server.ScoringTimeout))
	}

	service := ranking.NewService(features.NewExtractor(engine), scorer, log.Named("ranking"), opts...)

	return &rankingStack{engine: engine, scorer: scorer, pipeline: pipeline, service: service}, nil
}

// buildFeedbackStore returns the configured store, an optional readiness
// checker and a close function.
func buildFeedbackStore(ctx context.Context, cfg *FeedbackConfig, log *zap.Logger) (feedback.Store, server.Checker, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", backendMemory:
		log.Info("feedback is stored in memory")
		return feedback.NewMemoryStore(), nil, noop, nil
	case backendRedis:
	default:
		return nil, nil, noop, fmt.Errorf("unknown feedback backend %q", cfg.Backend)
	}

	rc := cfg.Redis
	if rc == nil {
		rc = &RedisConfig{}
	}

	password, err := secrets.Optional(secrets.Source{
		Name:  "redis password",
		Value: rc.Password,
		File:  rc.PasswordFile,
	})
	if err != nil {
		return nil, nil, noop, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: password,
		DB:       rc.DB,
	})
	store := feedback.NewRedisStore(client, rc.Key)

	if err := store.HealthCheck(ctx); err != nil {
		log.Warn("redis is not reachable yet", zap.String("addr", rc.Addr), zap.Error(err))
	} else {
		log.Info("feedback is stored in redis", zap.String("addr", rc.Addr), zap.String("key", rc.Key))
	}

	return store, store, store.Close, nil
}

// buildClassifier returns nil when the AI stage is disabled.
func buildClassifier(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Classifier, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = providerGemini
	}
	if provider != providerGemini {
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}

	gc := cfg.Gemini
	if gc == nil {
		gc = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gc.APIKey,
		File:  gc.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	aiLogger := logger.WithCommonFields(log.Named("ai"), provider, gc.Model)

	generator, err := gemini.NewGenerator(ctx, apiKey, gc.Model, gc.MaxRetries, aiLogger)
	if err != nil {
		return nil, err
	}

	aiLogger.Info("ai sentiment classifier enabled")
	return gemini.NewSentimentClassifier(generator, gc.MaxLogLength, aiLogger), nil
}

func buildSentiment(ctx context.Context, cfg *SentimentConfig, log *zap.Logger) (*sentiment.Analyzer, error) {
	if cfg == nil {
		cfg = &SentimentConfig{Overrides: sentiment.DefaultOverrides}
	}

	classifier, err := buildClassifier(ctx, cfg.AI, log)
	if err != nil {
		return nil, fmt.Errorf("sentiment classifier: %w", err)
	}

	return sentiment.NewAnalyzer(sentiment.Config{
		MinLength: cfg.MinLength,
		Overrides: cfg.Overrides,
	}, classifier, log.Named("sentiment"))
}
