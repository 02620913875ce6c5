// Package bootstrap assembles the process: dependencies, the API server and
// the worker runtime.
package bootstrap

import (
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"spamguard_server/adapter/out/persistence"
	"spamguard_server/adapter/out/provider"
	"spamguard_server/config"
	"spamguard_server/core/domain"
	"spamguard_server/core/service/pipeline"
	"spamguard_server/core/service/registry"
	"spamguard_server/core/service/rescore"
	"spamguard_server/core/service/scoring"
	"spamguard_server/core/service/training"
	"spamguard_server/infra/database"
	"spamguard_server/internal/stream"
)

// Dependencies holds every shared component. Built once per process and handed
// to the API and worker runtimes.
type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger

	PgPool *pgxpool.Pool
	DB     *sqlx.DB
	Redis  *redis.Client

	Registry *registry.ModelRegistry
	Versions domain.ModelVersionRepository
	Store    *persistence.RescoreStore

	Scorer  *scoring.InlineScorer
	Engine  *rescore.Engine
	Trainer *training.Trainer

	Stream   *stream.RedisStream
	Producer *stream.Producer
}

// NewLogger builds the root logger. Development gets the console writer,
// everything else emits JSON.
func NewLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Str("service", "spamguard").Logger()
	}
	return zerolog.New(os.Stdout).
		With().Timestamp().Str("service", "spamguard").Logger()
}

// NewDependencies constructs the full graph. The returned cleanup closes every
// connection; callers must run it on shutdown.
func NewDependencies(cfg *config.Config, log zerolog.Logger) (*Dependencies, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}

	pgPool, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres pool: %w", err)
	}

	db, err := database.NewSQLX(cfg.DatabaseURL)
	if err != nil {
		pgPool.Close()
		return nil, nil, fmt.Errorf("sqlx: %w", err)
	}

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		pgPool.Close()
		db.Close()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing sqlx")
		}
		pgPool.Close()
		if err := redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}

	var embed pipeline.EmbedFunc
	if cfg.EnableEmbeddings {
		if cfg.OpenAIAPIKey == "" {
			cleanup()
			return nil, nil, fmt.Errorf("ENABLE_EMBEDDINGS is set but OPENAI_API_KEY is empty")
		}
		embedder := provider.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, log)
		embed = embedder.EmbedFunc()
		log.Info().Str("model", cfg.EmbeddingModel).Msg("embedding provider enabled")
	}

	reg, err := registry.New(cfg.ModelDir, embed, log)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("model registry: %w", err)
	}

	store := persistence.NewRescoreStore(db)
	versions := persistence.NewModelVersionAdapter(db)

	redisStream := stream.NewRedisStream(redisClient, cfg.ConsumerGroup, log)
	producer := stream.NewProducer(redisStream)

	scorer := scoring.NewInlineScorer(
		reg,
		store.Predictions(),
		producer,
		cfg.DefaultThreshold,
		cfg.GrayZoneLow,
		cfg.GrayZoneHigh,
		log,
	)
	engine := rescore.NewEngine(reg, store, cfg.DefaultThreshold, log)
	trainer := training.NewTrainer(reg, log)

	deps := &Dependencies{
		Config:   cfg,
		Log:      log,
		PgPool:   pgPool,
		DB:       db,
		Redis:    redisClient,
		Registry: reg,
		Versions: versions,
		Store:    store,
		Scorer:   scorer,
		Engine:   engine,
		Trainer:  trainer,
		Stream:   redisStream,
		Producer: producer,
	}
	return deps, cleanup, nil
}
