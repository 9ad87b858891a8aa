package bootstrap

import (
	"context"
	"time"

	"audience_server/adapter/out/ai"
	outcache "audience_server/adapter/out/cache"
	"audience_server/adapter/out/messaging"
	"audience_server/adapter/out/mongodb"
	"audience_server/adapter/out/persistence"
	"audience_server/config"
	"audience_server/core/port/out"
	"audience_server/core/service/engagement"
	"audience_server/core/service/segmentation"
	"audience_server/infra/database"
	"audience_server/pkg/cache"
	"audience_server/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	Store    *persistence.Store
	Producer *messaging.RedisProducer

	// Services
	EngagementService   *engagement.Service
	SegmentationService *segmentation.Service
}

// NewDependencies connects every store and wires the services. Postgres is
// required; Redis, MongoDB and OpenAI are optional and disable the features
// they back when missing.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Database (sqlx for repositories)
	sqlDB, err := database.NewSQLX(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := persistence.EnsureSchema(ctx, sqlDB); err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Store = persistence.NewStore(sqlDB)

	// Database (pgxpool for readiness checks)
	pool, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Warn("pgx pool unavailable, readiness will report postgres as not configured: %v", err)
	} else {
		deps.DB = pool
		cleanups = append(cleanups, pool.Close)
	}

	segDeps := segmentation.Dependencies{}
	var summaryCache out.SummaryCache

	// Redis
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })

			redisCache := cache.NewRedisCache(redisClient)
			summaryCache = outcache.NewSummaryCache(redisCache)
			deps.Producer = messaging.NewRedisProducer(redisClient)

			segDeps.SummaryCache = summaryCache
			segDeps.RefreshLock = outcache.NewRefreshLock(redisCache, cfg.RefreshLockTTL)
			segDeps.Events = deps.Producer
			segDeps.Jobs = deps.Producer
			logger.Info("Redis configured: summary cache, refresh lock and streams enabled")
		}
	} else {
		logger.Warn("REDIS_URL not set, async refresh and distributed locking disabled")
	}

	// MongoDB
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = mongoClient.Disconnect(ctx)
			})

			retention := time.Duration(cfg.RefreshRunsRetention) * 24 * time.Hour
			runs := mongodb.NewRunReportAdapter(mongoClient.Database(cfg.MongoDBName), retention)
			if err := runs.EnsureIndexes(ctx); err != nil {
				logger.Warn("Failed to ensure refresh_runs indexes: %v", err)
			}
			segDeps.RunReports = runs
			logger.Info("MongoDB configured: refresh run history enabled")
		}
	}

	// OpenAI
	if cfg.AIEnabled() {
		segDeps.Suggester = ai.NewSuggester(ai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout,
		})
		logger.Info("AI segment suggestions enabled (model: %s)", cfg.LLMModel)
	}

	deps.EngagementService = engagement.NewService(deps.Store, summaryCache, cfg.EngagementBatchSize)
	deps.SegmentationService = segmentation.NewService(deps.Store, segDeps, segmentation.Config{
		ApplyTimeout:      cfg.ApplyTimeout,
		RefreshTimeout:    cfg.RefreshTimeout,
		SummarySampleSize: cfg.SummarySampleSize,
		SummaryCacheTTL:   cfg.SummaryCacheTTL,
	})

	return deps, cleanup, nil
}
