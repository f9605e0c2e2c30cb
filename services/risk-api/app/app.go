package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/cache"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/database"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/geo"
	kafkautils "github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/kafka"
	middleware "github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/middlewares"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/repositories"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/rng"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/utils"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/configs"
	_ "github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/docs"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/audit"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/checkout"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/classifier"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/handlers"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/scoring"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// App is the wired risk API: the HTTP server plus the background loops main has to run.
type App struct {
	Server      *http.Server
	Counter     *classifier.Counter
	Dispatcher  *audit.Dispatcher
	ResetWindow time.Duration
}

// RouterConfig carries the already-built pieces of the HTTP surface.
type RouterConfig struct {
	Classifier classifier.MiddlewareConfig
	Base       *handlers.BaseHandler
	Checkout   *handlers.CheckoutHandler
	Admin      *handlers.AdminHandler
}

// NewRouter builds the gin engine. Every route passes through the trace, metrics and classifier
// middlewares; the classifier itself decides what to skip or exempt.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceID())
	r.Use(middleware.Metrics())
	r.Use(classifier.Middleware(cfg.Classifier))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	cfg.Base.RegisterRoutes(r)
	cfg.Checkout.RegisterRoutes(r.Group("/api/v1"))
	cfg.Admin.RegisterRoutes(r.Group("/admin"))
	return r
}

// NewApp wires dependencies, builds the Gin engine, and returns the App and a cleanup func.
// It reads configuration from environment variables via configs.Load.
func NewApp(ctx context.Context, logger *zap.Logger) (*App, func(), error) {
	// Load config
	cfg, err := configs.Load(logger)
	if err != nil {
		return nil, nil, err
	}
	aesKey, err := utils.DecodeString(cfg.AesKey)
	if err != nil {
		return nil, nil, err
	}

	// Initialize postgres db
	dbConfig := database.Config{
		PrimaryDSN: cfg.PrimaryDbAddr,
		MaxConns:   cfg.MaxDbCons,
		MinConns:   cfg.MinDbCons,
	}
	if cfg.ReplicaDbAddr != "" {
		dbConfig.ReplicaDSNs = []string{cfg.ReplicaDbAddr}
	}
	db, disconnect, err := database.New(ctx, logger, dbConfig)
	if err != nil {
		return nil, nil, err
	}
	cleanups := []func(){disconnect}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Run migrations on primary
	if err = database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		cleanup()
		return nil, nil, err
	}

	// Optional redis
	redisClient, closeRedis, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, closeRedis)

	// Geolocation
	maxmind, closeGeo, err := geo.OpenMaxMind(cfg.GeoIPCityDB)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, closeGeo)
	var locator geo.Locator = maxmind
	if redisClient != nil {
		locator = geo.NewCachedLocator(maxmind, redisClient, cfg.GeoCacheTTL, logger)
	}

	// Audit sink
	requestLogRepo := repositories.NewRequestLogRepository(db)
	sink, closeSink, err := newAuditSink(ctx, logger, cfg, requestLogRepo)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, closeSink)
	dispatcher := audit.NewDispatcher(logger, sink, cfg.AuditBufferSize)

	// Scoring
	fallbackDraws, transactionIDs := randomStreams(cfg.RandomSeed)
	limiter := pkg.NewCallLimiter(pkg.CallLimiterConfig{
		RatePerSec:  cfg.ScoringRateLimitPerSec,
		Burst:       cfg.ScoringBurst,
		MaxWait:     cfg.ScoringMaxThrottleWait,
		RedisClient: redisClient,
		Key:         "throttle:scoring",
		Window:      time.Second,
		WindowLimit: cfg.ScoringGlobalLimitPerSec,
		Logger:      logger,
	})
	scorer := scoring.NewClient(scoring.ClientConfig{
		Logger:             logger,
		BaseURL:            cfg.ScoringServiceAddr,
		Timeout:            cfg.ScoringTimeout,
		Limiter:            limiter,
		BreakerMaxFailures: cfg.ScoringBreakerMaxFailures,
		BreakerTimeout:     cfg.ScoringBreakerTimeout,
	})
	adapter := scoring.NewAdapter(logger, scorer, scoring.NewFallback(cfg.FallbackFraudProbability, fallbackDraws))
	pipeline := checkout.NewPipeline(logger, adapter, transactionIDs)

	// Checkout
	transactionRepo := repositories.NewTransactionRepository(db)
	checkoutService := checkout.NewService(checkout.ServiceConfig{
		Logger:        logger,
		Pipeline:      pipeline,
		Profiles:      repositories.NewUserProfileRepository(db),
		Carts:         repositories.NewCartRepository(db),
		Merchants:     repositories.NewMerchantRepository(db),
		Transactions:  transactionRepo,
		Locator:       locator,
		EncryptionKey: aesKey,
	})

	// Classifier
	counter := classifier.NewCounter(classifier.NewThresholds(cfg.ClassifierThreshold, cfg.SuspiciousThreshold()))

	r := NewRouter(RouterConfig{
		Classifier: classifier.MiddlewareConfig{
			Logger:         logger,
			Counter:        counter,
			Sink:           dispatcher,
			ExemptPrefixes: utils.SplitCSV(cfg.ClassifierExemptPrefixes),
			SkipPrefixes:   utils.SplitCSV(cfg.ClassifierSkipPrefixes),
		},
		Base:     handlers.NewBaseHandler(logger),
		Checkout: handlers.NewCheckoutHandler(logger, checkoutService),
		Admin: handlers.NewAdminHandler(logger, requestLogRepo, transactionRepo,
			scoring.NewProbabilityClient(cfg.ProbabilityServiceAddr, cfg.ScoringTimeout), counter),
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	return &App{
		Server:      srv,
		Counter:     counter,
		Dispatcher:  dispatcher,
		ResetWindow: cfg.ClassifierResetWindow,
	}, cleanup, nil
}

func newAuditSink(ctx context.Context, logger *zap.Logger, cfg *configs.Config, repo repositories.RequestLogRepository) (audit.Sink, func(), error) {
	if cfg.AuditSink != configs.AuditSinkKafka {
		return audit.NewPostgresSink(repo), func() {}, nil
	}

	err := kafkautils.InitKafkaTopics(logger, ctx, kafkautils.KafkaConfig{
		BootstrapServers: cfg.KafkaBrokers,
		Topics: []kafkautils.TopicConfig{
			kafkautils.RetentionTopic(cfg.KafkaRequestLogTopic, int(cfg.KafkaPartition), cfg.KafkaRequestLogRetention),
		},
	})
	if err != nil {
		return nil, nil, err
	}
	producer, err := kafkautils.NewIdempotentProducer(logger, cfg.KafkaBrokers)
	if err != nil {
		return nil, nil, err
	}
	sink := audit.NewKafkaSink(producer, cfg.KafkaRequestLogTopic, cfg.KafkaPartition)
	return sink, sink.Close, nil
}

// randomStreams returns the fallback draw stream, reproducible when seed is set, and the transaction
// id stream, which is always clock seeded since trans_num is a primary key.
func randomStreams(seed int64) (fallback, transactionIDs rng.Source) {
	return rng.FromSeed(seed).R("fallback"), rng.New(rng.Real, 0).R("transaction-ids")
}
