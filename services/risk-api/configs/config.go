package configs

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/utils"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	AuditSinkPostgres = "postgres"
	AuditSinkKafka    = "kafka"
)

type Config struct {
	Port string `mapstructure:"PORT" validate:"required"`

	// Request classifier
	ClassifierThreshold           int           `mapstructure:"CLASSIFIER_THRESHOLD" validate:"min=1"`
	ClassifierSuspiciousThreshold int           `mapstructure:"CLASSIFIER_SUSPICIOUS_THRESHOLD" validate:"min=0,ltefield=ClassifierThreshold"` // 0 means half of the threshold
	ClassifierResetWindow         time.Duration `mapstructure:"CLASSIFIER_RESET_WINDOW" validate:"required"`
	ClassifierExemptPrefixes      string        `mapstructure:"CLASSIFIER_EXEMPT_PREFIXES"`
	ClassifierSkipPrefixes        string        `mapstructure:"CLASSIFIER_SKIP_PREFIXES"`

	// Audit sink
	AuditBufferSize          int           `mapstructure:"AUDIT_BUFFER_SIZE" validate:"min=1"`
	AuditSink                string        `mapstructure:"AUDIT_SINK" validate:"oneof=postgres kafka"`
	KafkaBrokers             string        `mapstructure:"KAFKA_BROKERS" validate:"required_if=AuditSink kafka"`
	KafkaRequestLogTopic     string        `mapstructure:"KAFKA_REQUEST_LOG_TOPIC" validate:"required_if=AuditSink kafka"`
	KafkaPartition           uint32        `mapstructure:"KAFKA_PARTITION" validate:"min=1"`
	KafkaRequestLogRetention time.Duration `mapstructure:"KAFKA_REQUEST_LOG_RETENTION"`

	// Storage
	PrimaryDbAddr string        `mapstructure:"PRIMARY_DB_ADDR" validate:"required"`
	ReplicaDbAddr string        `mapstructure:"REPLICA_DB_ADDR"`
	MaxDbCons     int32         `mapstructure:"MAX_DB_CONNECTIONS" validate:"min=1"`
	MinDbCons     int32         `mapstructure:"MIN_DB_CONNECTIONS" validate:"min=1"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	GeoCacheTTL   time.Duration `mapstructure:"GEO_CACHE_TTL"`
	GeoIPCityDB   string        `mapstructure:"GEOIP_CITY_DB" validate:"required"`

	// Scoring service
	ScoringServiceAddr        string        `mapstructure:"SCORING_SERVICE_ADDR" validate:"required,url"`
	ScoringTimeout            time.Duration `mapstructure:"SCORING_TIMEOUT" validate:"required"`
	ScoringRateLimitPerSec    int           `mapstructure:"SCORING_RATE_LIMIT_PER_SEC" validate:"min=0"`
	ScoringBurst              int           `mapstructure:"SCORING_BURST" validate:"min=1"`
	ScoringMaxThrottleWait    time.Duration `mapstructure:"SCORING_MAX_THROTTLE_WAIT"`
	ScoringGlobalLimitPerSec  int64         `mapstructure:"SCORING_GLOBAL_LIMIT_PER_SEC" validate:"min=0"` // across replicas, needs Redis; 0 disables
	ScoringBreakerMaxFailures uint32        `mapstructure:"SCORING_BREAKER_MAX_FAILURES" validate:"min=1"`
	ScoringBreakerTimeout     time.Duration `mapstructure:"SCORING_BREAKER_TIMEOUT" validate:"required"`
	FallbackFraudProbability  float64       `mapstructure:"FALLBACK_FRAUD_PROBABILITY" validate:"min=0,max=1"`
	RandomSeed                int64         `mapstructure:"RANDOM_SEED"` // 0 seeds from the clock

	ProbabilityServiceAddr string `mapstructure:"PROBABILITY_SERVICE_ADDR" validate:"required,url"`
	AesKey                 string `mapstructure:"AES_KEY" validate:"required"`
}

// SuspiciousThreshold resolves the lower threshold, defaulting to half of the blocking threshold.
func (c *Config) SuspiciousThreshold() int {
	if c.ClassifierSuspiciousThreshold > 0 {
		return c.ClassifierSuspiciousThreshold
	}
	return c.ClassifierThreshold / 2
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("CLASSIFIER_THRESHOLD", "100")
	viper.SetDefault("CLASSIFIER_SUSPICIOUS_THRESHOLD", "0")
	viper.SetDefault("CLASSIFIER_RESET_WINDOW", "60s")
	viper.SetDefault("CLASSIFIER_EXEMPT_PREFIXES", "/admin")
	viper.SetDefault("CLASSIFIER_SKIP_PREFIXES", "/health,/metrics,/swagger")
	viper.SetDefault("AUDIT_BUFFER_SIZE", "1024")
	viper.SetDefault("AUDIT_SINK", AuditSinkPostgres)
	viper.SetDefault("KAFKA_PARTITION", "4")
	viper.SetDefault("KAFKA_REQUEST_LOG_RETENTION", "168h")
	viper.SetDefault("MAX_DB_CONNECTIONS", "10")
	viper.SetDefault("MIN_DB_CONNECTIONS", "2")
	viper.SetDefault("GEO_CACHE_TTL", "24h")
	viper.SetDefault("SCORING_SERVICE_ADDR", "http://localhost:5001")
	viper.SetDefault("SCORING_TIMEOUT", "2s")
	viper.SetDefault("SCORING_RATE_LIMIT_PER_SEC", "50")
	viper.SetDefault("SCORING_BURST", "10")
	viper.SetDefault("SCORING_MAX_THROTTLE_WAIT", "200ms")
	viper.SetDefault("SCORING_GLOBAL_LIMIT_PER_SEC", "0")
	viper.SetDefault("SCORING_BREAKER_MAX_FAILURES", "5")
	viper.SetDefault("SCORING_BREAKER_TIMEOUT", "30s")
	viper.SetDefault("FALLBACK_FRAUD_PROBABILITY", "0.3")
	viper.SetDefault("RANDOM_SEED", "0")
	viper.SetDefault("PROBABILITY_SERVICE_ADDR", "http://localhost:5000")

	if gin.ReleaseMode == gin.Mode() {
		viper.SetConfigName("config.prod")
	} else if gin.TestMode == gin.Mode() {
		logger.Warn("running_in_test_mode")
		viper.SetConfigName("config.test")
	} else {
		logger.Warn("running_in_development_mode")
		viper.SetConfigName("config.dev")
	}
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./services/risk-api/configs")
	_ = viper.ReadInConfig() // Ignore if no file

	var cfg Config
	if err := utils.ParseStructEnv(&cfg); err != nil {
		return nil, err
	}
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, utils.FormatConfigErrors(logger, err, cfg)
	}
	return &cfg, nil
}
