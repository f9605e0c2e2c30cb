package configs

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/utils"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds application configuration for audit-worker.
type Config struct {
	MetricsAddr          string        `mapstructure:"METRICS_ADDR" validate:"required"`
	KafkaBrokers         string        `mapstructure:"KAFKA_BROKERS" validate:"required"`
	KafkaRequestLogTopic string        `mapstructure:"KAFKA_REQUEST_LOG_TOPIC" validate:"required"`
	KafkaConsumerGroup   string        `mapstructure:"KAFKA_CONSUMER_GROUP" validate:"required"`
	KafkaDLQTopic        string        `mapstructure:"KAFKA_DLQ_TOPIC"` // empty disables the DLQ
	KafkaDLQRetention    time.Duration `mapstructure:"KAFKA_DLQ_RETENTION"`
	KafkaPartition       uint32        `mapstructure:"KAFKA_PARTITION" validate:"min=1"`
	PrimaryDbAddr        string        `mapstructure:"PRIMARY_DB_ADDR" validate:"required"`
	ReplicaDbAddr        string        `mapstructure:"REPLICA_DB_ADDR"`
	MaxDbCons            int32         `mapstructure:"MAX_DB_CONNECTIONS" validate:"min=1"`
	MinDbCons            int32         `mapstructure:"MIN_DB_CONNECTIONS" validate:"min=1"`
	MaxConcurrentJobs    int           `mapstructure:"MAX_CONCURRENT_JOBS" validate:"min=1"`
	PersistMaxAttempts   int           `mapstructure:"PERSIST_MAX_ATTEMPTS" validate:"min=1,max=10"`
	PersistBaseBackoff   time.Duration `mapstructure:"PERSIST_BASE_BACKOFF" validate:"required"`
	PersistMaxBackoff    time.Duration `mapstructure:"PERSIST_MAX_BACKOFF" validate:"required,gtefield=PersistBaseBackoff"`
	RandomSeed           int64         `mapstructure:"RANDOM_SEED"`
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app") // Prefix for env vars
	viper.AutomaticEnv()

	// Default values
	viper.SetDefault("METRICS_ADDR", ":9102")
	viper.SetDefault("KAFKA_REQUEST_LOG_TOPIC", "request-logs")
	viper.SetDefault("KAFKA_CONSUMER_GROUP", "audit-worker")
	viper.SetDefault("KAFKA_DLQ_RETENTION", "168h")
	viper.SetDefault("KAFKA_PARTITION", "4")
	viper.SetDefault("MAX_DB_CONNECTIONS", "10")
	viper.SetDefault("MIN_DB_CONNECTIONS", "2")
	viper.SetDefault("MAX_CONCURRENT_JOBS", "8")
	viper.SetDefault("PERSIST_MAX_ATTEMPTS", "3")
	viper.SetDefault("PERSIST_BASE_BACKOFF", "100ms")
	viper.SetDefault("PERSIST_MAX_BACKOFF", "2s")
	viper.SetDefault("RANDOM_SEED", "0")

	// Optional: Read from config.yaml if exists
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
	viper.AddConfigPath("./services/audit-worker/configs")
	_ = viper.ReadInConfig() // Ignore if no file

	var cfg Config
	if err := utils.ParseStructEnv(&cfg); err != nil {
		return nil, err
	}

	// Validate after unmarshal
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, utils.FormatConfigErrors(logger, err, cfg)
	}
	return &cfg, nil
}
