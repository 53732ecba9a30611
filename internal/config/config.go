package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"insurance-ledger/internal/models"

	"gopkg.in/yaml.v3"
)

type LedgerServiceConfig struct {
	Port        string
	LogDir      string
	StoreDriver string
	FundsDriver string
	PostgresCfg PostgresConfig
	RabbitMQCfg RabbitMQConfig
	RedisCfg    RedisConfig
	MinioCfg    MinioConfig
	LedgerCfg   LedgerConfig
	SweepCfg    SweepConfig
}

type MinioConfig struct {
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
	Enabled        bool
}

type PostgresConfig struct {
	DBname         string
	Username       string
	Password       string
	Host           string
	Port           string
	RetryWait      time.Duration
	ConnectTimeout time.Duration
}

type RabbitMQConfig struct {
	Username       string
	Password       string
	Host           string
	Port           string
	VHost          string
	Queue          string
	Enabled        bool
	RetryWait      time.Duration
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// LedgerConfig seeds an uninitialized ledger on boot and drives the tick clock.
type LedgerConfig struct {
	Owner          string
	Treasury       string
	ParamsFile     string
	GenesisUnix    int64
	TickDuration   time.Duration
	TreasurySeed   uint64
	InitializeBoot bool
}

type SweepConfig struct {
	Interval  time.Duration
	Workers   int
	QueueSize int
}

func New() *LedgerServiceConfig {
	return &LedgerServiceConfig{
		Port:        getEnvOrDefault("PORT", "8090"),
		LogDir:      getEnvOrDefault("LOG_DIR", "/ledger/log/ledger_service"),
		StoreDriver: getEnvOrDefault("LEDGER_STORE", "postgres"),
		FundsDriver: getEnvOrDefault("LEDGER_FUNDS", "redis"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "insurance_ledger"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),

			RetryWait:      getDurationOrDefault("POSTGRES_RETRY_WAIT", 5*time.Second),
			ConnectTimeout: getDurationOrDefault("POSTGRES_CONNECT_TIMEOUT", time.Minute),
		},
		RabbitMQCfg: RabbitMQConfig{
			Username:       getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password:       getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:           getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:           getEnvOrDefault("RABBITMQ_PORT", "5672"),
			VHost:          getEnvOrDefault("RABBITMQ_VHOST", "/"),
			Queue:          getEnvOrDefault("RABBITMQ_LEDGER_QUEUE", "ledger_events"),
			Enabled:        getBoolOrDefault("RABBITMQ_ENABLED", true),
			RetryWait:      getDurationOrDefault("RABBITMQ_RETRY_WAIT", 2*time.Second),
			ConnectTimeout: getDurationOrDefault("RABBITMQ_CONNECT_TIMEOUT", 30*time.Second),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		MinioCfg: MinioConfig{
			MinioURL:       getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9000"),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:  getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:    getEnvOrDefault("MINIO_SECURE", "false"),
			Enabled:        getBoolOrDefault("MINIO_ENABLED", true),
		},
		LedgerCfg: LedgerConfig{
			Owner:          getEnvOrDefault("LEDGER_OWNER", ""),
			Treasury:       getEnvOrDefault("LEDGER_TREASURY", "treasury"),
			ParamsFile:     getEnvOrDefault("LEDGER_PARAMS_FILE", ""),
			GenesisUnix:    int64(getIntOrDefault("LEDGER_GENESIS_UNIX", 0)),
			TickDuration:   getDurationOrDefault("LEDGER_TICK_DURATION", 10*time.Minute),
			TreasurySeed:   uint64(getIntOrDefault("LEDGER_TREASURY_SEED", 0)),
			InitializeBoot: getBoolOrDefault("LEDGER_INITIALIZE_ON_BOOT", true),
		},
		SweepCfg: SweepConfig{
			Interval:  getDurationOrDefault("SWEEP_INTERVAL", 10*time.Minute),
			Workers:   getIntOrDefault("SWEEP_WORKERS", 2),
			QueueSize: getIntOrDefault("SWEEP_QUEUE_SIZE", 16),
		},
	}
}

// LoadParameters returns the default ledger parameters overlaid with the YAML file at
// path, if any. Keys missing from the file keep their defaults.
func LoadParameters(path string) (models.Parameters, error) {
	params := models.DefaultParameters()
	if path == "" {
		return params, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Parameters{}, fmt.Errorf("failed to read parameters file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &params); err != nil {
		return models.Parameters{}, fmt.Errorf("failed to parse parameters file %s: %w", path, err)
	}
	if err := params.Validate(); err != nil {
		return models.Parameters{}, fmt.Errorf("invalid parameters in %s: %w", path, err)
	}
	return params, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
