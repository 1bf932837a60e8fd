package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	FanoutLocal = "local"
	FanoutRedis = "redis"

	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

var ErrRedisRequired = errors.New("FANOUT_MODE=redis and INGEST_ENABLED need REDIS_ENABLED=true")

type Config struct {
	RedisEnabled  bool   `env:"REDIS_ENABLED"  envDefault:"true"`
	RedisHost     string `env:"REDIS_HOST"     envDefault:"localhost"`
	RedisPort     uint16 `env:"REDIS_PORT"     envDefault:"6379" validate:"min=1000,max=65535"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDb       int    `env:"REDIS_DB"       envDefault:"0"    validate:"min=0,max=15"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"board_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"board_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"board_db"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"    validate:"oneof=postgres sqlite memory"`
	SqlitePath   string `env:"SQLITE_PATH"   envDefault:"boardsync.db"`

	JwtSecret string `env:"JWT_SECRET,required" validate:"min=16"`

	HistoryLimit    int           `env:"HISTORY_LIMIT"     envDefault:"100" validate:"min=1,ltefield=HistoryMaxLimit"`
	HistoryMaxLimit int           `env:"HISTORY_MAX_LIMIT" envDefault:"500" validate:"min=1"`
	CacheTTL        time.Duration `env:"CACHE_TTL"         envDefault:"24h"`
	CacheKeepEvery  time.Duration `env:"CACHE_KEEP_EVERY"  envDefault:"1m" validate:"gt=0"`
	PersistTimeout  time.Duration `env:"PERSIST_TIMEOUT"   envDefault:"5s" validate:"gt=0"`

	FanoutMode   string `env:"FANOUT_MODE"    envDefault:"local" validate:"oneof=local redis"`
	WsSendBuffer int    `env:"WS_SEND_BUFFER" envDefault:"64"    validate:"min=1"`
	WsReadLimit  int64  `env:"WS_READ_LIMIT"  envDefault:"65536" validate:"min=512"`

	IngestEnabled bool   `env:"INGEST_ENABLED" envDefault:"false"`
	InstanceName  string `env:"INSTANCE_NAME"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"console" validate:"oneof=console json"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8080" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	if err = validator.New().Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	if !cfg.RedisEnabled && (cfg.FanoutMode == FanoutRedis || cfg.IngestEnabled) {
		zap.L().Error("config_validation_failed", zap.Error(ErrRedisRequired))
		return nil, ErrRedisRequired
	}
	return cfg, nil
}

// NewLogger builds the process logger for the configured format.
func NewLogger(format string) (*zap.Logger, error) {
	if format == "json" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
