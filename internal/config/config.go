package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Engine     EngineConfig
	Monitoring MonitoringConfig
	RateLimit  RateLimitConfig
	Auth       AuthConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleConns   int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type PreAggregationConfig struct {
	Enabled         bool
	RefreshInterval time.Duration
	MaxAge          time.Duration
}

type QueryCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	MaxSize int
}

// CacheConfig is loaded once at startup and read-only thereafter.
type CacheConfig struct {
	KeyPrefix      string
	DefaultTTL     time.Duration
	PreAggregation PreAggregationConfig
	QueryCache     QueryCacheConfig
}

// EngineConfig points at the external analytics engine that compiles
// semantic queries to engine SQL.
type EngineConfig struct {
	URL     string
	Timeout time.Duration
}

type MonitoringConfig struct {
	Interval      time.Duration
	SlowThreshold time.Duration
	AvgThreshold  time.Duration
	Workers       int
	QueryTimeout  time.Duration
}

type RateLimitConfig struct {
	PerTenantRPS float64
	Burst        int
}

type AuthConfig struct {
	JWTSecret string
}

func Load() (*Config, error) {
	// Optional .env for local development
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("GATEWAY")
	viper.AutomaticEnv()

	// Set defaults; the service is operable with zero explicit configuration
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.maxconnections", 25)
	viper.SetDefault("database.maxidleconns", 5)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolsize", 10)
	viper.SetDefault("cache.keyprefix", "gateway")
	viper.SetDefault("cache.defaultttl", "1h")
	viper.SetDefault("cache.preaggregation.enabled", true)
	viper.SetDefault("cache.preaggregation.refreshinterval", "10m")
	viper.SetDefault("cache.preaggregation.maxage", "24h")
	viper.SetDefault("cache.querycache.enabled", true)
	viper.SetDefault("cache.querycache.ttl", "5m")
	viper.SetDefault("cache.querycache.maxsize", 1000)
	viper.SetDefault("engine.timeout", "30s")
	viper.SetDefault("monitoring.interval", "60s")
	viper.SetDefault("monitoring.slowthreshold", "5s")
	viper.SetDefault("monitoring.avgthreshold", "2s")
	viper.SetDefault("monitoring.workers", 5)
	viper.SetDefault("monitoring.querytimeout", "10s")
	viper.SetDefault("ratelimit.pertenantrps", 20)
	viper.SetDefault("ratelimit.burst", 40)

	var cfg Config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if url := os.Getenv("ENGINE_URL"); url != "" {
		cfg.Engine.URL = url
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	return &cfg, nil
}
