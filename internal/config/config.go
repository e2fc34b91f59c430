package config

import (
	"fmt"
	"time"
)

// Config represents the global configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Search    SearchConfig    `mapstructure:"search"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CacheConfig represents cache layer configuration
type CacheConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`            // default entry TTL
	LocalEnabled bool          `mapstructure:"local_enabled"`  // in-process front cache
	LocalTTL     time.Duration `mapstructure:"local_ttl"`      // life window of local entries
	LocalSizeMB  int           `mapstructure:"local_size_mb"`  // local cache hard cap
}

// SearchConfig represents the search index configuration
type SearchConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	ProductIndex string   `mapstructure:"product_index"`
}

// StorageConfig represents object store configuration
type StorageConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	ProductsBucket string `mapstructure:"products_bucket"`
	AvatarsBucket  string `mapstructure:"avatars_bucket"`
	PublicBaseURL  string `mapstructure:"public_base_url"`
}

// QueueConfig represents task queue configuration
type QueueConfig struct {
	Driver            string        `mapstructure:"driver"` // memory, redis
	Namespace         string        `mapstructure:"namespace"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	SoftTimeLimit     time.Duration `mapstructure:"soft_time_limit"`
	HardTimeLimit     time.Duration `mapstructure:"hard_time_limit"`
	Concurrency       map[string]int `mapstructure:"concurrency"` // per queue
	MaxTasksPerWorker int           `mapstructure:"max_tasks_per_worker"`
}

// TelegramConfig represents the outbound chat-message API configuration
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RateLimitConfig represents rate limiting configuration
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	RPS     int           `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	Expire     time.Duration `mapstructure:"expire"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

// SetDefaults fill zero values with sane defaults
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 50
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = time.Hour
	}
	if c.Cache.LocalTTL == 0 {
		c.Cache.LocalTTL = 5 * time.Minute
	}
	if c.Cache.LocalSizeMB == 0 {
		c.Cache.LocalSizeMB = 64
	}

	if len(c.Search.Addresses) == 0 {
		c.Search.Addresses = []string{"http://localhost:9200"}
	}
	if c.Search.ProductIndex == "" {
		c.Search.ProductIndex = "products"
	}

	if c.Storage.ProductsBucket == "" {
		c.Storage.ProductsBucket = "products"
	}
	if c.Storage.AvatarsBucket == "" {
		c.Storage.AvatarsBucket = "avatars"
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "redis"
	}
	if c.Queue.Namespace == "" {
		c.Queue.Namespace = "marketplace"
	}
	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = 3
	}
	if c.Queue.BackoffBase == 0 {
		c.Queue.BackoffBase = time.Second
	}
	if c.Queue.BackoffMax == 0 {
		c.Queue.BackoffMax = 10 * time.Minute
	}
	if c.Queue.VisibilityTimeout == 0 {
		c.Queue.VisibilityTimeout = 15 * time.Minute
	}
	if c.Queue.SoftTimeLimit == 0 {
		c.Queue.SoftTimeLimit = 5 * time.Minute
	}
	if c.Queue.HardTimeLimit == 0 {
		c.Queue.HardTimeLimit = 10 * time.Minute
	}
	if c.Queue.MaxTasksPerWorker == 0 {
		c.Queue.MaxTasksPerWorker = 1000
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 100
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 200
	}
	if c.RateLimit.TTL == 0 {
		c.RateLimit.TTL = 10 * time.Minute
	}

	if c.Security.JWT.Issuer == "" {
		c.Security.JWT.Issuer = "marketplace"
	}
	if c.Security.JWT.Expire == 0 {
		c.Security.JWT.Expire = 2 * time.Hour
	}
	if c.Security.JWT.RefreshTTL == 0 {
		c.Security.JWT.RefreshTTL = 7 * 24 * time.Hour
	}
}

// Validate check configuration consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Queue.Driver != "memory" && c.Queue.Driver != "redis" {
		return fmt.Errorf("unknown queue driver: %s", c.Queue.Driver)
	}
	if c.Queue.SoftTimeLimit > c.Queue.HardTimeLimit {
		return fmt.Errorf("soft time limit exceeds hard time limit")
	}
	if c.Security.JWT.Secret == "" && c.Server.Mode == "release" {
		return fmt.Errorf("jwt secret is required in release mode")
	}
	return nil
}
