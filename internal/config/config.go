package config

import (
	"errors"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server    Server    `mapstructure:"server"`
	Auth      Auth      `mapstructure:"auth"`
	Risk      Risk      `mapstructure:"risk"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Lock      Lock      `mapstructure:"lock"`
	Logger    Logger    `mapstructure:"logger"`
	Database  Database  `mapstructure:"database"`
	Client    Client    `mapstructure:"client"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Auth holds the secret used to verify caller tokens.
type Auth struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Risk holds the starting values and limits of the position-sizing policy.
type Risk struct {
	DefaultAccountSize   float64 `mapstructure:"default_account_size"`
	DefaultBaseTradeSize float64 `mapstructure:"default_base_trade_size"`
	MaxStreak            int     `mapstructure:"max_streak"`
	MaxStopLossesPerDay  int     `mapstructure:"max_stop_losses_per_day"`
	WinMultiplier        float64 `mapstructure:"win_multiplier"`
	LossMultiplier       float64 `mapstructure:"loss_multiplier"`
}

// Scheduler holds the configuration for the daily reset job.
type Scheduler struct {
	Enabled  bool   `mapstructure:"enabled"`
	Spec     string `mapstructure:"spec"`     // cron expression, minute resolution
	Timezone string `mapstructure:"timezone"` // IANA name, "Local" for the server zone
}

// Lock holds the configuration for per-user mutual exclusion.
type Lock struct {
	Type   string        `mapstructure:"type"` // "memory" or "redis"
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
	Redis  Redis         `mapstructure:"redis"`
}

// Redis holds the connection settings for the redis lock.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Database holds the configuration for the database.
type Database struct {
	Type            string        `mapstructure:"type"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// Client holds the configuration used by journalctl to reach the API.
type Client struct {
	BaseURL        string  `mapstructure:"base_url"`
	Token          string  `mapstructure:"token"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Location resolves the scheduler timezone. An empty or "Local" value means the server zone.
func (s Scheduler) Location() (*time.Location, error) {
	if s.Timezone == "" || strings.EqualFold(s.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	viper.SetDefault("auth.jwt_secret", "")

	viper.SetDefault("risk.default_account_size", 10000)
	viper.SetDefault("risk.default_base_trade_size", 1000)
	viper.SetDefault("risk.max_streak", 3)
	viper.SetDefault("risk.max_stop_losses_per_day", 3)
	viper.SetDefault("risk.win_multiplier", 1.2)
	viper.SetDefault("risk.loss_multiplier", 0.8)

	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.spec", "0 0 * * *")
	viper.SetDefault("scheduler.timezone", "Local")

	viper.SetDefault("lock.type", "memory")
	viper.SetDefault("lock.prefix", "rascarobingo:lock:")
	viper.SetDefault("lock.ttl", 10*time.Second)
	viper.SetDefault("lock.redis.addr", "localhost:6379")
	viper.SetDefault("lock.redis.password", "")
	viper.SetDefault("lock.redis.db", 0)
	viper.SetDefault("lock.redis.pool_size", 10)

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.dsn", "journal.db")
	viper.SetDefault("database.log_level", "warn")

	viper.SetDefault("client.base_url", "http://localhost:8080")
	viper.SetDefault("client.token", "")
	viper.SetDefault("client.rate_limit", 5)      // requests per second
	viper.SetDefault("client.rate_limit_burst", 5) // burst size

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error: defaults and environment still apply.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err = viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}

// WatchConfig re-reads the config file whenever it changes on disk and hands
// the decoded result to onChange. Decode failures are passed to onError.
func WatchConfig(onChange func(Config), onError func(error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var cfg Config
		if err := viper.Unmarshal(&cfg); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}
