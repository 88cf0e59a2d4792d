package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"quantscraper/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Lock      LockConfig      `mapstructure:"lock"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Combine   CombineConfig   `mapstructure:"combine"`
	Binance   ExchangeConfig  `mapstructure:"binance"`
	Bybit     ExchangeConfig  `mapstructure:"bybit"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	API       APIConfig       `mapstructure:"api"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Retention       time.Duration `mapstructure:"retention"`
}

// SchedulerConfig governs loop cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// ScraperConfig drives the per-exchange analysis cycle.
type ScraperConfig struct {
	Exchanges       []string      `mapstructure:"exchanges"`
	QuoteSymbols    []string      `mapstructure:"quote_symbols"`
	TopVolume       int           `mapstructure:"top_volume"`
	MaxWorkers      int           `mapstructure:"max_workers"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Lookback        int           `mapstructure:"lookback"`
	FundingTTL      time.Duration `mapstructure:"funding_ttl"`
	HistoryWorkers  int           `mapstructure:"history_workers"`
	HistoryInterval string        `mapstructure:"history_interval"`
	HistoryLimit    int           `mapstructure:"history_limit"`
}

// LockConfig selects the single-instance guard.
type LockConfig struct {
	Backend      string `mapstructure:"backend"`
	Dir          string `mapstructure:"dir"`
	AdvisoryBase int64  `mapstructure:"advisory_base"`
}

// PublishConfig controls artifact output.
type PublishConfig struct {
	DataDir            string        `mapstructure:"data_dir"`
	Format             string        `mapstructure:"format"`
	TradeableMinVolume float64       `mapstructure:"tradeable_min_volume"`
	LegacyExchange     string        `mapstructure:"legacy_exchange"`
	MirrorTimeout      time.Duration `mapstructure:"mirror_timeout"`
}

// CombineConfig enables the merged two-exchange table.
type CombineConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Primary   string `mapstructure:"primary"`
	Secondary string `mapstructure:"secondary"`
}

// ExchangeConfig covers one exchange REST endpoint.
type ExchangeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
}

// MirrorConfig lists optional artifact mirrors.
type MirrorConfig struct {
	S3    S3Config    `mapstructure:"s3"`
	Redis RedisConfig `mapstructure:"redis"`
}

// S3Config 描述对象存储镜像参数。
type S3Config struct {
	Enabled      bool   `mapstructure:"enabled"`
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// RedisConfig 描述 Redis 镜像参数。
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	Channel   string        `mapstructure:"channel"`
}

// AlertingConfig defines failed-cycle alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// APIConfig configures the read-only artifact server.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	TopN int `mapstructure:"top_n"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QUANTSCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "quantscraper")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("scheduler.interval", "60s")
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("scraper.exchanges", []string{"binance", "bybit"})
	v.SetDefault("scraper.quote_symbols", []string{"USDT"})
	v.SetDefault("scraper.top_volume", 0)
	v.SetDefault("scraper.max_workers", 20)
	v.SetDefault("scraper.retry_attempts", 5)
	v.SetDefault("scraper.retry_delay", "1s")
	v.SetDefault("scraper.lookback", 100)
	v.SetDefault("scraper.funding_ttl", "4h")
	v.SetDefault("scraper.history_workers", 20)
	v.SetDefault("scraper.history_interval", "1h")
	v.SetDefault("scraper.history_limit", 24)

	v.SetDefault("lock.backend", "file")
	v.SetDefault("lock.dir", ".")
	v.SetDefault("lock.advisory_base", int64(0x71736372))

	v.SetDefault("publish.data_dir", "data")
	v.SetDefault("publish.format", "json")
	v.SetDefault("publish.tradeable_min_volume", 15000.0)
	v.SetDefault("publish.legacy_exchange", "bybit")
	v.SetDefault("publish.mirror_timeout", "30s")

	v.SetDefault("combine.enabled", false)
	v.SetDefault("combine.primary", "binance")
	v.SetDefault("combine.secondary", "bybit")

	v.SetDefault("binance.base_url", "https://fapi.binance.com")
	v.SetDefault("binance.timeout", "10s")
	v.SetDefault("binance.rps", 20.0)
	v.SetDefault("binance.burst", 20)

	v.SetDefault("bybit.base_url", "https://api.bybit.com")
	v.SetDefault("bybit.timeout", "10s")
	v.SetDefault("bybit.rps", 10.0)
	v.SetDefault("bybit.burst", 10)

	v.SetDefault("mirror.s3.enabled", false)
	v.SetDefault("mirror.s3.region", "us-east-1")
	v.SetDefault("mirror.redis.enabled", false)
	v.SetDefault("mirror.redis.addr", "localhost:6379")
	v.SetDefault("mirror.redis.key_prefix", "quantscraper:")
	v.SetDefault("mirror.redis.ttl", "10m")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.addr", ":8080")

	v.SetDefault("export.top_n", 20)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.retention", "720h")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

var knownExchanges = []string{"binance", "bybit"}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if len(c.Scraper.Exchanges) == 0 {
		return fmt.Errorf("scraper.exchanges must list at least one exchange")
	}
	for _, ex := range c.Scraper.Exchanges {
		if !slices.Contains(knownExchanges, ex) {
			return fmt.Errorf("scraper.exchanges: unknown exchange %q", ex)
		}
	}
	if c.Scraper.MaxWorkers <= 0 {
		return fmt.Errorf("scraper.max_workers must be greater than zero")
	}
	if c.Scraper.RetryAttempts <= 0 {
		return fmt.Errorf("scraper.retry_attempts must be greater than zero")
	}
	if c.Scraper.RetryDelay < 0 {
		return fmt.Errorf("scraper.retry_delay cannot be negative")
	}
	if c.Scraper.TopVolume < 0 {
		return fmt.Errorf("scraper.top_volume cannot be negative")
	}
	switch c.Lock.Backend {
	case "file", "none":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("lock.backend=postgres requires database.dsn")
		}
	default:
		return fmt.Errorf("lock.backend must be one of file, postgres, none")
	}
	switch c.Publish.Format {
	case "json", "csv", "parquet":
	default:
		return fmt.Errorf("publish.format must be one of json, csv, parquet")
	}
	if c.Publish.DataDir == "" {
		return fmt.Errorf("publish.data_dir must be set")
	}
	if c.Combine.Enabled {
		if c.Combine.Primary == c.Combine.Secondary {
			return fmt.Errorf("combine.primary and combine.secondary must differ")
		}
		if !slices.Contains(c.Scraper.Exchanges, c.Combine.Primary) || !slices.Contains(c.Scraper.Exchanges, c.Combine.Secondary) {
			return fmt.Errorf("combine exchanges must both be listed in scraper.exchanges")
		}
	}
	if c.Mirror.S3.Enabled && c.Mirror.S3.Bucket == "" {
		return fmt.Errorf("mirror.s3.bucket must be set when the S3 mirror is enabled")
	}
	if c.Mirror.Redis.Enabled && c.Mirror.Redis.Addr == "" {
		return fmt.Errorf("mirror.redis.addr must be set when the Redis mirror is enabled")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	if c.Export.TopN <= 0 {
		return fmt.Errorf("export.top_n must be greater than zero")
	}
	return nil
}

// Exchange returns the endpoint settings of name.
func (c *Config) Exchange(name string) ExchangeConfig {
	if name == "bybit" {
		return c.Bybit
	}
	return c.Binance
}

// ResolveTopN returns either the CLI override or config default.
func (c *Config) ResolveTopN(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.TopN
}
