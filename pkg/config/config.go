package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"QuietSpike/internal/services/analytics"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout" validate:"required"`
		// errors are aggregated and shipped to Kafka when set
		CollectTopic    string        `yaml:"collect_topic"`
		CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8090" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	// Store holds bars and signals. sqlite and postgres share the SQL store.
	Store struct {
		Type            string        `yaml:"type" default:"sqlite" validate:"oneof=sqlite postgres clickhouse"`
		DSN             string        `yaml:"dsn" default:"file:quietspike.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"10" validate:"gte=1"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"5" validate:"gte=0"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"5m"`
	} `yaml:"store"`
	// Backend routes synced bars either straight to the store or through Kafka.
	Backend struct {
		Type      string `yaml:"type" default:"store" validate:"oneof=store kafka"`
		BatchSize int    `yaml:"batch_size" default:"500" validate:"gte=1"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Topics       struct {
			Bars    string `yaml:"bars" default:"screener.bars"`
			Signals string `yaml:"signals" default:"screener.signals"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"quietspike"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"quietspike"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"quietspike"`
		TTL      time.Duration `yaml:"ttl" default:"6h"`
		// in-process L1 entries kept in front of Redis
		MemoryEntries int `yaml:"memory_entries" default:"512"`
	} `yaml:"redis"`
	MarketData struct {
		BaseURL string        `yaml:"base_url" default:"http://127.0.0.1:8080" validate:"url"`
		Timeout time.Duration `yaml:"timeout" default:"20s"`
		// requests per second towards the upstream host
		RateLimit float64 `yaml:"rate_limit" default:"2" validate:"gt=0"`
		Burst     int     `yaml:"burst" default:"2" validate:"gte=1"`
	} `yaml:"market_data"`
	Universe struct {
		Path string `yaml:"path" default:"data/universe.csv" validate:"required"`
	} `yaml:"universe"`
	Sync struct {
		Start        string `yaml:"start" validate:"omitempty,len=8,numeric"`
		End          string `yaml:"end" validate:"omitempty,len=8,numeric"`
		LookbackDays int    `yaml:"lookback_days" default:"365" validate:"gte=1"`
		Workers      int    `yaml:"workers" default:"2" validate:"gte=1,lte=32"`
	} `yaml:"sync"`
	Screener struct {
		// series come from the store or straight from the market-data API
		Source        string           `yaml:"source" default:"store" validate:"oneof=store fetch"`
		Workers       int              `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
		RetryAttempts int              `yaml:"retry_attempts" default:"3" validate:"gte=1,lte=10"`
		BackoffMin    time.Duration    `yaml:"backoff_min" default:"200ms"`
		BackoffMax    time.Duration    `yaml:"backoff_max" default:"2s"`
		SymbolTimeout time.Duration    `yaml:"symbol_timeout" default:"30s"`
		HistoryDays   int              `yaml:"history_days" default:"180" validate:"gte=1"`
		Detector      analytics.Config `yaml:"detector"`
	} `yaml:"screener"`
	Scheduler struct {
		Enabled  bool   `yaml:"enabled"`
		Spec     string `yaml:"spec" default:"0 30 15 * * 1-5"`
		Timezone string `yaml:"timezone" default:"Asia/Shanghai"`
	} `yaml:"scheduler"`
}

var validate = validator.New()

// Default returns a configuration made only of defaults.
func Default() (*Config, error) {
	var c Config
	if err := finalize(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := finalize(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file at path falls back to defaults.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		c, err = Default()
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("MARKETDATA_URL"); v != "" {
		c.MarketData.BaseURL = v
	}
	if v := os.Getenv("UNIVERSE_PATH"); v != "" {
		c.Universe.Path = v
	}
	if v := os.Getenv("SCREENER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Screener.Workers = n
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func finalize(c *Config) error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Validate checks field rules and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when backend.type is 'kafka'")
	}
	if c.Log.CollectTopic != "" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when log.collect_topic is set")
	}
	switch c.Store.Type {
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when store.type is 'clickhouse'")
		}
	default:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.type is '%s'", c.Store.Type)
		}
	}
	if c.Screener.BackoffMax < c.Screener.BackoffMin {
		return fmt.Errorf("screener.backoff_max must not be below screener.backoff_min")
	}
	if err := c.Screener.Detector.Validate(); err != nil {
		return fmt.Errorf("screener.detector: %w", err)
	}
	return nil
}
