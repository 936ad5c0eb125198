package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"TokenScope/pkg/util"
)

const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendBoth       = "both"

	CacheMemory  = "memory"
	CacheRedis   = "redis"
	CacheLayered = "layered"
)

type Config struct {
	Environment string     `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         Log        `yaml:"log"`
	Server      Server     `yaml:"server"`
	Metrics     Metrics    `yaml:"metrics"`
	Backend     Backend    `yaml:"backend"`
	Kafka       Kafka      `yaml:"kafka"`
	ClickHouse  ClickHouse `yaml:"clickhouse"`
	Redis       Redis      `yaml:"redis"`
	Cache       Cache      `yaml:"cache"`
	Market      Market     `yaml:"market"`
	Analysis    Analysis   `yaml:"analysis"`
	Stream      Stream     `yaml:"stream"`
}

type Log struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout" validate:"required"`
}

type Server struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
	CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	RateLimit       struct {
		RPS   float64 `yaml:"rps" default:"5" validate:"gte=0"`
		Burst int     `yaml:"burst" default:"10" validate:"gte=0"`
	} `yaml:"rate_limit"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// Backend selects where completed verdicts are sunk.
type Backend struct {
	Type         string        `yaml:"type" default:"none" validate:"oneof=none kafka clickhouse both"`
	BatchSize    int           `yaml:"batch_size" default:"50" validate:"gt=0"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
}

type Kafka struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic" default:"tokenscope.verdicts"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"100ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled     bool          `yaml:"enabled"`
		Topic       string        `yaml:"topic" default:"tokenscope.analysis-requests"`
		GroupID     string        `yaml:"group_id" default:"tokenscope"`
		StartOffset string        `yaml:"start_offset" default:"earliest" validate:"oneof=earliest latest"`
		Workers     int           `yaml:"workers" default:"2" validate:"gt=0"`
		BufferSize  int           `yaml:"buffer_size" default:"16" validate:"gt=0"`
		RetryMax    int           `yaml:"retry_max" default:"3" validate:"gte=0"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic    string        `yaml:"dlq_topic" default:"tokenscope.analysis-requests.dlq"`
		MinBytes    int           `yaml:"min_bytes" default:"1"`
		MaxBytes    int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type ClickHouse struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"tokenscope"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	InitSchema       bool          `yaml:"init_schema" default:"true"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

type Redis struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10" validate:"gt=0"`
}

// Cache configures the read-through OHLCV cache.
type Cache struct {
	Type          string        `yaml:"type" default:"memory" validate:"oneof=memory redis layered"`
	TTL           time.Duration `yaml:"ttl" default:"5m"`
	Prefix        string        `yaml:"prefix" default:"tokenscope"`
	MemoryMaxSize int           `yaml:"memory_max_size" default:"1000" validate:"gt=0"`
	L1TTL         time.Duration `yaml:"l1_ttl" default:"1m"`
}

type Market struct {
	DexScreenerURL  string        `yaml:"dexscreener_url" default:"https://api.dexscreener.com" validate:"required,url"`
	RugcheckURL     string        `yaml:"rugcheck_url" default:"https://api.rugcheck.xyz"`
	Timeout         time.Duration `yaml:"timeout" default:"10s"`
	RPS             float64       `yaml:"rps" default:"4" validate:"gt=0"`
	Burst           int           `yaml:"burst" default:"4" validate:"gt=0"`
	Retries         int           `yaml:"retries" default:"3" validate:"gt=0"`
	BreakerFailures uint32        `yaml:"breaker_failures" default:"5" validate:"gt=0"`
	BreakerOpen     time.Duration `yaml:"breaker_open" default:"30s"`
}

type Analysis struct {
	SyntheticFallback bool          `yaml:"synthetic_fallback"`
	Timeout           time.Duration `yaml:"timeout" default:"30s"`
	TimeframeTimeout  time.Duration `yaml:"timeframe_timeout" default:"10s"`
	Timeframes        []string      `yaml:"timeframes" default:"[\"5m\",\"15m\",\"1h\",\"4h\",\"1d\"]" validate:"dive,oneof=1m 5m 15m 1h 4h 1d"`
	MTFLimit          int           `yaml:"mtf_limit" default:"100" validate:"gte=20"`
	MTFMinScoring     int           `yaml:"mtf_min_scoring" default:"50" validate:"gte=50"`
	MaxIterations     int           `yaml:"max_iterations" default:"50" validate:"gt=0"`
	Tolerance         float64       `yaml:"tolerance" default:"0.000001" validate:"gt=0"`
}

// Stream configures the websocket verdict stream.
type Stream struct {
	Enabled      bool          `yaml:"enabled" default:"true"`
	BufferSize   int           `yaml:"buffer_size" default:"32" validate:"gt=0"`
	PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path loads the defaults.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("TOKENSCOPE_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("DEXSCREENER_BASE_URL"); v != "" {
		c.Market.DexScreenerURL = v
	}
	if v := getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
}

// UsesKafka reports whether verdicts go to Kafka.
func (c *Config) UsesKafka() bool {
	return c.Backend.Type == BackendKafka || c.Backend.Type == BackendBoth
}

// UsesClickHouse reports whether verdicts go to ClickHouse.
func (c *Config) UsesClickHouse() bool {
	return c.Backend.Type == BackendClickHouse || c.Backend.Type == BackendBoth
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if (c.UsesKafka() || c.Kafka.Consumer.Enabled) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is in use")
	}
	if c.UsesClickHouse() && !c.ClickHouse.Enabled {
		return fmt.Errorf("backend.type %q requires clickhouse.enabled", c.Backend.Type)
	}
	if c.Kafka.Consumer.Enabled && c.Kafka.Consumer.Topic == c.Kafka.Topic {
		return fmt.Errorf("kafka.consumer.topic must differ from the verdict topic")
	}
	if c.Kafka.Consumer.BackoffMax < c.Kafka.Consumer.BackoffMin {
		return fmt.Errorf("kafka.consumer.backoff_max must be >= backoff_min")
	}
	return nil
}
