package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout" validate:"required"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"3001" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s" validate:"gt=0"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics" validate:"startswith=/"`
	} `yaml:"metrics"`
	Dashboard struct {
		BasePrice         float64       `yaml:"base_price" default:"9138.90" validate:"gt=0"`
		HistoryJitter     float64       `yaml:"history_jitter" default:"100" validate:"gte=0"`
		TickJitter        float64       `yaml:"tick_jitter" default:"5" validate:"gte=0"`
		TickInterval      time.Duration `yaml:"tick_interval" default:"30s" validate:"gt=0"`
		HistoryStep       time.Duration `yaml:"history_step" default:"30s" validate:"gt=0"`
		PredictionLatency time.Duration `yaml:"prediction_latency" default:"2s" validate:"gte=0"`
		DataPointCount    int           `yaml:"data_point_count" default:"1000" validate:"gte=0"`
		FeatureCount      int           `yaml:"feature_count" default:"25" validate:"gte=0"`
		Seed              uint64        `yaml:"seed"`
	} `yaml:"dashboard"`
	WebSocket struct {
		Path          string        `yaml:"path" default:"/ws" validate:"startswith=/"`
		ForwardErrors bool          `yaml:"forward_errors"`
		SendBuffer    int           `yaml:"send_buffer" default:"16" validate:"gt=0"`
		WriteTimeout  time.Duration `yaml:"write_timeout" default:"5s" validate:"gt=0"`
		PingInterval  time.Duration `yaml:"ping_interval" default:"30s" validate:"gt=0"`
		PongTimeout   time.Duration `yaml:"pong_timeout" default:"60s" validate:"gtfield=PingInterval"`
		CommandBurst  float64       `yaml:"command_burst" default:"5" validate:"gte=0"`
		CommandRate   float64       `yaml:"command_rate" default:"1" validate:"gte=0"`
	} `yaml:"websocket"`
	Scoring struct {
		URL     string        `yaml:"url" validate:"omitempty,url"`
		Timeout time.Duration `yaml:"timeout" default:"3s" validate:"gt=0"`
	} `yaml:"scoring"`
	Cache struct {
		Enabled       bool          `yaml:"enabled" default:"true"`
		TTL           time.Duration `yaml:"ttl" default:"5m" validate:"gt=0"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"256" validate:"gt=0"`
		Redis         struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db" validate:"gte=0"`
			Prefix   string `yaml:"prefix" default:"findash"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers" validate:"required_if=Enabled true"`
		Topic        string        `yaml:"topic" default:"findash.events" validate:"required"`
		Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
		BatchSize    int           `yaml:"batch_size" default:"100" validate:"gt=0"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s" validate:"gt=0"`
		BufferSize   int           `yaml:"buffer_size" default:"1000" validate:"gt=0"`
		AutoCreate   bool          `yaml:"auto_create_topic"`
	} `yaml:"kafka"`
}

var validate = validator.New()

// Default returns a config with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads a YAML configuration file over the defaults and validates it.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := lookup("HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v, ok := lookup("SCORING_URL"); ok {
		c.Scoring.URL = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Dashboard.HistoryJitter >= c.Dashboard.BasePrice {
		return fmt.Errorf("dashboard.history_jitter must be below dashboard.base_price")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
