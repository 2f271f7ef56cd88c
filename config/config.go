package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"racebot-stats/temperrors"
)

type Config struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Server  ServerConfig  `toml:"server"`
	Refresh RefreshConfig `toml:"refresh"`
	Bots    BotsConfig    `toml:"bots"`
}

type APIConfig struct {
	BaseURL        string   `toml:"base_url"`
	Timeout        Duration `toml:"timeout"`
	MaxAttempts    int      `toml:"max_attempts"`
	BackoffInitial Duration `toml:"backoff_initial"`
	BackoffMax     Duration `toml:"backoff_max"`
	RateLimit      float64  `toml:"rate_limit"`
	PageSize       int      `toml:"page_size"`
}

type StorageConfig struct {
	Driver string `toml:"driver"`
	Dir    string `toml:"dir"`
	Codec  string `toml:"codec"`
	Path   string `toml:"path"`

	S3 S3Config `toml:"s3"`
}

type S3Config struct {
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type RefreshConfig struct {
	Schedule string `toml:"schedule"`
	Seasons  []int  `toml:"seasons"`
	Workers  int    `toml:"workers"`
}

type BotsConfig struct {
	VkGroupToken string `toml:"vk_group_token"`
	VkGroupID    int    `toml:"vk_group_id"`
	TgChatToken  string `toml:"tg_chat_token"`
}

// Duration lets TOML files spell durations as "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		API: APIConfig{
			BaseURL:        "https://api.jolpi.ca/ergast/f1",
			Timeout:        Duration{10 * time.Second},
			MaxAttempts:    3,
			BackoffInitial: Duration{500 * time.Millisecond},
			BackoffMax:     Duration{10 * time.Second},
			RateLimit:      4,
			PageSize:       100,
		},
		Storage: StorageConfig{
			Driver: "file",
			Dir:    "data/snapshots",
			Codec:  "json",
			Path:   "data/racestats.db",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Refresh: RefreshConfig{
			Schedule: "@every 6h",
			Workers:  2,
		},
	}
}

// New loads the configuration: defaults, then the TOML file at path (when it
// exists), then the .env file and process environment.
func New(path string) (*Config, error) {
	conf := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, conf); err != nil {
				return nil, fmt.Errorf("error parsing config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found")
	}
	if err := conf.applyEnv(); err != nil {
		return nil, err
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) applyEnv() error {
	c.LogLevel = getEnv("RACESTATS_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("RACESTATS_LOG_FORMAT", c.LogFormat)
	c.API.BaseURL = getEnv("RACESTATS_API_URL", c.API.BaseURL)
	c.Storage.Driver = getEnv("RACESTATS_STORAGE", c.Storage.Driver)
	c.Storage.Dir = getEnv("RACESTATS_DATA_DIR", c.Storage.Dir)
	c.Storage.Codec = getEnv("RACESTATS_CODEC", c.Storage.Codec)
	c.Storage.Path = getEnv("RACESTATS_DB_PATH", c.Storage.Path)
	c.Storage.S3.Bucket = getEnv("RACESTATS_S3_BUCKET", c.Storage.S3.Bucket)
	c.Storage.S3.Endpoint = getEnv("RACESTATS_S3_ENDPOINT", c.Storage.S3.Endpoint)
	c.Storage.S3.AccessKey = getEnv("RACESTATS_S3_ACCESS_KEY", c.Storage.S3.AccessKey)
	c.Storage.S3.SecretKey = getEnv("RACESTATS_S3_SECRET_KEY", c.Storage.S3.SecretKey)
	c.Server.Addr = getEnv("RACESTATS_ADDR", c.Server.Addr)

	c.Bots.VkGroupToken = getEnv("RACEVK_BOT", c.Bots.VkGroupToken)
	c.Bots.TgChatToken = getEnv("RACETG_BOT", c.Bots.TgChatToken)

	if v, ok := os.LookupEnv("RACEVK_GROUP_ID"); ok {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: RACEVK_GROUP_ID %q", temperrors.ErrInvalidConfig, v)
		}
		c.Bots.VkGroupID = id
	}

	if v, ok := os.LookupEnv("RACESTATS_SEASONS"); ok {
		seasons, err := ParseSeasons(v)
		if err != nil {
			return err
		}
		c.Refresh.Seasons = seasons
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "file", "sqlite":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("%w: storage.s3.bucket is required", temperrors.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", temperrors.ErrInvalidConfig, c.Storage.Driver)
	}

	switch c.Storage.Codec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("%w: unknown codec %q", temperrors.ErrInvalidConfig, c.Storage.Codec)
	}

	if c.API.MaxAttempts < 1 {
		return fmt.Errorf("%w: api.max_attempts must be at least 1", temperrors.ErrInvalidConfig)
	}
	if c.API.Timeout.Duration <= 0 {
		return fmt.Errorf("%w: api.timeout must be positive", temperrors.ErrInvalidConfig)
	}
	return nil
}

// ParseSeasons accepts "2021,2022" and ranges such as "2019-2021".
func ParseSeasons(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if from, to, ok := strings.Cut(part, "-"); ok {
			a, err1 := strconv.Atoi(from)
			b, err2 := strconv.Atoi(to)
			if err1 != nil || err2 != nil || a > b {
				return nil, fmt.Errorf("%w: season range %q", temperrors.ErrInvalidConfig, part)
			}
			for y := a; y <= b; y++ {
				out = append(out, y)
			}
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: season %q", temperrors.ErrInvalidConfig, part)
		}
		out = append(out, y)
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
