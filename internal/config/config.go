package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorePostgres = "postgres"
	StoreBadger   = "badger"
	StoreMemory   = "memory"
)

type Config struct {
	Addr     string `envconfig:"ADDR" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON  bool   `envconfig:"LOG_JSON" default:"false"`

	Store       string        `envconfig:"STORE" default:"memory"`
	DatabaseURL string        `envconfig:"DATABASE_URL"`
	BadgerPath  string        `envconfig:"BADGER_PATH" default:"data/badger"`
	RedisURL    string        `envconfig:"REDIS_URL"`
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel   string        `envconfig:"OPENAI_MODEL" default:"gpt-3.5-turbo"`
	OpenAITimeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	MaxTokens     int           `envconfig:"MAX_TOKENS" default:"150"`
	Temperature   float64       `envconfig:"TEMPERATURE" default:"0.7"`

	ReplyDelay        time.Duration `envconfig:"REPLY_DELAY" default:"800ms"`
	CurrentUserID     string        `envconfig:"CURRENT_USER_ID" default:"current-user"`
	PersonalitiesFile string        `envconfig:"PERSONALITIES_FILE"`

	GiphyAPIKey   string        `envconfig:"GIPHY_API_KEY"`
	GiphyModel    string        `envconfig:"GIPHY_MODEL" default:"gpt-4o"`
	AnalysisModel string        `envconfig:"ANALYSIS_MODEL" default:"gpt-4o-mini"`
	ChunkGap      time.Duration `envconfig:"CHUNK_GAP" default:"1h"`
}

// Load reads .env (when present) and then the process environment.
// A missing .env file is not an error.
func Load(log *slog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("couldn't load .env", "err", err)
	}

	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreMemory, StoreBadger:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}
	if c.CurrentUserID == "" {
		return errors.New("CURRENT_USER_ID must not be empty")
	}
	if c.ReplyDelay < 0 {
		return fmt.Errorf("REPLY_DELAY must not be negative, got %s", c.ReplyDelay)
	}
	return nil
}
