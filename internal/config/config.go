// Package config loads engine settings: defaults, then an optional YAML tuning
// file, then environment variables (a .env file is loaded first if present).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/unclebandit/activity-sim/internal/model"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	Name     string `yaml:"name"`
}

// DSN returns the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Name)
}

// ScoreBand is the inclusive score range sampled for one technical level.
type ScoreBand struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

func (b ScoreBand) mid() float64 { return float64(b.Min+b.Max) / 2 }

type ContentConfig struct {
	Provider    string  `yaml:"provider"` // "gemini" or "template"
	APIKey      string  `yaml:"-"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int32   `yaml:"max_tokens"`
}

type Config struct {
	HTTPAddr       string                             `yaml:"http_addr"`
	Store          string                             `yaml:"store"` // "postgres" or "memory"
	AMQPURL        string                             `yaml:"amqp_url"`
	DB             DBConfig                           `yaml:"db"`
	BatchSize      int                                `yaml:"batch_size"`
	JitterFraction float64                            `yaml:"jitter_fraction"`
	TimeScale      float64                            `yaml:"time_scale"`
	Seed           uint64                             `yaml:"seed"`
	ScoreBands     map[model.TechnicalLevel]ScoreBand `yaml:"score_bands"`
	Content        ContentConfig                      `yaml:"content"`
	LogLevel       string                             `yaml:"log_level"`
	LogJSON        bool                               `yaml:"log_json"`
}

// DefaultScoreBands returns the built-in per-level score ranges.
func DefaultScoreBands() map[model.TechnicalLevel]ScoreBand {
	return map[model.TechnicalLevel]ScoreBand{
		model.LevelBeginner:     {Min: 30, Max: 60},
		model.LevelIntermediate: {Min: 45, Max: 75},
		model.LevelAdvanced:     {Min: 60, Max: 90},
		model.LevelExpert:       {Min: 75, Max: 100},
	}
}

func Default() *Config {
	return &Config{
		HTTPAddr:       ":8080",
		Store:          "postgres",
		DB:             DBConfig{Host: "localhost", Port: "5432"},
		BatchSize:      5,
		JitterFraction: 0.25,
		TimeScale:      1,
		ScoreBands:     DefaultScoreBands(),
		Content: ContentConfig{
			Provider:    "template",
			Model:       "gemini-2.0-flash",
			Temperature: 0.9,
			MaxTokens:   256,
		},
		LogLevel: "info",
	}
}

// Load reads .env (if any), SIM_CONFIG_FILE (if set) and the environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("SIM_CONFIG_FILE"); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML tuning file layered over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	// a bare score_bands: key decodes to a nil map
	if cfg.ScoreBands == nil {
		cfg.ScoreBands = map[model.TechnicalLevel]ScoreBand{}
	}
	// partial score_bands in the file keep defaults for unlisted levels
	for level, band := range DefaultScoreBands() {
		if _, ok := cfg.ScoreBands[level]; !ok {
			cfg.ScoreBands[level] = band
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.Store, "SIM_STORE")
	setString(&c.AMQPURL, "AMQP_URL")
	setString(&c.DB.Host, "DB_HOST")
	setString(&c.DB.Port, "DB_PORT")
	setString(&c.DB.User, "DB_USER")
	setString(&c.DB.Password, "DB_PASSWORD")
	setString(&c.DB.Name, "DB_NAME")
	setString(&c.Content.Model, "GEMINI_MODEL")
	setString(&c.LogLevel, "LOG_LEVEL")

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Content.APIKey = key
		c.Content.Provider = "gemini"
	}
	if v := os.Getenv("SIM_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SIM_BATCH_SIZE: %w", err)
		}
		c.BatchSize = n
	}
	if v := os.Getenv("SIM_TIME_SCALE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SIM_TIME_SCALE: %w", err)
		}
		c.TimeScale = f
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SIM_SEED: %w", err)
		}
		c.Seed = n
	}
	if v := os.Getenv("LOG_JSON"); v != "" {
		c.LogJSON = strings.EqualFold(v, "true") || v == "1"
	}
	return nil
}

// Validate checks engine tuning values.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1, got %d", c.BatchSize)
	}
	if c.JitterFraction < 0 || c.JitterFraction >= 0.5 {
		return fmt.Errorf("jitter_fraction must be in [0, 0.5), got %v", c.JitterFraction)
	}
	if c.TimeScale <= 0 {
		return fmt.Errorf("time_scale must be > 0, got %v", c.TimeScale)
	}
	if c.Store != "postgres" && c.Store != "memory" {
		return fmt.Errorf("invalid store: %s (valid: postgres, memory)", c.Store)
	}
	if c.Content.Provider != "template" && c.Content.Provider != "gemini" {
		return fmt.Errorf("invalid content provider: %s (valid: template, gemini)", c.Content.Provider)
	}
	if c.Content.Provider == "gemini" && c.Content.APIKey == "" {
		return fmt.Errorf("content provider gemini requires GEMINI_API_KEY")
	}

	prev := -1.0
	for _, level := range model.Levels {
		band, ok := c.ScoreBands[level]
		if !ok {
			return fmt.Errorf("score_bands missing level %s", level)
		}
		if band.Min < 0 || band.Max > 100 || band.Min > band.Max {
			return fmt.Errorf("score_bands.%s: invalid range [%d,%d]", level, band.Min, band.Max)
		}
		if band.mid() <= prev {
			return fmt.Errorf("score_bands.%s: midpoint must exceed the level below", level)
		}
		prev = band.mid()
	}
	return nil
}
