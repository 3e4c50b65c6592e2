package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port      string
	LogLevel  string
	PublicURL string // base URL the telephony provider calls back on

	LLMProvider  string // "mock", "ollama" or "vertex"
	OllamaURL    string
	OllamaModel  string
	GCPProjectID string
	GCPLocation  string
	ModelName    string

	StorageBackend string // "memory", "sqlite" or "firestore"
	SQLitePath     string

	ClassifierURL     string // zero-shot endpoint; empty means rule-based only
	ClassifierToken   string
	GeocoderURL       string // empty disables geocoding
	GeocoderUserAgent string

	ExtractTimeout  time.Duration
	ClassifyTimeout time.Duration
	GeocodeTimeout  time.Duration
	RetryAttempts   int
	RetryBackoff    time.Duration
}

// NewViper returns a viper instance reading RESQ_* env vars and an optional resq.yaml.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("RESQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetConfigName("resq")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(ModeLocal))
	v.SetDefault("port", "3001")
	v.SetDefault("log.level", "info")
	v.SetDefault("public_url", "")
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", "gemini-2.5-flash-lite")
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.model", "neural-chat")
	v.SetDefault("gcp.project", "")
	v.SetDefault("gcp.location", "us-central1")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("sqlite.path", "emergency_calls.db")
	v.SetDefault("classifier.url", "")
	v.SetDefault("classifier.token", "")
	v.SetDefault("geocoder.url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "RESQ-AI-112-Dispatch/1.0")
	v.SetDefault("timeouts.extract", 30*time.Second)
	v.SetDefault("timeouts.classify", 10*time.Second)
	v.SetDefault("timeouts.geocode", 5*time.Second)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.backoff", time.Second)
}

// Load reads the config file (if any) and env vars and builds the config.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	mode := ModeLocal
	if strings.EqualFold(v.GetString("mode"), string(ModeGCP)) {
		mode = ModeGCP
	}

	cfg := &Config{
		Mode: mode,

		Port:      v.GetString("port"),
		LogLevel:  v.GetString("log.level"),
		PublicURL: strings.TrimRight(v.GetString("public_url"), "/"),

		LLMProvider:  strings.ToLower(v.GetString("llm.provider")),
		OllamaURL:    v.GetString("ollama.url"),
		OllamaModel:  v.GetString("ollama.model"),
		GCPProjectID: v.GetString("gcp.project"),
		GCPLocation:  v.GetString("gcp.location"),
		ModelName:    v.GetString("llm.model"),

		StorageBackend: strings.ToLower(v.GetString("storage.backend")),
		SQLitePath:     v.GetString("sqlite.path"),

		ClassifierURL:     v.GetString("classifier.url"),
		ClassifierToken:   v.GetString("classifier.token"),
		GeocoderURL:       v.GetString("geocoder.url"),
		GeocoderUserAgent: v.GetString("geocoder.user_agent"),

		ExtractTimeout:  v.GetDuration("timeouts.extract"),
		ClassifyTimeout: v.GetDuration("timeouts.classify"),
		GeocodeTimeout:  v.GetDuration("timeouts.geocode"),
		RetryAttempts:   v.GetInt("retry.attempts"),
		RetryBackoff:    v.GetDuration("retry.backoff"),
	}

	// local runs talk to the mock unless told otherwise
	if cfg.LLMProvider == "" {
		if mode == ModeGCP {
			cfg.LLMProvider = "vertex"
		} else {
			cfg.LLMProvider = "mock"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combinations the server cannot start without.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "mock", "ollama":
	case "vertex":
		if c.GCPProjectID == "" {
			return fmt.Errorf("gcp.project must be set for the vertex llm provider")
		}
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLMProvider)
	}
	switch c.StorageBackend {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite.path must be set for the sqlite storage backend")
		}
	case "firestore":
		if c.GCPProjectID == "" {
			return fmt.Errorf("gcp.project must be set for the firestore storage backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.StorageBackend)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1")
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}
