package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode `toml:"mode"`

	Port          string `toml:"port"`
	AllowedOrigin string `toml:"allowed_origin"`
	LogLevel      string `toml:"log_level"`

	GeminiAPIKey string `toml:"gemini_api_key"`
	GCPProjectID string `toml:"gcp_project"`
	GCPLocation  string `toml:"gcp_location"`
	ModelName    string `toml:"model_name"`

	Temperature      float32       `toml:"temperature"`
	GeneratorTimeout time.Duration `toml:"generator_timeout"`
	FlattenPrompt    bool          `toml:"flatten_prompt"`

	StorageBackend string `toml:"storage_backend"` // "memory", "firestore" or "sqlite"
	SQLitePath     string `toml:"sqlite_path"`
	UseMockLLM     bool   `toml:"use_mock_llm"` // true = use mock even on GCP

	LexiconFile string `toml:"lexicon_file"`
}

// Default returns the local-mode configuration.
func Default() *Config {
	return &Config{
		Mode:             ModeLocal,
		Port:             "8080",
		LogLevel:         "info",
		GCPLocation:      "us-central1",
		ModelName:        "gemini-2.5-flash",
		Temperature:      0.7,
		GeneratorTimeout: 20 * time.Second,
		StorageBackend:   "memory",
		SQLitePath:       "farum.db",
		UseMockLLM:       true,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getFloatEnv(key string, def float32) (float32, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return float32(f), nil
}

// Load builds the config from defaults, then FARUM_CONFIG_FILE (TOML) if
// set, then env vars.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("FARUM_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	switch getEnv("FARUM_MODE", string(cfg.Mode)) {
	case "gcp":
		cfg.Mode = ModeGCP
	default:
		cfg.Mode = ModeLocal
	}

	cfg.Port = getEnv("FARUM_PORT", getEnv("PORT", cfg.Port))
	cfg.AllowedOrigin = getEnv("FARUM_ALLOWED_ORIGIN", cfg.AllowedOrigin)
	cfg.LogLevel = getEnv("FARUM_LOG_LEVEL", cfg.LogLevel)

	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GCPProjectID = getEnv("FARUM_GCP_PROJECT", cfg.GCPProjectID)
	cfg.GCPLocation = getEnv("FARUM_GCP_LOCATION", cfg.GCPLocation)
	cfg.ModelName = getEnv("FARUM_MODEL_NAME", cfg.ModelName)
	cfg.FlattenPrompt = getBoolEnv("FARUM_FLATTEN_PROMPT", cfg.FlattenPrompt)

	var err error
	if cfg.Temperature, err = getFloatEnv("FARUM_TEMPERATURE", cfg.Temperature); err != nil {
		return nil, err
	}
	if cfg.GeneratorTimeout, err = getDurationEnv("FARUM_GENERATOR_TIMEOUT", cfg.GeneratorTimeout); err != nil {
		return nil, err
	}

	cfg.StorageBackend = getEnv("FARUM_STORAGE_BACKEND", cfg.StorageBackend)
	cfg.SQLitePath = getEnv("FARUM_SQLITE_PATH", cfg.SQLitePath)
	cfg.LexiconFile = getEnv("FARUM_LEXICON_FILE", cfg.LexiconFile)

	// Local mode defaults to the mock unless a Gemini key is present.
	cfg.UseMockLLM = getBoolEnv("FARUM_USE_MOCK_LLM", cfg.UseMockLLM && cfg.Mode == ModeLocal && cfg.GeminiAPIKey == "")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.Mode == ModeGCP && c.GCPProjectID == "" {
		return fmt.Errorf("FARUM_GCP_PROJECT must be set in gcp mode")
	}
	switch c.StorageBackend {
	case "memory", "sqlite":
	case "firestore":
		if c.GCPProjectID == "" {
			return fmt.Errorf("FARUM_GCP_PROJECT is required for Firestore storage backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if !c.UseMockLLM && c.GeminiAPIKey == "" && c.GCPProjectID == "" {
		return fmt.Errorf("GEMINI_API_KEY or FARUM_GCP_PROJECT is required unless FARUM_USE_MOCK_LLM=1")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", c.Temperature)
	}
	if c.GeneratorTimeout <= 0 {
		return fmt.Errorf("generator timeout must be positive")
	}
	return nil
}
