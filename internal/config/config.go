package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Log        LogConfig
	Provider   ProviderConfig
	Campaign   CampaignConfig
	Classifier ClassifierConfig
	Ollama     OllamaConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// ProviderConfig configures the outbound voice call API.
type ProviderConfig struct {
	Endpoint    string
	Voice       string
	MaxDuration int
	APIKey      string
}

type CampaignConfig struct {
	Language      string
	FirstSentence string
	PollAttempts  int
	PollInterval  string
}

// ClassifierConfig selects the LLM used to classify transcripts. Backend is
// "openai" or "ollama"; with "ollama" the Ollama section supplies the URL
// and model.
type ClassifierConfig struct {
	Backend string
	BaseURL string
	Model   string
	APIKey  string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"

	secretsService = "voicecheck"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Provider: ProviderConfig{
			Endpoint:    "https://api.bland.ai/v1/calls",
			Voice:       "e10f0745-ff46-4b37-9be1-34cbda38af91",
			MaxDuration: 12,
		},
		Campaign: CampaignConfig{
			Language:      "fr",
			FirstSentence: "Bonjour, je suis une assistante virtuelle de VoiceCheck AI.",
			PollAttempts:  60,
			PollInterval:  "5s",
		},
		Classifier: ClassifierConfig{
			Backend: BackendOpenAI,
			Model:   "gpt-3.5-turbo",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "mistral-nemo",
		},
	}
}

// Load reads configuration from the JSON file backend, environment
// variables and the secrets file, then validates it. The file lives at
// $XDG_CONFIG_HOME/voicecheck/config.json; VOICECHECK_* environment
// variables override it. API keys come from the environment or, failing
// that, from $XDG_DATA_HOME/voicecheck/secrets.json.
func Load() (Config, error) {
	cfg, err := loadWith(newFileBackend(), secretsFile{})
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadUnchecked is Load without validation, for commands that never place
// a call (import, export, summary, config show).
func LoadUnchecked() (Config, error) {
	return loadWith(newFileBackend(), secretsFile{})
}

// secretReader abstracts the secrets file for testing.
type secretReader interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, sr secretReader) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	for _, s := range specs {
		if !s.secret || s.extract(cfg).(string) != "" {
			continue
		}
		if v, err := sr.Get(secretsService, s.key); err == nil && v != "" {
			s.apply(&cfg, strings.TrimSpace(v))
		}
	}

	return cfg, nil
}

// Validate reports every problem that would stop a campaign from running.
func (c Config) Validate() error {
	var errs []error
	if c.Provider.APIKey == "" {
		errs = append(errs, fmt.Errorf("missing required config: voice provider API key. "+
			"Set it via environment variable %s or `voicecheck config set-secret provider.api_key`", envFor("provider.api_key")))
	}
	switch c.Classifier.Backend {
	case BackendOpenAI:
		if c.Classifier.APIKey == "" {
			errs = append(errs, fmt.Errorf("missing required config: classifier API key. "+
				"Set it via environment variable %s or `voicecheck config set-secret classifier.api_key`", envFor("classifier.api_key")))
		}
	case BackendOllama:
	default:
		errs = append(errs, fmt.Errorf("classifier.backend must be %q or %q, got %q", BackendOpenAI, BackendOllama, c.Classifier.Backend))
	}
	if c.Campaign.PollAttempts <= 0 {
		errs = append(errs, fmt.Errorf("campaign.poll_attempts must be positive, got %d", c.Campaign.PollAttempts))
	}
	if _, err := c.Campaign.Interval(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Interval parses PollInterval.
func (c CampaignConfig) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("campaign.poll_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("campaign.poll_interval must not be negative, got %s", d)
	}
	return d, nil
}

// SlogLevel maps Level to a slog level. Unknown values mean info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ClassifierModel returns the model name for the selected backend.
func (c Config) ClassifierModel() string {
	if c.Classifier.Backend == BackendOllama {
		return c.Ollama.Model
	}
	return c.Classifier.Model
}
