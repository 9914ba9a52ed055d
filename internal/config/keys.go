package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "VOICECHECK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "VOICECHECK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "VOICECHECK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "provider.endpoint", typ: kString, env: "VOICECHECK_PROVIDER_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Provider.Endpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Endpoint },
	},
	{
		key: "provider.voice", typ: kString, env: "VOICECHECK_PROVIDER_VOICE",
		apply:   func(cfg *Config, v any) { cfg.Provider.Voice = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Voice },
	},
	{
		key: "provider.max_duration", typ: kInt, env: "VOICECHECK_PROVIDER_MAX_DURATION",
		apply:   func(cfg *Config, v any) { cfg.Provider.MaxDuration = v.(int) },
		extract: func(cfg Config) any { return cfg.Provider.MaxDuration },
	},
	{
		key: "provider.api_key", typ: kString, env: "VOICECHECK_PROVIDER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Provider.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.APIKey },
	},
	{
		key: "campaign.language", typ: kString, env: "VOICECHECK_CAMPAIGN_LANGUAGE",
		apply:   func(cfg *Config, v any) { cfg.Campaign.Language = v.(string) },
		extract: func(cfg Config) any { return cfg.Campaign.Language },
	},
	{
		key: "campaign.first_sentence", typ: kString, env: "VOICECHECK_CAMPAIGN_FIRST_SENTENCE",
		apply:   func(cfg *Config, v any) { cfg.Campaign.FirstSentence = v.(string) },
		extract: func(cfg Config) any { return cfg.Campaign.FirstSentence },
	},
	{
		key: "campaign.poll_attempts", typ: kInt, env: "VOICECHECK_CAMPAIGN_POLL_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Campaign.PollAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Campaign.PollAttempts },
	},
	{
		key: "campaign.poll_interval", typ: kString, env: "VOICECHECK_CAMPAIGN_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Campaign.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Campaign.PollInterval },
	},
	{
		key: "classifier.backend", typ: kString, env: "VOICECHECK_CLASSIFIER_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Classifier.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Classifier.Backend },
	},
	{
		key: "classifier.base_url", typ: kString, env: "VOICECHECK_CLASSIFIER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Classifier.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Classifier.BaseURL },
	},
	{
		key: "classifier.model", typ: kString, env: "VOICECHECK_CLASSIFIER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Classifier.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Classifier.Model },
	},
	{
		key: "classifier.api_key", typ: kString, env: "VOICECHECK_CLASSIFIER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Classifier.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Classifier.APIKey },
	},
	{
		key: "ollama.base_url", typ: kString, env: "VOICECHECK_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "VOICECHECK_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func envFor(key string) string {
	s, _ := lookupSpec(key)
	return s.env
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
