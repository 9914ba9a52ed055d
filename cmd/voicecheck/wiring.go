package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kalambet/voicecheck/internal/bland"
	"github.com/kalambet/voicecheck/internal/campaign"
	"github.com/kalambet/voicecheck/internal/classifier"
	"github.com/kalambet/voicecheck/internal/config"
	"github.com/kalambet/voicecheck/internal/llm"
	"github.com/kalambet/voicecheck/internal/prompt"
	"github.com/kalambet/voicecheck/internal/storage"
)

func setupLogging(cfg config.Config) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}

// newChatter returns the classifier backend. For Ollama it makes sure the
// model is present first, reporting progress to progress.
func newChatter(ctx context.Context, cfg config.Config, progress io.Writer) (llm.Chatter, error) {
	switch cfg.Classifier.Backend {
	case config.BackendOllama:
		c := llm.NewOllamaClient(cfg.Ollama.BaseURL)
		if err := llm.EnsureOllamaModel(ctx, c, cfg.Ollama.Model, progress); err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendOpenAI:
		return llm.NewOpenAIClient(cfg.Classifier.APIKey, cfg.Classifier.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Classifier.Backend)
	}
}

// newOrchestrator wires the call provider, classifier and store into a
// campaign orchestrator.
func newOrchestrator(ctx context.Context, cfg config.Config, store *storage.Store, logger *slog.Logger) (*campaign.Orchestrator, error) {
	interval, err := cfg.Campaign.Interval()
	if err != nil {
		return nil, err
	}

	chatter, err := newChatter(ctx, cfg, os.Stderr)
	if err != nil {
		return nil, err
	}

	provider := bland.New(bland.Config{
		APIKey:      cfg.Provider.APIKey,
		Endpoint:    cfg.Provider.Endpoint,
		Voice:       cfg.Provider.Voice,
		MaxDuration: cfg.Provider.MaxDuration,
	})

	return campaign.New(provider, classifier.New(chatter, cfg.ClassifierModel(), logger), store, campaign.Options{
		PollAttempts:  cfg.Campaign.PollAttempts,
		PollInterval:  interval,
		FirstSentence: cfg.Campaign.FirstSentence,
		Language:      cfg.Campaign.Language,
		Task:          prompt.BuildTask,
		Logger:        logger,
	}), nil
}

// openStore loads config without validation and opens the database.
func openStore() (*storage.Store, config.Config, error) {
	cfg, err := config.LoadUnchecked()
	if err != nil {
		return nil, config.Config{}, err
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("opening storage: %w", err)
	}
	return store, cfg, nil
}
