package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"confagent/internal/audio"
	"confagent/internal/config"
	"confagent/internal/glossary"
	"confagent/internal/history"
	"confagent/internal/ports"
	"confagent/internal/providers/deepgram"
	"confagent/internal/summary"
	"confagent/internal/translate"
	"confagent/internal/usecase"
)

// Core is the part of the graph that needs no microphone or UI. The CLI
// runs on it directly.
type Core struct {
	Config     config.Config
	Glossary   glossary.Glossary
	Translator *translate.Chain
	Summarizer *summary.Summarizer
	History    *history.Store
	Index      *history.SQLiteIndex
	Logger     *log.Logger
}

// Close releases the search index.
func (c Core) Close() error {
	if c.Index == nil {
		return nil
	}
	return c.Index.Close()
}

// Services is the assembled desktop runtime graph.
type Services struct {
	Core
	Controller *usecase.SessionController
}

// Close stops background work and releases storage handles.
func (s Services) Close() error {
	if s.Controller != nil {
		s.Controller.Shutdown()
	}
	return s.Core.Close()
}

// BuildCore loads configuration and wires translation, summaries and
// history. A broken glossary or search index is logged and skipped.
func BuildCore(logger *log.Logger, opts ...config.Option) (Core, error) {
	if logger == nil {
		logger = log.Default()
	}

	cfg, err := config.Load(append([]config.Option{config.WithLogger(logger)}, opts...)...)
	if err != nil {
		return Core{}, err
	}

	terms, err := glossary.Load(cfg.Translation.GlossaryFile)
	if err != nil {
		logger.Printf("[BOOTSTRAP]: glossary %s not loaded: %v", cfg.Translation.GlossaryFile, err)
		terms = glossary.New()
	}

	chain := translate.NewChain(
		cfg.Translation.Target,
		translationProviders(cfg),
		translate.WithGlossary(terms),
		translate.WithLogger(logger),
	)

	summarizer := summary.NewSummarizer(summary.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.SummaryModel,
	})

	storeOpts := []history.Option{history.WithLogger(logger)}
	var index *history.SQLiteIndex
	if err := os.MkdirAll(cfg.History.Dir, 0o755); err != nil {
		return Core{}, fmt.Errorf("create history dir: %w", err)
	}
	index, err = history.OpenSQLiteIndex(history.DefaultIndexPath(cfg.History.Dir))
	if err != nil {
		logger.Printf("[BOOTSTRAP]: search index unavailable: %v", err)
		index = nil
	} else {
		storeOpts = append(storeOpts, history.WithProjector(index))
	}

	store, err := history.Open(cfg.History.Dir, storeOpts...)
	if err != nil {
		if index != nil {
			_ = index.Close()
		}
		return Core{}, err
	}
	if index != nil {
		rebuilt, err := store.SyncProjection(context.Background())
		switch {
		case err != nil:
			logger.Printf("[BOOTSTRAP]: search index sync failed: %v", err)
		case rebuilt:
			logger.Printf("[BOOTSTRAP]: search index rebuilt from %s", store.Root())
		}
	}

	return Core{
		Config:     cfg,
		Glossary:   terms,
		Translator: chain,
		Summarizer: summarizer,
		History:    store,
		Index:      index,
		Logger:     logger,
	}, nil
}

// translationProviders orders the fallback chain: the LLM when a key is
// configured, then the keyless web services.
func translationProviders(cfg config.Config) []translate.Provider {
	var providers []translate.Provider
	if cfg.OpenAI.APIKey != "" {
		providers = append(providers, translate.NewLLMProvider(translate.LLMConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}))
	}
	if !cfg.Translation.DisableWeb {
		providers = append(providers,
			translate.NewGoogleProvider(translate.WebConfig{}),
			translate.NewMyMemoryProvider(translate.WebConfig{}),
		)
	}
	return providers
}

// Build wires all backend dependencies for the desktop app.
func Build(eventSink ports.EventSink, logger *log.Logger, opts ...config.Option) (Services, error) {
	if eventSink == nil {
		return Services{}, errors.New("event sink is required")
	}

	core, err := BuildCore(logger, opts...)
	if err != nil {
		return Services{}, err
	}
	cfg := core.Config

	languages := cfg.Translation.Languages
	defaultLanguage := "en-US"
	if len(languages) == 1 {
		defaultLanguage = languages[0]
	}

	controller := usecase.NewSessionController(
		usecase.Dependencies{
			Audio:    audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
			Recorder: audio.NewWAVRecorder(""),
			Provider: deepgram.NewProvider(deepgram.Config{
				APIKey:      cfg.Deepgram.APIKey,
				APIBaseURL:  cfg.Deepgram.APIBaseURL,
				Model:       cfg.Deepgram.Model,
				SmartFormat: cfg.Deepgram.SmartFormat,
				Languages:   languages,
			}),
			Translator: core.Translator,
			Summarizer: core.Summarizer,
			History:    core.History,
			Events:     eventSink,
			Logger:     core.Logger,
		},
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:    cfg.Audio.SampleRate,
				Channels:      cfg.Audio.Channels,
				InputFormat:   cfg.Audio.InputFormat,
				InputDevice:   cfg.Audio.InputDevice,
				MonitorDevice: cfg.Audio.MonitorDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				InterimResults: true,
			},
			ChunkSize:       cfg.Session.ChunkSize,
			StreamingGrace:  cfg.Session.StreamingGrace,
			DefaultLanguage: defaultLanguage,
			SummaryLanguage: translate.LanguageName(cfg.Translation.Target),
		},
	)

	return Services{Core: core, Controller: controller}, nil
}
