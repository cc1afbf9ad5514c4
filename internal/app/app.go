// Package app assembles the engine and services behind every driving
// adapter from the persisted settings.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/sercha-rag/internal/chunker"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/extractors"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// HomeDirName is the per-user directory holding config, prompts and data.
const HomeDirName = ".sercha-rag"

// Options controls where state lives.
type Options struct {
	// ConfigPath is the configuration file. Empty means ~/.sercha-rag/config.toml.
	ConfigPath string

	// Ephemeral keeps documents, vectors and the embedding cache in memory.
	Ephemeral bool

	// Ping checks provider reachability at startup and logs warnings.
	Ping bool
}

// App holds the assembled services.
type App struct {
	Settings        *domain.AppSettings
	SettingsService *services.SettingsService
	RAG             *services.RAGService
	Documents       *services.DocumentService

	closers []func() error
}

// baseDir returns the directory that holds the config file, prompts and data.
func (o Options) baseDir() (string, error) {
	if o.ConfigPath != "" {
		return filepath.Dir(o.ConfigPath), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, HomeDirName), nil
}

// LoadSettings opens the configuration file and loads .env files from the
// working directory and the config directory.
func LoadSettings(opts Options) (*services.SettingsService, error) {
	dir, err := opts.baseDir()
	if err != nil {
		return nil, err
	}
	if err := file.LoadDotEnv(".env", filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	path := opts.ConfigPath
	if path == "" {
		path = filepath.Join(dir, file.ConfigFile)
	}
	store, err := file.NewConfigStoreAt(path)
	if err != nil {
		return nil, fmt.Errorf("opening config %s: %w", path, err)
	}
	return services.NewSettingsService(store, ai.NewConfigValidator()), nil
}

// New builds the application. Close releases everything it opened.
func New(ctx context.Context, opts Options) (*App, error) {
	settingsService, err := LoadSettings(opts)
	if err != nil {
		return nil, err
	}
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	dir, err := opts.baseDir()
	if err != nil {
		return nil, err
	}

	a := &App{Settings: settings, SettingsService: settingsService}
	if err := a.build(ctx, opts, dir); err != nil {
		a.Close() //nolint:errcheck
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opts Options, dir string) error {
	settings := *a.Settings

	var (
		db       *sqlite.Store
		docStore driven.DocumentStore
		cache    driven.EmbeddingCache
	)
	if opts.Ephemeral {
		logger.Debug("Ephemeral run: documents and vectors are kept in memory")
		docStore = memory.NewDocumentStore()
		if settings.VectorStore.Backend == domain.VectorBackendSQLite || settings.VectorStore.Backend == "" {
			settings.VectorStore.Backend = domain.VectorBackendMemory
		}
		if settings.CacheEnabled {
			cache = memory.NewEmbeddingCache()
		}
	} else {
		store, err := sqlite.NewStore(filepath.Join(dir, "data"))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		db = store
		docStore = store.DocumentStore()
		if settings.CacheEnabled {
			cache = store.EmbeddingCache()
		}
	}

	embeddingLabel := providerLabel(settings.Embedding.Provider, settings.Embedding.Model)
	vectors, err := vectorstore.New(ctx, settings.VectorStore, embeddingLabel, db)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, vectors.Close)

	providers, err := ai.Init(ctx, settings, cache, opts.Ping)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		providers.Close()
		return nil
	})

	split, err := chunker.FromSettings(settings.Chunker)
	if err != nil {
		return err
	}

	prompts, err := file.NewPromptStore(filepath.Join(dir, "prompts"))
	if err != nil {
		return err
	}

	registry := extractors.NewRegistry()
	extractors.RegisterDefaults(registry, settings.PDFLicenseKey)

	engine, err := services.NewRAGService(services.EngineConfig{
		RAG:               settings.RAG,
		Retry:             settings.Retry,
		EmbeddingProvider: embeddingLabel,
		LLMProvider:       providerLabel(settings.LLM.Provider, settings.LLM.Model),
		VectorBackend:     string(settings.VectorStore.Backend),
		MaxTokens:         settings.LLM.MaxTokens,
		Temperature:       settings.LLM.Temperature,
	}, services.Dependencies{
		Chunker:   split,
		Embedder:  providers.EmbeddingService,
		LLM:       providers.LLMService,
		Vectors:   vectors,
		Documents: docStore,
		Prompts:   prompts,
	})
	if err != nil {
		return err
	}

	a.RAG = engine
	a.Documents = services.NewDocumentService(registry, docStore, engine, settings.MaxFileBytes)
	logger.Debug("Engine ready: embeddings %s, llm %s, vectors %s",
		settings.Embedding.Provider, settings.LLM.Provider, settings.VectorStore.Backend)
	return nil
}

// Close releases stores and provider clients in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func providerLabel(p domain.AIProvider, model string) string {
	if model == "" {
		return string(p)
	}
	return string(p) + "/" + model
}
