package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zotseek/zotseek/internal/config"
	"github.com/zotseek/zotseek/internal/db"
	"github.com/zotseek/zotseek/internal/embeddings"
	"github.com/zotseek/zotseek/internal/extract"
	"github.com/zotseek/zotseek/internal/fingerprint"
	"github.com/zotseek/zotseek/internal/indexer"
	"github.com/zotseek/zotseek/internal/jobs"
	"github.com/zotseek/zotseek/internal/search"
	"github.com/zotseek/zotseek/internal/vectordb"
	"github.com/zotseek/zotseek/internal/zotero"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w\nRun `zotseek init` to create a config file", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.Embedding.Model), cfg.Embedding.BaseURL), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.Dimensions, cfg.Embedding.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Embedding.Provider)
	}
}

// createClientFromConfig creates the Zotero client: a local connector
// client when zotero.local is set, the web API otherwise.
func createClientFromConfig(cfg *config.Config) *zotero.Client {
	if cfg.Zotero.Local {
		return zotero.NewLocalClient()
	}
	library := zotero.Library{ID: cfg.Zotero.LibraryID, Type: string(cfg.Zotero.LibraryType)}
	return zotero.NewClient(library, cfg.Zotero.APIKey)
}

// app bundles everything a command needs: the shared database, the vector
// store, and the engines built over them.
type app struct {
	cfg          *config.Config
	db           *db.DB
	client       *zotero.Client
	gateway      *embeddings.Gateway
	store        *vectordb.ChromemStore
	fingerprints *fingerprint.Store
	states       *indexer.StateStore
	syncer       *indexer.Engine
	scheduler    *indexer.Scheduler
	searcher     *search.Engine
	jobStore     *jobs.Store
	jobRunner    *jobs.Runner
}

// openApp wires the full application from config. Callers must Close it.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	gateway := embeddings.NewGateway(embedder,
		embeddings.WithMaxBatchSize(cfg.Index.BatchSize),
	)

	database, err := db.Open(filepath.Join(cfg.Index.DataDir, "zotseek.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store, err := vectordb.NewChromemStore(filepath.Join(cfg.Index.DataDir, "vectordb"), embedder)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	client := createClientFromConfig(cfg)
	fingerprints := fingerprint.NewStore(database)
	states := indexer.NewStateStore(database)
	jobStore := jobs.NewStore(database)

	a := &app{
		cfg:          cfg,
		db:           database,
		client:       client,
		gateway:      gateway,
		store:        store,
		fingerprints: fingerprints,
		states:       states,
		syncer: indexer.NewEngine(client, gateway, store, fingerprints,
			states, extract.NewRegistry(), cfg.Index),
		scheduler: indexer.NewScheduler(states, indexer.CadenceFromConfig(cfg.Update)),
		searcher:  search.NewEngine(gateway, store, client),
		jobStore:  jobStore,
		jobRunner: jobs.NewRunner(jobStore, client, client, cfg.Index.BatchSize),
	}
	return a, nil
}

func (a *app) Close() {
	a.db.Close()
}
