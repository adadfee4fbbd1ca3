// Package servecmder provides the serve command for running the API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inkwellco/spool/api"
	"github.com/inkwellco/spool/pkg/breaker"
	"github.com/inkwellco/spool/pkg/config"
	"github.com/inkwellco/spool/pkg/contextbuilder"
	"github.com/inkwellco/spool/pkg/docs"
	"github.com/inkwellco/spool/pkg/embeddings"
	"github.com/inkwellco/spool/pkg/embeddings/cache"
	ollamaembed "github.com/inkwellco/spool/pkg/embeddings/ollama"
	openaiembed "github.com/inkwellco/spool/pkg/embeddings/openai"
	"github.com/inkwellco/spool/pkg/logger"
	"github.com/inkwellco/spool/pkg/memory"
	memoryinmem "github.com/inkwellco/spool/pkg/memory/inmemory"
	"github.com/inkwellco/spool/pkg/memory/qdrant"
	"github.com/inkwellco/spool/pkg/memory/sqlitevec"
	"github.com/inkwellco/spool/pkg/provider"
	"github.com/inkwellco/spool/pkg/provider/ollama"
	"github.com/inkwellco/spool/pkg/provider/openai"
	"github.com/inkwellco/spool/pkg/search"
	"github.com/inkwellco/spool/pkg/storage"
	storageinmem "github.com/inkwellco/spool/pkg/storage/inmemory"
	"github.com/inkwellco/spool/pkg/storage/postgres"
	"github.com/inkwellco/spool/pkg/storage/sqlite"
)

type ServeCommander struct {
	cfg     *config.Config
	dataDir string
	debug   bool
	logger  *zap.Logger
}

const serveLongDesc string = `Run the Spool API server.

The server exposes chat, hybrid search and model listing over HTTP.
Configuration comes from .spool/config.toml, overridable with SPOOL_
environment variables and flags.

Examples:
  spool serve
  spool serve --listen :9090
  spool serve --storage-driver inmemory --memory-driver inmemory`

const serveShortDesc string = "Run the Spool API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.InitViper(v, cfg)
			cmder.cfg = config.FromViper(v)
			cmder.dataDir = cfger.GetTarget()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.RegisterServeFlags(cmd, v)

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	ctx := context.Background()

	storer, err := c.createStorer(ctx)
	if err != nil {
		return err
	}
	defer storer.Close()

	var store memory.Store
	var searcher *search.Searcher
	if c.cfg.Memory.Enabled {
		store, err = c.createMemoryStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		embedder, err := c.createEmbedder()
		if err != nil {
			return err
		}

		embedCache := cache.New(cache.Config{
			TTL:        time.Duration(c.cfg.Embedding.CacheTTLSeconds) * time.Second,
			MaxEntries: c.cfg.Embedding.CacheMaxEntries,
			Logger:     c.logger,
		})
		cachingEmbedder := cache.NewCachingEmbedder(embedder, embedCache)

		searcher = search.NewSearcher(search.Config{
			Embedder: cachingEmbedder,
			Store:    store,
			PoolSize: c.cfg.Retrieval.PoolSize,
			Logger:   c.logger,
		})
	} else {
		c.logger.Info("fact memory disabled, chat runs without retrieval")
	}

	retriever := docs.NewMemoryRetriever(c.logger)

	assembler := contextbuilder.NewAssembler(contextbuilder.Config{
		Searcher:  searcher,
		Store:     store,
		Messages:  storer,
		Retriever: retriever,
		SearchOptions: search.Options{
			Limit:          c.cfg.Retrieval.Limit,
			SemanticWeight: c.cfg.Retrieval.SemanticWeight,
			KeywordWeight:  c.cfg.Retrieval.KeywordWeight,
			MinConfidence:  c.cfg.Retrieval.MinConfidence,
		},
		TokenBudget:     c.cfg.Context.TokenBudget,
		ResponseReserve: c.cfg.Context.ResponseReserve,
		DocBudget:       c.cfg.Context.DocBudget,
		Logger:          c.logger,
	})

	breakers := breaker.NewSet(breaker.Config{
		MaxFailures: c.cfg.Breaker.MaxFailures,
		Window:      time.Duration(c.cfg.Breaker.WindowSeconds) * time.Second,
		Cooldown:    time.Duration(c.cfg.Breaker.CooldownSeconds) * time.Second,
		Logger:      c.logger,
	})

	router, err := provider.NewRouter(provider.RouterConfig{
		Clients: []provider.Client{
			ollama.New(ollama.Config{
				BaseURL: c.cfg.Providers.Ollama.BaseURL,
				Logger:  c.logger,
			}),
			openai.New(openai.Config{
				BaseURL: c.cfg.Providers.OpenAI.BaseURL,
				APIKey:  c.cfg.Providers.OpenAI.APIKey,
				Logger:  c.logger,
			}),
		},
		Default:  c.cfg.Providers.Default,
		Breakers: breakers,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating provider router: %w", err)
	}
	defer router.Close()

	apiServer := api.NewServer(api.Config{
		ListenAddr: c.cfg.Server.Listen,
		Router:     router,
		Assembler:  assembler,
		Searcher:   searcher,
		Storer:     storer,
		Documents:  retriever,
	}, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	}
}

func (c *ServeCommander) createStorer(ctx context.Context) (storage.Driver, error) {
	switch c.cfg.Storage.Driver {
	case "sqlite":
		path := c.cfg.Storage.SQLitePath
		if path == "" {
			path = filepath.Join(c.dataDir, "spool.db")
		}
		storer, err := sqlite.NewSQLiteDriver(path)
		if err != nil {
			return nil, fmt.Errorf("creating SQLite message store: %w", err)
		}
		c.logger.Info("using SQLite message storage", zap.String("path", path))
		return storer, nil

	case "postgres":
		storer, err := postgres.NewDriver(ctx, c.cfg.Storage.PostgresConn)
		if err != nil {
			return nil, fmt.Errorf("creating Postgres message store: %w", err)
		}
		c.logger.Info("using Postgres message storage")
		return storer, nil

	case "inmemory":
		c.logger.Info("using in-memory message storage")
		return storageinmem.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.cfg.Storage.Driver)
	}
}

func (c *ServeCommander) createMemoryStore(ctx context.Context) (memory.Store, error) {
	switch c.cfg.Memory.Driver {
	case "sqlitevec":
		path := c.cfg.Memory.SQLitePath
		if path == "" {
			path = filepath.Join(c.dataDir, "facts.db")
		}
		store, err := sqlitevec.NewStore(sqlitevec.Config{
			DBPath:     path,
			IndexPath:  c.cfg.Memory.IndexPath,
			Dimensions: c.cfg.Embedding.Dimensions,
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite-vec fact store: %w", err)
		}
		c.logger.Info("using sqlite-vec fact storage",
			zap.String("path", path),
		)
		return store, nil

	case "qdrant":
		store, err := qdrant.NewStore(ctx, qdrant.Config{
			Host:       c.cfg.Memory.QdrantHost,
			Port:       c.cfg.Memory.QdrantPort,
			Collection: c.cfg.Memory.Collection,
			IndexPath:  c.cfg.Memory.IndexPath,
			Dimensions: c.cfg.Embedding.Dimensions,
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating qdrant fact store: %w", err)
		}
		c.logger.Info("using qdrant fact storage",
			zap.String("host", c.cfg.Memory.QdrantHost),
			zap.Int("port", c.cfg.Memory.QdrantPort),
		)
		return store, nil

	case "inmemory":
		c.logger.Info("using in-memory fact storage")
		return memoryinmem.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown memory driver %q", c.cfg.Memory.Driver)
	}
}

func (c *ServeCommander) createEmbedder() (embeddings.Embedder, error) {
	switch c.cfg.Embedding.Provider {
	case "ollama":
		return ollamaembed.NewEmbedder(ollamaembed.EmbedderConfig{
			BaseURL: c.cfg.Embedding.Target,
			Model:   c.cfg.Embedding.Model,
		})

	case "openai":
		return openaiembed.NewEmbedder(openaiembed.EmbedderConfig{
			BaseURL: c.cfg.Embedding.Target,
			APIKey:  c.cfg.Providers.OpenAI.APIKey,
			Model:   c.cfg.Embedding.Model,
		})

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", c.cfg.Embedding.Provider)
	}
}
