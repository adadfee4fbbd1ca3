package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent spool configuration stored as config.toml
// in the .spool/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Memory    MemoryConfig    `toml:"memory"`
	Providers ProvidersConfig `toml:"providers"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Context   ContextConfig   `toml:"context"`
	Breaker   BreakerConfig   `toml:"breaker"`
	Client    ClientConfig    `toml:"client"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig holds message store settings.
type StorageConfig struct {
	// Driver selects the message store backend: sqlite, postgres or inmemory.
	Driver       string `toml:"driver,omitempty"`
	SQLitePath   string `toml:"sqlite_path,omitempty"`
	PostgresConn string `toml:"postgres_conn,omitempty"`
}

// MemoryConfig holds fact store settings.
type MemoryConfig struct {
	// Driver selects the fact store backend: sqlitevec, qdrant or inmemory.
	Driver     string `toml:"driver,omitempty"`
	Enabled    bool   `toml:"enabled,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
	IndexPath  string `toml:"index_path,omitempty"`
	QdrantHost string `toml:"qdrant_host,omitempty"`
	QdrantPort int    `toml:"qdrant_port,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// ProvidersConfig holds per-provider client settings.
type ProvidersConfig struct {
	// Default is the provider used when a model has no provider prefix.
	Default string               `toml:"default,omitempty"`
	OpenAI  OpenAIProviderConfig `toml:"openai"`
	Ollama  OllamaProviderConfig `toml:"ollama"`
}

// OpenAIProviderConfig holds OpenAI-compatible provider settings.
type OpenAIProviderConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
	APIKey  string `toml:"api_key,omitempty"`
}

// OllamaProviderConfig holds Ollama provider settings.
type OllamaProviderConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
}

// EmbeddingConfig holds embedding provider and cache settings.
type EmbeddingConfig struct {
	Provider        string `toml:"provider,omitempty"`
	Target          string `toml:"target,omitempty"`
	Model           string `toml:"model,omitempty"`
	Dimensions      uint   `toml:"dimensions,omitempty"`
	CacheTTLSeconds int    `toml:"cache_ttl_seconds,omitempty"`
	CacheMaxEntries int    `toml:"cache_max_entries,omitempty"`
}

// RetrievalConfig holds hybrid search settings.
type RetrievalConfig struct {
	Limit          int     `toml:"limit,omitempty"`
	PoolSize       int     `toml:"pool_size,omitempty"`
	SemanticWeight float64 `toml:"semantic_weight,omitempty"`
	KeywordWeight  float64 `toml:"keyword_weight,omitempty"`
	MinConfidence  float64 `toml:"min_confidence,omitempty"`
}

// ContextConfig holds context assembly settings.
type ContextConfig struct {
	TokenBudget     int `toml:"token_budget,omitempty"`
	ResponseReserve int `toml:"response_reserve,omitempty"`
	DocBudget       int `toml:"doc_budget,omitempty"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	MaxFailures     int `toml:"max_failures,omitempty"`
	WindowSeconds   int `toml:"window_seconds,omitempty"`
	CooldownSeconds int `toml:"cooldown_seconds,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// API server (e.g. spool chat, spool search). Values are full URLs
// (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func intKey(get func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *get(c) == 0 {
				return ""
			}
			return strconv.Itoa(*get(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer value: %w", err)
			}
			*get(c) = n
			return nil
		},
	}
}

func floatKey(get func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *get(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*get(c), 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %w", err)
			}
			*get(c) = f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_conn": {
		get: func(c *Config) string { return c.Storage.PostgresConn },
		set: func(c *Config, v string) error { c.Storage.PostgresConn = v; return nil },
	},
	"memory.driver": {
		get: func(c *Config) string { return c.Memory.Driver },
		set: func(c *Config, v string) error { c.Memory.Driver = v; return nil },
	},
	"memory.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Memory.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for memory.enabled: %w", err)
			}
			c.Memory.Enabled = b
			return nil
		},
	},
	"memory.sqlite_path": {
		get: func(c *Config) string { return c.Memory.SQLitePath },
		set: func(c *Config, v string) error { c.Memory.SQLitePath = v; return nil },
	},
	"memory.index_path": {
		get: func(c *Config) string { return c.Memory.IndexPath },
		set: func(c *Config, v string) error { c.Memory.IndexPath = v; return nil },
	},
	"memory.qdrant_host": {
		get: func(c *Config) string { return c.Memory.QdrantHost },
		set: func(c *Config, v string) error { c.Memory.QdrantHost = v; return nil },
	},
	"memory.qdrant_port": intKey(func(c *Config) *int { return &c.Memory.QdrantPort }),
	"memory.collection": {
		get: func(c *Config) string { return c.Memory.Collection },
		set: func(c *Config, v string) error { c.Memory.Collection = v; return nil },
	},
	"providers.default": {
		get: func(c *Config) string { return c.Providers.Default },
		set: func(c *Config, v string) error { c.Providers.Default = v; return nil },
	},
	"providers.openai.base_url": {
		get: func(c *Config) string { return c.Providers.OpenAI.BaseURL },
		set: func(c *Config, v string) error { c.Providers.OpenAI.BaseURL = v; return nil },
	},
	"providers.openai.api_key": {
		get: func(c *Config) string { return c.Providers.OpenAI.APIKey },
		set: func(c *Config, v string) error { c.Providers.OpenAI.APIKey = v; return nil },
	},
	"providers.ollama.base_url": {
		get: func(c *Config) string { return c.Providers.Ollama.BaseURL },
		set: func(c *Config, v string) error { c.Providers.Ollama.BaseURL = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"embedding.cache_ttl_seconds": intKey(func(c *Config) *int { return &c.Embedding.CacheTTLSeconds }),
	"embedding.cache_max_entries": intKey(func(c *Config) *int { return &c.Embedding.CacheMaxEntries }),
	"retrieval.limit":             intKey(func(c *Config) *int { return &c.Retrieval.Limit }),
	"retrieval.pool_size":         intKey(func(c *Config) *int { return &c.Retrieval.PoolSize }),
	"retrieval.semantic_weight":   floatKey(func(c *Config) *float64 { return &c.Retrieval.SemanticWeight }),
	"retrieval.keyword_weight":    floatKey(func(c *Config) *float64 { return &c.Retrieval.KeywordWeight }),
	"retrieval.min_confidence":    floatKey(func(c *Config) *float64 { return &c.Retrieval.MinConfidence }),
	"context.token_budget":        intKey(func(c *Config) *int { return &c.Context.TokenBudget }),
	"context.response_reserve":    intKey(func(c *Config) *int { return &c.Context.ResponseReserve }),
	"context.doc_budget":          intKey(func(c *Config) *int { return &c.Context.DocBudget }),
	"breaker.max_failures":        intKey(func(c *Config) *int { return &c.Breaker.MaxFailures }),
	"breaker.window_seconds":      intKey(func(c *Config) *int { return &c.Breaker.WindowSeconds }),
	"breaker.cooldown_seconds":    intKey(func(c *Config) *int { return &c.Breaker.CooldownSeconds }),
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
}
