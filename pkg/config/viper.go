package config

import (
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment variable overrides. The key
// "providers.openai.api_key" maps to SPOOL_PROVIDERS_OPENAI_API_KEY.
const envPrefix = "SPOOL"

// InitViper seeds a viper instance with the loaded config and wires up
// environment variable overrides. Precedence is env > config file > defaults.
func InitViper(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.listen", cfg.Server.Listen)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("storage.postgres_conn", cfg.Storage.PostgresConn)
	v.SetDefault("memory.driver", cfg.Memory.Driver)
	v.SetDefault("memory.enabled", cfg.Memory.Enabled)
	v.SetDefault("memory.sqlite_path", cfg.Memory.SQLitePath)
	v.SetDefault("memory.index_path", cfg.Memory.IndexPath)
	v.SetDefault("memory.qdrant_host", cfg.Memory.QdrantHost)
	v.SetDefault("memory.qdrant_port", cfg.Memory.QdrantPort)
	v.SetDefault("memory.collection", cfg.Memory.Collection)
	v.SetDefault("providers.default", cfg.Providers.Default)
	v.SetDefault("providers.openai.base_url", cfg.Providers.OpenAI.BaseURL)
	v.SetDefault("providers.openai.api_key", cfg.Providers.OpenAI.APIKey)
	v.SetDefault("providers.ollama.base_url", cfg.Providers.Ollama.BaseURL)
	v.SetDefault("embedding.provider", cfg.Embedding.Provider)
	v.SetDefault("embedding.target", cfg.Embedding.Target)
	v.SetDefault("embedding.model", cfg.Embedding.Model)
	v.SetDefault("embedding.dimensions", cfg.Embedding.Dimensions)
	v.SetDefault("embedding.cache_ttl_seconds", cfg.Embedding.CacheTTLSeconds)
	v.SetDefault("embedding.cache_max_entries", cfg.Embedding.CacheMaxEntries)
	v.SetDefault("retrieval.limit", cfg.Retrieval.Limit)
	v.SetDefault("retrieval.pool_size", cfg.Retrieval.PoolSize)
	v.SetDefault("retrieval.semantic_weight", cfg.Retrieval.SemanticWeight)
	v.SetDefault("retrieval.keyword_weight", cfg.Retrieval.KeywordWeight)
	v.SetDefault("retrieval.min_confidence", cfg.Retrieval.MinConfidence)
	v.SetDefault("context.token_budget", cfg.Context.TokenBudget)
	v.SetDefault("context.response_reserve", cfg.Context.ResponseReserve)
	v.SetDefault("context.doc_budget", cfg.Context.DocBudget)
	v.SetDefault("breaker.max_failures", cfg.Breaker.MaxFailures)
	v.SetDefault("breaker.window_seconds", cfg.Breaker.WindowSeconds)
	v.SetDefault("breaker.cooldown_seconds", cfg.Breaker.CooldownSeconds)
	v.SetDefault("client.api_target", cfg.Client.APITarget)
}

// FromViper materializes a Config from a viper instance previously seeded by
// InitViper, so environment overrides appear in the resulting struct.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Listen: v.GetString("server.listen"),
		},
		Storage: StorageConfig{
			Driver:       v.GetString("storage.driver"),
			SQLitePath:   v.GetString("storage.sqlite_path"),
			PostgresConn: v.GetString("storage.postgres_conn"),
		},
		Memory: MemoryConfig{
			Driver:     v.GetString("memory.driver"),
			Enabled:    v.GetBool("memory.enabled"),
			SQLitePath: v.GetString("memory.sqlite_path"),
			IndexPath:  v.GetString("memory.index_path"),
			QdrantHost: v.GetString("memory.qdrant_host"),
			QdrantPort: v.GetInt("memory.qdrant_port"),
			Collection: v.GetString("memory.collection"),
		},
		Providers: ProvidersConfig{
			Default: v.GetString("providers.default"),
			OpenAI: OpenAIProviderConfig{
				BaseURL: v.GetString("providers.openai.base_url"),
				APIKey:  v.GetString("providers.openai.api_key"),
			},
			Ollama: OllamaProviderConfig{
				BaseURL: v.GetString("providers.ollama.base_url"),
			},
		},
		Embedding: EmbeddingConfig{
			Provider:        v.GetString("embedding.provider"),
			Target:          v.GetString("embedding.target"),
			Model:           v.GetString("embedding.model"),
			Dimensions:      v.GetUint("embedding.dimensions"),
			CacheTTLSeconds: v.GetInt("embedding.cache_ttl_seconds"),
			CacheMaxEntries: v.GetInt("embedding.cache_max_entries"),
		},
		Retrieval: RetrievalConfig{
			Limit:          v.GetInt("retrieval.limit"),
			PoolSize:       v.GetInt("retrieval.pool_size"),
			SemanticWeight: v.GetFloat64("retrieval.semantic_weight"),
			KeywordWeight:  v.GetFloat64("retrieval.keyword_weight"),
			MinConfidence:  v.GetFloat64("retrieval.min_confidence"),
		},
		Context: ContextConfig{
			TokenBudget:     v.GetInt("context.token_budget"),
			ResponseReserve: v.GetInt("context.response_reserve"),
			DocBudget:       v.GetInt("context.doc_budget"),
		},
		Breaker: BreakerConfig{
			MaxFailures:     v.GetInt("breaker.max_failures"),
			WindowSeconds:   v.GetInt("breaker.window_seconds"),
			CooldownSeconds: v.GetInt("breaker.cooldown_seconds"),
		},
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
	}
	applyDefaults(cfg)
	return cfg
}
