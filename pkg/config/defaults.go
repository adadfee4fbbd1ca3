package config

// Default values applied to any config whose fields are unset.
const (
	DefaultListen = ":8080"

	DefaultStorageDriver = "sqlite"
	DefaultMemoryDriver  = "sqlitevec"

	DefaultProvider      = "ollama"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOllamaBaseURL = "http://localhost:11434"

	DefaultEmbeddingProvider   = "ollama"
	DefaultEmbeddingModel      = "nomic-embed-text"
	DefaultEmbeddingDimensions = 768
	DefaultCacheTTLSeconds     = 300
	DefaultCacheMaxEntries     = 1000

	DefaultRetrievalLimit = 5
	DefaultPoolSize       = 20

	DefaultTokenBudget     = 4000
	DefaultResponseReserve = 100
	DefaultDocBudget       = 2000

	DefaultBreakerMaxFailures = 5
	DefaultBreakerWindow      = 60
	DefaultBreakerCooldown    = 30

	DefaultQdrantHost       = "localhost"
	DefaultQdrantPort       = 6334
	DefaultQdrantCollection = "spool_facts"

	DefaultAPITarget = "http://localhost:8080"
)

// Default fusion weights. Semantic similarity carries the larger share.
const (
	DefaultSemanticWeight = 0.6
	DefaultKeywordWeight  = 0.4
)

// NewDefaultConfig returns a Config populated with all default values.
func NewDefaultConfig() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

// applyDefaults fills any zero-valued fields with defaults. It runs on every
// load so configs written by older versions pick up new fields.
func applyDefaults(c *Config) {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Memory.Driver == "" {
		c.Memory.Driver = DefaultMemoryDriver
	}
	if c.Memory.QdrantHost == "" {
		c.Memory.QdrantHost = DefaultQdrantHost
	}
	if c.Memory.QdrantPort == 0 {
		c.Memory.QdrantPort = DefaultQdrantPort
	}
	if c.Memory.Collection == "" {
		c.Memory.Collection = DefaultQdrantCollection
	}
	if c.Providers.Default == "" {
		c.Providers.Default = DefaultProvider
	}
	if c.Providers.OpenAI.BaseURL == "" {
		c.Providers.OpenAI.BaseURL = DefaultOpenAIBaseURL
	}
	if c.Providers.Ollama.BaseURL == "" {
		c.Providers.Ollama.BaseURL = DefaultOllamaBaseURL
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = DefaultEmbeddingProvider
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = DefaultEmbeddingModel
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = DefaultEmbeddingDimensions
	}
	if c.Embedding.CacheTTLSeconds == 0 {
		c.Embedding.CacheTTLSeconds = DefaultCacheTTLSeconds
	}
	if c.Embedding.CacheMaxEntries == 0 {
		c.Embedding.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if c.Retrieval.Limit == 0 {
		c.Retrieval.Limit = DefaultRetrievalLimit
	}
	if c.Retrieval.PoolSize == 0 {
		c.Retrieval.PoolSize = DefaultPoolSize
	}
	if c.Retrieval.SemanticWeight == 0 {
		c.Retrieval.SemanticWeight = DefaultSemanticWeight
	}
	if c.Retrieval.KeywordWeight == 0 {
		c.Retrieval.KeywordWeight = DefaultKeywordWeight
	}
	if c.Context.TokenBudget == 0 {
		c.Context.TokenBudget = DefaultTokenBudget
	}
	if c.Context.ResponseReserve == 0 {
		c.Context.ResponseReserve = DefaultResponseReserve
	}
	if c.Context.DocBudget == 0 {
		c.Context.DocBudget = DefaultDocBudget
	}
	if c.Breaker.MaxFailures == 0 {
		c.Breaker.MaxFailures = DefaultBreakerMaxFailures
	}
	if c.Breaker.WindowSeconds == 0 {
		c.Breaker.WindowSeconds = DefaultBreakerWindow
	}
	if c.Breaker.CooldownSeconds == 0 {
		c.Breaker.CooldownSeconds = DefaultBreakerCooldown
	}
	if c.Client.APITarget == "" {
		c.Client.APITarget = DefaultAPITarget
	}
}
