// Package config loads assistant configuration from yaml files and the
// environment.
package config

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sqlsage/sqlsage/internal/types"
)

// Retrieval strategies. Combined is the production path; rerank unions the
// two per-type collections and re-scores with the cross-encoder.
const (
	StrategyCombined = "combined"
	StrategyRerank   = "rerank"
)

// Config holds all assistant configuration.
type Config struct {
	// Testing bypasses all external retrieval and model calls with fixed
	// placeholder data.
	Testing  bool   `mapstructure:"testing" yaml:"testing"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant" yaml:"qdrant"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	Reranker  RerankerConfig  `mapstructure:"reranker" yaml:"reranker"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
}

// HTTPConfig configures the web front end.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LLMConfig configures the hosted language model.
type LLMConfig struct {
	Model          string  `mapstructure:"model" yaml:"model"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Temperature    float32 `mapstructure:"temperature" yaml:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// EmbeddingConfig configures the embedding model used for index lookups.
type EmbeddingConfig struct {
	Model string `mapstructure:"model" yaml:"model"`
}

// QdrantConfig identifies the vector index and its collections.
type QdrantConfig struct {
	Host               string `mapstructure:"host" yaml:"host"`
	Port               int    `mapstructure:"port" yaml:"port"`
	TablesCollection   string `mapstructure:"tables_collection" yaml:"tables_collection"`
	SamplesCollection  string `mapstructure:"samples_collection" yaml:"samples_collection"`
	CombinedCollection string `mapstructure:"combined_collection" yaml:"combined_collection"`
}

// RetrievalConfig selects and parameterizes the retrieval path.
type RetrievalConfig struct {
	Strategy     string `mapstructure:"strategy" yaml:"strategy"`
	TopK         int    `mapstructure:"top_k" yaml:"top_k"`                   // per collection in the basic path
	CombinedTopK int    `mapstructure:"combined_top_k" yaml:"combined_top_k"` // combined-index path
	RerankKeep   int    `mapstructure:"rerank_keep" yaml:"rerank_keep"`       // survivors after reranking
}

// RerankerConfig configures the ONNX cross-encoder.
type RerankerConfig struct {
	ModelPath string `mapstructure:"model_path" yaml:"model_path"`
	VocabPath string `mapstructure:"vocab_path" yaml:"vocab_path"`
	MaxSeqLen int    `mapstructure:"max_seq_len" yaml:"max_seq_len"`
}

// DatabaseConfig identifies the single fixed target database. User and
// password come from DB_USER / DB_CRED in the environment.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Name     string `mapstructure:"name" yaml:"name"`
	User     string `mapstructure:"user" yaml:"-"`
	Password string `mapstructure:"password" yaml:"-"`
}

// SessionConfig controls session retention in the web front end.
type SessionConfig struct {
	TTLMinutes int `mapstructure:"ttl_minutes" yaml:"ttl_minutes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Testing:  false,
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		LLM: LLMConfig{
			Model:          "gpt-4.1-nano",
			Temperature:    0,
			TimeoutSeconds: 120,
		},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small",
		},
		Qdrant: QdrantConfig{
			Host:               "localhost",
			Port:               6334,
			TablesCollection:   "mysql_employees_tables",
			SamplesCollection:  "mysql_employees_samples",
			CombinedCollection: "mysql_employees_combined",
		},
		Retrieval: RetrievalConfig{
			Strategy:     StrategyCombined,
			TopK:         3,
			CombinedTopK: 5,
			RerankKeep:   3,
		},
		Reranker: RerankerConfig{
			ModelPath: "models/ms-marco-minilm-l6-v2.onnx",
			VocabPath: "models/vocab.json",
			MaxSeqLen: 256,
		},
		Database: DatabaseConfig{
			Host: "127.0.0.1",
			Port: 3306,
			Name: "employees",
		},
		Session: SessionConfig{
			TTLMinutes: 120,
		},
	}
}

// Load reads configuration from the given yaml file, applying defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return unmarshal(v)
}

// LoadFromPaths tries each path in order and loads the first that exists.
// If none exist, defaults plus environment overrides are used.
func LoadFromPaths(paths ...string) (*Config, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return unmarshal(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	return v
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("testing", def.Testing)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("http.addr", def.HTTP.Addr)
	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("llm.temperature", def.LLM.Temperature)
	v.SetDefault("llm.timeout_seconds", def.LLM.TimeoutSeconds)
	v.SetDefault("embedding.model", def.Embedding.Model)
	v.SetDefault("qdrant.host", def.Qdrant.Host)
	v.SetDefault("qdrant.port", def.Qdrant.Port)
	v.SetDefault("qdrant.tables_collection", def.Qdrant.TablesCollection)
	v.SetDefault("qdrant.samples_collection", def.Qdrant.SamplesCollection)
	v.SetDefault("qdrant.combined_collection", def.Qdrant.CombinedCollection)
	v.SetDefault("retrieval.strategy", def.Retrieval.Strategy)
	v.SetDefault("retrieval.top_k", def.Retrieval.TopK)
	v.SetDefault("retrieval.combined_top_k", def.Retrieval.CombinedTopK)
	v.SetDefault("retrieval.rerank_keep", def.Retrieval.RerankKeep)
	v.SetDefault("reranker.model_path", def.Reranker.ModelPath)
	v.SetDefault("reranker.vocab_path", def.Reranker.VocabPath)
	v.SetDefault("reranker.max_seq_len", def.Reranker.MaxSeqLen)
	v.SetDefault("database.host", def.Database.Host)
	v.SetDefault("database.port", def.Database.Port)
	v.SetDefault("database.name", def.Database.Name)
	v.SetDefault("session.ttl_minutes", def.Session.TTLMinutes)
}

// bindEnv maps the recognized environment variables onto config keys.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("testing", "TESTING")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("llm.model", "MODEL")
	_ = v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("embedding.model", "EMBEDDING_MODEL")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_CRED")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	// Environment values arrive as strings; decode them into the typed
	// fields (e.g. TESTING=true into a bool).
	weak := func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}
	if err := v.Unmarshal(&cfg, weak); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required options are present.
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return types.NewConfigurationError("llm.model (MODEL) is required")
	}
	if c.Embedding.Model == "" {
		return types.NewConfigurationError("embedding.model (EMBEDDING_MODEL) is required")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return types.NewConfigurationError("llm.timeout_seconds must be positive")
	}
	switch c.Retrieval.Strategy {
	case StrategyCombined:
		if c.Qdrant.CombinedCollection == "" {
			return types.NewConfigurationError("qdrant.combined_collection is required for the combined strategy")
		}
	case StrategyRerank:
		if c.Qdrant.TablesCollection == "" || c.Qdrant.SamplesCollection == "" {
			return types.NewConfigurationError("qdrant.tables_collection and qdrant.samples_collection are required for the rerank strategy")
		}
	default:
		return types.NewConfigurationError("unknown retrieval strategy %q", c.Retrieval.Strategy)
	}
	return nil
}

// Save writes the configuration to a yaml file. Database credentials are
// never written; they stay in the environment.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
