package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backend names accepted for vectorstore.type.
const (
	BackendLocal  = "local"
	BackendQdrant = "qdrant"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	VectorStore VectorStoreConfig `mapstructure:"vectorstore"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Generation  GenerationConfig  `mapstructure:"generation"`
	Chunking    ChunkingConfig    `mapstructure:"chunking"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	DSN             string        `mapstructure:"dsn"`    // postgres DSN
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// VectorStoreConfig selects and configures the vector index backend.
// Type is the requested backend; the resolver may still fall back to
// local at runtime when the managed backend is unreachable.
type VectorStoreConfig struct {
	Type       string       `mapstructure:"type"`
	IndexPath  string       `mapstructure:"index_path"` // on-disk persistence for the local backend
	SearchTopK int          `mapstructure:"search_top_k"`
	Qdrant     QdrantConfig `mapstructure:"qdrant"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type EmbeddingConfig struct {
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

type GenerationConfig struct {
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ChunkingConfig carries the two named chunking profiles. The text
// profile serves direct-text ingestion, the document profile serves
// uploaded files. Callers depend on the distinct granularities.
type ChunkingConfig struct {
	Text     ChunkProfileConfig `mapstructure:"text"`
	Document ChunkProfileConfig `mapstructure:"document"`
}

type ChunkProfileConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// ArchiveConfig configures optional S3-compatible archival of the
// original uploaded files. Disabled when the endpoint is empty.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/marketmatch.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("vectorstore.type", BackendLocal)
	v.SetDefault("vectorstore.index_path", "./data/index/marketmatch.json")
	v.SetDefault("vectorstore.search_top_k", 5)
	v.SetDefault("vectorstore.qdrant.host", "localhost")
	v.SetDefault("vectorstore.qdrant.port", 6334)
	v.SetDefault("vectorstore.qdrant.collection", "marketmatch")
	v.SetDefault("embedding.model", "text-embedding-ada-002")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("generation.model", "gpt-4o-mini")
	v.SetDefault("generation.base_url", "https://api.openai.com/v1")
	v.SetDefault("generation.temperature", 0.5)
	v.SetDefault("generation.max_tokens", 500)
	v.SetDefault("chunking.text.size", 500)
	v.SetDefault("chunking.text.overlap", 50)
	v.SetDefault("chunking.document.size", 1000)
	v.SetDefault("chunking.document.overlap", 200)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.use_ssl", false)
	v.SetDefault("archive.bucket", "marketmatch-uploads")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("vectorstore.type", "VECTOR_STORE_TYPE")
	v.BindEnv("vectorstore.qdrant.host", "QDRANT_HOST")
	v.BindEnv("vectorstore.qdrant.port", "QDRANT_PORT")
	v.BindEnv("vectorstore.qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("embedding.api_key", "OPENAI_API_KEY")
	v.BindEnv("embedding.base_url", "OPENAI_BASE_URL")
	v.BindEnv("generation.api_key", "OPENAI_API_KEY")
	v.BindEnv("generation.base_url", "OPENAI_BASE_URL")
	v.BindEnv("archive.endpoint", "ARCHIVE_ENDPOINT")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.VectorStore.Type != BackendLocal && cfg.VectorStore.Type != BackendQdrant {
		return nil, fmt.Errorf("invalid vectorstore.type %q: must be %q or %q",
			cfg.VectorStore.Type, BackendLocal, BackendQdrant)
	}

	return &cfg, nil
}
