package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	ErrInvalidChunking = errors.New("invalid chunking configuration")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownBackend  = errors.New("unknown index backend")
	ErrInvalidIndex    = errors.New("invalid index configuration")
)

// Config holds all application configuration.
type Config struct {
	Server        Server        `mapstructure:"server"`
	LLM           LLM           `mapstructure:"llm"`
	Embeddings    Embeddings    `mapstructure:"embeddings"`
	Index         Index         `mapstructure:"index"`
	Chunker       Chunker       `mapstructure:"chunker"`
	Extractor     Extractor     `mapstructure:"extractor"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Storage       Storage       `mapstructure:"storage"`
	Fetcher       Fetcher       `mapstructure:"fetcher"`
	MCP           MCP           `mapstructure:"mcp"`
}

// Server holds the upload front-end configuration.
type Server struct {
	Addr           string `mapstructure:"addr"`
	WorkDir        string `mapstructure:"work_dir"` // where temp_file.<ext> is written
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// LLM holds the chat model configuration.
type LLM struct {
	Provider    string        `mapstructure:"provider"` // openai or gemini
	BaseURL     string        `mapstructure:"base_url"`
	SocketPath  string        `mapstructure:"socket_path"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	APIKeyEnv   string        `mapstructure:"api_key_env"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"` // zero means no client timeout
}

// ResolveAPIKey returns the configured key, falling back to the named env var.
func (l LLM) ResolveAPIKey() string {
	if l.APIKey != "" {
		return l.APIKey
	}
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

// Embeddings holds embedding model configuration.
type Embeddings struct {
	Provider      string        `mapstructure:"provider"` // openai, gemini or hashing
	BaseURL       string        `mapstructure:"base_url"`
	SocketPath    string        `mapstructure:"socket_path"`
	Model         string        `mapstructure:"model"`
	APIKey        string        `mapstructure:"api_key"`
	APIKeyEnv     string        `mapstructure:"api_key_env"`
	Dimensions    int           `mapstructure:"dimensions"` // used by the hashing provider
	MaxInputChars int           `mapstructure:"max_input_chars"`
	CacheSize     int           `mapstructure:"cache_size"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

// ResolveAPIKey returns the configured key, falling back to the named env var.
func (e Embeddings) ResolveAPIKey() string {
	if e.APIKey != "" {
		return e.APIKey
	}
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// Index holds vector index configuration.
type Index struct {
	Backend     string `mapstructure:"backend"` // local or elasticsearch
	Path        string `mapstructure:"path"`
	Metric      string `mapstructure:"metric"`       // l2 or cosine
	ReusePolicy string `mapstructure:"reuse_policy"` // fingerprint or always
	Query       string `mapstructure:"query"`
	TopK        int    `mapstructure:"top_k"`
}

// Chunker holds text splitting configuration. Sizes are in characters.
type Chunker struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// Extractor holds OCR configuration.
type Extractor struct {
	TesseractPath string `mapstructure:"tesseract_path"`
	Language      string `mapstructure:"language"`
}

// Elasticsearch holds ES connection configuration.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Storage holds S3/MinIO storage configuration.
type Storage struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
}

// Fetcher holds web page fetching configuration.
type Fetcher struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	TryMarkdownFirst bool          `mapstructure:"try_markdown_first"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:           ":8501",
			WorkDir:        ".",
			MaxUploadBytes: 200 << 20,
		},
		LLM: LLM{
			Provider:  "openai",
			BaseURL:   "https://api.groq.com/openai/v1",
			Model:     "mixtral-8x7b-32768",
			APIKeyEnv: "GROQ_API_KEY",
		},
		Embeddings: Embeddings{
			Provider:      "openai",
			BaseURL:       "http://localhost:8081/v1", // text-embeddings-inference
			Model:         "sentence-transformers/all-MiniLM-L12-v2",
			APIKeyEnv:     "EMBEDDINGS_API_KEY",
			Dimensions:    384,
			MaxInputChars: 2000,
			CacheSize:     1024,
			CacheTTL:      time.Hour,
		},
		Index: Index{
			Backend:     "local",
			Path:        "faiss_contract_index",
			Metric:      "l2",
			ReusePolicy: "fingerprint",
			Query:       "Contract analysis",
			TopK:        5,
		},
		Chunker: Chunker{
			Size:    500,
			Overlap: 100,
		},
		Extractor: Extractor{
			TesseractPath: "tesseract",
			Language:      "eng",
		},
		Elasticsearch: Elasticsearch{
			Addresses: []string{"http://localhost:9200"},
			Index:     "contractcheck-chunks",
		},
		Storage: Storage{
			Endpoint:        "localhost:9002",
			Bucket:          "contracts",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
		},
		Fetcher: Fetcher{
			Timeout:          30 * time.Second,
			UserAgent:        "contractcheck/1.0",
			TryMarkdownFirst: true,
		},
		MCP: MCP{
			Name:    "contractcheck",
			Version: "1.0.0",
		},
	}
}

// Validate checks the settings that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	if c.Chunker.Size <= 0 || c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		return fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, c.Chunker.Size, c.Chunker.Overlap)
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("%w: llm.provider=%q", ErrUnknownProvider, c.LLM.Provider)
	}
	switch c.Embeddings.Provider {
	case "openai", "gemini", "hashing":
	default:
		return fmt.Errorf("%w: embeddings.provider=%q", ErrUnknownProvider, c.Embeddings.Provider)
	}
	switch c.Index.Backend {
	case "local", "elasticsearch":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Index.Backend)
	}
	if c.Index.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidIndex)
	}
	switch c.Index.Metric {
	case "l2", "cosine":
	default:
		return fmt.Errorf("%w: metric=%q", ErrInvalidIndex, c.Index.Metric)
	}
	switch c.Index.ReusePolicy {
	case "fingerprint", "always":
	default:
		return fmt.Errorf("%w: reuse_policy=%q", ErrInvalidIndex, c.Index.ReusePolicy)
	}
	if c.Index.Backend == "local" && c.Index.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidIndex)
	}
	return nil
}
