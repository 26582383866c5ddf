package config

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	RAG       RAGConfig       `yaml:"rag" mapstructure:"rag"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Jobs      JobsConfig      `yaml:"jobs" mapstructure:"jobs"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Reports   ReportsConfig   `yaml:"reports" mapstructure:"reports"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	APIKey         string   `yaml:"api_key" mapstructure:"api_key"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RAGConfig configures chunking, retrieval and mode selection.
type RAGConfig struct {
	TopK                 int     `yaml:"topk" mapstructure:"topk"`
	WeightBM25           float64 `yaml:"w_bm25" mapstructure:"w_bm25"`
	WeightVec            float64 `yaml:"w_vec" mapstructure:"w_vec"`
	WeightAnchor         float64 `yaml:"w_anchor" mapstructure:"w_anchor"`
	CtxMarginTokens      int     `yaml:"ctx_margin_tokens" mapstructure:"ctx_margin_tokens"`
	PromptOverheadTokens int     `yaml:"prompt_overhead_tokens" mapstructure:"prompt_overhead_tokens"`
	MinSegments          int     `yaml:"min_segments" mapstructure:"min_segments"`
	ChunkMaxChars        int     `yaml:"chunk_max_chars" mapstructure:"chunk_max_chars"`
	VectorIndex          string  `yaml:"vector_index" mapstructure:"vector_index"`
}

// LLMConfig configures the extraction model.
type LLMConfig struct {
	Backend     string        `yaml:"backend" mapstructure:"backend"`
	NCtx        int           `yaml:"n_ctx" mapstructure:"n_ctx"`
	Model       string        `yaml:"model" mapstructure:"model"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	Seed        int           `yaml:"seed" mapstructure:"seed"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	RatePerSec  float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig configures the embedding strategy chain.
type EmbeddingConfig struct {
	Chain         []string `yaml:"chain" mapstructure:"chain"`
	BaseURL       string   `yaml:"base_url" mapstructure:"base_url"`
	Model         string   `yaml:"model" mapstructure:"model"`
	APIKey        string   `yaml:"api_key" mapstructure:"api_key"`
	SentenceModel string   `yaml:"sentence_model" mapstructure:"sentence_model"`
	ModelsDir     string   `yaml:"models_dir" mapstructure:"models_dir"`
	BatchSize     int      `yaml:"batch_size" mapstructure:"batch_size"`
	Normalize     bool     `yaml:"normalize" mapstructure:"normalize"`
}

// OCRConfig configures layout analysis and the table sniffer.
type OCRConfig struct {
	Policy            string        `yaml:"policy" mapstructure:"policy"`
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	Mock              bool          `yaml:"mock" mapstructure:"mock"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	SniffMinRows      int           `yaml:"sniff_min_rows" mapstructure:"sniff_min_rows"`
	SniffMinCols      int           `yaml:"sniff_min_cols" mapstructure:"sniff_min_cols"`
	SniffColTol       float64       `yaml:"sniff_col_tol" mapstructure:"sniff_col_tol"`
	TextLayerMinChars int           `yaml:"text_layer_min_chars" mapstructure:"text_layer_min_chars"`
}

// JobsConfig configures the async job queue.
type JobsConfig struct {
	Workers   int           `yaml:"workers" mapstructure:"workers"`
	QueueSize int           `yaml:"queue_size" mapstructure:"queue_size"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// PipelineConfig configures per-request processing.
type PipelineConfig struct {
	MaxConcurrentFields int `yaml:"max_concurrent_fields" mapstructure:"max_concurrent_fields"`
	CPUPoolSize         int `yaml:"cpu_pool_size" mapstructure:"cpu_pool_size"`
}

// ReportsConfig configures forensic report storage.
type ReportsConfig struct {
	Dir string        `yaml:"dir" mapstructure:"dir"`
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ReservedMargin is the token budget kept free of document content.
func (c RAGConfig) ReservedMargin() int {
	return c.CtxMarginTokens + c.PromptOverheadTokens
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DOCGROUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.max_upload_bytes", 52428800) // 50MB
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("rag.topk", 5)
	v.SetDefault("rag.w_bm25", 0.5)
	v.SetDefault("rag.w_vec", 0.4)
	v.SetDefault("rag.w_anchor", 0.1)
	v.SetDefault("rag.ctx_margin_tokens", 256)
	v.SetDefault("rag.prompt_overhead_tokens", 256)
	v.SetDefault("rag.min_segments", 12)
	v.SetDefault("rag.chunk_max_chars", 1200)
	v.SetDefault("rag.vector_index", "flat")
	v.SetDefault("llm.backend", "mock")
	v.SetDefault("llm.n_ctx", 8192)
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.seed", 42)
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.rate_per_sec", 2.0)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("embedding.chain", []string{"quantized-local", "sentence", "tfidf"})
	v.SetDefault("embedding.base_url", "http://127.0.0.1:8004/v1")
	v.SetDefault("embedding.model", "qwen3-embedding-0.6b-q8_0")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.sentence_model", "sentence-transformers/all-MiniLM-L6-v2")
	v.SetDefault("embedding.models_dir", "./data/models")
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.normalize", true)
	v.SetDefault("ocr.policy", "auto")
	v.SetDefault("ocr.base_url", "http://127.0.0.1:8002")
	v.SetDefault("ocr.mock", false)
	v.SetDefault("ocr.timeout", 60*time.Second)
	v.SetDefault("ocr.sniff_min_rows", 3)
	v.SetDefault("ocr.sniff_min_cols", 3)
	v.SetDefault("ocr.sniff_col_tol", 0.02)
	v.SetDefault("ocr.text_layer_min_chars", 200)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_size", 100)
	v.SetDefault("jobs.ttl", time.Hour)
	v.SetDefault("pipeline.max_concurrent_fields", 1)
	v.SetDefault("pipeline.cpu_pool_size", 4)
	v.SetDefault("reports.dir", "./data/reports")
	v.SetDefault("reports.ttl", 72*time.Hour)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate rejects configuration that no component can run with.
func (c *Config) Validate() error {
	for name, w := range map[string]float64{
		"rag.w_bm25":   c.RAG.WeightBM25,
		"rag.w_vec":    c.RAG.WeightVec,
		"rag.w_anchor": c.RAG.WeightAnchor,
	} {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return eris.Errorf("config: %s must be a non-negative number, got %v", name, w)
		}
	}
	if c.RAG.TopK <= 0 {
		return eris.New("config: rag.topk must be positive")
	}
	if c.LLM.NCtx <= 0 {
		return eris.New("config: llm.n_ctx must be positive")
	}
	switch c.LLM.Backend {
	case "mock", "local":
	case "claude":
		if c.LLM.APIKey == "" {
			return eris.New("config: llm.api_key is required for the claude backend")
		}
	default:
		return eris.Errorf("config: unknown llm.backend %q", c.LLM.Backend)
	}
	switch c.RAG.VectorIndex {
	case "flat", "none":
	default:
		return eris.Errorf("config: unknown rag.vector_index %q", c.RAG.VectorIndex)
	}
	if len(c.Embedding.Chain) == 0 {
		return eris.New("config: embedding.chain must name at least one strategy")
	}
	return nil
}

// NewLogger builds a zap logger from cfg and installs it as the global logger.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return logger, nil
}
