package embed

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/embeddings/cybertron"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/config"
)

// llama.cpp ignores the bearer token but the client insists on one.
const placeholderToken = "sk-no-key-required"

// ModelStrategy embeds through a shared langchaingo embedder.
type ModelStrategy struct {
	name   string
	handle *Handle[embeddings.Embedder]
}

// NewModelStrategy wraps a handle under the given strategy name.
func NewModelStrategy(name string, handle *Handle[embeddings.Embedder]) *ModelStrategy {
	return &ModelStrategy{name: name, handle: handle}
}

func (m *ModelStrategy) Name() string { return m.name }

// Handle exposes the shared model handle.
func (m *ModelStrategy) Handle() *Handle[embeddings.Embedder] { return m.handle }

func (m *ModelStrategy) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e, err := m.handle.Get(ctx)
	if err != nil {
		return nil, err
	}
	vecs, err := e.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, eris.Wrapf(err, "embed: %s", m.name)
	}
	return vecs, nil
}

// NewQuantizedLocal embeds with a quantized GGUF model served by a
// llama.cpp server on its OpenAI-compatible /v1/embeddings route.
func NewQuantizedLocal(cfg config.EmbeddingConfig) *ModelStrategy {
	return NewModelStrategy(NameQuantizedLocal, NewHandle(NameQuantizedLocal,
		func(context.Context) (embeddings.Embedder, error) {
			token := cfg.APIKey
			if token == "" {
				token = placeholderToken
			}
			client, err := openai.New(
				openai.WithBaseURL(cfg.BaseURL),
				openai.WithEmbeddingModel(cfg.Model),
				openai.WithToken(token),
			)
			if err != nil {
				return nil, eris.Wrap(err, "embed: openai client")
			}
			return embeddings.NewEmbedder(client, batchOptions(cfg)...)
		}))
}

// NewSentence embeds in-process with a sentence-transformer model loaded
// through cybertron.
func NewSentence(cfg config.EmbeddingConfig) *ModelStrategy {
	return NewModelStrategy(NameSentence, NewHandle(NameSentence,
		func(context.Context) (embeddings.Embedder, error) {
			opts := []cybertron.Option{}
			if cfg.SentenceModel != "" {
				opts = append(opts, cybertron.WithModel(cfg.SentenceModel))
			}
			if cfg.ModelsDir != "" {
				opts = append(opts, cybertron.WithModelsDir(cfg.ModelsDir))
			}
			client, err := cybertron.NewCybertron(opts...)
			if err != nil {
				return nil, eris.Wrap(err, "embed: load sentence model")
			}
			return embeddings.NewEmbedder(client, batchOptions(cfg)...)
		}))
}

func batchOptions(cfg config.EmbeddingConfig) []embeddings.Option {
	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	return opts
}

// FromConfig builds the strategy chain named by cfg.Chain. Model handles are
// created here once; call it once per process and share the chain.
func FromConfig(cfg config.EmbeddingConfig, log *zap.Logger) (*Chain, error) {
	strategies := make([]Strategy, 0, len(cfg.Chain))
	for _, name := range cfg.Chain {
		switch name {
		case NameQuantizedLocal:
			strategies = append(strategies, NewQuantizedLocal(cfg))
		case NameSentence:
			strategies = append(strategies, NewSentence(cfg))
		case NameTFIDF:
			strategies = append(strategies, TFIDF{})
		case NameHash:
			strategies = append(strategies, Hash{})
		default:
			return nil, eris.Errorf("embed: unknown strategy %q", name)
		}
	}
	return NewChain(log, cfg.Normalize, strategies...), nil
}
