package reportcoach

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

type clientConfig struct {
	addrs    []string
	password string
	qdrant   *QdrantConfig

	indexName  string
	memoryPath string

	embedder           Embedder
	queryInstruction   string
	passageInstruction string
	generator          Generator

	weights       *Weights
	maxK          int
	snippetLength int
	imageDir      string

	ingestBatch   int
	ingestWorkers int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey stores chunks, the embedding cache and usage counters in Valkey.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithQdrant keeps vectors in a Qdrant collection instead of Valkey or memory.
func WithQdrant(cfg QdrantConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.qdrant = &cfg
	})
}

// WithIndexName sets the Valkey index or Qdrant collection name. Default: "reports".
func WithIndexName(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexName = name
	})
}

// WithMemoryIndex loads the in-memory index from path on New and saves it after each Ingest.
func WithMemoryIndex(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.memoryPath = path
	})
}

// WithEmbedder sets the embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithInstructions sets the prefixes prepended to queries and passages before embedding.
func WithInstructions(query, passage string) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryInstruction = query
		c.passageInstruction = passage
	})
}

// WithGenerator sets the model that summarizes queries.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithWeights overrides the ranking weights. Default: DefaultWeights().
func WithWeights(w Weights) Option {
	return optionFunc(func(c *clientConfig) {
		c.weights = &w
	})
}

// WithMaxK caps the result count a search may ask for. Default: 100.
func WithMaxK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxK = k
	})
}

// WithSnippetLength sets the content truncation length in characters. Default: 500.
func WithSnippetLength(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.snippetLength = n
	})
}

// WithImageDir enables image references for reports with "<number>_image.png" in dir.
func WithImageDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.imageDir = dir
	})
}

// WithIngest sizes ingest batches and the number of concurrent batches.
func WithIngest(batchSize, workers int) Option {
	return optionFunc(func(c *clientConfig) {
		c.ingestBatch = batchSize
		c.ingestWorkers = workers
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default).
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
