package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/dshills/skillcourse-mcp/internal/metrics"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "hashed-bow-v1"

	OpenAIDimension = 1536
	LocalDimension  = 384

	MaxBatchSize = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	bigramWeight = 0.5
)

// WeightTable scales token contributions. Tokens absent from the table weigh 1;
// a weight of 0 drops the token.
type WeightTable map[string]float64

// Digest fingerprints the table contents. It is empty for an empty table.
func (w WeightTable) Digest() string {
	if len(w) == 0 {
		return ""
	}
	keys := make([]string, 0, len(w))
	for tok := range w {
		keys = append(keys, tok)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, tok := range keys {
		b.WriteString(tok)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(w[tok], 'g', -1, 64))
		b.WriteByte('\n')
	}
	return ComputeHash(b.String())[:12]
}

// LocalModelName is the model name of a local embedder using weights. Each
// weight table yields its own vector space, so the digest is part of the name.
func LocalModelName(weights WeightTable) string {
	if d := weights.Digest(); d != "" {
		return DefaultLocalModel + "+w:" + d
	}
	return DefaultLocalModel
}

// LoadWeightTable reads a YAML mapping of token to weight.
func LoadWeightTable(path string) (WeightTable, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read weights %s: %w", path, err)
	}
	var table WeightTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse weights %s: %w", path, err)
	}
	normalized := make(WeightTable, len(table))
	for tok, w := range table {
		if w < 0 {
			return nil, fmt.Errorf("%w: negative weight for %q", ErrInvalidInput, tok)
		}
		normalized[strings.ToLower(tok)] = w
	}
	return normalized, nil
}

// LocalProvider is an offline embedder hashing unigrams and bigrams into a fixed
// number of signed buckets. Output is L2 normalised, so cosine similarity grows
// with shared vocabulary. It holds no mutable state after construction.
type LocalProvider struct {
	model     string
	dimension int
	weights   WeightTable
	cache     *Cache
}

// NewLocalProvider creates a local embedder. weights may be nil.
func NewLocalProvider(weights WeightTable, cache *Cache) *LocalProvider {
	return &LocalProvider{
		model:     LocalModelName(weights),
		dimension: LocalDimension,
		weights:   weights,
		cache:     cache,
	}
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if IsBlank(req.Text) {
		return ZeroEmbedding(l.dimension, ProviderLocal, l.model), nil
	}

	hash := ComputeHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    l.vectorize(req.Text),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(ProviderLocal, "success").Inc()

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}
	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) vectorize(text string) []float32 {
	acc := make([]float64, l.dimension)
	tokens := tokenize(text)
	prev := ""
	for _, tok := range tokens {
		w := l.weight(tok)
		if w > 0 {
			l.addFeature(acc, "u:"+tok, w)
		}
		if prev != "" {
			bw := math.Min(w, l.weight(prev)) * bigramWeight
			if bw > 0 {
				l.addFeature(acc, "b:"+prev+" "+tok, bw)
			}
		}
		prev = tok
	}

	vector := make([]float32, l.dimension)
	for i, v := range acc {
		vector[i] = float32(v)
	}
	return NormalizeVector(vector)
}

func (l *LocalProvider) addFeature(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(l.dimension))
	if sum>>63 == 1 {
		acc[idx] -= weight
	} else {
		acc[idx] += weight
	}
}

func (l *LocalProvider) weight(tok string) float64 {
	if w, ok := l.weights[tok]; ok {
		return w
	}
	return 1
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// tokenize lowercases and splits on anything that is not a letter, digit, '+' or '#',
// so "C++" and "C#" survive as tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = float32(float64(val) / norm)
	}

	return result
}
