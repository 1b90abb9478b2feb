package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/sepworks/sepd/internal/model"
)

// EmbeddingDim is the fixed vector dimension of the provider contract.
const EmbeddingDim = 1536

type EmbedderConfig struct {
	Model         string
	MaxInputChars int
	MaxRetries    int
	CacheSize     int
	CacheTTL      time.Duration
}

// Embedder wraps a provider with the degradation policy the rest of the
// service relies on: blank input and exhausted retries both yield a nil
// vector, never an error. A missing embedding must not block the save of an
// article's core data.
type Embedder struct {
	provider IEmbedProvider
	cfg      EmbedderConfig
	cache    *expirable.LRU[string, []float32]
	sleep    func(time.Duration)
}

func NewEmbedder(provider IEmbedProvider, cfg EmbedderConfig) *Embedder {
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = 20000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	var cache *expirable.LRU[string, []float32]
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		cache = expirable.NewLRU[string, []float32](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return &Embedder{
		provider: provider,
		cfg:      cfg,
		cache:    cache,
		sleep:    time.Sleep,
	}
}

// Embed returns a vector for text, or nil when no embedding could be
// produced. Blank input short-circuits without touching the network. The
// remote call is retried with exponential backoff; the final failure is
// logged and swallowed here, at the boundary that decides to degrade.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	if isBlank(text) {
		logutil.GetLogger(ctx).Warn("empty text provided for embedding generation")
		return nil
	}
	if runes := []rune(text); len(runes) > e.cfg.MaxInputChars {
		text = string(runes[:e.cfg.MaxInputChars])
	}

	cacheKey := cacheKeyFor(e.cfg.Model, text)
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			logutil.GetLogger(ctx).Debug("embedding cache hit")
			return cloneVector(cached)
		}
	}

	logger := logutil.GetLogger(ctx).With(zap.String("model", e.cfg.Model))
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		vector, err := e.provider.Embed(ctx, e.cfg.Model, text)
		if err == nil {
			logger.Info("embedding generated", zap.Int("dimension", len(vector)))
			if e.cache != nil {
				e.cache.Add(cacheKey, cloneVector(vector))
			}
			return vector
		}
		logger.Warn("embedding attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", e.cfg.MaxRetries),
			zap.Error(err))
		if attempt < e.cfg.MaxRetries-1 {
			e.sleep(time.Duration(1<<attempt) * time.Second)
		}
	}
	logger.Error("embedding failed after all retries", zap.Int("max_retries", e.cfg.MaxRetries))
	return nil
}

// EmbedEntry attempts title and content vectors independently. Partial
// success is a valid outcome.
func (e *Embedder) EmbedEntry(ctx context.Context, title, content string) model.EmbeddingSet {
	return model.EmbeddingSet{
		Title:   e.Embed(ctx, title),
		Content: e.Embed(ctx, content),
	}
}

func isBlank(text string) bool {
	for _, r := range text {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

func cacheKeyFor(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
