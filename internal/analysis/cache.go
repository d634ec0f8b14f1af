package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "analysis:"

// KV is the subset of the Redis client the cache uses.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Cached memoizes another Analyzer's results in Redis keyed by (text, lang).
// Redis failures degrade to calling the inner analyzer.
type Cached struct {
	inner   Analyzer
	kv      KV
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewCached(inner Analyzer, kv KV, ttl time.Duration, met *metrics.Metrics) *Cached {
	return &Cached{
		inner:   inner,
		kv:      kv,
		ttl:     ttl,
		metrics: met,
		logger:  slog.Default().With("component", "analysis-cache"),
	}
}

func (c *Cached) Analyze(ctx context.Context, text string, lang lexicon.Lang) ([]TextToken, error) {
	key := cacheKey(text, lang)
	if tokens, ok := c.get(ctx, key); ok {
		c.hit()
		return tokens, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		if tokens, ok := c.get(ctx, key); ok {
			c.hit()
			return tokens, nil
		}
		c.miss()
		tokens, err := c.inner.Analyze(ctx, text, lang)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, tokens)
		return tokens, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("analysis shared with concurrent caller", "lang", lang)
	}
	return v.([]TextToken), nil
}

// Invalidate drops every cached analysis.
func (c *Cached) Invalidate(ctx context.Context) error {
	deleted, err := c.kv.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating analysis cache: %w", err)
	}
	c.logger.Debug("analysis cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *Cached) get(ctx context.Context, key string) ([]TextToken, bool) {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var tokens []TextToken
	if err := json.Unmarshal([]byte(data), &tokens); err != nil {
		c.logger.Warn("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return tokens, true
}

func (c *Cached) set(ctx context.Context, key string, tokens []TextToken) {
	data, err := json.Marshal(tokens)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *Cached) hit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *Cached) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func cacheKey(text string, lang lexicon.Lang) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + string(lang) + ":" + hex.EncodeToString(sum[:16])
}
