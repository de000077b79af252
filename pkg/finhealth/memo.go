package finhealth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Cache stores assessments keyed by Key(input).
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (Assessment, bool, error)
	Set(ctx context.Context, key string, a Assessment) error
}

// Key returns a cache key that is equal for structurally equal inputs.
func Key(in Input) string {
	data, err := json.Marshal(in)
	if err != nil {
		// NaN and ±Inf are not valid JSON.
		data = []byte(fmt.Sprintf("%#v", in))
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// Memo evaluates inputs, consulting an optional Cache first.
// A nil cache, a miss, or a cache error all fall back to Evaluate, so the
// output never depends on the cache.
//
// Memo is safe for concurrent use.
type Memo struct {
	cache Cache
}

// NewMemo returns a Memo backed by c. c may be nil.
func NewMemo(c Cache) *Memo {
	return &Memo{cache: c}
}

// Evaluate returns the assessment for in.
func (m *Memo) Evaluate(ctx context.Context, in Input) Assessment {
	if m == nil || m.cache == nil {
		return Evaluate(in)
	}

	key := Key(in)
	if a, ok, err := m.cache.Get(ctx, key); err != nil {
		slog.Warn("finhealth: cache get failed, computing", "key", key, "err", err)
	} else if ok {
		return a
	}

	a := Evaluate(in)
	if err := m.cache.Set(ctx, key, a); err != nil {
		slog.Warn("finhealth: cache set failed", "key", key, "err", err)
	}
	return a
}

// DefaultMemoryCacheSize is used by NewMemoryCache when size <= 0.
const DefaultMemoryCacheSize = 1024

// MemoryCache is a bounded in-process Cache. When it is full the whole
// generation is dropped; assessments are cheap to recompute.
type MemoryCache struct {
	mu   sync.RWMutex
	max  int
	data map[string]Assessment
}

// NewMemoryCache returns a MemoryCache holding at most size entries.
func NewMemoryCache(size int) *MemoryCache {
	if size <= 0 {
		size = DefaultMemoryCacheSize
	}
	return &MemoryCache{max: size, data: make(map[string]Assessment, size)}
}

// Get returns the cached assessment for key.
func (c *MemoryCache) Get(_ context.Context, key string) (Assessment, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.data[key]
	return cloneAssessment(a), ok, nil
}

// Set stores a under key.
func (c *MemoryCache) Set(_ context.Context, key string, a Assessment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[key]; !exists && len(c.data) >= c.max {
		c.data = make(map[string]Assessment, c.max)
	}
	c.data[key] = cloneAssessment(a)
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// cloneAssessment copies the recommendation slice so callers cannot mutate
// cached state.
func cloneAssessment(a Assessment) Assessment {
	if a.Recommendations != nil {
		recs := make([]Recommendation, len(a.Recommendations))
		copy(recs, a.Recommendations)
		a.Recommendations = recs
	}
	return a
}
