// Package alignmentcache keeps recently computed alignments so the API can
// answer repeated requests for the same pair of texts without re-running the
// DP. It sits in front of the engine; the engine itself never caches.
package alignmentcache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"speech-data-explorer/backend/internal/coreengine/aligner"
	"speech-data-explorer/backend/internal/coreengine/scorer"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
	"speech-data-explorer/backend/internal/metrics"
)

// Key identifies one alignment.
type Key struct {
	Reference   string
	Hypothesis  string
	Granularity tokenizer.Granularity
}

// Cache is an LRU of alignments. Cached alignments are shared between
// callers and must be treated as read-only.
type Cache struct {
	entries *lru.Cache[Key, aligner.Alignment[string]]
	compute scorer.AlignFunc
}

// New returns a cache holding at most size alignments.
func New(size int) (*Cache, error) {
	entries, err := lru.New[Key, aligner.Alignment[string]](size)
	if err != nil {
		return nil, fmt.Errorf("alignment cache: %w", err)
	}
	return &Cache{entries: entries, compute: scorer.AlignText}, nil
}

// Align returns the cached alignment for the key or computes and stores
// it. Its signature matches scorer.AlignFunc.
func (c *Cache) Align(reference, hypothesis string, g tokenizer.Granularity) aligner.Alignment[string] {
	key := Key{Reference: reference, Hypothesis: hypothesis, Granularity: g}
	if a, ok := c.entries.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return a
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()
	a := c.compute(reference, hypothesis, g)
	c.entries.Add(key, a)
	return a
}

// Len reports the number of cached alignments.
func (c *Cache) Len() int { return c.entries.Len() }

// Purge drops every entry.
func (c *Cache) Purge() { c.entries.Purge() }
