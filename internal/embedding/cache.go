package embedding

import (
	"context"
	"sync"
)

type lruNode struct {
	key        string
	vec        []float32
	prev, next *lruNode
}

// EmbeddingCache is a fixed-capacity LRU of vectors keyed by input text.
// Vectors are copied on the way in and out so callers may mutate them.
type EmbeddingCache struct {
	mu    sync.Mutex
	limit int
	nodes map[string]*lruNode
	head  lruNode // sentinel; head.next is most recent, head.prev least recent
}

func NewEmbeddingCache(capacity int) *EmbeddingCache {
	c := &EmbeddingCache{limit: max(capacity, 1), nodes: make(map[string]*lruNode)}
	c.head.next, c.head.prev = &c.head, &c.head
	return c
}

func (c *EmbeddingCache) unlink(n *lruNode) {
	n.prev.next, n.next.prev = n.next, n.prev
}

func (c *EmbeddingCache) pushFront(n *lruNode) {
	n.prev, n.next = &c.head, c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[key]
	if !ok {
		return nil, false
	}
	c.unlink(n)
	c.pushFront(n)
	return cloneVector(n.vec), true
}

func (c *EmbeddingCache) Set(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[key]; ok {
		n.vec = cloneVector(vec)
		c.unlink(n)
		c.pushFront(n)
		return
	}
	n := &lruNode{key: key, vec: cloneVector(vec)}
	c.nodes[key] = n
	c.pushFront(n)
	if len(c.nodes) > c.limit {
		victim := c.head.prev
		c.unlink(victim)
		delete(c.nodes, victim.key)
	}
}

func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// CachedEmbedder memoizes Embed, which serves query text. EmbedBatch goes
// straight to the provider since it only runs during index builds and would
// flush useful query entries.
type CachedEmbedder struct {
	Embedder
	cache *EmbeddingCache
}

func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{Embedder: inner, cache: NewEmbeddingCache(capacity)}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec)
	return vec, nil
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	return append(make([]float32, 0, len(v)), v...)
}
