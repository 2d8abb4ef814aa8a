// Package vectorindex implements the brute-force vector index (C3): cosine
// similarity search over chunk embeddings. No repo in the pack ships a
// vector-math or ANN library as an importable dependency (the one example
// that does semantic search at all, sdey02-AWS-Agent, delegates it entirely
// to an external Zilliz/Milvus service rather than computing similarity in
// Go), so this stays on the standard library's math and sort packages.
package vectorindex

import (
	"math"
	"sort"
	"sync"
)

// Hit is one ranked vector-similarity result.
type Hit struct {
	ChunkID    int64
	Similarity float64
}

type entry struct {
	bufferID int64
	vector   []float32
	norm     float64
}

// Index is a brute-force cosine-similarity index over embeddings for a
// single embedding model. The engine keeps one Index per model identifier.
type Index struct {
	mu      sync.RWMutex
	entries map[int64]entry
}

// New returns an empty vector index.
func New() *Index {
	return &Index{entries: make(map[int64]entry)}
}

// Put indexes (or replaces) a chunk's embedding.
func (idx *Index) Put(chunkID, bufferID int64, vector []float32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[chunkID] = entry{bufferID: bufferID, vector: vector, norm: l2Norm(vector)}
}

// Delete removes a chunk's embedding.
func (idx *Index) Delete(chunkID int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, chunkID)
}

// DeleteBuffer removes every embedding belonging to a buffer.
func (idx *Index) DeleteBuffer(bufferID int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for chunkID, e := range idx.entries {
		if e.bufferID == bufferID {
			delete(idx.entries, chunkID)
		}
	}
}

// Size returns the number of indexed embeddings.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Search ranks chunks by cosine similarity to query, highest first,
// filtered to similarity >= threshold. bufferScope, if non-nil, restricts
// results to one buffer.
func (idx *Index) Search(query []float32, topK int, threshold float64, bufferScope *int64) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	qNorm := l2Norm(query)
	if qNorm == 0 || len(idx.entries) == 0 {
		return nil
	}

	hits := make([]Hit, 0, len(idx.entries))
	for chunkID, e := range idx.entries {
		if bufferScope != nil && e.bufferID != *bufferScope {
			continue
		}
		if len(e.vector) != len(query) || e.norm == 0 {
			continue
		}
		sim := dot(query, e.vector) / (qNorm * e.norm)
		if sim < threshold {
			continue
		}
		hits = append(hits, Hit{ChunkID: chunkID, Similarity: sim})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func l2Norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// EmbeddingCache memoizes query-text embeddings keyed by (model, text) so a
// Hybrid Searcher's repeated semantic searches against the same text, e.g.
// from a tool-using Synthesizer calling the search tool more than once in a
// query, do not re-call the embedding provider. Guarded by sync.RWMutex to
// match the rest of this package's indexes (§5's shared-resource rule).
type EmbeddingCache struct {
	mu    sync.RWMutex
	byKey map[string][]float32
}

// NewEmbeddingCache returns an empty cache.
func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{byKey: make(map[string][]float32)}
}

// Get returns a cached embedding for (model, text), if present.
func (c *EmbeddingCache) Get(modelID, text string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.byKey[modelID+"\x00"+text]
	return v, ok
}

// Put stores an embedding for (model, text).
func (c *EmbeddingCache) Put(modelID, text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[modelID+"\x00"+text] = vector
}
