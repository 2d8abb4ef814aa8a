// Package lexical implements the BM25 lexical index (C2): keyword ranking
// over chunk text, backed by a radix-tree term dictionary so that the
// posting list for a term is a single O(k) lookup regardless of vocabulary
// size.
package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ariadne-eng/queryengine/internal/dsa"
	"github.com/ariadne-eng/queryengine/model"
)

// BM25 tuning constants, standard defaults (Robertson/Sparck Jones).
const (
	k1 = 1.5
	b  = 0.75
)

// Hit is one ranked lexical result.
type Hit struct {
	ChunkID int64
	Score   float64
}

type docEntry struct {
	bufferID int64
	length   int
	tokens   []string
}

// Index is an in-memory BM25 index over chunk text, kept in sync with the
// chunk store by explicit Put/Delete calls from the ingestion path.
type Index struct {
	mu sync.RWMutex

	terms       *dsa.Trie[map[int64]int] // token -> chunk_id -> term frequency
	docs        map[int64]docEntry
	totalLength int
}

// New returns an empty lexical index.
func New() *Index {
	return &Index{
		terms: dsa.NewTrie[map[int64]int](),
		docs:  make(map[int64]docEntry),
	}
}

// Tokenize splits text into a lowercase, alphanumeric token stream. This is
// also how query text is normalized before scoring, which is what makes
// user queries "escaped": nothing in the query is treated as index syntax,
// every character either joins a token or splits one.
func Tokenize(text string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// Put indexes (or re-indexes) a chunk's lexical entry. Any prior postings
// for the same chunk id are removed first so repeated ingestion of an
// updated chunk does not leak stale term counts.
func (idx *Index) Put(entry model.LexicalEntry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(entry.ChunkID)

	freqs := make(map[string]int)
	for _, tok := range entry.Tokens {
		freqs[tok]++
	}
	for term, freq := range freqs {
		postings, ok := idx.terms.Search(term)
		if !ok {
			postings = make(map[int64]int)
			idx.terms.Insert(term, postings)
		}
		postings[entry.ChunkID] = freq
	}

	idx.docs[entry.ChunkID] = docEntry{
		bufferID: entry.BufferID,
		length:   entry.Length,
		tokens:   entry.Tokens,
	}
	idx.totalLength += entry.Length
}

// Delete removes a chunk from the index.
func (idx *Index) Delete(chunkID int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(chunkID)
}

// DeleteBuffer removes every chunk belonging to a buffer.
func (idx *Index) DeleteBuffer(bufferID int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for chunkID, doc := range idx.docs {
		if doc.bufferID == bufferID {
			idx.removeLocked(chunkID)
		}
	}
}

// removeLocked assumes idx.mu is already held.
func (idx *Index) removeLocked(chunkID int64) {
	doc, ok := idx.docs[chunkID]
	if !ok {
		return
	}
	seen := make(map[string]bool)
	for _, tok := range doc.tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		if postings, ok := idx.terms.Search(tok); ok {
			delete(postings, chunkID)
			if len(postings) == 0 {
				idx.terms.Delete(tok)
			}
		}
	}
	idx.totalLength -= doc.length
	delete(idx.docs, chunkID)
}

// Search ranks chunks by BM25 relevance to query, highest score first.
// bufferScope, if non-nil, restricts results to one buffer. Multi-term
// queries use OR semantics: a chunk need only contain one query term to be
// considered, exactly like summing independent per-term contributions.
// Every returned score is strictly positive.
func (idx *Index) Search(query string, topK int, bufferScope *int64) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.docs) == 0 {
		return nil
	}

	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	unique := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		unique[t] = true
	}

	totalDocs := float64(len(idx.docs))
	avgdl := float64(idx.totalLength) / totalDocs

	scores := make(map[int64]float64)
	for term := range unique {
		postings, ok := idx.terms.Search(term)
		if !ok || len(postings) == 0 {
			continue
		}
		df := float64(len(postings))
		// BM25+ style idf: log(1 + ...) stays positive for every df in
		// [1, totalDocs], so a returned score never needs clamping.
		idf := math.Log(1 + (totalDocs-df+0.5)/(df+0.5))

		for chunkID, freq := range postings {
			if bufferScope != nil {
				if doc, ok := idx.docs[chunkID]; !ok || doc.bufferID != *bufferScope {
					continue
				}
			}
			dl := float64(idx.docs[chunkID].length)
			denom := float64(freq) + k1*(1-b+b*dl/avgdl)
			scores[chunkID] += idf * (float64(freq) * (k1 + 1)) / denom
		}
	}

	hits := make([]Hit, 0, len(scores))
	for chunkID, score := range scores {
		hits = append(hits, Hit{ChunkID: chunkID, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// Size returns the number of indexed chunks.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}
