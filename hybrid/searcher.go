// Package hybrid implements the Hybrid Searcher (C4): dispatches a query to
// the lexical and/or vector index according to search mode and fuses their
// rankings with Reciprocal Rank Fusion when both run.
package hybrid

import (
	"context"
	"sort"

	"github.com/ariadne-eng/queryengine/lexical"
	"github.com/ariadne-eng/queryengine/model"
	"github.com/ariadne-eng/queryengine/vectorindex"
)

// Embedder turns query text into a vector for semantic search. Implemented
// by the llm package's embedding client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// DefaultRRFK is the RRF smoothing constant used unless a query overrides it.
const DefaultRRFK = 60

// Params configures one hybrid search call.
type Params struct {
	Query       string
	Mode        model.SearchMode
	TopK        int
	Threshold   float64
	BufferScope *int64
	RRFK        int // 0 means DefaultRRFK
}

// Searcher runs hybrid, lexical-only, or semantic-only search over a
// lexical index and a vector index sharing the same chunk id space.
type Searcher struct {
	lex      *lexical.Index
	vec      *vectorindex.Index
	embedder Embedder
	cache    *vectorindex.EmbeddingCache
}

// New builds a Searcher over the given indexes and embedding client. Query
// embeddings are memoized for the Searcher's lifetime, so a tool-using
// Synthesizer that issues the same search text more than once in a query
// only pays the embedding provider once for it.
func New(lex *lexical.Index, vec *vectorindex.Index, embedder Embedder) *Searcher {
	return &Searcher{lex: lex, vec: vec, embedder: embedder, cache: vectorindex.NewEmbeddingCache()}
}

// Search runs the requested mode and returns fused, descending-ranked hits.
func (s *Searcher) Search(ctx context.Context, p Params) ([]model.SearchHit, error) {
	if p.TopK <= 0 {
		p.TopK = 100
	}
	rrfK := p.RRFK
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}

	var lexHits []lexical.Hit
	var vecHits []vectorindex.Hit

	needLexical := p.Mode == model.ModeHybrid || p.Mode == model.ModeLexical
	needSemantic := p.Mode == model.ModeHybrid || p.Mode == model.ModeSemantic

	if needLexical {
		lexHits = s.lex.Search(p.Query, p.TopK, p.BufferScope)
	}
	if needSemantic {
		q, err := s.embedQuery(ctx, p.Query)
		if err != nil {
			return nil, err
		}
		vecHits = s.vec.Search(q, p.TopK, p.Threshold, p.BufferScope)
	}

	switch p.Mode {
	case model.ModeLexical:
		return lexicalOnly(lexHits, p.TopK), nil
	case model.ModeSemantic:
		return semanticOnly(vecHits, p.TopK), nil
	default:
		return fuse(lexHits, vecHits, rrfK, p.TopK), nil
	}
}

// embedQuery embeds text, serving a cached vector for a (model, text) pair
// already seen by this Searcher instead of re-calling the provider.
func (s *Searcher) embedQuery(ctx context.Context, text string) ([]float32, error) {
	modelID := s.embedder.ModelName()
	if v, ok := s.cache.Get(modelID, text); ok {
		return v, nil
	}
	v, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Put(modelID, text, v)
	return v, nil
}

func lexicalOnly(hits []lexical.Hit, topK int) []model.SearchHit {
	out := make([]model.SearchHit, 0, len(hits))
	for _, h := range hits {
		score := h.Score
		out = append(out, model.SearchHit{ChunkID: h.ChunkID, FusedScore: h.Score, LexicalScore: &score})
	}
	return truncate(out, topK)
}

func semanticOnly(hits []vectorindex.Hit, topK int) []model.SearchHit {
	out := make([]model.SearchHit, 0, len(hits))
	for _, h := range hits {
		sim := h.Similarity
		out = append(out, model.SearchHit{ChunkID: h.ChunkID, FusedScore: h.Similarity, SemanticScore: &sim})
	}
	return truncate(out, topK)
}

// fuse computes Reciprocal Rank Fusion over the lexical and semantic result
// lists: fused(d) = sum over lists containing d of 1/(k + rank), where rank
// is the 1-based position of d in that list. A document absent from a list
// contributes 0 for it, equivalent to an infinite rank.
func fuse(lexHits []lexical.Hit, vecHits []vectorindex.Hit, k, topK int) []model.SearchHit {
	fused := make(map[int64]float64)
	lexScore := make(map[int64]float64)
	semScore := make(map[int64]float64)

	for i, h := range lexHits {
		rank := i + 1
		fused[h.ChunkID] += 1.0 / float64(k+rank)
		lexScore[h.ChunkID] = h.Score
	}
	for i, h := range vecHits {
		rank := i + 1
		fused[h.ChunkID] += 1.0 / float64(k+rank)
		semScore[h.ChunkID] = h.Similarity
	}

	out := make([]model.SearchHit, 0, len(fused))
	for chunkID, score := range fused {
		hit := model.SearchHit{ChunkID: chunkID, FusedScore: score}
		if v, ok := lexScore[chunkID]; ok {
			v := v
			hit.LexicalScore = &v
		}
		if v, ok := semScore[chunkID]; ok {
			v := v
			hit.SemanticScore = &v
		}
		out = append(out, hit)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return truncate(out, topK)
}

func truncate(hits []model.SearchHit, topK int) []model.SearchHit {
	if topK > 0 && len(hits) > topK {
		return hits[:topK]
	}
	return hits
}
