package hybrid

import (
	"context"
	"testing"

	"github.com/ariadne-eng/queryengine/lexical"
	"github.com/ariadne-eng/queryengine/model"
	"github.com/ariadne-eng/queryengine/vectorindex"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

func (f fakeEmbedder) ModelName() string { return "fake-embed-v1" }

type countingEmbedder struct {
	vector []float32
	calls  int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.vector, nil
}

func (c *countingEmbedder) ModelName() string { return "fake-embed-v1" }

func buildIndexes() (*lexical.Index, *vectorindex.Index) {
	lex := lexical.New()
	lex.Put(model.LexicalEntry{ChunkID: 1, BufferID: 1, Tokens: lexical.Tokenize("apple banana cherry"), Length: 3})
	lex.Put(model.LexicalEntry{ChunkID: 2, BufferID: 1, Tokens: lexical.Tokenize("banana banana banana date"), Length: 4})
	lex.Put(model.LexicalEntry{ChunkID: 3, BufferID: 1, Tokens: lexical.Tokenize("elderberry fig grape"), Length: 3})

	vec := vectorindex.New()
	vec.Put(1, 1, []float32{1, 0, 0})
	vec.Put(2, 1, []float32{0.8, 0.2, 0})
	vec.Put(4, 1, []float32{0, 1, 0})

	return lex, vec
}

func TestSearchLexicalOnly(t *testing.T) {
	lex, vec := buildIndexes()
	s := New(lex, vec, fakeEmbedder{})

	hits, err := s.Search(context.Background(), Params{Query: "banana", Mode: model.ModeLexical, TopK: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for _, h := range hits {
		if h.SemanticScore != nil {
			t.Errorf("lexical-only search should not set semantic score, got %+v", h)
		}
	}
}

func TestSearchSemanticOnly(t *testing.T) {
	lex, vec := buildIndexes()
	s := New(lex, vec, fakeEmbedder{vector: []float32{1, 0, 0}})

	hits, err := s.Search(context.Background(), Params{Query: "anything", Mode: model.ModeSemantic, TopK: 10, Threshold: -1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ChunkID != 1 {
		t.Errorf("expected chunk 1 (identical vector) first, got %d", hits[0].ChunkID)
	}
}

func TestSearchHybridFusesBothLists(t *testing.T) {
	lex, vec := buildIndexes()
	s := New(lex, vec, fakeEmbedder{vector: []float32{1, 0, 0}})

	hits, err := s.Search(context.Background(), Params{Query: "banana", Mode: model.ModeHybrid, TopK: 10, Threshold: -1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one fused hit")
	}
	// chunk 1 appears in both lists; chunk 4 (semantic only, orthogonal
	// vector) and chunk 3 (in neither list, since it lacks "banana" and has
	// no vector) should not dominate over a document present in both lists.
	var chunk1Score, chunk4Score float64
	for _, h := range hits {
		if h.ChunkID == 1 {
			chunk1Score = h.FusedScore
			if h.LexicalScore == nil || h.SemanticScore == nil {
				t.Errorf("expected chunk 1 to carry both component scores, got %+v", h)
			}
		}
		if h.ChunkID == 4 {
			chunk4Score = h.FusedScore
		}
	}
	if chunk1Score <= chunk4Score {
		t.Errorf("expected chunk present in both lists to fuse higher: chunk1=%v chunk4=%v", chunk1Score, chunk4Score)
	}
}

func TestFuseRRFFormula(t *testing.T) {
	lexHits := []lexical.Hit{{ChunkID: 1, Score: 5}, {ChunkID: 2, Score: 3}}
	vecHits := []vectorindex.Hit{{ChunkID: 2, Similarity: 0.9}, {ChunkID: 3, Similarity: 0.5}}

	out := fuse(lexHits, vecHits, 60, 10)

	want := map[int64]float64{
		1: 1.0 / 61,          // rank 1 in lexical only
		2: 1.0/62 + 1.0/61,   // rank 2 in lexical, rank 1 in semantic
		3: 1.0 / 62,          // rank 2 in semantic only
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 fused entries, got %d", len(out))
	}
	for _, h := range out {
		w := want[h.ChunkID]
		if diff := h.FusedScore - w; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("chunk %d: fused score %v, want %v", h.ChunkID, h.FusedScore, w)
		}
	}
	if out[0].ChunkID != 2 {
		t.Errorf("expected chunk 2 (present in both lists) to rank first, got %d", out[0].ChunkID)
	}
}

func TestFuseDegradesToSingleListWhenOtherEmpty(t *testing.T) {
	lexHits := []lexical.Hit{{ChunkID: 1, Score: 5}, {ChunkID: 2, Score: 3}}
	out := fuse(lexHits, nil, 60, 10)
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	for _, h := range out {
		if h.SemanticScore != nil {
			t.Errorf("expected no semantic score when semantic list is empty, got %+v", h)
		}
	}
	if out[0].ChunkID != 1 || out[1].ChunkID != 2 {
		t.Errorf("expected order preserved from lexical ranks, got %+v", out)
	}
}

func TestSearchCachesQueryEmbeddingAcrossCalls(t *testing.T) {
	lex, vec := buildIndexes()
	embedder := &countingEmbedder{vector: []float32{1, 0, 0}}
	s := New(lex, vec, embedder)

	for i := 0; i < 3; i++ {
		if _, err := s.Search(context.Background(), Params{Query: "repeated query", Mode: model.ModeSemantic, TopK: 10, Threshold: -1}); err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
	}
	if embedder.calls != 1 {
		t.Errorf("expected the embedder to be called once for a repeated query, got %d calls", embedder.calls)
	}

	if _, err := s.Search(context.Background(), Params{Query: "different query", Mode: model.ModeSemantic, TopK: 10, Threshold: -1}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if embedder.calls != 2 {
		t.Errorf("expected a new query text to trigger a fresh embed call, got %d calls", embedder.calls)
	}
}

func TestSearchSemanticEmbedErrorPropagates(t *testing.T) {
	lex, vec := buildIndexes()
	wantErr := context.Canceled
	s := New(lex, vec, fakeEmbedder{err: wantErr})

	_, err := s.Search(context.Background(), Params{Query: "x", Mode: model.ModeSemantic, TopK: 10})
	if err != wantErr {
		t.Fatalf("expected embed error to propagate, got %v", err)
	}
}
