package vectorindex

import "testing"

func TestSearchOrdersByDescendingSimilarity(t *testing.T) {
	idx := New()
	idx.Put(1, 1, []float32{1, 0, 0})
	idx.Put(2, 1, []float32{0.9, 0.1, 0})
	idx.Put(3, 1, []float32{0, 1, 0})

	hits := idx.Search([]float32{1, 0, 0}, 10, -1, nil)
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i-1].Similarity < hits[i].Similarity {
			t.Errorf("similarities not descending: %+v", hits)
		}
	}
	if hits[0].ChunkID != 1 {
		t.Errorf("expected chunk 1 (identical vector) to rank first, got %d", hits[0].ChunkID)
	}
}

func TestSearchAppliesThreshold(t *testing.T) {
	idx := New()
	idx.Put(1, 1, []float32{1, 0, 0})
	idx.Put(2, 1, []float32{0, 1, 0}) // orthogonal, similarity 0

	hits := idx.Search([]float32{1, 0, 0}, 10, 0.5, nil)
	if len(hits) != 1 || hits[0].ChunkID != 1 {
		t.Fatalf("expected only chunk 1 to pass threshold, got %+v", hits)
	}
}

func TestSearchRespectsBufferScope(t *testing.T) {
	idx := New()
	idx.Put(1, 100, []float32{1, 0, 0})
	idx.Put(2, 200, []float32{1, 0, 0})

	scope := int64(100)
	hits := idx.Search([]float32{1, 0, 0}, 10, -1, &scope)
	if len(hits) != 1 || hits[0].ChunkID != 1 {
		t.Fatalf("expected only chunk 1 scoped to buffer 100, got %+v", hits)
	}
}

func TestSearchTopKTruncates(t *testing.T) {
	idx := New()
	for i := int64(1); i <= 5; i++ {
		idx.Put(i, 1, []float32{1, 0, 0})
	}
	hits := idx.Search([]float32{1, 0, 0}, 2, -1, nil)
	if len(hits) != 2 {
		t.Fatalf("expected topK=2 to truncate to 2 hits, got %d", len(hits))
	}
}

func TestSearchZeroQueryVectorReturnsNoHits(t *testing.T) {
	idx := New()
	idx.Put(1, 1, []float32{1, 0, 0})
	hits := idx.Search([]float32{0, 0, 0}, 10, -1, nil)
	if len(hits) != 0 {
		t.Errorf("expected no hits for a zero-norm query, got %+v", hits)
	}
}

func TestDeleteRemovesFromIndex(t *testing.T) {
	idx := New()
	idx.Put(1, 1, []float32{1, 0, 0})
	idx.Delete(1)
	if idx.Size() != 0 {
		t.Errorf("expected size 0 after delete, got %d", idx.Size())
	}
}

func TestDeleteBufferRemovesAllItsChunks(t *testing.T) {
	idx := New()
	idx.Put(1, 100, []float32{1, 0, 0})
	idx.Put(2, 100, []float32{0, 1, 0})
	idx.Put(3, 200, []float32{0, 0, 1})

	idx.DeleteBuffer(100)
	if idx.Size() != 1 {
		t.Fatalf("expected 1 remaining embedding, got %d", idx.Size())
	}
}

func TestEmbeddingCacheRoundTrip(t *testing.T) {
	c := NewEmbeddingCache()
	if _, ok := c.Get("m", "text"); ok {
		t.Fatal("expected cache miss before Put")
	}
	c.Put("m", "text", []float32{1, 2, 3})
	v, ok := c.Get("m", "text")
	if !ok || len(v) != 3 {
		t.Fatalf("expected cache hit with 3-dim vector, got %v %v", v, ok)
	}
	if _, ok := c.Get("m2", "text"); ok {
		t.Error("expected cache miss for a different model id")
	}
}
