package lexical

import (
	"testing"

	"github.com/ariadne-eng/queryengine/model"
)

func mustPut(idx *Index, chunkID, bufferID int64, text string) {
	tokens := Tokenize(text)
	idx.Put(model.LexicalEntry{ChunkID: chunkID, BufferID: bufferID, Tokens: tokens, Length: len(tokens)})
}

func TestSearchOrdersByDescendingScore(t *testing.T) {
	idx := New()
	mustPut(idx, 1, 1, "the quick brown fox jumps over the lazy dog")
	mustPut(idx, 2, 1, "fox fox fox fox everywhere in this document about foxes")
	mustPut(idx, 3, 1, "an entirely unrelated document about oceanography")

	hits := idx.Search("fox", 10, nil)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d: %+v", len(hits), hits)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i-1].Score < hits[i].Score {
			t.Errorf("scores not descending: %+v", hits)
		}
	}
	if hits[0].ChunkID != 2 {
		t.Errorf("expected chunk 2 (more fox occurrences) to rank first, got %d", hits[0].ChunkID)
	}
}

func TestSearchScoresStrictlyPositive(t *testing.T) {
	idx := New()
	mustPut(idx, 1, 1, "alpha beta gamma")
	mustPut(idx, 2, 1, "alpha beta gamma delta epsilon")
	mustPut(idx, 3, 1, "alpha")

	hits := idx.Search("alpha beta", 10, nil)
	for _, h := range hits {
		if h.Score <= 0 {
			t.Errorf("expected strictly positive score, got %v for chunk %d", h.Score, h.ChunkID)
		}
	}
}

func TestSearchSpecialCharactersDoNotError(t *testing.T) {
	idx := New()
	mustPut(idx, 1, 1, "normal text here")

	queries := []string{
		`(foo|bar)*`,
		`[a-z]+`,
		`"quoted phrase" AND term`,
		`--flag --other`,
		"emoji \U0001F600 stays out of tokens",
		"",
	}
	for _, q := range queries {
		hits := idx.Search(q, 10, nil)
		_ = hits // must not panic or error regardless of content
	}
}

func TestSearchRespectsBufferScope(t *testing.T) {
	idx := New()
	mustPut(idx, 1, 100, "shared term across buffers")
	mustPut(idx, 2, 200, "shared term across buffers")

	scope := int64(100)
	hits := idx.Search("shared term", 10, &scope)
	if len(hits) != 1 || hits[0].ChunkID != 1 {
		t.Fatalf("expected only chunk 1 scoped to buffer 100, got %+v", hits)
	}
}

func TestDeleteRemovesFromIndex(t *testing.T) {
	idx := New()
	mustPut(idx, 1, 1, "removable content term")
	if idx.Size() != 1 {
		t.Fatalf("expected size 1, got %d", idx.Size())
	}

	idx.Delete(1)
	if idx.Size() != 0 {
		t.Errorf("expected size 0 after delete, got %d", idx.Size())
	}
	hits := idx.Search("removable", 10, nil)
	if len(hits) != 0 {
		t.Errorf("expected no hits after delete, got %+v", hits)
	}
}

func TestDeleteBufferRemovesAllItsChunks(t *testing.T) {
	idx := New()
	mustPut(idx, 1, 100, "term one")
	mustPut(idx, 2, 100, "term two")
	mustPut(idx, 3, 200, "term three")

	idx.DeleteBuffer(100)
	if idx.Size() != 1 {
		t.Fatalf("expected 1 remaining chunk, got %d", idx.Size())
	}
	hits := idx.Search("term", 10, nil)
	if len(hits) != 1 || hits[0].ChunkID != 3 {
		t.Errorf("expected only chunk 3 to remain, got %+v", hits)
	}
}

func TestPutReindexesWithoutLeakingStaleTerms(t *testing.T) {
	idx := New()
	mustPut(idx, 1, 1, "original terms here")
	mustPut(idx, 1, 1, "completely different content")

	if hits := idx.Search("original", 10, nil); len(hits) != 0 {
		t.Errorf("expected stale term 'original' to be gone, got %+v", hits)
	}
	if hits := idx.Search("different", 10, nil); len(hits) != 1 {
		t.Errorf("expected re-indexed term to be found, got %+v", hits)
	}
}

func TestTokenizeLowercasesAndSplitsOnNonAlnum(t *testing.T) {
	got := Tokenize("Hello, World! 123-foo_bar")
	want := []string{"hello", "world", "123", "foo", "bar"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestSearchTopKTruncates(t *testing.T) {
	idx := New()
	for i := int64(1); i <= 5; i++ {
		mustPut(idx, i, 1, "common term")
	}
	hits := idx.Search("common", 2, nil)
	if len(hits) != 2 {
		t.Fatalf("expected topK=2 to truncate to 2 hits, got %d", len(hits))
	}
}
