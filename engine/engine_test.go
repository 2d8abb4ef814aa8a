package engine

import (
	"context"
	"testing"

	"github.com/ariadne-eng/queryengine/model"
	"github.com/ariadne-eng/queryengine/orchestrator"
	"github.com/ariadne-eng/queryengine/store"
)

type fakeEmbedder struct{ calls int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{1, 0, 0}, nil
}
func (f *fakeEmbedder) ModelName() string { return "fake-embed-v1" }
func (f *fakeEmbedder) Dimensions() int   { return 3 }

func newTestEngine(t *testing.T) (*Engine, *fakeEmbedder) {
	t.Helper()
	ctx := context.Background()

	st, err := store.OpenInMemory(ctx)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}

	embedder := &fakeEmbedder{}
	eng, err := Open(ctx, st, Options{Embedder: embedder, OrchestratorCfg: orchestrator.DefaultConfig()})
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	return eng, embedder
}

func TestLoadBufferIndexesChunksLexically(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	bufID, err := eng.LoadBuffer(ctx, LoadBufferParams{Name: "doc", Content: "the quick brown fox jumps over the lazy dog", Size: 20, Overlap: 5})
	if err != nil {
		t.Fatalf("load buffer: %v", err)
	}

	chunks, err := eng.ListChunks(ctx, bufID)
	if err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}

	hits, err := eng.Search(ctx, "fox", model.ModeLexical, 10, 0, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected lexical search to find the freshly loaded chunk")
	}
}

func TestLoadBufferPopulatesContentTypeAndLineCount(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	bufID, err := eng.LoadBuffer(ctx, LoadBufferParams{
		Name:       "notes",
		Content:    "<p>line one</p>\n<p>line two</p>\n<p>line three</p>\n",
		SourcePath: "/docs/notes.html",
		Size:       100,
	})
	if err != nil {
		t.Fatalf("load buffer: %v", err)
	}

	buf, err := eng.Store.GetBufferByID(ctx, bufID)
	if err != nil {
		t.Fatalf("get buffer: %v", err)
	}
	if buf.SourcePath != "/docs/notes.html" {
		t.Errorf("expected source path to be stored, got %q", buf.SourcePath)
	}
	if buf.ContentType != "text/html" {
		t.Errorf("expected content type derived from .html extension, got %q", buf.ContentType)
	}
	if buf.LineCount != 3 {
		t.Errorf("expected line count 3, got %d", buf.LineCount)
	}
}

func TestLoadBufferSniffsContentTypeWithoutSourcePath(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	bufID, err := eng.LoadBuffer(ctx, LoadBufferParams{Name: "plain", Content: "just some plain text", Size: 100})
	if err != nil {
		t.Fatalf("load buffer: %v", err)
	}

	buf, err := eng.Store.GetBufferByID(ctx, bufID)
	if err != nil {
		t.Fatalf("get buffer: %v", err)
	}
	if buf.ContentType == "" {
		t.Error("expected a sniffed content type when no source path is given")
	}
}

func TestEmbedBufferIsIncremental(t *testing.T) {
	eng, embedder := newTestEngine(t)
	ctx := context.Background()

	bufID, err := eng.LoadBuffer(ctx, LoadBufferParams{Name: "doc", Content: "alpha beta gamma delta epsilon", Size: 10, Overlap: 0})
	if err != nil {
		t.Fatalf("load buffer: %v", err)
	}

	first, err := eng.EmbedBuffer(ctx, bufID, false)
	if err != nil {
		t.Fatalf("embed buffer: %v", err)
	}
	if first.Embedded == 0 {
		t.Fatal("expected the first embed_buffer call to embed at least one chunk")
	}
	callsAfterFirst := embedder.calls

	second, err := eng.EmbedBuffer(ctx, bufID, false)
	if err != nil {
		t.Fatalf("re-embed buffer: %v", err)
	}
	if second.Embedded != 0 {
		t.Fatalf("expected the second embed_buffer(force=false) call to embed nothing, embedded %d", second.Embedded)
	}
	if embedder.calls != callsAfterFirst {
		t.Fatalf("expected no additional provider calls on the second pass, got %d more", embedder.calls-callsAfterFirst)
	}

	hits, err := eng.Search(ctx, "alpha", model.ModeSemantic, 10, -1, nil)
	if err != nil {
		t.Fatalf("semantic search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected semantic search to find the embedded chunk")
	}
}

func TestDeleteBufferRemovesIndexEntries(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	bufID, err := eng.LoadBuffer(ctx, LoadBufferParams{Name: "doc", Content: "zebra unique content marker", Size: 100, Overlap: 0})
	if err != nil {
		t.Fatalf("load buffer: %v", err)
	}

	if err := eng.DeleteBuffer(ctx, bufID); err != nil {
		t.Fatalf("delete buffer: %v", err)
	}

	hits, err := eng.Search(ctx, "zebra", model.ModeLexical, 10, 0, nil)
	if err != nil {
		t.Fatalf("search after delete: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits after delete, got %d", len(hits))
	}

	if buf, err := eng.Store.GetBufferByID(ctx, bufID); err != nil || buf != nil {
		t.Fatalf("expected buffer to be gone from the store, got %+v, %v", buf, err)
	}
}

func TestUpdateBufferReplacesChunksAndReindexes(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	bufID, err := eng.LoadBuffer(ctx, LoadBufferParams{Name: "doc", Content: "original content about cats", Size: 100, Overlap: 0})
	if err != nil {
		t.Fatalf("load buffer: %v", err)
	}

	if err := eng.UpdateBuffer(ctx, UpdateBufferParams{BufferID: bufID, Content: "updated content about dogs", Size: 100, Overlap: 0}); err != nil {
		t.Fatalf("update buffer: %v", err)
	}

	oldHits, err := eng.Search(ctx, "cats", model.ModeLexical, 10, 0, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(oldHits) != 0 {
		t.Fatalf("expected stale term to have no hits after update, got %d", len(oldHits))
	}

	newHits, err := eng.Search(ctx, "dogs", model.ModeLexical, 10, 0, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(newHits) == 0 {
		t.Fatal("expected the updated content's term to be searchable")
	}
}
