package store

import (
	"context"
	"strings"
	"testing"

	"github.com/ariadne-eng/queryengine/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(context.Background())
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIsInitializedAfterOpen(t *testing.T) {
	s := openTestStore(t)
	ok, err := s.IsInitialized(context.Background())
	if err != nil {
		t.Fatalf("is_initialized: %v", err)
	}
	if !ok {
		t.Fatal("expected store to be initialized after Open")
	}
}

func TestPutBufferAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	content := "hello, 世界" // multi-byte content exercises byte-size accounting
	id, err := s.PutBuffer(ctx, model.Buffer{
		Name:        "doc1",
		Content:     content,
		ByteSize:    len(content),
		LineCount:   1,
		ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("put_buffer: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := s.GetBufferByID(ctx, id)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got == nil {
		t.Fatal("expected buffer, got nil")
	}
	if got.Content != content {
		t.Errorf("content round-trip mismatch: got %q want %q", got.Content, content)
	}

	byName, err := s.GetBufferByName(ctx, "doc1")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if byName == nil || byName.ID != id {
		t.Fatalf("expected matching buffer by name, got %+v", byName)
	}
}

func TestPutBufferNameCollision(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.PutBuffer(ctx, model.Buffer{Name: "dup", Content: "a"}); err != nil {
		t.Fatalf("first put_buffer: %v", err)
	}
	_, err := s.PutBuffer(ctx, model.Buffer{Name: "dup", Content: "b"})
	if err == nil {
		t.Fatal("expected conflict error on duplicate name")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected conflict error, got: %v", err)
	}
}

func TestGetBufferMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetBufferByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing buffer, got %+v", got)
	}
}

func TestDeleteBufferCascadesToChunksAndEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	bufID, err := s.PutBuffer(ctx, model.Buffer{Name: "b", Content: "abcdef"})
	if err != nil {
		t.Fatalf("put_buffer: %v", err)
	}

	chunks := []model.Chunk{
		{Index: 0, Start: 0, End: 3, Text: "abc"},
		{Index: 1, Start: 3, End: 6, Text: "def"},
	}
	if err := s.PutChunks(ctx, bufID, chunks); err != nil {
		t.Fatalf("put_chunks: %v", err)
	}
	if err := s.PutEmbedding(ctx, chunks[0].ID, "test-model", []float32{1, 2, 3}); err != nil {
		t.Fatalf("put_embedding: %v", err)
	}

	if err := s.DeleteBuffer(ctx, bufID); err != nil {
		t.Fatalf("delete_buffer: %v", err)
	}

	remaining, err := s.ListChunks(ctx, bufID)
	if err != nil {
		t.Fatalf("list_chunks after delete: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no orphaned chunks, got %d", len(remaining))
	}

	emb, err := s.GetEmbedding(ctx, chunks[0].ID, "test-model")
	if err != nil {
		t.Fatalf("get_embedding after cascade: %v", err)
	}
	if emb != nil {
		t.Error("expected embedding to be cascade-deleted with its chunk")
	}
}

func TestGetChunksByIDsPreservesOrderAndNilsMissing(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	bufID, _ := s.PutBuffer(ctx, model.Buffer{Name: "b", Content: "abcdef"})
	chunks := []model.Chunk{
		{Index: 0, Start: 0, End: 3, Text: "abc"},
		{Index: 1, Start: 3, End: 6, Text: "def"},
	}
	if err := s.PutChunks(ctx, bufID, chunks); err != nil {
		t.Fatalf("put_chunks: %v", err)
	}

	missingID := chunks[1].ID + 1000
	got, err := s.GetChunksByIDs(ctx, []int64{chunks[1].ID, missingID, chunks[0].ID})
	if err != nil {
		t.Fatalf("get_chunks_by_ids: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(got))
	}
	if got[0] == nil || got[0].ID != chunks[1].ID {
		t.Errorf("slot 0: expected chunk %d, got %+v", chunks[1].ID, got[0])
	}
	if got[1] != nil {
		t.Errorf("slot 1: expected nil for missing id, got %+v", got[1])
	}
	if got[2] == nil || got[2].ID != chunks[0].ID {
		t.Errorf("slot 2: expected chunk %d, got %+v", chunks[0].ID, got[2])
	}
}

func TestMissingEmbeddingsEmptyAfterEmbeddingAll(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	bufID, _ := s.PutBuffer(ctx, model.Buffer{Name: "b", Content: "abcdef"})
	chunks := []model.Chunk{
		{Index: 0, Start: 0, End: 3, Text: "abc"},
		{Index: 1, Start: 3, End: 6, Text: "def"},
	}
	if err := s.PutChunks(ctx, bufID, chunks); err != nil {
		t.Fatalf("put_chunks: %v", err)
	}

	missing, err := s.MissingEmbeddings(ctx, bufID, "m")
	if err != nil {
		t.Fatalf("missing_embeddings: %v", err)
	}
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing embeddings, got %d", len(missing))
	}

	for _, c := range chunks {
		if err := s.PutEmbedding(ctx, c.ID, "m", []float32{0.1, 0.2}); err != nil {
			t.Fatalf("put_embedding: %v", err)
		}
	}

	missing, err = s.MissingEmbeddings(ctx, bufID, "m")
	if err != nil {
		t.Fatalf("missing_embeddings after embed: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("expected no missing embeddings after embedding all chunks, got %v", missing)
	}
}

func TestEmbeddingVectorRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	bufID, _ := s.PutBuffer(ctx, model.Buffer{Name: "b", Content: "abc"})
	chunks := []model.Chunk{{Index: 0, Start: 0, End: 3, Text: "abc"}}
	if err := s.PutChunks(ctx, bufID, chunks); err != nil {
		t.Fatalf("put_chunks: %v", err)
	}

	want := []float32{0.5, -0.25, 3.125, 0}
	if err := s.PutEmbedding(ctx, chunks[0].ID, "m", want); err != nil {
		t.Fatalf("put_embedding: %v", err)
	}

	got, err := s.GetEmbedding(ctx, chunks[0].ID, "m")
	if err != nil {
		t.Fatalf("get_embedding: %v", err)
	}
	if got == nil {
		t.Fatal("expected embedding, got nil")
	}
	if len(got.Vector) != len(want) {
		t.Fatalf("vector length mismatch: got %d want %d", len(got.Vector), len(want))
	}
	for i := range want {
		if got.Vector[i] != want[i] {
			t.Errorf("vector[%d]: got %v want %v", i, got.Vector[i], want[i])
		}
	}
}

func TestUpdateBufferReplacesContentAndChunks(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	bufID, _ := s.PutBuffer(ctx, model.Buffer{Name: "b", Content: "old"})
	if err := s.PutChunks(ctx, bufID, []model.Chunk{{Index: 0, Start: 0, End: 3, Text: "old"}}); err != nil {
		t.Fatalf("put_chunks: %v", err)
	}

	newChunks := []model.Chunk{
		{Index: 0, Start: 0, End: 3, Text: "new"},
		{Index: 1, Start: 3, End: 6, Text: "one"},
	}
	if err := s.UpdateBuffer(ctx, bufID, "newone", newChunks); err != nil {
		t.Fatalf("update_buffer: %v", err)
	}

	buf, err := s.GetBufferByID(ctx, bufID)
	if err != nil {
		t.Fatalf("get_buffer: %v", err)
	}
	if buf.Content != "newone" {
		t.Errorf("expected updated content, got %q", buf.Content)
	}
	if buf.ChunkCount != 2 {
		t.Errorf("expected chunk_count=2, got %d", buf.ChunkCount)
	}

	chunks, err := s.ListChunks(ctx, bufID)
	if err != nil {
		t.Fatalf("list_chunks: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks after update, got %d", len(chunks))
	}
}

func TestStatsReflectsStore(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	bufID, _ := s.PutBuffer(ctx, model.Buffer{Name: "b", Content: "abcdef", ByteSize: 6})
	chunks := []model.Chunk{
		{Index: 0, Start: 0, End: 3, Text: "abc"},
		{Index: 1, Start: 3, End: 6, Text: "def"},
	}
	if err := s.PutChunks(ctx, bufID, chunks); err != nil {
		t.Fatalf("put_chunks: %v", err)
	}
	if err := s.PutEmbedding(ctx, chunks[0].ID, "m", []float32{1}); err != nil {
		t.Fatalf("put_embedding: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Buffers != 1 || stats.Chunks != 2 || stats.Bytes != 6 || stats.EmbeddedChunks != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestResetClearsStoreAndReinitializes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.PutBuffer(ctx, model.Buffer{Name: "b", Content: "x"}); err != nil {
		t.Fatalf("put_buffer: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	ok, err := s.IsInitialized(ctx)
	if err != nil {
		t.Fatalf("is_initialized: %v", err)
	}
	if !ok {
		t.Fatal("expected store to be initialized after reset")
	}

	buffers, err := s.ListBuffers(ctx)
	if err != nil {
		t.Fatalf("list_buffers: %v", err)
	}
	if len(buffers) != 0 {
		t.Errorf("expected empty store after reset, got %d buffers", len(buffers))
	}
}

func TestGetChunkMetadataBatchIsBulkSafe(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	bufID, _ := s.PutBuffer(ctx, model.Buffer{Name: "b", Content: "abcdef"})
	chunks := []model.Chunk{
		{Index: 0, Start: 0, End: 3, Text: "abc"},
		{Index: 1, Start: 3, End: 6, Text: "def"},
	}
	if err := s.PutChunks(ctx, bufID, chunks); err != nil {
		t.Fatalf("put_chunks: %v", err)
	}

	refs, err := s.GetChunkMetadataBatch(ctx, []int64{chunks[0].ID, chunks[1].ID})
	if err != nil {
		t.Fatalf("get_chunk_metadata_batch: %v", err)
	}
	if len(refs) != 2 || refs[0] == nil || refs[1] == nil {
		t.Fatalf("expected 2 populated refs, got %+v", refs)
	}
	if refs[0].Start != 0 || refs[1].Start != 3 {
		t.Errorf("unexpected byte offsets: %+v %+v", refs[0], refs[1])
	}
}
