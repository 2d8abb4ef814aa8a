package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ariadne-eng/queryengine/hybrid"
	"github.com/ariadne-eng/queryengine/lexical"
	"github.com/ariadne-eng/queryengine/model"
	"github.com/ariadne-eng/queryengine/store"
	"github.com/ariadne-eng/queryengine/vectorindex"
)

// fixture wires a real in-memory store plus matching lexical/vector indexes
// so the tools under test exercise the same code paths the orchestrator does.
type fixture struct {
	store    *store.Store
	searcher *hybrid.Searcher
	bufferID int64
	chunkIDs []int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.OpenInMemory(ctx)
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bufID, err := st.PutBuffer(ctx, model.Buffer{
		Name:     "doc1",
		Content:  "the quick brown fox jumps over the lazy dog",
		ByteSize: len("the quick brown fox jumps over the lazy dog"),
	})
	if err != nil {
		t.Fatalf("put buffer: %v", err)
	}

	chunks := []model.Chunk{
		{Index: 0, Start: 0, End: 19, Text: "the quick brown fox"},
		{Index: 1, Start: 20, End: 44, Text: "jumps over the lazy dog"},
	}
	if err := st.PutChunks(ctx, bufID, chunks); err != nil {
		t.Fatalf("put chunks: %v", err)
	}

	lex := lexical.New()
	vec := vectorindex.New()
	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		lex.Put(model.LexicalEntry{ChunkID: c.ID, BufferID: bufID, Tokens: lexical.Tokenize(c.Text), Length: len(c.Text)})
		vec.Put(c.ID, bufID, []float32{1, 0, 0})
	}

	searcher := hybrid.New(lex, vec, fakeEmbedder{vector: []float32{1, 0, 0}})

	return &fixture{store: st, searcher: searcher, bufferID: bufID, chunkIDs: ids}
}

type fakeEmbedder struct {
	vector []float32
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, nil
}

func (f fakeEmbedder) ModelName() string { return "fake-embed-v1" }

func mustArgs(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return b
}

func TestGetChunksToolReturnsOrderedChunks(t *testing.T) {
	fx := newFixture(t)
	tool := NewGetChunksTool(fx.store)

	args := mustArgs(t, getChunksArgs{ChunkIDs: []int64{fx.chunkIDs[1], fx.chunkIDs[0]}})
	if err := tool.Validate(args); err != nil {
		t.Fatalf("validate: %v", err)
	}
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}

	var chunks []*model.Chunk
	if err := json.Unmarshal([]byte(result.Output), &chunks); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(chunks) != 2 || chunks[0].ID != fx.chunkIDs[1] || chunks[1].ID != fx.chunkIDs[0] {
		t.Fatalf("expected order preserved, got %+v", chunks)
	}
}

func TestGetChunksToolRejectsEmptyAndOversizedLists(t *testing.T) {
	tool := NewGetChunksTool(nil)

	if err := tool.Validate(mustArgs(t, getChunksArgs{})); err == nil {
		t.Fatal("expected error for empty chunk_ids")
	}

	tooMany := make([]int64, MaxChunkIDs+1)
	if err := tool.Validate(mustArgs(t, getChunksArgs{ChunkIDs: tooMany})); err == nil {
		t.Fatal("expected error for too many chunk_ids")
	}
}

func TestSearchToolRunsHybridByDefault(t *testing.T) {
	fx := newFixture(t)
	tool := NewSearchTool(fx.searcher)

	args := mustArgs(t, searchArgs{Query: "quick fox"})
	if err := tool.Validate(args); err != nil {
		t.Fatalf("validate: %v", err)
	}
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}

	var hits []model.SearchHit
	if err := json.Unmarshal([]byte(result.Output), &hits); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
}

func TestSearchToolRejectsUnknownMode(t *testing.T) {
	tool := NewSearchTool(nil)
	mode := "nonsense"
	if err := tool.Validate(mustArgs(t, searchArgs{Query: "x", Mode: &mode})); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestSearchToolRejectsEmptyQuery(t *testing.T) {
	tool := NewSearchTool(nil)
	if err := tool.Validate(mustArgs(t, searchArgs{})); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestGrepChunksToolFindsMatchesByBuffer(t *testing.T) {
	fx := newFixture(t)
	tool := NewGrepChunksTool(fx.store)

	args := mustArgs(t, grepChunksArgs{Pattern: "quick", BufferID: &fx.bufferID})
	if err := tool.Validate(args); err != nil {
		t.Fatalf("validate: %v", err)
	}
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}

	var matches []grepMatch
	if err := json.Unmarshal([]byte(result.Output), &matches); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(matches) != 1 || matches[0].ChunkID != fx.chunkIDs[0] {
		t.Fatalf("expected one match on the first chunk, got %+v", matches)
	}
}

func TestGrepChunksToolRejectsMissingScope(t *testing.T) {
	tool := NewGrepChunksTool(nil)
	if err := tool.Validate(mustArgs(t, grepChunksArgs{Pattern: "x"})); err == nil {
		t.Fatal("expected error when neither chunk_ids nor buffer_id is given")
	}
}

func TestGrepChunksToolRejectsInvalidRegex(t *testing.T) {
	tool := NewGrepChunksTool(nil)
	bufID := int64(1)
	if err := tool.Validate(mustArgs(t, grepChunksArgs{Pattern: "(unclosed", BufferID: &bufID})); err == nil {
		t.Fatal("expected error for invalid regular expression")
	}
}

func TestGrepChunksToolRejectsOversizedContext(t *testing.T) {
	tool := NewGrepChunksTool(nil)
	bufID := int64(1)
	tooBig := MaxGrepContext + 1
	if err := tool.Validate(mustArgs(t, grepChunksArgs{Pattern: "x", BufferID: &bufID, ContextLines: &tooBig})); err == nil {
		t.Fatal("expected error for context_lines exceeding cap")
	}
}

func TestGetBufferToolByName(t *testing.T) {
	fx := newFixture(t)
	tool := NewGetBufferTool(fx.store)

	name := "doc1"
	args := mustArgs(t, getBufferArgs{Name: &name})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got error: %v", result.Error)
	}

	var buf model.Buffer
	if err := json.Unmarshal([]byte(result.Output), &buf); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if buf.ID != fx.bufferID {
		t.Fatalf("expected buffer id %d, got %d", fx.bufferID, buf.ID)
	}
}

func TestGetBufferToolRejectsBothNameAndID(t *testing.T) {
	tool := NewGetBufferTool(nil)
	name := "doc1"
	id := int64(1)
	if err := tool.Validate(mustArgs(t, getBufferArgs{Name: &name, ID: &id})); err == nil {
		t.Fatal("expected error when both name and id are given")
	}
}

func TestGetBufferToolRejectsNeitherNameNorID(t *testing.T) {
	tool := NewGetBufferTool(nil)
	if err := tool.Validate(mustArgs(t, getBufferArgs{})); err == nil {
		t.Fatal("expected error when neither name nor id is given")
	}
}

func TestListBuffersToolReturnsSummaries(t *testing.T) {
	fx := newFixture(t)
	tool := NewListBuffersTool(fx.store)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var summaries []bufferSummary
	if err := json.Unmarshal([]byte(result.Output), &summaries); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Name != "doc1" {
		t.Fatalf("expected one summary for doc1, got %+v", summaries)
	}
}

func TestStorageStatsToolReportsCounts(t *testing.T) {
	fx := newFixture(t)
	tool := NewStorageStatsTool(fx.store)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var stats model.StorageStats
	if err := json.Unmarshal([]byte(result.Output), &stats); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if stats.Buffers != 1 || stats.Chunks != 2 {
		t.Fatalf("expected 1 buffer and 2 chunks, got %+v", stats)
	}
}
