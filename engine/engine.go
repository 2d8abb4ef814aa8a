// Package engine wires the Chunk Store, Lexical Index, Vector Index,
// Hybrid Searcher, Scaling Policy, and the three agents into the Exposed
// API (spec §6): load/update/embed a buffer, run a bare search, and run
// the full query pipeline through the Orchestrator. It is the one place
// that keeps the durable store and the two in-memory indexes in sync.
package engine

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ariadne-eng/queryengine/agent"
	"github.com/ariadne-eng/queryengine/chunk"
	"github.com/ariadne-eng/queryengine/hybrid"
	"github.com/ariadne-eng/queryengine/internal/enginerr"
	"github.com/ariadne-eng/queryengine/internal/telemetry"
	"github.com/ariadne-eng/queryengine/lexical"
	"github.com/ariadne-eng/queryengine/llm"
	"github.com/ariadne-eng/queryengine/model"
	"github.com/ariadne-eng/queryengine/orchestrator"
	"github.com/ariadne-eng/queryengine/store"
	"github.com/ariadne-eng/queryengine/tools"
	"github.com/ariadne-eng/queryengine/vectorindex"
	"go.uber.org/zap"
)

// Engine is the top-level handle a CLI or an MCP-style bridge holds: one
// store, one pair of in-memory indexes built from it, one searcher, one
// embedder, and one orchestrator wired over all of them.
type Engine struct {
	Store        *store.Store
	Lexical      *lexical.Index
	Vector       *vectorindex.Index
	Searcher     *hybrid.Searcher
	Embedder     llm.Embedder
	Orchestrator *orchestrator.Orchestrator
}

// Options configures the agents and resource envelope an Engine builds its
// Orchestrator with.
type Options struct {
	Provider        llm.Provider
	Embedder        llm.Embedder
	OrchestratorCfg orchestrator.Config
}

// Open builds an Engine from a store already positioned at its schema
// (Init must have been called by the caller, since the store owns its own
// lifecycle independent of the engine). Every chunk already in the store
// is replayed into the lexical and vector indexes so a reopened engine's
// search surface matches what was persisted.
func Open(ctx context.Context, st *store.Store, opts Options) (*Engine, error) {
	log := telemetry.Named("engine")

	lex := lexical.New()
	vec := vectorindex.New()

	buffers, err := st.ListBuffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: list buffers on open: %w", err)
	}
	for _, buf := range buffers {
		chunks, err := st.ListChunks(ctx, buf.ID)
		if err != nil {
			return nil, fmt.Errorf("engine: list chunks for buffer %d on open: %w", buf.ID, err)
		}
		for _, c := range chunks {
			lex.Put(model.LexicalEntry{ChunkID: c.ID, BufferID: c.BufferID, Tokens: lexical.Tokenize(c.Text), Length: len(c.Text)})
			if opts.Embedder != nil {
				if emb, err := st.GetEmbedding(ctx, c.ID, opts.Embedder.ModelName()); err == nil && emb != nil {
					vec.Put(c.ID, c.BufferID, emb.Vector)
				}
			}
		}
	}
	log.Info("engine opened", zap.Int("buffers", len(buffers)))

	searcher := hybrid.New(lex, vec, opts.Embedder)

	reg, err := tools.WithDefaults(st, searcher)
	if err != nil {
		return nil, fmt.Errorf("engine: build tool registry: %w", err)
	}

	// An Orchestrator with no provider configured can't run the extractor/
	// synthesizer stages, so Query on such an engine fails fast instead of
	// panicking on a nil agent — Open leaves Orchestrator nil in that case.
	var orch *orchestrator.Orchestrator
	if opts.Provider != nil {
		planner := agent.NewPlanner(opts.Provider)
		extractor := agent.NewExtractor(opts.Provider)
		synthesizer := agent.NewSynthesizer(opts.Provider, reg.All())
		orch = orchestrator.New(st, searcher, planner, extractor, synthesizer, opts.OrchestratorCfg)
	}

	return &Engine{
		Store:        st,
		Lexical:      lex,
		Vector:       vec,
		Searcher:     searcher,
		Embedder:     opts.Embedder,
		Orchestrator: orch,
	}, nil
}

// LoadBufferParams configures a load_buffer call (spec §6). SourcePath and
// ContentType are optional hints (spec §3 Buffer attributes); when
// ContentType is empty it's derived from SourcePath's extension, falling
// back to content sniffing.
type LoadBufferParams struct {
	Name        string
	Content     string
	SourcePath  string
	ContentType string
	Strategy    string // only chunk.StrategyFixed is currently supported
	Size        int
	Overlap     int
}

// LoadBuffer chunks content and persists both the buffer and its chunks,
// then indexes the new chunks lexically so they're searchable immediately
// (spec §6 load_buffer). Semantic search over the new chunks requires a
// separate EmbedBuffer call.
func (e *Engine) LoadBuffer(ctx context.Context, p LoadBufferParams) (int64, error) {
	chunks := chunk.Fixed(p.Content, p.Size, p.Overlap)

	contentType := p.ContentType
	if contentType == "" {
		contentType = detectContentType(p.SourcePath, p.Content)
	}

	buf := model.Buffer{
		Name:        p.Name,
		Content:     p.Content,
		SourcePath:  p.SourcePath,
		ByteSize:    len(p.Content),
		LineCount:   countLines(p.Content),
		ChunkCount:  len(chunks),
		ContentHash: chunk.HashContent(p.Content),
		ContentType: contentType,
	}
	bufID, err := e.Store.PutBuffer(ctx, buf)
	if err != nil {
		return 0, err
	}

	if err := e.Store.PutChunks(ctx, bufID, chunks); err != nil {
		return 0, err
	}

	for _, c := range chunks {
		e.Lexical.Put(model.LexicalEntry{ChunkID: c.ID, BufferID: c.BufferID, Tokens: lexical.Tokenize(c.Text), Length: len(c.Text)})
	}
	return bufID, nil
}

// countLines counts newline-delimited lines the way most text editors
// report a line count: a trailing newline doesn't add an extra empty line,
// but empty content still counts as zero lines rather than one.
func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// detectContentType derives a buffer's content-type hint (spec §3) from its
// source path extension, falling back to sniffing the content itself the
// way net/http's own static file server does.
func detectContentType(sourcePath, content string) string {
	if sourcePath != "" {
		if ext := filepath.Ext(sourcePath); ext != "" {
			if ct := mime.TypeByExtension(ext); ct != "" {
				return stripParams(ct)
			}
		}
	}

	n := len(content)
	if n > 512 {
		n = 512
	}
	return stripParams(http.DetectContentType([]byte(content[:n])))
}

// stripParams drops a MIME type's parameter suffix (e.g. "; charset=utf-8")
// so the stored content_type is a bare type/subtype string.
func stripParams(ct string) string {
	if i := strings.Index(ct, ";"); i != -1 {
		return strings.TrimSpace(ct[:i])
	}
	return ct
}

// UpdateBufferParams configures an update_buffer call (spec §6).
type UpdateBufferParams struct {
	BufferID  int64
	Content   string
	Strategy  string
	Size      int
	Overlap   int
	Reembed   bool
}

// UpdateBuffer re-chunks content and atomically replaces the buffer's
// chunk set, then rebuilds that buffer's lexical entries. When Reembed is
// requested the buffer's stale vectors are dropped from the in-memory
// index; the caller is expected to follow up with EmbedBuffer to
// repopulate them, since re-embedding synchronously would make this call
// block on provider latency.
func (e *Engine) UpdateBuffer(ctx context.Context, p UpdateBufferParams) error {
	chunks := chunk.Fixed(p.Content, p.Size, p.Overlap)
	if err := e.Store.UpdateBuffer(ctx, p.BufferID, p.Content, chunks); err != nil {
		return err
	}

	e.Lexical.DeleteBuffer(p.BufferID)
	stored, err := e.Store.ListChunks(ctx, p.BufferID)
	if err != nil {
		return err
	}
	for _, c := range stored {
		e.Lexical.Put(model.LexicalEntry{ChunkID: c.ID, BufferID: c.BufferID, Tokens: lexical.Tokenize(c.Text), Length: len(c.Text)})
	}

	if p.Reembed {
		e.Vector.DeleteBuffer(p.BufferID)
	}
	return nil
}

// DeleteBuffer removes a buffer and its chunks/embeddings from the store
// (the schema's ON DELETE CASCADE handles the cascade) and from both
// in-memory indexes, so no orphaned lexical or vector entry survives.
func (e *Engine) DeleteBuffer(ctx context.Context, bufferID int64) error {
	if err := e.Store.DeleteBuffer(ctx, bufferID); err != nil {
		return err
	}
	e.Lexical.DeleteBuffer(bufferID)
	e.Vector.DeleteBuffer(bufferID)
	return nil
}

// EmbedCounts reports how many of a buffer's chunks embed_buffer actually
// called the provider for, versus how many it skipped because an
// up-to-date embedding already existed (spec §6, §8 idempotence property).
type EmbedCounts struct {
	Embedded int
	Skipped  int
	Failed   int
}

// EmbedBuffer embeds a buffer's chunks under the Engine's configured
// embedding model, skipping any chunk that already has a stored embedding
// for that exact model id unless force is set (spec §6 embed_buffer).
// Content hashes are not compared: UpdateBuffer replaces a buffer's chunks
// with new rows, and the old rows' embeddings are deleted with them.
func (e *Engine) EmbedBuffer(ctx context.Context, bufferID int64, force bool) (EmbedCounts, error) {
	if e.Embedder == nil {
		return EmbedCounts{}, enginerr.NewInvalidArgument("embedder", "no embedding client configured")
	}
	log := telemetry.Named("engine")

	chunks, err := e.Store.ListChunks(ctx, bufferID)
	if err != nil {
		return EmbedCounts{}, err
	}

	var toEmbed []model.Chunk
	counts := EmbedCounts{}
	if force {
		toEmbed = chunks
	} else {
		missing, err := e.Store.MissingEmbeddings(ctx, bufferID, e.Embedder.ModelName())
		if err != nil {
			return EmbedCounts{}, err
		}
		missingSet := make(map[int64]bool, len(missing))
		for _, id := range missing {
			missingSet[id] = true
		}
		for _, c := range chunks {
			if missingSet[c.ID] {
				toEmbed = append(toEmbed, c)
			} else {
				counts.Skipped++
			}
		}
	}

	for _, c := range toEmbed {
		vec, err := e.Embedder.Embed(ctx, c.Text)
		if err != nil {
			log.Warn("embedding failed, chunk stays unembedded", zap.Int64("chunk_id", c.ID), zap.Error(err))
			counts.Failed++
			continue
		}
		if err := e.Store.PutEmbedding(ctx, c.ID, e.Embedder.ModelName(), vec); err != nil {
			return counts, err
		}
		e.Vector.Put(c.ID, bufferID, vec)
		counts.Embedded++
	}
	return counts, nil
}

// Search runs a bare Hybrid Searcher call without the rest of the pipeline
// (spec §6 search).
func (e *Engine) Search(ctx context.Context, query string, mode model.SearchMode, topK int, threshold float64, bufferScope *int64) ([]model.SearchHit, error) {
	return e.Searcher.Search(ctx, hybrid.Params{Query: query, Mode: mode, TopK: topK, Threshold: threshold, BufferScope: bufferScope})
}

// GetChunk returns one chunk by id (spec §6 get_chunk).
func (e *Engine) GetChunk(ctx context.Context, id int64) (*model.Chunk, error) {
	return e.Store.GetChunk(ctx, id)
}

// ListChunks returns every chunk of a buffer in document order (spec §6
// list_chunks).
func (e *Engine) ListChunks(ctx context.Context, bufferID int64) ([]model.Chunk, error) {
	return e.Store.ListChunks(ctx, bufferID)
}

// Query runs the full pipeline through the Orchestrator (spec §6 query).
func (e *Engine) Query(ctx context.Context, question string, bufferScope *int64, overrides orchestrator.Overrides) (orchestrator.QueryResult, error) {
	if e.Orchestrator == nil {
		return orchestrator.QueryResult{}, enginerr.NewInvalidArgument("provider", "no model provider configured for this engine")
	}
	return e.Orchestrator.Query(ctx, question, bufferScope, overrides)
}
