// Package cli implements the queryengine command-line tool's subcommands:
// loading and embedding buffers, running bare searches, running the full
// query pipeline, and serving the engine over MCP.
//
// Information Hiding:
// - Engine construction and provider wiring hidden
// - Output formatting hidden
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ariadne-eng/queryengine/chunk"
	"github.com/ariadne-eng/queryengine/config"
	"github.com/ariadne-eng/queryengine/engine"
	"github.com/ariadne-eng/queryengine/llm"
	"github.com/ariadne-eng/queryengine/mcpbridge"
	"github.com/ariadne-eng/queryengine/model"
	"github.com/ariadne-eng/queryengine/orchestrator"
	"github.com/ariadne-eng/queryengine/store"
)

// Options holds CLI execution options shared across subcommands.
type Options struct {
	Provider string
	DBPath   string
	Verbose  bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{DBPath: "queryengine.db"}
}

// openEngine opens the store at opts.DBPath, builds the embedding client
// and model provider (when a provider name is given), and returns a ready
// Engine. requireProvider controls whether a missing --provider is an
// error (query/mcp need one; load/search/embed do not).
func openEngine(ctx context.Context, opts Options, requireProvider bool) (*engine.Engine, func(), error) {
	settings, settingsErr := settingsFor(opts.Provider)
	if settingsErr != nil && opts.Provider != "" {
		return nil, nil, settingsErr
	}

	st, err := store.Open(ctx, dbPathOr(opts.DBPath, settings))
	if err != nil {
		return nil, nil, err
	}
	if err := st.Init(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}

	orchCfg := orchestrator.DefaultConfig()
	if settingsErr == nil {
		orchCfg.DefaultThreshold = settings.Engine.DefaultThreshold
		orchCfg.DefaultTopK = settings.Engine.DefaultTopK
		orchCfg.DefaultBatchSize = settings.Engine.DefaultBatchSize
		orchCfg.ConcurrencyCeiling = settings.Engine.ConcurrencyCeiling
		orchCfg.FindingThreshold = model.ParseRelevance(settings.Engine.FindingThreshold)
	}
	engineOpts := engine.Options{OrchestratorCfg: orchCfg}
	if settings.Storage.EmbeddingModel != "" {
		if apiKey, err := config.APIKeyFor("openai"); err == nil {
			engineOpts.Embedder = llm.NewOpenAIEmbedder(apiKey, settings.Storage.EmbeddingModel)
		}
	}

	if opts.Provider != "" {
		provider, err := createProvider(opts.Provider, settings)
		if err != nil {
			st.Close()
			return nil, nil, err
		}
		engineOpts.Provider = provider
	} else if requireProvider {
		st.Close()
		return nil, nil, fmt.Errorf("--provider is required for this command")
	}

	eng, err := engine.Open(ctx, st, engineOpts)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return eng, func() { st.Close() }, nil
}

func settingsFor(providerName string) (config.Settings, error) {
	if providerName == "" {
		return config.New("openai") // engine/storage defaults only; LLM section unused
	}
	return config.New(providerName)
}

func dbPathOr(flagPath string, settings config.Settings) string {
	if flagPath != "" {
		return flagPath
	}
	if settings.Storage.DBPath != "" {
		return settings.Storage.DBPath
	}
	return "queryengine.db"
}

func createProvider(providerName string, settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(providerName)
	if err != nil {
		return nil, err
	}
	apiKey, err := config.APIKeyFor(providerName)
	if err != nil {
		return nil, err
	}
	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
}

// LoadBuffer loads a file's content into a new buffer.
func LoadBuffer(ctx context.Context, opts Options, name, path string, size, overlap int) error {
	eng, cleanup, err := openEngine(ctx, opts, false)
	if err != nil {
		return err
	}
	defer cleanup()

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	bufID, err := eng.LoadBuffer(ctx, engine.LoadBufferParams{
		Name: name, Content: string(content), SourcePath: path, Strategy: chunk.StrategyFixed, Size: size, Overlap: overlap,
	})
	if err != nil {
		return err
	}
	fmt.Printf("loaded buffer %q as id %d\n", name, bufID)
	return nil
}

// EmbedBuffer embeds a buffer's chunks.
func EmbedBuffer(ctx context.Context, opts Options, bufferName string, force bool) error {
	eng, cleanup, err := openEngine(ctx, opts, false)
	if err != nil {
		return err
	}
	defer cleanup()

	buf, err := eng.Store.GetBufferByName(ctx, bufferName)
	if err != nil {
		return err
	}
	if buf == nil {
		return fmt.Errorf("buffer %q not found", bufferName)
	}

	counts, err := eng.EmbedBuffer(ctx, buf.ID, force)
	if err != nil {
		return err
	}
	fmt.Printf("embedded=%d skipped=%d failed=%d\n", counts.Embedded, counts.Skipped, counts.Failed)
	return nil
}

// Search runs a bare search and prints the ranked hits.
func Search(ctx context.Context, opts Options, query, mode, bufferName string, topK int, threshold float64) error {
	eng, cleanup, err := openEngine(ctx, opts, false)
	if err != nil {
		return err
	}
	defer cleanup()

	searchMode, ok := model.ParseSearchMode(mode)
	if !ok && mode != "" {
		return fmt.Errorf("unknown search mode %q", mode)
	}

	var bufferScope *int64
	if bufferName != "" {
		buf, err := eng.Store.GetBufferByName(ctx, bufferName)
		if err != nil {
			return err
		}
		if buf == nil {
			return fmt.Errorf("buffer %q not found", bufferName)
		}
		bufferScope = &buf.ID
	}

	hits, err := eng.Search(ctx, query, searchMode, topK, threshold, bufferScope)
	if err != nil {
		return err
	}
	for _, h := range hits {
		fmt.Printf("chunk %d  score=%.4f\n", h.ChunkID, h.FusedScore)
	}
	return nil
}

// Query runs the full pipeline and prints the report and summary counts.
func Query(ctx context.Context, opts Options, question, bufferName string, skipPlan bool) error {
	eng, cleanup, err := openEngine(ctx, opts, true)
	if err != nil {
		return err
	}
	defer cleanup()

	var bufferScope *int64
	if bufferName != "" {
		buf, err := eng.Store.GetBufferByName(ctx, bufferName)
		if err != nil {
			return err
		}
		if buf == nil {
			return fmt.Errorf("buffer %q not found", bufferName)
		}
		bufferScope = &buf.ID
	}

	result, err := eng.Query(ctx, question, bufferScope, orchestrator.Overrides{SkipPlan: skipPlan})
	if err != nil {
		return err
	}

	fmt.Println(result.Report)
	fmt.Printf("\n(tier=%s chunks_analyzed=%d findings=%d batches_failed=%d elapsed=%s)\n",
		result.ScalingTier, result.ChunksAnalyzed, result.FindingsCount, result.BatchesFailed, result.Elapsed)
	if opts.Verbose && len(result.BatchErrors) > 0 {
		var reasons []string
		for _, be := range result.BatchErrors {
			reasons = append(reasons, be.Reason)
		}
		fmt.Printf("batch errors: %s\n", strings.Join(reasons, "; "))
	}
	return nil
}

// ServeMCP starts the MCP bridge server over stdio or HTTP.
func ServeMCP(ctx context.Context, opts Options, httpAddr string) error {
	eng, cleanup, err := openEngine(ctx, opts, true)
	if err != nil {
		return err
	}
	defer cleanup()

	server, err := mcpbridge.NewServer(eng)
	if err != nil {
		return err
	}

	if httpAddr != "" {
		return server.RunHTTP(ctx, httpAddr)
	}
	return server.Run(ctx)
}

// ListBuffers prints every loaded buffer.
func ListBuffers(ctx context.Context, opts Options) error {
	eng, cleanup, err := openEngine(ctx, opts, false)
	if err != nil {
		return err
	}
	defer cleanup()

	buffers, err := eng.Store.ListBuffers(ctx)
	if err != nil {
		return err
	}
	for _, b := range buffers {
		fmt.Printf("%-20s  chunks=%-5d bytes=%-8d %s\n", b.Name, b.ChunkCount, b.ByteSize, b.ContentType)
	}
	return nil
}
