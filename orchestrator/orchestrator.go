// Package orchestrator implements the query pipeline (C11): the state
// machine that turns one natural-language question into a report by
// planning a retrieval strategy, running hybrid search, scaling the fan-out
// to the dataset's size, dispatching bounded-concurrency extractor agents
// over the loaded chunks, collecting and ranking their findings, and
// finally handing them to the tool-using Synthesizer.
//
// Grounded on the teacher's orchestration/supervisor.go task-tracking shape,
// generalized from sub-goal bookkeeping to the Plan/Search/Scale/FanOut/
// Collect/Synthesize stage vocabulary of spec §4.10, and on the Rust
// reference implementation's Orchestrator::query (original_source
// src/agent/orchestrator.rs), which this package's stage order and
// parameter-resolution fold follow directly.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariadne-eng/queryengine/agent"
	"github.com/ariadne-eng/queryengine/hybrid"
	"github.com/ariadne-eng/queryengine/internal/enginerr"
	"github.com/ariadne-eng/queryengine/internal/telemetry"
	"github.com/ariadne-eng/queryengine/model"
	"github.com/ariadne-eng/queryengine/scaling"
	"github.com/ariadne-eng/queryengine/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxQueryBytes bounds the query text accepted at the pipeline entry point
// (spec §7 size caps).
const MaxQueryBytes = 10 * 1024

// DefaultThreshold, DefaultTopK, and DefaultBatchSize are the last link in
// the parameter resolution chain (spec §4.11) when neither an override, a
// plan, nor a scaling profile supplies a value.
const (
	DefaultThreshold = 0.3
	DefaultTopK      = 20
	DefaultBatchSize = 10
)

// Config holds orchestrator-level tuning that sits at the bottom of the
// parameter resolution chain, below the Scaling Policy.
type Config struct {
	DefaultThreshold    float64
	DefaultTopK         int
	DefaultBatchSize    int
	ConcurrencyCeiling  int // global cap on effective_concurrency regardless of scaling tier
	RequestDelay        time.Duration
	FindingThreshold    model.Relevance // default finding_threshold
}

// DefaultConfig returns the orchestrator defaults. New uses the Config it is
// given as is; a zero-value Config is not replaced by these defaults.
func DefaultConfig() Config {
	return Config{
		DefaultThreshold:   DefaultThreshold,
		DefaultTopK:        DefaultTopK,
		DefaultBatchSize:   DefaultBatchSize,
		ConcurrencyCeiling: 200,
		FindingThreshold:   model.RelevanceLow,
	}
}

// Overrides are caller-supplied parameters (CLI flags or an API call) that
// sit at the top of the parameter resolution chain: CLI/API override ->
// Planner plan -> ScalingProfile -> Config default -> hard-coded default.
type Overrides struct {
	SearchMode       *model.SearchMode
	BatchSize        *int
	Threshold        *float64
	TopK             *int
	MaxChunks        *int
	NumAgents        *int // when set, overrides BatchSize as ceil(chunks/NumAgents)
	FindingThreshold *model.Relevance
	SkipPlan         bool
}

// QueryResult is the pipeline's terminal output (spec §4.10 Done stage).
type QueryResult struct {
	Report            string
	ScalingTier       model.ScalingTier
	ChunksAvailable   int
	ChunksAnalyzed    int
	FindingsCount     int
	FindingsFiltered  int
	BatchesProcessed  int
	BatchesFailed     int
	ChunkLoadFailures int
	BatchErrors       []model.BatchError
	TotalTokens       uint32
	Elapsed           time.Duration
	Cancelled         bool
}

// Orchestrator composes the Planner, Hybrid Searcher, Scaling Policy,
// Extractor, and Synthesizer into the query pipeline (spec §4.10).
type Orchestrator struct {
	store       *store.Store
	searcher    *hybrid.Searcher
	planner     *agent.Planner
	extractor   *agent.Extractor
	synthesizer *agent.Synthesizer
	config      Config
}

// New builds an orchestrator over the store and searcher, driven by the
// given planner/extractor/synthesizer agents.
func New(st *store.Store, searcher *hybrid.Searcher, planner *agent.Planner, extractor *agent.Extractor, synthesizer *agent.Synthesizer, config Config) *Orchestrator {
	return &Orchestrator{store: st, searcher: searcher, planner: planner, extractor: extractor, synthesizer: synthesizer, config: config}
}

// fallbackOrder is the Orchestrator's own policy (not the searcher's, per
// spec §4.4) for re-issuing a zero-hit search under a different mode.
var fallbackOrder = []model.SearchMode{model.ModeHybrid, model.ModeLexical, model.ModeSemantic}

// Query runs the full pipeline: Plan -> Scale -> Search -> LoadChunks ->
// FanOut -> Collect -> Synthesize -> Done (spec §4.10); Scale runs before
// Search because the search's top_k comes from the ScalingProfile. ctx is the
// cancellation token (spec §5): cancelling it stops pending extractor
// batches from starting, lets in-flight ones finish or observe cancellation
// at their next suspension point, and skips Collect/Synthesize.
func (o *Orchestrator) Query(ctx context.Context, queryText string, bufferScope *int64, overrides Overrides) (QueryResult, error) {
	queryID := uuid.New().String()
	log := telemetry.Named("orchestrator").With(zap.String("query_id", queryID))
	start := time.Now()

	if len(queryText) > MaxQueryBytes {
		return QueryResult{}, enginerr.NewInvalidArgument("query", fmt.Sprintf("exceeds %d byte cap", MaxQueryBytes))
	}
	if trimEmpty(queryText) {
		return QueryResult{}, enginerr.NewInvalidArgument("query", "must not be empty")
	}

	// --- Plan ---
	plan := o.plan(ctx, queryText, bufferScope, overrides)

	// --- Scale ---
	dataset, err := o.datasetProfile(ctx, bufferScope)
	if err != nil {
		return QueryResult{}, err
	}
	scale := scaling.Compute(dataset)

	searchMode := resolveMode(overrides.SearchMode, plan.SearchMode)
	threshold := resolveFloat(overrides.Threshold, plan.Threshold, nil, o.config.DefaultThreshold)
	topK := resolveInt(overrides.TopK, nil, scale.TopK, o.config.DefaultTopK)
	maxChunks := resolveInt(overrides.MaxChunks, plan.MaxChunks, scale.MaxChunksLoaded, 0)

	// --- Search (with fallback, spec §4.4/§4.10) ---
	hits, usedMode, err := o.searchWithFallback(ctx, queryText, searchMode, topK, threshold, bufferScope, overrides.SearchMode != nil)
	if err != nil {
		return QueryResult{}, err
	}
	chunksAvailable := len(hits)
	log.Info("search complete", zap.String("mode", string(usedMode)), zap.Int("hits", chunksAvailable))

	// --- LoadChunks ---
	chunks, chunkLoadFailures, lookup := o.loadChunks(ctx, hits, maxChunks)
	if len(chunks) == 0 {
		return QueryResult{}, enginerr.NewNoChunks()
	}

	batchSize := resolveBatchSize(overrides, plan, scale, len(chunks), o.config.DefaultBatchSize)
	concurrency := resolveInt(nil, nil, scale.MaxConcurrency, 5)
	if o.config.ConcurrencyCeiling > 0 && concurrency > o.config.ConcurrencyCeiling {
		concurrency = o.config.ConcurrencyCeiling
	}

	// --- FanOut ---
	batches := partition(chunks, batchSize)
	fanOutResult := o.fanOut(ctx, log, queryText, batches, concurrency)

	if fanOutResult.cancelled {
		return QueryResult{
			ScalingTier:       scale.Tier,
			ChunksAvailable:   chunksAvailable,
			ChunksAnalyzed:    len(chunks),
			BatchesProcessed:  fanOutResult.processed,
			BatchesFailed:     fanOutResult.failed,
			ChunkLoadFailures: chunkLoadFailures,
			BatchErrors:       fanOutResult.errors,
			TotalTokens:       fanOutResult.totalTokens,
			Elapsed:           time.Since(start),
			Cancelled:         true,
		}, nil
	}

	// --- Collect ---
	findingThreshold := o.config.FindingThreshold
	if overrides.FindingThreshold != nil {
		findingThreshold = *overrides.FindingThreshold
	}
	findings, filtered := collect(fanOutResult.findings, lookup, findingThreshold)

	// --- Synthesize ---
	report := agent.NoFindingsReport
	totalTokens := fanOutResult.totalTokens
	if len(findings) > 0 {
		synthesized, meta, err := o.synthesizer.Synthesize(ctx, queryText, findings)
		if meta.TokenUsage != nil {
			totalTokens += meta.TokenUsage.TotalTokens
		}
		if err != nil {
			// Synthesis failure after findings are gathered still surfaces a
			// QueryResult without a report (spec §4.12); findings themselves
			// are not persisted by the core, so nothing else is lost.
			log.Warn("synthesis failed, returning result without a report", zap.Error(err))
		} else {
			report = synthesized
		}
	}

	return QueryResult{
		Report:            report,
		ScalingTier:       scale.Tier,
		ChunksAvailable:   chunksAvailable,
		ChunksAnalyzed:    len(chunks),
		FindingsCount:     len(findings),
		FindingsFiltered:  filtered,
		BatchesProcessed:  fanOutResult.processed,
		BatchesFailed:     fanOutResult.failed,
		ChunkLoadFailures: chunkLoadFailures,
		BatchErrors:       fanOutResult.errors,
		TotalTokens:       totalTokens,
		Elapsed:           time.Since(start),
	}, nil
}

func trimEmpty(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// plan invokes the Planner unless SkipPlan is set, in which case it
// produces a defaulted AnalysisPlan instead (spec §4.10 Plan stage).
func (o *Orchestrator) plan(ctx context.Context, queryText string, bufferScope *int64, overrides Overrides) model.AnalysisPlan {
	if overrides.SkipPlan || o.planner == nil {
		return model.DefaultPlan()
	}

	chunkCount, totalBytes, contentType := 0, 0, ""
	if bufferScope != nil {
		if buf, err := o.store.GetBufferByID(ctx, *bufferScope); err == nil && buf != nil {
			chunkCount, totalBytes, contentType = buf.ChunkCount, buf.ByteSize, buf.ContentType
		}
	}
	return o.planner.Plan(ctx, queryText, chunkCount, contentType, totalBytes)
}

// datasetProfile builds the DatasetProfile the Scaling Policy consumes,
// scoped to one buffer when given, or the whole store otherwise.
func (o *Orchestrator) datasetProfile(ctx context.Context, bufferScope *int64) (model.DatasetProfile, error) {
	if bufferScope == nil {
		stats, err := o.store.Stats(ctx)
		if err != nil {
			return model.DatasetProfile{}, err
		}
		return model.DatasetProfile{ChunkCount: stats.Chunks, TotalBytes: stats.Bytes}, nil
	}

	chunks, err := o.store.ListChunks(ctx, *bufferScope)
	if err != nil {
		return model.DatasetProfile{}, err
	}
	bytes := 0
	for _, c := range chunks {
		bytes += len(c.Text)
	}
	return model.DatasetProfile{ChunkCount: len(chunks), TotalBytes: bytes}, nil
}

// searchWithFallback runs the Hybrid Searcher under the resolved mode and,
// if it returns zero hits and the caller didn't lock the mode via an
// explicit override, re-issues in hybrid -> lexical -> semantic order,
// returning the first non-empty list (spec §4.4, §4.10). All modes
// returning zero hits is a NoChunksError.
func (o *Orchestrator) searchWithFallback(ctx context.Context, queryText string, mode model.SearchMode, topK int, threshold float64, bufferScope *int64, locked bool) ([]model.SearchHit, model.SearchMode, error) {
	hits, err := o.searcher.Search(ctx, hybrid.Params{Query: queryText, Mode: mode, TopK: topK, Threshold: threshold, BufferScope: bufferScope})
	if err != nil {
		return nil, mode, err
	}
	if len(hits) > 0 || locked {
		if len(hits) == 0 {
			return nil, mode, enginerr.NewNoChunks()
		}
		return hits, mode, nil
	}

	for _, fallback := range fallbackOrder {
		if fallback == mode {
			continue
		}
		hits, err := o.searcher.Search(ctx, hybrid.Params{Query: queryText, Mode: fallback, TopK: topK, Threshold: threshold, BufferScope: bufferScope})
		if err == nil && len(hits) > 0 {
			return hits, fallback, nil
		}
	}
	return nil, mode, enginerr.NewNoChunks()
}

// loadChunks fetches chunk content for the hit ids in one batched call
// (spec §4.10 LoadChunks), applies the max_chunks cap, and builds the flat
// chunk_id -> (buffer_id, chunk_index) lookup table Collect needs to stamp
// document order onto findings (spec §9).
func (o *Orchestrator) loadChunks(ctx context.Context, hits []model.SearchHit, maxChunks int) ([]model.Chunk, int, map[int64]model.Chunk) {
	limit := len(hits)
	if maxChunks > 0 && maxChunks < limit {
		limit = maxChunks
	}

	ids := make([]int64, limit)
	for i := 0; i < limit; i++ {
		ids[i] = hits[i].ChunkID
	}

	loaded, err := o.store.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, limit, nil
	}

	chunks := make([]model.Chunk, 0, limit)
	failures := 0
	lookup := make(map[int64]model.Chunk, limit)
	for _, c := range loaded {
		if c == nil {
			failures++
			continue
		}
		chunks = append(chunks, *c)
		lookup[c.ID] = *c
	}

	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].BufferID != chunks[j].BufferID {
			return chunks[i].BufferID < chunks[j].BufferID
		}
		return chunks[i].Index < chunks[j].Index
	})

	return chunks, failures, lookup
}

// partition splits chunks into consecutive batches of batchSize, the unit
// of work FanOut dispatches one extractor task per.
func partition(chunks []model.Chunk, batchSize int) [][]model.Chunk {
	if batchSize <= 0 {
		batchSize = 1
	}
	var batches [][]model.Chunk
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}

// fanOutResult accumulates outcomes across every extractor batch.
type fanOutResult struct {
	findings    []model.Finding
	errors      []model.BatchError
	processed   int
	failed      int
	totalTokens uint32
	cancelled   bool
}

// fanOut dispatches one extractor task per batch, gated by a semaphore of
// capacity concurrency (spec §5 bounded concurrency). All tasks' errors are
// captured as BatchErrors rather than aborting the pipeline; completion
// order is arbitrary and irrelevant (spec §4.10, §5). On cancellation,
// pending tasks never start; in-flight ones hold their semaphore slot until
// their extractor call returns, and that call runs with the cancelled ctx.
func (o *Orchestrator) fanOut(ctx context.Context, log *zap.Logger, queryText string, batches [][]model.Chunk, concurrency int) fanOutResult {
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup
	result := fanOutResult{}

	for batchID, batch := range batches {
		if ctx.Err() != nil {
			mu.Lock()
			result.cancelled = true
			mu.Unlock()
			break
		}

		batchUUID := uuid.New().String()

		wg.Add(1)
		go func(batchID int, batchUUID string, batch []model.Chunk) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				result.cancelled = true
				mu.Unlock()
				return
			}

			if ctx.Err() != nil {
				mu.Lock()
				result.cancelled = true
				mu.Unlock()
				return
			}

			if o.config.RequestDelay > 0 {
				select {
				case <-time.After(o.config.RequestDelay):
				case <-ctx.Done():
					mu.Lock()
					result.cancelled = true
					mu.Unlock()
					return
				}
			}

			log.Debug("dispatching batch", zap.String("batch_id", batchUUID), zap.Int("batch_index", batchID), zap.Int("chunks", len(batch)))
			findings, batchErr := o.extractor.Extract(ctx, batchID, queryText, batch)

			mu.Lock()
			defer mu.Unlock()
			if batchErr != nil {
				log.Warn("batch failed", zap.String("batch_id", batchUUID), zap.Int("batch_index", batchID), zap.String("reason", batchErr.Reason))
				result.failed++
				result.errors = append(result.errors, *batchErr)
				return
			}
			result.processed++
			result.findings = append(result.findings, findings...)
		}(batchID, batchUUID, batch)
	}

	wg.Wait()
	return result
}

// collect drops findings with relevance none and findings below threshold,
// stamps each surviving finding
// with its (buffer_id, chunk_index) from the load-time lookup table, and
// sorts by relevance descending then (buffer_id, chunk_index) ascending so
// document order is preserved within a relevance tier (spec §4.10 Collect).
func collect(findings []model.Finding, lookup map[int64]model.Chunk, threshold model.Relevance) ([]model.Finding, int) {
	before := len(findings)
	kept := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Relevance == model.RelevanceNone || !f.Relevance.MeetsThreshold(threshold) {
			continue
		}
		if c, ok := lookup[f.ChunkID]; ok {
			f.BufferID = c.BufferID
			f.ChunkIndex = c.Index
		}
		kept = append(kept, f)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Relevance != kept[j].Relevance {
			return kept[i].Relevance > kept[j].Relevance
		}
		if kept[i].BufferID != kept[j].BufferID {
			return kept[i].BufferID < kept[j].BufferID
		}
		return kept[i].ChunkIndex < kept[j].ChunkIndex
	})

	return kept, before - len(kept)
}

func resolveMode(override *model.SearchMode, plan model.SearchMode) model.SearchMode {
	if override != nil {
		return *override
	}
	if plan != "" {
		return plan
	}
	return model.ModeHybrid
}

func resolveFloat(override, planVal *float64, scaleVal *float64, def float64) float64 {
	for _, v := range []*float64{override, planVal, scaleVal} {
		if v != nil {
			return *v
		}
	}
	return def
}

func resolveInt(override, planVal, scaleVal *int, def int) int {
	for _, v := range []*int{override, planVal, scaleVal} {
		if v != nil {
			return *v
		}
	}
	return def
}

// resolveBatchSize applies the num_agents/batch_size mutual-exclusion rule
// from the Rust reference implementation: num_agents, when given, takes
// priority and computes batch_size = ceil(chunks / num_agents).
func resolveBatchSize(overrides Overrides, plan model.AnalysisPlan, scale model.ScalingProfile, chunkCount int, def int) int {
	if overrides.NumAgents != nil && *overrides.NumAgents > 0 {
		agents := *overrides.NumAgents
		return (chunkCount + agents - 1) / agents
	}
	return resolveInt(overrides.BatchSize, plan.BatchSize, scale.BatchSize, def)
}
