package mcpbridge

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ariadne-eng/queryengine/model"
	"github.com/ariadne-eng/queryengine/orchestrator"
)

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Question   string `json:"question" jsonschema:"the natural-language question to answer"`
	BufferName string `json:"buffer_name,omitempty" jsonschema:"restrict the query to one buffer by name, omit for all buffers"`
	SkipPlan   bool   `json:"skip_plan,omitempty" jsonschema:"bypass the planner agent and use defaults"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Report           string   `json:"report"`
	ScalingTier      string   `json:"scaling_tier"`
	ChunksAnalyzed   int      `json:"chunks_analyzed"`
	FindingsCount    int      `json:"findings_count"`
	BatchesFailed    int      `json:"batches_failed"`
	BatchErrors      []string `json:"batch_errors,omitempty"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query      string  `json:"query" jsonschema:"the search text"`
	Mode       string  `json:"mode,omitempty" jsonschema:"hybrid, semantic, or lexical (default hybrid)"`
	TopK       int     `json:"top_k,omitempty" jsonschema:"maximum number of hits to return (default 20)"`
	BufferName string  `json:"buffer_name,omitempty" jsonschema:"restrict the search to one buffer by name"`
	Threshold  float64 `json:"threshold,omitempty" jsonschema:"minimum similarity/score to include a hit"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Hits []SearchHitOutput `json:"hits"`
}

// SearchHitOutput is one ranked search result.
type SearchHitOutput struct {
	ChunkID    int64    `json:"chunk_id"`
	FusedScore float64  `json:"fused_score"`
	Lexical    *float64 `json:"lexical_score,omitempty"`
	Semantic   *float64 `json:"semantic_score,omitempty"`
}

// registerTools registers the query and search tools with the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "query",
		Description: "Run the full retrieval-and-synthesis pipeline over loaded buffers",
	}, s.handleQuery)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "search",
		Description: "Run a bare hybrid/lexical/semantic search without synthesis",
	}, s.handleSearch)
}

func (s *Server) handleQuery(ctx context.Context, _ *mcpsdk.CallToolRequest, input QueryInput) (*mcpsdk.CallToolResult, QueryOutput, error) {
	var bufferScope *int64
	if input.BufferName != "" {
		buf, err := s.eng.Store.GetBufferByName(ctx, input.BufferName)
		if err != nil {
			return nil, QueryOutput{}, err
		}
		if buf != nil {
			bufferScope = &buf.ID
		}
	}

	result, err := s.eng.Query(ctx, input.Question, bufferScope, orchestrator.Overrides{SkipPlan: input.SkipPlan})
	if err != nil {
		return nil, QueryOutput{}, err
	}

	batchErrors := make([]string, len(result.BatchErrors))
	for i, be := range result.BatchErrors {
		batchErrors[i] = be.Reason
	}

	return nil, QueryOutput{
		Report:         result.Report,
		ScalingTier:    string(result.ScalingTier),
		ChunksAnalyzed: result.ChunksAnalyzed,
		FindingsCount:  result.FindingsCount,
		BatchesFailed:  result.BatchesFailed,
		BatchErrors:    batchErrors,
	}, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcpsdk.CallToolRequest, input SearchInput) (*mcpsdk.CallToolResult, SearchOutput, error) {
	mode, ok := model.ParseSearchMode(input.Mode)
	if !ok && input.Mode != "" {
		return nil, SearchOutput{}, fmt.Errorf("unknown search mode %q", input.Mode)
	}
	topK := input.TopK
	if topK <= 0 {
		topK = 20
	}

	var bufferScope *int64
	if input.BufferName != "" {
		buf, err := s.eng.Store.GetBufferByName(ctx, input.BufferName)
		if err != nil {
			return nil, SearchOutput{}, err
		}
		if buf != nil {
			bufferScope = &buf.ID
		}
	}

	hits, err := s.eng.Search(ctx, input.Query, mode, topK, input.Threshold, bufferScope)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	out := SearchOutput{Hits: make([]SearchHitOutput, len(hits))}
	for i, h := range hits {
		out.Hits[i] = SearchHitOutput{ChunkID: h.ChunkID, FusedScore: h.FusedScore, Lexical: h.LexicalScore, Semantic: h.SemanticScore}
	}
	return nil, out, nil
}
