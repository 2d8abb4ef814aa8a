package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariadne-eng/queryengine/hybrid"
	"github.com/ariadne-eng/queryengine/model"
)

// SearchTool exposes the Hybrid Searcher to an agent, in the same shape
// (query, top_k, mode) the Orchestrator itself uses.
type SearchTool struct {
	BaseTool
	searcher *hybrid.Searcher
}

// NewSearchTool builds the search tool over a hybrid searcher.
func NewSearchTool(searcher *hybrid.Searcher) *SearchTool {
	return &SearchTool{searcher: searcher}
}

func (t *SearchTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "search",
		Description: "Run hybrid, lexical, or semantic search over the buffer's chunks.",
		Parameters: []ToolParameter{
			{Name: "query", ParamType: "string", Description: "Search text", Required: true},
			{Name: "top_k", ParamType: "int", Description: "Maximum results, default 20, capped at 500", Required: false},
			{Name: "mode", ParamType: "string", Description: "hybrid | semantic | lexical, default hybrid", Required: false},
		},
	}
}

type searchArgs struct {
	Query string  `json:"query"`
	TopK  *int    `json:"top_k,omitempty"`
	Mode  *string `json:"mode,omitempty"`
}

func (t *SearchTool) Validate(args json.RawMessage) error {
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Query == "" {
		return fmt.Errorf("query must not be empty")
	}
	if a.TopK != nil && *a.TopK > MaxTopK {
		return fmt.Errorf("top_k of %d exceeds cap of %d", *a.TopK, MaxTopK)
	}
	if a.Mode != nil {
		if _, ok := model.ParseSearchMode(*a.Mode); !ok {
			return fmt.Errorf("unknown search mode %q", *a.Mode)
		}
	}
	return nil
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResultf("invalid arguments: %v", err), nil
	}

	topK := 20
	if a.TopK != nil {
		topK = *a.TopK
	}
	mode := model.ModeHybrid
	if a.Mode != nil {
		mode, _ = model.ParseSearchMode(*a.Mode)
	}

	hits, err := t.searcher.Search(ctx, hybrid.Params{Query: a.Query, Mode: mode, TopK: topK, Threshold: -1})
	if err != nil {
		return ToolResult{}, err
	}

	out, err := json.Marshal(hits)
	if err != nil {
		return FailureResultf("failed to encode result: %v", err), nil
	}
	return SuccessResult(string(out)), nil
}
