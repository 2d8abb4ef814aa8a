package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariadne-eng/queryengine/store"
)

// GetChunksTool returns chunks by id, aligned to the input order with a nil
// slot for any id the store doesn't have.
type GetChunksTool struct {
	BaseTool
	store *store.Store
}

// NewGetChunksTool builds the get_chunks tool over a chunk store.
func NewGetChunksTool(st *store.Store) *GetChunksTool {
	return &GetChunksTool{store: st}
}

func (t *GetChunksTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "get_chunks",
		Description: "Fetch full chunk text and metadata for a list of chunk ids.",
		Parameters: []ToolParameter{
			{Name: "chunk_ids", ParamType: "array<int>", Description: "Chunk ids to fetch", Required: true},
		},
	}
}

type getChunksArgs struct {
	ChunkIDs []int64 `json:"chunk_ids"`
}

func (t *GetChunksTool) Validate(args json.RawMessage) error {
	var a getChunksArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if len(a.ChunkIDs) == 0 {
		return fmt.Errorf("chunk_ids must not be empty")
	}
	if len(a.ChunkIDs) > MaxChunkIDs {
		return fmt.Errorf("chunk_ids has %d entries, exceeds cap of %d", len(a.ChunkIDs), MaxChunkIDs)
	}
	return nil
}

func (t *GetChunksTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a getChunksArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResultf("invalid arguments: %v", err), nil
	}

	chunks, err := t.store.GetChunksByIDs(ctx, a.ChunkIDs)
	if err != nil {
		return ToolResult{}, err
	}

	out, err := json.Marshal(chunks)
	if err != nil {
		return FailureResultf("failed to encode result: %v", err), nil
	}
	return SuccessResult(string(out)), nil
}
