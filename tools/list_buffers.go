package tools

import (
	"context"
	"encoding/json"

	"github.com/ariadne-eng/queryengine/store"
)

// ListBuffersTool lists every buffer's metadata without its content.
type ListBuffersTool struct {
	BaseTool
	store *store.Store
}

// NewListBuffersTool builds the list_buffers tool over a chunk store.
func NewListBuffersTool(st *store.Store) *ListBuffersTool {
	return &ListBuffersTool{store: st}
}

func (t *ListBuffersTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "list_buffers",
		Description: "List every buffer's name, size, and chunk count, without content.",
		Parameters:  nil,
	}
}

type bufferSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ByteSize   int    `json:"byte_size"`
	ChunkCount int    `json:"chunk_count"`
}

func (t *ListBuffersTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	buffers, err := t.store.ListBuffers(ctx)
	if err != nil {
		return ToolResult{}, err
	}

	summaries := make([]bufferSummary, len(buffers))
	for i, b := range buffers {
		summaries[i] = bufferSummary{ID: b.ID, Name: b.Name, ByteSize: b.ByteSize, ChunkCount: b.ChunkCount}
	}

	out, err := json.Marshal(summaries)
	if err != nil {
		return FailureResultf("failed to encode result: %v", err), nil
	}
	return SuccessResult(string(out)), nil
}
