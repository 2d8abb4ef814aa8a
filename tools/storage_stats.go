package tools

import (
	"context"
	"encoding/json"

	"github.com/ariadne-eng/queryengine/store"
)

// StorageStatsTool reports aggregate counts over the chunk store.
type StorageStatsTool struct {
	BaseTool
	store *store.Store
}

// NewStorageStatsTool builds the storage_stats tool over a chunk store.
func NewStorageStatsTool(st *store.Store) *StorageStatsTool {
	return &StorageStatsTool{store: st}
}

func (t *StorageStatsTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "storage_stats",
		Description: "Report buffer count, chunk count, total bytes, and embedded chunk count.",
		Parameters:  nil,
	}
}

func (t *StorageStatsTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	stats, err := t.store.Stats(ctx)
	if err != nil {
		return ToolResult{}, err
	}

	out, err := json.Marshal(stats)
	if err != nil {
		return FailureResultf("failed to encode result: %v", err), nil
	}
	return SuccessResult(string(out)), nil
}
