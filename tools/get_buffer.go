package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariadne-eng/queryengine/model"
	"github.com/ariadne-eng/queryengine/store"
)

// GetBufferTool fetches a buffer's metadata and content by name or id.
type GetBufferTool struct {
	BaseTool
	store *store.Store
}

// NewGetBufferTool builds the get_buffer tool over a chunk store.
func NewGetBufferTool(st *store.Store) *GetBufferTool {
	return &GetBufferTool{store: st}
}

func (t *GetBufferTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "get_buffer",
		Description: "Fetch a buffer's metadata and content by name or id.",
		Parameters: []ToolParameter{
			{Name: "name", ParamType: "string", Description: "Buffer name", Required: false},
			{Name: "id", ParamType: "int", Description: "Buffer id", Required: false},
		},
	}
}

type getBufferArgs struct {
	Name *string `json:"name,omitempty"`
	ID   *int64  `json:"id,omitempty"`
}

func (t *GetBufferTool) Validate(args json.RawMessage) error {
	var a getBufferArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Name == nil && a.ID == nil {
		return fmt.Errorf("either name or id must be given")
	}
	if a.Name != nil && a.ID != nil {
		return fmt.Errorf("name and id are mutually exclusive")
	}
	return nil
}

func (t *GetBufferTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a getBufferArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResultf("invalid arguments: %v", err), nil
	}

	var buf *model.Buffer
	var err error
	if a.ID != nil {
		buf, err = t.store.GetBufferByID(ctx, *a.ID)
	} else {
		buf, err = t.store.GetBufferByName(ctx, *a.Name)
	}
	if err != nil {
		return ToolResult{}, err
	}
	if buf == nil {
		return FailureResultf("buffer not found"), nil
	}

	out, err := json.Marshal(buf)
	if err != nil {
		return FailureResultf("failed to encode result: %v", err), nil
	}
	return SuccessResult(string(out)), nil
}
