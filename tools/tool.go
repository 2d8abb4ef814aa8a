// Package tools implements the Tool Executor (C5): a fixed registry of
// named tools an agent can call during its tool loop, each invocation
// checked against hard resource caps before it ever reaches the tool body.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Hard caps enforced by the executor before dispatch (spec §4.5).
const (
	MaxArgsBytes       = 100 * 1024 // raw arguments payload
	MaxChunkIDs        = 200        // chunk_ids list length
	MaxTopK            = 500
	MaxRegexBytes      = 500              // regex pattern source
	MaxRegexDFABytes   = 1 * 1024 * 1024  // compiled regex program size budget
	MaxGrepContext     = 20               // grep context lines
	MaxGrepMaterialize = 5000             // chunks a grep call may scan
)

// ToolParameter documents one argument a tool accepts.
type ToolParameter struct {
	Name        string `json:"name"`
	ParamType   string `json:"param_type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolMetadata describes what a tool does and how to invoke it.
type ToolMetadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// String renders metadata for inclusion in an agent's system prompt.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// ToolResult is the outcome of a tool call. Success is Error == nil.
type ToolResult struct {
	Output string `json:"output"`
	Error  error  `json:"-"`
}

// MarshalJSON reports success/output/error the way the agent loop expects
// to append it as a tool-response message.
func (t ToolResult) MarshalJSON() ([]byte, error) {
	if t.Error != nil {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Output  string `json:"output"`
			Error   string `json:"error"`
		}{Success: false, Output: t.Output, Error: t.Error.Error()})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
	}{Success: true, Output: t.Output})
}

// Success reports whether the call succeeded.
func (t ToolResult) Success() bool { return t.Error == nil }

// SuccessResult builds a successful ToolResult.
func SuccessResult(output string) ToolResult { return ToolResult{Output: output} }

// FailureResult builds a failed ToolResult.
func FailureResult(err error) ToolResult { return ToolResult{Error: err} }

// FailureResultf builds a failed ToolResult with a formatted message.
func FailureResultf(format string, args ...interface{}) ToolResult {
	return ToolResult{Error: fmt.Errorf(format, args...)}
}

// Tool is one entry in the fixed registry the executor dispatches against.
type Tool interface {
	Metadata() ToolMetadata
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)
	Validate(args json.RawMessage) error
}

// BaseTool supplies a no-op Validate for tools with nothing extra to check
// beyond the executor's own cap enforcement.
type BaseTool struct{}

func (BaseTool) Validate(args json.RawMessage) error { return nil }

// ToolConfig holds executor-level tuning. The zero value is safe.
type ToolConfig struct {
	TimeoutSecs uint64
	MaxRetries  uint32
}

// Timeout returns the configured timeout, defaulting to 30 seconds.
func (c *ToolConfig) Timeout() uint64 {
	if c == nil || c.TimeoutSecs == 0 {
		return 30
	}
	return c.TimeoutSecs
}

// Retries returns the configured max retry attempts, defaulting to 3.
func (c *ToolConfig) Retries() uint32 {
	if c == nil || c.MaxRetries == 0 {
		return 3
	}
	return c.MaxRetries
}

// DefaultToolConfig returns the default executor configuration.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{TimeoutSecs: 30, MaxRetries: 3}
}

// CheckArgsSize enforces the raw-payload cap every tool call must pass
// before Validate or Execute ever sees the arguments.
func CheckArgsSize(args json.RawMessage) error {
	if len(args) > MaxArgsBytes {
		return fmt.Errorf("arguments payload of %d bytes exceeds the %d byte cap", len(args), MaxArgsBytes)
	}
	return nil
}
