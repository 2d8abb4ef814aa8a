// Package agent implements the Agent Loop (C6) and the three agent roles
// built on top of it: Planner (C7), Extractor (C8), and Synthesizer (C9).
package agent

import (
	"github.com/ariadne-eng/queryengine/llm"
)

// Step records one turn of the agent loop for post-hoc inspection.
type Step struct {
	Turn        int
	Thought     string
	ToolCall    *ToolCallRecord
	Observation *string
}

// ToolCallRecord captures the outcome of one tool dispatch, independent of
// the llm.ToolCall that requested it.
type ToolCallRecord struct {
	Name       string
	InputSize  int
	OutputSize int
	DurationMs uint64
	Success    bool
}

// Metadata carries execution accounting alongside a Response.
type Metadata struct {
	ExecutionTimeMs uint64
	AgentName       string
	ToolCalls       []ToolCallRecord
	TokenUsage      *llm.TokenUsage
	LLMCalls        int
}

// ResponseType indicates how an agent loop run ended.
type ResponseType int

const (
	ResponseSuccess ResponseType = iota
	ResponseFailure
	ResponseTimeout
)

// Response is the outcome of one agent loop run.
type Response struct {
	Type          ResponseType
	Result        string // set on ResponseSuccess
	Error         string // set on ResponseFailure
	PartialResult string // set on ResponseTimeout
	Steps         []Step
	Metadata      Metadata
}

// NewSuccessResponse builds a successful Response.
func NewSuccessResponse(result string, steps []Step, toolCalls []ToolCallRecord, executionTimeMs uint64, agentName string, usage *llm.TokenUsage, llmCalls int) Response {
	return Response{
		Type:   ResponseSuccess,
		Result: result,
		Steps:  steps,
		Metadata: Metadata{
			ExecutionTimeMs: executionTimeMs,
			AgentName:       agentName,
			ToolCalls:       toolCalls,
			TokenUsage:      usage,
			LLMCalls:        llmCalls,
		},
	}
}

// NewFailureResponse builds a failed Response.
func NewFailureResponse(err string, steps []Step, executionTimeMs uint64) Response {
	return Response{
		Type:  ResponseFailure,
		Error: err,
		Steps: steps,
		Metadata: Metadata{
			ExecutionTimeMs: executionTimeMs,
		},
	}
}

// NewTimeoutResponse builds a Response for a run that exhausted max_turns.
func NewTimeoutResponse(lastText string, steps []Step, toolCalls []ToolCallRecord, executionTimeMs uint64, usage *llm.TokenUsage, llmCalls int) Response {
	return Response{
		Type:          ResponseTimeout,
		PartialResult: lastText,
		Steps:         steps,
		Metadata: Metadata{
			ExecutionTimeMs: executionTimeMs,
			ToolCalls:       toolCalls,
			TokenUsage:      usage,
			LLMCalls:        llmCalls,
		},
	}
}

// ResultText returns whichever of Result/Error/PartialResult applies.
func (r Response) ResultText() string {
	switch r.Type {
	case ResponseSuccess:
		return r.Result
	case ResponseFailure:
		return r.Error
	case ResponseTimeout:
		return r.PartialResult
	default:
		return ""
	}
}

// IsSuccess reports whether the run ended successfully.
func (r Response) IsSuccess() bool {
	return r.Type == ResponseSuccess
}
