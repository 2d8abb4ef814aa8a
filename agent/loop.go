// Agent Loop (C6): a chat-completion loop that executes tool calls through
// the Tool Executor until the model emits a response with none, or the
// turn budget runs out.
//
// Information Hiding:
// - Message-list bookkeeping hidden
// - Tool dispatch hidden

package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ariadne-eng/queryengine/internal/enginerr"
	"github.com/ariadne-eng/queryengine/internal/telemetry"
	"github.com/ariadne-eng/queryengine/llm"
	"github.com/ariadne-eng/queryengine/tools"
	"go.uber.org/zap"
)

// MaxProviderRetries bounds the Agent Loop's retry attempts for a single
// turn against a classified-transient provider error (spec §4.6, §4.12).
const MaxProviderRetries = 3

// Agent drives one role (planner, extractor, or synthesizer) through the
// Agent Loop state machine: Issuing -> AwaitingResponse -> (Finished |
// RunningTools -> Issuing) -> Finished.
type Agent struct {
	config       Config
	llmClient    *llm.Client
	toolRegistry *tools.Registry
	toolExecutor *tools.Executor
}

// New builds an agent over a provider, registering config.Tools as the
// fixed set it may call during its loop.
func New(config Config, provider llm.Provider) *Agent {
	registry := tools.NewRegistry()
	for _, tool := range config.Tools {
		_ = registry.Register(tool) // duplicate names are the caller's responsibility
	}

	return &Agent{
		config:       config,
		llmClient:    llm.NewClient(provider),
		toolRegistry: registry,
		toolExecutor: tools.NewDefaultExecutor(),
	}
}

// WithToolConfig overrides the tool executor's retry/timeout configuration.
func (a *Agent) WithToolConfig(config tools.ToolConfig) *Agent {
	a.toolExecutor = tools.NewExecutor(config)
	return a
}

// Name returns the agent's configured name.
func (a *Agent) Name() string { return a.config.Name }

// Execute runs one task through the agent loop from a fresh conversation.
func (a *Agent) Execute(ctx context.Context, userPrompt string) Response {
	return a.ExecuteWithHistory(ctx, userPrompt, nil)
}

// ExecuteWithHistory runs a task, continuing from existing conversation
// history (e.g. a prior turn's tool exchange) rather than starting fresh.
func (a *Agent) ExecuteWithHistory(ctx context.Context, userPrompt string, history []llm.ChatMessage) Response {
	log := telemetry.Named("agent").With(zap.String("agent", a.config.Name))
	start := time.Now()

	conversation := append([]llm.ChatMessage{}, history...)
	if len(conversation) == 0 && a.config.SystemPrompt != "" {
		conversation = append(conversation, llm.SystemMessage(a.config.SystemPrompt))
	}
	conversation = append(conversation, llm.UserMessage(userPrompt))

	toolDefs := a.toolDefinitions()

	var steps []Step
	var toolCalls []ToolCallRecord
	var totalUsage llm.TokenUsage
	var llmCalls int
	var lastText string

	maxTurns := a.config.EffectiveMaxTurns()

	for turn := 0; turn < maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return NewFailureResponse(fmt.Sprintf("agent loop cancelled: %v", err), steps, elapsedMs(start))
		}

		log.Debug("issuing turn", zap.Int("turn", turn))

		resp, err := a.chatWithRetry(ctx, conversation, toolDefs)
		llmCalls++
		if err != nil {
			return NewFailureResponse(fmt.Sprintf("provider error: %v", err), steps, elapsedMs(start))
		}

		if resp.Usage != nil {
			totalUsage.PromptTokens += resp.Usage.PromptTokens
			totalUsage.CompletionTokens += resp.Usage.CompletionTokens
			totalUsage.TotalTokens += resp.Usage.TotalTokens
		}
		lastText = resp.Content

		if len(resp.ToolCalls) == 0 {
			result := resp.Content
			if a.config.ReturnToolOutput && len(steps) > 0 && steps[len(steps)-1].Observation != nil {
				result = *steps[len(steps)-1].Observation
			}
			steps = append(steps, Step{Turn: turn, Thought: resp.Content})
			return NewSuccessResponse(result, steps, toolCalls, elapsedMs(start), a.config.Name, &totalUsage, llmCalls)
		}

		conversation = append(conversation, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			observation, record := a.dispatch(ctx, call)
			toolCalls = append(toolCalls, record)
			steps = append(steps, Step{Turn: turn, Thought: resp.Content, ToolCall: &record, Observation: &observation})

			conversation = append(conversation, llm.ChatMessage{
				Role:       "tool",
				Content:    observation,
				ToolCallID: call.ID,
			})
		}
	}

	log.Warn("agent loop exhausted max turns", zap.Int("max_turns", maxTurns))
	return NewTimeoutResponse(lastText, steps, toolCalls, elapsedMs(start), &totalUsage, llmCalls)
}

// chatWithRetry issues one turn, retrying with capped exponential backoff
// when the provider error classifies as transient (timeout, 5xx, rate
// limit). The retry sleep happens outside of any lock the caller holds, and
// a non-retryable (permanent) error returns immediately on the first try.
func (a *Agent) chatWithRetry(ctx context.Context, conversation []llm.ChatMessage, toolDefs []llm.ToolDefinition) (llm.LLMResponse, error) {
	log := telemetry.Named("agent").With(zap.String("agent", a.config.Name))

	var lastErr error
	for attempt := 0; attempt <= MaxProviderRetries; attempt++ {
		if attempt > 0 {
			backoff := providerBackoff(attempt)
			log.Warn("retrying provider call after transient error", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return llm.LLMResponse{}, enginerr.NewCancelled()
			case <-time.After(backoff):
			}
		}

		resp, err := a.llmClient.ChatWithTools(ctx, conversation, toolDefs, a.config.Temperature)
		if err == nil {
			return resp, nil
		}

		classified := llm.ClassifyError(a.llmClient.Provider().Name(), err)
		if !isRetryable(classified) {
			return llm.LLMResponse{}, classified
		}
		lastErr = classified
	}
	return llm.LLMResponse{}, fmt.Errorf("exhausted %d provider retries: %w", MaxProviderRetries, lastErr)
}

// providerBackoff returns a capped exponential delay with jitter, the same
// shape the Tool Executor's retry uses for transient tool failures.
func providerBackoff(attempt int) time.Duration {
	const (
		baseDelay = 300 * time.Millisecond
		maxDelay  = 8 * time.Second
	)
	delay := baseDelay * time.Duration(uint64(1)<<uint(attempt))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 5))
	return delay + jitter
}

// dispatch executes one requested tool call and records its outcome. A
// missing tool or a dispatch error becomes the observation text itself,
// rather than aborting the loop — the model gets to react to its own
// mistake on the next turn.
func (a *Agent) dispatch(ctx context.Context, call llm.ToolCall) (string, ToolCallRecord) {
	started := time.Now()

	tool, exists := a.toolRegistry.Get(call.Name)
	if !exists {
		return fmt.Sprintf("tool %q is not registered", call.Name), ToolCallRecord{
			Name: call.Name, InputSize: len(call.Arguments), DurationMs: elapsedMs(started),
		}
	}

	result, err := a.toolExecutor.Execute(ctx, tool, call.Arguments)
	record := ToolCallRecord{
		Name:      call.Name,
		InputSize: len(call.Arguments),
		DurationMs: elapsedMs(started),
	}
	if err != nil {
		record.Success = false
		return fmt.Sprintf("tool %q failed: %v", call.Name, err), record
	}

	record.OutputSize = len(result.Output)
	record.Success = result.Success()
	if result.Success() {
		return result.Output, record
	}
	return fmt.Sprintf("tool %q returned an error: %v", call.Name, result.Error), record
}

func (a *Agent) toolDefinitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(a.config.Tools))
	for _, t := range a.config.Tools {
		meta := t.Metadata()
		defs = append(defs, llm.ToolDefinition{
			Name:        meta.Name,
			Description: meta.Description,
			Parameters:  parametersSchema(meta),
		})
	}
	return defs
}

// parametersSchema renders a tool's declared parameters as the JSON Schema
// object the provider SDKs expect.
func parametersSchema(meta tools.ToolMetadata) map[string]interface{} {
	properties := make(map[string]interface{}, len(meta.Parameters))
	var required []string
	for _, p := range meta.Parameters {
		properties[p.Name] = map[string]interface{}{
			"type":        jsonSchemaType(p.ParamType),
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func jsonSchemaType(paramType string) string {
	switch paramType {
	case "int", "float":
		return "number"
	case "array<int>", "array<string>":
		return "array"
	case "bool":
		return "boolean"
	default:
		return "string"
	}
}

// isRetryable reports whether err is a transient provider error the Agent
// Loop's surrounding retry policy (the Tool Executor's backoff, reused here
// conceptually) should have a chance to recover from.
func isRetryable(err error) bool {
	var transient *enginerr.ProviderTransientError
	return errors.As(err, &transient)
}

func elapsedMs(start time.Time) uint64 {
	return uint64(time.Since(start).Milliseconds())
}
