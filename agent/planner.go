package agent

import (
	"context"
	"encoding/json"

	"github.com/ariadne-eng/queryengine/internal/jsonx"
	"github.com/ariadne-eng/queryengine/internal/telemetry"
	"github.com/ariadne-eng/queryengine/llm"
	"github.com/ariadne-eng/queryengine/model"
	"go.uber.org/zap"
)

// Planner is the Planner Agent (C7): a single-shot, tool-free call that
// recommends search parameters for a query given a dataset summary. Its
// output is advisory — the Orchestrator's parameter resolution chain
// decides how much of it survives.
type Planner struct {
	client *llm.Client
}

// NewPlanner builds a planner over the given provider.
func NewPlanner(provider llm.Provider) *Planner {
	return &Planner{client: llm.NewClient(provider)}
}

const plannerSystemPrompt = `You are a query planner for a document retrieval engine.
Given a query and a summary of the dataset in scope, recommend search parameters.
Respond with a single JSON object matching this shape:
{
  "search_mode": "hybrid" | "semantic" | "lexical",
  "batch_size": <positive integer, optional>,
  "threshold": <float between 0 and 1, optional>,
  "focus_areas": [<1 to 5 short strings>, optional],
  "max_chunks": <non-negative integer, 0 means unlimited, optional>
}
Omit any field you have no recommendation for. Respond with JSON only.`

type plannerInput struct {
	Query       string `json:"query"`
	ChunkCount  int    `json:"chunk_count"`
	ContentType string `json:"content_type"`
	TotalBytes  int    `json:"total_bytes"`
}

// Plan asks the provider for an AnalysisPlan. Any provider error or parse
// failure yields model.DefaultPlan() rather than propagating — the planner
// is advisory and must never block the pipeline.
func (p *Planner) Plan(ctx context.Context, query string, chunkCount int, contentType string, totalBytes int) model.AnalysisPlan {
	log := telemetry.Named("agent.planner")

	inputJSON, err := json.Marshal(plannerInput{Query: query, ChunkCount: chunkCount, ContentType: contentType, TotalBytes: totalBytes})
	if err != nil {
		log.Warn("failed to encode planner input, using default plan", zap.Error(err))
		return model.DefaultPlan()
	}

	messages := []llm.ChatMessage{
		llm.SystemMessage(plannerSystemPrompt),
		llm.UserMessage(string(inputJSON)),
	}

	content, err := p.client.ChatWithFormat(ctx, messages, llm.NewJSONObjectFormat())
	if err != nil {
		log.Warn("planner provider call failed, using default plan", zap.Error(err))
		return model.DefaultPlan()
	}

	var plan model.AnalysisPlan
	if err := jsonx.ExtractInto(content, &plan); err != nil {
		log.Warn("failed to parse planner output, using default plan", zap.Error(err))
		return model.DefaultPlan()
	}

	if _, ok := model.ParseSearchMode(string(plan.SearchMode)); !ok {
		plan.SearchMode = model.ModeHybrid
	}
	return plan
}
