package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ariadne-eng/queryengine/llm"
	"github.com/ariadne-eng/queryengine/model"
	"github.com/ariadne-eng/queryengine/tools"
)

// SynthesizerTemperature is low but non-zero so the report's prose varies
// run to run without drifting into the model's less reliable tool-calling
// behavior at higher temperatures.
const SynthesizerTemperature = 0.2

const synthesizerSystemPrompt = `You are a synthesizer for a document retrieval engine.
You are given a query and a list of findings extracted from document chunks, each tagged
with the chunk id it came from and its relevance level. Write a report that answers the
query using the findings as your evidence base.

You may call the available tools to verify a quote against its source chunk, search for
content the findings may have missed, or retrieve additional chunks by id. Use tools only
when they would materially improve the report; do not call a tool just because it exists.

Write the report in markdown. Cite chunk ids for claims drawn from specific findings.`

// Synthesizer is the Synthesizer Agent (C9): a tool-using agent, built on
// the Agent Loop, that turns a findings list into a free-form report.
type Synthesizer struct {
	agent *Agent
}

// NewSynthesizer builds a synthesizer over the given provider, wiring the
// fixed tool set (§4.5) into its own Agent Loop.
func NewSynthesizer(provider llm.Provider, toolset []tools.Tool) *Synthesizer {
	cfg := Config{
		Name:         "synthesizer",
		Description:  "Merges extracted findings into a narrative report",
		SystemPrompt: synthesizerSystemPrompt,
		Tools:        toolset,
		Temperature:  SynthesizerTemperature,
	}
	return &Synthesizer{agent: New(cfg, provider)}
}

type synthesizerFinding struct {
	ChunkID   int64    `json:"chunk_id"`
	Relevance string   `json:"relevance"`
	Evidence  []string `json:"evidence,omitempty"`
	Summary   string   `json:"summary,omitempty"`
}

type synthesizerInput struct {
	Query    string               `json:"query"`
	Findings []synthesizerFinding `json:"findings"`
}

// Synthesize runs the Agent Loop over the surviving findings and returns its
// report text, along with the loop's telemetry (tool calls, token usage,
// turn count) for QueryResult bookkeeping. A provider or loop failure is
// surfaced to the caller rather than defaulted — synthesis failure has no
// advisory fallback the way Planner and Extractor do (§7).
func (s *Synthesizer) Synthesize(ctx context.Context, query string, findings []model.Finding) (string, Metadata, error) {
	input := synthesizerInput{Query: query, Findings: make([]synthesizerFinding, len(findings))}
	for i, f := range findings {
		input.Findings[i] = synthesizerFinding{
			ChunkID:   f.ChunkID,
			Relevance: f.Relevance.String(),
			Evidence:  f.Evidence,
			Summary:   f.Summary,
		}
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return "", Metadata{}, fmt.Errorf("failed to encode findings for synthesis: %w", err)
	}

	prompt := fmt.Sprintf("Query and findings follow as JSON:\n%s", string(inputJSON))
	resp := s.agent.Execute(ctx, prompt)

	switch resp.Type {
	case ResponseSuccess:
		return strings.TrimSpace(resp.Result), resp.Metadata, nil
	case ResponseTimeout:
		return strings.TrimSpace(resp.PartialResult), resp.Metadata, fmt.Errorf("synthesizer exhausted its turn budget")
	default:
		return "", resp.Metadata, fmt.Errorf("synthesizer failed: %s", resp.Error)
	}
}

// NoFindingsReport is the canned response returned when Collect produces no
// surviving findings, so the Synthesizer is never invoked on an empty set.
const NoFindingsReport = "No relevant information was found for this query."
