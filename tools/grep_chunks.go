package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ariadne-eng/queryengine/internal/dsa"
	"github.com/ariadne-eng/queryengine/model"
	"github.com/ariadne-eng/queryengine/store"
)

// GrepChunksTool runs a regular expression over already-stored chunk text,
// in-process, rather than shelling out the way the teacher's filesystem
// grep tool did — the pattern and the corpus both come from a chunk store
// the executor already trusts, so there is nothing an external process
// buys beyond the cost of spawning one.
type GrepChunksTool struct {
	BaseTool
	store *store.Store
}

// NewGrepChunksTool builds the grep_chunks tool over a chunk store.
func NewGrepChunksTool(st *store.Store) *GrepChunksTool {
	return &GrepChunksTool{store: st}
}

func (t *GrepChunksTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "grep_chunks",
		Description: "Search chunk text with a regular expression, optionally scoped to a buffer or a list of chunk ids.",
		Parameters: []ToolParameter{
			{Name: "pattern", ParamType: "string", Description: "RE2 regular expression", Required: true},
			{Name: "chunk_ids", ParamType: "array<int>", Description: "Restrict the search to these chunk ids", Required: false},
			{Name: "buffer_id", ParamType: "int", Description: "Restrict the search to this buffer", Required: false},
			{Name: "context_lines", ParamType: "int", Description: "Lines of context around each match, default 0, capped at 20", Required: false},
		},
	}
}

type grepChunksArgs struct {
	Pattern      string  `json:"pattern"`
	ChunkIDs     []int64 `json:"chunk_ids,omitempty"`
	BufferID     *int64  `json:"buffer_id,omitempty"`
	ContextLines *int    `json:"context_lines,omitempty"`
}

type grepMatch struct {
	ChunkID    int64  `json:"chunk_id"`
	LineNumber int    `json:"line_number"`
	Line       string `json:"line"`
	Context    string `json:"context,omitempty"`
}

func (t *GrepChunksTool) Validate(args json.RawMessage) error {
	var a grepChunksArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Pattern == "" {
		return fmt.Errorf("pattern must not be empty")
	}
	if len(a.Pattern) > MaxRegexBytes {
		return fmt.Errorf("pattern of %d bytes exceeds cap of %d", len(a.Pattern), MaxRegexBytes)
	}
	if len(a.ChunkIDs) > MaxChunkIDs {
		return fmt.Errorf("chunk_ids has %d entries, exceeds cap of %d", len(a.ChunkIDs), MaxChunkIDs)
	}
	if a.ContextLines != nil && *a.ContextLines > MaxGrepContext {
		return fmt.Errorf("context_lines of %d exceeds cap of %d", *a.ContextLines, MaxGrepContext)
	}
	if len(a.ChunkIDs) == 0 && a.BufferID == nil {
		return fmt.Errorf("either chunk_ids or buffer_id must be given")
	}
	re, err := regexp.Compile(a.Pattern)
	if err != nil {
		return fmt.Errorf("invalid regular expression: %w", err)
	}
	// regexp doesn't expose the compiled program's byte size the way RE2's
	// C++ API does. re.String() returns the pattern source, which
	// MaxRegexBytes already caps far below MaxRegexDFABytes, so this check
	// does not measure the compiled program.
	if len(re.String()) > MaxRegexDFABytes {
		return fmt.Errorf("compiled pattern exceeds the DFA size budget")
	}
	return nil
}

func (t *GrepChunksTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a grepChunksArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResultf("invalid arguments: %v", err), nil
	}

	re, err := regexp.Compile(a.Pattern)
	if err != nil {
		return FailureResultf("invalid regular expression: %v", err), nil
	}

	contextLines := 0
	if a.ContextLines != nil {
		contextLines = *a.ContextLines
	}

	chunks, err := t.chunksInScope(ctx, a)
	if err != nil {
		return ToolResult{}, err
	}
	if len(chunks) > MaxGrepMaterialize {
		chunks = chunks[:MaxGrepMaterialize]
	}

	literal := regexp.QuoteMeta(a.Pattern) == a.Pattern

	var matches []grepMatch
	for _, c := range chunks {
		if c == nil {
			continue
		}
		// literal patterns first ask a suffix array whether the chunk holds
		// the pattern at all; a chunk without it is skipped before its lines
		// are split and run through the regex engine.
		if literal && !chunkMayContainLiteral(c.Text, a.Pattern) {
			continue
		}
		lines := strings.Split(c.Text, "\n")
		for i, line := range lines {
			if !re.MatchString(line) {
				continue
			}
			m := grepMatch{ChunkID: c.ID, LineNumber: i + 1, Line: line}
			if contextLines > 0 {
				lo := i - contextLines
				if lo < 0 {
					lo = 0
				}
				hi := i + contextLines + 1
				if hi > len(lines) {
					hi = len(lines)
				}
				m.Context = strings.Join(lines[lo:hi], "\n")
			}
			matches = append(matches, m)
		}
	}

	out, err := json.Marshal(matches)
	if err != nil {
		return FailureResultf("failed to encode result: %v", err), nil
	}
	return SuccessResult(string(out)), nil
}

// chunkMayContainLiteral reports whether pattern occurs anywhere in text,
// using a suffix array rather than a direct scan so that a chunk with no
// occurrence at all is rejected without ever materializing its lines.
func chunkMayContainLiteral(text, pattern string) bool {
	return dsa.BuildSuffixArray(text).SearchFirst(pattern) >= 0
}

func (t *GrepChunksTool) chunksInScope(ctx context.Context, a grepChunksArgs) ([]*model.Chunk, error) {
	if len(a.ChunkIDs) > 0 {
		return t.store.GetChunksByIDs(ctx, a.ChunkIDs)
	}
	if a.BufferID != nil {
		chunks, err := t.store.ListChunks(ctx, *a.BufferID)
		if err != nil {
			return nil, err
		}
		out := make([]*model.Chunk, len(chunks))
		for i := range chunks {
			out[i] = &chunks[i]
		}
		return out, nil
	}
	return nil, fmt.Errorf("either chunk_ids or buffer_id must be given")
}
