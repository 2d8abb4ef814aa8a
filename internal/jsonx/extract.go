// Package jsonx extracts and repairs JSON embedded in LLM chat responses.
//
// LLMs return JSON wrapped in markdown fences, prefixed with commentary, or
// as a bare array/object without surrounding text. This package handles all
// three shapes for both objects (the Planner's AnalysisPlan) and arrays (the
// Extractor's Finding list), using gjson/sjson for lenient traversal instead
// of hand-rolled brace counting alone.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// stripMarkdownCodeBlocks removes ```json / ``` fences around a response.
func stripMarkdownCodeBlocks(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimSpace(trimmed)
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	return trimmed
}

// Extract finds the JSON portion of a response string, handling a pure JSON
// response, a response fenced in markdown, or a JSON value (object or
// array) embedded in surrounding text.
func Extract(response string) (string, error) {
	response = stripMarkdownCodeBlocks(response)

	if gjson.Valid(response) {
		return response, nil
	}

	// Try the widest object span, then the widest array span; keep whichever
	// starts first if both are present.
	objStart, objEnd := strings.Index(response, "{"), strings.LastIndex(response, "}")
	arrStart, arrEnd := strings.Index(response, "["), strings.LastIndex(response, "]")

	type span struct{ start, end int }
	var candidates []span
	if objStart != -1 && objEnd > objStart {
		candidates = append(candidates, span{objStart, objEnd})
	}
	if arrStart != -1 && arrEnd > arrStart {
		candidates = append(candidates, span{arrStart, arrEnd})
	}
	if len(candidates) == 2 && candidates[1].start < candidates[0].start {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}

	for _, c := range candidates {
		candidate := response[c.start : c.end+1]
		if gjson.Valid(candidate) {
			return candidate, nil
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview)
}

// ExtractInto extracts the JSON portion of response and unmarshals it into
// result, which must be a pointer.
func ExtractInto(response string, result interface{}) error {
	raw, err := Extract(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), result); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}

// repairTrailingCommaArray salvages an array span gjson.Valid rejects —
// typically a trailing comma the model left before the closing bracket —
// by walking the elements with gjson's tolerant tokenizer and rebuilding a
// clean array with sjson, one element at a time.
func repairTrailingCommaArray(text string) (string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return "", false
	}

	elements := gjson.Parse(text[start : end+1]).Array()
	if len(elements) == 0 {
		return "", false
	}

	rebuilt := "[]"
	for _, el := range elements {
		next, err := sjson.SetRaw(rebuilt, "-1", el.Raw)
		if err != nil {
			return "", false
		}
		rebuilt = next
	}
	if !gjson.Valid(rebuilt) {
		return "", false
	}
	return rebuilt, true
}

// ExtractArray extracts a JSON array from response into a slice of T,
// repairing the common case where the model returns an object with a single
// array-valued field (e.g. {"findings": [...]}) instead of a bare array, and
// the case where the array itself is malformed by a trailing comma.
func ExtractArray[T any](response string) ([]T, error) {
	raw, err := Extract(response)
	if err != nil {
		if repaired, ok := repairTrailingCommaArray(stripMarkdownCodeBlocks(response)); ok {
			raw = repaired
		} else {
			return nil, err
		}
	}

	parsed := gjson.Parse(raw)
	if parsed.IsArray() {
		var result []T
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON array: %w", err)
		}
		return result, nil
	}

	if parsed.IsObject() {
		var found []T
		var unwrapErr error
		parsed.ForEach(func(_, value gjson.Result) bool {
			if value.IsArray() {
				if err := json.Unmarshal([]byte(value.Raw), &found); err == nil {
					return false
				} else {
					unwrapErr = err
				}
			}
			return true
		})
		if found != nil {
			return found, nil
		}
		if unwrapErr != nil {
			return nil, fmt.Errorf("failed to unmarshal nested JSON array: %w", unwrapErr)
		}
	}

	return nil, fmt.Errorf("response did not contain a JSON array")
}
