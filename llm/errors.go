package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ariadne-eng/queryengine/internal/enginerr"
)

// ClassifyError wraps a raw provider error as transient (retryable) or
// permanent, the distinction the Agent Loop's retry policy needs (spec §7,
// §4.6). Providers return whatever error shape their own SDK produces, so
// classification happens centrally here rather than once per provider file.
func ClassifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return enginerr.NewProviderTransient(provider, err)
	}

	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) {
		if isTransientStatus(openaiErr.HTTPStatusCode) {
			return enginerr.NewProviderTransient(provider, err)
		}
		return enginerr.NewProviderPermanent(provider, err)
	}

	// DeepSeek runs on the go-openai client, so its errors take the branch
	// above. The Anthropic and Gemini SDKs each surface their own error
	// shape; rather than depend on every SDK's internal error type, fall
	// back to matching the status/condition words their Error() text
	// reliably includes (both are JSON/HTTP clients underneath).
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"timeout", "deadline exceeded", "rate limit", "too many requests", "429", "502", "503", "504", "connection reset", "temporarily unavailable"} {
		if strings.Contains(msg, needle) {
			return enginerr.NewProviderTransient(provider, err)
		}
	}
	return enginerr.NewProviderPermanent(provider, err)
}

func isTransientStatus(code int) bool {
	return code == 429 || code >= 500
}
