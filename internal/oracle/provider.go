package oracle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 120 * time.Second

// Provider SDKs do not retry; Fallback tries the other provider instead.
const sdkRetries = 0

const maxErrorBody = 512

// systemPrompt is shared by both providers.
const systemPrompt = "You are an expert at reading supplier pricelists. Return only valid JSON."

func requestTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}

// statusError turns an SDK API error into a StatusError. Other errors are
// wrapped with the provider name.
func statusError(provider string, err error) error {
	var (
		oaErr *openai.Error
		anErr *anthropic.Error
		se    *StatusError
	)
	switch {
	case errors.As(err, &oaErr):
		body := oaErr.Message
		if body == "" {
			body = oaErr.RawJSON()
		}
		se = &StatusError{Provider: provider, Status: oaErr.StatusCode, Body: body}
	case errors.As(err, &anErr):
		se = &StatusError{Provider: provider, Status: anErr.StatusCode, Body: anErr.RawJSON()}
	default:
		return fmt.Errorf("%s: %w", provider, err)
	}
	se.Body = strings.TrimSpace(se.Body)
	if len(se.Body) > maxErrorBody {
		se.Body = se.Body[:maxErrorBody]
	}
	return se
}
