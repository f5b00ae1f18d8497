package reason

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/triagehq/triage/errors"
)

// GenerateJSON runs a bounded generation and decodes the reply into T,
// stripping markdown code fences first. Any transport, timeout, or decode
// failure is returned wrapped in errors.ErrTransient for the caller to
// convert into a fallback.
func GenerateJSON[T any](ctx context.Context, client Client, timeout time.Duration, system, user string) (*T, error) {
	if client == nil {
		return nil, fmt.Errorf("reasoning client not configured: %w", errors.ErrTransient)
	}

	callCtx, cancel := WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := client.Generate(callCtx, &Request{System: system, User: user})
	if err != nil {
		return nil, fmt.Errorf("generate: %w: %w", err, errors.ErrTransient)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("empty model response: %w", errors.ErrTransient)
	}

	return DecodeJSON[T](resp.Content)
}

// DecodeJSON unmarshals raw model output into T after stripping fences.
// Decode failures count as transient: the model can produce valid JSON on
// another attempt, and callers fall back to their heuristics either way.
func DecodeJSON[T any](raw string) (*T, error) {
	clean := sanitizeJSON(raw)
	var out T
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("decode JSON: %w: %w", err, errors.ErrTransient)
	}
	return &out, nil
}

func sanitizeJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = trimmed[3:]
		trimmed = strings.TrimPrefix(trimmed, "json")
		trimmed = strings.TrimPrefix(trimmed, "JSON")
		if idx := strings.Index(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
	}
	return strings.TrimSpace(trimmed)
}
