package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a
// context. Fields flow through context enrichment, so pipeline context
// (query_id, stage, etc.) is included in every log statement without threading
// attrs by hand.
type LogFields struct {
	QueryID   *int64  // Triage query ID
	JobID     *string // Redis stream message ID
	Stage     *string // Pipeline stage (e.g., "tagging", "spam")
	Channel   *string // Inbound channel (email, chat, ...)
	TeamID    *int64  // Assigned team ID
	AgentID   *int64  // Assigned agent ID
	Component string  // Component name (e.g., "triage.worker.intake")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking
// precedence. Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.QueryID != nil {
		result.QueryID = next.QueryID
	}
	if next.JobID != nil {
		result.JobID = next.JobID
	}
	if next.Stage != nil {
		result.Stage = next.Stage
	}
	if next.Channel != nil {
		result.Channel = next.Channel
	}
	if next.TeamID != nil {
		result.TeamID = next.TeamID
	}
	if next.AgentID != nil {
		result.AgentID = next.AgentID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{QueryID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}
