package middleware

import "context"

type contextKey string

const (
	ctxSessionID contextKey = "session_id"
	ctxReviewer  contextKey = "reviewer"
	ctxRequestID contextKey = "request_id"
)

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

// RequestIDFromContext returns the id assigned by RequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		return v
	}
	return ""
}

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

func ReviewerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxReviewer).(string); ok {
		return v
	}
	return ""
}

// WithSession injects the session id and reviewer into the context.
func WithSession(ctx context.Context, sessionID, reviewer string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxSessionID, sessionID)
	return context.WithValue(ctx, ctxReviewer, reviewer)
}
