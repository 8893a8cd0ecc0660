package context

import (
	"context"
	"strconv"

	"github.com/smallbiznis/chatdesk/internal/accountcontext"
)

type requestIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

func AccountIDFromContext(ctx context.Context) string {
	id, ok := accountcontext.AccountIDFromContext(ctx)
	if !ok {
		return ""
	}
	return id.String()
}

func ActorFromContext(ctx context.Context) (string, string) {
	actor, ok := accountcontext.ActorFromContext(ctx)
	if !ok {
		return "system", ""
	}
	if actor.AgentID == 0 {
		return "system", ""
	}
	return "agent", strconv.FormatInt(int64(actor.AgentID), 10)
}
