// Package requestcontext carries correlation values through an operation so
// that logs and audit records of one request can be joined.
package requestcontext

import (
	"context"

	"github.com/google/uuid"
)

type key struct{}

type values struct {
	requestID string
	actorID   string
}

func from(ctx context.Context) values {
	v, _ := ctx.Value(key{}).(values)
	return v
}

// RequestID is empty when the caller did not tag the context.
func RequestID(ctx context.Context) string { return from(ctx).requestID }

// ActorID names whoever initiated the operation when it is not one of the
// entities involved: a clerk, a registrar, a court system.
func ActorID(ctx context.Context) string { return from(ctx).actorID }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	v := from(ctx)
	v.requestID = requestID
	return context.WithValue(ctx, key{}, v)
}

func WithActorID(ctx context.Context, actorID string) context.Context {
	v := from(ctx)
	v.actorID = actorID
	return context.WithValue(ctx, key{}, v)
}

// EnsureRequestID tags ctx with a fresh id unless it already carries one.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if reqID := RequestID(ctx); reqID != "" {
		return ctx, reqID
	}
	reqID := uuid.NewString()
	return WithRequestID(ctx, reqID), reqID
}
