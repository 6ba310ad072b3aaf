package requestcontext

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesSurviveEachOther(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithActorID(ctx, "clerk-9")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "clerk-9", ActorID(ctx))

	child := WithRequestID(ctx, "req-2")
	assert.Equal(t, "req-2", RequestID(child))
	assert.Equal(t, "clerk-9", ActorID(child))
	assert.Equal(t, "req-1", RequestID(ctx), "parent is untouched")
}

func TestEmptyContext(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Empty(t, ActorID(context.Background()))
}

func TestEnsureRequestID(t *testing.T) {
	tagged := WithRequestID(context.Background(), "req-kept")
	ctx, reqID := EnsureRequestID(tagged)
	assert.Equal(t, "req-kept", reqID)
	assert.Equal(t, tagged, ctx)

	ctx, reqID = EnsureRequestID(context.Background())
	_, err := uuid.Parse(reqID)
	require.NoError(t, err)
	assert.Equal(t, reqID, RequestID(ctx))
}
