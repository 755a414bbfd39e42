package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPairRequestResponseRoundTrip(t *testing.T) {
	a, b := NewLocalPair("a", "b")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	reqID, err := a.SendRequest(ctx, "b", SyncingMessage{GetHeaders: &GetHeaders{}})
	require.NoError(t, err)

	ev, err := b.PollNextEvent(ctx)
	require.NoError(t, err)
	require.NotNil(t, ev.Request)
	assert.Equal(t, reqID, ev.Request.RequestID)

	require.NoError(t, b.SendResponse(ctx, ev.Request.RequestID, SyncingMessage{Headers: &Headers{}}))

	resp, err := a.PollNextEvent(ctx)
	require.NoError(t, err)
	require.NotNil(t, resp.Response)
	assert.Equal(t, reqID, resp.Response.RequestID)
}

func TestLocalInjectError(t *testing.T) {
	a, _ := NewLocalPair("a", "b")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a.InjectError(RequestID{}, assert.AnError)
	ev, err := a.PollNextEvent(ctx)
	require.NoError(t, err)
	require.NotNil(t, ev.Err)
	assert.ErrorIs(t, ev.Err.Err, assert.AnError)
}
