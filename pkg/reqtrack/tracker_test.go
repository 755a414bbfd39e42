package reqtrack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stanislav-tkach/mintlayer-core/pkg/transport"
)

func newTestTracker(t *testing.T) *Tracker {
	return New(zaptest.NewLogger(t), DefaultMaxRetries)
}

func TestRecordThenResponseRoundTrip(t *testing.T) {
	tr := newTestTracker(t)
	id := transport.NewRequestID()
	tr.Record(id, "peer-a", Kind{Tag: KindGetHeaders})

	rs, err := tr.OnResponse(id)
	require.NoError(t, err)
	assert.Equal(t, transport.PeerID("peer-a"), rs.PeerID)
	assert.Equal(t, 0, rs.Retries)

	_, err = tr.OnResponse(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOnErrorTransientResendsUpToMaxRetries(t *testing.T) {
	tr := newTestTracker(t)
	id := transport.NewRequestID()
	tr.Record(id, "peer-a", Kind{Tag: KindGetBlocks})

	for i := 1; i <= DefaultMaxRetries; i++ {
		action, rs, err := tr.OnError(id, ErrTransient)
		require.NoError(t, err)
		assert.Equal(t, ActionResend, action)
		assert.Equal(t, i, rs.Retries)
	}

	action, rs, err := tr.OnError(id, ErrTransient)
	require.NoError(t, err)
	assert.Equal(t, ActionDisconnect, action)
	assert.Equal(t, DefaultMaxRetries, rs.Retries)

	_, err = tr.OnResponse(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOnErrorProtocolDisconnectsImmediately(t *testing.T) {
	tr := newTestTracker(t)
	id := transport.NewRequestID()
	tr.Record(id, "peer-a", Kind{Tag: KindGetHeaders})

	action, rs, err := tr.OnError(id, ErrProtocol)
	require.NoError(t, err)
	assert.Equal(t, ActionDisconnect, action)
	assert.Equal(t, 0, rs.Retries)
}

func TestOnErrorFatalStopsEverything(t *testing.T) {
	tr := newTestTracker(t)
	id := transport.NewRequestID()
	tr.Record(id, "peer-a", Kind{Tag: KindGetHeaders})

	action, _, err := tr.OnError(id, ErrFatal)
	require.NoError(t, err)
	assert.Equal(t, ActionFatal, action)
}

func TestRemovePeerDropsOnlyItsRequests(t *testing.T) {
	tr := newTestTracker(t)
	idA := transport.NewRequestID()
	idB := transport.NewRequestID()
	tr.Record(idA, "peer-a", Kind{Tag: KindGetHeaders})
	tr.Record(idB, "peer-b", Kind{Tag: KindGetHeaders})

	removed := tr.RemovePeer("peer-a")
	assert.Equal(t, []transport.RequestID{idA}, removed)
	assert.Equal(t, 0, tr.Count("peer-a"))
	assert.Equal(t, 1, tr.Count("peer-b"))
}

func TestExpiredRequests(t *testing.T) {
	tr := newTestTracker(t)
	id := transport.NewRequestID()
	tr.Record(id, "peer-a", Kind{Tag: KindGetHeaders})

	assert.Empty(t, tr.ExpiredRequests(time.Hour, time.Now()))
	assert.Equal(t, []transport.RequestID{id}, tr.ExpiredRequests(0, time.Now().Add(time.Millisecond)))
}

func TestInactivePeers(t *testing.T) {
	tr := newTestTracker(t)
	tr.Touch("peer-a")

	assert.Empty(t, tr.InactivePeers(time.Hour, time.Now()))
	assert.Equal(t, []transport.PeerID{"peer-a"}, tr.InactivePeers(0, time.Now().Add(time.Millisecond)))
}
