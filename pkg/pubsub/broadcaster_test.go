package pubsub

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
	"github.com/stanislav-tkach/mintlayer-core/pkg/transport"
)

func TestBroadcasterDeliversToSubscriber(t *testing.T) {
	b := NewBroadcaster(zaptest.NewLogger(t), transport.Codec{Magic: transport.Magic{1, 2, 3, 4}})
	srv := httptest.NewServer(b)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, b.PublishBlock(&chain.Block{Header: chain.BlockHeader{Time: 99}}))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	decoded, err := (transport.Codec{Magic: transport.Magic{1, 2, 3, 4}}).Decode(data)
	require.NoError(t, err)
	require.NotNil(t, decoded.Blocks)
	require.Len(t, decoded.Blocks.Blocks, 1)
	assert.Equal(t, uint32(99), decoded.Blocks.Blocks[0].Header.Time)
}

func TestPublishWithNoSubscribersIsANoOp(t *testing.T) {
	b := NewBroadcaster(zaptest.NewLogger(t), transport.Codec{Magic: transport.Magic{1, 2, 3, 4}})
	assert.NoError(t, b.PublishBlock(&chain.Block{}))
	assert.Equal(t, 0, b.SubscriberCount())
}
