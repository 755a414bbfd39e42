// Package pubsub implements the block announcement topic: a websocket
// fan-out broadcaster that the announcement gate publishes onto and any
// number of subscriber connections read from.
package pubsub

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
	"github.com/stanislav-tkach/mintlayer-core/pkg/transport"
)

// MaxMessageSize bounds a single published frame, matching the wire
// transport's own cap so a block big enough to need splitting there is
// never silently truncated here.
const MaxMessageSize = transport.MaxFrameSize

// ErrFrameTooLarge is returned by PublishBlock for an encoded frame over
// MaxMessageSize. Because MaxMessageSize equals transport.MaxFrameSize and
// Codec.Encode already refuses such frames, an oversized block makes
// PublishBlock return Codec.Encode's own error instead.
var ErrFrameTooLarge = errors.New("pubsub: encoded block exceeds max message size")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Broadcaster is the Blocks-topic publisher: HTTP-upgrades subscribers to
// websocket connections and writes every published block to all of them.
type Broadcaster struct {
	log   *zap.Logger
	codec transport.Codec

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewBroadcaster returns a Broadcaster using codec to frame published
// blocks.
func NewBroadcaster(log *zap.Logger, codec transport.Codec) *Broadcaster {
	return &Broadcaster{log: log, codec: codec, clients: map[*websocket.Conn]struct{}{}}
}

// ServeHTTP upgrades the request to a websocket connection and registers
// it as a subscriber until it disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("pubsub: upgrade failed", zap.Error(err))
		return
	}
	b.mu.Lock()
	b.clients[conn] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		_ = conn.Close()
	}()

	// Subscribers are write-only; drain and discard whatever they send so
	// gorilla's read pump doesn't back up and eventually kill the
	// connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// PublishBlock implements announce.Publisher: it encodes b as a
// single-block Blocks message and writes it to every connected
// subscriber, dropping (and unregistering) any connection that errors.
func (b *Broadcaster) PublishBlock(blk *chain.Block) error {
	msg, err := b.codec.Encode(transport.SyncingMessage{Blocks: &transport.Blocks{Blocks: []chain.Block{*blk}}})
	if err != nil {
		return err
	}
	if len(msg) > MaxMessageSize {
		return ErrFrameTooLarge
	}

	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for c := range b.clients {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			b.log.Debug("pubsub: dropping subscriber after write error", zap.Error(err))
			b.mu.Lock()
			delete(b.clients, c)
			b.mu.Unlock()
			_ = c.Close()
		}
	}
	return nil
}

// SubscriberCount returns the number of currently connected subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
