package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Local is an in-process SyncHandle: two Local instances created by
// NewLocalPair are wired to each other by channels, so the sync manager's
// end-to-end tests can drive the real protocol without a socket. It is the
// teacher-grounded stand-in for a live dialer (_pkg.dev/connmgr) -- what's
// under test here is the protocol, not a TCP stack.
type Local struct {
	self PeerID
	peer PeerID

	mu      sync.Mutex
	pending map[RequestID]struct{} // requests we sent, awaiting a response
	closed  bool

	outbox chan Event // events delivered to the *other* side
	inbox  chan Event // events delivered to us
}

// NewLocalPair returns two connected Local transports, named a and b, each
// already aware of the other's PeerID.
func NewLocalPair(a, b PeerID) (*Local, *Local) {
	ab := make(chan Event, 64)
	ba := make(chan Event, 64)
	la := &Local{self: a, peer: b, pending: map[RequestID]struct{}{}, outbox: ab, inbox: ba}
	lb := &Local{self: b, peer: a, pending: map[RequestID]struct{}{}, outbox: ba, inbox: ab}
	return la, lb
}

// ErrTransportClosed is returned by any operation after Close.
var ErrTransportClosed = errors.New("transport: closed")

// SendRequest implements SyncHandle.
func (l *Local) SendRequest(ctx context.Context, peer PeerID, msg SyncingMessage) (RequestID, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return RequestID{}, ErrTransportClosed
	}
	if peer != l.peer {
		l.mu.Unlock()
		return RequestID{}, fmt.Errorf("transport: unknown peer %s", peer)
	}
	id := NewRequestID()
	l.pending[id] = struct{}{}
	l.mu.Unlock()

	ev := Event{Request: &RequestEvent{Peer: l.self, RequestID: id, Message: msg}}
	select {
	case l.outbox <- ev:
		return id, nil
	case <-ctx.Done():
		return RequestID{}, ctx.Err()
	}
}

// SendResponse implements SyncHandle.
func (l *Local) SendResponse(ctx context.Context, reqID RequestID, msg SyncingMessage) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrTransportClosed
	}
	l.mu.Unlock()

	ev := Event{Response: &ResponseEvent{Peer: l.self, RequestID: reqID, Message: msg}}
	select {
	case l.outbox <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PollNextEvent implements SyncHandle. An inbound RequestEvent already
// carries the id the sender minted in SendRequest, which SendResponse on
// this side echoes back; an inbound response clears the matching pending
// entry.
func (l *Local) PollNextEvent(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-l.inbox:
		if !ok {
			return Event{}, ErrTransportClosed
		}
		if ev.Response != nil {
			l.mu.Lock()
			delete(l.pending, ev.Response.RequestID)
			l.mu.Unlock()
		}
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// InjectError delivers a synthetic ErrorEvent for reqID to this side, as
// if the transport layer had failed to deliver/receive it. Used by tests
// to exercise the retry/timeout path deterministically.
func (l *Local) InjectError(reqID RequestID, err error) {
	l.inbox <- Event{Err: &ErrorEvent{Peer: l.peer, RequestID: reqID, Err: err}}
}

// AnnouncePeerUp delivers a PeerUp control event to this side, as if a
// connectivity manager had just accepted the given peer.
func (l *Local) AnnouncePeerUp(p PeerID) {
	pp := p
	l.inbox <- Event{PeerUp: &pp}
}

// AnnouncePeerDown delivers a PeerDown control event to this side.
func (l *Local) AnnouncePeerDown(p PeerID) {
	pp := p
	l.inbox <- Event{PeerDown: &pp}
}

// Close marks the transport closed: further sends from this side fail, and
// the other side's PollNextEvent returns ErrTransportClosed once it has
// drained what was already sent. This side's own PollNextEvent is not
// unblocked.
func (l *Local) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.outbox)
}
