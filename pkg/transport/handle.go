package transport

import "context"

// Event is what PollNextEvent delivers: exactly one of the fields is set.
type Event struct {
	// PeerUp/PeerDown are control events.
	PeerUp   *PeerID
	PeerDown *PeerID

	// Request/Response/Err are transport events, all addressed to/from a
	// specific peer and (for Response/Err) a specific prior request.
	Request  *RequestEvent
	Response *ResponseEvent
	Err      *ErrorEvent

	// Block is a pub-sub announcement from the block topic.
	Block *BlockEvent
}

// RequestEvent is an inbound request from a peer, awaiting a response via
// SendResponse(RequestID, ...).
type RequestEvent struct {
	Peer      PeerID
	RequestID RequestID
	Message   SyncingMessage
}

// ResponseEvent is an inbound response to a request this node sent
// earlier with SendRequest.
type ResponseEvent struct {
	Peer      PeerID
	RequestID RequestID
	Message   SyncingMessage
}

// ErrorEvent reports a transport-level failure for a previously sent
// request.
type ErrorEvent struct {
	Peer      PeerID
	RequestID RequestID
	Err       error
}

// BlockEvent is a new block received over pub-sub, not request/response.
type BlockEvent struct {
	Peer    PeerID
	Message SyncingMessage
}

// SyncHandle is the capability set the sync manager is polymorphic over:
// send a request (returns the id to track it by), send a response to a
// previously received request, and poll for the next inbound event of any
// kind.
type SyncHandle interface {
	SendRequest(ctx context.Context, peer PeerID, msg SyncingMessage) (RequestID, error)
	SendResponse(ctx context.Context, reqID RequestID, msg SyncingMessage) error
	PollNextEvent(ctx context.Context) (Event, error)
}
