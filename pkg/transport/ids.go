// Package transport defines the capability set the sync manager is
// polymorphic over for talking to peers (§9's "dynamic dispatch over
// backends" design note): sending requests/responses and polling for
// inbound events. It also implements the wire codec for SyncingMessage
// (§6) and a concrete in-process transport used throughout the test
// suite.
package transport

import (
	"fmt"

	"github.com/google/uuid"
)

// PeerID is an opaque, comparable handle for a connected peer, minted by
// whatever concrete transport is in use.
type PeerID string

// String implements fmt.Stringer.
func (p PeerID) String() string { return string(p) }

// RequestID is an opaque, comparable handle for one in-flight
// request/response pair. The concrete transports in this repository mint
// it from a random UUID.
type RequestID uuid.UUID

// NewRequestID mints a fresh random RequestID.
func NewRequestID() RequestID {
	return RequestID(uuid.New())
}

// String implements fmt.Stringer.
func (r RequestID) String() string {
	return uuid.UUID(r).String()
}

// IsZero reports whether r is the zero value (never minted).
func (r RequestID) IsZero() bool {
	return r == RequestID{}
}

var _ fmt.Stringer = PeerID("")
var _ fmt.Stringer = RequestID{}
