// Package peer encapsulates the lifecycle of one connected peer, from the
// initial locator exchange through header/block download to idle.
package peer

import (
	"errors"
	"fmt"

	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
)

// Kind discriminates the state a peer's sync record is in. It is a closed
// enumeration, encoded as a tagged union with an explicit discriminator
// where it crosses a serialization boundary (it never does on the wire;
// this is purely local bookkeeping).
type Kind int

const (
	// Unknown is the state of a peer that hasn't yet been asked for
	// headers.
	Unknown Kind = iota
	// UploadingHeaders means a GetHeaders(locator) is in flight.
	UploadingHeaders
	// UploadingBlocks means a GetBlocks([id]) is in flight for the given
	// expected block id.
	UploadingBlocks
	// Idle means the peer has nothing outstanding and is believed caught
	// up to its last declared tip.
	Idle
)

func (k Kind) String() string {
	switch k {
	case Unknown:
		return "Unknown"
	case UploadingHeaders:
		return "UploadingHeaders"
	case UploadingBlocks:
		return "UploadingBlocks"
	case Idle:
		return "Idle"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ErrRequestAlreadyInFlight is a programming-error guard: a peer record
// must have at most one pending request at a time (§4.2's contract).
var ErrRequestAlreadyInFlight = errors.New("peer: a request is already in flight for this peer")

// State is one peer's sync record: its state-machine position, its
// declared best header, and (while UploadingBlocks) the list of further
// block ids still pending after the one currently in flight.
type State struct {
	kind Kind

	locator     []chain.BlockID
	expectedID  chain.BlockID
	pendingIDs  []chain.BlockID // queued after expectedID, oldest first
	declaredTip chain.BlockID
	lastCommon  chain.BlockID
}

// New returns a peer record in the Unknown state.
func New() *State {
	return &State{kind: Unknown}
}

// Kind returns the current state-machine position.
func (s *State) Kind() Kind { return s.kind }

// DeclaredTip returns the last header id the peer is known to claim as its
// tip (from an earlier Headers response), the zero value if never set.
func (s *State) DeclaredTip() chain.BlockID { return s.declaredTip }

// SetDeclaredTip records the peer's claimed tip.
func (s *State) SetDeclaredTip(id chain.BlockID) { s.declaredTip = id }

// LastCommonHeader returns the last header known to be shared with this
// peer, used as the reorg search anchor.
func (s *State) LastCommonHeader() chain.BlockID { return s.lastCommon }

// SetLastCommonHeader records the last known-shared header.
func (s *State) SetLastCommonHeader(id chain.BlockID) { s.lastCommon = id }

// BeginHeaders transitions Unknown/Idle -> UploadingHeaders(locator). It
// errors if a request is already in flight.
func (s *State) BeginHeaders(locator []chain.BlockID) error {
	if s.kind == UploadingHeaders || s.kind == UploadingBlocks {
		return ErrRequestAlreadyInFlight
	}
	s.kind = UploadingHeaders
	s.locator = locator
	return nil
}

// Locator returns the locator sent with the in-flight GetHeaders, valid
// only while Kind() == UploadingHeaders.
func (s *State) Locator() []chain.BlockID { return s.locator }

// CompleteHeadersNoNovelty transitions UploadingHeaders -> Idle, used when
// the peer's Headers response contained nothing new.
func (s *State) CompleteHeadersNoNovelty() {
	s.kind = Idle
	s.locator = nil
}

// BeginBlocks transitions UploadingHeaders -> UploadingBlocks(first),
// queuing the remaining ids to request afterward, one at a time.
func (s *State) BeginBlocks(ids []chain.BlockID) error {
	if len(ids) == 0 {
		return errors.New("peer: BeginBlocks requires at least one id")
	}
	if s.kind == UploadingBlocks {
		return ErrRequestAlreadyInFlight
	}
	s.kind = UploadingBlocks
	s.expectedID = ids[0]
	s.pendingIDs = append([]chain.BlockID(nil), ids[1:]...)
	s.locator = nil
	return nil
}

// ExpectedBlock returns the block id currently being awaited, valid only
// while Kind() == UploadingBlocks.
func (s *State) ExpectedBlock() chain.BlockID { return s.expectedID }

// AdvanceBlock must be called after a matching block is successfully
// processed. If more ids are pending it transitions to the next
// UploadingBlocks(id) and returns (nextID, true); otherwise it transitions
// to Idle and returns (zero, false).
func (s *State) AdvanceBlock() (chain.BlockID, bool) {
	if len(s.pendingIDs) == 0 {
		s.kind = Idle
		s.expectedID = chain.BlockID{}
		return chain.BlockID{}, false
	}
	next := s.pendingIDs[0]
	s.pendingIDs = s.pendingIDs[1:]
	s.expectedID = next
	return next, true
}

// Reset forces the record back to Unknown, e.g. after a request
// exhausted its retries without disconnecting outright (not used by the
// default retry policy, but kept for an implementer who widens it).
func (s *State) Reset() {
	s.kind = Unknown
	s.locator = nil
	s.pendingIDs = nil
	s.expectedID = chain.BlockID{}
}
