// Package chainstate defines the interface the sync subsystem consumes
// from the chain state manager. The manager's block-validation engine,
// on-disk storage and consensus rules are out of scope for this
// repository (see SPEC_FULL.md §1); this package only fixes the
// capability set the sync manager is polymorphic over, per the "dynamic
// dispatch over backends" design note.
package chainstate

import (
	"context"
	"errors"

	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
)

// Source identifies where a block came from, so the chainstate can apply
// different trust/relay policy (out of scope here, but the value must be
// threaded through).
type Source int

const (
	// SourceLocal means the block was produced or already trusted locally.
	SourceLocal Source = iota
	// SourcePeer means the block arrived from a network peer and must be
	// fully validated before being accepted.
	SourcePeer
)

// ErrUnknownBlock is returned by GetBlock/GetHeaders for an id the
// chainstate doesn't have.
var ErrUnknownBlock = errors.New("chainstate: unknown block")

// ErrValidationFailure wraps any block-level rejection (double spend,
// missing/spent output, immature reward spend, bad signature, ...). The
// sync manager treats any error satisfying errors.Is(err,
// ErrValidationFailure) as peer misbehavior per §7.
var ErrValidationFailure = errors.New("chainstate: block validation failed")

// Handle is the typed request/reply handle the sync manager holds. A
// concrete chainstate implementation serializes concurrent callers
// internally (§5): from the sync manager's point of view each method call
// is a single await point.
type Handle interface {
	// BestBlockID returns the tip of the local main chain.
	BestBlockID(ctx context.Context) (chain.BlockID, error)

	// BestHeight returns the height of BestBlockID.
	BestHeight(ctx context.Context) (chain.BlockHeight, error)

	// GetBlock fetches a single block by id.
	GetBlock(ctx context.Context, id chain.BlockID) (*chain.Block, error)

	// GetHeader fetches a single header by id.
	GetHeader(ctx context.Context, id chain.BlockID) (*chain.BlockHeader, error)

	// HasHeader reports whether id is a known header, without fetching it.
	HasHeader(ctx context.Context, id chain.BlockID) (bool, error)

	// MainChainHeaderAt returns the header id at the given height on the
	// local main chain, used to walk the locator.
	MainChainHeaderAt(ctx context.Context, height chain.BlockHeight) (chain.BlockID, error)

	// GetHeaders returns up to maxCount headers starting immediately after
	// from (exclusive) up to the local tip, for answering a peer's
	// GetHeaders request.
	GetHeaders(ctx context.Context, from chain.BlockID, maxCount int) ([]chain.BlockHeader, error)

	// ProcessBlock hands a validated-or-to-be-validated block to the
	// chainstate. On success it may trigger a reorg if the new branch now
	// has more work; the chainstate is the sole arbiter of that decision.
	// Returns (becameNewTip, err): becameNewTip is true iff this call
	// changed BestBlockID.
	ProcessBlock(ctx context.Context, b *chain.Block, src Source) (becameNewTip bool, err error)

	// ProcessHeader records a header the sync manager has determined is
	// connected to known local history (via filter_unknown). It does not
	// itself trigger a reorg; only a full block does.
	ProcessHeader(ctx context.Context, h *chain.BlockHeader) error
}
