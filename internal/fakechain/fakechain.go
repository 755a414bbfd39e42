// Package fakechain is a single-goroutine-equivalent (mutex-serialized)
// in-memory stand-in for the chainstate collaborator, used across the
// sync subsystem's tests the way the teacher's own internal/fakechain
// backs pkg/network/bqueue's tests.
package fakechain

import (
	"context"
	"fmt"
	"sync"

	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
	"github.com/stanislav-tkach/mintlayer-core/pkg/chainstate"
)

// FakeChain is a linear, single-branch-at-a-time chain held entirely in
// memory. It implements naive "longest chain wins" reorg so the sync
// manager's end-to-end scenarios (§8 of SPEC_FULL.md) can exercise reorg
// without a real validation engine.
type FakeChain struct {
	mu sync.Mutex

	headers map[chain.BlockID]chain.BlockHeader
	blocks  map[chain.BlockID]*chain.Block
	heights map[chain.BlockID]chain.BlockHeight
	// mainChain[h] is the id of the main-chain header at height h.
	mainChain map[chain.BlockHeight]chain.BlockID
	tip       chain.BlockID
	tipHeight chain.BlockHeight

	// FailValidation, if set, makes every ProcessBlock call with this id
	// fail, so tests can exercise the misbehavior path deterministically.
	FailValidation map[chain.BlockID]bool
}

// NewFakeChain returns a FakeChain seeded with a genesis block (empty
// header, Prev == zero).
func NewFakeChain() *FakeChain {
	genesis := chain.BlockHeader{}
	id := genesis.ID()
	fc := &FakeChain{
		headers:        map[chain.BlockID]chain.BlockHeader{id: genesis},
		blocks:         map[chain.BlockID]*chain.Block{id: {Header: genesis}},
		heights:        map[chain.BlockID]chain.BlockHeight{id: 0},
		mainChain:      map[chain.BlockHeight]chain.BlockID{0: id},
		tip:            id,
		tipHeight:      0,
		FailValidation: map[chain.BlockID]bool{},
	}
	return fc
}

// BlockHeight returns the height of the current tip (mirrors the
// teacher's blockchainer.Blockqueuer.BlockHeight naming).
func (fc *FakeChain) BlockHeight() uint32 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return uint32(fc.tipHeight)
}

// BestBlockID implements chainstate.Handle.
func (fc *FakeChain) BestBlockID(ctx context.Context) (chain.BlockID, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.tip, nil
}

// BestHeight implements chainstate.Handle.
func (fc *FakeChain) BestHeight(ctx context.Context) (chain.BlockHeight, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.tipHeight, nil
}

// GetBlock implements chainstate.Handle.
func (fc *FakeChain) GetBlock(ctx context.Context, id chain.BlockID) (*chain.Block, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	b, ok := fc.blocks[id]
	if !ok {
		return nil, chainstate.ErrUnknownBlock
	}
	return b, nil
}

// GetHeader implements chainstate.Handle.
func (fc *FakeChain) GetHeader(ctx context.Context, id chain.BlockID) (*chain.BlockHeader, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	h, ok := fc.headers[id]
	if !ok {
		return nil, chainstate.ErrUnknownBlock
	}
	return &h, nil
}

// HasHeader implements chainstate.Handle.
func (fc *FakeChain) HasHeader(ctx context.Context, id chain.BlockID) (bool, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	_, ok := fc.headers[id]
	return ok, nil
}

// MainChainHeaderAt implements chainstate.Handle.
func (fc *FakeChain) MainChainHeaderAt(ctx context.Context, height chain.BlockHeight) (chain.BlockID, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	id, ok := fc.mainChain[height]
	if !ok {
		return chain.BlockID{}, chainstate.ErrUnknownBlock
	}
	return id, nil
}

// GetHeaders implements chainstate.Handle: it walks the main chain from
// just after "from" up to the tip, capped at maxCount.
func (fc *FakeChain) GetHeaders(ctx context.Context, from chain.BlockID, maxCount int) ([]chain.BlockHeader, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fromHeight, ok := fc.heights[from]
	if !ok {
		return nil, chainstate.ErrUnknownBlock
	}
	var out []chain.BlockHeader
	for h := fromHeight + 1; h <= fc.tipHeight && len(out) < maxCount; h++ {
		id := fc.mainChain[h]
		out = append(out, fc.headers[id])
	}
	return out, nil
}

// ProcessHeader implements chainstate.Handle: it records the header if its
// parent is known, without moving the tip.
func (fc *FakeChain) ProcessHeader(ctx context.Context, h *chain.BlockHeader) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.processHeaderLocked(h)
}

func (fc *FakeChain) processHeaderLocked(h *chain.BlockHeader) error {
	if _, ok := fc.headers[h.ID()]; ok {
		return nil
	}
	parentHeight, ok := fc.heights[h.Prev]
	if !ok {
		return fmt.Errorf("fakechain: unconnected header %s", h.ID())
	}
	id := h.ID()
	fc.headers[id] = *h
	fc.heights[id] = parentHeight + 1
	return nil
}

// ProcessBlock implements chainstate.Handle with naive greatest-height
// reorg: whichever branch is tallest becomes the main chain. Ties keep the
// existing tip (first-seen wins), matching the spec's note that the
// manager never pre-empts equally-long chains -- the arbitration, such as
// it is, lives entirely here.
func (fc *FakeChain) ProcessBlock(ctx context.Context, b *chain.Block, src chainstate.Source) (bool, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	id := b.ID()
	if fc.FailValidation[id] {
		return false, fmt.Errorf("%w: forced failure for %s", chainstate.ErrValidationFailure, id)
	}
	if err := fc.processHeaderLocked(&b.Header); err != nil {
		return false, fmt.Errorf("%w: %v", chainstate.ErrValidationFailure, err)
	}
	fc.blocks[id] = b
	height := fc.heights[id]

	// If this block is taller than the tip, make its branch the main chain.
	fc.relinkAncestryLocked(id, height)

	if height <= fc.tipHeight {
		return false, nil
	}
	fc.tip = id
	fc.tipHeight = height
	return true, nil
}

// relinkAncestryLocked rewrites fc.mainChain along id's ancestry (via
// switchMainChainLocked) when id is taller than the current tip, and
// otherwise leaves it unchanged. No per-branch table is kept: headers of a
// branch that is not the main chain are reachable only by id.
func (fc *FakeChain) relinkAncestryLocked(id chain.BlockID, height chain.BlockHeight) {
	if height > fc.tipHeight {
		fc.switchMainChainLocked(id, height)
	}
}

func (fc *FakeChain) switchMainChainLocked(id chain.BlockID, height chain.BlockHeight) {
	cur := id
	h := height
	for {
		existing, ok := fc.mainChain[h]
		if ok && existing == cur {
			break
		}
		fc.mainChain[h] = cur
		if h == 0 {
			break
		}
		hdr := fc.headers[cur]
		h--
		cur = hdr.Prev
	}
}
