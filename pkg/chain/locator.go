package chain

import (
	"context"
	"errors"
)

// ChainReader is the narrow slice of the chainstate's capability set the
// locator builder needs: enough to walk the local main chain and check
// header membership, nothing about validation or writes. Any
// chainstate.Handle satisfies it structurally.
type ChainReader interface {
	BestHeight(ctx context.Context) (BlockHeight, error)
	MainChainHeaderAt(ctx context.Context, height BlockHeight) (BlockID, error)
	HasHeader(ctx context.Context, id BlockID) (bool, error)
	GetHeader(ctx context.Context, id BlockID) (*BlockHeader, error)
}

// ErrUnconnectedHeaders is returned by FilterUnknown when no header in the
// list connects to a locally known ancestor; the caller must treat the
// sending peer as misbehaving.
var ErrUnconnectedHeaders = errors.New("chain: header list does not connect to known history")

// BuildLocator walks the local main chain backward from the tip, including
// the first 10 heights densely and then doubling the step (10, 12, 16, 24,
// 40, ...) until genesis, which is always the final element.
func BuildLocator(ctx context.Context, r ChainReader) ([]BlockID, error) {
	tipHeight, err := r.BestHeight(ctx)
	if err != nil {
		return nil, err
	}

	var locator []BlockID
	step := BlockHeight(1)
	dense := 0
	h := tipHeight
	for {
		id, err := r.MainChainHeaderAt(ctx, h)
		if err != nil {
			return nil, err
		}
		locator = append(locator, id)
		if h == 0 {
			break
		}
		dense++
		if dense > 10 {
			step *= 2
		}
		if step > h {
			h = 0
		} else {
			h -= step
		}
	}
	return locator, nil
}

// FilterUnknown returns the suffix of headers that begins at the first
// header whose parent is known locally but whose own id is not. Headers
// before that split point are discarded as already known. The result
// forms a contiguous chain rooted at a known ancestor.
func FilterUnknown(ctx context.Context, r ChainReader, headers []BlockHeader) ([]BlockHeader, error) {
	splitIdx := -1
	sawUnknown := false
	for i := range headers {
		known, err := r.HasHeader(ctx, headers[i].ID())
		if err != nil {
			return nil, err
		}
		if known {
			continue
		}
		sawUnknown = true
		parentKnown, err := r.HasHeader(ctx, headers[i].Prev)
		if err != nil {
			return nil, err
		}
		if !parentKnown {
			// Parent isn't known either: either it's further back in
			// this same list (checked on a later/earlier iteration via
			// contiguity below) or the whole list is unconnected.
			continue
		}
		splitIdx = i
		break
	}
	if splitIdx == -1 {
		if !sawUnknown {
			// Every header in the list is already known locally: there is
			// nothing novel, not an unconnected list.
			return nil, nil
		}
		return nil, ErrUnconnectedHeaders
	}

	out := headers[splitIdx:]
	// Verify the remaining suffix is contiguous: each header's Prev must
	// equal the previous header's id (except the first, whose parent is
	// the already-verified known ancestor).
	for i := 1; i < len(out); i++ {
		if out[i].Prev != out[i-1].ID() {
			return nil, ErrUnconnectedHeaders
		}
	}
	return out, nil
}
