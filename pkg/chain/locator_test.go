package chain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanislav-tkach/mintlayer-core/internal/fakechain"
	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
	"github.com/stanislav-tkach/mintlayer-core/pkg/chainstate"
)

func extendChain(t *testing.T, fc *fakechain.FakeChain, n int) chain.BlockID {
	ctx := context.Background()
	tip, err := fc.BestBlockID(ctx)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		h, err := fc.BestHeight(ctx)
		require.NoError(t, err)
		b := &chain.Block{Header: chain.BlockHeader{Prev: tip, Time: uint32(h) + 1}}
		changed, err := fc.ProcessBlock(ctx, b, chainstate.SourceLocal)
		require.NoError(t, err)
		require.True(t, changed)
		tip = b.ID()
	}
	return tip
}

func TestBuildLocatorOneBlockChain(t *testing.T) {
	fc := fakechain.NewFakeChain()
	ctx := context.Background()

	loc, err := chain.BuildLocator(ctx, fc)
	require.NoError(t, err)
	assert.Len(t, loc, 1, "genesis-only chain locator has length 1")

	extendChain(t, fc, 1)
	loc, err = chain.BuildLocator(ctx, fc)
	require.NoError(t, err)
	assert.Len(t, loc, 2, "tip + genesis for a one-block chain")
}

func TestBuildLocatorDenseThenSparse(t *testing.T) {
	fc := fakechain.NewFakeChain()
	ctx := context.Background()
	extendChain(t, fc, 50)

	loc, err := chain.BuildLocator(ctx, fc)
	require.NoError(t, err)

	tipHeight, err := fc.BestHeight(ctx)
	require.NoError(t, err)

	assert.Equal(t, mustID(t, fc, tipHeight), loc[0], "first element is the local tip")
	assert.Equal(t, mustID(t, fc, 0), loc[len(loc)-1], "last element is always genesis")

	// The first 10 heights walked must be consecutive (dense window).
	for i := 0; i < 9 && i+1 < len(loc); i++ {
		want := mustID(t, fc, tipHeight-chain.BlockHeight(i+1))
		assert.Equal(t, want, loc[i+1])
	}
}

func mustID(t *testing.T, fc *fakechain.FakeChain, h chain.BlockHeight) chain.BlockID {
	id, err := fc.MainChainHeaderAt(context.Background(), h)
	require.NoError(t, err)
	return id
}

func TestFilterUnknownFullChainReturnsEmpty(t *testing.T) {
	fc := fakechain.NewFakeChain()
	ctx := context.Background()
	extendChain(t, fc, 5)

	loc, err := chain.BuildLocator(ctx, fc)
	require.NoError(t, err)

	// Build the full header list the peer "has": genesis..tip.
	tipHeight, err := fc.BestHeight(ctx)
	require.NoError(t, err)
	var full []chain.BlockHeader
	for h := chain.BlockHeight(0); h <= tipHeight; h++ {
		id, err := fc.MainChainHeaderAt(ctx, h)
		require.NoError(t, err)
		hdr, err := fc.GetHeader(ctx, id)
		require.NoError(t, err)
		full = append(full, *hdr)
	}

	unknown, err := chain.FilterUnknown(ctx, fc, full)
	require.NoError(t, err)
	assert.Empty(t, unknown, "filtering a fully-known chain must return nothing")
	_ = loc
}

func TestFilterUnknownUnconnectedReturnsError(t *testing.T) {
	fc := fakechain.NewFakeChain()
	ctx := context.Background()

	orphan := chain.BlockHeader{Prev: chain.BlockID{1, 2, 3}, Time: 99}
	_, err := chain.FilterUnknown(ctx, fc, []chain.BlockHeader{orphan})
	assert.ErrorIs(t, err, chain.ErrUnconnectedHeaders)
}

func TestFilterUnknownReturnsSuffixAfterSplit(t *testing.T) {
	fc := fakechain.NewFakeChain()
	ctx := context.Background()
	extendChain(t, fc, 3)

	tip, err := fc.BestBlockID(ctx)
	require.NoError(t, err)

	novel1 := chain.BlockHeader{Prev: tip, Time: 100}
	novel2 := chain.BlockHeader{Prev: novel1.ID(), Time: 101}

	out, err := chain.FilterUnknown(ctx, fc, []chain.BlockHeader{novel1, novel2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, novel1.ID(), out[0].ID())
	assert.Equal(t, novel2.ID(), out[1].ID())
}
