package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
)

func testCodec() Codec {
	return Codec{Magic: Magic{0xca, 0xfe, 0xba, 0xbe}}
}

func TestCodecGetHeadersRoundTrip(t *testing.T) {
	c := testCodec()
	msg := SyncingMessage{GetHeaders: &GetHeaders{Locator: []chain.BlockID{{1}, {2}, {3}}}}

	b, err := c.Encode(msg)
	require.NoError(t, err)

	decoded, err := c.Decode(b)
	require.NoError(t, err)
	require.NotNil(t, decoded.GetHeaders)
	assert.Equal(t, msg.GetHeaders.Locator, decoded.GetHeaders.Locator)
}

func TestCodecGetBlocksEmptyList(t *testing.T) {
	c := testCodec()
	msg := SyncingMessage{GetBlocks: &GetBlocks{BlockIDs: nil}}

	b, err := c.Encode(msg)
	require.NoError(t, err)
	decoded, err := c.Decode(b)
	require.NoError(t, err)
	require.NotNil(t, decoded.GetBlocks)
	assert.Empty(t, decoded.GetBlocks.BlockIDs)
}

func TestCodecRejectsBadMagic(t *testing.T) {
	c := testCodec()
	msg := SyncingMessage{GetHeaders: &GetHeaders{}}
	b, err := c.Encode(msg)
	require.NoError(t, err)

	other := Codec{Magic: Magic{0, 0, 0, 0}}
	_, err = other.Decode(b)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestCodecHeadersRoundTrip(t *testing.T) {
	c := testCodec()
	msg := SyncingMessage{Headers: &Headers{Headers: []chain.BlockHeader{
		{Time: 1}, {Time: 2},
	}}}
	b, err := c.Encode(msg)
	require.NoError(t, err)

	decoded, err := c.Decode(b)
	require.NoError(t, err)
	require.Len(t, decoded.Headers.Headers, 2)
	assert.Equal(t, uint32(1), decoded.Headers.Headers[0].Time)
}

func TestCodecRejectsTooManyHeaders(t *testing.T) {
	c := testCodec()
	hdrs := make([]chain.BlockHeader, MaxHeaders+1)
	msg := SyncingMessage{Headers: &Headers{Headers: hdrs}}
	_, err := c.Encode(msg)
	assert.ErrorIs(t, err, ErrTooManyHeaders)
}

func TestCodecBlocksRoundTripEmpty(t *testing.T) {
	c := testCodec()
	msg := SyncingMessage{Blocks: &Blocks{Blocks: nil}}
	b, err := c.Encode(msg)
	require.NoError(t, err)

	decoded, err := c.Decode(b)
	require.NoError(t, err)
	assert.Empty(t, decoded.Blocks.Blocks)
}
