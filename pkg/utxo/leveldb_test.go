package utxo

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
)

func openTestLevelBase(t *testing.T, compressAbove int) *LevelBase {
	t.Helper()
	lb, err := OpenLevelBase(filepath.Join(t.TempDir(), "utxo"), compressAbove)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lb.Close() })
	return lb
}

func TestLevelBaseWriteThenGetRoundTrip(t *testing.T) {
	lb := openTestLevelBase(t, 256)
	op := testOutPoint(1)
	u := &chain.Utxo{Height: 42, Coinbase: true}

	var tip chain.BlockID
	tip[0] = 7
	require.NoError(t, lb.Write(map[chain.OutPoint]*chain.Utxo{op: u}, nil, tip))

	got, err := lb.Get(op)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.Height, got.Height)
	assert.True(t, got.Coinbase)

	gotTip, err := lb.BestBlockID()
	require.NoError(t, err)
	assert.Equal(t, tip, gotTip)
}

func TestLevelBaseCompressesLargeValues(t *testing.T) {
	lb := openTestLevelBase(t, 8)
	op := testOutPoint(2)
	u := &chain.Utxo{Output: chain.Output{Dest: []byte(strings.Repeat("x", 512))}}

	require.NoError(t, lb.Write(map[chain.OutPoint]*chain.Utxo{op: u}, nil, chain.BlockID{}))

	got, err := lb.Get(op)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.Output.Dest, got.Output.Dest)
}

func TestLevelBaseDeleteRemovesEntry(t *testing.T) {
	lb := openTestLevelBase(t, 256)
	op := testOutPoint(3)
	require.NoError(t, lb.Write(map[chain.OutPoint]*chain.Utxo{op: {}}, nil, chain.BlockID{}))

	require.NoError(t, lb.Write(nil, []chain.OutPoint{op}, chain.BlockID{}))
	got, err := lb.Get(op)
	require.NoError(t, err)
	assert.Nil(t, got)
}
