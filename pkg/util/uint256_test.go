package util

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint256DecodeBytesRoundTrip(t *testing.T) {
	sum := sha256.Sum256([]byte("block-header"))

	u, err := Uint256DecodeBytes(sum[:])
	require.NoError(t, err)
	assert.Equal(t, sum[:], u.Bytes())

	back, err := Uint256FromHexString(u.String())
	require.NoError(t, err)
	assert.True(t, u.Equals(back))
}

func TestUint256DecodeBytesWrongLength(t *testing.T) {
	_, err := Uint256DecodeBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestUint256IsZero(t *testing.T) {
	var u Uint256
	assert.True(t, u.IsZero())

	u[0] = 1
	assert.False(t, u.IsZero())
}
