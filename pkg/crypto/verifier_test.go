package crypto

import (
	"crypto/sha256"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyAcceptsGenuineSignature(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	msg := sha256.Sum256([]byte("sync header"))

	sig := SignDeterministic(priv, msg[:])

	v := Secp256k1Verifier{}
	assert.NoError(t, v.Verify(priv.PubKey().SerializeCompressed(), msg[:], sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	msg := sha256.Sum256([]byte("sync header"))
	sig := SignDeterministic(priv, msg[:])

	tampered := sha256.Sum256([]byte("sync header (tampered)"))
	v := Secp256k1Verifier{}
	assert.ErrorIs(t, v.Verify(priv.PubKey().SerializeCompressed(), tampered[:], sig), ErrInvalidSignature)
}
