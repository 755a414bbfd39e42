// Package crypto adapts the signature-verification primitive the sync
// manager consumes but never implements: transaction witness checking is
// an out-of-scope collaborator (SPEC_FULL.md §4.7), fixed here only as an
// interface plus one concrete adapter so the rest of the module has
// something concrete to wire against in tests.
package crypto

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ErrInvalidSignature is returned by Verifier.Verify for a signature that
// does not check out.
var ErrInvalidSignature = errors.New("crypto: invalid signature")

// Verifier checks a single (pubkey, message, signature) triple. The sync
// manager calls it only when validating a witness it cannot otherwise
// trust (i.e. never for its own locally-produced data).
type Verifier interface {
	Verify(pubKey, msg, sig []byte) error
}

// Secp256k1Verifier verifies DER-encoded ECDSA signatures over secp256k1,
// matching the curve the teacher's own dependency set already commits to.
type Secp256k1Verifier struct{}

// Verify implements Verifier.
func (Secp256k1Verifier) Verify(pubKeyBytes, msg, sigBytes []byte) error {
	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return err
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return err
	}
	if !sig.Verify(msg, pubKey) {
		return ErrInvalidSignature
	}
	return nil
}

// SignDeterministic signs msg with priv, used only by tests to produce
// fixtures Verify can check -- production signing happens outside this
// repository's scope. decred's ecdsa.Sign already derives its nonce
// deterministically per RFC 6979, so no separate nonce-generation
// dependency is needed here.
func SignDeterministic(priv *secp256k1.PrivateKey, msg []byte) []byte {
	sig := ecdsa.Sign(priv, msg)
	return sig.Serialize()
}
