// Package util provides the fixed-size identifier types shared across the
// sync subsystem: block ids and transaction ids are built on top of
// Uint256. It also provides Amount, the output value type.
package util

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Uint256Size is the length in bytes of a Uint256.
const Uint256Size = 32

// Uint256 is a 32-byte hash value, stored and compared big-endian-free as a
// plain byte array so it can be used as a map key directly.
type Uint256 [Uint256Size]byte

// Uint256DecodeBytes decodes b into a Uint256. b must be exactly
// Uint256Size bytes long.
func Uint256DecodeBytes(b []byte) (Uint256, error) {
	var u Uint256
	if len(b) != Uint256Size {
		return u, fmt.Errorf("util: expected %d bytes, got %d", Uint256Size, len(b))
	}
	copy(u[:], b)
	return u, nil
}

// Uint256FromHexString decodes a hex string into a Uint256.
func Uint256FromHexString(s string) (Uint256, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Uint256{}, fmt.Errorf("util: invalid hex: %w", err)
	}
	return Uint256DecodeBytes(b)
}

// String returns the hex encoding of u.
func (u Uint256) String() string {
	return hex.EncodeToString(u[:])
}

// Bytes returns a copy of the underlying bytes.
func (u Uint256) Bytes() []byte {
	b := make([]byte, Uint256Size)
	copy(b, u[:])
	return b
}

// Equals reports whether u and other hold the same bytes.
func (u Uint256) Equals(other Uint256) bool {
	return u == other
}

// IsZero reports whether u is the all-zero value (used as the "no
// predecessor" sentinel for genesis headers).
func (u Uint256) IsZero() bool {
	return u == Uint256{}
}

// ErrInvalidLength is returned when decoding a byte slice of the wrong size.
var ErrInvalidLength = errors.New("util: invalid length")
