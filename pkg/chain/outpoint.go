package chain

import (
	"bytes"
	"encoding/binary"

	"github.com/stanislav-tkach/mintlayer-core/pkg/util"
)

// CoinbaseIndex is the sentinel output index used by the coinbase OutPoint:
// index = 2^32-1, paired with a null (all-zero) tx id.
const CoinbaseIndex = ^uint32(0)

// OutPoint identifies a single transaction output: (tx_id, index). It has a
// total order by (tx_id, index), used both for canonical UTXO-store
// iteration and for the coinbase sentinel comparison.
type OutPoint struct {
	TxID  util.Uint256
	Index uint32
}

// NewCoinbaseOutPoint returns the sentinel OutPoint for a coinbase output:
// null tx id, max index.
func NewCoinbaseOutPoint() OutPoint {
	return OutPoint{TxID: util.Uint256{}, Index: CoinbaseIndex}
}

// IsCoinbase reports whether o is the coinbase sentinel.
func (o OutPoint) IsCoinbase() bool {
	return o.TxID.IsZero() && o.Index == CoinbaseIndex
}

// Compare returns -1, 0 or 1 ordering o before, equal to, or after other,
// by (tx_id, index).
func (o OutPoint) Compare(other OutPoint) int {
	if c := bytes.Compare(o.TxID[:], other.TxID[:]); c != 0 {
		return c
	}
	switch {
	case o.Index < other.Index:
		return -1
	case o.Index > other.Index:
		return 1
	default:
		return 0
	}
}

// Key returns the canonical storage key: 32-byte tx id followed by a
// 4-byte big-endian index, so lexicographic byte ordering of keys matches
// Compare's (tx_id, index) ordering.
func (o OutPoint) Key() []byte {
	b := make([]byte, util.Uint256Size+4)
	copy(b, o.TxID[:])
	binary.BigEndian.PutUint32(b[util.Uint256Size:], o.Index)
	return b
}

// OutPointFromKey parses a key produced by Key.
func OutPointFromKey(b []byte) (OutPoint, bool) {
	if len(b) != util.Uint256Size+4 {
		return OutPoint{}, false
	}
	var o OutPoint
	copy(o.TxID[:], b[:util.Uint256Size])
	o.Index = binary.BigEndian.Uint32(b[util.Uint256Size:])
	return o, true
}
