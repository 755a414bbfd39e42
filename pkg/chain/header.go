package chain

import (
	"crypto/sha256"

	mlio "github.com/stanislav-tkach/mintlayer-core/pkg/io"
	"github.com/stanislav-tkach/mintlayer-core/pkg/util"
)

// HeaderVersion1 is the version byte prefixed to a header's canonical
// serialization before hashing, per the wire format in SPEC_FULL.md §6.
const HeaderVersion1 byte = 0x01

// BlockID is the 32-byte content hash of a BlockHeader.
type BlockID = util.Uint256

// BlockHeader is the fixed-size part of a block: everything needed to
// chain-link and authenticate it without carrying the transaction bodies.
// The transaction-commitment and witness-commitment Merkle roots are both
// included, so the block id commits to transactions without needing to
// commit to witnesses twice.
type BlockHeader struct {
	Prev          BlockID
	TxMerkleRoot  util.Uint256
	WitnessMerkle util.Uint256
	Time          uint32
	ConsensusData []byte

	id *BlockID
}

// encodeHashable writes the fields that participate in the block id hash:
// every header field, version-prefixed.
func (h *BlockHeader) encodeHashable(w *mlio.BinWriter) {
	w.WriteB(HeaderVersion1)
	w.WriteBytes(h.Prev[:])
	w.WriteBytes(h.TxMerkleRoot[:])
	w.WriteBytes(h.WitnessMerkle[:])
	w.WriteU32LE(h.Time)
	w.WriteVarBytes(h.ConsensusData)
}

// EncodeBinary implements mlio.Serializable.
func (h *BlockHeader) EncodeBinary(w *mlio.BinWriter) {
	h.encodeHashable(w)
}

// DecodeBinary implements mlio.Serializable. It also refreshes the cached
// id, mirroring the teacher's "decode primes the hash cache" convention.
func (h *BlockHeader) DecodeBinary(r *mlio.BinReader) {
	version := r.ReadB()
	if r.Err != nil {
		return
	}
	if version != HeaderVersion1 {
		r.Err = ErrWrongVersion
		return
	}
	r.ReadBytes(h.Prev[:])
	r.ReadBytes(h.TxMerkleRoot[:])
	r.ReadBytes(h.WitnessMerkle[:])
	h.Time = r.ReadU32LE()
	h.ConsensusData = r.ReadVarBytes()
	if r.Err == nil {
		h.createID()
	}
}

func (h *BlockHeader) createID() {
	buf := mlio.NewBufBinWriter()
	h.encodeHashable(buf.BinWriter)
	sum := sha256.Sum256(buf.Bytes())
	id := util.Uint256(sum)
	h.id = &id
}

// ID returns the header's BlockID, cached after the first call. As with
// Transaction.ID, mutating the header afterward will not change the
// cached value; encode/decode to refresh it.
func (h *BlockHeader) ID() BlockID {
	if h.id == nil {
		h.createID()
	}
	return *h.id
}

// IsGenesis reports whether h has no known predecessor.
func (h *BlockHeader) IsGenesis() bool {
	return h.Prev.IsZero()
}

// Block pairs a header with its transactions.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
}

// EncodeBinary implements mlio.Serializable.
func (b *Block) EncodeBinary(w *mlio.BinWriter) {
	b.Header.EncodeBinary(w)
	w.WriteVarUint(uint64(len(b.Transactions)))
	for i := range b.Transactions {
		b.Transactions[i].EncodeBinary(w)
	}
}

// DecodeBinary implements mlio.Serializable.
func (b *Block) DecodeBinary(r *mlio.BinReader) {
	b.Header.DecodeBinary(r)
	if r.Err != nil {
		return
	}
	n := r.ReadVarUint()
	b.Transactions = make([]Transaction, n)
	for i := range b.Transactions {
		b.Transactions[i].DecodeBinary(r)
		if r.Err != nil {
			return
		}
	}
}

// ID returns the block's BlockID, which is exactly its header's id.
func (b *Block) ID() BlockID { return b.Header.ID() }
