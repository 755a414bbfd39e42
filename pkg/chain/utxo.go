package chain

import (
	mlio "github.com/stanislav-tkach/mintlayer-core/pkg/io"
)

// BlockHeight is a block's distance from genesis (genesis = 0).
type BlockHeight uint32

// Utxo is an unspent transaction output, with the height of the block that
// mined it so maturity rules (e.g. coinbase spend depth) can be checked by
// the chainstate collaborator.
type Utxo struct {
	Output   Output
	Coinbase bool
	Height   BlockHeight
}

// EncodeBinary implements mlio.Serializable.
func (u *Utxo) EncodeBinary(w *mlio.BinWriter) {
	u.Output.EncodeBinary(w)
	w.WriteBool(u.Coinbase)
	w.WriteU32LE(uint32(u.Height))
}

// DecodeBinary implements mlio.Serializable.
func (u *Utxo) DecodeBinary(r *mlio.BinReader) {
	u.Output.DecodeBinary(r)
	u.Coinbase = r.ReadBool()
	u.Height = BlockHeight(r.ReadU32LE())
}

// Marshal is a convenience wrapper returning u's canonical encoding.
func (u *Utxo) Marshal() ([]byte, error) {
	buf := mlio.NewBufBinWriter()
	u.EncodeBinary(buf.BinWriter)
	if err := buf.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalUtxo decodes the canonical Utxo encoding produced by Marshal.
func UnmarshalUtxo(b []byte) (*Utxo, error) {
	r := mlio.NewBinReaderFromBuf(b)
	u := new(Utxo)
	u.DecodeBinary(r)
	if r.Err != nil {
		return nil, r.Err
	}
	return u, nil
}

// UtxoEntry is one cache-layer record for a given OutPoint: Utxo == nil
// means "spent". Dirty gates write-back on flush; Fresh marks an entry
// that does not exist in the parent view, so spending it before it's ever
// flushed elides it entirely rather than writing a tombstone.
type UtxoEntry struct {
	Utxo  *Utxo
	Dirty bool
	Fresh bool
}

// IsSpent reports whether this entry represents a spent output.
func (e *UtxoEntry) IsSpent() bool { return e.Utxo == nil }

// Clone returns a deep copy of e, so cache layers never alias a parent's
// entry.
func (e *UtxoEntry) Clone() *UtxoEntry {
	if e == nil {
		return nil
	}
	out := &UtxoEntry{Dirty: e.Dirty, Fresh: e.Fresh}
	if e.Utxo != nil {
		u := *e.Utxo
		out.Utxo = &u
	}
	return out
}
