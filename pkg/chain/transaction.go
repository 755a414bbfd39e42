package chain

import (
	"crypto/sha256"
	"errors"

	mlio "github.com/stanislav-tkach/mintlayer-core/pkg/io"
	"github.com/stanislav-tkach/mintlayer-core/pkg/util"
)

// TxVersion1 is the only transaction encoding version this repository
// implements.
const TxVersion1 byte = 0x01

// TxID is the hash of a transaction's NoWitness serialization: the id
// outpoints reference, independent of witness mutation.
type TxID = util.Uint256

// Input spends a single prior output, optionally carrying witness data
// (e.g. a signature) that authorizes the spend.
type Input struct {
	PrevOut OutPoint
	Witness []byte
}

// encodeBinary writes i; withWitness controls whether witness bytes are
// included: false produces the NoWitness view used for the tx id.
func (i *Input) encodeBinary(w *mlio.BinWriter, withWitness bool) {
	w.WriteBytes(i.PrevOut.TxID[:])
	w.WriteU32LE(i.PrevOut.Index)
	if withWitness {
		w.WriteVarBytes(i.Witness)
	}
}

func (i *Input) decodeBinary(r *mlio.BinReader, withWitness bool) {
	r.ReadBytes(i.PrevOut.TxID[:])
	i.PrevOut.Index = r.ReadU32LE()
	if withWitness {
		i.Witness = r.ReadVarBytes()
	}
}

// EncodeBinary implements mlio.Serializable (full, witness-carrying form).
func (i *Input) EncodeBinary(w *mlio.BinWriter) { i.encodeBinary(w, true) }

// DecodeBinary implements mlio.Serializable.
func (i *Input) DecodeBinary(r *mlio.BinReader) { i.decodeBinary(r, true) }

// Output pays an Amount to an opaque destination script. Script encoding
// and address formats are a collaborator concern (wallet/address encoding
// is an explicit Non-goal); Dest is carried as opaque bytes.
type Output struct {
	Value util.Amount
	Dest  []byte
}

// EncodeBinary implements mlio.Serializable.
func (o *Output) EncodeBinary(w *mlio.BinWriter) {
	b, _ := o.Value.MarshalText()
	w.WriteVarBytes(b)
	w.WriteVarBytes(o.Dest)
}

// DecodeBinary implements mlio.Serializable.
func (o *Output) DecodeBinary(r *mlio.BinReader) {
	b := r.ReadVarBytes()
	if r.Err != nil {
		return
	}
	if err := o.Value.UnmarshalText(b); err != nil {
		r.Err = err
		return
	}
	o.Dest = r.ReadVarBytes()
}

// Transaction is a v1 transaction: (version, flags, inputs, outputs,
// lock_time). The NoWitness view omits witness bytes from each input; its
// hash is the id outpoints use to reference this transaction.
type Transaction struct {
	Flags    uint32
	Inputs   []Input
	Outputs  []Output
	LockTime uint32

	id *TxID
}

// ErrWrongVersion is returned decoding a transaction whose version byte
// isn't TxVersion1, and a block header whose version byte isn't
// HeaderVersion1.
var ErrWrongVersion = errors.New("chain: unsupported transaction version")

func (tx *Transaction) encode(w *mlio.BinWriter, withWitness bool) {
	w.WriteB(TxVersion1)
	w.WriteU32LE(tx.Flags)
	w.WriteVarUint(uint64(len(tx.Inputs)))
	for i := range tx.Inputs {
		tx.Inputs[i].encodeBinary(w, withWitness)
	}
	w.WriteVarUint(uint64(len(tx.Outputs)))
	for i := range tx.Outputs {
		tx.Outputs[i].EncodeBinary(w)
	}
	w.WriteU32LE(tx.LockTime)
}

// EncodeBinary implements mlio.Serializable, including witness data.
func (tx *Transaction) EncodeBinary(w *mlio.BinWriter) { tx.encode(w, true) }

// DecodeBinary implements mlio.Serializable.
func (tx *Transaction) DecodeBinary(r *mlio.BinReader) {
	version := r.ReadB()
	if r.Err != nil {
		return
	}
	if version != TxVersion1 {
		r.Err = ErrWrongVersion
		return
	}
	tx.Flags = r.ReadU32LE()
	numIn := r.ReadVarUint()
	tx.Inputs = make([]Input, numIn)
	for i := range tx.Inputs {
		tx.Inputs[i].decodeBinary(r, true)
	}
	numOut := r.ReadVarUint()
	tx.Outputs = make([]Output, numOut)
	for i := range tx.Outputs {
		tx.Outputs[i].DecodeBinary(r)
	}
	tx.LockTime = r.ReadU32LE()
	tx.id = nil
}

// EncodeNoWitness writes the NoWitness serialization used to derive ID.
func (tx *Transaction) EncodeNoWitness(w *mlio.BinWriter) { tx.encode(w, false) }

// ID returns the transaction's NoWitness hash, the value outpoints
// reference. It is cached after the first call.
func (tx *Transaction) ID() TxID {
	if tx.id != nil {
		return *tx.id
	}
	buf := mlio.NewBufBinWriter()
	tx.EncodeNoWitness(buf.BinWriter)
	sum := sha256.Sum256(buf.Bytes())
	id := util.Uint256(sum)
	tx.id = &id
	return id
}
