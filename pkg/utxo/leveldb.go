package utxo

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/stanislav-tkach/mintlayer-core/pkg/chain"
)

// bestBlockKey is the reserved, all-zero-sentinel-shaped key the coinbase
// OutPoint also uses (null TxID, max index) to store the base store's tip
// id, keeping it inside the same keyspace/iteration order as everything
// else without colliding with any real outpoint.
var bestBlockKey = chain.NewCoinbaseOutPoint().Key()

// compressedFlag prefixes an lz4-compressed value so Get can tell it apart
// from a raw one written before CompressAbove was reached.
const compressedFlag = 0x01

// LevelBase is the on-disk Base backed by goleveldb, lz4-compressing
// values above a configurable size.
type LevelBase struct {
	db            *leveldb.DB
	compressAbove int
}

// OpenLevelBase opens (creating if absent) a goleveldb database at path.
func OpenLevelBase(path string, compressAbove int) (*LevelBase, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &LevelBase{db: db, compressAbove: compressAbove}, nil
}

// Close releases the underlying database handle.
func (l *LevelBase) Close() error { return l.db.Close() }

// Get implements Base.
func (l *LevelBase) Get(op chain.OutPoint) (*chain.Utxo, error) {
	raw, err := l.db.Get(op.Key(), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	b, err := l.decompress(raw)
	if err != nil {
		return nil, err
	}
	return chain.UnmarshalUtxo(b)
}

// BestBlockID implements Base.
func (l *LevelBase) BestBlockID() (chain.BlockID, error) {
	raw, err := l.db.Get(bestBlockKey, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return chain.BlockID{}, nil
		}
		return chain.BlockID{}, err
	}
	var id chain.BlockID
	copy(id[:], raw)
	return id, nil
}

// Write implements Base, applying adds/spends and the new tip atomically
// via a single leveldb batch.
func (l *LevelBase) Write(adds map[chain.OutPoint]*chain.Utxo, spends []chain.OutPoint, newTip chain.BlockID) error {
	batch := new(leveldb.Batch)
	for op, u := range adds {
		raw, err := u.Marshal()
		if err != nil {
			return err
		}
		batch.Put(op.Key(), l.compress(raw))
	}
	for _, op := range spends {
		batch.Delete(op.Key())
	}
	batch.Put(bestBlockKey, newTip[:])
	return l.db.Write(batch, nil)
}

func (l *LevelBase) compress(raw []byte) []byte {
	if l.compressAbove <= 0 || len(raw) <= l.compressAbove {
		return append([]byte{0x00}, raw...)
	}
	var buf bytes.Buffer
	buf.WriteByte(compressedFlag)
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return append([]byte{0x00}, raw...)
	}
	if err := zw.Close(); err != nil {
		return append([]byte{0x00}, raw...)
	}
	return buf.Bytes()
}

func (l *LevelBase) decompress(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, nil
	}
	flag, body := stored[0], stored[1:]
	if flag != compressedFlag {
		return body, nil
	}
	zr := lz4.NewReader(bytes.NewReader(body))
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return out, nil
}
