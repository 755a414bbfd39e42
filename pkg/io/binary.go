// Package io provides the canonical little-endian binary codec used to
// serialize headers, transactions and blocks. It follows the sticky-error
// reader/writer pattern: once Err is set, every subsequent method is a
// no-op, so a long chain of Read/Write calls can be checked once at the end
// instead of after every field.
package io

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Serializable is implemented by any type with a canonical binary
// encoding.
type Serializable interface {
	EncodeBinary(w *BinWriter)
	DecodeBinary(r *BinReader)
}

// BinWriter writes values in little-endian order, accumulating the first
// error encountered and refusing to do further work afterward.
type BinWriter struct {
	w   io.Writer
	Err error
}

// NewBinWriterFromIO wraps an io.Writer.
func NewBinWriterFromIO(iow io.Writer) *BinWriter {
	return &BinWriter{w: iow}
}

// Error returns the first error encountered, if any.
func (w *BinWriter) Error() error { return w.Err }

func (w *BinWriter) writeBytes(b []byte) {
	if w.Err != nil {
		return
	}
	if _, err := w.w.Write(b); err != nil {
		w.Err = err
	}
}

// WriteU64LE writes v as 8 little-endian bytes.
func (w *BinWriter) WriteU64LE(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.writeBytes(b[:])
}

// WriteU32LE writes v as 4 little-endian bytes.
func (w *BinWriter) WriteU32LE(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.writeBytes(b[:])
}

// WriteU16LE writes v as 2 little-endian bytes.
func (w *BinWriter) WriteU16LE(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.writeBytes(b[:])
}

// WriteU16BE writes v as 2 big-endian bytes.
func (w *BinWriter) WriteU16BE(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.writeBytes(b[:])
}

// WriteB writes a single byte.
func (w *BinWriter) WriteB(v byte) {
	w.writeBytes([]byte{v})
}

// WriteBool writes a boolean as 0x00/0x01.
func (w *BinWriter) WriteBool(v bool) {
	if v {
		w.WriteB(1)
	} else {
		w.WriteB(0)
	}
}

// WriteBytes writes b verbatim, with no length prefix.
func (w *BinWriter) WriteBytes(b []byte) {
	w.writeBytes(b)
}

// WriteVarUint writes v using the Bitcoin-style CompactSize varint (1, 3, 5
// or 9 bytes depending on magnitude).
func (w *BinWriter) WriteVarUint(v uint64) {
	switch {
	case v < 0xfd:
		w.WriteB(byte(v))
	case v <= 0xffff:
		w.WriteB(0xfd)
		w.WriteU16LE(uint16(v))
	case v <= 0xffffffff:
		w.WriteB(0xfe)
		w.WriteU32LE(uint32(v))
	default:
		w.WriteB(0xff)
		w.WriteU64LE(v)
	}
}

// WriteVarBytes writes a length-prefixed byte slice.
func (w *BinWriter) WriteVarBytes(b []byte) {
	w.WriteVarUint(uint64(len(b)))
	w.WriteBytes(b)
}

// WriteString writes a length-prefixed UTF-8 string.
func (w *BinWriter) WriteString(s string) {
	w.WriteVarBytes([]byte(s))
}

// WriteArray writes a length prefix followed by each element's
// EncodeBinary.
func WriteArray[T Serializable](w *BinWriter, items []T) {
	w.WriteVarUint(uint64(len(items)))
	for _, it := range items {
		it.EncodeBinary(w)
	}
}

// BufBinWriter is a BinWriter backed by an in-memory buffer, with Bytes()
// to retrieve the accumulated output.
type BufBinWriter struct {
	*BinWriter
	buf *bytes.Buffer
}

// NewBufBinWriter returns a BufBinWriter ready for use.
func NewBufBinWriter() *BufBinWriter {
	buf := new(bytes.Buffer)
	return &BufBinWriter{BinWriter: NewBinWriterFromIO(buf), buf: buf}
}

// Bytes returns the accumulated bytes, or nil if an error occurred.
func (w *BufBinWriter) Bytes() []byte {
	if w.Err != nil {
		return nil
	}
	b := w.buf.Bytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Len returns the number of bytes written so far.
func (w *BufBinWriter) Len() int { return w.buf.Len() }

// Reset clears the buffer and any error, for reuse.
func (w *BufBinWriter) Reset() {
	w.buf.Reset()
	w.Err = nil
}

// SetError forces the writer into an error state, for tests.
func (w *BufBinWriter) SetError(err error) { w.Err = err }

// BinReader is the read-side counterpart of BinWriter: sticky-error,
// little-endian.
type BinReader struct {
	r   io.Reader
	Err error
}

// NewBinReaderFromIO wraps an io.Reader.
func NewBinReaderFromIO(ior io.Reader) *BinReader {
	return &BinReader{r: bufio.NewReader(ior)}
}

// NewBinReaderFromBuf wraps a byte slice.
func NewBinReaderFromBuf(b []byte) *BinReader {
	return NewBinReaderFromIO(bytes.NewReader(b))
}

func (r *BinReader) readN(n int) []byte {
	if r.Err != nil {
		return make([]byte, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.Err = err
	}
	return b
}

// ReadU64LE reads 8 little-endian bytes.
func (r *BinReader) ReadU64LE() uint64 {
	return binary.LittleEndian.Uint64(r.readN(8))
}

// ReadU32LE reads 4 little-endian bytes.
func (r *BinReader) ReadU32LE() uint32 {
	return binary.LittleEndian.Uint32(r.readN(4))
}

// ReadU16LE reads 2 little-endian bytes.
func (r *BinReader) ReadU16LE() uint16 {
	return binary.LittleEndian.Uint16(r.readN(2))
}

// ReadU16BE reads 2 big-endian bytes.
func (r *BinReader) ReadU16BE() uint16 {
	return binary.BigEndian.Uint16(r.readN(2))
}

// ReadB reads a single byte.
func (r *BinReader) ReadB() byte {
	b := r.readN(1)
	return b[0]
}

// ReadBool reads a boolean.
func (r *BinReader) ReadBool() bool {
	return r.ReadB() != 0
}

// ReadBytes reads exactly len(buf) bytes into buf.
func (r *BinReader) ReadBytes(buf []byte) {
	if len(buf) == 0 {
		return
	}
	copy(buf, r.readN(len(buf)))
}

// maxVarBytes bounds a single VarBytes/VarUint-prefixed allocation so a
// malicious peer can't force an out-of-memory allocation with a crafted
// length prefix.
const maxVarBytes = 32 * 1024 * 1024

// ReadVarUint reads a CompactSize varint.
func (r *BinReader) ReadVarUint() uint64 {
	b := r.ReadB()
	switch b {
	case 0xfd:
		return uint64(r.ReadU16LE())
	case 0xfe:
		return uint64(r.ReadU32LE())
	case 0xff:
		return r.ReadU64LE()
	default:
		return uint64(b)
	}
}

// ReadVarBytes reads a length-prefixed byte slice. An optional maxSize
// argument rejects a declared length above the given bound.
func (r *BinReader) ReadVarBytes(maxSize ...int) []byte {
	n := r.ReadVarUint()
	limit := maxVarBytes
	if len(maxSize) > 0 {
		limit = maxSize[0]
	}
	if int(n) > limit {
		if r.Err == nil {
			r.Err = errors.New("io: var bytes length exceeds limit")
		}
		return []byte{}
	}
	if r.Err != nil {
		return []byte{}
	}
	buf := make([]byte, n)
	r.ReadBytes(buf)
	if r.Err != nil {
		return []byte{}
	}
	return buf
}

// ReadString reads a length-prefixed UTF-8 string.
func (r *BinReader) ReadString() string {
	return string(r.ReadVarBytes())
}

// ReadArray reads a length prefix followed by that many decoded elements,
// rejecting a declared count above maxCount if given.
func ReadArray[T Serializable](r *BinReader, newT func() T, maxCount ...int) []T {
	n := r.ReadVarUint()
	if len(maxCount) > 0 && int(n) > maxCount[0] {
		if r.Err == nil {
			r.Err = errors.New("io: array length exceeds limit")
		}
		return nil
	}
	if r.Err != nil {
		return nil
	}
	items := make([]T, 0, n)
	for i := uint64(0); i < n; i++ {
		it := newT()
		it.DecodeBinary(r)
		if r.Err != nil {
			return nil
		}
		items = append(items, it)
	}
	return items
}
