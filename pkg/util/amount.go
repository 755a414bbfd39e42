package util

import (
	"fmt"

	huint256 "github.com/holiman/uint256"
)

// Amount is the value carried by a transaction output. It wraps
// holiman/uint256.Int so fee and reward arithmetic overflows loudly instead
// of wrapping silently, the way a plain uint64 addition would.
type Amount struct {
	v huint256.Int
}

// NewAmount constructs an Amount from a uint64.
func NewAmount(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// Add returns a+b, along with false if the addition overflowed 256 bits
// (which in practice never happens for chain amounts, but the caller of an
// untrusted wire value should still check it).
func (a Amount) Add(b Amount) (Amount, bool) {
	var out Amount
	overflow := out.v.AddOverflow(&a.v, &b.v)
	return out, !overflow
}

// Sub returns a-b and false if b > a.
func (a Amount) Sub(b Amount) (Amount, bool) {
	if a.v.Lt(&b.v) {
		return Amount{}, false
	}
	var out Amount
	out.v.Sub(&a.v, &b.v)
	return out, true
}

// Cmp compares a to b: -1, 0, 1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Uint64 returns the amount truncated to uint64; callers must only use this
// once an upstream bound (e.g. the emission schedule, out of scope here)
// guarantees the value fits.
func (a Amount) Uint64() uint64 {
	return a.v.Uint64()
}

// String implements fmt.Stringer.
func (a Amount) String() string {
	return a.v.Dec()
}

// MarshalText implements encoding.TextMarshaler: the decimal text, which
// is also what an Output's binary encoding carries for its value.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	v, err := huint256.FromDecimal(string(text))
	if err != nil {
		return fmt.Errorf("util: invalid amount %q: %w", text, err)
	}
	a.v = *v
	return nil
}
