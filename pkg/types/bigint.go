package types

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"strconv"
)

// BigInt is an arbitrary-precision integer that travels as a decimal string
// on the wire. Monetary amounts and vote weights use it so values are never
// squeezed through float64 or a 53-bit integer.
type BigInt struct {
	i big.Int
}

// NewBigInt returns a BigInt holding v.
func NewBigInt(v int64) BigInt {
	var b BigInt
	b.i.SetInt64(v)
	return b
}

// ParseBigInt parses a base-10 string.
func ParseBigInt(s string) (BigInt, error) {
	var b BigInt
	if _, ok := b.i.SetString(s, 10); !ok {
		return BigInt{}, fmt.Errorf("invalid integer %q", s)
	}
	return b, nil
}

// MustBigInt is ParseBigInt for literals in tests and seed data.
func MustBigInt(s string) BigInt {
	b, err := ParseBigInt(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Int returns a copy of the underlying big.Int.
func (b BigInt) Int() *big.Int {
	return new(big.Int).Set(&b.i)
}

// Int64 returns the value as int64. Only safe for values known to fit.
func (b BigInt) Int64() int64 {
	return b.i.Int64()
}

// String renders the value in base 10.
func (b BigInt) String() string {
	return b.i.String()
}

// Sign reports -1, 0 or +1.
func (b BigInt) Sign() int {
	return b.i.Sign()
}

// Cmp compares b and other, returning -1, 0 or +1.
func (b BigInt) Cmp(other BigInt) int {
	return b.i.Cmp(&other.i)
}

// Add returns b + other.
func (b BigInt) Add(other BigInt) BigInt {
	var out BigInt
	out.i.Add(&b.i, &other.i)
	return out
}

// Sub returns b - other.
func (b BigInt) Sub(other BigInt) BigInt {
	var out BigInt
	out.i.Sub(&b.i, &other.i)
	return out
}

// IsZero reports whether the value is exactly zero.
func (b BigInt) IsZero() bool {
	return b.i.Sign() == 0
}

// MarshalJSON encodes the value as a quoted decimal string.
func (b BigInt) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(b.i.String())), nil
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON number. The
// mock dataset predates the string convention and still carries numbers.
func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var err error
		s, err = strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("invalid integer literal %s: %w", string(data), err)
		}
	}
	if _, ok := b.i.SetString(s, 10); !ok {
		return fmt.Errorf("invalid integer %q", s)
	}
	return nil
}

// Value implements driver.Valuer so BigInt columns persist as text.
func (b BigInt) Value() (driver.Value, error) {
	return b.i.String(), nil
}

// Scan implements sql.Scanner.
func (b *BigInt) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		b.i.SetInt64(0)
		return nil
	case int64:
		b.i.SetInt64(v)
		return nil
	case string:
		if _, ok := b.i.SetString(v, 10); !ok {
			return fmt.Errorf("invalid integer %q", v)
		}
		return nil
	case []byte:
		if _, ok := b.i.SetString(string(v), 10); !ok {
			return fmt.Errorf("invalid integer %q", string(v))
		}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into BigInt", src)
	}
}
