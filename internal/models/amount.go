// internal/models/amount.go
package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// AmountBits is the width of every amount handled by the service.
const AmountBits = 128

var (
	ErrAmountOverflow  = errors.New("amount: exceeds 128 bits")
	ErrAmountUnderflow = errors.New("amount: negative result")
	ErrAmountSyntax    = errors.New("amount: invalid decimal")
)

// Amount is an unsigned 128-bit quantity of the native currency in its
// smallest unit. The zero value is zero. Arithmetic is checked and never
// wraps.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an Amount holding n.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// ParseAmount parses a base-10 string.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, ErrAmountSyntax
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrAmountSyntax, s)
	}
	if v.BitLen() > AmountBits {
		return Amount{}, ErrAmountOverflow
	}
	return Amount{v: *v}, nil
}

// MustAmount is ParseAmount for constants and tests.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) IsZero() bool { return a.v.IsZero() }

func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

func (a Amount) LessThan(b Amount) bool { return a.v.Lt(&b.v) }

func (a Amount) Equal(b Amount) bool { return a.v.Eq(&b.v) }

// Add returns a+b, failing when the sum no longer fits in 128 bits.
func (a Amount) Add(b Amount) (Amount, error) {
	var r Amount
	r.v.Add(&a.v, &b.v)
	if r.v.BitLen() > AmountBits {
		return Amount{}, ErrAmountOverflow
	}
	return r, nil
}

// Sub returns a-b, failing when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.v.Lt(&b.v) {
		return Amount{}, ErrAmountUnderflow
	}
	var r Amount
	r.v.Sub(&a.v, &b.v)
	return r, nil
}

// Div is integer division truncating toward zero. Division by zero yields zero.
func (a Amount) Div(d uint64) Amount {
	if d == 0 {
		return Amount{}
	}
	var r Amount
	r.v.Div(&a.v, uint256.NewInt(d))
	return r
}

// Uint64 reports the value and whether it fits in a uint64.
func (a Amount) Uint64() (uint64, bool) {
	return a.v.Uint64(), a.v.IsUint64()
}

func (a Amount) String() string { return a.v.Dec() }

// MarshalJSON encodes the amount as a decimal string so 128-bit values
// survive JavaScript clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a decimal string or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrAmountSyntax, s)
		}
		s = unquoted
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (Amount) GormDataType() string { return "amount" }

// GormDBDataType keeps full precision on every driver: numeric(39,0) holds
// any 128-bit value on postgres; sqlite gets text because its numeric
// affinity would round large values to floats.
func (Amount) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "numeric(39,0)"
	}
	return "text"
}

func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case nil:
		*a = Amount{}
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		if v < 0 {
			return ErrAmountUnderflow
		}
		*a = NewAmount(uint64(v))
		return nil
	case float64:
		// numeric columns read back through some drivers as floats
		if v < 0 || v != float64(uint64(v)) {
			return fmt.Errorf("%w: %v", ErrAmountSyntax, v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T", value)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// SumAmounts adds all values, failing on overflow.
func SumAmounts(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return Amount{}, err
		}
	}
	return total, nil
}
