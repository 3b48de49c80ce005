package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrOverflow        = errors.New("amount out of range")
)

// Scale is the number of fraction digits every Money value is quantized to.
const Scale = 2

// Money is a fixed-point amount stored as a count of minor units (cents).
type Money struct {
	minor int64
}

var Zero = Money{}

func FromMinor(minor int64) Money {
	return Money{minor: minor}
}

// Parse reads a decimal string such as "-20.5" or "105.00". More than two
// fraction digits is rejected rather than rounded.
func Parse(input string) (Money, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Zero, ErrInvalidAmount
	}
	unsigned := strings.TrimLeft(trimmed, "+-")
	if len(trimmed)-len(unsigned) > 1 {
		return Zero, ErrInvalidAmount
	}
	parts := strings.SplitN(unsigned, ".", 2)
	whole := parts[0]
	if !isDigits(whole) {
		return Zero, ErrInvalidAmount
	}
	frac := "0"
	if len(parts) == 2 {
		frac = parts[1]
		if frac == "" || !isDigits(frac) {
			return Zero, ErrInvalidAmount
		}
		if len(frac) > Scale {
			return Zero, ErrTooManyDecimals
		}
	} else if whole == "" {
		return Zero, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}
	sign := ""
	if strings.HasPrefix(trimmed, "-") {
		sign = "-"
	}
	value, err := decimal.NewFromString(sign + whole + "." + frac)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	return FromDecimal(value)
}

func MustParse(input string) Money {
	m, err := Parse(input)
	if err != nil {
		panic(fmt.Sprintf("money: %q: %v", input, err))
	}
	return m
}

// FromDecimal quantizes value to two places using banker's rounding.
func FromDecimal(value decimal.Decimal) (Money, error) {
	scaled := value.RoundBank(Scale).Shift(Scale)
	if !scaled.IsInteger() || scaled.Abs().GreaterThan(decimal.NewFromInt(maxMinor)) {
		return Zero, ErrOverflow
	}
	return Money{minor: scaled.IntPart()}, nil
}

const maxMinor = 1<<62 - 1

func (m Money) Minor() int64 {
	return m.minor
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.minor, -Scale)
}

func (m Money) Add(other Money) Money {
	return Money{minor: m.minor + other.minor}
}

func (m Money) Sub(other Money) Money {
	return Money{minor: m.minor - other.minor}
}

func (m Money) Neg() Money {
	return Money{minor: -m.minor}
}

func (m Money) Abs() Money {
	if m.minor < 0 {
		return m.Neg()
	}
	return m
}

func (m Money) IsZero() bool {
	return m.minor == 0
}

func (m Money) Sign() int {
	switch {
	case m.minor > 0:
		return 1
	case m.minor < 0:
		return -1
	}
	return 0
}

func (m Money) Equal(other Money) bool {
	return m.minor == other.minor
}

func (m Money) LessThan(other Money) bool {
	return m.minor < other.minor
}

func Sum(values ...Money) Money {
	var total int64
	for _, v := range values {
		total += v.minor
	}
	return Money{minor: total}
}

func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var number json.Number
		if err := json.Unmarshal(data, &number); err != nil {
			return ErrInvalidAmount
		}
		raw = number.String()
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores minor units so SUM stays exact in the database.
func (m Money) Value() (driver.Value, error) {
	return m.minor, nil
}

func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		m.minor = 0
		return nil
	case int64:
		m.minor = v
		return nil
	case []byte:
		return m.scanText(string(v))
	case string:
		return m.scanText(v)
	case float64:
		if v != float64(int64(v)) {
			return fmt.Errorf("money: fractional minor units %v", v)
		}
		m.minor = int64(v)
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
}

// scanText handles drivers that return aggregates as text (postgres SUM of
// BIGINT is NUMERIC).
func (m *Money) scanText(raw string) error {
	if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
		m.minor = parsed
		return nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil || !value.IsInteger() {
		return fmt.Errorf("money: cannot scan %q", raw)
	}
	m.minor = value.IntPart()
	return nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
