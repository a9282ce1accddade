package convert

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

// Special floating values.
const (
	finite int8 = iota
	posInf
	negInf
	notANumber
	// outOfRange is a finite string value beyond every numeric target.
	outOfRange
)

// maxExponent bounds the decimal exponent of string sources. Anything
// larger overflows every target; anything smaller is zero for every target.
const maxExponent = 400

// number is the wide intermediate every numeric conversion passes through:
// an exact decimal for finite values plus the original float when the source
// was floating.
type number struct {
	dec     decimal.Decimal
	special int8
	isFloat bool
	f       float64
	// tiny marks a non-zero value too small for any target, held as zero.
	tiny bool
}

// truncated reports whether whole drops a fractional part of n.
func (n number) truncated(whole decimal.Decimal) bool {
	return n.tiny || !whole.Equal(n.dec)
}

// numericLiteral is the lexical grammar accepted for string sources.
var numericLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

func fromFloat(f float64) number {
	n := number{isFloat: true, f: f}
	switch {
	case math.IsNaN(f):
		n.special = notANumber
	case math.IsInf(f, 1):
		n.special = posInf
	case math.IsInf(f, -1):
		n.special = negInf
	default:
		n.dec = decimal.NewFromFloat(f)
	}
	return n
}

// numberOf maps a scalar onto the intermediate. Non-numeric kinds other than
// strings cannot be converted.
func numberOf(v value.Value) (number, diag.State) {
	switch x := v.(type) {
	case value.Bool:
		if x {
			return number{dec: decimal.NewFromInt(1)}, diag.None
		}
		return number{dec: decimal.Zero}, diag.None
	case value.Int64:
		return number{dec: decimal.NewFromInt(int64(x))}, diag.None
	case value.UInt64:
		return number{dec: decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(x)), 0)}, diag.None
	case value.Float64:
		return fromFloat(float64(x)), diag.None
	case value.Float32:
		n := fromFloat(float64(x))
		if n.special == finite {
			n.dec = decimal.NewFromFloat32(float32(x))
		}
		return n, diag.None
	case value.String:
		return parseNumber(string(x))
	default:
		return number{}, diag.RestrictedDataType
	}
}

// parseNumber lexes an integer or floating literal after trimming
// surrounding whitespace.
func parseNumber(s string) (number, diag.State) {
	s = strings.TrimSpace(s)
	if !numericLiteral.MatchString(s) {
		return number{}, diag.StringConversionError
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		// Exponents beyond int32 still have a well defined magnitude.
		f, ferr := strconv.ParseFloat(s, 64)
		switch {
		case math.IsInf(f, 0):
			return number{special: outOfRange}, diag.None
		case f == 0 && ferr != nil:
			return number{dec: decimal.Zero, tiny: true}, diag.None
		case ferr == nil:
			return fromFloat(f), diag.None
		}
		return number{}, diag.StringConversionError
	}
	if d.IsZero() {
		return number{dec: decimal.Zero}, diag.None
	}
	switch adj := adjustedExponent(d); {
	case adj > maxExponent:
		return number{special: outOfRange}, diag.None
	case adj < -maxExponent:
		return number{dec: decimal.Zero, tiny: true}, diag.None
	}
	return number{dec: d}, diag.None
}

// adjustedExponent is the power of ten of the leading digit of d, computed
// without scaling the coefficient.
func adjustedExponent(d decimal.Decimal) int64 {
	digits := len(d.Coefficient().Text(10))
	if d.Sign() < 0 {
		digits--
	}
	return int64(d.Exponent()) + int64(digits) - 1
}

// float64 returns n as a double and whether it is representable.
func (n number) float64() (float64, bool) {
	switch n.special {
	case posInf:
		return math.Inf(1), true
	case negInf:
		return math.Inf(-1), true
	case notANumber:
		return math.NaN(), true
	case outOfRange:
		return 0, false
	}
	if n.isFloat {
		return n.f, true
	}
	f, _ := n.dec.Float64()
	return f, !math.IsInf(f, 0)
}

type intTarget struct {
	size   int
	signed bool
}

var intTargets = map[sqltypes.CType]intTarget{
	sqltypes.CSTinyInt: {1, true},
	sqltypes.CUTinyInt: {1, false},
	sqltypes.CSShort:   {2, true},
	sqltypes.CUShort:   {2, false},
	sqltypes.CSLong:    {4, true},
	sqltypes.CULong:    {4, false},
	sqltypes.CSBigInt:  {8, true},
	sqltypes.CUBigInt:  {8, false},
}

// bounds returns the inclusive range of an integer target.
func (t intTarget) bounds() (lo, hi decimal.Decimal) {
	bits := uint(t.size * 8)
	one := big.NewInt(1)
	if t.signed {
		half := new(big.Int).Lsh(one, bits-1)
		lo = decimal.NewFromBigInt(new(big.Int).Neg(half), 0)
		hi = decimal.NewFromBigInt(new(big.Int).Sub(half, one), 0)
		return lo, hi
	}
	full := new(big.Int).Lsh(one, bits)
	return decimal.Zero, decimal.NewFromBigInt(new(big.Int).Sub(full, one), 0)
}

// toNumeric delivers v into a fixed-width numeric target.
func (c *Converter) toNumeric(v value.Value, target sqltypes.CType, dst Dest) Result {
	width, _ := target.FixedSize()
	n, st := numberOf(v)
	if st != diag.None {
		if st == diag.StringConversionError {
			return c.numericError(dst, width, st)
		}
		return fail(st)
	}

	if t, ok := intTargets[target]; ok {
		return c.toInteger(n, t, dst)
	}

	switch target {
	case sqltypes.CBit:
		return c.toBit(n, dst)
	case sqltypes.CFloat:
		f, ok := n.float64()
		if !ok || (n.special == finite && math.Abs(f) > math.MaxFloat32) {
			return c.numericError(dst, 4, diag.NumericValueOutOfRange)
		}
		var b [4]byte
		ne.PutUint32(b[:], math.Float32bits(float32(f)))
		return c.fixed(dst, b[:], n.floatState())
	case sqltypes.CDouble:
		f, ok := n.float64()
		if !ok {
			return c.numericError(dst, 8, diag.NumericValueOutOfRange)
		}
		var b [8]byte
		ne.PutUint64(b[:], math.Float64bits(f))
		return c.fixed(dst, b[:], n.floatState())
	case sqltypes.CNumeric:
		return c.toNumericStruct(n, dst)
	}
	return fail(diag.RestrictedDataType)
}

// floatState is the warning for a floating target: a string value too small
// to represent loses its digits.
func (n number) floatState() diag.State {
	if n.tiny {
		return diag.FractionalTruncation
	}
	return diag.None
}

func (c *Converter) toInteger(n number, t intTarget, dst Dest) Result {
	if n.special != finite {
		return c.numericError(dst, t.size, diag.NumericValueOutOfRange)
	}
	whole := n.dec.Truncate(0)
	lo, hi := t.bounds()
	if whole.LessThan(lo) || whole.GreaterThan(hi) {
		return c.numericError(dst, t.size, diag.NumericValueOutOfRange)
	}
	state := diag.None
	if n.truncated(whole) {
		state = diag.FractionalTruncation
	}

	var b [8]byte
	bi := whole.BigInt()
	if t.signed {
		putSigned(b[:t.size], bi.Int64())
	} else {
		putUnsigned(b[:t.size], bi.Uint64())
	}
	return c.fixed(dst, b[:t.size], state)
}

// toBit accepts values in [0, 1]; a fractional value is truncated with a
// warning.
func (c *Converter) toBit(n number, dst Dest) Result {
	if n.special != finite || n.dec.Sign() < 0 || n.dec.GreaterThan(decimal.NewFromInt(1)) {
		return c.numericError(dst, 1, diag.NumericValueOutOfRange)
	}
	whole := n.dec.Truncate(0)
	state := diag.None
	if n.truncated(whole) {
		state = diag.FractionalTruncation
	}
	return c.fixed(dst, []byte{byte(whole.IntPart())}, state)
}

// Precision and scale written into SQL_NUMERIC_STRUCT.
const (
	numericPrecision = 38
	numericScale     = 0
)

// toNumericStruct fills SQL_NUMERIC_STRUCT: precision, scale, sign
// (1 positive, 0 negative) and a 16-byte little-endian magnitude.
func (c *Converter) toNumericStruct(n number, dst Dest) Result {
	if n.special != finite {
		return c.numericError(dst, sqltypes.SizeNumericStruct, diag.NumericValueOutOfRange)
	}
	whole := n.dec.Truncate(numericScale)
	state := diag.None
	if n.truncated(whole) {
		state = diag.FractionalTruncation
	}
	mag := whole.BigInt()
	negative := mag.Sign() < 0
	mag.Abs(mag)
	if mag.BitLen() > 128 {
		return c.numericError(dst, sqltypes.SizeNumericStruct, diag.NumericValueOutOfRange)
	}

	var b [sqltypes.SizeNumericStruct]byte
	b[0] = numericPrecision
	b[1] = numericScale
	if !negative {
		b[2] = 1
	}
	be := mag.Bytes()
	for i := range be {
		b[3+i] = be[len(be)-1-i]
	}
	return c.fixed(dst, b[:], state)
}

// numericError writes the zero sentinel of the target width and fails.
func (c *Converter) numericError(dst Dest, width int, st diag.State) Result {
	dst.zero(width)
	return fail(st)
}
