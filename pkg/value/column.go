package value

import (
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
)

// DefaultVarcharSize is the column size reported for strings and composites
// when the source declares no length.
const DefaultVarcharSize = 1024

// Leading-field precision reported for interval columns.
const intervalLeadingPrecision = 10

// Column describes one result-set column.
type Column struct {
	Name     string
	Kind     Kind
	Unsigned bool
	Nullable sqltypes.Nullable

	// Precision and Scale are optional; nil means "use the type default".
	// For string and composite columns Precision is the maximum length.
	Precision *int
	Scale     *int

	// TypeName overrides the reported type name, e.g. the backend's own
	// spelling of the type.
	TypeName string

	// Table, Schema and Catalog are reported through SQLColAttribute when known.
	Table   string
	Schema  string
	Catalog string
}

// IntPtr is a helper for filling the optional Precision and Scale fields.
func IntPtr(n int) *int {
	return &n
}

// WithDefaultLength returns c with Precision set to n when c is a string or
// composite column without a declared length.
func (c Column) WithDefaultLength(n int) Column {
	if c.Precision == nil && c.isCharacter() && n > 0 {
		c.Precision = IntPtr(n)
	}
	return c
}

func (c Column) isCharacter() bool {
	switch c.Kind {
	case KindNull, KindString, KindArray, KindRow:
		return true
	}
	return false
}

// DefaultCType returns the C type SQL_C_DEFAULT resolves to for k.
func (k Kind) DefaultCType() sqltypes.CType {
	switch k {
	case KindBool:
		return sqltypes.CBit
	case KindInt64:
		return sqltypes.CSBigInt
	case KindUInt64:
		return sqltypes.CUBigInt
	case KindFloat64:
		return sqltypes.CDouble
	case KindFloat32:
		return sqltypes.CFloat
	case KindDate:
		return sqltypes.CTypeDate
	case KindTime:
		return sqltypes.CTypeTime
	case KindTimestamp:
		return sqltypes.CTypeTS
	case KindIntervalYearMonth:
		return sqltypes.CIntervalYearToMonth
	case KindIntervalDaySecond:
		return sqltypes.CIntervalDayToSecond
	default:
		return sqltypes.CChar
	}
}

// DefaultCType returns the C type SQL_C_DEFAULT resolves to for this column.
func (c Column) DefaultCType() sqltypes.CType {
	if c.Kind == KindInt64 && c.Unsigned {
		return sqltypes.CUBigInt
	}
	return c.Kind.DefaultCType()
}

// SQLType returns the concise SQL type of the column.
func (c Column) SQLType() sqltypes.SQLType {
	switch c.Kind {
	case KindBool:
		return sqltypes.TypeBit
	case KindInt64, KindUInt64:
		return sqltypes.TypeBigInt
	case KindFloat64:
		return sqltypes.TypeDouble
	case KindFloat32:
		return sqltypes.TypeReal
	case KindDate:
		return sqltypes.TypeTypeDate
	case KindTime:
		return sqltypes.TypeTypeTime
	case KindTimestamp:
		return sqltypes.TypeTypeTimestamp
	case KindIntervalYearMonth:
		return sqltypes.TypeIntervalYearToMonth
	case KindIntervalDaySecond:
		return sqltypes.TypeIntervalDayToSecond
	default:
		return sqltypes.TypeVarChar
	}
}

// DecimalDigits returns the scale of numeric columns and the fractional
// seconds precision of time-bearing columns.
func (c Column) DecimalDigits() int {
	switch c.Kind {
	case KindTime, KindTimestamp, KindIntervalDaySecond:
		if c.Scale != nil {
			return *c.Scale
		}
		return 9
	case KindInt64, KindUInt64, KindBool:
		return 0
	case KindFloat64, KindFloat32:
		if c.Scale != nil {
			return *c.Scale
		}
		return 0
	}
	return 0
}

// ColumnSize returns the SQL column size.
func (c Column) ColumnSize() int64 {
	if c.Precision != nil {
		return int64(*c.Precision)
	}
	switch c.Kind {
	case KindBool:
		return 1
	case KindInt64:
		if c.Unsigned {
			return 20
		}
		return 19
	case KindUInt64:
		return 20
	case KindFloat64:
		return 15
	case KindFloat32:
		return 7
	case KindDate:
		return 10
	case KindTime:
		return 8 + fractionWidth(c.DecimalDigits())
	case KindTimestamp:
		return 19 + fractionWidth(c.DecimalDigits())
	case KindIntervalYearMonth:
		return intervalLeadingPrecision + 3
	case KindIntervalDaySecond:
		return 10 + intervalLeadingPrecision + fractionWidth(c.DecimalDigits())
	default:
		return DefaultVarcharSize
	}
}

func fractionWidth(digits int) int64 {
	if digits <= 0 {
		return 0
	}
	return int64(digits) + 1
}

// DisplaySize returns the maximum number of characters needed to display
// a value of the column.
func (c Column) DisplaySize() int64 {
	switch c.Kind {
	case KindBool:
		return 1
	case KindInt64:
		return 20
	case KindUInt64:
		return 20
	case KindFloat64:
		return 24
	case KindFloat32:
		return 14
	default:
		return c.ColumnSize()
	}
}

// OctetLength returns the transfer octet length of the column in its
// default C representation.
func (c Column) OctetLength() int64 {
	if c.isCharacter() {
		return c.ColumnSize()
	}
	if n, ok := c.DefaultCType().FixedSize(); ok {
		return int64(n)
	}
	return c.ColumnSize()
}

// Type returns the type name.
func (c Column) Type() string {
	if c.TypeName != "" {
		return c.TypeName
	}
	switch c.Kind {
	case KindBool:
		return "BIT"
	case KindInt64:
		if c.Unsigned {
			return "BIGINT UNSIGNED"
		}
		return "BIGINT"
	case KindUInt64:
		return "BIGINT UNSIGNED"
	case KindFloat64:
		return "DOUBLE"
	case KindFloat32:
		return "REAL"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindTimestamp:
		return "TIMESTAMP"
	case KindIntervalYearMonth:
		return "INTERVAL YEAR TO MONTH"
	case KindIntervalDaySecond:
		return "INTERVAL DAY TO SECOND"
	case KindArray:
		return "ARRAY"
	case KindRow:
		return "ROW"
	default:
		return "VARCHAR"
	}
}

// IsUnsigned reports SQL_DESC_UNSIGNED; non-numeric columns count as unsigned.
func (c Column) IsUnsigned() bool {
	switch c.Kind {
	case KindInt64, KindFloat64, KindFloat32:
		return c.Unsigned
	}
	return true
}

// CaseSensitive reports SQL_DESC_CASE_SENSITIVE.
func (c Column) CaseSensitive() bool {
	return c.isCharacter()
}

// Searchable reports SQL_DESC_SEARCHABLE.
func (c Column) Searchable() int {
	switch c.Kind {
	case KindArray, KindRow:
		return sqltypes.PredNone
	case KindString, KindNull:
		return sqltypes.Searchable
	}
	return sqltypes.PredBasic
}

// NumPrecRadix reports SQL_DESC_NUM_PREC_RADIX.
func (c Column) NumPrecRadix() int {
	switch c.Kind {
	case KindFloat64, KindFloat32:
		return 2
	case KindBool, KindInt64, KindUInt64:
		return 10
	}
	return 0
}

// LiteralPrefix and LiteralSuffix report SQL_DESC_LITERAL_PREFIX/SUFFIX.
func (c Column) LiteralPrefix() string {
	switch c.Kind {
	case KindString, KindNull:
		return "'"
	case KindDate:
		return "DATE '"
	case KindTime:
		return "TIME '"
	case KindTimestamp:
		return "TIMESTAMP '"
	case KindIntervalYearMonth, KindIntervalDaySecond:
		return "INTERVAL '"
	}
	return ""
}

func (c Column) LiteralSuffix() string {
	switch c.Kind {
	case KindString, KindNull, KindDate, KindTime, KindTimestamp:
		return "'"
	case KindIntervalYearMonth:
		return "' YEAR TO MONTH"
	case KindIntervalDaySecond:
		return "' DAY TO SECOND"
	}
	return ""
}
