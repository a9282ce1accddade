package sqlsource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/shopspring/decimal"

	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

// family groups backend type names by how their scanned values are read.
type family int

const (
	famText family = iota
	famInteger
	famUnsigned
	famBool
	famFloat32
	famFloat64
	famDecimal
	famDate
	famTime
	famTimestamp
	famGUID
	famBinary
)

var families = map[string]family{
	"TINYINT": famInteger, "SMALLINT": famInteger, "MEDIUMINT": famInteger,
	"INT": famInteger, "INTEGER": famInteger, "BIGINT": famInteger,
	"INT2": famInteger, "INT4": famInteger, "INT8": famInteger,
	"SERIAL": famInteger, "BIGSERIAL": famInteger, "SMALLSERIAL": famInteger,

	"BIT": famBool, "BOOL": famBool, "BOOLEAN": famBool,

	"REAL": famFloat32, "FLOAT4": famFloat32,
	"FLOAT": famFloat64, "FLOAT8": famFloat64, "DOUBLE": famFloat64,
	"DOUBLE PRECISION": famFloat64,

	"DECIMAL": famDecimal, "NUMERIC": famDecimal,
	"MONEY": famDecimal, "SMALLMONEY": famDecimal,

	"DATE": famDate,
	"TIME": famTime, "TIMETZ": famTime,
	"DATETIME": famTimestamp, "DATETIME2": famTimestamp,
	"SMALLDATETIME": famTimestamp, "DATETIMEOFFSET": famTimestamp,
	"TIMESTAMP": famTimestamp, "TIMESTAMPTZ": famTimestamp,

	"UNIQUEIDENTIFIER": famGUID, "UUID": famGUID,

	"BINARY": famBinary, "VARBINARY": famBinary, "IMAGE": famBinary,
	"BLOB": famBinary, "BYTEA": famBinary,
}

// familyOf classifies a DatabaseTypeName. Parameterised spellings such as
// "DECIMAL(10,2)" or "INT UNSIGNED" are reduced to their base name first.
func familyOf(typeName string) family {
	name := strings.ToUpper(strings.TrimSpace(typeName))
	unsigned := strings.HasSuffix(name, " UNSIGNED")
	name = strings.TrimSuffix(name, " UNSIGNED")
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}

	f, ok := families[name]
	if !ok {
		return famText
	}
	if f == famInteger && unsigned {
		return famUnsigned
	}
	return f
}

func (f family) kind() value.Kind {
	switch f {
	case famInteger:
		return value.KindInt64
	case famUnsigned:
		return value.KindUInt64
	case famBool:
		return value.KindBool
	case famFloat32:
		return value.KindFloat32
	case famFloat64:
		return value.KindFloat64
	case famDate:
		return value.KindDate
	case famTime:
		return value.KindTime
	case famTimestamp:
		return value.KindTimestamp
	default:
		return value.KindString
	}
}

// describe builds the column description of ct.
func describe(ct *sql.ColumnType) (value.Column, family) {
	f := familyOf(ct.DatabaseTypeName())
	col := value.Column{
		Name:     ct.Name(),
		Kind:     f.kind(),
		Nullable: sqltypes.NullableUnknown,
		TypeName: strings.ToUpper(ct.DatabaseTypeName()),
	}
	if nullable, ok := ct.Nullable(); ok {
		col.Nullable = sqltypes.NoNulls
		if nullable {
			col.Nullable = sqltypes.NullableYes
		}
	}

	switch f {
	case famDecimal:
		if p, s, ok := ct.DecimalSize(); ok {
			// Sign, digits and decimal point.
			col.Precision = value.IntPtr(int(p) + 2)
			col.Scale = value.IntPtr(int(s))
		}
	case famGUID:
		col.Precision = value.IntPtr(36)
	case famText, famBinary:
		if n, ok := ct.Length(); ok && n > 0 && n < 1<<31 {
			col.Precision = value.IntPtr(int(n))
		}
	case famTime, famTimestamp:
		if _, s, ok := ct.DecimalSize(); ok && s >= 0 && s <= 9 {
			col.Scale = value.IntPtr(int(s))
		}
	}
	return col, f
}

// convertValue turns one scanned cell into a Value of the column's family.
func convertValue(f family, raw any) (value.Value, error) {
	switch x := raw.(type) {
	case nil:
		return value.Null{}, nil
	case bool:
		return value.Bool(x), nil
	case int64:
		switch {
		case f == famBool:
			return value.Bool(x != 0), nil
		case f == famUnsigned && x >= 0:
			return value.UInt64(x), nil
		}
		return value.Int64(x), nil
	case int32:
		return value.Int64(x), nil
	case int:
		return value.Int64(x), nil
	case uint64:
		return value.UInt64(x), nil
	case float32:
		return value.Float32(x), nil
	case float64:
		if f == famFloat32 {
			return value.Float32(x), nil
		}
		return value.Float64(x), nil
	case string:
		return textValue(f, []byte(x))
	case []byte:
		return textValue(f, x)
	case time.Time:
		switch f {
		case famDate:
			return value.Date{Date: civil.DateOf(x)}, nil
		case famTime:
			return value.Time{Time: civil.TimeOf(x)}, nil
		}
		return value.FromTime(x), nil
	case civil.Date:
		return value.Date{Date: x}, nil
	case civil.Time:
		return value.Time{Time: x}, nil
	case civil.DateTime:
		return value.Timestamp{DateTime: x}, nil
	case decimal.Decimal:
		return value.String(x.String()), nil
	case mssql.UniqueIdentifier:
		return value.String(x.String()), nil
	case fmt.Stringer:
		return value.String(x.String()), nil
	}
	return nil, fmt.Errorf("unsupported scanned type %T", raw)
}

// maxCanonicalExponent bounds the exponents rewritten into plain digits.
const maxCanonicalExponent = 400

// textValue interprets a textual or binary cell.
func textValue(f family, b []byte) (value.Value, error) {
	switch f {
	case famDecimal:
		text := strings.TrimSpace(string(b))
		d, err := decimal.NewFromString(text)
		if err != nil {
			return nil, fmt.Errorf("decimal column: %w", err)
		}
		// String expands the exponent into digits.
		if e := d.Exponent(); e > maxCanonicalExponent || e < -maxCanonicalExponent {
			return value.String(text), nil
		}
		return value.String(d.String()), nil
	case famGUID:
		if len(b) == 16 {
			var u mssql.UniqueIdentifier
			if err := u.Scan(b); err != nil {
				return nil, err
			}
			return value.String(u.String()), nil
		}
	}
	return value.String(string(b)), nil
}
