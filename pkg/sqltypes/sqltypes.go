// Package sqltypes holds the ODBC 3.x numeric constants shared by the
// conversion engine, the statement layer and the C entry points.
//
// Values match sql.h / sqlext.h from unixODBC and the Windows SDK. They are
// declared here rather than pulled from cgo so that every package except the
// exported shim stays pure Go.
package sqltypes

import "fmt"

// Return is an ODBC SQLRETURN code.
type Return int16

const (
	Success         Return = 0
	SuccessWithInfo Return = 1
	NeedData        Return = 99
	NoData          Return = 100
	Error           Return = -1
	InvalidHandle   Return = -2
)

func (r Return) String() string {
	switch r {
	case Success:
		return "SQL_SUCCESS"
	case SuccessWithInfo:
		return "SQL_SUCCESS_WITH_INFO"
	case NeedData:
		return "SQL_NEED_DATA"
	case NoData:
		return "SQL_NO_DATA"
	case Error:
		return "SQL_ERROR"
	case InvalidHandle:
		return "SQL_INVALID_HANDLE"
	default:
		return fmt.Sprintf("SQLRETURN(%d)", int16(r))
	}
}

// Succeeded reports whether r is SQL_SUCCESS or SQL_SUCCESS_WITH_INFO.
func (r Return) Succeeded() bool {
	return r == Success || r == SuccessWithInfo
}

// Worse returns whichever of a and b is more severe. Used to fold per-column
// and per-row outcomes into one call result.
func Worse(a, b Return) Return {
	rank := func(r Return) int {
		switch r {
		case Success:
			return 0
		case NoData:
			return 1
		case SuccessWithInfo:
			return 2
		case Error:
			return 3
		case InvalidHandle:
			return 4
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// Length and indicator sentinels.
const (
	NullData   int64 = -1
	DataAtExec int64 = -2
	NTS        int64 = -3
	NoTotal    int64 = -4
)

// SQLType is an ODBC SQL data type identifier (SQL_*).
type SQLType int16

const (
	TypeUnknown       SQLType = 0
	TypeChar          SQLType = 1
	TypeNumeric       SQLType = 2
	TypeDecimal       SQLType = 3
	TypeInteger       SQLType = 4
	TypeSmallInt      SQLType = 5
	TypeFloat         SQLType = 6
	TypeReal          SQLType = 7
	TypeDouble        SQLType = 8
	TypeDateTime      SQLType = 9
	TypeVarChar       SQLType = 12
	TypeBoolean       SQLType = 16
	TypeTypeDate      SQLType = 91
	TypeTypeTime      SQLType = 92
	TypeTypeTimestamp SQLType = 93
	TypeLongVarChar   SQLType = -1
	TypeBinary        SQLType = -2
	TypeVarBinary     SQLType = -3
	TypeLongVarBinary SQLType = -4
	TypeBigInt        SQLType = -5
	TypeTinyInt       SQLType = -6
	TypeBit           SQLType = -7
	TypeWChar         SQLType = -8
	TypeWVarChar      SQLType = -9
	TypeWLongVarChar  SQLType = -10
	TypeGUID          SQLType = -11

	TypeIntervalYear           SQLType = 101
	TypeIntervalMonth          SQLType = 102
	TypeIntervalDay            SQLType = 103
	TypeIntervalHour           SQLType = 104
	TypeIntervalMinute         SQLType = 105
	TypeIntervalSecond         SQLType = 106
	TypeIntervalYearToMonth    SQLType = 107
	TypeIntervalDayToHour      SQLType = 108
	TypeIntervalDayToMinute    SQLType = 109
	TypeIntervalDayToSecond    SQLType = 110
	TypeIntervalHourToMinute   SQLType = 111
	TypeIntervalHourToSecond   SQLType = 112
	TypeIntervalMinuteToSecond SQLType = 113
)

func (t SQLType) String() string {
	switch t {
	case TypeUnknown:
		return "SQL_UNKNOWN_TYPE"
	case TypeChar:
		return "SQL_CHAR"
	case TypeNumeric:
		return "SQL_NUMERIC"
	case TypeDecimal:
		return "SQL_DECIMAL"
	case TypeInteger:
		return "SQL_INTEGER"
	case TypeSmallInt:
		return "SQL_SMALLINT"
	case TypeFloat:
		return "SQL_FLOAT"
	case TypeReal:
		return "SQL_REAL"
	case TypeDouble:
		return "SQL_DOUBLE"
	case TypeDateTime:
		return "SQL_DATETIME"
	case TypeVarChar:
		return "SQL_VARCHAR"
	case TypeBoolean:
		return "SQL_BOOLEAN"
	case TypeTypeDate:
		return "SQL_TYPE_DATE"
	case TypeTypeTime:
		return "SQL_TYPE_TIME"
	case TypeTypeTimestamp:
		return "SQL_TYPE_TIMESTAMP"
	case TypeLongVarChar:
		return "SQL_LONGVARCHAR"
	case TypeBinary:
		return "SQL_BINARY"
	case TypeVarBinary:
		return "SQL_VARBINARY"
	case TypeLongVarBinary:
		return "SQL_LONGVARBINARY"
	case TypeBigInt:
		return "SQL_BIGINT"
	case TypeTinyInt:
		return "SQL_TINYINT"
	case TypeBit:
		return "SQL_BIT"
	case TypeWChar:
		return "SQL_WCHAR"
	case TypeWVarChar:
		return "SQL_WVARCHAR"
	case TypeWLongVarChar:
		return "SQL_WLONGVARCHAR"
	case TypeGUID:
		return "SQL_GUID"
	case TypeIntervalYearToMonth:
		return "SQL_INTERVAL_YEAR_TO_MONTH"
	case TypeIntervalDayToSecond:
		return "SQL_INTERVAL_DAY_TO_SECOND"
	default:
		if t >= TypeIntervalYear && t <= TypeIntervalMinuteToSecond {
			return fmt.Sprintf("SQL_INTERVAL(%d)", int16(t))
		}
		return fmt.Sprintf("SQLType(%d)", int16(t))
	}
}

// IsInterval reports whether t is one of the thirteen interval types.
func (t SQLType) IsInterval() bool {
	return t >= TypeIntervalYear && t <= TypeIntervalMinuteToSecond
}

// Verbose (non-concise) datetime and interval codes reported through
// SQL_DESC_TYPE, with the subcode in SQL_DESC_DATETIME_INTERVAL_CODE.
const (
	verboseDatetime SQLType = 9
	verboseInterval SQLType = 10
)

// Verbose returns the SQL_DESC_TYPE value and the interval/datetime subcode
// for a concise type.
func (t SQLType) Verbose() (SQLType, int16) {
	switch {
	case t == TypeTypeDate:
		return verboseDatetime, 1
	case t == TypeTypeTime:
		return verboseDatetime, 2
	case t == TypeTypeTimestamp:
		return verboseDatetime, 3
	case t.IsInterval():
		return verboseInterval, int16(t - 100)
	default:
		return t, 0
	}
}

// Signed/unsigned offsets used to derive the sized integer C types.
const (
	signedOffset   = -20
	unsignedOffset = -22
)

// CType is an ODBC C data type identifier (SQL_C_*), the type of a caller
// buffer.
type CType int16

const (
	CChar      CType = CType(TypeChar)
	CWChar     CType = CType(TypeWChar)
	CBinary    CType = CType(TypeBinary)
	CBit       CType = CType(TypeBit)
	CNumeric   CType = CType(TypeNumeric)
	CFloat     CType = CType(TypeReal)
	CDouble    CType = CType(TypeDouble)
	CDefault   CType = 99
	CGUID      CType = CType(TypeGUID)
	CTinyInt   CType = CType(TypeTinyInt)
	CShort     CType = CType(TypeSmallInt)
	CLong      CType = CType(TypeInteger)
	CSTinyInt  CType = CType(TypeTinyInt) + signedOffset
	CUTinyInt  CType = CType(TypeTinyInt) + unsignedOffset
	CSShort    CType = CType(TypeSmallInt) + signedOffset
	CUShort    CType = CType(TypeSmallInt) + unsignedOffset
	CSLong     CType = CType(TypeInteger) + signedOffset
	CULong     CType = CType(TypeInteger) + unsignedOffset
	CSBigInt   CType = CType(TypeBigInt) + signedOffset
	CUBigInt   CType = CType(TypeBigInt) + unsignedOffset
	CDate      CType = CType(TypeDateTime)
	CTime      CType = 10
	CTimestamp CType = 11
	CTypeDate  CType = CType(TypeTypeDate)
	CTypeTime  CType = CType(TypeTypeTime)
	CTypeTS    CType = CType(TypeTypeTimestamp)

	CIntervalYear           CType = CType(TypeIntervalYear)
	CIntervalMonth          CType = CType(TypeIntervalMonth)
	CIntervalDay            CType = CType(TypeIntervalDay)
	CIntervalHour           CType = CType(TypeIntervalHour)
	CIntervalMinute         CType = CType(TypeIntervalMinute)
	CIntervalSecond         CType = CType(TypeIntervalSecond)
	CIntervalYearToMonth    CType = CType(TypeIntervalYearToMonth)
	CIntervalDayToHour      CType = CType(TypeIntervalDayToHour)
	CIntervalDayToMinute    CType = CType(TypeIntervalDayToMinute)
	CIntervalDayToSecond    CType = CType(TypeIntervalDayToSecond)
	CIntervalHourToMinute   CType = CType(TypeIntervalHourToMinute)
	CIntervalHourToSecond   CType = CType(TypeIntervalHourToSecond)
	CIntervalMinuteToSecond CType = CType(TypeIntervalMinuteToSecond)
)

func (c CType) String() string {
	switch c {
	case CChar:
		return "SQL_C_CHAR"
	case CWChar:
		return "SQL_C_WCHAR"
	case CBinary:
		return "SQL_C_BINARY"
	case CBit:
		return "SQL_C_BIT"
	case CNumeric:
		return "SQL_C_NUMERIC"
	case CFloat:
		return "SQL_C_FLOAT"
	case CDouble:
		return "SQL_C_DOUBLE"
	case CDefault:
		return "SQL_C_DEFAULT"
	case CGUID:
		return "SQL_C_GUID"
	case CTinyInt:
		return "SQL_C_TINYINT"
	case CShort:
		return "SQL_C_SHORT"
	case CLong:
		return "SQL_C_LONG"
	case CSTinyInt:
		return "SQL_C_STINYINT"
	case CUTinyInt:
		return "SQL_C_UTINYINT"
	case CSShort:
		return "SQL_C_SSHORT"
	case CUShort:
		return "SQL_C_USHORT"
	case CSLong:
		return "SQL_C_SLONG"
	case CULong:
		return "SQL_C_ULONG"
	case CSBigInt:
		return "SQL_C_SBIGINT"
	case CUBigInt:
		return "SQL_C_UBIGINT"
	case CDate, CTypeDate:
		return "SQL_C_TYPE_DATE"
	case CTime, CTypeTime:
		return "SQL_C_TYPE_TIME"
	case CTimestamp, CTypeTS:
		return "SQL_C_TYPE_TIMESTAMP"
	case CIntervalYearToMonth:
		return "SQL_C_INTERVAL_YEAR_TO_MONTH"
	case CIntervalDayToSecond:
		return "SQL_C_INTERVAL_DAY_TO_SECOND"
	default:
		if c.IsInterval() {
			return fmt.Sprintf("SQL_C_INTERVAL(%d)", int16(c))
		}
		return fmt.Sprintf("CType(%d)", int16(c))
	}
}

// Canonical folds ODBC 2.x aliases onto their ODBC 3.x spelling: the
// unsized integer types become their signed variants and the old date/time
// codes become SQL_C_TYPE_*.
func (c CType) Canonical() CType {
	switch c {
	case CTinyInt:
		return CSTinyInt
	case CShort:
		return CSShort
	case CLong:
		return CSLong
	case CDate:
		return CTypeDate
	case CTime:
		return CTypeTime
	case CTimestamp:
		return CTypeTS
	default:
		return c
	}
}

// IsInterval reports whether c is an interval C type.
func (c CType) IsInterval() bool {
	return c >= CIntervalYear && c <= CIntervalMinuteToSecond
}

// IsCharacter reports whether c is a variable-length character or binary
// target that supports partial delivery.
func (c CType) IsCharacter() bool {
	switch c {
	case CChar, CWChar, CBinary:
		return true
	}
	return false
}

// Byte sizes of the fixed-layout C structures.
const (
	SizeDateStruct      = 6  // SQL_DATE_STRUCT
	SizeTimeStruct      = 6  // SQL_TIME_STRUCT
	SizeTimestampStruct = 16 // SQL_TIMESTAMP_STRUCT
	SizeNumericStruct   = 19 // SQL_NUMERIC_STRUCT, SQL_MAX_NUMERIC_LEN = 16
	SizeIntervalStruct  = 28 // SQL_INTERVAL_STRUCT
	SizeGUID            = 16
	SizeLen             = 8 // SQLLEN on LP64
)

// FixedSize returns the buffer size of a fixed-width target and true, or
// 0 and false for character and binary targets.
func (c CType) FixedSize() (int, bool) {
	switch c.Canonical() {
	case CBit, CSTinyInt, CUTinyInt:
		return 1, true
	case CSShort, CUShort:
		return 2, true
	case CSLong, CULong, CFloat:
		return 4, true
	case CSBigInt, CUBigInt, CDouble:
		return 8, true
	case CTypeDate:
		return SizeDateStruct, true
	case CTypeTime:
		return SizeTimeStruct, true
	case CTypeTS:
		return SizeTimestampStruct, true
	case CNumeric:
		return SizeNumericStruct, true
	case CGUID:
		return SizeGUID, true
	}
	if c.IsInterval() {
		return SizeIntervalStruct, true
	}
	return 0, false
}

// Known reports whether c is a C type this driver can deliver into.
func (c CType) Known() bool {
	if c == CDefault || c.IsCharacter() {
		return true
	}
	_, ok := c.FixedSize()
	return ok
}

// Nullable is the SQL_NULLABLE family reported by SQLDescribeCol.
type Nullable int16

const (
	NoNulls         Nullable = 0
	NullableYes     Nullable = 1
	NullableUnknown Nullable = 2
)

// FetchOrientation is the SQL_FETCH_* argument of SQLFetchScroll.
type FetchOrientation int16

const (
	FetchNext     FetchOrientation = 1
	FetchFirst    FetchOrientation = 2
	FetchLast     FetchOrientation = 3
	FetchPrior    FetchOrientation = 4
	FetchAbsolute FetchOrientation = 5
	FetchRelative FetchOrientation = 6
	FetchBookmark FetchOrientation = 8
)

func (f FetchOrientation) String() string {
	switch f {
	case FetchNext:
		return "NEXT"
	case FetchFirst:
		return "FIRST"
	case FetchLast:
		return "LAST"
	case FetchPrior:
		return "PRIOR"
	case FetchAbsolute:
		return "ABSOLUTE"
	case FetchRelative:
		return "RELATIVE"
	case FetchBookmark:
		return "BOOKMARK"
	default:
		return "UNKNOWN"
	}
}

// RowStatus is an entry of the SQL_ATTR_ROW_STATUS_PTR array.
type RowStatus uint16

const (
	RowSuccess         RowStatus = 0
	RowDeleted         RowStatus = 1
	RowUpdated         RowStatus = 2
	RowNoRow           RowStatus = 3
	RowAdded           RowStatus = 4
	RowError           RowStatus = 5
	RowSuccessWithInfo RowStatus = 6
)

// Cursor types (SQL_ATTR_CURSOR_TYPE).
const (
	CursorForwardOnly  = 0
	CursorKeysetDriven = 1
	CursorDynamic      = 2
	CursorStatic       = 3
)

// Statement attributes (SQLSetStmtAttr).
const (
	AttrCursorType       = 6
	AttrRowBindType      = 5
	AttrRowArraySize     = 27
	AttrRowStatusPtr     = 25
	AttrRowsFetchedPtr   = 26
	AttrRowBindOffsetPtr = 23
	AttrRowsetSize       = 9 // SQL_ROWSET_SIZE, used by SQLExtendedFetch
	AttrMaxLength        = 3
	AttrMaxRows          = 1
	AttrQueryTimeout     = 0
	AttrCursorScrollable = -1
)

// StmtAttrSize returns the byte width SQLGetStmtAttr writes for attr:
// 4 for the SQLUINTEGER attributes, 8 for SQLULEN values and pointers.
func StmtAttrSize(attr int) int {
	switch attr {
	case AttrCursorScrollable:
		return 4
	}
	return 8
}

// BindByColumn is the SQL_ATTR_ROW_BIND_TYPE value for column-wise binding.
const BindByColumn = 0

// SQLFreeStmt options.
const (
	FreeClose       = 0
	FreeDrop        = 1
	FreeUnbind      = 2
	FreeResetParams = 3
)

// Handle types.
const (
	HandleEnv  = 1
	HandleDbc  = 2
	HandleStmt = 3
	HandleDesc = 4
)

// Descriptor fields for SQLColAttribute.
const (
	DescCount                = 1001
	DescType                 = 1002
	DescLength               = 1003
	DescPrecision            = 1005
	DescScale                = 1006
	DescDatetimeIntervalCode = 1007
	DescNullable             = 1008
	DescName                 = 1011
	DescUnnamed              = 1012
	DescOctetLength          = 1013
	DescAutoUniqueValue      = 11
	DescBaseColumnName       = 22
	DescBaseTableName        = 23
	DescCaseSensitive        = 12
	DescCatalogName          = 17
	DescConciseType          = 2
	DescDisplaySize          = 6
	DescFixedPrecScale       = 9
	DescLabel                = 18
	DescLiteralPrefix        = 27
	DescLiteralSuffix        = 28
	DescLocalTypeName        = 29
	DescNumPrecRadix         = 32
	DescSchemaName           = 16
	DescSearchable           = 13
	DescTableName            = 15
	DescTypeName             = 14
	DescUnsigned             = 8
	DescUpdatable            = 10
	DescDatetimeIntervalPrec = 26

	// ODBC 2.x SQLColAttributes aliases.
	ColumnCount     = 0
	ColumnName      = 1
	ColumnLength    = 3
	ColumnPrecision = 4
	ColumnScale     = 5
	ColumnNullable  = 7
)

// Searchable and updatable values reported through SQLColAttribute.
const (
	PredNone     = 0
	PredChar     = 1
	PredBasic    = 2
	Searchable   = 3
	AttrReadonly = 0
	Unnamed      = 1
	Named        = 0
	True         = 1
	False        = 0
)

// Diagnostic header and record fields for SQLGetDiagField.
const (
	DiagCursorRowCount      = -1249
	DiagRowNumber           = -1248
	DiagColumnNumber        = -1247
	DiagReturnCode          = 1
	DiagNumber              = 2
	DiagRowCount            = 3
	DiagSQLState            = 4
	DiagNative              = 5
	DiagMessageText         = 6
	DiagDynamicFunction     = 7
	DiagClassOrigin         = 8
	DiagSubclassOrigin      = 9
	DiagConnectionName      = 10
	DiagServerName          = 11
	DiagDynamicFunctionCode = 12
)

// Row and column numbers reported when a diagnostic is not tied to one.
const (
	NoRowNumber         = -1
	RowNumberUnknown    = -2
	NoColumnNumber      = -1
	ColumnNumberUnknown = -2
)

// Environment attributes (SQLSetEnvAttr).
const (
	AttrODBCVersion       = 200
	AttrConnectionPooling = 201
	AttrCPMatch           = 202
	AttrOutputNTS         = 10001
)

// SQL_ATTR_ODBC_VERSION values.
const (
	OVODBC2  = 2
	OVODBC3  = 3
	OVODBC38 = 380
)

// SQLDriverConnect completion modes.
const (
	DriverNoPrompt         = 0
	DriverComplete         = 1
	DriverPrompt           = 2
	DriverCompleteRequired = 3
)

// SQLGetInfo information types.
const (
	InfoDriverName                   = 6
	InfoDriverVer                    = 7
	InfoDBMSName                     = 17
	InfoDBMSVer                      = 18
	InfoCursorCommitBehavior         = 23
	InfoDataSourceReadOnly           = 25
	InfoIdentifierQuoteChar          = 29
	InfoMaxColumnNameLen             = 30
	InfoScrollOptions                = 44
	InfoTxnCapable                   = 46
	InfoDriverODBCVer                = 77
	InfoGetDataExtensions            = 81
	InfoForwardOnlyCursorAttributes1 = 146
	InfoStaticCursorAttributes1      = 167
)

// SQL_GETDATA_EXTENSIONS bits.
const (
	GDAnyColumn = 0x1
	GDAnyOrder  = 0x2
	GDBlock     = 0x4
	GDBound     = 0x8
)

// SQL_SCROLL_OPTIONS bits.
const (
	SOForwardOnly = 0x1
	SOStatic      = 0x10
)

// SQL_*_CURSOR_ATTRIBUTES1 bits.
const (
	CA1Next     = 0x1
	CA1Absolute = 0x2
	CA1Relative = 0x4
)
