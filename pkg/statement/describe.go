package statement

import (
	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

// PutString copies s into a caller character buffer of bufLen bytes,
// NUL-terminated, and stores the full length of s as an SQLSMALLINT at
// lenAddr. It reports whether s was truncated.
func PutString(m Memory, s string, addr uintptr, bufLen int, lenAddr uintptr) (bool, error) {
	if lb, err := m.Bytes(lenAddr, 2); err != nil {
		return false, err
	} else if lb != nil {
		ne.PutUint16(lb, uint16(int16(len(s))))
	}
	if bufLen <= 0 {
		return addr != 0 && len(s) > 0, nil
	}
	b, err := m.Bytes(addr, bufLen)
	if err != nil || b == nil {
		return false, err
	}
	n := copy(b[:bufLen-1], s)
	b[n] = 0
	return n < len(s), nil
}

// column resolves a 1-based column number for the describe calls.
func (s *Statement) column(col int) (value.Column, bool) {
	if !s.requireResult() {
		return value.Column{}, false
	}
	if len(s.cols) == 0 {
		s.Diag.Post(diag.NotCursorSpecification)
		return value.Column{}, false
	}
	if col < 1 || col > len(s.cols) {
		s.Diag.Add(diag.New(diag.InvalidDescriptorIndex, "").AtColumn(col))
		return value.Column{}, false
	}
	return s.cols[col-1], true
}

// Description is the SQLDescribeCol view of a column.
type Description struct {
	Name     string
	Type     sqltypes.SQLType
	Size     int64
	Digits   int
	Nullable sqltypes.Nullable
}

// Describe returns the SQLDescribeCol fields of c.
func Describe(c value.Column) Description {
	return Description{
		Name:     c.Name,
		Type:     c.SQLType(),
		Size:     c.ColumnSize(),
		Digits:   c.DecimalDigits(),
		Nullable: c.Nullable,
	}
}

// DescribeCol is SQLDescribeCol. Every output address may be zero.
func (s *Statement) DescribeCol(col int, nameAddr uintptr, nameLen int, nameLenAddr, typeAddr, sizeAddr, digitsAddr, nullableAddr uintptr) sqltypes.Return {
	s.Diag.Clear()
	c, ok := s.column(col)
	if !ok {
		return s.Diag.Finish(sqltypes.Error)
	}
	d := Describe(c)

	rc := sqltypes.Success
	truncated, err := PutString(s.mem, d.Name, nameAddr, nameLen, nameLenAddr)
	if err != nil {
		return s.Diag.Finish(s.callerMemory(err))
	}
	if truncated {
		rc = s.Diag.Add(diag.New(diag.StringDataRightTruncated, "").AtColumn(col))
	}

	for _, w := range []struct {
		addr uintptr
		size int
		v    int64
	}{
		{typeAddr, 2, int64(d.Type)},
		{sizeAddr, 8, d.Size},
		{digitsAddr, 2, int64(d.Digits)},
		{nullableAddr, 2, int64(d.Nullable)},
	} {
		if err := putInt(s.mem, w.addr, w.size, w.v); err != nil {
			return s.Diag.Finish(s.callerMemory(err))
		}
	}
	return s.Diag.Finish(rc)
}

func putInt(m Memory, addr uintptr, size int, v int64) error {
	if size == 2 {
		return writeUint16(m, addr, uint16(int16(v)))
	}
	return writeLen(m, addr, v)
}

// Attribute is the value of one SQLColAttribute field: either a string or
// a number.
type Attribute struct {
	Str    string
	Num    int64
	IsText bool
}

func num(n int64) Attribute { return Attribute{Num: n} }

func text(s string) Attribute { return Attribute{Str: s, IsText: true} }

func flag(b bool) Attribute {
	if b {
		return num(sqltypes.True)
	}
	return num(sqltypes.False)
}

// ColumnAttribute returns descriptor field id of c, or false for an unknown
// field identifier.
func ColumnAttribute(c value.Column, id int) (Attribute, bool) {
	t := c.SQLType()
	switch id {
	case sqltypes.DescConciseType:
		return num(int64(t)), true
	case sqltypes.DescType:
		verbose, _ := t.Verbose()
		return num(int64(verbose)), true
	case sqltypes.DescDatetimeIntervalCode:
		_, code := t.Verbose()
		return num(int64(code)), true
	case sqltypes.DescDatetimeIntervalPrec:
		if t.IsInterval() {
			return num(10), true
		}
		return num(0), true
	case sqltypes.DescLength, sqltypes.ColumnLength:
		return num(c.ColumnSize()), true
	case sqltypes.DescOctetLength:
		return num(c.OctetLength()), true
	case sqltypes.DescPrecision, sqltypes.ColumnPrecision:
		switch c.Kind {
		case value.KindTime, value.KindTimestamp, value.KindIntervalDaySecond:
			return num(int64(c.DecimalDigits())), true
		}
		return num(c.ColumnSize()), true
	case sqltypes.DescScale, sqltypes.ColumnScale:
		return num(int64(c.DecimalDigits())), true
	case sqltypes.DescNullable, sqltypes.ColumnNullable:
		return num(int64(c.Nullable)), true
	case sqltypes.DescName, sqltypes.DescLabel, sqltypes.DescBaseColumnName, sqltypes.ColumnName:
		return text(c.Name), true
	case sqltypes.DescUnnamed:
		if c.Name == "" {
			return num(sqltypes.Unnamed), true
		}
		return num(sqltypes.Named), true
	case sqltypes.DescTypeName, sqltypes.DescLocalTypeName:
		return text(c.Type()), true
	case sqltypes.DescDisplaySize:
		return num(c.DisplaySize()), true
	case sqltypes.DescUnsigned:
		return flag(c.IsUnsigned()), true
	case sqltypes.DescCaseSensitive:
		return flag(c.CaseSensitive()), true
	case sqltypes.DescSearchable:
		return num(int64(c.Searchable())), true
	case sqltypes.DescUpdatable:
		return num(sqltypes.AttrReadonly), true
	case sqltypes.DescAutoUniqueValue, sqltypes.DescFixedPrecScale:
		return flag(false), true
	case sqltypes.DescNumPrecRadix:
		return num(int64(c.NumPrecRadix())), true
	case sqltypes.DescLiteralPrefix:
		return text(c.LiteralPrefix()), true
	case sqltypes.DescLiteralSuffix:
		return text(c.LiteralSuffix()), true
	case sqltypes.DescTableName, sqltypes.DescBaseTableName:
		return text(c.Table), true
	case sqltypes.DescSchemaName:
		return text(c.Schema), true
	case sqltypes.DescCatalogName:
		return text(c.Catalog), true
	}
	return Attribute{}, false
}

// ColAttribute is SQLColAttribute. String fields go to charAddr/bufLen with
// their length at strLenAddr (SQLSMALLINT); numeric fields go to numAddr
// (SQLLEN).
func (s *Statement) ColAttribute(col, field int, charAddr uintptr, bufLen int, strLenAddr, numAddr uintptr) sqltypes.Return {
	s.Diag.Clear()

	var a Attribute
	if field == sqltypes.DescCount || field == sqltypes.ColumnCount {
		if !s.requireResult() {
			return s.Diag.Finish(sqltypes.Error)
		}
		a = num(int64(len(s.cols)))
	} else {
		c, ok := s.column(col)
		if !ok {
			return s.Diag.Finish(sqltypes.Error)
		}
		if a, ok = ColumnAttribute(c, field); !ok {
			s.Diag.Post(diag.InvalidDescriptorField)
			return s.Diag.Finish(sqltypes.Error)
		}
	}

	if !a.IsText {
		if err := writeLen(s.mem, numAddr, a.Num); err != nil {
			return s.Diag.Finish(s.callerMemory(err))
		}
		return s.Diag.Finish(sqltypes.Success)
	}

	truncated, err := PutString(s.mem, a.Str, charAddr, bufLen, strLenAddr)
	if err != nil {
		return s.Diag.Finish(s.callerMemory(err))
	}
	if truncated {
		return s.Diag.Finish(s.Diag.Add(diag.New(diag.StringDataRightTruncated, "").AtColumn(col)))
	}
	return s.Diag.Finish(sqltypes.Success)
}
