package statement

import (
	"testing"

	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/source"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

func TestDescribeCol(t *testing.T) {
	a := NewArena(256)
	s := executed(t, a, people())

	name, nameLen := a.Alloc(16), a.Alloc(2)
	typ, size, digits, nullable := a.Alloc(2), a.Alloc(8), a.Alloc(2), a.Alloc(2)

	rc := s.DescribeCol(2, name, 16, nameLen, typ, size, digits, nullable)
	if rc != sqltypes.Success {
		t.Fatalf("expected SQL_SUCCESS, got %s", rc)
	}
	if got := cstring(a.Slice(name, 16)); got != "name" {
		t.Errorf("expected name %q, got %q", "name", got)
	}
	if got := a.Uint16(nameLen); got != 4 {
		t.Errorf("expected name length 4, got %d", got)
	}
	if got := sqltypes.SQLType(int16(a.Uint16(typ))); got != sqltypes.TypeVarChar {
		t.Errorf("expected SQL_VARCHAR, got %s", got)
	}
	if got := a.Int64(size); got != value.DefaultVarcharSize {
		t.Errorf("expected size %d, got %d", value.DefaultVarcharSize, got)
	}
	if got := a.Uint16(nullable); got != uint16(sqltypes.NullableYes) {
		t.Errorf("expected SQL_NULLABLE, got %d", got)
	}
}

func TestDescribeCol_NameTruncated(t *testing.T) {
	a := NewArena(128)
	s := executed(t, a, people())
	name, nameLen := a.Alloc(3), a.Alloc(2)

	if rc := s.DescribeCol(2, name, 3, nameLen, 0, 0, 0, 0); rc != sqltypes.SuccessWithInfo {
		t.Fatalf("expected SQL_SUCCESS_WITH_INFO, got %s", rc)
	}
	expectState(t, s, diag.StringDataRightTruncated)
	if got := cstring(a.Slice(name, 3)); got != "na" {
		t.Errorf("expected %q, got %q", "na", got)
	}
	if got := a.Uint16(nameLen); got != 4 {
		t.Errorf("expected full length 4, got %d", got)
	}
}

func TestDescribeCol_Errors(t *testing.T) {
	a := NewArena(64)

	s := executed(t, a, source.NewStatic())
	if rc := s.DescribeCol(1, 0, 0, 0, 0, 0, 0, 0); rc != sqltypes.Error {
		t.Errorf("expected SQL_ERROR, got %s", rc)
	}
	expectState(t, s, diag.NotCursorSpecification)

	s = executed(t, a, people())
	if rc := s.DescribeCol(3, 0, 0, 0, 0, 0, 0, 0); rc != sqltypes.Error {
		t.Errorf("expected SQL_ERROR, got %s", rc)
	}
	expectState(t, s, diag.InvalidDescriptorIndex)
}

func TestColumnAttribute(t *testing.T) {
	ts := value.Column{Name: "at", Kind: value.KindTimestamp, Scale: value.IntPtr(3)}
	iv := value.Column{Name: "span", Kind: value.KindIntervalDaySecond}

	tests := []struct {
		name string
		col  value.Column
		id   int
		num  int64
		str  string
	}{
		{"concise type", ts, sqltypes.DescConciseType, int64(sqltypes.TypeTypeTimestamp), ""},
		{"verbose type", ts, sqltypes.DescType, 9, ""},
		{"datetime code", ts, sqltypes.DescDatetimeIntervalCode, 3, ""},
		{"timestamp length", ts, sqltypes.DescLength, 23, ""},
		{"timestamp precision", ts, sqltypes.DescPrecision, 3, ""},
		{"interval code", iv, sqltypes.DescDatetimeIntervalCode, 10, ""},
		{"interval leading precision", iv, sqltypes.DescDatetimeIntervalPrec, 10, ""},
		{"unsigned bigint", idCol, sqltypes.DescUnsigned, sqltypes.False, ""},
		{"radix", idCol, sqltypes.DescNumPrecRadix, 10, ""},
		{"searchable", nameCol, sqltypes.DescSearchable, sqltypes.Searchable, ""},
		{"unnamed", value.Column{Kind: value.KindString}, sqltypes.DescUnnamed, sqltypes.Unnamed, ""},
		{"type name", idCol, sqltypes.DescTypeName, 0, "BIGINT"},
		{"label", nameCol, sqltypes.DescLabel, 0, "name"},
		{"literal prefix", ts, sqltypes.DescLiteralPrefix, 0, "TIMESTAMP '"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := ColumnAttribute(tt.col, tt.id)
			if !ok {
				t.Fatalf("expected field %d to be known", tt.id)
			}
			if tt.str != "" {
				if !a.IsText || a.Str != tt.str {
					t.Errorf("expected %q, got %+v", tt.str, a)
				}
				return
			}
			if a.IsText || a.Num != tt.num {
				t.Errorf("expected %d, got %+v", tt.num, a)
			}
		})
	}

	if _, ok := ColumnAttribute(idCol, 4242); ok {
		t.Error("expected unknown field to be rejected")
	}
}

func TestColAttribute(t *testing.T) {
	a := NewArena(256)
	s := executed(t, a, people())
	num, buf, strLen := a.Alloc(8), a.Alloc(32), a.Alloc(2)

	if rc := s.ColAttribute(0, sqltypes.DescCount, 0, 0, 0, num); rc != sqltypes.Success {
		t.Fatalf("count: expected SQL_SUCCESS, got %s", rc)
	}
	if got := a.Int64(num); got != 2 {
		t.Errorf("expected 2 columns, got %d", got)
	}

	if rc := s.ColAttribute(1, sqltypes.DescName, buf, 32, strLen, 0); rc != sqltypes.Success {
		t.Fatalf("name: expected SQL_SUCCESS, got %s", rc)
	}
	if got := cstring(a.Slice(buf, 32)); got != "id" {
		t.Errorf("expected %q, got %q", "id", got)
	}

	if rc := s.ColAttribute(1, sqltypes.DescTypeName, buf, 4, strLen, 0); rc != sqltypes.SuccessWithInfo {
		t.Errorf("truncated type name: expected SQL_SUCCESS_WITH_INFO, got %s", rc)
	}
	if got := a.Uint16(strLen); got != 6 {
		t.Errorf("expected full length 6, got %d", got)
	}

	if rc := s.ColAttribute(1, 4242, 0, 0, 0, num); rc != sqltypes.Error {
		t.Errorf("unknown field: expected SQL_ERROR, got %s", rc)
	}
	expectState(t, s, diag.InvalidDescriptorField)
}

func TestColAttribute_BeforeExecute(t *testing.T) {
	s := New(NewArena(64))
	if rc := s.ColAttribute(1, sqltypes.DescName, 0, 0, 0, 0); rc != sqltypes.Error {
		t.Errorf("expected SQL_ERROR, got %s", rc)
	}
	expectState(t, s, diag.SequenceError)
}
