package sqltypes

import "testing"

func TestStmtAttrSize(t *testing.T) {
	tests := []struct {
		attr int
		want int
	}{
		{AttrCursorScrollable, 4},
		{AttrCursorType, 8},
		{AttrRowArraySize, 8},
		{AttrRowsetSize, 8},
		{AttrRowBindOffsetPtr, 8},
		{AttrRowStatusPtr, 8},
		{AttrQueryTimeout, 8},
		{AttrMaxRows, 8},
	}
	for _, tt := range tests {
		if got := StmtAttrSize(tt.attr); got != tt.want {
			t.Errorf("StmtAttrSize(%d) = %d, want %d", tt.attr, got, tt.want)
		}
	}
}
