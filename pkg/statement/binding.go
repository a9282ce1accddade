package statement

import (
	"fmt"
	"slices"

	"github.com/ha1tch/odbcbridge/pkg/convert"
	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

// Binding is one SQLBindCol registration. Data and Indicator are addresses
// of the first row's buffers.
type Binding struct {
	Column    int
	Target    sqltypes.CType
	Data      uintptr
	Length    int64
	Indicator uintptr
}

// bindings is the bound column table, kept in ascending column order.
type bindings struct {
	list []Binding
}

func (t *bindings) set(b Binding) {
	i, found := slices.BinarySearchFunc(t.list, b.Column, func(e Binding, col int) int {
		return e.Column - col
	})
	if found {
		t.list[i] = b
		return
	}
	t.list = slices.Insert(t.list, i, b)
}

func (t *bindings) remove(col int) {
	t.list = slices.DeleteFunc(t.list, func(e Binding) bool { return e.Column == col })
}

func (t *bindings) clear() {
	t.list = nil
}

// Bindings returns the bound column table in column order.
func (s *Statement) Bindings() []Binding {
	return slices.Clone(s.bindings.list)
}

// BindCol is SQLBindCol. A zero data address unbinds the column.
func (s *Statement) BindCol(col int, target sqltypes.CType, data uintptr, length int64, ind uintptr) sqltypes.Return {
	s.Diag.Clear()

	switch {
	case col == 0:
		s.Diag.Postf(diag.RestrictedDataType,
			"Restricted data type attribute violation: bookmark columns are not supported")
		return s.Diag.Finish(sqltypes.Error)
	case col < 0, s.state == StateExecuted && col > len(s.cols):
		s.Diag.Add(diag.New(diag.InvalidDescriptorIndex, "").AtColumn(col))
		return s.Diag.Finish(sqltypes.Error)
	}

	if data == 0 {
		s.bindings.remove(col)
		return s.Diag.Finish(sqltypes.Success)
	}

	if !target.Known() {
		s.Diag.Postf(diag.InvalidBufferType,
			fmt.Sprintf("Invalid application buffer type: %s", target))
		return s.Diag.Finish(sqltypes.Error)
	}
	if length < 0 || (length == 0 && target.IsCharacter()) {
		s.Diag.Post(diag.InvalidBufferLength)
		return s.Diag.Finish(sqltypes.Error)
	}

	s.bindings.set(Binding{
		Column:    col,
		Target:    target,
		Data:      data,
		Length:    length,
		Indicator: ind,
	})
	return s.Diag.Finish(sqltypes.Success)
}

// resolveTarget maps SQL_C_DEFAULT onto the column's default C type.
func resolveTarget(t sqltypes.CType, col value.Column) sqltypes.CType {
	if t == sqltypes.CDefault {
		return col.DefaultCType()
	}
	return t
}

// capacity returns the buffer size for target: the fixed size of fixed-width
// types, otherwise the declared length.
func capacity(target sqltypes.CType, length int64) int {
	if n, ok := target.FixedSize(); ok {
		return n
	}
	return int(length)
}

// dest resolves the buffers of binding b for row (0-based within the
// rowset), applying the bind offset and the column-wise or row-wise stride.
func (s *Statement) dest(b Binding, target sqltypes.CType, row int) (convert.Dest, error) {
	offset, err := readLen(s.mem, s.attrs.BindOffsetPtr)
	if err != nil {
		return convert.Dest{}, err
	}
	size := capacity(target, b.Length)

	dataStride, indStride := int64(size), int64(sqltypes.SizeLen)
	if s.attrs.BindType != sqltypes.BindByColumn {
		dataStride = int64(s.attrs.BindType)
		indStride = dataStride
	}

	var d convert.Dest
	if b.Data != 0 {
		addr := uintptr(int64(b.Data) + offset + int64(row)*dataStride)
		if d.Data, err = s.mem.Bytes(addr, size); err != nil {
			return d, err
		}
	}
	if b.Indicator != 0 {
		addr := uintptr(int64(b.Indicator) + offset + int64(row)*indStride)
		if d.Indicator, err = s.mem.Bytes(addr, sqltypes.SizeLen); err != nil {
			return d, err
		}
	}
	return d, nil
}
