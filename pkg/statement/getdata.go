package statement

import (
	"fmt"

	"github.com/ha1tch/odbcbridge/pkg/convert"
	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

// delivery is the SQLGetData state of the current row: the column being
// delivered piecewise, if any, and the columns already delivered in full.
type delivery struct {
	col    int
	target sqltypes.CType
	offset int
	active bool

	finished map[int]bool
}

func (d *delivery) reset() {
	*d = delivery{}
}

func (d *delivery) finish(col int) {
	if d.finished == nil {
		d.finished = make(map[int]bool)
	}
	d.finished[col] = true
	d.active = false
	d.offset = 0
}

// GetData is SQLGetData for the current row. Character and binary values
// are delivered piecewise: each call for the same column and target
// continues where the previous call stopped. A column delivered in full
// cannot be read again until the next fetch.
func (s *Statement) GetData(col int, target sqltypes.CType, data uintptr, length int64, ind uintptr) sqltypes.Return {
	s.Diag.Clear()
	if !s.requireResult() {
		return s.Diag.Finish(sqltypes.Error)
	}
	if s.cur.pos != posOn {
		s.Diag.Postf(diag.InvalidCursorState,
			"Invalid cursor state: the cursor is not positioned on a row")
		return s.Diag.Finish(sqltypes.Error)
	}
	if col < 1 || col > len(s.cols) {
		s.Diag.Add(diag.New(diag.InvalidDescriptorIndex, "").AtColumn(col))
		return s.Diag.Finish(sqltypes.Error)
	}
	if !target.Known() {
		s.Diag.Postf(diag.InvalidBufferType,
			fmt.Sprintf("Invalid application buffer type: %s", target))
		return s.Diag.Finish(sqltypes.Error)
	}
	if length < 0 {
		s.Diag.Post(diag.InvalidBufferLength)
		return s.Diag.Finish(sqltypes.Error)
	}
	if s.gd.finished[col] {
		s.Diag.Add(diag.New(diag.SequenceError,
			fmt.Sprintf("Function sequence error: column %d was already retrieved", col)).AtColumn(col))
		return s.Diag.Finish(sqltypes.Error)
	}

	column := s.cols[col-1]
	target = resolveTarget(target, column)

	offset := 0
	if s.gd.active && s.gd.col == col && s.gd.target == target {
		offset = s.gd.offset
	}

	var dst convert.Dest
	var err error
	if dst.Data, err = s.mem.Bytes(data, capacity(target, length)); err != nil {
		return s.Diag.Finish(s.callerMemory(err))
	}
	if dst.Indicator, err = s.mem.Bytes(ind, sqltypes.SizeLen); err != nil {
		return s.Diag.Finish(s.callerMemory(err))
	}

	var v value.Value = value.Null{}
	if row := s.cur.row(s.cur.start); col <= len(row) {
		v = row[col-1]
	}
	res := s.conv.Convert(v, target, dst, offset)

	switch {
	case res.Outcome == convert.Error:
		s.gd.active = false
	case res.Complete:
		s.gd.finish(col)
	default:
		s.gd.col, s.gd.target, s.gd.offset, s.gd.active = col, target, res.Next, true
	}

	if rec, ok := res.Record(); ok {
		s.Diag.Add(rec.AtColumn(col))
	}
	return s.Diag.Finish(res.Return())
}
