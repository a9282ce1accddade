package statement

import (
	"context"
	"io"
	"math"

	"github.com/ha1tch/odbcbridge/pkg/convert"
	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/source"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

// position is where the cursor stands relative to the result set.
type position int

const (
	posBefore position = iota
	posOn
	posAfter
)

// cursor caches rows read from the source. A static cursor keeps every row
// it has read; a forward-only cursor keeps only the current rowset.
type cursor struct {
	static  bool
	maxRows int64

	rows [][]value.Value
	base int // absolute index of rows[0]
	eof  bool

	pos   position
	start int // absolute index of the first row of the current rowset
	size  int // rows in the current rowset

	// clipped is set by a scroll that stopped at the first row instead of
	// moving the full distance.
	clipped bool
}

func (c *cursor) reset(static bool, maxRows int64) {
	*c = cursor{static: static, maxRows: maxRows}
}

// fill reads from src until absolute row n is cached or the result ends.
func (c *cursor) fill(ctx context.Context, src source.Source, n int) error {
	for !c.eof && c.total() <= n {
		if c.maxRows > 0 && int64(c.total()) >= c.maxRows {
			c.eof = true
			break
		}
		row, err := src.Next(ctx)
		if err == io.EOF {
			c.eof = true
			break
		}
		if err != nil {
			return err
		}
		c.rows = append(c.rows, row)
	}
	return nil
}

func (c *cursor) fillAll(ctx context.Context, src source.Source) error {
	return c.fill(ctx, src, math.MaxInt)
}

// total is the number of rows read so far; the row count once eof is set.
func (c *cursor) total() int {
	return c.base + len(c.rows)
}

// row returns absolute row n, or nil when it is not cached.
func (c *cursor) row(n int) []value.Value {
	if n < c.base || n >= c.total() {
		return nil
	}
	return c.rows[n-c.base]
}

// discardBefore drops cached rows before absolute row n on forward-only
// cursors.
func (c *cursor) discardBefore(n int) {
	if c.static || n <= c.base {
		return
	}
	drop := min(n-c.base, len(c.rows))
	c.rows = append([][]value.Value(nil), c.rows[drop:]...)
	c.base += drop
}

func validOrientation(o sqltypes.FetchOrientation) bool {
	switch o {
	case sqltypes.FetchNext, sqltypes.FetchFirst, sqltypes.FetchLast,
		sqltypes.FetchPrior, sqltypes.FetchAbsolute, sqltypes.FetchRelative:
		return true
	}
	return false
}

// Fetch is SQLFetch.
func (s *Statement) Fetch(ctx context.Context) sqltypes.Return {
	return s.fetch(ctx, "Fetch", sqltypes.FetchNext, 0,
		s.attrs.RowArraySize, s.attrs.RowStatusPtr, s.attrs.RowsFetchedPtr)
}

// FetchScroll is SQLFetchScroll. The rowset size, row status array and rows
// fetched counter come from the statement attributes.
func (s *Statement) FetchScroll(ctx context.Context, orient sqltypes.FetchOrientation, offset int64) sqltypes.Return {
	return s.fetch(ctx, "FetchScroll", orient, offset,
		s.attrs.RowArraySize, s.attrs.RowStatusPtr, s.attrs.RowsFetchedPtr)
}

// ExtendedFetch is SQLExtendedFetch: like FetchScroll, with the SQL_ROWSET_SIZE
// rowset size and caller-supplied counter and status array.
func (s *Statement) ExtendedFetch(ctx context.Context, orient sqltypes.FetchOrientation, offset int64, fetchedAddr, statusAddr uintptr) sqltypes.Return {
	return s.fetch(ctx, "ExtendedFetch", orient, offset,
		s.attrs.RowsetSize, statusAddr, fetchedAddr)
}

func (s *Statement) fetch(ctx context.Context, op string, orient sqltypes.FetchOrientation, offset int64, size int, statusAddr, fetchedAddr uintptr) sqltypes.Return {
	s.Diag.Clear()
	if !s.requireResult() {
		return s.Diag.Finish(sqltypes.Error)
	}
	if len(s.cols) == 0 {
		s.Diag.Postf(diag.InvalidCursorState, "Invalid cursor state: the statement returned no result set")
		return s.Diag.Finish(sqltypes.Error)
	}
	if !validOrientation(orient) {
		s.Diag.Post(diag.FetchTypeOutOfRange)
		return s.Diag.Finish(sqltypes.Error)
	}
	if !s.cur.static && orient != sqltypes.FetchNext {
		s.Diag.Postf(diag.FetchTypeOutOfRange,
			"Fetch type out of range: "+orient.String()+" on a forward-only cursor")
		return s.Diag.Finish(sqltypes.Error)
	}
	if size < 1 {
		size = 1
	}

	s.gd.reset()
	s.cur.clipped = false
	start, pos, err := s.seek(ctx, orient, offset, size)
	if err == nil && pos == posOn {
		err = s.cur.fill(ctx, s.src, start+size-1)
	}
	if err != nil {
		return s.Diag.Finish(s.fail(op, err))
	}
	if pos == posOn && start >= s.cur.total() {
		pos = posAfter
	}

	if pos != posOn {
		s.cur.pos, s.cur.size = pos, 0
		if pos == posAfter {
			s.cur.start = s.cur.total()
		}
		if err := writeLen(s.mem, fetchedAddr, 0); err != nil {
			return s.Diag.Finish(s.callerMemory(err))
		}
		s.log.Debug("fetch", "op", op, "orientation", orient.String(), "rows", 0)
		return s.Diag.Finish(sqltypes.NoData)
	}

	n := min(size, s.cur.total()-start)
	s.cur.discardBefore(start)
	s.cur.pos, s.cur.start, s.cur.size = posOn, start, n

	var failed, warned int
	for i := 0; i < size; i++ {
		status := sqltypes.RowNoRow
		if i < n {
			switch s.deliverRow(s.cur.row(start+i), i) {
			case convert.Error:
				failed++
				status = sqltypes.RowError
			case convert.SuccessWithInfo:
				warned++
				status = sqltypes.RowSuccessWithInfo
			default:
				status = sqltypes.RowSuccess
			}
		}
		if statusAddr != 0 {
			addr := statusAddr + uintptr(i*2)
			if err := writeUint16(s.mem, addr, uint16(status)); err != nil {
				return s.Diag.Finish(s.callerMemory(err))
			}
		}
	}
	if err := writeLen(s.mem, fetchedAddr, int64(n)); err != nil {
		return s.Diag.Finish(s.callerMemory(err))
	}

	s.log.Debug("fetch",
		"op", op,
		"orientation", orient.String(),
		"start", start+1,
		"rows", n,
		"errors", failed,
		"warnings", warned)

	if s.cur.clipped {
		s.Diag.Post(diag.FetchBeforeFirstRowset)
	}
	switch {
	case failed == n:
		return s.Diag.Finish(sqltypes.Error)
	case failed > 0 || warned > 0 || s.cur.clipped:
		return s.Diag.Finish(sqltypes.SuccessWithInfo)
	default:
		return s.Diag.Finish(sqltypes.Success)
	}
}

// seek computes the first row of the rowset an orientation selects, or
// reports that the cursor ends up before the start or after the end.
func (s *Statement) seek(ctx context.Context, orient sqltypes.FetchOrientation, offset int64, size int) (int, position, error) {
	c := &s.cur
	n := int(offset)

	switch orient {
	case sqltypes.FetchNext:
		switch c.pos {
		case posBefore:
			return 0, posOn, nil
		case posAfter:
			return 0, posAfter, nil
		}
		return c.start + c.size, posOn, nil

	case sqltypes.FetchFirst:
		return 0, posOn, nil

	case sqltypes.FetchLast:
		if err := c.fillAll(ctx, s.src); err != nil {
			return 0, posBefore, err
		}
		return max(c.total()-size, 0), posOn, nil

	case sqltypes.FetchPrior:
		switch c.pos {
		case posBefore:
			return 0, posBefore, nil
		case posAfter:
			if err := c.fillAll(ctx, s.src); err != nil {
				return 0, posBefore, err
			}
			if c.total() == 0 {
				return 0, posBefore, nil
			}
			return max(c.total()-size, 0), posOn, nil
		}
		if c.start == 0 {
			return 0, posBefore, nil
		}
		if c.start < size {
			c.clipped = true
			return 0, posOn, nil
		}
		return c.start - size, posOn, nil

	case sqltypes.FetchAbsolute:
		return s.absolute(ctx, n, size)

	case sqltypes.FetchRelative:
		switch c.pos {
		case posBefore:
			if n > 0 {
				return s.absolute(ctx, n, size)
			}
			return 0, posBefore, nil
		case posAfter:
			if n < 0 {
				return s.absolute(ctx, n, size)
			}
			return 0, posAfter, nil
		}
		start := c.start + n
		if start < 0 {
			if c.start == 0 || -n > size {
				return 0, posBefore, nil
			}
			c.clipped = true
			return 0, posOn, nil
		}
		return start, posOn, nil
	}
	return 0, posBefore, nil
}

// absolute positions on row n (1-based); negative n counts from the end.
func (s *Statement) absolute(ctx context.Context, n, size int) (int, position, error) {
	switch {
	case n > 0:
		return n - 1, posOn, nil
	case n == 0:
		return 0, posBefore, nil
	}
	c := &s.cur
	if err := c.fillAll(ctx, s.src); err != nil {
		return 0, posBefore, err
	}
	if start := c.total() + n; start >= 0 {
		return start, posOn, nil
	}
	if -n > size {
		return 0, posBefore, nil
	}
	c.clipped = true
	return 0, posOn, nil
}

// deliverRow converts every bound column of row into the buffers of rowset
// slot i, in ascending column order, and returns the worst outcome.
// Conversion warnings and errors are recorded but never stop the remaining
// columns.
func (s *Statement) deliverRow(row []value.Value, i int) convert.Outcome {
	worst := convert.Success
	for _, b := range s.bindings.list {
		if b.Column > len(s.cols) {
			s.Diag.Add(diag.New(diag.InvalidDescriptorIndex, "").AtColumn(b.Column).AtRow(i + 1))
			worst = convert.Error
			continue
		}
		col := s.cols[b.Column-1]
		target := resolveTarget(b.Target, col)

		dst, err := s.dest(b, target, i)
		if err != nil {
			s.Diag.Add(diag.FromError(err).AtColumn(b.Column).AtRow(i + 1))
			worst = convert.Error
			continue
		}

		var v value.Value = value.Null{}
		if b.Column <= len(row) {
			v = row[b.Column-1]
		}
		res := s.conv.Convert(v, target, dst, 0)
		if rec, ok := res.Record(); ok {
			s.Diag.Add(rec.AtColumn(b.Column).AtRow(i + 1))
		}
		if res.Outcome > worst {
			worst = res.Outcome
		}
	}
	return worst
}

// callerMemory records an unusable caller address.
func (s *Statement) callerMemory(err error) sqltypes.Return {
	s.log.Warn("invalid caller buffer", "error", err.Error())
	return s.Diag.Add(diag.FromError(err))
}
