// Package statement implements the result side of an ODBC statement handle:
// the bound column table, the result cursor with block and scrollable
// fetches, piecewise SQLGetData delivery, and column descriptions.
//
// A Statement is not safe for concurrent use. ODBC forbids concurrent calls
// on one statement handle and the Driver Manager enforces it.
//
// Every exported method that corresponds to an ODBC call clears the
// statement's diagnostics first and records its return code last, so the
// records read back after a call are exactly those that call produced.
package statement

import (
	"context"
	"fmt"
	"io"

	"github.com/ha1tch/odbcbridge/pkg/convert"
	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/errors"
	"github.com/ha1tch/odbcbridge/pkg/log"
	"github.com/ha1tch/odbcbridge/pkg/source"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

// State is the lifecycle state of a statement.
type State int

const (
	StateAllocated State = iota // no result pending
	StateExecuted               // a result is open
	StateInvalid                // the source failed; re-execute to recover
)

func (s State) String() string {
	switch s {
	case StateAllocated:
		return "allocated"
	case StateExecuted:
		return "executed"
	case StateInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Attributes are the statement attributes that shape fetches.
type Attributes struct {
	RowArraySize   int     // SQL_ATTR_ROW_ARRAY_SIZE
	RowsetSize     int     // SQL_ROWSET_SIZE, used by SQLExtendedFetch
	BindType       int     // SQL_ATTR_ROW_BIND_TYPE; 0 is column-wise
	BindOffsetPtr  uintptr // SQL_ATTR_ROW_BIND_OFFSET_PTR
	RowStatusPtr   uintptr // SQL_ATTR_ROW_STATUS_PTR
	RowsFetchedPtr uintptr // SQL_ATTR_ROWS_FETCHED_PTR
	CursorType     int     // SQL_ATTR_CURSOR_TYPE
	MaxRows        int64   // SQL_ATTR_MAX_ROWS; 0 is unlimited
	QueryTimeout   int64   // SQL_ATTR_QUERY_TIMEOUT in seconds
}

func defaultAttributes() Attributes {
	return Attributes{
		RowArraySize: 1,
		RowsetSize:   1,
		BindType:     sqltypes.BindByColumn,
		CursorType:   sqltypes.CursorForwardOnly,
	}
}

// Statement is the result side of one statement handle.
type Statement struct {
	// Diag holds the records of the most recent call.
	Diag diag.Sink

	mem  Memory
	conv *convert.Converter
	log  *log.CategoryLogger

	varcharSize int
	scrollable  bool

	state    State
	src      source.Source
	cols     []value.Column
	rowCount int64

	attrs    Attributes
	bindings bindings
	cur      cursor
	gd       delivery
}

// Option configures a Statement.
type Option func(*Statement)

// WithConverter sets the conversion engine.
func WithConverter(c *convert.Converter) Option {
	return func(s *Statement) { s.conv = c }
}

// WithLogger sets the statement-category logger.
func WithLogger(l *log.CategoryLogger) Option {
	return func(s *Statement) { s.log = l }
}

// WithVarcharSize sets the length reported for string and composite columns
// whose source declares none.
func WithVarcharSize(n int) Option {
	return func(s *Statement) { s.varcharSize = n }
}

// WithScrollable allows or forbids static (scrollable) cursors.
func WithScrollable(ok bool) Option {
	return func(s *Statement) { s.scrollable = ok }
}

// New returns a statement that reads and writes caller buffers through mem.
func New(mem Memory, opts ...Option) *Statement {
	s := &Statement{
		mem:         mem,
		varcharSize: value.DefaultVarcharSize,
		scrollable:  true,
		attrs:       defaultAttributes(),
		rowCount:    -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.conv == nil {
		s.conv = convert.New()
	}
	if s.log == nil {
		s.log = log.Default().Statement()
	}
	s.Diag.Log = s.log
	return s
}

// State returns the lifecycle state.
func (s *Statement) State() State {
	return s.state
}

// Columns returns the descriptions of the open result set.
func (s *Statement) Columns() []value.Column {
	return s.cols
}

// Execute makes src the statement's result. Any previous result is closed;
// bindings are kept.
func (s *Statement) Execute(ctx context.Context, src source.Source) sqltypes.Return {
	s.Diag.Clear()
	s.release()

	s.src = src
	s.state = StateExecuted
	s.open()
	s.log.Debug("result opened",
		"columns", len(s.cols),
		"rows_affected", s.rowCount,
		"cursor", cursorName(s.attrs.CursorType))
	return s.Diag.Finish(sqltypes.Success)
}

// open loads the description of the current result set and rewinds the
// cursor.
func (s *Statement) open() {
	raw := s.src.Columns()
	s.cols = make([]value.Column, len(raw))
	for i, c := range raw {
		s.cols[i] = c.WithDefaultLength(s.varcharSize)
	}
	s.rowCount = s.src.RowsAffected()
	s.cur.reset(s.attrs.CursorType == sqltypes.CursorStatic, s.attrs.MaxRows)
	s.gd.reset()
}

// release closes the source without touching diagnostics.
func (s *Statement) release() {
	if s.src != nil {
		if err := source.Close(s.src); err != nil {
			s.log.Warn("closing source failed", "error", err.Error())
		}
	}
	s.src = nil
	s.cols = nil
	s.rowCount = -1
	s.state = StateAllocated
	s.cur.reset(false, 0)
	s.gd.reset()
}

// Close discards the result (SQLFreeStmt with SQL_CLOSE). Bindings are kept.
func (s *Statement) Close() sqltypes.Return {
	s.Diag.Clear()
	s.release()
	return s.Diag.Finish(sqltypes.Success)
}

// CloseCursor is SQLCloseCursor: like Close, but closing a statement with no
// open cursor is an error.
func (s *Statement) CloseCursor() sqltypes.Return {
	s.Diag.Clear()
	if s.state == StateAllocated {
		s.Diag.Post(diag.InvalidCursorState)
		return s.Diag.Finish(sqltypes.Error)
	}
	s.release()
	return s.Diag.Finish(sqltypes.Success)
}

// Unbind clears every column binding (SQLFreeStmt with SQL_UNBIND).
func (s *Statement) Unbind() sqltypes.Return {
	s.Diag.Clear()
	s.bindings.clear()
	return s.Diag.Finish(sqltypes.Success)
}

// Free releases everything the statement holds (SQL_DROP).
func (s *Statement) Free() {
	s.release()
	s.bindings.clear()
	s.Diag.Clear()
}

// fail records a source failure: one general-error record, and the statement
// becomes unusable until re-executed.
func (s *Statement) fail(op string, err error) sqltypes.Return {
	wrapped := errors.SourceFailure(op, err).Build()
	s.log.Error("source failed", wrapped, "op", op)
	if s.src != nil {
		source.Close(s.src)
	}
	s.src = nil
	s.state = StateInvalid
	s.cur.reset(false, 0)
	s.gd.reset()
	return s.Diag.Add(diag.FromError(wrapped))
}

// requireResult checks that a result is open. It posts HY010 when the
// statement has not been executed or has failed.
func (s *Statement) requireResult() bool {
	switch s.state {
	case StateExecuted:
		return true
	default:
		s.Diag.Postf(diag.SequenceError,
			fmt.Sprintf("Function sequence error: statement is %s", s.state))
		return false
	}
}

// NumResultCols is SQLNumResultCols.
func (s *Statement) NumResultCols() (int, sqltypes.Return) {
	s.Diag.Clear()
	if !s.requireResult() {
		return 0, s.Diag.Finish(sqltypes.Error)
	}
	return len(s.cols), s.Diag.Finish(sqltypes.Success)
}

// RowCount is SQLRowCount: rows affected by the statement, -1 if unknown.
func (s *Statement) RowCount() (int64, sqltypes.Return) {
	s.Diag.Clear()
	if !s.requireResult() {
		return 0, s.Diag.Finish(sqltypes.Error)
	}
	s.Diag.SetRowCount(s.rowCount)
	return s.rowCount, s.Diag.Finish(sqltypes.Success)
}

// MoreResults is SQLMoreResults. It returns SQL_NO_DATA and closes the
// result when no further result set exists.
func (s *Statement) MoreResults(ctx context.Context) sqltypes.Return {
	s.Diag.Clear()
	switch s.state {
	case StateAllocated:
		return s.Diag.Finish(sqltypes.NoData)
	case StateInvalid:
		s.requireResult()
		return s.Diag.Finish(sqltypes.Error)
	}

	err := source.Advance(ctx, s.src)
	if err == io.EOF {
		s.release()
		return s.Diag.Finish(sqltypes.NoData)
	}
	if err != nil {
		return s.Diag.Finish(s.fail("MoreResults", err))
	}
	s.open()
	s.log.Debug("next result set", "columns", len(s.cols), "rows_affected", s.rowCount)
	return s.Diag.Finish(sqltypes.Success)
}

// Attrs returns the current statement attributes.
func (s *Statement) Attrs() Attributes {
	return s.attrs
}

// SetAttr is SQLSetStmtAttr for the attributes that shape result delivery.
// For pointer attributes v is the caller address.
func (s *Statement) SetAttr(attr int, v int64) sqltypes.Return {
	s.Diag.Clear()
	rc := sqltypes.Success

	switch attr {
	case sqltypes.AttrRowArraySize, sqltypes.AttrRowsetSize:
		if v < 1 {
			s.Diag.Post(diag.InvalidAttributeValue)
			return s.Diag.Finish(sqltypes.Error)
		}
		if attr == sqltypes.AttrRowArraySize {
			s.attrs.RowArraySize = int(v)
		} else {
			s.attrs.RowsetSize = int(v)
		}
	case sqltypes.AttrRowBindType:
		if v < 0 {
			s.Diag.Post(diag.InvalidAttributeValue)
			return s.Diag.Finish(sqltypes.Error)
		}
		s.attrs.BindType = int(v)
	case sqltypes.AttrRowBindOffsetPtr:
		s.attrs.BindOffsetPtr = uintptr(v)
	case sqltypes.AttrRowStatusPtr:
		s.attrs.RowStatusPtr = uintptr(v)
	case sqltypes.AttrRowsFetchedPtr:
		s.attrs.RowsFetchedPtr = uintptr(v)
	case sqltypes.AttrCursorType, sqltypes.AttrCursorScrollable:
		if s.state == StateExecuted {
			s.Diag.Post(diag.AttributeCannotBeSet)
			return s.Diag.Finish(sqltypes.Error)
		}
		want := int(v)
		if attr == sqltypes.AttrCursorScrollable {
			want = sqltypes.CursorForwardOnly
			if v != 0 {
				want = sqltypes.CursorStatic
			}
		}
		got := s.cursorTypeFor(want)
		s.attrs.CursorType = got
		if got != want {
			rc = s.Diag.Postf(diag.OptionValueChanged,
				fmt.Sprintf("Option value changed: cursor type %s used instead of %s",
					cursorName(got), cursorName(want)))
		}
	case sqltypes.AttrMaxRows:
		if v < 0 {
			s.Diag.Post(diag.InvalidAttributeValue)
			return s.Diag.Finish(sqltypes.Error)
		}
		s.attrs.MaxRows = v
	case sqltypes.AttrQueryTimeout:
		if v < 0 {
			s.Diag.Post(diag.InvalidAttributeValue)
			return s.Diag.Finish(sqltypes.Error)
		}
		s.attrs.QueryTimeout = v
	case sqltypes.AttrMaxLength:
		if v != 0 {
			rc = s.Diag.Postf(diag.OptionValueChanged,
				"Option value changed: SQL_ATTR_MAX_LENGTH is not supported and stays 0")
		}
	default:
		s.Diag.Post(diag.InvalidAttribute)
		return s.Diag.Finish(sqltypes.Error)
	}
	return s.Diag.Finish(rc)
}

// cursorTypeFor maps a requested cursor type onto one the statement offers.
func (s *Statement) cursorTypeFor(want int) int {
	switch want {
	case sqltypes.CursorForwardOnly:
		return sqltypes.CursorForwardOnly
	default:
		if s.scrollable {
			return sqltypes.CursorStatic
		}
		return sqltypes.CursorForwardOnly
	}
}

// GetAttr is SQLGetStmtAttr for the attributes SetAttr accepts.
func (s *Statement) GetAttr(attr int) (int64, sqltypes.Return) {
	s.Diag.Clear()
	var v int64
	switch attr {
	case sqltypes.AttrRowArraySize:
		v = int64(s.attrs.RowArraySize)
	case sqltypes.AttrRowsetSize:
		v = int64(s.attrs.RowsetSize)
	case sqltypes.AttrRowBindType:
		v = int64(s.attrs.BindType)
	case sqltypes.AttrRowBindOffsetPtr:
		v = int64(s.attrs.BindOffsetPtr)
	case sqltypes.AttrRowStatusPtr:
		v = int64(s.attrs.RowStatusPtr)
	case sqltypes.AttrRowsFetchedPtr:
		v = int64(s.attrs.RowsFetchedPtr)
	case sqltypes.AttrCursorType:
		v = int64(s.attrs.CursorType)
	case sqltypes.AttrCursorScrollable:
		if s.attrs.CursorType != sqltypes.CursorForwardOnly {
			v = 1
		}
	case sqltypes.AttrMaxRows:
		v = s.attrs.MaxRows
	case sqltypes.AttrQueryTimeout:
		v = s.attrs.QueryTimeout
	case sqltypes.AttrMaxLength:
		v = 0
	default:
		s.Diag.Post(diag.InvalidAttribute)
		return 0, s.Diag.Finish(sqltypes.Error)
	}
	return v, s.Diag.Finish(sqltypes.Success)
}

func cursorName(t int) string {
	switch t {
	case sqltypes.CursorForwardOnly:
		return "forward-only"
	case sqltypes.CursorStatic:
		return "static"
	case sqltypes.CursorKeysetDriven:
		return "keyset-driven"
	case sqltypes.CursorDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("cursor(%d)", t)
	}
}
