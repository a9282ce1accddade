package diag

import (
	"strings"

	"github.com/ha1tch/odbcbridge/pkg/errors"
	"github.com/ha1tch/odbcbridge/pkg/log"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
)

// Vendor prefix placed in front of every message.
const Vendor = "[odbcbridge]"

// Record is one diagnostic record.
type Record struct {
	State   State
	Native  int32
	Message string
	Column  int64 // 1-based, or sqltypes.NoColumnNumber
	Row     int64 // 1-based within the rowset, or sqltypes.NoRowNumber

	retrieved bool
}

// New creates a record for state. An empty message uses the standard text.
func New(state State, message string) Record {
	if message == "" {
		message = state.Message()
	}
	if !strings.HasPrefix(message, Vendor) {
		message = Vendor + " " + message
	}
	return Record{
		State:   state,
		Message: message,
		Column:  sqltypes.NoColumnNumber,
		Row:     sqltypes.NoRowNumber,
	}
}

// FromError maps an internal error onto a general-error record. The native
// error carries the internal code.
func FromError(err error) Record {
	r := New(GeneralError, err.Error())
	r.Native = int32(errors.GetCode(err))
	return r
}

// AtColumn returns a copy of r tied to a column.
func (r Record) AtColumn(col int) Record {
	r.Column = int64(col)
	return r
}

// AtRow returns a copy of r tied to a row of the rowset.
func (r Record) AtRow(row int) Record {
	r.Row = int64(row)
	return r
}

// WithNative returns a copy of r with a native error code.
func (r Record) WithNative(n int32) Record {
	r.Native = n
	return r
}

// Retrieved reports whether the record has been read through Record or Next.
func (r Record) Retrieved() bool {
	return r.retrieved
}

// Field returns a SQLGetDiagField record field. The value is a string or an
// int64; ok is false for identifiers that are not record fields.
func (r Record) Field(id int) (v interface{}, ok bool) {
	switch id {
	case sqltypes.DiagSQLState:
		return string(r.State), true
	case sqltypes.DiagNative:
		return int64(r.Native), true
	case sqltypes.DiagMessageText:
		return r.Message, true
	case sqltypes.DiagClassOrigin:
		return r.State.ClassOrigin(), true
	case sqltypes.DiagSubclassOrigin:
		return r.State.SubclassOrigin(), true
	case sqltypes.DiagColumnNumber:
		return r.Column, true
	case sqltypes.DiagRowNumber:
		return r.Row, true
	case sqltypes.DiagConnectionName, sqltypes.DiagServerName:
		return "", true
	}
	return nil, false
}

// Sink is the ordered list of records attached to one handle. The zero value
// is ready to use. A Sink is not safe for concurrent use; ODBC forbids
// concurrent calls on one handle.
type Sink struct {
	records    []Record
	returnCode sqltypes.Return
	rowCount   int64
	function   string

	// Log receives a DEBUG entry per record; nil uses the default logger.
	Log *log.CategoryLogger
}

// Clear drops every record and resets the header. Called at the start of
// every entry point.
func (s *Sink) Clear() {
	s.records = s.records[:0]
	s.returnCode = sqltypes.Success
	s.rowCount = 0
	s.function = ""
}

// Add appends a record and returns the return code it implies on its own.
func (s *Sink) Add(r Record) sqltypes.Return {
	s.records = append(s.records, r)
	l := s.Log
	if l == nil {
		l = log.Default().Diagnostics()
	}
	l.Debug("diagnostic",
		"sqlstate", string(r.State),
		"column", r.Column,
		"row", r.Row,
		"message", r.Message)
	if r.State.IsWarning() {
		return sqltypes.SuccessWithInfo
	}
	return sqltypes.Error
}

// Post adds a record for state with its standard message.
func (s *Sink) Post(state State) sqltypes.Return {
	return s.Add(New(state, ""))
}

// Postf adds a record for state with a custom message.
func (s *Sink) Postf(state State, message string) sqltypes.Return {
	return s.Add(New(state, message))
}

// Len returns the number of records.
func (s *Sink) Len() int {
	return len(s.records)
}

// Record returns the n-th record (1-based) and marks it retrieved.
func (s *Sink) Record(n int) (Record, bool) {
	if n < 1 || n > len(s.records) {
		return Record{}, false
	}
	s.records[n-1].retrieved = true
	return s.records[n-1], true
}

// Peek returns the n-th record without marking it.
func (s *Sink) Peek(n int) (Record, bool) {
	if n < 1 || n > len(s.records) {
		return Record{}, false
	}
	return s.records[n-1], true
}

// Next returns the first record not yet retrieved and marks it. This backs
// the ODBC 2.x SQLError call.
func (s *Sink) Next() (Record, bool) {
	for i := range s.records {
		if !s.records[i].retrieved {
			s.records[i].retrieved = true
			return s.records[i], true
		}
	}
	return Record{}, false
}

// Records returns a copy of every record in order.
func (s *Sink) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Has reports whether any record carries state.
func (s *Sink) Has(state State) bool {
	for _, r := range s.records {
		if r.State == state {
			return true
		}
	}
	return false
}

// States lists the SQLSTATE of every record in order.
func (s *Sink) States() []State {
	out := make([]State, len(s.records))
	for i, r := range s.records {
		out[i] = r.State
	}
	return out
}

// Finish records the return code of the call and returns it.
func (s *Sink) Finish(rc sqltypes.Return) sqltypes.Return {
	s.returnCode = rc
	return rc
}

// ReturnCode is SQL_DIAG_RETURNCODE.
func (s *Sink) ReturnCode() sqltypes.Return {
	return s.returnCode
}

// SetRowCount sets SQL_DIAG_ROW_COUNT / SQL_DIAG_CURSOR_ROW_COUNT.
func (s *Sink) SetRowCount(n int64) {
	s.rowCount = n
}

// SetFunction sets SQL_DIAG_DYNAMIC_FUNCTION.
func (s *Sink) SetFunction(name string) {
	s.function = name
}

// HeaderField returns a SQLGetDiagField header field (record number 0).
func (s *Sink) HeaderField(id int) (v interface{}, ok bool) {
	switch id {
	case sqltypes.DiagNumber:
		return int64(len(s.records)), true
	case sqltypes.DiagReturnCode:
		return int64(s.returnCode), true
	case sqltypes.DiagRowCount, sqltypes.DiagCursorRowCount:
		return s.rowCount, true
	case sqltypes.DiagDynamicFunction:
		return s.function, true
	case sqltypes.DiagDynamicFunctionCode:
		return int64(0), true
	}
	return nil, false
}
