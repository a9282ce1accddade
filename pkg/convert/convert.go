// Package convert delivers logical values into caller buffers of a chosen
// ODBC C type.
//
// Every conversion returns a Result carrying the outcome and at most one
// SQLSTATE; the caller posts that state to its diagnostics sink. Character
// and binary targets support partial delivery: the caller passes the offset
// returned by the previous call for the same value and receives the next
// fragment.
package convert

import (
	"strings"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/log"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

// DefaultMaxDepth bounds the nesting of composite values.
const DefaultMaxDepth = 64

// Outcome is the class of a conversion result.
type Outcome int8

const (
	Success Outcome = iota
	SuccessWithInfo
	Error
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case SuccessWithInfo:
		return "success with info"
	default:
		return "error"
	}
}

// Result describes one conversion.
type Result struct {
	Outcome Outcome
	State   diag.State
	Message string // optional detail for State

	// Written is the number of content bytes stored, excluding any terminator.
	Written int
	// Indicator is the value stored in the indicator slot: a byte length,
	// sqltypes.NullData, or 0 when nothing was stored.
	Indicator int64
	// Next is the offset to pass to the following call for the same value.
	Next int
	// Complete reports that nothing remains to be delivered.
	Complete bool
}

// Return maps the outcome onto a SQLRETURN.
func (r Result) Return() sqltypes.Return {
	switch r.Outcome {
	case Success:
		return sqltypes.Success
	case SuccessWithInfo:
		return sqltypes.SuccessWithInfo
	default:
		return sqltypes.Error
	}
}

// Record builds the diagnostic record for r, or false when r carries none.
func (r Result) Record() (diag.Record, bool) {
	if r.State == diag.None {
		return diag.Record{}, false
	}
	return diag.New(r.State, r.Message), true
}

func fail(st diag.State) Result {
	return Result{Outcome: Error, State: st}
}

// Converter holds the environment of the conversion engine. The zero value
// uses time.Now and DefaultMaxDepth.
type Converter struct {
	// Now supplies the current local date when a time-only value is
	// delivered into a timestamp.
	Now func() time.Time
	// MaxDepth bounds composite nesting; deeper values fail with HY000.
	MaxDepth int
	// Log receives DEBUG entries for anomalies; nil uses the default logger.
	Log *log.CategoryLogger
}

// New returns a Converter with default settings.
func New() *Converter {
	return &Converter{Now: time.Now, MaxDepth: DefaultMaxDepth}
}

func (c *Converter) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Converter) maxDepth() int {
	if c.MaxDepth > 0 {
		return c.MaxDepth
	}
	return DefaultMaxDepth
}

func (c *Converter) logger() *log.CategoryLogger {
	if c.Log != nil {
		return c.Log
	}
	return log.Default().Conversion()
}

// Convert delivers v into dst as target. offset is the number of bytes of
// the encoded representation already delivered by earlier calls and is only
// meaningful for character and binary targets.
func (c *Converter) Convert(v value.Value, target sqltypes.CType, dst Dest, offset int) Result {
	res := c.convert(v, target, dst, offset)
	if res.State != diag.None {
		kind := value.KindNull
		if v != nil {
			kind = v.Kind()
		}
		c.logger().Debug("conversion anomaly",
			"source", kind.String(),
			"target", target.String(),
			"sqlstate", string(res.State))
	}
	return res
}

func (c *Converter) convert(v value.Value, target sqltypes.CType, dst Dest, offset int) Result {
	if value.IsNull(v) {
		if dst.Indicator == nil {
			return fail(diag.IndicatorRequired)
		}
		dst.setIndicator(sqltypes.NullData)
		return Result{Outcome: Success, Indicator: sqltypes.NullData, Complete: true}
	}

	if target == sqltypes.CDefault {
		target = v.Kind().DefaultCType()
	}
	target = target.Canonical()
	if !target.Known() {
		return fail(diag.InvalidBufferType)
	}

	if v.Kind().IsComposite() {
		if tooDeep(v, c.maxDepth()) {
			res := fail(diag.GeneralError)
			res.Message = "composite value nested too deeply"
			return res
		}
		if !target.IsCharacter() {
			return fail(diag.RestrictedDataType)
		}
	}

	switch {
	case target == sqltypes.CChar:
		return deliver([]byte(Text(v)), dst, offset, 1, true)
	case target == sqltypes.CWChar:
		return deliver(encodeWide(Text(v)), dst, offset, 2, true)
	case target == sqltypes.CBinary:
		return c.toBinary(v, dst, offset)
	case target.IsInterval():
		return c.toInterval(v, target, dst)
	case target == sqltypes.CTypeDate, target == sqltypes.CTypeTime, target == sqltypes.CTypeTS:
		return c.toDateTime(v, target, dst)
	case target == sqltypes.CGUID:
		return c.toGUID(v, dst)
	default:
		return c.toNumeric(v, target, dst)
	}
}

// fixed stores a complete fixed-size image and its length.
func (c *Converter) fixed(dst Dest, b []byte, st diag.State) Result {
	if !dst.put(b) {
		return fail(diag.InvalidBufferLength)
	}
	dst.setIndicator(int64(len(b)))
	res := Result{
		Outcome:   Success,
		State:     st,
		Indicator: int64(len(b)),
		Next:      len(b),
		Complete:  true,
	}
	if dst.Data != nil {
		res.Written = len(b)
	}
	if st != diag.None {
		res.Outcome = SuccessWithInfo
	}
	return res
}

// deliver copies full[offset:] into dst in units of unit bytes. When
// terminate is set one unit is reserved for a NUL terminator. The indicator
// reports the length remaining at the start of the call.
func deliver(full []byte, dst Dest, offset, unit int, terminate bool) Result {
	if offset > len(full) {
		offset = len(full)
	}
	rest := full[offset:]
	remaining := int64(len(rest))
	dst.setIndicator(remaining)
	res := Result{Indicator: remaining, Next: offset}

	if dst.Data == nil && len(rest) == 0 {
		res.Complete = true
		return res
	}

	// room is the content capacity in bytes, or -1 when not even the
	// terminator fits.
	room := -1
	if dst.Data != nil {
		room = len(dst.Data)
		if terminate {
			room -= unit
		}
		if room >= 0 {
			room -= room % unit
		}
	}

	if room >= 0 && len(rest) <= room {
		n := copy(dst.Data, rest)
		if terminate {
			clear(dst.Data[n : n+unit])
		}
		res.Outcome = Success
		res.Written = n
		res.Next = offset + n
		res.Complete = true
		return res
	}

	if room > 0 {
		n := room
		if unit == 2 && n >= 2 && isHighSurrogate(rest[n-2], rest[n-1]) {
			n -= 2
		}
		copy(dst.Data, rest[:n])
		res.Written = n
		res.Next = offset + n
		room = n
	}
	if terminate && room >= 0 {
		clear(dst.Data[room : room+unit])
	}
	res.Outcome = SuccessWithInfo
	res.State = diag.StringDataRightTruncated
	return res
}

func isHighSurrogate(lo, hi byte) bool {
	u := uint16(lo) | uint16(hi)<<8
	return u >= 0xD800 && u <= 0xDBFF
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeWide encodes s as UTF-16LE, the SQLWCHAR representation.
func encodeWide(s string) []byte {
	b, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err == nil {
		return b
	}
	units := utf16.Encode([]rune(s))
	b = make([]byte, 2*len(units))
	for i, u := range units {
		b[2*i] = byte(u)
		b[2*i+1] = byte(u >> 8)
	}
	return b
}

// DecodeWide decodes UTF-16LE bytes; a trailing odd byte is ignored.
func DecodeWide(b []byte) string {
	s, err := utf16le.NewDecoder().Bytes(b[:len(b)&^1])
	if err != nil {
		return ""
	}
	return string(s)
}

// toBinary delivers the raw bytes of v: text bytes for strings and
// composites, the default C structure for everything else.
func (c *Converter) toBinary(v value.Value, dst Dest, offset int) Result {
	var raw []byte
	switch x := v.(type) {
	case value.String:
		raw = []byte(x)
	case value.Array, value.Row:
		raw = []byte(Text(v))
	default:
		ct := v.Kind().DefaultCType()
		size, ok := ct.FixedSize()
		if !ok {
			return fail(diag.RestrictedDataType)
		}
		raw = make([]byte, size)
		ind := make([]byte, sqltypes.SizeLen)
		if r := c.convert(v, ct, Dest{Data: raw, Indicator: ind}, 0); r.Outcome == Error {
			return r
		}
	}
	return deliver(raw, dst, offset, 1, false)
}

// toGUID parses a string source into SQLGUID.
func (c *Converter) toGUID(v value.Value, dst Dest) Result {
	s, ok := v.(value.String)
	if !ok {
		return fail(diag.RestrictedDataType)
	}
	u, err := uuid.Parse(strings.TrimSpace(string(s)))
	if err != nil {
		return fail(diag.StringConversionError)
	}
	var b [sqltypes.SizeGUID]byte
	ne.PutUint32(b[0:], uint32(u[0])<<24|uint32(u[1])<<16|uint32(u[2])<<8|uint32(u[3]))
	ne.PutUint16(b[4:], uint16(u[4])<<8|uint16(u[5]))
	ne.PutUint16(b[6:], uint16(u[6])<<8|uint16(u[7]))
	copy(b[8:], u[8:])
	return c.fixed(dst, b[:], diag.None)
}

// tooDeep reports whether v nests composites more than limit levels deep.
func tooDeep(v value.Value, limit int) bool {
	var elems []value.Value
	switch x := v.(type) {
	case value.Array:
		elems = x
	case value.Row:
		elems = x
	default:
		return false
	}
	if limit <= 0 {
		return true
	}
	for _, e := range elems {
		if tooDeep(e, limit-1) {
			return true
		}
	}
	return false
}
