package convert

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-sql/civil"

	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

// scanner walks a fixed-format literal.
type scanner struct {
	s string
	i int
}

func (p *scanner) done() bool { return p.i == len(p.s) }

func (p *scanner) lit(c byte) bool {
	if p.i < len(p.s) && p.s[p.i] == c {
		p.i++
		return true
	}
	return false
}

// digits reads between min and max decimal digits and returns their value
// and count.
func (p *scanner) digits(min, max int) (n, count int, ok bool) {
	for p.i < len(p.s) && count < max {
		c := p.s[p.i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		count++
		p.i++
	}
	return n, count, count >= min
}

func (p *scanner) fixed(width int) (int, bool) {
	n, _, ok := p.digits(width, width)
	return n, ok
}

// fraction reads 1-9 digits after a '.' and scales them to nanoseconds.
func (p *scanner) fraction() (int, bool) {
	n, count, ok := p.digits(1, 9)
	if !ok {
		return 0, false
	}
	for ; count < 9; count++ {
		n *= 10
	}
	return n, true
}

// clock reads HH[:MM[:SS[.f]]]; partial reports whether it may stop early.
func (p *scanner) clock(partial bool) (civil.Time, bool) {
	var t civil.Time
	var ok bool
	if t.Hour, ok = p.fixed(2); !ok {
		return t, false
	}
	if partial && p.done() {
		return t, true
	}
	if !p.lit(':') {
		return t, false
	}
	if t.Minute, ok = p.fixed(2); !ok {
		return t, false
	}
	if partial && p.done() {
		return t, true
	}
	if !p.lit(':') {
		return t, false
	}
	if t.Second, ok = p.fixed(2); !ok {
		return t, false
	}
	if p.lit('.') {
		if t.Nanosecond, ok = p.fraction(); !ok {
			return t, false
		}
	}
	return t, true
}

// ParseDateTime parses the accepted date/time grammars after trimming
// surrounding whitespace:
//
//	YYYY-MM-DD HH:MM:SS[.f{1,9}]   Timestamp
//	YYYY-MM-DD HH:MM               Timestamp
//	YYYY-MM-DD HH                  Timestamp
//	YYYY-MM-DD                     Date
//	HH:MM:SS[.f{1,9}]              Time
//
// A 'T' is accepted in place of the space separator.
func ParseDateTime(s string) (value.Value, error) {
	s = strings.TrimSpace(s)
	p := &scanner{s: s}
	bad := fmt.Errorf("invalid date/time literal %q", s)

	if len(s) > 2 && s[2] == ':' {
		t, ok := p.clock(false)
		if !ok || !p.done() || !t.IsValid() {
			return nil, bad
		}
		return value.Time{Time: t}, nil
	}

	var d civil.Date
	var ok bool
	var month int
	if d.Year, ok = p.fixed(4); !ok || !p.lit('-') {
		return nil, bad
	}
	if month, ok = p.fixed(2); !ok || !p.lit('-') {
		return nil, bad
	}
	d.Month = time.Month(month)
	if d.Day, ok = p.fixed(2); !ok || !d.IsValid() {
		return nil, bad
	}
	if p.done() {
		return value.Date{Date: d}, nil
	}
	if !p.lit(' ') && !p.lit('T') {
		return nil, bad
	}
	t, ok := p.clock(true)
	if !ok || !p.done() || !t.IsValid() {
		return nil, bad
	}
	return value.Timestamp{DateTime: civil.DateTime{Date: d, Time: t}}, nil
}

// toDateTime delivers v into SQL_DATE_STRUCT, SQL_TIME_STRUCT or
// SQL_TIMESTAMP_STRUCT. Dropping fields present in the source is a
// fractional-truncation warning; needing fields absent from the source is
// a restricted conversion (or a cast error when the source was a string).
func (c *Converter) toDateTime(v value.Value, target sqltypes.CType, dst Dest) Result {
	src := v
	fromString := false
	if s, ok := v.(value.String); ok {
		parsed, err := ParseDateTime(string(s))
		if err != nil {
			return fail(diag.StringConversionError)
		}
		src = parsed
		fromString = true
	}
	restricted := func() Result {
		if fromString {
			return fail(diag.StringConversionError)
		}
		return fail(diag.RestrictedDataType)
	}

	switch target {
	case sqltypes.CTypeDate:
		switch x := src.(type) {
		case value.Date:
			return c.fixed(dst, dateStruct(x.Date), diag.None)
		case value.Timestamp:
			return c.fixed(dst, dateStruct(x.Date), diag.FractionalTruncation)
		}
	case sqltypes.CTypeTime:
		switch x := src.(type) {
		case value.Time:
			st := diag.None
			if x.Nanosecond != 0 {
				st = diag.FractionalTruncation
			}
			return c.fixed(dst, timeStruct(x.Time), st)
		case value.Timestamp:
			return c.fixed(dst, timeStruct(x.Time), diag.FractionalTruncation)
		}
	case sqltypes.CTypeTS:
		switch x := src.(type) {
		case value.Date:
			return c.fixed(dst, timestampStruct(civil.DateTime{Date: x.Date}), diag.None)
		case value.Time:
			today := civil.DateOf(c.now())
			return c.fixed(dst, timestampStruct(civil.DateTime{Date: today, Time: x.Time}), diag.None)
		case value.Timestamp:
			return c.fixed(dst, timestampStruct(x.DateTime), diag.None)
		}
	}
	return restricted()
}

func dateStruct(d civil.Date) []byte {
	b := make([]byte, sqltypes.SizeDateStruct)
	ne.PutUint16(b[0:], uint16(int16(d.Year)))
	ne.PutUint16(b[2:], uint16(d.Month))
	ne.PutUint16(b[4:], uint16(d.Day))
	return b
}

func timeStruct(t civil.Time) []byte {
	b := make([]byte, sqltypes.SizeTimeStruct)
	ne.PutUint16(b[0:], uint16(t.Hour))
	ne.PutUint16(b[2:], uint16(t.Minute))
	ne.PutUint16(b[4:], uint16(t.Second))
	return b
}

func timestampStruct(dt civil.DateTime) []byte {
	b := make([]byte, sqltypes.SizeTimestampStruct)
	ne.PutUint16(b[0:], uint16(int16(dt.Date.Year)))
	ne.PutUint16(b[2:], uint16(dt.Date.Month))
	ne.PutUint16(b[4:], uint16(dt.Date.Day))
	ne.PutUint16(b[6:], uint16(dt.Time.Hour))
	ne.PutUint16(b[8:], uint16(dt.Time.Minute))
	ne.PutUint16(b[10:], uint16(dt.Time.Second))
	ne.PutUint32(b[12:], uint32(dt.Time.Nanosecond))
	return b
}

// DateStruct, TimeStruct and TimestampStruct decode C structures; used by the
// probe and by tests.
func DateStruct(b []byte) civil.Date {
	return civil.Date{
		Year:  int(int16(ne.Uint16(b[0:]))),
		Month: time.Month(ne.Uint16(b[2:])),
		Day:   int(ne.Uint16(b[4:])),
	}
}

func TimeStruct(b []byte) civil.Time {
	return civil.Time{
		Hour:   int(ne.Uint16(b[0:])),
		Minute: int(ne.Uint16(b[2:])),
		Second: int(ne.Uint16(b[4:])),
	}
}

func TimestampStruct(b []byte) civil.DateTime {
	return civil.DateTime{
		Date: DateStruct(b),
		Time: civil.Time{
			Hour:       int(ne.Uint16(b[6:])),
			Minute:     int(ne.Uint16(b[8:])),
			Second:     int(ne.Uint16(b[10:])),
			Nanosecond: int(ne.Uint32(b[12:])),
		},
	}
}
