package convert

import (
	"fmt"
	"math"
	"strings"

	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

// ParseInterval parses [+|-]Y-M into a year-month interval or
// [+|-]D HH:MM:SS[.f{1,9}] into a day-second interval, ignoring surrounding
// whitespace.
func ParseInterval(s string) (value.Value, error) {
	s = strings.TrimSpace(s)
	bad := fmt.Errorf("invalid interval literal %q", s)

	negative := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		negative = s[0] == '-'
		s = s[1:]
	}
	p := &scanner{s: s}

	lead, _, ok := p.digits(1, 10)
	if !ok || uint64(lead) > math.MaxUint32 {
		return nil, bad
	}

	if p.lit('-') {
		months, _, ok := p.digits(1, 2)
		if !ok || months > 11 || !p.done() {
			return nil, bad
		}
		return value.IntervalYearMonth{
			Negative: negative,
			Years:    uint32(lead),
			Months:   uint32(months),
		}, nil
	}

	if !p.lit(' ') {
		return nil, bad
	}
	t, ok := p.clock(false)
	if !ok || !p.done() || !t.IsValid() {
		return nil, bad
	}
	return value.IntervalDaySecond{
		Negative: negative,
		Days:     uint32(lead),
		Hours:    uint32(t.Hour),
		Minutes:  uint32(t.Minute),
		Seconds:  uint32(t.Second),
		Nanos:    uint32(t.Nanosecond),
	}, nil
}

func isYearMonth(t sqltypes.CType) bool {
	switch t {
	case sqltypes.CIntervalYear, sqltypes.CIntervalMonth, sqltypes.CIntervalYearToMonth:
		return true
	}
	return false
}

// Offsets inside SQL_INTERVAL_STRUCT.
const (
	ivType     = 0
	ivSign     = 4
	ivYear     = 8
	ivMonth    = 12
	ivDay      = 8
	ivHour     = 12
	ivMinute   = 16
	ivSecond   = 20
	ivFraction = 24
)

// toInterval fills SQL_INTERVAL_STRUCT. The leading field of the target
// absorbs every larger field of the source; non-zero trailing fields the
// target cannot hold are dropped with a warning. Fractions are nanoseconds.
func (c *Converter) toInterval(v value.Value, target sqltypes.CType, dst Dest) Result {
	src := v
	fromString := false
	if s, ok := v.(value.String); ok {
		parsed, err := ParseInterval(string(s))
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

	b := make([]byte, sqltypes.SizeIntervalStruct)
	ne.PutUint32(b[ivType:], uint32(target-100))
	state := diag.None
	truncIf := func(cond bool) {
		if cond {
			state = diag.FractionalTruncation
		}
	}
	overflow := false
	put := func(off int, n uint64) {
		if n > math.MaxUint32 {
			overflow = true
			return
		}
		ne.PutUint32(b[off:], uint32(n))
	}

	switch x := src.(type) {
	case value.IntervalYearMonth:
		if !isYearMonth(target) {
			return restricted()
		}
		x = x.Normalize()
		if x.Negative {
			ne.PutUint16(b[ivSign:], 1)
		}
		switch target {
		case sqltypes.CIntervalYear:
			put(ivYear, uint64(x.Years))
			truncIf(x.Months != 0)
		case sqltypes.CIntervalMonth:
			put(ivMonth, x.TotalMonths())
		default:
			put(ivYear, uint64(x.Years))
			put(ivMonth, uint64(x.Months))
		}

	case value.IntervalDaySecond:
		if isYearMonth(target) {
			return restricted()
		}
		x = x.Normalize()
		if x.Negative {
			ne.PutUint16(b[ivSign:], 1)
		}
		hours := uint64(x.Days)*24 + uint64(x.Hours)
		minutes := hours*60 + uint64(x.Minutes)
		seconds := minutes*60 + uint64(x.Seconds)
		subMinute := x.Seconds != 0 || x.Nanos != 0

		switch target {
		case sqltypes.CIntervalDay:
			put(ivDay, uint64(x.Days))
			truncIf(x.Hours != 0 || x.Minutes != 0 || subMinute)
		case sqltypes.CIntervalHour:
			put(ivHour, hours)
			truncIf(x.Minutes != 0 || subMinute)
		case sqltypes.CIntervalMinute:
			put(ivMinute, minutes)
			truncIf(subMinute)
		case sqltypes.CIntervalSecond:
			put(ivSecond, seconds)
			put(ivFraction, uint64(x.Nanos))
		case sqltypes.CIntervalDayToHour:
			put(ivDay, uint64(x.Days))
			put(ivHour, uint64(x.Hours))
			truncIf(x.Minutes != 0 || subMinute)
		case sqltypes.CIntervalDayToMinute:
			put(ivDay, uint64(x.Days))
			put(ivHour, uint64(x.Hours))
			put(ivMinute, uint64(x.Minutes))
			truncIf(subMinute)
		case sqltypes.CIntervalDayToSecond:
			put(ivDay, uint64(x.Days))
			put(ivHour, uint64(x.Hours))
			put(ivMinute, uint64(x.Minutes))
			put(ivSecond, uint64(x.Seconds))
			put(ivFraction, uint64(x.Nanos))
		case sqltypes.CIntervalHourToMinute:
			put(ivHour, hours)
			put(ivMinute, uint64(x.Minutes))
			truncIf(subMinute)
		case sqltypes.CIntervalHourToSecond:
			put(ivHour, hours)
			put(ivMinute, uint64(x.Minutes))
			put(ivSecond, uint64(x.Seconds))
			put(ivFraction, uint64(x.Nanos))
		case sqltypes.CIntervalMinuteToSecond:
			put(ivMinute, minutes)
			put(ivSecond, uint64(x.Seconds))
			put(ivFraction, uint64(x.Nanos))
		}

	default:
		return restricted()
	}

	if overflow {
		return fail(diag.IntervalFieldOverflow)
	}
	return c.fixed(dst, b, state)
}

// IntervalStruct decodes SQL_INTERVAL_STRUCT into the interval it carries,
// with the leading field reported as-is.
func IntervalStruct(b []byte) value.Value {
	negative := ne.Uint16(b[ivSign:]) != 0
	code := sqltypes.CType(ne.Uint32(b[ivType:]) + 100)
	if isYearMonth(code) {
		return value.IntervalYearMonth{
			Negative: negative,
			Years:    ne.Uint32(b[ivYear:]),
			Months:   ne.Uint32(b[ivMonth:]),
		}
	}
	return value.IntervalDaySecond{
		Negative: negative,
		Days:     ne.Uint32(b[ivDay:]),
		Hours:    ne.Uint32(b[ivHour:]),
		Minutes:  ne.Uint32(b[ivMinute:]),
		Seconds:  ne.Uint32(b[ivSecond:]),
		Nanos:    ne.Uint32(b[ivFraction:]),
	}
}
