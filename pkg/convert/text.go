package convert

import (
	"math"
	"strconv"
	"strings"

	"github.com/golang-sql/civil"

	"github.com/ha1tch/odbcbridge/pkg/value"
)

// Text renders v in canonical textual form: the representation delivered to
// character targets. A top-level Null renders as the empty string.
func Text(v value.Value) string {
	if value.IsNull(v) {
		return ""
	}
	return string(appendText(nil, v, false))
}

// appendText renders v; nested is true inside an Array or Row.
func appendText(b []byte, v value.Value, nested bool) []byte {
	switch x := v.(type) {
	case nil, value.Null:
		return append(b, "null"...)
	case value.Bool:
		switch {
		case nested && bool(x):
			return append(b, "true"...)
		case nested:
			return append(b, "false"...)
		case bool(x):
			return append(b, '1')
		default:
			return append(b, '0')
		}
	case value.Int64:
		return strconv.AppendInt(b, int64(x), 10)
	case value.UInt64:
		return strconv.AppendUint(b, uint64(x), 10)
	case value.Float64:
		return append(b, FormatFloat(float64(x), 64, nested)...)
	case value.Float32:
		return append(b, FormatFloat(float64(x), 32, nested)...)
	case value.String:
		return append(b, x...)
	case value.Date:
		return append(b, FormatDate(x.Date)...)
	case value.Time:
		return append(b, FormatTime(x.Time)...)
	case value.Timestamp:
		return append(b, FormatTimestamp(x.DateTime)...)
	case value.IntervalYearMonth:
		return append(b, FormatYearMonth(x)...)
	case value.IntervalDaySecond:
		return append(b, FormatDaySecond(x)...)
	case value.Array:
		return appendList(b, '[', ']', x)
	case value.Row:
		return appendList(b, '(', ')', x)
	}
	return b
}

func appendList(b []byte, open, close byte, elems []value.Value) []byte {
	b = append(b, open)
	for i, e := range elems {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = appendText(b, e, true)
	}
	return append(b, close)
}

// FormatFloat renders a float with the shortest representation that round
// trips. Inside composites an integral value keeps a decimal point (1.0).
func FormatFloat(f float64, bits int, nested bool) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if nested && !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// FormatDate renders YYYY-MM-DD.
func FormatDate(d civil.Date) string {
	b := make([]byte, 0, 10)
	b = appendPadded(b, d.Year, 4)
	b = append(b, '-')
	b = appendPadded(b, int(d.Month), 2)
	b = append(b, '-')
	return string(appendPadded(b, d.Day, 2))
}

// FormatTime renders HH:MM:SS.fffffffff.
func FormatTime(t civil.Time) string {
	return string(appendClock(make([]byte, 0, 18), t.Hour, t.Minute, t.Second, t.Nanosecond))
}

// FormatTimestamp renders YYYY-MM-DD HH:MM:SS.fffffffff.
func FormatTimestamp(dt civil.DateTime) string {
	b := make([]byte, 0, 29)
	b = append(b, FormatDate(dt.Date)...)
	b = append(b, ' ')
	return string(appendClock(b, dt.Time.Hour, dt.Time.Minute, dt.Time.Second, dt.Time.Nanosecond))
}

func appendClock(b []byte, h, m, s, nanos int) []byte {
	b = appendPadded(b, h, 2)
	b = append(b, ':')
	b = appendPadded(b, m, 2)
	b = append(b, ':')
	b = appendPadded(b, s, 2)
	b = append(b, '.')
	return appendPadded(b, nanos, 9)
}

func appendPadded(b []byte, n, width int) []byte {
	if n < 0 {
		b = append(b, '-')
		n = -n
	}
	s := strconv.Itoa(n)
	for i := len(s); i < width; i++ {
		b = append(b, '0')
	}
	return append(b, s...)
}

// FormatYearMonth renders [-]Y-M.
func FormatYearMonth(iv value.IntervalYearMonth) string {
	iv = iv.Normalize()
	var b []byte
	if iv.Negative {
		b = append(b, '-')
	}
	b = strconv.AppendUint(b, uint64(iv.Years), 10)
	b = append(b, '-')
	b = strconv.AppendUint(b, uint64(iv.Months), 10)
	return string(b)
}

// FormatDaySecond renders [-]D HH:MM:SS.fffffffff.
func FormatDaySecond(iv value.IntervalDaySecond) string {
	iv = iv.Normalize()
	var b []byte
	if iv.Negative {
		b = append(b, '-')
	}
	b = strconv.AppendUint(b, uint64(iv.Days), 10)
	b = append(b, ' ')
	return string(appendClock(b, int(iv.Hours), int(iv.Minutes), int(iv.Seconds), int(iv.Nanos)))
}
