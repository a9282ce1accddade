// Package value defines the logical cell values a value source hands to the
// driver and the column descriptors that describe them.
//
// Value is a closed sum type: every kind is a concrete type in this package
// and consumers switch over them exhaustively. Composite values (Array, Row)
// nest arbitrarily but never form cycles.
package value

import (
	"fmt"
	"time"

	"github.com/golang-sql/civil"
)

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindUInt64
	KindFloat64
	KindFloat32
	KindString
	KindDate
	KindTime
	KindTimestamp
	KindIntervalYearMonth
	KindIntervalDaySecond
	KindArray
	KindRow
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindUInt64:
		return "uint64"
	case KindFloat64:
		return "float64"
	case KindFloat32:
		return "float32"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindTimestamp:
		return "timestamp"
	case KindIntervalYearMonth:
		return "interval year to month"
	case KindIntervalDaySecond:
		return "interval day to second"
	case KindArray:
		return "array"
	case KindRow:
		return "row"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// IsNumeric reports whether k is one of the boolean, integer or floating kinds.
func (k Kind) IsNumeric() bool {
	return k >= KindBool && k <= KindFloat32
}

// IsComposite reports whether k is Array or Row.
func (k Kind) IsComposite() bool {
	return k == KindArray || k == KindRow
}

// Value is one cell.
type Value interface {
	Kind() Kind
	value()
}

type (
	Null    struct{}
	Bool    bool
	Int64   int64
	UInt64  uint64
	Float64 float64
	Float32 float32
	String  string

	// Date is a calendar date without a time zone.
	Date struct{ civil.Date }

	// Time is a wall-clock time with nanosecond precision.
	Time struct{ civil.Time }

	// Timestamp is a date and time with nanosecond precision.
	Timestamp struct{ civil.DateTime }

	// Array is an ordered sequence of values.
	Array []Value

	// Row is an ordered sequence of fields.
	Row []Value
)

// IntervalYearMonth is a signed year-month interval.
type IntervalYearMonth struct {
	Negative bool
	Years    uint32
	Months   uint32
}

// IntervalDaySecond is a signed day-time interval with nanosecond precision.
type IntervalDaySecond struct {
	Negative bool
	Days     uint32
	Hours    uint32
	Minutes  uint32
	Seconds  uint32
	Nanos    uint32
}

func (Null) Kind() Kind              { return KindNull }
func (Bool) Kind() Kind              { return KindBool }
func (Int64) Kind() Kind             { return KindInt64 }
func (UInt64) Kind() Kind            { return KindUInt64 }
func (Float64) Kind() Kind           { return KindFloat64 }
func (Float32) Kind() Kind           { return KindFloat32 }
func (String) Kind() Kind            { return KindString }
func (Date) Kind() Kind              { return KindDate }
func (Time) Kind() Kind              { return KindTime }
func (Timestamp) Kind() Kind         { return KindTimestamp }
func (IntervalYearMonth) Kind() Kind { return KindIntervalYearMonth }
func (IntervalDaySecond) Kind() Kind { return KindIntervalDaySecond }
func (Array) Kind() Kind             { return KindArray }
func (Row) Kind() Kind               { return KindRow }

func (Null) value()              {}
func (Bool) value()              {}
func (Int64) value()             {}
func (UInt64) value()            {}
func (Float64) value()           {}
func (Float32) value()           {}
func (String) value()            {}
func (Date) value()              {}
func (Time) value()              {}
func (Timestamp) value()         {}
func (IntervalYearMonth) value() {}
func (IntervalDaySecond) value() {}
func (Array) value()             {}
func (Row) value()               {}

// NewDate builds a Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{civil.Date{Year: year, Month: month, Day: day}}
}

// NewTime builds a Time.
func NewTime(hour, minute, second, nanos int) Time {
	return Time{civil.Time{Hour: hour, Minute: minute, Second: second, Nanosecond: nanos}}
}

// NewTimestamp builds a Timestamp.
func NewTimestamp(year int, month time.Month, day, hour, minute, second, nanos int) Timestamp {
	return Timestamp{civil.DateTime{
		Date: civil.Date{Year: year, Month: month, Day: day},
		Time: civil.Time{Hour: hour, Minute: minute, Second: second, Nanosecond: nanos},
	}}
}

// FromTime converts t to a Timestamp in t's own location. Sub-nanosecond
// precision does not exist in time.Time, so nothing is lost.
func FromTime(t time.Time) Timestamp {
	return Timestamp{civil.DateTimeOf(t)}
}

// DaySecondFromDuration converts d to a normalized day-second interval.
func DaySecondFromDuration(d time.Duration) IntervalDaySecond {
	var iv IntervalDaySecond
	if d < 0 {
		iv.Negative = true
		d = -d
	}
	iv.Days = uint32(d / (24 * time.Hour))
	d %= 24 * time.Hour
	iv.Hours = uint32(d / time.Hour)
	d %= time.Hour
	iv.Minutes = uint32(d / time.Minute)
	d %= time.Minute
	iv.Seconds = uint32(d / time.Second)
	d %= time.Second
	iv.Nanos = uint32(d)
	return iv
}

// Normalize carries months over twelve into years.
func (iv IntervalYearMonth) Normalize() IntervalYearMonth {
	iv.Years += iv.Months / 12
	iv.Months %= 12
	return iv
}

// TotalMonths returns the unsigned magnitude in months.
func (iv IntervalYearMonth) TotalMonths() uint64 {
	return uint64(iv.Years)*12 + uint64(iv.Months)
}

// Normalize carries overflowing sub-fields into the next larger field.
func (iv IntervalDaySecond) Normalize() IntervalDaySecond {
	iv.Seconds += iv.Nanos / 1e9
	iv.Nanos %= 1e9
	iv.Minutes += iv.Seconds / 60
	iv.Seconds %= 60
	iv.Hours += iv.Minutes / 60
	iv.Minutes %= 60
	iv.Days += iv.Hours / 24
	iv.Hours %= 24
	return iv
}

// IsZero reports whether every field of iv is zero.
func (iv IntervalDaySecond) IsZero() bool {
	return iv.Days == 0 && iv.Hours == 0 && iv.Minutes == 0 && iv.Seconds == 0 && iv.Nanos == 0
}

// Depth returns the composite nesting depth of v: 0 for scalars, 1 for an
// array of scalars, and so on.
func Depth(v Value) int {
	var elems []Value
	switch c := v.(type) {
	case Array:
		elems = c
	case Row:
		elems = c
	default:
		return 0
	}
	max := 0
	for _, e := range elems {
		if d := Depth(e); d > max {
			max = d
		}
	}
	return max + 1
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}
