package convert

import (
	"encoding/binary"

	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
)

// ne is the byte order of the C structures the caller reads back.
var ne = binary.NativeEndian

// Dest is a caller-supplied output location, already resolved to bounded
// slices at the API boundary. Data is nil when the caller passed no buffer;
// Indicator is nil when the caller passed no length/indicator slot, and is
// otherwise exactly sqltypes.SizeLen bytes.
//
// A Dest must not be retained after the call that built it returns.
type Dest struct {
	Data      []byte
	Indicator []byte
}

// put copies a complete fixed-size image into Data. Nothing is written when
// Data is too small.
func (d Dest) put(b []byte) bool {
	if d.Data == nil {
		return true
	}
	if len(d.Data) < len(b) {
		return false
	}
	copy(d.Data, b)
	return true
}

// zero clears the first n bytes of Data.
func (d Dest) zero(n int) {
	if n > len(d.Data) {
		n = len(d.Data)
	}
	clear(d.Data[:n])
}

// setIndicator stores an SQLLEN into the indicator slot, if any.
func (d Dest) setIndicator(n int64) {
	if len(d.Indicator) >= sqltypes.SizeLen {
		ne.PutUint64(d.Indicator, uint64(n))
	}
}

// Indicator reads back an SQLLEN slot; used by tests and the probe.
func Indicator(b []byte) int64 {
	if len(b) < sqltypes.SizeLen {
		return 0
	}
	return int64(ne.Uint64(b))
}

func putSigned(b []byte, v int64) {
	switch len(b) {
	case 1:
		b[0] = byte(int8(v))
	case 2:
		ne.PutUint16(b, uint16(int16(v)))
	case 4:
		ne.PutUint32(b, uint32(int32(v)))
	case 8:
		ne.PutUint64(b, uint64(v))
	}
}

func putUnsigned(b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		ne.PutUint16(b, uint16(v))
	case 4:
		ne.PutUint32(b, uint32(v))
	case 8:
		ne.PutUint64(b, v)
	}
}
