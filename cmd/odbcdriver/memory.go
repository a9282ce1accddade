package main

import (
	"encoding/binary"
	"unsafe"

	"github.com/ha1tch/odbcbridge/pkg/errors"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/statement"
)

// cMemory resolves addresses handed over by the Driver Manager. The
// application owns those buffers for the duration of the call (and, for
// bound columns, until it unbinds), so the slices are never retained past
// the entry point that asked for them.
type cMemory struct{}

var mem statement.Memory = cMemory{}

// maxBuffer bounds a single caller buffer.
const maxBuffer = 1 << 31

func (cMemory) Bytes(addr uintptr, n int) ([]byte, error) {
	if addr == 0 || n == 0 {
		return nil, nil
	}
	if n < 0 || n > maxBuffer {
		return nil, errors.Newf(errors.ErrCodeCallerMemory,
			"buffer length %d at %#x out of range", n, addr).Err()
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n), nil
}

func addrOf[T any](p *T) uintptr {
	return uintptr(unsafe.Pointer(p))
}

// putAttr stores a statement attribute value at addr in the width the
// attribute is declared with and returns that width.
func putAttr(addr uintptr, attr int, v int64) (int, error) {
	size := sqltypes.StmtAttrSize(attr)
	b, err := mem.Bytes(addr, size)
	if err != nil || b == nil {
		return size, err
	}
	if size == 4 {
		binary.NativeEndian.PutUint32(b, uint32(v))
	} else {
		binary.NativeEndian.PutUint64(b, uint64(v))
	}
	return size, nil
}
