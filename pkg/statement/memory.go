package statement

import (
	"encoding/binary"

	"github.com/ha1tch/odbcbridge/pkg/errors"
)

var ne = binary.NativeEndian

// Memory resolves caller addresses into bounded byte slices. The C boundary
// implements it over real pointers; tests use an Arena.
//
// Bytes returns nil for a zero address or a zero length. Slices returned by
// Bytes are valid only for the duration of the call that requested them.
type Memory interface {
	Bytes(addr uintptr, n int) ([]byte, error)
}

// Arena is caller memory backed by one Go byte slice. Address zero is never
// handed out, so it keeps its "no buffer" meaning.
type Arena struct {
	buf  []byte
	next int
}

// arenaBase is the address of the first arena byte.
const arenaBase = 0x1000

// NewArena allocates an arena of size bytes.
func NewArena(size int) *Arena {
	return &Arena{buf: make([]byte, size)}
}

// Alloc reserves n bytes aligned to 8 and returns their address.
func (a *Arena) Alloc(n int) uintptr {
	a.next = (a.next + 7) &^ 7
	if a.next+n > len(a.buf) {
		panic("statement: arena exhausted")
	}
	addr := uintptr(arenaBase + a.next)
	a.next += n
	return addr
}

// Bytes implements Memory.
func (a *Arena) Bytes(addr uintptr, n int) ([]byte, error) {
	if addr == 0 || n == 0 {
		return nil, nil
	}
	off := int(addr) - arenaBase
	if addr < arenaBase || n < 0 || off+n > len(a.buf) {
		return nil, errors.Newf(errors.ErrCodeCallerMemory,
			"address %#x+%d outside arena", addr, n).Err()
	}
	return a.buf[off : off+n : off+n], nil
}

// Slice returns the bytes at addr, panicking when out of range. For tests.
func (a *Arena) Slice(addr uintptr, n int) []byte {
	b, err := a.Bytes(addr, n)
	if err != nil {
		panic(err)
	}
	return b
}

// Int64 reads an SQLLEN at addr.
func (a *Arena) Int64(addr uintptr) int64 {
	return int64(ne.Uint64(a.Slice(addr, 8)))
}

// PutInt64 stores an SQLLEN at addr.
func (a *Arena) PutInt64(addr uintptr, v int64) {
	ne.PutUint64(a.Slice(addr, 8), uint64(v))
}

// Uint16 reads an SQLUSMALLINT at addr.
func (a *Arena) Uint16(addr uintptr) uint16 {
	return ne.Uint16(a.Slice(addr, 2))
}

// readLen reads an SQLLEN through m; a zero address reads as zero.
func readLen(m Memory, addr uintptr) (int64, error) {
	b, err := m.Bytes(addr, 8)
	if err != nil || b == nil {
		return 0, err
	}
	return int64(ne.Uint64(b)), nil
}

// writeLen stores an SQLLEN through m; a zero address is ignored.
func writeLen(m Memory, addr uintptr, v int64) error {
	b, err := m.Bytes(addr, 8)
	if err != nil || b == nil {
		return err
	}
	ne.PutUint64(b, uint64(v))
	return nil
}

// writeUint16 stores an SQLUSMALLINT through m; a zero address is ignored.
func writeUint16(m Memory, addr uintptr, v uint16) error {
	b, err := m.Bytes(addr, 2)
	if err != nil || b == nil {
		return err
	}
	ne.PutUint16(b, v)
	return nil
}
