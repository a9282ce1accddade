package main

/*
#include "odbc.h"
*/
import "C"

import (
	"unsafe"

	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/statement"
)

// Diagnostics calls read a handle's records and never clear them.

func putState(p *C.SQLCHAR, st diag.State) {
	if p == nil {
		return
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(p)), 6)
	n := copy(b[:5], st)
	for ; n < 6; n++ {
		b[n] = 0
	}
}

// putRecord writes the fields of one record the way SQLGetDiagRec and
// SQLError return them.
func putRecord(r diag.Record, state *C.SQLCHAR, native *C.SQLINTEGER, msg *C.SQLCHAR, bufLen C.SQLSMALLINT, textLen *C.SQLSMALLINT) sqltypes.Return {
	if bufLen < 0 {
		return sqltypes.Error
	}
	putState(state, r.State)
	if native != nil {
		*native = C.SQLINTEGER(r.Native)
	}
	truncated, err := statement.PutString(mem, r.Message, addrOf(msg), int(bufLen), addrOf(textLen))
	switch {
	case err != nil:
		return sqltypes.Error
	case truncated:
		return sqltypes.SuccessWithInfo
	}
	return sqltypes.Success
}

//export SQLGetDiagRec
func SQLGetDiagRec(handleType C.SQLSMALLINT, handle C.SQLHANDLE, recNumber C.SQLSMALLINT, state *C.SQLCHAR,
	native *C.SQLINTEGER, msg *C.SQLCHAR, bufLen C.SQLSMALLINT, textLen *C.SQLSMALLINT) C.SQLRETURN {
	sink := sinkOf(int(handleType), uintptr(handle))
	if sink == nil {
		return invalidHandle
	}
	if recNumber < 1 {
		return ret(sqltypes.Error)
	}
	r, ok := sink.Record(int(recNumber))
	if !ok {
		return ret(sqltypes.NoData)
	}
	return ret(putRecord(r, state, native, msg, bufLen, textLen))
}

// diagFieldSize is the byte width of an integer diagnostic field.
func diagFieldSize(id int) int {
	switch id {
	case sqltypes.DiagReturnCode:
		return 2
	case sqltypes.DiagRowCount, sqltypes.DiagCursorRowCount, sqltypes.DiagRowNumber:
		return 8
	}
	return 4
}

//export SQLGetDiagField
func SQLGetDiagField(handleType C.SQLSMALLINT, handle C.SQLHANDLE, recNumber C.SQLSMALLINT, id C.SQLSMALLINT,
	info C.SQLPOINTER, bufLen C.SQLSMALLINT, strLen *C.SQLSMALLINT) C.SQLRETURN {
	sink := sinkOf(int(handleType), uintptr(handle))
	if sink == nil {
		return invalidHandle
	}

	var (
		v  interface{}
		ok bool
	)
	switch {
	case recNumber == 0:
		v, ok = sink.HeaderField(int(id))
	case recNumber > 0:
		var r diag.Record
		if r, ok = sink.Peek(int(recNumber)); !ok {
			return ret(sqltypes.NoData)
		}
		v, ok = r.Field(int(id))
	}
	if !ok {
		return ret(sqltypes.Error)
	}

	switch x := v.(type) {
	case string:
		if bufLen < 0 {
			return ret(sqltypes.Error)
		}
		truncated, err := statement.PutString(mem, x, uintptr(info), int(bufLen), addrOf(strLen))
		switch {
		case err != nil:
			return ret(sqltypes.Error)
		case truncated:
			return ret(sqltypes.SuccessWithInfo)
		}
	case int64:
		if info == nil {
			break
		}
		switch diagFieldSize(int(id)) {
		case 2:
			*(*C.SQLSMALLINT)(info) = C.SQLSMALLINT(x)
		case 8:
			*(*C.SQLLEN)(info) = C.SQLLEN(x)
		default:
			*(*C.SQLINTEGER)(info) = C.SQLINTEGER(x)
		}
	}
	return ret(sqltypes.Success)
}

//export SQLError
func SQLError(henv C.SQLHENV, hdbc C.SQLHDBC, hstmt C.SQLHSTMT, state *C.SQLCHAR,
	native *C.SQLINTEGER, msg *C.SQLCHAR, bufLen C.SQLSMALLINT, textLen *C.SQLSMALLINT) C.SQLRETURN {
	var sink *diag.Sink
	switch {
	case hstmt != 0:
		sink = sinkOf(sqltypes.HandleStmt, uintptr(hstmt))
	case hdbc != 0:
		sink = sinkOf(sqltypes.HandleDbc, uintptr(hdbc))
	default:
		sink = sinkOf(sqltypes.HandleEnv, uintptr(henv))
	}
	if sink == nil {
		return invalidHandle
	}
	r, ok := sink.Next()
	if !ok {
		return ret(sqltypes.NoData)
	}
	return ret(putRecord(r, state, native, msg, bufLen, textLen))
}
