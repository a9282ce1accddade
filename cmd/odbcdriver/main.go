// Command odbcdriver builds the ODBC driver shared library:
//
//	go build -buildmode=c-shared -o libodbcbridge.so ./cmd/odbcdriver
//
// Register the library with the Driver Manager (odbcinst.ini) and pass
// SOURCE and DSN in the connection string to choose the database/sql driver
// and data source behind it.
package main

/*
#include "odbc.h"
*/
import "C"

import (
	"context"
	"strings"
	"unsafe"

	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/driver"
	"github.com/ha1tch/odbcbridge/pkg/log"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/statement"

	// database/sql drivers selectable through SOURCE=
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
)

func main() {}

func ret(rc sqltypes.Return) C.SQLRETURN {
	return C.SQLRETURN(rc)
}

var invalidHandle = ret(sqltypes.InvalidHandle)

func guard(sink *diag.Sink, logger *log.CategoryLogger, op string, fn func() sqltypes.Return) C.SQLRETURN {
	return ret(driver.Guard(sink, logger, op, fn))
}

// goString reads an input string of n bytes, or up to the NUL when n is
// SQL_NTS.
func goString(p *C.SQLCHAR, n C.SQLINTEGER) (string, bool) {
	switch {
	case p == nil:
		return "", true
	case int64(n) == sqltypes.NTS:
		return C.GoString((*C.char)(unsafe.Pointer(p))), true
	case n < 0:
		return "", false
	}
	return C.GoStringN((*C.char)(unsafe.Pointer(p)), C.int(n)), true
}

// putString writes an output string and posts 01004 on sink when it did not
// fit. Returns the adjusted return code.
func putString(sink *diag.Sink, rc sqltypes.Return, s string, p unsafe.Pointer, bufLen int, lenPtr *C.SQLSMALLINT) sqltypes.Return {
	truncated, err := statement.PutString(mem, s, uintptr(p), bufLen, addrOf(lenPtr))
	if err != nil {
		return sink.Finish(sink.Add(diag.FromError(err)))
	}
	if truncated {
		sink.Post(diag.StringDataRightTruncated)
		if rc == sqltypes.Success {
			rc = sqltypes.SuccessWithInfo
		}
		return sink.Finish(rc)
	}
	return rc
}

// Handles

//export SQLAllocHandle
func SQLAllocHandle(handleType C.SQLSMALLINT, input C.SQLHANDLE, output *C.SQLHANDLE) C.SQLRETURN {
	if output == nil {
		return ret(sqltypes.Error)
	}
	*output = 0

	switch int(handleType) {
	case sqltypes.HandleEnv:
		env := driver.NewEnvironment(driver.WithLogger(rootLogger()))
		*output = C.SQLHANDLE(newHandle(env))
		return ret(sqltypes.Success)

	case sqltypes.HandleDbc:
		env := envOf(uintptr(input))
		if env == nil {
			return invalidHandle
		}
		return guard(&env.Diag, env.DriverLog(), "SQLAllocHandle", func() sqltypes.Return {
			env.Diag.Clear()
			*output = C.SQLHANDLE(newHandle(env.NewConnection()))
			return env.Diag.Finish(sqltypes.Success)
		})

	case sqltypes.HandleStmt:
		c := connOf(uintptr(input))
		if c == nil {
			return invalidHandle
		}
		return guard(&c.Diag, c.DriverLog(), "SQLAllocHandle", func() sqltypes.Return {
			s, rc := c.NewStatement(mem)
			if s != nil {
				*output = C.SQLHANDLE(newHandle(s))
			}
			return rc
		})

	case sqltypes.HandleDesc:
		c := connOf(uintptr(input))
		if c == nil {
			return invalidHandle
		}
		c.Diag.Clear()
		c.Diag.Postf(diag.OptionalFeature, "Optional feature not implemented: explicit descriptors")
		return ret(c.Diag.Finish(sqltypes.Error))
	}
	return ret(sqltypes.Error)
}

//export SQLFreeHandle
func SQLFreeHandle(handleType C.SQLSMALLINT, handle C.SQLHANDLE) C.SQLRETURN {
	h := uintptr(handle)
	switch int(handleType) {
	case sqltypes.HandleEnv:
		env := envOf(h)
		if env == nil {
			return invalidHandle
		}
		return guard(&env.Diag, env.DriverLog(), "SQLFreeHandle", func() sqltypes.Return {
			rc := env.Free()
			if rc == sqltypes.Success {
				release(h)
			}
			return rc
		})

	case sqltypes.HandleDbc:
		c := connOf(h)
		if c == nil {
			return invalidHandle
		}
		return guard(&c.Diag, c.DriverLog(), "SQLFreeHandle", func() sqltypes.Return {
			rc := c.Free()
			if rc == sqltypes.Success {
				release(h)
			}
			return rc
		})

	case sqltypes.HandleStmt:
		s, _ := lookup(h).(*driver.Statement)
		if s == nil {
			return invalidHandle
		}
		return guard(&s.Diag, s.DriverLog(), "SQLFreeHandle", func() sqltypes.Return {
			if !s.Freed() {
				s.Free()
			}
			release(h)
			return sqltypes.Success
		})
	}
	return invalidHandle
}

//export SQLFreeStmt
func SQLFreeStmt(hstmt C.SQLHSTMT, option C.SQLUSMALLINT) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLFreeStmt", func() sqltypes.Return {
		switch int(option) {
		case sqltypes.FreeClose:
			return s.Close()
		case sqltypes.FreeDrop:
			s.Free()
			release(uintptr(hstmt))
			return sqltypes.Success
		case sqltypes.FreeUnbind:
			return s.Unbind()
		case sqltypes.FreeResetParams:
			s.Diag.Clear()
			return s.Diag.Finish(sqltypes.Success)
		}
		s.Diag.Clear()
		s.Diag.Post(diag.InvalidAttribute)
		return s.Diag.Finish(sqltypes.Error)
	})
}

// Environment and connection

//export SQLSetEnvAttr
func SQLSetEnvAttr(henv C.SQLHENV, attr C.SQLINTEGER, value C.SQLPOINTER, length C.SQLINTEGER) C.SQLRETURN {
	env := envOf(uintptr(henv))
	if env == nil {
		return invalidHandle
	}
	return guard(&env.Diag, env.DriverLog(), "SQLSetEnvAttr", func() sqltypes.Return {
		return env.SetAttr(int(attr), int64(uintptr(value)))
	})
}

//export SQLGetEnvAttr
func SQLGetEnvAttr(henv C.SQLHENV, attr C.SQLINTEGER, value C.SQLPOINTER, bufLen C.SQLINTEGER, strLen *C.SQLINTEGER) C.SQLRETURN {
	env := envOf(uintptr(henv))
	if env == nil {
		return invalidHandle
	}
	return guard(&env.Diag, env.DriverLog(), "SQLGetEnvAttr", func() sqltypes.Return {
		v, rc := env.GetAttr(int(attr))
		if rc == sqltypes.Success && value != nil {
			*(*C.SQLUINTEGER)(value) = C.SQLUINTEGER(v)
		}
		return rc
	})
}

//export SQLDriverConnect
func SQLDriverConnect(hdbc C.SQLHDBC, hwnd C.SQLHWND, in *C.SQLCHAR, inLen C.SQLSMALLINT,
	out *C.SQLCHAR, outMax C.SQLSMALLINT, outLen *C.SQLSMALLINT, completion C.SQLUSMALLINT) C.SQLRETURN {
	c := connOf(uintptr(hdbc))
	if c == nil {
		return invalidHandle
	}
	return guard(&c.Diag, c.DriverLog(), "SQLDriverConnect", func() sqltypes.Return {
		connStr, ok := goString(in, C.SQLINTEGER(inLen))
		if !ok {
			c.Diag.Clear()
			c.Diag.Post(diag.InvalidBufferLength)
			return c.Diag.Finish(sqltypes.Error)
		}
		rc := c.Connect(context.Background(), connStr)
		if rc == sqltypes.Error {
			return rc
		}
		return putString(&c.Diag, rc, connStr, unsafe.Pointer(out), int(outMax), outLen)
	})
}

//export SQLConnect
func SQLConnect(hdbc C.SQLHDBC, server *C.SQLCHAR, serverLen C.SQLSMALLINT,
	user *C.SQLCHAR, userLen C.SQLSMALLINT, auth *C.SQLCHAR, authLen C.SQLSMALLINT) C.SQLRETURN {
	c := connOf(uintptr(hdbc))
	if c == nil {
		return invalidHandle
	}
	return guard(&c.Diag, c.DriverLog(), "SQLConnect", func() sqltypes.Return {
		name, ok := goString(server, C.SQLINTEGER(serverLen))
		if !ok {
			c.Diag.Clear()
			c.Diag.Post(diag.InvalidBufferLength)
			return c.Diag.Finish(sqltypes.Error)
		}
		connStr := name
		if !strings.Contains(name, "=") {
			connStr = driver.KeyDSN + "={" + strings.ReplaceAll(name, "}", "}}") + "}"
		}
		return c.Connect(context.Background(), connStr)
	})
}

//export SQLDisconnect
func SQLDisconnect(hdbc C.SQLHDBC) C.SQLRETURN {
	c := connOf(uintptr(hdbc))
	if c == nil {
		return invalidHandle
	}
	return guard(&c.Diag, c.DriverLog(), "SQLDisconnect", c.Disconnect)
}

//export SQLGetInfo
func SQLGetInfo(hdbc C.SQLHDBC, infoType C.SQLUSMALLINT, value C.SQLPOINTER, bufLen C.SQLSMALLINT, strLen *C.SQLSMALLINT) C.SQLRETURN {
	c := connOf(uintptr(hdbc))
	if c == nil {
		return invalidHandle
	}
	return guard(&c.Diag, c.DriverLog(), "SQLGetInfo", func() sqltypes.Return {
		v, rc := c.Info(int(infoType))
		if rc == sqltypes.Error {
			return rc
		}
		switch x := v.(type) {
		case string:
			return putString(&c.Diag, rc, x, unsafe.Pointer(value), int(bufLen), strLen)
		case uint16:
			if value != nil {
				*(*C.SQLUSMALLINT)(value) = C.SQLUSMALLINT(x)
			}
			if strLen != nil {
				*strLen = 2
			}
		case uint32:
			if value != nil {
				*(*C.SQLUINTEGER)(value) = C.SQLUINTEGER(x)
			}
			if strLen != nil {
				*strLen = 4
			}
		}
		return rc
	})
}

// Statements

//export SQLExecDirect
func SQLExecDirect(hstmt C.SQLHSTMT, text *C.SQLCHAR, textLen C.SQLINTEGER) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLExecDirect", func() sqltypes.Return {
		query, ok := goString(text, textLen)
		if !ok || query == "" {
			s.Diag.Clear()
			s.Diag.Post(diag.InvalidBufferLength)
			return s.Diag.Finish(sqltypes.Error)
		}
		return s.ExecDirect(context.Background(), query)
	})
}

//export SQLPrepare
func SQLPrepare(hstmt C.SQLHSTMT, text *C.SQLCHAR, textLen C.SQLINTEGER) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLPrepare", func() sqltypes.Return {
		query, _ := goString(text, textLen)
		return s.Prepare(query)
	})
}

//export SQLExecute
func SQLExecute(hstmt C.SQLHSTMT) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLExecute", func() sqltypes.Return {
		return s.ExecPrepared(context.Background())
	})
}

//export SQLSetStmtAttr
func SQLSetStmtAttr(hstmt C.SQLHSTMT, attr C.SQLINTEGER, value C.SQLPOINTER, length C.SQLINTEGER) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLSetStmtAttr", func() sqltypes.Return {
		return s.SetAttr(int(attr), int64(uintptr(value)))
	})
}

//export SQLGetStmtAttr
func SQLGetStmtAttr(hstmt C.SQLHSTMT, attr C.SQLINTEGER, value C.SQLPOINTER, bufLen C.SQLINTEGER, strLen *C.SQLINTEGER) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLGetStmtAttr", func() sqltypes.Return {
		v, rc := s.GetAttr(int(attr))
		if rc != sqltypes.Success {
			return rc
		}
		size, err := putAttr(uintptr(value), int(attr), v)
		if err != nil {
			return s.Diag.Finish(s.Diag.Add(diag.FromError(err)))
		}
		if strLen != nil {
			*strLen = C.SQLINTEGER(size)
		}
		return rc
	})
}

//export SQLBindCol
func SQLBindCol(hstmt C.SQLHSTMT, col C.SQLUSMALLINT, ctype C.SQLSMALLINT, value C.SQLPOINTER, bufLen C.SQLLEN, ind *C.SQLLEN) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLBindCol", func() sqltypes.Return {
		return s.BindCol(int(col), sqltypes.CType(ctype), uintptr(value), int64(bufLen), addrOf(ind))
	})
}

//export SQLFetch
func SQLFetch(hstmt C.SQLHSTMT) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLFetch", func() sqltypes.Return {
		return s.Fetch(context.Background())
	})
}

//export SQLFetchScroll
func SQLFetchScroll(hstmt C.SQLHSTMT, orient C.SQLSMALLINT, offset C.SQLLEN) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLFetchScroll", func() sqltypes.Return {
		return s.FetchScroll(context.Background(), sqltypes.FetchOrientation(orient), int64(offset))
	})
}

//export SQLExtendedFetch
func SQLExtendedFetch(hstmt C.SQLHSTMT, orient C.SQLUSMALLINT, offset C.SQLLEN, rowCount *C.SQLULEN, rowStatus *C.SQLUSMALLINT) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLExtendedFetch", func() sqltypes.Return {
		return s.ExtendedFetch(context.Background(), sqltypes.FetchOrientation(orient), int64(offset),
			addrOf(rowCount), addrOf(rowStatus))
	})
}

//export SQLGetData
func SQLGetData(hstmt C.SQLHSTMT, col C.SQLUSMALLINT, ctype C.SQLSMALLINT, value C.SQLPOINTER, bufLen C.SQLLEN, ind *C.SQLLEN) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLGetData", func() sqltypes.Return {
		return s.GetData(int(col), sqltypes.CType(ctype), uintptr(value), int64(bufLen), addrOf(ind))
	})
}

//export SQLNumResultCols
func SQLNumResultCols(hstmt C.SQLHSTMT, count *C.SQLSMALLINT) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLNumResultCols", func() sqltypes.Return {
		n, rc := s.NumResultCols()
		if rc != sqltypes.Error && count != nil {
			*count = C.SQLSMALLINT(n)
		}
		return rc
	})
}

//export SQLDescribeCol
func SQLDescribeCol(hstmt C.SQLHSTMT, col C.SQLUSMALLINT, name *C.SQLCHAR, bufLen C.SQLSMALLINT, nameLen *C.SQLSMALLINT,
	dataType *C.SQLSMALLINT, size *C.SQLULEN, digits *C.SQLSMALLINT, nullable *C.SQLSMALLINT) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLDescribeCol", func() sqltypes.Return {
		return s.DescribeCol(int(col), addrOf(name), int(bufLen), addrOf(nameLen),
			addrOf(dataType), addrOf(size), addrOf(digits), addrOf(nullable))
	})
}

//export SQLColAttribute
func SQLColAttribute(hstmt C.SQLHSTMT, col C.SQLUSMALLINT, field C.SQLUSMALLINT, charAttr C.SQLPOINTER,
	bufLen C.SQLSMALLINT, strLen *C.SQLSMALLINT, numAttr *C.SQLLEN) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLColAttribute", func() sqltypes.Return {
		return s.ColAttribute(int(col), int(field), uintptr(charAttr), int(bufLen), addrOf(strLen), addrOf(numAttr))
	})
}

//export SQLRowCount
func SQLRowCount(hstmt C.SQLHSTMT, count *C.SQLLEN) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLRowCount", func() sqltypes.Return {
		n, rc := s.RowCount()
		if rc != sqltypes.Error && count != nil {
			*count = C.SQLLEN(n)
		}
		return rc
	})
}

//export SQLMoreResults
func SQLMoreResults(hstmt C.SQLHSTMT) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLMoreResults", func() sqltypes.Return {
		return s.MoreResults(context.Background())
	})
}

//export SQLCloseCursor
func SQLCloseCursor(hstmt C.SQLHSTMT) C.SQLRETURN {
	s := stmtOf(uintptr(hstmt))
	if s == nil {
		return invalidHandle
	}
	return guard(&s.Diag, s.DriverLog(), "SQLCloseCursor", s.CloseCursor)
}
