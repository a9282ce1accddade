// Package driver holds the ODBC handle objects: environments, connections
// and statements. The C entry points in cmd/odbcdriver are thin wrappers
// over these types.
//
// Each handle owns a diag.Sink. Every method that backs an ODBC call clears
// the sink first, so the records read after a call are that call's own.
package driver

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/log"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
)

// Opener opens the database/sql pool behind a connection.
type Opener func(driverName, dsn string) (*sql.DB, error)

var handleSeq atomic.Uint64

// handleID returns a label used to tag log entries of one handle.
func handleID(kind string) string {
	return fmt.Sprintf("%s-%d", kind, handleSeq.Add(1))
}

// Environment is an environment handle. It tracks the connections allocated
// on it.
type Environment struct {
	Diag diag.Sink

	mu          sync.Mutex
	id          string
	odbcVersion int64
	conns       map[*Connection]struct{}

	logger *log.Logger
	opener Opener
}

// EnvOption configures an Environment.
type EnvOption func(*Environment)

// WithLogger sets the logger used until a connection loads its own
// configuration.
func WithLogger(l *log.Logger) EnvOption {
	return func(e *Environment) { e.logger = l }
}

// WithOpener replaces sql.Open.
func WithOpener(o Opener) EnvOption {
	return func(e *Environment) { e.opener = o }
}

// NewEnvironment allocates an environment handle.
func NewEnvironment(opts ...EnvOption) *Environment {
	e := &Environment{
		id:          handleID("env"),
		odbcVersion: sqltypes.OVODBC3,
		conns:       make(map[*Connection]struct{}),
		opener:      sql.Open,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	e.Diag.Log = e.logger.Diagnostics().ForHandle(e.id)
	return e
}

// DriverLog returns the driver category logger tagged with the handle.
func (e *Environment) DriverLog() *log.CategoryLogger {
	return e.logger.Driver().ForHandle(e.id)
}

// SetAttr is SQLSetEnvAttr.
func (e *Environment) SetAttr(attr int, v int64) sqltypes.Return {
	e.Diag.Clear()
	e.mu.Lock()
	defer e.mu.Unlock()

	switch attr {
	case sqltypes.AttrODBCVersion:
		if len(e.conns) > 0 {
			e.Diag.Post(diag.SequenceError)
			return e.Diag.Finish(sqltypes.Error)
		}
		switch v {
		case sqltypes.OVODBC2, sqltypes.OVODBC3, sqltypes.OVODBC38:
			e.odbcVersion = v
		default:
			e.Diag.Post(diag.InvalidAttributeValue)
			return e.Diag.Finish(sqltypes.Error)
		}
	case sqltypes.AttrConnectionPooling, sqltypes.AttrCPMatch:
		// Pooling is the Driver Manager's business.
	case sqltypes.AttrOutputNTS:
		if v != sqltypes.True {
			e.Diag.Post(diag.OptionalFeature)
			return e.Diag.Finish(sqltypes.Error)
		}
	default:
		e.Diag.Post(diag.InvalidAttribute)
		return e.Diag.Finish(sqltypes.Error)
	}
	e.logger.Driver().ForHandle(e.id).Debug("environment attribute set", "attr", attr, "value", v)
	return e.Diag.Finish(sqltypes.Success)
}

// GetAttr is SQLGetEnvAttr.
func (e *Environment) GetAttr(attr int) (int64, sqltypes.Return) {
	e.Diag.Clear()
	e.mu.Lock()
	defer e.mu.Unlock()

	switch attr {
	case sqltypes.AttrODBCVersion:
		return e.odbcVersion, e.Diag.Finish(sqltypes.Success)
	case sqltypes.AttrConnectionPooling, sqltypes.AttrCPMatch:
		return 0, e.Diag.Finish(sqltypes.Success)
	case sqltypes.AttrOutputNTS:
		return sqltypes.True, e.Diag.Finish(sqltypes.Success)
	}
	e.Diag.Post(diag.InvalidAttribute)
	return 0, e.Diag.Finish(sqltypes.Error)
}

// ODBCVersion returns the SQL_ATTR_ODBC_VERSION the application declared.
func (e *Environment) ODBCVersion() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.odbcVersion
}

// NewConnection allocates a connection handle on e.
func (e *Environment) NewConnection() *Connection {
	c := &Connection{
		env:   e,
		id:    handleID("dbc"),
		stmts: make(map[*Statement]struct{}),
	}
	c.Diag.Log = e.logger.Diagnostics().ForHandle(c.id)

	e.mu.Lock()
	e.conns[c] = struct{}{}
	e.mu.Unlock()
	e.logger.Driver().ForHandle(c.id).Debug("connection allocated")
	return c
}

// Connections returns the number of connection handles allocated on e.
func (e *Environment) Connections() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

// Free releases the environment. It fails with HY010 while connection
// handles remain.
func (e *Environment) Free() sqltypes.Return {
	e.Diag.Clear()
	if e.Connections() > 0 {
		e.Diag.Post(diag.SequenceError)
		return e.Diag.Finish(sqltypes.Error)
	}
	e.logger.Driver().ForHandle(e.id).Debug("environment freed")
	return e.Diag.Finish(sqltypes.Success)
}

func (e *Environment) remove(c *Connection) {
	e.mu.Lock()
	delete(e.conns, c)
	e.mu.Unlock()
}
