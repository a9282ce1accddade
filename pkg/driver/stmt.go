package driver

import (
	"context"
	"time"

	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/log"
	"github.com/ha1tch/odbcbridge/pkg/source/sqlsource"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/statement"
)

// Statement is a statement handle: the result engine of package statement
// plus the text of the query and the connection it runs on.
type Statement struct {
	*statement.Statement

	conn     *Connection
	id       string
	query    string
	prepared bool
	cancel   context.CancelFunc
	freed    bool
}

// ID returns the label that tags the statement's log entries.
func (s *Statement) ID() string {
	return s.id
}

// DriverLog returns the connection's driver category logger tagged with
// the statement.
func (s *Statement) DriverLog() *log.CategoryLogger {
	return s.conn.Logger().Driver().ForHandle(s.id)
}

// Freed reports whether the handle has been released, either directly or by
// disconnecting its connection.
func (s *Statement) Freed() bool {
	return s.freed
}

// ExecDirect is SQLExecDirect.
func (s *Statement) ExecDirect(ctx context.Context, query string) sqltypes.Return {
	s.query, s.prepared = query, false
	return s.run(ctx, query)
}

// Prepare is SQLPrepare. The query is sent to the data source when
// ExecPrepared runs it.
func (s *Statement) Prepare(query string) sqltypes.Return {
	s.Diag.Clear()
	if query == "" {
		s.Diag.Post(diag.InvalidBufferLength)
		return s.Diag.Finish(sqltypes.Error)
	}
	if s.State() == statement.StateExecuted {
		s.Diag.Post(diag.InvalidCursorState)
		return s.Diag.Finish(sqltypes.Error)
	}
	s.query, s.prepared = query, true
	return s.Diag.Finish(sqltypes.Success)
}

// ExecPrepared is SQLExecute.
func (s *Statement) ExecPrepared(ctx context.Context) sqltypes.Return {
	if !s.prepared {
		s.Diag.Clear()
		s.Diag.Postf(diag.SequenceError, "Function sequence error: no prepared statement")
		return s.Diag.Finish(sqltypes.Error)
	}
	return s.run(ctx, s.query)
}

// run opens query on the connection's pool and makes it the statement's
// result. SQL_ATTR_QUERY_TIMEOUT bounds the open, not later fetches.
func (s *Statement) run(ctx context.Context, query string) sqltypes.Return {
	db, logger := s.conn.querier()
	s.Statement.Close()
	s.endQuery()
	if db == nil {
		s.Diag.Post(diag.ConnectionNotOpen)
		return s.Diag.Finish(sqltypes.Error)
	}

	qctx, cancel := context.WithCancel(log.WithLogger(ctx, logger))
	var timer *time.Timer
	if secs := s.Attrs().QueryTimeout; secs > 0 {
		timer = time.AfterFunc(time.Duration(secs)*time.Second, cancel)
	}
	start := time.Now()
	src, err := sqlsource.Open(qctx, db, query)
	timedOut := timer != nil && !timer.Stop()

	lg := logger.Statement().ForHandle(s.id)
	if err != nil {
		cancel()
		lg.Error("query failed", err, "duration_ms", time.Since(start).Milliseconds())
		if timedOut {
			s.Diag.Post(diag.TimeoutExpired)
			return s.Diag.Finish(sqltypes.Error)
		}
		return s.Diag.Finish(s.Diag.Add(diag.FromError(err)))
	}

	s.cancel = cancel
	lg.Debug("query opened",
		"prepared", s.prepared,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s.Statement.Execute(qctx, src)
}

// endQuery releases the context of the last query.
func (s *Statement) endQuery() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Close is SQLFreeStmt with SQL_CLOSE.
func (s *Statement) Close() sqltypes.Return {
	rc := s.Statement.Close()
	s.endQuery()
	return rc
}

// CloseCursor is SQLCloseCursor.
func (s *Statement) CloseCursor() sqltypes.Return {
	rc := s.Statement.CloseCursor()
	if rc != sqltypes.Error {
		s.endQuery()
	}
	return rc
}

// Free is SQLFreeHandle on a statement (SQLFreeStmt with SQL_DROP).
func (s *Statement) Free() {
	s.conn.removeStatement(s)
	s.drop()
}

func (s *Statement) drop() {
	s.Statement.Free()
	s.endQuery()
	s.freed = true
}
