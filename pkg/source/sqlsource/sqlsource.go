// Package sqlsource adapts database/sql results to the source.Source
// interface, so any registered database/sql driver can back the ODBC
// statement layer.
package sqlsource

import (
	"context"
	"database/sql"
	"io"
	"regexp"
	"sync"

	"github.com/ha1tch/odbcbridge/pkg/errors"
	"github.com/ha1tch/odbcbridge/pkg/log"
	"github.com/ha1tch/odbcbridge/pkg/source"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx the adapter uses.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rowReturning matches statements that produce a result set. Anything else
// is run through ExecContext so its affected row count is known.
var rowReturning = regexp.MustCompile(`(?is)^\s*(?:--[^\n]*\n\s*|/\*.*?\*/\s*)*(select|with|values|show|pragma|explain|describe|table|exec|execute|call)\b`)

// ReturnsRows reports whether query is expected to produce a result set.
func ReturnsRows(query string) bool {
	return rowReturning.MatchString(query)
}

// Rows is a source over a database/sql result. It is safe for use by one
// statement at a time; the mutex only guards Close racing a fetch.
type Rows struct {
	mu       sync.Mutex
	rows     *sql.Rows
	cols     []value.Column
	families []family
	affected int64
	closed   bool
	log      *log.CategoryLogger
}

var _ source.Advancer = (*Rows)(nil)

// Open runs query on q. Row-returning statements are opened with
// QueryContext; other statements are executed and yield an empty result
// carrying their affected row count.
func Open(ctx context.Context, q Querier, query string, args ...any) (*Rows, error) {
	lg := log.FromContext(ctx).Source()

	if !ReturnsRows(query) {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSourceQuery, "exec failed").
				WithOp("Open").Err()
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = -1
		}
		lg.Debug("statement executed", "rows_affected", n)
		return &Rows{affected: n, log: lg}, nil
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceQuery, "query failed").
			WithOp("Open").Err()
	}
	r := &Rows{rows: rows, affected: -1, log: lg}
	if err := r.describe(); err != nil {
		rows.Close()
		return nil, err
	}
	lg.Debug("query opened", "columns", len(r.cols))
	return r, nil
}

func (r *Rows) describe() error {
	types, err := r.rows.ColumnTypes()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceDescribe, "reading column types").Err()
	}
	r.cols = make([]value.Column, len(types))
	r.families = make([]family, len(types))
	for i, ct := range types {
		r.cols[i], r.families[i] = describe(ct)
	}
	return nil
}

// Columns implements source.Source.
func (r *Rows) Columns() []value.Column {
	return r.cols
}

// Next implements source.Source.
func (r *Rows) Next(ctx context.Context) ([]value.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.New(errors.ErrCodeSourceClosed, "source is closed").Err()
	}
	if r.rows == nil {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSourceFetch, "reading row").Err()
		}
		return nil, io.EOF
	}

	raw := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceFetch, "scanning row").Err()
	}

	row := make([]value.Value, len(raw))
	for i, x := range raw {
		v, err := convertValue(r.families[i], x)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeUnsupportedType, "converting cell").
				WithField("column", r.cols[i].Name).Err()
		}
		row[i] = v
	}
	return row, nil
}

// RowsAffected implements source.Source.
func (r *Rows) RowsAffected() int64 {
	return r.affected
}

// HasMoreResultSets implements source.Source. database/sql cannot look
// ahead, so an open query always reports that another set may follow and
// NextResultSet settles it.
func (r *Rows) HasMoreResultSets() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows != nil
}

// NextResultSet implements source.Advancer. It returns io.EOF when the query
// produced no further result set.
func (r *Rows) NextResultSet(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rows == nil {
		return io.EOF
	}
	if !r.rows.NextResultSet() {
		err := r.rows.Err()
		r.rows.Close()
		r.rows = nil
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSourceFetch, "advancing result set").Err()
		}
		return io.EOF
	}
	r.log.Debug("next result set")
	return r.describe()
}

// Close implements io.Closer.
func (r *Rows) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows = nil
	return err
}
