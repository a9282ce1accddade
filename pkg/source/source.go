// Package source defines the row producer a statement reads from.
//
// A Source is consumed synchronously by the statement that owns it: Next may
// block on the backend for as long as the backend takes. The statement never
// interprets query text; it only sees column descriptions, rows, an affected
// row count and whether another result set follows.
package source

import (
	"context"
	"io"

	"github.com/ha1tch/odbcbridge/pkg/value"
)

// Source produces the rows of one result set at a time.
type Source interface {
	// Columns describes the current result set. A statement that returned no
	// result set has no columns.
	Columns() []value.Column

	// Next returns the next row of the current result set, or io.EOF after
	// the last row. Any other error is a backend failure.
	Next(ctx context.Context) ([]value.Value, error)

	// RowsAffected returns the count of rows changed by the current
	// statement, or -1 when unknown.
	RowsAffected() int64

	// HasMoreResultSets reports whether another result set follows the
	// current one.
	HasMoreResultSets() bool
}

// Advancer is implemented by sources with more than one result set.
type Advancer interface {
	// NextResultSet moves to the next result set, discarding unread rows of
	// the current one. It returns io.EOF when there is none.
	NextResultSet(ctx context.Context) error
}

// Close releases s if it holds resources.
func Close(s Source) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Advance moves s to its next result set. Sources that do not implement
// Advancer have exactly one.
func Advance(ctx context.Context, s Source) error {
	if !s.HasMoreResultSets() {
		return io.EOF
	}
	a, ok := s.(Advancer)
	if !ok {
		return io.EOF
	}
	return a.NextResultSet(ctx)
}

// Drain reads every remaining row of the current result set.
func Drain(ctx context.Context, s Source) ([][]value.Value, error) {
	var rows [][]value.Value
	for {
		row, err := s.Next(ctx)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}
