package source

import (
	"context"
	"io"
	"sync"

	"github.com/ha1tch/odbcbridge/pkg/errors"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

// ResultSet is one in-memory result.
type ResultSet struct {
	Columns      []value.Column
	Rows         [][]value.Value
	RowsAffected int64
}

// Static serves result sets held in memory. It backs tests and the probe's
// dry-run mode.
type Static struct {
	mu     sync.Mutex
	sets   []ResultSet
	set    int
	row    int
	closed bool

	failSet int
	failRow int
	failErr error
}

// NewStatic returns a source over sets. With no sets it behaves like a
// statement that returned no result set and affected no rows.
func NewStatic(sets ...ResultSet) *Static {
	if len(sets) == 0 {
		sets = []ResultSet{{RowsAffected: -1}}
	}
	return &Static{sets: sets, failSet: -1}
}

// Rows is shorthand for a single result set.
func Rows(cols []value.Column, rows ...[]value.Value) *Static {
	return NewStatic(ResultSet{Columns: cols, Rows: rows, RowsAffected: -1})
}

// FailAt makes Next return err instead of row index row (0-based) of result
// set set.
func (s *Static) FailAt(set, row int, err error) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSet, s.failRow, s.failErr = set, row, err
	return s
}

func (s *Static) Columns() []value.Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets[s.set].Columns
}

func (s *Static) Next(ctx context.Context) ([]value.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New(errors.ErrCodeSourceClosed, "source is closed").Err()
	}
	if s.set == s.failSet && s.row == s.failRow && s.failErr != nil {
		return nil, s.failErr
	}
	rs := s.sets[s.set]
	if s.row >= len(rs.Rows) {
		return nil, io.EOF
	}
	row := rs.Rows[s.row]
	s.row++
	return row, nil
}

func (s *Static) RowsAffected() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets[s.set].RowsAffected
}

func (s *Static) HasMoreResultSets() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set+1 < len(s.sets)
}

// NextResultSet implements Advancer.
func (s *Static) NextResultSet(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set+1 >= len(s.sets) {
		return io.EOF
	}
	s.set++
	s.row = 0
	return nil
}

// Close implements io.Closer.
func (s *Static) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
