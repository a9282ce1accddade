package source

import (
	"context"
	stderrors "errors"
	"io"
	"testing"

	"github.com/ha1tch/odbcbridge/pkg/value"
)

func TestStatic_RowsAndResultSets(t *testing.T) {
	ctx := context.Background()
	cols := []value.Column{{Name: "n", Kind: value.KindInt64}}
	src := NewStatic(
		ResultSet{Columns: cols, Rows: [][]value.Value{{value.Int64(1)}, {value.Int64(2)}}, RowsAffected: -1},
		ResultSet{RowsAffected: 3},
	)

	rows, err := Drain(ctx, src)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !src.HasMoreResultSets() {
		t.Fatal("expected a second result set")
	}
	if err := Advance(ctx, src); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if len(src.Columns()) != 0 || src.RowsAffected() != 3 {
		t.Errorf("expected a row count result, got %d columns and count %d", len(src.Columns()), src.RowsAffected())
	}
	if err := Advance(ctx, src); err != io.EOF {
		t.Errorf("expected io.EOF past the last result set, got %v", err)
	}
}

func TestStatic_FailAt(t *testing.T) {
	ctx := context.Background()
	boom := stderrors.New("connection reset")
	src := Rows([]value.Column{{Name: "n", Kind: value.KindInt64}},
		[]value.Value{value.Int64(1)},
		[]value.Value{value.Int64(2)},
	).FailAt(0, 1, boom)

	if _, err := src.Next(ctx); err != nil {
		t.Fatalf("expected first row, got %v", err)
	}
	if _, err := src.Next(ctx); !stderrors.Is(err, boom) {
		t.Errorf("expected injected failure, got %v", err)
	}
}

func TestStatic_Closed(t *testing.T) {
	src := NewStatic()
	if src.RowsAffected() != -1 {
		t.Errorf("expected unknown row count, got %d", src.RowsAffected())
	}
	if err := Close(src); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := src.Next(context.Background()); err == nil || err == io.EOF {
		t.Errorf("expected an error from a closed source, got %v", err)
	}
}

func TestStatic_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := Rows(nil, []value.Value{value.Int64(1)})
	if _, err := src.Next(ctx); !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
