package sqlsource

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	odbcerrors "github.com/ha1tch/odbcbridge/pkg/errors"
	"github.com/ha1tch/odbcbridge/pkg/source"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/statement"
	"github.com/ha1tch/odbcbridge/pkg/value"
)

func TestReturnsRows(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT 1", true},
		{"  select * from t", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"-- leading comment\nSELECT 1", true},
		{"/* hint */ SELECT 1", true},
		{"EXEC dbo.report", true},
		{"PRAGMA table_info(t)", true},
		{"UPDATE t SET a = 1", false},
		{"INSERT INTO t VALUES (1)", false},
		{"CREATE TABLE t (id INT)", false},
		{"selection", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ReturnsRows(tt.query))
		})
	}
}

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		typeName string
		want     family
	}{
		{"INT", famInteger},
		{"bigint", famInteger},
		{"INT UNSIGNED", famUnsigned},
		{"BIGINT(20) UNSIGNED", famUnsigned},
		{"DECIMAL(10,2)", famDecimal},
		{"MONEY", famDecimal},
		{"DATETIME2", famTimestamp},
		{"TIMESTAMPTZ", famTimestamp},
		{"UNIQUEIDENTIFIER", famGUID},
		{"NVARCHAR", famText},
		{"", famText},
		{"BYTEA", famBinary},
	}
	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			assert.Equal(t, tt.want, familyOf(tt.typeName))
		})
	}
}

func TestTextValue_Decimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" 12.50 ", "12.5"},
		{"1E+3", "1000"},
		{"1e999999999", "1e999999999"},
		{"-2.5e-999999", "-2.5e-999999"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := textValue(famDecimal, []byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, value.String(tt.want), v)
		})
	}

	_, err := textValue(famDecimal, []byte("twelve"))
	assert.Error(t, err)
}

func TestOpen_TypedColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	created := time.Date(2024, 5, 17, 8, 30, 0, 250_000_000, time.UTC)
	guid := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	rows := mock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("INT", int64(0)).Nullable(false),
		sqlmock.NewColumn("name").OfType("NVARCHAR", "").Nullable(true).WithLength(32),
		sqlmock.NewColumn("price").OfType("DECIMAL", []byte{}).WithPrecisionAndScale(10, 2),
		sqlmock.NewColumn("created").OfType("DATETIME2", time.Time{}),
		sqlmock.NewColumn("ref").OfType("UNIQUEIDENTIFIER", []byte{}),
	).AddRow(int64(1), "alpha", []byte("12.50"), created, guid).
		AddRow(int64(2), nil, []byte("-0.10"), created, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, price, created, ref FROM items")).
		WillReturnRows(rows)

	ctx := context.Background()
	src, err := Open(ctx, db, "SELECT id, name, price, created, ref FROM items")
	require.NoError(t, err)
	defer src.Close()

	cols := src.Columns()
	require.Len(t, cols, 5)
	assert.Equal(t, value.KindInt64, cols[0].Kind)
	assert.Equal(t, sqltypes.NoNulls, cols[0].Nullable)
	assert.Equal(t, value.KindString, cols[1].Kind)
	assert.Equal(t, int64(32), cols[1].ColumnSize())
	assert.Equal(t, "DECIMAL", cols[2].Type())
	assert.Equal(t, int64(12), cols[2].ColumnSize())
	assert.Equal(t, value.KindTimestamp, cols[3].Kind)
	assert.Equal(t, int64(36), cols[4].ColumnSize())
	assert.Equal(t, int64(-1), src.RowsAffected())

	row, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, value.Int64(1), row[0])
	assert.Equal(t, value.String("alpha"), row[1])
	assert.Equal(t, value.String("12.5"), row[2])
	assert.Equal(t, value.Timestamp{DateTime: civil.DateTimeOf(created)}, row[3])
	assert.Equal(t, value.String("04030201-0605-0807-090A-0B0C0D0E0F10"), row[4])

	row, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, value.Null{}, row[1])
	assert.Equal(t, value.String("-0.1"), row[2])
	assert.Equal(t, value.Null{}, row[4])

	_, err = src.Next(ctx)
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_Exec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE items").WillReturnResult(sqlmock.NewResult(0, 3))

	ctx := context.Background()
	src, err := Open(ctx, db, "UPDATE items SET price = 0")
	require.NoError(t, err)

	assert.Empty(t, src.Columns())
	assert.Equal(t, int64(3), src.RowsAffected())
	assert.False(t, src.HasMoreResultSets())
	_, err = src.Next(ctx)
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	_, err = Open(context.Background(), db, "SELECT broken")
	require.Error(t, err)
	assert.True(t, odbcerrors.IsCode(err, odbcerrors.ErrCodeSourceQuery))
	assert.True(t, errors.Is(err, assert.AnError))
}

func TestNext_RowError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"n"}).
		AddRow(int64(1)).
		AddRow(int64(2)).
		RowError(1, errors.New("connection reset"))
	mock.ExpectQuery("SELECT n").WillReturnRows(rows)

	ctx := context.Background()
	src, err := Open(ctx, db, "SELECT n FROM t")
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(ctx)
	require.NoError(t, err)
	_, err = src.Next(ctx)
	require.Error(t, err)
	assert.True(t, odbcerrors.IsCode(err, odbcerrors.ErrCodeSourceFetch))
}

func TestNextResultSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	first := sqlmock.NewRows([]string{"a"}).AddRow(int64(1))
	second := sqlmock.NewRows([]string{"b", "c"}).AddRow("x", "y")
	mock.ExpectQuery("EXEC report").WillReturnRows(first, second)

	ctx := context.Background()
	src, err := Open(ctx, db, "EXEC report")
	require.NoError(t, err)
	defer src.Close()

	rows, err := source.Drain(ctx, src)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, source.Advance(ctx, src))
	assert.Len(t, src.Columns(), 2)
	rows, err = source.Drain(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, [][]value.Value{{value.String("x"), value.String("y")}}, rows)

	assert.Equal(t, io.EOF, source.Advance(ctx, src))
	assert.False(t, src.HasMoreResultSets())
}

func TestClose(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(int64(1)))

	ctx := context.Background()
	src, err := Open(ctx, db, "SELECT a FROM t")
	require.NoError(t, err)
	require.NoError(t, src.Close())

	_, err = src.Next(ctx)
	assert.True(t, odbcerrors.IsCode(err, odbcerrors.ErrCodeSourceClosed))
}

func TestStatementOverSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := mock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("qty").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("label").OfType("VARCHAR", ""),
	).AddRow(int64(741370), "widget")
	mock.ExpectQuery("SELECT qty").WillReturnRows(rows)

	ctx := context.Background()
	src, err := Open(ctx, db, "SELECT qty, label FROM stock")
	require.NoError(t, err)

	a := statement.NewArena(128)
	stmt := statement.New(a)
	require.Equal(t, sqltypes.Success, stmt.Execute(ctx, src))

	qty := a.Alloc(4)
	label, ind := a.Alloc(16), a.Alloc(8)
	require.Equal(t, sqltypes.Success, stmt.BindCol(1, sqltypes.CSLong, qty, 0, 0))
	require.Equal(t, sqltypes.Success, stmt.BindCol(2, sqltypes.CChar, label, 16, ind))

	require.Equal(t, sqltypes.Success, stmt.Fetch(ctx))
	assert.Equal(t, uint32(741370), binary.NativeEndian.Uint32(a.Slice(qty, 4)))
	assert.Equal(t, "widget\x00", string(a.Slice(label, 7)))
	assert.Equal(t, int64(6), a.Int64(ind))
	assert.Equal(t, sqltypes.NoData, stmt.Fetch(ctx))
	stmt.Free()
}
