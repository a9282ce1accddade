package driver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/errors"
	"github.com/ha1tch/odbcbridge/pkg/log"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/statement"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{DefaultLevel: log.LevelOff})
}

// mockEnv returns an environment whose connections open db, recording the
// driver name and DSN they asked for.
func mockEnv(t *testing.T) (*Environment, sqlmock.Sqlmock, *[2]string) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var opened [2]string
	env := NewEnvironment(
		WithLogger(quietLogger()),
		WithOpener(func(driverName, dsn string) (*sql.DB, error) {
			opened = [2]string{driverName, dsn}
			return db, nil
		}),
	)
	return env, mock, &opened
}

func connected(t *testing.T, env *Environment) *Connection {
	t.Helper()
	c := env.NewConnection()
	rc := c.Connect(context.Background(), "DRIVER={odbcbridge};SOURCE=sqlmock;DSN=test;LOGLEVEL=off")
	require.Equal(t, sqltypes.Success, rc, "connect: %v", c.Diag.States())
	return c
}

func TestParseConnString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"simple", "DSN=foo;UID=bob", map[string]string{"DSN": "foo", "UID": "bob"}},
		{"case and spaces", " dsn = foo ; Source=sqlite3;", map[string]string{"DSN": "foo", "SOURCE": "sqlite3"}},
		{"braced", "DRIVER={My Driver};DSN={a;b=c}", map[string]string{"DRIVER": "My Driver", "DSN": "a;b=c"}},
		{"escaped brace", "PWD={x}}y}", map[string]string{"PWD": "x}y"}},
		{"first wins", "DSN=one;dsn=two", map[string]string{"DSN": "one"}},
		{"empty value", "DSN=;UID=u", map[string]string{"DSN": "", "UID": "u"}},
		{"equals in value", "DSN=file:test.db?mode=memory", map[string]string{"DSN": "file:test.db?mode=memory"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConnString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseConnString_Errors(t *testing.T) {
	for _, in := range []string{
		"DSN",
		"=value",
		"DSN={unterminated",
		"DSN={a}b",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseConnString(in)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeConnString))
		})
	}
}

func TestSettings(t *testing.T) {
	file, kv := settings(map[string]string{
		"DRIVER":               "odbcbridge",
		"SOURCE":               "postgres",
		"DSN":                  "ignored",
		"DATABASE":             "postgres://db",
		"CONFIG":               "/etc/odbcbridge.yaml",
		"LOGLEVEL":             "debug",
		"CONVERSION.MAX_DEPTH": "8",
		"UID":                  "bob",
	})
	assert.Equal(t, "/etc/odbcbridge.yaml", file)
	assert.Equal(t, map[string]string{
		"source.driver":        "postgres",
		"source.dsn":           "postgres://db",
		"log.level":            "debug",
		"conversion.max_depth": "8",
	}, kv)
}

func TestEnvironment_SetAttr(t *testing.T) {
	env := NewEnvironment(WithLogger(quietLogger()))

	assert.Equal(t, sqltypes.Success, env.SetAttr(sqltypes.AttrODBCVersion, sqltypes.OVODBC38))
	assert.Equal(t, int64(sqltypes.OVODBC38), env.ODBCVersion())
	assert.Equal(t, sqltypes.Error, env.SetAttr(sqltypes.AttrODBCVersion, 7))
	assert.Equal(t, []diag.State{diag.InvalidAttributeValue}, env.Diag.States())
	assert.Equal(t, sqltypes.Success, env.SetAttr(sqltypes.AttrConnectionPooling, 1))
	assert.Equal(t, sqltypes.Error, env.SetAttr(sqltypes.AttrOutputNTS, sqltypes.False))
	assert.Equal(t, []diag.State{diag.OptionalFeature}, env.Diag.States())
	assert.Equal(t, sqltypes.Error, env.SetAttr(12345, 0))
	assert.Equal(t, []diag.State{diag.InvalidAttribute}, env.Diag.States())

	v, rc := env.GetAttr(sqltypes.AttrOutputNTS)
	assert.Equal(t, sqltypes.Success, rc)
	assert.Equal(t, int64(sqltypes.True), v)

	c := env.NewConnection()
	assert.Equal(t, sqltypes.Error, env.SetAttr(sqltypes.AttrODBCVersion, sqltypes.OVODBC3))
	assert.Equal(t, []diag.State{diag.SequenceError}, env.Diag.States())
	assert.Equal(t, sqltypes.Error, env.Free())

	assert.Equal(t, sqltypes.Success, c.Free())
	assert.Equal(t, sqltypes.Success, env.Free())
}

func TestConnect(t *testing.T) {
	env, _, opened := mockEnv(t)
	c := connected(t, env)

	assert.True(t, c.Connected())
	assert.Equal(t, [2]string{"sqlmock", "test"}, *opened)
	assert.Equal(t, "off", c.Config().Log.Level)

	assert.Equal(t, sqltypes.Error, c.Connect(context.Background(), "DSN=again"))
	assert.Equal(t, []diag.State{diag.ConnectionInUse}, c.Diag.States())

	assert.Equal(t, sqltypes.Error, c.Free())
	assert.Equal(t, []diag.State{diag.SequenceError}, c.Diag.States())

	assert.Equal(t, sqltypes.Success, c.Disconnect())
	assert.False(t, c.Connected())
	assert.Equal(t, sqltypes.Error, c.Disconnect())
	assert.Equal(t, []diag.State{diag.ConnectionNotOpen}, c.Diag.States())
	assert.Equal(t, sqltypes.Success, c.Free())
	assert.Equal(t, 0, env.Connections())
}

func TestConnect_Failures(t *testing.T) {
	tests := []struct {
		name    string
		connStr string
		opener  Opener
		code    errors.Code
	}{
		{
			name:    "malformed string",
			connStr: "DSN={open",
			code:    errors.ErrCodeConnString,
		},
		{
			name:    "invalid setting",
			connStr: "LOGLEVEL=loud",
			code:    errors.ErrCodeConfigInvalid,
		},
		{
			name:    "open fails",
			connStr: "SOURCE=nosuchdriver;DSN=x;LOGLEVEL=off",
			opener: func(string, string) (*sql.DB, error) {
				return nil, assert.AnError
			},
			code: errors.ErrCodeSourceOpen,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []EnvOption{WithLogger(quietLogger())}
			if tt.opener != nil {
				opts = append(opts, WithOpener(tt.opener))
			}
			c := NewEnvironment(opts...).NewConnection()

			assert.Equal(t, sqltypes.Error, c.Connect(context.Background(), tt.connStr))
			require.Equal(t, 1, c.Diag.Len())
			rec, _ := c.Diag.Record(1)
			assert.Equal(t, diag.ConnectionFailed, rec.State)
			assert.Equal(t, int32(tt.code), rec.Native)
			assert.False(t, c.Connected())
		})
	}
}

func TestConnect_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odbcbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: "off"
conversion:
  varchar_size: 99
cursor:
  scrollable: false
`), 0o644))

	env, _, opened := mockEnv(t)
	c := env.NewConnection()
	require.Equal(t, sqltypes.Success,
		c.Connect(context.Background(), "CONFIG="+path+";DATABASE=file.db"))
	defer c.Disconnect()

	cfg := c.Config()
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, 99, cfg.Conversion.VarcharSize)
	assert.Equal(t, "file.db", opened[1])

	s, rc := c.NewStatement(statement.NewArena(64))
	require.Equal(t, sqltypes.Success, rc)
	assert.Equal(t, sqltypes.SuccessWithInfo, s.SetAttr(sqltypes.AttrCursorType, sqltypes.CursorStatic))
	assert.Equal(t, sqltypes.CursorForwardOnly, s.Attrs().CursorType)
}

func TestStatement_ExecDirect(t *testing.T) {
	env, mock, _ := mockEnv(t)
	c := connected(t, env)
	defer c.Disconnect()

	rows := mock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("INTEGER", int64(0)),
		sqlmock.NewColumn("name").OfType("TEXT", ""),
	).AddRow(int64(7), "seven").AddRow(int64(8), "eight")
	mock.ExpectQuery("SELECT id, name FROM t").WillReturnRows(rows)

	a := statement.NewArena(256)
	s, rc := c.NewStatement(a)
	require.Equal(t, sqltypes.Success, rc)
	assert.Equal(t, 1, c.Statements())

	ctx := context.Background()
	require.Equal(t, sqltypes.Success, s.ExecDirect(ctx, "SELECT id, name FROM t"))
	n, _ := s.NumResultCols()
	assert.Equal(t, 2, n)

	id := a.Alloc(4)
	require.Equal(t, sqltypes.Success, s.BindCol(1, sqltypes.CSLong, id, 0, 0))

	require.Equal(t, sqltypes.Success, s.Fetch(ctx))
	assert.Equal(t, uint32(7), binary.NativeEndian.Uint32(a.Slice(id, 4)))

	name, ind := a.Alloc(16), a.Alloc(8)
	require.Equal(t, sqltypes.Success, s.GetData(2, sqltypes.CChar, name, 16, ind))
	assert.Equal(t, "seven\x00", string(a.Slice(name, 6)))
	assert.Equal(t, int64(5), a.Int64(ind))

	require.Equal(t, sqltypes.Success, s.Fetch(ctx))
	assert.Equal(t, uint32(8), binary.NativeEndian.Uint32(a.Slice(id, 4)))
	assert.Equal(t, sqltypes.NoData, s.Fetch(ctx))

	assert.Equal(t, sqltypes.Success, s.CloseCursor())
	assert.Equal(t, statement.StateAllocated, s.State())
	assert.NoError(t, mock.ExpectationsWereMet())

	s.Free()
	assert.True(t, s.Freed())
	assert.Equal(t, 0, c.Statements())
}

func TestStatement_ExecDirectUpdate(t *testing.T) {
	env, mock, _ := mockEnv(t)
	c := connected(t, env)
	defer c.Disconnect()

	mock.ExpectExec("DELETE FROM t").WillReturnResult(sqlmock.NewResult(0, 4))

	s, _ := c.NewStatement(statement.NewArena(64))
	require.Equal(t, sqltypes.Success, s.ExecDirect(context.Background(), "DELETE FROM t WHERE id > 3"))
	n, rc := s.RowCount()
	assert.Equal(t, sqltypes.Success, rc)
	assert.Equal(t, int64(4), n)
	cols, _ := s.NumResultCols()
	assert.Equal(t, 0, cols)
}

func TestStatement_ExecDirectFails(t *testing.T) {
	env, mock, _ := mockEnv(t)
	c := connected(t, env)
	defer c.Disconnect()

	mock.ExpectQuery("SELECT nope").WillReturnError(assert.AnError)

	s, _ := c.NewStatement(statement.NewArena(64))
	assert.Equal(t, sqltypes.Error, s.ExecDirect(context.Background(), "SELECT nope"))
	require.Equal(t, 1, s.Diag.Len())
	rec, _ := s.Diag.Record(1)
	assert.Equal(t, diag.GeneralError, rec.State)
	assert.Equal(t, int32(errors.ErrCodeSourceQuery), rec.Native)
	assert.Equal(t, statement.StateAllocated, s.State())

	assert.Equal(t, sqltypes.Error, s.Fetch(context.Background()))
	assert.Equal(t, []diag.State{diag.SequenceError}, s.Diag.States())
}

func TestStatement_QueryTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a one second timeout")
	}
	env, mock, _ := mockEnv(t)
	c := connected(t, env)
	defer c.Disconnect()

	mock.ExpectQuery("SELECT slow").
		WillDelayFor(3 * time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(int64(1)))

	s, _ := c.NewStatement(statement.NewArena(64))
	require.Equal(t, sqltypes.Success, s.SetAttr(sqltypes.AttrQueryTimeout, 1))
	assert.Equal(t, sqltypes.Error, s.ExecDirect(context.Background(), "SELECT slow"))
	assert.Equal(t, []diag.State{diag.TimeoutExpired}, s.Diag.States())
}

func TestStatement_PrepareExecute(t *testing.T) {
	env, mock, _ := mockEnv(t)
	c := connected(t, env)
	defer c.Disconnect()

	s, _ := c.NewStatement(statement.NewArena(64))
	assert.Equal(t, sqltypes.Error, s.ExecPrepared(context.Background()))
	assert.Equal(t, []diag.State{diag.SequenceError}, s.Diag.States())
	assert.Equal(t, sqltypes.Error, s.Prepare(""))
	assert.Equal(t, []diag.State{diag.InvalidBufferLength}, s.Diag.States())

	require.Equal(t, sqltypes.Success, s.Prepare("SELECT 1"))
	for i := 0; i < 2; i++ {
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(int64(1)))
		require.Equal(t, sqltypes.Success, s.ExecPrepared(context.Background()))

		assert.Equal(t, sqltypes.Error, s.Prepare("SELECT 2"))
		assert.Equal(t, []diag.State{diag.InvalidCursorState}, s.Diag.States())
		require.Equal(t, sqltypes.Success, s.Close())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatement_NotConnected(t *testing.T) {
	env, _, _ := mockEnv(t)
	c := env.NewConnection()

	s, rc := c.NewStatement(statement.NewArena(64))
	assert.Nil(t, s)
	assert.Equal(t, sqltypes.Error, rc)
	assert.Equal(t, []diag.State{diag.ConnectionNotOpen}, c.Diag.States())
}

func TestDisconnect_FreesStatements(t *testing.T) {
	env, _, _ := mockEnv(t)
	c := connected(t, env)

	s1, _ := c.NewStatement(statement.NewArena(64))
	s2, _ := c.NewStatement(statement.NewArena(64))
	require.Equal(t, sqltypes.Success, c.Disconnect())

	assert.True(t, s1.Freed())
	assert.True(t, s2.Freed())
	assert.Equal(t, 0, c.Statements())
}

func TestGuard(t *testing.T) {
	var sink diag.Sink
	sink.Log = quietLogger().Diagnostics()

	var out bytes.Buffer
	logger := log.New(log.Config{DefaultLevel: log.LevelError, Output: &out})
	env := NewEnvironment(WithLogger(logger))

	rc := Guard(&sink, env.DriverLog(), "SQLFetch", func() sqltypes.Return {
		return sqltypes.SuccessWithInfo
	})
	assert.Equal(t, sqltypes.SuccessWithInfo, rc)
	assert.Empty(t, out.String())

	rc = Guard(&sink, env.DriverLog(), "SQLFetch", func() sqltypes.Return {
		var m map[string]int
		m["boom"]++
		return sqltypes.Success
	})
	assert.Equal(t, sqltypes.Error, rc)
	assert.Equal(t, sqltypes.Error, sink.ReturnCode())
	rec, ok := sink.Record(1)
	require.True(t, ok)
	assert.Equal(t, diag.GeneralError, rec.State)
	assert.Equal(t, int32(errors.ErrCodePanic), rec.Native)
	assert.Contains(t, rec.Message, "SQLFetch")

	logged := out.String()
	assert.Contains(t, logged, "entry point panicked")
	assert.Contains(t, logged, "<"+env.id+">")
	assert.Contains(t, logged, "op=SQLFetch")
}

func TestConnection_Info(t *testing.T) {
	env, _, _ := mockEnv(t)
	c := env.NewConnection()

	v, rc := c.Info(sqltypes.InfoDriverODBCVer)
	assert.Equal(t, sqltypes.Success, rc)
	assert.Equal(t, DriverODBCVer, v)

	_, rc = c.Info(sqltypes.InfoDBMSName)
	assert.Equal(t, sqltypes.Error, rc)
	assert.Equal(t, []diag.State{diag.ConnectionNotOpen}, c.Diag.States())

	require.Equal(t, sqltypes.Success,
		c.Connect(context.Background(), "SOURCE=sqlmock;LOGLEVEL=off;cursor.scrollable=false"))
	defer c.Disconnect()

	tests := []struct {
		id   int
		want any
	}{
		{sqltypes.InfoDriverName, DriverName},
		{sqltypes.InfoDBMSName, "sqlmock"},
		{sqltypes.InfoGetDataExtensions, uint32(sqltypes.GDAnyColumn | sqltypes.GDAnyOrder | sqltypes.GDBound)},
		{sqltypes.InfoScrollOptions, uint32(sqltypes.SOForwardOnly)},
		{sqltypes.InfoStaticCursorAttributes1, uint32(0)},
		{sqltypes.InfoTxnCapable, uint16(0)},
	}
	for _, tt := range tests {
		v, rc := c.Info(tt.id)
		assert.Equal(t, sqltypes.Success, rc, "info %d", tt.id)
		assert.Equal(t, tt.want, v, "info %d", tt.id)
	}

	_, rc = c.Info(9999)
	assert.Equal(t, sqltypes.Error, rc)
	assert.Equal(t, []diag.State{diag.OptionalFeature}, c.Diag.States())
}
