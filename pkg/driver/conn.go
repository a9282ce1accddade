package driver

import (
	"context"
	"database/sql"
	"io"
	"sync"
	"time"

	"github.com/ha1tch/odbcbridge/pkg/config"
	"github.com/ha1tch/odbcbridge/pkg/convert"
	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/errors"
	"github.com/ha1tch/odbcbridge/pkg/log"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/statement"
)

// Connection is a connection handle. Once connected it owns a database/sql
// pool and the configuration loaded for it.
type Connection struct {
	Diag diag.Sink

	env *Environment
	id  string

	mu      sync.Mutex
	cfg     *config.Config
	db      *sql.DB
	logger  *log.Logger
	logFile io.Closer
	watcher *config.Watcher
	connStr string
	stmts   map[*Statement]struct{}
	freed   bool
}

// Connected reports whether Connect has succeeded and Disconnect has not
// been called since.
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db != nil
}

// Config returns the active configuration, nil when not connected.
func (c *Connection) Config() *config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// ConnString returns the connection string Connect was given.
func (c *Connection) ConnString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connStr
}

// Freed reports whether the handle has been released.
func (c *Connection) Freed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freed
}

// Logger returns the connection's logger, or the environment's when not
// connected.
func (c *Connection) Logger() *log.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggerLocked()
}

// DriverLog returns the driver category logger tagged with the handle.
func (c *Connection) DriverLog() *log.CategoryLogger {
	return c.Logger().Driver().ForHandle(c.id)
}

func (c *Connection) loggerLocked() *log.Logger {
	if c.logger != nil {
		return c.logger
	}
	return c.env.logger
}

// Connect is SQLDriverConnect without prompting, and SQLConnect with the
// data source folded into the string. Configuration is layered from the
// defaults, the file named by CONFIG or ODBCBRIDGE_CONFIG, the environment,
// and finally the connection string attributes.
func (c *Connection) Connect(ctx context.Context, connStr string) sqltypes.Return {
	c.Diag.Clear()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		c.Diag.Post(diag.ConnectionInUse)
		return c.Diag.Finish(sqltypes.Error)
	}

	attrs, err := ParseConnString(connStr)
	if err != nil {
		return c.connectFailed(err)
	}
	file, kv := settings(attrs)
	opts := []config.LoadOption{config.WithEnv(), config.WithOverrides(kv)}
	if file != "" {
		opts = append(opts, config.WithFile(file))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return c.connectFailed(err)
	}

	lc, logFile, err := cfg.LoggerConfig()
	if err != nil {
		return c.connectFailed(err)
	}
	logger := log.New(lc)

	db, err := c.env.opener(cfg.Source.Driver, cfg.Source.DSN)
	if err == nil {
		if err = db.PingContext(ctx); err != nil {
			db.Close()
		}
	}
	if err != nil {
		logger.Close()
		logFile.Close()
		return c.connectFailed(errors.Wrapf(err, errors.ErrCodeSourceOpen,
			"opening %s data source", cfg.Source.Driver).Err())
	}

	c.cfg, c.db, c.logger, c.logFile, c.connStr = cfg, db, logger, logFile, connStr
	c.Diag.Log = logger.Diagnostics().ForHandle(c.id)
	if cfg.Watch && cfg.File != "" {
		c.startWatcher(cfg.File, opts)
	}

	logger.Driver().ForHandle(c.id).Info("connected",
		"source", cfg.Source.Driver,
		"config_file", cfg.File,
	)
	return c.Diag.Finish(sqltypes.Success)
}

func (c *Connection) connectFailed(err error) sqltypes.Return {
	c.loggerLocked().Driver().ForHandle(c.id).Error("connect failed", err)
	rec := diag.New(diag.ConnectionFailed, diag.ConnectionFailed.Message()+": "+err.Error()).
		WithNative(int32(errors.GetCode(err)))
	return c.Diag.Finish(c.Diag.Add(rec))
}

func (c *Connection) startWatcher(path string, opts []config.LoadOption) {
	w, err := config.NewWatcher(path, c.logger,
		config.WithLoadOptions(opts...),
		config.WithOnReload(c.reload),
	)
	if err == nil {
		err = w.Start()
	}
	if err != nil {
		c.logger.Driver().ForHandle(c.id).Warn("config watch disabled", "error", err.Error())
		return
	}
	c.watcher = w
}

// reload applies a changed configuration. Log levels change at once;
// conversion and cursor settings apply to statements allocated afterwards.
// The data source is fixed for the life of the connection.
func (c *Connection) reload(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return
	}
	if cfg.Source != c.cfg.Source {
		c.logger.Driver().ForHandle(c.id).Warn("source settings change on reconnect only")
		cfg.Source = c.cfg.Source
	}
	level, _ := log.ParseLevel(cfg.Log.Level)
	c.logger.SetAllLevels(level)
	if f, err := log.ParseFormat(cfg.Log.Format); err == nil {
		c.logger.SetFormat(f)
	}
	c.cfg = cfg
}

// Disconnect is SQLDisconnect. Statements still allocated on the connection
// are freed.
func (c *Connection) Disconnect() sqltypes.Return {
	c.Diag.Clear()
	c.mu.Lock()
	if c.db == nil {
		c.mu.Unlock()
		c.Diag.Post(diag.ConnectionNotOpen)
		return c.Diag.Finish(sqltypes.Error)
	}
	stmts := c.stmts
	c.stmts = make(map[*Statement]struct{})
	db, logger, logFile, w := c.db, c.logger, c.logFile, c.watcher
	c.db, c.cfg, c.logger, c.logFile, c.watcher, c.connStr = nil, nil, nil, nil, nil, ""
	c.Diag.Log = c.env.logger.Diagnostics().ForHandle(c.id)
	c.mu.Unlock()

	for s := range stmts {
		s.drop()
	}
	if w != nil {
		w.Stop()
	}
	lg := logger.Driver().ForHandle(c.id)
	if err := db.Close(); err != nil {
		lg.Warn("closing data source failed", "error", err.Error())
	}
	lg.Info("disconnected", "statements_freed", len(stmts))
	logger.Close()
	logFile.Close()
	return c.Diag.Finish(sqltypes.Success)
}

// Free releases the connection handle. A connected handle must be
// disconnected first.
func (c *Connection) Free() sqltypes.Return {
	c.Diag.Clear()
	c.mu.Lock()
	if c.db != nil {
		c.mu.Unlock()
		c.Diag.Post(diag.SequenceError)
		return c.Diag.Finish(sqltypes.Error)
	}
	c.freed = true
	c.mu.Unlock()
	c.env.remove(c)
	return c.Diag.Finish(sqltypes.Success)
}

// NewStatement allocates a statement handle that reads and writes caller
// buffers through mem.
func (c *Connection) NewStatement(mem statement.Memory) (*Statement, sqltypes.Return) {
	c.Diag.Clear()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		c.Diag.Post(diag.ConnectionNotOpen)
		return nil, c.Diag.Finish(sqltypes.Error)
	}

	id := handleID("stmt")
	conv := &convert.Converter{
		Now:      time.Now,
		MaxDepth: c.cfg.Conversion.MaxDepth,
		Log:      c.logger.Conversion().ForHandle(id),
	}
	s := &Statement{
		Statement: statement.New(mem,
			statement.WithConverter(conv),
			statement.WithLogger(c.logger.Statement().ForHandle(id)),
			statement.WithVarcharSize(c.cfg.Conversion.VarcharSize),
			statement.WithScrollable(c.cfg.Cursor.Scrollable),
		),
		conn: c,
		id:   id,
	}
	c.stmts[s] = struct{}{}
	c.logger.Driver().ForHandle(id).Debug("statement allocated", "connection", c.id)
	return s, c.Diag.Finish(sqltypes.Success)
}

// Statements returns the number of statement handles allocated on c.
func (c *Connection) Statements() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stmts)
}

// querier returns the pool and logger statements run against, nil when not
// connected.
func (c *Connection) querier() (*sql.DB, *log.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db, c.logger
}

func (c *Connection) removeStatement(s *Statement) {
	c.mu.Lock()
	delete(c.stmts, s)
	c.mu.Unlock()
}
