package main

import (
	"runtime/cgo"
	"sync"

	"github.com/ha1tch/odbcbridge/pkg/config"
	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/driver"
	"github.com/ha1tch/odbcbridge/pkg/log"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
)

// Handles given to the Driver Manager are cgo.Handle values. Anything that
// does not resolve to a live object of the expected kind is reported as
// SQL_INVALID_HANDLE.

func newHandle(v any) uintptr {
	return uintptr(cgo.NewHandle(v))
}

func lookup(h uintptr) (v any) {
	if h == 0 {
		return nil
	}
	defer func() {
		if recover() != nil {
			v = nil
		}
	}()
	return cgo.Handle(h).Value()
}

func release(h uintptr) {
	defer func() { _ = recover() }()
	cgo.Handle(h).Delete()
}

func envOf(h uintptr) *driver.Environment {
	e, _ := lookup(h).(*driver.Environment)
	return e
}

func connOf(h uintptr) *driver.Connection {
	c, _ := lookup(h).(*driver.Connection)
	if c != nil && c.Freed() {
		return nil
	}
	return c
}

// stmtOf resolves a statement handle. Statements freed by SQLDisconnect are
// dropped from the handle table on first use.
func stmtOf(h uintptr) *driver.Statement {
	s, _ := lookup(h).(*driver.Statement)
	if s != nil && s.Freed() {
		release(h)
		return nil
	}
	return s
}

// sinkOf returns the diagnostics of a handle of the given type.
func sinkOf(handleType int, h uintptr) *diag.Sink {
	switch handleType {
	case sqltypes.HandleEnv:
		if e := envOf(h); e != nil {
			return &e.Diag
		}
	case sqltypes.HandleDbc:
		if c := connOf(h); c != nil {
			return &c.Diag
		}
	case sqltypes.HandleStmt:
		if s := stmtOf(h); s != nil {
			return &s.Diag
		}
	}
	return nil
}

var (
	rootOnce sync.Once
	root     *log.Logger
)

// rootLogger is the logger of environment handles, configured from
// ODBCBRIDGE_* variables and the file ODBCBRIDGE_CONFIG names.
func rootLogger() *log.Logger {
	rootOnce.Do(func() {
		root = log.Default()
		cfg, err := config.Load(config.WithEnv())
		if err != nil {
			root.Driver().Warn("ignoring environment configuration", "error", err.Error())
			return
		}
		lc, _, err := cfg.LoggerConfig()
		if err != nil {
			root.Driver().Warn("ignoring log settings", "error", err.Error())
			return
		}
		root = log.New(lc)
		log.SetDefault(root)
	})
	return root
}
