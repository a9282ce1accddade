package driver

import (
	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/errors"
	"github.com/ha1tch/odbcbridge/pkg/log"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
)

// Guard runs the entry point op. A panic must not unwind into the Driver
// Manager, so it is recovered, logged on logger and reported on sink as
// HY000 with the panic code as native error. A nil logger falls back to
// the process default.
func Guard(sink *diag.Sink, logger *log.CategoryLogger, op string, fn func() sqltypes.Return) (rc sqltypes.Return) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Panic(op, r).Build()
			if logger == nil {
				logger = log.Default().Driver()
			}
			logger.Error("entry point panicked", err, "op", op)
			rc = sink.Finish(sink.Add(diag.FromError(err)))
		}
	}()
	return fn()
}
