package driver

import (
	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/version"
)

// DriverName is reported through SQL_DRIVER_NAME.
const DriverName = "libodbcbridge.so"

// DriverODBCVer is the ODBC version the driver implements.
const DriverODBCVer = "03.80"

// Info is SQLGetInfo for the information types the Driver Manager and
// typical result-reading applications ask for. The value is a string, a
// uint16 or a uint32, matching the C type of the information type.
func (c *Connection) Info(id int) (any, sqltypes.Return) {
	c.Diag.Clear()
	c.mu.Lock()
	defer c.mu.Unlock()

	switch id {
	case sqltypes.InfoDriverName:
		return DriverName, c.Diag.Finish(sqltypes.Success)
	case sqltypes.InfoDriverVer:
		return version.ODBC(), c.Diag.Finish(sqltypes.Success)
	case sqltypes.InfoDriverODBCVer:
		return DriverODBCVer, c.Diag.Finish(sqltypes.Success)
	case sqltypes.InfoDataSourceReadOnly:
		return "N", c.Diag.Finish(sqltypes.Success)
	case sqltypes.InfoIdentifierQuoteChar:
		return `"`, c.Diag.Finish(sqltypes.Success)
	case sqltypes.InfoMaxColumnNameLen:
		return uint16(0), c.Diag.Finish(sqltypes.Success)
	case sqltypes.InfoCursorCommitBehavior, sqltypes.InfoTxnCapable:
		return uint16(0), c.Diag.Finish(sqltypes.Success)
	case sqltypes.InfoGetDataExtensions:
		return uint32(sqltypes.GDAnyColumn | sqltypes.GDAnyOrder | sqltypes.GDBound),
			c.Diag.Finish(sqltypes.Success)
	case sqltypes.InfoForwardOnlyCursorAttributes1:
		return uint32(sqltypes.CA1Next), c.Diag.Finish(sqltypes.Success)
	}

	if c.db == nil {
		c.Diag.Post(diag.ConnectionNotOpen)
		return nil, c.Diag.Finish(sqltypes.Error)
	}
	switch id {
	case sqltypes.InfoDBMSName:
		return c.cfg.Source.Driver, c.Diag.Finish(sqltypes.Success)
	case sqltypes.InfoDBMSVer:
		return "", c.Diag.Finish(sqltypes.Success)
	case sqltypes.InfoScrollOptions:
		opts := uint32(sqltypes.SOForwardOnly)
		if c.cfg.Cursor.Scrollable {
			opts |= sqltypes.SOStatic
		}
		return opts, c.Diag.Finish(sqltypes.Success)
	case sqltypes.InfoStaticCursorAttributes1:
		if !c.cfg.Cursor.Scrollable {
			return uint32(0), c.Diag.Finish(sqltypes.Success)
		}
		return uint32(sqltypes.CA1Next | sqltypes.CA1Absolute | sqltypes.CA1Relative),
			c.Diag.Finish(sqltypes.Success)
	}
	c.Diag.Post(diag.OptionalFeature)
	return nil, c.Diag.Finish(sqltypes.Error)
}
