package main

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ha1tch/odbcbridge/pkg/convert"
	"github.com/ha1tch/odbcbridge/pkg/diag"
	"github.com/ha1tch/odbcbridge/pkg/driver"
	"github.com/ha1tch/odbcbridge/pkg/sqltypes"
	"github.com/ha1tch/odbcbridge/pkg/statement"
)

var targets = map[string]sqltypes.CType{
	"char":    sqltypes.CChar,
	"wchar":   sqltypes.CWChar,
	"binary":  sqltypes.CBinary,
	"default": sqltypes.CDefault,
}

// fixedRoom is the space reserved for fixed-size targets, which ignore the
// buffer length.
const fixedRoom = 64

// minBuffer holds one wide character and its terminator.
const minBuffer = 4

type probe struct {
	out     io.Writer
	target  sqltypes.CType
	bufSize int
	envOpts []driver.EnvOption

	mem    *statement.Arena
	buf    uintptr
	ind    uintptr
	bufCap int
}

// cell is one column of one row as read through GetData.
type cell struct {
	text  string
	null  bool
	calls int
	diags []diag.Record
}

func (p *probe) run(ctx context.Context, connStr, query string) error {
	env := driver.NewEnvironment(p.envOpts...)
	conn := env.NewConnection()
	if rc := conn.Connect(ctx, connStr); rc == sqltypes.Error {
		return diagError("connect", conn.Diag.Records())
	}
	defer conn.Free()
	defer conn.Disconnect()

	p.bufCap = max(p.bufSize, fixedRoom)
	p.mem = statement.NewArena(p.bufCap + 64)
	p.buf, p.ind = p.mem.Alloc(p.bufCap), p.mem.Alloc(8)

	stmt, rc := conn.NewStatement(p.mem)
	if rc == sqltypes.Error {
		return diagError("allocate statement", conn.Diag.Records())
	}
	defer stmt.Free()

	if rc := stmt.ExecDirect(ctx, query); rc == sqltypes.Error {
		return diagError("execute", stmt.Diag.Records())
	}
	p.printDiags(stmt.Diag.Records())

	for set := 1; ; set++ {
		if err := p.printResult(ctx, stmt, set); err != nil {
			return err
		}
		rc := stmt.MoreResults(ctx)
		if rc == sqltypes.NoData {
			return nil
		}
		if rc == sqltypes.Error {
			return diagError("next result", stmt.Diag.Records())
		}
	}
}

func (p *probe) printResult(ctx context.Context, stmt *driver.Statement, set int) error {
	n, _ := stmt.NumResultCols()
	if n == 0 {
		count, _ := stmt.RowCount()
		fmt.Fprintf(p.out, "Result %d: %d row(s) affected\n", set, count)
		return nil
	}

	cols := stmt.Columns()
	desc := table.NewWriter()
	desc.SetOutputMirror(p.out)
	desc.SetStyle(table.StyleLight)
	desc.SetTitle(fmt.Sprintf("Result %d", set))
	desc.AppendHeader(table.Row{"#", "Name", "SQL type", "Size", "Digits", "Nullable"})
	for i, c := range cols {
		d := statement.Describe(c)
		desc.AppendRow(table.Row{i + 1, d.Name, d.Type.String(), d.Size, d.Digits, nullability(d.Nullable)})
	}
	desc.Render()

	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	rows := table.NewWriter()
	rows.SetOutputMirror(p.out)
	rows.SetStyle(table.StyleLight)
	rows.AppendHeader(header)

	var notes []string
	count := 0
	for {
		rc := stmt.Fetch(ctx)
		if rc == sqltypes.NoData {
			break
		}
		if rc == sqltypes.Error {
			rows.Render()
			return diagError("fetch", stmt.Diag.Records())
		}
		count++
		for _, r := range stmt.Diag.Records() {
			notes = append(notes, fmt.Sprintf("row %d: %s", count, formatRecord(r)))
		}

		row := make(table.Row, len(cols))
		for i := range cols {
			c := p.readColumn(stmt, i+1)
			row[i] = c.text
			if c.null {
				row[i] = "NULL"
			}
			if c.calls > 1 {
				notes = append(notes, fmt.Sprintf("row %d column %d: read in %d calls", count, i+1, c.calls))
			}
			for _, r := range c.diags {
				notes = append(notes, fmt.Sprintf("row %d column %d: %s", count, i+1, formatRecord(r)))
			}
		}
		rows.AppendRow(row)
	}
	rows.Render()
	fmt.Fprintf(p.out, "(%d rows)\n", count)
	for _, n := range notes {
		fmt.Fprintln(p.out, "  "+n)
	}
	return nil
}

// readColumn reads one column of the current row, calling GetData until the
// value is complete.
func (p *probe) readColumn(stmt *driver.Statement, col int) cell {
	var (
		c   cell
		raw []byte
	)
	target := p.target
	if target == sqltypes.CDefault {
		target = stmt.Columns()[col-1].DefaultCType()
	}
	term := terminator(target)

	for {
		rc := stmt.GetData(col, target, p.buf, int64(p.bufSize), p.ind)
		c.calls++
		if rc == sqltypes.NoData {
			c.calls--
			break
		}
		for _, r := range stmt.Diag.Records() {
			if r.State != diag.StringDataRightTruncated {
				c.diags = append(c.diags, r)
			}
		}
		if rc == sqltypes.Error {
			c.text = "<error>"
			return c
		}

		n := p.mem.Int64(p.ind)
		if n == sqltypes.NullData {
			c.null = true
			return c
		}
		avail := p.bufCap
		if term >= 0 {
			avail = p.bufSize - term
		}
		if target == sqltypes.CWChar {
			avail &^= 1
		}
		got := avail
		if n != sqltypes.NoTotal && n < int64(avail) {
			got = int(n)
		}
		raw = append(raw, p.mem.Slice(p.buf, got)...)

		if rc == sqltypes.Success || !stmt.Diag.Has(diag.StringDataRightTruncated) || term < 0 {
			break
		}
	}
	c.text = render(target, raw)
	return c
}

// terminator returns the width of the terminator GetData appends for
// target, or -1 for fixed-size targets.
func terminator(target sqltypes.CType) int {
	switch target {
	case sqltypes.CChar:
		return 1
	case sqltypes.CWChar:
		return 2
	case sqltypes.CBinary:
		return 0
	}
	return -1
}

// render formats the bytes delivered for target.
func render(target sqltypes.CType, b []byte) string {
	ne := binary.NativeEndian
	if size, ok := target.FixedSize(); ok && len(b) < size {
		return "0x" + hex.EncodeToString(b)
	}
	switch target.Canonical() {
	case sqltypes.CChar:
		return string(b)
	case sqltypes.CWChar:
		return convert.DecodeWide(b)
	case sqltypes.CBit, sqltypes.CUTinyInt:
		return strconv.Itoa(int(b[0]))
	case sqltypes.CSTinyInt:
		return strconv.Itoa(int(int8(b[0])))
	case sqltypes.CSShort:
		return strconv.Itoa(int(int16(ne.Uint16(b))))
	case sqltypes.CUShort:
		return strconv.Itoa(int(ne.Uint16(b)))
	case sqltypes.CSLong:
		return strconv.FormatInt(int64(int32(ne.Uint32(b))), 10)
	case sqltypes.CULong:
		return strconv.FormatUint(uint64(ne.Uint32(b)), 10)
	case sqltypes.CSBigInt:
		return strconv.FormatInt(int64(ne.Uint64(b)), 10)
	case sqltypes.CUBigInt:
		return strconv.FormatUint(ne.Uint64(b), 10)
	case sqltypes.CDouble:
		return convert.FormatFloat(math.Float64frombits(ne.Uint64(b)), 64, false)
	case sqltypes.CFloat:
		return convert.FormatFloat(float64(math.Float32frombits(ne.Uint32(b))), 32, false)
	case sqltypes.CTypeDate:
		return convert.FormatDate(convert.DateStruct(b))
	case sqltypes.CTypeTime:
		return convert.FormatTime(convert.TimeStruct(b))
	case sqltypes.CTypeTS:
		return convert.FormatTimestamp(convert.TimestampStruct(b))
	}
	if target.IsInterval() {
		return convert.Text(convert.IntervalStruct(b))
	}
	return "0x" + hex.EncodeToString(b)
}

func nullability(n sqltypes.Nullable) string {
	switch n {
	case sqltypes.NoNulls:
		return "no"
	case sqltypes.NullableYes:
		return "yes"
	}
	return "unknown"
}

func (p *probe) printDiags(recs []diag.Record) {
	for _, r := range recs {
		fmt.Fprintln(p.out, formatRecord(r))
	}
}

func formatRecord(r diag.Record) string {
	return fmt.Sprintf("%s %s", r.State, r.Message)
}

func diagError(op string, recs []diag.Record) error {
	if len(recs) == 0 {
		return fmt.Errorf("%s failed", op)
	}
	return fmt.Errorf("%s failed: %s", op, formatRecord(recs[0]))
}
