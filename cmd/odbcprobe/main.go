// Command odbcprobe runs a query through the driver's handle layer and
// prints what an ODBC application would see: the column descriptions, then
// every row read column by column through SQLGetData with a deliberately
// small buffer, followed by the diagnostics each row produced.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ha1tch/odbcbridge/pkg/driver"
	"github.com/ha1tch/odbcbridge/pkg/version"

	// database/sql drivers selectable with --driver
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer, envOpts ...driver.EnvOption) int {
	fs := flag.NewFlagSet("odbcprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configFile  = fs.String("c", "", "Configuration file path")
		configFileL = fs.String("config", "", "Configuration file path")
		sourceName  = fs.String("driver", "", "database/sql driver (sqlite3, sqlserver, pgx)")
		dsn         = fs.String("dsn", "", "Data source name passed to the driver")
		target      = fs.String("target", "char", "GetData target type: char, wchar, binary, default")
		bufSize     = fs.Int("buffer", 16, "GetData buffer size in bytes")
		logLevel    = fs.String("log-level", "", "Log level (debug, info, warn, error, off)")

		showHelp     = fs.Bool("h", false, "Show help")
		showHelpL    = fs.Bool("help", false, "Show help")
		showVersion  = fs.Bool("v", false, "Show version")
		showVersionL = fs.Bool("version", false, "Show version")
	)

	fs.Usage = func() {
		printUsage(stderr, fs)
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	// Coalesce short and long flags
	if *configFileL != "" {
		*configFile = *configFileL
	}
	if *showHelpL {
		*showHelp = true
	}
	if *showVersionL {
		*showVersion = true
	}

	if *showHelp {
		printUsage(stdout, fs)
		return 0
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.Full())
		return 0
	}

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Fprintln(stderr, "error: no query given")
		printUsage(stderr, fs)
		return 2
	}

	ctype, ok := targets[strings.ToLower(*target)]
	if !ok {
		fmt.Fprintf(stderr, "error: unknown target %q\n", *target)
		return 2
	}
	if *bufSize < minBuffer {
		fmt.Fprintf(stderr, "error: buffer must be at least %d bytes, got %d\n", minBuffer, *bufSize)
		return 2
	}

	p := &probe{
		out:     stdout,
		target:  ctype,
		bufSize: *bufSize,
		envOpts: envOpts,
	}
	connStr := connString(map[string]string{
		driver.KeyConfig:   *configFile,
		driver.KeySource:   *sourceName,
		driver.KeyDSN:      *dsn,
		driver.KeyLogLevel: *logLevel,
	})
	if err := p.run(context.Background(), connStr, query); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// connString builds an ODBC connection string from the non-empty values.
func connString(attrs map[string]string) string {
	var b strings.Builder
	for _, k := range []string{driver.KeyConfig, driver.KeySource, driver.KeyDSN, driver.KeyLogLevel} {
		v := attrs[k]
		if v == "" {
			continue
		}
		fmt.Fprintf(&b, "%s={%s};", k, strings.ReplaceAll(v, "}", "}}"))
	}
	return b.String()
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `odbcprobe - run a query through the odbcbridge result engine

Usage:
  odbcprobe [options] QUERY

Options:
`)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  odbcprobe --driver sqlite3 --dsn :memory: "SELECT 1 AS one, 'hello world' AS greeting"
  odbcprobe --target wchar --buffer 6 -c odbcbridge.yaml "SELECT name FROM customers"
`)
}
