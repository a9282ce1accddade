// Package log provides structured logging for the driver.
//
// The driver runs inside a host application's process, so log output goes to
// stderr or a configured file and never to stdout. Entries are grouped into
// categories:
//   - Driver: handle allocation, connections, configuration, panics
//   - Statement: execute, fetch, cursor movement, bindings
//   - Conversion: per-value conversion outcomes (debug level)
//   - Source: value-source backends and row production
//   - Diagnostics: records posted to handles
//
// Each category can be configured independently with its own level and output.
package log

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents a logging severity level.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	LevelOff // Disable logging entirely
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	case LevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders the level by name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// ParseLevel parses a level string.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR", "ERR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	case "OFF", "NONE":
		return LevelOff, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// Category identifies the logging category.
type Category string

const (
	CategoryDriver      Category = "driver"      // Handles, connections, config
	CategoryStatement   Category = "statement"   // Execute, fetch, bindings
	CategoryConversion  Category = "conversion"  // Value conversion outcomes
	CategorySource      Category = "source"      // Row producers
	CategoryDiagnostics Category = "diagnostics" // Posted diagnostic records
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryDriver,
	CategoryStatement,
	CategoryConversion,
	CategorySource,
	CategoryDiagnostics,
}

// Format specifies the output format.
type Format int

const (
	FormatText Format = iota // Human-readable text
	FormatJSON               // Structured JSON
)

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %s", s)
	}
}

// Entry represents a single log entry.
type Entry struct {
	Time     time.Time              `json:"time"`
	Level    Level                  `json:"level"`
	Category Category               `json:"category"`
	Message  string                 `json:"message"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
	Error    error                  `json:"-"`
	ErrorStr string                 `json:"error,omitempty"`
	Caller   string                 `json:"caller,omitempty"`
	Handle   string                 `json:"handle,omitempty"`
}

// Logger is the main logging interface.
type Logger struct {
	mu sync.RWMutex

	levels  map[Category]Level
	outputs map[Category]io.Writer

	format        Format
	includeCaller bool

	asyncEnabled bool
	entryChan    chan *Entry
	wg           sync.WaitGroup
	closed       int32

	entriesLogged  int64
	entriesDropped int64
}

// Config holds logger configuration.
type Config struct {
	// Default level for all categories
	DefaultLevel Level

	// Per-category level overrides
	CategoryLevels map[Category]Level

	Output io.Writer // os.Stderr if nil
	Format Format

	IncludeCaller bool // Include file:line in log entries
	AsyncBuffer   int  // Async buffer size (0 = sync logging)
}

// DefaultConfig returns the configuration used before any config file is read.
func DefaultConfig() Config {
	return Config{
		DefaultLevel: LevelWarn,
		Output:       os.Stderr,
		Format:       FormatText,
	}
}

// New creates a new logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	l := &Logger{
		levels:        make(map[Category]Level),
		outputs:       make(map[Category]io.Writer),
		format:        cfg.Format,
		includeCaller: cfg.IncludeCaller,
	}

	for _, cat := range Categories {
		l.levels[cat] = cfg.DefaultLevel
		l.outputs[cat] = cfg.Output
	}
	for cat, level := range cfg.CategoryLevels {
		l.levels[cat] = level
	}

	if cfg.AsyncBuffer > 0 {
		l.asyncEnabled = true
		l.entryChan = make(chan *Entry, cfg.AsyncBuffer)
		l.wg.Add(1)
		go l.asyncWriter()
	}

	return l
}

// SetLevel sets the log level for a category.
func (l *Logger) SetLevel(cat Category, level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels[cat] = level
}

// SetAllLevels sets the same level on every category.
func (l *Logger) SetAllLevels(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, cat := range Categories {
		l.levels[cat] = level
	}
}

// Enabled reports whether a message at level would be written for cat.
func (l *Logger) Enabled(cat Category, level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.levels[cat]
}

// SetOutput sets the output writer for a category.
func (l *Logger) SetOutput(cat Category, w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outputs[cat] = w
}

// SetFormat sets the output format.
func (l *Logger) SetFormat(f Format) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = f
}

// Close shuts down the logger, flushing any buffered entries.
func (l *Logger) Close() error {
	if !l.asyncEnabled {
		return nil
	}

	if !atomic.CompareAndSwapInt32(&l.closed, 0, 1) {
		return nil
	}

	close(l.entryChan)
	l.wg.Wait()
	return nil
}

// Stats returns logging statistics.
func (l *Logger) Stats() (logged, dropped int64) {
	return atomic.LoadInt64(&l.entriesLogged), atomic.LoadInt64(&l.entriesDropped)
}

// Log logs an entry at the specified level and category.
func (l *Logger) Log(level Level, cat Category, msg string, fields ...interface{}) {
	l.log(level, cat, "", msg, nil, fields...)
}

func (l *Logger) Debug(cat Category, msg string, fields ...interface{}) {
	l.log(LevelDebug, cat, "", msg, nil, fields...)
}

func (l *Logger) Info(cat Category, msg string, fields ...interface{}) {
	l.log(LevelInfo, cat, "", msg, nil, fields...)
}

func (l *Logger) Warn(cat Category, msg string, fields ...interface{}) {
	l.log(LevelWarn, cat, "", msg, nil, fields...)
}

func (l *Logger) Error(cat Category, msg string, err error, fields ...interface{}) {
	l.log(LevelError, cat, "", msg, err, fields...)
}

func (l *Logger) Fatal(cat Category, msg string, err error, fields ...interface{}) {
	l.log(LevelFatal, cat, "", msg, err, fields...)
}

// Driver returns a category logger for handle and configuration events.
func (l *Logger) Driver() *CategoryLogger {
	return &CategoryLogger{logger: l, category: CategoryDriver}
}

// Statement returns a category logger for statement events.
func (l *Logger) Statement() *CategoryLogger {
	return &CategoryLogger{logger: l, category: CategoryStatement}
}

// Conversion returns a category logger for conversion events.
func (l *Logger) Conversion() *CategoryLogger {
	return &CategoryLogger{logger: l, category: CategoryConversion}
}

// Source returns a category logger for value-source events.
func (l *Logger) Source() *CategoryLogger {
	return &CategoryLogger{logger: l, category: CategorySource}
}

// Diagnostics returns a category logger for posted diagnostic records.
func (l *Logger) Diagnostics() *CategoryLogger {
	return &CategoryLogger{logger: l, category: CategoryDiagnostics}
}

func (l *Logger) log(level Level, cat Category, handle, msg string, err error, fields ...interface{}) {
	l.mu.RLock()
	catLevel, known := l.levels[cat]
	output := l.outputs[cat]
	format := l.format
	includeCaller := l.includeCaller
	l.mu.RUnlock()

	if !known || level < catLevel || level == LevelOff {
		return
	}

	entry := &Entry{
		Time:     time.Now(),
		Level:    level,
		Category: cat,
		Message:  msg,
		Error:    err,
		Handle:   handle,
	}

	if err != nil {
		entry.ErrorStr = err.Error()
	}

	if len(fields) > 0 {
		entry.Fields = make(map[string]interface{})
		for i := 0; i < len(fields)-1; i += 2 {
			if key, ok := fields[i].(string); ok {
				entry.Fields[key] = fields[i+1]
			}
		}
	}

	if includeCaller {
		if _, file, line, ok := runtime.Caller(3); ok {
			if idx := strings.LastIndex(file, "/"); idx >= 0 {
				file = file[idx+1:]
			}
			entry.Caller = fmt.Sprintf("%s:%d", file, line)
		}
	}

	if l.asyncEnabled && atomic.LoadInt32(&l.closed) == 0 {
		select {
		case l.entryChan <- entry:
			atomic.AddInt64(&l.entriesLogged, 1)
		default:
			atomic.AddInt64(&l.entriesDropped, 1)
		}
	} else {
		l.writeEntry(output, format, entry)
		atomic.AddInt64(&l.entriesLogged, 1)
	}
}

func (l *Logger) writeEntry(w io.Writer, format Format, entry *Entry) {
	var line string

	switch format {
	case FormatJSON:
		data, _ := json.Marshal(entry)
		line = string(data) + "\n"
	default:
		line = formatText(entry)
	}

	w.Write([]byte(line))
}

// formatText renders an entry on one line; fields are sorted by key.
func formatText(entry *Entry) string {
	var buf strings.Builder

	buf.WriteString(entry.Time.Format("2006-01-02 15:04:05.000"))
	buf.WriteString(" ")
	buf.WriteString(fmt.Sprintf("%-5s", entry.Level.String()))
	buf.WriteString(" [")
	buf.WriteString(string(entry.Category))
	buf.WriteString("] ")

	if entry.Handle != "" {
		buf.WriteString("<")
		buf.WriteString(entry.Handle)
		buf.WriteString("> ")
	}

	if entry.Caller != "" {
		buf.WriteString(entry.Caller)
		buf.WriteString(" ")
	}

	buf.WriteString(entry.Message)

	if entry.ErrorStr != "" {
		buf.WriteString(" error=\"")
		buf.WriteString(entry.ErrorStr)
		buf.WriteString("\"")
	}

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf.WriteString(" ")
			buf.WriteString(k)
			buf.WriteString("=")
			buf.WriteString(fmt.Sprintf("%v", entry.Fields[k]))
		}
	}

	buf.WriteString("\n")
	return buf.String()
}

func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for entry := range l.entryChan {
		l.mu.RLock()
		output := l.outputs[entry.Category]
		format := l.format
		l.mu.RUnlock()

		l.writeEntry(output, format, entry)
	}
}

// CategoryLogger is a logger bound to a specific category.
type CategoryLogger struct {
	logger   *Logger
	category Category
	handle   string
}

// ForHandle returns a copy of cl that tags every entry with a handle label.
func (cl *CategoryLogger) ForHandle(handle string) *CategoryLogger {
	return &CategoryLogger{logger: cl.logger, category: cl.category, handle: handle}
}

// Enabled reports whether level is written for this category.
func (cl *CategoryLogger) Enabled(level Level) bool {
	return cl.logger.Enabled(cl.category, level)
}

func (cl *CategoryLogger) Debug(msg string, fields ...interface{}) {
	cl.logger.log(LevelDebug, cl.category, cl.handle, msg, nil, fields...)
}

func (cl *CategoryLogger) Info(msg string, fields ...interface{}) {
	cl.logger.log(LevelInfo, cl.category, cl.handle, msg, nil, fields...)
}

func (cl *CategoryLogger) Warn(msg string, fields ...interface{}) {
	cl.logger.log(LevelWarn, cl.category, cl.handle, msg, nil, fields...)
}

func (cl *CategoryLogger) Error(msg string, err error, fields ...interface{}) {
	cl.logger.log(LevelError, cl.category, cl.handle, msg, err, fields...)
}

func (cl *CategoryLogger) Fatal(msg string, err error, fields ...interface{}) {
	cl.logger.log(LevelFatal, cl.category, cl.handle, msg, err, fields...)
}

// WithFields returns a FieldLogger with preset fields.
func (cl *CategoryLogger) WithFields(fields ...interface{}) *FieldLogger {
	return &FieldLogger{
		categoryLogger: cl,
		fields:         fields,
	}
}

// FieldLogger is a category logger with preset fields.
type FieldLogger struct {
	categoryLogger *CategoryLogger
	fields         []interface{}
}

func (fl *FieldLogger) merged(extra []interface{}) []interface{} {
	out := make([]interface{}, 0, len(fl.fields)+len(extra))
	out = append(out, fl.fields...)
	return append(out, extra...)
}

func (fl *FieldLogger) Debug(msg string, extraFields ...interface{}) {
	cl := fl.categoryLogger
	cl.logger.log(LevelDebug, cl.category, cl.handle, msg, nil, fl.merged(extraFields)...)
}

func (fl *FieldLogger) Info(msg string, extraFields ...interface{}) {
	cl := fl.categoryLogger
	cl.logger.log(LevelInfo, cl.category, cl.handle, msg, nil, fl.merged(extraFields)...)
}

func (fl *FieldLogger) Warn(msg string, extraFields ...interface{}) {
	cl := fl.categoryLogger
	cl.logger.log(LevelWarn, cl.category, cl.handle, msg, nil, fl.merged(extraFields)...)
}

func (fl *FieldLogger) Error(msg string, err error, extraFields ...interface{}) {
	cl := fl.categoryLogger
	cl.logger.log(LevelError, cl.category, cl.handle, msg, err, fl.merged(extraFields)...)
}

type contextKey int

const (
	contextKeyLogger contextKey = iota
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKeyLogger, logger)
}

// FromContext retrieves the logger from context, or returns the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKeyLogger).(*Logger); ok {
			return l
		}
	}
	return Default()
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Default returns the default logger instance.
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(DefaultConfig())
	}
	return defaultLogger
}

// SetDefault sets the default logger instance.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Package-level convenience functions using the default logger

func Debug(cat Category, msg string, fields ...interface{}) {
	Default().Debug(cat, msg, fields...)
}

func Info(cat Category, msg string, fields ...interface{}) {
	Default().Info(cat, msg, fields...)
}

func Warn(cat Category, msg string, fields ...interface{}) {
	Default().Warn(cat, msg, fields...)
}

func Error(cat Category, msg string, err error, fields ...interface{}) {
	Default().Error(cat, msg, err, fields...)
}
