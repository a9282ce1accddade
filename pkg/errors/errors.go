// Package errors provides structured internal errors for the driver.
//
// These errors never cross the C ABI. Entry points translate them into a
// diagnostic record and a return code; inside the driver they carry:
//   - a numeric Code for programmatic handling
//   - a Severity
//   - context Fields for logging
//   - an optional stack trace
//   - a wrapped cause
//
// Codes are grouped by the subsystem that raised them:
//   - 1xxx: configuration
//   - 2xxx: value source / backend
//   - 3xxx: statement and cursor state
//   - 4xxx: value conversion
//   - 9xxx: internal
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Code is a numeric error code for programmatic handling.
type Code int

const (
	// Configuration (1xxx)
	ErrCodeConfigInvalid Code = 1001
	ErrCodeConfigParse   Code = 1002
	ErrCodeConfigWatch   Code = 1003
	ErrCodeConnString    Code = 1004

	// Value source (2xxx)
	ErrCodeSourceOpen     Code = 2001
	ErrCodeSourceQuery    Code = 2002
	ErrCodeSourceFetch    Code = 2003
	ErrCodeSourceDescribe Code = 2004
	ErrCodeSourceClosed   Code = 2005
	ErrCodeNotConnected   Code = 2006

	// Statement and cursor (3xxx)
	ErrCodeInvalidState Code = 3001
	ErrCodeColumnIndex  Code = 3002
	ErrCodeBufferLength Code = 3003
	ErrCodeFetchType    Code = 3004
	ErrCodeAttribute    Code = 3005
	ErrCodeCallerMemory Code = 3006

	// Conversion (4xxx)
	ErrCodeUnsupportedType Code = 4001
	ErrCodeNestingDepth    Code = 4002

	// Internal (9xxx)
	ErrCodeInternal       Code = 9001
	ErrCodeNotImplemented Code = 9002
	ErrCodePanic          Code = 9003
)

// String returns the error code as a string.
func (c Code) String() string {
	return fmt.Sprintf("E%04d", c)
}

// Category returns the subsystem for this code.
func (c Code) Category() string {
	switch {
	case c >= 1000 && c < 2000:
		return "configuration"
	case c >= 2000 && c < 3000:
		return "source"
	case c >= 3000 && c < 4000:
		return "statement"
	case c >= 4000 && c < 5000:
		return "conversion"
	case c >= 9000:
		return "internal"
	default:
		return "unknown"
	}
}

// Severity indicates error severity.
type Severity int

const (
	SeverityWarning  Severity = iota // value still usable
	SeverityError                    // call failed, handle still usable
	SeverityCritical                 // handle unusable until reset
	SeverityFatal                    // driver state cannot be trusted
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a structured error with code, context, and optional cause.
type Error struct {
	Code     Code
	Message  string
	Severity Severity

	Fields map[string]interface{}

	Cause error

	Stack  []Frame
	Time   time.Time
	OpName string // e.g. "Statement.Fetch", "Config.Load"
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var buf strings.Builder

	buf.WriteString(e.Code.String())
	buf.WriteString(": ")
	buf.WriteString(e.Message)

	if e.Cause != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Cause.Error())
	}

	return buf.String()
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Format implements fmt.Formatter; %+v prints context and stack.
func (e *Error) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "%s [%s] %s: %s\n",
				e.Time.Format(time.RFC3339),
				e.Severity,
				e.Code.String(),
				e.Message)

			if e.OpName != "" {
				fmt.Fprintf(f, "  Operation: %s\n", e.OpName)
			}
			for k, v := range e.Fields {
				fmt.Fprintf(f, "  %s: %v\n", k, v)
			}
			if e.Cause != nil {
				fmt.Fprintf(f, "  Caused by: %v\n", e.Cause)
			}
			for _, frame := range e.Stack {
				fmt.Fprintf(f, "    %s\n      %s:%d\n",
					frame.Function, frame.File, frame.Line)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(f, e.Error())
	case 'q':
		fmt.Fprintf(f, "%q", e.Error())
	}
}

// Builder helps construct errors fluently.
type Builder struct {
	code     Code
	message  string
	severity Severity
	cause    error
	fields   map[string]interface{}
	op       string
	stack    bool
}

// New starts building a new error with the given code.
func New(code Code, message string) *Builder {
	return &Builder{
		code:     code,
		message:  message,
		severity: SeverityError,
	}
}

// Newf starts building a new error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Builder {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code Code, message string) *Builder {
	b := New(code, message)
	b.cause = cause
	return b
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(cause error, code Code, format string, args ...interface{}) *Builder {
	return Wrap(cause, code, fmt.Sprintf(format, args...))
}

// Warning sets severity to warning.
func (b *Builder) Warning() *Builder {
	b.severity = SeverityWarning
	return b
}

// Critical sets severity to critical.
func (b *Builder) Critical() *Builder {
	b.severity = SeverityCritical
	return b
}

// Fatal sets severity to fatal.
func (b *Builder) Fatal() *Builder {
	b.severity = SeverityFatal
	return b
}

// WithField adds a context field.
func (b *Builder) WithField(key string, value interface{}) *Builder {
	if b.fields == nil {
		b.fields = make(map[string]interface{})
	}
	b.fields[key] = value
	return b
}

// WithOp sets the operation name.
func (b *Builder) WithOp(op string) *Builder {
	b.op = op
	return b
}

// WithStack captures a stack trace at Build time.
func (b *Builder) WithStack() *Builder {
	b.stack = true
	return b
}

// Build creates the Error.
func (b *Builder) Build() *Error {
	e := &Error{
		Code:     b.code,
		Message:  b.message,
		Severity: b.severity,
		Cause:    b.cause,
		Fields:   b.fields,
		OpName:   b.op,
		Time:     time.Now(),
	}

	if b.stack {
		e.Stack = captureStack(2)
	}

	return e
}

// Err is a shorthand for Build() that returns the error interface.
func (b *Builder) Err() error {
	return b.Build()
}

func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	callersFrames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := callersFrames.Next()
		if !strings.Contains(frame.Function, "runtime.") {
			frames = append(frames, Frame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
		}
		if !more || len(frames) >= 10 {
			break
		}
	}

	return frames
}

// Helpers for the conditions the driver raises most often.

// SourceFailure wraps a backend error raised while producing rows.
func SourceFailure(op string, cause error) *Builder {
	return Wrap(cause, ErrCodeSourceFetch, "value source failed").
		WithOp(op).
		Critical()
}

// InvalidState reports a call made in the wrong statement state.
func InvalidState(op, state string) *Builder {
	return Newf(ErrCodeInvalidState, "%s not allowed in state %s", op, state).
		WithOp(op).
		WithField("state", state)
}

// NotImplemented creates a "not implemented" error.
func NotImplemented(feature string) *Builder {
	return Newf(ErrCodeNotImplemented, "%s not implemented", feature).
		WithField("feature", feature)
}

// Panic converts a recovered panic value into a fatal error with a stack.
func Panic(op string, recovered interface{}) *Builder {
	return Newf(ErrCodePanic, "panic in %s: %v", op, recovered).
		WithOp(op).
		Fatal().
		WithStack()
}

// Internal creates an internal error for unexpected conditions.
func Internal(msg string) *Builder {
	return New(ErrCodeInternal, msg).Critical().WithStack()
}

// GetCode extracts the error code from an error, or returns ErrCodeInternal.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// GetSeverity extracts the severity from an error.
func GetSeverity(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.Severity
	}
	return SeverityError
}

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, category string) bool {
	return GetCode(err).Category() == category
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
