package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestCode_Category(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{ErrCodeConfigParse, "configuration"},
		{ErrCodeSourceFetch, "source"},
		{ErrCodeColumnIndex, "statement"},
		{ErrCodeNestingDepth, "conversion"},
		{ErrCodePanic, "internal"},
		{Code(5000), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.code.Category(); got != tt.want {
			t.Errorf("%s: expected category %q, got %q", tt.code, tt.want, got)
		}
	}
}

func TestBuilder_WrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := Wrap(cause, ErrCodeSourceOpen, "open source").
		WithOp("Connection.Connect").
		WithField("driver", "sqlite3").
		Err()

	if !Is(err, cause) {
		t.Error("expected wrapped error to match its cause")
	}
	if !IsCode(err, ErrCodeSourceOpen) {
		t.Errorf("expected code %s, got %s", ErrCodeSourceOpen, GetCode(err))
	}
	if !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}

	var e *Error
	if !As(err, &e) {
		t.Fatal("expected *Error")
	}
	if e.OpName != "Connection.Connect" || e.Fields["driver"] != "sqlite3" {
		t.Errorf("expected op and field to be kept, got %q %v", e.OpName, e.Fields)
	}
}

func TestHelpers_Severity(t *testing.T) {
	if s := GetSeverity(SourceFailure("Fetch", stderrors.New("x")).Err()); s != SeverityCritical {
		t.Errorf("expected source failure to be critical, got %s", s)
	}
	if s := GetSeverity(Panic("SQLFetch", "boom").Err()); s != SeverityFatal {
		t.Errorf("expected panic to be fatal, got %s", s)
	}
	if s := GetSeverity(stderrors.New("plain")); s != SeverityError {
		t.Errorf("expected plain errors to default to error severity, got %s", s)
	}
	if c := GetCode(stderrors.New("plain")); c != ErrCodeInternal {
		t.Errorf("expected plain errors to map to %s, got %s", ErrCodeInternal, c)
	}
}

func TestError_FormatVerbose(t *testing.T) {
	err := InvalidState("Fetch", "allocated").Build()
	out := fmt.Sprintf("%+v", err)
	if !strings.Contains(out, "E3001") || !strings.Contains(out, "Operation: Fetch") {
		t.Errorf("expected code and operation in verbose output, got %q", out)
	}
	if fmt.Sprintf("%v", err) != err.Error() {
		t.Errorf("expected %%v to match Error()")
	}
}
