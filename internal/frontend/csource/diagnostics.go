package csource

import (
	"errors"
	"fmt"
)

// ErrWarningsAsErrors is returned by Execute when warnings were promoted to
// errors.
var ErrWarningsAsErrors = errors.New("warnings treated as errors")

// Severity of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic is a problem found while preprocessing or parsing a unit.
type Diagnostic struct {
	Severity Severity
	File     string
	Line     int
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Severity, d.Message)
}

type diagnostics struct {
	list []Diagnostic
}

func (d *diagnostics) warn(file string, line int, format string, args ...any) {
	d.list = append(d.list, Diagnostic{Severity: SeverityWarning, File: file, Line: line, Message: fmt.Sprintf(format, args...)})
}

func (d *diagnostics) warnings() []Diagnostic {
	var out []Diagnostic
	for _, diag := range d.list {
		if diag.Severity == SeverityWarning {
			out = append(out, diag)
		}
	}
	return out
}

// promote reports the warnings as one error when warnings are errors.
func (d *diagnostics) promote(warningsAsErrors, ignoreWarnings bool) error {
	if !warningsAsErrors || ignoreWarnings {
		return nil
	}
	warnings := d.warnings()
	if len(warnings) == 0 {
		return nil
	}
	errs := []error{ErrWarningsAsErrors}
	for _, w := range warnings {
		errs = append(errs, errors.New(w.String()))
	}
	return errors.Join(errs...)
}
