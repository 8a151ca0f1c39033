// Package diagnostic defines the closed set of error kinds the pipeline can
// raise and the single-failure reporting format shared by every stage.
package diagnostic

import "fmt"

// Kind is the closed set of error categories a stage can raise, per the
// pipeline's error-handling design: every failure is attributed to exactly
// one of these kinds so a caller can react programmatically if it wants to.
type Kind string

const (
	LexOverflow          Kind = "LexOverflow"
	LexMalformed         Kind = "LexMalformed"
	ParseUnexpectedToken Kind = "ParseUnexpectedToken"
	UndefinedVariable    Kind = "UndefinedVariable"
	VMInvalidCommand     Kind = "VMInvalidCommand"
	VMInvalidSegment     Kind = "VMInvalidSegment"
	IOFailure            Kind = "IOFailure"
)

// Diagnostic is the single error value every stage returns on the first
// invalid input it encounters. There is no recovery: the pipeline halts and
// surfaces exactly one Diagnostic to its caller.
type Diagnostic struct {
	Kind    Kind
	File    string // empty when the failing stage has no file context
	Line    int    // 1-based, 0 when not applicable
	Col     int    // 1-based, 0 when not applicable
	Lexeme  string // the offending token/line/command, when available
	Message string
}

func (d *Diagnostic) Error() string {
	loc := ""
	if d.File != "" {
		loc = d.File
		if d.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, d.Line)
			if d.Col > 0 {
				loc = fmt.Sprintf("%s:%d", loc, d.Col)
			}
		}
		loc += ": "
	}

	near := ""
	if d.Lexeme != "" {
		near = fmt.Sprintf(" (near %q)", d.Lexeme)
	}

	return fmt.Sprintf("%s%s: %s%s", loc, d.Kind, d.Message, near)
}

// New builds a Diagnostic with no location context attached; callers fill in
// File/Line/Col with WithFile/WithPos when that context is available.
func New(kind Kind, lexeme, message string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Lexeme: lexeme, Message: fmt.Sprintf(message, args...)}
}

// WithFile returns a copy of d annotated with the file it occurred in.
func (d *Diagnostic) WithFile(file string) *Diagnostic {
	cp := *d
	cp.File = file
	return &cp
}

// WithPos returns a copy of d annotated with the 1-based line/column it occurred at.
func (d *Diagnostic) WithPos(line, col int) *Diagnostic {
	cp := *d
	cp.Line, cp.Col = line, col
	return &cp
}
