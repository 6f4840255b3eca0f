package report

import (
	"fmt"

	"tlog.app/go/tlog/tlwire"
)

type (
	Stage    int
	Severity int

	Report struct {
		Stage    Stage
		Severity Severity
		Line     int
		Col      int
		Message  string
	}

	// List is the diagnostics value returned by every stage.
	// Callers accumulate it, stages never share one.
	List []Report
)

const (
	Syntactic Stage = iota
	Semantic
	Optimization
	Generation
)

const (
	Error Severity = iota
	Warning
)

func New(st Stage, sev Severity, line, col int, format string, args ...any) Report {
	return Report{
		Stage:    st,
		Severity: sev,
		Line:     line,
		Col:      col,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (l *List) Errorf(st Stage, line, col int, format string, args ...any) {
	*l = append(*l, New(st, Error, line, col, format, args...))
}

func (l *List) Warnf(st Stage, line, col int, format string, args ...any) {
	*l = append(*l, New(st, Warning, line, col, format, args...))
}

func (l *List) Append(rs ...Report) {
	*l = append(*l, rs...)
}

func (l List) HasErrors() bool {
	for _, r := range l {
		if r.Severity == Error {
			return true
		}
	}

	return false
}

func (l List) Errors() (r List) {
	for _, x := range l {
		if x.Severity == Error {
			r = append(r, x)
		}
	}

	return r
}

func (l List) Warnings() (r List) {
	for _, x := range l {
		if x.Severity == Warning {
			r = append(r, x)
		}
	}

	return r
}

func (l List) Stage(st Stage) (r List) {
	for _, x := range l {
		if x.Stage == st {
			r = append(r, x)
		}
	}

	return r
}

func (r Report) String() string {
	return fmt.Sprintf("%d:%d: %v %v: %s", r.Line, r.Col, r.Stage, r.Severity, r.Message)
}

func (r Report) Error() string { return r.String() }

func (s Stage) String() string {
	switch s {
	case Syntactic:
		return "SYNTACTIC"
	case Semantic:
		return "SEMANTIC"
	case Optimization:
		return "OPTIMIZATION"
	case Generation:
		return "GENERATION"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

func (s Severity) String() string {
	switch s {
	case Error:
		return "ERROR"
	case Warning:
		return "WARNING"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

func (r Report) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 5)

	b = e.AppendKeyString(b, "stage", r.Stage.String())
	b = e.AppendKeyString(b, "severity", r.Severity.String())
	b = e.AppendKeyInt(b, "line", r.Line)
	b = e.AppendKeyInt(b, "col", r.Col)
	b = e.AppendKeyString(b, "msg", r.Message)

	return b
}
