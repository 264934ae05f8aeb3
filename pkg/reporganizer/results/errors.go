package results

import (
	"fmt"
	"strings"
)

// MalformedLogError describes one results row that failed validation.
type MalformedLogError struct {
	Line    int    // 1-based line number
	Content string // Row content after decoding
	Reason  string
}

func (e *MalformedLogError) Error() string {
	return fmt.Sprintf("results log line %d is malformed (%s): %s", e.Line, e.Reason, e.Content)
}

// MalformedLogErrors collects every malformed row found in one pass.
type MalformedLogErrors []*MalformedLogError

func (e MalformedLogErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d malformed rows in results log", len(e))
	for _, m := range e {
		b.WriteString("\n  ")
		b.WriteString(m.Error())
	}
	return b.String()
}

// Unwrap exposes the individual rows to errors.As and errors.Is.
func (e MalformedLogErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, m := range e {
		errs[i] = m
	}
	return errs
}
