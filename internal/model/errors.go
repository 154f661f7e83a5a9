package model

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when there is nothing to aggregate.
var ErrEmptyInput = errors.New("no rows to aggregate")

// ConfigurationError reports a request that cannot be satisfied by the
// configured modes or columns.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// InvalidDirectionError reports a row whose direction is neither in nor out.
type InvalidDirectionError struct {
	Line  int
	Value string
}

func (e *InvalidDirectionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: invalid direction %q", e.Line, e.Value)
	}
	return fmt.Sprintf("invalid direction %q", e.Value)
}

// RowParseError reports a malformed row.
type RowParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *RowParseError) Error() string {
	msg := fmt.Sprintf("line %d: column %s", e.Line, e.Column)
	if e.Value != "" {
		msg += fmt.Sprintf(": value %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RowParseError) Unwrap() error {
	return e.Err
}
