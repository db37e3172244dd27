package dberr

import (
	"fmt"
	"strings"
)

// Code classifies persistence failures.
type Code string

const (
	CodeNotFound     Code = "NOT_FOUND"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeTransaction  Code = "TRANSACTION_FAILURE"
)

// Error is the error type returned by every persistence layer.
type Error struct {
	Code    Code
	Table   string
	Key     string
	Message string
	Err     error
}

var (
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrInvalidInput = &Error{Code: CodeInvalidInput}
	ErrTransaction  = &Error{Code: CodeTransaction}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Table != "" {
		b.WriteString(" table=")
		b.WriteString(e.Table)
	}
	if e.Key != "" {
		b.WriteString(" key=")
		b.WriteString(e.Key)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NotFound reports a missing row or metadata entry.
func NotFound(table, key, format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Table: table, Key: key, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput reports a caller error such as a missing table name or key.
func InvalidInput(table, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Table: table, Message: fmt.Sprintf(format, args...)}
}

// Transaction wraps a failure of begin, commit or rollback.
func Transaction(err error, format string, args ...any) *Error {
	return &Error{Code: CodeTransaction, Message: fmt.Sprintf(format, args...), Err: err}
}
