package errors

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryMap       Category = "map"
	CategoryTransport Category = "transport"
	CategoryProtocol  Category = "protocol"
	CategoryCLI       Category = "cli"
)

// Location is a position in a file.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// BarError is a coded error with optional location and fix suggestion.
type BarError struct {
	// Code is a unique error identifier (e.g., "E100").
	Code string

	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	Location *Location

	// Context holds the lines around Location, starting at ContextStart.
	Context      []string
	ContextStart int

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *BarError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *BarError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a file location and reads the surrounding lines.
func (e *BarError) WithLocation(file string, line, column int) *BarError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context, e.ContextStart = readContextLines(file, line, 5)
	return e
}

// WithOffset locates a byte offset in data, as reported by
// encoding/json.SyntaxError, and attaches the surrounding lines.
func (e *BarError) WithOffset(file string, data []byte, offset int64) *BarError {
	if offset < 1 || offset > int64(len(data)) {
		return e
	}
	// Offset counts the offending byte.
	before := data[:offset-1]
	line := bytes.Count(before, []byte("\n")) + 1
	column := len(before) - bytes.LastIndexByte(before, '\n')
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context, e.ContextStart = contextLines(bufio.NewScanner(bytes.NewReader(data)), line, 5)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *BarError) WithSuggestion(s string) *BarError {
	e.Suggestion = s
	return e
}

// WithDetail replaces the registered explanation.
func (e *BarError) WithDetail(d string) *BarError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *BarError) Wrap(err error) *BarError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around targetLine from a file.
func readContextLines(filename string, targetLine, size int) ([]string, int) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0
	}
	defer file.Close()
	return contextLines(bufio.NewScanner(file), targetLine, size)
}

func contextLines(scanner *bufio.Scanner, targetLine, size int) ([]string, int) {
	start := max(1, targetLine-size/2)
	end := targetLine + size/2

	var lines []string
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum > end {
			break
		}
		if lineNum >= start {
			lines = append(lines, scanner.Text())
		}
	}
	return lines, start
}

// New creates a BarError from a registered error code.
func New(code string) *BarError {
	template, ok := registry[code]
	if !ok {
		return &BarError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &BarError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates an uncoded error with a formatted message.
func Newf(category Category, format string, args ...any) *BarError {
	return &BarError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err in the error registered under code, unless it
// already is a *BarError.
func FromError(err error, code string) *BarError {
	if err == nil {
		return nil
	}
	if be, ok := err.(*BarError); ok {
		return be
	}
	return New(code).Wrap(err)
}
