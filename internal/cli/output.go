package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (service rejected it, network error)
	ExitCommandError = 2 // Command error (bad arguments, unreadable config)
	ExitAuthError    = 3 // Not logged in or credentials rejected
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text, JSON or YAML.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostics go here so structured output stays parseable
	Verbose   bool
}

// Response is the envelope for structured output.
type Response struct {
	Status string    `json:"status" yaml:"status"`
	Data   any       `json:"data,omitempty" yaml:"data,omitempty"`
	Error  *ErrorOut `json:"error,omitempty" yaml:"error,omitempty"`
}

// ErrorOut is the error body of a structured response.
type ErrorOut struct {
	Code    int    `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// Success writes data. In text mode text renders it; structured modes
// encode data itself.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	switch f.Format {
	case "json":
		return f.encodeJSON(Response{Status: "ok", Data: data})
	case "yaml":
		return f.encodeYAML(Response{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Error writes err in the configured format.
func (f *OutputFormatter) Error(err error) error {
	body := &ErrorOut{Code: GetExitCode(err), Message: err.Error()}
	switch f.Format {
	case "json":
		return f.encodeJSON(Response{Status: "error", Error: body})
	case "yaml":
		return f.encodeYAML(Response{Status: "error", Error: body})
	}
	_, werr := fmt.Fprintf(f.errWriter(), "Error: %s\n", body.Message)
	return werr
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) encodeJSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *OutputFormatter) encodeYAML(v any) error {
	enc := yaml.NewEncoder(f.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
