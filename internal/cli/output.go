package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/ballot/internal/manifest"
	"github.com/roach88/ballot/internal/model"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected operation or failed scenario (already voted, unknown registrant, ...)
	ExitCommandError = 2 // Command error (bad flags, store unavailable, sensor failure, ...)
)

// Error codes reported for ledger rejections.
const (
	CodeAlreadyVoted      = "E201"
	CodeUnknownRegistrant = "E202"
	CodeNotFound          = "E203"
	CodeConstraint        = "E204"
	CodeInvalidInput      = "E205"
	CodeSensor            = "E206"
	CodeUnavailable       = "E207"
	CodeCommand           = "E001"
	CodeTestFailed        = "E_TEST_FAILED"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set when the command already wrote its own error output.
	Reported bool
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
// Ledger rejections exit 1, store and sensor failures exit 2, and anything
// else defaults to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch model.KindOf(err) {
	case model.KindSensor, model.KindUnavailable:
		return ExitCommandError
	}
	return ExitFailure
}

// ErrorCode returns the stable error code for err. Manifest errors keep
// their own E0xx/E3xx codes.
func ErrorCode(err error) string {
	var loadErr *manifest.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	switch model.KindOf(err) {
	case model.KindAlreadyVoted:
		return CodeAlreadyVoted
	case model.KindUnknownRegistrant:
		return CodeUnknownRegistrant
	case model.KindNotFound:
		return CodeNotFound
	case model.KindConstraint:
		return CodeConstraint
	case model.KindInvalidInput:
		return CodeInvalidInput
	case model.KindSensor:
		return CodeSensor
	case model.KindUnavailable:
		return CodeUnavailable
	}
	return CodeCommand
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E201", "E202", etc.
	Kind    string `json:"kind,omitempty"`    // model error kind, when known
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format. text is
// written in text mode; data is the JSON payload.
func (f *OutputFormatter) Success(data any, text string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, text)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.GetErrWriter(), "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.GetErrWriter(), "Details: %v\n", details)
	}
	return nil
}

// Fail reports err with its code and kind.
func (f *OutputFormatter) Fail(err error) error {
	if f.Format == "json" {
		cliErr := &CLIError{Code: ErrorCode(err), Message: err.Error()}
		if kind := model.KindOf(err); kind != "" {
			cliErr.Kind = string(kind)
		}
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: cliErr})
	}
	return f.Error(ErrorCode(err), err.Error(), nil)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
