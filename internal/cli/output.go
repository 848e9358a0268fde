package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"vigil/internal/types"
)

// Exit codes for vigilctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the daemon rejected the request
	ExitCommandError = 2 // bad flags, unreachable daemon, queue errors
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Errors that are not
// ExitErrors map to ExitFailure.
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

// wrapClientError classifies an API error: an AppError decoded from the
// daemon is a rejected request, anything else means the call never landed.
func wrapClientError(action string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) && !types.IsCode(err, types.ErrCodeUpstreamUnavailable) {
		return WrapExitError(ExitFailure, action, err)
	}
	return WrapExitError(ExitCommandError, action, err)
}

// printer writes command results as indented JSON or as plain text lines.
type printer struct {
	format string
	w      io.Writer
}

func (p printer) json() bool { return p.format == "json" }

func (p printer) emit(v any, text func(w io.Writer)) error {
	if p.json() {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(p.w)
	return nil
}
