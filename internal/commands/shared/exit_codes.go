// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/tombee/connectkit/pkg/errors"
)

// Exit codes
const (
	ExitSuccess  = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitAuth     = 3
	ExitNotFound = 4
	ExitUsage    = 64 // EX_USAGE from sysexits.h
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates an error for unusable configuration.
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Cause: cause}
}

// NewUsageError creates an error for bad command arguments.
func NewUsageError(msg string) *ExitError {
	return &ExitError{Code: ExitUsage, Message: msg}
}

// Wrap attaches msg to err with an exit code derived from the error type:
// configuration, auth and not-found errors get their own codes.
func Wrap(msg string, err error) *ExitError {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.Code, Message: msg, Cause: err}
	}
	return &ExitError{Code: CodeFor(err), Message: msg, Cause: err}
}

// CodeFor maps an error to an exit code.
func CodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch pkgerrors.Classify(err) {
	case pkgerrors.TypeConfiguration:
		return ExitConfig
	case pkgerrors.TypeAuth:
		return ExitAuth
	case pkgerrors.TypeNotFound:
		return ExitNotFound
	default:
		return ExitFailure
	}
}

// HandleExitError prints err and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(PrintError(os.Stderr, err))
}

// PrintError writes err, and a suggestion when the error carries one, and
// returns the exit code for it.
func PrintError(w io.Writer, err error) int {
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(w, RenderError(msg))
	}
	printUserVisibleSuggestion(w, err)
	return CodeFor(err)
}

// printUserVisibleSuggestion prints the suggestion of the first
// UserVisibleError in the chain.
func printUserVisibleSuggestion(w io.Writer, err error) {
	if suggestion := pkgerrors.SuggestionFor(err); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
}
