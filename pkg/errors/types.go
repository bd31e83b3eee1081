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

package errors

import (
	"fmt"
	"time"
)

// Error type labels returned by ErrorType() and Classify.
const (
	TypeValidation    = "validation_error"
	TypeTransport     = "transport_error"
	TypeAuth          = "auth_error"
	TypeNotFound      = "not_found"
	TypeConfiguration = "configuration_error"
	TypeTimeout       = "timeout"
	TypeUnknown       = "error"
)

// ValidationError represents caller input that failed schema validation.
// It never reaches the network.
type ValidationError struct {
	// Field is the path of the offending input (e.g. "items[2].name")
	Field string

	// Reason is a short description such as "required" or "expected string, got number"
	Reason string

	// SuggestText provides actionable guidance for fixing the error.
	// Named to avoid clashing with the Suggestion() method.
	SuggestText string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func (e *ValidationError) ErrorType() string   { return TypeValidation }
func (e *ValidationError) IsRetryable() bool   { return false }
func (e *ValidationError) IsUserVisible() bool { return true }
func (e *ValidationError) UserMessage() string { return e.Error() }
func (e *ValidationError) Suggestion() string  { return e.SuggestText }

// TransportErrorType classifies transport failures.
type TransportErrorType string

const (
	TransportConnection TransportErrorType = "connection"
	TransportCancelled  TransportErrorType = "cancelled"
	TransportAuth       TransportErrorType = "auth"
	TransportRateLimit  TransportErrorType = "rate_limit"
	TransportServer     TransportErrorType = "server"
	TransportClient     TransportErrorType = "client"
	TransportInvalidReq TransportErrorType = "invalid_request"
)

// TransportError represents a failed vendor call: a non-2xx response, or a
// request that never produced one. RawBody carries the vendor's text verbatim.
type TransportError struct {
	// Type classifies the failure
	Type TransportErrorType

	// StatusCode is the HTTP status code, zero when no response was received
	StatusCode int

	// RawBody is the response body as text ("" when it could not be read)
	RawBody string

	// Method and URL identify the request
	Method string
	URL    string

	// RequestID is the vendor request ID, when the response carried one
	RequestID string

	// Cause is the underlying error for non-HTTP failures
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	detail := e.RawBody
	if detail == "" && e.Cause != nil {
		detail = e.Cause.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, detail)
	}
	return fmt.Sprintf("%s error: %s", e.Type, detail)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

func (e *TransportError) ErrorType() string { return TypeTransport }

// IsRetryable reports whether a caller-level retry could succeed. Nothing in
// this module retries; the flag is informational.
func (e *TransportError) IsRetryable() bool {
	switch e.Type {
	case TransportConnection, TransportRateLimit, TransportServer:
		return true
	default:
		return false
	}
}

func (e *TransportError) IsUserVisible() bool { return true }
func (e *TransportError) UserMessage() string { return e.Error() }

// Suggestion implements UserVisibleError.
func (e *TransportError) Suggestion() string {
	switch e.Type {
	case TransportAuth:
		return "Check the connector credentials; run 'connectkit auth refresh' if the token expired"
	case TransportRateLimit:
		return "The vendor is rate limiting requests; wait before calling again"
	case TransportServer:
		return "The vendor reported a server error; try again later"
	case TransportConnection:
		return "Check network connectivity to the vendor API"
	default:
		return ""
	}
}

// AuthError represents an authorization or token defect: a missing
// authorization code, a failed code exchange, or a failed refresh.
type AuthError struct {
	// Reason is the human-readable failure description
	Reason string

	// StatusCode is the token endpoint status, when one was received
	StatusCode int

	// RawBody is the token endpoint response, kept verbatim for diagnostics
	RawBody string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	msg := fmt.Sprintf("auth error: %s", e.Reason)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}
	if e.RawBody != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.RawBody)
	} else if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

func (e *AuthError) ErrorType() string   { return TypeAuth }
func (e *AuthError) IsRetryable() bool   { return false }
func (e *AuthError) IsUserVisible() bool { return true }
func (e *AuthError) UserMessage() string { return e.Error() }
func (e *AuthError) Suggestion() string {
	return "Re-run 'connectkit auth url' and complete the authorization flow again"
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "operation", "channel", "connector")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) ErrorType() string   { return TypeNotFound }
func (e *NotFoundError) IsRetryable() bool   { return false }
func (e *NotFoundError) IsUserVisible() bool { return true }
func (e *NotFoundError) UserMessage() string { return e.Error() }
func (e *NotFoundError) Suggestion() string  { return "" }

// ConfigurationError represents configuration problems: a duplicate operation
// registration, an invalid provider profile, or a bad config file value.
type ConfigurationError struct {
	// Key is the configuration key that has the problem (e.g., "connectors.slack.client_id")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Key != "" {
		msg = fmt.Sprintf("configuration error at %s", e.Key)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

func (e *ConfigurationError) ErrorType() string { return TypeConfiguration }
func (e *ConfigurationError) IsRetryable() bool { return false }

// TimeoutError represents operation timeouts.
// Use this when an operation exceeds its configured timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "server shutdown")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

func (e *TimeoutError) ErrorType() string { return TypeTimeout }
func (e *TimeoutError) IsRetryable() bool { return true }
