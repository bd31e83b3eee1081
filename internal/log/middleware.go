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

package log

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// CallRequest describes an incoming tool call for logging purposes.
type CallRequest struct {
	// Operation is the invoked operation name.
	Operation string

	// RequestID identifies this call. Generated when empty.
	RequestID string

	// Transport names where the call came from (e.g. "mcp-stdio", "cli").
	Transport string
}

// CallResponse describes the outcome of a tool call.
type CallResponse struct {
	// Success is false when the call produced an error result.
	Success bool

	// ErrorType is the classified error label for failures.
	ErrorType string

	// Error is the error message for failures.
	Error string

	// DurationMs is the call duration in milliseconds.
	DurationMs int64
}

// LogCallRequest logs an incoming tool call.
func LogCallRequest(logger *slog.Logger, req *CallRequest) {
	logger.Debug("tool call received",
		"event", "call_request",
		OperationKey, req.Operation,
		RequestIDKey, req.RequestID,
		"transport", req.Transport,
	)
}

// LogCallResponse logs a tool call outcome. Failures are logged at warn:
// they are usually vendor or caller problems, not connectkit faults.
func LogCallResponse(logger *slog.Logger, req *CallRequest, resp *CallResponse) {
	attrs := []any{
		"event", "call_response",
		OperationKey, req.Operation,
		RequestIDKey, req.RequestID,
		"success", resp.Success,
		DurationKey, resp.DurationMs,
	}

	if !resp.Success {
		attrs = append(attrs, ErrorTypeKey, resp.ErrorType, "error", resp.Error)
		logger.Warn("tool call failed", attrs...)
		return
	}
	logger.Info("tool call completed", attrs...)
}

// CallMiddleware wraps tool call handling with request/response logging.
type CallMiddleware struct {
	logger *slog.Logger
}

// NewCallMiddleware creates a new call logging middleware.
func NewCallMiddleware(logger *slog.Logger) *CallMiddleware {
	return &CallMiddleware{logger: logger}
}

// Handle logs req, runs handler, and logs the outcome. The handler reports
// the classified error type alongside its error.
func (m *CallMiddleware) Handle(req *CallRequest, handler func() (errorType string, err error)) error {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	start := time.Now()

	LogCallRequest(m.logger, req)

	errType, err := handler()

	resp := &CallResponse{
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorType = errType
	}

	LogCallResponse(m.logger, req, resp)
	return err
}
