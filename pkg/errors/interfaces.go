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

// UserVisibleError is implemented by errors whose text is meant for the
// person driving a tool call or CLI command. Suggestion names the next step,
// usually a command to run; it is empty when there is nothing to suggest.
type UserVisibleError interface {
	error
	IsUserVisible() bool
	UserMessage() string
	Suggestion() string
}

// ErrorClassifier lets logs and metrics label a failure without a type
// switch over every concrete error.
type ErrorClassifier interface {
	error

	// ErrorType is one of the Type* labels.
	ErrorType() string

	// IsRetryable reports whether the same call could succeed later
	// unchanged, as with rate limits and 5xx replies. Nothing in this
	// module retries on its own.
	IsRetryable() bool
}
