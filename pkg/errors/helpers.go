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
	"errors"
)

// New, Is and As mirror the standard library so callers need a single
// errors import.
func New(message string) error { return errors.New(message) }

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// Classify returns the label of the first classified error in err's chain,
// TypeUnknown when there is none, and "" for nil.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorType()
	}
	return TypeUnknown
}

// Retryable reports whether the first classified error in err's chain says
// a later identical call could succeed.
func Retryable(err error) bool {
	var classifier ErrorClassifier
	return errors.As(err, &classifier) && classifier.IsRetryable()
}

// SuggestionFor returns the suggestion of the first user-visible error in
// err's chain, or "".
func SuggestionFor(err error) string {
	var uve UserVisibleError
	if !errors.As(err, &uve) || !uve.IsUserVisible() {
		return ""
	}
	return uve.Suggestion()
}
