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

package oauth

import (
	"fmt"
	"net/url"

	"github.com/tombee/connectkit/pkg/errors"
)

// ParseCallback extracts the authorization code from a redirect callback
// URL. A provider-reported error, a missing code, or a state that does not
// match expectedState (when non-empty) is an AuthError.
func ParseCallback(callbackURL, expectedState string) (string, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", &errors.AuthError{Reason: "invalid callback URL", Cause: err}
	}
	q := u.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		reason := fmt.Sprintf("authorization denied: %s", providerErr)
		if desc := q.Get("error_description"); desc != "" {
			reason = fmt.Sprintf("%s (%s)", reason, desc)
		}
		return "", &errors.AuthError{Reason: reason}
	}

	code := q.Get("code")
	if code == "" {
		return "", &errors.AuthError{Reason: ReasonNoCode}
	}

	if expectedState != "" && q.Get("state") != expectedState {
		return "", &errors.AuthError{Reason: "state mismatch in authorization callback"}
	}

	return code, nil
}
