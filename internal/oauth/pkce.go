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
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/oauth2"
)

// verifierBytes is the amount of randomness behind a code verifier. Hex
// encoding yields a 64 character verifier, inside RFC 7636's 43..128 range.
const verifierBytes = 32

// PKCEState is the verifier/challenge pair for one authorization attempt.
// The verifier must be kept by the caller until code exchange.
type PKCEState struct {
	CodeVerifier  string `json:"code_verifier"`
	CodeChallenge string `json:"code_challenge"`
}

// NewPKCE generates a fresh verifier and its S256 challenge.
func NewPKCE() (*PKCEState, error) {
	buf := make([]byte, verifierBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	verifier := hex.EncodeToString(buf)
	return &PKCEState{
		CodeVerifier:  verifier,
		CodeChallenge: ChallengeFor(verifier),
	}, nil
}

// ChallengeFor computes base64url(sha256(verifier)) without padding.
func ChallengeFor(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// Verifier returns the code verifier, or "" for a nil state so callers can
// pass it through unconditionally.
func (p *PKCEState) Verifier() string {
	if p == nil {
		return ""
	}
	return p.CodeVerifier
}
